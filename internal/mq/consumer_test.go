package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// recordingAcker считает ack/nack по одной доставке.
type recordingAcker struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *recordingAcker) Ack(_ uint64, _ bool) error {
	a.acks++
	return nil
}

func (a *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func newTestConsumer(handler Handler) *Consumer {
	return NewConsumer(&Connection{}, slog.Default(), ConsumerConfig{
		Queue:   "tasks.default",
		Handler: handler,
	})
}

func settleOnce(t *testing.T, a *recordingAcker) {
	t.Helper()
	if total := a.acks + a.nacks; total != 1 {
		t.Fatalf("delivery settled %d times, want exactly once (acks=%d nacks=%d)",
			total, a.acks, a.nacks)
	}
}

func TestMalformedBodyGoesToDeadLetter(t *testing.T) {
	handled := false
	c := newTestConsumer(func(_ context.Context, _ *Message) error {
		handled = true
		return nil
	})

	acker := &recordingAcker{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: acker,
		Body:         []byte("{not json"),
	})

	settleOnce(t, acker)
	if acker.nacks != 1 || acker.requeue {
		t.Errorf("malformed body must be nacked without requeue, got acks=%d nacks=%d requeue=%v",
			acker.acks, acker.nacks, acker.requeue)
	}
	if handled {
		t.Error("handler must not run for a malformed body")
	}
}

func TestRejectedDeliveryGoesToDeadLetter(t *testing.T) {
	c := newTestConsumer(func(_ context.Context, _ *Message) error {
		return fmt.Errorf("%w: poison payload", ErrReject)
	})

	acker := &recordingAcker{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: acker,
		Body:         []byte(`{"id":"m1","type":"task.submit"}`),
	})

	settleOnce(t, acker)
	if acker.nacks != 1 || acker.requeue {
		t.Errorf("rejected delivery must be nacked without requeue, got nacks=%d requeue=%v",
			acker.nacks, acker.requeue)
	}
}

func TestHandlerErrorRequeuesDelivery(t *testing.T) {
	c := newTestConsumer(func(_ context.Context, _ *Message) error {
		return errors.New("transient failure")
	})

	acker := &recordingAcker{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: acker,
		Body:         []byte(`{"id":"m1","type":"task.submit"}`),
	})

	settleOnce(t, acker)
	if acker.nacks != 1 || !acker.requeue {
		t.Errorf("handler error must requeue, got nacks=%d requeue=%v", acker.nacks, acker.requeue)
	}
}

func TestSuccessfulDeliveryAcked(t *testing.T) {
	c := newTestConsumer(func(_ context.Context, msg *Message) error {
		if msg.ID != "m1" {
			t.Errorf("message id = %q, want m1", msg.ID)
		}
		return nil
	})

	acker := &recordingAcker{}
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: acker,
		Body:         []byte(`{"id":"m1","type":"task.submit"}`),
	})

	settleOnce(t, acker)
	if acker.acks != 1 {
		t.Errorf("successful delivery must be acked once, got acks=%d nacks=%d", acker.acks, acker.nacks)
	}
}

func TestEventStreamDropsMalformedEvents(t *testing.T) {
	b := NewAMQPBroker(&Connection{}, slog.Default())

	// У очереди событий нет DLQ: ошибка парсинга не должна
	// возвращаться consumer'у, иначе событие зациклится.
	err := b.handleEvent(context.Background(), &Message{
		ID:      "m1",
		Type:    MessageTypeTaskEvent,
		Payload: "not an event object",
	})
	if err != nil {
		t.Fatalf("malformed event must be dropped, got %v", err)
	}

	err = b.handleEvent(context.Background(), &Message{
		ID:      "m2",
		Type:    MessageTypeWorkerEvent,
		Payload: 42,
	})
	if err != nil {
		t.Fatalf("malformed worker event must be dropped, got %v", err)
	}
}
