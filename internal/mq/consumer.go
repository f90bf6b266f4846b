package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReject — сигнальная ошибка handler'а: сообщение неисправимо
// и должно уйти в DLQ вместо повторной доставки.
var ErrReject = errors.New("mq: delivery rejected")

// Handler обрабатывает распарсенное сообщение.
//
// Подтверждением доставки владеет consumer, ровно один раз на
// сообщение. Возврат handler'а выбирает исход:
//   - nil — ack;
//   - ErrReject (в том числе обёрнутый) — nack в DLQ;
//   - любая другая ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Message) error

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений на канал.
	Prefetch int
}

// Consumer потребляет сообщения из очереди RabbitMQ и заново
// подписывается после переподключения соединения.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig

	cancelFunc context.CancelFunc
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Start запускает потребление сообщений. Блокируется до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stream, err := c.openStream()
		if err != nil {
			c.logger.Error("failed to open consume stream", "error", err)
			if wErr := c.awaitReconnect(ctx); wErr != nil {
				return wErr
			}
			continue
		}

		c.logger.Info("consumer started")
		c.drain(ctx, stream)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("delivery stream closed, resubscribing")
		if wErr := c.awaitReconnect(ctx); wErr != nil {
			return wErr
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// openStream настраивает prefetch и подписывается на очередь.
func (c *Consumer) openStream() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	stream, err := ch.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack (подтверждаем сами)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	return stream, nil
}

// awaitReconnect ждёт переподключения соединения либо отмены ctx.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer")
		return nil
	}
}

// drain обрабатывает сообщения до закрытия потока или отмены ctx.
func (c *Consumer) drain(ctx context.Context, stream <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-stream:
			if !ok {
				return
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение и закрывает доставку
// ровно одним ack либо nack.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message body", "error", err, "body", string(raw.Body))
		c.settle(raw, fmt.Errorf("%w: %v", ErrReject, err))
		return
	}

	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)
	c.settle(raw, c.cfg.Handler(ctx, &msg))
}

// settle закрывает доставку по результату обработки.
func (c *Consumer) settle(raw amqp.Delivery, handlerErr error) {
	var err error
	switch {
	case handlerErr == nil:
		err = raw.Ack(false)
	case errors.Is(handlerErr, ErrReject):
		// Неисправимое сообщение — в DLQ.
		c.logger.Error("delivery rejected", "error", handlerErr)
		err = raw.Nack(false, false)
	default:
		// Временная ошибка — вернуть в очередь для retry.
		c.logger.Error("handler failed, requeueing", "error", handlerErr)
		err = raw.Nack(false, true)
	}
	if err != nil {
		c.logger.Error("failed to settle delivery", "delivery_tag", raw.DeliveryTag, "error", err)
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload может быть уже распарсен как map или быть raw json
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
