package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/taskqueue"
)

func newBareWorker(t *testing.T) *Worker {
	t.Helper()
	return &Worker{
		registry: taskqueue.NewRegistry(),
		name:     "test-worker",
		logger:   slog.Default(),
		running:  make(map[string]context.CancelFunc),
		revoked:  make(map[string]bool),
	}
}

func TestInvokeResolvesHandler(t *testing.T) {
	w := newBareWorker(t)
	w.registry.Register("sum", func(_ context.Context, args []any, _ map[string]any) (any, error) {
		total := 0
		for _, a := range args {
			total += a.(int)
		}
		return total, nil
	})

	result, err := w.invoke(context.Background(), mq.TaskSubmitPayload{
		TaskID:   "t1",
		TaskName: "sum",
		Args:     []any{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result != 6 {
		t.Errorf("result = %v, want 6", result)
	}
}

func TestInvokeUnknownTask(t *testing.T) {
	w := newBareWorker(t)

	_, err := w.invoke(context.Background(), mq.TaskSubmitPayload{TaskID: "t1", TaskName: "nope"})
	if !errors.Is(err, taskqueue.ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestInvokeHonorsTimeout(t *testing.T) {
	w := newBareWorker(t)
	w.registry.Register("slow", func(ctx context.Context, _ []any, _ map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	})

	start := time.Now()
	_, err := w.invoke(context.Background(), mq.TaskSubmitPayload{
		TaskID:     "t1",
		TaskName:   "slow",
		TimeoutSec: 1,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout did not cut the handler short")
	}
}

func TestRevokeBeforeDelivery(t *testing.T) {
	w := newBareWorker(t)

	w.revoke("t1", false)
	if !w.consumeRevocation("t1") {
		t.Fatal("revocation mark must survive until delivery")
	}
	// Consumed exactly once.
	if w.consumeRevocation("t1") {
		t.Error("revocation mark must be consumed")
	}
}

func TestRevokeTerminatesRunningTask(t *testing.T) {
	w := newBareWorker(t)
	started := make(chan struct{})
	w.registry.Register("blocked", func(ctx context.Context, _ []any, _ map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	done := make(chan error, 1)
	go func() {
		_, err := w.invoke(context.Background(), mq.TaskSubmitPayload{TaskID: "t1", TaskName: "blocked"})
		done <- err
	}()

	<-started
	w.revoke("t1", true)

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("revoke did not terminate the running task")
	}
	// Termination leaves the mark so the caller can tell
	// interruption from a handler error.
	if !w.consumeRevocation("t1") {
		t.Error("terminated task must be marked revoked")
	}
}

func TestRevokeWithoutTerminateKeepsTaskRunning(t *testing.T) {
	w := newBareWorker(t)
	cancelled := false
	w.trackRunning("t1", func() { cancelled = true })
	defer w.untrackRunning("t1")

	w.revoke("t1", false)
	if cancelled {
		t.Error("revoke without terminate must not cancel a running task")
	}
	if w.consumeRevocation("t1") {
		t.Error("running task must not be marked for skip")
	}
}

func TestMalformedPayloadRejectedToDeadLetter(t *testing.T) {
	w := newBareWorker(t)

	// Consumer владеет подтверждением: handleTask сигналит DLQ через
	// mq.ErrReject и не трогает доставку сам.
	err := w.handleTask(context.Background(), &mq.Message{
		ID:      "m1",
		Type:    mq.MessageTypeTaskSubmit,
		Payload: "not a task payload",
	})
	if !errors.Is(err, mq.ErrReject) {
		t.Fatalf("malformed payload must map to mq.ErrReject, got %v", err)
	}
}

func TestRetryCountSurvivesJSONRoundTrip(t *testing.T) {
	cases := []struct {
		meta map[string]any
		want int
	}{
		{nil, 0},
		{map[string]any{"retry_count": 2}, 2},
		{map[string]any{"retry_count": float64(3)}, 3},
		{map[string]any{"retry_count": "bogus"}, 0},
	}
	for _, tc := range cases {
		got := retryCountOf(mq.TaskSubmitPayload{Metadata: tc.meta})
		if got != tc.want {
			t.Errorf("retryCountOf(%v) = %d, want %d", tc.meta, got, tc.want)
		}
	}
}
