package taskqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/broker"
	"github.com/shaiso/Conductor/internal/domain"
)

func noopHandler(context.Context, []any, map[string]any) (any, error) {
	return nil, nil
}

func newTestQueue(t *testing.T) (*Queue, *broker.Memory) {
	t.Helper()
	b := broker.NewMemory()
	q, err := New(Config{Broker: b})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	q.RegisterHandler("send_report", noopHandler)
	return q, b
}

func TestCreateTaskRequiresHandler(t *testing.T) {
	q, b := newTestQueue(t)
	ctx := context.Background()

	_, err := q.CreateTask(ctx, domain.TaskRequest{TaskName: "unknown_task"})
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
	// Fail-fast: nothing must reach the broker.
	if n, _ := b.QueueLength(ctx, DefaultQueue); n != 0 {
		t.Errorf("queue length = %d, want 0 after rejected task", n)
	}

	if _, err := q.CreateTask(ctx, domain.TaskRequest{}); !errors.Is(err, ErrEmptyTaskName) {
		t.Errorf("expected ErrEmptyTaskName, got %v", err)
	}
}

func TestStatusMappingTotality(t *testing.T) {
	q, b := newTestQueue(t)
	ctx := context.Background()

	cases := map[string]domain.TaskStatus{
		domain.BrokerStatusPending: domain.TaskStatusPending,
		domain.BrokerStatusStarted: domain.TaskStatusRunning,
		domain.BrokerStatusSuccess: domain.TaskStatusCompleted,
		domain.BrokerStatusFailure: domain.TaskStatusFailed,
		domain.BrokerStatusRetry:   domain.TaskStatusRetrying,
		domain.BrokerStatusRevoked: domain.TaskStatusCancelled,
		"SOMETHING_NEW":            domain.TaskStatusPending,
	}
	for raw, want := range cases {
		id, err := q.CreateTask(ctx, domain.TaskRequest{TaskName: "send_report"})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		b.SetStatus(id, raw)

		got, err := q.GetTaskStatus(ctx, id)
		if err != nil {
			t.Fatalf("GetTaskStatus(%s): %v", raw, err)
		}
		if got != want {
			t.Errorf("broker %q mapped to %s, want %s", raw, got, want)
		}
	}
}

func TestTaskResultCarriesMetadata(t *testing.T) {
	q, b := newTestQueue(t)
	ctx := context.Background()

	id, err := q.CreateTask(ctx, domain.TaskRequest{
		TaskName: "send_report",
		Metadata: map[string]any{"allocation_id": "alloc-1"},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	b.Complete(id, map[string]any{"sent": true})

	result, err := q.GetTaskResult(ctx, id)
	if err != nil {
		t.Fatalf("GetTaskResult: %v", err)
	}
	if result.Status != domain.TaskStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", result.Status)
	}
	if result.Metadata["allocation_id"] != "alloc-1" {
		t.Errorf("metadata lost: %v", result.Metadata)
	}
}

func TestCancelTask(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, _ := q.CreateTask(ctx, domain.TaskRequest{TaskName: "send_report"})
	if err := q.CancelTask(ctx, id); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}

	status, _ := q.GetTaskStatus(ctx, id)
	if status != domain.TaskStatusCancelled {
		t.Errorf("status after cancel = %s, want CANCELLED", status)
	}
}

func TestResubmitIsReplay(t *testing.T) {
	q, b := newTestQueue(t)
	ctx := context.Background()

	original, _ := q.CreateTask(ctx, domain.TaskRequest{
		TaskName: "send_report",
		Queue:    "reports",
		Priority: domain.TaskPriorityHigh,
	})
	b.Fail(original, "boom")

	replay, err := q.ResubmitTask(ctx, original)
	if err != nil {
		t.Fatalf("ResubmitTask: %v", err)
	}
	if replay == original {
		t.Fatal("resubmit must create a brand-new task id")
	}

	// The original attempt stays failed; the replay starts fresh.
	status, _ := q.GetTaskStatus(ctx, original)
	if status != domain.TaskStatusFailed {
		t.Errorf("original status = %s, want FAILED", status)
	}
	status, _ = q.GetTaskStatus(ctx, replay)
	if status != domain.TaskStatusPending {
		t.Errorf("replay status = %s, want PENDING", status)
	}

	history := q.History(10)
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Queue != "reports" || history[0].Priority != domain.TaskPriorityHigh {
		t.Errorf("replay must keep queue and priority: %+v", history[0])
	}
}

func TestHistoryLimit(t *testing.T) {
	b := broker.NewMemory()
	q, err := New(Config{Broker: b, HistoryLimit: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	q.RegisterHandler("send_report", noopHandler)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.CreateTask(ctx, domain.TaskRequest{TaskName: "send_report"}); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	if got := len(q.History(10)); got != 2 {
		t.Errorf("history = %d entries, want 2 (bounded)", got)
	}
	if got := len(q.History(1)); got != 1 {
		t.Errorf("History(1) = %d entries, want 1", got)
	}
}
