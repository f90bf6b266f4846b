package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/workflow"
)

// recordingExecutor records visited TASK nodes and feeds
// preconfigured outputs into execution data.
type recordingExecutor struct {
	mu      sync.Mutex
	visited []string
	outputs map[string]map[string]any
	fail    map[string]error
}

func (r *recordingExecutor) ExecuteNode(_ context.Context, _ *domain.WorkflowExecution, node domain.WorkflowNode) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[node.ID]; err != nil {
		return nil, err
	}
	r.visited = append(r.visited, node.ID)
	return r.outputs[node.ID], nil
}

func (r *recordingExecutor) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.visited...)
}

func newTestTracker(t *testing.T, def *domain.WorkflowDefinition, exec NodeExecutor) (*Tracker, graph.Store) {
	t.Helper()
	g := graph.NewMemory()
	ws := workflow.NewStore(workflow.Config{Graph: g})
	if err := ws.Create(context.Background(), def); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	tracker, err := NewTracker(Config{Workflows: ws, Graph: g, Executor: exec})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tracker, g
}

func linearDefinition() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   "wf1",
		Name: "Linear",
		Nodes: []domain.WorkflowNode{
			{ID: "start", Type: domain.NodeTypeStart},
			{ID: "work", Type: domain.NodeTypeTask},
			{ID: "end", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.WorkflowEdge{
			{ID: "e1", Source: "start", Target: "work"},
			{ID: "e2", Source: "work", Target: "end"},
		},
	}
}

func TestExecuteCompletesLinearWorkflow(t *testing.T) {
	rec := &recordingExecutor{outputs: map[string]map[string]any{
		"work": {"produced": 42},
	}}
	tracker, g := newTestTracker(t, linearDefinition(), rec)
	ctx := context.Background()

	exec, err := tracker.Execute(ctx, domain.ExecutionRequest{
		WorkflowID: "wf1",
		InputData:  map[string]any{"who": "tester"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", exec.Status)
	}
	if exec.CompletedAt == nil {
		t.Error("completed_at must be stamped on terminal transition")
	}
	if exec.ExecutionData["produced"] != 42 {
		t.Errorf("task outputs must merge into execution data: %v", exec.ExecutionData)
	}
	if exec.ExecutionData["who"] != "tester" {
		t.Errorf("input data lost: %v", exec.ExecutionData)
	}

	// Every node projection of this run must end COMPLETED.
	nodes, _ := g.QueryNodes(ctx, graph.NodeFilter{Tag: exec.ExecutionID})
	if len(nodes) != 3 {
		t.Fatalf("projected nodes = %d, want 3", len(nodes))
	}
	for _, n := range nodes {
		if n.Props["status"] != string(domain.NodeRunCompleted) {
			t.Errorf("node %s status = %v, want COMPLETED", n.Key, n.Props["status"])
		}
	}
}

func TestExecuteNodeFailure(t *testing.T) {
	rec := &recordingExecutor{fail: map[string]error{"work": errors.New("boom")}}
	tracker, g := newTestTracker(t, linearDefinition(), rec)
	ctx := context.Background()

	exec, err := tracker.Execute(ctx, domain.ExecutionRequest{WorkflowID: "wf1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("status = %s, want FAILED", exec.Status)
	}
	if exec.Error == "" || exec.CompletedAt == nil {
		t.Errorf("failed execution must carry error and completed_at: %+v", exec)
	}

	nodes, _ := g.QueryNodes(ctx, graph.NodeFilter{Tag: exec.ExecutionID, Label: "TASK"})
	if len(nodes) != 1 || nodes[0].Props["status"] != string(domain.NodeRunFailed) {
		t.Errorf("task projection = %v, want FAILED", nodes)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	g := graph.NewMemory()
	ws := workflow.NewStore(workflow.Config{Graph: g})
	ctx := context.Background()
	if err := ws.Create(ctx, linearDefinition()); err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	// Async mode: Execute returns right after the record is created,
	// so the run can be cancelled mid-flight.
	release := make(chan struct{})
	blocking := blockingExecutor{release: release}
	tracker, err := NewTracker(Config{Workflows: ws, Graph: g, Executor: blocking, Async: true})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	defer close(release)

	exec, err := tracker.Execute(ctx, domain.ExecutionRequest{WorkflowID: "wf1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if err := tracker.Cancel(ctx, exec.ExecutionID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	first, _ := tracker.Result(ctx, exec.ExecutionID)
	if first.Status != domain.ExecutionStatusCancelled || first.CompletedAt == nil {
		t.Fatalf("after cancel: %+v", first)
	}

	time.Sleep(10 * time.Millisecond)
	if err := tracker.Cancel(ctx, exec.ExecutionID); err != nil {
		t.Fatalf("second Cancel must be a no-op, got %v", err)
	}
	second, _ := tracker.Result(ctx, exec.ExecutionID)
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Error("second cancel must not overwrite completed_at")
	}
}

type blockingExecutor struct{ release chan struct{} }

func (b blockingExecutor) ExecuteNode(ctx context.Context, _ *domain.WorkflowExecution, _ domain.WorkflowNode) (map[string]any, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func TestLifecycleGuards(t *testing.T) {
	tracker, _ := newTestTracker(t, linearDefinition(), PassThrough{})
	ctx := context.Background()

	exec, err := tracker.Execute(ctx, domain.ExecutionRequest{WorkflowID: "wf1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Sync run already completed.
	if err := tracker.Pause(ctx, exec.ExecutionID); !errors.Is(err, ErrTerminal) {
		t.Errorf("Pause on finished execution: %v, want ErrTerminal", err)
	}
	if err := tracker.Resume(ctx, exec.ExecutionID); !errors.Is(err, ErrTerminal) {
		t.Errorf("Resume on finished execution: %v, want ErrTerminal", err)
	}
	if err := tracker.Cancel(ctx, exec.ExecutionID); !errors.Is(err, ErrTerminal) {
		t.Errorf("Cancel on completed execution: %v, want ErrTerminal", err)
	}
	if _, err := tracker.Result(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Result(missing): %v, want ErrNotFound", err)
	}
}

func TestHistoryAndCounts(t *testing.T) {
	rec := &recordingExecutor{}
	tracker, _ := newTestTracker(t, linearDefinition(), rec)
	ctx := context.Background()

	var last *domain.WorkflowExecution
	for i := 0; i < 3; i++ {
		exec, err := tracker.Execute(ctx, domain.ExecutionRequest{WorkflowID: "wf1"})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		last = exec
	}

	history, err := tracker.History(ctx, "wf1", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].ExecutionID != last.ExecutionID {
		t.Error("history must be ordered most-recent first")
	}

	total, successful, failed, err := tracker.CountByWorkflow(ctx, "wf1")
	if err != nil {
		t.Fatalf("CountByWorkflow: %v", err)
	}
	if total != 3 || successful != 3 || failed != 0 {
		t.Errorf("counts = (%d, %d, %d), want (3, 3, 0)", total, successful, failed)
	}

	active, _ := tracker.Active(ctx)
	if len(active) != 0 {
		t.Errorf("active = %d, want 0 after all runs finished", len(active))
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	g := graph.NewMemory()
	ws := workflow.NewStore(workflow.Config{Graph: g})
	ctx := context.Background()
	if err := ws.Create(ctx, linearDefinition()); err != nil {
		t.Fatalf("create workflow: %v", err)
	}

	release := make(chan struct{})
	tracker, err := NewTracker(Config{
		Workflows: ws, Graph: g,
		Executor: blockingExecutor{release: release},
		Async:    true,
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	exec, err := tracker.Execute(ctx, domain.ExecutionRequest{WorkflowID: "wf1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if err := tracker.Pause(ctx, exec.ExecutionID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if status, _ := tracker.Status(ctx, exec.ExecutionID); status != domain.ExecutionStatusPaused {
		t.Errorf("status = %s, want PAUSED", status)
	}
	if err := tracker.Pause(ctx, exec.ExecutionID); !errors.Is(err, ErrNotRunning) {
		t.Errorf("double pause: %v, want ErrNotRunning", err)
	}

	if err := tracker.Resume(ctx, exec.ExecutionID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if status, _ := tracker.Status(ctx, exec.ExecutionID); status != domain.ExecutionStatusRunning {
		t.Errorf("status = %s, want RUNNING", status)
	}

	close(release)
	waitForTerminal(t, tracker, exec.ExecutionID)
}

func waitForTerminal(t *testing.T, tracker *Tracker, executionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := tracker.Status(context.Background(), executionID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.IsTerminal() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("execution did not reach a terminal status")
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	tracker, _ := newTestTracker(t, linearDefinition(), PassThrough{})

	_, err := tracker.Execute(context.Background(), domain.ExecutionRequest{WorkflowID: "missing"})
	if err == nil {
		t.Fatal("expected error for unknown workflow")
	}
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("error = %v, want workflow.ErrNotFound", err)
	}
}
