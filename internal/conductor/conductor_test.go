package conductor

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/broker"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/execution"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/sysinfo"
	"github.com/shaiso/Conductor/internal/taskqueue"
	"github.com/shaiso/Conductor/internal/workflow"
)

// flakyBroker wraps the in-memory broker and fails selected calls,
// simulating a broker outage.
type flakyBroker struct {
	*broker.Memory
	failSubmit bool
	failStats  bool
}

func (b *flakyBroker) Submit(ctx context.Context, req domain.TaskRequest) (string, error) {
	if b.failSubmit {
		return "", errors.New("broker unreachable")
	}
	return b.Memory.Submit(ctx, req)
}

func (b *flakyBroker) WorkerStats(ctx context.Context) (map[string]broker.WorkerStat, error) {
	if b.failStats {
		return nil, errors.New("broker unreachable")
	}
	return b.Memory.WorkerStats(ctx)
}

// denyAll rejects every call.
type denyAll struct{}

func (denyAll) Authorize(context.Context, *CallerContext, string, string) (bool, error) {
	return false, nil
}

// failingExecutor fails every TASK node.
type failingExecutor struct{}

func (failingExecutor) ExecuteNode(context.Context, *domain.WorkflowExecution, domain.WorkflowNode) (map[string]any, error) {
	return nil, errors.New("task body failed")
}

type fixture struct {
	conductor *Conductor
	resources *resource.Manager
	broker    *flakyBroker
	source    *sysinfo.Static
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()

	source := sysinfo.NewStatic(sysinfo.Usage{
		domain.ResourceCPU:    20,
		domain.ResourceMemory: 30,
		domain.ResourceDisk:   10,
	})
	resources, err := resource.NewManager(resource.Config{Source: source})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	b := &flakyBroker{Memory: broker.NewMemory()}
	tasks, err := taskqueue.New(taskqueue.Config{Broker: b})
	if err != nil {
		t.Fatalf("taskqueue.New: %v", err)
	}
	tasks.RegisterHandler("send_report", func(context.Context, []any, map[string]any) (any, error) {
		return "sent", nil
	})
	tasks.RegisterHandler("cleanup", func(context.Context, []any, map[string]any) (any, error) {
		return nil, nil
	})

	g := graph.NewMemory()
	workflows := workflow.NewStore(workflow.Config{Graph: g})
	executions, err := execution.NewTracker(execution.Config{Workflows: workflows, Graph: g})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	cfg := Config{
		Resources:  resources,
		Tasks:      tasks,
		Workflows:  workflows,
		Executions: executions,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{conductor: c, resources: resources, broker: b, source: source}
}

func linearDefinition(id string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   id,
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

func activeAllocations(t *testing.T, f *fixture) int {
	t.Helper()
	active, err := f.resources.ActiveAllocations(context.Background())
	if err != nil {
		t.Fatalf("ActiveAllocations: %v", err)
	}
	return len(active)
}

func TestCreateAndExecuteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.conductor.CreateAndExecuteTask(ctx, nil, domain.TaskRequest{TaskName: "send_report"})
	if err != nil {
		t.Fatalf("CreateAndExecuteTask: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected success, got %v", result)
	}
	if result["task_id"] == "" || result["allocation_id"] == "" {
		t.Errorf("result must carry task_id and allocation_id: %v", result)
	}
	if n := activeAllocations(t, f); n != 1 {
		t.Errorf("active allocations = %d, want 1", n)
	}
}

func TestTaskSubmitFailureRollsBackAllocation(t *testing.T) {
	f := newFixture(t)
	f.broker.failSubmit = true
	ctx := context.Background()

	result, err := f.conductor.CreateAndExecuteTask(ctx, nil, domain.TaskRequest{TaskName: "send_report"})
	if err != nil {
		t.Fatalf("CreateAndExecuteTask: %v", err)
	}
	if result.OK() {
		t.Fatal("expected failure envelope")
	}
	if result.ErrorCode() != CodeTaskError {
		t.Errorf("error_code = %s, want %s", result.ErrorCode(), CodeTaskError)
	}
	// The allocation made for this task must not leak.
	if n := activeAllocations(t, f); n != 0 {
		t.Errorf("active allocations = %d, want 0 after rollback", n)
	}
}

func TestTaskCallerErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.conductor.CreateAndExecuteTask(ctx, nil, domain.TaskRequest{}); !errors.Is(err, ErrEmptyTaskName) {
		t.Errorf("expected ErrEmptyTaskName, got %v", err)
	}

	// Unknown task name is a caller error too, and the allocation
	// made before submission is rolled back.
	_, err := f.conductor.CreateAndExecuteTask(ctx, nil, domain.TaskRequest{TaskName: "no_such_task"})
	if !errors.Is(err, taskqueue.ErrHandlerNotFound) {
		t.Errorf("expected ErrHandlerNotFound, got %v", err)
	}
	if n := activeAllocations(t, f); n != 0 {
		t.Errorf("active allocations = %d, want 0", n)
	}
}

func TestTaskShortfall(t *testing.T) {
	f := newFixture(t)
	f.source.Set(domain.ResourceCPU, 95)
	ctx := context.Background()

	result, err := f.conductor.CreateAndExecuteTask(ctx, nil, domain.TaskRequest{TaskName: "send_report"})
	if err != nil {
		t.Fatalf("CreateAndExecuteTask: %v", err)
	}
	if result.OK() || result.ErrorCode() != CodeResourceUnavailable {
		t.Fatalf("expected %s envelope, got %v", CodeResourceUnavailable, result)
	}
	if n := activeAllocations(t, f); n != 0 {
		t.Errorf("shortfall must not allocate, got %d active", n)
	}
}

func TestGuardDenialHasNoSideEffects(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Guard = denyAll{} })
	ctx := context.Background()

	result, err := f.conductor.CreateAndExecuteTask(ctx, &CallerContext{UserID: "u1"}, domain.TaskRequest{TaskName: "send_report"})
	if err != nil {
		t.Fatalf("CreateAndExecuteTask: %v", err)
	}
	if result.OK() || result.ErrorCode() != CodePermissionDenied {
		t.Fatalf("expected %s envelope, got %v", CodePermissionDenied, result)
	}
	if n := activeAllocations(t, f); n != 0 {
		t.Errorf("denied call must not allocate, got %d active", n)
	}
	if n, _ := f.broker.QueueLength(ctx, taskqueue.DefaultQueue); n != 0 {
		t.Errorf("denied call must not reach the broker, queue length = %d", n)
	}
}

func TestGetTaskStatusWithResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.conductor.CreateAndExecuteTask(ctx, nil, domain.TaskRequest{TaskName: "send_report"})
	if err != nil {
		t.Fatalf("CreateAndExecuteTask: %v", err)
	}
	taskID := created["task_id"].(string)
	f.broker.Complete(taskID, "done")

	result, err := f.conductor.GetTaskStatusWithResources(ctx, nil, taskID)
	if err != nil {
		t.Fatalf("GetTaskStatusWithResources: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected success, got %v", result)
	}
	task, ok := result["task"].(*domain.TaskResult)
	if !ok {
		t.Fatalf("result must carry the task result: %v", result)
	}
	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("task status = %s, want COMPLETED", task.Status)
	}
	alloc, ok := result["allocation"].(*domain.ResourceAllocation)
	if !ok {
		t.Fatalf("result must join the allocation: %v", result)
	}
	if alloc.Status != domain.AllocationAllocated {
		t.Errorf("allocation status = %s, want ALLOCATED", alloc.Status)
	}
}

func TestCreateAndExecuteWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.conductor.CreateAndExecuteWorkflow(ctx, nil, linearDefinition("wf1"), map[string]any{"who": "tester"})
	if err != nil {
		t.Fatalf("CreateAndExecuteWorkflow: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected success, got %v", result)
	}
	if result["status"] != string(domain.ExecutionStatusCompleted) {
		t.Errorf("status = %v, want COMPLETED", result["status"])
	}
	if n := activeAllocations(t, f); n != 1 {
		t.Errorf("active allocations = %d, want 1", n)
	}
}

func TestWorkflowCallerErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.conductor.CreateAndExecuteWorkflow(ctx, nil, nil, nil); !errors.Is(err, ErrNilDefinition) {
		t.Errorf("expected ErrNilDefinition, got %v", err)
	}

	invalid := &domain.WorkflowDefinition{ID: "wf2"} // no name, no nodes
	if _, err := f.conductor.CreateAndExecuteWorkflow(ctx, nil, invalid, nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
	if n := activeAllocations(t, f); n != 0 {
		t.Errorf("caller errors must not allocate, got %d active", n)
	}
}

func TestWorkflowFailureReleasesBudget(t *testing.T) {
	source := sysinfo.NewStatic(sysinfo.Usage{domain.ResourceCPU: 20})
	resources, err := resource.NewManager(resource.Config{Source: source})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	b := broker.NewMemory()
	tasks, err := taskqueue.New(taskqueue.Config{Broker: b})
	if err != nil {
		t.Fatalf("taskqueue.New: %v", err)
	}
	g := graph.NewMemory()
	workflows := workflow.NewStore(workflow.Config{Graph: g})
	executions, err := execution.NewTracker(execution.Config{
		Workflows: workflows,
		Graph:     g,
		Executor:  failingExecutor{},
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	c, err := New(Config{Resources: resources, Tasks: tasks, Workflows: workflows, Executions: executions})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	result, err := c.CreateAndExecuteWorkflow(ctx, nil, linearDefinition("wf3"), nil)
	if err != nil {
		t.Fatalf("CreateAndExecuteWorkflow: %v", err)
	}
	if result.OK() || result.ErrorCode() != CodeExecutionError {
		t.Fatalf("expected %s envelope, got %v", CodeExecutionError, result)
	}
	active, err := resources.ActiveAllocations(ctx)
	if err != nil {
		t.Fatalf("ActiveAllocations: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("failed workflow must release its budget, got %d active", len(active))
	}
}

func TestOrchestratePartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taskDefs := []domain.TaskRequest{
		{TaskName: "send_report"},
		{TaskName: "not_registered"},
		{TaskName: "cleanup"},
	}
	result, err := f.conductor.OrchestrateWorkflowWithTasks(ctx, nil, linearDefinition("wf4"), taskDefs, nil)
	if err != nil {
		t.Fatalf("OrchestrateWorkflowWithTasks: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected success, got %v", result)
	}
	if result["total_tasks"] != 3 || result["successful_tasks"] != 2 {
		t.Errorf("counters = %v/%v, want 3/2", result["total_tasks"], result["successful_tasks"])
	}

	items := result["tasks"].([]map[string]any)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	// One failed item does not abort the batch.
	if items[1]["status"] != "failed" || items[1]["error"] == "" {
		t.Errorf("failed item must carry status and error: %v", items[1])
	}
	if items[0]["status"] != "created" || items[2]["status"] != "created" {
		t.Errorf("surviving items must be created: %v", items)
	}

	// Each surviving item holds its own budget; the failed item's
	// allocation is rolled back. Expected active: workflow + 2 tasks.
	for _, i := range []int{0, 2} {
		if id, _ := items[i]["allocation_id"].(string); id == "" {
			t.Errorf("created item %d must carry allocation_id: %v", i, items[i])
		}
	}
	if _, ok := items[1]["allocation_id"]; ok {
		t.Errorf("failed item must not retain an allocation: %v", items[1])
	}
	if got := activeAllocations(t, f); got != 3 {
		t.Errorf("active allocations = %d, want 3 (workflow + 2 tasks)", got)
	}
}

func TestGetOrchestrationStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.conductor.CreateAndExecuteWorkflow(ctx, nil, linearDefinition("wf5"), nil)
	if err != nil {
		t.Fatalf("CreateAndExecuteWorkflow: %v", err)
	}
	execID := created["execution_id"].(string)

	result, err := f.conductor.GetOrchestrationStatus(ctx, nil, execID)
	if err != nil {
		t.Fatalf("GetOrchestrationStatus: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected success, got %v", result)
	}
	if result["status"] != string(domain.ExecutionStatusCompleted) {
		t.Errorf("status = %v, want COMPLETED", result["status"])
	}
	if result["allocation_status"] != string(domain.AllocationAllocated) {
		t.Errorf("allocation_status = %v, want ALLOCATED", result["allocation_status"])
	}
	if _, ok := result["system_resources"]; !ok {
		t.Error("status must include a fresh system snapshot")
	}

	missing, err := f.conductor.GetOrchestrationStatus(ctx, nil, "no-such-execution")
	if err != nil {
		t.Fatalf("GetOrchestrationStatus: %v", err)
	}
	if missing.OK() || missing.ErrorCode() != CodeNotFound {
		t.Errorf("expected %s envelope, got %v", CodeNotFound, missing)
	}
}

func TestHealthCheckAggregation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := f.conductor.HealthCheck(ctx)
	if result["healthy"] != true {
		t.Fatalf("expected healthy, got %v", result)
	}

	// Health is the conjunction of subsystem health.
	f.broker.failStats = true
	result = f.conductor.HealthCheck(ctx)
	if result["healthy"] != false {
		t.Fatalf("broker outage must flip aggregate health: %v", result)
	}
	components := result["components"].(map[string]any)
	if components["task_queue"] != "unhealthy" {
		t.Errorf("task_queue = %v, want unhealthy", components["task_queue"])
	}
	if components["resource_pool"] != "healthy" {
		t.Errorf("resource_pool = %v, want healthy", components["resource_pool"])
	}
}
