package execution

import (
	"context"
	"sort"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func gatewayDefinition(gw domain.GatewayType, edges []domain.WorkflowEdge) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   "wf-gw",
		Name: "Gateway",
		Nodes: []domain.WorkflowNode{
			{ID: "start", Type: domain.NodeTypeStart},
			{ID: "gw", Type: domain.NodeTypeGateway, GatewayType: gw},
			{ID: "a", Type: domain.NodeTypeTask},
			{ID: "b", Type: domain.NodeTypeTask},
			{ID: "end", Type: domain.NodeTypeEnd},
		},
		Edges: edges,
	}
}

func runGateway(t *testing.T, def *domain.WorkflowDefinition, input map[string]any) (*domain.WorkflowExecution, *recordingExecutor) {
	t.Helper()
	rec := &recordingExecutor{}
	tracker, _ := newTestTracker(t, def, rec)

	exec, err := tracker.Execute(context.Background(), domain.ExecutionRequest{
		WorkflowID: def.ID,
		InputData:  input,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return exec, rec
}

func TestExclusiveGatewayTakesFirstTrueEdge(t *testing.T) {
	def := gatewayDefinition(domain.GatewayExclusive, []domain.WorkflowEdge{
		{ID: "e1", Source: "start", Target: "gw"},
		{ID: "e2", Source: "gw", Target: "a", Condition: `eq .Data.route "a"`},
		{ID: "e3", Source: "gw", Target: "b", Condition: `eq .Data.route "b"`},
		{ID: "e4", Source: "a", Target: "end"},
		{ID: "e5", Source: "b", Target: "end"},
	})

	exec, rec := runGateway(t, def, map[string]any{"route": "b"})
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s (%s)", exec.Status, exec.Error)
	}
	if got := rec.seen(); len(got) != 1 || got[0] != "b" {
		t.Errorf("visited = %v, want only b", got)
	}
}

func TestExclusiveGatewayDefaultEdge(t *testing.T) {
	// An unconditioned edge acts as the default branch.
	def := gatewayDefinition(domain.GatewayExclusive, []domain.WorkflowEdge{
		{ID: "e1", Source: "start", Target: "gw"},
		{ID: "e2", Source: "gw", Target: "a", Condition: `.Data.fast`},
		{ID: "e3", Source: "gw", Target: "b"},
		{ID: "e4", Source: "a", Target: "end"},
		{ID: "e5", Source: "b", Target: "end"},
	})

	_, rec := runGateway(t, def, map[string]any{"fast": false})
	if got := rec.seen(); len(got) != 1 || got[0] != "b" {
		t.Errorf("visited = %v, want default branch b", got)
	}
}

func TestParallelGatewayActivatesAllEdges(t *testing.T) {
	def := gatewayDefinition(domain.GatewayParallel, []domain.WorkflowEdge{
		{ID: "e1", Source: "start", Target: "gw"},
		// Conditions on parallel edges are ignored: all branches run.
		{ID: "e2", Source: "gw", Target: "a", Condition: `.Data.never`},
		{ID: "e3", Source: "gw", Target: "b"},
		{ID: "e4", Source: "a", Target: "end"},
		{ID: "e5", Source: "b", Target: "end"},
	})

	exec, rec := runGateway(t, def, nil)
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s (%s)", exec.Status, exec.Error)
	}
	got := rec.seen()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("visited = %v, want both a and b", got)
	}
}

func TestParallelJoinWaitsForAllBranches(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   "wf-join",
		Name: "Join",
		Nodes: []domain.WorkflowNode{
			{ID: "start", Type: domain.NodeTypeStart},
			{ID: "split", Type: domain.NodeTypeGateway, GatewayType: domain.GatewayParallel},
			{ID: "a", Type: domain.NodeTypeTask},
			{ID: "b", Type: domain.NodeTypeTask},
			{ID: "join", Type: domain.NodeTypeGateway, GatewayType: domain.GatewayParallel},
			{ID: "after", Type: domain.NodeTypeTask},
			{ID: "end", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.WorkflowEdge{
			{ID: "e1", Source: "start", Target: "split"},
			{ID: "e2", Source: "split", Target: "a"},
			{ID: "e3", Source: "split", Target: "b"},
			{ID: "e4", Source: "a", Target: "join"},
			{ID: "e5", Source: "b", Target: "join"},
			{ID: "e6", Source: "join", Target: "after"},
			{ID: "e7", Source: "after", Target: "end"},
		},
	}

	exec, rec := runGateway(t, def, nil)
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s (%s)", exec.Status, exec.Error)
	}

	got := rec.seen()
	if len(got) != 3 {
		t.Fatalf("visited = %v, want a, b and one 'after'", got)
	}
	if got[2] != "after" {
		t.Errorf("join must release after both branches, visited = %v", got)
	}
}

func TestInclusiveGatewayEvaluatesIndependently(t *testing.T) {
	def := gatewayDefinition(domain.GatewayInclusive, []domain.WorkflowEdge{
		{ID: "e1", Source: "start", Target: "gw"},
		{ID: "e2", Source: "gw", Target: "a", Condition: `.Data.wantA`},
		{ID: "e3", Source: "gw", Target: "b", Condition: `.Data.wantB`},
		{ID: "e4", Source: "a", Target: "end"},
		{ID: "e5", Source: "b", Target: "end"},
	})

	_, rec := runGateway(t, def, map[string]any{"wantA": true, "wantB": true})
	got := rec.seen()
	sort.Strings(got)
	if len(got) != 2 {
		t.Errorf("visited = %v, want both branches", got)
	}

	_, rec = runGateway(t, def, map[string]any{"wantA": false, "wantB": true})
	if got := rec.seen(); len(got) != 1 || got[0] != "b" {
		t.Errorf("visited = %v, want only b", got)
	}
}

func TestBadConditionFailsExecution(t *testing.T) {
	def := gatewayDefinition(domain.GatewayExclusive, []domain.WorkflowEdge{
		{ID: "e1", Source: "start", Target: "gw"},
		{ID: "e2", Source: "gw", Target: "a", Condition: `{{broken`},
		{ID: "e3", Source: "a", Target: "end"},
	})

	exec, _ := runGateway(t, def, nil)
	if exec.Status != domain.ExecutionStatusFailed {
		t.Errorf("status = %s, want FAILED on unparsable condition", exec.Status)
	}
}

func TestEvalCondition(t *testing.T) {
	ok, err := EvalCondition("", nil)
	if err != nil || !ok {
		t.Errorf("empty condition = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = EvalCondition(".Data.approved", map[string]any{"approved": true})
	if err != nil || !ok {
		t.Errorf(".Data.approved = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = EvalCondition(`gt .Data.amount 100.0`, map[string]any{"amount": 250.0})
	if err != nil || !ok {
		t.Errorf("gt = (%v, %v), want (true, nil)", ok, err)
	}

	if _, err = EvalCondition("{{nope", nil); err == nil {
		t.Error("expected parse error for malformed condition")
	}
}
