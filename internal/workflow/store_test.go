package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
)

func demoDefinition(id string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   id,
		Name: "Demo",
		Nodes: []domain.WorkflowNode{
			{ID: "start", Name: "Start", Type: domain.NodeTypeStart},
			{ID: "work", Name: "Work", Type: domain.NodeTypeTask,
				Properties: map[string]any{"task_name": "send_report"}},
			{ID: "end", Name: "End", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.WorkflowEdge{
			{ID: "e1", Source: "start", Target: "work"},
			{ID: "e2", Source: "work", Target: "end"},
		},
	}
}

func TestCreateProjectsGraph(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemory()
	s := NewStore(Config{Graph: g})

	if err := s.Create(ctx, demoDefinition("wf1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	nodes, err := g.QueryNodes(ctx, graph.NodeFilter{Tag: "wf1"})
	if err != nil {
		t.Fatalf("QueryNodes: %v", err)
	}
	if len(nodes) != 3 {
		t.Errorf("projected nodes = %d, want 3", len(nodes))
	}

	tasks, _ := g.QueryNodes(ctx, graph.NodeFilter{Tag: "wf1", Label: "TASK"})
	if len(tasks) != 1 || tasks[0].Props["task_name"] != "send_report" {
		t.Errorf("TASK projection = %v, want task_name=send_report", tasks)
	}

	edges, _ := g.QueryEdges(ctx, graph.EdgeFilter{Tag: "wf1", Rel: graph.RelFlowsTo})
	if len(edges) != 2 {
		t.Errorf("projected edges = %d, want 2", len(edges))
	}
}

func TestDeleteCascadesProjection(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemory()
	s := NewStore(Config{Graph: g})

	s.Create(ctx, demoDefinition("wf1"))
	if err := s.Delete(ctx, "wf1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := s.Get(ctx, "wf1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
	nodes, _ := g.QueryNodes(ctx, graph.NodeFilter{Tag: "wf1"})
	if len(nodes) != 0 {
		t.Errorf("graph nodes after delete = %d, want 0", len(nodes))
	}
}

func TestUpdateReplacesProjection(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemory()
	s := NewStore(Config{Graph: g})

	s.Create(ctx, demoDefinition("wf1"))

	replacement := &domain.WorkflowDefinition{
		Name: "Smaller",
		Nodes: []domain.WorkflowNode{
			{ID: "only", Name: "Only", Type: domain.NodeTypeTask},
		},
	}
	if err := s.Update(ctx, "wf1", replacement); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, "wf1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Smaller" || len(got.Nodes) != 1 {
		t.Errorf("definition not replaced: %+v", got)
	}

	nodes, _ := g.QueryNodes(ctx, graph.NodeFilter{Tag: "wf1"})
	if len(nodes) != 1 {
		t.Errorf("projection after update = %d nodes, want 1", len(nodes))
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Config{})

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Create(ctx, demoDefinition(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	page, err := s.List(ctx, 2, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
		t.Errorf("page = %v, want [b c]", page)
	}
}

type staticStats struct{ total, ok, failed int }

func (s staticStats) CountByWorkflow(context.Context, string) (int, int, int, error) {
	return s.total, s.ok, s.failed, nil
}

func TestMetricsZeroGuard(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Config{Stats: staticStats{}})
	s.Create(ctx, demoDefinition("wf1"))

	m, err := s.Metrics(ctx, "wf1")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.SuccessRate != 0 {
		t.Errorf("success rate with zero executions = %v, want 0", m.SuccessRate)
	}
}

func TestMetricsSuccessRate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Config{Stats: staticStats{total: 4, ok: 3, failed: 1}})
	s.Create(ctx, demoDefinition("wf1"))

	m, err := s.Metrics(ctx, "wf1")
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75", m.SuccessRate)
	}
	if m.TotalExecutions != 4 || m.FailedExecutions != 1 {
		t.Errorf("counts = %+v", m)
	}
}
