package graph

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryQueryByLabelAndTag(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	nodes := []Node{
		{Key: "start", Label: "START", Tag: "wf1"},
		{Key: "work", Label: "TASK", Tag: "wf1", Props: map[string]any{"task_name": "send"}},
		{Key: "work", Label: "TASK", Tag: "wf2"},
	}
	for _, n := range nodes {
		if err := m.UpsertNode(ctx, n); err != nil {
			t.Fatalf("UpsertNode: %v", err)
		}
	}

	got, err := m.QueryNodes(ctx, NodeFilter{Tag: "wf1"})
	if err != nil {
		t.Fatalf("QueryNodes: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("nodes in wf1 = %d, want 2", len(got))
	}

	got, _ = m.QueryNodes(ctx, NodeFilter{Tag: "wf1", Label: "TASK"})
	if len(got) != 1 || got[0].Key != "work" {
		t.Errorf("TASK nodes in wf1 = %v, want single 'work'", got)
	}

	got, _ = m.QueryNodes(ctx, NodeFilter{Props: map[string]any{"task_name": "send"}})
	if len(got) != 1 {
		t.Errorf("property filter matched %d nodes, want 1", len(got))
	}
}

func TestMemoryEdgesAndCascadeDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.UpsertNode(ctx, Node{Key: "a", Label: "START", Tag: "wf1"})
	m.UpsertNode(ctx, Node{Key: "b", Label: "END", Tag: "wf1"})
	m.UpsertNode(ctx, Node{Key: "a", Label: "START", Tag: "wf2"})
	m.UpsertEdge(ctx, Edge{Key: "e1", SourceKey: "a", TargetKey: "b", Rel: RelFlowsTo, Tag: "wf1"})

	edges, err := m.QueryEdges(ctx, EdgeFilter{Tag: "wf1", SourceKey: "a"})
	if err != nil {
		t.Fatalf("QueryEdges: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetKey != "b" {
		t.Fatalf("edges from a = %v, want one edge to b", edges)
	}

	if err := m.DeleteByTag(ctx, "wf1"); err != nil {
		t.Fatalf("DeleteByTag: %v", err)
	}

	nodes, _ := m.QueryNodes(ctx, NodeFilter{Tag: "wf1"})
	if len(nodes) != 0 {
		t.Errorf("wf1 nodes after delete = %d, want 0", len(nodes))
	}
	edges, _ = m.QueryEdges(ctx, EdgeFilter{Tag: "wf1"})
	if len(edges) != 0 {
		t.Errorf("wf1 edges after delete = %d, want 0", len(edges))
	}
	// Other namespaces are untouched.
	nodes, _ = m.QueryNodes(ctx, NodeFilter{Tag: "wf2"})
	if len(nodes) != 1 {
		t.Errorf("wf2 nodes after wf1 delete = %d, want 1", len(nodes))
	}
}

func TestMemoryUpdateNodeProps(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.UpsertNode(ctx, Node{Key: "n", Label: "TASK", Tag: "run1",
		Props: map[string]any{"status": "PENDING", "order": 1}})

	err := m.UpdateNodeProps(ctx, "run1", "n", map[string]any{"status": "RUNNING"})
	if err != nil {
		t.Fatalf("UpdateNodeProps: %v", err)
	}

	got, _ := m.QueryNodes(ctx, NodeFilter{Tag: "run1"})
	if len(got) != 1 {
		t.Fatalf("nodes = %d, want 1", len(got))
	}
	if got[0].Props["status"] != "RUNNING" {
		t.Errorf("status = %v, want RUNNING", got[0].Props["status"])
	}
	if got[0].Props["order"] != 1 {
		t.Errorf("merge must keep untouched props, order = %v", got[0].Props["order"])
	}

	err = m.UpdateNodeProps(ctx, "run1", "missing", map[string]any{"x": 1})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}
