package workflow

import (
	"testing"

	"github.com/shaiso/Conductor/internal/domain"
)

func TestValidateEmptyDefinition(t *testing.T) {
	// Missing id, missing name and no nodes are three independent
	// errors; start/end warnings only apply to non-empty node lists.
	result := Validate(&domain.WorkflowDefinition{ID: "", Name: "", Nodes: nil})

	if result.Valid {
		t.Error("empty definition must be invalid")
	}
	if len(result.Errors) != 3 {
		t.Errorf("errors = %d (%v), want 3", len(result.Errors), result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %d (%v), want 0", len(result.Warnings), result.Warnings)
	}
}

func TestValidateTaskOnlyDefinition(t *testing.T) {
	result := Validate(&domain.WorkflowDefinition{
		ID:   "wf1",
		Name: "Demo",
		Nodes: []domain.WorkflowNode{
			{ID: "t1", Name: "Task", Type: domain.NodeTypeTask},
		},
	})

	if !result.Valid {
		t.Errorf("definition must be valid, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("warnings = %d (%v), want 2 (no START, no END)", len(result.Warnings), result.Warnings)
	}
}

func TestValidateDanglingEdge(t *testing.T) {
	result := Validate(&domain.WorkflowDefinition{
		ID:   "wf1",
		Name: "Demo",
		Nodes: []domain.WorkflowNode{
			{ID: "start", Type: domain.NodeTypeStart},
			{ID: "end", Type: domain.NodeTypeEnd},
		},
		Edges: []domain.WorkflowEdge{
			{ID: "e1", Source: "start", Target: "ghost"},
		},
	})

	if result.Valid {
		t.Error("dangling edge must invalidate the definition")
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want one dangling-target error", result.Errors)
	}
}
