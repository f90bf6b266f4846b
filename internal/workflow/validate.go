package workflow

import (
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

// Validate проверяет структуру определения workflow.
//
// Ошибки (Valid=false): отсутствующий id, отсутствующее имя,
// пустой список узлов, рёбра на несуществующие узлы.
// Предупреждения (Valid остаётся true): нет START узла,
// нет END узла.
func Validate(def *domain.WorkflowDefinition) domain.ValidationResult {
	result := domain.ValidationResult{Valid: true}

	if def == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "workflow definition is nil")
		return result
	}

	if def.ID == "" {
		result.Errors = append(result.Errors, "workflow id is required")
	}
	if def.Name == "" {
		result.Errors = append(result.Errors, "workflow name is required")
	}
	if len(def.Nodes) == 0 {
		result.Errors = append(result.Errors, "workflow has no nodes")
	}

	for _, edge := range def.Edges {
		if def.NodeByID(edge.Source) == nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("edge %s references unknown source node %s", edge.ID, edge.Source))
		}
		if def.NodeByID(edge.Target) == nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("edge %s references unknown target node %s", edge.ID, edge.Target))
		}
	}

	if len(def.Nodes) > 0 {
		hasStart, hasEnd := false, false
		for _, node := range def.Nodes {
			switch node.Type {
			case domain.NodeTypeStart:
				hasStart = true
			case domain.NodeTypeEnd:
				hasEnd = true
			}
		}
		if !hasStart {
			result.Warnings = append(result.Warnings, "workflow has no START node")
		}
		if !hasEnd {
			result.Warnings = append(result.Warnings, "workflow has no END node")
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
