package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// NodeExecutor выполняет полезную работу TASK узла.
//
// Возвращённые outputs сливаются в данные выполнения и видны
// условиям последующих переходов.
type NodeExecutor interface {
	ExecuteNode(ctx context.Context, exec *domain.WorkflowExecution, node domain.WorkflowNode) (map[string]any, error)
}

// PassThrough — исполнитель по умолчанию: узлы проходятся
// без полезной работы.
type PassThrough struct{}

// ExecuteNode ничего не делает.
func (PassThrough) ExecuteNode(context.Context, *domain.WorkflowExecution, domain.WorkflowNode) (map[string]any, error) {
	return nil, nil
}

// Интервал опроса статуса для pause-гейта.
const pausePollInterval = 100 * time.Millisecond

// engine продвигает выполнение по графу workflow.
//
// Волновой worklist от стартовых узлов: узел выполняется один раз,
// активация исходящих рёбер определяется семантикой gateway.
// Между узлами проверяются пауза и отмена.
type engine struct {
	repo     Repo
	graph    graph.Store
	executor NodeExecutor
	logger   *slog.Logger
}

// Run продвигает выполнение до терминального статуса.
func (e *engine) Run(ctx context.Context, def *domain.WorkflowDefinition, executionID string) error {
	started := time.Now()

	entries := entryNodes(def)
	if len(entries) == 0 {
		e.fail(ctx, executionID, ErrNoEntryNodes.Error())
		return ErrNoEntryNodes
	}

	worklist := make([]string, 0, len(def.Nodes))
	for _, n := range entries {
		worklist = append(worklist, n.ID)
	}

	visited := make(map[string]bool, len(def.Nodes))
	arrivals := make(map[string]int)

	for len(worklist) > 0 {
		nodeID := worklist[0]
		worklist = worklist[1:]

		if visited[nodeID] {
			continue
		}

		proceed, err := e.gate(ctx, executionID)
		if err != nil {
			return err
		}
		if !proceed {
			return nil // выполнение отменено
		}

		node := def.NodeByID(nodeID)
		if node == nil {
			e.fail(ctx, executionID, fmt.Sprintf("node %s not in definition", nodeID))
			return nil
		}

		// PARALLEL join ждёт активации всех входящих рёбер.
		if isParallelJoin(def, node) && arrivals[nodeID] < len(def.IncomingEdges(nodeID)) {
			continue
		}

		visited[nodeID] = true

		exec, failed, err := e.executeNode(ctx, executionID, *node)
		if err != nil {
			return err
		}
		if failed {
			return nil // ошибка узла записана в выполнение
		}

		targets, err := e.activate(def, *node, exec.ExecutionData)
		if err != nil {
			e.fail(ctx, executionID, err.Error())
			return nil
		}
		for _, target := range targets {
			arrivals[target]++
			worklist = append(worklist, target)
		}
	}

	final, err := e.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
		if exec.Status == domain.ExecutionStatusRunning {
			exec.MarkCompleted()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if final.Status == domain.ExecutionStatusCompleted {
		telemetry.ExecutionsTotal.WithLabelValues(string(final.Status)).Inc()
		telemetry.ExecutionDuration.Observe(time.Since(started).Seconds())
		e.logger.Info("execution completed",
			"execution_id", executionID,
			"workflow_id", final.WorkflowID,
			"duration", time.Since(started),
		)
	}
	return nil
}

// gate блокирует на паузе и сообщает об отмене.
// Возвращает false, если выполнение больше не должно продвигаться.
func (e *engine) gate(ctx context.Context, executionID string) (bool, error) {
	for {
		exec, err := e.repo.Get(ctx, executionID)
		if err != nil {
			return false, err
		}
		switch exec.Status {
		case domain.ExecutionStatusRunning:
			return true, nil
		case domain.ExecutionStatusPaused:
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(pausePollInterval):
			}
		default:
			return false, nil
		}
	}
}

// executeNode выполняет один узел и обновляет его проекцию.
// Возвращает (выполнение, узел упал, инфраструктурная ошибка).
func (e *engine) executeNode(ctx context.Context, executionID string, node domain.WorkflowNode) (*domain.WorkflowExecution, bool, error) {
	e.setNodeStatus(ctx, executionID, node.ID, domain.NodeRunRunning)

	exec, err := e.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
		exec.CurrentNode = node.ID
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if node.Type == domain.NodeTypeTask {
		outputs, execErr := e.executor.ExecuteNode(ctx, exec, node)
		if execErr != nil {
			e.setNodeStatus(ctx, executionID, node.ID, domain.NodeRunFailed)
			e.fail(ctx, executionID, fmt.Sprintf("node %s: %v", node.ID, execErr))
			return exec, true, nil
		}
		if len(outputs) > 0 {
			exec, err = e.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
				if exec.ExecutionData == nil {
					exec.ExecutionData = make(map[string]any)
				}
				for k, v := range outputs {
					exec.ExecutionData[k] = v
				}
				return nil
			})
			if err != nil {
				return nil, false, err
			}
		}
	}

	e.setNodeStatus(ctx, executionID, node.ID, domain.NodeRunCompleted)
	return exec, false, nil
}

// activate возвращает целевые узлы по семантике исходящих рёбер.
func (e *engine) activate(def *domain.WorkflowDefinition, node domain.WorkflowNode, data map[string]any) ([]string, error) {
	edges := def.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return nil, nil
	}

	gateway := node.GatewayType
	if node.Type != domain.NodeTypeGateway {
		// Обычные узлы ведут себя как INCLUSIVE: каждое условие
		// вычисляется независимо.
		gateway = domain.GatewayInclusive
	}

	switch gateway {
	case domain.GatewayParallel:
		targets := make([]string, 0, len(edges))
		for _, edge := range edges {
			targets = append(targets, edge.Target)
		}
		return targets, nil

	case domain.GatewayExclusive:
		// Первое ребро с истинным условием; безусловное ребро —
		// ветка по умолчанию.
		for _, edge := range edges {
			ok, err := EvalCondition(edge.Condition, data)
			if err != nil {
				return nil, fmt.Errorf("edge %s: %w", edge.ID, err)
			}
			if ok {
				return []string{edge.Target}, nil
			}
		}
		return nil, nil

	default: // INCLUSIVE
		var targets []string
		for _, edge := range edges {
			ok, err := EvalCondition(edge.Condition, data)
			if err != nil {
				return nil, fmt.Errorf("edge %s: %w", edge.ID, err)
			}
			if ok {
				targets = append(targets, edge.Target)
			}
		}
		return targets, nil
	}
}

func (e *engine) fail(ctx context.Context, executionID, msg string) {
	_, err := e.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
		if !exec.IsFinished() {
			exec.MarkFailed(msg)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to record execution failure",
			"execution_id", executionID, "error", err)
		return
	}
	telemetry.ExecutionsTotal.WithLabelValues(string(domain.ExecutionStatusFailed)).Inc()
	e.logger.Warn("execution failed", "execution_id", executionID, "error", msg)
}

func (e *engine) setNodeStatus(ctx context.Context, executionID, nodeID string, status domain.NodeRunStatus) {
	err := e.graph.UpdateNodeProps(ctx, executionID, nodeID, map[string]any{
		"status": string(status),
	})
	if err != nil {
		e.logger.Warn("failed to update node projection",
			"execution_id", executionID, "node_id", nodeID, "error", err)
	}
}

func entryNodes(def *domain.WorkflowDefinition) []domain.WorkflowNode {
	if starts := def.StartNodes(); len(starts) > 0 {
		return starts
	}
	// Нет START узлов (warning при валидации) — входами считаются
	// узлы без входящих рёбер.
	var entries []domain.WorkflowNode
	for _, n := range def.Nodes {
		if len(def.IncomingEdges(n.ID)) == 0 {
			entries = append(entries, n)
		}
	}
	return entries
}

func isParallelJoin(def *domain.WorkflowDefinition, node *domain.WorkflowNode) bool {
	return node.Type == domain.NodeTypeGateway &&
		node.GatewayType == domain.GatewayParallel &&
		len(def.IncomingEdges(node.ID)) > 1
}
