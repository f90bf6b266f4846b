package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/taskqueue"
)

// NodeExecutor выполняет TASK узлы workflow через реестр handler'ов.
//
// Имя handler'а берётся из свойства узла "task_name"; аргументы —
// из свойств "args" и "kwargs". Узел без task_name проходится
// без полезной работы.
type NodeExecutor struct {
	registry *taskqueue.Registry
}

// NewNodeExecutor создаёт исполнитель узлов поверх реестра.
func NewNodeExecutor(registry *taskqueue.Registry) *NodeExecutor {
	return &NodeExecutor{registry: registry}
}

// ExecuteNode выполняет handler узла. Результат публикуется в данные
// выполнения под ключом "node:<id>".
func (e *NodeExecutor) ExecuteNode(ctx context.Context, exec *domain.WorkflowExecution, node domain.WorkflowNode) (map[string]any, error) {
	taskName, _ := node.Properties["task_name"].(string)
	if taskName == "" {
		return nil, nil
	}

	handler, ok := e.registry.Resolve(taskName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", taskqueue.ErrHandlerNotFound, taskName)
	}

	args, _ := node.Properties["args"].([]any)
	kwargs, _ := node.Properties["kwargs"].(map[string]any)

	result, err := handler(ctx, args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskName, err)
	}
	if result == nil {
		return nil, nil
	}
	return map[string]any{"node:" + node.ID: result}, nil
}
