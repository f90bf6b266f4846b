package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/execution"
	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/taskqueue"
	"github.com/shaiso/Conductor/internal/telemetry"
	"github.com/shaiso/Conductor/internal/workflow"
)

const serviceName = "conductor"

// Бюджеты ресурсов под единицы работы.
//
// Процентные спецификации участвуют в headroom-admission,
// байтовые учитываются в выделении как advisory.
var (
	taskBudget = domain.ResourceRequest{
		Specs: []domain.ResourceSpec{
			{ResourceType: domain.ResourceCPU, Amount: 10, Unit: "percent"},
			{ResourceType: domain.ResourceMemory, Amount: 100, Unit: "MB"},
		},
		DurationSec: 300,
	}

	workflowBudget = domain.ResourceRequest{
		Specs: []domain.ResourceSpec{
			{ResourceType: domain.ResourceCPU, Amount: 20, Unit: "percent"},
			{ResourceType: domain.ResourceMemory, Amount: 200, Unit: "MB"},
			{ResourceType: domain.ResourceDisk, Amount: 50, Unit: "MB"},
		},
		DurationSec: 3600,
	}
)

// Config — конфигурация оркестратора.
type Config struct {
	Resources  *resource.Manager
	Tasks      *taskqueue.Queue
	Workflows  *workflow.Store
	Executions *execution.Tracker

	// Guard — проверка прав/tenant. По умолчанию AllowAll.
	Guard Guard

	// Sink — приёмник событий операций. По умолчанию Noop.
	Sink telemetry.Sink

	Logger *slog.Logger
}

// Conductor — композиционный сервис оркестрации.
//
// Единственная граница swallow-and-classify: нижние подсистемы
// пробрасывают инфраструктурные ошибки наверх, оркестратор ловит
// их, отправляет в sink с тегами {operation, service} и возвращает
// envelope {error, error_code}. Ошибки вызывающего (пустое имя
// задачи, nil определение) возвращаются немедленно как error.
type Conductor struct {
	resources  *resource.Manager
	tasks      *taskqueue.Queue
	workflows  *workflow.Store
	executions *execution.Tracker
	guard      Guard
	sink       telemetry.Sink
	logger     *slog.Logger
}

// New создаёт оркестратор. Опциональные способности (guard, sink)
// разрешаются здесь один раз; сервис полностью работоспособен
// без них.
func New(cfg Config) (*Conductor, error) {
	if cfg.Resources == nil || cfg.Tasks == nil || cfg.Workflows == nil || cfg.Executions == nil {
		return nil, errors.New("conductor: Resources, Tasks, Workflows and Executions are required")
	}
	if cfg.Guard == nil {
		cfg.Guard = AllowAll{}
	}
	if cfg.Sink == nil {
		cfg.Sink = telemetry.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Conductor{
		resources:  cfg.Resources,
		tasks:      cfg.Tasks,
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		guard:      cfg.Guard,
		sink:       cfg.Sink,
		logger:     cfg.Logger.With("component", "conductor"),
	}, nil
}

// authorize выполняет проверку guard. Возвращает envelope отказа
// или nil, если вызов разрешён.
func (c *Conductor) authorize(ctx context.Context, caller *CallerContext, res, action string) Result {
	allowed, err := c.guard.Authorize(ctx, caller, res, action)
	if err != nil {
		c.record(ctx, action, false, map[string]any{"error": err.Error()})
		return Failure(fmt.Sprintf("authorization check failed: %v", err), CodeInternalError)
	}
	if !allowed {
		return Failure("permission denied", CodePermissionDenied)
	}
	return nil
}

// record отправляет событие операции в sink.
func (c *Conductor) record(ctx context.Context, operation string, success bool, fields map[string]any) {
	c.sink.Record(ctx, telemetry.Event{
		Operation: operation,
		Service:   serviceName,
		Success:   success,
		Fields:    fields,
		Timestamp: time.Now(),
	})
}

// CreateAndExecuteTask выделяет бюджет ресурсов и отправляет задачу.
//
// Протокол: allocate → submit → rollback-on-failure. При провале
// отправки выделение освобождается до возврата — выделения не
// утекают. Id выделения едет в метаданных задачи.
func (c *Conductor) CreateAndExecuteTask(ctx context.Context, caller *CallerContext, req domain.TaskRequest) (Result, error) {
	const op = "create_and_execute_task"

	if req.TaskName == "" {
		return nil, ErrEmptyTaskName
	}
	if denied := c.authorize(ctx, caller, "task", op); denied != nil {
		return denied, nil
	}

	alloc, err := c.resources.AllocateResources(ctx, taskBudget)
	if err != nil {
		var shortfall *resource.ShortfallError
		if errors.As(err, &shortfall) {
			c.record(ctx, op, false, map[string]any{"reason": "shortfall"})
			return Failure(shortfall.Error(), CodeResourceUnavailable), nil
		}
		c.record(ctx, op, false, map[string]any{"error": err.Error()})
		return Failure(fmt.Sprintf("resource allocation failed: %v", err), CodeInternalError), nil
	}

	if req.Metadata == nil {
		req.Metadata = make(map[string]any)
	}
	req.Metadata["allocation_id"] = alloc.AllocationID

	taskID, err := c.tasks.CreateTask(ctx, req)
	if err != nil {
		// Откат: выделение этой операции освобождается немедленно.
		if dErr := c.resources.DeallocateResources(ctx, alloc.AllocationID); dErr != nil {
			c.logger.Error("rollback deallocate failed",
				"allocation_id", alloc.AllocationID, "error", dErr)
		}

		if errors.Is(err, taskqueue.ErrHandlerNotFound) || errors.Is(err, taskqueue.ErrEmptyTaskName) {
			return nil, err
		}
		c.record(ctx, op, false, map[string]any{"error": err.Error(), "task_name": req.TaskName})
		return Failure(fmt.Sprintf("task submission failed: %v", err), CodeTaskError), nil
	}

	c.record(ctx, op, true, map[string]any{"task_id": taskID})
	return Success(map[string]any{
		"task_id":       taskID,
		"task_name":     req.TaskName,
		"allocation_id": alloc.AllocationID,
	}), nil
}

// GetTaskStatusWithResources объединяет результат задачи со статусом
// связанного выделения ресурсов.
func (c *Conductor) GetTaskStatusWithResources(ctx context.Context, caller *CallerContext, taskID string) (Result, error) {
	const op = "get_task_status_with_resources"

	if denied := c.authorize(ctx, caller, "task", op); denied != nil {
		return denied, nil
	}

	result, err := c.tasks.GetTaskResult(ctx, taskID)
	if err != nil {
		c.record(ctx, op, false, map[string]any{"error": err.Error(), "task_id": taskID})
		return Failure(fmt.Sprintf("task lookup failed: %v", err), CodeNotFound), nil
	}

	fields := map[string]any{
		"task_id": taskID,
		"task":    result,
	}
	if allocID, ok := result.Metadata["allocation_id"].(string); ok {
		alloc, aErr := c.resources.GetAllocation(ctx, allocID)
		if aErr != nil {
			fields["allocation"] = map[string]any{"allocation_id": allocID, "error": aErr.Error()}
		} else {
			fields["allocation"] = alloc
		}
	}
	return Success(fields), nil
}

// CreateAndExecuteWorkflow создаёт workflow, выделяет бюджет
// и запускает выполнение. При провале запуска выделение
// освобождается; id выделения едет в данных выполнения.
func (c *Conductor) CreateAndExecuteWorkflow(ctx context.Context, caller *CallerContext, def *domain.WorkflowDefinition, inputData map[string]any) (Result, error) {
	const op = "create_and_execute_workflow"

	if def == nil {
		return nil, ErrNilDefinition
	}
	if v := workflow.Validate(def); !v.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, v.Errors)
	}
	if denied := c.authorize(ctx, caller, "workflow", op); denied != nil {
		return denied, nil
	}

	if err := c.workflows.Create(ctx, def); err != nil && !errors.Is(err, workflow.ErrExists) {
		c.record(ctx, op, false, map[string]any{"error": err.Error(), "workflow_id": def.ID})
		return Failure(fmt.Sprintf("workflow creation failed: %v", err), CodeWorkflowError), nil
	}

	alloc, err := c.resources.AllocateResources(ctx, workflowBudget)
	if err != nil {
		var shortfall *resource.ShortfallError
		if errors.As(err, &shortfall) {
			c.record(ctx, op, false, map[string]any{"reason": "shortfall"})
			return Failure(shortfall.Error(), CodeResourceUnavailable), nil
		}
		c.record(ctx, op, false, map[string]any{"error": err.Error()})
		return Failure(fmt.Sprintf("resource allocation failed: %v", err), CodeInternalError), nil
	}

	exec, err := c.executions.Execute(ctx, domain.ExecutionRequest{
		WorkflowID:       def.ID,
		InputData:        inputData,
		ExecutionOptions: map[string]any{"allocation_id": alloc.AllocationID},
	})
	if err != nil || exec.Status == domain.ExecutionStatusFailed {
		if dErr := c.resources.DeallocateResources(ctx, alloc.AllocationID); dErr != nil {
			c.logger.Error("rollback deallocate failed",
				"allocation_id", alloc.AllocationID, "error", dErr)
		}

		msg := "workflow execution failed"
		if err != nil {
			msg = fmt.Sprintf("workflow execution failed: %v", err)
		} else if exec.Error != "" {
			msg = fmt.Sprintf("workflow execution failed: %s", exec.Error)
		}
		c.record(ctx, op, false, map[string]any{"workflow_id": def.ID, "error": msg})
		return Failure(msg, CodeExecutionError), nil
	}

	c.record(ctx, op, true, map[string]any{
		"workflow_id":  def.ID,
		"execution_id": exec.ExecutionID,
	})
	return Success(map[string]any{
		"workflow_id":   def.ID,
		"execution_id":  exec.ExecutionID,
		"status":        string(exec.Status),
		"allocation_id": alloc.AllocationID,
	}), nil
}

// OrchestrateWorkflowWithTasks запускает workflow и последовательно
// создаёт вспомогательные задачи, каждую под собственным бюджетом
// ресурсов (протокол allocate → submit → rollback-on-failure, как
// в CreateAndExecuteTask).
//
// Частичные провалы не прерывают пакет: упавший элемент
// записывается со статусом "failed", его выделение освобождается,
// остальные элементы обрабатываются дальше.
func (c *Conductor) OrchestrateWorkflowWithTasks(ctx context.Context, caller *CallerContext, def *domain.WorkflowDefinition, taskDefs []domain.TaskRequest, inputData map[string]any) (Result, error) {
	const op = "orchestrate_workflow_with_tasks"

	wfResult, err := c.CreateAndExecuteWorkflow(ctx, caller, def, inputData)
	if err != nil {
		return nil, err
	}
	if !wfResult.OK() {
		return wfResult, nil
	}

	items := make([]map[string]any, 0, len(taskDefs))
	successful := 0
	for _, taskDef := range taskDefs {
		alloc, aErr := c.resources.AllocateResources(ctx, taskBudget)
		if aErr != nil {
			items = append(items, map[string]any{
				"task_name": taskDef.TaskName,
				"status":    "failed",
				"error":     aErr.Error(),
			})
			continue
		}

		if taskDef.Metadata == nil {
			taskDef.Metadata = make(map[string]any)
		}
		taskDef.Metadata["allocation_id"] = alloc.AllocationID

		taskID, tErr := c.tasks.CreateTask(ctx, taskDef)
		if tErr != nil {
			if dErr := c.resources.DeallocateResources(ctx, alloc.AllocationID); dErr != nil {
				c.logger.Error("rollback deallocate failed",
					"allocation_id", alloc.AllocationID, "error", dErr)
			}
			items = append(items, map[string]any{
				"task_name": taskDef.TaskName,
				"status":    "failed",
				"error":     tErr.Error(),
			})
			continue
		}
		successful++
		items = append(items, map[string]any{
			"task_name":     taskDef.TaskName,
			"status":        "created",
			"task_id":       taskID,
			"allocation_id": alloc.AllocationID,
		})
	}

	c.record(ctx, op, true, map[string]any{
		"execution_id":     wfResult["execution_id"],
		"total_tasks":      len(taskDefs),
		"successful_tasks": successful,
	})
	return Success(map[string]any{
		"workflow_id":      wfResult["workflow_id"],
		"execution_id":     wfResult["execution_id"],
		"allocation_id":    wfResult["allocation_id"],
		"total_tasks":      len(taskDefs),
		"successful_tasks": successful,
		"tasks":            items,
	}), nil
}

// GetOrchestrationStatus собирает сводный статус: выполнение
// workflow, активные задачи, статус связанного выделения и свежий
// снимок системных ресурсов.
func (c *Conductor) GetOrchestrationStatus(ctx context.Context, caller *CallerContext, executionID string) (Result, error) {
	const op = "get_orchestration_status"

	if denied := c.authorize(ctx, caller, "execution", op); denied != nil {
		return denied, nil
	}

	exec, err := c.executions.Result(ctx, executionID)
	if err != nil {
		c.record(ctx, op, false, map[string]any{"error": err.Error(), "execution_id": executionID})
		return Failure(fmt.Sprintf("execution lookup failed: %v", err), CodeNotFound), nil
	}

	fields := map[string]any{
		"execution_id": executionID,
		"workflow_id":  exec.WorkflowID,
		"status":       string(exec.Status),
		"current_node": exec.CurrentNode,
	}

	if active, aErr := c.tasks.ActiveTasks(ctx); aErr == nil {
		fields["active_tasks"] = len(active)
	} else {
		fields["active_tasks_error"] = aErr.Error()
	}

	if allocID, ok := exec.ExecutionData["allocation_id"].(string); ok {
		if alloc, gErr := c.resources.GetAllocation(ctx, allocID); gErr == nil {
			fields["allocation_status"] = string(alloc.Status)
		}
	}

	if snap, sErr := c.resources.GetSystemResources(ctx); sErr == nil {
		fields["system_resources"] = snap
	} else {
		fields["system_resources_error"] = sErr.Error()
	}

	return Success(fields), nil
}

// GetServiceStatus возвращает состояние подсистем по отдельности.
func (c *Conductor) GetServiceStatus(ctx context.Context) Result {
	taskHealthy := c.tasks.Healthy(ctx)
	_, resErr := c.resources.GetSystemResources(ctx)

	return Success(map[string]any{
		"service": serviceName,
		"components": map[string]any{
			"task_queue":    componentHealth(taskHealthy),
			"resource_pool": componentHealth(resErr == nil),
		},
	})
}

// HealthCheck возвращает агрегированное здоровье сервиса:
// логическое И здоровья очереди задач и пула ресурсов.
func (c *Conductor) HealthCheck(ctx context.Context) Result {
	taskHealthy := c.tasks.Healthy(ctx)
	_, resErr := c.resources.GetSystemResources(ctx)
	resourceHealthy := resErr == nil

	return Success(map[string]any{
		"healthy": taskHealthy && resourceHealthy,
		"components": map[string]any{
			"task_queue":    componentHealth(taskHealthy),
			"resource_pool": componentHealth(resourceHealthy),
		},
	})
}

func componentHealth(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}
