package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/telemetry"
	"github.com/shaiso/Conductor/internal/workflow"
)

// Config — конфигурация трекера выполнений.
type Config struct {
	// Workflows — хранилище определений. Обязательно.
	Workflows *workflow.Store

	// Graph — граф-хранилище для per-run проекций узлов.
	Graph graph.Store

	// Repo — хранилище выполнений. По умолчанию MemoryRepo.
	Repo Repo

	// Executor — исполнитель TASK узлов. По умолчанию PassThrough.
	Executor NodeExecutor

	// Async запускает продвижение по графу в отдельной горутине;
	// Execute тогда возвращается сразу после создания записи.
	Async bool

	Logger *slog.Logger
}

// Tracker владеет жизненным циклом выполнений workflow.
type Tracker struct {
	workflows *workflow.Store
	graph     graph.Store
	repo      Repo
	engine    *engine
	async     bool
	logger    *slog.Logger
}

// NewTracker создаёт трекер выполнений.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Workflows == nil {
		return nil, fmt.Errorf("execution: Workflows is required")
	}
	if cfg.Graph == nil {
		cfg.Graph = graph.NewMemory()
	}
	if cfg.Repo == nil {
		cfg.Repo = NewMemoryRepo()
	}
	if cfg.Executor == nil {
		cfg.Executor = PassThrough{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	logger := cfg.Logger.With("component", "execution_tracker")
	return &Tracker{
		workflows: cfg.Workflows,
		graph:     cfg.Graph,
		repo:      cfg.Repo,
		engine: &engine{
			repo:     cfg.Repo,
			graph:    cfg.Graph,
			executor: cfg.Executor,
			logger:   logger,
		},
		async:  cfg.Async,
		logger: logger,
	}, nil
}

// Execute запускает выполнение workflow.
//
// Создаёт запись в статусе RUNNING (статуса PENDING нет: запись
// появляется в момент диспетчеризации), проецирует per-run узлы
// графа в статусе PENDING с тегом id выполнения и продвигает
// выполнение по графу.
func (t *Tracker) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.WorkflowExecution, error) {
	def, err := t.workflows.Get(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", req.WorkflowID, err)
	}

	exec := domain.NewWorkflowExecution(req.WorkflowID, req.InputData)
	for k, v := range req.ExecutionOptions {
		exec.ExecutionData[k] = v
	}

	if err := t.repo.Save(ctx, exec); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}
	if err := t.projectNodes(ctx, def, exec.ExecutionID); err != nil {
		return nil, fmt.Errorf("project execution nodes: %w", err)
	}

	t.logger.Info("execution started",
		"execution_id", exec.ExecutionID,
		"workflow_id", req.WorkflowID,
	)

	if t.async {
		go func() {
			if err := t.engine.Run(context.WithoutCancel(ctx), def, exec.ExecutionID); err != nil {
				t.logger.Error("engine run failed",
					"execution_id", exec.ExecutionID, "error", err)
			}
		}()
		return exec, nil
	}

	if err := t.engine.Run(ctx, def, exec.ExecutionID); err != nil {
		return nil, err
	}
	return t.repo.Get(ctx, exec.ExecutionID)
}

// projectNodes создаёт per-run проекции узлов, все в статусе PENDING.
func (t *Tracker) projectNodes(ctx context.Context, def *domain.WorkflowDefinition, executionID string) error {
	for _, node := range def.Nodes {
		err := t.graph.UpsertNode(ctx, graph.Node{
			Key:   node.ID,
			Label: string(node.Type),
			Tag:   executionID,
			Props: map[string]any{
				"name":        node.Name,
				"workflow_id": def.ID,
				"status":      string(domain.NodeRunPending),
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Status возвращает статус выполнения.
func (t *Tracker) Status(ctx context.Context, executionID string) (domain.ExecutionStatus, error) {
	exec, err := t.repo.Get(ctx, executionID)
	if err != nil {
		return "", err
	}
	return exec.Status, nil
}

// Result возвращает полную запись выполнения.
func (t *Tracker) Result(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	return t.repo.Get(ctx, executionID)
}

// Pause приостанавливает RUNNING выполнение.
func (t *Tracker) Pause(ctx context.Context, executionID string) error {
	_, err := t.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
		if exec.IsFinished() {
			return ErrTerminal
		}
		if exec.Status != domain.ExecutionStatusRunning {
			return ErrNotRunning
		}
		exec.MarkPaused()
		return nil
	})
	if err != nil {
		return err
	}
	t.logger.Info("execution paused", "execution_id", executionID)
	return nil
}

// Resume возвращает PAUSED выполнение в RUNNING.
func (t *Tracker) Resume(ctx context.Context, executionID string) error {
	_, err := t.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
		if exec.IsFinished() {
			return ErrTerminal
		}
		if exec.Status != domain.ExecutionStatusPaused {
			return ErrNotPaused
		}
		exec.MarkRunning()
		return nil
	})
	if err != nil {
		return err
	}
	t.logger.Info("execution resumed", "execution_id", executionID)
	return nil
}

// Cancel переводит выполнение в CANCELLED и ставит completed_at.
// Повторная отмена идемпотентна: completed_at не перезаписывается.
func (t *Tracker) Cancel(ctx context.Context, executionID string) error {
	cancelled := false
	_, err := t.repo.Update(ctx, executionID, func(exec *domain.WorkflowExecution) error {
		if exec.Status == domain.ExecutionStatusCancelled {
			return nil // повторная отмена — no-op
		}
		if exec.IsFinished() {
			return ErrTerminal
		}
		exec.MarkCancelled()
		cancelled = true
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled {
		telemetry.ExecutionsTotal.WithLabelValues(string(domain.ExecutionStatusCancelled)).Inc()
		t.logger.Info("execution cancelled", "execution_id", executionID)
	}
	return nil
}

// Active возвращает выполнения в статусах RUNNING и PAUSED.
func (t *Tracker) Active(ctx context.Context) ([]*domain.WorkflowExecution, error) {
	all, err := t.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []*domain.WorkflowExecution
	for _, exec := range all {
		if !exec.IsFinished() {
			out = append(out, exec)
		}
	}
	return out, nil
}

// History возвращает последние limit выполнений workflow,
// от новых к старым.
func (t *Tracker) History(ctx context.Context, workflowID string, limit int) ([]*domain.WorkflowExecution, error) {
	execs, err := t.repo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	n := len(execs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*domain.WorkflowExecution, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, execs[i])
	}
	return out, nil
}

// NodeStates возвращает per-run проекции узлов выполнения.
func (t *Tracker) NodeStates(ctx context.Context, executionID string) ([]graph.Node, error) {
	return t.graph.QueryNodes(ctx, graph.NodeFilter{Tag: executionID})
}

// CountByWorkflow возвращает (total, successful, failed) для метрик
// workflow. Реализует workflow.ExecutionStats.
func (t *Tracker) CountByWorkflow(ctx context.Context, workflowID string) (int, int, int, error) {
	execs, err := t.repo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return 0, 0, 0, err
	}

	total := len(execs)
	successful, failed := 0, 0
	for _, exec := range execs {
		switch exec.Status {
		case domain.ExecutionStatusCompleted:
			successful++
		case domain.ExecutionStatusFailed:
			failed++
		}
	}
	return total, successful, failed, nil
}
