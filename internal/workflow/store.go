package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
)

// ExecutionStats — поставщик счётчиков выполнений для метрик
// workflow. Реализуется трекером выполнений.
type ExecutionStats interface {
	// CountByWorkflow возвращает (total, successful, failed).
	CountByWorkflow(ctx context.Context, workflowID string) (int, int, int, error)
}

// Config — конфигурация хранилища workflow.
type Config struct {
	// Repo — хранилище определений. По умолчанию MemoryRepo.
	Repo Repo

	// Graph — граф-хранилище для проекций структуры.
	Graph graph.Store

	// Stats — счётчики выполнений для метрик. Допустим nil:
	// метрики тогда возвращают нули.
	Stats ExecutionStats

	Logger *slog.Logger
}

// Store хранит определения workflow и проецирует их структуру
// в граф-хранилище.
type Store struct {
	repo   Repo
	graph  graph.Store
	stats  ExecutionStats
	logger *slog.Logger
}

// NewStore создаёт хранилище workflow.
func NewStore(cfg Config) *Store {
	if cfg.Repo == nil {
		cfg.Repo = NewMemoryRepo()
	}
	if cfg.Graph == nil {
		cfg.Graph = graph.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		repo:   cfg.Repo,
		graph:  cfg.Graph,
		stats:  cfg.Stats,
		logger: cfg.Logger.With("component", "workflow_store"),
	}
}

// Create сохраняет определение и проецирует его в граф:
// каждый узел — граф-узел с меткой типа, каждое ребро — связь
// FLOWS_TO. Всё тегируется id workflow.
func (s *Store) Create(ctx context.Context, def *domain.WorkflowDefinition) error {
	if def == nil {
		return ErrNilDefinition
	}
	if err := s.repo.Save(ctx, def); err != nil {
		return err
	}
	if err := s.project(ctx, def); err != nil {
		return fmt.Errorf("project workflow %s: %w", def.ID, err)
	}

	s.logger.Info("workflow created", "workflow_id", def.ID, "nodes", len(def.Nodes))
	return nil
}

// Update целиком заменяет определение и его граф-проекцию.
func (s *Store) Update(ctx context.Context, id string, def *domain.WorkflowDefinition) error {
	if def == nil {
		return ErrNilDefinition
	}
	def.ID = id
	if err := s.repo.Replace(ctx, def); err != nil {
		return err
	}

	if err := s.graph.DeleteByTag(ctx, id); err != nil {
		return fmt.Errorf("clear workflow projection %s: %w", id, err)
	}
	if err := s.project(ctx, def); err != nil {
		return fmt.Errorf("project workflow %s: %w", id, err)
	}

	s.logger.Info("workflow updated", "workflow_id", id)
	return nil
}

// Delete удаляет определение и каскадно — все граф-узлы
// и рёбра с его тегом.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.graph.DeleteByTag(ctx, id); err != nil {
		return fmt.Errorf("delete workflow projection %s: %w", id, err)
	}

	s.logger.Info("workflow deleted", "workflow_id", id)
	return nil
}

// Get возвращает определение по id.
func (s *Store) Get(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	return s.repo.Get(ctx, id)
}

// List возвращает страницу определений.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*domain.WorkflowDefinition, error) {
	return s.repo.List(ctx, limit, offset)
}

// Metrics возвращает счётчики выполнений workflow.
// success_rate равен 0 при нуле выполнений.
func (s *Store) Metrics(ctx context.Context, id string) (*domain.WorkflowMetrics, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	m := &domain.WorkflowMetrics{WorkflowID: id}
	if s.stats == nil {
		return m, nil
	}

	total, successful, failed, err := s.stats.CountByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count executions for %s: %w", id, err)
	}
	m.TotalExecutions = total
	m.SuccessfulExecutions = successful
	m.FailedExecutions = failed
	if total > 0 {
		m.SuccessRate = float64(successful) / float64(total) * 100
	}
	return m, nil
}

func (s *Store) project(ctx context.Context, def *domain.WorkflowDefinition) error {
	for _, node := range def.Nodes {
		props := map[string]any{"name": node.Name}
		if node.Type == domain.NodeTypeGateway {
			props["gateway_type"] = string(node.GatewayType)
		}
		for k, v := range node.Properties {
			props[k] = v
		}
		err := s.graph.UpsertNode(ctx, graph.Node{
			Key:   node.ID,
			Label: string(node.Type),
			Tag:   def.ID,
			Props: props,
		})
		if err != nil {
			return err
		}
	}

	for _, edge := range def.Edges {
		props := map[string]any{}
		if edge.Condition != "" {
			props["condition"] = edge.Condition
		}
		for k, v := range edge.Properties {
			props[k] = v
		}
		err := s.graph.UpsertEdge(ctx, graph.Edge{
			Key:       edge.ID,
			SourceKey: edge.Source,
			TargetKey: edge.Target,
			Rel:       graph.RelFlowsTo,
			Tag:       def.ID,
			Props:     props,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
