package api

import (
	"log/slog"

	"github.com/shaiso/Conductor/internal/conductor"
	"github.com/shaiso/Conductor/internal/execution"
	"github.com/shaiso/Conductor/internal/resource"
	"github.com/shaiso/Conductor/internal/taskqueue"
	"github.com/shaiso/Conductor/internal/workflow"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	conductor  *conductor.Conductor
	resources  *resource.Manager
	tasks      *taskqueue.Queue
	workflows  *workflow.Store
	executions *execution.Tracker
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Conductor  *conductor.Conductor
	Resources  *resource.Manager
	Tasks      *taskqueue.Queue
	Workflows  *workflow.Store
	Executions *execution.Tracker
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		conductor:  cfg.Conductor,
		resources:  cfg.Resources,
		tasks:      cfg.Tasks,
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		logger:     cfg.Logger,
	}
}
