package taskqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conductor/internal/broker"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// DefaultQueue — очередь по умолчанию.
const DefaultQueue = "default"

// QueueStatus — состояние одной очереди брокера.
type QueueStatus struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
}

// Config — конфигурация очереди задач.
type Config struct {
	// Broker — клиент брокера. Обязателен.
	Broker broker.Broker

	// Registry — реестр handler'ов. По умолчанию пустой.
	Registry *Registry

	// HistoryLimit — максимум записей локальной истории.
	HistoryLimit int

	Logger *slog.Logger
}

// Queue — абстракция очереди задач поверх внешнего брокера.
//
// Хранит локальную историю отправленных задач и транслирует
// нативные статусы брокера во внутренний TaskStatus.
type Queue struct {
	broker   broker.Broker
	registry *Registry
	logger   *slog.Logger

	mu           sync.RWMutex
	history      []domain.TaskInfo
	historyLimit int
}

// New создаёт очередь задач.
func New(cfg Config) (*Queue, error) {
	if cfg.Broker == nil {
		return nil, fmt.Errorf("taskqueue: Broker is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 1000
	}
	return &Queue{
		broker:       cfg.Broker,
		registry:     cfg.Registry,
		logger:       cfg.Logger.With("component", "task_queue"),
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// RegisterHandler регистрирует handler задачи.
func (q *Queue) RegisterHandler(name string, handler Handler) {
	q.registry.Register(name, handler)
}

// CreateTask отправляет задачу брокеру.
//
// Для task_name должен быть зарегистрирован handler, иначе
// задача отклоняется сразу (ErrHandlerNotFound) — это ошибка
// вызывающего, брокер не трогается.
func (q *Queue) CreateTask(ctx context.Context, req domain.TaskRequest) (string, error) {
	if req.TaskName == "" {
		return "", ErrEmptyTaskName
	}
	if _, ok := q.registry.Resolve(req.TaskName); !ok {
		return "", fmt.Errorf("%w: %s", ErrHandlerNotFound, req.TaskName)
	}
	if req.Queue == "" {
		req.Queue = DefaultQueue
	}
	if req.Priority == 0 {
		req.Priority = domain.TaskPriorityNormal
	}

	taskID, err := q.broker.Submit(ctx, req)
	if err != nil {
		return "", fmt.Errorf("submit task %s: %w", req.TaskName, err)
	}

	q.remember(domain.TaskInfo{
		TaskID:      taskID,
		TaskName:    req.TaskName,
		Queue:       req.Queue,
		Priority:    req.Priority,
		Status:      domain.TaskStatusPending,
		SubmittedAt: time.Now(),
		Metadata:    req.Metadata,
	})

	telemetry.TasksSubmitted.WithLabelValues(req.Queue).Inc()
	q.logger.Info("task submitted",
		"task_id", taskID,
		"task_name", req.TaskName,
		"queue", req.Queue,
		"priority", req.Priority.String(),
	)
	return taskID, nil
}

// GetTaskStatus возвращает внутренний статус задачи.
// Неизвестный брокеру статус транслируется в PENDING.
func (q *Queue) GetTaskStatus(ctx context.Context, taskID string) (domain.TaskStatus, error) {
	raw, err := q.broker.Status(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("broker status for %s: %w", taskID, err)
	}
	return domain.MapBrokerStatus(raw), nil
}

// GetTaskResult возвращает результат задачи с транслированным статусом.
func (q *Queue) GetTaskResult(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	raw, err := q.broker.Result(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("broker result for %s: %w", taskID, err)
	}

	result := &domain.TaskResult{
		TaskID:      raw.TaskID,
		Status:      domain.MapBrokerStatus(raw.Status),
		Result:      raw.Result,
		Error:       raw.Error,
		StartedAt:   raw.StartedAt,
		CompletedAt: raw.CompletedAt,
		RetryCount:  raw.RetryCount,
	}
	if info, ok := q.lookup(taskID); ok {
		result.Metadata = info.Metadata
	}
	return result, nil
}

// CancelTask отзывает задачу с принудительной остановкой.
// Best-effort: уже выполняющееся тело может не остановиться сразу.
func (q *Queue) CancelTask(ctx context.Context, taskID string) error {
	if err := q.broker.Revoke(ctx, taskID, true); err != nil {
		return fmt.Errorf("revoke task %s: %w", taskID, err)
	}
	q.updateStatus(taskID, domain.TaskStatusCancelled)
	q.logger.Info("task cancelled", "task_id", taskID)
	return nil
}

// ResubmitTask отправляет новую задачу с именем, очередью и
// приоритетом исходной. Это replay: новая задача с новым id,
// а не возобновление исходной попытки.
func (q *Queue) ResubmitTask(ctx context.Context, taskID string) (string, error) {
	info, ok := q.lookup(taskID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return q.CreateTask(ctx, domain.TaskRequest{
		TaskName: info.TaskName,
		Queue:    info.Queue,
		Priority: info.Priority,
		Metadata: info.Metadata,
	})
}

// ActiveTasks возвращает id задач в обработке.
func (q *Queue) ActiveTasks(ctx context.Context) ([]string, error) {
	return q.broker.ActiveTasks(ctx)
}

// History возвращает последние limit записей локальной истории,
// от новых к старым.
func (q *Queue) History(limit int) []domain.TaskInfo {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := len(q.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.TaskInfo, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, q.history[i])
	}
	return out
}

// GetQueueStatus возвращает глубину очереди и количество активных задач.
func (q *Queue) GetQueueStatus(ctx context.Context, queue string) (*QueueStatus, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	pending, err := q.broker.QueueLength(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("queue length for %s: %w", queue, err)
	}
	active, err := q.broker.ActiveTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("active tasks: %w", err)
	}
	return &QueueStatus{Queue: queue, Pending: pending, Active: len(active)}, nil
}

// PurgeQueue удаляет все ожидающие задачи очереди.
func (q *Queue) PurgeQueue(ctx context.Context, queue string) (int, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	n, err := q.broker.Purge(ctx, queue)
	if err != nil {
		return 0, fmt.Errorf("purge queue %s: %w", queue, err)
	}
	q.logger.Info("queue purged", "queue", queue, "removed", n)
	return n, nil
}

// WorkerStats возвращает статистику воркеров брокера.
func (q *Queue) WorkerStats(ctx context.Context) (map[string]broker.WorkerStat, error) {
	return q.broker.WorkerStats(ctx)
}

// Healthy возвращает true, если брокер отвечает.
func (q *Queue) Healthy(ctx context.Context) bool {
	_, err := q.broker.WorkerStats(ctx)
	return err == nil
}

func (q *Queue) remember(info domain.TaskInfo) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.history = append(q.history, info)
	if len(q.history) > q.historyLimit {
		q.history = q.history[len(q.history)-q.historyLimit:]
	}
}

func (q *Queue) lookup(taskID string) (domain.TaskInfo, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].TaskID == taskID {
			return q.history[i], true
		}
	}
	return domain.TaskInfo{}, false
}

func (q *Queue) updateStatus(taskID string, status domain.TaskStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].TaskID == taskID {
			q.history[i].Status = status
			return
		}
	}
}
