package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/domain"
)

type memoryTask struct {
	req    domain.TaskRequest
	result RawResult
	eta    *time.Time
}

// Memory — брокер в памяти процесса для тестов и разработки.
//
// Submit ставит задачу в статус PENDING; продвижение статусов
// выполняют тесты через SetStatus/Complete/Fail, имитируя
// внешний пул воркеров.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*memoryTask
}

// NewMemory создаёт пустой брокер.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*memoryTask)}
}

// Submit регистрирует задачу в статусе PENDING.
func (b *Memory) Submit(_ context.Context, req domain.TaskRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	eta := req.ETA
	if eta == nil && req.Countdown > 0 {
		t := time.Now().Add(time.Duration(req.Countdown) * time.Second)
		eta = &t
	}
	b.tasks[id] = &memoryTask{
		req: req,
		result: RawResult{
			TaskID: id,
			Status: domain.BrokerStatusPending,
		},
		eta: eta,
	}
	return id, nil
}

// Status возвращает нативный статус задачи.
func (b *Memory) Status(_ context.Context, taskID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	task, ok := b.tasks[taskID]
	if !ok {
		return "", ErrTaskNotFound
	}
	return task.result.Status, nil
}

// Result возвращает копию результата задачи.
func (b *Memory) Result(_ context.Context, taskID string) (*RawResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	task, ok := b.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := task.result
	return &cp, nil
}

// Revoke переводит задачу в REVOKED.
func (b *Memory) Revoke(_ context.Context, taskID string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.result.Status = domain.BrokerStatusRevoked
	now := time.Now()
	task.result.CompletedAt = &now
	return nil
}

// ActiveTasks возвращает задачи в статусе STARTED.
func (b *Memory) ActiveTasks(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for id, task := range b.tasks {
		if task.result.Status == domain.BrokerStatusStarted {
			out = append(out, id)
		}
	}
	return out, nil
}

// ScheduledTasks возвращает PENDING задачи с ETA в будущем.
func (b *Memory) ScheduledTasks(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now()
	var out []string
	for id, task := range b.tasks {
		if task.result.Status == domain.BrokerStatusPending &&
			task.eta != nil && task.eta.After(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

// WorkerStats возвращает единственного виртуального воркера.
func (b *Memory) WorkerStats(_ context.Context) (map[string]WorkerStat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	active, processed := 0, 0
	for _, task := range b.tasks {
		switch task.result.Status {
		case domain.BrokerStatusStarted:
			active++
		case domain.BrokerStatusSuccess, domain.BrokerStatusFailure:
			processed++
		}
	}
	return map[string]WorkerStat{
		"memory": {Name: "memory", Active: active, Processed: processed, SeenAt: time.Now()},
	}, nil
}

// QueueLength возвращает количество PENDING задач очереди.
func (b *Memory) QueueLength(_ context.Context, queue string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, task := range b.tasks {
		if task.req.Queue == queue && task.result.Status == domain.BrokerStatusPending {
			n++
		}
	}
	return n, nil
}

// Purge удаляет PENDING задачи очереди.
func (b *Memory) Purge(_ context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, task := range b.tasks {
		if task.req.Queue == queue && task.result.Status == domain.BrokerStatusPending {
			delete(b.tasks, id)
			n++
		}
	}
	return n, nil
}

// SetStatus выставляет нативный статус задачи. Тестовый хук.
func (b *Memory) SetStatus(taskID, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if task, ok := b.tasks[taskID]; ok {
		task.result.Status = status
	}
}

// Complete переводит задачу в SUCCESS с результатом. Тестовый хук.
func (b *Memory) Complete(taskID string, result any) {
	b.finish(taskID, domain.BrokerStatusSuccess, result, "")
}

// Fail переводит задачу в FAILURE с ошибкой. Тестовый хук.
func (b *Memory) Fail(taskID, errMsg string) {
	b.finish(taskID, domain.BrokerStatusFailure, nil, errMsg)
}

func (b *Memory) finish(taskID, status string, result any, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.tasks[taskID]
	if !ok {
		return
	}
	now := time.Now()
	task.result.Status = status
	task.result.Result = result
	task.result.Error = errMsg
	task.result.CompletedAt = &now
}
