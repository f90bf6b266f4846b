package broker

import (
	"context"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
)

// RawResult — результат задачи в терминах брокера.
// Статус — нативная строка брокера, без перевода во внутренний enum.
type RawResult struct {
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RetryCount  int        `json:"retry_count"`
}

// WorkerStat — статистика одного воркера.
type WorkerStat struct {
	Name      string    `json:"name"`
	Active    int       `json:"active"`
	Processed int       `json:"processed"`
	Queues    []string  `json:"queues"`
	SeenAt    time.Time `json:"seen_at"`
}

// Broker — клиент внешнего брокера задач.
//
// Статусы задач брокер отдаёт нативными строками (PENDING,
// STARTED, SUCCESS, FAILURE, RETRY, REVOKED); перевод во
// внутренний TaskStatus делает пакет taskqueue.
// Реализации: Memory (тесты/разработка) и mq.AMQPBroker.
type Broker interface {
	// Submit отправляет задачу с учётом очереди, приоритета
	// и отложенного запуска (ETA/Countdown). Возвращает id задачи.
	Submit(ctx context.Context, req domain.TaskRequest) (string, error)

	// Status возвращает нативный статус задачи.
	Status(ctx context.Context, taskID string) (string, error)

	// Result возвращает результат задачи.
	Result(ctx context.Context, taskID string) (*RawResult, error)

	// Revoke отзывает задачу; terminate требует остановить
	// уже выполняющееся тело задачи (best-effort).
	Revoke(ctx context.Context, taskID string, terminate bool) error

	// ActiveTasks возвращает id задач в обработке.
	ActiveTasks(ctx context.Context) ([]string, error)

	// ScheduledTasks возвращает id задач с отложенным запуском.
	ScheduledTasks(ctx context.Context) ([]string, error)

	// WorkerStats возвращает статистику воркеров.
	WorkerStats(ctx context.Context) (map[string]WorkerStat, error)

	// QueueLength возвращает глубину очереди.
	QueueLength(ctx context.Context, queue string) (int, error)

	// Purge удаляет все ожидающие задачи очереди,
	// возвращает количество удалённых.
	Purge(ctx context.Context, queue string) (int, error)
}
