package domain

import "time"

// TaskPriority — приоритет задачи.
type TaskPriority int

const (
	// TaskPriorityLow — фоновые задачи.
	TaskPriorityLow TaskPriority = 1

	// TaskPriorityNormal — приоритет по умолчанию.
	TaskPriorityNormal TaskPriority = 2

	// TaskPriorityHigh — задачи, требующие быстрого выполнения.
	TaskPriorityHigh TaskPriority = 3

	// TaskPriorityCritical — задачи, вытесняющие остальные.
	TaskPriorityCritical TaskPriority = 4
)

// String возвращает строковое представление приоритета.
func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityLow:
		return "LOW"
	case TaskPriorityHigh:
		return "HIGH"
	case TaskPriorityCritical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

// AMQPPriority конвертирует приоритет в приоритет сообщения AMQP (0-9).
func (p TaskPriority) AMQPPriority() uint8 {
	switch p {
	case TaskPriorityLow:
		return 1
	case TaskPriorityHigh:
		return 6
	case TaskPriorityCritical:
		return 9
	default:
		return 3
	}
}

// TaskStatus — внутренний статус задачи.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED (может быть RETRYING → снова RUNNING)
//	          (или) → CANCELLED (revoke)
type TaskStatus string

const (
	// TaskStatusPending — задача в очереди, ожидает выполнения.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — задача выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusCompleted — задача успешно завершена.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — задача завершилась с ошибкой.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusCancelled — задача отозвана.
	TaskStatusCancelled TaskStatus = "CANCELLED"

	// TaskStatusRetrying — задача ожидает повторной попытки.
	TaskStatusRetrying TaskStatus = "RETRYING"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Статусы задач на стороне брокера.
//
// Брокер оперирует собственными строковыми статусами; наружу они
// транслируются в TaskStatus через MapBrokerStatus.
const (
	BrokerStatusPending = "PENDING"
	BrokerStatusStarted = "STARTED"
	BrokerStatusSuccess = "SUCCESS"
	BrokerStatusFailure = "FAILURE"
	BrokerStatusRetry   = "RETRY"
	BrokerStatusRevoked = "REVOKED"
)

// brokerStatusMap — фиксированная таблица трансляции статусов брокера.
var brokerStatusMap = map[string]TaskStatus{
	BrokerStatusPending: TaskStatusPending,
	BrokerStatusStarted: TaskStatusRunning,
	BrokerStatusSuccess: TaskStatusCompleted,
	BrokerStatusFailure: TaskStatusFailed,
	BrokerStatusRetry:   TaskStatusRetrying,
	BrokerStatusRevoked: TaskStatusCancelled,
}

// MapBrokerStatus транслирует статус брокера во внутренний TaskStatus.
// Неизвестные строки транслируются в PENDING.
func MapBrokerStatus(brokerStatus string) TaskStatus {
	if status, ok := brokerStatusMap[brokerStatus]; ok {
		return status
	}
	return TaskStatusPending
}

// TaskRequest — запрос на создание задачи.
type TaskRequest struct {
	// TaskName — имя зарегистрированного handler'а.
	TaskName string `json:"task_name"`

	// Args — позиционные аргументы.
	Args []any `json:"args,omitempty"`

	// Kwargs — именованные аргументы.
	Kwargs map[string]any `json:"kwargs,omitempty"`

	// Queue — имя очереди (default: "default").
	Queue string `json:"queue,omitempty"`

	// Priority — приоритет задачи.
	Priority TaskPriority `json:"priority,omitempty"`

	// ETA — абсолютное время, раньше которого задачу не выполнять.
	ETA *time.Time `json:"eta,omitempty"`

	// Countdown — относительная задержка выполнения в секундах.
	Countdown int `json:"countdown,omitempty"`

	// MaxRetries — бюджет повторных попыток.
	MaxRetries int `json:"max_retries,omitempty"`

	// TimeoutSec — таймаут выполнения в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Metadata — произвольные метаданные.
	// Используются для переноса allocation_id.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskInfo — запись о задаче в локальной истории.
type TaskInfo struct {
	// TaskID — идентификатор, присвоенный брокером.
	TaskID string `json:"task_id"`

	// TaskName — имя handler'а.
	TaskName string `json:"task_name"`

	// Queue — очередь, в которую задача отправлена.
	Queue string `json:"queue"`

	// Priority — приоритет задачи.
	Priority TaskPriority `json:"priority"`

	// Status — последний известный статус.
	Status TaskStatus `json:"status"`

	// SubmittedAt — время отправки брокеру.
	SubmittedAt time.Time `json:"submitted_at"`

	// Metadata — метаданные запроса.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskResult — результат выполнения задачи.
type TaskResult struct {
	// TaskID — идентификатор задачи.
	TaskID string `json:"task_id"`

	// Status — внутренний статус (транслирован из статуса брокера).
	Status TaskStatus `json:"status"`

	// Result — полезный результат выполнения.
	Result any `json:"result,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// RetryCount — количество выполненных повторных попыток.
	RetryCount int `json:"retry_count"`

	// Metadata — метаданные исходного запроса.
	Metadata map[string]any `json:"metadata,omitempty"`
}
