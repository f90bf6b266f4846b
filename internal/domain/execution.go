package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	RUNNING → PAUSED → RUNNING (resume)
//	RUNNING|PAUSED → COMPLETED | FAILED | CANCELLED (терминальные)
//
// Статуса PENDING нет: запись о выполнении создаётся только
// в момент начала диспетчеризации.
type ExecutionStatus string

const (
	// ExecutionStatusRunning — выполнение в процессе.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusPaused — выполнение приостановлено.
	ExecutionStatusPaused ExecutionStatus = "PAUSED"

	// ExecutionStatusCompleted — выполнение успешно завершено.
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"

	// ExecutionStatusFailed — выполнение завершилось с ошибкой.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusCancelled — выполнение отменено.
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowExecution — экземпляр выполнения workflow.
//
// Одно выполнение на один вызов execute; много выполнений могут
// одновременно ссылаться на один WorkflowDefinition.
type WorkflowExecution struct {
	// ExecutionID — уникальный идентификатор выполнения (генерируется).
	ExecutionID string `json:"execution_id"`

	// WorkflowID — ссылка на WorkflowDefinition.
	WorkflowID string `json:"workflow_id"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения. Nil до терминального перехода.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CurrentNode — ID текущего узла. Пустая строка до первого шага.
	CurrentNode string `json:"current_node,omitempty"`

	// ExecutionData — произвольные данные выполнения.
	// Мутируются по мере продвижения по графу.
	ExecutionData map[string]any `json:"execution_data,omitempty"`

	// Error — текст ошибки при статусе FAILED.
	Error string `json:"error,omitempty"`
}

// NewWorkflowExecution создаёт новое выполнение в статусе RUNNING.
func NewWorkflowExecution(workflowID string, inputData map[string]any) *WorkflowExecution {
	if inputData == nil {
		inputData = make(map[string]any)
	}
	return &WorkflowExecution{
		ExecutionID:   uuid.New().String(),
		WorkflowID:    workflowID,
		Status:        ExecutionStatusRunning,
		StartedAt:     time.Now(),
		ExecutionData: inputData,
	}
}

// IsFinished возвращает true, если выполнение завершено.
func (e *WorkflowExecution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkPaused переводит выполнение в статус PAUSED.
func (e *WorkflowExecution) MarkPaused() {
	e.Status = ExecutionStatusPaused
}

// MarkRunning возвращает выполнение в статус RUNNING (resume).
func (e *WorkflowExecution) MarkRunning() {
	e.Status = ExecutionStatusRunning
}

// MarkCompleted переводит выполнение в статус COMPLETED.
func (e *WorkflowExecution) MarkCompleted() {
	now := time.Now()
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
}

// MarkFailed переводит выполнение в статус FAILED с ошибкой.
func (e *WorkflowExecution) MarkFailed(err string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
	e.Error = err
}

// MarkCancelled переводит выполнение в статус CANCELLED.
// Повторный вызов — no-op (completed_at не перезаписывается).
func (e *WorkflowExecution) MarkCancelled() {
	if e.Status == ExecutionStatusCancelled {
		return
	}
	now := time.Now()
	e.Status = ExecutionStatusCancelled
	e.CompletedAt = &now
}

// ExecutionRequest — запрос на выполнение workflow.
type ExecutionRequest struct {
	// WorkflowID — идентификатор workflow.
	WorkflowID string `json:"workflow_id"`

	// InputData — входные данные выполнения.
	InputData map[string]any `json:"input_data,omitempty"`

	// ExecutionOptions — опции выполнения.
	// Используются для переноса allocation_id через выполнение.
	ExecutionOptions map[string]any `json:"execution_options,omitempty"`
}

// NodeRunStatus — статус узла в рамках конкретного выполнения.
type NodeRunStatus string

const (
	// NodeRunPending — узел ещё не достигнут.
	NodeRunPending NodeRunStatus = "PENDING"

	// NodeRunRunning — узел выполняется.
	NodeRunRunning NodeRunStatus = "RUNNING"

	// NodeRunCompleted — узел успешно пройден.
	NodeRunCompleted NodeRunStatus = "COMPLETED"

	// NodeRunSkipped — узел пропущен (условие не выполнено).
	NodeRunSkipped NodeRunStatus = "SKIPPED"

	// NodeRunFailed — узел завершился с ошибкой.
	NodeRunFailed NodeRunStatus = "FAILED"
)
