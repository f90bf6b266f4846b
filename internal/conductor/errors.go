package conductor

import "errors"

// Ошибки вызывающего: возвращаются немедленно, без envelope
// и без побочных эффектов.
var (
	// ErrNilDefinition — не передано определение workflow.
	ErrNilDefinition = errors.New("workflow definition is required")

	// ErrInvalidDefinition — определение не прошло валидацию.
	ErrInvalidDefinition = errors.New("workflow definition is invalid")

	// ErrEmptyTaskName — не передано имя задачи.
	ErrEmptyTaskName = errors.New("task name is required")
)
