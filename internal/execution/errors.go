package execution

import "errors"

var (
	// ErrNotFound — выполнение с таким id не найдено.
	ErrNotFound = errors.New("execution not found")

	// ErrTerminal — выполнение уже в терминальном статусе.
	ErrTerminal = errors.New("execution already finished")

	// ErrNotPaused — resume для выполнения, которое не приостановлено.
	ErrNotPaused = errors.New("execution is not paused")

	// ErrNotRunning — pause для выполнения, которое не выполняется.
	ErrNotRunning = errors.New("execution is not running")

	// ErrNoEntryNodes — в определении нет ни START узлов,
	// ни узлов без входящих рёбер.
	ErrNoEntryNodes = errors.New("workflow has no entry nodes")

	// ErrConditionRender — условие перехода не удалось вычислить.
	ErrConditionRender = errors.New("render edge condition")
)
