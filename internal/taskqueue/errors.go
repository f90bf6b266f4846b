package taskqueue

import "errors"

var (
	// ErrHandlerNotFound — для задачи не зарегистрирован handler.
	// Ошибка вызывающего, не инфраструктурная.
	ErrHandlerNotFound = errors.New("task handler not found")

	// ErrEmptyTaskName — запрос без имени задачи.
	ErrEmptyTaskName = errors.New("task name is required")

	// ErrTaskNotFound — задача не найдена в локальной истории.
	ErrTaskNotFound = errors.New("task not found")
)
