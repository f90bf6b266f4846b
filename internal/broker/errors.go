package broker

import "errors"

var (
	// ErrTaskNotFound — брокер не знает задачу с таким id.
	ErrTaskNotFound = errors.New("task not found in broker")
)
