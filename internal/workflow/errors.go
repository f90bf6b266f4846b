package workflow

import "errors"

var (
	// ErrNotFound — workflow с таким id не найден.
	ErrNotFound = errors.New("workflow not found")

	// ErrExists — workflow с таким id уже существует.
	ErrExists = errors.New("workflow already exists")

	// ErrNilDefinition — вместо определения передан nil.
	ErrNilDefinition = errors.New("workflow definition is nil")
)
