package graph

import "errors"

var (
	// ErrNodeNotFound — узел (tag, key) не найден.
	ErrNodeNotFound = errors.New("graph node not found")
)
