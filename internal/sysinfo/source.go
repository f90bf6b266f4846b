package sysinfo

import (
	"context"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
)

// Usage — снимок утилизации по типам ресурсов, проценты 0-100.
// Отсутствующий тип означает, что источник его не измеряет.
type Usage map[domain.ResourceType]float64

// Source — источник снимков утилизации системных ресурсов.
type Source interface {
	// Snapshot возвращает текущую утилизацию.
	Snapshot(ctx context.Context) (Usage, error)
}

// Static — источник с фиксированными значениями.
//
// Используется в тестах и в окружениях без /proc.
type Static struct {
	mu    sync.RWMutex
	usage Usage
}

// NewStatic создаёт Static с начальными значениями.
// Копирует карту, чтобы вызывающий не мог мутировать её извне.
func NewStatic(usage Usage) *Static {
	s := &Static{usage: make(Usage, len(usage))}
	for k, v := range usage {
		s.usage[k] = v
	}
	return s
}

// Snapshot возвращает копию текущих значений.
func (s *Static) Snapshot(_ context.Context) (Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Usage, len(s.usage))
	for k, v := range s.usage {
		out[k] = v
	}
	return out, nil
}

// Set обновляет значение одного ресурса.
func (s *Static) Set(rt domain.ResourceType, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[rt] = percent
}
