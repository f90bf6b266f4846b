package taskqueue

import (
	"context"
	"sync"
)

// Handler — тело задачи, выполняемое воркером.
type Handler func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Registry — реестр handler'ов задач.
//
// Очередь проверяет регистрацию при создании задачи (fail-fast),
// воркер разрешает handler по имени при выполнении.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register регистрирует handler под именем задачи.
// Повторная регистрация заменяет предыдущий handler.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Resolve возвращает handler по имени.
func (r *Registry) Resolve(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names возвращает имена всех зарегистрированных задач.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
