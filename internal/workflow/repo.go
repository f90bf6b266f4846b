package workflow

import (
	"context"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
)

// Repo — хранилище определений workflow.
type Repo interface {
	// Save создаёт определение. ErrExists при конфликте id.
	Save(ctx context.Context, def *domain.WorkflowDefinition) error

	// Replace целиком заменяет определение. ErrNotFound, если его нет.
	Replace(ctx context.Context, def *domain.WorkflowDefinition) error

	// Get возвращает определение по id.
	Get(ctx context.Context, id string) (*domain.WorkflowDefinition, error)

	// Delete удаляет определение. ErrNotFound, если его нет.
	Delete(ctx context.Context, id string) error

	// List возвращает страницу определений в порядке создания.
	List(ctx context.Context, limit, offset int) ([]*domain.WorkflowDefinition, error)
}

// MemoryRepo — репозиторий определений в памяти процесса.
type MemoryRepo struct {
	mu    sync.RWMutex
	defs  map[string]*domain.WorkflowDefinition
	order []string
}

// NewMemoryRepo создаёт пустой MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{defs: make(map[string]*domain.WorkflowDefinition)}
}

// Save создаёт определение.
func (r *MemoryRepo) Save(_ context.Context, def *domain.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[def.ID]; ok {
		return ErrExists
	}
	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// Replace целиком заменяет определение.
func (r *MemoryRepo) Replace(_ context.Context, def *domain.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[def.ID]; !ok {
		return ErrNotFound
	}
	r.defs[def.ID] = def
	return nil
}

// Get возвращает определение по id.
func (r *MemoryRepo) Get(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return def, nil
}

// Delete удаляет определение.
func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[id]; !ok {
		return ErrNotFound
	}
	delete(r.defs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List возвращает страницу определений в порядке создания.
func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]*domain.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(r.order) {
		return nil, nil
	}
	end := len(r.order)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*domain.WorkflowDefinition, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.defs[id])
	}
	return out, nil
}
