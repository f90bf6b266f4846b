package execution

import (
	"context"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
)

// Repo — хранилище выполнений workflow.
type Repo interface {
	// Save создаёт запись о выполнении.
	Save(ctx context.Context, exec *domain.WorkflowExecution) error

	// Get возвращает копию выполнения по id.
	Get(ctx context.Context, executionID string) (*domain.WorkflowExecution, error)

	// Update выполняет атомарную мутацию выполнения под блокировкой
	// хранилища. fn получает актуальную запись; возврат ошибки
	// отменяет мутацию.
	Update(ctx context.Context, executionID string, fn func(*domain.WorkflowExecution) error) (*domain.WorkflowExecution, error)

	// List возвращает все выполнения в порядке создания.
	List(ctx context.Context) ([]*domain.WorkflowExecution, error)

	// ListByWorkflow возвращает выполнения одного workflow
	// в порядке создания.
	ListByWorkflow(ctx context.Context, workflowID string) ([]*domain.WorkflowExecution, error)
}

// MemoryRepo — репозиторий выполнений в памяти процесса.
type MemoryRepo struct {
	mu    sync.RWMutex
	execs map[string]*domain.WorkflowExecution
	order []string
}

// NewMemoryRepo создаёт пустой MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{execs: make(map[string]*domain.WorkflowExecution)}
}

// Save создаёт запись о выполнении.
func (r *MemoryRepo) Save(_ context.Context, exec *domain.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *exec
	r.execs[exec.ExecutionID] = &cp
	r.order = append(r.order, exec.ExecutionID)
	return nil
}

// Get возвращает копию выполнения.
func (r *MemoryRepo) Get(_ context.Context, executionID string) (*domain.WorkflowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.execs[executionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *exec
	return &cp, nil
}

// Update мутирует выполнение под блокировкой.
func (r *MemoryRepo) Update(_ context.Context, executionID string, fn func(*domain.WorkflowExecution) error) (*domain.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec, ok := r.execs[executionID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(exec); err != nil {
		return nil, err
	}
	cp := *exec
	return &cp, nil
}

// List возвращает копии всех выполнений в порядке создания.
func (r *MemoryRepo) List(_ context.Context) ([]*domain.WorkflowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.WorkflowExecution, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.execs[id]
		out = append(out, &cp)
	}
	return out, nil
}

// ListByWorkflow возвращает выполнения одного workflow.
func (r *MemoryRepo) ListByWorkflow(_ context.Context, workflowID string) ([]*domain.WorkflowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.WorkflowExecution
	for _, id := range r.order {
		if r.execs[id].WorkflowID == workflowID {
			cp := *r.execs[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}
