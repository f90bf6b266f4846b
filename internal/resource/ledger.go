package resource

import (
	"context"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
)

// Ledger — хранилище выделений ресурсов.
//
// Переходы статуса выполняются через CompareAndSwapStatus, чтобы
// конкурирующие deallocate/release/reaper не затирали друг друга.
// Реализации: MemoryLedger (по умолчанию, тесты) и RedisLedger
// (переживает рестарт процесса).
type Ledger interface {
	// Put сохраняет новое выделение.
	// Возвращает ErrAllocationExists при конфликте id.
	Put(ctx context.Context, alloc *domain.ResourceAllocation) error

	// Get возвращает выделение по id.
	Get(ctx context.Context, allocationID string) (*domain.ResourceAllocation, error)

	// CompareAndSwapStatus атомарно меняет статус выделения,
	// если текущий статус входит в from. При несовпадении
	// возвращает ErrStatusConflict и актуальное выделение.
	CompareAndSwapStatus(ctx context.Context, allocationID string,
		from []domain.AllocationStatus, to domain.AllocationStatus) (*domain.ResourceAllocation, error)

	// List возвращает все выделения.
	List(ctx context.Context) ([]*domain.ResourceAllocation, error)
}

// MemoryLedger — ledger в памяти процесса.
type MemoryLedger struct {
	mu     sync.RWMutex
	allocs map[string]*domain.ResourceAllocation
}

// NewMemoryLedger создаёт пустой MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{allocs: make(map[string]*domain.ResourceAllocation)}
}

// Put сохраняет новое выделение.
func (l *MemoryLedger) Put(_ context.Context, alloc *domain.ResourceAllocation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.allocs[alloc.AllocationID]; ok {
		return ErrAllocationExists
	}
	cp := *alloc
	l.allocs[alloc.AllocationID] = &cp
	return nil
}

// Get возвращает копию выделения.
func (l *MemoryLedger) Get(_ context.Context, allocationID string) (*domain.ResourceAllocation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	alloc, ok := l.allocs[allocationID]
	if !ok {
		return nil, ErrAllocationNotFound
	}
	cp := *alloc
	return &cp, nil
}

// CompareAndSwapStatus атомарно меняет статус под мьютексом.
func (l *MemoryLedger) CompareAndSwapStatus(_ context.Context, allocationID string,
	from []domain.AllocationStatus, to domain.AllocationStatus) (*domain.ResourceAllocation, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	alloc, ok := l.allocs[allocationID]
	if !ok {
		return nil, ErrAllocationNotFound
	}

	if !statusIn(alloc.Status, from) {
		cp := *alloc
		return &cp, ErrStatusConflict
	}

	alloc.Status = to
	cp := *alloc
	return &cp, nil
}

// List возвращает копии всех выделений.
func (l *MemoryLedger) List(_ context.Context) ([]*domain.ResourceAllocation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.ResourceAllocation, 0, len(l.allocs))
	for _, alloc := range l.allocs {
		cp := *alloc
		out = append(out, &cp)
	}
	return out, nil
}

func statusIn(s domain.AllocationStatus, set []domain.AllocationStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
