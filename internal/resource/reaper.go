package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Reaper возвращает просроченные выделения обратно в пул.
//
// Срок действия (expires_at) сам по себе ничего не освобождает:
// без периодического Sweep просроченные выделения продолжали бы
// числиться активными.
type Reaper struct {
	ledger Ledger
	logger *slog.Logger
}

// NewReaper создаёт Reaper.
func NewReaper(ledger Ledger, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{ledger: ledger, logger: logger.With("component", "resource_reaper")}
}

// Sweep переводит все просроченные активные выделения в AVAILABLE.
// Возвращает количество освобождённых выделений.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	allocs, err := r.ledger.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list allocations: %w", err)
	}

	now := time.Now()
	reaped := 0
	for _, alloc := range allocs {
		if !alloc.IsActive() || !alloc.IsExpired(now) {
			continue
		}

		_, err := r.ledger.CompareAndSwapStatus(ctx, alloc.AllocationID,
			[]domain.AllocationStatus{domain.AllocationAllocated, domain.AllocationReserved},
			domain.AllocationAvailable)
		if errors.Is(err, ErrStatusConflict) || errors.Is(err, ErrAllocationNotFound) {
			// Кто-то освободил выделение между List и CAS.
			continue
		}
		if err != nil {
			return reaped, fmt.Errorf("reap allocation %s: %w", alloc.AllocationID, err)
		}

		reaped++
		telemetry.ReapedAllocations.Inc()
		telemetry.ActiveAllocations.Dec()
		r.logger.Info("expired allocation reaped",
			"allocation_id", alloc.AllocationID,
			"expired_at", alloc.ExpiresAt,
		)
	}
	return reaped, nil
}
