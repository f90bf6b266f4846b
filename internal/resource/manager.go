package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/sysinfo"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Лимиты утилизации по умолчанию, проценты.
var defaultLimits = map[domain.ResourceType]float64{
	domain.ResourceCPU:     80,
	domain.ResourceMemory:  85,
	domain.ResourceDisk:    90,
	domain.ResourceNetwork: 70,
	domain.ResourceGPU:     90,
}

// Config — конфигурация менеджера ресурсов.
type Config struct {
	// Source — источник снимков системной утилизации. Обязателен.
	Source sysinfo.Source

	// Ledger — хранилище выделений. По умолчанию MemoryLedger.
	Ledger Ledger

	// Limits — лимиты утилизации по типам ресурсов, проценты.
	// Отсутствующие типы получают значения по умолчанию.
	Limits map[domain.ResourceType]float64

	// EnforceLimits включает admission по лимитам:
	// available = limit − current_usage вместо 100 − current_usage.
	// По умолчанию лимиты только advisory (влияют на health-флаги).
	EnforceLimits bool

	// HistoryLimit — максимум сэмплов истории на тип ресурса.
	HistoryLimit int

	Logger *slog.Logger
}

// Manager управляет пулом системных ресурсов: admission по headroom,
// выделения и резервы в ledger, сэмплирование метрик.
type Manager struct {
	source        sysinfo.Source
	ledger        Ledger
	limits        map[domain.ResourceType]float64
	enforceLimits bool
	history       *history
	logger        *slog.Logger
}

// NewManager создаёт менеджер ресурсов.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Source == nil {
		return nil, errors.New("resource: Source is required")
	}
	if cfg.Ledger == nil {
		cfg.Ledger = NewMemoryLedger()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 1000
	}

	limits := make(map[domain.ResourceType]float64, len(defaultLimits))
	for rt, v := range defaultLimits {
		limits[rt] = v
	}
	for rt, v := range cfg.Limits {
		limits[rt] = v
	}

	return &Manager{
		source:        cfg.Source,
		ledger:        cfg.Ledger,
		limits:        limits,
		enforceLimits: cfg.EnforceLimits,
		history:       newHistory(cfg.HistoryLimit),
		logger:        cfg.Logger.With("component", "resource_manager"),
	}, nil
}

// GetSystemResources возвращает снимок утилизации с health-флагом
// по каждому измеренному ресурсу. Без побочных эффектов.
func (m *Manager) GetSystemResources(ctx context.Context) (*domain.SystemResources, error) {
	usage, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("system metrics snapshot: %w", err)
	}

	resources := make(map[domain.ResourceType]domain.ResourceHealth, len(usage))
	for rt, pct := range usage {
		health := "healthy"
		if pct >= m.limits[rt] {
			health = "warning"
		}
		resources[rt] = domain.ResourceHealth{
			UtilizationPercent: pct,
			LimitPercent:       m.limits[rt],
			Health:             health,
		}
	}

	return &domain.SystemResources{Resources: resources, Timestamp: time.Now()}, nil
}

// AllocateResources проверяет headroom по каждому запрошенному типу
// и при достаточности создаёт выделение со статусом ALLOCATED.
//
// available = 100 − current_usage; при EnforceLimits в качестве
// потолка берётся сконфигурированный лимит вместо 100.
// Нехватка возвращается как *ShortfallError со всеми дефицитами.
func (m *Manager) AllocateResources(ctx context.Context, req domain.ResourceRequest) (*domain.ResourceAllocation, error) {
	return m.admit(ctx, req, domain.AllocationAllocated)
}

// ReserveResources создаёт резерв (статус RESERVED) под будущее
// использование. Admission тот же, что у AllocateResources.
func (m *Manager) ReserveResources(ctx context.Context, req domain.ResourceRequest) (*domain.ResourceAllocation, error) {
	return m.admit(ctx, req, domain.AllocationReserved)
}

func (m *Manager) admit(ctx context.Context, req domain.ResourceRequest, status domain.AllocationStatus) (*domain.ResourceAllocation, error) {
	if len(req.Specs) == 0 {
		return nil, ErrEmptyRequest
	}

	usage, err := m.source.Snapshot(ctx)
	if err != nil {
		telemetry.AllocationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("system metrics snapshot: %w", err)
	}

	var shortfalls []Shortfall
	for _, spec := range req.Specs {
		// Headroom сравним только с процентными величинами;
		// байтовые спецификации учитываются в выделении без
		// admission-проверки.
		if spec.Unit != "" && spec.Unit != "percent" {
			continue
		}
		ceiling := 100.0
		if m.enforceLimits {
			if limit, ok := m.limits[spec.ResourceType]; ok {
				ceiling = limit
			}
		}
		available := ceiling - usage[spec.ResourceType]
		if spec.Amount > available {
			shortfalls = append(shortfalls, Shortfall{
				ResourceType: spec.ResourceType,
				Requested:    spec.Amount,
				Available:    available,
			})
		}
	}
	if len(shortfalls) > 0 {
		telemetry.AllocationsTotal.WithLabelValues("shortfall").Inc()
		return nil, &ShortfallError{Shortfalls: shortfalls}
	}

	alloc := domain.NewResourceAllocation(req, status)
	if err := m.ledger.Put(ctx, alloc); err != nil {
		telemetry.AllocationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store allocation: %w", err)
	}

	telemetry.AllocationsTotal.WithLabelValues("granted").Inc()
	telemetry.ActiveAllocations.Inc()
	m.logger.Info("resources allocated",
		"allocation_id", alloc.AllocationID,
		"status", string(status),
		"specs", len(alloc.Specs),
	)
	return alloc, nil
}

// DeallocateResources освобождает выделение: статус становится
// UNAVAILABLE. Повторный вызов — no-op с успехом.
func (m *Manager) DeallocateResources(ctx context.Context, allocationID string) error {
	return m.flip(ctx, allocationID,
		[]domain.AllocationStatus{domain.AllocationAllocated, domain.AllocationReserved, domain.AllocationAvailable},
		domain.AllocationUnavailable)
}

// ReleaseReservation возвращает резерв в пул: RESERVED → AVAILABLE.
// Повторный вызов — no-op с успехом.
func (m *Manager) ReleaseReservation(ctx context.Context, allocationID string) error {
	return m.flip(ctx, allocationID,
		[]domain.AllocationStatus{domain.AllocationReserved},
		domain.AllocationAvailable)
}

func (m *Manager) flip(ctx context.Context, allocationID string,
	from []domain.AllocationStatus, to domain.AllocationStatus) error {

	alloc, err := m.ledger.CompareAndSwapStatus(ctx, allocationID, from, to)
	if errors.Is(err, ErrStatusConflict) {
		// Уже в целевом статусе — идемпотентный повтор.
		if alloc != nil && alloc.Status == to {
			return nil
		}
		return fmt.Errorf("allocation %s is %s: %w", allocationID, alloc.Status, ErrStatusConflict)
	}
	if err != nil {
		return fmt.Errorf("release allocation %s: %w", allocationID, err)
	}

	telemetry.ActiveAllocations.Dec()
	m.logger.Info("allocation released", "allocation_id", allocationID, "status", string(to))
	return nil
}

// GetAllocation возвращает выделение по id.
func (m *Manager) GetAllocation(ctx context.Context, allocationID string) (*domain.ResourceAllocation, error) {
	return m.ledger.Get(ctx, allocationID)
}

// ActiveAllocations возвращает выделения в статусах ALLOCATED и RESERVED.
func (m *Manager) ActiveAllocations(ctx context.Context) ([]*domain.ResourceAllocation, error) {
	all, err := m.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*domain.ResourceAllocation, 0, len(all))
	for _, alloc := range all {
		if alloc.IsActive() {
			active = append(active, alloc)
		}
	}
	return active, nil
}
