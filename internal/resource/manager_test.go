package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/sysinfo"
	"github.com/shaiso/Conductor/internal/telemetry"
)

func newTestManager(t *testing.T, usage sysinfo.Usage) (*Manager, *sysinfo.Static) {
	t.Helper()
	src := sysinfo.NewStatic(usage)
	m, err := NewManager(Config{Source: src})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, src
}

func cpuRequest(amount float64) domain.ResourceRequest {
	return domain.ResourceRequest{
		Specs: []domain.ResourceSpec{
			{ResourceType: domain.ResourceCPU, Amount: amount, Unit: "percent"},
		},
	}
}

func TestAllocateWithinHeadroom(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{domain.ResourceCPU: 40})
	ctx := context.Background()

	alloc, err := m.AllocateResources(ctx, cpuRequest(50))
	if err != nil {
		t.Fatalf("AllocateResources: %v", err)
	}
	if alloc.Status != domain.AllocationAllocated {
		t.Errorf("status = %s, want ALLOCATED", alloc.Status)
	}
	if alloc.AllocationID == "" {
		t.Error("allocation id must be generated")
	}
}

func TestAllocateShortfall(t *testing.T) {
	// 70% in use leaves 30% headroom; requesting 50% must fail
	// and must not create an allocation.
	m, _ := newTestManager(t, sysinfo.Usage{domain.ResourceCPU: 70})
	ctx := context.Background()

	_, err := m.AllocateResources(ctx, cpuRequest(50))
	var shortfall *ShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected ShortfallError, got %v", err)
	}
	if len(shortfall.Shortfalls) != 1 {
		t.Fatalf("shortfalls = %d, want 1", len(shortfall.Shortfalls))
	}
	if got := shortfall.Shortfalls[0].Available; got != 30 {
		t.Errorf("available = %v, want 30", got)
	}

	active, err := m.ActiveAllocations(ctx)
	if err != nil {
		t.Fatalf("ActiveAllocations: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active allocations = %d, want 0 after rejected request", len(active))
	}
}

func TestDeallocateIdempotent(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{domain.ResourceCPU: 10})
	ctx := context.Background()

	alloc, err := m.AllocateResources(ctx, cpuRequest(20))
	if err != nil {
		t.Fatalf("AllocateResources: %v", err)
	}

	if err := m.DeallocateResources(ctx, alloc.AllocationID); err != nil {
		t.Fatalf("first deallocate: %v", err)
	}
	// Second deallocate is a no-op success.
	if err := m.DeallocateResources(ctx, alloc.AllocationID); err != nil {
		t.Fatalf("second deallocate must be a no-op, got %v", err)
	}

	got, err := m.GetAllocation(ctx, alloc.AllocationID)
	if err != nil {
		t.Fatalf("GetAllocation: %v", err)
	}
	if got.Status != domain.AllocationUnavailable {
		t.Errorf("status = %s, want UNAVAILABLE", got.Status)
	}

	active, _ := m.ActiveAllocations(ctx)
	if len(active) != 0 {
		t.Errorf("active allocations = %d, want 0 after round-trip", len(active))
	}
}

func TestReserveAndRelease(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{domain.ResourceCPU: 10})
	ctx := context.Background()

	alloc, err := m.ReserveResources(ctx, cpuRequest(20))
	if err != nil {
		t.Fatalf("ReserveResources: %v", err)
	}
	if alloc.Status != domain.AllocationReserved {
		t.Fatalf("status = %s, want RESERVED", alloc.Status)
	}

	if err := m.ReleaseReservation(ctx, alloc.AllocationID); err != nil {
		t.Fatalf("ReleaseReservation: %v", err)
	}
	if err := m.ReleaseReservation(ctx, alloc.AllocationID); err != nil {
		t.Fatalf("second release must be a no-op, got %v", err)
	}

	got, _ := m.GetAllocation(ctx, alloc.AllocationID)
	if got.Status != domain.AllocationAvailable {
		t.Errorf("status = %s, want AVAILABLE", got.Status)
	}
}

func TestEnforceLimitsToggle(t *testing.T) {
	// With a 80% CPU limit enforced and 40% in use, only 40% is
	// admittable even though plain headroom would allow 60%.
	src := sysinfo.NewStatic(sysinfo.Usage{domain.ResourceCPU: 40})
	m, err := NewManager(Config{Source: src, EnforceLimits: true})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if _, err := m.AllocateResources(ctx, cpuRequest(50)); err == nil {
		t.Fatal("expected shortfall under enforced limits")
	}
	if _, err := m.AllocateResources(ctx, cpuRequest(35)); err != nil {
		t.Fatalf("AllocateResources within limit: %v", err)
	}
}

func TestSystemResourcesHealthFlags(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{
		domain.ResourceCPU:    90, // above the 80% limit
		domain.ResourceMemory: 50,
	})

	snap, err := m.GetSystemResources(context.Background())
	if err != nil {
		t.Fatalf("GetSystemResources: %v", err)
	}
	if snap.Resources[domain.ResourceCPU].Health != "warning" {
		t.Errorf("cpu health = %s, want warning", snap.Resources[domain.ResourceCPU].Health)
	}
	if snap.Resources[domain.ResourceMemory].Health != "healthy" {
		t.Errorf("memory health = %s, want healthy", snap.Resources[domain.ResourceMemory].Health)
	}
}

func TestOptimizeRecommendations(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{
		domain.ResourceCPU:    85,
		domain.ResourceMemory: 95,
		domain.ResourceDisk:   20,
	})

	recs, err := m.OptimizeResources(context.Background())
	if err != nil {
		t.Fatalf("OptimizeResources: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Priority != "high" {
			t.Errorf("%s priority = %s, want high", rec.ResourceType, rec.Priority)
		}
		if rec.Action == "" {
			t.Errorf("%s recommendation has no action", rec.ResourceType)
		}
	}
}

func TestReaperSweepsExpired(t *testing.T) {
	ledger := NewMemoryLedger()
	src := sysinfo.NewStatic(sysinfo.Usage{domain.ResourceCPU: 0})
	m, err := NewManager(Config{Source: src, Ledger: ledger})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	expired, err := m.AllocateResources(ctx, domain.ResourceRequest{
		Specs:       cpuRequest(10).Specs,
		DurationSec: 1,
	})
	if err != nil {
		t.Fatalf("AllocateResources: %v", err)
	}
	// Rewind expiry into the past instead of sleeping.
	past := time.Now().Add(-time.Minute)
	ledger.mu.Lock()
	ledger.allocs[expired.AllocationID].ExpiresAt = &past
	ledger.mu.Unlock()

	eternal, err := m.AllocateResources(ctx, cpuRequest(10))
	if err != nil {
		t.Fatalf("AllocateResources: %v", err)
	}

	reaper := NewReaper(ledger, nil)
	reaped, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if reaped != 1 {
		t.Errorf("reaped = %d, want 1", reaped)
	}

	got, _ := ledger.Get(ctx, expired.AllocationID)
	if got.Status != domain.AllocationAvailable {
		t.Errorf("expired allocation status = %s, want AVAILABLE", got.Status)
	}
	got, _ = ledger.Get(ctx, eternal.AllocationID)
	if got.Status != domain.AllocationAllocated {
		t.Errorf("unexpired allocation status = %s, want ALLOCATED", got.Status)
	}
}

func TestResourceHistoryWindow(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{domain.ResourceCPU: 33})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.GetResourceMetrics(ctx, domain.ResourceCPU); err != nil {
			t.Fatalf("GetResourceMetrics: %v", err)
		}
	}

	samples := m.GetResourceHistory(domain.ResourceCPU, 1)
	if len(samples) != 3 {
		t.Errorf("history samples = %d, want 3", len(samples))
	}
	for _, s := range samples {
		if s.UtilizationPercent != 33 {
			t.Errorf("sample utilization = %v, want 33", s.UtilizationPercent)
		}
	}
}

func TestMonitorResourcesSyncsAllocationGauge(t *testing.T) {
	m, _ := newTestManager(t, sysinfo.Usage{domain.ResourceCPU: 10})
	ctx := context.Background()

	// Allocations written to the ledger by other processes (another
	// API instance, the reaper) bypass this process's gauge.
	for i := 0; i < 3; i++ {
		alloc := domain.NewResourceAllocation(cpuRequest(5), domain.AllocationAllocated)
		if err := m.ledger.Put(ctx, alloc); err != nil {
			t.Fatalf("ledger.Put: %v", err)
		}
	}

	if _, err := m.MonitorResources(ctx, 0, time.Millisecond); err != nil {
		t.Fatalf("MonitorResources: %v", err)
	}

	if got := testutil.ToFloat64(telemetry.ActiveAllocations); got != 3 {
		t.Errorf("active allocations gauge = %v, want 3 (synced from ledger)", got)
	}
}
