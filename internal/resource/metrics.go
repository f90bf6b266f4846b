package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// history — ограниченная история сэмплов по типам ресурсов.
type history struct {
	mu      sync.RWMutex
	limit   int
	samples map[domain.ResourceType][]domain.ResourceMetrics
}

func newHistory(limit int) *history {
	return &history{
		limit:   limit,
		samples: make(map[domain.ResourceType][]domain.ResourceMetrics),
	}
}

func (h *history) append(m domain.ResourceMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.samples[m.ResourceType], m)
	if len(s) > h.limit {
		s = s[len(s)-h.limit:]
	}
	h.samples[m.ResourceType] = s
}

func (h *history) since(rt domain.ResourceType, cutoff time.Time) []domain.ResourceMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []domain.ResourceMetrics
	for _, m := range h.samples[rt] {
		if !m.Timestamp.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// GetResourceMetrics возвращает одномоментный сэмпл утилизации
// одного типа ресурса и записывает его в историю.
func (m *Manager) GetResourceMetrics(ctx context.Context, rt domain.ResourceType) (*domain.ResourceMetrics, error) {
	usage, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("system metrics snapshot: %w", err)
	}

	pct, ok := usage[rt]
	if !ok {
		return nil, fmt.Errorf("resource type %s is not measured", rt)
	}

	sample := domain.ResourceMetrics{
		ResourceType:       rt,
		CurrentUsage:       pct,
		TotalCapacity:      100,
		UtilizationPercent: pct,
		Timestamp:          time.Now(),
	}
	m.history.append(sample)
	return &sample, nil
}

// GetResourceHistory возвращает сэмплы за последние hours часов.
func (m *Manager) GetResourceHistory(rt domain.ResourceType, hours int) []domain.ResourceMetrics {
	if hours <= 0 {
		hours = 1
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	return m.history.since(rt, cutoff)
}

// MonitorResources блокирующе сэмплирует все измеряемые ресурсы
// каждые interval в течение duration и возвращает собранные сэмплы.
//
// Вызывать вне критического пути. Отмена контекста завершает
// цикл досрочно с уже собранными сэмплами.
func (m *Manager) MonitorResources(ctx context.Context, duration, interval time.Duration) ([]domain.ResourceMetrics, error) {
	if interval <= 0 {
		interval = time.Second
	}

	var collected []domain.ResourceMetrics
	deadline := time.Now().Add(duration)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		usage, err := m.source.Snapshot(ctx)
		if err != nil {
			return collected, fmt.Errorf("system metrics snapshot: %w", err)
		}
		now := time.Now()
		for rt, pct := range usage {
			sample := domain.ResourceMetrics{
				ResourceType:       rt,
				CurrentUsage:       pct,
				TotalCapacity:      100,
				UtilizationPercent: pct,
				Timestamp:          now,
			}
			m.history.append(sample)
			collected = append(collected, sample)
		}

		// Гейдж активных выделений процесс-локальный, а общий
		// ledger (Redis) правят и другие процессы, в том числе
		// reaper. Пересчитываем значение из ledger на каждом сэмпле.
		if active, aErr := m.ActiveAllocations(ctx); aErr == nil {
			telemetry.ActiveAllocations.Set(float64(len(active)))
		}

		if !now.Add(interval).Before(deadline) {
			return collected, nil
		}
		select {
		case <-ctx.Done():
			return collected, ctx.Err()
		case <-ticker.C:
		}
	}
}
