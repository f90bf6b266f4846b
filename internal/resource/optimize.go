package resource

import (
	"context"
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

// Порог утилизации, выше которого выдаётся рекомендация.
const optimizeThreshold = 80.0

// Recommendation — рекомендация по разгрузке ресурса.
// Чисто advisory, никакой автоматической реакции.
type Recommendation struct {
	ResourceType       domain.ResourceType `json:"resource_type"`
	Priority           string              `json:"priority"`
	Action             string              `json:"action"`
	UtilizationPercent float64             `json:"utilization_percent"`
}

var optimizeActions = map[domain.ResourceType]string{
	domain.ResourceCPU:     "reduce computational load or scale out workers",
	domain.ResourceMemory:  "free memory or restart leaking consumers",
	domain.ResourceDisk:    "clean up temporary files and old artifacts",
	domain.ResourceNetwork: "throttle transfers or spread traffic over time",
	domain.ResourceGPU:     "reduce GPU batch sizes or queue depth",
}

// OptimizeResources возвращает high-priority рекомендации для всех
// ресурсов с утилизацией выше 80%.
func (m *Manager) OptimizeResources(ctx context.Context) ([]Recommendation, error) {
	usage, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("system metrics snapshot: %w", err)
	}

	var recs []Recommendation
	for _, rt := range domain.ResourceTypes {
		pct, ok := usage[rt]
		if !ok || pct <= optimizeThreshold {
			continue
		}
		recs = append(recs, Recommendation{
			ResourceType:       rt,
			Priority:           "high",
			Action:             optimizeActions[rt],
			UtilizationPercent: pct,
		})
	}
	return recs, nil
}
