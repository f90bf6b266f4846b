package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceType — тип системного ресурса.
type ResourceType string

const (
	ResourceCPU     ResourceType = "CPU"
	ResourceMemory  ResourceType = "MEMORY"
	ResourceDisk    ResourceType = "DISK"
	ResourceNetwork ResourceType = "NETWORK"
	ResourceGPU     ResourceType = "GPU"
)

// ResourceTypes — все известные типы ресурсов.
var ResourceTypes = []ResourceType{
	ResourceCPU, ResourceMemory, ResourceDisk, ResourceNetwork, ResourceGPU,
}

// ResourceSpec — запрашиваемое количество ресурса одного типа.
type ResourceSpec struct {
	// ResourceType — тип ресурса.
	ResourceType ResourceType `json:"resource_type"`

	// Amount — запрашиваемое количество.
	// Для admission-решений интерпретируется как проценты утилизации.
	Amount float64 `json:"amount"`

	// Unit — единица измерения ("percent", "MB", "GB").
	Unit string `json:"unit"`

	// Properties — произвольные свойства.
	Properties map[string]any `json:"properties,omitempty"`
}

// ResourceRequest — запрос на выделение ресурсов.
type ResourceRequest struct {
	// Specs — список запрашиваемых ресурсов.
	Specs []ResourceSpec `json:"specs"`

	// DurationSec — срок действия выделения в секундах (0 — бессрочно).
	DurationSec int `json:"duration_sec,omitempty"`

	// Priority — приоритет запроса.
	Priority int `json:"priority,omitempty"`

	// Metadata — произвольные метаданные.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AllocationStatus — статус выделения ресурсов.
type AllocationStatus string

const (
	// AllocationAvailable — выделение возвращено в пул.
	AllocationAvailable AllocationStatus = "AVAILABLE"

	// AllocationAllocated — ресурсы выделены и учитываются.
	AllocationAllocated AllocationStatus = "ALLOCATED"

	// AllocationReserved — ресурсы зарезервированы на будущее
	// (без текущего учёта потребления).
	AllocationReserved AllocationStatus = "RESERVED"

	// AllocationUnavailable — выделение освобождено.
	AllocationUnavailable AllocationStatus = "UNAVAILABLE"
)

// ResourceAllocation — предоставленное выделение ресурсов.
//
// Жизненный цикл независим от задачи/workflow, которые его запросили.
// Освобождение меняет статус, запись не удаляется.
type ResourceAllocation struct {
	// AllocationID — уникальный идентификатор выделения.
	AllocationID string `json:"allocation_id"`

	// Specs — предоставленные ресурсы.
	Specs []ResourceSpec `json:"specs"`

	// Status — текущий статус выделения.
	Status AllocationStatus `json:"status"`

	// AllocatedAt — время выделения.
	AllocatedAt time.Time `json:"allocated_at"`

	// ExpiresAt — срок действия. Nil — бессрочное выделение.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Metadata — произвольные метаданные.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewResourceAllocation создаёт выделение по запросу.
func NewResourceAllocation(req ResourceRequest, status AllocationStatus) *ResourceAllocation {
	now := time.Now()
	alloc := &ResourceAllocation{
		AllocationID: uuid.New().String(),
		Specs:        req.Specs,
		Status:       status,
		AllocatedAt:  now,
		Metadata:     req.Metadata,
	}
	if req.DurationSec > 0 {
		expires := now.Add(time.Duration(req.DurationSec) * time.Second)
		alloc.ExpiresAt = &expires
	}
	return alloc
}

// IsExpired возвращает true, если срок действия выделения истёк.
func (a *ResourceAllocation) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// IsActive возвращает true, если выделение учитывается
// (ALLOCATED или RESERVED).
func (a *ResourceAllocation) IsActive() bool {
	return a.Status == AllocationAllocated || a.Status == AllocationReserved
}

// ResourceMetrics — одномоментный срез метрик одного типа ресурса.
// Не мутируется после создания.
type ResourceMetrics struct {
	ResourceType       ResourceType `json:"resource_type"`
	CurrentUsage       float64      `json:"current_usage"`
	TotalCapacity      float64      `json:"total_capacity"`
	UtilizationPercent float64      `json:"utilization_percent"`
	Timestamp          time.Time    `json:"timestamp"`
}

// ResourceHealth — состояние одного ресурса в снимке системы.
type ResourceHealth struct {
	// UtilizationPercent — текущая утилизация, 0-100.
	UtilizationPercent float64 `json:"utilization_percent"`

	// LimitPercent — сконфигурированный лимит (advisory).
	LimitPercent float64 `json:"limit_percent"`

	// Health — "healthy", если утилизация ниже лимита, иначе "warning".
	Health string `json:"health"`
}

// SystemResources — снимок утилизации системных ресурсов.
type SystemResources struct {
	Resources map[ResourceType]ResourceHealth `json:"resources"`
	Timestamp time.Time                       `json:"timestamp"`
}
