package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shaiso/Conductor/internal/domain"
)

// GetSystemResources возвращает снимок утилизации системы.
// GET /api/v1/resources/system
func (h *Handler) GetSystemResources(w http.ResponseWriter, r *http.Request) {
	snap, err := h.resources.GetSystemResources(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Success(w, snap)
}

// AllocateResources выделяет ресурсы по запросу.
// POST /api/v1/resources/allocations
func (h *Handler) AllocateResources(w http.ResponseWriter, r *http.Request) {
	var req domain.ResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	alloc, err := h.resources.AllocateResources(r.Context(), req)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Created(w, alloc)
}

// ReserveResources резервирует ресурсы под будущее использование.
// POST /api/v1/resources/reservations
func (h *Handler) ReserveResources(w http.ResponseWriter, r *http.Request) {
	var req domain.ResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	alloc, err := h.resources.ReserveResources(r.Context(), req)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Created(w, alloc)
}

// ListAllocations возвращает активные выделения.
// GET /api/v1/resources/allocations
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.resources.ActiveAllocations(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, allocs, len(allocs))
}

// GetAllocation возвращает выделение по id.
// GET /api/v1/resources/allocations/{id}
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	alloc, err := h.resources.GetAllocation(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "allocation not found") {
		return
	}
	Success(w, alloc)
}

// DeallocateResources освобождает выделение. Идемпотентно.
// DELETE /api/v1/resources/allocations/{id}
func (h *Handler) DeallocateResources(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.DeallocateResources(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "allocation not found")
		return
	}
	NoContent(w)
}

// ReleaseReservation возвращает резерв в пул. Идемпотентно.
// POST /api/v1/resources/reservations/{id}/release
func (h *Handler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.resources.ReleaseReservation(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "reservation not found")
		return
	}
	Success(w, map[string]string{"status": string(domain.AllocationAvailable)})
}

// GetResourceMetrics возвращает свежий сэмпл одного типа ресурса.
// GET /api/v1/resources/{type}/metrics
func (h *Handler) GetResourceMetrics(w http.ResponseWriter, r *http.Request) {
	rt, ok := parseResourceType(r.PathValue("type"))
	if !ok {
		BadRequest(w, "unknown resource type")
		return
	}

	metrics, err := h.resources.GetResourceMetrics(r.Context(), rt)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Success(w, metrics)
}

// GetResourceHistory возвращает сэмплы за последние hours часов.
// GET /api/v1/resources/{type}/history?hours=
func (h *Handler) GetResourceHistory(w http.ResponseWriter, r *http.Request) {
	rt, ok := parseResourceType(r.PathValue("type"))
	if !ok {
		BadRequest(w, "unknown resource type")
		return
	}

	samples := h.resources.GetResourceHistory(rt, queryInt(r, "hours", 1))
	List(w, samples, len(samples))
}

// GetRecommendations возвращает рекомендации по разгрузке.
// GET /api/v1/resources/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.resources.OptimizeResources(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, recs, len(recs))
}

func parseResourceType(raw string) (domain.ResourceType, bool) {
	rt := domain.ResourceType(strings.ToUpper(raw))
	for _, known := range domain.ResourceTypes {
		if rt == known {
			return rt, true
		}
	}
	return "", false
}
