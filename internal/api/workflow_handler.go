package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/workflow"
)

// ListWorkflows возвращает страницу определений workflow.
// GET /api/v1/workflows?limit=&offset=
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	defs, err := h.workflows.List(r.Context(), limit, offset)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, defs, len(defs))
}

// CreateWorkflow создаёт workflow и его граф-проекцию.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def domain.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if v := workflow.Validate(&def); !v.Valid {
		JSON(w, http.StatusBadRequest, DataResponse{Data: v})
		return
	}

	if err := h.workflows.Create(r.Context(), &def); err != nil {
		HandleDomainError(w, h.logger, err, "")
		return
	}
	Created(w, def)
}

// ValidateWorkflow валидирует определение без сохранения.
// POST /api/v1/workflows/validate
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def domain.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	Success(w, workflow.Validate(&def))
}

// GetWorkflow возвращает определение по id.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := h.workflows.Get(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "workflow not found") {
		return
	}
	Success(w, def)
}

// UpdateWorkflow целиком заменяет определение.
// PUT /api/v1/workflows/{id}
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def domain.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	id := r.PathValue("id")
	def.ID = id
	if v := workflow.Validate(&def); !v.Valid {
		JSON(w, http.StatusBadRequest, DataResponse{Data: v})
		return
	}

	if err := h.workflows.Update(r.Context(), id, &def); err != nil {
		HandleDomainError(w, h.logger, err, "workflow not found")
		return
	}
	Success(w, def)
}

// DeleteWorkflow удаляет определение и каскадно его граф-проекцию.
// DELETE /api/v1/workflows/{id}
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.workflows.Delete(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "workflow not found")
		return
	}
	NoContent(w)
}

// GetWorkflowMetrics возвращает счётчики выполнений workflow.
// GET /api/v1/workflows/{id}/metrics
func (h *Handler) GetWorkflowMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.workflows.Metrics(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "workflow not found") {
		return
	}
	Success(w, metrics)
}

// ListWorkflowExecutions возвращает историю выполнений workflow.
// GET /api/v1/workflows/{id}/executions?limit=
func (h *Handler) ListWorkflowExecutions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	execs, err := h.executions.History(r.Context(), r.PathValue("id"), limit)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, execs, len(execs))
}

// queryInt читает целочисленный query-параметр со значением по умолчанию.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
