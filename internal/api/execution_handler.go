package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Conductor/internal/domain"
)

// ExecutionRequestBody — тело запроса на запуск выполнения.
type ExecutionRequestBody struct {
	InputData        map[string]any `json:"input_data,omitempty"`
	ExecutionOptions map[string]any `json:"execution_options,omitempty"`
}

// CreateExecution запускает выполнение workflow.
// POST /api/v1/workflows/{id}/executions
func (h *Handler) CreateExecution(w http.ResponseWriter, r *http.Request) {
	var body ExecutionRequestBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	exec, err := h.executions.Execute(r.Context(), domain.ExecutionRequest{
		WorkflowID:       r.PathValue("id"),
		InputData:        body.InputData,
		ExecutionOptions: body.ExecutionOptions,
	})
	if HandleDomainError(w, h.logger, err, "workflow not found") {
		return
	}
	Created(w, exec)
}

// GetExecution возвращает запись выполнения.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.executions.Result(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "execution not found") {
		return
	}
	Success(w, exec)
}

// ListActiveExecutions возвращает выполнения в RUNNING и PAUSED.
// GET /api/v1/executions
func (h *Handler) ListActiveExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := h.executions.Active(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, execs, len(execs))
}

// PauseExecution приостанавливает выполнение.
// POST /api/v1/executions/{id}/pause
func (h *Handler) PauseExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.executions.Pause(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "execution not found")
		return
	}
	Success(w, map[string]string{"status": string(domain.ExecutionStatusPaused)})
}

// ResumeExecution возобновляет приостановленное выполнение.
// POST /api/v1/executions/{id}/resume
func (h *Handler) ResumeExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.executions.Resume(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "execution not found")
		return
	}
	Success(w, map[string]string{"status": string(domain.ExecutionStatusRunning)})
}

// CancelExecution отменяет выполнение. Повторная отмена идемпотентна.
// POST /api/v1/executions/{id}/cancel
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	if err := h.executions.Cancel(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "execution not found")
		return
	}
	Success(w, map[string]string{"status": string(domain.ExecutionStatusCancelled)})
}

// ListExecutionNodes возвращает per-run статусы узлов выполнения.
// GET /api/v1/executions/{id}/nodes
func (h *Handler) ListExecutionNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.executions.NodeStates(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, nodes, len(nodes))
}
