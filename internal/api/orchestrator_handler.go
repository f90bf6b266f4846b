package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Conductor/internal/conductor"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/taskqueue"
)

// OrchestrateWorkflowBody — тело запроса оркестрации workflow.
type OrchestrateWorkflowBody struct {
	Definition *domain.WorkflowDefinition `json:"definition"`
	InputData  map[string]any             `json:"input_data,omitempty"`
	Tasks      []domain.TaskRequest       `json:"tasks,omitempty"`
}

// OrchestrateTask выделяет бюджет ресурсов и отправляет задачу.
// POST /api/v1/orchestrate/tasks
func (h *Handler) OrchestrateTask(w http.ResponseWriter, r *http.Request) {
	var req domain.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.conductor.CreateAndExecuteTask(r.Context(), callerFrom(r), req)
	if err != nil {
		handleConductorError(w, err)
		return
	}
	writeEnvelope(w, result, http.StatusCreated)
}

// OrchestrateWorkflow создаёт workflow с бюджетом ресурсов и запускает его.
// POST /api/v1/orchestrate/workflows
func (h *Handler) OrchestrateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body OrchestrateWorkflowBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.conductor.CreateAndExecuteWorkflow(r.Context(), callerFrom(r), body.Definition, body.InputData)
	if err != nil {
		handleConductorError(w, err)
		return
	}
	writeEnvelope(w, result, http.StatusCreated)
}

// OrchestrateBatch запускает workflow вместе с пакетом задач.
// Частичные провалы задач не прерывают пакет.
// POST /api/v1/orchestrate/batch
func (h *Handler) OrchestrateBatch(w http.ResponseWriter, r *http.Request) {
	var body OrchestrateWorkflowBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.conductor.OrchestrateWorkflowWithTasks(r.Context(), callerFrom(r), body.Definition, body.Tasks, body.InputData)
	if err != nil {
		handleConductorError(w, err)
		return
	}
	writeEnvelope(w, result, http.StatusCreated)
}

// GetOrchestratedTask возвращает результат задачи вместе со
// статусом её выделения ресурсов.
// GET /api/v1/orchestrate/tasks/{id}
func (h *Handler) GetOrchestratedTask(w http.ResponseWriter, r *http.Request) {
	result, err := h.conductor.GetTaskStatusWithResources(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		handleConductorError(w, err)
		return
	}
	writeEnvelope(w, result, http.StatusOK)
}

// GetOrchestrationStatus возвращает сводный статус выполнения.
// GET /api/v1/orchestrate/executions/{id}
func (h *Handler) GetOrchestrationStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.conductor.GetOrchestrationStatus(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		handleConductorError(w, err)
		return
	}
	writeEnvelope(w, result, http.StatusOK)
}

// GetServiceStatus возвращает состояние подсистем.
// GET /api/v1/status
func (h *Handler) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.conductor.GetServiceStatus(r.Context()))
}

// writeEnvelope отдаёт envelope оркестратора как есть, подбирая
// HTTP статус по его коду ошибки.
func writeEnvelope(w http.ResponseWriter, result conductor.Result, okStatus int) {
	if result.OK() {
		JSON(w, okStatus, result)
		return
	}

	status := http.StatusInternalServerError
	switch result.ErrorCode() {
	case conductor.CodePermissionDenied:
		status = http.StatusForbidden
	case conductor.CodeResourceUnavailable:
		status = http.StatusConflict
	case conductor.CodeNotFound:
		status = http.StatusNotFound
	case conductor.CodeTaskError, conductor.CodeWorkflowError, conductor.CodeExecutionError:
		status = http.StatusBadGateway
	}
	JSON(w, status, result)
}

// handleConductorError транслирует ошибки вызывающего в 400.
func handleConductorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conductor.ErrEmptyTaskName),
		errors.Is(err, conductor.ErrNilDefinition),
		errors.Is(err, conductor.ErrInvalidDefinition),
		errors.Is(err, taskqueue.ErrHandlerNotFound),
		errors.Is(err, taskqueue.ErrEmptyTaskName):
		BadRequest(w, err.Error())
	default:
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
	}
}
