package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.CreateWorkflow)))
	mux.Handle("POST /api/v1/workflows/validate", chain(http.HandlerFunc(h.ValidateWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}", chain(http.HandlerFunc(h.UpdateWorkflow)))
	mux.Handle("DELETE /api/v1/workflows/{id}", chain(http.HandlerFunc(h.DeleteWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}/metrics", chain(http.HandlerFunc(h.GetWorkflowMetrics)))
	mux.Handle("GET /api/v1/workflows/{id}/executions", chain(http.HandlerFunc(h.ListWorkflowExecutions)))

	// Executions
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListActiveExecutions)))
	mux.Handle("POST /api/v1/workflows/{id}/executions", chain(http.HandlerFunc(h.CreateExecution)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("POST /api/v1/executions/{id}/pause", chain(http.HandlerFunc(h.PauseExecution)))
	mux.Handle("POST /api/v1/executions/{id}/resume", chain(http.HandlerFunc(h.ResumeExecution)))
	mux.Handle("POST /api/v1/executions/{id}/cancel", chain(http.HandlerFunc(h.CancelExecution)))
	mux.Handle("GET /api/v1/executions/{id}/nodes", chain(http.HandlerFunc(h.ListExecutionNodes)))

	// Tasks
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("GET /api/v1/tasks/active", chain(http.HandlerFunc(h.ListActiveTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTaskResult)))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", chain(http.HandlerFunc(h.CancelTask)))
	mux.Handle("POST /api/v1/tasks/{id}/resubmit", chain(http.HandlerFunc(h.ResubmitTask)))
	mux.Handle("GET /api/v1/queues/{queue}", chain(http.HandlerFunc(h.GetQueueStatus)))
	mux.Handle("POST /api/v1/queues/{queue}/purge", chain(http.HandlerFunc(h.PurgeQueue)))
	mux.Handle("GET /api/v1/workers", chain(http.HandlerFunc(h.ListWorkers)))

	// Resources
	mux.Handle("GET /api/v1/resources/system", chain(http.HandlerFunc(h.GetSystemResources)))
	mux.Handle("POST /api/v1/resources/allocations", chain(http.HandlerFunc(h.AllocateResources)))
	mux.Handle("POST /api/v1/resources/reservations", chain(http.HandlerFunc(h.ReserveResources)))
	mux.Handle("GET /api/v1/resources/allocations", chain(http.HandlerFunc(h.ListAllocations)))
	mux.Handle("GET /api/v1/resources/allocations/{id}", chain(http.HandlerFunc(h.GetAllocation)))
	mux.Handle("DELETE /api/v1/resources/allocations/{id}", chain(http.HandlerFunc(h.DeallocateResources)))
	mux.Handle("POST /api/v1/resources/reservations/{id}/release", chain(http.HandlerFunc(h.ReleaseReservation)))
	mux.Handle("GET /api/v1/resources/{type}/metrics", chain(http.HandlerFunc(h.GetResourceMetrics)))
	mux.Handle("GET /api/v1/resources/{type}/history", chain(http.HandlerFunc(h.GetResourceHistory)))
	mux.Handle("GET /api/v1/resources/recommendations", chain(http.HandlerFunc(h.GetRecommendations)))

	// Orchestration
	mux.Handle("POST /api/v1/orchestrate/tasks", chain(http.HandlerFunc(h.OrchestrateTask)))
	mux.Handle("POST /api/v1/orchestrate/workflows", chain(http.HandlerFunc(h.OrchestrateWorkflow)))
	mux.Handle("POST /api/v1/orchestrate/batch", chain(http.HandlerFunc(h.OrchestrateBatch)))
	mux.Handle("GET /api/v1/orchestrate/tasks/{id}", chain(http.HandlerFunc(h.GetOrchestratedTask)))
	mux.Handle("GET /api/v1/orchestrate/executions/{id}", chain(http.HandlerFunc(h.GetOrchestrationStatus)))
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetServiceStatus)))
}
