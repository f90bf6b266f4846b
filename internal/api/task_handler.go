package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Conductor/internal/domain"
)

// CreateTask отправляет задачу брокеру.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req domain.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.TaskName == "" {
		BadRequest(w, "task_name is required")
		return
	}

	taskID, err := h.tasks.CreateTask(r.Context(), req)
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Created(w, map[string]string{"task_id": taskID})
}

// GetTaskResult возвращает результат задачи.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.tasks.GetTaskResult(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "task not found") {
		return
	}
	Success(w, result)
}

// CancelTask отзывает задачу с принудительной остановкой.
// POST /api/v1/tasks/{id}/cancel
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.CancelTask(r.Context(), r.PathValue("id")); err != nil {
		HandleDomainError(w, h.logger, err, "task not found")
		return
	}
	Success(w, map[string]string{"status": string(domain.TaskStatusCancelled)})
}

// ResubmitTask отправляет новую задачу с параметрами исходной.
// POST /api/v1/tasks/{id}/resubmit
func (h *Handler) ResubmitTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.tasks.ResubmitTask(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "task not found") {
		return
	}
	Created(w, map[string]string{"task_id": taskID})
}

// ListActiveTasks возвращает id задач в обработке.
// GET /api/v1/tasks/active
func (h *Handler) ListActiveTasks(w http.ResponseWriter, r *http.Request) {
	ids, err := h.tasks.ActiveTasks(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	List(w, ids, len(ids))
}

// GetQueueStatus возвращает глубину очереди и количество активных задач.
// GET /api/v1/queues/{queue}
func (h *Handler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.tasks.GetQueueStatus(r.Context(), r.PathValue("queue"))
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Success(w, status)
}

// PurgeQueue удаляет все ожидающие задачи очереди.
// POST /api/v1/queues/{queue}/purge
func (h *Handler) PurgeQueue(w http.ResponseWriter, r *http.Request) {
	removed, err := h.tasks.PurgeQueue(r.Context(), r.PathValue("queue"))
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Success(w, map[string]int{"removed": removed})
}

// ListWorkers возвращает статистику воркеров.
// GET /api/v1/workers
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.WorkerStats(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}
	Success(w, stats)
}
