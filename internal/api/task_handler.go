// Package api provides HTTP handlers for the API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/store"
	"github.com/voxhollow/voxqueue-api/internal/task"
)

// maxSubmitBodySize bounds a submission body; payloads carry metadata and
// text, never the audio itself.
const maxSubmitBodySize = 1 << 20

// TaskService is the queue surface the handlers need.
type TaskService interface {
	Submit(ctx context.Context, taskType domain.TaskType, payload json.RawMessage, priority int) (string, error)
	GetStatus(ctx context.Context, id string) (*domain.TaskResult, error)
	GetStats(ctx context.Context) (*domain.QueueStats, error)
	GetHistory(ctx context.Context, limit int, statusFilter domain.TaskStatus) ([]*domain.TaskResult, error)
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	service  TaskService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "task_handler")),
	}
}

// SubmitTask handles POST /api/tasks requests.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBodySize))
	if err := decoder.Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "task_type and payload are required")
		return
	}

	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	}

	taskID, err := h.service.Submit(r.Context(), domain.TaskType(req.TaskType), req.Payload, priority)
	if err != nil {
		if isAdmissionError(err) {
			respondError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to submit task", "error", err)
		respondError(w, h.logger, http.StatusInternalServerError, "failed to submit task")
		return
	}

	respondJSON(w, h.logger, http.StatusAccepted, SubmitTaskResponse{TaskID: taskID})
}

// GetTaskStatus handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			respondError(w, h.logger, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("failed to load task status", "task_id", id, "error", err)
		respondError(w, h.logger, http.StatusInternalServerError, "failed to load task status")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, res)
}

// GetStats handles GET /api/stats requests.
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to derive queue stats", "error", err)
		respondError(w, h.logger, http.StatusInternalServerError, "failed to derive queue stats")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, stats)
}

// GetHistory handles GET /api/tasks requests. Supports limit and status
// query parameters; results are sorted by updated_at descending.
func (h *TaskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, h.logger, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	statusFilter := domain.TaskStatus(r.URL.Query().Get("status"))

	results, err := h.service.GetHistory(r.Context(), limit, statusFilter)
	if err != nil {
		h.logger.Error("failed to load task history", "error", err)
		respondError(w, h.logger, http.StatusInternalServerError, "failed to load task history")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, results)
}

// GetLanguages handles GET /api/languages requests with the static set of
// language hints the transcription engine accepts.
func (h *TaskHandler) GetLanguages(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, map[string]string{
		"auto": "Auto-detect",
		"en":   "English",
		"th":   "Thai",
		"zh":   "Chinese",
		"ja":   "Japanese",
		"de":   "German",
		"fr":   "French",
		"es":   "Spanish",
	})
}

func isAdmissionError(err error) bool {
	return errors.Is(err, domain.ErrInvalidTaskType) ||
		errors.Is(err, domain.ErrEmptyTaskPayload) ||
		errors.Is(err, task.ErrInvalidPayload) ||
		errors.Is(err, task.ErrMissingFilePath) ||
		errors.Is(err, task.ErrMissingText)
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	respondJSON(w, logger, status, ErrorResponse{Error: message})
}
