package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// TaskService is what the HTTP layer needs from the service.
type TaskService interface {
	GetTaskByID(ctx context.Context, id int64) (Task, error)
	GetAllTasks(ctx context.Context) ([]Task, error)
	SaveTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, id int64, patch TaskPatch) (Task, error)
	CompleteTask(ctx context.Context, id int64) (Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   bool       `json:"completed"`
}

// toTask drops any client-supplied id or timestamps.
func (req createTaskRequest) toTask() Task {
	return Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     normalizeTime(req.DueDate),
		Completed:   req.Completed,
	}
}

type errResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Errors    any       `json:"errors"`
	Status    int       `json:"status,omitempty"`
}

const (
	msgNotFound   = "Task not found"
	msgUnexpected = "An error occurred"
)

type handler struct {
	svc    TaskService
	logger *slog.Logger
}

func RegisterRoutes(r chi.Router, svc TaskService, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, logger: logger}

	r.Get("/api/tasks", h.listTasks)
	r.Post("/api/tasks", h.createTask)
	r.Get("/api/tasks/{taskID}", h.getTask)
	r.Put("/api/tasks/{taskID}", h.updateTask)
	r.Put("/api/tasks/{taskID}/complete", h.completeTask)
	r.Delete("/api/tasks/{taskID}", h.deleteTask)
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.GetAllTasks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.svc.GetTaskByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	t := req.toTask()
	if err := ValidateTask(t); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.svc.SaveTask(r.Context(), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var patch TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch.DueDate = normalizeTime(patch.DueDate)
	if err := patch.validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.svc.UpdateTask(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.svc.CompleteTask(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteTask(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func taskIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil {
		return 0, newValidationError(FieldError{Field: "id", Message: "must be an integer"})
	}
	return id, nil
}

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads exactly one JSON value from a body of at most maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return newValidationError(FieldError{Field: "body", Message: "too large"})
		}
		return newValidationError(FieldError{Field: "body", Message: "malformed JSON"})
	}
	if dec.More() {
		return newValidationError(FieldError{Field: "body", Message: "malformed JSON"})
	}
	return nil
}

// writeError maps service failures onto status codes. Unexpected errors are
// logged and replaced with a generic message.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errResponse{
			Timestamp: time.Now().UTC(),
			Errors:    vErr.Messages(),
			Status:    http.StatusBadRequest,
		})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{
			Timestamp: time.Now().UTC(),
			Errors:    msgNotFound,
		})
	default:
		h.logger.ErrorContext(r.Context(), "request_failed",
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{
			Timestamp: time.Now().UTC(),
			Errors:    msgUnexpected,
		})
	}
}

// WriteRouteError renders the API error body for router-level failures such
// as unknown paths or unsupported methods.
func WriteRouteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResponse{Timestamp: time.Now().UTC(), Errors: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
