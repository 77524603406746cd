// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hylla/tracktask/internal/adapters/server/common"
	"github.com/hylla/tracktask/internal/adapters/wire"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ownerQueryParam names the owner query parameter used by every scoped route.
const ownerQueryParam = "addedBy"

// APIError represents one structured API failure response.
type APIError = wire.APIError

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope = wire.ErrorEnvelope

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	store  app.TaskStore
	logger *log.Logger
	router chi.Router
}

// NewHandler constructs one HTTP API adapter over a task store.
func NewHandler(store app.TaskStore, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &Handler{
		store:  store,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w, allowedMethods(r.URL.Path)...)
	})

	r.Get("/board", h.handleBoard)
	r.Get("/tasks", h.handleListTasks)
	r.Post("/tasks", h.handleCreateTask)
	r.Put("/tasks/reorder", h.handleReorderTasks)
	r.Put("/tasks/{id}", h.handleUpdateTask)
	r.Delete("/tasks/{id}", h.handleDeleteTask)
	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// handleBoard serves GET `/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tasks, err := h.store.ListTasks(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, common.MapAppError("list board", err))
		return
	}
	writeJSON(w, http.StatusOK, common.BoardViewFrom(domain.BoardFromTasks(tasks, ownerID)))
}

// handleListTasks serves GET `/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tasks, err := h.store.ListTasks(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, common.MapAppError("list tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, wire.FromDomainList(tasks))
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := app.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     strings.TrimSpace(req.AddedBy),
	}
	if in.OwnerID == "" {
		h.writeError(w, r, fmt.Errorf("addedBy is required: %w", common.ErrInvalidRequest))
		return
	}
	if strings.TrimSpace(req.Category) != "" {
		category, err := domain.ParseCategory(req.Category)
		if err != nil {
			h.writeError(w, r, common.MapAppError("create task", err))
			return
		}
		in.Category = category
	}
	task, err := h.store.CreateTask(r.Context(), in)
	if err != nil {
		h.writeError(w, r, common.MapAppError("create task", err))
		return
	}
	h.logger.Debug("task created", "task_id", task.ID, "owner", task.OwnerID)
	writeJSON(w, http.StatusCreated, wire.CreateTaskResponse{
		InsertedID: task.ID,
		Task:       wire.FromDomain(task),
	})
}

// handleReorderTasks serves PUT `/tasks/reorder`.
func (h *Handler) handleReorderTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	batch, ok := h.store.(app.BatchReorderer)
	if !ok {
		h.writeError(w, r, fmt.Errorf("batch reorder: %w", common.ErrUnsupported))
		return
	}
	var req wire.ReorderRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	updates := req.OrderUpdates()
	if err := batch.ReorderTasks(r.Context(), ownerID, updates); err != nil {
		h.writeError(w, r, common.MapAppError("reorder tasks", err))
		return
	}
	writeJSON(w, http.StatusOK, wire.ModifiedResponse{ModifiedCount: len(updates)})
}

// handleUpdateTask serves PUT `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req wire.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		h.writeError(w, r, common.MapAppError("update task", err))
		return
	}
	if patch.IsZero() {
		h.writeError(w, r, fmt.Errorf("no fields to update: %w", common.ErrInvalidRequest))
		return
	}
	task, err := h.store.UpdateTask(r.Context(), ownerID, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, common.MapAppError("update task", err))
		return
	}
	writeJSON(w, http.StatusOK, wire.FromDomain(task))
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFrom(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteTask(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, common.MapAppError("delete task", err))
		return
	}
	writeJSON(w, http.StatusOK, wire.DeletedResponse{DeletedCount: 1})
}

// ownerFrom reads the required owner query parameter.
func ownerFrom(r *http.Request) (string, error) {
	ownerID := strings.TrimSpace(r.URL.Query().Get(ownerQueryParam))
	if ownerID == "" {
		return "", fmt.Errorf("%s is required: %w", ownerQueryParam, common.ErrInvalidRequest)
	}
	return ownerID, nil
}

// allowedMethods lists the methods registered for one path.
func allowedMethods(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	switch {
	case path == "board":
		return []string{http.MethodGet}
	case path == "tasks":
		return []string{http.MethodGet, http.MethodPost}
	case path == "tasks/reorder":
		return []string{http.MethodPut}
	case strings.HasPrefix(path, "tasks/"):
		return []string{http.MethodPut, http.MethodDelete}
	default:
		return nil
	}
}

// writeError logs internal failures and writes the mapped response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := writeErrorFrom(w, err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("api request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

// writeErrorFrom maps adapter errors into structured HTTP responses and
// returns the status written.
func writeErrorFrom(w http.ResponseWriter, err error) int {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
		return http.StatusInternalServerError
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnsupported):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
			Hint:    "Send one PUT /tasks/{id} per task instead.",
		})
		return http.StatusNotImplemented
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
		return http.StatusInternalServerError
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
