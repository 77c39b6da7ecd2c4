package student

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"student-registry/internal/httputil"
	"student-registry/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPage    = 1
	defaultPerPage = 10
)

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: m,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/students", h.ListStudents)
	router.Post("/students", h.CreateStudent)
	router.Get("/students/{id}", h.GetStudent)
	router.Put("/students/{id}", h.UpdateStudent)
	router.Patch("/students/{id}", h.UpdateStudent)
	router.Delete("/students/{id}", h.DeleteStudent)
	router.Post("/students/{id}/restore", h.RestoreStudent)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultPage)
	perPage := queryInt(r, "per_page", defaultPerPage)

	// Absent, or anything other than "false" (case-insensitive), means active
	activeOnly := !strings.EqualFold(r.URL.Query().Get("is_active"), "false")

	h.logger.InfoContext(r.Context(), "listing students", "page", page, "per_page", perPage, "active_only", activeOnly)

	result := h.service.ListStudents(r.Context(), page, perPage, activeOnly)

	h.metrics.RecordStudentsListViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "No data provided")
		return
	}

	h.logger.InfoContext(r.Context(), "creating student", "email", fields["email"])

	created, err := h.service.CreateStudent(r.Context(), fields)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			httputil.RespondWithError(w, http.StatusBadRequest, vErr.Message)
			return
		}
		// Creation failures are all reported as a conflict; the log line is
		// the only place the cause is distinguished
		h.logger.ErrorContext(r.Context(), "failed to create student", "error", err)
		httputil.RespondWithError(w, http.StatusConflict, "Email already exists")
		return
	}

	h.metrics.RecordStudentCreated(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Student created",
		"id":      created.ID,
		"student": created,
	})
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	record, err := h.service.GetStudentByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, record)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "No data provided")
		return
	}

	h.logger.InfoContext(r.Context(), "updating student", "id", id)

	updated, err := h.service.UpdateStudent(r.Context(), id, fields)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentUpdated(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Student updated",
		"student": updated,
	})
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deactivating student", "id", id)

	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentDeactivated(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Student deleted successfully",
	})
}

func (h *Handler) RestoreStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	h.logger.InfoContext(r.Context(), "restoring student", "id", id)

	record, err := h.service.RestoreStudent(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentRestored(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Student restored",
		"student": record,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		httputil.RespondWithError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, ErrStudentNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
	case errors.Is(err, ErrEmailTaken):
		httputil.RespondWithError(w, http.StatusConflict, "Email already exists")
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
