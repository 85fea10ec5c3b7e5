package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kontrakpro/internal/reminder/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/httputil"
	"kontrakpro/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/reminder-mocks.go -package=mocks Service

// Service defines the reminder operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, in models.CreateInput) (*models.View, error)
	Get(ctx context.Context, id domain.ReminderID) (*models.View, error)
	List(ctx context.Context, status models.ListStatus) ([]models.View, error)
	Complete(ctx context.Context, id domain.ReminderID) (*models.View, error)
	Cancel(ctx context.Context, id domain.ReminderID) (*models.View, error)
	Delete(ctx context.Context, id domain.ReminderID) error
}

// CreateRequest is the body of POST /reminders.
type CreateRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Message      string `json:"message" validate:"max=2000"`
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId" validate:"required"`
	DueDate      string `json:"dueDate" validate:"required"`
}

func (r *CreateRequest) Prepare() {
	r.Title = strings.TrimSpace(r.Title)
	r.Message = strings.TrimSpace(r.Message)
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	r.ResourceID = strings.TrimSpace(r.ResourceID)
	r.DueDate = strings.TrimSpace(r.DueDate)
}

func (r *CreateRequest) Validate() error {
	_, err := models.ParseDueDate(r.DueDate)
	return err
}

// Handler serves the reminder endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the reminder routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reminders", h.handleCreate)
	r.Get("/reminders", h.handleList)
	r.Get("/reminders/{id}", h.handleGet)
	r.Post("/reminders/{id}/complete", h.handleComplete)
	r.Post("/reminders/{id}/cancel", h.handleCancel)
	r.Delete("/reminders/{id}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	v, err := h.service.Create(ctx, models.CreateInput{
		Title:        req.Title,
		Message:      req.Message,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		DueDate:      req.DueDate,
	})
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to create reminder", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := models.ParseListStatus(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views, err := h.service.List(ctx, status)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to list reminders", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, "failed to get reminder", h.service.Get)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, "failed to complete reminder", h.service.Complete)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, "failed to cancel reminder", h.service.Cancel)
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, failure string, call func(context.Context, domain.ReminderID) (*models.View, error)) {
	ctx := r.Context()

	id, err := domain.ParseReminderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := call(ctx, id)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, failure, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseReminderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to delete reminder", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
