package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/httputil"
	"kontrakpro/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/notification-mocks.go -package=mocks Service

// Service defines the notification operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, in models.CreateInput) (*models.Notification, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID) (*models.Notification, error)
	MarkAllRead(ctx context.Context) (*models.MarkAllResult, error)
	UnreadCount(ctx context.Context) (int, error)
}

// Handler serves the notification endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the notification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/notifications", h.handleCreate)
	r.Get("/notifications", h.handleList)
	r.Get("/notifications/unread-count", h.handleUnreadCount)
	r.Post("/notifications/read-all", h.handleMarkAllRead)
	r.Patch("/notifications/{id}/read", h.handleMarkRead)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	n, err := h.service.Create(ctx, req.toInput())
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to create notification", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, n)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	list, err := h.service.List(ctx, models.ListFilter{
		Status: models.Status(q.Get("status")),
		Type:   q.Get("type"),
	})
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to list notifications", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.MarkRead(ctx, id)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to mark notification read", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := h.service.MarkAllRead(ctx)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to mark all notifications read", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.service.UnreadCount(ctx)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to count unread notifications", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}
