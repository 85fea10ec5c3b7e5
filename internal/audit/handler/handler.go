package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kontrakpro/internal/audit/models"
	"kontrakpro/pkg/platform/httputil"
	"kontrakpro/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/audit-mocks.go -package=mocks Service

// Service defines the audit operations exposed over HTTP.
type Service interface {
	LogEvent(ctx context.Context, in models.EventInput) (*models.Event, error)
	QueryEvents(ctx context.Context, q models.Query) (*models.EventPage, error)
	Diff(old, new models.Snapshot) []models.Change
	Export(ctx context.Context, f models.Filter, format models.ExportFormat) ([]byte, error)
}

// Handler serves the audit trail endpoints.
type Handler struct {
	service    Service
	logger     *slog.Logger
	writeGuard func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithWriteGuard wraps POST /audit-events, usually with
// middleware.RequireAuth so the actor always comes from the token.
func WithWriteGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeGuard = mw
	}
}

// New creates a new audit Handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	write := r
	if h.writeGuard != nil {
		write = r.With(h.writeGuard)
	}
	write.Post("/audit-events", h.handleLogEvent)
	r.Get("/audit-events", h.handleQueryEvents)
	r.Get("/audit-events/export", h.handleExport)
	r.Post("/audit-events/diff", h.handleDiff)
}

func (h *Handler) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LogEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	eventType := models.EventType(req.EventType)
	details, err := models.DecodeDetails(eventType, req.Details)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actor := models.Actor{UserID: req.UserID, UserName: req.UserName, UserEmail: req.UserEmail}
	if p, ok := requestcontext.Principal(ctx); ok {
		actor = models.Actor{UserID: p.UserID, UserName: p.UserName, UserEmail: p.UserEmail}
	}

	event, err := h.service.LogEvent(ctx, models.EventInput{
		Type:         eventType,
		ContractID:   req.ContractID,
		ContractName: req.ContractName,
		Actor:        actor,
		Provenance: models.Provenance{
			IPAddress: requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
		},
		Details: details,
	})
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to log audit event", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.QueryEvents(ctx, q)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to query audit events", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format, err := models.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.service.Export(ctx, f, format)
	if err != nil {
		httputil.LogServiceError(ctx, h.logger, "failed to export audit events", err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-events.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DiffRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DiffResponse{Changes: h.service.Diff(req.Old, req.New)})
}
