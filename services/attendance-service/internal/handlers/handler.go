package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/ecochurch/libs/httpx"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/authgate"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/followup"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/records"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/views"
)

type Config struct {
	// Transport is reported by /api/sync/status.
	Transport  string
	Visibility views.Visibility
}

type Handler struct {
	records   *records.Service
	gate      *authgate.Gate
	drafter   followup.Drafter
	indicator *syncbus.Indicator
	logger    *slog.Logger
	cfg       Config
}

func New(svc *records.Service, gate *authgate.Gate, drafter followup.Drafter, indicator *syncbus.Indicator, logger *slog.Logger, cfg Config) *Handler {
	if drafter == nil {
		drafter = followup.TemplateDrafter{}
	}
	if cfg.Visibility == "" {
		cfg.Visibility = views.VisibilityGlobal
	}
	return &Handler{
		records:   svc,
		gate:      gate,
		drafter:   drafter,
		indicator: indicator,
		logger:    logger,
		cfg:       cfg,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/appointments", h.ListAppointments)
	mux.HandleFunc("POST /api/appointments", h.CreateAppointment)
	mux.HandleFunc("PUT /api/appointments/{id}", h.UpdateAppointment)
	mux.HandleFunc("POST /api/appointments/{id}/complete", h.CompleteAppointment)
	mux.HandleFunc("POST /api/appointments/{id}/followup", h.DraftFollowup)
	mux.HandleFunc("GET /api/export", h.Export)
	mux.HandleFunc("POST /api/import", h.Import)

	mux.HandleFunc("POST /api/auth/register", h.RegisterUser)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("PUT /api/users/{id}/profile", h.UpdateProfile)

	mux.HandleFunc("GET /api/views/dashboard", h.Dashboard)
	mux.HandleFunc("GET /api/views/history", h.History)
	mux.HandleFunc("GET /api/views/team", h.Team)
	mux.HandleFunc("GET /api/catalog", h.Catalog)
	mux.HandleFunc("GET /api/sync/status", h.SyncStatus)
}

// writeRecordError maps record operation errors to status codes.
func (h *Handler) writeRecordError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, records.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, records.ErrInvalidAppointment), errors.Is(err, records.ErrMalformedImport):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(op+" failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "storage error")
	}
}

// actingUser reads the caller from the identity headers, falling back to the given values.
func actingUser(r *http.Request, id, name string) (string, string) {
	if v := strings.TrimSpace(r.Header.Get(httpx.UserIDHeader)); v != "" {
		id = v
	}
	if v := strings.TrimSpace(r.Header.Get(httpx.UserNameHeader)); v != "" {
		name = v
	}
	return strings.TrimSpace(id), strings.TrimSpace(name)
}
