package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/ecochurch/libs/httpx"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/views"
)

type syncStatusResponse struct {
	Transport string `json:"transport"`
	syncbus.IndicatorStatus
}

// visible returns the collection the caller may see under the configured visibility.
func (h *Handler) visible(r *http.Request) []model.Appointment {
	userID, _ := actingUser(r, r.URL.Query().Get("userId"), "")
	return views.ScopeToOwner(h.records.List(), h.cfg.Visibility, userID)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, views.BuildDashboard(h.visible(r), r.URL.Query().Get("church")))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.Status(strings.TrimSpace(q.Get("status")))
	if status != "" && !status.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "unknown status")
		return
	}
	f := views.Filter{Church: q.Get("church"), Text: q.Get("q"), Status: status}
	httpx.WriteJSON(w, http.StatusOK, f.Apply(h.visible(r)))
}

func (h *Handler) Team(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, views.Team(h.visible(r), strings.TrimSpace(r.URL.Query().Get("user"))))
}

func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, model.DefaultCatalog())
}

func (h *Handler) SyncStatus(w http.ResponseWriter, _ *http.Request) {
	resp := syncStatusResponse{Transport: h.cfg.Transport}
	if h.indicator != nil {
		resp.IndicatorStatus = h.indicator.Status()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
