package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/ecochurch/libs/httpx"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/followup"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/records"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/views"
)

type createAppointmentRequest struct {
	model.AppointmentFields
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type blobBody struct {
	Blob string `json:"blob"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

type followupResponse struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	userID, _ := actingUser(r, r.URL.Query().Get("userId"), "")
	httpx.WriteJSON(w, http.StatusOK, views.ScopeToOwner(h.records.List(), h.cfg.Visibility, userID))
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	id, name := actingUser(r, req.UserID, req.UserName)
	if name == "" && id != "" && h.gate != nil {
		if u, ok := h.gate.Lookup(r.Context(), id); ok {
			name = u.Name
		}
	}
	created, err := h.records.Create(r.Context(), req.AppointmentFields, records.Owner{ID: id, Name: name})
	if err != nil {
		h.writeRecordError(w, r, "create appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var patch model.AppointmentPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	updated, err := h.records.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.writeRecordError(w, r, "update appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	done, err := h.records.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeRecordError(w, r, "complete appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, done)
}

func (h *Handler) DraftFollowup(w http.ResponseWriter, r *http.Request) {
	a, err := h.records.Get(r.PathValue("id"))
	if err != nil {
		h.writeRecordError(w, r, "draft followup", err)
		return
	}
	provider := h.drafter.ProviderID()
	msg, err := h.drafter.Draft(r.Context(), followup.Request{Name: a.Name, Church: a.Church, Time: a.Time, Notes: a.Notes})
	if err != nil {
		h.logger.Warn("followup draft failed", "err", err, "provider", provider, "appointment_id", a.ID)
		msg = followup.Template(followup.Request{Name: a.Name, Church: a.Church, Time: a.Time})
		provider = followup.TemplateDrafter{}.ProviderID()
	}
	httpx.WriteJSON(w, http.StatusOK, followupResponse{Message: msg, Provider: provider})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	blob, err := h.records.Export()
	if err != nil {
		h.writeRecordError(w, r, "export", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, blobBody{Blob: blob})
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req blobBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	n, err := h.records.Import(r.Context(), req.Blob)
	if err != nil {
		h.writeRecordError(w, r, "import", err)
		return
	}
	h.logger.Info("appointments imported", "count", n)
	httpx.WriteJSON(w, http.StatusOK, importResponse{Imported: n})
}
