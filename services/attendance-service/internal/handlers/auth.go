package handlers

import (
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/ecochurch/libs/httpx"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/authgate"
)

type registerRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type profileRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	u, err := h.gate.Register(r.Context(), req.Name, req.Identifier, req.Password)
	switch {
	case errors.Is(err, authgate.ErrDuplicateIdentifier), errors.Is(err, authgate.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("register failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "storage error")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	u, err := h.gate.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		// Unknown user and wrong password look the same to the caller.
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	u, err := h.gate.UpdateProfile(r.Context(), r.PathValue("id"), req.Name, req.Avatar)
	switch {
	case errors.Is(err, authgate.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.logger.Error("update profile failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "storage error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
