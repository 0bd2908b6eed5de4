package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-api/internal/application/user"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/transport/http/middleware"
)

// UserHandler handles profile and admin user endpoints.
type UserHandler struct {
	svc user.Service
	errorWriter
}

func NewUserHandler(svc user.Service, opts Options) *UserHandler {
	return &UserHandler{svc: svc, errorWriter: newErrorWriter(opts)}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.httpError(w, r, domain.ErrUnauthorized)
		return
	}
	u, err := h.svc.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(u))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.httpError(w, r, domain.ErrUnauthorized)
		return
	}
	var req domain.UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	u, token, err := h.svc.UpdateProfile(r.Context(), claims.UserID, req)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{UserPayload: toUserPayload(u), Token: token})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.httpError(w, r, fmt.Errorf("limit must be a positive integer: %w", domain.ErrValidation))
			return
		}
		limit = n
	}
	users, next, err := h.svc.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	out := make([]UserPayload, len(users))
	for i := range users {
		out[i] = toUserPayload(&users[i])
	}
	writeJSON(w, http.StatusOK, PaginatedUsersEnvelope{Users: out, NextCursor: next})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(u))
}
