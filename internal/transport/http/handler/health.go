package handler

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the verification store is reachable.
type HealthHandler struct {
	store pinger
}

func NewHealthHandler(store pinger) *HealthHandler { return &HealthHandler{store: store} }

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, MessageEnvelope{Message: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}
