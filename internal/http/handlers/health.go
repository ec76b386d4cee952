package handlers

import (
	"net/http"

	httpx "github.com/ChayanSD/web-sub001/internal/http"
	"github.com/ChayanSD/web-sub001/internal/rate"
)

// Health expone el readiness del servicio.
type Health struct {
	Limiter *rate.Limiter
}

// Healthz: GET /healthz
func (h *Health) Healthz(w http.ResponseWriter, r *http.Request) {
	backend := "disabled"
	if h.Limiter != nil {
		backend = h.Limiter.Backend()
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"rate_backend": backend,
	})
}
