// Package handlers implementa los endpoints operacionales del subsistema
// de seguridad de claves: rotación, estado de validación y stats de uso.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ChayanSD/web-sub001/internal/audit"
	httpx "github.com/ChayanSD/web-sub001/internal/http"
	"github.com/ChayanSD/web-sub001/internal/http/middlewares"
	"github.com/ChayanSD/web-sub001/internal/security/keyguard"
	"github.com/ChayanSD/web-sub001/internal/security/keys"
)

// Security agrupa los handlers del admin API de claves.
type Security struct {
	Manager *keyguard.Manager
	Audit   *audit.Logger
}

type rotateIn struct {
	KeyType string `json:"key_type"`
	NewKey  string `json:"new_key"`
	Reason  string `json:"reason,omitempty"`
}

type rotateOut struct {
	KeyType   string    `json:"key_type"`
	RotatedAt time.Time `json:"rotated_at"`
	Actor     string    `json:"actor"`
}

// RotateKey: POST /v1/security/keys/rotate
// El operador autenticado reemplaza una credencial. La validación de formato
// es all-or-nothing: si falla, la clave anterior queda intacta y se responde 400.
func (h *Security) RotateKey(w http.ResponseWriter, r *http.Request) {
	var in rotateIn
	if !httpx.ReadJSON(w, r, &in) {
		return
	}

	kt := keys.KeyType(strings.ToLower(strings.TrimSpace(in.KeyType)))
	if !keys.Known(kt) {
		httpx.WriteError(w, http.StatusBadRequest, "unknown_key_type",
			"key_type debe ser uno de: auth, openai, stripe, webhook")
		return
	}
	if in.NewKey == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing_new_key", "new_key es requerido")
		return
	}

	actor := middlewares.GetActor(r.Context())

	if err := h.Manager.Keys().Rotate(r.Context(), kt, in.NewKey, actor); err != nil {
		var verr *keys.ValidationError
		if errors.As(err, &verr) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_key_format", verr.Reason)
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "rotation_failed", "no se pudo rotar la clave")
		return
	}

	rotatedAt, _ := h.Manager.Keys().LastRotated(kt)
	httpx.WriteJSON(w, http.StatusOK, rotateOut{
		KeyType:   string(kt),
		RotatedAt: rotatedAt,
		Actor:     actor,
	})
}

type statusOut struct {
	Valid bool                 `json:"valid"`
	Keys  []keyguard.KeyStatus `json:"keys"`
}

// KeyStatus: GET /v1/security/keys/status
// Estado valid/invalid por tipo + last_validated, para health operacional.
// Un set inválido no es un 5xx: el estado se reporta igual con valid=false.
func (h *Security) KeyStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.Manager.ValidateKeys(r.Context())
	httpx.WriteJSON(w, http.StatusOK, statusOut{
		Valid: err == nil,
		Keys:  statuses,
	})
}

type statsOut struct {
	WindowDays int   `json:"window_days"`
	Stats      []any `json:"stats"`
}

// UsageStats: GET /v1/security/usage/stats?key_type=&days=
// Agregado histórico de usos por tipo de credencial. Set vacío ante falla
// del storage (fail-soft, nunca 5xx por el sink).
func (h *Security) UsageStats(w http.ResponseWriter, r *http.Request) {
	keyType := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("key_type")))
	if keyType != "" && !keys.Known(keys.KeyType(keyType)) {
		httpx.WriteError(w, http.StatusBadRequest, "unknown_key_type",
			"key_type debe ser uno de: auth, openai, stripe, webhook")
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	stats := h.Audit.GetKeyUsageStats(r.Context(), keyType, days)
	out := statsOut{WindowDays: days, Stats: make([]any, 0, len(stats))}
	for _, st := range stats {
		out.Stats = append(out.Stats, map[string]any{
			"key_type":        st.KeyType,
			"total_calls":     st.TotalCalls,
			"success_calls":   st.SuccessCalls,
			"avg_response_ms": st.AvgResponseMs,
			"last_used_at":    st.LastUsedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
