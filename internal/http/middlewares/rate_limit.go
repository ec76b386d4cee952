package middlewares

import (
	"net/http"
	"strconv"
	"time"

	httpx "github.com/ChayanSD/web-sub001/internal/http"
	"github.com/ChayanSD/web-sub001/internal/rate"
)

// KeyFunc deriva la clave de limiting desde el request.
type KeyFunc func(r *http.Request) string

// IPRouteKey limita por IP + ruta lógica (presupuesto independiente por ruta).
func IPRouteKey(route string) KeyFunc {
	return func(r *http.Request) string {
		return rate.IPKey(clientIP(r), route)
	}
}

// ActorRouteKey limita por operador autenticado + ruta; cae a IP si no hay actor.
func ActorRouteKey(route string) KeyFunc {
	return func(r *http.Request) string {
		if actor := GetActor(r.Context()); actor != "" {
			return rate.UserKey(actor, route)
		}
		return rate.IPKey(clientIP(r), route)
	}
}

// WithRateLimit aplica el presupuesto dado antes de pasar al handler.
// LimitExceeded no es un error: responde 429 con Retry-After y sigue de largo.
// Si limiter es nil el middleware es un no-op (rate deshabilitado por config).
func WithRateLimit(limiter *rate.Limiter, lim rate.Limit, keyFn KeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Check(r.Context(), keyFn(r), lim)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lim.Max, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))

			if !res.Allowed {
				retry := int(res.RetryAfter / time.Second)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited",
					"demasiados requests, reintentar más tarde")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
