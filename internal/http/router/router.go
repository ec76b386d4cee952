// Package router define las rutas HTTP del servicio de seguridad de claves.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ChayanSD/web-sub001/internal/audit"
	"github.com/ChayanSD/web-sub001/internal/http/handlers"
	mw "github.com/ChayanSD/web-sub001/internal/http/middlewares"
	"github.com/ChayanSD/web-sub001/internal/rate"
	"github.com/ChayanSD/web-sub001/internal/security/keyguard"
)

// Deps contiene las dependencias para armar el router.
type Deps struct {
	Manager *keyguard.Manager
	Audit   *audit.Logger
	Limiter *rate.Limiter // nil => rate deshabilitado

	// AuthLimit protege los endpoints de operador (presupuesto de auth).
	AuthLimit rate.Limit
	// APILimit protege los endpoints de lectura.
	APILimit rate.Limit

	OperatorJWTSecret string
	MetricsHandler    http.Handler
}

// New arma el router chi con todas las rutas del servicio.
func New(deps Deps) http.Handler {
	sec := &handlers.Security{Manager: deps.Manager, Audit: deps.Audit}
	health := &handlers.Health{Limiter: deps.Limiter}

	r := chi.NewRouter()
	r.Use(mw.WithRequestID(), mw.WithLogging())

	r.Get("/healthz", health.Healthz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/v1/security", func(r chi.Router) {
		r.Use(mw.RequireOperator(deps.OperatorJWTSecret))

		r.With(mw.WithRateLimit(deps.Limiter, deps.AuthLimit, mw.ActorRouteKey("keys.rotate"))).
			Post("/keys/rotate", sec.RotateKey)

		r.With(mw.WithRateLimit(deps.Limiter, deps.APILimit, mw.ActorRouteKey("keys.status"))).
			Get("/keys/status", sec.KeyStatus)

		r.With(mw.WithRateLimit(deps.Limiter, deps.APILimit, mw.ActorRouteKey("usage.stats"))).
			Get("/usage/stats", sec.UsageStats)
	})

	return r
}
