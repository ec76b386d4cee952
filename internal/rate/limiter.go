package rate

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/ChayanSD/web-sub001/internal/metrics"
	"github.com/ChayanSD/web-sub001/internal/observability/logger"
)

// Limiter es la façade que usan los consumidores.
// Aplica timeout al backend y fail-open si el backend falla: nunca bloquea
// una operación porque la infraestructura de limiting esté caída.
type Limiter struct {
	store   Store
	backend string // "memory" | "redis"
	timeout time.Duration
}

// Options para construir el Limiter.
type Options struct {
	// RedisAddr presente => backend Redis. Vacío => memoria.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string

	// Timeout del round-trip remoto. Default 2s.
	Timeout time.Duration
}

// NewLimiter selecciona el backend según la configuración (decisión de
// startup, no per-call) y arma la façade.
func NewLimiter(opts Options) *Limiter {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}

	if opts.RedisAddr != "" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		logger.Named("rate").Info("rate limiter backend: redis",
			logger.String("addr", opts.RedisAddr),
		)
		return &Limiter{
			store:   NewRedisStore(client, opts.Prefix),
			backend: "redis",
			timeout: opts.Timeout,
		}
	}

	logger.Named("rate").Info("rate limiter backend: memory (single-process)")
	return &Limiter{
		store:   NewMemoryStore(),
		backend: "memory",
		timeout: opts.Timeout,
	}
}

// NewLimiterWithStore arma la façade sobre un Store ya construido (tests/wiring).
func NewLimiterWithStore(store Store, backend string, timeout time.Duration) *Limiter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Limiter{store: store, backend: backend, timeout: timeout}
}

// Backend devuelve el backend activo ("memory" o "redis").
func (l *Limiter) Backend() string { return l.backend }

// Check chequea el presupuesto para la key dada.
// Si el backend falla o el timeout expira: fail-open (Allowed=true, Degraded=true).
func (l *Limiter) Check(ctx context.Context, key string, lim Limit) Result {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.store.Check(cctx, key, lim.Window, lim.Max)
	if err != nil {
		logger.From(ctx).Warn("rate limit backend unavailable, failing open",
			logger.Component("rate"),
			logger.Backend(l.backend),
			logger.RateKey(key),
			logger.Err(err),
		)
		metrics.RateLimitDecision(l.backend, "fail_open")
		// Estimación best-effort: tratamos el hit como el primero de la ventana.
		return Result{
			Allowed:   true,
			Remaining: lim.Max - 1,
			Reset:     time.Now().Add(lim.Window),
			Degraded:  true,
		}
	}

	if res.Allowed {
		metrics.RateLimitDecision(l.backend, "allowed")
	} else {
		metrics.RateLimitDecision(l.backend, "rejected")
	}
	return res
}
