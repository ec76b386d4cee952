// Package rate implementa el limitador fixed-window con backend intercambiable.
//
// Dos backends implementan el contrato Store:
//   - MemoryStore: map en memoria, single-process, con tope de cardinalidad.
//   - RedisStore: INCR + EXPIRE contra Redis, compartido entre réplicas.
//
// El Limiter (façade) decide fail-open cuando el backend remoto falla.
package rate

import (
	"context"
	"time"
)

// Result es el resultado de un chequeo de rate limit.
type Result struct {
	Allowed    bool
	Remaining  int64
	Reset      time.Time
	RetryAfter time.Duration

	// Degraded indica que el backend falló y la respuesta es fail-open
	// (best-effort, no hubo conteo real).
	Degraded bool
}

// Store es el contrato fixed-window.
// Primer hit en una ventana crea la entrada con count=1; hits rechazados
// NO incrementan el contador; al vencer la ventana la entrada se reemplaza.
type Store interface {
	Check(ctx context.Context, key string, window time.Duration, max int64) (Result, error)
}
