// Package audit implementa el trail append-only de usos de credenciales y
// alertas de seguridad.
//
// Contrato fail-soft: ninguna falla de persistencia se propaga al caller.
// Un sink de auditoría roto degrada a una línea de log local, nunca bloquea
// la operación sensible que se está auditando.
package audit

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/ChayanSD/web-sub001/internal/metrics"
	"github.com/ChayanSD/web-sub001/internal/observability/logger"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// Notifier es el sink externo de alertas (solo prod). Best-effort.
type Notifier interface {
	Notify(ctx context.Context, alert core.SecurityAlert) error
}

// Logger persiste eventos de auditoría en el sink durable.
// No posee estado vivo propio: es un one-way sink hacia el storage.
type Logger struct {
	sink     core.AuditSink
	hasher   *Hasher
	notifier Notifier // nil => deshabilitado
	prod     bool

	writeTimeout time.Duration

	sf         singleflight.Group
	statsCache *gocache.Cache
}

// Options para construir el Logger.
type Options struct {
	Sink     core.AuditSink
	Hasher   *Hasher
	Notifier Notifier
	Prod     bool

	WriteTimeout  time.Duration
	StatsCacheTTL time.Duration
}

// NewLogger arma el audit logger. Sink y Hasher son obligatorios.
func NewLogger(opts Options) *Logger {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.StatsCacheTTL <= 0 {
		opts.StatsCacheTTL = 30 * time.Second
	}
	return &Logger{
		sink:         opts.Sink,
		hasher:       opts.Hasher,
		notifier:     opts.Notifier,
		prod:         opts.Prod,
		writeTimeout: opts.WriteTimeout,
		statsCache:   gocache.New(opts.StatsCacheTTL, time.Minute),
	}
}

// KeyAccess describe un uso de credencial sensible, con el user id crudo.
// El hashing ocurre acá adentro: el id crudo nunca llega al sink.
type KeyAccess struct {
	KeyType      string
	Operation    string
	UserID       string
	Success      bool
	ResponseTime time.Duration
	ErrorMessage string
	IPAddress    string
}

// LogKeyAccess persiste el evento. Nunca devuelve error al caller:
// si el sink falla se degrada a log local (warn) y se sigue.
func (l *Logger) LogKeyAccess(ctx context.Context, a KeyAccess) {
	ev := core.KeyUsageEvent{
		KeyType:        a.KeyType,
		Operation:      a.Operation,
		UserHash:       l.hasher.Subject(a.UserID),
		Success:        a.Success,
		ResponseTimeMs: a.ResponseTime.Milliseconds(),
		ErrorMessage:   a.ErrorMessage,
		IPAddress:      a.IPAddress,
		Timestamp:      time.Now().UTC(),
	}

	log := logger.From(ctx)

	// Escritura acotada y desacoplada de la cancelación del request:
	// el evento se persiste aunque el caller ya haya cortado.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.writeTimeout)
	defer cancel()

	if err := l.sink.AppendUsage(wctx, ev); err != nil {
		metrics.AuditWriteFailure("usage")
		log.Warn("audit sink unavailable, key usage degraded to local log",
			logger.Component("audit"),
			logger.KeyType(ev.KeyType),
			logger.Operation(ev.Operation),
			logger.Bool("success", ev.Success),
			logger.Err(err),
		)
	}
}

// Suspicious describe actividad anómala detectada sobre una credencial.
type Suspicious struct {
	ID        string
	KeyType   string
	Operation string
	UserID    string
	Reason    string
	Severity  core.Severity
	Details   map[string]any
}

// LogSuspiciousActivity persiste la alerta y, en prod, la reenvía al
// notifier externo. Mismo contrato fail-soft que LogKeyAccess.
func (l *Logger) LogSuspiciousActivity(ctx context.Context, s Suspicious) {
	alert := core.SecurityAlert{
		ID:        s.ID,
		KeyType:   s.KeyType,
		Operation: s.Operation,
		UserHash:  l.hasher.Subject(s.UserID),
		Reason:    s.Reason,
		Severity:  s.Severity,
		Details:   s.Details,
		Timestamp: time.Now().UTC(),
	}

	log := logger.From(ctx)
	metrics.AlertFired(string(alert.Severity))

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.writeTimeout)
	defer cancel()

	if err := l.sink.AppendAlert(wctx, alert); err != nil {
		metrics.AuditWriteFailure("alert")
		log.Warn("audit sink unavailable, alert degraded to local log",
			logger.Component("audit"),
			logger.KeyType(alert.KeyType),
			logger.Severity(string(alert.Severity)),
			logger.Reason(alert.Reason),
			logger.Err(err),
		)
	}

	if l.prod && l.notifier != nil {
		if err := l.notifier.Notify(wctx, alert); err != nil {
			log.Warn("alert notification failed",
				logger.Component("audit"),
				logger.ID(alert.ID),
				logger.Err(err),
			)
		}
	}
}
