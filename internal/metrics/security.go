// Package metrics expone los contadores Prometheus del subsistema de seguridad.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	rateLimitDecisions *prometheus.CounterVec
	keyUsageTotal      *prometheus.CounterVec
	securityAlerts     *prometheus.CounterVec
	auditWriteFailures *prometheus.CounterVec
)

// Register inicializa y registra las métricas. Devuelve el handler para /metrics.
// Idempotente: llamadas posteriores devuelven el mismo handler.
func Register(registry prometheus.Registerer) http.Handler {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		rateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Decisiones del rate limiter por backend y resultado",
		}, []string{"backend", "outcome"}) // outcome: allowed|rejected|fail_open

		keyUsageTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "key_usage_events_total",
			Help: "Usos de credenciales sensibles por tipo y éxito",
		}, []string{"key_type", "success"})

		securityAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "security_alerts_total",
			Help: "Alertas de seguridad generadas por severidad",
		}, []string{"severity"})

		auditWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Escrituras de auditoría que degradaron a log local",
		}, []string{"kind"}) // kind: usage|alert

		registry.MustRegister(rateLimitDecisions, keyUsageTotal, securityAlerts, auditWriteFailures)
	})

	return promhttp.Handler()
}

// RateLimitDecision registra una decisión del limiter.
func RateLimitDecision(backend, outcome string) {
	if rateLimitDecisions != nil {
		rateLimitDecisions.WithLabelValues(backend, outcome).Inc()
	}
}

// KeyUsage registra un uso de credencial.
func KeyUsage(keyType string, success bool) {
	if keyUsageTotal != nil {
		keyUsageTotal.WithLabelValues(keyType, strconv.FormatBool(success)).Inc()
	}
}

// AlertFired registra una alerta generada.
func AlertFired(severity string) {
	if securityAlerts != nil {
		securityAlerts.WithLabelValues(severity).Inc()
	}
}

// AuditWriteFailure registra una escritura de auditoría fallida.
func AuditWriteFailure(kind string) {
	if auditWriteFailures != nil {
		auditWriteFailures.WithLabelValues(kind).Inc()
	}
}
