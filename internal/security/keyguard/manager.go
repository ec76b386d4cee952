// Package keyguard coordina los cross-cutting concerns de todas las
// credenciales: logging de uso, detección de anomalías y estado agregado
// de validación.
//
// El Manager se construye una sola vez en startup y se inyecta por referencia
// a los handlers (no hay estado global escondido).
package keyguard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ChayanSD/web-sub001/internal/audit"
	"github.com/ChayanSD/web-sub001/internal/metrics"
	"github.com/ChayanSD/web-sub001/internal/observability/logger"
	"github.com/ChayanSD/web-sub001/internal/security/keys"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// Manager es el coordinador de seguridad de claves.
// Implementa keys.Observer: toda rotación y falla de validación del store
// pasa por acá y queda auditada.
type Manager struct {
	keys     *keys.Store
	audit    *audit.Logger
	detector *anomalyDetector
}

// NewManager arma el manager y lo conecta como observer del key store.
func NewManager(ks *keys.Store, al *audit.Logger) *Manager {
	m := &Manager{
		keys:     ks,
		audit:    al,
		detector: newAnomalyDetector(),
	}
	ks.SetObserver(m)
	return m
}

// Keys expone el store subyacente (para el wiring de handlers).
func (m *Manager) Keys() *keys.Store { return m.keys }

// Usage describe un uso de credencial que hay que auditar.
type Usage struct {
	KeyType      keys.KeyType
	Operation    string
	UserID       string
	Success      bool
	ResponseTime time.Duration
	ErrorMessage string
	IPAddress    string
}

// LogKeyUsage registra el evento en el audit trail y evalúa las heurísticas
// de anomalía. Si alguna dispara, sintetiza una SecurityAlert y la manda por
// el canal de actividad sospechosa. Nunca falla hacia el caller.
func (m *Manager) LogKeyUsage(ctx context.Context, u Usage) {
	metrics.KeyUsage(string(u.KeyType), u.Success)

	m.audit.LogKeyAccess(ctx, audit.KeyAccess{
		KeyType:      string(u.KeyType),
		Operation:    u.Operation,
		UserID:       u.UserID,
		Success:      u.Success,
		ResponseTime: u.ResponseTime,
		ErrorMessage: u.ErrorMessage,
		IPAddress:    u.IPAddress,
	})

	for _, f := range m.detector.observe(u.KeyType, u.Success, time.Now()) {
		m.audit.LogSuspiciousActivity(ctx, audit.Suspicious{
			ID:        uuid.NewString(),
			KeyType:   string(u.KeyType),
			Operation: u.Operation,
			UserID:    u.UserID,
			Reason:    f.reason,
			Severity:  f.severity,
			Details:   f.details,
		})
	}
}

// KeyRotated implementa keys.Observer.
func (m *Manager) KeyRotated(ctx context.Context, keyType keys.KeyType, actor string) {
	logger.From(ctx).Info("key rotated",
		logger.Component("keyguard"),
		logger.KeyType(string(keyType)),
		logger.Actor(actor),
	)
	m.audit.LogKeyAccess(ctx, audit.KeyAccess{
		KeyType:   string(keyType),
		Operation: "rotate",
		UserID:    actor,
		Success:   true,
	})
}

// KeyValidationFailed implementa keys.Observer.
func (m *Manager) KeyValidationFailed(ctx context.Context, keyType keys.KeyType, reason string) {
	logger.From(ctx).Warn("key validation failed",
		logger.Component("keyguard"),
		logger.KeyType(string(keyType)),
		logger.Reason(reason),
	)
	m.audit.LogSuspiciousActivity(ctx, audit.Suspicious{
		ID:       uuid.NewString(),
		KeyType:  string(keyType),
		Reason:   "key format validation failed: " + reason,
		Severity: core.SeverityMedium,
	})
}

// KeyStatus es el estado operacional de una credencial.
type KeyStatus struct {
	KeyType       keys.KeyType `json:"key_type"`
	Valid         bool         `json:"valid"`
	Reason        string       `json:"reason,omitempty"`
	LastRotatedAt time.Time    `json:"last_rotated_at"`
	LastValidated time.Time    `json:"last_validated"`
}

// ValidateKeys delega en el key store y arma el estado por tipo para
// health checks operacionales. El error (si hay tipos inválidos) es el
// *keys.KeyValidationError agregado; los statuses vienen siempre completos.
func (m *Manager) ValidateKeys(ctx context.Context) ([]KeyStatus, error) {
	err := m.keys.ValidateAll(ctx)

	var invalid map[keys.KeyType]string
	var kvErr *keys.KeyValidationError
	if err != nil {
		if e, ok := err.(*keys.KeyValidationError); ok {
			kvErr = e
			invalid = e.Invalid
		}
	}

	now := time.Now().UTC()
	loaded := m.keys.Loaded()
	out := make([]KeyStatus, 0, len(loaded))
	for _, t := range loaded {
		st := KeyStatus{KeyType: t, Valid: true, LastValidated: now}
		if rotated, ok := m.keys.LastRotated(t); ok {
			st.LastRotatedAt = rotated
		}
		if reason, bad := invalid[t]; bad {
			st.Valid = false
			st.Reason = reason
		}
		out = append(out, st)
	}

	if kvErr != nil {
		return out, kvErr
	}
	return out, err
}
