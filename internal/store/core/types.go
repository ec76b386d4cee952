package core

import "time"

// EventKind discrimina el tipo de registro en el trail de auditoría.
type EventKind string

const (
	EventKeyUsage      EventKind = "key_usage"
	EventSecurityAlert EventKind = "security_alert"
)

// Severity de una alerta de seguridad.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// KeyUsageEvent es un registro write-once de un uso de credencial sensible.
// UserHash ya viene hasheado (HMAC) por la capa de auditoría: acá nunca
// entra un identificador crudo.
type KeyUsageEvent struct {
	KeyType        string
	Operation      string
	UserHash       string
	Success        bool
	ResponseTimeMs int64
	ErrorMessage   string
	IPAddress      string
	Timestamp      time.Time
}

// SecurityAlert es una alerta generada por detección de anomalías.
// Resolved es el único campo mutable; la resolución ocurre en otro workflow.
type SecurityAlert struct {
	ID        string
	KeyType   string
	Operation string
	UserHash  string
	Reason    string
	Severity  Severity
	Details   map[string]any
	Timestamp time.Time
	Resolved  bool
}

// KeyUsageStat es el agregado histórico por tipo de credencial.
type KeyUsageStat struct {
	KeyType        string
	TotalCalls     int64
	SuccessCalls   int64
	AvgResponseMs  float64
	LastUsedAt     time.Time
}
