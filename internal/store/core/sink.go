package core

import (
	"context"
	"time"
)

// AuditSink es el colaborador durable del trail de auditoría.
// Append-only: los registros nunca se mutan después de escritos.
type AuditSink interface {
	AppendUsage(ctx context.Context, ev KeyUsageEvent) error
	AppendAlert(ctx context.Context, alert SecurityAlert) error

	// UsageStats agrega eventos desde `since`, agrupados por key type.
	// keyType vacío = todos los tipos.
	UsageStats(ctx context.Context, keyType string, since time.Time) ([]KeyUsageStat, error)

	Ping(ctx context.Context) error
	Close()
}
