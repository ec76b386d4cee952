package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ChayanSD/web-sub001/internal/observability/logger"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// Store implementa core.AuditSink sobre Postgres (pgxpool).
// Es el único colaborador durable del core: todo lo demás es process-local.
type Store struct{ pool *pgxpool.Pool }

// New crea el pool y verifica conectividad de forma no bloqueante:
// si el ping falla la app arranca igual (el audit path es fail-soft).
func New(ctx context.Context, dsn string) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}

	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}
	// Límites conservadores: este pool solo escribe auditoría y sirve stats.
	if pcfg.MaxConns > 8 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Named("pg").Warn("audit pool startup ping failed", logger.Err(err))
	} else {
		logger.Named("pg").Info("audit pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}

	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) AppendUsage(ctx context.Context, ev core.KeyUsageEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_audit_log
			(event_kind, key_type, operation, user_hash, success,
			 response_time_ms, error_message, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)`,
		core.EventKeyUsage, ev.KeyType, ev.Operation, ev.UserHash, ev.Success,
		ev.ResponseTimeMs, ev.ErrorMessage, ev.IPAddress, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("pg: append usage: %w", err)
	}
	return nil
}

func (s *Store) AppendAlert(ctx context.Context, alert core.SecurityAlert) error {
	var details []byte
	if alert.Details != nil {
		details, _ = json.Marshal(alert.Details)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_audit_log
			(event_kind, alert_id, key_type, operation, user_hash,
			 severity, reason, details, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		core.EventSecurityAlert, alert.ID, alert.KeyType, alert.Operation, alert.UserHash,
		alert.Severity, alert.Reason, details, alert.Resolved, alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("pg: append alert: %w", err)
	}
	return nil
}

func (s *Store) UsageStats(ctx context.Context, keyType string, since time.Time) ([]core.KeyUsageStat, error) {
	q := `
		SELECT key_type,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COALESCE(AVG(response_time_ms), 0),
		       MAX(created_at)
		FROM security_audit_log
		WHERE event_kind = $1 AND created_at >= $2`
	args := []any{core.EventKeyUsage, since}
	if keyType != "" {
		q += ` AND key_type = $3`
		args = append(args, keyType)
	}
	q += ` GROUP BY key_type ORDER BY key_type`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: usage stats: %w", err)
	}
	defer rows.Close()

	var out []core.KeyUsageStat
	for rows.Next() {
		var st core.KeyUsageStat
		if err := rows.Scan(&st.KeyType, &st.TotalCalls, &st.SuccessCalls, &st.AvgResponseMs, &st.LastUsedAt); err != nil {
			return nil, fmt.Errorf("pg: scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
