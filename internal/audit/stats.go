package audit

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ChayanSD/web-sub001/internal/observability/logger"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// GetKeyUsageStats agrega el histórico de usos por tipo de credencial sobre
// una ventana de `days` días. keyType vacío = todos los tipos.
//
// Degrada a slice vacío ante falla del sink en lugar de propagar el error.
// Queries idénticas concurrentes se colapsan con singleflight y el resultado
// se cachea unos segundos (las stats alimentan dashboards, no decisiones).
func (l *Logger) GetKeyUsageStats(ctx context.Context, keyType string, days int) []core.KeyUsageStat {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	cacheKey := fmt.Sprintf("stats:%s:%d", keyType, days)

	if v, ok := l.statsCache.Get(cacheKey); ok {
		return v.([]core.KeyUsageStat)
	}

	v, err, _ := l.sf.Do(cacheKey, func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
		defer cancel()
		return l.sink.UsageStats(qctx, keyType, since)
	})
	if err != nil {
		logger.From(ctx).Warn("usage stats query failed, returning empty set",
			logger.Component("audit"),
			logger.KeyType(keyType),
			logger.Err(err),
		)
		return []core.KeyUsageStat{}
	}

	stats, _ := v.([]core.KeyUsageStat)
	if stats == nil {
		stats = []core.KeyUsageStat{}
	}
	l.statsCache.Set(cacheKey, stats, gocache.DefaultExpiration)
	return stats
}
