// Package memory provee un AuditSink en memoria para desarrollo y tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// Store implementa core.AuditSink con slices en memoria.
// No es durable: se pierde al reiniciar el proceso.
type Store struct {
	mu     sync.RWMutex
	usage  []core.KeyUsageEvent
	alerts []core.SecurityAlert
}

func New() *Store { return &Store{} }

func (s *Store) AppendUsage(ctx context.Context, ev core.KeyUsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, ev)
	return nil
}

func (s *Store) AppendAlert(ctx context.Context, alert core.SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *Store) UsageStats(ctx context.Context, keyType string, since time.Time) ([]core.KeyUsageStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := map[string]*core.KeyUsageStat{}
	sums := map[string]int64{}
	for _, ev := range s.usage {
		if ev.Timestamp.Before(since) {
			continue
		}
		if keyType != "" && ev.KeyType != keyType {
			continue
		}
		st, ok := agg[ev.KeyType]
		if !ok {
			st = &core.KeyUsageStat{KeyType: ev.KeyType}
			agg[ev.KeyType] = st
		}
		st.TotalCalls++
		if ev.Success {
			st.SuccessCalls++
		}
		sums[ev.KeyType] += ev.ResponseTimeMs
		if ev.Timestamp.After(st.LastUsedAt) {
			st.LastUsedAt = ev.Timestamp
		}
	}

	out := make([]core.KeyUsageStat, 0, len(agg))
	for kt, st := range agg {
		if st.TotalCalls > 0 {
			st.AvgResponseMs = float64(sums[kt]) / float64(st.TotalCalls)
		}
		out = append(out, *st)
	}
	return out, nil
}

// Usage devuelve una copia de los eventos registrados (para tests).
func (s *Store) Usage() []core.KeyUsageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.KeyUsageEvent, len(s.usage))
	copy(out, s.usage)
	return out
}

// Alerts devuelve una copia de las alertas registradas (para tests).
func (s *Store) Alerts() []core.SecurityAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SecurityAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}
