package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChayanSD/web-sub001/internal/store/core"
	"github.com/ChayanSD/web-sub001/internal/store/memory"
)

// brokenSink falla en todas las operaciones.
type brokenSink struct{ calls atomic.Int64 }

func (b *brokenSink) AppendUsage(ctx context.Context, ev core.KeyUsageEvent) error {
	b.calls.Add(1)
	return errors.New("sink caído")
}

func (b *brokenSink) AppendAlert(ctx context.Context, a core.SecurityAlert) error {
	b.calls.Add(1)
	return errors.New("sink caído")
}

func (b *brokenSink) UsageStats(ctx context.Context, keyType string, since time.Time) ([]core.KeyUsageStat, error) {
	b.calls.Add(1)
	return nil, errors.New("sink caído")
}

func (b *brokenSink) Ping(ctx context.Context) error { return errors.New("sink caído") }
func (b *brokenSink) Close()                         {}

func mustHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher("test-master-secret-0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestLogKeyAccess_FailSoft(t *testing.T) {
	sink := &brokenSink{}
	l := NewLogger(Options{Sink: sink, Hasher: mustHasher(t)})

	// No hay error que propagar ni pánico: la operación auditada sigue.
	l.LogKeyAccess(context.Background(), KeyAccess{
		KeyType:   "openai",
		Operation: "ocr_extract",
		UserID:    "user-1",
		Success:   true,
	})

	if sink.calls.Load() != 1 {
		t.Fatalf("sink calls=%d want 1", sink.calls.Load())
	}
}

func TestLogSuspiciousActivity_FailSoft(t *testing.T) {
	sink := &brokenSink{}
	l := NewLogger(Options{Sink: sink, Hasher: mustHasher(t)})

	l.LogSuspiciousActivity(context.Background(), Suspicious{
		ID:       "a1",
		KeyType:  "stripe",
		Reason:   "repeated failures",
		Severity: core.SeverityCritical,
	})

	if sink.calls.Load() != 1 {
		t.Fatalf("sink calls=%d want 1", sink.calls.Load())
	}
}

// failingNotifier siempre falla; el alert igual tiene que persistirse.
type failingNotifier struct{ called atomic.Bool }

func (n *failingNotifier) Notify(ctx context.Context, a core.SecurityAlert) error {
	n.called.Store(true)
	return errors.New("smtp timeout")
}

func TestLogSuspiciousActivity_NotifierFailureDoesNotBlockPersist(t *testing.T) {
	sink := memory.New()
	not := &failingNotifier{}
	l := NewLogger(Options{Sink: sink, Hasher: mustHasher(t), Notifier: not, Prod: true})

	l.LogSuspiciousActivity(context.Background(), Suspicious{
		ID:       "a2",
		KeyType:  "auth",
		Reason:   "spike",
		Severity: core.SeverityHigh,
	})

	if got := len(sink.Alerts()); got != 1 {
		t.Fatalf("alerts persistidos=%d want 1", got)
	}
	if !not.called.Load() {
		t.Fatal("en prod el notifier debe invocarse")
	}
}

func TestLogSuspiciousActivity_NotifierSkippedOutsideProd(t *testing.T) {
	sink := memory.New()
	not := &failingNotifier{}
	l := NewLogger(Options{Sink: sink, Hasher: mustHasher(t), Notifier: not, Prod: false})

	l.LogSuspiciousActivity(context.Background(), Suspicious{ID: "a3", KeyType: "auth", Reason: "x", Severity: core.SeverityLow})
	if not.called.Load() {
		t.Fatal("fuera de prod no se notifica")
	}
}

func TestGetKeyUsageStats_EmptyOnSinkFailure(t *testing.T) {
	l := NewLogger(Options{Sink: &brokenSink{}, Hasher: mustHasher(t)})

	stats := l.GetKeyUsageStats(context.Background(), "openai", 7)
	if stats == nil || len(stats) != 0 {
		t.Fatalf("want slice vacío no-nil, got %v", stats)
	}
}

func TestGetKeyUsageStats_CachesResult(t *testing.T) {
	sink := memory.New()
	_ = sink.AppendUsage(context.Background(), core.KeyUsageEvent{
		KeyType: "openai", Operation: "chat", Success: true,
		ResponseTimeMs: 120, Timestamp: time.Now().UTC(),
	})
	l := NewLogger(Options{Sink: sink, Hasher: mustHasher(t), StatsCacheTTL: time.Minute})

	first := l.GetKeyUsageStats(context.Background(), "", 7)
	if len(first) != 1 || first[0].TotalCalls != 1 {
		t.Fatalf("stats: %+v", first)
	}

	// Un evento nuevo no se refleja hasta que expira el cache.
	_ = sink.AppendUsage(context.Background(), core.KeyUsageEvent{
		KeyType: "openai", Success: true, Timestamp: time.Now().UTC(),
	})
	second := l.GetKeyUsageStats(context.Background(), "", 7)
	if second[0].TotalCalls != 1 {
		t.Fatalf("resultado no cacheado: %+v", second)
	}
}

func TestHasher_DeterministicAndOneWay(t *testing.T) {
	h := mustHasher(t)

	a := h.Subject("user-42")
	b := h.Subject("user-42")
	if a != b {
		t.Fatal("el hash debe ser determinístico dentro del mismo secret")
	}
	if a == "user-42" || len(a) != 64 {
		t.Fatalf("hash sospechoso: %q", a)
	}
	if h.Subject("") != "" {
		t.Fatal("sujeto vacío se mantiene vacío")
	}

	other, err := NewHasher("otro-secret-completamente-distinto")
	if err != nil {
		t.Fatal(err)
	}
	if other.Subject("user-42") == a {
		t.Fatal("secrets distintos deben producir hashes distintos")
	}
}

func TestNewHasher_RejectsEmptySecret(t *testing.T) {
	if _, err := NewHasher(""); err == nil {
		t.Fatal("secret vacío aceptado")
	}
}
