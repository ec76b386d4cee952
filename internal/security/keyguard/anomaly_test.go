package keyguard

import (
	"testing"
	"time"

	"github.com/ChayanSD/web-sub001/internal/security/keys"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

func TestAnomaly_SpikeOverBaseline(t *testing.T) {
	d := newAnomalyDetector()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Baseline: 10 minutos de tráfico estable, 5 llamadas por minuto.
	for min := 0; min < 10; min++ {
		at := t0.Add(time.Duration(min) * time.Minute)
		for i := 0; i < 5; i++ {
			if fs := d.observe(keys.KeyOpenAI, true, at); len(fs) != 0 {
				t.Fatalf("min %d call %d: hallazgo inesperado durante baseline: %+v", min, i, fs)
			}
		}
	}

	// Minuto 11: ráfaga. Con avg=5 el umbral es 15; la llamada que lleva el
	// bucket corriente a 16 debe disparar el spike.
	burst := t0.Add(10 * time.Minute)
	var fired []finding
	for i := 1; i <= 30; i++ {
		fired = append(fired, d.observe(keys.KeyOpenAI, true, burst)...)
	}

	if len(fired) != 1 {
		t.Fatalf("esperaba exactamente 1 alerta de spike en el minuto, got %d: %+v", len(fired), fired)
	}
	f := fired[0]
	if f.severity != core.SeverityMedium {
		t.Fatalf("severity=%s want medium", f.severity)
	}
	if f.details["baseline_minutes"].(int) == 0 {
		t.Fatal("details sin baseline")
	}
}

func TestAnomaly_NoAlertWithoutBaseline(t *testing.T) {
	d := newAnomalyDetector()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Sin historial previo una ráfaga no alerta (muestras insuficientes).
	for i := 0; i < 100; i++ {
		if fs := d.observe(keys.KeyOpenAI, true, now); len(fs) != 0 {
			t.Fatalf("alerta con baseline vacío: %+v", fs)
		}
	}
}

func TestAnomaly_FailureStreak(t *testing.T) {
	d := newAnomalyDetector()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// 4 fallas seguidas: todavía nada.
	for i := 0; i < 4; i++ {
		if fs := d.observe(keys.KeyAuth, false, t0.Add(time.Duration(i)*time.Second)); len(fs) != 0 {
			t.Fatalf("falla #%d disparó antes del umbral: %+v", i+1, fs)
		}
	}

	// La quinta dentro de la ventana dispara.
	fs := d.observe(keys.KeyAuth, false, t0.Add(5*time.Second))
	if len(fs) != 1 {
		t.Fatalf("esperaba 1 hallazgo, got %d", len(fs))
	}
	if fs[0].severity != core.SeverityHigh {
		t.Fatalf("severity=%s want high", fs[0].severity)
	}
	if fs[0].details["consecutive_failures"].(int) != 5 {
		t.Fatalf("details: %+v", fs[0].details)
	}
}

func TestAnomaly_FailureStreakStripeIsCritical(t *testing.T) {
	d := newAnomalyDetector()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var fired []finding
	for i := 0; i < 5; i++ {
		fired = append(fired, d.observe(keys.KeyStripe, false, t0.Add(time.Duration(i)*time.Second))...)
	}
	if len(fired) != 1 || fired[0].severity != core.SeverityCritical {
		t.Fatalf("fallas contra stripe deben ser críticas: %+v", fired)
	}
}

func TestAnomaly_SuccessResetsStreak(t *testing.T) {
	d := newAnomalyDetector()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		d.observe(keys.KeyAuth, false, t0.Add(time.Duration(i)*time.Second))
	}
	d.observe(keys.KeyAuth, true, t0.Add(4*time.Second))

	// La racha arranca de cero: 4 fallas más no alcanzan.
	for i := 5; i < 9; i++ {
		if fs := d.observe(keys.KeyAuth, false, t0.Add(time.Duration(i)*time.Second)); len(fs) != 0 {
			t.Fatalf("racha no reseteada tras éxito: %+v", fs)
		}
	}
}

func TestAnomaly_StaleFailuresOutsideWindow(t *testing.T) {
	d := newAnomalyDetector()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		d.observe(keys.KeyWebhook, false, t0.Add(time.Duration(i)*time.Second))
	}
	// La quinta llega fuera de la ventana de 2 minutos: la racha se reinicia.
	if fs := d.observe(keys.KeyWebhook, false, t0.Add(3*time.Minute)); len(fs) != 0 {
		t.Fatalf("fallas viejas no deberían contar: %+v", fs)
	}
}
