package keyguard

import (
	"sync"
	"time"

	"github.com/ChayanSD/web-sub001/internal/security/keys"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// Modelo de baseline: por tipo de clave se mantiene un anillo de 15 buckets
// de un minuto. El bucket corriente se compara contra el promedio de los
// buckets anteriores; un pico sostenido dispara una alerta. Las fallas
// consecutivas dentro de una ventana corta disparan una alerta aparte.
const (
	baselineBuckets = 15
	spikeFactor     = 3.0
	spikeFactorHigh = 5.0
	// minBaselineSamples: sin historial suficiente no se alerta, para no
	// disparar con los primeros minutos de tráfico.
	minBaselineSamples = 30

	failStreakThreshold = 5
	failStreakWindow    = 2 * time.Minute
)

type finding struct {
	reason   string
	severity core.Severity
	details  map[string]any
}

type usageSeries struct {
	buckets [baselineBuckets]int64
	filled  [baselineBuckets]bool
	idx     int
	minute  int64 // minuto unix del bucket corriente

	alertedMinute int64 // último minuto con alerta de spike, anti-spam

	failStreak  int
	firstFailAt time.Time
}

type anomalyDetector struct {
	mu     sync.Mutex
	series map[keys.KeyType]*usageSeries
}

func newAnomalyDetector() *anomalyDetector {
	return &anomalyDetector{series: make(map[keys.KeyType]*usageSeries)}
}

// observe registra un uso y evalúa las heurísticas. Devuelve cero o más
// hallazgos. Seguro bajo invocación concurrente.
func (d *anomalyDetector) observe(keyType keys.KeyType, success bool, now time.Time) []finding {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.series[keyType]
	if !ok {
		s = &usageSeries{minute: now.Unix() / 60}
		d.series[keyType] = s
	}

	s.advance(now.Unix() / 60)
	s.buckets[s.idx]++
	s.filled[s.idx] = true

	var out []finding

	if f, ok := s.checkSpike(); ok {
		out = append(out, f)
	}
	if f, ok := s.checkFailures(success, now, keyType); ok {
		out = append(out, f)
	}
	return out
}

// advance rota el anillo hasta el minuto dado, limpiando buckets viejos.
func (s *usageSeries) advance(minute int64) {
	gap := minute - s.minute
	if gap <= 0 {
		return
	}
	if gap >= baselineBuckets {
		s.buckets = [baselineBuckets]int64{}
		s.filled = [baselineBuckets]bool{}
		s.idx = 0
		s.minute = minute
		return
	}
	for ; gap > 0; gap-- {
		s.idx = (s.idx + 1) % baselineBuckets
		s.buckets[s.idx] = 0
		s.filled[s.idx] = true
		s.minute++
	}
}

// checkSpike compara el bucket corriente contra el promedio trailing.
func (s *usageSeries) checkSpike() (finding, bool) {
	var sum int64
	var n int
	for i := 0; i < baselineBuckets; i++ {
		if i == s.idx || !s.filled[i] {
			continue
		}
		sum += s.buckets[i]
		n++
	}
	if n == 0 || sum < minBaselineSamples {
		return finding{}, false
	}

	avg := float64(sum) / float64(n)
	cur := float64(s.buckets[s.idx])
	if cur <= spikeFactor*avg {
		return finding{}, false
	}
	if s.alertedMinute == s.minute {
		return finding{}, false
	}
	s.alertedMinute = s.minute

	sev := core.SeverityMedium
	if cur > spikeFactorHigh*avg {
		sev = core.SeverityHigh
	}
	return finding{
		reason:   "usage rate spike above trailing baseline",
		severity: sev,
		details: map[string]any{
			"current_minute_calls": s.buckets[s.idx],
			"baseline_avg_calls":   avg,
			"baseline_minutes":     n,
		},
	}, true
}

// checkFailures detecta rachas de fallas dentro de la ventana corta.
func (s *usageSeries) checkFailures(success bool, now time.Time, keyType keys.KeyType) (finding, bool) {
	if success {
		s.failStreak = 0
		return finding{}, false
	}

	if s.failStreak == 0 || now.Sub(s.firstFailAt) > failStreakWindow {
		s.failStreak = 0
		s.firstFailAt = now
	}
	s.failStreak++

	if s.failStreak < failStreakThreshold {
		return finding{}, false
	}
	streak := s.failStreak
	s.failStreak = 0

	sev := core.SeverityHigh
	if keyType == keys.KeyStripe {
		// Fallas repetidas contra la clave de pagos son siempre críticas.
		sev = core.SeverityCritical
	}
	return finding{
		reason:   "repeated key usage failures in short window",
		severity: sev,
		details: map[string]any{
			"consecutive_failures": streak,
			"window_seconds":       int(failStreakWindow.Seconds()),
		},
	}, true
}
