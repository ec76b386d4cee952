package rate

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	// maxEntries acota la cardinalidad del map para no crecer sin límite.
	maxEntries = 10000
	// evictFraction: porción de entradas que se desalojan al llegar al tope.
	evictFraction = 0.20
)

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore implementa Store con un map en memoria.
// Estrictamente single-process: los contadores no se comparten entre réplicas.
// El check-then-increment de una key es una sección crítica única bajo mu.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	// now es inyectable para tests.
	now func() time.Time
}

// NewMemoryStore crea el backend en memoria.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Check(ctx context.Context, key string, window time.Duration, max int64) (Result, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Barrido oportunista: purga todas las entradas vencidas.
	// Best-effort dentro del mismo call, no hay goroutine de fondo.
	for k, e := range s.entries {
		if now.After(e.resetAt) {
			delete(s.entries, k)
		}
	}

	e, ok := s.entries[key]
	if !ok {
		if len(s.entries) >= maxEntries {
			s.evictLocked()
		}
		e = &memoryEntry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
		return Result{Allowed: true, Remaining: max - 1, Reset: e.resetAt}, nil
	}

	if e.count >= max {
		// Rechazado: no se incrementa el contador.
		return Result{
			Allowed:    false,
			Remaining:  0,
			Reset:      e.resetAt,
			RetryAfter: e.resetAt.Sub(now),
		}, nil
	}

	e.count++
	return Result{Allowed: true, Remaining: max - e.count, Reset: e.resetAt}, nil
}

// evictLocked desaloja el 20% de entradas más próximas a vencer.
// Requiere el lock tomado.
func (s *MemoryStore) evictLocked() {
	type kv struct {
		key     string
		resetAt time.Time
	}
	all := make([]kv, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, kv{k, e.resetAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].resetAt.Before(all[j].resetAt) })

	n := int(float64(len(all)) * evictFraction)
	if n < 1 {
		n = 1
	}
	for _, it := range all[:n] {
		delete(s.entries, it.key)
	}
}

// Len devuelve la cardinalidad actual (para tests y stats).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
