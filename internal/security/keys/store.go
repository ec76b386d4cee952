package keys

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrKeyNotSet: el tipo pedido no tiene credencial cargada.
var ErrKeyNotSet = errors.New("keys: key not set")

// Observer recibe los side effects del store: toda rotación y toda falla de
// validación se reportan (la rotación nunca es silenciosa). Lo implementa el
// Key Security Manager.
type Observer interface {
	KeyRotated(ctx context.Context, keyType KeyType, actor string)
	KeyValidationFailed(ctx context.Context, keyType KeyType, reason string)
}

type record struct {
	value         string
	lastRotatedAt time.Time
}

// Store es el almacén de credenciales del proceso. Se construye una sola vez
// en startup y se pasa por referencia a los handlers.
//
// Concurrencia: las rotaciones son mutuamente exclusivas entre sí (lock de
// escritura); lecturas y validaciones corren concurrentes entre ellas.
type Store struct {
	mu      sync.RWMutex
	records map[KeyType]record

	obsMu    sync.RWMutex
	observer Observer
}

// NewStore crea un store vacío. Las credenciales se cargan vía Rotate.
func NewStore() *Store {
	return &Store{records: make(map[KeyType]record)}
}

// SetObserver conecta el manager. Se llama una vez durante el wiring;
// el setter existe para romper el ciclo store <-> manager en la construcción.
func (s *Store) SetObserver(o Observer) {
	s.obsMu.Lock()
	s.observer = o
	s.obsMu.Unlock()
}

func (s *Store) getObserver() Observer {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	return s.observer
}

// Rotate valida y reemplaza la credencial del tipo dado.
// All-or-nothing: si la validación falla, el valor anterior queda en su lugar
// y se devuelve *ValidationError.
func (s *Store) Rotate(ctx context.Context, keyType KeyType, newValue, actor string) error {
	if reason := validateFormat(keyType, newValue); reason != "" {
		verr := &ValidationError{KeyType: keyType, Reason: reason}
		if o := s.getObserver(); o != nil {
			o.KeyValidationFailed(ctx, keyType, reason)
		}
		return verr
	}

	s.mu.Lock()
	s.records[keyType] = record{value: newValue, lastRotatedAt: time.Now().UTC()}
	s.mu.Unlock()

	if o := s.getObserver(); o != nil {
		o.KeyRotated(ctx, keyType, actor)
	}
	return nil
}

// Get devuelve la credencial viva del tipo dado.
func (s *Store) Get(keyType KeyType) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[keyType]
	if !ok {
		return "", ErrKeyNotSet
	}
	return rec.value, nil
}

// LastRotated devuelve cuándo se rotó por última vez el tipo dado.
func (s *Store) LastRotated(keyType KeyType) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[keyType]
	return rec.lastRotatedAt, ok
}

// ValidateAll re-chequea cada credencial almacenada contra su regla de formato.
// Si alguna falla devuelve *KeyValidationError enumerando todos los tipos
// inválidos; cada falla se reporta al observer.
func (s *Store) ValidateAll(ctx context.Context) error {
	s.mu.RLock()
	invalid := make(map[KeyType]string)
	for t, rec := range s.records {
		if reason := validateFormat(t, rec.value); reason != "" {
			invalid[t] = reason
		}
	}
	s.mu.RUnlock()

	if len(invalid) == 0 {
		return nil
	}

	if o := s.getObserver(); o != nil {
		for t, reason := range invalid {
			o.KeyValidationFailed(ctx, t, reason)
		}
	}
	return &KeyValidationError{Invalid: invalid}
}

// Loaded lista los tipos que tienen credencial cargada.
func (s *Store) Loaded() []KeyType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KeyType, 0, len(s.records))
	for _, t := range All {
		if _, ok := s.records[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// unsafeSet inyecta un valor sin validar. Solo para tests
// (simular una credencial que quedó en un formato inválido).
func (s *Store) unsafeSet(keyType KeyType, value string) {
	s.mu.Lock()
	s.records[keyType] = record{value: value, lastRotatedAt: time.Now().UTC()}
	s.mu.Unlock()
}
