// Package keys implementa el almacén seguro de credenciales del proceso.
//
// Mantiene exactamente un registro vivo por tipo de clave; la única mutación
// posible es una rotación explícita, que valida el formato antes de aceptar
// el valor (all-or-nothing: si falla, la credencial anterior queda intacta).
package keys

import (
	"fmt"
	"sort"
	"strings"
)

// KeyType identifica cada credencial sensible del sistema.
type KeyType string

const (
	KeyOpenAI  KeyType = "openai"
	KeyStripe  KeyType = "stripe"
	KeyWebhook KeyType = "webhook"
	KeyAuth    KeyType = "auth"
)

// All lista los tipos conocidos en orden estable.
var All = []KeyType{KeyAuth, KeyOpenAI, KeyStripe, KeyWebhook}

// Known indica si el tipo es uno de los soportados.
func Known(t KeyType) bool {
	switch t {
	case KeyOpenAI, KeyStripe, KeyWebhook, KeyAuth:
		return true
	}
	return false
}

const minKeyLength = 10

// validateFormat chequea las reglas de formato por tipo.
// Devuelve "" si el valor es válido, o el motivo del rechazo.
func validateFormat(t KeyType, value string) string {
	if len(value) < minKeyLength {
		return fmt.Sprintf("must be at least %d characters", minKeyLength)
	}
	switch t {
	case KeyOpenAI:
		if !strings.HasPrefix(value, "sk-") {
			return `must start with "sk-"`
		}
	case KeyStripe:
		if !strings.HasPrefix(value, "sk_") {
			return `must start with "sk_"`
		}
	case KeyWebhook:
		if !strings.HasPrefix(value, "whsec_") {
			return `must start with "whsec_"`
		}
	case KeyAuth:
		if len(value) < 32 {
			return "must be at least 32 characters"
		}
	default:
		return fmt.Sprintf("unknown key type %q", t)
	}
	return ""
}

// ValidationError: el input de una rotación no pasó el chequeo de formato.
type ValidationError struct {
	KeyType KeyType
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("keys: invalid %s key: %s", e.KeyType, e.Reason)
}

// KeyValidationError: una o más credenciales almacenadas fallan el formato.
// Enumera cada tipo inválido con su motivo.
type KeyValidationError struct {
	Invalid map[KeyType]string
}

func (e *KeyValidationError) Error() string {
	types := make([]string, 0, len(e.Invalid))
	for t := range e.Invalid {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return "keys: invalid stored keys: " + strings.Join(types, ", ")
}
