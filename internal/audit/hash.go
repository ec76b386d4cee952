package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfInfo fija el propósito de la clave derivada. Cambiarlo invalida
// la correlación histórica de hashes.
const hkdfInfo = "websub:audit-subject-hash:v1"

// Hasher hashea campos sensibles (user ids, identidad de operación) antes de
// persistirlos en el trail. One-way: HMAC-SHA256 con clave derivada del
// master secret vía HKDF. Los valores crudos nunca tocan el storage.
type Hasher struct {
	key []byte
}

// NewHasher deriva la clave de hashing desde el master secret del proceso.
func NewHasher(masterSecret string) (*Hasher, error) {
	if masterSecret == "" {
		return nil, errors.New("audit: master secret vacío (setear SECURITY_MASTER_SECRET)")
	}
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &Hasher{key: key}, nil
}

// Subject devuelve el hash hex del identificador dado.
// Determinístico dentro del mismo master secret, así los stats pueden
// agrupar por sujeto sin conocer el valor crudo.
func (h *Hasher) Subject(v string) string {
	if v == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(v))
	return hex.EncodeToString(mac.Sum(nil))
}
