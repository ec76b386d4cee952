package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ChayanSD/web-sub001/internal/audit"
	"github.com/ChayanSD/web-sub001/internal/http/router"
	"github.com/ChayanSD/web-sub001/internal/rate"
	"github.com/ChayanSD/web-sub001/internal/security/keyguard"
	"github.com/ChayanSD/web-sub001/internal/security/keys"
	"github.com/ChayanSD/web-sub001/internal/store/memory"
)

// Smoke test manual del admin API de seguridad, todo en memoria.
// Correr con: go run ./test/integration/security-api
func main() {
	secret := os.Getenv("OPERATOR_JWT_SECRET")
	if secret == "" {
		secret = "smoke-test-operator-secret-0123456789"
	}
	master := os.Getenv("SECURITY_MASTER_SECRET")
	if master == "" {
		master = "smoke-test-master-secret-0123456789"
	}

	hasher, err := audit.NewHasher(master)
	if err != nil {
		fmt.Println("❌ hasher:", err)
		os.Exit(1)
	}
	sink := memory.New()
	al := audit.NewLogger(audit.Options{Sink: sink, Hasher: hasher})
	mgr := keyguard.NewManager(keys.NewStore(), al)

	h := router.New(router.Deps{
		Manager:           mgr,
		Audit:             al,
		Limiter:           rate.NewLimiterWithStore(rate.NewMemoryStore(), "memory", time.Second),
		AuthLimit:         rate.Limit{Max: 5, Window: time.Minute},
		APILimit:          rate.Limit{Max: 100, Window: time.Minute},
		OperatorJWTSecret: secret,
	})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "smoke@local",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		fmt.Println("❌ token:", err)
		os.Exit(1)
	}

	fmt.Println("🧪 Testing security admin API...")

	// 1: rotar una clave válida
	fmt.Println("   🔑 Rotate openai key...")
	body, _ := json.Marshal(map[string]string{
		"key_type": "openai",
		"new_key":  "sk-proj-smoke-test-key-123",
	})
	w := doReq(h, tok, "POST", "/v1/security/keys/rotate", body)
	if w.Code != http.StatusOK {
		fmt.Printf("   ❌ rotate failed: %d %s\n", w.Code, w.Body.String())
		os.Exit(1)
	}
	fmt.Println("   ✅ rotated")

	// 2: rotación con formato inválido debe devolver 400
	fmt.Println("   🚫 Rotate with bad format...")
	body, _ = json.Marshal(map[string]string{
		"key_type": "stripe",
		"new_key":  "wrong-prefix",
	})
	w = doReq(h, tok, "POST", "/v1/security/keys/rotate", body)
	if w.Code != http.StatusBadRequest {
		fmt.Printf("   ❌ expected 400, got %d\n", w.Code)
		os.Exit(1)
	}
	fmt.Println("   ✅ rejected with 400")

	// 3: status
	fmt.Println("   📋 Key status...")
	w = doReq(h, tok, "GET", "/v1/security/keys/status", nil)
	if w.Code != http.StatusOK {
		fmt.Printf("   ❌ status failed: %d\n", w.Code)
		os.Exit(1)
	}
	fmt.Printf("   ✅ %s\n", w.Body.String())

	// 4: stats
	fmt.Println("   📊 Usage stats...")
	w = doReq(h, tok, "GET", "/v1/security/usage/stats?days=1", nil)
	if w.Code != http.StatusOK {
		fmt.Printf("   ❌ stats failed: %d\n", w.Code)
		os.Exit(1)
	}
	fmt.Printf("   ✅ %s\n", w.Body.String())

	// 5: sin token debe ser 401
	w = doReq(h, "", "GET", "/v1/security/keys/status", nil)
	if w.Code != http.StatusUnauthorized {
		fmt.Printf("   ❌ expected 401 without token, got %d\n", w.Code)
		os.Exit(1)
	}
	fmt.Println("   ✅ 401 without token")

	fmt.Printf("\n🎉 Security API working correctly! (%d audit events)\n", len(sink.Usage()))
}

func doReq(h http.Handler, token, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
