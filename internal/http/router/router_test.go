package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ChayanSD/web-sub001/internal/audit"
	"github.com/ChayanSD/web-sub001/internal/rate"
	"github.com/ChayanSD/web-sub001/internal/security/keyguard"
	"github.com/ChayanSD/web-sub001/internal/security/keys"
	"github.com/ChayanSD/web-sub001/internal/store/memory"
)

const jwtSecret = "router-test-secret-0123456789abcdef"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	hasher, err := audit.NewHasher("test-master-secret-0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	al := audit.NewLogger(audit.Options{Sink: memory.New(), Hasher: hasher})
	m := keyguard.NewManager(keys.NewStore(), al)

	return New(Deps{
		Manager:           m,
		Audit:             al,
		Limiter:           rate.NewLimiterWithStore(rate.NewMemoryStore(), "memory", time.Second),
		AuthLimit:         rate.Limit{Max: 3, Window: time.Minute},
		APILimit:          rate.Limit{Max: 100, Window: time.Minute},
		OperatorJWTSecret: jwtSecret,
	})
}

func operatorToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHealthz_Open(t *testing.T) {
	h := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" || out["rate_backend"] != "memory" {
		t.Fatalf("body: %v", out)
	}
}

func TestSecurityRoutes_RequireAuth(t *testing.T) {
	h := newTestRouter(t)

	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/v1/security/keys/rotate"},
		{http.MethodGet, "/v1/security/keys/status"},
		{http.MethodGet, "/v1/security/usage/stats"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status=%d want 401", rt.method, rt.path, rec.Code)
		}
	}
}

func TestRotateEndToEnd(t *testing.T) {
	h := newTestRouter(t)

	body := `{"key_type":"webhook","new_key":"whsec_fresh_secret_value"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/security/keys/rotate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "ops@acme"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		Actor string `json:"actor"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Actor != "ops@acme" {
		t.Fatalf("actor=%q (el subject del token debe quedar registrado)", out.Actor)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("respuesta sin X-Request-ID")
	}
}

func TestRotate_RateLimitedPerActor(t *testing.T) {
	h := newTestRouter(t)
	token := operatorToken(t, "ops@acme")

	do := func() int {
		body := `{"key_type":"webhook","new_key":"whsec_fresh_secret_value"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/security/keys/rotate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := do(); code != http.StatusOK {
			t.Fatalf("request #%d: status=%d", i+1, code)
		}
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("4to request: status=%d want 429", code)
	}
}
