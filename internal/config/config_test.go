package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.App.Env != "dev" || cfg.IsProd() {
		t.Fatalf("env=%q", cfg.App.Env)
	}
	if cfg.Server.Addr != ":8090" {
		t.Fatalf("addr=%q", cfg.Server.Addr)
	}
	if cfg.Audit.Driver != "memory" {
		t.Fatalf("driver=%q", cfg.Audit.Driver)
	}
	if cfg.RateTimeout() != 2*time.Second {
		t.Fatalf("rate timeout=%v", cfg.RateTimeout())
	}
	if cfg.AuditWriteTimeout() != 3*time.Second {
		t.Fatalf("write timeout=%v", cfg.AuditWriteTimeout())
	}
	if cfg.Rate.Auth.Limit != 5 || cfg.Rate.Auth.Window != "15m" {
		t.Fatalf("auth budget: %+v", cfg.Rate.Auth)
	}
	if cfg.Rate.API.Limit != 120 {
		t.Fatalf("api budget: %+v", cfg.Rate.API)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
app:
  env: staging
server:
  addr: ":9000"
rate:
  enabled: true
  timeout: 5s
  receipts:
    limit: 60
    window: 2m
audit:
  driver: memory
  stats_cache_ttl: 45s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Env != "staging" || cfg.Server.Addr != ":9000" {
		t.Fatalf("cfg: %+v", cfg)
	}
	if !cfg.Rate.Enabled || cfg.RateTimeout() != 5*time.Second {
		t.Fatalf("rate: %+v", cfg.Rate)
	}
	if cfg.Rate.Receipts.Limit != 60 || cfg.Rate.Receipts.Window != "2m" {
		t.Fatalf("receipts: %+v", cfg.Rate.Receipts)
	}
	if cfg.StatsCacheTTL() != 45*time.Second {
		t.Fatalf("stats ttl=%v", cfg.StatsCacheTTL())
	}
	// Lo no especificado conserva los defaults.
	if cfg.Rate.Reports.Limit != 10 {
		t.Fatalf("reports: %+v", cfg.Rate.Reports)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("SECURITY_MASTER_SECRET", "env-only-secret")
	t.Setenv("OPERATOR_JWT_SECRET", "env-only-jwt-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsProd() || cfg.Server.Addr != ":7070" {
		t.Fatalf("cfg: %+v", cfg)
	}
	if cfg.Rate.Redis.Addr != "redis:6379" || cfg.Rate.Redis.DB != 3 {
		t.Fatalf("redis: %+v", cfg.Rate.Redis)
	}
	if !cfg.Rate.Enabled {
		t.Fatal("RATE_ENABLED no aplicado")
	}
	if cfg.Security.MasterSecret != "env-only-secret" {
		t.Fatal("master secret no tomado del env")
	}
	if cfg.Security.OperatorJWTSecret != "env-only-jwt-secret" {
		t.Fatal("jwt secret no tomado del env")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("RATE_TIMEOUT", "cinco segundos")
	if _, err := Load(""); err == nil {
		t.Fatal("duración inválida aceptada")
	}
}

func TestLoad_PgRequiresDSN(t *testing.T) {
	t.Setenv("AUDIT_DRIVER", "pg")
	if _, err := Load(""); err == nil {
		t.Fatal("driver pg sin DSN aceptado")
	}
}
