package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config agrupa toda la configuración del servicio de seguridad de claves.
// Se carga de YAML y luego se pisa con variables de entorno (applyEnvOverrides).
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	// Rate controla el limitador fixed-window.
	// El backend se decide en runtime: si Redis.Addr está presente se usa Redis,
	// si no, el store en memoria (single-process).
	Rate struct {
		Enabled bool `yaml:"enabled"`

		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`

		// Timeout para el round-trip al backend remoto.
		// Si expira, fail-open.
		Timeout string `yaml:"timeout"`

		// Presupuestos por clase de operación. Window en formato time.Duration.
		Receipts struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"receipts"`
		Reports struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"reports"`
		OCR struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"ocr"`
		Auth struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"auth"`
		API struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"api"`
	} `yaml:"rate"`

	// Audit configura la persistencia del trail de auditoría.
	Audit struct {
		// pg | memory
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`

		// Timeout por escritura. Si expira, fail-soft (log local).
		WriteTimeout string `yaml:"write_timeout"`

		// TTL del cache de stats agregadas.
		StatsCacheTTL string `yaml:"stats_cache_ttl"`
	} `yaml:"audit"`

	Security struct {
		// MasterSecret deriva la clave HMAC para hashear campos sensibles
		// antes de persistirlos. Solo por env (SECURITY_MASTER_SECRET).
		MasterSecret string `yaml:"-"`

		// OperatorJWTSecret firma/verifica los bearer tokens del admin API.
		// Solo por env (OPERATOR_JWT_SECRET).
		OperatorJWTSecret string `yaml:"-"`
	} `yaml:"security"`

	// Alert configura el sink de notificaciones para actividad sospechosa.
	// Solo se usa cuando App.Env == "prod".
	Alert struct {
		Enabled  bool   `yaml:"enabled"`
		SMTPHost string `yaml:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port"`
		From     string `yaml:"from"`
		To       string `yaml:"to"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"alert"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML (si existe), aplica defaults y pisa con env vars.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Rate.Timeout == "" {
		c.Rate.Timeout = "2s"
	}
	if c.Rate.Receipts.Limit == 0 {
		c.Rate.Receipts.Limit = 30
		c.Rate.Receipts.Window = "1m"
	}
	if c.Rate.Reports.Limit == 0 {
		c.Rate.Reports.Limit = 10
		c.Rate.Reports.Window = "1m"
	}
	if c.Rate.OCR.Limit == 0 {
		c.Rate.OCR.Limit = 20
		c.Rate.OCR.Window = "1m"
	}
	if c.Rate.Auth.Limit == 0 {
		c.Rate.Auth.Limit = 5
		c.Rate.Auth.Window = "15m"
	}
	if c.Rate.API.Limit == 0 {
		c.Rate.API.Limit = 120
		c.Rate.API.Window = "1m"
	}
	if c.Audit.Driver == "" {
		c.Audit.Driver = "memory"
	}
	if c.Audit.WriteTimeout == "" {
		c.Audit.WriteTimeout = "3s"
	}
	if c.Audit.StatsCacheTTL == "" {
		c.Audit.StatsCacheTTL = "30s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	for _, d := range []struct {
		name, val string
	}{
		{"rate.timeout", c.Rate.Timeout},
		{"rate.receipts.window", c.Rate.Receipts.Window},
		{"rate.reports.window", c.Rate.Reports.Window},
		{"rate.ocr.window", c.Rate.OCR.Window},
		{"rate.auth.window", c.Rate.Auth.Window},
		{"rate.api.window", c.Rate.API.Window},
		{"audit.write_timeout", c.Audit.WriteTimeout},
		{"audit.stats_cache_ttl", c.Audit.StatsCacheTTL},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("config: %s inválido (%q): %w", d.name, d.val, err)
		}
	}
	if c.Audit.Driver != "pg" && c.Audit.Driver != "memory" {
		return fmt.Errorf("config: audit.driver debe ser pg|memory, got %q", c.Audit.Driver)
	}
	if c.Audit.Driver == "pg" && c.Audit.DSN == "" {
		return fmt.Errorf("config: audit.driver=pg requiere audit.dsn")
	}
	return nil
}

// IsProd indica si corremos en modo producción (habilita el sink de alertas).
func (c *Config) IsProd() bool {
	return strings.ToLower(c.App.Env) == "prod"
}

// RateTimeout devuelve el timeout del backend remoto ya parseado.
func (c *Config) RateTimeout() time.Duration {
	return mustDur(c.Rate.Timeout, 2*time.Second)
}

// AuditWriteTimeout devuelve el timeout de escritura del audit trail.
func (c *Config) AuditWriteTimeout() time.Duration {
	return mustDur(c.Audit.WriteTimeout, 3*time.Second)
}

// StatsCacheTTL devuelve el TTL del cache de stats.
func (c *Config) StatsCacheTTL() time.Duration {
	return mustDur(c.Audit.StatsCacheTTL, 30*time.Second)
}

func mustDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Rate.Redis.Prefix = v
	}
	if v, ok := getEnvStr("RATE_TIMEOUT"); ok {
		c.Rate.Timeout = v
	}

	// AUDIT
	if v, ok := getEnvStr("AUDIT_DRIVER"); ok {
		c.Audit.Driver = v
	}
	if v, ok := getEnvStr("AUDIT_DSN"); ok {
		c.Audit.DSN = v
	}
	if v, ok := getEnvStr("AUDIT_WRITE_TIMEOUT"); ok {
		c.Audit.WriteTimeout = v
	}

	// SECURITY (solo env, nunca YAML)
	if v, ok := getEnvStr("SECURITY_MASTER_SECRET"); ok {
		c.Security.MasterSecret = v
	}
	if v, ok := getEnvStr("OPERATOR_JWT_SECRET"); ok {
		c.Security.OperatorJWTSecret = v
	}

	// ALERT
	if v, ok := getEnvBool("ALERT_ENABLED"); ok {
		c.Alert.Enabled = v
	}
	if v, ok := getEnvStr("ALERT_SMTP_HOST"); ok {
		c.Alert.SMTPHost = v
	}
	if v, ok := getEnvInt("ALERT_SMTP_PORT"); ok {
		c.Alert.SMTPPort = v
	}
	if v, ok := getEnvStr("ALERT_FROM"); ok {
		c.Alert.From = v
	}
	if v, ok := getEnvStr("ALERT_TO"); ok {
		c.Alert.To = v
	}
	if v, ok := getEnvStr("ALERT_SMTP_USER"); ok {
		c.Alert.Username = v
	}
	if v, ok := getEnvStr("ALERT_SMTP_PASS"); ok {
		c.Alert.Password = v
	}
}
