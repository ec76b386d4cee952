package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ChayanSD/web-sub001/internal/alert"
	"github.com/ChayanSD/web-sub001/internal/audit"
	"github.com/ChayanSD/web-sub001/internal/config"
	"github.com/ChayanSD/web-sub001/internal/http/router"
	"github.com/ChayanSD/web-sub001/internal/metrics"
	"github.com/ChayanSD/web-sub001/internal/observability/logger"
	"github.com/ChayanSD/web-sub001/internal/rate"
	"github.com/ChayanSD/web-sub001/internal/security/keyguard"
	"github.com/ChayanSD/web-sub001/internal/security/keys"
	"github.com/ChayanSD/web-sub001/internal/store/core"
	memstore "github.com/ChayanSD/web-sub001/internal/store/memory"
	"github.com/ChayanSD/web-sub001/internal/store/pg"
	"github.com/ChayanSD/web-sub001/internal/util"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, continuing with system environment: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "websub-keysec",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Audit trail ───
	hasher, err := audit.NewHasher(cfg.Security.MasterSecret)
	if err != nil {
		lg.Fatal("hasher init failed", logger.Err(err))
	}

	var sink core.AuditSink
	switch cfg.Audit.Driver {
	case "pg":
		pgStore, err := pg.New(ctx, cfg.Audit.DSN)
		if err != nil {
			lg.Fatal("audit pg store init failed", logger.Err(err))
		}
		sink = pgStore
	default:
		lg.Warn("audit driver memory: el trail NO es durable, solo para dev")
		sink = memstore.New()
	}
	defer sink.Close()

	var notifier audit.Notifier
	if cfg.Alert.Enabled && cfg.Alert.SMTPHost != "" {
		notifier = alert.NewSMTPNotifier(
			cfg.Alert.SMTPHost, cfg.Alert.SMTPPort,
			cfg.Alert.From, cfg.Alert.To,
			cfg.Alert.Username, cfg.Alert.Password,
		)
	}

	auditLogger := audit.NewLogger(audit.Options{
		Sink:          sink,
		Hasher:        hasher,
		Notifier:      notifier,
		Prod:          cfg.IsProd(),
		WriteTimeout:  cfg.AuditWriteTimeout(),
		StatsCacheTTL: cfg.StatsCacheTTL(),
	})

	// ─── Key store + manager ───
	keyStore := keys.NewStore()
	manager := keyguard.NewManager(keyStore, auditLogger)
	seedKeys(ctx, keyStore)

	// ─── Rate limiter ───
	var limiter *rate.Limiter
	if cfg.Rate.Enabled {
		limiter = rate.NewLimiter(rate.Options{
			RedisAddr:     cfg.Rate.Redis.Addr,
			RedisPassword: cfg.Rate.Redis.Password,
			RedisDB:       cfg.Rate.Redis.DB,
			Prefix:        cfg.Rate.Redis.Prefix,
			Timeout:       cfg.RateTimeout(),
		})
	} else {
		lg.Warn("rate limiting deshabilitado por config")
	}

	// ─── HTTP ───
	handler := router.New(router.Deps{
		Manager:           manager,
		Audit:             auditLogger,
		Limiter:           limiter,
		AuthLimit:         limitFrom(cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window, rate.LimitAuth),
		APILimit:          limitFrom(cfg.Rate.API.Limit, cfg.Rate.API.Window, rate.LimitAPI),
		OperatorJWTSecret: cfg.Security.OperatorJWTSecret,
		MetricsHandler:    metrics.Register(nil),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		lg.Info("key security service listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server failed", logger.Err(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		lg.Warn("shutdown error", logger.Err(err))
	}
}

// seedKeys carga las credenciales iniciales desde el entorno vía el mismo
// camino de rotación (queda auditado como actor "startup"). Una env var
// inválida no tumba el arranque: se loguea y el tipo queda sin cargar.
func seedKeys(ctx context.Context, ks *keys.Store) {
	seeds := []struct {
		keyType keys.KeyType
		envVar  string
	}{
		{keys.KeyOpenAI, "OPENAI_API_KEY"},
		{keys.KeyStripe, "STRIPE_SECRET_KEY"},
		{keys.KeyWebhook, "STRIPE_WEBHOOK_SECRET"},
		{keys.KeyAuth, "AUTH_SECRET"},
	}
	for _, s := range seeds {
		v := os.Getenv(s.envVar)
		if v == "" {
			continue
		}
		if err := ks.Rotate(ctx, s.keyType, v, "startup"); err != nil {
			logger.Named("main").Warn("seed key rejected",
				logger.KeyType(string(s.keyType)),
				logger.Err(err),
			)
			continue
		}
		logger.Named("main").Info("key loaded",
			logger.KeyType(string(s.keyType)),
			logger.String("value", util.MaskSecret(v)),
		)
	}
}

// limitFrom arma un rate.Limit desde config, con fallback a los defaults.
func limitFrom(max int, window string, fallback rate.Limit) rate.Limit {
	if max <= 0 {
		return fallback
	}
	d, err := time.ParseDuration(window)
	if err != nil || d <= 0 {
		return fallback
	}
	return rate.Limit{Max: int64(max), Window: d}
}
