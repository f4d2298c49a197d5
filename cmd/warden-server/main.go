package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/wardenlabs/warden/internal/api"
	"github.com/wardenlabs/warden/internal/auth"
	"github.com/wardenlabs/warden/internal/chread"
	"github.com/wardenlabs/warden/internal/policy"
	"github.com/wardenlabs/warden/internal/registry"
	"github.com/wardenlabs/warden/internal/storage"
	"github.com/wardenlabs/warden/internal/validator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("WARDEN_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("WARDEN_HTTP_PORT", "8080")
	policyPath := envOrDefault("WARDEN_POLICY_PATH", "tool_policy.json")
	maxTracked := envOrDefaultInt("WARDEN_MAX_TRACKED_CALLS", validator.DefaultMaxTrackedCalls)
	minTokenLen := envOrDefaultInt("WARDEN_INTENT_MIN_TOKEN_LEN", 3)
	minOverlap := envOrDefaultInt("WARDEN_INTENT_MIN_OVERLAP", 1)
	authCacheTTL := envOrDefaultInt("WARDEN_AUTH_CACHE_TTL_S", 30)
	registryCacheTTL := envOrDefaultInt("WARDEN_REGISTRY_CACHE_TTL_S", 60)
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")

	logger.Info("starting warden server",
		zap.String("http_port", httpPort),
		zap.String("policy_path", policyPath),
		zap.Int("max_tracked_calls", maxTracked),
	)

	// Postgres pool (optional; enables DB policy source, auth, registry)
	var db *sql.DB
	if postgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		logger.Info("postgres connected")
	}

	// Policy store: Postgres document when available, JSON file otherwise.
	// Either way a broken source degrades to the built-in default policy.
	var source policy.Source
	if db != nil {
		source = policy.NewPostgresSource(db)
	} else {
		source = policy.FileSource{Path: policyPath}
	}
	policies := policy.NewStore(source, logger)

	// Tool registry + argument screening (only with Postgres)
	var screener validator.Screener
	if db != nil {
		reg := registry.NewPostgresToolRegistry(registry.PostgresToolRegistryConfig{
			DB:       db,
			CacheTTL: time.Duration(registryCacheTTL) * time.Second,
			Logger:   logger,
		})
		screener = registry.NewArgScreener(reg)
		logger.Info("tool registry enabled")
	}

	// Validation engine
	engine := validator.New(validator.Config{
		Policies:        policies,
		MaxTrackedCalls: maxTracked,
		Aligner: validator.AlignerConfig{
			MinTokenLen: minTokenLen,
			MinOverlap:  minOverlap,
		},
		Screener: screener,
		Logger:   logger,
	})

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// ClickHouse reader (for events/summary endpoints)
	var chReader *chread.Reader
	if clickhouseDSN != "" {
		var err error
		chReader, err = chread.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	// Authenticator: Postgres bcrypt lookup, or key-format check only
	var authenticator auth.Authenticator
	if db != nil {
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(authCacheTTL) * time.Second,
			Logger:   logger,
		})
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Info("no POSTGRES_DSN set, using static key-format auth")
	}

	// HTTP server
	deps := &api.Dependencies{
		Validator: engine,
		Auth:      authenticator,
		Writer:    writer,
		Reader:    chReader,
		Logger:    logger,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("warden server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
