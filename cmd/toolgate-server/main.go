package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codewheel/toolgate/internal/api"
	"github.com/codewheel/toolgate/internal/audit"
	"github.com/codewheel/toolgate/internal/auth"
	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/events"
	"github.com/codewheel/toolgate/internal/gateway"
	"github.com/codewheel/toolgate/internal/metrics"
	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/ratelimit"
	"github.com/codewheel/toolgate/internal/registry"
	"github.com/codewheel/toolgate/internal/store"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("TOOLGATE_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("TOOLGATE_HTTP_PORT", "8080")
	configFile := os.Getenv("TOOLGATE_CONFIG_FILE")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	cacheTTL := envOrDefaultInt("TOOLGATE_AUTH_CACHE_TTL_S", 30)

	logger.Info("starting toolgate server",
		zap.String("http_port", httpPort),
		zap.String("config_file", configFile),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings: file over defaults, hot-reloaded on change
	settings := config.DefaultSettings()
	if configFile != "" {
		var err error
		settings, err = config.LoadFile(configFile)
		if err != nil {
			logger.Fatal("failed to load settings file", zap.Error(err))
		}
	}
	mgr := config.NewManager(settings, logger)
	if configFile != "" {
		if err := mgr.WatchFile(ctx, configFile); err != nil {
			logger.Warn("settings hot reload unavailable", zap.Error(err))
		}
	}

	// Postgres (callers + persisted settings)
	var pgStore *store.Store
	if postgresDSN != "" {
		var err error
		pgStore, err = store.Open(ctx, postgresDSN)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer func() { _ = pgStore.Close() }()
		logger.Info("postgres connected")

		// Persisted administrative settings win over the file.
		if persisted, err := pgStore.LoadSettings(ctx); err != nil {
			logger.Warn("failed to load persisted settings", zap.Error(err))
		} else if persisted != nil {
			mgr.Apply(*persisted)
			logger.Info("persisted settings applied")
		}
	} else {
		logger.Info("no POSTGRES_DSN set, caller administration disabled")
	}

	// Event bus + observers
	bus := events.NewBus(logger)
	attachEventLogging(bus, logger)
	m := metrics.New()
	m.Attach(bus)

	// Audit: ClickHouse recorder or log fallback. Sink failures surface on
	// the bus, never to the caller.
	var recorder audit.Recorder
	var reader *audit.Reader
	if clickhouseDSN != "" {
		errHook := func(err error) {
			bus.Publish(events.Event{Type: events.TypeAuditSinkError, Err: err.Error()})
		}
		chRecorder, err := audit.NewClickHouseRecorder(clickhouseDSN, errHook, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log recorder", zap.Error(err))
			recorder = audit.NewLogRecorder(logger)
		} else {
			recorder = chRecorder
			logger.Info("clickhouse audit recorder connected")
		}

		reader, err = audit.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
			reader = nil
		} else {
			defer func() { _ = reader.Close() }()
		}
	} else {
		recorder = audit.NewLogRecorder(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log recorder")
	}
	defer recorder.Close()

	// Rate limiter reads the live settings snapshot on every call.
	limiter := ratelimit.New(mgr.Current)

	// Tool registry
	reg := registry.NewRegistry()
	if err := registerBuiltinTools(reg); err != nil {
		logger.Fatal("builtin tool registration failed", zap.Error(err))
	}

	gw := gateway.New(reg, limiter, mgr.Current, recorder, bus, logger)

	// Authenticator: Postgres-backed, or a permissive static identity for
	// local development without a database.
	var authenticator auth.Authenticator
	if pgStore != nil {
		authenticator = auth.NewPostgresAuthenticator(pgStore, time.Duration(cacheTTL)*time.Second, logger)
	} else {
		logger.Warn("using static dev authenticator; do not expose this instance")
		authenticator = auth.NewStaticAuthenticator(auth.Identity{
			CallerID: "dev",
			Name:     "dev",
			Scopes:   policy.NewScopeSet(policy.ScopeRead, policy.ScopeWrite, policy.ScopeAdmin),
			Grants:   policy.NewGrants("use system", "use content", "use cache"),
		})
	}

	deps := &api.Dependencies{
		Gateway:  gw,
		Registry: reg,
		Limiter:  limiter,
		Config:   mgr,
		Auth:     authenticator,
		Store:    pgStore,
		Reader:   reader,
		Metrics:  m.Handler(),
		Logger:   logger,
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
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("toolgate server stopped")
}

// attachEventLogging mirrors the execution lifecycle into the structured log.
func attachEventLogging(bus *events.Bus, logger *zap.Logger) {
	bus.Subscribe(events.TypeStarted, func(e events.Event) {
		logger.Debug("tool execution started",
			zap.String("tool_id", e.ToolID),
			zap.String("request_id", e.RequestID),
			zap.String("caller_id", e.CallerID),
		)
	})
	bus.Subscribe(events.TypeSucceeded, func(e events.Event) {
		logger.Info("tool execution succeeded",
			zap.String("tool_id", e.ToolID),
			zap.String("request_id", e.RequestID),
			zap.String("caller_id", e.CallerID),
			zap.Float64("duration_ms", e.DurationMs),
		)
	})
	bus.Subscribe(events.TypeFailed, func(e events.Event) {
		logger.Warn("tool execution failed",
			zap.String("tool_id", e.ToolID),
			zap.String("request_id", e.RequestID),
			zap.String("caller_id", e.CallerID),
			zap.String("reason", string(e.Reason)),
			zap.String("error", e.Err),
		)
	})
	bus.Subscribe(events.TypeAuditSinkError, func(e events.Event) {
		logger.Error("audit sink failure", zap.String("error", e.Err))
	})
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
