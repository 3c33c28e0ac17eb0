// Package main is the entrypoint for the creditgate API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creditgate/creditgate/internal/cache"
	"github.com/creditgate/creditgate/internal/config"
	"github.com/creditgate/creditgate/internal/handler"
	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/model"
	"github.com/creditgate/creditgate/internal/repository"
	"github.com/creditgate/creditgate/internal/server"
	"github.com/creditgate/creditgate/internal/service"
	"github.com/creditgate/creditgate/internal/throttle"
)

// janitorInterval is how often expired in-memory throttle windows are dropped.
const janitorInterval = time.Minute

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", sanitizeError(err, os.Getenv("REDIS_URL")))
		os.Exit(1)
	}

	logger := initLogger(cfg)

	recorder, metricsHandler := initMetrics(cfg)

	users := repository.NewUserRepository()
	accounts := service.NewAccountService(users, service.AccountConfig{
		InitialCredits:  cfg.InitialCredits,
		DefaultRecharge: cfg.DefaultRecharge,
	}, recorder)
	items := service.NewItemService(repository.NewItemRepository(model.DefaultItems()...), recorder)

	type shutdownHook struct {
		name string
		fn   server.ShutdownFunc
	}
	var hooks []shutdownHook
	checks := map[string]handler.HealthChecker{}

	var limiter throttle.Limiter
	if cfg.UsesRedis() {
		cacheClient, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to Redis", slog.String("redis_url", redactURL(cfg.RedisURL)))

		limiter = cache.NewAttemptLimiter(cacheClient, cfg.ThrottleMaxAttempts, cfg.ThrottleWindow)
		checks["redis"] = cacheClient
		hooks = append(hooks, shutdownHook{"redis", func(ctx context.Context) error {
			return cacheClient.Close()
		}})
	} else {
		memory := throttle.NewMemory(cfg.ThrottleMaxAttempts, cfg.ThrottleWindow)
		janitorCtx, stopJanitor := context.WithCancel(ctx)
		go memory.RunJanitor(janitorCtx, janitorInterval)

		limiter = memory
		hooks = append(hooks, shutdownHook{"throttle janitor", func(ctx context.Context) error {
			stopJanitor()
			return nil
		}})
	}

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Users:    users,
		Accounts: accounts,
		Items:    items,
		Limiter:  limiter,
		Recorder: recorder,
		Metrics:  metricsHandler,
		Checks:   checks,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	for _, hook := range hooks {
		srv.OnShutdown(hook.name, hook.fn)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"throttle_backend", cfg.ThrottleBackend,
		"throttle_enabled", cfg.ThrottleEnabled,
		"trust_proxy", cfg.TrustProxy,
		"metrics_enabled", cfg.MetricsEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initMetrics returns the recorder and the /metrics handler. With metrics
// disabled the recorder is a no-op and the handler is nil.
func initMetrics(cfg *config.Config) (metrics.Recorder, http.Handler) {
	if !cfg.MetricsEnabled {
		return metrics.NewNoop(), nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return metrics.NewPrometheus(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "redacted")
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
