package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	gormstore "github.com/tamaskk/foodybackend-sub000/adapters/gorm"
	mem "github.com/tamaskk/foodybackend-sub000/adapters/memory"
	redisAdapter "github.com/tamaskk/foodybackend-sub000/adapters/redis"
	sqlxAdapter "github.com/tamaskk/foodybackend-sub000/adapters/sqlx"
	"github.com/tamaskk/foodybackend-sub000/analytics"
	"github.com/tamaskk/foodybackend-sub000/api/httpapi"
	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/config"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/gamify"
	"github.com/tamaskk/foodybackend-sub000/integrations/webhook"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

const (
	configFileEnv = "PROGRESSION_CONFIG_FILE"
	profileEnv    = "PROGRESSION_PROFILE"
	version       = "1.0.0"
)

// App aggregates the assembled server components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Engine     *gamify.Engine
	Metrics    *analytics.ComprehensiveMetrics
	Aggregator *analytics.AggregationEngine
	Handler    http.Handler
	Server     *http.Server
}

// provideConfig loads, in order of preference, the file named by
// PROGRESSION_CONFIG_FILE, the preset named by PROGRESSION_PROFILE, or
// defaults plus environment.
func provideConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case os.Getenv(configFileEnv) != "":
		cfg, err = config.LoadFromFile(os.Getenv(configFileEnv))
	case os.Getenv(profileEnv) != "":
		cfg, err = config.LoadProfile(os.Getenv(profileEnv))
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		config.ApplySecrets(ctx, cfg, config.NewEnvironmentSecretStore())
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration after secrets: %w", err)
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

// provideStorage opens the configured adapter. The cleanup closes its
// connections.
func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gamify.Store, func(), error) {
	store, closer, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("storage ready", "adapter", cfg.Storage.Adapter)
	cleanup := func() {
		if closer == nil {
			return
		}
		if err := closer.Close(); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}
	return store, cleanup, nil
}

func provideCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Progression.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Progression.CatalogPath)
}

// provideWebhook returns nil when no endpoints are configured.
func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	n := cfg.Notifications
	if len(n.WebhookURLs) == 0 {
		return nil
	}
	return webhook.New(n.WebhookURLs,
		webhook.WithClient(&http.Client{Timeout: n.Timeout}),
		webhook.WithSecret(n.WebhookSecret),
		webhook.WithLogger(logger),
	)
}

// provideMetrics returns nil when analytics is disabled.
func provideMetrics(cfg *config.Config) *analytics.ComprehensiveMetrics {
	if !cfg.Analytics.Enabled {
		return nil
	}
	return analytics.NewComprehensiveMetrics()
}

func provideAggregator(cfg *config.Config, metrics *analytics.ComprehensiveMetrics, logger *slog.Logger) *analytics.AggregationEngine {
	if metrics == nil {
		return nil
	}
	return analytics.NewAggregationEngine(metrics, cfg.Analytics.AggregationInterval, logger)
}

// provideEngine assembles the progression engine and attaches the
// analytics and webhook listeners. The cleanup drains the event bus.
func provideEngine(
	cfg *config.Config,
	logger *slog.Logger,
	store gamify.Store,
	cat *catalog.Catalog,
	sink *webhook.Sink,
	metrics *analytics.ComprehensiveMetrics,
) (*gamify.Engine, func(), error) {
	p := cfg.Progression
	opts := []gamify.Option{
		gamify.WithStorage(store),
		gamify.WithCatalog(cat),
		gamify.WithCurve(p.Curve()),
		gamify.WithLogger(logger),
		gamify.WithLanguage(p.Language),
		gamify.WithDispatchMode(p.Mode(), engine.WithWorkers(p.Workers), engine.WithQueueSize(p.QueueSize)),
		gamify.WithLeaderboard(leaderboard.WithSize(p.LeaderboardSize), leaderboard.WithQueryTimeout(p.QueryTimeout)),
	}
	if sink != nil {
		opts = append(opts, gamify.WithNotificationSinks(sink))
	}

	eng, err := gamify.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	var detach []func()
	if metrics != nil {
		detach = append(detach, analytics.Attach(eng, metrics))
	}
	if sink != nil && cfg.Notifications.ForwardEvents {
		detach = append(detach, analytics.Attach(eng, sink))
	}

	cleanup := func() {
		eng.Close()
		for _, d := range detach {
			d()
		}
	}
	return eng, cleanup, nil
}

func provideHandler(cfg *config.Config, eng *gamify.Engine, metrics *analytics.ComprehensiveMetrics) http.Handler {
	return httpapi.NewMux(eng, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		AdminKeys:        cfg.Security.AdminKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Stats:            metrics,
		TopAchievements:  cfg.Analytics.TopAchievements,
		Version:          version,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
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

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter named by the configuration.
// The returned closer is nil for the in-memory store.
func setupStorage(ctx context.Context, cfg *config.Config) (gamify.Store, io.Closer, error) {
	switch cfg.Storage.Adapter {
	case config.AdapterMemory:
		return mem.New(), nil, nil
	case config.AdapterRedis:
		s, err := redisAdapter.New(cfg.Storage.Redis.ToRedis())
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.AdapterSQL:
		s, err := sqlxAdapter.Open(ctx, cfg.Storage.SQL.ToSQL())
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.AdapterGorm:
		s, err := gormstore.Open(cfg.Storage.Gorm.ToGorm())
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
