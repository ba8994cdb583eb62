// Package gamify assembles a ready-to-use progression engine: storage,
// catalog, level curve, event bus, notification sinks and leaderboards.
package gamify

import (
	"context"
	"log/slog"

	"github.com/tamaskk/foodybackend-sub000/adapters/memory"
	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Store is what a storage adapter must provide: persistence for the engine
// and ranking queries for the leaderboards.
type Store interface {
	engine.Storage
	leaderboard.Source
}

// Engine is the assembled progression service plus its leaderboards.
type Engine struct {
	*engine.ProgressionService
	Ranker *leaderboard.Ranker
	Store  Store
}

// Option configures the Gamify service builder.
type Option func(*config)

type config struct {
	storage    Store
	catalog    *catalog.Catalog
	curve      *core.LevelCurve
	logger     *slog.Logger
	mode       engine.DispatchMode
	busOpts    []engine.BusOption
	sinks      []engine.NotificationSink
	counter    engine.PrimaryCounter
	language   string
	rankerOpts []leaderboard.Option
	hooks      map[core.EventType][]func(context.Context, core.Event)
}

// WithStorage sets the persistence adapter.
func WithStorage(s Store) Option { return func(c *config) { c.storage = s } }

// WithCatalog replaces the built-in achievement catalog.
func WithCatalog(cat *catalog.Catalog) Option { return func(c *config) { c.catalog = cat } }

// WithCurve replaces the default level curve. It is validated by New.
func WithCurve(curve core.LevelCurve) Option { return func(c *config) { c.curve = &curve } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode, opts ...engine.BusOption) Option {
	return func(c *config) {
		c.mode = m
		c.busOpts = opts
	}
}

// WithNotificationSinks adds delivery sinks such as a webhook notifier.
func WithNotificationSinks(sinks ...engine.NotificationSink) Option {
	return func(c *config) { c.sinks = append(c.sinks, sinks...) }
}

// WithPrimaryCounter enables Resync.
func WithPrimaryCounter(pc engine.PrimaryCounter) Option {
	return func(c *config) { c.counter = pc }
}

// WithLanguage selects the notification copy language.
func WithLanguage(lang string) Option { return func(c *config) { c.language = lang } }

// WithLeaderboard sets ranker options such as page size and query timeout.
func WithLeaderboard(opts ...leaderboard.Option) Option {
	return func(c *config) { c.rankerOpts = append(c.rankerOpts, opts...) }
}

// WithHook subscribes handler to events of typ before the engine starts
// taking traffic.
func WithHook(typ core.EventType, handler func(context.Context, core.Event)) Option {
	return func(c *config) { c.hooks[typ] = append(c.hooks[typ], handler) }
}

// New builds a configured Engine. If not provided, defaults are used:
//   - storage: in-memory
//   - catalog: catalog.Default()
//   - curve: core.DefaultCurve()
//   - dispatch: async
func New(opts ...Option) (*Engine, error) {
	cfg := &config{mode: engine.DispatchAsync, hooks: map[core.EventType][]func(context.Context, core.Event){}}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}
	if cfg.catalog == nil {
		cfg.catalog = catalog.Default()
	}
	curve := core.DefaultCurve()
	if cfg.curve != nil {
		curve = *cfg.curve
	}
	if err := curve.Validate(); err != nil {
		return nil, err
	}

	bus := engine.NewEventBus(cfg.mode, cfg.busOpts...)
	for typ, handlers := range cfg.hooks {
		for _, h := range handlers {
			bus.Subscribe(typ, h)
		}
	}

	svcOpts := []engine.ServiceOption{
		engine.WithCurve(curve),
		engine.WithLogger(cfg.logger),
		engine.WithLanguage(cfg.language),
	}
	if len(cfg.sinks) > 0 {
		svcOpts = append(svcOpts, engine.WithNotificationSinks(cfg.sinks...))
	}
	if cfg.counter != nil {
		svcOpts = append(svcOpts, engine.WithPrimaryCounter(cfg.counter))
	}
	svc := engine.NewProgressionService(cfg.storage, cfg.catalog, bus, svcOpts...)

	return &Engine{
		ProgressionService: svc,
		Ranker:             leaderboard.NewRanker(cfg.storage, cfg.rankerOpts...),
		Store:              cfg.storage,
	}, nil
}
