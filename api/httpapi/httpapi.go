// Package httpapi exposes the progression engine over REST using chi for
// routing and huma for typed operations and the OpenAPI document.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tamaskk/foodybackend-sub000/analytics"
	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/gamify"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// AdminKeys, if non-empty, are additionally required on /admin routes.
	AdminKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Stats backs GET /stats. Nil disables the route.
	Stats *analytics.ComprehensiveMetrics
	// TopAchievements caps the per-achievement list in /stats.
	TopAchievements int
	// Version is reported in the OpenAPI document.
	Version string
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthProbe is used for stores that cannot be pinged.
const healthProbe core.UserID = "healthcheck_probe"

// NewMux builds an http.Handler exposing the progression REST API.
// Routes (relative to the prefix):
//   - POST /users, GET /users/{id}/progress, GET /users/{id}/notifications
//   - POST /users/{id}/actions, PUT /users/{id}/progress/{action}
//   - POST /admin/users/{id}/resync, POST /admin/users/{id}/recalculate-level
//   - GET  /leaderboards/level, /leaderboards/level/country, /leaderboards/achievements
//   - GET  /catalog, /stats, /healthz
func NewMux(eng *gamify.Engine, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(rateLimitMiddleware(opts.RateLimitRPM, opts.RateLimitBurst))
	}
	if opts.AllowCORSOrigin != "" {
		r.Use(corsMiddleware(opts.AllowCORSOrigin))
	}
	if len(opts.APIKeys) > 0 {
		r.Use(apiKeyMiddleware(opts.APIKeys))
	}

	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	sub := chi.NewRouter()
	cfg := huma.DefaultConfig("Progression API", version)
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"apiKey": {Type: "apiKey", In: "header", Name: "X-API-Key"},
	}
	api := humachi.New(sub, cfg)

	s := &server{eng: eng, stats: opts.Stats, top: opts.TopAchievements}
	s.register(api, opts)

	prefix := opts.PathPrefix
	if prefix == "" || prefix == "/" {
		r.Mount("/", sub)
	} else {
		r.Mount(trimSlash(prefix), sub)
	}
	return r
}

func trimSlash(p string) string {
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

type server struct {
	eng   *gamify.Engine
	stats *analytics.ComprehensiveMetrics
	top   int
}

func (s *server) register(api huma.API, opts Options) {
	huma.Get(api, "/healthz", s.health)

	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register or refresh a user profile",
		Tags:          []string{"users"},
		DefaultStatus: http.StatusCreated,
	}, s.registerUser)
	huma.Get(api, "/users/{id}/progress", s.progress, tagged("users"))
	huma.Get(api, "/users/{id}/notifications", s.notifications, tagged("users"))
	huma.Post(api, "/users/{id}/actions", s.recordAction, tagged("progress"))
	huma.Put(api, "/users/{id}/progress/{action}", s.setProgress, tagged("progress"))

	var admin huma.Middlewares
	if len(opts.AdminKeys) > 0 {
		admin = huma.Middlewares{adminMiddleware(api, opts.AdminKeys)}
	}
	huma.Register(api, huma.Operation{
		OperationID: "resync-user",
		Method:      http.MethodPost,
		Path:        "/admin/users/{id}/resync",
		Summary:     "Recompute counters from primary records",
		Tags:        []string{"admin"},
		Middlewares: admin,
	}, s.resync)
	huma.Register(api, huma.Operation{
		OperationID: "recalculate-level",
		Method:      http.MethodPost,
		Path:        "/admin/users/{id}/recalculate-level",
		Summary:     "Recompute the cached level from experience",
		Tags:        []string{"admin"},
		Middlewares: admin,
	}, s.recalculateLevel)

	huma.Get(api, "/leaderboards/level", s.levelBoard, tagged("leaderboards"))
	huma.Get(api, "/leaderboards/level/country", s.countryBoard, tagged("leaderboards"))
	huma.Get(api, "/leaderboards/achievements", s.achievementBoard, tagged("leaderboards"))

	huma.Get(api, "/catalog", s.catalog, tagged("catalog"))
	huma.Get(api, "/stats", s.statsSnapshot, tagged("stats"))
}

func tagged(tags ...string) func(*huma.Operation) {
	return func(o *huma.Operation) { o.Tags = tags }
}

type HealthOutput struct {
	Status int
	Body   struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// health verifies storage is reachable. Stores without Ping are probed with
// a read that does not create records.
func (s *server) health(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	if p, ok := s.eng.Store.(pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = s.eng.Notifications(ctx, healthProbe, 1)
	}

	out := &HealthOutput{Status: http.StatusOK}
	out.Body.Status = "healthy"
	out.Body.Checks = map[string]string{"storage": "ok"}
	if err != nil {
		out.Status = http.StatusServiceUnavailable
		out.Body.Status = "unhealthy"
		out.Body.Checks["storage"] = "failed"
	}
	return out, nil
}
