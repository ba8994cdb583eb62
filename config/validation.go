package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tamaskk/foodybackend-sub000/adapters/sqlx"
)

func oneOf(value string, valid []string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	validAdapters := []string{AdapterMemory, AdapterRedis, AdapterSQL, AdapterGorm}
	if !oneOf(s.Adapter, validAdapters) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	switch s.Adapter {
	case AdapterRedis:
		if err := s.Redis.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("redis config: %v", err))
		}
	case AdapterSQL:
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	case AdapterGorm:
		if err := s.Gorm.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("gorm config: %v", err))
		}
	}

	return joinErrs(errs)
}

// Validate validates Redis configuration
func (r *RedisConfig) Validate() error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "addr cannot be empty")
	}
	if r.DB < 0 {
		errs = append(errs, "db cannot be negative")
	}
	if r.PoolSize <= 0 {
		errs = append(errs, "pool_size must be positive")
	}
	if r.MaxNotifications < 0 {
		errs = append(errs, "max_notifications cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates SQL configuration
func (s *SQLConfig) Validate() error {
	var errs []string
	validDrivers := []string{string(sqlx.DriverPostgres), string(sqlx.DriverMySQL), string(sqlx.DriverSQLite)}
	if !oneOf(s.Driver, validDrivers) {
		errs = append(errs, fmt.Sprintf("driver must be one of: %s", strings.Join(validDrivers, ", ")))
	}
	if s.DSN == "" {
		errs = append(errs, "dsn cannot be empty")
	}
	if s.MaxOpenConns < 0 || s.MaxIdleConns < 0 {
		errs = append(errs, "connection limits cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates gorm configuration
func (g *GormConfig) Validate() error {
	var errs []string
	validDrivers := []string{"sqlite", "postgres"}
	if !oneOf(g.Driver, validDrivers) {
		errs = append(errs, fmt.Sprintf("driver must be one of: %s", strings.Join(validDrivers, ", ")))
	}
	if g.DSN == "" {
		errs = append(errs, "dsn cannot be empty")
	}
	return joinErrs(errs)
}

// Validate checks the level curve and the dispatch settings.
func (p *ProgressionConfig) Validate() error {
	var errs []string

	if err := p.Curve().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if !oneOf(p.DispatchMode, []string{"sync", "async"}) {
		errs = append(errs, "dispatch_mode must be one of: sync, async")
	}

	if p.DispatchMode == "async" {
		if p.Workers <= 0 {
			errs = append(errs, "workers must be positive in async mode")
		}
		if p.QueueSize <= 0 {
			errs = append(errs, "queue_size must be positive in async mode")
		}
	}

	if p.LeaderboardSize <= 0 {
		errs = append(errs, "leaderboard_size must be positive")
	}

	if p.QueryTimeout <= 0 {
		errs = append(errs, "query_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate checks webhook endpoints.
func (n *NotificationsConfig) Validate() error {
	var errs []string
	for i, raw := range n.WebhookURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhook_urls[%d] must be an absolute http(s) URL", i))
		}
	}
	if len(n.WebhookURLs) > 0 && n.Timeout <= 0 {
		errs = append(errs, "timeout must be positive when webhooks are configured")
	}
	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	if !oneOf(l.Level, validLevels) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	if !oneOf(l.Format, validFormats) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	if !oneOf(l.Output, validOutputs) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	return joinErrs(errs)
}

// Validate validates analytics configuration
func (a *AnalyticsConfig) Validate() error {
	var errs []string
	if a.Enabled {
		if a.AggregationInterval <= 0 {
			errs = append(errs, "aggregation_interval must be positive when analytics are enabled")
		}
		if a.TopAchievements < 0 {
			errs = append(errs, "top_achievements cannot be negative")
		}
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	for i, key := range s.AdminKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("admin_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}
