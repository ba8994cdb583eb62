package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	gormstore "github.com/tamaskk/foodybackend-sub000/adapters/gorm"
	"github.com/tamaskk/foodybackend-sub000/adapters/redis"
	"github.com/tamaskk/foodybackend-sub000/adapters/sqlx"
	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" mapstructure:"environment" env:"PROGRESSION_ENV"`
	Profile     string      `json:"profile" mapstructure:"profile" env:"PROGRESSION_PROFILE"`

	Server        ServerConfig        `json:"server" mapstructure:"server"`
	Storage       StorageConfig       `json:"storage" mapstructure:"storage"`
	Progression   ProgressionConfig   `json:"progression" mapstructure:"progression"`
	Notifications NotificationsConfig `json:"notifications" mapstructure:"notifications"`
	Logging       LoggingConfig       `json:"logging" mapstructure:"logging"`
	Analytics     AnalyticsConfig     `json:"analytics" mapstructure:"analytics"`
	Security      SecurityConfig      `json:"security" mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" mapstructure:"address" env:"PROGRESSION_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" mapstructure:"path_prefix" env:"PROGRESSION_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" mapstructure:"cors_origin" env:"PROGRESSION_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" mapstructure:"read_timeout" env:"PROGRESSION_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" mapstructure:"write_timeout" env:"PROGRESSION_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" env:"PROGRESSION_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" mapstructure:"read_header_timeout" env:"PROGRESSION_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" env:"PROGRESSION_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects and configures the persistence adapter.
type StorageConfig struct {
	Adapter string      `json:"adapter" mapstructure:"adapter" env:"PROGRESSION_STORAGE_ADAPTER"`
	Redis   RedisConfig `json:"redis,omitempty" mapstructure:"redis"`
	SQL     SQLConfig   `json:"sql,omitempty" mapstructure:"sql"`
	Gorm    GormConfig  `json:"gorm,omitempty" mapstructure:"gorm"`
}

const (
	AdapterMemory = "memory"
	AdapterRedis  = "redis"
	AdapterSQL    = "sql"
	AdapterGorm   = "gorm"
)

// RedisConfig mirrors redis.Config with file and env tags.
type RedisConfig struct {
	Addr             string        `json:"addr" mapstructure:"addr" env:"PROGRESSION_REDIS_ADDR"`
	Password         string        `json:"password,omitempty" mapstructure:"password" env:"PROGRESSION_REDIS_PASSWORD"`
	DB               int           `json:"db" mapstructure:"db" env:"PROGRESSION_REDIS_DB"`
	PoolSize         int           `json:"pool_size" mapstructure:"pool_size" env:"PROGRESSION_REDIS_POOL_SIZE"`
	MinIdleConns     int           `json:"min_idle_conns" mapstructure:"min_idle_conns" env:"PROGRESSION_REDIS_MIN_IDLE_CONNS"`
	DialTimeout      time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" env:"PROGRESSION_REDIS_DIAL_TIMEOUT"`
	ReadTimeout      time.Duration `json:"read_timeout" mapstructure:"read_timeout" env:"PROGRESSION_REDIS_READ_TIMEOUT"`
	WriteTimeout     time.Duration `json:"write_timeout" mapstructure:"write_timeout" env:"PROGRESSION_REDIS_WRITE_TIMEOUT"`
	MaxNotifications int64         `json:"max_notifications" mapstructure:"max_notifications" env:"PROGRESSION_REDIS_MAX_NOTIFICATIONS"`
}

// ToRedis converts to the adapter's configuration.
func (r RedisConfig) ToRedis() redis.Config {
	return redis.Config{
		Addr:             r.Addr,
		Password:         r.Password,
		DB:               r.DB,
		PoolSize:         r.PoolSize,
		MinIdleConns:     r.MinIdleConns,
		DialTimeout:      r.DialTimeout,
		ReadTimeout:      r.ReadTimeout,
		WriteTimeout:     r.WriteTimeout,
		MaxNotifications: r.MaxNotifications,
	}
}

// SQLConfig configures the sqlx adapter.
type SQLConfig struct {
	Driver          string        `json:"driver" mapstructure:"driver" env:"PROGRESSION_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" mapstructure:"dsn" env:"PROGRESSION_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" env:"PROGRESSION_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns" env:"PROGRESSION_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" env:"PROGRESSION_SQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" mapstructure:"auto_migrate" env:"PROGRESSION_SQL_AUTO_MIGRATE"`
}

func (s SQLConfig) ToSQL() sqlx.Config {
	return sqlx.Config{
		Driver:          sqlx.Driver(s.Driver),
		DSN:             s.DSN,
		MaxOpenConns:    s.MaxOpenConns,
		MaxIdleConns:    s.MaxIdleConns,
		ConnMaxLifetime: s.ConnMaxLifetime,
		AutoMigrate:     s.AutoMigrate,
	}
}

// GormConfig configures the gorm adapter.
type GormConfig struct {
	Driver      string `json:"driver" mapstructure:"driver" env:"PROGRESSION_GORM_DRIVER"`
	DSN         string `json:"dsn,omitempty" mapstructure:"dsn" env:"PROGRESSION_GORM_DSN"`
	AutoMigrate bool   `json:"auto_migrate" mapstructure:"auto_migrate" env:"PROGRESSION_GORM_AUTO_MIGRATE"`
}

func (g GormConfig) ToGorm() gormstore.Config {
	return gormstore.Config{Driver: g.Driver, DSN: g.DSN, AutoMigrate: g.AutoMigrate}
}

// ProgressionConfig holds engine, curve and leaderboard settings.
type ProgressionConfig struct {
	MaxLevel        int           `json:"max_level" mapstructure:"max_level" env:"PROGRESSION_MAX_LEVEL"`
	MaxXP           int64         `json:"max_xp" mapstructure:"max_xp" env:"PROGRESSION_MAX_XP"`
	DispatchMode    string        `json:"dispatch_mode" mapstructure:"dispatch_mode" env:"PROGRESSION_DISPATCH_MODE"`
	Workers         int           `json:"workers" mapstructure:"workers" env:"PROGRESSION_WORKERS"`
	QueueSize       int           `json:"queue_size" mapstructure:"queue_size" env:"PROGRESSION_QUEUE_SIZE"`
	CatalogPath     string        `json:"catalog_path,omitempty" mapstructure:"catalog_path" env:"PROGRESSION_CATALOG_PATH"`
	Language        string        `json:"language" mapstructure:"language" env:"PROGRESSION_LANGUAGE"`
	LeaderboardSize int           `json:"leaderboard_size" mapstructure:"leaderboard_size" env:"PROGRESSION_LEADERBOARD_SIZE"`
	QueryTimeout    time.Duration `json:"query_timeout" mapstructure:"query_timeout" env:"PROGRESSION_QUERY_TIMEOUT"`
}

// Curve returns the configured level curve.
func (p ProgressionConfig) Curve() core.LevelCurve {
	return core.LevelCurve{MaxLevel: p.MaxLevel, MaxXP: p.MaxXP}
}

// Mode maps DispatchMode to the event bus mode.
func (p ProgressionConfig) Mode() engine.DispatchMode {
	if p.DispatchMode == "sync" {
		return engine.DispatchSync
	}
	return engine.DispatchAsync
}

// NotificationsConfig configures outbound webhook delivery.
type NotificationsConfig struct {
	WebhookURLs   []string      `json:"webhook_urls,omitempty" mapstructure:"webhook_urls" env:"PROGRESSION_WEBHOOK_URLS"`
	WebhookSecret string        `json:"webhook_secret,omitempty" mapstructure:"webhook_secret" env:"PROGRESSION_WEBHOOK_SECRET"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout" env:"PROGRESSION_WEBHOOK_TIMEOUT"`
	// ForwardEvents also posts every domain event, not only notifications.
	ForwardEvents bool `json:"forward_events" mapstructure:"forward_events" env:"PROGRESSION_WEBHOOK_FORWARD_EVENTS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" mapstructure:"level" env:"PROGRESSION_LOG_LEVEL"`
	Format     string            `json:"format" mapstructure:"format" env:"PROGRESSION_LOG_FORMAT"`
	Output     string            `json:"output" mapstructure:"output" env:"PROGRESSION_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" mapstructure:"attributes" env:"PROGRESSION_LOG_ATTRIBUTES"`
}

// AnalyticsConfig controls the in-process activity metrics behind /stats.
type AnalyticsConfig struct {
	Enabled             bool          `json:"enabled" mapstructure:"enabled" env:"PROGRESSION_ANALYTICS_ENABLED"`
	AggregationInterval time.Duration `json:"aggregation_interval" mapstructure:"aggregation_interval" env:"PROGRESSION_ANALYTICS_INTERVAL"`
	TopAchievements     int           `json:"top_achievements" mapstructure:"top_achievements" env:"PROGRESSION_ANALYTICS_TOP"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" mapstructure:"enable_rate_limit" env:"PROGRESSION_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" mapstructure:"rate_limit"`
	APIKeys         []string        `json:"api_keys,omitempty" mapstructure:"api_keys" env:"PROGRESSION_SECURITY_API_KEYS"`
	// AdminKeys guard the /admin routes. Empty means the regular API keys apply.
	AdminKeys []string `json:"admin_keys,omitempty" mapstructure:"admin_keys" env:"PROGRESSION_SECURITY_ADMIN_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" mapstructure:"requests_per_minute" env:"PROGRESSION_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" mapstructure:"burst_size" env:"PROGRESSION_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" mapstructure:"cleanup_interval" env:"PROGRESSION_SECURITY_RATE_LIMIT_CLEANUP"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SecretsDirEnv names a directory of mounted secret files applied on load.
const SecretsDirEnv = "PROGRESSION_SECRETS_DIR"

// finalize applies env overrides and mounted secrets, then validates.
func finalize(cfg *Config) error {
	if err := loadFromEnv(cfg); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}
	if dir, ok := lookupEnv(SecretsDirEnv); ok && dir != "" {
		ApplySecrets(context.Background(), cfg, NewFileSecretStore(dir))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

var configExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	supported := false
	for _, e := range configExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("config file must have one of the extensions: %s", strings.Join(configExtensions, ", "))
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON, YAML or TOML file on top of
// the defaults. Environment variables override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Clean(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	curve := core.DefaultCurve()
	rc := redis.DefaultConfig()
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: AdapterMemory,
			Redis: RedisConfig{
				Addr:             rc.Addr,
				DB:               rc.DB,
				PoolSize:         rc.PoolSize,
				MinIdleConns:     rc.MinIdleConns,
				DialTimeout:      rc.DialTimeout,
				ReadTimeout:      rc.ReadTimeout,
				WriteTimeout:     rc.WriteTimeout,
				MaxNotifications: rc.MaxNotifications,
			},
			SQL: SQLConfig{
				Driver:          string(sqlx.DriverPostgres),
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				AutoMigrate:     true,
			},
			Gorm: GormConfig{
				Driver:      "sqlite",
				DSN:         "progression.db",
				AutoMigrate: true,
			},
		},
		Progression: ProgressionConfig{
			MaxLevel:        curve.MaxLevel,
			MaxXP:           curve.MaxXP,
			DispatchMode:    "async",
			Workers:         engine.DefaultWorkers,
			QueueSize:       engine.DefaultQueueSize,
			Language:        "en",
			LeaderboardSize: 50,
			QueryTimeout:    5 * time.Second,
		},
		Notifications: NotificationsConfig{
			Timeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Analytics: AnalyticsConfig{
			Enabled:             true,
			AggregationInterval: time.Hour,
			TopAchievements:     10,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Progression.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("progression config: %v", err))
	}

	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifications config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Analytics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("analytics config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Gorm.DSN != "" && cfg.Storage.Gorm.Driver != "sqlite" {
		cfg.Storage.Gorm.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Notifications.WebhookSecret != "" {
		cfg.Notifications.WebhookSecret = "[REDACTED]"
	}
	cfg.Security.APIKeys = redactAll(cfg.Security.APIKeys)
	cfg.Security.AdminKeys = redactAll(cfg.Security.AdminKeys)

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}

func redactAll(keys []string) []string {
	if len(keys) == 0 {
		return keys
	}
	out := make([]string, len(keys))
	for i := range out {
		out[i] = "[REDACTED]"
	}
	return out
}
