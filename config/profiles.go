package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the preset for a named environment with env
// overrides applied. Known names: development, testing, staging, production.
func LoadProfile(name string) (*Config, error) {
	var cfg *Config
	switch Environment(name) {
	case EnvDevelopment:
		cfg = developmentProfile()
	case EnvTesting:
		cfg = testingProfile()
	case EnvStaging:
		cfg = stagingProfile()
	case EnvProduction:
		cfg = productionProfile()
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg.Profile = name

	if err := finalize(cfg); err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	return cfg, nil
}

func developmentProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvDevelopment
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	return cfg
}

// testingProfile dispatches synchronously so assertions see unlocks
// immediately.
func testingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvTesting
	cfg.Progression.DispatchMode = "sync"
	cfg.Logging.Level = "warn"
	cfg.Analytics.Enabled = false
	return cfg
}

func stagingProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvStaging
	cfg.Storage.Adapter = AdapterRedis
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimit.RequestsPerMinute = 300
	cfg.Security.RateLimit.BurstSize = 50
	return cfg
}

func productionProfile() *Config {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	cfg.Storage.Adapter = AdapterRedis
	cfg.Server.CORSOrigin = ""
	cfg.Server.ShutdownTimeout = 60 * time.Second
	cfg.Progression.Workers = 16
	cfg.Progression.QueueSize = 8192
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Security.EnableRateLimit = true
	cfg.Security.RateLimit.RequestsPerMinute = 600
	cfg.Security.RateLimit.BurstSize = 100
	return cfg
}
