package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/engine"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, AdapterMemory, cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 200, cfg.Progression.MaxLevel)
	assert.Equal(t, int64(120850), cfg.Progression.MaxXP)
	assert.Equal(t, engine.DispatchAsync, cfg.Progression.Mode())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROGRESSION_SERVER_ADDR", ":7070")
	t.Setenv("PROGRESSION_DISPATCH_MODE", "sync")
	t.Setenv("PROGRESSION_QUERY_TIMEOUT", "750ms")
	t.Setenv("PROGRESSION_SECURITY_API_KEYS", "k1, k2,")
	t.Setenv("PROGRESSION_LOG_ATTRIBUTES", "service=progression,region=eu")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, engine.DispatchSync, cfg.Progression.Mode())
	assert.Equal(t, 750*time.Millisecond, cfg.Progression.QueryTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Equal(t, "eu", cfg.Logging.Attributes["region"])
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("PROGRESSION_MAX_LEVEL", "lots")
	_, err := Load()
	assert.Error(t, err)
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeTemp(t, "config.json", `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, AdapterMemory, cfg.Storage.Adapter)
	// untouched sections keep their defaults
	assert.Equal(t, "/api", cfg.Server.PathPrefix)
	assert.Equal(t, 50, cfg.Progression.LeaderboardSize)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
environment: staging
storage:
  adapter: sql
  sql:
    driver: sqlite3
    dsn: "file:progress.db"
progression:
  max_level: 50
  max_xp: 5000
  dispatch_mode: sync
  query_timeout: 2s
notifications:
  webhook_urls:
    - https://hooks.example.com/progress
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, AdapterSQL, cfg.Storage.Adapter)
	assert.Equal(t, "file:progress.db", cfg.Storage.SQL.ToSQL().DSN)
	assert.Equal(t, 50, cfg.Progression.Curve().MaxLevel)
	assert.Equal(t, 2*time.Second, cfg.Progression.QueryTimeout)
	assert.Equal(t, []string{"https://hooks.example.com/progress"}, cfg.Notifications.WebhookURLs)
}

func TestLoadFromFileInvalidCurve(t *testing.T) {
	path := writeTemp(t, "config.yaml", "progression:\n  max_level: 10\n  max_xp: 5\n")
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "progression config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "" }, expectError: true},
		{name: "invalid server timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, expectError: true},
		{name: "unknown adapter", mutate: func(c *Config) { c.Storage.Adapter = "file" }, expectError: true},
		{name: "sql without dsn", mutate: func(c *Config) { c.Storage.Adapter = AdapterSQL }, expectError: true},
		{name: "gorm sqlite", mutate: func(c *Config) { c.Storage.Adapter = AdapterGorm }},
		{name: "bad dispatch mode", mutate: func(c *Config) { c.Progression.DispatchMode = "later" }, expectError: true},
		{name: "relative webhook", mutate: func(c *Config) { c.Notifications.WebhookURLs = []string{"/hook"} }, expectError: true},
		{name: "rate limit without budget", mutate: func(c *Config) {
			c.Security.EnableRateLimit = true
			c.Security.RateLimit.RequestsPerMinute = 0
		}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
				assert.Equal(t, tt.profileName, cfg.Profile)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}

	cfg, err := LoadProfile("testing")
	require.NoError(t, err)
	assert.Equal(t, engine.DispatchSync, cfg.Progression.Mode())
}

func TestSecrets(t *testing.T) {
	store := NewEnvironmentSecretStore()

	testKey := "TEST_SECRET_KEY"
	testValue := "test_secret_value"
	t.Setenv(testKey, testValue)

	ctx := context.Background()

	value, err := store.Get(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, testValue, value)

	_, err = store.Get(ctx, "NONEXISTENT_KEY")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	defaultValue := "default"
	value = store.GetWithDefault(ctx, "NONEXISTENT_KEY", defaultValue)
	assert.Equal(t, defaultValue, value)

	value = store.GetWithDefault(ctx, testKey, defaultValue)
	assert.Equal(t, testValue, value)
}

func TestFileSecretsApplied(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SecretSQLDSN), []byte("postgres://u:p@db/progress\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SecretAPIKeys), []byte("alpha,beta"), 0o600))

	store := NewFileSecretStore(dir)
	_, err := store.Get(context.Background(), "../etc/passwd")
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Storage.Redis.Password = "keep"
	ApplySecrets(context.Background(), cfg, store)

	assert.Equal(t, "postgres://u:p@db/progress", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Security.APIKeys)
	assert.Equal(t, "keep", cfg.Storage.Redis.Password)
	assert.NotContains(t, cfg.String(), "u:p@db")
	assert.NotContains(t, cfg.String(), "alpha")
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "config.json")
	tomlPath := filepath.Join(dir, "config.toml")
	txtPath := filepath.Join(dir, "config.txt")
	for _, p := range []string{jsonPath, tomlPath, txtPath} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o600))
	}

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", jsonPath, false},
		{"valid toml file", tomlPath, false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"unsupported extension", txtPath, true},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadMountedSecretsBeforeValidation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SecretSQLDSN), []byte("postgres://app@db/progression\n"), 0o600))
	t.Setenv("PROGRESSION_STORAGE_ADAPTER", AdapterSQL)
	t.Setenv(SecretsDirEnv, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db/progression", cfg.Storage.SQL.DSN)
}
