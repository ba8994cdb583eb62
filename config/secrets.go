package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when a secret is not set.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	v, ok := lookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.Get(ctx, key); err == nil {
		return v
	}
	return def
}

// FileSecretStore reads one secret per file from a directory, the layout
// used by mounted container secrets. Trailing newlines are trimmed.
type FileSecretStore struct {
	dir string
}

func NewFileSecretStore(dir string) *FileSecretStore { return &FileSecretStore{dir: dir} }

func (s *FileSecretStore) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid secret name %q", key)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key)) // #nosec G304 - name checked above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", err
	}
	v := strings.TrimRight(string(data), "\r\n")
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

func (s *FileSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	if v, err := s.Get(ctx, key); err == nil {
		return v
	}
	return def
}

// Secret names resolved by ApplySecrets.
const (
	SecretRedisPassword = "PROGRESSION_REDIS_PASSWORD"
	SecretSQLDSN        = "PROGRESSION_SQL_DSN"
	SecretGormDSN       = "PROGRESSION_GORM_DSN"
	SecretWebhookSecret = "PROGRESSION_WEBHOOK_SECRET"
	SecretAPIKeys       = "PROGRESSION_SECURITY_API_KEYS"
	SecretAdminKeys     = "PROGRESSION_SECURITY_ADMIN_KEYS"
)

// ApplySecrets fills credentials from store, keeping current values for
// secrets the store does not have.
func ApplySecrets(ctx context.Context, cfg *Config, store SecretStore) {
	cfg.Storage.Redis.Password = store.GetWithDefault(ctx, SecretRedisPassword, cfg.Storage.Redis.Password)
	cfg.Storage.SQL.DSN = store.GetWithDefault(ctx, SecretSQLDSN, cfg.Storage.SQL.DSN)
	cfg.Storage.Gorm.DSN = store.GetWithDefault(ctx, SecretGormDSN, cfg.Storage.Gorm.DSN)
	cfg.Notifications.WebhookSecret = store.GetWithDefault(ctx, SecretWebhookSecret, cfg.Notifications.WebhookSecret)
	if keys := splitKeys(store.GetWithDefault(ctx, SecretAPIKeys, "")); len(keys) > 0 {
		cfg.Security.APIKeys = keys
	}
	if keys := splitKeys(store.GetWithDefault(ctx, SecretAdminKeys, "")); len(keys) > 0 {
		cfg.Security.AdminKeys = keys
	}
}

func splitKeys(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
