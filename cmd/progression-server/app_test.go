package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/analytics"
	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testingConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadProfile("testing")
	require.NoError(t, err)
	return cfg
}

func TestProvideConfig_Profile(t *testing.T) {
	t.Setenv(profileEnv, "testing")
	cfg, err := provideConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.EnvTesting, cfg.Environment)
	assert.Equal(t, "sync", cfg.Progression.DispatchMode)
}

func TestProvideConfig_FileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9090\"\n"), 0o600))
	t.Setenv(configFileEnv, path)
	t.Setenv(profileEnv, "testing")

	cfg, err := provideConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestProvideConfig_UnknownProfile(t *testing.T) {
	t.Setenv(profileEnv, "qa")
	_, err := provideConfig(context.Background())
	assert.Error(t, err)
}

func TestSetupStorage(t *testing.T) {
	cfg := config.DefaultConfig()
	store, closer, err := setupStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Nil(t, closer)

	cfg.Storage.Adapter = "cassandra"
	_, _, err = setupStorage(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown storage adapter")
}

func TestProvideCatalog(t *testing.T) {
	cfg := config.DefaultConfig()
	cat, err := provideCatalog(cfg)
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().Version(), cat.Version())

	cfg.Progression.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = provideCatalog(cfg)
	assert.Error(t, err)
}

func TestProvideEngine_FeedsMetricsAndWebhook(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := testingConfig(t)
	cfg.Analytics.Enabled = true
	cfg.Notifications.WebhookURLs = []string{hook.URL}
	cfg.Notifications.ForwardEvents = true
	logger := quietLogger()

	store, cleanupStore, err := provideStorage(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer cleanupStore()
	cat, err := provideCatalog(cfg)
	require.NoError(t, err)
	metrics := provideMetrics(cfg)
	require.NotNil(t, metrics)
	sink := provideWebhook(cfg, logger)
	require.NotNil(t, sink)

	eng, cleanup, err := provideEngine(cfg, logger, store, cat, sink, metrics)
	require.NoError(t, err)

	eng.RecordAction(context.Background(), "u1", "recipes_created", 1)
	cleanup()

	stats := metrics.Snapshot(time.Now(), 10)
	assert.Equal(t, 1, stats.DailyActiveUsers)
	assert.Equal(t, int64(1), stats.ActionsByKey["recipes_created"])
	assert.Positive(t, hits.Load())
}

func TestProvideMetricsDisabled(t *testing.T) {
	cfg := testingConfig(t)
	assert.Nil(t, provideMetrics(cfg))
	assert.Nil(t, provideAggregator(cfg, nil, quietLogger()))
	assert.Nil(t, provideWebhook(cfg, quietLogger()))
}

func TestProvideHandler_Health(t *testing.T) {
	cfg := testingConfig(t)
	logger := quietLogger()
	store, _, err := provideStorage(context.Background(), cfg, logger)
	require.NoError(t, err)
	eng, cleanup, err := provideEngine(cfg, logger, store, catalog.Default(), nil, analytics.NewComprehensiveMetrics())
	require.NoError(t, err)
	defer cleanup()

	srv := httptest.NewServer(provideHandler(cfg, eng, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + cfg.Server.PathPrefix + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
}

func TestProvideServer(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := provideServer(cfg, http.NotFoundHandler())
	assert.Equal(t, cfg.Server.Address, srv.Addr)
	assert.Equal(t, cfg.Server.ReadHeaderTimeout, srv.ReadHeaderTimeout)
	assert.Equal(t, cfg.Server.IdleTimeout, srv.IdleTimeout)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestConvertAttributes(t *testing.T) {
	attrs := convertAttributes(map[string]string{"region": "eu"})
	require.Len(t, attrs, 1)
	assert.Equal(t, "region", attrs[0].Key)
	assert.Equal(t, "eu", attrs[0].Value.String())
}
