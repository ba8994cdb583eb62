package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/api/httpapi"
	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/gamify"
)

func newTestServer(t *testing.T, opts httpapi.Options) *httptest.Server {
	t.Helper()
	eng, err := gamify.New(gamify.WithDispatchMode(engine.DispatchSync))
	require.NoError(t, err)
	srv := httptest.NewServer(httpapi.NewMux(eng, opts))
	t.Cleanup(func() {
		srv.Close()
		eng.Close()
	})
	return srv
}

func TestClient_ProgressFlow(t *testing.T) {
	srv := newTestServer(t, httpapi.Options{PathPrefix: "/api", APIKeys: []string{"k1"}})

	client, err := NewClient(srv.URL+"/api/", WithAPIKey("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	profile, err := client.RegisterUser(ctx, "alice", "Alice", "hu")
	require.NoError(t, err)
	assert.Equal(t, "HU", profile.Country)

	unlocks, err := client.RecordAction(ctx, "alice", "recipes_created", 5)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, core.TierStone, unlocks[0].Tier)

	unlocks, err = client.SetProgress(ctx, "alice", "recipes_created", 10)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.True(t, unlocks[0].IsUpgrade)

	require.NoError(t, client.QueueAction(ctx, "alice", "likes_given", 2))

	report, err := client.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.Counters["recipes_created"])
	assert.Equal(t, int64(2), report.Counters["likes_given"])

	notes, err := client.Notifications(ctx, "alice", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, notes)

	board, err := client.LevelLeaderboard(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, board.Viewer)
	assert.Equal(t, int64(1), board.Viewer.Rank)

	board, err = client.CountryLeaderboard(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "HU", board.Country)

	board, err = client.AchievementLeaderboard(ctx, "", "recipe_creator")
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)

	level, err := client.RecalculateLevel(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, level.Changed)

	cat, err := client.Catalog(ctx, "en")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Achievements)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t, httpapi.Options{APIKeys: []string{"k1"}})
	ctx := context.Background()

	unauth, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = unauth.Progress(ctx, "alice")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "missing API key")

	client, err := NewClient(srv.URL, WithAuthToken("k1"))
	require.NoError(t, err)

	_, err = client.RecordAction(ctx, "alice", "recipes_created", -1)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = client.RecalculateLevel(ctx, "ghost")
	assert.True(t, IsNotFound(err))

	_, err = client.Resync(ctx, "alice")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotImplemented, apiErr.StatusCode)

	_, err = client.Stats(ctx)
	assert.True(t, IsNotFound(err))

	_, err = client.Progress(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	assert.Error(t, err)
}
