package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/api/httpapi"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/gamify"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

func newServer(t *testing.T) string {
	t.Helper()
	eng, err := gamify.New(gamify.WithDispatchMode(engine.DispatchSync))
	require.NoError(t, err)
	srv := httptest.NewServer(httpapi.NewMux(eng, httpapi.Options{PathPrefix: "/api", APIKeys: []string{"secret"}}))
	t.Cleanup(func() {
		srv.Close()
		eng.Close()
	})
	return srv.URL + "/api"
}

func run(t *testing.T, base string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--server", base, "--api-key", "secret"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRecordAndProgress(t *testing.T) {
	base := newServer(t)

	out, err := run(t, base, "register", "alice", "--name", "Alice", "--country", "hu")
	require.NoError(t, err)
	assert.Contains(t, out, "HU")

	out, err = run(t, base, "record", "alice", "recipes_created", "--amount", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "recipe_creator")
	assert.Contains(t, out, "stone")

	out, err = run(t, base, "set", "alice", "recipes_created", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "copper")

	out, err = run(t, base, "progress", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "recipes_created")
	assert.Contains(t, out, "recipe_creator")

	out, err = run(t, base, "--format", "json", "notifications", "alice", "--limit", "5")
	require.NoError(t, err)
	var notes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	assert.Len(t, notes, 2)
}

func TestRecordNothingUnlocked(t *testing.T) {
	base := newServer(t)
	out, err := run(t, base, "record", "bob", "unknown_action")
	require.NoError(t, err)
	assert.Contains(t, out, "no unlocks")
}

func TestLeaderboardJSON(t *testing.T) {
	base := newServer(t)
	_, err := run(t, base, "register", "alice", "--country", "HU")
	require.NoError(t, err)
	_, err = run(t, base, "record", "alice", "recipes_created", "--amount", "25")
	require.NoError(t, err)
	_, err = run(t, base, "register", "bob", "--country", "DE")
	require.NoError(t, err)

	out, err := run(t, base, "--format", "json", "leaderboard", "level", "--viewer", "bob")
	require.NoError(t, err)
	var b leaderboard.Board
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.NotEmpty(t, b.Entries)
	assert.Equal(t, "alice", string(b.Entries[0].UserID))
	require.NotNil(t, b.Viewer)
	assert.Equal(t, int64(2), b.Viewer.Rank)

	out, err = run(t, base, "leaderboard", "country", "--viewer", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "you")

	_, err = run(t, base, "leaderboard", "weekly")
	assert.Error(t, err)
}

func TestAdminCommands(t *testing.T) {
	base := newServer(t)
	_, err := run(t, base, "register", "alice")
	require.NoError(t, err)
	_, err = run(t, base, "record", "alice", "recipes_created")
	require.NoError(t, err)

	out, err := run(t, base, "recalc-level", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "changed")
	assert.Contains(t, out, "false")

	_, err = run(t, base, "resync", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "501")
}

func TestCatalogHealthStats(t *testing.T) {
	base := newServer(t)

	out, err := run(t, base, "catalog", "--lang", "hu")
	require.NoError(t, err)
	assert.Contains(t, out, "Receptalkotó")

	out, err = run(t, base, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")

	_, err = run(t, base, "stats")
	assert.Error(t, err)
}

func TestRootRejectsBadFormat(t *testing.T) {
	_, err := run(t, "http://localhost:1", "--format", "yaml", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMissingAPIKey(t *testing.T) {
	base := newServer(t)
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", base, "--api-key", "", "progress", "alice"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
