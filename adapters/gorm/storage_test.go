package gormstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/adapters/storetest"
	"github.com/tamaskk/foodybackend-sub000/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", DSN: ":memory:", AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreBehaves(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return newTestStore(t) })
}

func TestMarkNotifiedMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.MarkNotified(context.Background(), "u1", "recipe_creator")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPayloadRoundTripsAsJSON(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, core.Notification{
		ID:      "n1",
		UserID:  "u1",
		Kind:    core.NotificationUpgraded,
		Payload: core.NotificationPayload{AchievementID: "recipe_creator", Tier: core.TierGold, IsUpgrade: true},
	}))

	var raw string
	require.NoError(t, s.db.Raw(`SELECT payload FROM notifications WHERE id = ?`, "n1").Scan(&raw).Error)
	assert.Contains(t, raw, `"achievement_id":"recipe_creator"`)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}
