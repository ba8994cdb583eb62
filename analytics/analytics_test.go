package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
)

func TestComprehensiveMetrics_OnEvent(t *testing.T) {
	metrics := NewComprehensiveMetrics()

	userID := core.UserID("user123")
	now := time.Now().UTC()

	metrics.OnEvent(core.Event{Type: core.EventActionRecorded, UserID: userID, Time: now, Action: "recipes_created", Amount: 2})
	metrics.OnEvent(core.Event{Type: core.EventAchievementUnlocked, UserID: userID, Time: now, AchievementID: "recipe_creator", Tier: core.TierWooden, XP: 10})
	metrics.OnEvent(core.Event{Type: core.EventAchievementUpgraded, UserID: userID, Time: now, AchievementID: "recipe_creator", Tier: core.TierStone, XP: 15})
	metrics.OnEvent(core.Event{Type: core.EventLevelUp, UserID: userID, Time: now, Level: 3})

	day := metrics.GetDayTotals(now.Format("2006-01-02"))
	assert.Equal(t, int64(2), day.Actions)
	assert.Equal(t, int64(1), day.Unlocks)
	assert.Equal(t, int64(1), day.Upgrades)
	assert.Equal(t, int64(25), day.XPAwarded)
	assert.Equal(t, int64(1), day.LevelsReached)
	assert.Equal(t, 1, metrics.GetDailyActiveUsers(now.Format("2006-01-02")))
	assert.Equal(t, int64(2), metrics.GetUnlocksByAchievement("recipe_creator"))

	actions, unlocks, levels := metrics.GetRealtimeStats()
	assert.Equal(t, int64(2), actions)
	assert.Equal(t, int64(2), unlocks)
	assert.Equal(t, int64(1), levels)
}

func TestSnapshot(t *testing.T) {
	metrics := NewComprehensiveMetrics()
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	for _, e := range []core.Event{
		{Type: core.EventAchievementUnlocked, UserID: "a", AchievementID: "home_chef", Tier: core.TierWooden},
		{Type: core.EventAchievementUnlocked, UserID: "b", AchievementID: "home_chef", Tier: core.TierWooden},
		{Type: core.EventAchievementUnlocked, UserID: "a", AchievementID: "recipe_creator", Tier: core.TierWooden},
		{Type: core.EventAchievementUpgraded, UserID: "a", AchievementID: "recipe_creator", Tier: core.TierStone},
		{Type: core.EventAchievementUnlocked, UserID: "c", AchievementID: "generous_liker", Tier: core.TierWooden},
		{Type: core.EventLevelUp, UserID: "a", Level: 2},
		{Type: core.EventLevelUp, UserID: "a", Level: 3},
		{Type: core.EventLevelUp, UserID: "b", Level: 2},
	} {
		e.Time = now
		metrics.OnEvent(e)
	}

	st := metrics.Snapshot(now, 2)
	assert.Equal(t, "2026-05-01", st.Day)
	assert.Equal(t, 3, st.DailyActiveUsers)
	require.Len(t, st.TopAchievements, 2)
	assert.Equal(t, AchievementCount{AchievementID: "home_chef", Count: 2}, st.TopAchievements[0])
	assert.Equal(t, AchievementCount{AchievementID: "recipe_creator", Count: 2}, st.TopAchievements[1])
	assert.Equal(t, int64(4), st.UnlocksByTier[core.TierWooden])
	assert.Equal(t, map[int]int{2: 1, 3: 1}, st.LevelDistribution)
	assert.Equal(t, int64(4), st.Today.Unlocks)
	assert.Equal(t, int64(1), st.Today.Upgrades)
}

func TestDAU(t *testing.T) {
	dau := NewDAU()
	at := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	dau.OnEvent(core.Event{UserID: "a", Time: at})
	dau.OnEvent(core.Event{UserID: "a", Time: at})
	dau.OnEvent(core.Event{UserID: "b", Time: at.Add(2 * time.Minute)})
	assert.Equal(t, 1, dau.Count("2026-05-01"))
	assert.Equal(t, 1, dau.Count("2026-05-02"))
}

func TestAttachFeedsBusEvents(t *testing.T) {
	bus := engine.NewEventBus(engine.DispatchSync)
	metrics := NewComprehensiveMetrics()
	dau := NewDAU()
	detach := Attach(bus, NewBridge(metrics, dau))

	now := time.Now().UTC()
	bus.Publish(context.Background(), core.NewActionRecorded("alice", "likes_given", 3))
	bus.Publish(context.Background(), core.NewUnlockEvent("alice", core.Unlock{AchievementID: "generous_liker", Tier: core.TierWooden, XPAwarded: 10}))
	bus.Publish(context.Background(), core.NewLevelUp("alice", 2, 10))

	day := now.Format("2006-01-02")
	assert.Equal(t, int64(3), metrics.GetDayTotals(day).Actions)
	assert.Equal(t, int64(1), metrics.GetUnlocksByAchievement("generous_liker"))
	assert.Equal(t, 1, dau.Count(day))

	detach()
	bus.Publish(context.Background(), core.NewActionRecorded("bob", "likes_given", 1))
	assert.Equal(t, int64(3), metrics.GetDayTotals(day).Actions)
}

func BenchmarkComprehensiveMetrics(b *testing.B) {
	metrics := NewComprehensiveMetrics()
	event := core.NewActionRecorded("user123", "recipes_saved", 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.OnEvent(event)
	}
}
