// Package storetest is a behavioral test suite shared by the store
// adapters. Each adapter's tests call Run with a constructor for a fresh,
// empty store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Store is the full adapter surface.
type Store interface {
	engine.Storage
	leaderboard.Source
}

// Run executes every behavior check against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Ledger", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("LedgerConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("Achievements", func(t *testing.T) { testAchievements(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("LevelBoards", func(t *testing.T) { testLevelBoards(t, newStore(t)) })
	t.Run("AchievementBoards", func(t *testing.T) { testAchievementBoards(t, newStore(t)) })
}

func testLedger(t *testing.T, s Store) {
	ctx := context.Background()

	got, err := s.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	v, err := s.IncrementProgress(ctx, "u1", "recipes_created", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = s.IncrementProgress(ctx, "u1", "recipes_created", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	_, err = s.IncrementProgress(ctx, "u1", "recipes_created", 0)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	require.NoError(t, s.SetProgress(ctx, "u1", "followers", 42))
	require.NoError(t, s.SetProgress(ctx, "u1", "recipes_created", 3))
	assert.ErrorIs(t, s.SetProgress(ctx, "u1", "followers", -1), core.ErrInvalidAmount)

	got, err = s.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[core.ActionKey]int64{"recipes_created": 3, "followers": 42}, got)

	other, err := s.GetProgress(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testConcurrentIncrements(t *testing.T, s Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := s.IncrementProgress(ctx, "u1", "likes_given", 2)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	got, err := s.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got["likes_given"])
}

func testAchievements(t *testing.T, s Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.GetUserAchievement(ctx, "u1", "recipe_creator")
	require.ErrorIs(t, err, core.ErrNotFound)

	rec := core.UserAchievement{UserID: "u1", AchievementID: "recipe_creator", Tier: core.TierWooden, UnlockedAt: at}
	require.NoError(t, s.CreateUserAchievement(ctx, rec))
	assert.ErrorIs(t, s.CreateUserAchievement(ctx, rec), core.ErrDuplicate)

	got, err := s.GetUserAchievement(ctx, "u1", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, core.TierWooden, got.Tier)
	assert.False(t, got.Notified)
	assert.True(t, got.UnlockedAt.Equal(at), "unlocked at %v", got.UnlockedAt)

	require.NoError(t, s.MarkNotified(ctx, "u1", "recipe_creator"))
	got, err = s.GetUserAchievement(ctx, "u1", "recipe_creator")
	require.NoError(t, err)
	assert.True(t, got.Notified)

	// stale compare-and-set loses
	ok, err := s.UpgradeUserAchievement(ctx, "u1", "recipe_creator", core.TierStone, core.TierCopper, at)
	require.NoError(t, err)
	assert.False(t, ok)

	later := at.Add(time.Hour)
	ok, err = s.UpgradeUserAchievement(ctx, "u1", "recipe_creator", core.TierWooden, core.TierCopper, later)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetUserAchievement(ctx, "u1", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, core.TierCopper, got.Tier)
	assert.True(t, got.UnlockedAt.Equal(later))
	assert.False(t, got.Notified, "an upgrade needs a fresh notification")

	ok, err = s.UpgradeUserAchievement(ctx, "u1", "missing", core.TierWooden, core.TierStone, later)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CreateUserAchievement(ctx, core.UserAchievement{UserID: "u1", AchievementID: "home_chef", Tier: core.TierWooden, UnlockedAt: at}))
	list, err := s.ListUserAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, core.AchievementID("home_chef"), list[0].AchievementID)
	assert.Equal(t, core.AchievementID("recipe_creator"), list[1].AchievementID)

	none, err := s.ListUserAchievements(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testProfiles(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, core.ErrNotFound)

	p, err := s.EnsureProfile(ctx, core.Profile{UserID: "u1", DisplayName: "Anna", Country: "HU"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Zero(t, p.Experience)

	p, err = s.AddExperience(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Experience)
	p, err = s.AddExperience(ctx, "u1", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Experience)

	// re-registering keeps experience
	p, err = s.EnsureProfile(ctx, core.Profile{UserID: "u1", DisplayName: "Anna K", Country: "AT"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Experience)
	assert.Equal(t, "AT", p.Country)

	raised, err := s.RaiseLevel(ctx, "u1", 4)
	require.NoError(t, err)
	assert.True(t, raised)
	raised, err = s.RaiseLevel(ctx, "u1", 3)
	require.NoError(t, err)
	assert.False(t, raised)
	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Level)
	assert.Equal(t, "Anna K", p.DisplayName)

	require.NoError(t, s.SetLevel(ctx, "u1", 2))
	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)

	// experience for an unregistered user creates the profile
	p, err = s.AddExperience(ctx, "u2", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(25), p.Experience)
	assert.Equal(t, 1, p.Level)
	_, err = s.GetProfile(ctx, "u2")
	require.NoError(t, err)
}

func testNotifications(t *testing.T, s Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, core.Notification{
			ID:        fmt.Sprintf("n%d", i),
			UserID:    "u1",
			Kind:      core.NotificationUnlocked,
			Title:     "New achievement unlocked!",
			Message:   "You unlocked Home Chef",
			Payload:   core.NotificationPayload{AchievementID: "home_chef", Tier: core.TierWooden, Description: "Cook 1 recipes"},
			CreatedAt: time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, s.Record(ctx, core.Notification{ID: "other", UserID: "u2", Kind: core.NotificationUpgraded, IsUpgrade: true}))

	got, err := s.Notifications(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n2", got[0].ID)
	assert.Equal(t, "n1", got[1].ID)
	assert.Equal(t, core.AchievementID("home_chef"), got[0].Payload.AchievementID)
	assert.Equal(t, "You unlocked Home Chef", got[0].Message)

	got, err = s.Notifications(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsUpgrade)
}

// seedLevels registers amy and bob tied at level 10 / 500 xp in HU, cat
// ahead in US and dan behind in US.
func seedLevels(t *testing.T, s Store) {
	ctx := context.Background()
	for _, u := range []struct {
		id      core.UserID
		country string
		level   int
		xp      int64
	}{
		{"bob", "HU", 10, 500},
		{"dan", "US", 3, 20},
		{"amy", "HU", 10, 500},
		{"cat", "US", 12, 700},
	} {
		_, err := s.EnsureProfile(ctx, core.Profile{UserID: u.id, DisplayName: string(u.id), Country: u.country})
		require.NoError(t, err)
		_, err = s.AddExperience(ctx, u.id, u.xp)
		require.NoError(t, err)
		require.NoError(t, s.SetLevel(ctx, u.id, u.level))
	}
}

func testLevelBoards(t *testing.T, s Store) {
	ctx := context.Background()
	seedLevels(t, s)

	top, err := s.TopByLevel(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, []core.UserID{"cat", "amy", "bob", "dan"}, userIDs(top))
	for i, st := range top {
		assert.Equal(t, int64(i+1), st.Rank)
	}
	assert.Equal(t, 12, top[0].Level)
	assert.Equal(t, int64(700), top[0].Experience)
	assert.Equal(t, "US", top[0].Country)
	assert.Equal(t, "cat", top[0].DisplayName)

	top, err = s.TopByLevel(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"cat", "amy"}, userIDs(top))

	top, err = s.TopByLevel(ctx, "HU", 10)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"amy", "bob"}, userIDs(top))

	st, err := s.LevelStanding(ctx, "dan", "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Rank)
	assert.Equal(t, 3, st.Level)
	assert.Equal(t, "US", st.Country)

	st, err = s.LevelStanding(ctx, "dan", "US")
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Rank)

	_, err = s.LevelStanding(ctx, "dan", "HU")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.LevelStanding(ctx, "nobody", "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	countries, err := s.Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HU", "US"}, countries)

	// moving country leaves the old board
	_, err = s.EnsureProfile(ctx, core.Profile{UserID: "dan", DisplayName: "dan", Country: "HU"})
	require.NoError(t, err)
	top, err = s.TopByLevel(ctx, "US", 10)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"cat"}, userIDs(top))
	top, err = s.TopByLevel(ctx, "HU", 10)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"amy", "bob", "dan"}, userIDs(top))

	// experience reorders the tie
	_, err = s.AddExperience(ctx, "bob", 1)
	require.NoError(t, err)
	st, err = s.LevelStanding(ctx, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Rank)
}

func testAchievementBoards(t *testing.T, s Store) {
	ctx := context.Background()
	seedLevels(t, s)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	create := func(user core.UserID, id core.AchievementID, tier core.TierName) {
		require.NoError(t, s.CreateUserAchievement(ctx, core.UserAchievement{UserID: user, AchievementID: id, Tier: tier, UnlockedAt: at}))
	}
	create("cat", "home_chef", core.TierWooden)
	create("amy", "recipe_creator", core.TierWooden)
	create("amy", "home_chef", core.TierStone)
	create("bob", "recipe_creator", core.TierWooden)
	ok, err := s.UpgradeUserAchievement(ctx, "bob", "recipe_creator", core.TierWooden, core.TierGold, at)
	require.NoError(t, err)
	require.True(t, ok)

	top, err := s.TopByAchievements(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"amy", "bob", "cat"}, userIDs(top))
	assert.Equal(t, int64(2), top[0].Achievements)
	assert.Equal(t, int64(1), top[1].Achievements)
	assert.Equal(t, int64(1), top[0].Rank)
	assert.Equal(t, int64(3), top[2].Rank)
	assert.Equal(t, 10, top[0].Level)

	top, err = s.TopByAchievements(ctx, "recipe_creator", 10)
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"bob", "amy"}, userIDs(top))
	assert.Equal(t, int64(core.TierPosition(core.TierGold)), top[0].Achievements)

	st, err := s.AchievementStanding(ctx, "cat", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Rank)
	assert.Equal(t, int64(1), st.Achievements)

	// users without records trail everyone ranked
	st, err = s.AchievementStanding(ctx, "dan", "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Rank)
	assert.Zero(t, st.Achievements)

	st, err = s.AchievementStanding(ctx, "cat", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Rank)
	assert.Zero(t, st.Achievements)

	st, err = s.AchievementStanding(ctx, "amy", "nothing_here")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Rank)
}

func userIDs(s []core.Standing) []core.UserID {
	out := make([]core.UserID, len(s))
	for i, st := range s {
		out[i] = st.UserID
	}
	return out
}
