package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "github.com/tamaskk/foodybackend-sub000/adapters/memory"
	"github.com/tamaskk/foodybackend-sub000/catalog"
	"github.com/tamaskk/foodybackend-sub000/core"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newService(t *testing.T, store Storage, opts ...ServiceOption) *ProgressionService {
	t.Helper()
	opts = append([]ServiceOption{WithLogger(quietLogger()), WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := NewProgressionService(store, catalog.Default(), NewEventBus(DispatchSync), opts...)
	t.Cleanup(svc.Close)
	return svc
}

func TestFirstUnlockCreatesRecordAndNotifies(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	unlocks, err := svc.TrackAndCheck(ctx, "alice", "recipes_created", 1)
	require.NoError(t, err)
	require.Equal(t, []core.Unlock{{AchievementID: "recipe_creator", Tier: core.TierWooden, XPAwarded: 10}}, unlocks)

	rec, err := store.GetUserAchievement(ctx, "alice", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, core.TierWooden, rec.Tier)
	assert.True(t, rec.UnlockedAt.Equal(fixedNow))
	assert.True(t, rec.Notified)

	p, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Experience)
	assert.Equal(t, core.DefaultCurve().LevelForXP(10), p.Level)

	notes, err := store.Notifications(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	n := notes[0]
	assert.False(t, n.IsUpgrade)
	assert.Equal(t, core.NotificationUnlocked, n.Kind)
	assert.Equal(t, "New achievement unlocked!", n.Title)
	assert.Equal(t, "You unlocked Recipe Creator 🪵 Wooden", n.Message)
	assert.Equal(t, core.NotificationPayload{AchievementID: "recipe_creator", Tier: core.TierWooden, Description: "Create 1 recipes"}, n.Payload)
	assert.Len(t, n.ID, 36)
}

func TestTierSkipAwardsOnlyTheDelta(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.TrackAndCheck(ctx, "alice", "recipes_created", 1)
	require.NoError(t, err)
	unlocks, err := svc.TrackAndCheck(ctx, "alice", "recipes_created", 2)
	require.NoError(t, err)
	assert.Empty(t, unlocks, "3 is still wooden")

	unlocks, err = svc.TrackAndCheck(ctx, "alice", "recipes_created", 9)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, core.Unlock{AchievementID: "recipe_creator", Tier: core.TierCopper, IsUpgrade: true, XPAwarded: 40}, unlocks[0])

	p, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Experience)

	notes, err := store.Notifications(ctx, "alice", 1)
	require.NoError(t, err)
	assert.True(t, notes[0].IsUpgrade)
	assert.Equal(t, core.NotificationUpgraded, notes[0].Kind)
	assert.Equal(t, "Recipe Creator reached 🟤 Copper", notes[0].Message)
}

func TestLowerValueNeverReverts(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	_, err := svc.SetProgress(ctx, "alice", "recipes_created", 30)
	require.NoError(t, err)
	unlocks, err := svc.SetProgress(ctx, "alice", "recipes_created", 2)
	require.NoError(t, err)
	assert.Empty(t, unlocks)

	rec, err := store.GetUserAchievement(ctx, "alice", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, core.TierBronze, rec.Tier)
}

func TestUnknownAndMalformedKeys(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	unlocks, err := svc.TrackAndCheck(ctx, "alice", "not_in_catalog", 1)
	require.NoError(t, err)
	assert.Empty(t, unlocks)

	unlocks, err = svc.TrackAndCheck(ctx, "alice", "Bad Key!", 1)
	require.NoError(t, err)
	assert.Empty(t, unlocks)

	counters, err := store.GetProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[core.ActionKey]int64{"not_in_catalog": 1}, counters)

	_, err = svc.TrackAndCheck(ctx, "  ", "recipes_created", 1)
	assert.ErrorIs(t, err, core.ErrEmptyUserID)
	_, err = svc.TrackAndCheck(ctx, "alice", "recipes_created", 0)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

type failingLedger struct {
	*mem.Store
}

func (failingLedger) IncrementProgress(context.Context, core.UserID, core.ActionKey, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLedgerFailureIsSwallowed(t *testing.T) {
	svc := newService(t, failingLedger{mem.New()})
	unlocks, err := svc.TrackAndCheck(context.Background(), "alice", "recipes_created", 1)
	assert.NoError(t, err)
	assert.Empty(t, unlocks)
}

// racyStore hides the existing record from the first read, as if another
// writer created it between our read and our create.
type racyStore struct {
	*mem.Store
	mu     sync.Mutex
	hidden bool
}

func (r *racyStore) GetUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID) (core.UserAchievement, error) {
	r.mu.Lock()
	hide := !r.hidden
	r.hidden = true
	r.mu.Unlock()
	if hide {
		return core.UserAchievement{}, core.ErrNotFound
	}
	return r.Store.GetUserAchievement(ctx, user, id)
}

func TestDuplicateCreateFallsIntoUpgrade(t *testing.T) {
	ctx := context.Background()
	inner := mem.New()
	require.NoError(t, inner.CreateUserAchievement(ctx, core.UserAchievement{UserID: "alice", AchievementID: "recipe_creator", Tier: core.TierWooden}))
	require.NoError(t, inner.SetProgress(ctx, "alice", "recipes_created", 4))
	store := &racyStore{Store: inner}
	svc := newService(t, store)

	unlocks, err := svc.TrackAndCheck(ctx, "alice", "recipes_created", 1)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, core.Unlock{AchievementID: "recipe_creator", Tier: core.TierStone, IsUpgrade: true, XPAwarded: 15}, unlocks[0])

	rec, err := inner.GetUserAchievement(ctx, "alice", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, core.TierStone, rec.Tier)
}

type brokenSink struct{}

func (brokenSink) Record(context.Context, core.Notification) error { return errors.New("webhook down") }

func TestNotificationFailureKeepsUnlock(t *testing.T) {
	store := mem.New()
	svc := newService(t, store, WithNotificationSinks(brokenSink{}))
	ctx := context.Background()

	unlocks, err := svc.TrackAndCheck(ctx, "alice", "recipes_created", 1)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)

	rec, err := store.GetUserAchievement(ctx, "alice", "recipe_creator")
	require.NoError(t, err)
	assert.False(t, rec.Notified)
	p, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Experience)
}

func TestLevelUpAndUnlockEvents(t *testing.T) {
	svc := newService(t, mem.New())
	var mu sync.Mutex
	var got []core.Event
	record := func(_ context.Context, e core.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	}
	svc.Subscribe(core.EventLevelUp, record)
	svc.Subscribe(core.EventAchievementUnlocked, record)
	svc.Subscribe(core.EventProgressUpdated, record)

	_, err := svc.TrackAndCheck(context.Background(), "alice", "recipes_created", 1)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, core.EventProgressUpdated, got[0].Type)
	assert.Equal(t, core.EventLevelUp, got[1].Type)
	assert.Equal(t, 2, got[1].Level)
	assert.Equal(t, core.EventAchievementUnlocked, got[2].Type)
	assert.Equal(t, core.AchievementID("recipe_creator"), got[2].AchievementID)
}

func TestRecordActionRunsInBackground(t *testing.T) {
	store := mem.New()
	bus := NewEventBus(DispatchAsync, WithWorkers(2), WithQueueSize(1))
	svc := NewProgressionService(store, catalog.Default(), bus, WithLogger(quietLogger()))

	for i := 0; i < 12; i++ {
		svc.RecordAction(context.Background(), "alice", "recipes_cooked", 1)
	}
	svc.RecordAction(context.Background(), "", "recipes_cooked", 1)
	svc.Close()

	counters, err := store.GetProgress(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(12), counters["recipes_cooked"])
	rec, err := store.GetUserAchievement(context.Background(), "alice", "home_chef")
	require.NoError(t, err)
	assert.Equal(t, core.TierCopper, rec.Tier)
}

func TestConcurrentChecksAwardEachTierOnce(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TrackAndCheck(ctx, "alice", "recipes_created", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.GetUserAchievement(ctx, "alice", "recipe_creator")
	require.NoError(t, err)
	assert.Equal(t, core.TierBronze, rec.Tier)
	p, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Experience, "experience equals the bronze reward exactly")
	assert.Equal(t, core.DefaultCurve().LevelForXP(100), p.Level)
}

func TestCheckAchievementsIsIdempotent(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()
	require.NoError(t, store.SetProgress(ctx, "alice", "likes_given", 30))
	require.NoError(t, store.SetProgress(ctx, "alice", "households_joined", 2))

	unlocks, err := svc.CheckAchievements(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.Unlock{
		{AchievementID: "generous_liker", Tier: core.TierCopper, XPAwarded: 40},
		{AchievementID: "household_member", Tier: core.TierStone, XPAwarded: 40},
	}, unlocks)

	unlocks, err = svc.CheckAchievements(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, unlocks)
	p, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(80), p.Experience)
}

func TestResync(t *testing.T) {
	store := mem.New()
	ctx := context.Background()

	_, err := newService(t, store).Resync(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoPrimaryCounter)

	counter := PrimaryCounterFunc(func(_ context.Context, user core.UserID) (map[core.ActionKey]int64, error) {
		return map[core.ActionKey]int64{"recipes_saved": 6, "bogus key": 3}, nil
	})
	svc := newService(t, store, WithPrimaryCounter(counter))
	_, err = store.IncrementProgress(ctx, "alice", "recipes_saved", 40)
	require.NoError(t, err)

	unlocks, err := svc.Resync(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []core.Unlock{{AchievementID: "recipe_collector", Tier: core.TierStone, XPAwarded: 25}}, unlocks)

	counters, err := store.GetProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(6), counters["recipes_saved"])

	unlocks, err = svc.Resync(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, unlocks)
}

func TestRecalculateLevel(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	_, _, err := svc.RecalculateLevel(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.AddExperience(ctx, "alice", 120849)
	require.NoError(t, err)
	require.NoError(t, store.SetLevel(ctx, "alice", 7))

	level, changed, err := svc.RecalculateLevel(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 199, level)

	level, changed, err = svc.RecalculateLevel(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 199, level)
}

func TestProgressReport(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	r, err := svc.Progress(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Profile.Level)
	assert.Equal(t, 1, r.XP.Level)
	assert.Empty(t, r.Achievements)

	_, err = svc.EnsureProfile(ctx, core.Profile{UserID: " alice ", DisplayName: " Alice ", Country: "hu"})
	require.NoError(t, err)
	_, err = svc.TrackAndCheck(ctx, "alice", "posts_created", 5)
	require.NoError(t, err)

	r, err = svc.Progress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "HU", r.Profile.Country)
	assert.Equal(t, "Alice", r.Profile.DisplayName)
	assert.Equal(t, int64(25), r.Profile.Experience)
	assert.Equal(t, int64(5), r.Counters["posts_created"])
	require.Len(t, r.Achievements, 1)
	assert.Equal(t, core.TierStone, r.Achievements[0].Tier)
	assert.Equal(t, r.Profile.Level, r.XP.Level)
}

func TestHungarianNotificationCopy(t *testing.T) {
	store := mem.New()
	svc := newService(t, store, WithLanguage("hu"))
	_, err := svc.TrackAndCheck(context.Background(), "anna", "recipes_created", 5)
	require.NoError(t, err)

	notes, err := svc.Notifications(context.Background(), "anna", 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Új kitüntetést szereztél!", notes[0].Title)
	assert.True(t, strings.HasPrefix(notes[0].Message, "Megszerezted: Receptalkotó"))
	assert.Equal(t, "Hozz létre 5 receptet", notes[0].Payload.Description)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	store := mem.New()
	err := MultiSink{store, nil, brokenSink{}}.Record(context.Background(), core.Notification{ID: "n1", UserID: "u"})
	assert.ErrorContains(t, err, "webhook down")
	notes, _ := store.Notifications(context.Background(), "u", 5)
	assert.Len(t, notes, 1, "healthy sinks still receive the record")
}
