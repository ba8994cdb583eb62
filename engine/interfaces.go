package engine

import (
	"context"
	"errors"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// ProgressLedger keeps the per-user action counters. IncrementProgress must
// be a single atomic read-modify-write; absent counters start at zero.
type ProgressLedger interface {
	IncrementProgress(ctx context.Context, user core.UserID, key core.ActionKey, amount int64) (newValue int64, err error)
	SetProgress(ctx context.Context, user core.UserID, key core.ActionKey, value int64) error
	GetProgress(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error)
}

// AchievementStore persists unlock records. Implementations enforce
// uniqueness on (user, achievement): CreateUserAchievement returns
// core.ErrDuplicate when a record already exists, and GetUserAchievement
// returns core.ErrNotFound when none does.
type AchievementStore interface {
	GetUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID) (core.UserAchievement, error)
	CreateUserAchievement(ctx context.Context, rec core.UserAchievement) error
	// UpgradeUserAchievement moves the record from tier `from` to tier `to`
	// only if it is still at `from`. It reports whether the swap happened.
	UpgradeUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID, from, to core.TierName, at time.Time) (bool, error)
	MarkNotified(ctx context.Context, user core.UserID, id core.AchievementID) error
	ListUserAchievements(ctx context.Context, user core.UserID) ([]core.UserAchievement, error)
}

// ProfileStore holds experience and the cached level.
type ProfileStore interface {
	// EnsureProfile creates the profile if missing and updates display name
	// and country otherwise. Experience and level are never touched.
	EnsureProfile(ctx context.Context, p core.Profile) (core.Profile, error)
	GetProfile(ctx context.Context, user core.UserID) (core.Profile, error)
	// AddExperience atomically adds delta, creating the profile at level 1
	// when absent, and returns the updated profile.
	AddExperience(ctx context.Context, user core.UserID, delta int64) (core.Profile, error)
	// RaiseLevel stores max(current, level) and reports whether it grew.
	RaiseLevel(ctx context.Context, user core.UserID, level int) (bool, error)
	SetLevel(ctx context.Context, user core.UserID, level int) error
}

// NotificationSink records notifications for an external delivery mechanism.
type NotificationSink interface {
	Record(ctx context.Context, n core.Notification) error
}

// NotificationLog reads back notifications recorded by the store.
type NotificationLog interface {
	// Notifications returns up to limit records of user, newest first.
	Notifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error)
}

// Storage is everything the progression service persists.
type Storage interface {
	ProgressLedger
	AchievementStore
	ProfileStore
	NotificationSink
	NotificationLog
}

// PrimaryCounter recomputes counters from the host application's primary
// records, e.g. by counting a user's saved recipes.
type PrimaryCounter interface {
	CountActions(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error)
}

// PrimaryCounterFunc adapts a function to PrimaryCounter.
type PrimaryCounterFunc func(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error)

func (f PrimaryCounterFunc) CountActions(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error) {
	return f(ctx, user)
}

// MultiSink fans a notification out to every sink and joins their errors.
type MultiSink []NotificationSink

func (m MultiSink) Record(ctx context.Context, n core.Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
