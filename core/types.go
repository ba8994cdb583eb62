package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies an account in the progression domain.
type UserID string

// ActionKey names a countable user behavior such as "recipes_saved".
type ActionKey string

// AchievementID identifies an achievement definition in the catalog.
type AchievementID string

// Category groups achievements for display.
type Category string

const (
	CategoryCooking   Category = "cooking"
	CategorySocial    Category = "social"
	CategoryCommunity Category = "community"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCooking, CategorySocial, CategoryCommunity:
		return true
	}
	return false
}

// Profile is the progression slice of a user record. Level is a cached
// value derived from Experience and is only written by the engine.
type Profile struct {
	UserID      UserID    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Country     string    `json:"country,omitempty"`
	Experience  int64     `json:"experience"`
	Level       int       `json:"level"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserAchievement is the persisted unlock record. At most one exists per
// (UserID, AchievementID) and Tier only ever moves forward.
type UserAchievement struct {
	UserID        UserID        `json:"user_id"`
	AchievementID AchievementID `json:"achievement_id"`
	Tier          TierName      `json:"tier"`
	UnlockedAt    time.Time     `json:"unlocked_at"`
	Notified      bool          `json:"notified"`
}

// Unlock describes one tier crossing produced by a progress check.
type Unlock struct {
	AchievementID AchievementID `json:"achievement_id"`
	Tier          TierName      `json:"tier"`
	IsUpgrade     bool          `json:"is_upgrade"`
	XPAwarded     int64         `json:"xp_awarded"`
}

// Standing is one row of a leaderboard with its exact 1-based rank.
type Standing struct {
	Rank         int64  `json:"rank"`
	UserID       UserID `json:"user_id"`
	DisplayName  string `json:"display_name,omitempty"`
	Country      string `json:"country,omitempty"`
	Level        int    `json:"level"`
	Experience   int64  `json:"experience"`
	Achievements int64  `json:"achievements"`
}

// ProgressReport aggregates everything the engine knows about one user.
type ProgressReport struct {
	Profile      Profile             `json:"profile"`
	XP           XPProgress          `json:"xp"`
	Counters     map[ActionKey]int64 `json:"counters"`
	Achievements []UserAchievement   `json:"achievements"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims surrounding whitespace. Identifiers are compared
// byte-wise for leaderboard tie-breaks, so case is preserved.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", ErrEmptyUserID
	}
	return UserID(s), nil
}

// ValidateActionKey ensures a non-empty key made of [a-z0-9_-].
func ValidateActionKey(k ActionKey) error {
	s := string(k)
	if strings.TrimSpace(s) == "" {
		return errors.New("empty action key")
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid action key")
	}
	return nil
}
