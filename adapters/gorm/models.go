package gormstore

import (
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// The models share table names with the sqlx adapter so either can read a
// database the other created.

type ProgressCounter struct {
	UserID    string `gorm:"primaryKey;size:191"`
	ActionKey string `gorm:"primaryKey;size:64"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (ProgressCounter) TableName() string { return "progress_counters" }

type UserAchievement struct {
	UserID        string `gorm:"primaryKey;size:191"`
	AchievementID string `gorm:"primaryKey;size:64;index:idx_user_achievements_board,priority:1"`
	Tier          string `gorm:"size:16;not null"`
	TierPosition  int    `gorm:"not null;index:idx_user_achievements_board,priority:2"`
	UnlockedAt    time.Time
	Notified      bool `gorm:"not null;default:false"`
}

func (UserAchievement) TableName() string { return "user_achievements" }

func (r UserAchievement) record() core.UserAchievement {
	return core.UserAchievement{
		UserID:        core.UserID(r.UserID),
		AchievementID: core.AchievementID(r.AchievementID),
		Tier:          core.TierName(r.Tier),
		UnlockedAt:    r.UnlockedAt.UTC(),
		Notified:      r.Notified,
	}
}

type UserProfile struct {
	UserID      string `gorm:"primaryKey;size:191"`
	DisplayName string `gorm:"size:191;not null;default:''"`
	Country     string `gorm:"size:8;not null;default:'';index:idx_user_profiles_country"`
	Experience  int64  `gorm:"not null;default:0;index:idx_user_profiles_rank,priority:2"`
	Level       int    `gorm:"not null;default:1;index:idx_user_profiles_rank,priority:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UserProfile) TableName() string { return "user_profiles" }

func (r UserProfile) profile() core.Profile {
	return core.Profile{
		UserID:      core.UserID(r.UserID),
		DisplayName: r.DisplayName,
		Country:     r.Country,
		Experience:  r.Experience,
		Level:       r.Level,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type NotificationRecord struct {
	ID        string                   `gorm:"primaryKey;size:36"`
	UserID    string                   `gorm:"size:191;not null;index"`
	Kind      string                   `gorm:"size:32;not null"`
	Title     string                   `gorm:"size:255;not null"`
	Message   string                   `gorm:"type:text;not null"`
	Payload   core.NotificationPayload `gorm:"type:text;serializer:json"`
	IsUpgrade bool
	CreatedAt time.Time
}

func (NotificationRecord) TableName() string { return "notifications" }

func (r NotificationRecord) notification() core.Notification {
	return core.Notification{
		ID:        r.ID,
		UserID:    core.UserID(r.UserID),
		Kind:      core.NotificationKind(r.Kind),
		Title:     r.Title,
		Message:   r.Message,
		Payload:   r.Payload,
		IsUpgrade: r.IsUpgrade,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
