package core

import "time"

// NotificationKind distinguishes first unlocks from upgrades.
type NotificationKind string

const (
	NotificationUnlocked NotificationKind = "achievement_unlocked"
	NotificationUpgraded NotificationKind = "achievement_upgraded"
)

// NotificationPayload is the machine-readable part of a notification.
type NotificationPayload struct {
	AchievementID AchievementID `json:"achievement_id"`
	Tier          TierName      `json:"tier"`
	Description   string        `json:"description"`
	IsUpgrade     bool          `json:"is_upgrade"`
}

// Notification is a record handed to an external delivery mechanism.
type Notification struct {
	ID        string              `json:"id"`
	UserID    UserID              `json:"user_id"`
	Kind      NotificationKind    `json:"kind"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Payload   NotificationPayload `json:"payload"`
	IsUpgrade bool                `json:"is_upgrade"`
	CreatedAt time.Time           `json:"created_at"`
}
