package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventActionRecorded      EventType = "action_recorded"
	EventProgressUpdated     EventType = "progress_updated"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventAchievementUpgraded EventType = "achievement_upgraded"
	EventLevelUp             EventType = "level_up"
)

// Event represents an immutable domain event.
type Event struct {
	Type          EventType      `json:"type"`
	Time          time.Time      `json:"time"`
	UserID        UserID         `json:"user_id"`
	Action        ActionKey      `json:"action,omitempty"`
	Amount        int64          `json:"amount,omitempty"`
	AchievementID AchievementID  `json:"achievement_id,omitempty"`
	Tier          TierName       `json:"tier,omitempty"`
	XP            int64          `json:"xp,omitempty"`
	Level         int            `json:"level,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func NewActionRecorded(user UserID, action ActionKey, amount int64) Event {
	return Event{Type: EventActionRecorded, Time: time.Now().UTC(), UserID: user, Action: action, Amount: amount}
}

// NewProgressUpdated reports the counter value after a ledger write.
func NewProgressUpdated(user UserID, action ActionKey, value int64) Event {
	return Event{Type: EventProgressUpdated, Time: time.Now().UTC(), UserID: user, Action: action, Amount: value}
}

// NewUnlockEvent builds the unlocked or upgraded event for u.
func NewUnlockEvent(user UserID, u Unlock) Event {
	typ := EventAchievementUnlocked
	if u.IsUpgrade {
		typ = EventAchievementUpgraded
	}
	return Event{Type: typ, Time: time.Now().UTC(), UserID: user, AchievementID: u.AchievementID, Tier: u.Tier, XP: u.XPAwarded}
}

func NewLevelUp(user UserID, level int, xp int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Level: level, XP: xp}
}
