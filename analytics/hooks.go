package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// ComprehensiveMetrics counts engagement, actions, unlocks and level-ups
// per day, plus running totals by achievement and tier.
type ComprehensiveMetrics struct {
	mu sync.RWMutex

	// User engagement metrics
	dailyActiveUsers   map[string]map[core.UserID]struct{}
	weeklyActiveUsers  map[string]map[core.UserID]struct{}
	monthlyActiveUsers map[string]map[core.UserID]struct{}

	// Action metrics
	actionsByDay map[string]int64
	actionsByKey map[core.ActionKey]int64

	// Unlock metrics
	unlocksByDay         map[string]int64
	upgradesByDay        map[string]int64
	xpAwardedByDay       map[string]int64
	unlocksByAchievement map[core.AchievementID]int64
	unlocksByTier        map[core.TierName]int64

	// Level metrics
	levelsReachedByDay map[string]int64
	userLevels         map[core.UserID]int

	// Real-time counters (last 24 hours)
	realtimeCounters struct {
		actions   int64
		unlocks   int64
		levelUps  int64
		lastReset time.Time
	}
}

func NewComprehensiveMetrics() *ComprehensiveMetrics {
	cm := &ComprehensiveMetrics{
		dailyActiveUsers:     make(map[string]map[core.UserID]struct{}),
		weeklyActiveUsers:    make(map[string]map[core.UserID]struct{}),
		monthlyActiveUsers:   make(map[string]map[core.UserID]struct{}),
		actionsByDay:         make(map[string]int64),
		actionsByKey:         make(map[core.ActionKey]int64),
		unlocksByDay:         make(map[string]int64),
		upgradesByDay:        make(map[string]int64),
		xpAwardedByDay:       make(map[string]int64),
		unlocksByAchievement: make(map[core.AchievementID]int64),
		unlocksByTier:        make(map[core.TierName]int64),
		levelsReachedByDay:   make(map[string]int64),
		userLevels:           make(map[core.UserID]int),
	}
	cm.realtimeCounters.lastReset = time.Now()
	return cm
}

func (cm *ComprehensiveMetrics) OnEvent(e core.Event) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	day := dayKey(e.Time)
	cm.trackUserEngagement(e.UserID, day, getWeekKey(e.Time), getMonthKey(e.Time))

	switch e.Type {
	case core.EventActionRecorded:
		if e.Amount > 0 {
			cm.actionsByDay[day] += e.Amount
			cm.actionsByKey[e.Action] += e.Amount
			cm.realtimeCounters.actions += e.Amount
		}
	case core.EventAchievementUnlocked, core.EventAchievementUpgraded:
		if e.Type == core.EventAchievementUpgraded {
			cm.upgradesByDay[day]++
		} else {
			cm.unlocksByDay[day]++
		}
		cm.xpAwardedByDay[day] += e.XP
		cm.unlocksByAchievement[e.AchievementID]++
		cm.unlocksByTier[e.Tier]++
		cm.realtimeCounters.unlocks++
	case core.EventLevelUp:
		cm.levelsReachedByDay[day]++
		if e.Level > cm.userLevels[e.UserID] {
			cm.userLevels[e.UserID] = e.Level
		}
		cm.realtimeCounters.levelUps++
	}

	// Reset realtime counters if needed (every 24 hours)
	if time.Since(cm.realtimeCounters.lastReset) > 24*time.Hour {
		cm.realtimeCounters.actions = 0
		cm.realtimeCounters.unlocks = 0
		cm.realtimeCounters.levelUps = 0
		cm.realtimeCounters.lastReset = time.Now()
	}
}

func (cm *ComprehensiveMetrics) trackUserEngagement(userID core.UserID, day, week, month string) {
	addUser(cm.dailyActiveUsers, day, userID)
	addUser(cm.weeklyActiveUsers, week, userID)
	addUser(cm.monthlyActiveUsers, month, userID)
}

func addUser(m map[string]map[core.UserID]struct{}, key string, user core.UserID) {
	if m[key] == nil {
		m[key] = make(map[core.UserID]struct{})
	}
	m[key][user] = struct{}{}
}

// GetDailyActiveUsers returns the count of daily active users for a specific day
func (cm *ComprehensiveMetrics) GetDailyActiveUsers(day string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.dailyActiveUsers[day])
}

// GetWeeklyActiveUsers returns the count of weekly active users for a specific week
func (cm *ComprehensiveMetrics) GetWeeklyActiveUsers(week string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.weeklyActiveUsers[week])
}

// GetMonthlyActiveUsers returns the count of monthly active users for a specific month
func (cm *ComprehensiveMetrics) GetMonthlyActiveUsers(month string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.monthlyActiveUsers[month])
}

// DayTotals is what one calendar day contributed.
type DayTotals struct {
	Actions       int64
	Unlocks       int64
	Upgrades      int64
	XPAwarded     int64
	LevelsReached int64
}

func (t *DayTotals) add(o DayTotals) {
	t.Actions += o.Actions
	t.Unlocks += o.Unlocks
	t.Upgrades += o.Upgrades
	t.XPAwarded += o.XPAwarded
	t.LevelsReached += o.LevelsReached
}

// GetDayTotals returns the counters of one "2006-01-02" day.
func (cm *ComprehensiveMetrics) GetDayTotals(day string) DayTotals {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return DayTotals{
		Actions:       cm.actionsByDay[day],
		Unlocks:       cm.unlocksByDay[day],
		Upgrades:      cm.upgradesByDay[day],
		XPAwarded:     cm.xpAwardedByDay[day],
		LevelsReached: cm.levelsReachedByDay[day],
	}
}

// GetUnlocksByAchievement returns how often an achievement was unlocked or
// upgraded.
func (cm *ComprehensiveMetrics) GetUnlocksByAchievement(id core.AchievementID) int64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.unlocksByAchievement[id]
}

// GetRealtimeStats returns real-time statistics for the last 24 hours
func (cm *ComprehensiveMetrics) GetRealtimeStats() (actions, unlocks, levelUps int64) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.realtimeCounters.actions, cm.realtimeCounters.unlocks, cm.realtimeCounters.levelUps
}

// AchievementCount is one row of the most-unlocked list.
type AchievementCount struct {
	AchievementID core.AchievementID `json:"achievement_id"`
	Count         int64              `json:"count"`
}

// Stats is the snapshot served on the stats endpoint.
type Stats struct {
	Day               string                   `json:"day"`
	DailyActiveUsers  int                      `json:"daily_active_users"`
	WeeklyActiveUsers int                      `json:"weekly_active_users"`
	Today             DayTotalsJSON            `json:"today"`
	TopAchievements   []AchievementCount       `json:"top_achievements"`
	UnlocksByTier     map[core.TierName]int64  `json:"unlocks_by_tier"`
	ActionsByKey      map[core.ActionKey]int64 `json:"actions_by_key"`
	LevelDistribution map[int]int              `json:"level_distribution"`
}

// DayTotalsJSON is DayTotals with wire names.
type DayTotalsJSON struct {
	Actions       int64 `json:"actions"`
	Unlocks       int64 `json:"unlocks"`
	Upgrades      int64 `json:"upgrades"`
	XPAwarded     int64 `json:"xp_awarded"`
	LevelsReached int64 `json:"levels_reached"`
}

// Snapshot summarizes the metrics as of now, listing at most limit
// achievements.
func (cm *ComprehensiveMetrics) Snapshot(now time.Time, limit int) Stats {
	day := dayKey(now)
	totals := cm.GetDayTotals(day)

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	st := Stats{
		Day:               day,
		DailyActiveUsers:  len(cm.dailyActiveUsers[day]),
		WeeklyActiveUsers: len(cm.weeklyActiveUsers[getWeekKey(now)]),
		Today:             DayTotalsJSON(totals),
		TopAchievements:   make([]AchievementCount, 0, len(cm.unlocksByAchievement)),
		UnlocksByTier:     make(map[core.TierName]int64, len(cm.unlocksByTier)),
		ActionsByKey:      make(map[core.ActionKey]int64, len(cm.actionsByKey)),
		LevelDistribution: make(map[int]int),
	}
	for id, n := range cm.unlocksByAchievement {
		st.TopAchievements = append(st.TopAchievements, AchievementCount{AchievementID: id, Count: n})
	}
	sort.Slice(st.TopAchievements, func(i, j int) bool {
		a, b := st.TopAchievements[i], st.TopAchievements[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.AchievementID < b.AchievementID
	})
	if limit > 0 && len(st.TopAchievements) > limit {
		st.TopAchievements = st.TopAchievements[:limit]
	}
	for t, n := range cm.unlocksByTier {
		st.UnlocksByTier[t] = n
	}
	for k, n := range cm.actionsByKey {
		st.ActionsByKey[k] = n
	}
	for _, l := range cm.userLevels {
		st.LevelDistribution[l]++
	}
	return st
}

// Helper functions
func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func getWeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func getMonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
