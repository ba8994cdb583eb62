package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Store is a concurrent in-memory Storage implementation. Each user has
// its own mutex; leaderboards are kept in skip lists updated under it.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord

	boardsMu      sync.Mutex
	global        *leaderboard.SkipList
	byCountry     map[string]*leaderboard.SkipList
	achievements  *leaderboard.SkipList
	byAchievement map[core.AchievementID]*leaderboard.SkipList

	notifMu       sync.Mutex
	notifications []core.Notification
}

type userRecord struct {
	mu           sync.Mutex
	profile      core.Profile
	hasProfile   bool
	counters     map[core.ActionKey]int64
	achievements map[core.AchievementID]core.UserAchievement
}

func New() *Store {
	return &Store{
		global:        leaderboard.NewSkipList(),
		byCountry:     map[string]*leaderboard.SkipList{},
		achievements:  leaderboard.NewSkipList(),
		byAchievement: map[core.AchievementID]*leaderboard.SkipList{},
	}
}

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		counters:     map[core.ActionKey]int64{},
		achievements: map[core.AchievementID]core.UserAchievement{},
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) lookup(user core.UserID) (*userRecord, bool) {
	v, ok := s.users.Load(user)
	if !ok {
		return nil, false
	}
	return v.(*userRecord), true
}

// Progress ledger

func (s *Store) IncrementProgress(_ context.Context, user core.UserID, key core.ActionKey, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.counters[key], amount)
	if err != nil {
		return 0, err
	}
	rec.counters[key] = next
	return next, nil
}

func (s *Store) SetProgress(_ context.Context, user core.UserID, key core.ActionKey, value int64) error {
	if value < 0 {
		return core.ErrInvalidAmount
	}
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.counters[key] = value
	return nil
}

func (s *Store) GetProgress(_ context.Context, user core.UserID) (map[core.ActionKey]int64, error) {
	out := map[core.ActionKey]int64{}
	rec, ok := s.lookup(user)
	if !ok {
		return out, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for k, v := range rec.counters {
		out[k] = v
	}
	return out, nil
}

// Achievement records

func (s *Store) GetUserAchievement(_ context.Context, user core.UserID, id core.AchievementID) (core.UserAchievement, error) {
	rec, ok := s.lookup(user)
	if !ok {
		return core.UserAchievement{}, core.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	ua, ok := rec.achievements[id]
	if !ok {
		return core.UserAchievement{}, core.ErrNotFound
	}
	return ua, nil
}

func (s *Store) CreateUserAchievement(_ context.Context, ua core.UserAchievement) error {
	rec := s.getOrCreate(ua.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, exists := rec.achievements[ua.AchievementID]; exists {
		return core.ErrDuplicate
	}
	rec.achievements[ua.AchievementID] = ua
	s.indexAchievementsLocked(ua.UserID, rec, ua.AchievementID)
	return nil
}

func (s *Store) UpgradeUserAchievement(_ context.Context, user core.UserID, id core.AchievementID, from, to core.TierName, at time.Time) (bool, error) {
	rec, ok := s.lookup(user)
	if !ok {
		return false, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	ua, ok := rec.achievements[id]
	if !ok || ua.Tier != from {
		return false, nil
	}
	ua.Tier = to
	ua.UnlockedAt = at
	ua.Notified = false
	rec.achievements[id] = ua
	s.indexAchievementsLocked(user, rec, id)
	return true, nil
}

func (s *Store) MarkNotified(_ context.Context, user core.UserID, id core.AchievementID) error {
	rec, ok := s.lookup(user)
	if !ok {
		return core.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	ua, ok := rec.achievements[id]
	if !ok {
		return core.ErrNotFound
	}
	ua.Notified = true
	rec.achievements[id] = ua
	return nil
}

func (s *Store) ListUserAchievements(_ context.Context, user core.UserID) ([]core.UserAchievement, error) {
	out := []core.UserAchievement{}
	rec, ok := s.lookup(user)
	if !ok {
		return out, nil
	}
	rec.mu.Lock()
	for _, ua := range rec.achievements {
		out = append(out, ua)
	}
	rec.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

// Profiles

func (s *Store) EnsureProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	rec := s.getOrCreate(p.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	now := time.Now().UTC()
	oldCountry := rec.profile.Country
	if !rec.hasProfile {
		rec.profile = core.Profile{UserID: p.UserID, Level: 1, CreatedAt: now}
		rec.hasProfile = true
	}
	rec.profile.DisplayName = p.DisplayName
	rec.profile.Country = p.Country
	rec.profile.UpdatedAt = now
	if oldCountry != p.Country {
		s.removeFromCountry(oldCountry, p.UserID)
	}
	s.indexLevelLocked(rec)
	return rec.profile, nil
}

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.Profile, error) {
	rec, ok := s.lookup(user)
	if !ok {
		return core.Profile{}, core.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.hasProfile {
		return core.Profile{}, core.ErrNotFound
	}
	return rec.profile, nil
}

func (s *Store) AddExperience(_ context.Context, user core.UserID, delta int64) (core.Profile, error) {
	if delta <= 0 {
		return core.Profile{}, core.ErrInvalidAmount
	}
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	now := time.Now().UTC()
	if !rec.hasProfile {
		rec.profile = core.Profile{UserID: user, Level: 1, CreatedAt: now}
		rec.hasProfile = true
	}
	next, err := core.AddSafe(rec.profile.Experience, delta)
	if err != nil {
		return core.Profile{}, err
	}
	rec.profile.Experience = next
	rec.profile.UpdatedAt = now
	s.indexLevelLocked(rec)
	return rec.profile, nil
}

func (s *Store) RaiseLevel(_ context.Context, user core.UserID, level int) (bool, error) {
	rec, ok := s.lookup(user)
	if !ok {
		return false, core.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.hasProfile {
		return false, core.ErrNotFound
	}
	if level <= rec.profile.Level {
		return false, nil
	}
	rec.profile.Level = level
	rec.profile.UpdatedAt = time.Now().UTC()
	s.indexLevelLocked(rec)
	return true, nil
}

func (s *Store) SetLevel(_ context.Context, user core.UserID, level int) error {
	rec, ok := s.lookup(user)
	if !ok {
		return core.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.hasProfile {
		return core.ErrNotFound
	}
	rec.profile.Level = level
	rec.profile.UpdatedAt = time.Now().UTC()
	s.indexLevelLocked(rec)
	return nil
}

// Notifications

func (s *Store) Record(_ context.Context, n core.Notification) error {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// Notifications returns up to limit notifications of user, newest first.
func (s *Store) Notifications(_ context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	out := []core.Notification{}
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].UserID == user {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

// Leaderboard indexes. Callers hold the user's mutex.

func (s *Store) indexLevelLocked(rec *userRecord) {
	p := rec.profile
	s.global.Update(p.UserID, int64(p.Level), p.Experience)
	if p.Country != "" {
		s.countryBoard(p.Country, true).Update(p.UserID, int64(p.Level), p.Experience)
	}
}

func (s *Store) removeFromCountry(country string, user core.UserID) {
	if country == "" {
		return
	}
	if b := s.countryBoard(country, false); b != nil {
		b.Remove(user)
	}
}

func (s *Store) indexAchievementsLocked(user core.UserID, rec *userRecord, id core.AchievementID) {
	s.achievements.Update(user, int64(len(rec.achievements)), 0)
	pos := core.TierPosition(rec.achievements[id].Tier)
	s.achievementBoard(id, true).Update(user, int64(pos), 0)
}

func (s *Store) countryBoard(country string, create bool) *leaderboard.SkipList {
	s.boardsMu.Lock()
	defer s.boardsMu.Unlock()
	b, ok := s.byCountry[country]
	if !ok && create {
		b = leaderboard.NewSkipList()
		s.byCountry[country] = b
	}
	return b
}

func (s *Store) achievementBoard(id core.AchievementID, create bool) *leaderboard.SkipList {
	s.boardsMu.Lock()
	defer s.boardsMu.Unlock()
	if id == "" {
		return s.achievements
	}
	b, ok := s.byAchievement[id]
	if !ok && create {
		b = leaderboard.NewSkipList()
		s.byAchievement[id] = b
	}
	return b
}

func (s *Store) levelBoard(country string) *leaderboard.SkipList {
	if country == "" {
		return s.global
	}
	return s.countryBoard(country, false)
}

// standing fills in profile fields for a ranked entry.
func (s *Store) standing(rank int64, user core.UserID, count int64) core.Standing {
	st := core.Standing{Rank: rank, UserID: user, Level: 1, Achievements: count}
	if rec, ok := s.lookup(user); ok {
		rec.mu.Lock()
		if rec.hasProfile {
			st.DisplayName = rec.profile.DisplayName
			st.Country = rec.profile.Country
			st.Level = rec.profile.Level
			st.Experience = rec.profile.Experience
		}
		rec.mu.Unlock()
	}
	return st
}

func (s *Store) TopByLevel(ctx context.Context, country string, limit int) ([]core.Standing, error) {
	b := s.levelBoard(country)
	if b == nil {
		return []core.Standing{}, nil
	}
	top := b.TopN(limit)
	out := make([]core.Standing, 0, len(top))
	for i, e := range top {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := s.standing(int64(i+1), e.User, 0)
		st.Level, st.Experience = int(e.Primary), e.Secondary
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) LevelStanding(_ context.Context, user core.UserID, country string) (core.Standing, error) {
	b := s.levelBoard(country)
	if b == nil {
		return core.Standing{}, core.ErrNotFound
	}
	e, ok := b.Get(user)
	if !ok {
		return core.Standing{}, core.ErrNotFound
	}
	st := s.standing(b.CountBefore(e)+1, user, 0)
	st.Level, st.Experience = int(e.Primary), e.Secondary
	return st, nil
}

func (s *Store) Countries(_ context.Context) ([]string, error) {
	s.boardsMu.Lock()
	defer s.boardsMu.Unlock()
	out := []string{}
	for c, b := range s.byCountry {
		if b.Len() > 0 {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) TopByAchievements(ctx context.Context, id core.AchievementID, limit int) ([]core.Standing, error) {
	b := s.achievementBoard(id, false)
	if b == nil {
		return []core.Standing{}, nil
	}
	top := b.TopN(limit)
	out := make([]core.Standing, 0, len(top))
	for i, e := range top {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, s.standing(int64(i+1), e.User, e.Primary))
	}
	return out, nil
}

func (s *Store) AchievementStanding(_ context.Context, user core.UserID, id core.AchievementID) (core.Standing, error) {
	b := s.achievementBoard(id, false)
	if b == nil {
		return s.standing(1, user, 0), nil
	}
	e, ok := b.Get(user)
	if !ok {
		e = leaderboard.Entry{User: user}
	}
	return s.standing(b.CountBefore(e)+1, user, e.Primary), nil
}

var _ leaderboard.Source = (*Store)(nil)
