package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxNotifications caps the per-user notification list.
	MaxNotifications int64
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:             "localhost:6379",
		Password:         "",
		DB:               0,
		PoolSize:         10,
		MinIdleConns:     2,
		DialTimeout:      5 * time.Second,
		ReadTimeout:      3 * time.Second,
		WriteTimeout:     3 * time.Second,
		MaxNotifications: 500,
	}
}

// Store implements engine.Storage and leaderboard.Source on Redis.
// Data structure:
//   - user:{user_id}:progress -> hash action key -> counter
//   - user:{user_id}:achievements -> hash achievement id -> tier name
//   - user:{user_id}:achievements:unlocked_at -> hash achievement id -> RFC3339 time
//   - user:{user_id}:achievements:notified -> hash achievement id -> 0|1
//   - user:{user_id}:profile -> hash display_name, country, xp, level, created_at, updated_at
//   - user:{user_id}:notifications -> list of JSON notifications, newest first
//   - lb:level, lb:level:{country} -> zset scored -(level*1e12 + xp)
//   - lb:countries -> set of countries with a non-empty board
//   - lb:achievements, lb:achievements:{achievement_id} -> zset scored -count
//
// Scores are negated so that ascending zset order, whose ties Redis breaks
// by member bytes, gives (score desc, user id asc).
type Store struct {
	client           *redis.Client
	maxNotifications int64
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewWithClient(client)
	if config.MaxNotifications > 0 {
		s.maxNotifications = config.MaxNotifications
	}
	return s, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, maxNotifications: DefaultConfig().MaxNotifications}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

const levelScoreBase = 1e12

func progressKey(u core.UserID) string { return fmt.Sprintf("user:%s:progress", u) }
func achievementsKey(u core.UserID) string { return fmt.Sprintf("user:%s:achievements", u) }
func unlockedAtKey(u core.UserID) string { return fmt.Sprintf("user:%s:achievements:unlocked_at", u) }
func notifiedKey(u core.UserID) string { return fmt.Sprintf("user:%s:achievements:notified", u) }
func profileKey(u core.UserID) string { return fmt.Sprintf("user:%s:profile", u) }
func notificationsKey(u core.UserID) string { return fmt.Sprintf("user:%s:notifications", u) }
func achievementBoardKey(id core.AchievementID) string {
	if id == "" {
		return "lb:achievements"
	}
	return "lb:achievements:" + string(id)
}
func levelBoardKey(country string) string {
	if country == "" {
		return "lb:level"
	}
	return "lb:level:" + country
}

// reindexLua recomputes a user's level board scores from the profile hash.
const reindexLua = `
local function reindex(pkey, user, base)
	local p = redis.call('HMGET', pkey, 'xp', 'level', 'country')
	local xp = tonumber(p[1]) or 0
	local level = tonumber(p[2]) or 1
	local score = -(level * base + xp)
	redis.call('ZADD', 'lb:level', score, user)
	if p[3] and p[3] ~= '' then
		redis.call('ZADD', 'lb:level:' .. p[3], score, user)
		redis.call('SADD', 'lb:countries', p[3])
	end
end
`

// KEYS: profile. ARGV: user, display name, country, now, base.
var ensureProfileScript = redis.NewScript(reindexLua + `
local old = redis.call('HGET', KEYS[1], 'country')
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'xp', 0, 'level', 1, 'created_at', ARGV[4])
end
redis.call('HSET', KEYS[1], 'display_name', ARGV[2], 'country', ARGV[3], 'updated_at', ARGV[4])
if old and old ~= '' and old ~= ARGV[3] then
	redis.call('ZREM', 'lb:level:' .. old, ARGV[1])
	if redis.call('ZCARD', 'lb:level:' .. old) == 0 then
		redis.call('SREM', 'lb:countries', old)
	end
end
reindex(KEYS[1], ARGV[1], tonumber(ARGV[5]))
return 1
`)

// KEYS: profile. ARGV: user, delta, now, base. Returns the new total.
var addExperienceScript = redis.NewScript(reindexLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'xp', 0, 'level', 1, 'created_at', ARGV[3])
end
local xp = redis.call('HINCRBY', KEYS[1], 'xp', ARGV[2])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
reindex(KEYS[1], ARGV[1], tonumber(ARGV[4]))
return xp
`)

// KEYS: profile. ARGV: user, level, now, base, raise-only flag.
// Returns -1 when the profile is missing, 1 when written, 0 otherwise.
var setLevelScript = redis.NewScript(reindexLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local cur = tonumber(redis.call('HGET', KEYS[1], 'level')) or 1
local want = tonumber(ARGV[2])
if ARGV[5] == '1' and want <= cur then
	return 0
end
redis.call('HSET', KEYS[1], 'level', want, 'updated_at', ARGV[3])
reindex(KEYS[1], ARGV[1], tonumber(ARGV[4]))
return 1
`)

// KEYS: tiers, unlocked_at, notified, count board, achievement board.
// ARGV: achievement id, tier, unlocked at, user, tier position.
var createAchievementScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[3], ARGV[1], '0')
redis.call('ZADD', KEYS[4], -redis.call('HLEN', KEYS[1]), ARGV[4])
redis.call('ZADD', KEYS[5], -tonumber(ARGV[5]), ARGV[4])
return 1
`)

// KEYS: tiers, unlocked_at, notified, achievement board.
// ARGV: achievement id, from, to, unlocked at, user, tier position.
var upgradeAchievementScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) ~= ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[4])
redis.call('HSET', KEYS[3], ARGV[1], '0')
redis.call('ZADD', KEYS[4], -tonumber(ARGV[6]), ARGV[5])
return 1
`)

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// Progress ledger

func (s *Store) IncrementProgress(ctx context.Context, user core.UserID, key core.ActionKey, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	v, err := s.client.HIncrBy(ctx, progressKey(user), string(key), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment progress: %w", err)
	}
	return v, nil
}

func (s *Store) SetProgress(ctx context.Context, user core.UserID, key core.ActionKey, value int64) error {
	if value < 0 {
		return core.ErrInvalidAmount
	}
	if err := s.client.HSet(ctx, progressKey(user), string(key), value).Err(); err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error) {
	raw, err := s.client.HGetAll(ctx, progressKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	out := make(map[core.ActionKey]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue // Skip invalid entries
		}
		out[core.ActionKey(k)] = n
	}
	return out, nil
}

// Achievement records

func (s *Store) GetUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID) (core.UserAchievement, error) {
	pipe := s.client.Pipeline()
	tier := pipe.HGet(ctx, achievementsKey(user), string(id))
	at := pipe.HGet(ctx, unlockedAtKey(user), string(id))
	notified := pipe.HGet(ctx, notifiedKey(user), string(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return core.UserAchievement{}, fmt.Errorf("failed to get achievement: %w", err)
	}
	name, err := tier.Result()
	if errors.Is(err, redis.Nil) {
		return core.UserAchievement{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserAchievement{}, fmt.Errorf("failed to get achievement: %w", err)
	}
	ua := core.UserAchievement{
		UserID:        user,
		AchievementID: id,
		Tier:          core.TierName(name),
		Notified:      notified.Val() == "1",
	}
	ua.UnlockedAt, _ = time.Parse(time.RFC3339Nano, at.Val())
	return ua, nil
}

func (s *Store) CreateUserAchievement(ctx context.Context, ua core.UserAchievement) error {
	keys := []string{
		achievementsKey(ua.UserID), unlockedAtKey(ua.UserID), notifiedKey(ua.UserID),
		achievementBoardKey(""), achievementBoardKey(ua.AchievementID),
	}
	created, err := createAchievementScript.Run(ctx, s.client, keys,
		string(ua.AchievementID), string(ua.Tier), ua.UnlockedAt.UTC().Format(time.RFC3339Nano),
		string(ua.UserID), core.TierPosition(ua.Tier)).Int()
	if err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	if created == 0 {
		return core.ErrDuplicate
	}
	return nil
}

func (s *Store) UpgradeUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID, from, to core.TierName, at time.Time) (bool, error) {
	keys := []string{achievementsKey(user), unlockedAtKey(user), notifiedKey(user), achievementBoardKey(id)}
	swapped, err := upgradeAchievementScript.Run(ctx, s.client, keys,
		string(id), string(from), string(to), at.UTC().Format(time.RFC3339Nano),
		string(user), core.TierPosition(to)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to upgrade achievement: %w", err)
	}
	return swapped == 1, nil
}

func (s *Store) MarkNotified(ctx context.Context, user core.UserID, id core.AchievementID) error {
	exists, err := s.client.HExists(ctx, achievementsKey(user), string(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	if !exists {
		return core.ErrNotFound
	}
	if err := s.client.HSet(ctx, notifiedKey(user), string(id), "1").Err(); err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	return nil
}

func (s *Store) ListUserAchievements(ctx context.Context, user core.UserID) ([]core.UserAchievement, error) {
	pipe := s.client.Pipeline()
	tiers := pipe.HGetAll(ctx, achievementsKey(user))
	ats := pipe.HGetAll(ctx, unlockedAtKey(user))
	notified := pipe.HGetAll(ctx, notifiedKey(user))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	out := make([]core.UserAchievement, 0, len(tiers.Val()))
	for id, tier := range tiers.Val() {
		ua := core.UserAchievement{
			UserID:        user,
			AchievementID: core.AchievementID(id),
			Tier:          core.TierName(tier),
			Notified:      notified.Val()[id] == "1",
		}
		ua.UnlockedAt, _ = time.Parse(time.RFC3339Nano, ats.Val()[id])
		out = append(out, ua)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

// Profiles

func (s *Store) EnsureProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	err := ensureProfileScript.Run(ctx, s.client, []string{profileKey(p.UserID)},
		string(p.UserID), p.DisplayName, p.Country, now(), levelScoreBase).Err()
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return s.GetProfile(ctx, p.UserID)
}

func (s *Store) GetProfile(ctx context.Context, user core.UserID) (core.Profile, error) {
	raw, err := s.client.HGetAll(ctx, profileKey(user)).Result()
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(raw) == 0 {
		return core.Profile{}, core.ErrNotFound
	}
	return decodeProfile(user, raw), nil
}

func decodeProfile(user core.UserID, raw map[string]string) core.Profile {
	p := core.Profile{UserID: user, DisplayName: raw["display_name"], Country: raw["country"], Level: 1}
	p.Experience, _ = strconv.ParseInt(raw["xp"], 10, 64)
	if l, err := strconv.Atoi(raw["level"]); err == nil {
		p.Level = l
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, raw["created_at"])
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw["updated_at"])
	return p
}

func (s *Store) AddExperience(ctx context.Context, user core.UserID, delta int64) (core.Profile, error) {
	if delta <= 0 {
		return core.Profile{}, core.ErrInvalidAmount
	}
	xp, err := addExperienceScript.Run(ctx, s.client, []string{profileKey(user)},
		string(user), delta, now(), levelScoreBase).Int64()
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to add experience: %w", err)
	}
	p, err := s.GetProfile(ctx, user)
	if err != nil {
		return core.Profile{}, err
	}
	p.Experience = xp
	return p, nil
}

func (s *Store) RaiseLevel(ctx context.Context, user core.UserID, level int) (bool, error) {
	return s.setLevel(ctx, user, level, true)
}

func (s *Store) SetLevel(ctx context.Context, user core.UserID, level int) error {
	_, err := s.setLevel(ctx, user, level, false)
	return err
}

func (s *Store) setLevel(ctx context.Context, user core.UserID, level int, raiseOnly bool) (bool, error) {
	flag := "0"
	if raiseOnly {
		flag = "1"
	}
	res, err := setLevelScript.Run(ctx, s.client, []string{profileKey(user)},
		string(user), level, now(), levelScoreBase, flag).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set level: %w", err)
	}
	if res < 0 {
		return false, core.ErrNotFound
	}
	return res == 1, nil
}

// Notifications

func (s *Store) Record(ctx context.Context, n core.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := notificationsKey(n.UserID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.maxNotifications-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (s *Store) Notifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		return []core.Notification{}, nil
	}
	raw, err := s.client.LRange(ctx, notificationsKey(user), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]core.Notification, 0, len(raw))
	for _, r := range raw {
		var n core.Notification
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Leaderboards

// profiles loads the profile hashes of users in one round trip.
func (s *Store) profiles(ctx context.Context, users []string) (map[string]core.Profile, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(users))
	for i, u := range users {
		cmds[i] = pipe.HGetAll(ctx, profileKey(core.UserID(u)))
	}
	if len(users) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
	}
	out := make(map[string]core.Profile, len(users))
	for i, u := range users {
		out[u] = decodeProfile(core.UserID(u), cmds[i].Val())
	}
	return out, nil
}

func standingFrom(rank int64, p core.Profile, achievements int64) core.Standing {
	return core.Standing{
		Rank:         rank,
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		Country:      p.Country,
		Level:        p.Level,
		Experience:   p.Experience,
		Achievements: achievements,
	}
}

func (s *Store) top(ctx context.Context, key string, limit int) ([]redis.Z, map[string]core.Profile, error) {
	if limit <= 0 {
		return nil, nil, nil
	}
	zs, err := s.client.ZRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read leaderboard %s: %w", key, err)
	}
	users := make([]string, len(zs))
	for i, z := range zs {
		users[i] = z.Member.(string)
	}
	profiles, err := s.profiles(ctx, users)
	if err != nil {
		return nil, nil, err
	}
	return zs, profiles, nil
}

func (s *Store) TopByLevel(ctx context.Context, country string, limit int) ([]core.Standing, error) {
	zs, profiles, err := s.top(ctx, levelBoardKey(country), limit)
	if err != nil {
		return nil, err
	}
	out := make([]core.Standing, 0, len(zs))
	for i, z := range zs {
		out = append(out, standingFrom(int64(i+1), profiles[z.Member.(string)], 0))
	}
	return out, nil
}

func (s *Store) LevelStanding(ctx context.Context, user core.UserID, country string) (core.Standing, error) {
	rank, err := s.client.ZRank(ctx, levelBoardKey(country), string(user)).Result()
	if errors.Is(err, redis.Nil) {
		return core.Standing{}, core.ErrNotFound
	}
	if err != nil {
		return core.Standing{}, fmt.Errorf("failed to rank user: %w", err)
	}
	p, err := s.GetProfile(ctx, user)
	if err != nil {
		return core.Standing{}, err
	}
	return standingFrom(rank+1, p, 0), nil
}

func (s *Store) Countries(ctx context.Context) ([]string, error) {
	out, err := s.client.SMembers(ctx, "lb:countries").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) TopByAchievements(ctx context.Context, id core.AchievementID, limit int) ([]core.Standing, error) {
	zs, profiles, err := s.top(ctx, achievementBoardKey(id), limit)
	if err != nil {
		return nil, err
	}
	out := make([]core.Standing, 0, len(zs))
	for i, z := range zs {
		u := z.Member.(string)
		p := profiles[u]
		p.UserID = core.UserID(u)
		out = append(out, standingFrom(int64(i+1), p, int64(-z.Score)))
	}
	return out, nil
}

func (s *Store) AchievementStanding(ctx context.Context, user core.UserID, id core.AchievementID) (core.Standing, error) {
	key := achievementBoardKey(id)
	pipe := s.client.Pipeline()
	score := pipe.ZScore(ctx, key, string(user))
	rank := pipe.ZRank(ctx, key, string(user))
	card := pipe.ZCard(ctx, key)
	profile := pipe.HGetAll(ctx, profileKey(user))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return core.Standing{}, fmt.Errorf("failed to rank user: %w", err)
	}
	p := decodeProfile(user, profile.Val())
	if errors.Is(score.Err(), redis.Nil) {
		return standingFrom(card.Val()+1, p, 0), nil
	}
	return standingFrom(rank.Val()+1, p, int64(-score.Val())), nil
}

var (
	_ engine.Storage     = (*Store)(nil)
	_ leaderboard.Source = (*Store)(nil)
)
