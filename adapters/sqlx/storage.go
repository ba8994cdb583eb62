// Package sqlx stores progression state in PostgreSQL, MySQL or SQLite
// through jmoiron/sqlx.
package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Driver names the SQL dialect and the database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite3"
)

// Config holds connection settings.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate creates missing tables on Open.
	AutoMigrate bool
}

// Store implements engine.Storage and leaderboard.Source on a relational
// database. Every write is a single statement except on MySQL, where the
// upserts that need the resulting row run in a transaction.
type Store struct {
	db     *sqlx.DB
	driver Driver
	now    func() time.Time
}

// Open connects using cfg. MySQL DSNs need parseTime=true.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if _, ok := columnTypes[cfg.Driver]; !ok {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	// each connection to an in-memory SQLite database is its own database
	if cfg.Driver == DriverSQLite && strings.Contains(cfg.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// DB exposes the handle for host-side queries such as primary counters.
func (s *Store) DB() *sqlx.DB { return s.db }

var excludedRef = regexp.MustCompile(`excluded\.(\w+)`)

// onConflict renders an upsert clause. sets are written with excluded.col
// references, which MySQL spells VALUES(col).
func (s *Store) onConflict(target string, sets ...string) string {
	if s.driver == DriverMySQL {
		out := make([]string, len(sets))
		for i, set := range sets {
			out[i] = excludedRef.ReplaceAllString(set, "VALUES($1)")
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(out, ", ")
	}
	return " ON CONFLICT (" + target + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// isUniqueViolation recognizes primary key and unique constraint errors
// of every supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Progress ledger

func (s *Store) IncrementProgress(ctx context.Context, user core.UserID, key core.ActionKey, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	insert := `INSERT INTO progress_counters (user_id, action_key, value, updated_at) VALUES (?, ?, ?, ?)` +
		s.onConflict("user_id, action_key", "value = progress_counters.value + excluded.value", "updated_at = excluded.updated_at")
	args := []any{user, key, amount, s.now()}

	var v int64
	if s.driver == DriverMySQL {
		err := s.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
				return err
			}
			return tx.GetContext(ctx, &v, `SELECT value FROM progress_counters WHERE user_id = ? AND action_key = ?`, user, key)
		})
		if err != nil {
			return 0, fmt.Errorf("failed to increment progress: %w", err)
		}
		return v, nil
	}
	if err := s.db.GetContext(ctx, &v, s.db.Rebind(insert+` RETURNING value`), args...); err != nil {
		return 0, fmt.Errorf("failed to increment progress: %w", err)
	}
	return v, nil
}

func (s *Store) SetProgress(ctx context.Context, user core.UserID, key core.ActionKey, value int64) error {
	if value < 0 {
		return core.ErrInvalidAmount
	}
	q := `INSERT INTO progress_counters (user_id, action_key, value, updated_at) VALUES (?, ?, ?, ?)` +
		s.onConflict("user_id, action_key", "value = excluded.value", "updated_at = excluded.updated_at")
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), user, key, value, s.now()); err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error) {
	var rows []struct {
		Key   string `db:"action_key"`
		Value int64  `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT action_key, value FROM progress_counters WHERE user_id = ?`), user); err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	out := make(map[core.ActionKey]int64, len(rows))
	for _, r := range rows {
		out[core.ActionKey(r.Key)] = r.Value
	}
	return out, nil
}

// Achievement records

type achievementRow struct {
	UserID        string    `db:"user_id"`
	AchievementID string    `db:"achievement_id"`
	Tier          string    `db:"tier"`
	UnlockedAt    time.Time `db:"unlocked_at"`
	Notified      bool      `db:"notified"`
}

func (r achievementRow) record() core.UserAchievement {
	return core.UserAchievement{
		UserID:        core.UserID(r.UserID),
		AchievementID: core.AchievementID(r.AchievementID),
		Tier:          core.TierName(r.Tier),
		UnlockedAt:    r.UnlockedAt.UTC(),
		Notified:      r.Notified,
	}
}

const achievementColumns = `user_id, achievement_id, tier, unlocked_at, notified`

func (s *Store) GetUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID) (core.UserAchievement, error) {
	var row achievementRow
	q := `SELECT ` + achievementColumns + ` FROM user_achievements WHERE user_id = ? AND achievement_id = ?`
	err := s.db.GetContext(ctx, &row, s.db.Rebind(q), user, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserAchievement{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserAchievement{}, fmt.Errorf("failed to get achievement: %w", err)
	}
	return row.record(), nil
}

func (s *Store) CreateUserAchievement(ctx context.Context, ua core.UserAchievement) error {
	q := `INSERT INTO user_achievements (user_id, achievement_id, tier, tier_position, unlocked_at, notified) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		ua.UserID, ua.AchievementID, ua.Tier, core.TierPosition(ua.Tier), ua.UnlockedAt.UTC(), ua.Notified)
	if isUniqueViolation(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

func (s *Store) UpgradeUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID, from, to core.TierName, at time.Time) (bool, error) {
	q := `UPDATE user_achievements SET tier = ?, tier_position = ?, unlocked_at = ?, notified = ?
		WHERE user_id = ? AND achievement_id = ? AND tier = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), to, core.TierPosition(to), at.UTC(), false, user, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to upgrade achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to upgrade achievement: %w", err)
	}
	return n == 1, nil
}

func (s *Store) MarkNotified(ctx context.Context, user core.UserID, id core.AchievementID) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE user_achievements SET notified = ? WHERE user_id = ? AND achievement_id = ?`), true, user, id)
	if err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL reports zero affected rows when nothing changed
	_, err = s.GetUserAchievement(ctx, user, id)
	return err
}

func (s *Store) ListUserAchievements(ctx context.Context, user core.UserID) ([]core.UserAchievement, error) {
	var rows []achievementRow
	q := `SELECT ` + achievementColumns + ` FROM user_achievements WHERE user_id = ? ORDER BY achievement_id`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), user); err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	out := make([]core.UserAchievement, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// Profiles

type profileRow struct {
	UserID      string    `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Country     string    `db:"country"`
	Experience  int64     `db:"experience"`
	Level       int       `db:"level"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r profileRow) profile() core.Profile {
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

const profileColumns = `user_id, display_name, country, experience, level, created_at, updated_at`

func (s *Store) EnsureProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	now := s.now()
	q := `INSERT INTO user_profiles (` + profileColumns + `) VALUES (?, ?, ?, 0, 1, ?, ?)` +
		s.onConflict("user_id", "display_name = excluded.display_name", "country = excluded.country", "updated_at = excluded.updated_at")
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), p.UserID, p.DisplayName, p.Country, now, now); err != nil {
		return core.Profile{}, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return s.GetProfile(ctx, p.UserID)
}

func (s *Store) GetProfile(ctx context.Context, user core.UserID) (core.Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, core.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return row.profile(), nil
}

func (s *Store) AddExperience(ctx context.Context, user core.UserID, delta int64) (core.Profile, error) {
	if delta <= 0 {
		return core.Profile{}, core.ErrInvalidAmount
	}
	now := s.now()
	insert := `INSERT INTO user_profiles (` + profileColumns + `) VALUES (?, '', '', ?, 1, ?, ?)` +
		s.onConflict("user_id", "experience = user_profiles.experience + excluded.experience", "updated_at = excluded.updated_at")
	args := []any{user, delta, now, now}

	var xp int64
	var err error
	if s.driver == DriverMySQL {
		err = s.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
				return err
			}
			return tx.GetContext(ctx, &xp, `SELECT experience FROM user_profiles WHERE user_id = ?`, user)
		})
	} else {
		err = s.db.GetContext(ctx, &xp, s.db.Rebind(insert+` RETURNING experience`), args...)
	}
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

// RaiseLevel is a conditional update, so concurrent raises converge on the
// maximum.
func (s *Store) RaiseLevel(ctx context.Context, user core.UserID, level int) (bool, error) {
	q := `UPDATE user_profiles SET level = ?, updated_at = ? WHERE user_id = ? AND level < ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), level, s.now(), user, level)
	if err != nil {
		return false, fmt.Errorf("failed to raise level: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}
	if err := s.profileExists(ctx, user); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) SetLevel(ctx context.Context, user core.UserID, level int) error {
	q := `UPDATE user_profiles SET level = ?, updated_at = ? WHERE user_id = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), level, s.now(), user)
	if err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	return s.profileExists(ctx, user)
}

func (s *Store) profileExists(ctx context.Context, user core.UserID) error {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM user_profiles WHERE user_id = ?`), user); err != nil {
		return fmt.Errorf("failed to look up profile: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Notifications

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      string    `db:"kind"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Payload   string    `db:"payload"`
	IsUpgrade bool      `db:"is_upgrade"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) Record(ctx context.Context, n core.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	created := n.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	q := `INSERT INTO notifications (id, user_id, kind, title, message, payload, is_upgrade, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, s.db.Rebind(q), n.ID, n.UserID, n.Kind, n.Title, n.Message, string(payload), n.IsUpgrade, created.UTC())
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (s *Store) Notifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		return []core.Notification{}, nil
	}
	var rows []notificationRow
	q := `SELECT id, user_id, kind, title, message, payload, is_upgrade, created_at FROM notifications
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), user, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]core.Notification, 0, len(rows))
	for _, r := range rows {
		n := core.Notification{
			ID:        r.ID,
			UserID:    core.UserID(r.UserID),
			Kind:      core.NotificationKind(r.Kind),
			Title:     r.Title,
			Message:   r.Message,
			IsUpgrade: r.IsUpgrade,
			CreatedAt: r.CreatedAt.UTC(),
		}
		if err := json.Unmarshal([]byte(r.Payload), &n.Payload); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Leaderboards

type standingRow struct {
	UserID       string `db:"user_id"`
	DisplayName  string `db:"display_name"`
	Country      string `db:"country"`
	Level        int    `db:"level"`
	Experience   int64  `db:"experience"`
	Achievements int64  `db:"achievements"`
}

func standings(rows []standingRow) []core.Standing {
	out := make([]core.Standing, len(rows))
	for i, r := range rows {
		out[i] = core.Standing{
			Rank:         int64(i + 1),
			UserID:       core.UserID(r.UserID),
			DisplayName:  r.DisplayName,
			Country:      r.Country,
			Level:        r.Level,
			Experience:   r.Experience,
			Achievements: r.Achievements,
		}
	}
	return out
}

func standingOf(p core.Profile, rank, achievements int64) core.Standing {
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

func (s *Store) TopByLevel(ctx context.Context, country string, limit int) ([]core.Standing, error) {
	if limit <= 0 {
		return []core.Standing{}, nil
	}
	q := `SELECT user_id, display_name, country, level, experience, 0 AS achievements FROM user_profiles`
	args := []any{}
	if country != "" {
		q += ` WHERE country = ?`
		args = append(args, country)
	}
	q += ` ORDER BY level DESC, experience DESC, user_id ASC LIMIT ?`
	args = append(args, limit)

	var rows []standingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to read level board: %w", err)
	}
	return standings(rows), nil
}

func (s *Store) LevelStanding(ctx context.Context, user core.UserID, country string) (core.Standing, error) {
	p, err := s.GetProfile(ctx, user)
	if err != nil {
		return core.Standing{}, err
	}
	if country != "" && p.Country != country {
		return core.Standing{}, core.ErrNotFound
	}
	q := `SELECT COUNT(*) FROM user_profiles WHERE (level > ? OR (level = ? AND experience > ?) OR (level = ? AND experience = ? AND user_id < ?))`
	args := []any{p.Level, p.Level, p.Experience, p.Level, p.Experience, p.UserID}
	if country != "" {
		q += ` AND country = ?`
		args = append(args, country)
	}
	var ahead int64
	if err := s.db.GetContext(ctx, &ahead, s.db.Rebind(q), args...); err != nil {
		return core.Standing{}, fmt.Errorf("failed to rank user: %w", err)
	}
	return standingOf(p, ahead+1, 0), nil
}

func (s *Store) Countries(ctx context.Context) ([]string, error) {
	out := []string{}
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT country FROM user_profiles WHERE country <> '' ORDER BY country`); err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	return out, nil
}

func (s *Store) TopByAchievements(ctx context.Context, id core.AchievementID, limit int) ([]core.Standing, error) {
	if limit <= 0 {
		return []core.Standing{}, nil
	}
	var q string
	var args []any
	if id == "" {
		q = `SELECT a.user_id, COALESCE(p.display_name, '') AS display_name, COALESCE(p.country, '') AS country,
			COALESCE(p.level, 1) AS level, COALESCE(p.experience, 0) AS experience, a.achievements
			FROM (SELECT user_id, COUNT(*) AS achievements FROM user_achievements GROUP BY user_id) a
			LEFT JOIN user_profiles p ON p.user_id = a.user_id
			ORDER BY a.achievements DESC, a.user_id ASC LIMIT ?`
		args = []any{limit}
	} else {
		q = `SELECT a.user_id, COALESCE(p.display_name, '') AS display_name, COALESCE(p.country, '') AS country,
			COALESCE(p.level, 1) AS level, COALESCE(p.experience, 0) AS experience, a.tier_position AS achievements
			FROM user_achievements a
			LEFT JOIN user_profiles p ON p.user_id = a.user_id
			WHERE a.achievement_id = ?
			ORDER BY a.tier_position DESC, a.user_id ASC LIMIT ?`
		args = []any{id, limit}
	}
	var rows []standingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to read achievement board: %w", err)
	}
	return standings(rows), nil
}

func (s *Store) AchievementStanding(ctx context.Context, user core.UserID, id core.AchievementID) (core.Standing, error) {
	p, err := s.GetProfile(ctx, user)
	if errors.Is(err, core.ErrNotFound) {
		p = core.Profile{UserID: user, Level: 1}
	} else if err != nil {
		return core.Standing{}, err
	}

	var count, ahead int64
	if id == "" {
		err = s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT COUNT(*) FROM user_achievements WHERE user_id = ?`), user)
		if err == nil {
			// a zero count compares below every grouped user
			err = s.db.GetContext(ctx, &ahead, s.db.Rebind(`SELECT COUNT(*) FROM
				(SELECT user_id, COUNT(*) AS achievements FROM user_achievements GROUP BY user_id) t
				WHERE t.achievements > ? OR (t.achievements = ? AND t.user_id < ?)`), count, count, user)
		}
	} else {
		err = s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT tier_position FROM user_achievements WHERE user_id = ? AND achievement_id = ?`), user, id)
		if errors.Is(err, sql.ErrNoRows) {
			count, err = 0, nil
		}
		if err == nil {
			err = s.db.GetContext(ctx, &ahead, s.db.Rebind(`SELECT COUNT(*) FROM user_achievements
				WHERE achievement_id = ? AND (tier_position > ? OR (tier_position = ? AND user_id < ?))`), id, count, count, user)
		}
	}
	if err != nil {
		return core.Standing{}, fmt.Errorf("failed to rank user: %w", err)
	}
	return standingOf(p, ahead+1, count), nil
}

var (
	_ engine.Storage     = (*Store)(nil)
	_ leaderboard.Source = (*Store)(nil)
)
