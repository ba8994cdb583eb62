// Package gormstore stores progression state through GORM. It suits hosts
// that already manage their schema with GORM models.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/tamaskk/foodybackend-sub000/core"
	"github.com/tamaskk/foodybackend-sub000/engine"
	"github.com/tamaskk/foodybackend-sub000/leaderboard"
)

// Config selects the dialect and connection.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	DSN    string
	// AutoMigrate creates or updates the tables on Open.
	AutoMigrate bool
}

// Store implements engine.Storage and leaderboard.Source with GORM.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects and optionally migrates the models.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if strings.Contains(cfg.DSN, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	s := New(db)
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// New wraps an existing *gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate runs AutoMigrate for every model.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&ProgressCounter{}, &UserAchievement{}, &UserProfile{}, &NotificationRecord{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Progress ledger

func (s *Store) IncrementProgress(ctx context.Context, user core.UserID, key core.ActionKey, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	row := ProgressCounter{UserID: string(user), ActionKey: string(key), Value: amount, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "action_key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      gorm.Expr("progress_counters.value + ?", amount),
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ? AND action_key = ?", row.UserID, row.ActionKey).Take(&row).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment progress: %w", err)
	}
	return row.Value, nil
}

func (s *Store) SetProgress(ctx context.Context, user core.UserID, key core.ActionKey, value int64) error {
	if value < 0 {
		return core.ErrInvalidAmount
	}
	row := ProgressCounter{UserID: string(user), ActionKey: string(key), Value: value, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "action_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, user core.UserID) (map[core.ActionKey]int64, error) {
	var rows []ProgressCounter
	if err := s.db.WithContext(ctx).Where("user_id = ?", string(user)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	out := make(map[core.ActionKey]int64, len(rows))
	for _, r := range rows {
		out[core.ActionKey(r.ActionKey)] = r.Value
	}
	return out, nil
}

// Achievement records

func (s *Store) GetUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID) (core.UserAchievement, error) {
	var row UserAchievement
	err := s.db.WithContext(ctx).Where("user_id = ? AND achievement_id = ?", string(user), string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.UserAchievement{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserAchievement{}, fmt.Errorf("failed to get achievement: %w", err)
	}
	return row.record(), nil
}

func (s *Store) CreateUserAchievement(ctx context.Context, ua core.UserAchievement) error {
	row := UserAchievement{
		UserID:        string(ua.UserID),
		AchievementID: string(ua.AchievementID),
		Tier:          string(ua.Tier),
		TierPosition:  core.TierPosition(ua.Tier),
		UnlockedAt:    ua.UnlockedAt.UTC(),
		Notified:      ua.Notified,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

func (s *Store) UpgradeUserAchievement(ctx context.Context, user core.UserID, id core.AchievementID, from, to core.TierName, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&UserAchievement{}).
		Where("user_id = ? AND achievement_id = ? AND tier = ?", string(user), string(id), string(from)).
		Updates(map[string]any{
			"tier":          string(to),
			"tier_position": core.TierPosition(to),
			"unlocked_at":   at.UTC(),
			"notified":      false,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to upgrade achievement: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) MarkNotified(ctx context.Context, user core.UserID, id core.AchievementID) error {
	res := s.db.WithContext(ctx).Model(&UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", string(user), string(id)).
		Update("notified", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark notified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListUserAchievements(ctx context.Context, user core.UserID) ([]core.UserAchievement, error) {
	var rows []UserAchievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", string(user)).Order("achievement_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	out := make([]core.UserAchievement, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// Profiles

func (s *Store) EnsureProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	now := s.now()
	row := UserProfile{UserID: string(p.UserID), DisplayName: p.DisplayName, Country: p.Country, Level: 1, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "country", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return s.GetProfile(ctx, p.UserID)
}

func (s *Store) GetProfile(ctx context.Context, user core.UserID) (core.Profile, error) {
	var row UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", string(user)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
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
	row := UserProfile{UserID: string(user), Experience: delta, Level: 1, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"experience": gorm.Expr("user_profiles.experience + ?", delta),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", row.UserID).Take(&row).Error
	})
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to add experience: %w", err)
	}
	return row.profile(), nil
}

func (s *Store) RaiseLevel(ctx context.Context, user core.UserID, level int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&UserProfile{}).
		Where("user_id = ? AND level < ?", string(user), level).
		Updates(map[string]any{"level": level, "updated_at": s.now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to raise level: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, s.profileExists(ctx, user)
}

func (s *Store) SetLevel(ctx context.Context, user core.UserID, level int) error {
	res := s.db.WithContext(ctx).Model(&UserProfile{}).
		Where("user_id = ?", string(user)).
		Updates(map[string]any{"level": level, "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("failed to set level: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return s.profileExists(ctx, user)
}

func (s *Store) profileExists(ctx context.Context, user core.UserID) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&UserProfile{}).Where("user_id = ?", string(user)).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to look up profile: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Notifications

func (s *Store) Record(ctx context.Context, n core.Notification) error {
	row := NotificationRecord{
		ID:        n.ID,
		UserID:    string(n.UserID),
		Kind:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		Payload:   n.Payload,
		IsUpgrade: n.IsUpgrade,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if n.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

func (s *Store) Notifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		return []core.Notification{}, nil
	}
	var rows []NotificationRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", string(user)).
		Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]core.Notification, len(rows))
	for i, r := range rows {
		out[i] = r.notification()
	}
	return out, nil
}

// Leaderboards

func (s *Store) TopByLevel(ctx context.Context, country string, limit int) ([]core.Standing, error) {
	if limit <= 0 {
		return []core.Standing{}, nil
	}
	q := s.db.WithContext(ctx).Model(&UserProfile{})
	if country != "" {
		q = q.Where("country = ?", country)
	}
	var rows []UserProfile
	if err := q.Order("level DESC, experience DESC, user_id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read level board: %w", err)
	}
	out := make([]core.Standing, len(rows))
	for i, r := range rows {
		out[i] = standingOf(r.profile(), int64(i+1), 0)
	}
	return out, nil
}

func (s *Store) LevelStanding(ctx context.Context, user core.UserID, country string) (core.Standing, error) {
	p, err := s.GetProfile(ctx, user)
	if err != nil {
		return core.Standing{}, err
	}
	if country != "" && p.Country != country {
		return core.Standing{}, core.ErrNotFound
	}
	q := s.db.WithContext(ctx).Model(&UserProfile{}).
		Where("level > ? OR (level = ? AND experience > ?) OR (level = ? AND experience = ? AND user_id < ?)",
			p.Level, p.Level, p.Experience, p.Level, p.Experience, string(p.UserID))
	if country != "" {
		q = q.Where("country = ?", country)
	}
	var ahead int64
	if err := q.Count(&ahead).Error; err != nil {
		return core.Standing{}, fmt.Errorf("failed to rank user: %w", err)
	}
	return standingOf(p, ahead+1, 0), nil
}

func (s *Store) Countries(ctx context.Context) ([]string, error) {
	out := []string{}
	err := s.db.WithContext(ctx).Model(&UserProfile{}).
		Where("country <> ''").Distinct("country").Order("country").Pluck("country", &out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}
	return out, nil
}

type boardRow struct {
	UserID       string
	DisplayName  string
	Country      string
	Level        int
	Experience   int64
	Achievements int64
}

func (s *Store) TopByAchievements(ctx context.Context, id core.AchievementID, limit int) ([]core.Standing, error) {
	if limit <= 0 {
		return []core.Standing{}, nil
	}
	var rows []boardRow
	var err error
	if id == "" {
		err = s.db.WithContext(ctx).Raw(`SELECT a.user_id, COALESCE(p.display_name, '') AS display_name, COALESCE(p.country, '') AS country,
			COALESCE(p.level, 1) AS level, COALESCE(p.experience, 0) AS experience, a.achievements
			FROM (SELECT user_id, COUNT(*) AS achievements FROM user_achievements GROUP BY user_id) a
			LEFT JOIN user_profiles p ON p.user_id = a.user_id
			ORDER BY a.achievements DESC, a.user_id ASC LIMIT ?`, limit).Scan(&rows).Error
	} else {
		err = s.db.WithContext(ctx).Raw(`SELECT a.user_id, COALESCE(p.display_name, '') AS display_name, COALESCE(p.country, '') AS country,
			COALESCE(p.level, 1) AS level, COALESCE(p.experience, 0) AS experience, a.tier_position AS achievements
			FROM user_achievements a
			LEFT JOIN user_profiles p ON p.user_id = a.user_id
			WHERE a.achievement_id = ?
			ORDER BY a.tier_position DESC, a.user_id ASC LIMIT ?`, string(id), limit).Scan(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read achievement board: %w", err)
	}
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
	return out, nil
}

func (s *Store) AchievementStanding(ctx context.Context, user core.UserID, id core.AchievementID) (core.Standing, error) {
	p, err := s.GetProfile(ctx, user)
	if errors.Is(err, core.ErrNotFound) {
		p = core.Profile{UserID: user, Level: 1}
	} else if err != nil {
		return core.Standing{}, err
	}

	db := s.db.WithContext(ctx)
	var count, ahead int64
	if id == "" {
		err = db.Model(&UserAchievement{}).Where("user_id = ?", string(user)).Count(&count).Error
		if err == nil {
			err = db.Raw(`SELECT COUNT(*) FROM
				(SELECT user_id, COUNT(*) AS achievements FROM user_achievements GROUP BY user_id) t
				WHERE t.achievements > ? OR (t.achievements = ? AND t.user_id < ?)`, count, count, string(user)).Scan(&ahead).Error
		}
	} else {
		var rec UserAchievement
		err = db.Where("user_id = ? AND achievement_id = ?", string(user), string(id)).Take(&rec).Error
		switch {
		case err == nil:
			count = int64(rec.TierPosition)
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = nil
		}
		if err == nil {
			err = db.Model(&UserAchievement{}).
				Where("achievement_id = ? AND (tier_position > ? OR (tier_position = ? AND user_id < ?))", string(id), count, count, string(user)).
				Count(&ahead).Error
		}
	}
	if err != nil {
		return core.Standing{}, fmt.Errorf("failed to rank user: %w", err)
	}
	return standingOf(p, ahead+1, count), nil
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

var (
	_ engine.Storage     = (*Store)(nil)
	_ leaderboard.Source = (*Store)(nil)
)
