package sqlx

import (
	"context"
	"fmt"
	"strings"
)

// Column types differ per dialect. User ids use a byte-wise collation so
// that leaderboard tie-breaks match across backends.
var columnTypes = map[Driver]*strings.Replacer{
	DriverPostgres: strings.NewReplacer("{id}", `VARCHAR(191) COLLATE "C"`, "{ts}", "TIMESTAMPTZ"),
	DriverMySQL:    strings.NewReplacer("{id}", "VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin", "{ts}", "DATETIME(6)"),
	DriverSQLite:   strings.NewReplacer("{id}", "TEXT", "{ts}", "TIMESTAMP"),
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS progress_counters (
		user_id {id} NOT NULL,
		action_key VARCHAR(64) NOT NULL,
		value BIGINT NOT NULL DEFAULT 0,
		updated_at {ts} NOT NULL,
		PRIMARY KEY (user_id, action_key)
	)`,
	`CREATE TABLE IF NOT EXISTS user_achievements (
		user_id {id} NOT NULL,
		achievement_id VARCHAR(64) NOT NULL,
		tier VARCHAR(16) NOT NULL,
		tier_position INT NOT NULL,
		unlocked_at {ts} NOT NULL,
		notified BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, achievement_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id {id} NOT NULL PRIMARY KEY,
		display_name VARCHAR(191) NOT NULL DEFAULT '',
		country VARCHAR(8) NOT NULL DEFAULT '',
		experience BIGINT NOT NULL DEFAULT 0,
		level INT NOT NULL DEFAULT 1,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		user_id {id} NOT NULL,
		kind VARCHAR(32) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		payload TEXT NOT NULL,
		is_upgrade BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {ts} NOT NULL
	)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS; manage its indexes with
// migrations.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_user_profiles_rank ON user_profiles (level DESC, experience DESC, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_profiles_country ON user_profiles (country, level DESC, experience DESC, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_achievements_board ON user_achievements (achievement_id, tier_position DESC, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at)`,
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	r, ok := columnTypes[s.driver]
	if !ok {
		return fmt.Errorf("unsupported driver %q", s.driver)
	}
	stmts := make([]string, 0, len(schema)+len(indexes))
	for _, q := range schema {
		stmts = append(stmts, r.Replace(q))
	}
	if s.driver != DriverMySQL {
		stmts = append(stmts, indexes...)
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
