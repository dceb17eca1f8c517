package database

import "fmt"

// migrations are the idempotent DDL statements for the session engine.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS learning_sessions (
		session_id        TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		track_id          TEXT NOT NULL,
		start_time        TEXT NOT NULL,
		end_time          TEXT NOT NULL,
		version           INTEGER NOT NULL,
		transitions       TEXT NOT NULL,
		activity_time     TEXT NOT NULL,
		total_time        REAL NOT NULL DEFAULT 0,
		facts_covered     TEXT NOT NULL,
		active_seconds    REAL NOT NULL DEFAULT 0,
		waste_seconds     REAL NOT NULL DEFAULT 0,
		xp_earned         REAL NOT NULL DEFAULT 0,
		total_questions   INTEGER NOT NULL DEFAULT 0,
		correct_questions INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_recency
		ON learning_sessions (user_id, end_time DESC)`,
	`CREATE TABLE IF NOT EXISTS metric_counters (
		user_id        TEXT NOT NULL,
		day            TEXT NOT NULL,
		field          TEXT NOT NULL,
		value          REAL NOT NULL,
		last_increment TEXT NOT NULL,
		PRIMARY KEY (user_id, day, field)
	)`,
}

// Migrate applies the schema. Statements are idempotent so repeated
// startups are safe.
func Migrate(db *DB) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
