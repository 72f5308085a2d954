// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"fmt"
)

// migration is one ordered, idempotent schema step.
type migration struct {
	version int
	sql     string
}

// migrations lists every schema revision in application order. Never
// edit a migration once released; append a new one instead.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schedules (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	audio_file_path TEXT NOT NULL,
	scheduled_time  TEXT NOT NULL,
	enabled         INTEGER NOT NULL DEFAULT 1,
	repeat_type     TEXT NOT NULL,
	volume          INTEGER NOT NULL DEFAULT 70,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	last_run_at     TEXT
);

CREATE TABLE IF NOT EXISTS playback_history (
	id          TEXT PRIMARY KEY,
	schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	played_at   TEXT NOT NULL,
	status      TEXT NOT NULL,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_playback_history_schedule_id
	ON playback_history(schedule_id);

CREATE INDEX IF NOT EXISTS idx_playback_history_played_at
	ON playback_history(played_at DESC);
`,
	},
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to bootstrap migration table: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to close migration rows: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(`INSERT OR IGNORE INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
