// SPDX-License-Identifier: MIT

// Package store is the persistence collaborator: a local embedded SQL
// database (pure-Go SQLite, WAL journaling) holding schedule
// definitions and append-only playback history, fronted by two
// narrow repository interfaces the scheduler engine consumes.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store owns the database handle and exposes the schedule and
// playback-history repositories.
type Store struct {
	db        *sql.DB
	Schedules ScheduleRepository
	History   HistoryRepository
}

// Open opens (creating if necessary) the sqlite database at path,
// enables WAL journaling, and runs every pending migration.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer connection avoids SQLITE_BUSY under WAL when
	// multiple goroutines (per-schedule tasks recording history,
	// status reads) hit the same file concurrently.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Store{db: db}
	s.Schedules = &sqliteScheduleRepository{db: db}
	s.History = &sqliteHistoryRepository{db: db}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
