// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbowers-oss/chimed/internal/schedule"
)

// HistoryRepository is the playback-history half of the persistence
// collaborator. Records are append-only; the only deletion path is
// cascading from the owning schedule (enforced by the FK in
// migrations.go), or explicit bulk removal via DeleteForSchedule.
type HistoryRepository interface {
	Record(scheduleID string, status schedule.PlaybackStatus, errMsg *string) (schedule.PlaybackHistory, error)
	ListRecent(limit int) ([]schedule.PlaybackHistory, error)
	DeleteForSchedule(scheduleID string) error
}

type sqliteHistoryRepository struct {
	db *sql.DB
}

func (r *sqliteHistoryRepository) Record(scheduleID string, status schedule.PlaybackStatus, errMsg *string) (schedule.PlaybackHistory, error) {
	h := schedule.PlaybackHistory{
		ID:           uuid.NewString(),
		ScheduleID:   scheduleID,
		PlayedAt:     nowFunc(),
		Status:       status,
		ErrorMessage: errMsg,
	}

	var errVal sql.NullString
	if errMsg != nil {
		errVal = sql.NullString{String: *errMsg, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO playback_history (id, schedule_id, played_at, status, error_message) VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.ScheduleID, formatTime(h.PlayedAt), string(h.Status), errVal,
	)
	if err != nil {
		return schedule.PlaybackHistory{}, fmt.Errorf("failed to record playback history: %w", err)
	}

	return h, nil
}

func (r *sqliteHistoryRepository) ListRecent(limit int) ([]schedule.PlaybackHistory, error) {
	rows, err := r.db.Query(
		`SELECT id, schedule_id, played_at, status, error_message FROM playback_history ORDER BY played_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query playback history: %w", err)
	}
	defer rows.Close()

	var out []schedule.PlaybackHistory
	for rows.Next() {
		var (
			h         schedule.PlaybackHistory
			playedAt  string
			status    string
			errColumn sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.ScheduleID, &playedAt, &status, &errColumn); err != nil {
			return nil, fmt.Errorf("failed to scan playback history row: %w", err)
		}

		t, err := parseTime(playedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse played_at for history %s: %w", h.ID, err)
		}
		h.PlayedAt = t

		switch status {
		case string(schedule.StatusSuccess), string(schedule.StatusFailed), string(schedule.StatusSkipped):
			h.Status = schedule.PlaybackStatus(status)
		default:
			return nil, fmt.Errorf("unknown playback status %q for history %s", status, h.ID)
		}

		if errColumn.Valid {
			msg := errColumn.String
			h.ErrorMessage = &msg
		}

		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating playback history rows: %w", err)
	}

	return out, nil
}

func (r *sqliteHistoryRepository) DeleteForSchedule(scheduleID string) error {
	if _, err := r.db.Exec(`DELETE FROM playback_history WHERE schedule_id = ?`, scheduleID); err != nil {
		return fmt.Errorf("failed to delete history for schedule %s: %w", scheduleID, err)
	}
	return nil
}

// nowFunc is indirected so tests can control playback-history timestamp
// ordering deterministically.
var nowFunc = time.Now
