// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbowers-oss/chimed/internal/schedule"
)

// ErrScheduleNotFound is returned when a schedule id has no matching row.
var ErrScheduleNotFound = errors.New("schedule not found")

// ScheduleRepository is the schedule half of the persistence collaborator.
type ScheduleRepository interface {
	GetAll() ([]schedule.Schedule, error)
	GetEnabled() ([]schedule.Schedule, error)
	GetByID(id string) (schedule.Schedule, error)
	Create(input schedule.CreateInput) (schedule.Schedule, error)
	Update(id string, input schedule.UpdateInput) (schedule.Schedule, error)
	Delete(id string) error
}

type sqliteScheduleRepository struct {
	db *sql.DB
}

const scheduleColumns = `id, name, audio_file_path, scheduled_time, enabled, repeat_type, volume, created_at, updated_at, last_run_at`

func (r *sqliteScheduleRepository) GetAll() ([]schedule.Schedule, error) {
	rows, err := r.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (r *sqliteScheduleRepository) GetEnabled() ([]schedule.Schedule, error) {
	rows, err := r.db.Query(`SELECT `+scheduleColumns+` FROM schedules WHERE enabled = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (r *sqliteScheduleRepository) GetByID(id string) (schedule.Schedule, error) {
	row := r.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Schedule{}, ErrScheduleNotFound
	}
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to query schedule %s: %w", id, err)
	}
	return s, nil
}

func (r *sqliteScheduleRepository) Create(input schedule.CreateInput) (schedule.Schedule, error) {
	now := time.Now()
	s := schedule.Schedule{
		ID:            uuid.NewString(),
		Name:          input.Name,
		AudioFilePath: input.AudioFilePath,
		ScheduledTime: input.ScheduledTime,
		Enabled:       input.Enabled,
		RepeatType:    input.RepeatType,
		Volume:        input.Volume,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastRunAt:     input.LastRunAt,
	}

	if err := s.Validate(); err != nil {
		return schedule.Schedule{}, err
	}

	repeatJSON, err := json.Marshal(s.RepeatType)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to serialise repeat_type: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.AudioFilePath, s.ScheduledTime, boolToInt(s.Enabled), string(repeatJSON),
		s.Volume, formatTime(s.CreatedAt), formatTime(s.UpdatedAt), formatTimePtr(s.LastRunAt),
	)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to insert schedule: %w", err)
	}

	return s, nil
}

func (r *sqliteScheduleRepository) Update(id string, input schedule.UpdateInput) (schedule.Schedule, error) {
	current, err := r.GetByID(id)
	if err != nil {
		return schedule.Schedule{}, err
	}

	if input.Name != nil {
		current.Name = *input.Name
	}
	if input.AudioFilePath != nil {
		current.AudioFilePath = *input.AudioFilePath
	}
	if input.ScheduledTime != nil {
		current.ScheduledTime = *input.ScheduledTime
	}
	if input.Enabled != nil {
		current.Enabled = *input.Enabled
	}
	if input.RepeatType != nil {
		current.RepeatType = *input.RepeatType
	}
	if input.Volume != nil {
		current.Volume = *input.Volume
	}
	if input.LastRunAt != nil {
		current.LastRunAt = input.LastRunAt
	}
	current.UpdatedAt = time.Now()

	if err := current.Validate(); err != nil {
		return schedule.Schedule{}, err
	}

	repeatJSON, err := json.Marshal(current.RepeatType)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to serialise repeat_type: %w", err)
	}

	_, err = r.db.Exec(
		`UPDATE schedules SET name=?, audio_file_path=?, scheduled_time=?, enabled=?, repeat_type=?, volume=?, updated_at=?, last_run_at=? WHERE id=?`,
		current.Name, current.AudioFilePath, current.ScheduledTime, boolToInt(current.Enabled),
		string(repeatJSON), current.Volume, formatTime(current.UpdatedAt), formatTimePtr(current.LastRunAt), id,
	)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to update schedule %s: %w", id, err)
	}

	return current, nil
}

func (r *sqliteScheduleRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (schedule.Schedule, error) {
	var (
		s          schedule.Schedule
		enabledInt int
		repeatJSON string
		createdAt  string
		updatedAt  string
		lastRunAt  sql.NullString
	)

	if err := row.Scan(&s.ID, &s.Name, &s.AudioFilePath, &s.ScheduledTime, &enabledInt,
		&repeatJSON, &s.Volume, &createdAt, &updatedAt, &lastRunAt); err != nil {
		return schedule.Schedule{}, err
	}

	s.Enabled = enabledInt != 0

	if err := json.Unmarshal([]byte(repeatJSON), &s.RepeatType); err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to deserialise repeat_type for schedule %s: %w", s.ID, err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to parse created_at for schedule %s: %w", s.ID, err)
	}
	s.CreatedAt = t

	t, err = parseTime(updatedAt)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to parse updated_at for schedule %s: %w", s.ID, err)
	}
	s.UpdatedAt = t

	if lastRunAt.Valid {
		t, err := parseTime(lastRunAt.String)
		if err != nil {
			return schedule.Schedule{}, fmt.Errorf("failed to parse last_run_at for schedule %s: %w", s.ID, err)
		}
		s.LastRunAt = &t
	}

	return s, nil
}

func scanSchedules(rows *sql.Rows) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating schedule rows: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}
