// SPDX-License-Identifier: MIT

// Package schedule holds the data model shared by the persistence
// collaborator, the time calculator, and the scheduler engine: the
// Schedule definition, its recurrence rule, playback history, and the
// transient runtime/playback state types that are never persisted.
package schedule

import "time"

// Schedule is a persisted schedule definition.
type Schedule struct {
	ID            string
	Name          string
	AudioFilePath string
	ScheduledTime string // HH:MM, 24-hour, local time
	Enabled       bool
	RepeatType    RepeatType
	Volume        int // 0-100
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastRunAt     *time.Time
}

// Validate checks a Schedule's field invariants.
func (s *Schedule) Validate() error {
	if s.Volume < 0 || s.Volume > 100 {
		return &ValidationError{Field: "volume", Reason: "must be between 0 and 100"}
	}
	if _, err := ParseClockTime(s.ScheduledTime); err != nil {
		return &ValidationError{Field: "scheduled_time", Reason: err.Error()}
	}
	if s.RepeatType.Kind == RepeatCustom && s.RepeatType.IntervalMinutes == 0 {
		return &ValidationError{Field: "repeat_type", Reason: "interval_minutes must be greater than 0"}
	}
	return nil
}

// ValidationError reports a schedule field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "schedule." + e.Field + ": " + e.Reason
}

// ParseClockTime parses an HH:MM 24-hour clock time.
func ParseClockTime(value string) (time.Time, error) {
	return time.Parse("15:04", value)
}

// CreateInput is the set of fields accepted when creating a schedule.
type CreateInput struct {
	Name          string
	AudioFilePath string
	ScheduledTime string
	Enabled       bool
	RepeatType    RepeatType
	Volume        int
	LastRunAt     *time.Time
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name          *string
	AudioFilePath *string
	ScheduledTime *string
	Enabled       *bool
	RepeatType    *RepeatType
	Volume        *int
	LastRunAt     *time.Time
}

// PlaybackStatus is the outcome recorded for one fire of a schedule.
type PlaybackStatus string

const (
	StatusSuccess PlaybackStatus = "success"
	StatusFailed  PlaybackStatus = "failed"
	StatusSkipped PlaybackStatus = "skipped"
)

// PlaybackHistory is an append-only record of one schedule execution.
type PlaybackHistory struct {
	ID           string
	ScheduleID   string
	PlayedAt     time.Time
	Status       PlaybackStatus
	ErrorMessage *string
}

// AudioFileMetadata describes a validated audio file.
type AudioFileMetadata struct {
	Path          string
	FileName      string
	Extension     string
	DurationMS    *uint64
	SampleRate    uint32
	Channels      uint16
	SizeBytes     uint64
}

// PlaybackContext is the transient description of what is currently
// (or was most recently) playing.
type PlaybackContext struct {
	Path            string
	Metadata        AudioFileMetadata
	StartedAt       time.Time
	EffectiveVolume float64 // 0.0-1.0
}

// PlaybackState is the published, atomically-readable audio status.
type PlaybackState struct {
	IsPlaying bool
	Current   *PlaybackContext
}

// IdlePlaybackState returns the not-playing PlaybackState.
func IdlePlaybackState() PlaybackState {
	return PlaybackState{IsPlaying: false, Current: nil}
}

// RuntimeStatus is the lifecycle state of one active per-schedule task.
type RuntimeStatus string

const (
	StatusIdle     RuntimeStatus = "idle"
	StatusWaiting  RuntimeStatus = "waiting"
	StatusRunning  RuntimeStatus = "running"
	StatusDisabled RuntimeStatus = "disabled"
	StatusError    RuntimeStatus = "error"
	StatusStopped  RuntimeStatus = "stopped"
)

// RuntimeState is the ephemeral per-task state exposed by Engine.status().
type RuntimeState struct {
	ScheduleID string
	NextRun    *time.Time
	LastRun    *time.Time
	Status     RuntimeStatus
	LastError  *string
}
