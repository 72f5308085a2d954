// SPDX-License-Identifier: MIT

// Package scheduler implements the scheduling engine: it owns the set
// of active per-schedule tasks, each a suture.Service racing a sleep
// against cancellation, and exposes start/stop/reload/status/upcoming
// operations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/mbowers-oss/chimed/internal/audiotime"
	"github.com/mbowers-oss/chimed/internal/schedule"
	"github.com/mbowers-oss/chimed/internal/settings"
	"github.com/mbowers-oss/chimed/internal/store"
)

// SettingsProvider returns the current settings snapshot consulted
// before each announcement. Returning nil is equivalent to
// announcements being disabled.
type SettingsProvider func() *settings.Settings

// Config configures a new Engine.
type Config struct {
	Store    *store.Store
	Audio    Controller
	Clock    audiotime.Clock
	Settings SettingsProvider
	Logger   *slog.Logger
}

// SchedulerStatus aggregates every active task's runtime state.
type SchedulerStatus struct {
	IsRunning      bool
	TotalSchedules int
	Schedules      []schedule.RuntimeState
}

// UpcomingExecution is one entry of upcoming_executions' sorted result.
type UpcomingExecution struct {
	ScheduleID   string
	Name         string
	ScheduledFor time.Time
}

// Engine owns the set of active per-schedule tasks. The running flag
// and task table are guarded by a single RWMutex: write operations
// (start/stop/reload) hold it exclusively, status/upcoming reads take
// it shared.
type Engine struct {
	mu sync.RWMutex

	store      *store.Store
	audio      Controller
	clock      audiotime.Clock
	settingsFn SettingsProvider
	logger     *slog.Logger

	running bool
	sup     *suture.Supervisor
	cancel  context.CancelFunc
	done    chan error
	tasks   map[string]*task
}

// New constructs an Engine. It does not start any tasks; call Start.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = audiotime.SystemClock{}
	}
	return &Engine{
		store:      cfg.Store,
		audio:      cfg.Audio,
		clock:      clock,
		settingsFn: cfg.Settings,
		logger:     cfg.Logger,
	}
}

func (e *Engine) settings() *settings.Settings {
	if e.settingsFn == nil {
		return nil
	}
	return e.settingsFn()
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Info(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) recordHistory(scheduleID string, status schedule.PlaybackStatus, errMsg *string) {
	if _, err := e.store.History.Record(scheduleID, status, errMsg); err != nil {
		e.logf("failed to record history for schedule %s: %v", scheduleID, err)
	}
}

func (e *Engine) disableOnce(scheduleID string) (schedule.Schedule, error) {
	enabled := false
	return e.store.Schedules.Update(scheduleID, schedule.UpdateInput{Enabled: &enabled})
}

// Start loads enabled schedules from persistence, spawns one task per
// schedule, and flips the engine's running flag. Fails with
// ErrAlreadyRunning if already started.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	scheds, err := e.store.Schedules.GetEnabled()
	if err != nil {
		return fmt.Errorf("scheduler: failed to load enabled schedules: %w", err)
	}

	sup := suture.NewSimple("chimed-scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	tasks := make(map[string]*task, len(scheds))

	for _, s := range scheds {
		t := &task{
			id:      s.ID,
			engine:  e,
			data:    &scheduleData{s: s},
			runtime: &runtimeData{state: schedule.RuntimeState{ScheduleID: s.ID, Status: schedule.StatusIdle}},
		}
		sup.Add(t)
		tasks[s.ID] = t
	}

	done := make(chan error, 1)
	go func() { done <- sup.Serve(ctx) }()

	e.sup = sup
	e.cancel = cancel
	e.done = done
	e.tasks = tasks
	e.running = true

	e.logf("scheduler started with %d active schedules", len(tasks))
	return nil
}

// Stop cancels every active task and awaits the supervisor's shutdown.
// Fails with ErrNotRunning if not started. An error the supervisor
// itself returns, other than context cancellation, is wrapped in a
// TaskJoinError. A task that panics or returns an error other than
// ErrDoNotRestart is restarted by the supervisor while the engine runs;
// Stop does not report such a task.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return ErrNotRunning
	}

	e.cancel()
	err := <-e.done

	e.sup = nil
	e.cancel = nil
	e.done = nil
	e.tasks = nil
	e.running = false

	if err != nil && !errors.Is(err, context.Canceled) {
		return &TaskJoinError{Cause: err}
	}
	return nil
}

// Reload restarts the engine against persistence's current state: if
// running, it is a Stop followed by a Start; if not running, the task
// table (already empty) is left as-is. An in-flight play is never
// pre-empted by reload: Stop only cancels sleeping tasks, and a task
// mid-Play finishes its audio call (bounded by the audio service's
// fade-out) before observing cancellation.
func (e *Engine) Reload() error {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()

	if !running {
		return nil
	}
	if err := e.Stop(); err != nil {
		return err
	}
	return e.Start()
}

// PauseAll is an alias for Stop; it never touches persisted enabled
// flags, so a later ResumeAll brings back exactly the same schedules.
func (e *Engine) PauseAll() error { return e.Stop() }

// ResumeAll is an alias for Start.
func (e *Engine) ResumeAll() error { return e.Start() }

// Status aggregates every active task's runtime state.
func (e *Engine) Status() SchedulerStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	states := make([]schedule.RuntimeState, 0, len(e.tasks))
	for _, t := range e.tasks {
		states = append(states, t.runtime.snapshot())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ScheduleID < states[j].ScheduleID })

	return SchedulerStatus{
		IsRunning:      e.running,
		TotalSchedules: len(e.tasks),
		Schedules:      states,
	}
}

// UpcomingExecutions collects every active task's next_run (if any),
// sorted ascending, truncated to count.
func (e *Engine) UpcomingExecutions(count int) []UpcomingExecution {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []UpcomingExecution
	for id, t := range e.tasks {
		state := t.runtime.snapshot()
		if state.NextRun == nil {
			continue
		}
		out = append(out, UpcomingExecution{
			ScheduleID:   id,
			Name:         t.data.get().Name,
			ScheduledFor: *state.NextRun,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })

	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}
