// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/mbowers-oss/chimed/internal/audiotime"
	"github.com/mbowers-oss/chimed/internal/schedule"
)

// scheduleData guards the mutable copy of a schedule's definition that
// a task holds. Definition and runtime state sit behind independent
// locks so a status read never contends with a definition refresh;
// both are held for microseconds.
type scheduleData struct {
	mu sync.RWMutex
	s  schedule.Schedule
}

func (d *scheduleData) get() schedule.Schedule {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.s
}

func (d *scheduleData) set(s schedule.Schedule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s = s
}

// runtimeData guards a task's ephemeral ScheduleRuntimeState.
type runtimeData struct {
	mu    sync.RWMutex
	state schedule.RuntimeState
}

func (r *runtimeData) snapshot() schedule.RuntimeState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *runtimeData) lastRun() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.LastRun
}

func (r *runtimeData) setStatus(status schedule.RuntimeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Status = status
}

func (r *runtimeData) setStatusError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Status = schedule.StatusError
	r.state.LastError = &message
}

func (r *runtimeData) clearError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.LastError = nil
}

func (r *runtimeData) setNextRun(t *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.NextRun = t
}

func (r *runtimeData) setLastRun(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.LastRun = &t
}

// task is the per-schedule suture.Service: compute the next fire time,
// sleep until it racing cancellation, play, record the outcome, loop.
// Returning suture.ErrDoNotRestart tells the supervisor the schedule
// has reached a terminal state (stopped, disabled, or an unrecoverable
// configuration error); any other returned error triggers suture's
// normal backoff-restart.
type task struct {
	id      string
	engine  *Engine
	data    *scheduleData
	runtime *runtimeData

	ctx context.Context
}

func (t *task) Serve(ctx context.Context) error {
	t.ctx = ctx

	for {
		if ctx.Err() != nil {
			t.runtime.setStatus(schedule.StatusStopped)
			t.runtime.setNextRun(nil)
			return suture.ErrDoNotRestart
		}

		sched := t.data.get()

		if !sched.Enabled {
			t.runtime.setStatus(schedule.StatusDisabled)
			return suture.ErrDoNotRestart
		}

		now := t.engine.clock.Now()
		next, err := audiotime.NextExecutionTime(sched, now, t.runtime.lastRun())
		if err != nil {
			msg := err.Error()
			t.engine.recordHistory(sched.ID, schedule.StatusSkipped, &msg)
			t.runtime.setStatusError(msg)
			return suture.ErrDoNotRestart
		}
		if next == nil {
			t.runtime.setStatus(schedule.StatusDisabled)
			return suture.ErrDoNotRestart
		}

		t.runtime.setNextRun(next)
		t.runtime.setStatus(schedule.StatusWaiting)
		t.runtime.clearError()

		wait := next.Sub(now)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.runtime.setStatus(schedule.StatusStopped)
			t.runtime.setNextRun(nil)
			return suture.ErrDoNotRestart
		case <-timer.C:
		}

		t.runtime.setStatus(schedule.StatusRunning)
		t.runtime.setNextRun(nil)

		t.playAnnouncement()

		playErr := t.engine.audio.Play(sched.AudioFilePath, sched.Volume)
		if playErr != nil {
			msg := playErr.Error()
			t.engine.recordHistory(sched.ID, schedule.StatusFailed, &msg)
			t.runtime.setStatusError(msg)
		} else {
			t.engine.recordHistory(sched.ID, schedule.StatusSuccess, nil)
			t.runtime.setLastRun(t.engine.clock.Now())
			t.runtime.setStatus(schedule.StatusIdle)
		}

		if sched.RepeatType.Kind == schedule.RepeatOnce {
			if updated, updErr := t.engine.disableOnce(sched.ID); updErr == nil {
				t.data.set(updated)
			} else {
				t.engine.logf("failed to disable fired schedule %s: %v", sched.ID, updErr)
			}
			t.runtime.setStatus(schedule.StatusDisabled)
			return suture.ErrDoNotRestart
		}
	}
}
