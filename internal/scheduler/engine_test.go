// SPDX-License-Identifier: MIT

package scheduler

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbowers-oss/chimed/internal/schedule"
	"github.com/mbowers-oss/chimed/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chimed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEngine_OnceScheduleSelfDisables(t *testing.T) {
	st := openTestStore(t)

	now := time.Now()
	created, err := st.Schedules.Create(schedule.CreateInput{
		Name:          "T",
		AudioFilePath: "/tmp/t.mp3",
		ScheduledTime: now.Format("15:04"),
		Enabled:       true,
		RepeatType:    schedule.Once(),
		Volume:        70,
	})
	require.NoError(t, err)

	mock := &mockController{}
	eng := New(Config{Store: st, Audio: mock})

	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Stop() })

	require.Eventually(t, func() bool {
		return mock.count() >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, eng.Stop())

	fetched, err := st.Schedules.GetByID(created.ID)
	require.NoError(t, err)
	assert.False(t, fetched.Enabled)

	history, err := st.History.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, created.ID, history[0].ScheduleID)
	assert.Equal(t, schedule.StatusSuccess, history[0].Status)
}

func TestEngine_FailedPlaybackRecordsFailure(t *testing.T) {
	st := openTestStore(t)

	now := time.Now()
	created, err := st.Schedules.Create(schedule.CreateInput{
		Name:          "F",
		AudioFilePath: "/tmp/f.mp3",
		ScheduledTime: now.Format("15:04"),
		Enabled:       true,
		RepeatType:    schedule.Daily(),
		Volume:        70,
	})
	require.NoError(t, err)

	mock := &mockController{failWith: errors.New("output device unplugged")}
	eng := New(Config{Store: st, Audio: mock})

	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Stop() })

	require.Eventually(t, func() bool {
		return mock.count() >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, eng.Stop())

	history, err := st.History.ListRecent(1)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, created.ID, history[0].ScheduleID)
	assert.Equal(t, schedule.StatusFailed, history[0].Status)
	require.NotNil(t, history[0].ErrorMessage)
	assert.Contains(t, *history[0].ErrorMessage, "output device unplugged")

	// The schedule stays enabled: a failed fire is recorded, not fatal.
	fetched, err := st.Schedules.GetByID(created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Enabled)
}

func TestEngine_StartTwiceFails(t *testing.T) {
	st := openTestStore(t)
	eng := New(Config{Store: st, Audio: &mockController{}})

	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Stop() })

	assert.ErrorIs(t, eng.Start(), ErrAlreadyRunning)
}

func TestEngine_StopWithoutStartFails(t *testing.T) {
	eng := New(Config{Store: openTestStore(t), Audio: &mockController{}})
	assert.ErrorIs(t, eng.Stop(), ErrNotRunning)
}

func TestEngine_StatusReportsDisabledForWeeklyEmptyDays(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Schedules.Create(schedule.CreateInput{
		Name:          "Never",
		AudioFilePath: "/tmp/t.mp3",
		ScheduledTime: "09:00",
		Enabled:       true,
		RepeatType:    schedule.Weekly(),
		Volume:        50,
	})
	require.NoError(t, err)

	eng := New(Config{Store: st, Audio: &mockController{}})
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Stop() })

	require.Eventually(t, func() bool {
		status := eng.Status()
		return len(status.Schedules) == 1 && status.Schedules[0].Status == schedule.StatusDisabled
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_UpcomingExecutionsSortedAndTruncated(t *testing.T) {
	st := openTestStore(t)
	for _, hhmm := range []string{"23:59", "00:01", "12:00"} {
		_, err := st.Schedules.Create(schedule.CreateInput{
			Name:          hhmm,
			AudioFilePath: "/tmp/t.mp3",
			ScheduledTime: hhmm,
			Enabled:       true,
			RepeatType:    schedule.Daily(),
			Volume:        50,
		})
		require.NoError(t, err)
	}

	eng := New(Config{Store: st, Audio: &mockController{}})
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Stop() })

	require.Eventually(t, func() bool {
		return len(eng.UpcomingExecutions(10)) == 3
	}, time.Second, 5*time.Millisecond)

	upcoming := eng.UpcomingExecutions(2)
	require.Len(t, upcoming, 2)
	assert.True(t, upcoming[0].ScheduledFor.Before(upcoming[1].ScheduledFor) || upcoming[0].ScheduledFor.Equal(upcoming[1].ScheduledFor))
}

func TestEngine_ReloadWhileStoppedIsNoop(t *testing.T) {
	eng := New(Config{Store: openTestStore(t), Audio: &mockController{}})
	assert.NoError(t, eng.Reload())
}

func TestEngine_PauseResumeAliasStartStop(t *testing.T) {
	st := openTestStore(t)
	eng := New(Config{Store: st, Audio: &mockController{}})

	require.NoError(t, eng.ResumeAll())
	assert.True(t, eng.Status().IsRunning)

	require.NoError(t, eng.PauseAll())
	assert.False(t, eng.Status().IsRunning)
}
