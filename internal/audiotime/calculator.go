// SPDX-License-Identifier: MIT

package audiotime

import (
	"fmt"
	"time"

	"github.com/mbowers-oss/chimed/internal/schedule"
)

// GracePeriod is the window in which a missed fire still executes
// immediately rather than waiting for the next scheduled occurrence.
const GracePeriod = time.Minute

// CalculationError reports that a schedule's configuration makes its
// next fire time impossible to compute (as opposed to "never fires",
// which is a valid Ok(None) result).
type CalculationError struct {
	ScheduleID string
	Reason     string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("schedule %s: %s", e.ScheduleID, e.Reason)
}

// NextExecutionTime computes the next instant a schedule should fire,
// given the reference instant now and the schedule's last recorded
// run (nil if it has never run).
//
// Returns (nil, nil) when the schedule cannot ever fire (disabled, or
// Weekly with an empty day set). Returns a non-nil error only when the
// schedule's own configuration is invalid (bad scheduled_time, or
// Custom{interval_minutes: 0}).
func NextExecutionTime(s schedule.Schedule, now time.Time, lastRun *time.Time) (*time.Time, error) {
	if !s.Enabled {
		return nil, nil
	}

	clockTime, err := schedule.ParseClockTime(s.ScheduledTime)
	if err != nil {
		return nil, &CalculationError{ScheduleID: s.ID, Reason: fmt.Sprintf("invalid time %q: %v", s.ScheduledTime, err)}
	}
	hour, minute := clockTime.Hour(), clockTime.Minute()

	switch s.RepeatType.Kind {
	case schedule.RepeatOnce, schedule.RepeatDaily:
		t := findNextMatchingDay(now, hour, minute, lastRun, func(time.Weekday) bool { return true })
		return &t, nil

	case schedule.RepeatWeekdays, schedule.RepeatWeekends:
		t := findNextMatchingDay(now, hour, minute, lastRun, s.RepeatType.Matches)
		return &t, nil

	case schedule.RepeatWeekly:
		if len(s.RepeatType.Days) == 0 {
			return nil, nil
		}
		t := findNextMatchingDay(now, hour, minute, lastRun, s.RepeatType.Matches)
		return &t, nil

	case schedule.RepeatCustom:
		if s.RepeatType.IntervalMinutes == 0 {
			return nil, &CalculationError{ScheduleID: s.ID, Reason: "custom interval must be greater than 0"}
		}
		t := findNextCustomInterval(now, hour, minute, int64(s.RepeatType.IntervalMinutes), lastRun)
		return &t, nil

	default:
		return nil, &CalculationError{ScheduleID: s.ID, Reason: fmt.Sprintf("unknown repeat type %q", s.RepeatType.Kind)}
	}
}

// findNextMatchingDay walks forward day by day from now's date until it
// finds a date satisfying matches whose combined (date, hour:minute) is
// at or after now, applying the grace-period catch-up on the first
// satisfying day encountered.
func findNextMatchingDay(now time.Time, hour, minute int, lastRun *time.Time, matches func(time.Weekday) bool) time.Time {
	date := now

	for {
		if matches(date.Weekday()) {
			candidate := combine(date, hour, minute)

			if !candidate.Before(now) {
				return candidate
			}

			if now.Sub(candidate) <= GracePeriod && shouldFireWithGrace(now, lastRun) {
				return now
			}
		}

		date = date.AddDate(0, 0, 1)
	}
}

// findNextCustomInterval anchors at today's (date, hour:minute) and
// advances by the smallest positive multiple of intervalMinutes that
// lands strictly after now.
func findNextCustomInterval(now time.Time, hour, minute int, intervalMinutes int64, lastRun *time.Time) time.Time {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	interval := time.Duration(intervalMinutes) * time.Minute
	candidate := combine(now, hour, minute)

	if candidate.After(now) {
		return candidate
	}

	if now.Sub(candidate) <= GracePeriod && shouldFireWithGrace(now, lastRun) {
		return now
	}

	elapsed := now.Sub(candidate)
	intervalsPassed := elapsed/interval + 1
	return candidate.Add(interval * intervalsPassed)
}

// combine builds the local instant for date's calendar day at the
// given hour:minute, handling DST gaps and ambiguity:
// a nonexistent local slot (spring-forward gap) steps forward one
// minute at a time until a valid instant is produced; an ambiguous slot
// (fall-back) resolves to the earlier of the two candidate instants.
//
// The gap walk advances the wall-clock (hour, minute) tuple itself and
// re-resolves it through time.Date each step, rather than adding a
// Duration to the previous, already zone-resolved Time: the latter
// walks the zone's absolute clock, which during a gap jumps straight
// past the rest of the day and only matches (hour, minute) again a
// full day later.
func combine(date time.Time, hour, minute int) time.Time {
	loc := date.Location()
	if loc == nil {
		loc = time.Local
	}
	year, month, day := date.Date()

	// Bound the walk generously; a DST gap is typically one hour wide.
	wallMinute := hour*60 + minute
	for step := 0; step < 4*60; step++ {
		h, m := (wallMinute/60)%24, wallMinute%60
		extraDays := wallMinute / (24 * 60)

		t := time.Date(year, month, day+extraDays, h, m, 0, 0, loc)
		if t.Hour() == h && t.Minute() == m {
			return resolveAmbiguous(t, loc)
		}
		wallMinute++
	}

	// Unreachable for any real zone; keep the naive value rather than
	// looping forever.
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// resolveAmbiguous detects whether t's wall-clock reading corresponds
// to two distinct instants (a fall-back transition, where the same
// local time occurs once before and once after the clocks are set
// back) and, if so, returns the earlier one.
//
// It probes the zone offset two hours either side of t: if both match
// t's own offset, there is no nearby transition at all and t is
// returned unchanged. Otherwise it reconstructs the instant that would
// result from each of the three offsets seen (before/at/after) by
// pinning the wall-clock reading to that offset, keeping only the
// offsets that are self-consistent (the Location actually uses that
// offset at the instant it produces), and returning the earliest of
// those.
func resolveAmbiguous(t time.Time, loc *time.Location) time.Time {
	_, offNow := t.Zone()
	_, offBefore := t.Add(-2 * time.Hour).Zone()
	_, offAfter := t.Add(2 * time.Hour).Zone()

	if offBefore == offNow && offAfter == offNow {
		return t
	}

	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	naiveUTC := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)

	var earliestInstant, earliestLocal time.Time
	for _, off := range []int{offBefore, offNow, offAfter} {
		candidate := naiveUTC.Add(-time.Duration(off) * time.Second)
		resolved := candidate.In(loc)
		if resolved.Hour() != hour || resolved.Minute() != minute {
			continue
		}
		if _, candOff := resolved.Zone(); candOff != off {
			continue
		}
		if earliestLocal.IsZero() || candidate.Before(earliestInstant) {
			earliestInstant = candidate
			earliestLocal = resolved
		}
	}

	if earliestLocal.IsZero() {
		return t
	}
	return earliestLocal
}

func shouldFireWithGrace(now time.Time, lastRun *time.Time) bool {
	if lastRun == nil {
		return true
	}
	return now.Sub(*lastRun) >= GracePeriod
}
