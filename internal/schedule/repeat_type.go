// SPDX-License-Identifier: MIT

package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// RepeatKind discriminates the RepeatType tagged union.
type RepeatKind string

const (
	RepeatOnce     RepeatKind = "once"
	RepeatDaily    RepeatKind = "daily"
	RepeatWeekdays RepeatKind = "weekdays"
	RepeatWeekends RepeatKind = "weekends"
	RepeatWeekly   RepeatKind = "weekly"
	RepeatCustom   RepeatKind = "custom"
)

// RepeatType is the tagged union describing how a schedule recurs.
//
// Only the fields relevant to Kind are meaningful: Days for
// RepeatWeekly, IntervalMinutes for RepeatCustom. The JSON form is
// internally tagged (`{"type": "weekly", "days": [...]}`), which is
// what the database's repeat_type column stores.
type RepeatType struct {
	Kind            RepeatKind     `json:"type"`
	Days            []time.Weekday `json:"days,omitempty"`
	IntervalMinutes uint32         `json:"interval_minutes,omitempty"`
}

// Once returns a RepeatType that fires once then self-disables.
func Once() RepeatType { return RepeatType{Kind: RepeatOnce} }

// Daily returns a RepeatType that fires every day.
func Daily() RepeatType { return RepeatType{Kind: RepeatDaily} }

// Weekdays returns a RepeatType that fires Monday through Friday.
func Weekdays() RepeatType { return RepeatType{Kind: RepeatWeekdays} }

// Weekends returns a RepeatType that fires Saturday and Sunday.
func Weekends() RepeatType { return RepeatType{Kind: RepeatWeekends} }

// Weekly returns a RepeatType that fires on the given set of weekdays.
// An empty set never fires.
func Weekly(days ...time.Weekday) RepeatType {
	return RepeatType{Kind: RepeatWeekly, Days: days}
}

// Custom returns a RepeatType that fires every intervalMinutes minutes,
// anchored at the schedule's scheduled_time. intervalMinutes == 0 is a
// configuration error surfaced by the time calculator, not here.
func Custom(intervalMinutes uint32) RepeatType {
	return RepeatType{Kind: RepeatCustom, IntervalMinutes: intervalMinutes}
}

// repeatTypeWire backs RepeatType's custom JSON codec, since
// MarshalJSON on the struct itself would recurse.
type repeatTypeWire struct {
	Kind            RepeatKind `json:"type"`
	Days            []int      `json:"days,omitempty"`
	IntervalMinutes uint32     `json:"interval_minutes,omitempty"`
}

// MarshalJSON renders the tagged union as {"type": "...", ...fields}.
func (r RepeatType) MarshalJSON() ([]byte, error) {
	wire := repeatTypeWire{Kind: r.Kind, IntervalMinutes: r.IntervalMinutes}
	if r.Days != nil {
		wire.Days = make([]int, len(r.Days))
		for i, d := range r.Days {
			wire.Days[i] = int(d)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses the tagged union, validating the discriminant.
func (r *RepeatType) UnmarshalJSON(data []byte) error {
	var wire repeatTypeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Kind {
	case RepeatOnce, RepeatDaily, RepeatWeekdays, RepeatWeekends, RepeatWeekly, RepeatCustom:
	default:
		return fmt.Errorf("repeat_type: unknown variant %q", wire.Kind)
	}

	r.Kind = wire.Kind
	r.IntervalMinutes = wire.IntervalMinutes
	r.Days = nil
	if wire.Days != nil {
		r.Days = make([]time.Weekday, len(wire.Days))
		for i, d := range wire.Days {
			r.Days[i] = time.Weekday(d)
		}
	}
	return nil
}

// Matches reports whether the given weekday satisfies this RepeatType's
// day constraint. RepeatOnce, RepeatDaily and RepeatCustom carry no day
// constraint and match every weekday.
func (r RepeatType) Matches(weekday time.Weekday) bool {
	switch r.Kind {
	case RepeatWeekdays:
		return weekday >= time.Monday && weekday <= time.Friday
	case RepeatWeekends:
		return weekday == time.Saturday || weekday == time.Sunday
	case RepeatWeekly:
		for _, d := range r.Days {
			if d == weekday {
				return true
			}
		}
		return false
	default:
		return true
	}
}
