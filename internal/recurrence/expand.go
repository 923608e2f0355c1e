// Package recurrence expands a recurring booking request into its candidate
// occurrence intervals.
package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timerange"
)

var (
	ErrUnsupportedFrequency = errors.New("frequency must be WEEKLY or MONTHLY")
	ErrTooManyOccurrences   = errors.New("recurring series exceeds the maximum number of occurrences")
)

// Expand yields the occurrences of a series that starts at start, each lasting
// duration, stepping by frequency while the occurrence start is not after
// until. The sequence is a pure function of its inputs, so ranging over it
// again restarts from the first occurrence.
//
// Monthly occurrences keep the start's day of month, clamped to the last day
// of shorter months. Each occurrence is computed from the anchor, so a clamp
// never shifts later months: Jan 31 yields Feb 28, Mar 31, Apr 30.
func Expand(start time.Time, duration time.Duration, frequency model.Frequency, until time.Time) iter.Seq[timerange.Interval] {
	return func(yield func(timerange.Interval) bool) {
		if !frequency.Valid() || duration <= 0 {
			return
		}
		for k := 0; ; k++ {
			occurrence := nth(start, frequency, k)
			if occurrence.After(until) {
				return
			}
			if !yield(timerange.Interval{Start: occurrence, End: occurrence.Add(duration)}) {
				return
			}
		}
	}
}

// Count returns the number of occurrences Expand would yield, stopping early
// once limit is exceeded. It returns ErrTooManyOccurrences in that case.
func Count(start time.Time, frequency model.Frequency, until time.Time, limit int) (int, error) {
	if !frequency.Valid() {
		return 0, ErrUnsupportedFrequency
	}
	n := 0
	for range Expand(start, time.Minute, frequency, until) {
		n++
		if limit > 0 && n > limit {
			return n, fmt.Errorf("%w (%d)", ErrTooManyOccurrences, limit)
		}
	}
	return n, nil
}

// AnchorWeekday is the descriptive weekday stored on weekly groups.
func AnchorWeekday(start time.Time, frequency model.Frequency) *int {
	if frequency != model.FrequencyWeekly {
		return nil
	}
	day := int(start.Weekday())
	return &day
}

func nth(start time.Time, frequency model.Frequency, k int) time.Time {
	if frequency == model.FrequencyWeekly {
		return start.AddDate(0, 0, 7*k)
	}
	return addMonthsClamped(start, k)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := daysIn(firstOfTarget.Year(), firstOfTarget.Month(), t.Location())
	if day > lastDay {
		day = lastDay
	}
	hour, minute, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
