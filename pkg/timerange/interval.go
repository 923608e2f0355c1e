// Package timerange models half-open time intervals [Start, End) and the one
// overlap predicate every scheduling decision relies on.
package timerange

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MinDurationHours = 0.5
	MaxDurationHours = 12.0
)

var (
	ErrInvalidDuration = fmt.Errorf("duration must be a number between %g and %g hours", MinDurationHours, MaxDurationHours)
	ErrEmptyInterval   = errors.New("interval start must be before its end")
)

// Interval is the half-open range [Start, End). Two intervals that only touch
// (one ends exactly when the other starts) do not overlap.
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrEmptyInterval
	}
	return Interval{Start: start, End: end}, nil
}

// FromHours builds [start, start+hours) after validating hours.
func FromHours(start time.Time, hours float64) (Interval, error) {
	if err := ValidateHours(hours); err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start.Add(HoursToDuration(hours))}, nil
}

// Overlaps reports whether a and b share at least one instant.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i, other)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Shift moves the interval so it starts at start, keeping its length.
func (i Interval) Shift(start time.Time) Interval {
	return Interval{Start: start, End: start.Add(i.Duration())}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// ParseHours parses a duration expressed in hours, as sent by clients either as
// a JSON number or a numeric string.
func ParseHours(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidDuration
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	if err := ValidateHours(hours); err != nil {
		return 0, err
	}
	return hours, nil
}

func ValidateHours(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return ErrInvalidDuration
	}
	if hours < MinDurationHours || hours > MaxDurationHours {
		return ErrInvalidDuration
	}
	return nil
}

func HoursToDuration(hours float64) time.Duration {
	return time.Duration(math.Round(hours * float64(time.Hour)))
}
