package timerange

import (
	"errors"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	base := Interval{Start: at(10, 0), End: at(12, 0)}

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{at(10, 0), at(12, 0)}, true},
		{"inside", Interval{at(10, 30), at(11, 0)}, true},
		{"containing", Interval{at(9, 0), at(13, 0)}, true},
		{"overlapping start", Interval{at(9, 0), at(10, 1)}, true},
		{"overlapping end", Interval{at(11, 0), at(12, 30)}, true},
		{"touching before", Interval{at(8, 0), at(10, 0)}, false},
		{"touching after", Interval{at(12, 0), at(13, 0)}, false},
		{"disjoint", Interval{at(14, 0), at(15, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(base, tt.other); got != tt.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", base, tt.other, got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("overlap must be symmetric: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_RejectsEmptyOrInverted(t *testing.T) {
	if _, err := New(at(10, 0), at(10, 0)); !errors.Is(err, ErrEmptyInterval) {
		t.Errorf("expected ErrEmptyInterval for zero length, got %v", err)
	}
	if _, err := New(at(11, 0), at(10, 0)); !errors.Is(err, ErrEmptyInterval) {
		t.Errorf("expected ErrEmptyInterval for inverted, got %v", err)
	}
	if _, err := New(at(10, 0), at(11, 0)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseHours_Boundaries(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"0.5", 0.5, false},
		{"12", 12, false},
		{"2", 2, false},
		{" 1.5 ", 1.5, false},
		{"0.49", 0, true},
		{"12.01", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseHours(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDuration) {
					t.Fatalf("expected ErrInvalidDuration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromHours(t *testing.T) {
	interval, err := FromHours(at(10, 0), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !interval.End.Equal(at(12, 0)) {
		t.Errorf("end = %s, want 12:00", interval.End)
	}

	half, err := FromHours(at(10, 0), 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if half.Duration() != 30*time.Minute {
		t.Errorf("duration = %s, want 30m", half.Duration())
	}

	if _, err := FromHours(at(10, 0), 12.01); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestShift_KeepsLength(t *testing.T) {
	original := Interval{Start: at(10, 0), End: at(11, 30)}
	shifted := original.Shift(at(15, 0))

	if !shifted.End.Equal(at(16, 30)) {
		t.Errorf("shifted end = %s, want 16:30", shifted.End)
	}
}
