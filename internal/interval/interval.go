// Package interval implements arithmetic over half-open [start, end) time ranges.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned when an interval ends before it starts.
var ErrMalformed = errors.New("interval end precedes start")

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an Interval, rejecting end < start.
func New(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, fmt.Errorf("%w: start=%s end=%s", ErrMalformed, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Valid reports whether End is not before Start.
func (i Interval) Valid() bool {
	return !i.End.Before(i.Start)
}

// Empty reports whether the interval has zero length.
func (i Interval) Empty() bool {
	return i.End.Equal(i.Start)
}

// Duration returns End - Start, clamped at zero for malformed input.
func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Seconds returns the whole-second length of the interval.
func (i Interval) Seconds() int64 {
	return int64(i.Duration() / time.Second)
}

// Contains reports whether t lies inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// ContainsInterval reports whether other lies entirely within i.
func (i Interval) ContainsInterval(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlap returns the length of the shared portion of a and b.
func Overlap(a, b Interval) time.Duration {
	if !Overlaps(a, b) {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return end.Sub(start)
}

// Gap returns b.Start - a.End for a followed by b, and false when they touch or overlap.
func Gap(a, b Interval) (time.Duration, bool) {
	gap := b.Start.Sub(a.End)
	if gap <= 0 {
		return 0, false
	}
	return gap, true
}

// Union returns the smallest interval spanning every input. It returns false for no input.
func Union(intervals ...Interval) (Interval, bool) {
	if len(intervals) == 0 {
		return Interval{}, false
	}
	out := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Start.Before(out.Start) {
			out.Start = iv.Start
		}
		if iv.End.After(out.End) {
			out.End = iv.End
		}
	}
	return out, true
}
