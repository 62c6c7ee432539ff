// Package conflict classifies temporal relationships between unified activities.
package conflict

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/interval"
)

// Type is the kind of detected relationship.
type Type string

const (
	TypeOverlap   Type = "overlap"
	TypeDuplicate Type = "duplicate"
	TypeGap       Type = "gap"
)

// Default detection settings.
const (
	DefaultDuplicateThreshold = 70.0
	DefaultDuplicateTolerance = 60 * time.Second
)

// Options tunes detection. Every field is supplied by the caller per call and
// used as given.
type Options struct {
	// DuplicateThreshold is the minimum similarity percentage flagged as a duplicate.
	// Zero flags every pair starting inside the tolerance.
	DuplicateThreshold float64
	// DuplicateTolerance is the start-time window inside which two activities may be
	// duplicates. A non-positive tolerance falls back to DefaultDuplicateTolerance.
	DuplicateTolerance time.Duration
	// GapMinimum is the smallest reported gap. Zero disables gap reporting.
	GapMinimum time.Duration
}

// DefaultOptions returns the default duplicate settings with gap reporting off.
func DefaultOptions() Options {
	return Options{
		DuplicateThreshold: DefaultDuplicateThreshold,
		DuplicateTolerance: DefaultDuplicateTolerance,
	}
}

// Conflict is one detected relationship between two or more activities.
type Conflict struct {
	ID             string                     `json:"id"`
	Type           Type                       `json:"conflict_type"`
	Activities     []activity.UnifiedActivity `json:"activities"`
	Message        string                     `json:"message"`
	Similarity     float64                    `json:"similarity,omitempty"`
	OverlapSeconds int64                      `json:"overlap_seconds,omitempty"`
	GapSeconds     int64                      `json:"gap_seconds,omitempty"`
}

// Keys returns the member identities.
func (c Conflict) Keys() []activity.Key {
	keys := make([]activity.Key, 0, len(c.Activities))
	for _, a := range c.Activities {
		keys = append(keys, a.Key())
	}
	return keys
}

// Detector finds overlaps, duplicates and gaps. It holds no state.
type Detector struct{}

// NewDetector constructs a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect classifies the relationships within activities. Input order does not matter.
func (d *Detector) Detect(activities []activity.UnifiedActivity, opts Options) []Conflict {
	if opts.DuplicateTolerance <= 0 {
		opts.DuplicateTolerance = DefaultDuplicateTolerance
	}

	sorted := slices.Clone(activities)
	activity.Sort(sorted)

	out := make([]Conflict, 0)
	out = append(out, d.overlaps(sorted)...)
	out = append(out, d.duplicates(sorted, opts)...)
	if opts.GapMinimum > 0 {
		out = append(out, d.gaps(sorted, opts.GapMinimum)...)
	}
	return out
}

func (d *Detector) overlaps(sorted []activity.UnifiedActivity) []Conflict {
	out := make([]Conflict, 0)
	for i := range sorted {
		a := sorted[i]
		for j := i + 1; j < len(sorted); j++ {
			b := sorted[j]
			if !b.StartTime.Before(a.EndTime) {
				break
			}
			if !interval.Overlaps(a.Interval(), b.Interval()) {
				continue
			}
			shared := interval.Overlap(a.Interval(), b.Interval())
			out = append(out, Conflict{
				ID:             conflictID(TypeOverlap, a, b),
				Type:           TypeOverlap,
				Activities:     []activity.UnifiedActivity{a, b},
				Message:        fmt.Sprintf("%q (%s) overlaps with %q (%s) for %s", a.Title, a.SourceType, b.Title, b.SourceType, formatDuration(shared)),
				OverlapSeconds: int64(shared / time.Second),
			})
		}
	}
	return out
}

func (d *Detector) duplicates(sorted []activity.UnifiedActivity, opts Options) []Conflict {
	out := make([]Conflict, 0)
	for i := range sorted {
		a := sorted[i]
		for j := i + 1; j < len(sorted); j++ {
			b := sorted[j]
			if b.StartTime.Sub(a.StartTime) > opts.DuplicateTolerance {
				break
			}
			score := Similarity(a, b, opts.DuplicateTolerance)
			if score < opts.DuplicateThreshold {
				continue
			}
			out = append(out, Conflict{
				ID:         conflictID(TypeDuplicate, a, b),
				Type:       TypeDuplicate,
				Activities: []activity.UnifiedActivity{a, b},
				Message:    fmt.Sprintf("%q (%s) and %q (%s) look like duplicates (%.0f%% similar)", a.Title, a.SourceType, b.Title, b.SourceType, score),
				Similarity: score,
			})
		}
	}
	return out
}

func (d *Detector) gaps(sorted []activity.UnifiedActivity, minimum time.Duration) []Conflict {
	out := make([]Conflict, 0)
	bySource := make(map[activity.SourceType][]activity.UnifiedActivity)
	order := make([]activity.SourceType, 0, 3)
	for _, a := range sorted {
		if _, ok := bySource[a.SourceType]; !ok {
			order = append(order, a.SourceType)
		}
		bySource[a.SourceType] = append(bySource[a.SourceType], a)
	}

	for _, source := range order {
		items := bySource[source]
		if len(items) < 2 {
			continue
		}
		prev := items[0]
		reach := prev.Interval()
		for _, next := range items[1:] {
			gap, ok := interval.Gap(reach, next.Interval())
			if ok && gap >= minimum {
				out = append(out, Conflict{
					ID:         conflictID(TypeGap, prev, next),
					Type:       TypeGap,
					Activities: []activity.UnifiedActivity{prev, next},
					Message:    fmt.Sprintf("%s of untracked %s time between %q and %q", formatDuration(gap), source, prev.Title, next.Title),
					GapSeconds: int64(gap / time.Second),
				})
			}
			if next.EndTime.After(reach.End) {
				reach.End = next.EndTime
				prev = next
			}
		}
	}
	return out
}

// Similarity scores two activities from 0 to 100. Equal titles (case-insensitive)
// contribute half; start proximity within tolerance contributes the rest linearly.
func Similarity(a, b activity.UnifiedActivity, tolerance time.Duration) float64 {
	if tolerance <= 0 {
		tolerance = DefaultDuplicateTolerance
	}
	score := 0.0
	if normalizeTitle(a.Title) == normalizeTitle(b.Title) {
		score += 50
	}
	delta := a.StartTime.Sub(b.StartTime)
	if delta < 0 {
		delta = -delta
	}
	if delta <= tolerance {
		score += 50 * (1 - float64(delta)/float64(tolerance))
	}
	return score
}

// Summary counts conflicts per type.
func Summary(conflicts []Conflict) map[Type]int {
	out := map[Type]int{TypeOverlap: 0, TypeDuplicate: 0, TypeGap: 0}
	for _, c := range conflicts {
		out[c.Type]++
	}
	return out
}

// Find returns the conflict with the given id.
func Find(conflicts []Conflict, id string) (Conflict, bool) {
	for _, c := range conflicts {
		if c.ID == id {
			return c, true
		}
	}
	return Conflict{}, false
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func conflictID(kind Type, members ...activity.UnifiedActivity) string {
	parts := make([]string, 0, len(members)+1)
	parts = append(parts, string(kind))
	for _, m := range members {
		parts = append(parts, m.Key().String())
	}
	return strings.Join(parts, "|")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}
