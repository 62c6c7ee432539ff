package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/interval"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

// Engine executes merge, split and conflict resolution over in-memory activities.
// It never persists anything; callers hand the output to a Writer.
type Engine struct {
	validator *validation.Validator
	ids       *TempIDs
}

// NewEngine constructs an Engine. A nil validator skips tag existence checks.
func NewEngine(validator *validation.Validator) *Engine {
	if validator == nil {
		validator = validation.NewValidator(nil)
	}
	return &Engine{validator: validator, ids: &TempIDs{}}
}

// Merge combines activities into one spanning their union.
func (e *Engine) Merge(ctx context.Context, activities []activity.UnifiedActivity, strategy Strategy) (activity.UnifiedActivity, error) {
	if len(activities) == 0 {
		return activity.UnifiedActivity{}, ErrEmptyInput
	}
	if len(activities) == 1 {
		return activities[0], nil
	}
	if !sameSource(activities) {
		return activity.UnifiedActivity{}, ErrMixedSources
	}
	for _, a := range activities {
		if !a.Interval().Valid() {
			return activity.UnifiedActivity{}, fmt.Errorf("merge %s: %w", a.Key(), interval.ErrMalformed)
		}
	}

	base, err := pickBase(activities, strategy)
	if err != nil {
		return activity.UnifiedActivity{}, err
	}

	ivs := make([]interval.Interval, 0, len(activities))
	for _, a := range activities {
		ivs = append(ivs, a.Interval())
	}
	union, _ := interval.Union(ivs...)

	merged := base.WithInterval(union)
	merged.Tags = unionTags(activities)

	if err := e.validator.Check(ctx, merged); err != nil {
		return activity.UnifiedActivity{}, err
	}
	return merged, nil
}

func pickBase(activities []activity.UnifiedActivity, strategy Strategy) (activity.UnifiedActivity, error) {
	switch strategy {
	case StrategyLongest, "":
		best := activities[0]
		for _, a := range activities[1:] {
			if a.Duration > best.Duration || (a.Duration == best.Duration && activity.Less(a, best)) {
				best = a
			}
		}
		return best, nil
	case StrategyEarliest:
		return slices.MinFunc(activities, activity.Compare), nil
	case StrategyLatest:
		return slices.MaxFunc(activities, activity.Compare), nil
	}
	return activity.UnifiedActivity{}, fmt.Errorf("%w: strategy %q", ErrUnsupportedResolution, strategy)
}

func unionTags(activities []activity.UnifiedActivity) []activity.Tag {
	seen := make(map[int64]struct{})
	out := make([]activity.Tag, 0)
	for _, a := range activities {
		for _, t := range a.Tags {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func sameSource(activities []activity.UnifiedActivity) bool {
	for _, a := range activities[1:] {
		if a.SourceType != activities[0].SourceType {
			return false
		}
	}
	return true
}

// Split cuts a into contiguous parts at the given points. Points outside the
// open interval are ignored; with none left the original is returned alone.
func (e *Engine) Split(a activity.UnifiedActivity, points []time.Time) ([]activity.UnifiedActivity, error) {
	if !a.Interval().Valid() {
		return nil, fmt.Errorf("split %s: %w", a.Key(), interval.ErrMalformed)
	}

	cuts := make([]time.Time, 0, len(points))
	for _, p := range points {
		if p.After(a.StartTime) && p.Before(a.EndTime) {
			cuts = append(cuts, p)
		}
	}
	slices.SortFunc(cuts, func(x, y time.Time) int { return x.Compare(y) })
	cuts = slices.CompactFunc(cuts, func(x, y time.Time) bool { return x.Equal(y) })

	if len(cuts) == 0 {
		return []activity.UnifiedActivity{a}, nil
	}

	bounds := make([]time.Time, 0, len(cuts)+2)
	bounds = append(bounds, a.StartTime)
	bounds = append(bounds, cuts...)
	bounds = append(bounds, a.EndTime)

	parts := make([]activity.UnifiedActivity, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		part := a.WithInterval(interval.Interval{Start: bounds[i], End: bounds[i+1]})
		part.ID = e.ids.Next()
		part.Title = fmt.Sprintf("%s (Part %d)", a.Title, i+1)
		parts = append(parts, part)
	}
	return parts, nil
}

// ResolveConflict applies resolution to the activities implicated by c.
func (e *Engine) ResolveConflict(ctx context.Context, c conflict.Conflict, resolution Resolution) ([]Resolved, error) {
	members := slices.Clone(c.Activities)
	activity.Sort(members)
	if len(members) == 0 {
		return nil, ErrEmptyInput
	}

	switch c.Type {
	case conflict.TypeGap:
		return keepAll(members), nil
	case conflict.TypeOverlap:
		switch resolution {
		case ResolutionMerge:
			return e.resolveMerge(ctx, members)
		case ResolutionDeleteOne:
			return deleteAllButFirst(members), nil
		case ResolutionAdjustTime:
			return adjustTimes(members), nil
		case ResolutionSplit:
			return e.resolveSplit(members)
		}
	case conflict.TypeDuplicate:
		switch resolution {
		case ResolutionMerge:
			return e.resolveMerge(ctx, members)
		case ResolutionDeleteOne:
			return deleteAllButFirst(members), nil
		case ResolutionAdjustTime, ResolutionSplit:
			// Duplicates are neither time-adjusted nor split; every member survives.
			return keepAll(members), nil
		}
	default:
		return nil, fmt.Errorf("%w: conflict type %q", ErrUnsupportedResolution, c.Type)
	}
	return nil, fmt.Errorf("%w: %q for %s", ErrUnsupportedResolution, resolution, c.Type)
}

func (e *Engine) resolveMerge(ctx context.Context, members []activity.UnifiedActivity) ([]Resolved, error) {
	merged, err := e.Merge(ctx, members, StrategyLongest)
	if err != nil {
		return nil, err
	}
	out := make([]Resolved, 0, len(members))
	for _, m := range members {
		if m.Key() == merged.Key() {
			continue
		}
		out = append(out, Resolved{Action: ActionDelete, Activity: m})
	}
	out = append(out, Resolved{Action: ActionUpdate, Activity: merged})
	return out, nil
}

func (e *Engine) resolveSplit(members []activity.UnifiedActivity) ([]Resolved, error) {
	first, others := members[0], members[1:]

	points := make([]time.Time, 0, 2*len(others))
	for _, o := range others {
		points = append(points, o.StartTime, o.EndTime)
	}
	parts, err := e.Split(first, points)
	if err != nil {
		return nil, err
	}

	covered := func(part activity.UnifiedActivity) bool {
		for _, o := range others {
			if o.Interval().ContainsInterval(part.Interval()) {
				return true
			}
		}
		return false
	}

	out := make([]Resolved, 0, len(parts)+len(members))
	if len(parts) == 1 && parts[0].ID == first.ID {
		if covered(first) {
			out = append(out, Resolved{Action: ActionDelete, Activity: first})
		} else {
			out = append(out, Resolved{Action: ActionKeep, Activity: first})
		}
	} else {
		out = append(out, Resolved{Action: ActionDelete, Activity: first})
		for _, p := range parts {
			if covered(p) {
				continue
			}
			out = append(out, Resolved{Action: ActionCreate, Activity: p})
		}
	}
	return append(out, keepAll(others)...), nil
}

func keepAll(members []activity.UnifiedActivity) []Resolved {
	out := make([]Resolved, 0, len(members))
	for _, m := range members {
		out = append(out, Resolved{Action: ActionKeep, Activity: m})
	}
	return out
}

func deleteAllButFirst(members []activity.UnifiedActivity) []Resolved {
	out := make([]Resolved, 0, len(members))
	out = append(out, Resolved{Action: ActionKeep, Activity: members[0]})
	for _, m := range members[1:] {
		out = append(out, Resolved{Action: ActionDelete, Activity: m})
	}
	return out
}

// adjustTimes truncates each earlier activity to the start of the next one it overlaps.
func adjustTimes(members []activity.UnifiedActivity) []Resolved {
	current := slices.Clone(members)
	changed := make([]bool, len(current))
	for i := 0; i+1 < len(current); i++ {
		earlier, later := current[i], current[i+1]
		if !interval.Overlaps(earlier.Interval(), later.Interval()) {
			continue
		}
		current[i] = earlier.WithInterval(interval.Interval{Start: earlier.StartTime, End: later.StartTime})
		changed[i] = true
	}
	out := make([]Resolved, 0, len(current))
	for i, a := range current {
		action := ActionKeep
		if changed[i] {
			action = ActionUpdate
		}
		out = append(out, Resolved{Action: action, Activity: a})
	}
	return out
}

// SuggestMerge scores how safely activities could be merged.
func (e *Engine) SuggestMerge(ctx context.Context, activities []activity.UnifiedActivity) MergeSuggestion {
	if len(activities) < 2 {
		return MergeSuggestion{Reason: "at least two activities are required to merge"}
	}
	if !sameSource(activities) {
		return MergeSuggestion{Reason: "activities come from different sources and cannot be merged"}
	}

	sorted := slices.Clone(activities)
	activity.Sort(sorted)
	largest := largestGap(sorted)

	var confidence int
	var reason string
	switch {
	case largest <= 0:
		confidence, reason = 100, "activities are contiguous or overlapping"
	case largest <= time.Minute:
		confidence, reason = 90, "activities are separated by at most a minute"
	case largest <= 5*time.Minute:
		confidence, reason = 70, "activities are separated by at most five minutes"
	case largest <= 15*time.Minute:
		confidence, reason = 50, "activities are separated by at most fifteen minutes"
	default:
		confidence, reason = 20, "activities are too far apart to merge safely"
	}
	if sameTitle(sorted) {
		confidence += 10
		reason += " and share the same title"
	}
	if confidence > 100 {
		confidence = 100
	}

	suggestion := MergeSuggestion{Confidence: confidence, Reason: reason, CanMerge: confidence >= 50}
	if !suggestion.CanMerge {
		return suggestion
	}
	merged, err := e.Merge(ctx, sorted, StrategyLongest)
	if err != nil {
		suggestion.CanMerge = false
		suggestion.Reason = fmt.Sprintf("merged result is invalid: %v", err)
		return suggestion
	}
	suggestion.MergedActivity = &merged
	return suggestion
}

func largestGap(sorted []activity.UnifiedActivity) time.Duration {
	var largest time.Duration
	reach := sorted[0].EndTime
	for _, a := range sorted[1:] {
		if gap := a.StartTime.Sub(reach); gap > largest {
			largest = gap
		}
		if a.EndTime.After(reach) {
			reach = a.EndTime
		}
	}
	return largest
}

func sameTitle(activities []activity.UnifiedActivity) bool {
	first := strings.ToLower(strings.TrimSpace(activities[0].Title))
	for _, a := range activities[1:] {
		if strings.ToLower(strings.TrimSpace(a.Title)) != first {
			return false
		}
	}
	return true
}

// ApplyAutoMerge merges runs of same-source activities separated by at most
// thresholdSeconds. Singleton runs pass through unchanged.
func (e *Engine) ApplyAutoMerge(ctx context.Context, activities []activity.UnifiedActivity, thresholdSeconds int64) ([]activity.UnifiedActivity, error) {
	groups := chains(activities, thresholdSeconds, false)
	out := make([]activity.UnifiedActivity, 0, len(groups))
	for _, g := range groups {
		merged, err := e.Merge(ctx, g, StrategyLongest)
		if err != nil {
			return nil, err
		}
		out = append(out, merged)
	}
	activity.Sort(out)
	return out, nil
}

// FindMergeableGroups returns runs of two or more activities sharing source and
// activity type whose gaps never exceed maxGapSeconds. Nothing is merged.
func (e *Engine) FindMergeableGroups(activities []activity.UnifiedActivity, maxGapSeconds int64) [][]activity.UnifiedActivity {
	groups := chains(activities, maxGapSeconds, true)
	out := make([][]activity.UnifiedActivity, 0)
	for _, g := range groups {
		if len(g) >= 2 {
			out = append(out, g)
		}
	}
	return out
}

type chainKey struct {
	source activity.SourceType
	kind   activity.Type
}

// chains groups chronologically adjacent activities in one pass.
func chains(activities []activity.UnifiedActivity, maxGapSeconds int64, sameType bool) [][]activity.UnifiedActivity {
	if maxGapSeconds < 0 {
		maxGapSeconds = 0
	}
	maxGap := time.Duration(maxGapSeconds) * time.Second

	sorted := slices.Clone(activities)
	activity.Sort(sorted)

	type open struct {
		idx   int
		reach time.Time
	}
	current := make(map[chainKey]*open)
	groups := make([][]activity.UnifiedActivity, 0)

	for _, a := range sorted {
		key := chainKey{source: a.SourceType}
		if sameType {
			key.kind = a.ActivityType
		}
		if o, ok := current[key]; ok && a.StartTime.Sub(o.reach) <= maxGap {
			groups[o.idx] = append(groups[o.idx], a)
			if a.EndTime.After(o.reach) {
				o.reach = a.EndTime
			}
			continue
		}
		groups = append(groups, []activity.UnifiedActivity{a})
		current[key] = &open{idx: len(groups) - 1, reach: a.EndTime}
	}
	return groups
}
