package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

var base = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func at(hh, mm int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hh, mm, 0, 0, time.UTC)
}

func manual(id int64, title string, start, end time.Time, tags ...int64) activity.UnifiedActivity {
	e := end
	a, _ := activity.FromTimeEntry(activity.TimeEntry{ID: id, Task: title, StartTime: start, EndTime: &e, TagIDs: tags})
	return a
}

func app(id int64, name string, start, end time.Time, browser bool) activity.UnifiedActivity {
	e := end
	a, _ := activity.FromAppUsage(activity.AppUsage{ID: id, AppName: name, IsBrowser: browser, StartTime: start, EndTime: &e})
	return a
}

func focus(id int64, task string, start, end time.Time) activity.UnifiedActivity {
	e := end
	a, _ := activity.FromPomodoro(activity.PomodoroSession{ID: id, TaskName: task, SessionType: activity.SessionFocus, StartTime: start, EndTime: &e, Completed: true})
	return a
}

func TestMergeSingleIsIdentity(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "Write report", at(9, 0), at(10, 0), 4)

	merged, err := e.Merge(context.Background(), []activity.UnifiedActivity{a}, StrategyLatest)
	require.NoError(t, err)
	require.Equal(t, a, merged)
}

func TestMergeRejectsEmptyAndMixed(t *testing.T) {
	e := NewEngine(nil)

	_, err := e.Merge(context.Background(), nil, StrategyLongest)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = e.Merge(context.Background(), []activity.UnifiedActivity{
		manual(1, "A", at(9, 0), at(10, 0)),
		focus(1, "A", at(9, 30), at(10, 30)),
	}, StrategyLongest)
	require.ErrorIs(t, err, ErrMixedSources)
}

func TestMergeSpansUnionAndUsesStrategyBase(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "Short", at(9, 0), at(9, 20), 1, 2)
	b := manual(2, "Long", at(9, 10), at(10, 0), 2, 3)
	c := manual(3, "Late", at(10, 30), at(10, 40))
	inputs := []activity.UnifiedActivity{c, a, b}

	longest, err := e.Merge(context.Background(), inputs, StrategyLongest)
	require.NoError(t, err)
	require.Equal(t, int64(2), longest.ID)
	require.Equal(t, "Long", longest.Title)
	require.Equal(t, at(9, 0), longest.StartTime)
	require.Equal(t, at(10, 40), longest.EndTime)
	require.Equal(t, int64(100*60), longest.Duration)
	require.Equal(t, []int64{1, 2, 3}, activity.TagIDs(longest.Tags))

	earliest, err := e.Merge(context.Background(), inputs, StrategyEarliest)
	require.NoError(t, err)
	require.Equal(t, int64(1), earliest.ID)

	latest, err := e.Merge(context.Background(), inputs, StrategyLatest)
	require.NoError(t, err)
	require.Equal(t, int64(3), latest.ID)

	_, err = e.Merge(context.Background(), inputs, Strategy("random"))
	require.ErrorIs(t, err, ErrUnsupportedResolution)
}

func TestMergeBoundsAreAssociative(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()
	a := manual(1, "A", at(9, 0), at(9, 30))
	b := manual(2, "B", at(11, 0), at(11, 15))
	c := manual(3, "C", at(8, 0), at(8, 10))

	ab, err := e.Merge(ctx, []activity.UnifiedActivity{a, b}, StrategyLongest)
	require.NoError(t, err)
	left, err := e.Merge(ctx, []activity.UnifiedActivity{ab, c}, StrategyLongest)
	require.NoError(t, err)

	bc, err := e.Merge(ctx, []activity.UnifiedActivity{b, c}, StrategyLongest)
	require.NoError(t, err)
	right, err := e.Merge(ctx, []activity.UnifiedActivity{a, bc}, StrategyLongest)
	require.NoError(t, err)

	require.Equal(t, left.Interval(), right.Interval())
	require.Equal(t, at(8, 0), left.StartTime)
	require.Equal(t, at(11, 15), left.EndTime)
}

func TestMergeRejectsInvalidResult(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "", at(9, 0), at(9, 30))
	b := manual(2, "", at(9, 30), at(10, 0))

	_, err := e.Merge(context.Background(), []activity.UnifiedActivity{a, b}, StrategyLongest)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, validation.CodeMissingTitle, verr.Errors[0].Code)
}

func TestSplitProducesContiguousParts(t *testing.T) {
	e := NewEngine(nil)
	a := manual(7, "Deep work", at(9, 0), at(12, 0), 5)

	parts, err := e.Split(a, []time.Time{at(11, 0), at(8, 0), at(10, 0), at(10, 0), at(12, 0)})
	require.NoError(t, err)
	require.Len(t, parts, 3)

	var total int64
	for i, p := range parts {
		require.True(t, IsTemporary(p.ID))
		require.Equal(t, activity.SourceManual, p.SourceType)
		require.Equal(t, []int64{5}, activity.TagIDs(p.Tags))
		total += p.Duration
		if i > 0 {
			require.Equal(t, parts[i-1].EndTime, p.StartTime)
		}
	}
	require.Equal(t, "Deep work (Part 1)", parts[0].Title)
	require.Equal(t, "Deep work (Part 3)", parts[2].Title)
	require.Equal(t, a.StartTime, parts[0].StartTime)
	require.Equal(t, a.EndTime, parts[2].EndTime)
	require.Equal(t, a.Duration, total)
	require.NotEqual(t, parts[0].ID, parts[1].ID)
}

func TestSplitWithoutInteriorPointsReturnsOriginal(t *testing.T) {
	e := NewEngine(nil)
	a := manual(7, "Deep work", at(9, 0), at(12, 0))

	parts, err := e.Split(a, []time.Time{at(9, 0), at(13, 0)})
	require.NoError(t, err)
	require.Equal(t, []activity.UnifiedActivity{a}, parts)
}

func TestSplitThenMergeEarliestRecoversBounds(t *testing.T) {
	e := NewEngine(nil)
	a := manual(7, "Deep work", at(9, 0), at(12, 0))

	parts, err := e.Split(a, []time.Time{at(10, 0), at(11, 30)})
	require.NoError(t, err)

	merged, err := e.Merge(context.Background(), parts, StrategyEarliest)
	require.NoError(t, err)
	require.Equal(t, a.Interval(), merged.Interval())
	require.Equal(t, a.Duration, merged.Duration)
}

func TestResolveOverlapAdjustTime(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "A", at(9, 0), at(10, 0))
	b := manual(2, "B", at(9, 30), at(10, 30))
	c := conflict.Conflict{ID: "overlap|manual:1|manual:2", Type: conflict.TypeOverlap, Activities: []activity.UnifiedActivity{b, a}}

	out, err := e.ResolveConflict(context.Background(), c, ResolutionAdjustTime)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, ActionUpdate, out[0].Action)
	require.Equal(t, at(9, 0), out[0].Activity.StartTime)
	require.Equal(t, at(9, 30), out[0].Activity.EndTime)
	require.Equal(t, int64(1800), out[0].Activity.Duration)
	require.Equal(t, ActionKeep, out[1].Action)
	require.Equal(t, b, out[1].Activity)
}

func TestResolveOverlapMergeAndDeleteOne(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "A", at(9, 0), at(10, 0))
	b := manual(2, "B", at(9, 30), at(11, 0))
	c := conflict.Conflict{Type: conflict.TypeOverlap, Activities: []activity.UnifiedActivity{a, b}}

	merged, err := e.ResolveConflict(context.Background(), c, ResolutionMerge)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.Equal(t, ActionDelete, merged[0].Action)
	require.Equal(t, int64(1), merged[0].Activity.ID)
	require.Equal(t, ActionUpdate, merged[1].Action)
	require.Equal(t, int64(2), merged[1].Activity.ID)
	require.Equal(t, at(9, 0), merged[1].Activity.StartTime)

	deleted, err := e.ResolveConflict(context.Background(), c, ResolutionDeleteOne)
	require.NoError(t, err)
	require.Equal(t, []Resolved{{Action: ActionKeep, Activity: a}, {Action: ActionDelete, Activity: b}}, deleted)
}

func TestResolveOverlapSplitDropsCoveredPieces(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "Long", at(9, 0), at(12, 0))
	b := manual(2, "Meeting", at(10, 0), at(11, 0))
	c := conflict.Conflict{Type: conflict.TypeOverlap, Activities: []activity.UnifiedActivity{a, b}}

	out, err := e.ResolveConflict(context.Background(), c, ResolutionSplit)
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.Equal(t, ActionDelete, out[0].Action)
	require.Equal(t, ActionCreate, out[1].Action)
	require.Equal(t, at(9, 0), out[1].Activity.StartTime)
	require.Equal(t, at(10, 0), out[1].Activity.EndTime)
	require.Equal(t, ActionCreate, out[2].Action)
	require.Equal(t, at(11, 0), out[2].Activity.StartTime)
	require.Equal(t, at(12, 0), out[2].Activity.EndTime)
	require.Equal(t, Resolved{Action: ActionKeep, Activity: b}, out[3])
}

func TestResolveDuplicateKeepsAllForTimeResolutions(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "Standup", at(9, 0), at(9, 15))
	b := manual(2, "Standup", at(9, 0), at(9, 15))
	c := conflict.Conflict{Type: conflict.TypeDuplicate, Activities: []activity.UnifiedActivity{a, b}}

	for _, r := range []Resolution{ResolutionAdjustTime, ResolutionSplit} {
		out, err := e.ResolveConflict(context.Background(), c, r)
		require.NoError(t, err)
		require.Equal(t, keepAll([]activity.UnifiedActivity{a, b}), out)
	}

	_, err := e.ResolveConflict(context.Background(), c, Resolution("shrug"))
	require.ErrorIs(t, err, ErrUnsupportedResolution)
}

func TestResolveGapIsNoOp(t *testing.T) {
	e := NewEngine(nil)
	a := manual(1, "A", at(9, 0), at(9, 15))
	b := manual(2, "B", at(10, 0), at(10, 15))
	c := conflict.Conflict{Type: conflict.TypeGap, Activities: []activity.UnifiedActivity{a, b}}

	out, err := e.ResolveConflict(context.Background(), c, ResolutionMerge)
	require.NoError(t, err)
	require.Equal(t, keepAll([]activity.UnifiedActivity{a, b}), out)
}

func TestSuggestMergeConfidence(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	a := manual(1, "Email", at(9, 0), at(9, 30))
	b := manual(2, "Email", at(9, 30).Add(30*time.Second), at(10, 0))
	s := e.SuggestMerge(ctx, []activity.UnifiedActivity{a, b})
	require.True(t, s.CanMerge)
	require.Equal(t, 100, s.Confidence)
	require.NotNil(t, s.MergedActivity)
	require.Equal(t, at(9, 0), s.MergedActivity.StartTime)

	c := manual(3, "Other", at(9, 40), at(10, 0))
	s = e.SuggestMerge(ctx, []activity.UnifiedActivity{a, c})
	require.True(t, s.CanMerge)
	require.Equal(t, 50, s.Confidence)

	d := manual(4, "Other", at(11, 0), at(11, 30))
	s = e.SuggestMerge(ctx, []activity.UnifiedActivity{a, d})
	require.False(t, s.CanMerge)
	require.Equal(t, 20, s.Confidence)
	require.Nil(t, s.MergedActivity)

	s = e.SuggestMerge(ctx, []activity.UnifiedActivity{a})
	require.False(t, s.CanMerge)

	s = e.SuggestMerge(ctx, []activity.UnifiedActivity{a, focus(9, "Email", at(9, 30), at(10, 0))})
	require.False(t, s.CanMerge)
	require.Zero(t, s.Confidence)
}

func TestApplyAutoMerge(t *testing.T) {
	e := NewEngine(nil)
	acts := []activity.UnifiedActivity{
		app(1, "Editor", at(9, 0), at(9, 10), false),
		app(2, "Browser", at(9, 10).Add(20*time.Second), at(9, 20), true),
		manual(3, "Notes", at(9, 5), at(9, 15)),
		app(4, "Editor", at(10, 0), at(10, 5), false),
	}

	out, err := e.ApplyAutoMerge(context.Background(), acts, 60)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, at(9, 0), out[0].StartTime)
	require.Equal(t, at(9, 20), out[0].EndTime)
	require.Equal(t, activity.SourceAutomatic, out[0].SourceType)
	require.Equal(t, int64(3), out[1].ID)
	require.Equal(t, int64(4), out[2].ID)
}

func TestFindMergeableGroupsNeverMixesTypes(t *testing.T) {
	e := NewEngine(nil)
	acts := []activity.UnifiedActivity{
		app(1, "Editor", at(9, 0), at(9, 10), false),
		app(2, "Browser", at(9, 10), at(9, 20), true),
		app(3, "Editor", at(9, 11), at(9, 30), false),
		app(4, "Browser", at(9, 40), at(9, 45), true),
	}

	groups := e.FindMergeableGroups(acts, 120)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	for _, g := range groups {
		for _, a := range g {
			require.Equal(t, g[0].ActivityType, a.ActivityType)
			require.Equal(t, g[0].SourceType, a.SourceType)
		}
	}
	require.Equal(t, []int64{1, 3}, []int64{groups[0][0].ID, groups[0][1].ID})
}

func TestParseHelpers(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	require.Equal(t, StrategyLongest, s)

	_, err = ParseStrategy("median")
	require.ErrorIs(t, err, ErrUnsupportedResolution)

	r, err := ParseResolution("delete_one")
	require.NoError(t, err)
	require.Equal(t, ResolutionDeleteOne, r)

	_, err = ParseResolution("ignore")
	require.ErrorIs(t, err, ErrUnsupportedResolution)
}
