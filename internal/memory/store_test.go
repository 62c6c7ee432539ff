package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func TestListingFiltersWindowAndRunningRecords(t *testing.T) {
	s := NewStore()
	s.AddTimeEntry(activity.TimeEntry{Task: "inside", StartTime: t0, EndTime: ptr(t0.Add(time.Hour))})
	s.AddTimeEntry(activity.TimeEntry{Task: "running", StartTime: t0})
	s.AddTimeEntry(activity.TimeEntry{Task: "before", StartTime: t0.Add(-2 * time.Hour), EndTime: ptr(t0.Add(-time.Hour))})
	s.AddTimeEntry(activity.TimeEntry{Task: "straddles", StartTime: t0.Add(-30 * time.Minute), EndTime: ptr(t0.Add(10 * time.Minute))})
	s.AddAppUsage(activity.AppUsage{AppName: "Editor", StartTime: t0, EndTime: ptr(t0)})

	entries, err := s.ListTimeEntries(context.Background(), t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "inside", entries[0].Task)
	require.Equal(t, "straddles", entries[1].Task)

	usage, err := s.ListAppUsage(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, usage, 1)
}

func TestNormalizeThenValidateHasNoHardErrors(t *testing.T) {
	s := NewStore()
	s.PutCategory(activity.Category{ID: 1, Name: "Work", Color: "#00f"})
	s.PutTag(activity.Tag{ID: 3, Name: "client"})
	s.AddTimeEntry(activity.TimeEntry{Task: "Spec review", StartTime: t0, EndTime: ptr(t0.Add(40 * time.Minute)),
		Duration: ptr(int64(999)), CategoryID: ptr(int64(1)), TagIDs: []int64{3, 3, 9}})
	s.AddAppUsage(activity.AppUsage{AppName: "Firefox", IsBrowser: true, Domain: "go.dev", StartTime: t0, EndTime: ptr(t0.Add(5 * time.Minute))})
	s.AddAppUsage(activity.AppUsage{AppName: "Desktop", IsIdle: true, StartTime: t0.Add(time.Hour), EndTime: ptr(t0.Add(time.Hour))})
	s.AddPomodoroSession(activity.PomodoroSession{SessionType: activity.SessionFocus, StartTime: t0, EndTime: ptr(t0.Add(25 * time.Minute)), Completed: true})

	acts, err := activity.NewNormalizer(s.Sources(), s).Normalize(context.Background(), t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, acts, 4)

	require.Equal(t, activity.SourceManual, acts[0].SourceType)
	require.Equal(t, activity.SourcePomodoro, acts[1].SourceType)
	require.Equal(t, "Focus Session", acts[1].Title)
	require.Equal(t, activity.SourceAutomatic, acts[2].SourceType)
	require.Equal(t, activity.TypeBrowser, acts[2].ActivityType)
	require.True(t, acts[3].Idle())

	require.Equal(t, "Work", acts[0].CategoryName)
	require.Equal(t, int64(2400), acts[0].Duration)
	require.Equal(t, []activity.Tag{{ID: 3, Name: "client"}, {ID: 9}}, acts[0].Tags)

	v := validation.NewValidator(s)
	for _, r := range v.ValidateAll(context.Background(), acts, false) {
		require.True(t, r.Result.IsValid, "%s: %+v", r.Key, r.Result.Errors)
	}
	report := v.Validate(context.Background(), acts[0])
	require.Len(t, report.Warnings, 1)
	require.Equal(t, validation.CodeDeletedTag, report.Warnings[0].Code)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	s := NewStore()
	id := s.AddTimeEntry(activity.TimeEntry{Task: "keep me", StartTime: t0, EndTime: ptr(t0.Add(time.Hour))})
	a, ok := activity.FromTimeEntry(activity.TimeEntry{ID: id, Task: "keep me", StartTime: t0, EndTime: ptr(t0.Add(time.Hour))})
	require.True(t, ok)
	ghost := a
	ghost.ID = 42

	err := s.Apply(context.Background(), reconcile.CommandRecord{
		ID: uuid.New(),
		Changes: []reconcile.Resolved{
			{Action: reconcile.ActionDelete, Activity: a},
			{Action: reconcile.ActionUpdate, Activity: ghost},
		},
	})
	require.ErrorIs(t, err, ErrUnknownRecord)

	entries, err := s.ListTimeEntries(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Empty(t, s.Commands())
}

func TestApplyAssignsIDsToCreatedParts(t *testing.T) {
	s := NewStore()
	s.AddTimeEntry(activity.TimeEntry{ID: 10, Task: "Long", StartTime: t0, EndTime: ptr(t0.Add(2 * time.Hour))})
	orig, _ := activity.FromTimeEntry(activity.TimeEntry{ID: 10, Task: "Long", StartTime: t0, EndTime: ptr(t0.Add(2 * time.Hour))})

	parts, err := reconcile.NewEngine(nil).Split(orig, []time.Time{t0.Add(time.Hour)})
	require.NoError(t, err)

	changes := []reconcile.Resolved{{Action: reconcile.ActionDelete, Activity: orig}}
	for _, p := range parts {
		changes = append(changes, reconcile.Resolved{Action: reconcile.ActionCreate, Activity: p})
	}
	require.NoError(t, s.Apply(context.Background(), reconcile.CommandRecord{ID: uuid.New(), Changes: changes}))

	entries, err := s.ListTimeEntries(context.Background(), t0, t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(11), entries[0].ID)
	require.Equal(t, int64(12), entries[1].ID)
	require.Equal(t, "Long (Part 1)", entries[0].Task)
	require.Equal(t, int64(3600), *entries[1].Duration)
	require.Len(t, s.Commands(), 1)
}

func TestTasksAndGoals(t *testing.T) {
	s := NewStore()
	s.AddCompletedTask(analytics.CompletedTask{ID: 1, CompletedAt: t0})
	s.AddCompletedTask(analytics.CompletedTask{ID: 2, CompletedAt: t0.Add(48 * time.Hour)})
	s.AddGoal(analytics.Goal{ID: 1, Name: "Deep work", TargetMinutes: 120, Period: analytics.GoalDaily})

	tasks, err := s.ListCompletedTasks(context.Background(), t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	goals, err := s.ListGoals(context.Background())
	require.NoError(t, err)
	require.Len(t, goals, 1)

	ok, err := s.TagExists(context.Background(), 5)
	require.NoError(t, err)
	require.False(t, ok)
}
