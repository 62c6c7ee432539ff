package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

const sampleSnapshot = `
timezone: Europe/Berlin
categories:
  - {id: 1, name: Work, color: "#3366ff"}
tags:
  - {id: 7, name: client}
time_entries:
  - id: 10
    task: Quarterly report
    start_time: 2025-03-03T09:00:00Z
    end_time: 2025-03-03T10:00:00Z
    category_id: 1
    tags: [7]
  - task: Still running
    start_time: 2025-03-03T11:00:00Z
app_usage:
  - app_name: Firefox
    is_browser: true
    domain: go.dev
    start_time: 2025-03-03T09:30:00Z
    end_time: 2025-03-03T09:45:00Z
pomodoro_sessions:
  - task_name: Quarterly report
    session_type: focus
    planned_duration: 1500
    start_time: 2025-03-03T09:00:00Z
    end_time: 2025-03-03T09:25:00Z
    completed: true
completed_tasks:
  - {id: 1, title: Send invoice, completed_at: 2025-03-03T12:00:00Z}
goals:
  - {id: 1, name: Deep work, target_minutes: 240, period: daily}
`

func TestLoadSnapshot(t *testing.T) {
	s, loc, err := LoadSnapshot(strings.NewReader(sampleSnapshot))
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", loc.String())

	start := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	acts, err := activity.NewNormalizer(s.Sources(), s).Normalize(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, acts, 3)
	require.Equal(t, int64(10), acts[0].ID)
	require.Equal(t, "Work", acts[0].CategoryName)
	require.Equal(t, []activity.Tag{{ID: 7, Name: "client"}}, acts[0].Tags)

	tasks, err := s.ListCompletedTasks(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	goals, err := s.ListGoals(context.Background())
	require.NoError(t, err)
	require.Len(t, goals, 1)
	require.Equal(t, int64(240), goals[0].TargetMinutes)
}

func TestLoadSnapshotRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "bogus: 1\n",
		"bad session":    "pomodoro_sessions:\n  - {session_type: nap, start_time: 2025-03-03T09:00:00Z}\n",
		"bad timezone":   "timezone: Mars/Olympus\n",
		"malformed yaml": "time_entries: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadSnapshot(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadSnapshotEmpty(t *testing.T) {
	s, loc, err := LoadSnapshot(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
	require.NotNil(t, s)
}
