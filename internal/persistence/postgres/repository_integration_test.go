//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/events"
	"github.com/osama1998H/lume-sub000/internal/interval"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
	"github.com/osama1998H/lume-sub000/internal/testsupport"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

var day = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func TestRepositoryReadsSourcesInWindow(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)

	categoryID := exec(t, pool, `INSERT INTO categories (name, color) VALUES ('Deep Work', '#336699') RETURNING id`)
	tagID := exec(t, pool, `INSERT INTO tags (name) VALUES ('client') RETURNING id`)

	entryID := exec(t, pool, `INSERT INTO time_entries (task, start_time, end_time, duration, category_id) VALUES ('Report', $1, $2, 1800, $3) RETURNING id`,
		day, day.Add(30*time.Minute), categoryID)
	exec(t, pool, `INSERT INTO time_entries (task, start_time) VALUES ('Running', $1) RETURNING id`, day)
	exec(t, pool, `INSERT INTO time_entries (task, start_time, end_time) VALUES ('Yesterday', $1, $2) RETURNING id`,
		day.Add(-24*time.Hour), day.Add(-23*time.Hour))
	exec(t, pool, `INSERT INTO entity_tags (entity_type, entity_id, tag_id) VALUES ('manual', $1, $2) RETURNING entity_id`, entryID, tagID)
	exec(t, pool, `INSERT INTO app_usage (app_name, domain, url, is_browser, start_time, end_time) VALUES ('Firefox', 'github.com', 'https://github.com', TRUE, $1, $2) RETURNING id`,
		day.Add(10*time.Minute), day.Add(20*time.Minute))
	exec(t, pool, `INSERT INTO pomodoro_sessions (session_type, planned_duration, start_time, end_time, completed) VALUES ('focus', 1500, $1, $2, TRUE) RETURNING id`,
		day, day.Add(25*time.Minute))

	entries, err := repo.ListTimeEntries(ctx, day, day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1, "open and out-of-window entries are skipped")
	require.Equal(t, []int64{tagID}, entries[0].TagIDs)
	require.Equal(t, categoryID, *entries[0].CategoryID)

	normalizer := activity.NewNormalizer(repo.Sources(), repo)
	acts, err := normalizer.Normalize(ctx, day, day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, acts, 3)
	require.Equal(t, activity.SourceManual, acts[0].SourceType)
	require.Equal(t, "Deep Work", acts[0].CategoryName)
	require.Equal(t, "client", acts[0].Tags[0].Name)
	require.Equal(t, activity.TypePomodoroFocus, acts[1].ActivityType)
	require.Equal(t, activity.TypeBrowser, acts[2].ActivityType)

	ok, err := repo.TagExists(ctx, tagID)
	require.NoError(t, err)
	require.True(t, ok)
	missing, err := repo.Category(ctx, 9999)
	require.NoError(t, err)
	require.Nil(t, missing)

	exec(t, pool, `INSERT INTO todos (title, completed_at) VALUES ('Ship', $1) RETURNING id`, day.Add(time.Hour))
	exec(t, pool, `INSERT INTO goals (name, target_minutes, period) VALUES ('Daily', 240, 'daily') RETURNING id`)
	exec(t, pool, `INSERT INTO goals (name, target_minutes, period, active) VALUES ('Old', 60, 'weekly', FALSE) RETURNING id`)

	tasks, err := repo.ListCompletedTasks(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	goals, err := repo.ListGoals(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	require.Equal(t, analytics.GoalDaily, goals[0].Period)
}

func TestRepositoryApplyWritesRowsAndOutbox(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)

	a := exec(t, pool, `INSERT INTO time_entries (task, start_time, end_time, duration) VALUES ('Report', $1, $2, 1800) RETURNING id`,
		day, day.Add(30*time.Minute))
	b := exec(t, pool, `INSERT INTO time_entries (task, start_time, end_time, duration) VALUES ('Report', $1, $2, 3540) RETURNING id`,
		day.Add(31*time.Minute), day.Add(90*time.Minute))

	v := validation.NewValidator(repo)
	commander := reconcile.NewCommander(activity.NewNormalizer(repo.Sources(), repo), reconcile.NewEngine(v), v, repo)

	res, err := commander.Merge(ctx, reconcile.MergeCommand{
		Window: interval.Interval{Start: day.Add(-time.Hour), End: day.Add(3 * time.Hour)},
		Refs: []activity.Key{
			{ID: a, SourceType: activity.SourceManual},
			{ID: b, SourceType: activity.SourceManual},
		},
	})
	require.NoError(t, err)
	require.True(t, res.Applied)

	entries, err := repo.ListTimeEntries(ctx, day.Add(-time.Hour), day.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, b, entries[0].ID, "longest input is the merge base")
	require.True(t, entries[0].StartTime.Equal(day))
	require.True(t, entries[0].EndTime.Equal(day.Add(90*time.Minute)))

	var reconciled, changed int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type = $1 AND aggregate_id = $2`,
		events.TypeTimelineReconciled, res.CommandID.String()).Scan(&reconciled))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type = $1 AND partition_key = $2`,
		events.TypeActivityChanged, res.CommandID.String()).Scan(&changed))
	require.Equal(t, 1, reconciled)
	require.Equal(t, 2, changed, "one update and one delete")
}

func TestRepositoryApplyRollsBackOnMissingRecord(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := NewRepository(pool)

	end := day.Add(time.Hour)
	err := repo.Apply(ctx, reconcile.CommandRecord{
		ID:       uuid.New(),
		Kind:     reconcile.CommandSplit,
		Window:   interval.Interval{Start: day, End: end},
		IssuedAt: day,
		Changes: []reconcile.Resolved{
			{Action: reconcile.ActionCreate, Activity: activity.UnifiedActivity{
				ID: -1, SourceType: activity.SourceManual, ActivityType: activity.TypeTimeEntry,
				Title: "Part", StartTime: day, EndTime: end, Duration: 3600,
			}},
			{Action: reconcile.ActionDelete, Activity: activity.UnifiedActivity{ID: 404, SourceType: activity.SourceManual}},
		},
	})
	require.ErrorIs(t, err, reconcile.ErrActivityNotFound)

	var rows, outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM time_entries`).Scan(&rows))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&outboxRows))
	require.Zero(t, rows)
	require.Zero(t, outboxRows)
}

func exec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pool.QueryRow(context.Background(), sql, args...).Scan(&id))
	return id
}
