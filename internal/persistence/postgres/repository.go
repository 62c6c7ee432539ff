// Package postgres implements the timeline collaborators on top of pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
)

// Repository reads the native source tables and writes reconciliation output back into them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Sources returns the repository as the normalizer's read collaborators.
func (r *Repository) Sources() activity.Sources {
	return activity.Sources{TimeEntries: r, AppUsage: r, Pomodoro: r}
}

// Rows overlap [$1, $2) when they start before the window ends and either end after it
// starts or sit inside it with zero length. Open records are excluded.
const windowPredicate = `end_time IS NOT NULL AND start_time < $2 AND (end_time > $1 OR start_time >= $1)`

func tagsColumn(source activity.SourceType, alias string) string {
	return `COALESCE((SELECT array_agg(et.tag_id ORDER BY et.position, et.tag_id) FROM entity_tags et
            WHERE et.entity_type = '` + string(source) + `' AND et.entity_id = ` + alias + `.id), '{}')`
}

// ListTimeEntries implements activity.TimeEntrySource.
func (r *Repository) ListTimeEntries(ctx context.Context, start, end time.Time) ([]activity.TimeEntry, error) {
	query := `SELECT t.id, t.task, t.description, t.start_time, t.end_time, t.duration, t.category_id, ` + tagsColumn(activity.SourceManual, "t") + `
        FROM time_entries t WHERE ` + windowPredicate + ` ORDER BY t.id`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activity.TimeEntry, 0)
	for rows.Next() {
		var e activity.TimeEntry
		if err := rows.Scan(&e.ID, &e.Task, &e.Description, &e.StartTime, &e.EndTime, &e.Duration, &e.CategoryID, &e.TagIDs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAppUsage implements activity.AppUsageSource.
func (r *Repository) ListAppUsage(ctx context.Context, start, end time.Time) ([]activity.AppUsage, error) {
	query := `SELECT u.id, u.app_name, u.window_title, u.domain, u.url, u.is_browser, u.is_idle, u.start_time, u.end_time, u.duration, u.category_id, ` + tagsColumn(activity.SourceAutomatic, "u") + `
        FROM app_usage u WHERE ` + windowPredicate + ` ORDER BY u.id`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activity.AppUsage, 0)
	for rows.Next() {
		var u activity.AppUsage
		if err := rows.Scan(&u.ID, &u.AppName, &u.WindowTitle, &u.Domain, &u.URL, &u.IsBrowser, &u.IsIdle, &u.StartTime, &u.EndTime, &u.Duration, &u.CategoryID, &u.TagIDs); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListPomodoroSessions implements activity.PomodoroSource.
func (r *Repository) ListPomodoroSessions(ctx context.Context, start, end time.Time) ([]activity.PomodoroSession, error) {
	query := `SELECT p.id, p.task_name, p.session_type, p.planned_duration, p.start_time, p.end_time, p.completed, p.interrupted, ` + tagsColumn(activity.SourcePomodoro, "p") + `
        FROM pomodoro_sessions p WHERE ` + windowPredicate + ` ORDER BY p.id`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activity.PomodoroSession, 0)
	for rows.Next() {
		var s activity.PomodoroSession
		var sessionType string
		if err := rows.Scan(&s.ID, &s.TaskName, &sessionType, &s.PlannedDuration, &s.StartTime, &s.EndTime, &s.Completed, &s.Interrupted, &s.TagIDs); err != nil {
			return nil, err
		}
		s.SessionType = activity.SessionType(sessionType)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Category implements activity.Lookup.
func (r *Repository) Category(ctx context.Context, id int64) (*activity.Category, error) {
	var c activity.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, color FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Tag implements activity.Lookup.
func (r *Repository) Tag(ctx context.Context, id int64) (*activity.Tag, error) {
	var t activity.Tag
	err := r.pool.QueryRow(ctx, `SELECT id, name, color FROM tags WHERE id = $1`, id).Scan(&t.ID, &t.Name, &t.Color)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TagExists implements validation.TagChecker.
func (r *Repository) TagExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tags WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// ListCompletedTasks implements analytics.TaskSource.
func (r *Repository) ListCompletedTasks(ctx context.Context, start, end time.Time) ([]analytics.CompletedTask, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, completed_at FROM todos
         WHERE completed_at >= $1 AND completed_at < $2
         ORDER BY completed_at, id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]analytics.CompletedTask, 0)
	for rows.Next() {
		var task analytics.CompletedTask
		if err := rows.Scan(&task.ID, &task.Title, &task.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListGoals implements analytics.GoalSource. Only active goals are returned.
func (r *Repository) ListGoals(ctx context.Context) ([]analytics.Goal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, target_minutes, period, category_id FROM goals WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]analytics.Goal, 0)
	for rows.Next() {
		var g analytics.Goal
		var period string
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetMinutes, &period, &g.CategoryID); err != nil {
			return nil, err
		}
		g.Period = analytics.GoalPeriod(period)
		out = append(out, g)
	}
	return out, rows.Err()
}
