package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/events"
	"github.com/osama1998H/lume-sub000/internal/outbox"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
)

// Apply implements reconcile.Writer. Native rows and the outbox events describing them
// are written in one transaction.
func (r *Repository) Apply(ctx context.Context, record reconcile.CommandRecord) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	commandID := record.ID.String()
	changed := 0
	for _, ch := range record.Changes {
		if ch.Action == reconcile.ActionKeep {
			continue
		}
		a, applyErr := applyChange(ctx, tx, ch)
		if applyErr != nil {
			err = fmt.Errorf("command %s: %w", commandID, applyErr)
			return err
		}
		changed++

		if err = outbox.Enqueue(ctx, tx, outbox.Event{
			AggregateType: "activity",
			AggregateID:   a.Key().String(),
			EventType:     events.TypeActivityChanged,
			PartitionKey:  commandID,
			DedupeKey:     fmt.Sprintf("%s:%s:%s", commandID, ch.Action, a.Key()),
			Payload: events.ActivityChanged{
				CommandID:    commandID,
				Action:       string(ch.Action),
				SourceType:   string(a.SourceType),
				ActivityID:   a.ID,
				ActivityType: string(a.ActivityType),
				Title:        a.Title,
				StartTime:    a.StartTime,
				EndTime:      a.EndTime,
			},
		}); err != nil {
			return err
		}
	}

	if err = outbox.Enqueue(ctx, tx, outbox.Event{
		AggregateType: "command",
		AggregateID:   commandID,
		EventType:     events.TypeTimelineReconciled,
		PartitionKey:  commandID,
		DedupeKey:     commandID + ":" + events.TypeTimelineReconciled,
		Payload: events.TimelineReconciled{
			CommandID:   commandID,
			Kind:        string(record.Kind),
			Resolution:  string(record.Resolution),
			WindowStart: record.Window.Start,
			WindowEnd:   record.Window.End,
			IssuedAt:    record.IssuedAt,
			Changes:     changed,
		},
	}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// applyChange writes one change and returns the activity as stored, with its real id
// when the change was a create.
func applyChange(ctx context.Context, tx pgx.Tx, ch reconcile.Resolved) (activity.UnifiedActivity, error) {
	a := ch.Activity
	switch ch.Action {
	case reconcile.ActionDelete:
		return a, deleteActivity(ctx, tx, a.Key())
	case reconcile.ActionCreate:
		id, err := insertActivity(ctx, tx, a)
		if err != nil {
			return a, err
		}
		a.ID = id
	case reconcile.ActionUpdate:
		if err := updateActivity(ctx, tx, a); err != nil {
			return a, err
		}
	default:
		return a, fmt.Errorf("unknown action %q", ch.Action)
	}
	return a, replaceTags(ctx, tx, a.Key(), activity.TagIDs(a.Tags))
}

func insertActivity(ctx context.Context, tx pgx.Tx, a activity.UnifiedActivity) (int64, error) {
	var id int64
	var err error
	switch a.SourceType {
	case activity.SourceManual:
		e := activity.ToTimeEntry(a)
		err = tx.QueryRow(ctx,
			`INSERT INTO time_entries (task, description, start_time, end_time, duration, category_id)
             VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			e.Task, e.Description, e.StartTime, e.EndTime, e.Duration, e.CategoryID,
		).Scan(&id)
	case activity.SourceAutomatic:
		u := activity.ToAppUsage(a)
		err = tx.QueryRow(ctx,
			`INSERT INTO app_usage (app_name, window_title, domain, url, is_browser, is_idle, start_time, end_time, duration, category_id)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			u.AppName, u.WindowTitle, u.Domain, u.URL, u.IsBrowser, u.IsIdle, u.StartTime, u.EndTime, u.Duration, u.CategoryID,
		).Scan(&id)
	case activity.SourcePomodoro:
		p := activity.ToPomodoro(a)
		err = tx.QueryRow(ctx,
			`INSERT INTO pomodoro_sessions (task_name, session_type, planned_duration, start_time, end_time, completed, interrupted)
             VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			p.TaskName, string(p.SessionType), p.PlannedDuration, p.StartTime, p.EndTime, p.Completed, p.Interrupted,
		).Scan(&id)
	default:
		return 0, fmt.Errorf("unknown source type %q", a.SourceType)
	}
	return id, err
}

func updateActivity(ctx context.Context, tx pgx.Tx, a activity.UnifiedActivity) error {
	var (
		stmt string
		args []any
	)
	switch a.SourceType {
	case activity.SourceManual:
		e := activity.ToTimeEntry(a)
		stmt = `UPDATE time_entries
            SET task = $2, description = $3, start_time = $4, end_time = $5, duration = $6, category_id = $7, updated_at = NOW()
            WHERE id = $1`
		args = []any{e.ID, e.Task, e.Description, e.StartTime, e.EndTime, e.Duration, e.CategoryID}
	case activity.SourceAutomatic:
		u := activity.ToAppUsage(a)
		stmt = `UPDATE app_usage
            SET app_name = $2, window_title = $3, domain = $4, url = $5, is_browser = $6, is_idle = $7,
                start_time = $8, end_time = $9, duration = $10, category_id = $11, updated_at = NOW()
            WHERE id = $1`
		args = []any{u.ID, u.AppName, u.WindowTitle, u.Domain, u.URL, u.IsBrowser, u.IsIdle, u.StartTime, u.EndTime, u.Duration, u.CategoryID}
	case activity.SourcePomodoro:
		p := activity.ToPomodoro(a)
		stmt = `UPDATE pomodoro_sessions
            SET task_name = $2, session_type = $3, planned_duration = $4, start_time = $5, end_time = $6,
                completed = $7, interrupted = $8, updated_at = NOW()
            WHERE id = $1`
		args = []any{p.ID, p.TaskName, string(p.SessionType), p.PlannedDuration, p.StartTime, p.EndTime, p.Completed, p.Interrupted}
	default:
		return fmt.Errorf("unknown source type %q", a.SourceType)
	}

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", a.Key(), reconcile.ErrActivityNotFound)
	}
	return nil
}

func deleteActivity(ctx context.Context, tx pgx.Tx, key activity.Key) error {
	table, err := tableFor(key.SourceType)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, key.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", key, reconcile.ErrActivityNotFound)
	}
	_, err = tx.Exec(ctx, `DELETE FROM entity_tags WHERE entity_type = $1 AND entity_id = $2`, string(key.SourceType), key.ID)
	return err
}

func replaceTags(ctx context.Context, tx pgx.Tx, key activity.Key, tagIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM entity_tags WHERE entity_type = $1 AND entity_id = $2`, string(key.SourceType), key.ID); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, tagID := range tagIDs {
		batch.Queue(`INSERT INTO entity_tags (entity_type, entity_id, tag_id, position) VALUES ($1,$2,$3,$4)
            ON CONFLICT DO NOTHING`, string(key.SourceType), key.ID, tagID, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func tableFor(source activity.SourceType) (string, error) {
	switch source {
	case activity.SourceManual:
		return "time_entries", nil
	case activity.SourceAutomatic:
		return "app_usage", nil
	case activity.SourcePomodoro:
		return "pomodoro_sessions", nil
	}
	return "", fmt.Errorf("unknown source type %q", source)
}
