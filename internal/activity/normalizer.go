package activity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Normalizer assembles UnifiedActivity values from the three sources.
type Normalizer struct {
	sources Sources
	lookup  Lookup
}

// NewNormalizer constructs a Normalizer. Nil sources are skipped.
func NewNormalizer(sources Sources, lookup Lookup) *Normalizer {
	return &Normalizer{sources: sources, lookup: lookup}
}

// Normalize returns every closed activity in [start, end) ordered by start time.
func (n *Normalizer) Normalize(ctx context.Context, start, end time.Time) ([]UnifiedActivity, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("normalize: end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	out := make([]UnifiedActivity, 0)
	if n.sources.TimeEntries != nil {
		entries, err := n.sources.TimeEntries.ListTimeEntries(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("list time entries: %w", err)
		}
		for _, e := range entries {
			a, ok := FromTimeEntry(e)
			if !ok {
				continue
			}
			out = append(out, a)
		}
	}
	if n.sources.AppUsage != nil {
		usage, err := n.sources.AppUsage.ListAppUsage(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("list app usage: %w", err)
		}
		for _, u := range usage {
			a, ok := FromAppUsage(u)
			if !ok {
				continue
			}
			out = append(out, a)
		}
	}
	if n.sources.Pomodoro != nil {
		sessions, err := n.sources.Pomodoro.ListPomodoroSessions(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("list pomodoro sessions: %w", err)
		}
		for _, s := range sessions {
			a, ok := FromPomodoro(s)
			if !ok {
				continue
			}
			out = append(out, a)
		}
	}

	if err := n.resolve(ctx, out); err != nil {
		return nil, err
	}
	Sort(out)
	return out, nil
}

// Sort orders activities in place by start, source priority and id.
func Sort(activities []UnifiedActivity) {
	slices.SortStableFunc(activities, Compare)
}

func (n *Normalizer) resolve(ctx context.Context, activities []UnifiedActivity) error {
	if n.lookup == nil {
		return nil
	}
	categories := make(map[int64]*Category)
	tags := make(map[int64]*Tag)

	for i := range activities {
		a := &activities[i]
		if a.CategoryID != nil {
			cat, ok := categories[*a.CategoryID]
			if !ok {
				var err error
				cat, err = n.lookup.Category(ctx, *a.CategoryID)
				if err != nil {
					return fmt.Errorf("lookup category %d: %w", *a.CategoryID, err)
				}
				categories[*a.CategoryID] = cat
			}
			if cat != nil {
				a.CategoryName = cat.Name
				a.CategoryColor = cat.Color
			}
		}
		for j := range a.Tags {
			id := a.Tags[j].ID
			tag, ok := tags[id]
			if !ok {
				var err error
				tag, err = n.lookup.Tag(ctx, id)
				if err != nil {
					return fmt.Errorf("lookup tag %d: %w", id, err)
				}
				tags[id] = tag
			}
			if tag != nil {
				a.Tags[j] = *tag
			}
		}
	}
	return nil
}

// FromTimeEntry converts a manual entry. It returns false for entries still running.
func FromTimeEntry(e TimeEntry) (UnifiedActivity, bool) {
	if e.EndTime == nil {
		return UnifiedActivity{}, false
	}
	return build(e.ID, SourceManual, strings.TrimSpace(e.Task), e.StartTime, *e.EndTime, e.CategoryID, e.TagIDs,
		ManualMetadata{Description: e.Description}), true
}

// FromAppUsage converts an automatic observation. Idle observations are kept.
func FromAppUsage(u AppUsage) (UnifiedActivity, bool) {
	if u.EndTime == nil {
		return UnifiedActivity{}, false
	}
	var meta Metadata = AppMetadata{AppName: u.AppName, WindowTitle: u.WindowTitle, IsIdle: u.IsIdle}
	if u.IsBrowser {
		meta = BrowserMetadata{AppName: u.AppName, WindowTitle: u.WindowTitle, Domain: u.Domain, URL: u.URL, IsIdle: u.IsIdle}
	}
	return build(u.ID, SourceAutomatic, strings.TrimSpace(u.AppName), u.StartTime, *u.EndTime, u.CategoryID, u.TagIDs, meta), true
}

// FromPomodoro converts a pomodoro session. Sessions without a task are titled "Focus Session" or "Break".
func FromPomodoro(s PomodoroSession) (UnifiedActivity, bool) {
	if s.EndTime == nil {
		return UnifiedActivity{}, false
	}
	meta := PomodoroMetadata{
		SessionType:     s.SessionType,
		Completed:       s.Completed,
		Interrupted:     s.Interrupted,
		PlannedDuration: s.PlannedDuration,
	}
	if meta.SessionType == "" {
		meta.SessionType = SessionFocus
	}
	title := strings.TrimSpace(s.TaskName)
	if title == "" {
		title = "Focus Session"
		if meta.SessionType != SessionFocus {
			title = "Break"
		}
	}
	return build(s.ID, SourcePomodoro, title, s.StartTime, *s.EndTime, nil, s.TagIDs, meta), true
}

func build(id int64, source SourceType, title string, start, end time.Time, categoryID *int64, tagIDs []int64, meta Metadata) UnifiedActivity {
	tags := make([]Tag, 0, len(tagIDs))
	seen := make(map[int64]struct{}, len(tagIDs))
	for _, tid := range tagIDs {
		if _, dup := seen[tid]; dup {
			continue
		}
		seen[tid] = struct{}{}
		tags = append(tags, Tag{ID: tid})
	}
	fields := EditableFieldsFor(source)
	return UnifiedActivity{
		ID:             id,
		SourceType:     source,
		ActivityType:   meta.Kind(),
		Title:          title,
		StartTime:      start,
		EndTime:        end,
		Duration:       int64(end.Sub(start) / time.Second),
		CategoryID:     categoryID,
		Tags:           tags,
		Metadata:       meta,
		IsEditable:     len(fields) > 0,
		EditableFields: fields,
	}
}
