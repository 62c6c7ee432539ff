package activity

import "time"

// ToTimeEntry translates a manual activity back into its native record.
func ToTimeEntry(a UnifiedActivity) TimeEntry {
	end := a.EndTime
	dur := a.Duration
	e := TimeEntry{
		ID:         a.ID,
		Task:       a.Title,
		StartTime:  a.StartTime,
		EndTime:    &end,
		Duration:   &dur,
		CategoryID: a.CategoryID,
		TagIDs:     TagIDs(a.Tags),
	}
	if m, ok := a.Metadata.(ManualMetadata); ok {
		e.Description = m.Description
	}
	return e
}

// ToAppUsage translates an automatic activity back into its native record.
func ToAppUsage(a UnifiedActivity) AppUsage {
	end := a.EndTime
	dur := a.Duration
	u := AppUsage{
		ID:         a.ID,
		AppName:    a.Title,
		StartTime:  a.StartTime,
		EndTime:    &end,
		Duration:   &dur,
		CategoryID: a.CategoryID,
		TagIDs:     TagIDs(a.Tags),
	}
	switch m := a.Metadata.(type) {
	case AppMetadata:
		u.AppName = m.AppName
		u.WindowTitle = m.WindowTitle
		u.IsIdle = m.IsIdle
	case BrowserMetadata:
		u.AppName = m.AppName
		u.WindowTitle = m.WindowTitle
		u.Domain = m.Domain
		u.URL = m.URL
		u.IsIdle = m.IsIdle
		u.IsBrowser = true
	}
	return u
}

// ToPomodoro translates a pomodoro activity back into its native record.
func ToPomodoro(a UnifiedActivity) PomodoroSession {
	end := a.EndTime
	s := PomodoroSession{
		ID:          a.ID,
		TaskName:    a.Title,
		SessionType: SessionFocus,
		StartTime:   a.StartTime,
		EndTime:     &end,
		TagIDs:      TagIDs(a.Tags),
	}
	if m, ok := a.Metadata.(PomodoroMetadata); ok {
		s.SessionType = m.SessionType
		s.Completed = m.Completed
		s.Interrupted = m.Interrupted
		s.PlannedDuration = m.PlannedDuration
	}
	if s.PlannedDuration == 0 {
		s.PlannedDuration = int64(end.Sub(a.StartTime) / time.Second)
	}
	return s
}

// TagIDs extracts tag handles in order.
func TagIDs(tags []Tag) []int64 {
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return ids
}
