package memory

import (
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
)

// SnapshotFile is the YAML layout loaded by LoadSnapshot. Timestamps are RFC3339.
type SnapshotFile struct {
	Timezone         string                    `yaml:"timezone"`
	Categories       []labelRecord             `yaml:"categories"`
	Tags             []labelRecord             `yaml:"tags"`
	TimeEntries      []timeEntryRecord         `yaml:"time_entries"`
	AppUsage         []appUsageRecord          `yaml:"app_usage"`
	PomodoroSessions []pomodoroRecord          `yaml:"pomodoro_sessions"`
	CompletedTasks   []analytics.CompletedTask `yaml:"completed_tasks"`
	Goals            []analytics.Goal          `yaml:"goals"`
}

type labelRecord struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type timeEntryRecord struct {
	ID          int64      `yaml:"id"`
	Task        string     `yaml:"task"`
	Description string     `yaml:"description"`
	StartTime   time.Time  `yaml:"start_time"`
	EndTime     *time.Time `yaml:"end_time"`
	Duration    *int64     `yaml:"duration"`
	CategoryID  *int64     `yaml:"category_id"`
	Tags        []int64    `yaml:"tags"`
}

type appUsageRecord struct {
	ID          int64      `yaml:"id"`
	AppName     string     `yaml:"app_name"`
	WindowTitle string     `yaml:"window_title"`
	Domain      string     `yaml:"domain"`
	URL         string     `yaml:"url"`
	IsBrowser   bool       `yaml:"is_browser"`
	IsIdle      bool       `yaml:"is_idle"`
	StartTime   time.Time  `yaml:"start_time"`
	EndTime     *time.Time `yaml:"end_time"`
	Duration    *int64     `yaml:"duration"`
	CategoryID  *int64     `yaml:"category_id"`
	Tags        []int64    `yaml:"tags"`
}

type pomodoroRecord struct {
	ID              int64      `yaml:"id"`
	TaskName        string     `yaml:"task_name"`
	SessionType     string     `yaml:"session_type"`
	PlannedDuration int64      `yaml:"planned_duration"`
	StartTime       time.Time  `yaml:"start_time"`
	EndTime         *time.Time `yaml:"end_time"`
	Completed       bool       `yaml:"completed"`
	Interrupted     bool       `yaml:"interrupted"`
	Tags            []int64    `yaml:"tags"`
}

// LoadSnapshotFile reads a YAML snapshot from path.
func LoadSnapshotFile(path string) (*Store, *time.Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// LoadSnapshot decodes a YAML snapshot into a new Store and returns the
// snapshot's timezone (UTC when unset).
func LoadSnapshot(r io.Reader) (*Store, *time.Location, error) {
	var file SnapshotFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}

	loc := time.UTC
	if file.Timezone != "" {
		parsed, err := time.LoadLocation(file.Timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot timezone: %w", err)
		}
		loc = parsed
	}

	s := NewStore()
	for _, c := range file.Categories {
		s.PutCategory(activity.Category{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	for _, t := range file.Tags {
		s.PutTag(activity.Tag{ID: t.ID, Name: t.Name, Color: t.Color})
	}
	for _, e := range file.TimeEntries {
		s.AddTimeEntry(activity.TimeEntry{
			ID:          e.ID,
			Task:        e.Task,
			Description: e.Description,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Duration:    e.Duration,
			CategoryID:  e.CategoryID,
			TagIDs:      e.Tags,
		})
	}
	for _, u := range file.AppUsage {
		s.AddAppUsage(activity.AppUsage{
			ID:          u.ID,
			AppName:     u.AppName,
			WindowTitle: u.WindowTitle,
			Domain:      u.Domain,
			URL:         u.URL,
			IsBrowser:   u.IsBrowser,
			IsIdle:      u.IsIdle,
			StartTime:   u.StartTime,
			EndTime:     u.EndTime,
			Duration:    u.Duration,
			CategoryID:  u.CategoryID,
			TagIDs:      u.Tags,
		})
	}
	for i, p := range file.PomodoroSessions {
		kind := activity.SessionType(p.SessionType)
		switch kind {
		case activity.SessionFocus, activity.SessionShortBreak, activity.SessionLongBreak:
		default:
			return nil, nil, fmt.Errorf("pomodoro_sessions[%d]: unknown session_type %q", i, p.SessionType)
		}
		s.AddPomodoroSession(activity.PomodoroSession{
			ID:              p.ID,
			TaskName:        p.TaskName,
			SessionType:     kind,
			PlannedDuration: p.PlannedDuration,
			StartTime:       p.StartTime,
			EndTime:         p.EndTime,
			Completed:       p.Completed,
			Interrupted:     p.Interrupted,
			TagIDs:          p.Tags,
		})
	}
	for _, t := range file.CompletedTasks {
		s.AddCompletedTask(t)
	}
	for _, g := range file.Goals {
		s.AddGoal(g)
	}
	return s, loc, nil
}
