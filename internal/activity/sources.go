package activity

import (
	"context"
	"time"
)

// TimeEntry is the native shape of a manually entered record.
type TimeEntry struct {
	ID          int64
	Task        string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	Duration    *int64
	CategoryID  *int64
	TagIDs      []int64
}

// AppUsage is the native shape of an automatically observed application or browser session.
type AppUsage struct {
	ID          int64
	AppName     string
	WindowTitle string
	Domain      string
	URL         string
	IsBrowser   bool
	IsIdle      bool
	StartTime   time.Time
	EndTime     *time.Time
	Duration    *int64
	CategoryID  *int64
	TagIDs      []int64
}

// PomodoroSession is the native shape of a focus timer session.
type PomodoroSession struct {
	ID              int64
	TaskName        string
	SessionType     SessionType
	PlannedDuration int64
	StartTime       time.Time
	EndTime         *time.Time
	Completed       bool
	Interrupted     bool
	TagIDs          []int64
}

// TimeEntrySource reads manual entries overlapping [start, end).
type TimeEntrySource interface {
	ListTimeEntries(ctx context.Context, start, end time.Time) ([]TimeEntry, error)
}

// AppUsageSource reads automatic observations overlapping [start, end).
type AppUsageSource interface {
	ListAppUsage(ctx context.Context, start, end time.Time) ([]AppUsage, error)
}

// PomodoroSource reads pomodoro sessions overlapping [start, end).
type PomodoroSource interface {
	ListPomodoroSessions(ctx context.Context, start, end time.Time) ([]PomodoroSession, error)
}

// Lookup resolves category and tag handles. A nil result with nil error means the id no longer exists.
type Lookup interface {
	Category(ctx context.Context, id int64) (*Category, error)
	Tag(ctx context.Context, id int64) (*Tag, error)
}

// Sources bundles the three read collaborators.
type Sources struct {
	TimeEntries TimeEntrySource
	AppUsage    AppUsageSource
	Pomodoro    PomodoroSource
}
