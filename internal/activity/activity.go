// Package activity defines the unified timeline model and assembles it from the three tracked sources.
package activity

import (
	"fmt"
	"time"

	"github.com/osama1998H/lume-sub000/internal/interval"
)

// SourceType names the origin table of a unified activity.
type SourceType string

const (
	SourceManual    SourceType = "manual"
	SourceAutomatic SourceType = "automatic"
	SourcePomodoro  SourceType = "pomodoro"
)

// ParseSourceType validates a wire value.
func ParseSourceType(value string) (SourceType, error) {
	switch SourceType(value) {
	case SourceManual, SourceAutomatic, SourcePomodoro:
		return SourceType(value), nil
	}
	return "", fmt.Errorf("unknown source type %q", value)
}

// priority orders sources for equal start times: manual, pomodoro, automatic.
func (s SourceType) priority() int {
	switch s {
	case SourceManual:
		return 0
	case SourcePomodoro:
		return 1
	case SourceAutomatic:
		return 2
	}
	return 3
}

// Type classifies what kind of activity a record represents.
type Type string

const (
	TypeTimeEntry     Type = "time_entry"
	TypeApp           Type = "app"
	TypeBrowser       Type = "browser"
	TypePomodoroFocus Type = "pomodoro_focus"
	TypePomodoroBreak Type = "pomodoro_break"
)

// Editable field names.
const (
	FieldTitle     = "title"
	FieldStartTime = "start_time"
	FieldEndTime   = "end_time"
	FieldCategory  = "category"
	FieldTags      = "tags"
)

// Key identifies an activity. IDs are only unique within a source.
type Key struct {
	ID         int64      `json:"id" yaml:"id"`
	SourceType SourceType `json:"source_type" yaml:"source_type"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.SourceType, k.ID)
}

// Tag is a label reference resolved through Lookup.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Category classifies activities.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// UnifiedActivity is one normalized interval drawn from any source.
type UnifiedActivity struct {
	ID             int64      `json:"id"`
	SourceType     SourceType `json:"source_type"`
	ActivityType   Type       `json:"activity_type"`
	Title          string     `json:"title"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Duration       int64      `json:"duration"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	CategoryName   string     `json:"category_name,omitempty"`
	CategoryColor  string     `json:"category_color,omitempty"`
	Tags           []Tag      `json:"tags"`
	Metadata       Metadata   `json:"metadata"`
	IsEditable     bool       `json:"is_editable"`
	EditableFields []string   `json:"editable_fields"`
}

// Key returns the (id, source) identity.
func (a UnifiedActivity) Key() Key {
	return Key{ID: a.ID, SourceType: a.SourceType}
}

// Interval returns the activity's time range.
func (a UnifiedActivity) Interval() interval.Interval {
	return interval.Interval{Start: a.StartTime, End: a.EndTime}
}

// WithInterval returns a copy spanning iv with the duration recomputed.
func (a UnifiedActivity) WithInterval(iv interval.Interval) UnifiedActivity {
	a.StartTime = iv.Start
	a.EndTime = iv.End
	a.Duration = iv.Seconds()
	a.Tags = append([]Tag(nil), a.Tags...)
	a.EditableFields = append([]string(nil), a.EditableFields...)
	return a
}

// Idle reports whether the activity was observed while the user was idle.
func (a UnifiedActivity) Idle() bool {
	switch m := a.Metadata.(type) {
	case AppMetadata:
		return m.IsIdle
	case BrowserMetadata:
		return m.IsIdle
	}
	return false
}

// CanEdit reports whether field may be changed for this activity's source.
func (a UnifiedActivity) CanEdit(field string) bool {
	for _, f := range a.EditableFields {
		if f == field {
			return true
		}
	}
	return false
}

// EditableFieldsFor derives the editable field set from the source type.
func EditableFieldsFor(source SourceType) []string {
	switch source {
	case SourceManual:
		return []string{FieldTitle, FieldStartTime, FieldEndTime, FieldCategory, FieldTags}
	case SourceAutomatic:
		return []string{FieldCategory, FieldTags}
	case SourcePomodoro:
		return []string{FieldTitle}
	}
	return nil
}

// Less orders activities by start time, then source priority, then id.
func Less(a, b UnifiedActivity) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	if pa, pb := a.SourceType.priority(), b.SourceType.priority(); pa != pb {
		return pa < pb
	}
	return a.ID < b.ID
}

// Compare is the three-way form of Less for slices.SortStableFunc.
func Compare(a, b UnifiedActivity) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}
