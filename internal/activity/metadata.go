package activity

import (
	"encoding/json"
	"fmt"
)

// Metadata is the source-specific payload of a UnifiedActivity. The set of
// implementations is closed: ManualMetadata, AppMetadata, BrowserMetadata and
// PomodoroMetadata.
type Metadata interface {
	metadata()
	// Kind returns the activity type the payload belongs to.
	Kind() Type
}

// ManualMetadata accompanies manual time entries.
type ManualMetadata struct {
	Description string `json:"description,omitempty"`
}

// AppMetadata accompanies automatically observed desktop application sessions.
type AppMetadata struct {
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title,omitempty"`
	IsIdle      bool   `json:"is_idle"`
}

// BrowserMetadata accompanies automatically observed browser sessions.
type BrowserMetadata struct {
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title,omitempty"`
	Domain      string `json:"domain,omitempty"`
	URL         string `json:"url,omitempty"`
	IsIdle      bool   `json:"is_idle"`
}

// PomodoroMetadata accompanies focus timer sessions.
type PomodoroMetadata struct {
	SessionType     SessionType `json:"session_type"`
	Completed       bool        `json:"completed"`
	Interrupted     bool        `json:"interrupted"`
	PlannedDuration int64       `json:"planned_duration,omitempty"`
}

func (ManualMetadata) metadata()   {}
func (AppMetadata) metadata()      {}
func (BrowserMetadata) metadata()  {}
func (PomodoroMetadata) metadata() {}

func (ManualMetadata) Kind() Type  { return TypeTimeEntry }
func (AppMetadata) Kind() Type     { return TypeApp }
func (BrowserMetadata) Kind() Type { return TypeBrowser }

func (m PomodoroMetadata) Kind() Type {
	if m.SessionType == SessionFocus {
		return TypePomodoroFocus
	}
	return TypePomodoroBreak
}

// SessionType is the pomodoro phase.
type SessionType string

const (
	SessionFocus      SessionType = "focus"
	SessionShortBreak SessionType = "shortBreak"
	SessionLongBreak  SessionType = "longBreak"
)

// AppName returns the observed application for automatic activities.
func AppName(m Metadata) (string, bool) {
	switch v := m.(type) {
	case AppMetadata:
		return v.AppName, true
	case BrowserMetadata:
		return v.AppName, true
	}
	return "", false
}

// DecodeMetadata rebuilds a payload from its JSON form given the activity type.
func DecodeMetadata(kind Type, raw []byte) (Metadata, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch kind {
	case TypeTimeEntry:
		var m ManualMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	case TypeApp:
		var m AppMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	case TypeBrowser:
		var m BrowserMetadata
		err := json.Unmarshal(raw, &m)
		return m, err
	case TypePomodoroFocus, TypePomodoroBreak:
		var m PomodoroMetadata
		err := json.Unmarshal(raw, &m)
		if err == nil && m.SessionType == "" {
			m.SessionType = SessionFocus
			if kind == TypePomodoroBreak {
				m.SessionType = SessionShortBreak
			}
		}
		return m, err
	}
	return nil, fmt.Errorf("unknown activity type %q", kind)
}

// UnmarshalJSON resolves the metadata variant from activity_type.
func (a *UnifiedActivity) UnmarshalJSON(data []byte) error {
	type plain UnifiedActivity
	var wire struct {
		plain
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = UnifiedActivity(wire.plain)
	if wire.ActivityType == "" {
		return nil
	}
	meta, err := DecodeMetadata(wire.ActivityType, wire.Metadata)
	if err != nil {
		return err
	}
	a.Metadata = meta
	return nil
}
