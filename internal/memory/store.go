// Package memory keeps every timeline collaborator in process for local
// development, the CLI and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
)

// ErrUnknownRecord is returned when a write-back references a missing record.
var ErrUnknownRecord = errors.New("record does not exist")

// Store is a mutex-guarded in-memory implementation of the source, lookup,
// write-back, task and goal collaborators.
type Store struct {
	mu         sync.RWMutex
	entries    map[int64]activity.TimeEntry
	usage      map[int64]activity.AppUsage
	sessions   map[int64]activity.PomodoroSession
	categories map[int64]activity.Category
	tags       map[int64]activity.Tag
	tasks      []analytics.CompletedTask
	goals      []analytics.Goal
	nextID     map[activity.SourceType]int64
	commands   []reconcile.CommandRecord
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[int64]activity.TimeEntry),
		usage:      make(map[int64]activity.AppUsage),
		sessions:   make(map[int64]activity.PomodoroSession),
		categories: make(map[int64]activity.Category),
		tags:       make(map[int64]activity.Tag),
		nextID:     make(map[activity.SourceType]int64),
	}
}

// Sources returns the store as the normalizer's read collaborators.
func (s *Store) Sources() activity.Sources {
	return activity.Sources{TimeEntries: s, AppUsage: s, Pomodoro: s}
}

// AddTimeEntry inserts or replaces a manual entry. A zero ID is assigned.
func (s *Store) AddTimeEntry(e activity.TimeEntry) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.allocate(activity.SourceManual)
	}
	s.observe(activity.SourceManual, e.ID)
	s.entries[e.ID] = e
	return e.ID
}

// AddAppUsage inserts or replaces an automatic observation. A zero ID is assigned.
func (s *Store) AddAppUsage(u activity.AppUsage) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.allocate(activity.SourceAutomatic)
	}
	s.observe(activity.SourceAutomatic, u.ID)
	s.usage[u.ID] = u
	return u.ID
}

// AddPomodoroSession inserts or replaces a pomodoro session. A zero ID is assigned.
func (s *Store) AddPomodoroSession(p activity.PomodoroSession) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.allocate(activity.SourcePomodoro)
	}
	s.observe(activity.SourcePomodoro, p.ID)
	s.sessions[p.ID] = p
	return p.ID
}

// PutCategory stores a category.
func (s *Store) PutCategory(c activity.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

// PutTag stores a tag.
func (s *Store) PutTag(t activity.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[t.ID] = t
}

// DeleteTag removes a tag without touching the records that reference it.
func (s *Store) DeleteTag(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, id)
}

// AddCompletedTask records a finished todo.
func (s *Store) AddCompletedTask(t analytics.CompletedTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// AddGoal records a goal.
func (s *Store) AddGoal(g analytics.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, g)
}

// ListTimeEntries implements activity.TimeEntrySource.
func (s *Store) ListTimeEntries(ctx context.Context, start, end time.Time) ([]activity.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]activity.TimeEntry, 0)
	for _, e := range s.entries {
		if e.EndTime != nil && inWindow(e.StartTime, *e.EndTime, start, end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListAppUsage implements activity.AppUsageSource.
func (s *Store) ListAppUsage(ctx context.Context, start, end time.Time) ([]activity.AppUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]activity.AppUsage, 0)
	for _, u := range s.usage {
		if u.EndTime != nil && inWindow(u.StartTime, *u.EndTime, start, end) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListPomodoroSessions implements activity.PomodoroSource.
func (s *Store) ListPomodoroSessions(ctx context.Context, start, end time.Time) ([]activity.PomodoroSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]activity.PomodoroSession, 0)
	for _, p := range s.sessions {
		if p.EndTime != nil && inWindow(p.StartTime, *p.EndTime, start, end) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Category implements activity.Lookup.
func (s *Store) Category(ctx context.Context, id int64) (*activity.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Tag implements activity.Lookup.
func (s *Store) Tag(ctx context.Context, id int64) (*activity.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// TagExists implements validation.TagChecker.
func (s *Store) TagExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tags[id]
	return ok, nil
}

// ListCompletedTasks implements analytics.TaskSource.
func (s *Store) ListCompletedTasks(ctx context.Context, start, end time.Time) ([]analytics.CompletedTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]analytics.CompletedTask, 0)
	for _, t := range s.tasks {
		if !t.CompletedAt.Before(start) && t.CompletedAt.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListGoals implements analytics.GoalSource.
func (s *Store) ListGoals(ctx context.Context) ([]analytics.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]analytics.Goal, len(s.goals))
	copy(out, s.goals)
	return out, nil
}

// Apply implements reconcile.Writer. Every change is checked before any is
// applied, so a failing record leaves the store untouched.
func (s *Store) Apply(ctx context.Context, record reconcile.CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range record.Changes {
		if err := s.checkLocked(ch); err != nil {
			return fmt.Errorf("command %s: %w", record.ID, err)
		}
	}
	for _, ch := range record.Changes {
		s.applyLocked(ch)
	}
	s.commands = append(s.commands, record)
	return nil
}

// Commands returns the applied command log in order.
func (s *Store) Commands() []reconcile.CommandRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reconcile.CommandRecord, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *Store) checkLocked(ch reconcile.Resolved) error {
	a := ch.Activity
	switch ch.Action {
	case reconcile.ActionKeep:
		return nil
	case reconcile.ActionCreate:
		if _, err := activity.ParseSourceType(string(a.SourceType)); err != nil {
			return err
		}
		return nil
	case reconcile.ActionUpdate, reconcile.ActionDelete:
		if !s.existsLocked(a.Key()) {
			return fmt.Errorf("%s %s: %w", ch.Action, a.Key(), ErrUnknownRecord)
		}
		return nil
	}
	return fmt.Errorf("unknown action %q", ch.Action)
}

func (s *Store) existsLocked(key activity.Key) bool {
	var ok bool
	switch key.SourceType {
	case activity.SourceManual:
		_, ok = s.entries[key.ID]
	case activity.SourceAutomatic:
		_, ok = s.usage[key.ID]
	case activity.SourcePomodoro:
		_, ok = s.sessions[key.ID]
	}
	return ok
}

func (s *Store) applyLocked(ch reconcile.Resolved) {
	a := ch.Activity
	switch ch.Action {
	case reconcile.ActionDelete:
		switch a.SourceType {
		case activity.SourceManual:
			delete(s.entries, a.ID)
		case activity.SourceAutomatic:
			delete(s.usage, a.ID)
		case activity.SourcePomodoro:
			delete(s.sessions, a.ID)
		}
		return
	case reconcile.ActionCreate:
		if reconcile.IsTemporary(a.ID) || a.ID == 0 || s.existsLocked(a.Key()) {
			a.ID = s.allocate(a.SourceType)
		}
	case reconcile.ActionUpdate:
	default:
		return
	}
	s.observe(a.SourceType, a.ID)
	switch a.SourceType {
	case activity.SourceManual:
		s.entries[a.ID] = activity.ToTimeEntry(a)
	case activity.SourceAutomatic:
		s.usage[a.ID] = activity.ToAppUsage(a)
	case activity.SourcePomodoro:
		s.sessions[a.ID] = activity.ToPomodoro(a)
	}
}

func (s *Store) allocate(source activity.SourceType) int64 {
	s.nextID[source]++
	return s.nextID[source]
}

func (s *Store) observe(source activity.SourceType, id int64) {
	if id > s.nextID[source] {
		s.nextID[source] = id
	}
}

// inWindow reports whether [s, e) intersects [start, end). Zero-length records
// count when they sit inside the window.
func inWindow(s, e, start, end time.Time) bool {
	if !s.Before(end) {
		return false
	}
	return e.After(start) || !s.Before(start)
}
