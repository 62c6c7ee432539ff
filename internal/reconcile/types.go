// Package reconcile merges, splits and resolves conflicts between unified activities.
package reconcile

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

var (
	// ErrEmptyInput is returned when a merge receives no activities.
	ErrEmptyInput = errors.New("at least one activity is required")
	// ErrMixedSources is returned when a merge would combine activities from different sources.
	ErrMixedSources = errors.New("activities from different sources cannot be merged")
	// ErrUnsupportedResolution is returned for unknown resolution or strategy names.
	ErrUnsupportedResolution = errors.New("unsupported resolution")
	// ErrActivityNotFound is returned when a referenced activity is absent from the snapshot.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrConflictNotFound is returned when a referenced conflict no longer exists.
	ErrConflictNotFound = errors.New("conflict not found")
)

// Strategy selects which input supplies the non-interval fields of a merge.
type Strategy string

const (
	StrategyLongest  Strategy = "longest"
	StrategyEarliest Strategy = "earliest"
	StrategyLatest   Strategy = "latest"
)

// ParseStrategy validates a strategy name. Empty selects longest.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case "":
		return StrategyLongest, nil
	case StrategyLongest, StrategyEarliest, StrategyLatest:
		return Strategy(value), nil
	}
	return "", fmt.Errorf("%w: strategy %q", ErrUnsupportedResolution, value)
}

// Resolution is the caller's chosen fix for a conflict.
type Resolution string

const (
	ResolutionMerge      Resolution = "merge"
	ResolutionDeleteOne  Resolution = "delete_one"
	ResolutionAdjustTime Resolution = "adjust_time"
	ResolutionSplit      Resolution = "split"
)

// ParseResolution validates a resolution name.
func ParseResolution(value string) (Resolution, error) {
	switch Resolution(value) {
	case ResolutionMerge, ResolutionDeleteOne, ResolutionAdjustTime, ResolutionSplit:
		return Resolution(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedResolution, value)
}

// Action tells the write-back collaborator what to do with an activity.
type Action string

const (
	ActionKeep   Action = "keep"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionCreate Action = "create"
)

// Resolved is one activity with the action the owning source must apply.
type Resolved struct {
	Action   Action                   `json:"action"`
	Activity activity.UnifiedActivity `json:"activity"`
}

// MergeSuggestion is the advisory result of SuggestMerge.
type MergeSuggestion struct {
	CanMerge       bool                      `json:"can_merge"`
	Reason         string                    `json:"reason"`
	Confidence     int                       `json:"confidence"`
	MergedActivity *activity.UnifiedActivity `json:"merged_activity,omitempty"`
}

// TempIDs hands out negative ids for activities not yet persisted.
// The owning source assigns the real id on write-back.
type TempIDs struct {
	last atomic.Int64
}

// Next returns a fresh negative id.
func (t *TempIDs) Next() int64 {
	return -t.last.Add(1)
}

// IsTemporary reports whether id came from TempIDs.
func IsTemporary(id int64) bool {
	return id < 0
}
