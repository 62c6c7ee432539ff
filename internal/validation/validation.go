// Package validation checks individual unified activities for internal consistency.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

// Issue codes.
const (
	CodeEndBeforeStart   = "end_before_start"
	CodeDurationMismatch = "duration_mismatch"
	CodeMissingTitle     = "missing_title"
	CodeZeroDuration     = "zero_duration"
	CodeExceedsDay       = "exceeds_24h"
	CodeDeletedTag       = "deleted_tag"
)

const (
	durationTolerance = 1 // seconds
	maxDuration       = int64(24 * time.Hour / time.Second)
)

// Issue is a single error or warning.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result reports the outcome of validating one activity.
type Result struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Err returns a *Error when the result carries hard errors.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	return &Error{Errors: r.Errors}
}

// Error wraps hard validation failures for command paths.
type Error struct {
	Key    activity.Key
	Errors []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, issue := range e.Errors {
		msgs = append(msgs, issue.Message)
	}
	if e.Key.SourceType != "" {
		return fmt.Sprintf("activity %s failed validation: %s", e.Key, strings.Join(msgs, "; "))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// TagChecker reports whether a tag id still exists.
type TagChecker interface {
	TagExists(ctx context.Context, id int64) (bool, error)
}

// Validator runs single-record checks. The zero value skips tag existence checks.
type Validator struct {
	tags TagChecker
}

// NewValidator builds a Validator. tags may be nil.
func NewValidator(tags TagChecker) *Validator {
	return &Validator{tags: tags}
}

// Validate checks a against the ordering, duration and title rules.
func (v *Validator) Validate(ctx context.Context, a activity.UnifiedActivity) Result {
	res := Result{Errors: []Issue{}, Warnings: []Issue{}}

	if a.EndTime.Before(a.StartTime) {
		res.Errors = append(res.Errors, Issue{Code: CodeEndBeforeStart, Field: activity.FieldEndTime,
			Message: "end time is before start time"})
	} else {
		expected := int64(a.EndTime.Sub(a.StartTime) / time.Second)
		if diff := a.Duration - expected; diff > durationTolerance || diff < -durationTolerance {
			res.Errors = append(res.Errors, Issue{Code: CodeDurationMismatch, Field: "duration",
				Message: fmt.Sprintf("duration %ds does not match interval length %ds", a.Duration, expected)})
		}
	}
	if strings.TrimSpace(a.Title) == "" {
		res.Errors = append(res.Errors, Issue{Code: CodeMissingTitle, Field: activity.FieldTitle,
			Message: "title is required"})
	}

	if a.Duration == 0 {
		res.Warnings = append(res.Warnings, Issue{Code: CodeZeroDuration, Field: "duration",
			Message: "activity has zero duration"})
	}
	if a.Duration > maxDuration {
		res.Warnings = append(res.Warnings, Issue{Code: CodeExceedsDay, Field: "duration",
			Message: fmt.Sprintf("activity lasts %.1f hours; it may have been left running", float64(a.Duration)/3600)})
	}
	if v != nil && v.tags != nil {
		for _, tag := range a.Tags {
			ok, err := v.tags.TagExists(ctx, tag.ID)
			if err != nil {
				res.Warnings = append(res.Warnings, Issue{Code: CodeDeletedTag, Field: activity.FieldTags,
					Message: fmt.Sprintf("could not verify tag %d: %v", tag.ID, err)})
				continue
			}
			if !ok {
				res.Warnings = append(res.Warnings, Issue{Code: CodeDeletedTag, Field: activity.FieldTags,
					Message: fmt.Sprintf("tag %d no longer exists", tag.ID)})
			}
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// Report pairs an activity key with its result.
type Report struct {
	Key    activity.Key `json:"key"`
	Result Result       `json:"result"`
}

// ValidateAll validates every activity. When onlyFlagged is set, clean results are omitted.
func (v *Validator) ValidateAll(ctx context.Context, activities []activity.UnifiedActivity, onlyFlagged bool) []Report {
	out := make([]Report, 0, len(activities))
	for _, a := range activities {
		res := v.Validate(ctx, a)
		if onlyFlagged && res.IsValid && len(res.Warnings) == 0 {
			continue
		}
		out = append(out, Report{Key: a.Key(), Result: res})
	}
	return out
}

// Check validates a and returns a *Error keyed to a on hard failure.
func (v *Validator) Check(ctx context.Context, a activity.UnifiedActivity) error {
	res := v.Validate(ctx, a)
	if res.IsValid {
		return nil
	}
	return &Error{Key: a.Key(), Errors: res.Errors}
}
