package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/interval"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
	maxBodyBytes     = 1 << 20
)

// WindowRequest bounds the snapshot a command operates on.
type WindowRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MergeRequest merges the referenced activities.
type MergeRequest struct {
	WindowRequest
	Activities []activity.Key `json:"activities"`
	Strategy   string         `json:"strategy"`
}

// SplitRequest splits one activity at the given instants.
type SplitRequest struct {
	WindowRequest
	Activity    activity.Key `json:"activity"`
	SplitPoints []time.Time  `json:"split_points"`
}

// SuggestMergeRequest asks whether the referenced activities can be merged.
type SuggestMergeRequest struct {
	WindowRequest
	Activities []activity.Key `json:"activities"`
}

// AutoMergeRequest merges chains of activities separated by at most ThresholdSeconds.
type AutoMergeRequest struct {
	WindowRequest
	ThresholdSeconds *int64 `json:"threshold_seconds"`
}

// ResolveRequest resolves a detected conflict.
type ResolveRequest struct {
	WindowRequest
	ConflictID         string   `json:"conflict_id"`
	Resolution         string   `json:"resolution"`
	DuplicateThreshold *float64 `json:"duplicate_threshold"`
	GapMinimumSeconds  *int64   `json:"gap_minimum_seconds"`
}

// TimelineResponse is one page of the unified timeline.
type TimelineResponse struct {
	Activities []activity.UnifiedActivity `json:"activities"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

// ValidationErrorResponse carries hard validation failures.
type ValidationErrorResponse struct {
	Type     string             `json:"type"`
	Detail   string             `json:"detail"`
	Activity activity.Key       `json:"activity"`
	Errors   []validation.Issue `json:"errors"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// window turns start/end into an interval capped at the configured maximum span.
func (h *Handler) window(start, end time.Time) (interval.Interval, error) {
	if start.IsZero() || end.IsZero() {
		return interval.Interval{}, fmt.Errorf("%w: start and end are required", errBadRequest)
	}
	iv, err := interval.New(start, end)
	if err != nil {
		return interval.Interval{}, err
	}
	if iv.Duration() > h.defaults.MaxWindow {
		return interval.Interval{}, fmt.Errorf("%w: window exceeds %s", errBadRequest, h.defaults.MaxWindow)
	}
	return iv, nil
}

func (h *Handler) queryWindow(q url.Values) (interval.Interval, error) {
	start, err := parseTime(q.Get("start"), "start")
	if err != nil {
		return interval.Interval{}, err
	}
	end, err := parseTime(q.Get("end"), "end")
	if err != nil {
		return interval.Interval{}, err
	}
	return h.window(start, end)
}

func parseTime(raw, name string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", errBadRequest, name)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339", errBadRequest, name)
	}
	return ts, nil
}

// parseDate reads a YYYY-MM-DD calendar day in loc.
func parseDate(raw, name string, loc *time.Location) (time.Time, error) {
	ts, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, name)
	}
	return ts, nil
}

func parseInt(q url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}

// optionalFloat returns nil when name is absent from q.
func optionalFloat(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return &v, nil
}

// optionalInt returns nil when name is absent from q.
func optionalInt(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return &v, nil
}

func parseLimit(q url.Values) (int, error) {
	limit, err := parseInt(q, "limit", defaultPageLimit)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be positive", errBadRequest)
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit, nil
}

func parseBool(q url.Values, name string) (bool, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, name)
	}
	return v, nil
}
