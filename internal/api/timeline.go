package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/auth"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/observability"
	"github.com/osama1998H/lume-sub000/internal/persistence"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
)

func (h *Handler) listTimeline(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	q := r.URL.Query()
	iv, err := h.queryWindow(q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	limit, err := parseLimit(q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	cursor, err := persistence.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_cursor", err.Error())
		return
	}
	acts, err := h.timeline.Normalize(r.Context(), iv.Start, iv.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	page, next := persistence.Page(acts, cursor, limit)
	if page == nil {
		page = []activity.UnifiedActivity{}
	}
	writeJSON(w, http.StatusOK, TimelineResponse{Activities: page, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) validateTimeline(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	q := r.URL.Query()
	iv, err := h.queryWindow(q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	onlyFlagged, err := parseBool(q, "only_flagged")
	if err != nil {
		writeFailure(w, err)
		return
	}
	acts, err := h.timeline.Normalize(r.Context(), iv.Start, iv.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": h.validator.ValidateAll(r.Context(), acts, onlyFlagged),
	})
}

func (h *Handler) listConflicts(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	q := r.URL.Query()
	iv, err := h.queryWindow(q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	threshold, err := optionalFloat(q, "duplicate_threshold")
	if err != nil {
		writeFailure(w, err)
		return
	}
	gapSeconds, err := optionalInt(q, "gap_minimum_seconds")
	if err != nil {
		writeFailure(w, err)
		return
	}
	opts, err := h.conflictOptions(threshold, gapSeconds)
	if err != nil {
		writeFailure(w, err)
		return
	}
	acts, err := h.timeline.Normalize(r.Context(), iv.Start, iv.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	found := h.detector.Detect(acts, opts)
	summary := conflict.Summary(found)
	counts := make(map[string]int, len(summary))
	for kind, n := range summary {
		counts[string(kind)] = n
	}
	observability.RecordConflicts(counts)
	writeJSON(w, http.StatusOK, map[string]any{
		"conflicts": found,
		"summary":   counts,
	})
}

// conflictOptions overlays caller overrides on the configured detection defaults.
// A nil override keeps the default; zero is a valid override.
func (h *Handler) conflictOptions(threshold *float64, gapSeconds *int64) (conflict.Options, error) {
	opts := h.defaults.Conflicts
	if threshold != nil {
		if *threshold < 0 || *threshold > 100 {
			return opts, fmt.Errorf("%w: duplicate_threshold must be between 0 and 100", errBadRequest)
		}
		opts.DuplicateThreshold = *threshold
	}
	if gapSeconds != nil {
		if *gapSeconds < 0 {
			return opts, fmt.Errorf("%w: gap_minimum_seconds must be a non-negative integer", errBadRequest)
		}
		opts.GapMinimum = time.Duration(*gapSeconds) * time.Second
	}
	return opts, nil
}

func (h *Handler) mergeableGroups(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	q := r.URL.Query()
	iv, err := h.queryWindow(q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	maxGap, err := parseInt(q, "max_gap_seconds", int(h.defaults.AutoMergeSeconds))
	if err != nil {
		writeFailure(w, err)
		return
	}
	acts, err := h.timeline.Normalize(r.Context(), iv.Start, iv.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	groups := h.engine.FindMergeableGroups(acts, int64(maxGap))
	if groups == nil {
		groups = [][]activity.UnifiedActivity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *Handler) suggestMerge(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	var req SuggestMergeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	iv, err := h.window(req.Start, req.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	acts, err := h.timeline.Normalize(r.Context(), iv.Start, iv.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	picked, err := selectActivities(acts, req.Activities)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.SuggestMerge(r.Context(), picked))
}

func (h *Handler) merge(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineWrite) {
		return
	}
	var req MergeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	iv, err := h.window(req.Start, req.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	strategy := h.defaults.Strategy
	if req.Strategy != "" {
		if strategy, err = reconcile.ParseStrategy(req.Strategy); err != nil {
			writeFailure(w, err)
			return
		}
	}
	res, err := h.commander.Merge(r.Context(), reconcile.MergeCommand{Window: iv, Refs: req.Activities, Strategy: strategy})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) split(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineWrite) {
		return
	}
	var req SplitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	iv, err := h.window(req.Start, req.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.commander.Split(r.Context(), reconcile.SplitCommand{Window: iv, Ref: req.Activity, Points: req.SplitPoints})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) autoMerge(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineWrite) {
		return
	}
	var req AutoMergeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	iv, err := h.window(req.Start, req.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	threshold := h.defaults.AutoMergeSeconds
	if req.ThresholdSeconds != nil {
		if *req.ThresholdSeconds < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "threshold_seconds must be non-negative")
			return
		}
		threshold = *req.ThresholdSeconds
	}
	res, err := h.commander.AutoMerge(r.Context(), reconcile.AutoMergeCommand{Window: iv, ThresholdSeconds: threshold})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) resolveConflict(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineWrite) {
		return
	}
	var req ResolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	iv, err := h.window(req.Start, req.End)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if req.ConflictID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "conflict_id is required")
		return
	}
	resolution, err := reconcile.ParseResolution(req.Resolution)
	if err != nil {
		writeFailure(w, err)
		return
	}
	opts, err := h.conflictOptions(req.DuplicateThreshold, req.GapMinimumSeconds)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.commander.Resolve(r.Context(), reconcile.ResolveCommand{
		Window:     iv,
		ConflictID: req.ConflictID,
		Resolution: resolution,
		Options:    opts,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// selectActivities returns the snapshot members named by keys, in key order.
func selectActivities(snapshot []activity.UnifiedActivity, keys []activity.Key) ([]activity.UnifiedActivity, error) {
	if len(keys) == 0 {
		return nil, reconcile.ErrEmptyInput
	}
	index := make(map[activity.Key]activity.UnifiedActivity, len(snapshot))
	for _, a := range snapshot {
		index[a.Key()] = a
	}
	out := make([]activity.UnifiedActivity, 0, len(keys))
	for _, k := range keys {
		a, ok := index[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", reconcile.ErrActivityNotFound, k)
		}
		out = append(out, a)
	}
	return out, nil
}
