// Package api exposes the timeline, reconciliation and analytics endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/auth"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/interval"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

// Defaults are applied when a request omits a parameter.
type Defaults struct {
	Strategy         reconcile.Strategy
	Conflicts        conflict.Options
	AutoMergeSeconds int64
	MaxWindow        time.Duration
	Location         *time.Location
}

// Dependencies are the collaborators a Handler serves.
type Dependencies struct {
	Timeline  reconcile.Snapshotter
	Validator *validation.Validator
	Engine    *reconcile.Engine
	Commander *reconcile.Commander
	Analytics *analytics.Service
	Defaults  Defaults
}

// Handler coordinates HTTP requests with the reconciliation and analytics services.
type Handler struct {
	timeline  reconcile.Snapshotter
	validator *validation.Validator
	detector  *conflict.Detector
	engine    *reconcile.Engine
	commander *reconcile.Commander
	analytics *analytics.Service
	defaults  Defaults
}

// NewHandler builds a Handler.
func NewHandler(deps Dependencies) *Handler {
	d := deps.Defaults
	if d.Strategy == "" {
		d.Strategy = reconcile.StrategyLongest
	}
	if d.Conflicts == (conflict.Options{}) {
		d.Conflicts = conflict.DefaultOptions()
	}
	if d.AutoMergeSeconds <= 0 {
		d.AutoMergeSeconds = 60
	}
	if d.MaxWindow <= 0 {
		d.MaxWindow = 31 * 24 * time.Hour
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Handler{
		timeline:  deps.Timeline,
		validator: deps.Validator,
		detector:  conflict.NewDetector(),
		engine:    deps.Engine,
		commander: deps.Commander,
		analytics: deps.Analytics,
		defaults:  d,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/timeline", h.listTimeline)
	mux.HandleFunc("GET /v1/timeline/validation", h.validateTimeline)
	mux.HandleFunc("GET /v1/timeline/mergeable-groups", h.mergeableGroups)
	mux.HandleFunc("POST /v1/timeline/merge", h.merge)
	mux.HandleFunc("POST /v1/timeline/split", h.split)
	mux.HandleFunc("POST /v1/timeline/suggest-merge", h.suggestMerge)
	mux.HandleFunc("POST /v1/timeline/auto-merge", h.autoMerge)
	mux.HandleFunc("GET /v1/conflicts", h.listConflicts)
	mux.HandleFunc("POST /v1/conflicts/resolve", h.resolveConflict)

	mux.HandleFunc("GET /v1/analytics/daily", h.dailyStats)
	mux.HandleFunc("GET /v1/analytics/hourly", h.hourlyPattern)
	mux.HandleFunc("GET /v1/analytics/heatmap", h.heatmap)
	mux.HandleFunc("GET /v1/analytics/weekly", h.weeklySummary)
	mux.HandleFunc("GET /v1/analytics/summary", h.summary)
	mux.HandleFunc("GET /v1/analytics/insights", h.insights)
	mux.HandleFunc("GET /v1/analytics/trends", h.trends)

	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize enforces scope on the request claims. timeline:write implies timeline:read.
func authorize(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeTimelineRead && claims.HasScope(auth.ScopeTimelineWrite)) {
		return true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return false
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("invalid request")

// writeFailure maps domain errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Type:     "validation_failed",
			Detail:   verr.Error(),
			Activity: verr.Key,
			Errors:   verr.Errors,
		})
	case errors.Is(err, reconcile.ErrActivityNotFound), errors.Is(err, reconcile.ErrConflictNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, interval.ErrMalformed),
		errors.Is(err, reconcile.ErrEmptyInput),
		errors.Is(err, reconcile.ErrMixedSources),
		errors.Is(err, reconcile.ErrUnsupportedResolution),
		errors.Is(err, analytics.ErrInvalidGranularity),
		errors.Is(err, analytics.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
