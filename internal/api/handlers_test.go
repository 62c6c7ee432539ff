package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/auth"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/memory"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

var day = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store   *memory.Store
	handler http.Handler
}

// newFixture seeds two adjacent manual entries and a focus session overlapping both.
func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	nine := day.Add(9 * time.Hour)
	store.AddTimeEntry(activity.TimeEntry{Task: "Write report", StartTime: nine, EndTime: ptr(nine.Add(30 * time.Minute))})
	store.AddTimeEntry(activity.TimeEntry{Task: "Write report", StartTime: nine.Add(30 * time.Minute), EndTime: ptr(nine.Add(time.Hour))})
	store.AddPomodoroSession(activity.PomodoroSession{
		TaskName:        "Write report",
		SessionType:     activity.SessionFocus,
		PlannedDuration: 1500,
		StartTime:       nine.Add(10 * time.Minute),
		EndTime:         ptr(nine.Add(35 * time.Minute)),
		Completed:       true,
	})

	normalizer := activity.NewNormalizer(store.Sources(), store)
	validator := validation.NewValidator(store)
	engine := reconcile.NewEngine(validator)
	agg := analytics.NewAggregator(time.UTC)
	agg.Now = func() time.Time { return day.Add(20 * time.Hour) }

	h := NewHandler(Dependencies{
		Timeline:  normalizer,
		Validator: validator,
		Engine:    engine,
		Commander: reconcile.NewCommander(normalizer, engine, validator, store),
		Analytics: analytics.NewService(normalizer, store, store, agg),
		Defaults: Defaults{
			Conflicts: conflict.Options{DuplicateThreshold: 70, DuplicateTolerance: time.Minute},
			MaxWindow: 48 * time.Hour,
		},
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return fixture{store: store, handler: mux}
}

func (f fixture) do(t *testing.T, method, target string, body any, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if scopes != nil {
		claims := &auth.Claims{Subject: "user-1", Scopes: map[string]struct{}{}}
		for _, s := range scopes {
			claims.Scopes[s] = struct{}{}
		}
		req = req.WithContext(auth.WithClaims(context.Background(), claims))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func windowQuery(extra url.Values) string {
	q := url.Values{}
	q.Set("start", day.Format(time.RFC3339))
	q.Set("end", day.Add(24*time.Hour).Format(time.RFC3339))
	for k, v := range extra {
		q[k] = v
	}
	return q.Encode()
}

func window() WindowRequest {
	return WindowRequest{Start: day, End: day.Add(24 * time.Hour)}
}

func TestTimelineRequiresClaims(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/timeline?"+windowQuery(nil), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/timeline?"+windowQuery(nil), nil, "other:read")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTimelinePaging(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/timeline?"+windowQuery(url.Values{"limit": {"2"}}), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var first TimelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Activities, 2)
	require.NotEmpty(t, first.NextCursor)
	require.Equal(t, activity.SourceManual, first.Activities[0].SourceType)
	require.Equal(t, activity.SourcePomodoro, first.Activities[1].SourceType)

	rec = f.do(t, http.MethodGet, "/v1/timeline?"+windowQuery(url.Values{"limit": {"2"}, "cursor": {first.NextCursor}}), nil, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusOK, rec.Code)

	var second TimelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Activities, 1)
	require.Empty(t, second.NextCursor)
	require.Equal(t, day.Add(9*time.Hour+30*time.Minute), second.Activities[0].StartTime.UTC())
}

func TestTimelineRejectsBadWindow(t *testing.T) {
	f := newFixture(t)

	q := url.Values{}
	q.Set("start", day.Format(time.RFC3339))
	q.Set("end", day.Add(72*time.Hour).Format(time.RFC3339))
	rec := f.do(t, http.MethodGet, "/v1/timeline?"+q.Encode(), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	q.Set("end", day.Add(-time.Hour).Format(time.RFC3339))
	rec = f.do(t, http.MethodGet, "/v1/timeline?"+q.Encode(), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/timeline?"+windowQuery(url.Values{"cursor": {"%%%"}}), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConflictsListing(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/conflicts?"+windowQuery(url.Values{"gap_minimum_seconds": {"0"}}), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Conflicts []conflict.Conflict `json:"conflicts"`
		Summary   map[string]int      `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, 2, payload.Summary[string(conflict.TypeOverlap)])
	for _, c := range payload.Conflicts {
		require.NotEmpty(t, c.ID)
	}

	rec = f.do(t, http.MethodGet, "/v1/conflicts?"+windowQuery(url.Values{"duplicate_threshold": {"120"}}), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeRequiresWriteScope(t *testing.T) {
	f := newFixture(t)

	req := MergeRequest{WindowRequest: window(), Activities: []activity.Key{
		{ID: 1, SourceType: activity.SourceManual},
		{ID: 2, SourceType: activity.SourceManual},
	}}
	rec := f.do(t, http.MethodPost, "/v1/timeline/merge", req, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, f.store.Commands())
}

func TestMergeWritesBack(t *testing.T) {
	f := newFixture(t)

	req := MergeRequest{WindowRequest: window(), Strategy: "earliest", Activities: []activity.Key{
		{ID: 1, SourceType: activity.SourceManual},
		{ID: 2, SourceType: activity.SourceManual},
	}}
	rec := f.do(t, http.MethodPost, "/v1/timeline/merge", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res reconcile.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Applied)
	require.Len(t, f.store.Commands(), 1)

	entries, err := f.store.ListTimeEntries(context.Background(), day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, day.Add(9*time.Hour), entries[0].StartTime)
	require.Equal(t, day.Add(10*time.Hour), *entries[0].EndTime)
}

func TestMergeErrorMapping(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body any
		want int
	}{
		{
			name: "mixed sources",
			body: MergeRequest{WindowRequest: window(), Activities: []activity.Key{
				{ID: 1, SourceType: activity.SourceManual},
				{ID: 1, SourceType: activity.SourcePomodoro},
			}},
			want: http.StatusBadRequest,
		},
		{
			name: "missing activity",
			body: MergeRequest{WindowRequest: window(), Activities: []activity.Key{
				{ID: 1, SourceType: activity.SourceManual},
				{ID: 42, SourceType: activity.SourceManual},
			}},
			want: http.StatusNotFound,
		},
		{
			name: "empty input",
			body: MergeRequest{WindowRequest: window()},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown strategy",
			body: MergeRequest{WindowRequest: window(), Strategy: "random", Activities: []activity.Key{
				{ID: 1, SourceType: activity.SourceManual},
			}},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown field",
			body: map[string]any{"start": day, "end": day.Add(time.Hour), "bogus": true},
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/timeline/merge", tc.body, auth.ScopeTimelineWrite)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
	require.Empty(t, f.store.Commands())
}

func TestSuggestMergeAndGroups(t *testing.T) {
	f := newFixture(t)

	req := SuggestMergeRequest{WindowRequest: window(), Activities: []activity.Key{
		{ID: 1, SourceType: activity.SourceManual},
		{ID: 2, SourceType: activity.SourceManual},
	}}
	rec := f.do(t, http.MethodPost, "/v1/timeline/suggest-merge", req, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var suggestion reconcile.MergeSuggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suggestion))
	require.True(t, suggestion.CanMerge)
	require.Equal(t, 100, suggestion.Confidence)
	require.Empty(t, f.store.Commands())

	rec = f.do(t, http.MethodGet, "/v1/timeline/mergeable-groups?"+windowQuery(url.Values{"max_gap_seconds": {"60"}}), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups struct {
		Groups [][]activity.UnifiedActivity `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups.Groups, 1)
	require.Len(t, groups.Groups[0], 2)
}

func TestResolveUnknownConflict(t *testing.T) {
	f := newFixture(t)

	req := ResolveRequest{WindowRequest: window(), ConflictID: "overlap:missing", Resolution: "merge"}
	rec := f.do(t, http.MethodPost, "/v1/conflicts/resolve", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req.Resolution = "rewrite"
	rec = f.do(t, http.MethodPost, "/v1/conflicts/resolve", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveGapWithRequestedDetection(t *testing.T) {
	f := newFixture(t)
	eleven := day.Add(11 * time.Hour)
	f.store.AddTimeEntry(activity.TimeEntry{Task: "Email", StartTime: eleven, EndTime: ptr(eleven.Add(30 * time.Minute))})

	rec := f.do(t, http.MethodGet, "/v1/conflicts?"+windowQuery(url.Values{"gap_minimum_seconds": {"60"}}), nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Conflicts []conflict.Conflict `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	var gapID string
	for _, c := range payload.Conflicts {
		if c.Type == conflict.TypeGap {
			gapID = c.ID
		}
	}
	require.Equal(t, "gap|manual:2|manual:3", gapID)

	req := ResolveRequest{WindowRequest: window(), ConflictID: gapID, Resolution: "merge"}
	rec = f.do(t, http.MethodPost, "/v1/conflicts/resolve", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req.GapMinimumSeconds = ptr(int64(60))
	rec = f.do(t, http.MethodPost, "/v1/conflicts/resolve", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res reconcile.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Applied)
	require.Len(t, res.Changes, 2)
	for _, ch := range res.Changes {
		require.Equal(t, reconcile.ActionKeep, ch.Action)
	}
	require.Empty(t, f.store.Commands())

	req.DuplicateThreshold = ptr(-1.0)
	rec = f.do(t, http.MethodPost, "/v1/conflicts/resolve", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoMergeHonoursZeroThreshold(t *testing.T) {
	f := newFixture(t)
	ten := day.Add(10 * time.Hour)
	f.store.AddTimeEntry(activity.TimeEntry{Task: "Write report", StartTime: ten.Add(30 * time.Second), EndTime: ptr(ten.Add(20 * time.Minute))})

	req := AutoMergeRequest{WindowRequest: window(), ThresholdSeconds: ptr(int64(-5))}
	rec := f.do(t, http.MethodPost, "/v1/timeline/auto-merge", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req.ThresholdSeconds = ptr(int64(0))
	rec = f.do(t, http.MethodPost, "/v1/timeline/auto-merge", req, auth.ScopeTimelineWrite)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := f.store.ListTimeEntries(context.Background(), day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, day.Add(9*time.Hour), entries[0].StartTime)
	require.Equal(t, ten, *entries[0].EndTime)
}

func TestAnalyticsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/analytics/daily?date=2025-03-03", nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats analytics.DailyStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, "2025-03-03", stats.Date)
	require.InDelta(t, 60, stats.TotalMinutes, 0.001)
	require.InDelta(t, 25, stats.FocusMinutes, 0.001)
	require.Equal(t, 1, stats.CompletedFocusSessions)

	rec = f.do(t, http.MethodGet, "/v1/analytics/daily?date=03/03/2025", nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/analytics/trends?start=2025-03-01&end=2025-03-07&granularity=month", nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/analytics/trends?start=2025-03-07&end=2025-03-01", nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/analytics/trends?start=2025-03-01&end=2025-03-07", nil, auth.ScopeTimelineRead)
	require.Equal(t, http.StatusOK, rec.Code)

	var trends struct {
		Points []analytics.TrendPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trends))
	require.Len(t, trends.Points, 7)

	rec = f.do(t, http.MethodGet, "/v1/analytics/summary?days=7", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
