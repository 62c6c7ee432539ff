package api

import (
	"net/http"
	"time"

	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/auth"
)

func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	day := time.Now().In(h.defaults.Location)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseDate(raw, "date", h.defaults.Location)
		if err != nil {
			writeFailure(w, err)
			return
		}
		day = parsed
	}
	stats, err := h.analytics.DailyStats(r.Context(), day)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) hourlyPattern(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	days, err := parseInt(r.URL.Query(), "days", 30)
	if err != nil {
		writeFailure(w, err)
		return
	}
	pattern, err := h.analytics.HourlyPattern(r.Context(), days)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": pattern})
}

func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	year, err := parseInt(r.URL.Query(), "year", time.Now().In(h.defaults.Location).Year())
	if err != nil {
		writeFailure(w, err)
		return
	}
	days, err := h.analytics.Heatmap(r.Context(), year)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "days": days})
}

func (h *Handler) weeklySummary(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	offset, err := parseInt(r.URL.Query(), "offset", 0)
	if err != nil {
		writeFailure(w, err)
		return
	}
	summary, err := h.analytics.WeeklySummary(r.Context(), offset)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	days, err := parseInt(r.URL.Query(), "days", 30)
	if err != nil {
		writeFailure(w, err)
		return
	}
	summary, err := h.analytics.Summary(r.Context(), days)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) insights(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	days, err := parseInt(r.URL.Query(), "days", 30)
	if err != nil {
		writeFailure(w, err)
		return
	}
	insights, err := h.analytics.Insights(r.Context(), days)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeTimelineRead) {
		return
	}
	q := r.URL.Query()
	start, err := parseDate(q.Get("start"), "start", h.defaults.Location)
	if err != nil {
		writeFailure(w, err)
		return
	}
	end, err := parseDate(q.Get("end"), "end", h.defaults.Location)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if end.Before(start) {
		writeFailure(w, analytics.ErrInvalidRange)
		return
	}
	granularity, err := analytics.ParseGranularity(q.Get("granularity"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	points, err := h.analytics.Trends(r.Context(), start, end.AddDate(0, 0, 1), granularity)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"granularity": granularity, "points": points})
}
