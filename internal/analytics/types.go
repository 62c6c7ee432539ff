// Package analytics derives daily, hourly, weekly and yearly figures from a
// point-in-time activity snapshot.
package analytics

import (
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

// GoalPeriod is the cadence a goal target applies to.
type GoalPeriod string

const (
	GoalDaily  GoalPeriod = "daily"
	GoalWeekly GoalPeriod = "weekly"
)

// CompletedTask is a todo item marked done.
type CompletedTask struct {
	ID          int64     `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// Goal is a tracked-time target. A nil CategoryID counts every manual and automatic minute.
type Goal struct {
	ID            int64      `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	TargetMinutes int64      `json:"target_minutes" yaml:"target_minutes"`
	Period        GoalPeriod `json:"period" yaml:"period"`
	CategoryID    *int64     `json:"category_id,omitempty" yaml:"category_id,omitempty"`
}

// Snapshot is the immutable input to every report.
type Snapshot struct {
	Activities     []activity.UnifiedActivity
	CompletedTasks []CompletedTask
	Goals          []Goal
}

// CategoryBreakdown is one category's share of categorized time.
type CategoryBreakdown struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color,omitempty"`
	Minutes    float64 `json:"minutes"`
	Percentage float64 `json:"percentage"`
}

// DailyStats summarises one calendar day.
type DailyStats struct {
	Date                   string              `json:"date"`
	TotalMinutes           float64             `json:"total_minutes"`
	ManualMinutes          float64             `json:"manual_minutes"`
	AutomaticMinutes       float64             `json:"automatic_minutes"`
	IdleMinutes            float64             `json:"idle_minutes"`
	FocusMinutes           float64             `json:"focus_minutes"`
	BreakMinutes           float64             `json:"break_minutes"`
	FocusSessions          int                 `json:"focus_sessions"`
	CompletedFocusSessions int                 `json:"completed_focus_sessions"`
	CompletedTasks         int                 `json:"completed_tasks"`
	Categories             []CategoryBreakdown `json:"categories"`
}

// HourlyPattern is the average tracked time for one hour of the day.
type HourlyPattern struct {
	Hour           int     `json:"hour"`
	AverageMinutes float64 `json:"average_minutes"`
	Days           int     `json:"days"`
}

// HeatmapBreakdown splits a heatmap day by activity kind.
type HeatmapBreakdown struct {
	Focus   float64 `json:"focus"`
	Apps    float64 `json:"apps"`
	Browser float64 `json:"browser"`
	Manual  float64 `json:"manual"`
}

// HeatmapDay is one cell of the yearly heatmap.
type HeatmapDay struct {
	Date         string           `json:"date"`
	TotalMinutes float64          `json:"total_minutes"`
	Intensity    int              `json:"intensity"`
	Breakdown    HeatmapBreakdown `json:"breakdown"`
}

// DayTotal is the tracked time of one day within a week.
type DayTotal struct {
	Date    string  `json:"date"`
	Weekday string  `json:"weekday"`
	Minutes float64 `json:"minutes"`
}

// WeeklySummary describes one Sunday-start week.
type WeeklySummary struct {
	WeekStart            string              `json:"week_start"`
	WeekEnd              string              `json:"week_end"`
	TotalMinutes         float64             `json:"total_minutes"`
	FocusMinutes         float64             `json:"focus_minutes"`
	PreviousTotalMinutes float64             `json:"previous_total_minutes"`
	ComparisonToPrevious float64             `json:"comparison_to_previous"`
	Days                 []DayTotal          `json:"days"`
	TopDay               *DayTotal           `json:"top_day,omitempty"`
	TopCategories        []CategoryBreakdown `json:"top_categories"`
	GoalAchievement      float64             `json:"goal_achievement"`
	CompletedTasks       int                 `json:"completed_tasks"`
	Insights             []string            `json:"insights"`
}

// InsightType names a behavioural insight rule.
type InsightType string

const (
	InsightPeakHour      InsightType = "peak_hour"
	InsightProductiveDay InsightType = "productive_day"
	InsightCategoryTrend InsightType = "category_trend"
	InsightDistraction   InsightType = "distraction"
	InsightStreak        InsightType = "streak"
	InsightFocusQuality  InsightType = "focus_quality"
)

// BehavioralInsight is one rule-based observation.
type BehavioralInsight struct {
	Type        InsightType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Value       float64     `json:"value"`
}

// Summary holds the headline figures for a trailing window.
type Summary struct {
	WindowDays          int                `json:"window_days"`
	TotalMinutes        float64            `json:"total_minutes"`
	ActiveDays          int                `json:"active_days"`
	DailyAverageMinutes float64            `json:"daily_average_minutes"`
	FocusMinutes        float64            `json:"focus_minutes"`
	FocusSessions       int                `json:"focus_sessions"`
	FocusCompletionRate float64            `json:"focus_completion_rate"`
	CompletedTasks      int                `json:"completed_tasks"`
	CurrentStreak       int                `json:"current_streak"`
	ProductivityScore   int                `json:"productivity_score"`
	TopCategory         *CategoryBreakdown `json:"top_category,omitempty"`
}

// Granularity selects the bucket width of a trend series.
type Granularity string

const (
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Period       string  `json:"period"`
	TotalMinutes float64 `json:"total_minutes"`
	FocusMinutes float64 `json:"focus_minutes"`
	ActiveDays   int     `json:"active_days"`
}
