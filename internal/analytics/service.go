package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/observability"
)

// streakLookbackDays bounds how far back Summary fetches history for the streak.
const streakLookbackDays = 90

// Snapshotter supplies normalized activities for a window.
type Snapshotter interface {
	Normalize(ctx context.Context, start, end time.Time) ([]activity.UnifiedActivity, error)
}

// TaskSource lists todo items completed inside [start, end).
type TaskSource interface {
	ListCompletedTasks(ctx context.Context, start, end time.Time) ([]CompletedTask, error)
}

// GoalSource lists the active goals.
type GoalSource interface {
	ListGoals(ctx context.Context) ([]Goal, error)
}

// Service fetches a snapshot per report and hands it to the Aggregator.
type Service struct {
	activities Snapshotter
	tasks      TaskSource
	goals      GoalSource
	agg        *Aggregator
}

// NewService wires the analytics service. tasks and goals may be nil.
func NewService(activities Snapshotter, tasks TaskSource, goals GoalSource, agg *Aggregator) *Service {
	if agg == nil {
		agg = NewAggregator(time.UTC)
	}
	return &Service{activities: activities, tasks: tasks, goals: goals, agg: agg}
}

// Aggregator exposes the underlying calculator.
func (s *Service) Aggregator() *Aggregator {
	return s.agg
}

// Snapshot loads every input for [start, end).
func (s *Service) Snapshot(ctx context.Context, start, end time.Time) (Snapshot, error) {
	acts, err := s.activities.Normalize(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Activities: acts}
	if s.tasks != nil {
		if snap.CompletedTasks, err = s.tasks.ListCompletedTasks(ctx, start, end); err != nil {
			return Snapshot{}, fmt.Errorf("list completed tasks: %w", err)
		}
	}
	if s.goals != nil {
		if snap.Goals, err = s.goals.ListGoals(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("list goals: %w", err)
		}
	}
	return snap, nil
}

// DailyStats reports the calendar day containing day.
func (s *Service) DailyStats(ctx context.Context, day time.Time) (DailyStats, error) {
	defer observe("daily", time.Now())
	start, end := s.agg.DayBounds(day)
	snap, err := s.Snapshot(ctx, start, end)
	if err != nil {
		return DailyStats{}, err
	}
	return s.agg.DailyStats(snap, day), nil
}

// HourlyPattern reports the per-hour averages over the trailing days.
func (s *Service) HourlyPattern(ctx context.Context, days int) ([]HourlyPattern, error) {
	defer observe("hourly", time.Now())
	start, end := s.agg.TrailingBounds(days)
	snap, err := s.Snapshot(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.agg.HourlyPattern(snap, days), nil
}

// Heatmap reports every day of year.
func (s *Service) Heatmap(ctx context.Context, year int) ([]HeatmapDay, error) {
	defer observe("heatmap", time.Now())
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, s.agg.loc())
	snap, err := s.Snapshot(ctx, start, start.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	return s.agg.Heatmap(snap, year), nil
}

// WeeklySummary reports the week offset weeks back, fetching the preceding week for comparison.
func (s *Service) WeeklySummary(ctx context.Context, offset int) (WeeklySummary, error) {
	defer observe("weekly", time.Now())
	start, end := s.agg.WeekBounds(offset)
	snap, err := s.Snapshot(ctx, start.AddDate(0, 0, -7), end)
	if err != nil {
		return WeeklySummary{}, err
	}
	return s.agg.WeeklySummary(snap, offset), nil
}

// Insights evaluates the behavioural rules over the trailing days.
func (s *Service) Insights(ctx context.Context, days int) ([]BehavioralInsight, error) {
	defer observe("insights", time.Now())
	start, end := s.agg.TrailingBounds(days)
	snap, err := s.Snapshot(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.agg.Insights(snap), nil
}

// Summary reports headline figures for the trailing windowDays.
func (s *Service) Summary(ctx context.Context, windowDays int) (Summary, error) {
	defer observe("summary", time.Now())
	lookback := windowDays
	if lookback < streakLookbackDays {
		lookback = streakLookbackDays
	}
	start, end := s.agg.TrailingBounds(lookback)
	snap, err := s.Snapshot(ctx, start, end)
	if err != nil {
		return Summary{}, err
	}
	return s.agg.Summary(snap, windowDays), nil
}

// Trends returns a day or week series over [start, end).
func (s *Service) Trends(ctx context.Context, start, end time.Time, granularity Granularity) ([]TrendPoint, error) {
	defer observe("trends", time.Now())
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	snap, err := s.Snapshot(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.agg.Trends(snap, start, end, granularity)
}

func observe(report string, started time.Time) {
	observability.ObserveAnalytics(report, time.Since(started))
}
