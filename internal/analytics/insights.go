package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

// Guards for the insight rules. An insight whose guard fails is omitted.
const (
	minPeakHourDays         = 3
	minProductiveDayDays    = 7
	minCategoryTrendMinutes = 60
	minDistractionSessions  = 5
	maxDistractionAverage   = 10 * time.Minute
	minStreakDays           = 3
	minFocusSessions        = 3
)

// Insights evaluates every rule over the whole snapshot.
func (g *Aggregator) Insights(snap Snapshot) []BehavioralInsight {
	out := make([]BehavioralInsight, 0, 6)
	for _, rule := range []func(Snapshot) (BehavioralInsight, bool){
		g.peakHour,
		g.productiveDay,
		g.categoryTrend,
		g.distraction,
		g.streakInsight,
		g.focusQuality,
	} {
		if insight, ok := rule(snap); ok {
			out = append(out, insight)
		}
	}
	return out
}

func (g *Aggregator) activeTracked(snap Snapshot) []activity.UnifiedActivity {
	out := make([]activity.UnifiedActivity, 0, len(snap.Activities))
	for _, a := range snap.Activities {
		if tracked(a) && !a.Idle() && a.Duration > 0 {
			out = append(out, a)
		}
	}
	return out
}

func (g *Aggregator) peakHour(snap Snapshot) (BehavioralInsight, bool) {
	acts := g.activeTracked(snap)
	days := make(map[string]struct{})
	var hours [24]float64
	for _, a := range acts {
		days[g.dateKey(a.StartTime)] = struct{}{}
		g.spreadHours(a, func(_ string, hour int, mins float64) {
			hours[hour] += mins
		})
	}
	if len(days) < minPeakHourDays {
		return BehavioralInsight{}, false
	}
	peak := 0
	for h := range hours {
		if hours[h] > hours[peak] {
			peak = h
		}
	}
	return BehavioralInsight{
		Type:        InsightPeakHour,
		Title:       "Peak productivity hour",
		Description: fmt.Sprintf("You get the most done around %02d:00.", peak),
		Value:       float64(peak),
	}, true
}

func (g *Aggregator) productiveDay(snap Snapshot) (BehavioralInsight, bool) {
	perDay := make(map[string]float64)
	weekdays := make(map[string]time.Weekday)
	for _, a := range g.activeTracked(snap) {
		key := g.dateKey(a.StartTime)
		perDay[key] += minutes(a)
		weekdays[key] = a.StartTime.In(g.loc()).Weekday()
	}
	if len(perDay) < minProductiveDayDays {
		return BehavioralInsight{}, false
	}
	var totals [7]float64
	var counts [7]int
	for key, m := range perDay {
		wd := weekdays[key]
		totals[wd] += m
		counts[wd]++
	}
	best := -1
	var bestAvg float64
	for wd := 0; wd < 7; wd++ {
		if counts[wd] == 0 {
			continue
		}
		if avg := totals[wd] / float64(counts[wd]); best < 0 || avg > bestAvg {
			best, bestAvg = wd, avg
		}
	}
	return BehavioralInsight{
		Type:        InsightProductiveDay,
		Title:       "Most productive day",
		Description: fmt.Sprintf("%s is your most productive day, averaging %s.", time.Weekday(best), FormatMinutes(bestAvg)),
		Value:       round(bestAvg, 1),
	}, true
}

func (g *Aggregator) categoryTrend(snap Snapshot) (BehavioralInsight, bool) {
	cats := newCategoryTally()
	for _, a := range g.activeTracked(snap) {
		cats.add(a, minutes(a))
	}
	if cats.total < minCategoryTrendMinutes {
		return BehavioralInsight{}, false
	}
	top := cats.top(1)[0]
	return BehavioralInsight{
		Type:        InsightCategoryTrend,
		Title:       "Leading category",
		Description: fmt.Sprintf("%s accounts for %.0f%% of your categorized time.", top.Name, top.Percentage),
		Value:       top.Percentage,
	}, true
}

func (g *Aggregator) distraction(snap Snapshot) (BehavioralInsight, bool) {
	type usage struct {
		name     string
		sessions int
		seconds  int64
	}
	byApp := make(map[string]*usage)
	for _, a := range snap.Activities {
		if a.SourceType != activity.SourceAutomatic || a.Idle() {
			continue
		}
		name, ok := activity.AppName(a.Metadata)
		if !ok || name == "" {
			continue
		}
		u, ok := byApp[name]
		if !ok {
			u = &usage{name: name}
			byApp[name] = u
		}
		u.sessions++
		u.seconds += a.Duration
	}

	candidates := make([]*usage, 0)
	for _, u := range byApp {
		avg := time.Duration(u.seconds/int64(u.sessions)) * time.Second
		if u.sessions >= minDistractionSessions && avg < maxDistractionAverage {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return BehavioralInsight{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sessions != candidates[j].sessions {
			return candidates[i].sessions > candidates[j].sessions
		}
		return candidates[i].name < candidates[j].name
	})
	top := candidates[0]
	avgMinutes := float64(top.seconds) / float64(top.sessions) / 60
	return BehavioralInsight{
		Type:        InsightDistraction,
		Title:       "Frequent context switching",
		Description: fmt.Sprintf("You opened %s %d times for about %s each.", top.name, top.sessions, FormatMinutes(math.Max(avgMinutes, 1))),
		Value:       float64(top.sessions),
	}, true
}

func (g *Aggregator) streakInsight(snap Snapshot) (BehavioralInsight, bool) {
	streak := g.Streak(snap)
	if streak < minStreakDays {
		return BehavioralInsight{}, false
	}
	return BehavioralInsight{
		Type:        InsightStreak,
		Title:       "Tracking streak",
		Description: fmt.Sprintf("You have tracked time %d days in a row.", streak),
		Value:       float64(streak),
	}, true
}

func (g *Aggregator) focusQuality(snap Snapshot) (BehavioralInsight, bool) {
	sessions, completed := 0, 0
	for _, a := range snap.Activities {
		meta, ok := focusSession(a)
		if !ok {
			continue
		}
		sessions++
		if meta.Completed {
			completed++
		}
	}
	if sessions < minFocusSessions {
		return BehavioralInsight{}, false
	}
	rate := round(float64(completed)/float64(sessions)*100, 1)
	desc := fmt.Sprintf("You complete %.0f%% of your focus sessions.", rate)
	if rate < 50 {
		desc += " Shorter sessions may help you finish more of them."
	}
	return BehavioralInsight{
		Type:        InsightFocusQuality,
		Title:       "Focus quality",
		Description: desc,
		Value:       rate,
	}, true
}
