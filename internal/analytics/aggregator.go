package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
)

const (
	dateLayout          = "2006-01-02"
	dailyTopCategories  = 10
	weeklyTopCategories = 5
	defaultWindowDays   = 30
)

var (
	// ErrInvalidGranularity is returned by Trends for unknown bucket widths.
	ErrInvalidGranularity = errors.New("granularity must be day or week")
	// ErrInvalidRange is returned when a report window ends before it starts.
	ErrInvalidRange = errors.New("end must not be before start")
)

// Aggregator computes reports over a Snapshot. Calendar days are taken in
// Location (UTC when nil) and an activity belongs to the day it starts on.
type Aggregator struct {
	Location *time.Location
	Now      func() time.Time
}

// NewAggregator constructs an Aggregator for loc.
func NewAggregator(loc *time.Location) *Aggregator {
	return &Aggregator{Location: loc}
}

func (g *Aggregator) loc() *time.Location {
	if g == nil || g.Location == nil {
		return time.UTC
	}
	return g.Location
}

func (g *Aggregator) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().In(g.loc())
	}
	return time.Now().In(g.loc())
}

func (g *Aggregator) midnight(t time.Time) time.Time {
	t = t.In(g.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc())
}

func (g *Aggregator) dateKey(t time.Time) string {
	return t.In(g.loc()).Format(dateLayout)
}

func (g *Aggregator) weekStart(t time.Time) time.Time {
	d := g.midnight(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// DayBounds returns [midnight, next midnight) of day.
func (g *Aggregator) DayBounds(day time.Time) (time.Time, time.Time) {
	start := g.midnight(day)
	return start, start.AddDate(0, 0, 1)
}

// TrailingBounds returns the window of the last days calendar days, today included.
func (g *Aggregator) TrailingBounds(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = defaultWindowDays
	}
	today := g.midnight(g.now())
	return today.AddDate(0, 0, -(days - 1)), today.AddDate(0, 0, 1)
}

// WeekBounds returns the Sunday-start week offset weeks before the current one.
func (g *Aggregator) WeekBounds(offset int) (time.Time, time.Time) {
	if offset < 0 {
		offset = 0
	}
	start := g.weekStart(g.now()).AddDate(0, 0, -7*offset)
	return start, start.AddDate(0, 0, 7)
}

func minutes(a activity.UnifiedActivity) float64 {
	return float64(a.Duration) / 60
}

// tracked reports whether a counts toward total tracked time.
func tracked(a activity.UnifiedActivity) bool {
	return a.SourceType == activity.SourceManual || a.SourceType == activity.SourceAutomatic
}

func focusSession(a activity.UnifiedActivity) (activity.PomodoroMetadata, bool) {
	if a.ActivityType != activity.TypePomodoroFocus {
		return activity.PomodoroMetadata{}, false
	}
	meta, _ := a.Metadata.(activity.PomodoroMetadata)
	return meta, true
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// DailyStats summarises the calendar day containing day.
func (g *Aggregator) DailyStats(snap Snapshot, day time.Time) DailyStats {
	start, end := g.DayBounds(day)
	stats := DailyStats{Date: start.Format(dateLayout)}
	cats := newCategoryTally()

	for _, a := range snap.Activities {
		if !within(a.StartTime, start, end) {
			continue
		}
		m := minutes(a)
		switch a.SourceType {
		case activity.SourceManual:
			stats.ManualMinutes += m
		case activity.SourceAutomatic:
			stats.AutomaticMinutes += m
			if a.Idle() {
				stats.IdleMinutes += m
			}
		case activity.SourcePomodoro:
			if meta, ok := focusSession(a); ok {
				stats.FocusMinutes += m
				stats.FocusSessions++
				if meta.Completed {
					stats.CompletedFocusSessions++
				}
			} else {
				stats.BreakMinutes += m
			}
			continue
		}
		cats.add(a, m)
	}
	stats.TotalMinutes = stats.ManualMinutes + stats.AutomaticMinutes
	stats.Categories = cats.top(dailyTopCategories)
	stats.CompletedTasks = countTasks(snap.CompletedTasks, start, end)
	return stats
}

// HourlyPattern averages tracked minutes per hour over the trailing days. An
// activity's minutes are spread over the clock hours it covers. A day only enters
// an hour's average when it has time in that hour.
func (g *Aggregator) HourlyPattern(snap Snapshot, days int) []HourlyPattern {
	start, end := g.TrailingBounds(days)
	perDay := make(map[string]*[24]float64)
	for _, a := range snap.Activities {
		if !tracked(a) || !within(a.StartTime, start, end) {
			continue
		}
		g.spreadHours(a, func(key string, hour int, mins float64) {
			hours, ok := perDay[key]
			if !ok {
				hours = &[24]float64{}
				perDay[key] = hours
			}
			hours[hour] += mins
		})
	}

	out := make([]HourlyPattern, 24)
	for h := range out {
		out[h].Hour = h
		var sum float64
		for _, hours := range perDay {
			if hours[h] > 0 {
				sum += hours[h]
				out[h].Days++
			}
		}
		if out[h].Days > 0 {
			out[h].AverageMinutes = round(sum/float64(out[h].Days), 2)
		}
	}
	return out
}

// spreadHours hands add the share of a's minutes falling in each local clock hour,
// keyed by that hour's calendar day. Shares are proportional to wall time.
func (g *Aggregator) spreadHours(a activity.UnifiedActivity, add func(key string, hour int, mins float64)) {
	total := minutes(a)
	cur, end := a.StartTime.In(g.loc()), a.EndTime.In(g.loc())
	span := end.Sub(cur)
	if span <= 0 {
		add(g.dateKey(cur), cur.Hour(), total)
		return
	}
	for cur.Before(end) {
		next := time.Date(cur.Year(), cur.Month(), cur.Day(), cur.Hour()+1, 0, 0, 0, g.loc())
		if !next.After(cur) {
			next = cur.Add(time.Hour)
		}
		if next.After(end) {
			next = end
		}
		add(g.dateKey(cur), cur.Hour(), total*float64(next.Sub(cur))/float64(span))
		cur = next
	}
}

// Heatmap returns one cell per date of year.
func (g *Aggregator) Heatmap(snap Snapshot, year int) []HeatmapDay {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, g.loc())
	end := start.AddDate(1, 0, 0)

	cells := make(map[string]*HeatmapBreakdown)
	for _, a := range snap.Activities {
		if !within(a.StartTime, start, end) {
			continue
		}
		key := g.dateKey(a.StartTime)
		b, ok := cells[key]
		if !ok {
			b = &HeatmapBreakdown{}
			cells[key] = b
		}
		m := minutes(a)
		switch a.ActivityType {
		case activity.TypeTimeEntry:
			b.Manual += m
		case activity.TypeApp:
			b.Apps += m
		case activity.TypeBrowser:
			b.Browser += m
		case activity.TypePomodoroFocus:
			b.Focus += m
		}
	}

	out := make([]HeatmapDay, 0, 366)
	var peak float64
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		day := HeatmapDay{Date: d.Format(dateLayout)}
		if b, ok := cells[day.Date]; ok {
			day.Breakdown = *b
			day.TotalMinutes = b.Manual + b.Apps + b.Browser + b.Focus
		}
		if day.TotalMinutes > peak {
			peak = day.TotalMinutes
		}
		out = append(out, day)
	}
	for i := range out {
		out[i].Intensity = Intensity(out[i].TotalMinutes, peak)
	}
	return out
}

// Intensity buckets total against the year's peak day: 0 for no time, then
// 1 up to 20%, 2 up to 40%, 3 up to 70% and 4 above.
func Intensity(total, peak float64) int {
	if total <= 0 || peak <= 0 {
		return 0
	}
	ratio := total / peak
	switch {
	case ratio <= 0.2:
		return 1
	case ratio <= 0.4:
		return 2
	case ratio <= 0.7:
		return 3
	}
	return 4
}

// WeeklySummary reports the Sunday-start week offset weeks back from the current one.
func (g *Aggregator) WeeklySummary(snap Snapshot, offset int) WeeklySummary {
	start, end := g.WeekBounds(offset)
	prevStart := start.AddDate(0, 0, -7)

	w := WeeklySummary{
		WeekStart: start.Format(dateLayout),
		WeekEnd:   end.AddDate(0, 0, -1).Format(dateLayout),
		Days:      make([]DayTotal, 7),
	}
	index := make(map[string]int, 7)
	for i := range w.Days {
		d := start.AddDate(0, 0, i)
		w.Days[i] = DayTotal{Date: d.Format(dateLayout), Weekday: d.Weekday().String()}
		index[w.Days[i].Date] = i
	}

	cats := newCategoryTally()
	for _, a := range snap.Activities {
		switch {
		case within(a.StartTime, start, end):
			if _, ok := focusSession(a); ok {
				w.FocusMinutes += minutes(a)
			}
			if !tracked(a) {
				continue
			}
			m := minutes(a)
			w.TotalMinutes += m
			w.Days[index[g.dateKey(a.StartTime)]].Minutes += m
			cats.add(a, m)
		case within(a.StartTime, prevStart, start) && tracked(a):
			w.PreviousTotalMinutes += minutes(a)
		}
	}

	for i := range w.Days {
		if w.Days[i].Minutes > 0 && (w.TopDay == nil || w.Days[i].Minutes > w.TopDay.Minutes) {
			top := w.Days[i]
			w.TopDay = &top
		}
	}
	w.TopCategories = cats.top(weeklyTopCategories)
	w.ComparisonToPrevious = PercentChange(w.TotalMinutes, w.PreviousTotalMinutes)
	w.GoalAchievement = g.goalAchievement(snap, start)
	w.CompletedTasks = countTasks(snap.CompletedTasks, start, end)
	w.Insights = weeklyInsights(w)
	return w
}

// PercentChange returns (current-previous)/previous*100, or 0 when previous is 0.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return round((current-previous)/previous*100, 1)
}

// goalAchievement scores each goal in [0,1]: weekly goals by whether the week
// met the target, daily goals by the share of days that met it.
func (g *Aggregator) goalAchievement(snap Snapshot, start time.Time) float64 {
	goals := make([]Goal, 0, len(snap.Goals))
	for _, goal := range snap.Goals {
		if goal.TargetMinutes > 0 {
			goals = append(goals, goal)
		}
	}
	if len(goals) == 0 {
		return 0
	}

	end := start.AddDate(0, 0, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		index[start.AddDate(0, 0, i).Format(dateLayout)] = i
	}
	var score float64
	for _, goal := range goals {
		var perDay [7]float64
		for _, a := range snap.Activities {
			if !tracked(a) || !within(a.StartTime, start, end) {
				continue
			}
			if goal.CategoryID != nil && (a.CategoryID == nil || *a.CategoryID != *goal.CategoryID) {
				continue
			}
			perDay[index[g.dateKey(a.StartTime)]] += minutes(a)
		}
		target := float64(goal.TargetMinutes)
		switch goal.Period {
		case GoalDaily:
			met := 0
			for _, m := range perDay {
				if m >= target {
					met++
				}
			}
			score += float64(met) / 7
		default:
			var sum float64
			for _, m := range perDay {
				sum += m
			}
			if sum >= target {
				score++
			}
		}
	}
	return round(score/float64(len(goals))*100, 1)
}

func weeklyInsights(w WeeklySummary) []string {
	if w.TotalMinutes == 0 {
		return []string{"No activity tracked this week."}
	}
	out := make([]string, 0, 4)
	pct := int(math.Round(math.Abs(w.ComparisonToPrevious)))
	switch {
	case w.ComparisonToPrevious > 10:
		out = append(out, fmt.Sprintf("Great job! You tracked %d%% more time than last week.", pct))
	case w.ComparisonToPrevious < -10:
		out = append(out, fmt.Sprintf("You tracked %d%% less time than last week.", pct))
	case w.PreviousTotalMinutes > 0:
		out = append(out, "Your tracked time is consistent with last week.")
	}
	if w.TopDay != nil {
		out = append(out, fmt.Sprintf("Your most productive day was %s with %s.", w.TopDay.Weekday, FormatMinutes(w.TopDay.Minutes)))
	}
	if len(w.TopCategories) > 0 {
		top := w.TopCategories[0]
		out = append(out, fmt.Sprintf("Most of your time went to %s (%s).", top.Name, FormatMinutes(top.Minutes)))
	}
	if w.GoalAchievement >= 80 {
		out = append(out, "You achieved most of your goals this week.")
	}
	return out
}

// FormatMinutes renders minutes as "1h 30m" or "45m".
func FormatMinutes(m float64) string {
	total := int(math.Round(m))
	if h := total / 60; h > 0 {
		return fmt.Sprintf("%dh %dm", h, total%60)
	}
	return fmt.Sprintf("%dm", total)
}

// ProductivityScore combines average daily minutes (40 points at 240 minutes),
// focus completion rate (30 points at 100%) and streak (30 points at 30 days).
func ProductivityScore(dailyAvgMinutes, focusCompletionRate float64, streakDays int) int {
	timeScore := clamp(dailyAvgMinutes/240*40, 0, 40)
	focusScore := clamp(focusCompletionRate/100*30, 0, 30)
	streakScore := clamp(float64(streakDays)/30*30, 0, 30)
	return int(math.Round(timeScore + focusScore + streakScore))
}

// Streak counts consecutive active days ending today, or ending at the most
// recent active day when today has nothing yet.
func (g *Aggregator) Streak(snap Snapshot) int {
	today := g.dateKey(g.now())
	active := make(map[string]struct{})
	latest := ""
	for _, a := range snap.Activities {
		if a.Duration <= 0 || a.Idle() {
			continue
		}
		key := g.dateKey(a.StartTime)
		if key > today {
			continue
		}
		active[key] = struct{}{}
		if key > latest {
			latest = key
		}
	}
	if latest == "" {
		return 0
	}

	day, err := time.ParseInLocation(dateLayout, latest, g.loc())
	if err != nil {
		return 0
	}
	count := 0
	for {
		if _, ok := active[day.Format(dateLayout)]; !ok {
			return count
		}
		count++
		day = day.AddDate(0, 0, -1)
	}
}

// Summary reports headline figures for the trailing windowDays.
func (g *Aggregator) Summary(snap Snapshot, windowDays int) Summary {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	start, end := g.TrailingBounds(windowDays)
	s := Summary{WindowDays: windowDays}

	perDay := make(map[string]float64)
	cats := newCategoryTally()
	completed := 0
	for _, a := range snap.Activities {
		if !within(a.StartTime, start, end) {
			continue
		}
		if meta, ok := focusSession(a); ok {
			s.FocusMinutes += minutes(a)
			s.FocusSessions++
			if meta.Completed {
				completed++
			}
			continue
		}
		if !tracked(a) {
			continue
		}
		m := minutes(a)
		s.TotalMinutes += m
		perDay[g.dateKey(a.StartTime)] += m
		cats.add(a, m)
	}
	for _, m := range perDay {
		if m > 0 {
			s.ActiveDays++
		}
	}
	if s.ActiveDays > 0 {
		s.DailyAverageMinutes = round(s.TotalMinutes/float64(s.ActiveDays), 1)
	}
	if s.FocusSessions > 0 {
		s.FocusCompletionRate = round(float64(completed)/float64(s.FocusSessions)*100, 1)
	}
	if top := cats.top(1); len(top) == 1 {
		s.TopCategory = &top[0]
	}
	s.CompletedTasks = countTasks(snap.CompletedTasks, start, end)
	s.CurrentStreak = g.Streak(snap)
	s.ProductivityScore = ProductivityScore(s.DailyAverageMinutes, s.FocusCompletionRate, s.CurrentStreak)
	return s
}

// ParseGranularity validates a trend bucket width. Empty selects day.
func ParseGranularity(value string) (Granularity, error) {
	switch Granularity(value) {
	case "", GranularityDay:
		return GranularityDay, nil
	case GranularityWeek:
		return GranularityWeek, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, value)
}

// Trends buckets tracked and focus minutes starting in [start, end). Week
// buckets are Sunday-start and labelled by their first day.
func (g *Aggregator) Trends(snap Snapshot, start, end time.Time, granularity Granularity) ([]TrendPoint, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	bucketOf := g.midnight
	step := 1
	switch granularity {
	case "", GranularityDay:
	case GranularityWeek:
		bucketOf = g.weekStart
		step = 7
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, granularity)
	}

	points := make([]TrendPoint, 0)
	index := make(map[string]int)
	for b := bucketOf(start); b.Before(end); b = b.AddDate(0, 0, step) {
		key := b.Format(dateLayout)
		index[key] = len(points)
		points = append(points, TrendPoint{Period: key})
	}

	activeDays := make(map[string]map[string]struct{})
	for _, a := range snap.Activities {
		if !within(a.StartTime, start, end) {
			continue
		}
		i, ok := index[bucketOf(a.StartTime).Format(dateLayout)]
		if !ok {
			continue
		}
		if _, focus := focusSession(a); focus {
			points[i].FocusMinutes += minutes(a)
			continue
		}
		if !tracked(a) {
			continue
		}
		points[i].TotalMinutes += minutes(a)
		if a.Duration > 0 {
			days, ok := activeDays[points[i].Period]
			if !ok {
				days = make(map[string]struct{})
				activeDays[points[i].Period] = days
			}
			days[g.dateKey(a.StartTime)] = struct{}{}
		}
	}
	for i := range points {
		points[i].ActiveDays = len(activeDays[points[i].Period])
	}
	return points, nil
}

func countTasks(tasks []CompletedTask, start, end time.Time) int {
	n := 0
	for _, t := range tasks {
		if within(t.CompletedAt, start, end) {
			n++
		}
	}
	return n
}

type categoryTally struct {
	byID  map[int64]*CategoryBreakdown
	total float64
}

func newCategoryTally() *categoryTally {
	return &categoryTally{byID: make(map[int64]*CategoryBreakdown)}
}

func (c *categoryTally) add(a activity.UnifiedActivity, m float64) {
	if a.CategoryID == nil {
		return
	}
	entry, ok := c.byID[*a.CategoryID]
	if !ok {
		entry = &CategoryBreakdown{CategoryID: *a.CategoryID, Name: a.CategoryName, Color: a.CategoryColor}
		c.byID[*a.CategoryID] = entry
	}
	entry.Minutes += m
	c.total += m
}

// top returns the n largest categories with percentages of the whole tally.
func (c *categoryTally) top(n int) []CategoryBreakdown {
	out := make([]CategoryBreakdown, 0, len(c.byID))
	for _, entry := range c.byID {
		e := *entry
		if c.total > 0 {
			e.Percentage = round(e.Minutes/c.total*100, 1)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
