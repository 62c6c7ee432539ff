package main

import (
	"github.com/spf13/cobra"

	"github.com/osama1998H/lume-sub000/internal/analytics"
)

func analyticsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Compute productivity reports",
	}
	cmd.AddCommand(dailyCmd(opts))
	cmd.AddCommand(trailingCmd(opts, "hourly", "Average minutes per hour of day", func(s *session, cmd *cobra.Command, days int) (any, error) {
		return s.analytics.HourlyPattern(cmd.Context(), days)
	}))
	cmd.AddCommand(trailingCmd(opts, "summary", "Headline figures and productivity score", func(s *session, cmd *cobra.Command, days int) (any, error) {
		return s.analytics.Summary(cmd.Context(), days)
	}))
	cmd.AddCommand(trailingCmd(opts, "insights", "Behavioural insights", func(s *session, cmd *cobra.Command, days int) (any, error) {
		return s.analytics.Insights(cmd.Context(), days)
	}))
	cmd.AddCommand(weeklyCmd(opts))
	cmd.AddCommand(heatmapCmd(opts))
	cmd.AddCommand(trendsCmd(opts))
	return cmd
}

func dailyCmd(opts *options) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Per-day totals and category breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			day := s.now
			if date != "" {
				if day, err = parseInstant(date, s.loc); err != nil {
					return err
				}
			}
			stats, err := s.analytics.DailyStats(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to report (YYYY-MM-DD, default: --now)")
	return cmd
}

type trailingReport func(s *session, cmd *cobra.Command, days int) (any, error)

func trailingCmd(opts *options, use, short string, report trailingReport) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			out, err := report(s, cmd, days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "trailing window in days, today included")
	return cmd
}

func weeklyCmd(opts *options) *cobra.Command {
	var offset int
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Week summary compared with the week before",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			summary, err := s.analytics.WeeklySummary(cmd.Context(), offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "weeks back from the current week")
	return cmd
}

func heatmapCmd(opts *options) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Per-day intensity for a calendar year",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			if year == 0 {
				year = s.now.Year()
			}
			days, err := s.analytics.Heatmap(cmd.Context(), year)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), days)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default: year of --now)")
	return cmd
}

func trendsCmd(opts *options) *cobra.Command {
	var granularity string
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Day or week series over the window",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := analytics.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			points, err := s.analytics.Trends(cmd.Context(), s.window.Start, s.window.End, g)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), points)
		},
	}
	cmd.Flags().StringVar(&granularity, "granularity", "day", "day or week")
	return cmd
}
