package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
)

func timelineCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Print the normalized timeline for the window",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			acts, err := s.normalizer.Normalize(cmd.Context(), s.window.Start, s.window.End)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), acts)
		},
	}
}

func validateCmd(opts *options) *cobra.Command {
	var onlyFlagged bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every activity in the window",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			acts, err := s.normalizer.Normalize(cmd.Context(), s.window.Start, s.window.End)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s.validator.ValidateAll(cmd.Context(), acts, onlyFlagged))
		},
	}
	cmd.Flags().BoolVar(&onlyFlagged, "only-flagged", false, "omit activities with no errors or warnings")
	return cmd
}

func conflictsCmd(opts *options) *cobra.Command {
	var (
		detect   conflict.Options
		unseen   bool
		seenFile string
	)
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect overlaps, duplicates and gaps in the window",
		Long: `Detects conflicts in the window. With --unseen only conflicts not reported
by an earlier --unseen run are printed, and every detected conflict is then
recorded in the seen file (default: <snapshot>.seen.yaml).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			acts, err := s.normalizer.Normalize(cmd.Context(), s.window.Start, s.window.End)
			if err != nil {
				return err
			}
			found := conflict.NewDetector().Detect(acts, detect)
			if unseen {
				if seenFile == "" {
					seenFile = seenPath(opts.file)
				}
				cache, err := loadSeen(seenFile)
				if err != nil {
					return err
				}
				fresh := cache.FilterUnseen(found)
				cache.Mark(found...)
				if err := saveSeen(seenFile, cache); err != nil {
					return err
				}
				found = fresh
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"conflicts": found,
				"summary":   conflict.Summary(found),
			})
		},
	}
	cmd.Flags().Float64Var(&detect.DuplicateThreshold, "threshold", conflict.DefaultDuplicateThreshold, "minimum duplicate similarity (0-100)")
	cmd.Flags().DurationVar(&detect.DuplicateTolerance, "tolerance", conflict.DefaultDuplicateTolerance, "start-time window for duplicates")
	cmd.Flags().DurationVar(&detect.GapMinimum, "gap-minimum", 5*time.Minute, "smallest gap to report (0 disables)")
	cmd.Flags().BoolVar(&unseen, "unseen", false, "print only conflicts not reported by an earlier --unseen run")
	cmd.Flags().StringVar(&seenFile, "seen-file", "", "notification record used by --unseen")
	return cmd
}

func groupsCmd(opts *options) *cobra.Command {
	var maxGap int64
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List runs of activities that could be merged",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			acts, err := s.normalizer.Normalize(cmd.Context(), s.window.Start, s.window.End)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s.engine.FindMergeableGroups(acts, maxGap))
		},
	}
	cmd.Flags().Int64Var(&maxGap, "max-gap", 60, "largest gap in seconds inside a group")
	return cmd
}

func autoMergeCmd(opts *options) *cobra.Command {
	var threshold int64
	cmd := &cobra.Command{
		Use:   "auto-merge",
		Short: "Merge close same-source runs and print the resulting changes",
		Long: `Runs the auto-merge command against the loaded snapshot. The snapshot
file itself is never rewritten; the printed changes show what a write-back
would apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 {
				return fmt.Errorf("--threshold must not be negative")
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			res, err := s.commander().AutoMerge(cmd.Context(), reconcile.AutoMergeCommand{
				Window:           s.window,
				ThresholdSeconds: threshold,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Int64Var(&threshold, "threshold", 60, "largest gap in seconds bridged by a merge")
	return cmd
}
