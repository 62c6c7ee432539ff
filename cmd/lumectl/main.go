package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "lumectl",
		Short:         "Reconcile and analyse a Lume activity snapshot",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "snapshot.yaml", "YAML snapshot to load")
	flags.StringVar(&opts.start, "start", "", "window start (RFC3339 or YYYY-MM-DD, default: 7 days before --now)")
	flags.StringVar(&opts.end, "end", "", "window end (RFC3339 or YYYY-MM-DD, default: end of the --now day)")
	flags.StringVar(&opts.now, "now", "", "reference time for trailing reports (RFC3339, default: current time)")

	rootCmd.AddCommand(timelineCmd(opts))
	rootCmd.AddCommand(validateCmd(opts))
	rootCmd.AddCommand(conflictsCmd(opts))
	rootCmd.AddCommand(groupsCmd(opts))
	rootCmd.AddCommand(autoMergeCmd(opts))
	rootCmd.AddCommand(analyticsCmd(opts))

	return rootCmd
}
