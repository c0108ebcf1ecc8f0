package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the "memoria stats" subcommand.
func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := a.deps.Store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			out := cmd.OutOrStdout()
			if flags.jsonOut {
				return printJSON(out, stats)
			}
			fmt.Fprintf(out, "Sessions:     %d (%d active)\n", stats.Sessions, stats.ActiveSessions)
			fmt.Fprintf(out, "Observations: %d\n", stats.Observations)
			fmt.Fprintf(out, "Messages:     %d\n", stats.Messages)
			fmt.Fprintf(out, "Schema:       v%d\n", stats.SchemaVersion)

			types := make([]string, 0, len(stats.ByType))
			for t := range stats.ByType {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(out, "  %-12s %d\n", t, stats.ByType[t])
			}
			return nil
		},
	}
}
