package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memoria/internal/memory"
)

// newSearchCmd creates the "memoria search" subcommand.
func newSearchCmd(flags *rootFlags) *cobra.Command {
	var (
		limit    int
		messages bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search observations (or transcripts with --messages)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			query := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if messages {
				msgs, err := a.deps.Search.SearchMessages(cmd.Context(), query, limit)
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				if flags.jsonOut {
					return printJSON(out, msgs)
				}
				if len(msgs) == 0 {
					fmt.Fprintln(out, "No messages found.")
					return nil
				}
				for _, m := range msgs {
					fmt.Fprintf(out, "[%s] %s: %s (%s)\n",
						m.ConversationTitle, m.Role, memory.Truncate(m.Content, 120), m.CreatedAt.Format(timeLayout))
				}
				return nil
			}

			hits, err := a.deps.Search.Search(cmd.Context(), query, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if flags.jsonOut {
				return printJSON(out, hits)
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "No observations found.")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(out, "#%d [%s] %s (%s, %s)\n",
					h.ID, h.Type, memory.Truncate(h.Content, 120), h.Layer, h.CreatedAt.Format(timeLayout))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().BoolVar(&messages, "messages", false, "search conversation transcripts instead")
	return cmd
}

const timeLayout = "2006-01-02 15:04"
