package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newContextCmd creates the "memoria context" subcommand. It prints the
// block that would be prepended to a chat turn for the given utterance.
func newContextCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "context <utterance>",
		Short: "Show the memory block injected for an utterance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			block := a.deps.Injector.BuildContext(cmd.Context(), strings.Join(args, " "))
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"context": block, "empty": block == ""})
			}
			if block == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "No relevant observations.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), block)
			return nil
		},
	}
}
