package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/session"
)

// newSessionsCmd creates the "memoria sessions" command group.
func newSessionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, start and end sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(flags),
		newSessionsStartCmd(flags),
		newSessionsEndCmd(flags),
		newSessionsShowCmd(flags),
	)
	return cmd
}

func newSessionsListCmd(flags *rootFlags) *cobra.Command {
	var (
		limit  int
		active bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently started first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			var list []memory.Session
			if active {
				list = a.deps.Sessions.Active(cmd.Context())
			} else {
				list = a.deps.Sessions.All(cmd.Context(), limit)
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), list)
			}
			printSessions(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", session.DefaultListLimit, "maximum number of sessions")
	cmd.Flags().BoolVar(&active, "active", false, "only sessions that have not ended")
	return cmd
}

func newSessionsStartCmd(flags *rootFlags) *cobra.Command {
	var workspace int64
	cmd := &cobra.Command{
		Use:   "start [title]",
		Short: "Start a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			var ws *int64
			if cmd.Flags().Changed("workspace") {
				ws = &workspace
			}
			sess, err := a.deps.Sessions.Create(cmd.Context(), strings.Join(args, " "), ws)
			if err != nil {
				return fmt.Errorf("sessions start: %w", err)
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), sess)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started session #%d: %s\n", sess.ID, sess.Title)
			return nil
		},
	}
	cmd.Flags().Int64Var(&workspace, "workspace", 0, "workspace reference")
	return cmd
}

func newSessionsEndCmd(flags *rootFlags) *cobra.Command {
	var summary string
	cmd := &cobra.Command{
		Use:   "end <id>",
		Short: "End a session, optionally with a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			sess, err := a.deps.Sessions.End(cmd.Context(), id, summary)
			if err != nil {
				return fmt.Errorf("sessions end: %w", err)
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), sess)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ended session #%d: %s\n", sess.ID, sess.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "what the session accomplished")
	return cmd
}

func newSessionsShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session's observations, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			obs, err := a.deps.Store.GetObservations(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("sessions show: %w", err)
			}
			if flags.jsonOut {
				return printJSON(cmd.OutOrStdout(), obs)
			}
			out := cmd.OutOrStdout()
			if len(obs) == 0 {
				fmt.Fprintln(out, "No observations.")
				return nil
			}
			for _, o := range obs {
				fmt.Fprintf(out, "#%d [%s] %s (%s)\n", o.ID, o.Type, memory.Truncate(o.Content, 120), o.CreatedAt.Format(timeLayout))
			}
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, memory.InvalidArgument("cli", "session id must be a positive integer, got %q", s)
	}
	return id, nil
}

func printSessions(w io.Writer, list []memory.Session) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	for _, s := range list {
		status := "active"
		if !s.Active() {
			status = "ended " + s.EndedAt.Format(timeLayout)
		}
		fmt.Fprintf(w, "#%d %s (started %s, %s)\n", s.ID, s.Title, s.StartedAt.Format(timeLayout), status)
	}
}
