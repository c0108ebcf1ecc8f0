package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memoria/internal/memory"
)

// newSaveCmd creates the "memoria save" subcommand.
func newSaveCmd(flags *rootFlags) *cobra.Command {
	var (
		sessionID int64
		typ       string
		tags      []string
		source    string
	)
	cmd := &cobra.Command{
		Use:   "save <content>",
		Short: "Record one observation",
		Long: "Record one observation. Without --session a new session titled\n" +
			"\"cli\" is created. Without --type the type is inferred from the text.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			content := strings.Join(args, " ")

			obsType := memory.ClassifyObservation(content)
			if typ != "" {
				if obsType, err = memory.ParseObservationType(typ); err != nil {
					return err
				}
			}

			if sessionID == 0 {
				sess, err := a.deps.Sessions.Create(ctx, "cli", nil)
				if err != nil {
					return fmt.Errorf("save: %w", err)
				}
				sessionID = sess.ID
			}

			id, err := a.deps.Store.SaveObservation(ctx, memory.SaveParams{
				SessionID: sessionID,
				Type:      obsType,
				Content:   content,
				Tags:      tags,
				Source:    source,
			})
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}

			if flags.jsonOut {
				obs, err := a.deps.Store.GetObservation(ctx, id)
				if err != nil {
					return fmt.Errorf("save: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), obs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved observation #%d (session=%d, type=%s)\n", id, sessionID, obsType)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&sessionID, "session", "s", 0, "session to record into")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "one of "+strings.Join(memory.TypeNames(), ", "))
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&source, "source", "cli", "provenance of the observation")
	return cmd
}

// newCaptureCmd creates the "memoria capture" subcommand, which reads
// free text from stdin and saves one observation per paragraph.
func newCaptureCmd(flags *rootFlags) *cobra.Command {
	var sessionID int64
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Save each paragraph read from stdin as an observation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			var b strings.Builder
			if _, err := io.Copy(&b, cmd.InOrStdin()); err != nil {
				return fmt.Errorf("capture: reading stdin: %w", err)
			}
			parsed := memory.ParseObservations(b.String())
			if len(parsed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to capture.")
				return nil
			}

			ctx := cmd.Context()
			if sessionID == 0 {
				sess, err := a.deps.Sessions.Create(ctx, "capture", nil)
				if err != nil {
					return fmt.Errorf("capture: %w", err)
				}
				sessionID = sess.ID
			}
			for _, p := range parsed {
				id, err := a.deps.Store.SaveObservation(ctx, memory.SaveParams{
					SessionID: sessionID,
					Type:      p.Type,
					Content:   p.Content,
					Source:    "capture",
				})
				if err != nil {
					return fmt.Errorf("capture: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d [%s] %s\n", id, p.Type, memory.Truncate(p.Content, 80))
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&sessionID, "session", "s", 0, "session to record into")
	return cmd
}
