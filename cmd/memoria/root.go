package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memoria/internal/server"
)

// rootFlags are the persistent flags every subcommand can read.
type rootFlags struct {
	configPath string
	dataDir    string
	jsonOut    bool
}

// newRootCmd creates the root memoria command with all subcommands attached.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "memoria",
		Short: "Persistent memory for AI coding sessions",
		Long: "memoria records typed observations grouped into sessions, recalls them\n" +
			"with a layered search and exposes everything as MCP tools.",
		Version:       fmt.Sprintf("memoria %s", server.Version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (.yaml, .yml or .toml); defaults to $MEMORIA_CONFIG")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory holding the database (overrides config)")
	pf.BoolVar(&flags.jsonOut, "json", false, "print results as JSON")

	cmd.AddCommand(
		newServeCmd(flags),
		newSearchCmd(flags),
		newSaveCmd(flags),
		newCaptureCmd(flags),
		newSessionsCmd(flags),
		newContextCmd(flags),
		newStatsCmd(flags),
		newServersCmd(flags),
	)
	return cmd
}
