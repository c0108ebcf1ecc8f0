package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memoria/internal/server"
)

// newServersCmd creates the "memoria servers" subcommand. It lists the
// external servers the config describes, validated through the same
// registry the MCP server keeps.
func newServersCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List external MCP servers described in the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			reg := server.NewRegistry()
			if err := reg.Replace(cfg.ExternalServers); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			list := reg.List()
			if flags.jsonOut {
				return printJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No external servers configured.")
				return nil
			}
			for _, es := range list {
				state := "disabled"
				if es.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(out, "%s\t%s\t%s %v\n", es.Name, state, es.Command, es.Args)
			}
			return nil
		},
	}
}
