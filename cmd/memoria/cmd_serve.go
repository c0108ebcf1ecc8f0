package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memoria/internal/config"
	"github.com/HendryAvila/memoria/internal/server"
)

// newServeCmd creates the "memoria serve" subcommand.
func newServeCmd(flags *rootFlags) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: "Serve memoria's tools over MCP. The default transport is stdio;\n" +
			"--http serves the streamable HTTP transport instead.\n\n" +
			"Add to your AI tool's MCP config:\n\n" +
			"  {\n" +
			"    \"mcpServers\": {\n" +
			"      \"memoria\": { \"command\": \"memoria\", \"args\": [\"serve\"] }\n" +
			"    }\n" +
			"  }",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			if httpAddr == "" {
				httpAddr = a.cfg.Server.HTTPAddr
			}

			srv := server.New(a.deps, server.Options{
				Logger:         a.logger,
				WorkerPoolSize: a.cfg.Server.WorkerPoolSize,
				External:       a.cfg.ExternalServers,
			})
			if err := srv.Start(); err != nil {
				return err
			}
			defer srv.Stop()

			// Graceful shutdown on interrupt.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if path := configPath(flags); path != "" {
				go watchExternal(ctx, path, srv, a)
			}

			if httpAddr != "" {
				return srv.ListenAndServe(ctx, httpAddr)
			}
			return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

func configPath(flags *rootFlags) string {
	if flags.configPath != "" {
		return flags.configPath
	}
	return os.Getenv("MEMORIA_CONFIG")
}

// watchExternal keeps the external server registry in sync with the
// config file while the server runs. Other settings need a restart.
func watchExternal(ctx context.Context, path string, srv *server.Server, a *app) {
	err := config.Watch(ctx, path, a.logger, func(cfg config.Config) {
		if err := srv.Registry().Replace(cfg.ExternalServers); err != nil {
			a.logger.Warn("external servers not updated", "error", err)
			return
		}
		a.logger.Info("external servers updated", "count", srv.Registry().Len())
	})
	if err != nil {
		a.logger.Warn("config watch disabled", "path", path, "error", err)
	}
}
