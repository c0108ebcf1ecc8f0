package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/HendryAvila/memoria/internal/config"
	"github.com/HendryAvila/memoria/internal/inject"
	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/memtools"
	"github.com/HendryAvila/memoria/internal/search"
	"github.com/HendryAvila/memoria/internal/session"
)

// app is the composed set of components one command invocation uses.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	deps   memtools.Deps
}

// loadConfig resolves configuration and applies flag overrides.
func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr so they
// never interleave with the stdio transport on stdout.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.Log.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openApp loads config, opens the store and wires every component. The
// returned cleanup closes the store and is always non-nil.
func openApp(flags *rootFlags, stderr io.Writer) (*app, func(), error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, noop, err
	}
	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)

	store, err := memory.New(cfg.Memory())
	if err != nil {
		return nil, noop, fmt.Errorf("opening memory store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("memory store close", "error", err)
		}
	}

	engine, err := search.New(store, cfg.SearchEngine(), logger)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating search engine: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		deps: memtools.Deps{
			Store:    store,
			Sessions: session.NewManager(store, logger),
			Search:   engine,
			Injector: inject.New(engine,
				inject.WithTimeout(cfg.Context.Timeout.Std()),
				inject.WithLogger(logger),
			),
		},
	}, cleanup, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
