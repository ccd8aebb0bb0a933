package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"jsonopt/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever a file under the context directory changes",
	Long: `Builds once, then watches the context directory and rebuilds after each
burst of changes. Unchanged modules are reused between builds.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx, cancel := newContext()
	defer cancel()

	s, err := newSession(cfg, logger, true)
	if err != nil {
		return err
	}
	defer s.Close()

	root := s.compiler.Options.Context
	rebuild := func(ctx context.Context) {
		start := time.Now()
		stats, err := s.build(ctx, cmd.ErrOrStderr())
		if err != nil {
			logger.Warn("Build interrupted", "error", err)
			return
		}
		printSummary(cmd, stats, root, time.Since(start))
	}
	rebuild(ctx)

	w, err := watcher.New(root, watcher.Config{
		DebounceMs: cfg.Watch.DebounceMs,
		Ignore:     cfg.Watch.Ignore,
	}, logger, func(ctx context.Context, events []watcher.Event) {
		logger.Info("Changes detected, rebuilding", "files", len(events))
		rebuild(ctx)
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
