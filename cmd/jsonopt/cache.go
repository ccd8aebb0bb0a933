package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jsonopt/internal/report"
)

var (
	cacheFormat  string
	historyLimit int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persistent module cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the module cache holds",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached module",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent builds",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheFormat, "format", "human", "Output format (human, json, yaml, toml)")
	historyCmd.Flags().StringVar(&cacheFormat, "format", "human", "Output format (human, json, yaml, toml)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of builds to show")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd, historyCmd)
}

// openCacheSession opens the persistent cache regardless of cache.enabled.
func openCacheSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, closeLog: closeLog}
	if err := s.openCache(); err != nil {
		closeLog()
		return nil, err
	}
	return s, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession()
	if err != nil {
		return err
	}
	defer s.Close()
	ctx, cancel := newContext()
	defer cancel()

	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return err
	}
	if report.Format(cacheFormat) != report.FormatHuman {
		return report.Encode(cmd.OutOrStdout(), stats, report.Format(cacheFormat))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache: %s\n", s.db.Path())
	fmt.Fprintf(out, "  Modules: %d\n", stats.Modules)
	fmt.Fprintf(out, "  Size: %s (%s uncompressed)\n", formatBytes(int(stats.CompressedSize)), formatBytes(int(stats.RawBytes)))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession()
	if err != nil {
		return err
	}
	defer s.Close()
	ctx, cancel := newContext()
	defer cancel()

	if err := s.cache.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Module cache cleared.")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openCacheSession()
	if err != nil {
		return err
	}
	defer s.Close()
	ctx, cancel := newContext()
	defer cancel()

	records, err := s.builds.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if report.Format(cacheFormat) != report.FormatHuman {
		return report.Encode(cmd.OutOrStdout(), struct {
			Builds any `json:"builds" yaml:"builds" toml:"builds"`
		}{records}, report.Format(cacheFormat))
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No builds recorded.")
		return nil
	}
	for _, r := range records {
		status := "✓"
		if r.Errors > 0 {
			status = "✗"
		}
		fmt.Fprintf(out, "%s %s  %s  %d modules, %d warnings, %d errors (%dms)\n",
			status, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.ID,
			r.Modules, r.Warnings, r.Errors, r.FinishedAt.Sub(r.StartedAt).Milliseconds())
	}
	return nil
}
