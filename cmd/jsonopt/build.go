package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"jsonopt/internal/paths"
	"jsonopt/internal/pipeline"
)

var (
	buildNoCache bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Bundle the project and optimize its JSON files",
	Long: `Compiles every entry, replaces accessor calls with indices and emits each
JSON file as an array of the keys in use. Exits with status 1 when the build
reports errors.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Do not read or write the persistent module cache")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	s, err := newSession(cfg, logger, !buildNoCache)
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	stats, err := s.build(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	printSummary(cmd, stats, s.compiler.Options.Context, time.Since(start))
	if stats.HasErrors() {
		return errBuildFailed
	}
	return nil
}

func printSummary(cmd *cobra.Command, stats *pipeline.Stats, root string, took time.Duration) {
	out := cmd.OutOrStdout()
	assets := make([]string, 0, len(stats.Assets))
	for name := range stats.Assets {
		assets = append(assets, name)
	}
	sort.Strings(assets)
	for _, name := range assets {
		fmt.Fprintf(out, "  %s (%s)\n", paths.Display(name, root), formatBytes(len(stats.Assets[name])))
	}

	status := "✓"
	if stats.HasErrors() {
		status = "✗"
	}
	fmt.Fprintf(out, "%s %d modules, %d warnings, %d errors in %dms\n",
		status, len(stats.Modules), len(stats.Warnings), len(stats.Errors), took.Milliseconds())
}

// formatBytes formats byte size in human-readable format
func formatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
