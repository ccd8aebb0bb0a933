package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jsonopt/internal/report"
)

var (
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build and show what the optimizer kept",
	Long: `Runs a build and prints, per JSON file, how many keys survived and the size
before and after (raw and gzip), followed by every accessed key.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	names := make([]string, len(report.Formats))
	for i, f := range report.Formats {
		names[i] = string(f)
	}
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format ("+strings.Join(names, ", ")+")")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
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

	stats, err := s.compiler.Run(ctx)
	if err != nil {
		return err
	}
	if s.builds != nil {
		if err := s.builds.Record(ctx, stats); err != nil {
			logger.Warn("Cannot record build", "error", err)
		}
	}

	r, err := report.Build(s.fs, stats, report.Options{
		Accessor:     cfg.AccessorFunctionName,
		ValidateOnly: cfg.ValidateOnly,
		Root:         s.compiler.Options.Context,
	})
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := report.Render(cmd.OutOrStdout(), r, report.Format(reportFormat)); err != nil {
		return err
	}
	if stats.HasErrors() {
		return errBuildFailed
	}
	return nil
}
