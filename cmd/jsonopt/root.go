package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jsonopt/internal/config"
	"jsonopt/internal/slogutil"
	"jsonopt/internal/version"
)

var (
	configPath string
	verbosity  int
	quiet      bool
	logFormat  string

	logFile          string
	accessorOverride string
	validateOnly     bool
)

var rootCmd = &cobra.Command{
	Use:   "jsonopt",
	Short: "jsonopt - JSON access optimizer",
	Long: `jsonopt bundles a JavaScript project and shrinks the JSON files it imports.

Every call of the accessor function with a string literal key is replaced by a
numeric index, and each JSON file is emitted as an array holding only the keys
the code reads.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("jsonopt version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./"+config.FileName+")")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logs")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (human, json); overrides the config")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append logs to this file")
	rootCmd.PersistentFlags().StringVar(&accessorOverride, "accessor", "", "Accessor function name; overrides the config")
	rootCmd.PersistentFlags().BoolVar(&validateOnly, "validate-only", false, "Report key problems without rewriting anything")
}

// errBuildFailed signals that diagnostics were already printed.
var errBuildFailed = errors.New("build failed")

func exitCode(err error) int {
	if errors.Is(err, errBuildFailed) {
		return 1
	}
	return 2
}

// loadConfig loads the --config file or the one in the working directory.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFromPath(configPath)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg, err = config.LoadConfig(cwd)
	}
	if err != nil {
		return nil, err
	}
	if accessorOverride != "" {
		cfg.AccessorFunctionName = accessorOverride
	}
	if validateOnly {
		cfg.ValidateOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to stderr, and to --log-file when given. Flags win over
// the config: without -v or -q the configured level applies.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	logger := slogutil.NewLoggerWithFormat(os.Stderr, level, format)
	if logFile == "" {
		return logger, func() {}, nil
	}

	fileLogger, f, err := slogutil.NewFileLogger(logFile, level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	tee := slogutil.NewTeeLogger(logger.Handler(), fileLogger.Handler())
	return tee, func() { f.Close() }, nil
}

// newContext is cancelled on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
