package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"jsonopt/internal/config"
	"jsonopt/internal/optimizer"
	"jsonopt/internal/pipeline"
	"jsonopt/internal/storage"
)

// session wires a compiler to the optimizer and, when enabled, the
// persistent cache.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	fs       afero.Fs
	compiler *pipeline.Compiler

	db     *storage.DB
	cache  *storage.ModuleCache
	builds *storage.BuildRepository

	closeLog func()
}

func newSession(cfg *config.Config, logger *slog.Logger, useCache bool) (*session, error) {
	opts, err := cfg.PipelineOptions()
	if err != nil {
		return nil, err
	}
	plugin, err := optimizer.New(optimizer.Options{
		AccessorFunctionName: cfg.AccessorFunctionName,
		ValidateOnly:         cfg.ValidateOnly,
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
	}
	s.compiler = pipeline.NewCompiler(opts, s.fs, logger, plugin)
	optimizer.RegisterLoader(s.compiler)

	if useCache && cfg.Cache.Enabled {
		if err := s.openCache(); err != nil {
			return nil, err
		}
		s.compiler.Cache = s.cache
	}
	return s, nil
}

func (s *session) openCache() error {
	dir, err := s.cfg.CacheDir()
	if err != nil {
		return err
	}
	db, err := storage.Open(dir, s.logger)
	if err != nil {
		return err
	}
	cache, err := storage.NewModuleCache(db, s.cfg.Cache.MemoryEntries)
	if err != nil {
		db.Close()
		return err
	}
	s.db = db
	s.cache = cache
	s.builds = storage.NewBuildRepository(db)
	return nil
}

// build runs one compilation, records it and prints its diagnostics.
func (s *session) build(ctx context.Context, out io.Writer) (*pipeline.Stats, error) {
	stats, err := s.compiler.Run(ctx)
	if err != nil {
		return nil, err
	}
	if s.builds != nil {
		if err := s.builds.Record(ctx, stats); err != nil {
			s.logger.Warn("Cannot record build", "error", err)
		}
	}
	printDiagnostics(out, stats)
	return stats, nil
}

func (s *session) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return errors.Join(errs...)
}

func printDiagnostics(out io.Writer, stats *pipeline.Stats) {
	for _, w := range stats.Warnings {
		fmt.Fprintf(out, "WARNING %s\n", w)
	}
	for _, e := range stats.Errors {
		fmt.Fprintf(out, "ERROR %s\n", e)
	}
}
