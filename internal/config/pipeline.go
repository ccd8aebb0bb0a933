package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"jsonopt/internal/paths"
	"jsonopt/internal/pipeline"
	"jsonopt/internal/version"
)

// resolve makes p absolute, relative to the config directory.
func (c *Config) resolve(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Dir(), p)
	}
	return paths.Resource(p)
}

// ContextDir returns the absolute context directory.
func (c *Config) ContextDir() (string, error) {
	return c.resolve(c.Context)
}

// CacheDir returns the absolute cache directory.
func (c *Config) CacheDir() (string, error) {
	return c.resolve(c.Cache.Dir)
}

// PipelineOptions converts the configuration into compiler options.
// Paths are absolute and slash-separated.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	var opts pipeline.Options

	contextDir, err := c.ContextDir()
	if err != nil {
		return opts, err
	}
	outputDir, err := c.resolve(c.Output.Path)
	if err != nil {
		return opts, err
	}

	opts.Context = contextDir
	opts.Entry = make(map[string]string, len(c.Entry))
	for name, entry := range c.Entry {
		opts.Entry[name] = filepath.ToSlash(entry)
	}
	opts.Output = pipeline.OutputOptions{Path: outputDir, Filename: c.Output.Filename}

	for i, r := range c.Rules {
		re, err := regexp.Compile(r.Test)
		if err != nil {
			return opts, fmt.Errorf("rules[%d].test: %w", i, err)
		}
		rule := pipeline.Rule{Test: re, Type: pipeline.ModuleType(r.Type)}
		if r.Loader != "" {
			rule.Loaders = []string{r.Loader}
		}
		opts.Rules = append(opts.Rules, rule)
	}

	// Anything that changes what the optimizer emits invalidates cached modules.
	opts.CacheVersion = version.Version + "|" + c.AccessorFunctionName + "|" + strconv.FormatBool(c.ValidateOnly)
	return opts, nil
}
