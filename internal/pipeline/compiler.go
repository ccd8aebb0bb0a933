// Package pipeline is the host build pipeline: it discovers the module graph
// from entry points, runs loaders, parses scripts with tree-sitter, exposes
// hooks to plugins, rebuilds modules on request and emits bundles.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"jsonopt/internal/slogutil"
)

// Plugin extends a compiler by tapping its hooks.
type Plugin interface {
	Apply(c *Compiler)
}

// CompilationHook runs once for every new compilation, before any module
// is built.
type CompilationHook func(c *Compilation, f *ModuleFactory)

// CompilerHooks are the extension points of a Compiler.
type CompilerHooks struct {
	ThisCompilation Hook[CompilationHook]
}

// OutputOptions controls emission.
type OutputOptions struct {
	Path string
	// Filename may contain [name], replaced by the entry name.
	Filename string
}

// Options configures a Compiler.
type Options struct {
	// Context is the directory relative entry paths resolve against.
	Context string
	// Entry maps entry names to module paths.
	Entry  map[string]string
	Rules  []Rule
	Output OutputOptions
	// CacheVersion is mixed into every module hash.
	CacheVersion string
}

// Compiler runs compilations. Modules are kept between runs so unchanged
// modules are not rebuilt (watch mode).
type Compiler struct {
	Options Options
	FS      afero.Fs
	Hooks   CompilerHooks
	Cache   Cache
	Logger  *slog.Logger

	loadersMu sync.RWMutex
	loaders   map[string]LoaderFunc

	runMu     sync.Mutex
	modulesMu sync.Mutex
	modules   map[string]*Module
}

// NewCompiler creates a compiler over fs and applies plugins in order.
func NewCompiler(opts Options, fs afero.Fs, logger *slog.Logger, plugins ...Plugin) *Compiler {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if opts.Output.Filename == "" {
		opts.Output.Filename = "[name].js"
	}
	c := &Compiler{
		Options: opts,
		FS:      fs,
		Logger:  logger,
		loaders: make(map[string]LoaderFunc),
		modules: make(map[string]*Module),
	}
	for _, p := range plugins {
		p.Apply(c)
	}
	return c
}

// RegisterLoader makes fn available to rules under name.
func (c *Compiler) RegisterLoader(name string, fn LoaderFunc) {
	c.loadersMu.Lock()
	defer c.loadersMu.Unlock()
	c.loaders[name] = fn
}

func (c *Compiler) loader(name string) (LoaderFunc, bool) {
	c.loadersMu.RLock()
	defer c.loadersMu.RUnlock()
	fn, ok := c.loaders[name]
	return fn, ok
}

// Run performs one compilation and emits its assets. Build problems are
// reported through Stats; the error is reserved for cancellation.
func (c *Compiler) Run(ctx context.Context) (*Stats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	comp := newCompilation(c)
	for _, fn := range c.Hooks.ThisCompilation.Taps() {
		fn(comp, comp.factory)
	}
	return comp.run(ctx)
}
