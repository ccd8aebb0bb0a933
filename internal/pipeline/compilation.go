package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	jerrors "jsonopt/internal/errors"
	"jsonopt/internal/slogutil"
)

// FinishModulesHook runs once all modules of a compilation are built. It
// receives every module in the compilation; returning an error fails the
// build.
type FinishModulesHook func(ctx context.Context, modules []*Module) error

// CompilationHooks are the extension points of a Compilation.
type CompilationHooks struct {
	FinishModules Hook[FinishModulesHook]
}

// ParserHook runs once when the parser for a module type is created.
type ParserHook func(p *Parser)

// ModuleFactoryHooks are the extension points of a ModuleFactory.
type ModuleFactoryHooks struct {
	// Parser is keyed by module type.
	Parser HookMap[ParserHook]
}

// ModuleFactory owns the per-type parsers of one compilation.
type ModuleFactory struct {
	Hooks ModuleFactoryHooks

	mu      sync.Mutex
	parsers map[ModuleType]*Parser
}

// ParserFor returns the parser for t, creating it and firing the parser
// hook on first use.
func (f *ModuleFactory) ParserFor(t ModuleType) *Parser {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.parsers[t]; ok {
		return p
	}
	if f.parsers == nil {
		f.parsers = make(map[ModuleType]*Parser)
	}
	p := NewParser(t)
	if h, ok := f.Hooks.Parser.Get(string(t)); ok {
		for _, fn := range h.Taps() {
			fn(p)
		}
	}
	f.parsers[t] = p
	return p
}

// Compilation is a single build of the module graph.
type Compilation struct {
	ID     string
	Hooks  CompilationHooks
	Logger *slog.Logger

	compiler *Compiler
	factory  *ModuleFactory

	mu      sync.Mutex
	modules map[string]*Module
	errors  []error
}

func newCompilation(c *Compiler) *Compilation {
	id := uuid.New().String()
	return &Compilation{
		ID:       id,
		Logger:   c.Logger.With(slogutil.BuildKey, id),
		compiler: c,
		factory:  &ModuleFactory{parsers: make(map[ModuleType]*Parser)},
		modules:  make(map[string]*Module),
	}
}

// Compiler returns the compiler running this compilation.
func (c *Compilation) Compiler() *Compiler {
	return c.compiler
}

// Modules returns the compilation's modules sorted by resource.
func (c *Compilation) Modules() []*Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := slices.Sorted(maps.Keys(c.modules))
	out := make([]*Module, len(keys))
	for i, k := range keys {
		out[i] = c.modules[k]
	}
	return out
}

// Module returns the module for resource, if it is part of the compilation.
func (c *Compilation) Module(resource string) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[resource]
	return m, ok
}

// AddError records a compilation-level error.
func (c *Compilation) AddError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *Compilation) run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	opts := c.compiler.Options

	for _, name := range slices.Sorted(maps.Keys(opts.Entry)) {
		entry := opts.Entry[name]
		if !path.IsAbs(entry) {
			entry = path.Join(opts.Context, entry)
		}
		resource, ok := resolve(c.compiler.FS, entry, entry)
		if !ok || resource == "" {
			c.AddError(jerrors.Newf(jerrors.ModuleNotFound, "Entry module not found: Can't resolve '%s'", opts.Entry[name]))
			continue
		}
		if err := c.addModuleTree(ctx, resource); err != nil {
			return nil, err
		}
	}

	modules := c.Modules()
	c.Logger.Debug("Modules built", "count", len(modules))

	finished := true
	for _, fn := range c.Hooks.FinishModules.Taps() {
		if err := fn(ctx, modules); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.AddError(err)
			finished = false
			break
		}
	}

	// Rebuilds may have added modules.
	modules = c.Modules()

	assets := map[string]string{}
	if finished {
		var err error
		assets, err = c.emit()
		if err != nil {
			c.AddError(err)
		}
	}

	c.persist(ctx, modules)

	stats := newStats(c, modules, assets)
	stats.StartTime = start
	stats.EndTime = time.Now()
	c.Logger.Info("Compilation finished",
		"modules", len(modules),
		"warnings", len(stats.Warnings),
		"errors", len(stats.Errors),
		"duration", stats.EndTime.Sub(start),
	)
	return stats, nil
}

// addModuleTree builds resource and everything it depends on, breadth first.
func (c *Compilation) addModuleTree(ctx context.Context, resource string) error {
	queue := []string{resource}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]

		if _, ok := c.Module(next); ok {
			continue
		}
		m := c.addModule(ctx, next)
		for _, dep := range m.Dependencies {
			if dep.Resource == "" {
				continue
			}
			if _, ok := c.Module(dep.Resource); !ok {
				queue = append(queue, dep.Resource)
			}
		}
	}
	return nil
}

// addModule brings resource into the compilation, reusing the compiler's
// in-memory module or a persistent cache entry when the input is unchanged.
func (c *Compilation) addModule(ctx context.Context, resource string) *Module {
	comp := c.compiler
	loaders, moduleType := matchRules(comp.Options.Rules, resource)

	m := c.moduleInstance(resource, moduleType, loaders)

	m.mu.Lock()
	defer m.mu.Unlock()

	c.mu.Lock()
	c.modules[resource] = m
	c.mu.Unlock()

	raw, err := afero.ReadFile(comp.FS, resource)
	if err != nil {
		m.reset()
		m.AddError(jerrors.Wrap(jerrors.ModuleNotFound, "Module not found: "+resource, err).WithResource(resource))
		m.built = true
		return m
	}
	hash := ContentHash(raw, moduleType, loaders, comp.Options.CacheVersion)

	if m.built && m.Hash == hash && len(m.Errors) == 0 {
		c.Logger.Debug("Module unchanged", "module", resource)
		return m
	}

	if comp.Cache != nil {
		entry, ok, err := comp.Cache.Get(ctx, resource)
		if err != nil {
			c.Logger.Warn("Cache lookup failed", "module", resource, "error", err)
		} else if ok && entry.Hash == hash {
			c.Logger.Debug("Module restored from cache", "module", resource)
			m.restore(entry)
			return m
		}
	}

	m.reset()
	m.Type = moduleType
	m.Loaders = loaders
	c.build(ctx, m, raw, hash)
	return m
}

// moduleInstance returns the compiler's module for resource, creating it on
// first sight. Instances are reused across compilations.
func (c *Compilation) moduleInstance(resource string, moduleType ModuleType, loaders []string) *Module {
	comp := c.compiler
	comp.modulesMu.Lock()
	defer comp.modulesMu.Unlock()
	m, ok := comp.modules[resource]
	if !ok {
		m = NewModule(resource, moduleType, loaders)
		comp.modules[resource] = m
	}
	return m
}

// build runs loaders and the type-specific handling for a fresh module.
// Problems become module errors; m.mu must be held.
func (c *Compilation) build(ctx context.Context, m *Module, raw []byte, hash string) {
	defer func() { m.built = true }()
	m.Hash = hash

	source, err := c.runLoaders(ctx, m, string(raw))
	if err != nil {
		m.AddError(jerrors.Wrap(jerrors.CodeOf(err), "Module build failed ("+m.Resource+")", err).WithResource(m.Resource))
		return
	}
	m.Source = source

	switch {
	case m.Type == TypeJSON:
		if !json.Valid([]byte(source)) {
			var v any
			err := json.Unmarshal([]byte(source), &v)
			m.AddError(jerrors.Wrap(jerrors.ParseFailed, "Module parse failed ("+m.Resource+")", err).WithResource(m.Resource))
		}
	case m.Type.IsScript():
		parser := c.factory.ParserFor(m.Type)
		result, err := parser.Parse(ctx, m, source)
		if err != nil {
			m.AddError(jerrors.Wrap(jerrors.ParseFailed, "Module parse failed ("+m.Resource+")", err).WithResource(m.Resource))
			return
		}
		if result.HasSyntaxError {
			m.AddWarning(jerrors.Newf(jerrors.ParseFailed, "Module %s contains syntax errors", m.Resource).WithResource(m.Resource))
		}
		c.resolveRequests(m, result.Requests)
	}
}

func (c *Compilation) resolveRequests(m *Module, requests []string) {
	seen := make(map[string]bool, len(requests))
	for _, req := range requests {
		if seen[req] {
			continue
		}
		seen[req] = true

		resource, ok := resolve(c.compiler.FS, m.Resource, req)
		if !ok {
			m.AddError(jerrors.Newf(jerrors.ModuleNotFound,
				"Module not found: Error: Can't resolve '%s' in '%s'", req, path.Dir(m.Resource)).WithResource(m.Resource))
			continue
		}
		m.Dependencies = append(m.Dependencies, ModuleDependency{Request: req, Resource: resource})
	}
}

// RebuildModule rebuilds m from its file: build info, diagnostics and
// replacements are cleared, loaders and the parser run again. Scratch data
// survives. New dependencies are added to the compilation. Safe to call
// concurrently for different modules.
func (c *Compilation) RebuildModule(ctx context.Context, m *Module) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	raw, err := afero.ReadFile(c.compiler.FS, m.Resource)
	if err != nil {
		m.mu.Unlock()
		return jerrors.Wrap(jerrors.RebuildFailed, "cannot rebuild "+m.Resource, err).WithResource(m.Resource)
	}
	hash := ContentHash(raw, m.Type, m.Loaders, c.compiler.Options.CacheVersion)
	m.reset()
	c.build(ctx, m, raw, hash)
	deps := slices.Clone(m.Dependencies)
	m.mu.Unlock()

	c.Logger.Debug("Module rebuilt", "module", m.Resource)

	for _, dep := range deps {
		if dep.Resource == "" {
			continue
		}
		if err := c.addModuleTree(ctx, dep.Resource); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compilation) persist(ctx context.Context, modules []*Module) {
	cache := c.compiler.Cache
	if cache == nil {
		return
	}
	for _, m := range modules {
		if len(m.Errors) > 0 {
			continue
		}
		entry, err := toCacheEntry(m)
		if err == nil {
			err = cache.Put(ctx, entry)
		}
		if err != nil {
			c.Logger.Warn("Cache store failed", "module", m.Resource, "error", err)
		}
	}
}
