package pipeline

import (
	"context"
	"log/slog"
	"regexp"

	"jsonopt/internal/slogutil"
)

// LoaderFunc transforms a module's source. Loaders run last to first, each
// receiving the previous loader's output.
type LoaderFunc func(lc *LoaderContext, source string) (string, error)

// LoaderContext is handed to every loader invocation.
type LoaderContext struct {
	Context context.Context
	Module  *Module
	Logger  *slog.Logger
}

// Resource returns the path of the module being loaded.
func (lc *LoaderContext) Resource() string {
	return lc.Module.Resource
}

// Rule assigns loaders and, optionally, a module type to matching resources.
type Rule struct {
	Test    *regexp.Regexp
	Loaders []string
	Type    ModuleType
}

// matchRules collects loaders from every matching rule, in rule order.
// The last matching rule with a Type wins; otherwise the extension decides.
func matchRules(rules []Rule, resource string) ([]string, ModuleType) {
	var loaders []string
	moduleType := typeFromExtension(resource)
	for _, r := range rules {
		if r.Test == nil || !r.Test.MatchString(resource) {
			continue
		}
		loaders = append(loaders, r.Loaders...)
		if r.Type != "" {
			moduleType = r.Type
		}
	}
	return loaders, moduleType
}

// runLoaders applies m's loaders right to left.
func (c *Compilation) runLoaders(ctx context.Context, m *Module, source string) (string, error) {
	lc := &LoaderContext{
		Context: ctx,
		Module:  m,
		Logger:  c.Logger.With(slogutil.ModuleKey, m.Resource),
	}
	for i := len(m.Loaders) - 1; i >= 0; i-- {
		name := m.Loaders[i]
		fn, ok := c.compiler.loader(name)
		if !ok {
			return "", &unknownLoaderError{name: name}
		}
		out, err := fn(lc, source)
		if err != nil {
			return "", err
		}
		source = out
	}
	return source, nil
}

type unknownLoaderError struct {
	name string
}

func (e *unknownLoaderError) Error() string {
	return "no loader registered as " + e.name
}
