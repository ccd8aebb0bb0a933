// Package optimizer shrinks JSON payloads to the keys a program actually
// reads through an accessor function. Calls like __("someKey") are detected
// while scripts are parsed, the keys used anywhere in the module graph are
// given positional indices once all modules are built, call sites are
// rewritten to __(0), and every JSON module is rebuilt to emit only the
// selected values as an array.
package optimizer

import (
	"log/slog"

	"jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
	"jsonopt/internal/slogutil"
)

// PluginName prefixes every diagnostic and names the plugin's hook taps.
const PluginName = "JsonAccessOptimizer"

// Options configures the optimizer.
type Options struct {
	// AccessorFunctionName is the callee whose single string-literal
	// argument is a JSON key, e.g. "__" or "i18n.t". Required.
	AccessorFunctionName string
	// ValidateOnly reports unknown keys without rewriting anything.
	ValidateOnly bool
	Logger       *slog.Logger
}

// JSONAccessOptimizer is the pipeline plugin.
type JSONAccessOptimizer struct {
	options Options
	logger  *slog.Logger
}

// New validates options and returns the plugin. It fails before any
// compiler work happens when the accessor name is missing.
func New(options Options) (*JSONAccessOptimizer, error) {
	if options.AccessorFunctionName == "" {
		return nil, errors.Newf(errors.ConfigInvalid, "[%s] options.accessorFunctionName must be provided", PluginName)
	}

	logger := options.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &JSONAccessOptimizer{
		options: options,
		logger:  logger.With("plugin", PluginName),
	}, nil
}

// Options returns the plugin configuration.
func (o *JSONAccessOptimizer) Options() Options {
	return o.options
}

// Apply taps every new compilation.
func (o *JSONAccessOptimizer) Apply(c *pipeline.Compiler) {
	c.Hooks.ThisCompilation.Tap(PluginName, func(comp *pipeline.Compilation, factory *pipeline.ModuleFactory) {
		o.detectJSONKeyAccess(factory)
		o.optimizeJSONModules(comp)
	})
}
