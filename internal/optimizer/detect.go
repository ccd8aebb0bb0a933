package optimizer

import (
	"jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

// detectJSONKeyAccess installs the parser hooks for every script type.
func (o *JSONAccessOptimizer) detectJSONKeyAccess(factory *pipeline.ModuleFactory) {
	handler := func(p *pipeline.Parser) {
		p.Hooks.Program.Tap(PluginName, o.resetUsedKeys)
		p.Hooks.Call.For(o.options.AccessorFunctionName).Tap(PluginName, o.recordAccess)
	}
	for _, t := range pipeline.ScriptTypes {
		factory.Hooks.Parser.For(string(t)).Tap(PluginName, handler)
	}
}

// resetUsedKeys runs before a module's calls are visited so keys removed by
// an edit do not linger.
func (o *JSONAccessOptimizer) resetUsedKeys(m *pipeline.Module) {
	md := metaDataOf(m)
	if md.UsedKeysInModule != nil {
		clear(md.UsedKeysInModule)
	} else {
		md.UsedKeysInModule = make(map[string][]CallSite)
	}
}

func (o *JSONAccessOptimizer) recordAccess(m *pipeline.Module, call *pipeline.CallExpression) {
	if !isKeyLiteralCall(call) {
		start := call.Loc().Start
		m.AddWarning(errors.Newf(errors.AmbiguousUsage,
			"[%s] Confusing usage of accessor function \"%s\" in %s:%d:%d",
			PluginName, o.options.AccessorFunctionName, m.Resource, start.Line, start.Column,
		).WithResource(m.Resource))
		return
	}

	md := metaDataOf(m)
	if md.UsedKeysInModule == nil {
		return
	}
	site := Snapshot(call)
	md.UsedKeysInModule[site.Value] = append(md.UsedKeysInModule[site.Value], site)
}

// isKeyLiteralCall reports whether call has exactly one argument and it is a
// plain string literal.
func isKeyLiteralCall(call *pipeline.CallExpression) bool {
	if len(call.Arguments) != 1 {
		return false
	}
	_, ok := call.Arguments[0].StringValue()
	return ok
}
