package optimizer

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

// optimizeJSONModules taps the end of module building: it validates the key
// sets of all JSON modules, assigns indices to used keys, rewrites call sites
// and rebuilds the JSON modules with the selection.
func (o *JSONAccessOptimizer) optimizeJSONModules(comp *pipeline.Compilation) {
	comp.Hooks.FinishModules.Tap(PluginName, func(ctx context.Context, modules []*pipeline.Module) error {
		return o.reconcile(ctx, comp, modules)
	})
}

// rebuilder is the part of a compilation reconciliation needs.
type rebuilder interface {
	RebuildModule(ctx context.Context, m *pipeline.Module) error
}

func (o *JSONAccessOptimizer) reconcile(ctx context.Context, comp rebuilder, modules []*pipeline.Module) error {
	modules = slices.Clone(modules)
	slices.SortStableFunc(modules, func(a, b *pipeline.Module) int {
		return strings.Compare(a.Resource, b.Resource)
	})

	// Unknown keys are re-evaluated against the current key set every run.
	for _, m := range modules {
		dropWarnings(m, errors.UnknownKey)
	}

	jsonModules, reference := o.collectJSONModules(modules)
	if jsonModules == nil {
		return nil
	}

	allKeys := make(map[string]bool, len(reference.AllKeys))
	for _, k := range reference.AllKeys {
		allKeys[k] = true
	}

	var optimizedKeys []string
	indices := make(map[string]int)
	for _, m := range modules {
		if !moduleHasMetaData(m) {
			continue
		}
		used := metaDataOf(m).UsedKeysInModule
		if len(used) == 0 {
			continue
		}
		for _, key := range slices.Sorted(maps.Keys(used)) {
			if !allKeys[key] {
				addWarningOnce(m, errors.Newf(errors.UnknownKey, "[%s] JSON key \"%s\" does not exist", PluginName, key).WithResource(m.Resource))
				for _, site := range used[key] {
					restoreCallSite(m, site)
				}
				continue
			}

			index, ok := indices[key]
			if !ok {
				index = len(optimizedKeys)
				indices[key] = index
				optimizedKeys = append(optimizedKeys, key)
			}
			if o.options.ValidateOnly {
				continue
			}
			for _, site := range used[key] {
				replaceCallSite(m, site, strconv.Itoa(index))
			}
		}
	}

	if o.options.ValidateOnly {
		o.logger.Debug("Validated JSON key usage", "jsonModules", len(jsonModules), "usedKeys", len(optimizedKeys))
		return nil
	}
	if optimizedKeys == nil {
		optimizedKeys = []string{}
	}

	o.logger.Debug("Optimizing JSON modules", "jsonModules", len(jsonModules), "keys", len(optimizedKeys))

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range jsonModules {
		staged := *metaDataOf(m)
		staged.OptimizedKeys = optimizedKeys
		setTemporaryMetaData(m, &staged)

		g.Go(func() error {
			return comp.RebuildModule(gctx, m)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(errors.RebuildFailed, "["+PluginName+"] rebuilding JSON modules failed", err)
	}
	return nil
}

// collectJSONModules returns the modules that went through the loader and
// recorded a key set, with the first one's metadata as the reference. A key
// set mismatch attaches an error to the offending module and yields nil.
func (o *JSONAccessOptimizer) collectJSONModules(sorted []*pipeline.Module) ([]*pipeline.Module, *MetaData) {
	var (
		jsonModules       []*pipeline.Module
		reference         *MetaData
		referenceResource string
	)
	for _, m := range sorted {
		if !m.UsesLoader(LoaderName) || !moduleHasMetaData(m) {
			continue
		}
		md := metaDataOf(m)
		if md.AllKeys == nil {
			continue
		}

		if reference == nil {
			reference = md
			referenceResource = m.Resource
		} else if !sameKeys(reference.AllKeys, md.AllKeys) {
			m.AddError(errors.Newf(errors.KeySetMismatch,
				"[%s] JSON files \"%s\" and \"%s\" do not have identical keys",
				PluginName, referenceResource, m.Resource,
			).WithResource(m.Resource))
			return nil, nil
		}
		jsonModules = append(jsonModules, m)
	}
	return jsonModules, reference
}

// replaceCallSite points the call site's key literal at index. A numeric
// replacement left at the same location by an earlier build is replaced in
// place.
func replaceCallSite(m *pipeline.Module, site CallSite, index string) {
	loc := site.Loc
	dep := &pipeline.ConstDependency{
		Expression: index,
		Range:      site.Range,
		Loc:        &loc,
	}

	if m.PresentationalDependencies == nil {
		m.AddPresentationalDependency(dep)
		return
	}
	if !isLocation(dep.Loc) {
		return
	}

	for i, existing := range m.PresentationalDependencies {
		if isIndexExpression(existing.Expression) && isLocation(existing.Loc) && isSameLocation(dep.Loc, existing.Loc) {
			m.PresentationalDependencies[i] = dep
			return
		}
	}
	m.AddPresentationalDependency(dep)
}

// restoreCallSite removes a numeric replacement an earlier build left at the
// call site, so the key literal is emitted as written.
func restoreCallSite(m *pipeline.Module, site CallSite) {
	loc := site.Loc
	if !isLocation(&loc) {
		return
	}
	m.PresentationalDependencies = slices.DeleteFunc(m.PresentationalDependencies, func(existing *pipeline.ConstDependency) bool {
		return isIndexExpression(existing.Expression) && isLocation(existing.Loc) && isSameLocation(&loc, existing.Loc)
	})
}

func isIndexExpression(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// addWarningOnce attaches err unless m already carries a warning with the
// same message.
func addWarningOnce(m *pipeline.Module, err error) {
	msg := err.Error()
	for _, w := range m.Warnings {
		if w.Error() == msg {
			return
		}
	}
	m.AddWarning(err)
}

// dropWarnings removes m's warnings carrying code.
func dropWarnings(m *pipeline.Module, code errors.ErrorCode) {
	m.Warnings = slices.DeleteFunc(m.Warnings, func(w error) bool {
		return errors.CodeOf(w) == code
	})
}
