package pipeline

import (
	"encoding/json"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"

	jerrors "jsonopt/internal/errors"
)

const bundleRuntime = `(function (modules, entry) {
  var cache = {};
  function load(id) {
    if (cache[id]) return cache[id].exports;
    var record = modules[id];
    var module = (cache[id] = { exports: {} });
    record.factory(module, module.exports, function (request) {
      var target = record.deps[request];
      return target ? load(target) : require(request);
    });
    return module.exports;
  }
  module.exports = load(entry);
})`

// emit writes one bundle per entry and returns asset path -> content.
func (c *Compilation) emit() (map[string]string, error) {
	opts := c.compiler.Options
	assets := make(map[string]string)

	if opts.Output.Path != "" {
		if err := c.compiler.FS.MkdirAll(opts.Output.Path, 0o755); err != nil {
			return assets, jerrors.Wrap(jerrors.InternalError, "cannot create output directory", err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(opts.Entry)) {
		entry := opts.Entry[name]
		if !path.IsAbs(entry) {
			entry = path.Join(opts.Context, entry)
		}
		resource, ok := resolve(c.compiler.FS, entry, entry)
		if !ok || resource == "" {
			continue
		}

		content := c.renderBundle(resource)
		filename := strings.ReplaceAll(opts.Output.Filename, "[name]", name)
		target := path.Join(opts.Output.Path, filename)
		if err := afero.WriteFile(c.compiler.FS, target, []byte(content), 0o644); err != nil {
			return assets, jerrors.Wrap(jerrors.InternalError, "cannot write "+target, err)
		}
		assets[target] = content
	}
	return assets, nil
}

// renderBundle renders every module reachable from entry as a module map.
func (c *Compilation) renderBundle(entry string) string {
	var b strings.Builder
	b.WriteString(bundleRuntime)
	b.WriteString("({\n")

	for i, m := range c.reachable(entry) {
		if i > 0 {
			b.WriteString(",\n")
		}
		deps := make(map[string]string, len(m.Dependencies))
		for _, d := range m.Dependencies {
			if d.Resource != "" {
				deps[d.Request] = d.Resource
			}
		}
		depsJSON, _ := json.Marshal(deps)

		fmt.Fprintf(&b, "%s: {\n  deps: %s,\n  factory: function (module, exports, require) {\n", quoteJS(m.Resource), depsJSON)
		if m.Type == TypeJSON {
			b.WriteString("module.exports = ")
			b.WriteString(strings.TrimSpace(m.RenderedSource()))
			b.WriteString(";\n")
		} else {
			b.WriteString(m.RenderedSource())
			if !strings.HasSuffix(m.Source, "\n") {
				b.WriteByte('\n')
			}
		}
		b.WriteString("  }\n}")
	}

	fmt.Fprintf(&b, "\n}, %s);\n", quoteJS(entry))
	return b.String()
}

// reachable lists entry and its transitive dependencies in discovery order.
func (c *Compilation) reachable(entry string) []*Module {
	var out []*Module
	seen := map[string]bool{}
	queue := []string{entry}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		m, ok := c.Module(next)
		if !ok {
			continue
		}
		out = append(out, m)
		for _, d := range m.Dependencies {
			if d.Resource != "" && !seen[d.Resource] {
				queue = append(queue, d.Resource)
			}
		}
	}
	return out
}

func quoteJS(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
