//go:build cgo

package pipeline

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/afero"

	jerrors "jsonopt/internal/errors"
)

func newMemFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func testOptions() Options {
	return Options{
		Context: "/src",
		Entry:   map[string]string{"main": "./index.js"},
		Output:  OutputOptions{Path: "/dist"},
	}
}

// callRecorder is a plugin that records every call to name.
type callRecorder struct {
	name  string
	calls map[string][]string
}

func (r *callRecorder) Apply(c *Compiler) {
	c.Hooks.ThisCompilation.Tap("recorder", func(comp *Compilation, f *ModuleFactory) {
		f.Hooks.Parser.For(string(TypeJavaScriptAuto)).Tap("recorder", func(p *Parser) {
			p.Hooks.Program.Tap("recorder", func(m *Module) {
				r.calls[m.Resource] = nil
			})
			p.Hooks.Call.For(r.name).Tap("recorder", func(m *Module, call *CallExpression) {
				var args []string
				for _, a := range call.Arguments {
					args = append(args, a.Kind()+":"+a.Text())
				}
				r.calls[m.Resource] = append(r.calls[m.Resource], strings.Join(args, ","))
			})
		})
	})
}

func TestParser_DispatchesCalls(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js": "t('a'); i18n.t(\"b\"); t(`c`, 1); (t)('d'); obj.t('e'); t(/* k */ 'f');\n",
	})
	rec := &callRecorder{name: "t", calls: map[string][]string{}}
	stats, err := NewCompiler(testOptions(), fs, nil, rec).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.HasErrors() {
		t.Fatalf("errors = %v", stats.Errors)
	}

	want := []string{"string:'a'", "template_string:`c`,number:1", "string:'d'", "string:'f'"}
	if got := rec.calls["/src/index.js"]; !slices.Equal(got, want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestParser_CallLocation(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js": "const x = 1;\nexport default __('someKey');\n",
	})
	var got []Location
	var gotArg Range
	plugin := pluginFunc(func(c *Compiler) {
		c.Hooks.ThisCompilation.Tap("loc", func(comp *Compilation, f *ModuleFactory) {
			f.Hooks.Parser.For(string(TypeJavaScriptAuto)).Tap("loc", func(p *Parser) {
				p.Hooks.Call.For("__").Tap("loc", func(m *Module, call *CallExpression) {
					got = append(got, call.Loc())
					gotArg = call.Arguments[0].Range()
				})
			})
		})
	})
	if _, err := NewCompiler(testOptions(), fs, nil, plugin).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("calls = %d", len(got))
	}
	if got[0].Start != (Position{Line: 2, Column: 15}) || got[0].End != (Position{Line: 2, Column: 28}) {
		t.Errorf("loc = %+v", got[0])
	}
	// "const x = 1;\n" is 13 bytes, the literal starts 18 bytes into line 2.
	if gotArg != (Range{31, 40}) {
		t.Errorf("argument range = %v", gotArg)
	}
}

func TestParser_CallLocationCountsUTF16(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js": "const s = 'é😀'; __('k');\n",
	})
	var got []Location
	plugin := pluginFunc(func(c *Compiler) {
		c.Hooks.ThisCompilation.Tap("loc", func(comp *Compilation, f *ModuleFactory) {
			f.Hooks.Parser.For(string(TypeJavaScriptAuto)).Tap("loc", func(p *Parser) {
				p.Hooks.Call.For("__").Tap("loc", func(m *Module, call *CallExpression) {
					got = append(got, call.Loc())
				})
			})
		})
	})
	if _, err := NewCompiler(testOptions(), fs, nil, plugin).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("calls = %d", len(got))
	}
	// é is one code unit and 😀 a surrogate pair, though they take 6 bytes.
	if got[0].Start != (Position{Line: 1, Column: 17}) || got[0].End != (Position{Line: 1, Column: 24}) {
		t.Errorf("loc = %+v", got[0])
	}
}

type pluginFunc func(c *Compiler)

func (f pluginFunc) Apply(c *Compiler) { f(c) }

func TestCompiler_ModuleGraph(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js":      "import a from './a';\nexport * from './b.mjs';\nconst c = require('./c.json');\nimport('./lazy');\nimport React from 'react';\n",
		"/src/a.js":          "module.exports = 1;\n",
		"/src/b.mjs":         "export const b = 2;\n",
		"/src/c.json":        `{"c": 3}`,
		"/src/lazy/index.js": "import '../a.js';\n",
	})
	stats, err := NewCompiler(testOptions(), fs, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.HasErrors() || stats.HasWarnings() {
		t.Fatalf("errors = %v, warnings = %v", stats.Errors, stats.Warnings)
	}

	var resources []string
	for _, m := range stats.Modules {
		resources = append(resources, m.Resource)
	}
	want := []string{"/src/a.js", "/src/b.mjs", "/src/c.json", "/src/index.js", "/src/lazy/index.js"}
	if !slices.Equal(resources, want) {
		t.Errorf("modules = %v, want %v", resources, want)
	}
	if m, _ := stats.Module("/src/b.mjs"); m.Type != TypeJavaScriptESM {
		t.Errorf("b.mjs type = %s", m.Type)
	}
	index, _ := stats.Module("/src/index.js")
	if !slices.Contains(index.Dependencies, ModuleDependency{Request: "react"}) {
		t.Errorf("external request missing: %+v", index.Dependencies)
	}

	bundle := stats.Assets["/dist/main.js"]
	if !strings.Contains(bundle, `module.exports = {"c": 3};`) {
		t.Errorf("bundle does not inline JSON:\n%s", bundle)
	}
}

func TestCompiler_Diagnostics(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js":    "import './missing';\nimport './broken.json';\nimport './syntax.js';\n",
		"/src/broken.json": `{"a": `,
		"/src/syntax.js":   "const = ;\n",
	})
	stats, err := NewCompiler(testOptions(), fs, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	codes := map[jerrors.ErrorCode]int{}
	for _, e := range stats.Errors {
		codes[jerrors.CodeOf(e)]++
	}
	if codes[jerrors.ModuleNotFound] != 1 || codes[jerrors.ParseFailed] != 1 {
		t.Errorf("errors = %v", stats.Errors)
	}
	if !strings.Contains(stats.Errors[0].Error()+stats.Errors[1].Error(), "Can't resolve './missing' in '/src'") {
		t.Errorf("errors = %v", stats.Errors)
	}
	if len(stats.Warnings) != 1 || jerrors.CodeOf(stats.Warnings[0]) != jerrors.ParseFailed {
		t.Errorf("warnings = %v", stats.Warnings)
	}
}

func TestCompiler_MissingEntry(t *testing.T) {
	stats, err := NewCompiler(testOptions(), afero.NewMemMapFs(), nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Errors) != 1 || jerrors.CodeOf(stats.Errors[0]) != jerrors.ModuleNotFound {
		t.Errorf("errors = %v", stats.Errors)
	}
}

func TestCompiler_LoadersAndRebuild(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js":  "import './data.json';\n",
		"/src/data.json": `{"a": 1}`,
	})
	opts := testOptions()
	opts.Rules = []Rule{{Test: regexp.MustCompile(`\.json$`), Loaders: []string{"upper", "count"}}}

	var loads int
	var rebuildErr error
	plugin := pluginFunc(func(c *Compiler) {
		c.Hooks.ThisCompilation.Tap("rebuild", func(comp *Compilation, f *ModuleFactory) {
			comp.Hooks.FinishModules.Tap("rebuild", func(ctx context.Context, modules []*Module) error {
				for _, m := range modules {
					if m.Type != TypeJSON {
						continue
					}
					m.Scratch["seen"] = true
					m.AddWarning(errorString("stale"))
					rebuildErr = comp.RebuildModule(ctx, m)
				}
				return nil
			})
		})
	})
	c := NewCompiler(opts, fs, nil, plugin)
	// Loaders run last to first.
	c.RegisterLoader("count", func(lc *LoaderContext, source string) (string, error) {
		loads++
		lc.Module.BuildInfo["loads"] = loads
		return source, nil
	})
	c.RegisterLoader("upper", func(lc *LoaderContext, source string) (string, error) {
		if lc.Module.BuildInfo["loads"] == nil {
			t.Error("upper ran before count")
		}
		return strings.ToUpper(source), nil
	})

	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rebuildErr != nil {
		t.Fatalf("RebuildModule() error = %v", rebuildErr)
	}
	m, _ := stats.Module("/src/data.json")
	if loads != 2 || m.BuildInfo["loads"] != 2 {
		t.Errorf("loads = %d, build info = %v", loads, m.BuildInfo)
	}
	if m.Source != `{"A": 1}` {
		t.Errorf("source = %s", m.Source)
	}
	if len(m.Warnings) != 0 {
		t.Errorf("rebuild kept warnings: %v", m.Warnings)
	}
	if m.Scratch["seen"] != true {
		t.Error("rebuild cleared Scratch")
	}

	// Unchanged input is not loaded again on the next run.
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loads != 3 {
		t.Errorf("loads = %d, want 3 (rebuild only)", loads)
	}
}

func TestCompiler_UnknownLoader(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/src/index.js":  "import './data.json';\n",
		"/src/data.json": `{}`,
	})
	opts := testOptions()
	opts.Rules = []Rule{{Test: regexp.MustCompile(`\.json$`), Loaders: []string{"nope"}}}

	stats, err := NewCompiler(opts, fs, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0].Error(), "no loader registered as nope") {
		t.Errorf("errors = %v", stats.Errors)
	}
}

func TestCompiler_FinishModulesErrorSkipsEmit(t *testing.T) {
	fs := newMemFS(t, map[string]string{"/src/index.js": "1;\n"})
	plugin := pluginFunc(func(c *Compiler) {
		c.Hooks.ThisCompilation.Tap("fail", func(comp *Compilation, f *ModuleFactory) {
			comp.Hooks.FinishModules.Tap("fail", func(context.Context, []*Module) error {
				return jerrors.New(jerrors.RebuildFailed, "boom")
			})
		})
	})
	stats, err := NewCompiler(testOptions(), fs, nil, plugin).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Errors) != 1 || len(stats.Assets) != 0 {
		t.Errorf("errors = %v, assets = %v", stats.Errors, stats.Assets)
	}
	if exists, _ := afero.Exists(fs, "/dist/main.js"); exists {
		t.Error("bundle emitted despite failure")
	}
}

func TestCompiler_Cancelled(t *testing.T) {
	fs := newMemFS(t, map[string]string{"/src/index.js": "1;\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewCompiler(testOptions(), fs, nil).Run(ctx); err == nil {
		t.Error("Run() with a cancelled context should fail")
	}
}
