package pipeline

import (
	"path"
	"slices"
	"strings"
	"sync"
)

// ModuleType selects how a module's loaded source is handled.
type ModuleType string

const (
	TypeJavaScriptAuto    ModuleType = "javascript/auto"
	TypeJavaScriptDynamic ModuleType = "javascript/dynamic"
	TypeJavaScriptESM     ModuleType = "javascript/esm"
	TypeJSON              ModuleType = "json"
)

// ScriptTypes lists the module types parsed as JavaScript.
var ScriptTypes = []ModuleType{TypeJavaScriptAuto, TypeJavaScriptDynamic, TypeJavaScriptESM}

// IsScript reports whether modules of this type go through the JavaScript parser.
func (t ModuleType) IsScript() bool {
	return slices.Contains(ScriptTypes, t)
}

// typeFromExtension picks the default module type for a resource.
func typeFromExtension(resource string) ModuleType {
	switch strings.ToLower(path.Ext(resource)) {
	case ".json":
		return TypeJSON
	case ".mjs":
		return TypeJavaScriptESM
	case ".cjs":
		return TypeJavaScriptDynamic
	default:
		return TypeJavaScriptAuto
	}
}

// Position is a point in a source file: 1-based line, 0-based column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Location is a start/end pair of positions.
type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Range is a half-open byte range into a module's loaded source.
type Range [2]int

// ConstDependency replaces a source range with literal text at emit time.
type ConstDependency struct {
	Expression string    `json:"expression"`
	Range      Range     `json:"range"`
	Loc        *Location `json:"loc,omitempty"`
}

// ModuleDependency records how a request in a module's source resolved.
// Resource is empty for external (package) requests.
type ModuleDependency struct {
	Request  string `json:"request"`
	Resource string `json:"resource,omitempty"`
}

// Module is one unit of the build graph. Plugins attach data to BuildInfo
// (persisted by the cache, reset by every build of the module) or Scratch
// (in-memory only, survives rebuilds).
type Module struct {
	Resource string
	Type     ModuleType
	Loaders  []string

	// BuildInfo values are either live plugin values or json.RawMessage when
	// the module was restored from the persistent cache.
	BuildInfo map[string]any
	Scratch   map[string]any

	// PresentationalDependencies stays nil until the first replacement is added.
	PresentationalDependencies []*ConstDependency
	Dependencies               []ModuleDependency

	Warnings []error
	Errors   []error

	// Source is the output of the loader chain.
	Source string
	// Hash identifies the raw input (content, loaders, type).
	Hash string

	mu    sync.Mutex
	built bool
}

// NewModule creates an unbuilt module.
func NewModule(resource string, moduleType ModuleType, loaders []string) *Module {
	return &Module{
		Resource:  resource,
		Type:      moduleType,
		Loaders:   loaders,
		BuildInfo: make(map[string]any),
		Scratch:   make(map[string]any),
	}
}

// AddWarning attaches a non-fatal diagnostic.
func (m *Module) AddWarning(err error) {
	m.Warnings = append(m.Warnings, err)
}

// AddError attaches a fatal diagnostic.
func (m *Module) AddError(err error) {
	m.Errors = append(m.Errors, err)
}

// AddPresentationalDependency appends a source replacement.
func (m *Module) AddPresentationalDependency(dep *ConstDependency) {
	m.PresentationalDependencies = append(m.PresentationalDependencies, dep)
}

// UsesLoader reports whether the loader registered as name processed this module.
func (m *Module) UsesLoader(name string) bool {
	return slices.Contains(m.Loaders, name)
}

// Built reports whether the module completed at least one build.
func (m *Module) Built() bool {
	return m.built
}

// reset clears everything a build produces. Scratch is left alone.
func (m *Module) reset() {
	m.BuildInfo = make(map[string]any)
	m.PresentationalDependencies = nil
	m.Dependencies = nil
	m.Warnings = nil
	m.Errors = nil
	m.Source = ""
	m.built = false
}

// RenderedSource applies all presentational dependencies to the loaded source.
func (m *Module) RenderedSource() string {
	if len(m.PresentationalDependencies) == 0 {
		return m.Source
	}

	deps := make([]*ConstDependency, 0, len(m.PresentationalDependencies))
	for _, dep := range m.PresentationalDependencies {
		if dep.Range[0] < 0 || dep.Range[1] > len(m.Source) || dep.Range[0] > dep.Range[1] {
			continue
		}
		deps = append(deps, dep)
	}
	// Apply back to front so earlier offsets stay valid.
	slices.SortStableFunc(deps, func(a, b *ConstDependency) int {
		return b.Range[0] - a.Range[0]
	})

	out := m.Source
	last := len(out) + 1
	for _, dep := range deps {
		if dep.Range[1] > last {
			continue // overlaps a replacement already applied
		}
		out = out[:dep.Range[0]] + dep.Expression + out[dep.Range[1]:]
		last = dep.Range[0]
	}
	return out
}
