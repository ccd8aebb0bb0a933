package pipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"slices"

	"golang.org/x/crypto/blake2b"

	jerrors "jsonopt/internal/errors"
)

// Cache persists built modules between compiler processes. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, resource string) (*CacheEntry, bool, error)
	Put(ctx context.Context, entry *CacheEntry) error
}

// CacheEntry is the serialized state of a successfully built module.
type CacheEntry struct {
	Resource                   string                     `json:"resource"`
	Hash                       string                     `json:"hash"`
	Type                       ModuleType                 `json:"type"`
	Loaders                    []string                   `json:"loaders,omitempty"`
	Source                     string                     `json:"source"`
	BuildInfo                  map[string]json.RawMessage `json:"buildInfo,omitempty"`
	Dependencies               []ModuleDependency         `json:"dependencies,omitempty"`
	PresentationalDependencies []*ConstDependency         `json:"presentationalDependencies,omitempty"`
	Warnings                   []jerrors.Diagnostic       `json:"warnings,omitempty"`
}

// ContentHash identifies a module input. version lets callers invalidate
// entries when plugin configuration changes.
func ContentHash(raw []byte, moduleType ModuleType, loaders []string, version string) string {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(moduleType))
	h.Write([]byte{0})
	for _, l := range loaders {
		h.Write([]byte(l))
		h.Write([]byte{0})
	}
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// toCacheEntry serializes m. BuildInfo values must marshal to JSON.
func toCacheEntry(m *Module) (*CacheEntry, error) {
	entry := &CacheEntry{
		Resource:                   m.Resource,
		Hash:                       m.Hash,
		Type:                       m.Type,
		Loaders:                    slices.Clone(m.Loaders),
		Source:                     m.Source,
		Dependencies:               slices.Clone(m.Dependencies),
		PresentationalDependencies: cloneConstDependencies(m.PresentationalDependencies),
	}
	if len(m.BuildInfo) > 0 {
		entry.BuildInfo = make(map[string]json.RawMessage, len(m.BuildInfo))
		for k, v := range m.BuildInfo {
			if raw, ok := v.(json.RawMessage); ok {
				entry.BuildInfo[k] = raw
				continue
			}
			data, err := json.Marshal(v)
			if err != nil {
				return nil, jerrors.Wrap(jerrors.CacheFailure, "cannot serialize build info "+k+" of "+m.Resource, err)
			}
			entry.BuildInfo[k] = data
		}
	}
	for _, w := range m.Warnings {
		entry.Warnings = append(entry.Warnings, jerrors.ToDiagnostic(w, jerrors.SeverityWarning))
	}
	return entry, nil
}

// restore loads a cache entry into m, replacing any build output.
func (m *Module) restore(entry *CacheEntry) {
	m.reset()
	m.Hash = entry.Hash
	m.Type = entry.Type
	m.Loaders = slices.Clone(entry.Loaders)
	m.Source = entry.Source
	m.Dependencies = slices.Clone(entry.Dependencies)
	m.PresentationalDependencies = cloneConstDependencies(entry.PresentationalDependencies)
	for k, v := range entry.BuildInfo {
		m.BuildInfo[k] = v
	}
	for _, d := range entry.Warnings {
		m.Warnings = append(m.Warnings, jerrors.FromDiagnostic(d))
	}
	m.built = true
}

// cloneConstDependencies deep-copies deps so cache entries and live modules
// never share replacements.
func cloneConstDependencies(deps []*ConstDependency) []*ConstDependency {
	if deps == nil {
		return nil
	}
	out := make([]*ConstDependency, len(deps))
	for i, d := range deps {
		c := *d
		if d.Loc != nil {
			loc := *d.Loc
			c.Loc = &loc
		}
		out[i] = &c
	}
	return out
}
