package optimizer

import (
	"encoding/json"

	"jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

// Namespace keys the optimizer's slot in Module.BuildInfo and Module.Scratch.
const Namespace = "jsonopt-json-access-optimizer_1.0.0"

// MetaData is attached to every module the optimizer touches.
//
// AllKeys and OptimizedKeys distinguish nil from empty: a JSON module with
// no keys still has a key set, and a selection of zero keys still means
// "emit the projection".
type MetaData struct {
	// AllKeys is the sorted key set of a JSON module.
	AllKeys []string `json:"allKeys"`
	// OptimizedKeys is the global selection, in index order.
	OptimizedKeys []string `json:"optimizedKeys"`
	// UsedKeysInModule maps keys to the call sites of a script module.
	// Cleared every time the module is parsed.
	UsedKeysInModule map[string][]CallSite `json:"usedKeysInModule,omitempty"`
}

func moduleHasMetaData(m *pipeline.Module) bool {
	_, ok := m.BuildInfo[Namespace]
	return ok
}

// metaDataOf returns m's metadata, creating it on first access. Entries
// restored from the persistent cache are decoded here; an entry that fails
// to decode starts empty and leaves a CACHE_FAILURE warning on m.
func metaDataOf(m *pipeline.Module) *MetaData {
	switch v := m.BuildInfo[Namespace].(type) {
	case *MetaData:
		return v
	case json.RawMessage:
		md := &MetaData{}
		if err := json.Unmarshal(v, md); err != nil {
			md = &MetaData{}
			m.AddWarning(errors.Wrap(errors.CacheFailure,
				"["+PluginName+"] cached metadata could not be decoded, rebuild without the cache", err).WithResource(m.Resource))
		}
		m.BuildInfo[Namespace] = md
		return md
	}
	md := &MetaData{}
	m.BuildInfo[Namespace] = md
	return md
}

// setTemporaryMetaData stages md outside BuildInfo so it survives the
// rebuild that is about to clear BuildInfo.
func setTemporaryMetaData(m *pipeline.Module, md *MetaData) {
	m.Scratch[Namespace] = md
}

// takeTemporaryMetaData removes and returns staged metadata.
func takeTemporaryMetaData(m *pipeline.Module) (*MetaData, bool) {
	md, ok := m.Scratch[Namespace].(*MetaData)
	if ok {
		delete(m.Scratch, Namespace)
	}
	return md, ok
}

// Inspect returns a copy of m's metadata without creating it.
func Inspect(m *pipeline.Module) (MetaData, bool) {
	if !moduleHasMetaData(m) {
		return MetaData{}, false
	}
	return *metaDataOf(m), true
}
