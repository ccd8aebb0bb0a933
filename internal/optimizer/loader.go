package optimizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"jsonopt/internal/errors"
	"jsonopt/internal/pipeline"
)

// LoaderName is the name rules use to route JSON files through Loader.
const LoaderName = "jsonopt-loader"

// RegisterLoader makes Loader available to the compiler's rules.
func RegisterLoader(c *pipeline.Compiler) {
	c.RegisterLoader(LoaderName, Loader)
}

// Loader is the payload transform for JSON modules.
//
// On a module's first build it records the sorted key set in build info and
// passes the source through. Once reconciliation has staged a key selection,
// the next build emits the selected values as an array instead.
func Loader(lc *pipeline.LoaderContext, source string) (string, error) {
	m := lc.Module

	// Build info was cleared by the rebuild; bring the staged copy back so
	// the cache sees it.
	if staged, ok := takeTemporaryMetaData(m); ok {
		m.BuildInfo[Namespace] = staged
	}

	var data any
	dec := json.NewDecoder(strings.NewReader(source))
	dec.UseNumber()
	if err := decodeSingle(dec, &data); err != nil {
		return "", errors.Wrap(errors.JSONMalformed, "cannot parse JSON in "+m.Resource, err).WithResource(m.Resource)
	}

	object, ok := data.(map[string]any)
	if !ok {
		lc.Logger.Debug("JSON is not an object, skipping")
		return source, nil
	}

	if moduleHasMetaData(m) {
		if md := metaDataOf(m); md.OptimizedKeys != nil {
			out, err := project(object, md.OptimizedKeys)
			if err != nil {
				return "", errors.Wrap(errors.JSONMalformed, "cannot encode optimized JSON for "+m.Resource, err).WithResource(m.Resource)
			}
			lc.Logger.Debug("Emitting optimized JSON", "keys", len(md.OptimizedKeys))
			return out, nil
		}
	}

	keys := make([]string, 0, len(object))
	keys = append(keys, slices.Sorted(maps.Keys(object))...)
	m.BuildInfo[Namespace] = &MetaData{AllKeys: keys}
	return source, nil
}

// decodeSingle decodes exactly one JSON value from dec.
func decodeSingle(dec *json.Decoder, v any) error {
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("invalid character after top-level value at offset %d", dec.InputOffset())
		}
		return err
	}
	return nil
}

// project returns the values of object for keys, in order, as a JSON array.
// Missing keys become null.
func project(object map[string]any, keys []string) (string, error) {
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = object[k]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
