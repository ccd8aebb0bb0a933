// Package report summarizes what the optimizer did to each JSON module of a
// finished build: which keys survived and how many bytes that saved.
package report

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"jsonopt/internal/optimizer"
	"jsonopt/internal/paths"
	"jsonopt/internal/pipeline"
)

// Report is the summary of one build.
type Report struct {
	BuildID      string         `json:"buildId" yaml:"buildId" toml:"buildId"`
	Accessor     string         `json:"accessor" yaml:"accessor" toml:"accessor"`
	ValidateOnly bool           `json:"validateOnly" yaml:"validateOnly" toml:"validateOnly"`
	Totals       Totals         `json:"totals" yaml:"totals" toml:"totals"`
	Modules      []ModuleReport `json:"modules" yaml:"modules" toml:"modules"`
	Keys         []KeyUsage     `json:"keys" yaml:"keys" toml:"keys"`
	Warnings     []string       `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty"`
	Errors       []string       `json:"errors,omitempty" yaml:"errors,omitempty" toml:"errors,omitempty"`
}

// ModuleReport describes one JSON module.
type ModuleReport struct {
	Resource     string `json:"resource" yaml:"resource" toml:"resource"`
	Keys         int    `json:"keys" yaml:"keys" toml:"keys"`
	SelectedKeys int    `json:"selectedKeys" yaml:"selectedKeys" toml:"selectedKeys"`
	Optimized    bool   `json:"optimized" yaml:"optimized" toml:"optimized"`
	Sizes        Sizes  `json:"sizes" yaml:"sizes" toml:"sizes"`
}

// Sizes compares the file on disk with the emitted module source.
type Sizes struct {
	Raw           int `json:"raw" yaml:"raw" toml:"raw"`
	Optimized     int `json:"optimized" yaml:"optimized" toml:"optimized"`
	RawGzip       int `json:"rawGzip" yaml:"rawGzip" toml:"rawGzip"`
	OptimizedGzip int `json:"optimizedGzip" yaml:"optimizedGzip" toml:"optimizedGzip"`
}

// KeyUsage describes one selected key.
type KeyUsage struct {
	Key     string   `json:"key" yaml:"key" toml:"key"`
	Index   int      `json:"index" yaml:"index" toml:"index"`
	Uses    int      `json:"uses" yaml:"uses" toml:"uses"`
	Modules []string `json:"modules" yaml:"modules" toml:"modules"`
}

// Totals sums every module.
type Totals struct {
	Modules     int   `json:"modules" yaml:"modules" toml:"modules"`
	JSONModules int   `json:"jsonModules" yaml:"jsonModules" toml:"jsonModules"`
	Sizes       Sizes `json:"sizes" yaml:"sizes" toml:"sizes"`
	Warnings    int   `json:"warnings" yaml:"warnings" toml:"warnings"`
	Errors      int   `json:"errors" yaml:"errors" toml:"errors"`
}

// Options controls report assembly.
type Options struct {
	Accessor     string
	ValidateOnly bool
	// Root shortens resources in the report; empty keeps them absolute.
	Root string
}

// Build assembles the report for stats. Raw sizes are read from fs.
func Build(fs afero.Fs, stats *pipeline.Stats, opts Options) (*Report, error) {
	r := &Report{
		BuildID:      stats.BuildID,
		Accessor:     opts.Accessor,
		ValidateOnly: opts.ValidateOnly,
		Modules:      []ModuleReport{},
		Keys:         []KeyUsage{},
	}
	r.Totals.Modules = len(stats.Modules)
	r.Totals.Warnings = len(stats.Warnings)
	r.Totals.Errors = len(stats.Errors)
	for _, w := range stats.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	for _, e := range stats.Errors {
		r.Errors = append(r.Errors, e.Error())
	}

	modules := slices.Clone(stats.Modules)
	slices.SortFunc(modules, func(a, b *pipeline.Module) int {
		switch {
		case a.Resource < b.Resource:
			return -1
		case a.Resource > b.Resource:
			return 1
		}
		return 0
	})

	var selection []string
	usage := make(map[string]*KeyUsage)
	for _, m := range modules {
		md, ok := optimizer.Inspect(m)
		if !ok {
			continue
		}
		if md.AllKeys != nil {
			mr, err := moduleReport(fs, m, md, opts.Root)
			if err != nil {
				return nil, err
			}
			r.Modules = append(r.Modules, mr)
			addSizes(&r.Totals.Sizes, mr.Sizes)
			if md.OptimizedKeys != nil && selection == nil {
				selection = md.OptimizedKeys
			}
			continue
		}
		for key, sites := range md.UsedKeysInModule {
			u, ok := usage[key]
			if !ok {
				u = &KeyUsage{Key: key, Index: -1}
				usage[key] = u
			}
			u.Uses += len(sites)
			u.Modules = append(u.Modules, paths.Display(m.Resource, opts.Root))
		}
	}
	r.Totals.JSONModules = len(r.Modules)

	for i, key := range selection {
		if u, ok := usage[key]; ok {
			u.Index = i
		}
	}
	for _, u := range usage {
		r.Keys = append(r.Keys, *u)
	}
	// Selected keys in index order, then unselected (unknown) keys by name.
	slices.SortFunc(r.Keys, func(a, b KeyUsage) int {
		switch {
		case a.Index >= 0 && b.Index >= 0:
			return a.Index - b.Index
		case a.Index >= 0:
			return -1
		case b.Index >= 0:
			return 1
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return r, nil
}

func moduleReport(fs afero.Fs, m *pipeline.Module, md optimizer.MetaData, root string) (ModuleReport, error) {
	raw, err := afero.ReadFile(fs, m.Resource)
	if err != nil {
		return ModuleReport{}, fmt.Errorf("failed to read %s: %w", m.Resource, err)
	}
	sizes, err := measure(raw, []byte(m.Source))
	if err != nil {
		return ModuleReport{}, err
	}
	return ModuleReport{
		Resource:     paths.Display(m.Resource, root),
		Keys:         len(md.AllKeys),
		SelectedKeys: len(md.OptimizedKeys),
		Optimized:    md.OptimizedKeys != nil,
		Sizes:        sizes,
	}, nil
}

func measure(raw, optimized []byte) (Sizes, error) {
	rawGzip, err := gzipSize(raw)
	if err != nil {
		return Sizes{}, err
	}
	optimizedGzip, err := gzipSize(optimized)
	if err != nil {
		return Sizes{}, err
	}
	return Sizes{
		Raw:           len(raw),
		Optimized:     len(optimized),
		RawGzip:       rawGzip,
		OptimizedGzip: optimizedGzip,
	}, nil
}

// gzipSize is the size of data after gzip at the best compression level.
func gzipSize(data []byte) (int, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

func addSizes(total *Sizes, s Sizes) {
	total.Raw += s.Raw
	total.Optimized += s.Optimized
	total.RawGzip += s.RawGzip
	total.OptimizedGzip += s.OptimizedGzip
}

// Saved returns the fraction of raw bytes removed, in [0, 1].
func (s Sizes) Saved() float64 {
	if s.Raw == 0 {
		return 0
	}
	return 1 - float64(s.Optimized)/float64(s.Raw)
}
