package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format represents the output format type
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

// Formats lists every supported format.
var Formats = []Format{FormatHuman, FormatJSON, FormatYAML, FormatTOML}

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format Format) error {
	if format == FormatHuman {
		_, err := io.WriteString(w, formatHuman(r))
		return err
	}
	return Encode(w, r, format)
}

// Encode writes v to w in one of the machine-readable formats.
func Encode(w io.Writer, v any, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		data, err = yaml.Marshal(v)
	case FormatTOML:
		data, err = toml.Marshal(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

func formatHuman(r *Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("JSON Access Report - build %s\n", r.BuildID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Accessor: %s\n", r.Accessor))
	if r.ValidateOnly {
		b.WriteString("Mode: validate only (JSON emitted unchanged)\n")
	}
	b.WriteString(fmt.Sprintf("Modules: %d (%d JSON)\n", r.Totals.Modules, r.Totals.JSONModules))
	b.WriteString(fmt.Sprintf("Warnings: %d, Errors: %d\n\n", r.Totals.Warnings, r.Totals.Errors))

	if len(r.Modules) > 0 {
		b.WriteString("JSON Modules:\n")
		for _, m := range r.Modules {
			marker := "✓"
			if !m.Optimized {
				marker = "-"
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", marker, m.Resource))
			b.WriteString(fmt.Sprintf("     Keys: %d of %d kept\n", m.SelectedKeys, m.Keys))
			b.WriteString(fmt.Sprintf("     Size: %s -> %s (gzip %s -> %s)\n",
				formatBytes(m.Sizes.Raw), formatBytes(m.Sizes.Optimized),
				formatBytes(m.Sizes.RawGzip), formatBytes(m.Sizes.OptimizedGzip)))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Total: %s -> %s (%.1f%% saved)\n\n",
			formatBytes(r.Totals.Sizes.Raw), formatBytes(r.Totals.Sizes.Optimized), r.Totals.Sizes.Saved()*100))
	}

	if len(r.Keys) > 0 {
		b.WriteString("Keys:\n")
		for _, k := range r.Keys {
			index := "?"
			if k.Index >= 0 {
				index = fmt.Sprintf("%d", k.Index)
			}
			b.WriteString(fmt.Sprintf("  [%s] %s: %d uses in %s\n", index, k.Key, k.Uses, strings.Join(k.Modules, ", ")))
		}
		b.WriteString("\n")
	}

	for _, w := range r.Warnings {
		b.WriteString(fmt.Sprintf("⚠ %s\n", w))
	}
	for _, e := range r.Errors {
		b.WriteString(fmt.Sprintf("✗ %s\n", e))
	}

	return b.String()
}

// formatBytes formats byte size in human-readable format
func formatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
