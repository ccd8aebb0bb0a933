// Package slogutil provides the slog handler and level helpers used by jsonopt.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Attribute keys the line handler lifts out of the key=value list into the
// scope in front of the message.
const (
	BuildKey  = "build"
	ModuleKey = "module"
)

// buildIDLength is how much of a build ID the scope shows.
const buildIDLength = 8

// LineHandler formats records as single lines:
//
//	TIMESTAMP [level] (build) module: Message | key=value key=value
//
// The build and module parts appear only when the logger carries those
// attributes, which the compiler attaches to every per-build and per-module
// logger.
type LineHandler struct {
	w     io.Writer
	level slog.Leveler
	mu    *sync.Mutex

	build  string
	module string
	// preformatted holds " key=value" pairs from WithAttrs.
	preformatted string
	prefix       string
}

// NewLineHandler creates a new line handler.
func NewLineHandler(w io.Writer, opts *slog.HandlerOptions) *LineHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &LineHandler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled reports whether the handler handles records at the given level.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	build, module := h.build, h.module
	var attrs strings.Builder
	attrs.WriteString(h.preformatted)
	r.Attrs(func(a slog.Attr) bool {
		switch {
		case h.prefix == "" && a.Key == BuildKey:
			build = a.Value.String()
		case h.prefix == "" && a.Key == ModuleKey:
			module = a.Value.String()
		default:
			appendAttr(&attrs, h.prefix, a)
		}
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(r.Time.UTC().Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(levelString(r.Level))
	buf.WriteString("] ")
	if build != "" {
		buf.WriteString("(")
		buf.WriteString(shortBuildID(build))
		buf.WriteString(") ")
	}
	if module != "" {
		buf.WriteString(module)
		buf.WriteString(": ")
	}
	buf.WriteString(r.Message)
	if attrs.Len() > 0 {
		buf.WriteString(" |")
		buf.WriteString(attrs.String())
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	var b strings.Builder
	b.WriteString(h.preformatted)
	for _, a := range attrs {
		switch {
		case h.prefix == "" && a.Key == BuildKey:
			h2.build = a.Value.String()
		case h.prefix == "" && a.Key == ModuleKey:
			h2.module = a.Value.String()
		default:
			appendAttr(&b, h.prefix, a)
		}
	}
	h2.preformatted = b.String()
	return &h2
}

// WithGroup returns a new handler whose later attributes are prefixed with
// name. Grouped attributes never feed the scope.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// appendAttr writes " key=value", flattening nested groups into dotted keys.
func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func shortBuildID(id string) string {
	if len(id) > buildIDLength {
		return id[:buildIDLength]
	}
	return id
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// formatValue renders v, quoting text that would break the key=value layout.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().Round(time.Microsecond).String()
	case slog.KindString:
		s = v.String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " =|\"\n") {
		return strconv.Quote(s)
	}
	return s
}
