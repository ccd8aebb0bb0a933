package pipeline

import (
	"time"
)

// Stats summarizes a finished compilation.
type Stats struct {
	BuildID   string
	StartTime time.Time
	EndTime   time.Time

	Modules []*Module
	// Warnings and Errors are collected from every module in resource
	// order, followed by compilation-level errors.
	Warnings []error
	Errors   []error
	// Assets maps emitted file paths to their content.
	Assets map[string]string
}

func newStats(c *Compilation, modules []*Module, assets map[string]string) *Stats {
	s := &Stats{
		BuildID: c.ID,
		Modules: modules,
		Assets:  assets,
	}
	for _, m := range modules {
		s.Warnings = append(s.Warnings, m.Warnings...)
		s.Errors = append(s.Errors, m.Errors...)
	}
	c.mu.Lock()
	s.Errors = append(s.Errors, c.errors...)
	c.mu.Unlock()
	return s
}

// HasWarnings reports whether any warning was raised.
func (s *Stats) HasWarnings() bool {
	return len(s.Warnings) > 0
}

// HasErrors reports whether the build failed.
func (s *Stats) HasErrors() bool {
	return len(s.Errors) > 0
}

// Module returns the module built from resource.
func (s *Stats) Module(resource string) (*Module, bool) {
	for _, m := range s.Modules {
		if m.Resource == resource {
			return m, true
		}
	}
	return nil, false
}
