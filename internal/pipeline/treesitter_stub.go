//go:build !cgo

package pipeline

import (
	"context"
	"errors"
)

// ErrNoCGO is returned when script parsing is unavailable due to missing CGO.
var ErrNoCGO = errors.New("script parsing requires CGO (tree-sitter)")

// parseScript is a stub for non-CGO builds; script modules fail to build.
func parseScript(ctx context.Context, p *Parser, m *Module, source []byte) (*ParseResult, error) {
	return nil, ErrNoCGO
}
