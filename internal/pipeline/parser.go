package pipeline

import (
	"context"
	"sync"
)

// ProgramHook runs once per parsed script module, before any call hook.
type ProgramHook func(m *Module)

// CallHook runs once per call expression whose callee matches the hook key.
type CallHook func(m *Module, call *CallExpression)

// ParserHooks are the extension points of a Parser.
type ParserHooks struct {
	Program Hook[ProgramHook]
	// Call is keyed by callee name: an identifier ("__") or a member
	// chain ("i18n.t").
	Call HookMap[CallHook]
}

// Parser parses script modules of one type and dispatches parser hooks.
type Parser struct {
	Type  ModuleType
	Hooks ParserHooks

	mu sync.Mutex
}

// ParseResult is what the host needs from a parsed script.
type ParseResult struct {
	// Requests are module specifiers from import/export/require/import().
	Requests []string
	// HasSyntaxError is set when the grammar had to recover from errors.
	HasSyntaxError bool
}

// NewParser creates a parser for the given script type.
func NewParser(moduleType ModuleType) *Parser {
	return &Parser{Type: moduleType}
}

// Parse parses source on behalf of m. Calls are serialized per parser.
func (p *Parser) Parse(ctx context.Context, m *Module, source string) (*ParseResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return parseScript(ctx, p, m, []byte(source))
}

func (p *Parser) program(m *Module) {
	for _, fn := range p.Hooks.Program.Taps() {
		fn(m)
	}
}

func (p *Parser) hasCallHook(callee string) bool {
	h, ok := p.Hooks.Call.Get(callee)
	return ok && h.Len() > 0
}

func (p *Parser) call(m *Module, call *CallExpression) {
	h, ok := p.Hooks.Call.Get(call.Callee)
	if !ok {
		return
	}
	for _, fn := range h.Taps() {
		fn(m, call)
	}
}
