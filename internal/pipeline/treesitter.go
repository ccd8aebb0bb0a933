//go:build cgo

package pipeline

import (
	"context"
	"fmt"
	"unicode/utf16"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// parseScript parses source with the tree-sitter JavaScript grammar, fires
// the program hook, then walks the tree dispatching call hooks and
// collecting module requests. All three script types share the grammar.
func parseScript(ctx context.Context, p *Parser, m *Module, source []byte) (*ParseResult, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	p.program(m)

	w := &scriptWalker{parser: p, module: m, source: source}
	w.walk(root)

	return &ParseResult{
		Requests:       w.requests,
		HasSyntaxError: root.HasError(),
	}, nil
}

type scriptWalker struct {
	parser   *Parser
	module   *Module
	source   []byte
	requests []string
}

func (w *scriptWalker) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "import_statement", "export_statement":
		if src := node.ChildByFieldName("source"); src != nil {
			w.addRequest(src)
		}
	case "call_expression":
		w.visitCall(node)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i))
	}
}

func (w *scriptWalker) visitCall(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil || args == nil || args.Type() != "arguments" {
		return
	}

	var argNodes []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		argNodes = append(argNodes, child)
	}

	// import("./x") parses with an `import` node as the callee
	if fn.Type() == "import" {
		if len(argNodes) == 1 {
			w.addRequest(argNodes[0])
		}
		return
	}

	callee := calleeName(fn, w.source)
	if callee == "" {
		return
	}
	if callee == "require" && len(argNodes) == 1 {
		w.addRequest(argNodes[0])
	}

	if !w.parser.hasCallHook(callee) {
		return
	}

	views := make([]Node, len(argNodes))
	for i, a := range argNodes {
		views[i] = sitterNode{node: a, source: w.source}
	}
	call := NewCallExpression(callee, views, nodeRange(node), nodeLocation(node, w.source))
	w.parser.call(w.module, call)
}

func (w *scriptWalker) addRequest(node *sitter.Node) {
	if node.Type() != "string" {
		return
	}
	if v, ok := unquoteJS(node.Content(w.source)); ok && v != "" {
		w.requests = append(w.requests, v)
	}
}

// calleeName renders an identifier or a chain of plain member accesses.
func calleeName(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "identifier":
		return node.Content(source)
	case "member_expression":
		object := node.ChildByFieldName("object")
		property := node.ChildByFieldName("property")
		if object == nil || property == nil || property.Type() != "property_identifier" {
			return ""
		}
		prefix := calleeName(object, source)
		if prefix == "" {
			return ""
		}
		return prefix + "." + property.Content(source)
	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return calleeName(node.NamedChild(0), source)
		}
	}
	return ""
}

func nodeRange(node *sitter.Node) Range {
	return Range{int(node.StartByte()), int(node.EndByte())}
}

func nodeLocation(node *sitter.Node, source []byte) Location {
	start, end := node.StartPoint(), node.EndPoint()
	return Location{
		Start: Position{Line: int(start.Row) + 1, Column: utf16Column(source, int(node.StartByte()), int(start.Column))},
		End:   Position{Line: int(end.Row) + 1, Column: utf16Column(source, int(node.EndByte()), int(end.Column))},
	}
}

// utf16Column converts a tree-sitter byte column into UTF-16 code units,
// the unit JavaScript tooling reports columns in.
func utf16Column(source []byte, offset, byteColumn int) int {
	lineStart := offset - byteColumn
	if lineStart < 0 || offset > len(source) {
		return byteColumn
	}
	column := 0
	for _, r := range string(source[lineStart:offset]) {
		column += utf16.RuneLen(r)
	}
	return column
}

// sitterNode adapts a tree-sitter node to Node.
type sitterNode struct {
	node   *sitter.Node
	source []byte
}

func (s sitterNode) Kind() string { return s.node.Type() }
func (s sitterNode) Range() Range { return nodeRange(s.node) }
func (s sitterNode) Loc() Location { return nodeLocation(s.node, s.source) }
func (s sitterNode) Text() string { return s.node.Content(s.source) }

func (s sitterNode) StringValue() (string, bool) {
	if s.node.Type() != "string" {
		return "", false
	}
	return unquoteJS(s.Text())
}
