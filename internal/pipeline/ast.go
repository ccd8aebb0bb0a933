package pipeline

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Node is a read-only view of a syntax node. It is only valid while the hook
// that received it runs; the tree behind it is released when parsing ends.
type Node interface {
	// Kind is the grammar node type, e.g. "string" or "identifier".
	Kind() string
	Range() Range
	Loc() Location
	Text() string
	// StringValue returns the decoded value of a string literal node.
	StringValue() (string, bool)
}

// CallExpression describes a call whose callee matched a registered name.
type CallExpression struct {
	Callee    string
	Arguments []Node
	loc       Location
	rng       Range
}

// NewCallExpression builds a call expression view.
func NewCallExpression(callee string, args []Node, rng Range, loc Location) *CallExpression {
	return &CallExpression{Callee: callee, Arguments: args, rng: rng, loc: loc}
}

// Loc returns the location of the whole call.
func (c *CallExpression) Loc() Location { return c.loc }

// Range returns the byte range of the whole call.
func (c *CallExpression) Range() Range { return c.rng }

// unquoteJS decodes a JavaScript single- or double-quoted string literal.
func unquoteJS(raw string) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}
	quote := raw[0]
	if (quote != '"' && quote != '\'') || raw[len(raw)-1] != quote {
		return "", false
	}
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, true
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", false
		}
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			r, width := decodeOctalEscape(body[i:])
			b.WriteRune(r)
			i += width - 1
		case '\n':
			// line continuation
		case 'x':
			if i+3 > len(body) {
				return "", false
			}
			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", false
			}
			b.WriteRune(rune(n))
			i += 2
		case 'u':
			r, width, ok := decodeUnicodeEscape(body[i+1:])
			if !ok {
				return "", false
			}
			b.WriteRune(r)
			i += width
		default:
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size - 1
		}
	}
	return b.String(), true
}

// decodeOctalEscape reads a legacy octal escape starting at s[0]. Escapes
// beginning with 0-3 take up to three digits, 4-7 up to two, so the value
// never exceeds \377.
func decodeOctalEscape(s string) (rune, int) {
	limit := 2
	if s[0] <= '3' {
		limit = 3
	}
	n, width := 0, 0
	for width < limit && width < len(s) && s[width] >= '0' && s[width] <= '7' {
		n = n*8 + int(s[width]-'0')
		width++
	}
	return rune(n), width
}

// decodeUnicodeEscape reads the part after `\u`: either XXXX or {X...}.
func decodeUnicodeEscape(s string) (rune, int, bool) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0, false
		}
		n, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || n > utf8.MaxRune {
			return 0, 0, false
		}
		return rune(n), end + 1, true
	}
	if len(s) < 4 {
		return 0, 0, false
	}
	n, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return rune(n), 4, true
}
