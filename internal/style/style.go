// Package style parses a unit's style section and rewrites its selectors
// so declarations only reach elements the unit renders.
package style

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/source"
)

// Item is one top-level entry of a stylesheet, in source order.
type Item interface{ item() }

// Stylesheet is a parsed style section.
type Stylesheet struct {
	Items []Item
}

// Rule is a selector list with its declaration block. SrcRange covers the
// selector list.
type Rule struct {
	Selectors []Selector
	Decls     []Declaration
	SrcRange  hcl.Range
}

// AtRule is a parsed @media block. Only media queries are supported; the
// query text is kept verbatim.
type AtRule struct {
	Name     string
	Params   string
	Rules    []*Rule
	SrcRange hcl.Range
}

func (*Rule) item()   {}
func (*AtRule) item() {}

// Selector is one comma-separated member of a rule's selector list,
// trimmed but otherwise verbatim.
type Selector struct {
	Text     string
	SrcRange hcl.Range
}

// Declaration is one property-value pair.
type Declaration struct {
	Property string
	Value    string
	SrcRange hcl.Range
}

// Parse parses a style section. Diagnostics carry absolute positions in
// the unit file; the parser recovers where it can so one bad declaration
// does not hide the rest.
func Parse(unitID string, sec source.Section) (*Stylesheet, diag.List) {
	p := &cssParser{
		unit: unitID,
		src:  sec.Text,
		line: sec.Start.Line,
		col:  sec.Start.Column,
		base: sec.Start.Byte,
	}
	items := p.parseItems(false)
	return &Stylesheet{Items: items}, p.diags
}

type cssParser struct {
	unit  string
	src   string
	pos   int
	line  int
	col   int
	base  int
	diags diag.List
	fatal bool
}

func (p *cssParser) parseItems(nested bool) []Item {
	var items []Item
	for !p.fatal {
		if !p.skipBlank(diag.CodeInvalidSelector) {
			return items
		}
		if p.eof() {
			return items
		}
		switch {
		case p.peek() == '}':
			if nested {
				return items
			}
			p.report(diag.CodeInvalidSelector, p.rangeHere(1), "unexpected '}'", "")
			p.advance()
		case p.peek() == '@':
			if item := p.parseAtRule(); item != nil {
				items = append(items, item)
			}
		default:
			if rule := p.parseRule(); rule != nil {
				items = append(items, rule)
			}
		}
	}
	return items
}

func (p *cssParser) parseAtRule() Item {
	start := p.at()
	p.advance()
	name := p.scanIdent()
	if name != "media" {
		p.report(diag.CodeInvalidSelector, p.rangeFrom(start),
			fmt.Sprintf("unsupported at-rule @%s", name), "only @media blocks are supported")
		p.skipPastBlockOrSemi()
		return nil
	}
	paramsStart := p.pos
	for !p.eof() && p.peek() != '{' && p.peek() != ';' && p.peek() != '}' {
		p.advance()
	}
	params := strings.TrimSpace(p.src[paramsStart:p.pos])
	if p.eof() || p.peek() != '{' || params == "" {
		p.fatal = true
		p.report(diag.CodeInvalidSelector, p.rangeFrom(start), "malformed @media rule",
			"expected @media <query> { ... }")
		return nil
	}
	p.advance()

	inner := p.parseItems(true)
	var rules []*Rule
	for _, item := range inner {
		if r, ok := item.(*Rule); ok {
			rules = append(rules, r)
			continue
		}
		p.report(diag.CodeInvalidSelector, item.(*AtRule).SrcRange, "at-rules cannot nest", "")
	}
	if p.eof() || p.peek() != '}' {
		p.fatal = true
		p.report(diag.CodeInvalidDeclaration, p.rangeFrom(start), "@media block is never closed", "")
		return nil
	}
	p.advance()
	return &AtRule{Name: name, Params: params, Rules: rules, SrcRange: p.rangeFrom(start)}
}

func (p *cssParser) parseRule() *Rule {
	selStart := p.at()
	selOff := p.pos
	depthPar, depthBr := 0, 0
	var quote byte
	for !p.eof() {
		ch := p.peek()
		if quote != 0 {
			if ch == '\\' {
				p.skip(2)
				continue
			}
			if ch == quote {
				quote = 0
			}
			p.advance()
			continue
		}
		if ch == '{' && depthPar == 0 && depthBr == 0 {
			break
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depthPar++
		case ')':
			depthPar--
		case '[':
			depthBr++
		case ']':
			depthBr--
		case '}', ';':
			if depthPar == 0 && depthBr == 0 {
				p.fatal = true
				p.report(diag.CodeInvalidSelector, p.rangeFrom(selStart), "selector has no declaration block", "")
				return nil
			}
		}
		p.advance()
	}
	if p.eof() {
		p.fatal = true
		p.report(diag.CodeInvalidSelector, p.rangeFrom(selStart), "selector has no declaration block", "")
		return nil
	}
	raw := p.src[selOff:p.pos]
	selRange := p.rangeFrom(selStart)
	p.advance()

	selectors := p.splitSelectors(raw, selStart)
	decls, closed := p.parseDecls()
	if !closed {
		p.fatal = true
		p.report(diag.CodeInvalidDeclaration, selRange, "declaration block is never closed", "")
		return nil
	}
	if len(selectors) == 0 {
		return nil
	}
	return &Rule{Selectors: selectors, Decls: decls, SrcRange: selRange}
}

// splitSelectors breaks a raw selector list on top-level commas and
// validates each member.
func (p *cssParser) splitSelectors(raw string, start hcl.Pos) []Selector {
	var out []Selector
	add := func(member string, off int) {
		lead := len(member) - len(strings.TrimLeft(member, " \t\r\n"))
		text := strings.TrimSpace(member)
		memberStart := advancePos(start, raw[:off+lead])
		memberRange := hcl.Range{Filename: p.unit, Start: memberStart, End: advancePos(memberStart, text)}
		if text == "" {
			p.report(diag.CodeInvalidSelector, memberRange, "empty selector", "")
			return
		}
		if problem := checkSelector(text); problem != "" {
			p.report(diag.CodeInvalidSelector, memberRange, fmt.Sprintf("invalid selector %q", text), problem)
			return
		}
		out = append(out, Selector{Text: text, SrcRange: memberRange})
	}

	segStart := 0
	depthPar, depthBr := 0, 0
	var quote byte
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depthPar++
		case ')':
			depthPar--
		case '[':
			depthBr++
		case ']':
			depthBr--
		case ',':
			if depthPar == 0 && depthBr == 0 {
				add(raw[segStart:i], segStart)
				segStart = i + 1
			}
		}
	}
	add(raw[segStart:], segStart)
	return out
}

// checkSelector reports what is wrong with a selector member, or "".
func checkSelector(s string) string {
	depthPar, depthBr := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depthPar++
		case ')':
			depthPar--
		case '[':
			depthBr++
		case ']':
			depthBr--
		case ':':
			if strings.HasPrefix(s[i:], ":global") {
				rest := s[i+len(":global"):]
				if !strings.HasPrefix(rest, "(") {
					return ":global needs a parenthesized selector"
				}
			}
		}
		if depthPar < 0 || depthBr < 0 {
			return "unbalanced brackets"
		}
	}
	if quote != 0 {
		return "unterminated string"
	}
	if depthPar != 0 || depthBr != 0 {
		return "unbalanced brackets"
	}
	return ""
}

// parseDecls parses up to and including the closing brace. closed is false
// when input ends first.
func (p *cssParser) parseDecls() (decls []Declaration, closed bool) {
	for {
		if !p.skipBlank(diag.CodeInvalidDeclaration) {
			return decls, false
		}
		if p.eof() {
			return decls, false
		}
		if p.peek() == '}' {
			p.advance()
			return decls, true
		}
		if p.peek() == ';' {
			p.advance()
			continue
		}

		declStart := p.at()
		prop := p.scanIdent()
		p.skipSpace()
		if prop == "" || p.eof() || p.peek() != ':' {
			p.report(diag.CodeInvalidDeclaration, p.rangeFrom(declStart),
				"malformed declaration", "expected property: value")
			if !p.skipToDeclEnd() {
				return decls, false
			}
			continue
		}
		p.advance()

		value, ok := p.scanValue()
		if !ok {
			return decls, false
		}
		if value == "" {
			p.report(diag.CodeInvalidDeclaration, p.rangeFrom(declStart),
				fmt.Sprintf("declaration %s has no value", prop), "")
			continue
		}
		decls = append(decls, Declaration{Property: prop, Value: value, SrcRange: p.rangeFromTo(declStart, p.at())})
	}
}

// scanValue reads a declaration value up to ';' or the closing '}'. The
// terminating ';' is consumed; a '}' is left for parseDecls.
func (p *cssParser) scanValue() (string, bool) {
	startOff := p.pos
	depthPar := 0
	var quote byte
	for !p.eof() {
		ch := p.peek()
		if quote != 0 {
			if ch == '\\' {
				p.skip(2)
				continue
			}
			if ch == quote {
				quote = 0
			}
			p.advance()
			continue
		}
		if p.hasPrefix("/*") {
			if !p.skipComment() {
				return "", false
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
			p.advance()
		case ch == '(':
			depthPar++
			p.advance()
		case ch == ')':
			depthPar--
			p.advance()
		case ch == ';' && depthPar == 0:
			value := strings.TrimSpace(p.src[startOff:p.pos])
			p.advance()
			return value, true
		case ch == '}' && depthPar == 0:
			return strings.TrimSpace(p.src[startOff:p.pos]), true
		default:
			p.advance()
		}
	}
	return "", false
}

// skipToDeclEnd recovers after a malformed declaration by skipping to the
// next ';' or the closing '}'.
func (p *cssParser) skipToDeclEnd() bool {
	for !p.eof() {
		switch p.peek() {
		case ';':
			p.advance()
			return true
		case '}':
			return true
		}
		p.advance()
	}
	return false
}

// skipPastBlockOrSemi recovers after an unsupported at-rule.
func (p *cssParser) skipPastBlockOrSemi() {
	depth := 0
	for !p.eof() {
		switch p.peek() {
		case ';':
			if depth == 0 {
				p.advance()
				return
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth <= 0 {
				p.advance()
				return
			}
		}
		p.advance()
	}
}

// skipBlank consumes whitespace and comments. It reports an unterminated
// comment under the caller's context code.
func (p *cssParser) skipBlank(code diag.Code) bool {
	for !p.eof() {
		if isSpaceByte(p.peek()) {
			p.advance()
			continue
		}
		if p.hasPrefix("/*") {
			start := p.at()
			if !p.skipComment() {
				p.fatal = true
				p.report(code, p.rangeFrom(start), "comment is never closed", "")
				return false
			}
			continue
		}
		return true
	}
	return true
}

func (p *cssParser) skipComment() bool {
	p.skip(2)
	for !p.eof() {
		if p.hasPrefix("*/") {
			p.skip(2)
			return true
		}
		p.advance()
	}
	return false
}

func (p *cssParser) scanIdent() string {
	startOff := p.pos
	for !p.eof() && isIdentByte(p.peek()) {
		p.advance()
	}
	return p.src[startOff:p.pos]
}

func (p *cssParser) report(code diag.Code, rng hcl.Range, summary, detail string) {
	p.diags = p.diags.Append(&diag.Diagnostic{
		Severity: diag.Error,
		Code:     code,
		Unit:     p.unit,
		Subject:  &rng,
		Summary:  summary,
		Detail:   detail,
	})
}

func (p *cssParser) eof() bool { return p.pos >= len(p.src) }

func (p *cssParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *cssParser) at() hcl.Pos {
	return hcl.Pos{Line: p.line, Column: p.col, Byte: p.base + p.pos}
}

func (p *cssParser) advance() byte {
	ch := p.src[p.pos]
	p.pos++
	if ch == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return ch
}

func (p *cssParser) skip(n int) {
	for i := 0; i < n && !p.eof(); i++ {
		p.advance()
	}
}

func (p *cssParser) skipSpace() {
	for !p.eof() && isSpaceByte(p.peek()) {
		p.advance()
	}
}

func (p *cssParser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *cssParser) rangeFrom(start hcl.Pos) hcl.Range {
	return hcl.Range{Filename: p.unit, Start: start, End: p.at()}
}

func (p *cssParser) rangeFromTo(start, end hcl.Pos) hcl.Range {
	return hcl.Range{Filename: p.unit, Start: start, End: end}
}

func (p *cssParser) rangeHere(width int) hcl.Range {
	start := p.at()
	end := start
	end.Column += width
	end.Byte += width
	return hcl.Range{Filename: p.unit, Start: start, End: end}
}

func advancePos(p hcl.Pos, s string) hcl.Pos {
	for i := 0; i < len(s); i++ {
		p.Byte++
		if s[i] == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	return p
}

func isSpaceByte(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

func isIdentByte(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '-' || ch == '_'
}
