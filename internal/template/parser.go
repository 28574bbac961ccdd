package template

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/expr"
	"github.com/braidui/braid/internal/source"
)

// Options adjust how strictly the parser treats template content.
type Options struct {
	// StrictDirectives promotes unknown @ directives from warnings to
	// errors.
	StrictDirectives bool
}

// Parse parses a template section into a forest of nodes. Positions in
// the returned tree and diagnostics are absolute within the unit file.
// Errors that leave the parser without a consistent position to continue
// from stop the parse; the diagnostics carry everything found up to that
// point.
func Parse(unitID string, sec source.Section, opts Options) (*Template, diag.List) {
	p := &parser{
		unit:   unitID,
		src:    sec.Text,
		line:   sec.Start.Line,
		col:    sec.Start.Column,
		base:   sec.Start.Byte,
		strict: opts.StrictDirectives,
	}
	roots := p.parseNodes("")

	// Whitespace between top-level roots is layout, not content.
	var kept []Node
	for _, n := range roots {
		if IsWhitespace(n) {
			continue
		}
		kept = append(kept, n)
	}
	return &Template{Roots: kept}, p.diags
}

// voidElements need no closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

type parser struct {
	unit   string
	src    string
	pos    int
	line   int
	col    int
	base   int
	strict bool
	diags  diag.List
	fatal  bool
}

// tagParts is everything collected from one opening tag before directives
// are lifted into structural nodes.
type tagParts struct {
	attrs     []Attr
	events    []EventHandler
	ifExpr    *Expr
	ifRange   hcl.Range
	elseRange *hcl.Range
	each      *eachParts
	key       *Expr
	keyRange  hcl.Range
}

type eachParts struct {
	item     string
	index    string
	seq      *Expr
	srcRange hcl.Range
}

// parseNodes parses siblings until end of input or a closing tag. The
// matching closing tag is left unconsumed for the caller; a closing tag
// that matches nothing is fatal.
func (p *parser) parseNodes(closer string) []Node {
	var nodes []Node
	for !p.eof() && !p.fatal {
		switch {
		case p.hasPrefix("<!--"):
			p.skipComment()
		case p.hasPrefix("{{"):
			if n := p.parseInterpolation(); n != nil {
				nodes = append(nodes, n)
			}
		case p.hasPrefix("</"):
			if closer != "" {
				return nodes
			}
			p.fatal = true
			name := p.peekCloserName()
			p.report(diag.Error, diag.CodeUnclosedElement, p.rangeHere(len(name)+2),
				fmt.Sprintf("closing tag </%s> has no open element", name), "")
			return nodes
		case p.peek() == '<' && isAlpha(p.peekAt(1)):
			node, elseRange := p.parseElement()
			if node == nil {
				continue
			}
			if elseRange != nil {
				p.attachElse(nodes, node, *elseRange)
				continue
			}
			nodes = append(nodes, node)
		default:
			nodes = append(nodes, p.parseText())
		}
	}
	return nodes
}

// attachElse hangs an @else arm off the conditional built from the nearest
// previous @if sibling, skipping whitespace runs in between.
func (p *parser) attachElse(siblings []Node, arm Node, rng hcl.Range) {
	for i := len(siblings) - 1; i >= 0; i-- {
		if IsWhitespace(siblings[i]) {
			continue
		}
		if cond, ok := siblings[i].(*Conditional); ok && cond.Else == nil {
			cond.Else = arm
			return
		}
		break
	}
	p.report(diag.Error, diag.CodeInvalidDirective, rng, "@else has no matching @if",
		"an @else element must directly follow the element carrying the @if")
}

func (p *parser) parseText() *Text {
	start := p.at()
	startOff := p.pos
	for !p.eof() && !p.startsMarkup() {
		p.advance()
	}
	return &Text{Value: p.src[startOff:p.pos], SrcRange: p.rangeFrom(start)}
}

// startsMarkup reports whether the current position begins something other
// than text. A bare '<' followed by anything but a tag is plain text.
func (p *parser) startsMarkup() bool {
	if p.hasPrefix("{{") || p.hasPrefix("<!--") || p.hasPrefix("</") {
		return true
	}
	return p.peek() == '<' && isAlpha(p.peekAt(1))
}

func (p *parser) skipComment() {
	start := p.at()
	p.skip(4)
	for !p.eof() {
		if p.hasPrefix("-->") {
			p.skip(3)
			return
		}
		p.advance()
	}
	p.fatal = true
	p.report(diag.Error, diag.CodeMalformedMarkup, p.rangeFrom(start), "comment is never closed", "")
}

func (p *parser) parseInterpolation() Node {
	start := p.at()
	p.skip(2)
	contentStart := p.at()
	content, ok := p.scanInterpolationBody()
	if !ok {
		p.fatal = true
		p.report(diag.Error, diag.CodeMalformedMarkup, p.rangeFrom(start), "interpolation is never closed", "")
		return nil
	}

	segs := splitPipes(content)
	e := p.parseExprAt(segs[0].text, advancePos(contentStart, content[:segs[0].off]))
	if e == nil {
		return nil
	}
	var filters []string
	for _, seg := range segs[1:] {
		name := strings.TrimSpace(seg.text)
		if !isIdent(name) {
			fr := hcl.Range{Filename: p.unit, Start: advancePos(contentStart, content[:seg.off]), End: p.at()}
			p.report(diag.Error, diag.CodeInvalidExpression, fr, fmt.Sprintf("invalid filter name %q", name), "")
			return nil
		}
		filters = append(filters, name)
	}
	return &Interpolation{Expr: e, Filters: filters, SrcRange: p.rangeFrom(start)}
}

// scanInterpolationBody consumes up to the closing braces, which must sit
// outside any string literal or bracketed subexpression.
func (p *parser) scanInterpolationBody() (string, bool) {
	startOff := p.pos
	depth := 0
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
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
			p.advance()
		case depth <= 0 && p.hasPrefix("}}"):
			content := p.src[startOff:p.pos]
			p.skip(2)
			return content, true
		case ch == '{':
			depth++
			p.advance()
		case ch == '}':
			depth--
			p.advance()
		default:
			p.advance()
		}
	}
	return "", false
}

func (p *parser) parseElement() (Node, *hcl.Range) {
	openStart := p.at()
	p.skip(1)
	tag := p.scanName()

	var parts tagParts
	selfClosing := false
	for {
		p.skipSpace()
		if p.eof() {
			p.fatal = true
			p.report(diag.Error, diag.CodeUnclosedElement,
				hcl.Range{Filename: p.unit, Start: openStart, End: p.at()},
				fmt.Sprintf("element <%s> is never closed", tag), "")
			return nil, nil
		}
		if p.hasPrefix("/>") {
			p.skip(2)
			selfClosing = true
			break
		}
		if p.peek() == '>' {
			p.skip(1)
			break
		}
		if !p.parseAttr(tag, &parts) {
			return nil, nil
		}
	}
	openRange := p.rangeFrom(openStart)

	var children []Node
	if !selfClosing && !voidElements[tag] {
		children = p.parseNodes(tag)
		if p.fatal {
			return nil, nil
		}
		n, ok := p.closerLen(tag)
		if !ok {
			p.fatal = true
			detail := ""
			if found := p.peekCloserName(); found != "" {
				detail = fmt.Sprintf("found </%s> instead", found)
			}
			p.report(diag.Error, diag.CodeUnclosedElement, openRange,
				fmt.Sprintf("element <%s> is never closed", tag), detail)
			return nil, nil
		}
		p.skip(n)
	}

	node := p.buildNode(tag, openRange, &parts, children)
	node = p.liftDirectives(node, &parts)
	return node, parts.elseRange
}

func (p *parser) parseAttr(tag string, parts *tagParts) bool {
	nameStart := p.at()
	name := p.scanAttrName()
	if name == "" {
		p.fatal = true
		p.report(diag.Error, diag.CodeMalformedMarkup, p.rangeHere(1),
			fmt.Sprintf("malformed attribute in <%s>", tag), "")
		return false
	}
	nameRange := p.rangeFrom(nameStart)

	var value string
	var valueStart hcl.Pos
	hasValue := false
	if p.peek() == '=' {
		p.skip(1)
		quote := p.peek()
		if quote != '"' && quote != '\'' {
			p.fatal = true
			p.report(diag.Error, diag.CodeMalformedMarkup, nameRange,
				fmt.Sprintf("value of attribute %s must be quoted", name), "")
			return false
		}
		p.skip(1)
		valueStart = p.at()
		startOff := p.pos
		for !p.eof() && p.peek() != quote {
			p.advance()
		}
		if p.eof() {
			p.fatal = true
			p.report(diag.Error, diag.CodeMalformedMarkup, nameRange,
				fmt.Sprintf("value of attribute %s is never closed", name), "")
			return false
		}
		value = p.src[startOff:p.pos]
		p.skip(1)
		hasValue = true
	}

	switch {
	case strings.HasPrefix(name, "@on:"):
		event := name[len("@on:"):]
		switch {
		case event == "":
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "@on: needs an event name", "")
		case !hasValue || !isIdent(strings.TrimSpace(value)):
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange,
				fmt.Sprintf("%s must name a unit method", name), `for example @on:click="toggle"`)
		default:
			parts.events = append(parts.events, EventHandler{Event: event, Method: strings.TrimSpace(value), SrcRange: nameRange})
		}
	case name == "@if":
		switch {
		case parts.ifExpr != nil:
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "duplicate @if", "")
		case !hasValue:
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "@if needs a condition", "")
		default:
			parts.ifExpr = p.parseExprAt(value, valueStart)
			parts.ifRange = nameRange
		}
	case name == "@else":
		if hasValue {
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "@else does not take a value", "")
			break
		}
		r := nameRange
		parts.elseRange = &r
	case name == "@each":
		switch {
		case parts.each != nil:
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "duplicate @each", "")
		case !hasValue:
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "@each needs a binding", "")
		default:
			parts.each = p.parseEach(value, valueStart, nameRange)
		}
	case name == "@key":
		switch {
		case parts.key != nil:
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "duplicate @key", "")
		case !hasValue:
			p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "@key needs an expression", "")
		default:
			parts.key = p.parseExprAt(value, valueStart)
			parts.keyRange = nameRange
		}
	case strings.HasPrefix(name, "@"):
		sev := diag.Warning
		if p.strict {
			sev = diag.Error
		}
		p.report(sev, diag.CodeUnknownDirective, nameRange, fmt.Sprintf("unknown directive %s", name),
			"directives are @if, @else, @each, @key, and @on:<event>")
	case strings.HasPrefix(name, ":"):
		attrName := name[1:]
		if attrName == "" || !hasValue {
			p.report(diag.Error, diag.CodeMalformedMarkup, nameRange, "attribute binding needs a name and an expression", "")
			break
		}
		if e := p.parseExprAt(value, valueStart); e != nil {
			parts.attrs = append(parts.attrs, Attr{Name: attrName, Bound: e, NameRange: nameRange})
		}
	default:
		parts.attrs = append(parts.attrs, Attr{Name: name, Value: value, NameRange: nameRange})
	}
	return true
}

func (p *parser) parseEach(raw string, start hcl.Pos, nameRange hcl.Range) *eachParts {
	item, index, seqOff, ok := splitEach(raw)
	if !ok {
		p.report(diag.Error, diag.CodeInvalidDirective, nameRange, "malformed @each binding",
			`expected "item in expr" or "item, index in expr"`)
		return nil
	}
	seq := p.parseExprAt(raw[seqOff:], advancePos(start, raw[:seqOff]))
	if seq == nil {
		return nil
	}
	return &eachParts{item: item, index: index, seq: seq, srcRange: nameRange}
}

func (p *parser) buildNode(tag string, openRange hcl.Range, parts *tagParts, children []Node) Node {
	switch {
	case tag == "slot":
		return p.buildSlot(openRange, parts, children)
	case isComponentName(tag):
		if len(parts.events) > 0 {
			p.report(diag.Error, diag.CodeInvalidDirective, parts.events[0].SrcRange,
				fmt.Sprintf("event handlers cannot bind to component <%s>", tag),
				"events bind unit methods on plain elements")
		}
		return &Component{Name: tag, Props: parts.attrs, Children: children, SrcRange: openRange}
	default:
		return &Element{Tag: tag, Attrs: parts.attrs, Events: parts.events, Children: children, SrcRange: openRange}
	}
}

func (p *parser) buildSlot(openRange hcl.Range, parts *tagParts, children []Node) Node {
	name := ""
	for _, a := range parts.attrs {
		if a.Name == "name" && a.Bound == nil {
			name = a.Value
			continue
		}
		p.report(diag.Error, diag.CodeMalformedMarkup, a.NameRange,
			"slot elements accept only a static name attribute", "")
	}
	if len(parts.events) > 0 {
		p.report(diag.Error, diag.CodeInvalidDirective, parts.events[0].SrcRange,
			"slot elements cannot carry event handlers", "")
	}
	return &Slot{Name: name, Fallback: children, SrcRange: openRange}
}

// liftDirectives wraps an element in its structural directives. A loop
// wraps a conditional when one element carries both.
func (p *parser) liftDirectives(node Node, parts *tagParts) Node {
	if node == nil {
		return nil
	}
	if parts.elseRange != nil && parts.ifExpr != nil {
		p.report(diag.Error, diag.CodeInvalidDirective, *parts.elseRange, "@if and @else cannot share an element", "")
		parts.elseRange = nil
	}
	if parts.ifExpr != nil {
		node = &Conditional{Cond: parts.ifExpr, Then: node, SrcRange: parts.ifRange}
	}
	if parts.key != nil && parts.each == nil {
		p.report(diag.Error, diag.CodeInvalidDirective, parts.keyRange, "@key requires @each on the same element", "")
	}
	if parts.each != nil {
		node = &Loop{
			Item:     parts.each.item,
			Index:    parts.each.index,
			Seq:      parts.each.seq,
			Key:      parts.key,
			Body:     node,
			SrcRange: parts.each.srcRange,
		}
	}
	return node
}

// parseExprAt trims raw, parses it, and reports syntax problems. The
// returned expression carries its absolute range.
func (p *parser) parseExprAt(raw string, start hcl.Pos) *Expr {
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	src := strings.TrimSpace(raw)
	if src == "" {
		p.report(diag.Error, diag.CodeInvalidExpression,
			hcl.Range{Filename: p.unit, Start: start, End: advancePos(start, raw)},
			"empty expression", "")
		return nil
	}
	exprStart := advancePos(start, raw[:lead])
	ast, diags := expr.Parse(src, p.unit, exprStart)
	if diags.HasErrors() {
		p.diags = p.diags.Extend(diag.FromHCL(p.unit, diag.CodeInvalidExpression, diags))
		return nil
	}
	return &Expr{
		Src:      src,
		AST:      ast,
		SrcRange: hcl.Range{Filename: p.unit, Start: exprStart, End: advancePos(exprStart, src)},
	}
}

func (p *parser) report(sev diag.Severity, code diag.Code, rng hcl.Range, summary, detail string) {
	p.diags = p.diags.Append(&diag.Diagnostic{
		Severity: sev,
		Code:     code,
		Unit:     p.unit,
		Subject:  &rng,
		Summary:  summary,
		Detail:   detail,
	})
}

// Scanner primitives. Columns count bytes, matching the section splitter.

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) at() hcl.Pos {
	return hcl.Pos{Line: p.line, Column: p.col, Byte: p.base + p.pos}
}

func (p *parser) advance() byte {
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

func (p *parser) skip(n int) {
	for i := 0; i < n && !p.eof(); i++ {
		p.advance()
	}
}

func (p *parser) skipSpace() {
	for !p.eof() && isWS(p.peek()) {
		p.advance()
	}
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *parser) rangeFrom(start hcl.Pos) hcl.Range {
	return hcl.Range{Filename: p.unit, Start: start, End: p.at()}
}

func (p *parser) rangeHere(width int) hcl.Range {
	start := p.at()
	end := start
	end.Column += width
	end.Byte += width
	return hcl.Range{Filename: p.unit, Start: start, End: end}
}

func (p *parser) scanName() string {
	startOff := p.pos
	for !p.eof() && isNameChar(p.peek()) {
		p.advance()
	}
	return p.src[startOff:p.pos]
}

func (p *parser) scanAttrName() string {
	startOff := p.pos
	for !p.eof() && isAttrNameChar(p.peek()) {
		p.advance()
	}
	return p.src[startOff:p.pos]
}

// closerLen reports the byte length of the closing tag for tag when one
// starts at the current position.
func (p *parser) closerLen(tag string) (int, bool) {
	marker := "</" + tag
	if !p.hasPrefix(marker) {
		return 0, false
	}
	rest := p.src[p.pos+len(marker):]
	trimmed := strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(trimmed, ">") {
		return 0, false
	}
	return len(marker) + (len(rest) - len(trimmed)) + 1, true
}

func (p *parser) peekCloserName() string {
	if !p.hasPrefix("</") {
		return ""
	}
	i := p.pos + 2
	start := i
	for i < len(p.src) && isNameChar(p.src[i]) {
		i++
	}
	return p.src[start:i]
}

// pipeSeg is one pipe-separated segment of an interpolation, with its
// byte offset inside the interpolation content.
type pipeSeg struct {
	text string
	off  int
}

// splitPipes splits interpolation content on top-level single pipes. The
// || operator and pipes inside strings or brackets stay untouched.
func splitPipes(s string) []pipeSeg {
	var segs []pipeSeg
	segStart := 0
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '|':
			if depth == 0 {
				if i+1 < len(s) && s[i+1] == '|' {
					i++
					continue
				}
				segs = append(segs, pipeSeg{s[segStart:i], segStart})
				segStart = i + 1
			}
		}
	}
	return append(segs, pipeSeg{s[segStart:], segStart})
}

// splitEach breaks an @each binding into its item and index names and the
// offset where the sequence expression begins.
func splitEach(s string) (item, index string, seqOff int, ok bool) {
	i := 0
	skipWS := func() {
		for i < len(s) && isWS(s[i]) {
			i++
		}
	}
	ident := func() string {
		start := i
		for i < len(s) && isIdentChar(s[i], i == start) {
			i++
		}
		return s[start:i]
	}

	skipWS()
	if item = ident(); item == "" {
		return "", "", 0, false
	}
	skipWS()
	if i < len(s) && s[i] == ',' {
		i++
		skipWS()
		if index = ident(); index == "" {
			return "", "", 0, false
		}
		skipWS()
	}
	if !strings.HasPrefix(s[i:], "in") {
		return "", "", 0, false
	}
	i += 2
	if i < len(s) && !isWS(s[i]) {
		return "", "", 0, false
	}
	if strings.TrimSpace(s[i:]) == "" {
		return "", "", 0, false
	}
	return item, index, i, true
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

func isWS(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

func isAlpha(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isNameChar(ch byte) bool {
	return isAlpha(ch) || ch >= '0' && ch <= '9' || ch == '-'
}

func isAttrNameChar(ch byte) bool {
	return !isWS(ch) && ch != '=' && ch != '>' && ch != '/' && ch != '<' && ch != '"' && ch != '\'' && ch != 0
}

func isIdentChar(ch byte, first bool) bool {
	if isAlpha(ch) || ch == '_' {
		return true
	}
	return !first && ch >= '0' && ch <= '9'
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i], i == 0) {
			return false
		}
	}
	return true
}

func isComponentName(tag string) bool {
	return tag != "" && tag[0] >= 'A' && tag[0] <= 'Z'
}
