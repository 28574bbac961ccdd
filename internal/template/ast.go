// Package template parses a unit's template section into a directive-free
// tree. Structural directives are lifted off their elements during parsing:
// @if becomes a Conditional wrapping the element, @each becomes a Loop, and
// when one element carries both, the loop wraps the conditional. @else
// attaches to the conditional built from the nearest previous @if sibling.
package template

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Node is one node of a parsed template.
type Node interface {
	node()
	Range() hcl.Range
}

// Expr is one embedded expression, kept both as source text and in parsed
// form. The source text is what code generation emits; the parsed form is
// what analysis inspects.
type Expr struct {
	Src      string
	AST      hclsyntax.Expression
	SrcRange hcl.Range
}

// Text is a literal text run, preserved verbatim.
type Text struct {
	Value    string
	SrcRange hcl.Range
}

// Interpolation is a {{ expr | filter }} splice producing a text node.
type Interpolation struct {
	Expr     *Expr
	Filters  []string
	SrcRange hcl.Range
}

// Attr is one attribute of an element or one prop passed to a component.
// Static attributes carry their literal text in Value; bound attributes
// carry an expression in Bound.
type Attr struct {
	Name      string
	Value     string
	Bound     *Expr
	NameRange hcl.Range
}

// EventHandler binds an event to a unit method by name.
type EventHandler struct {
	Event    string
	Method   string
	SrcRange hcl.Range
}

// Element is a plain markup element. SrcRange covers the opening tag.
type Element struct {
	Tag      string
	Attrs    []Attr
	Events   []EventHandler
	Children []Node
	SrcRange hcl.Range
}

// Component is an instantiation of another unit, recognized by its
// capitalized tag name. SrcRange covers the opening tag.
type Component struct {
	Name     string
	Props    []Attr
	Children []Node
	SrcRange hcl.Range
}

// Slot marks where a parent's children are projected. Fallback renders
// when the parent passes nothing for this slot.
type Slot struct {
	Name     string
	Fallback []Node
	SrcRange hcl.Range
}

// Conditional renders Then when its condition holds and Else otherwise.
// Else is nil until an @else sibling attaches to it.
type Conditional struct {
	Cond     *Expr
	Then     Node
	Else     Node
	SrcRange hcl.Range
}

// Loop renders Body once per element of Seq in order. Index is empty when
// the loop declares no index variable and Key is nil for unkeyed loops.
type Loop struct {
	Item     string
	Index    string
	Seq      *Expr
	Key      *Expr
	Body     Node
	SrcRange hcl.Range
}

func (*Text) node()          {}
func (*Interpolation) node() {}
func (*Element) node()       {}
func (*Component) node()     {}
func (*Slot) node()          {}
func (*Conditional) node()   {}
func (*Loop) node()          {}

func (n *Text) Range() hcl.Range          { return n.SrcRange }
func (n *Interpolation) Range() hcl.Range { return n.SrcRange }
func (n *Element) Range() hcl.Range       { return n.SrcRange }
func (n *Component) Range() hcl.Range     { return n.SrcRange }
func (n *Slot) Range() hcl.Range          { return n.SrcRange }
func (n *Conditional) Range() hcl.Range   { return n.SrcRange }
func (n *Loop) Range() hcl.Range          { return n.SrcRange }

// Template is a parsed template section: a forest of nodes in source
// order.
type Template struct {
	Roots []Node
}

// IsWhitespace reports whether a node is a text run containing only
// whitespace. Such runs are skipped when an @else looks back for its @if.
func IsWhitespace(n Node) bool {
	t, ok := n.(*Text)
	return ok && strings.TrimSpace(t.Value) == ""
}
