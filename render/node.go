// Package render evaluates compiled component programs into render trees.
//
// A ProgramSpec is the pure-data form of a compiled template: an operation
// tree whose expressions are carried as source text with positions.
// Generated Go artifacts embed a ProgramSpec literal, NewProgram compiles
// the embedded expressions once, and Render evaluates the program against
// a set of inputs. Rendering is a pure function: the same inputs always
// produce the same tree.
package render

import "github.com/zclconf/go-cty/cty"

// NodeKind discriminates the node variants of a render tree.
type NodeKind string

const (
	// KindElement is a plain markup element.
	KindElement NodeKind = "element"
	// KindText is literal or interpolated text.
	KindText NodeKind = "text"
	// KindComponent is an instantiation site for another unit.
	KindComponent NodeKind = "component"
	// KindSlot marks where a parent's slotted children are projected.
	KindSlot NodeKind = "slot"
	// KindEmpty is the stable placeholder left behind by a conditional
	// none of whose arms rendered.
	KindEmpty NodeKind = "empty"
)

// Attr is a rendered element attribute. Boolean attributes have an empty
// Value.
type Attr struct {
	Name  string
	Value string
}

// Handler binds an event on an element to a unit method by name. Methods
// are never invoked while rendering.
type Handler struct {
	Event  string
	Method string
}

// Node is a single node of a render tree. Only the fields for its Kind
// are populated.
type Node struct {
	Kind NodeKind

	// Tag, Attrs, Events, and Children describe element nodes. When the
	// unit has a style section its scope attribute is always the last
	// entry of Attrs.
	Tag      string
	Attrs    []Attr
	Events   []Handler
	Children []*Node

	// Text holds the content of text nodes.
	Text string

	// Component names the instantiated unit. Props holds its evaluated
	// prop values and Slots the rendered children grouped by slot name,
	// with the default slot under the empty name.
	Component string
	Props     map[string]cty.Value
	Slots     map[string][]*Node

	// SlotName identifies slot nodes. The default slot has an empty name;
	// Children holds the slot's rendered fallback content.
	SlotName string

	// Key is the reconciliation key attached to nodes produced by a
	// keyed loop iteration.
	Key string
}
