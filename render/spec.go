package render

import "github.com/hashicorp/hcl/v2"

// OpKind discriminates the operations of a ProgramSpec tree.
type OpKind string

const (
	OpElement   OpKind = "element"
	OpText      OpKind = "text"
	OpInterp    OpKind = "interp"
	OpCond      OpKind = "cond"
	OpLoop      OpKind = "loop"
	OpComponent OpKind = "component"
	OpSlot      OpKind = "slot"
)

// ExprSpec carries an expression as source text together with its position
// in the unit it came from, so compile and evaluation errors point back at
// the author's file.
type ExprSpec struct {
	Src   string
	Range hcl.Range
}

// AttrSpec describes one attribute of an element or one prop passed to a
// component. Static attributes carry their text in Value; bound attributes
// carry an expression in Bound and are evaluated at render time.
type AttrSpec struct {
	Name  string
	Value string
	Bound *ExprSpec
}

// SlotContentSpec groups the children passed to a component by target
// slot. The default slot has an empty name.
type SlotContentSpec struct {
	Name     string
	Children []OpNode
}

// OpNode is one operation of a compiled template. Only the fields for its
// Kind are populated; everything in an OpNode is plain data so a spec can
// be embedded in generated code as a composite literal.
type OpNode struct {
	Kind OpKind

	// Element operations.
	Tag      string
	Attrs    []AttrSpec
	Events   []Handler
	Children []OpNode

	// Text operations.
	Text string

	// Interpolation operations. Filters are applied to the evaluated
	// value left to right.
	Expr    *ExprSpec
	Filters []string

	// Conditional operations. Else may be empty.
	Cond *ExprSpec
	Then []OpNode
	Else []OpNode

	// Loop operations. Index is empty when the loop declares no index
	// variable; Key is nil for unkeyed loops.
	Item  string
	Index string
	Seq   *ExprSpec
	Key   *ExprSpec
	Body  []OpNode

	// Component operations.
	Component   string
	Props       []AttrSpec
	SlotContent []SlotContentSpec

	// Slot operations. Children doubles as the slot's fallback content.
	SlotName string
}

// ProgramSpec is the serializable form of a compiled render program.
type ProgramSpec struct {
	// Unit is the identifier of the unit this program was compiled from,
	// used to label errors.
	Unit string

	// ScopeToken is the unit's style scope token, or empty when the unit
	// has no style section. Every rendered element carries the derived
	// scope attribute as its final attribute.
	ScopeToken string

	// Roots is the template forest in source order.
	Roots []OpNode
}
