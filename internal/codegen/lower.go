// Package codegen lowers a validated unit into its two artifacts: a
// render program spec emitted as Go source, and a scoped stylesheet.
package codegen

import (
	"strings"

	"github.com/braidui/braid/internal/template"
	"github.com/braidui/braid/render"
)

// Lower flattens a validated template into the pure-data program spec
// the render package evaluates. scopeToken is empty for units without a
// style section, which suppresses the scope attribute entirely.
func Lower(unitID, scopeToken string, tpl *template.Template) render.ProgramSpec {
	spec := render.ProgramSpec{Unit: unitID, ScopeToken: scopeToken}
	if tpl != nil {
		spec.Roots = lowerAll(tpl.Roots)
	}
	return spec
}

func lowerAll(nodes []template.Node) []render.OpNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]render.OpNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, lowerNode(n))
	}
	return out
}

func lowerNode(n template.Node) render.OpNode {
	switch n := n.(type) {
	case *template.Text:
		return render.OpNode{Kind: render.OpText, Text: n.Value}
	case *template.Interpolation:
		return render.OpNode{Kind: render.OpInterp, Expr: exprSpec(n.Expr), Filters: n.Filters}
	case *template.Element:
		return render.OpNode{
			Kind:     render.OpElement,
			Tag:      n.Tag,
			Attrs:    attrSpecs(n.Attrs),
			Events:   handlers(n.Events),
			Children: lowerAll(n.Children),
		}
	case *template.Component:
		return lowerComponent(n)
	case *template.Slot:
		return render.OpNode{Kind: render.OpSlot, SlotName: n.Name, Children: lowerAll(n.Fallback)}
	case *template.Conditional:
		return render.OpNode{Kind: render.OpCond, Cond: exprSpec(n.Cond), Then: lowerArm(n.Then), Else: lowerArm(n.Else)}
	case *template.Loop:
		return render.OpNode{
			Kind:  render.OpLoop,
			Item:  n.Item,
			Index: n.Index,
			Seq:   exprSpec(n.Seq),
			Key:   exprSpec(n.Key),
			Body:  lowerArm(n.Body),
		}
	}
	return render.OpNode{Kind: render.OpText}
}

// lowerComponent partitions children into slot buckets, preserving the
// order each slot first appears. Indentation-only text between slotted
// children is dropped; a plain space run stays, since it is significant
// inline content.
func lowerComponent(n *template.Component) render.OpNode {
	op := render.OpNode{Kind: render.OpComponent, Component: n.Name, Props: attrSpecs(n.Props)}

	var order []string
	buckets := map[string][]render.OpNode{}
	for _, child := range n.Children {
		name, routed := routedSlot(child)
		if !routed {
			if indentationOnly(child) {
				continue
			}
			name = ""
		}
		if _, seen := buckets[name]; !seen {
			order = append(order, name)
		}
		buckets[name] = append(buckets[name], lowerNode(stripSlotAttr(child)))
	}
	for _, name := range order {
		op.SlotContent = append(op.SlotContent, render.SlotContentSpec{Name: name, Children: buckets[name]})
	}
	return op
}

// routedSlot reads a static slot attribute off a component child.
func routedSlot(n template.Node) (string, bool) {
	for _, a := range childAttrs(n) {
		if a.Name == "slot" && a.Bound == nil {
			return a.Value, true
		}
	}
	return "", false
}

func childAttrs(n template.Node) []template.Attr {
	switch n := n.(type) {
	case *template.Element:
		return n.Attrs
	case *template.Component:
		return n.Props
	}
	return nil
}

// stripSlotAttr removes the routing attribute so it never renders on the
// projected element. The input node is left untouched.
func stripSlotAttr(n template.Node) template.Node {
	switch n := n.(type) {
	case *template.Element:
		if !hasSlotAttr(n.Attrs) {
			return n
		}
		cp := *n
		cp.Attrs = withoutSlotAttr(n.Attrs)
		return &cp
	case *template.Component:
		if !hasSlotAttr(n.Props) {
			return n
		}
		cp := *n
		cp.Props = withoutSlotAttr(n.Props)
		return &cp
	}
	return n
}

func hasSlotAttr(attrs []template.Attr) bool {
	for _, a := range attrs {
		if a.Name == "slot" && a.Bound == nil {
			return true
		}
	}
	return false
}

func withoutSlotAttr(attrs []template.Attr) []template.Attr {
	out := make([]template.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Name == "slot" && a.Bound == nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

func indentationOnly(n template.Node) bool {
	t, ok := n.(*template.Text)
	return ok && strings.TrimSpace(t.Value) == "" && strings.ContainsRune(t.Value, '\n')
}

func lowerArm(n template.Node) []render.OpNode {
	if n == nil {
		return nil
	}
	return []render.OpNode{lowerNode(n)}
}

func attrSpecs(attrs []template.Attr) []render.AttrSpec {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]render.AttrSpec, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, render.AttrSpec{Name: a.Name, Value: a.Value, Bound: exprSpec(a.Bound)})
	}
	return out
}

func handlers(events []template.EventHandler) []render.Handler {
	if len(events) == 0 {
		return nil
	}
	out := make([]render.Handler, 0, len(events))
	for _, ev := range events {
		out = append(out, render.Handler{Event: ev.Event, Method: ev.Method})
	}
	return out
}

func exprSpec(e *template.Expr) *render.ExprSpec {
	if e == nil {
		return nil
	}
	return &render.ExprSpec{Src: e.Src, Range: e.SrcRange}
}
