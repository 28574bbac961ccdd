// Package analyze performs the semantic checks that need the whole unit:
// template references against logic declarations, and component call
// sites against the exports of the units they import.
package analyze

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/expr"
	"github.com/braidui/braid/internal/source"
	"github.com/braidui/braid/internal/symbol"
	"github.com/braidui/braid/internal/template"
	"github.com/braidui/braid/render"
)

// Input is everything the analyzer sees for one unit. Deps holds the
// exports of the unit's imports keyed by resolved unit ID; the builder
// guarantees imports finish compiling before their importers run.
type Input struct {
	UnitID   string
	Sections source.Sections
	Table    *symbol.Table
	Template *template.Template
	Deps     map[string]symbol.Export
}

// Unit checks one unit and returns the slot names its template declares,
// in declaration order. The caller combines them with the unit's logic
// into its export.
func Unit(in Input) ([]string, diag.List) {
	w := &walker{
		unit:    in.UnitID,
		table:   in.Table,
		deps:    in.Deps,
		filters: map[string]bool{},
		slots:   map[string]hcl.Range{},
	}
	for name := range render.Filters() {
		w.filters[name] = true
	}

	if !in.Sections.Logic.Present && (in.Sections.Template.Present || in.Sections.Style.Present) {
		w.diags = w.diags.Append(&diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.CodeMalformedSection,
			Unit:     in.UnitID,
			Subject:  &hcl.Range{Filename: in.UnitID, Start: hcl.InitialPos, End: hcl.InitialPos},
			Summary:  "unit declares no logic section",
			Detail:   "A unit with a template or style section must declare a logic section, even an empty one.",
		})
	}

	w.checkImports()
	if in.Template != nil {
		w.walkAll(in.Template.Roots)
	}
	return w.slotOrder, w.diags
}

type walker struct {
	unit      string
	table     *symbol.Table
	deps      map[string]symbol.Export
	filters   map[string]bool
	scopes    []map[string]bool
	slots     map[string]hcl.Range
	slotOrder []string
	diags     diag.List
}

// checkImports verifies every import resolves to a unit the build knows
// about. Reporting here, at the declaration, keeps call-site checks free
// to assume a missing export was already diagnosed.
func (w *walker) checkImports() {
	names := make([]string, 0, len(w.table.Components))
	for name := range w.table.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		imp := w.table.Components[name]
		depID := source.ResolveImport(w.unit, imp.From)
		if _, ok := w.deps[depID]; !ok {
			w.errorf(diag.CodeUnresolvedSymbol, imp.DeclRange, "import %q does not resolve to a unit: %s", name, depID)
		}
	}
}

func (w *walker) walkAll(nodes []template.Node) {
	for _, n := range nodes {
		w.walk(n)
	}
}

func (w *walker) walk(n template.Node) {
	switch n := n.(type) {
	case *template.Text:
	case *template.Interpolation:
		w.checkExpr(n.Expr)
		for _, f := range n.Filters {
			if !w.filters[f] {
				w.errorf(diag.CodeUnresolvedSymbol, n.SrcRange, "unknown filter %q", f)
			}
		}
	case *template.Element:
		w.checkAttrs(n.Attrs)
		for _, ev := range n.Events {
			if _, ok := w.table.Methods[ev.Method]; !ok {
				w.errorf(diag.CodeUnresolvedSymbol, ev.SrcRange, "unknown method %q for @on:%s", ev.Method, ev.Event)
			}
		}
		w.walkAll(n.Children)
	case *template.Component:
		w.walkComponent(n)
	case *template.Slot:
		if prev, dup := w.slots[n.Name]; dup {
			w.errorf(diag.CodeMalformedMarkup, n.SrcRange, "duplicate slot %s (first declared at %s)", describeSlot(n.Name), prev.String())
		} else {
			w.slots[n.Name] = n.SrcRange
			w.slotOrder = append(w.slotOrder, n.Name)
		}
		w.walkAll(n.Fallback)
	case *template.Conditional:
		w.checkExpr(n.Cond)
		if n.Then != nil {
			w.walk(n.Then)
		}
		if n.Else != nil {
			w.walk(n.Else)
		}
	case *template.Loop:
		w.checkExpr(n.Seq)
		scope := map[string]bool{n.Item: true}
		if n.Index != "" {
			scope[n.Index] = true
		}
		w.scopes = append(w.scopes, scope)
		w.checkExpr(n.Key)
		if n.Body != nil {
			w.walk(n.Body)
		}
		w.scopes = w.scopes[:len(w.scopes)-1]
	}
}

// walkComponent checks a call site against the imported unit's export:
// every required prop present, every routed slot declared. Prop values
// and slotted children evaluate in this unit's scope, so they walk here.
func (w *walker) walkComponent(n *template.Component) {
	w.checkAttrs(n.Props)

	imp, known := w.table.Components[n.Name]
	if !known {
		w.errorf(diag.CodeUnresolvedSymbol, n.SrcRange, "unknown component <%s>: no matching import", n.Name)
		w.walkAll(n.Children)
		return
	}

	if ex, ok := w.deps[source.ResolveImport(w.unit, imp.From)]; ok {
		given := map[string]bool{}
		for _, a := range n.Props {
			given[a.Name] = true
		}
		for _, p := range ex.Props {
			if p.Required && !given[p.Name] {
				w.errorf(diag.CodeMissingRequiredProp, n.SrcRange, "component <%s> is missing required prop %q", n.Name, p.Name)
			}
		}
		for _, child := range n.Children {
			name, rng, routed := slotTarget(child)
			switch {
			case routed && !ex.HasSlot(name):
				w.warnf(diag.CodeUnknownSlot, rng, "component <%s> has no slot %q", n.Name, name)
			case !routed && !template.IsWhitespace(child) && !ex.HasSlot(""):
				w.warnf(diag.CodeUnknownSlot, child.Range(), "component <%s> has no default slot", n.Name)
			}
		}
	}
	w.walkAll(n.Children)
}

func (w *walker) checkAttrs(attrs []template.Attr) {
	for _, a := range attrs {
		if a.Bound != nil {
			w.checkExpr(a.Bound)
		}
	}
}

func (w *walker) checkExpr(e *template.Expr) {
	if e == nil || e.AST == nil {
		return
	}
	for _, ref := range expr.Roots(e.AST) {
		if !w.bound(ref.Name) {
			w.errorf(diag.CodeUnresolvedSymbol, ref.SrcRange, "unknown identifier %q", ref.Name)
		}
	}
	for _, ref := range expr.Calls(e.AST) {
		if !w.filters[ref.Name] {
			w.errorf(diag.CodeUnresolvedSymbol, ref.SrcRange, "unknown function %q", ref.Name)
		}
	}
}

// bound resolves a name through enclosing loop scopes, then the unit's
// prop/state namespace.
func (w *walker) bound(name string) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i][name] {
			return true
		}
	}
	return w.table.Ident(name)
}

// slotTarget inspects a component child for a static slot routing
// attribute.
func slotTarget(n template.Node) (name string, rng hcl.Range, routed bool) {
	var attrs []template.Attr
	switch n := n.(type) {
	case *template.Element:
		attrs = n.Attrs
	case *template.Component:
		attrs = n.Props
	default:
		return "", hcl.Range{}, false
	}
	for _, a := range attrs {
		if a.Name == "slot" && a.Bound == nil {
			return a.Value, a.NameRange, true
		}
	}
	return "", hcl.Range{}, false
}

func describeSlot(name string) string {
	if name == "" {
		return "(default)"
	}
	return fmt.Sprintf("%q", name)
}

func (w *walker) errorf(code diag.Code, rng hcl.Range, format string, args ...any) {
	w.append(diag.Error, code, rng, format, args...)
}

func (w *walker) warnf(code diag.Code, rng hcl.Range, format string, args ...any) {
	w.append(diag.Warning, code, rng, format, args...)
}

func (w *walker) append(sev diag.Severity, code diag.Code, rng hcl.Range, format string, args ...any) {
	w.diags = w.diags.Append(&diag.Diagnostic{
		Severity: sev,
		Code:     code,
		Unit:     w.unit,
		Subject:  &rng,
		Summary:  fmt.Sprintf(format, args...),
	})
}
