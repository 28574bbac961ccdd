package render

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// Inputs are the values a program is evaluated against. Props and state
// share one identifier namespace; the compiler rejects collisions long
// before a program is built.
type Inputs struct {
	Props map[string]cty.Value
	State map[string]cty.Value
}

// Program is a compiled render program. It is safe for concurrent use.
type Program struct {
	spec  ProgramSpec
	exprs map[*ExprSpec]hclsyntax.Expression
	funcs map[string]function.Function
}

// NewProgram compiles every expression embedded in spec and validates its
// filter references. All problems are reported together.
func NewProgram(spec ProgramSpec) (*Program, error) {
	p := &Program{
		spec:  spec,
		exprs: make(map[*ExprSpec]hclsyntax.Expression),
		funcs: Filters(),
	}
	var errs []error
	compile := func(e *ExprSpec) {
		if e == nil {
			return
		}
		expr, diags := hclsyntax.ParseExpression([]byte(e.Src), e.Range.Filename, e.Range.Start)
		if diags.HasErrors() {
			errs = append(errs, fmt.Errorf("%s: parse expression %q: %w", e.Range.String(), e.Src, diags))
			return
		}
		p.exprs[e] = expr
	}
	var walk func(ops []OpNode)
	walk = func(ops []OpNode) {
		for i := range ops {
			op := &ops[i]
			for j := range op.Attrs {
				compile(op.Attrs[j].Bound)
			}
			for j := range op.Props {
				compile(op.Props[j].Bound)
			}
			compile(op.Expr)
			compile(op.Cond)
			compile(op.Seq)
			compile(op.Key)
			for _, name := range op.Filters {
				if _, ok := p.funcs[name]; !ok {
					errs = append(errs, fmt.Errorf("%s: unknown filter %q", op.Expr.Range.String(), name))
				}
			}
			walk(op.Children)
			walk(op.Then)
			walk(op.Else)
			walk(op.Body)
			for j := range op.SlotContent {
				walk(op.SlotContent[j].Children)
			}
		}
	}
	walk(spec.Roots)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compile program for %s: %w", spec.Unit, errors.Join(errs...))
	}
	return p, nil
}

// Spec returns the spec the program was compiled from.
func (p *Program) Spec() ProgramSpec { return p.spec }

// Render evaluates the program against in and returns the resulting
// forest in source order.
func (p *Program) Render(in Inputs) ([]*Node, error) {
	vars := make(map[string]cty.Value, len(in.Props)+len(in.State))
	for k, v := range in.Props {
		vars[k] = v
	}
	for k, v := range in.State {
		vars[k] = v
	}
	return p.renderOps(p.spec.Roots, vars)
}

func (p *Program) eval(e *ExprSpec, vars map[string]cty.Value) (cty.Value, error) {
	expr, ok := p.exprs[e]
	if !ok {
		return cty.NilVal, fmt.Errorf("expression %q was never compiled", e.Src)
	}
	v, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: p.funcs})
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("%s: evaluate %q: %w", e.Range.String(), e.Src, diags)
	}
	return v, nil
}

func (p *Program) renderOps(ops []OpNode, vars map[string]cty.Value) ([]*Node, error) {
	nodes := make([]*Node, 0, len(ops))
	for i := range ops {
		produced, err := p.renderOp(&ops[i], vars)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, produced...)
	}
	return nodes, nil
}

func (p *Program) renderOp(op *OpNode, vars map[string]cty.Value) ([]*Node, error) {
	switch op.Kind {
	case OpText:
		return []*Node{{Kind: KindText, Text: op.Text}}, nil
	case OpInterp:
		return p.renderInterp(op, vars)
	case OpElement:
		return p.renderElement(op, vars)
	case OpCond:
		return p.renderCond(op, vars)
	case OpLoop:
		return p.renderLoop(op, vars)
	case OpComponent:
		return p.renderComponent(op, vars)
	case OpSlot:
		fallback, err := p.renderOps(op.Children, vars)
		if err != nil {
			return nil, err
		}
		return []*Node{{Kind: KindSlot, SlotName: op.SlotName, Children: fallback}}, nil
	}
	return nil, fmt.Errorf("unknown operation kind %q", op.Kind)
}

func (p *Program) renderInterp(op *OpNode, vars map[string]cty.Value) ([]*Node, error) {
	v, err := p.eval(op.Expr, vars)
	if err != nil {
		return nil, err
	}
	for _, name := range op.Filters {
		v, err = p.funcs[name].Call([]cty.Value{v})
		if err != nil {
			return nil, fmt.Errorf("%s: filter %s: %w", op.Expr.Range.String(), name, err)
		}
	}
	text, err := stringify(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Expr.Range.String(), err)
	}
	return []*Node{{Kind: KindText, Text: text}}, nil
}

func (p *Program) renderElement(op *OpNode, vars map[string]cty.Value) ([]*Node, error) {
	n := &Node{Kind: KindElement, Tag: op.Tag}
	for i := range op.Attrs {
		a := &op.Attrs[i]
		if a.Bound == nil {
			n.Attrs = append(n.Attrs, Attr{Name: a.Name, Value: a.Value})
			continue
		}
		v, err := p.eval(a.Bound, vars)
		if err != nil {
			return nil, err
		}
		// Null and false drop the attribute, true renders it bare, any
		// other value renders as text.
		if v.IsNull() {
			continue
		}
		if v.Type() == cty.Bool {
			if v.False() {
				continue
			}
			n.Attrs = append(n.Attrs, Attr{Name: a.Name})
			continue
		}
		text, err := stringify(v)
		if err != nil {
			return nil, fmt.Errorf("%s: attribute %s: %w", a.Bound.Range.String(), a.Name, err)
		}
		n.Attrs = append(n.Attrs, Attr{Name: a.Name, Value: text})
	}
	if tok := p.spec.ScopeToken; tok != "" {
		n.Attrs = append(n.Attrs, Attr{Name: ScopeAttr(tok)})
	}
	n.Events = append(n.Events, op.Events...)
	children, err := p.renderOps(op.Children, vars)
	if err != nil {
		return nil, err
	}
	n.Children = children
	return []*Node{n}, nil
}

func (p *Program) renderCond(op *OpNode, vars map[string]cty.Value) ([]*Node, error) {
	v, err := p.eval(op.Cond, vars)
	if err != nil {
		return nil, err
	}
	b, convErr := convert.Convert(v, cty.Bool)
	if convErr != nil || b.IsNull() {
		return nil, fmt.Errorf("%s: condition %q is not a boolean", op.Cond.Range.String(), op.Cond.Src)
	}
	arm := op.Else
	if b.True() {
		arm = op.Then
	}
	nodes, err := p.renderOps(arm, vars)
	if err != nil {
		return nil, err
	}
	// A conditional always occupies its position in the tree so sibling
	// order is stable across renders.
	if len(nodes) == 0 {
		return []*Node{{Kind: KindEmpty}}, nil
	}
	return nodes, nil
}

func (p *Program) renderLoop(op *OpNode, vars map[string]cty.Value) ([]*Node, error) {
	seq, err := p.eval(op.Seq, vars)
	if err != nil {
		return nil, err
	}
	if seq.IsNull() {
		return nil, fmt.Errorf("%s: loop sequence %q is null", op.Seq.Range.String(), op.Seq.Src)
	}
	if !seq.CanIterateElements() {
		return nil, fmt.Errorf("%s: loop sequence %q is not iterable (%s)", op.Seq.Range.String(), op.Seq.Src, seq.Type().FriendlyName())
	}
	var out []*Node
	seen := make(map[string]bool)
	idx := 0
	for it := seq.ElementIterator(); it.Next(); idx++ {
		_, ev := it.Element()
		scope := make(map[string]cty.Value, len(vars)+2)
		for k, v := range vars {
			scope[k] = v
		}
		scope[op.Item] = ev
		if op.Index != "" {
			scope[op.Index] = cty.NumberIntVal(int64(idx))
		}
		nodes, err := p.renderOps(op.Body, scope)
		if err != nil {
			return nil, err
		}
		if op.Key != nil {
			kv, err := p.eval(op.Key, scope)
			if err != nil {
				return nil, err
			}
			key, err := stringify(kv)
			if err != nil {
				return nil, fmt.Errorf("%s: loop key: %w", op.Key.Range.String(), err)
			}
			if seen[key] {
				return nil, fmt.Errorf("%s: duplicate loop key %q", op.Key.Range.String(), key)
			}
			seen[key] = true
			for _, n := range nodes {
				n.Key = key
			}
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (p *Program) renderComponent(op *OpNode, vars map[string]cty.Value) ([]*Node, error) {
	n := &Node{Kind: KindComponent, Component: op.Component}
	if len(op.Props) > 0 {
		n.Props = make(map[string]cty.Value, len(op.Props))
	}
	for i := range op.Props {
		pr := &op.Props[i]
		if pr.Bound == nil {
			n.Props[pr.Name] = cty.StringVal(pr.Value)
			continue
		}
		v, err := p.eval(pr.Bound, vars)
		if err != nil {
			return nil, err
		}
		n.Props[pr.Name] = v
	}
	if len(op.SlotContent) > 0 {
		n.Slots = make(map[string][]*Node, len(op.SlotContent))
	}
	for i := range op.SlotContent {
		sc := &op.SlotContent[i]
		nodes, err := p.renderOps(sc.Children, vars)
		if err != nil {
			return nil, err
		}
		n.Slots[sc.Name] = nodes
	}
	return []*Node{n}, nil
}

// stringify converts an evaluated value to rendered text. Null renders as
// the empty string so absent optional props interpolate cleanly.
func stringify(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	if !v.IsWhollyKnown() {
		return "", errors.New("value is not known")
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("cannot render %s as text: %w", v.Type().FriendlyName(), err)
	}
	return s.AsString(), nil
}
