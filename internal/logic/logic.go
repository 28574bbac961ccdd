// Package logic decodes a unit's logic section: the prop, state, method,
// and import declarations that make up the unit's programmable surface.
package logic

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/source"
)

// Prop is a declared input. A prop with no usable default is required at
// every call site.
type Prop struct {
	Name      string
	Type      cty.Type
	Default   *cty.Value
	Required  bool
	DeclRange hcl.Range
}

// State is a declared piece of unit-local state with its initial value.
type State struct {
	Name      string
	Initial   cty.Value
	DeclRange hcl.Range
}

// Method is a declared handler target for @on bindings.
type Method struct {
	Name      string
	DeclRange hcl.Range
}

// Import binds a component name to another unit. From is kept as written;
// the builder resolves it against the importing unit's directory.
type Import struct {
	Name      string
	From      string
	DeclRange hcl.Range
}

// Logic is a decoded logic section. Declarations keep source order.
type Logic struct {
	Props   []*Prop
	States  []*State
	Methods []*Method
	Imports []*Import
}

// Prop, state, and method names share one identifier namespace; imports
// have their own since component names are capitalized by construction.

var logicSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "prop", LabelNames: []string{"name"}},
		{Type: "state", LabelNames: []string{"name"}},
		{Type: "method", LabelNames: []string{"name"}},
		{Type: "import", LabelNames: []string{"name"}},
	},
}

type propBody struct {
	Type    hcl.Expression `hcl:"type"`
	Default hcl.Expression `hcl:"default,optional"`
}

type stateBody struct {
	Initial hcl.Expression `hcl:"initial"`
}

type methodBody struct{}

type importBody struct {
	From string `hcl:"from"`
}

// Parse decodes a logic section. An absent or blank section is a legal
// empty Logic; whether the unit was allowed to omit it is the analyzer's
// question, not this package's.
func Parse(unitID string, sec source.Section) (*Logic, diag.List) {
	lg := &Logic{}
	if !sec.Present || strings.TrimSpace(sec.Text) == "" {
		return lg, nil
	}

	file, parseDiags := hclsyntax.ParseConfig([]byte(sec.Text), unitID, sec.Start)
	if parseDiags.HasErrors() {
		return lg, diag.FromHCL(unitID, diag.CodeInvalidLogic, parseDiags)
	}

	content, contentDiags := file.Body.Content(logicSchema)
	var diags diag.List
	diags = diags.Extend(diag.FromHCL(unitID, diag.CodeInvalidLogic, contentDiags))

	p := &decoder{unit: unitID, idents: map[string]hcl.Range{}, imports: map[string]hcl.Range{}}
	for _, block := range content.Blocks {
		switch block.Type {
		case "prop":
			p.decodeProp(lg, block)
		case "state":
			p.decodeState(lg, block)
		case "method":
			p.decodeMethod(lg, block)
		case "import":
			p.decodeImport(lg, block)
		}
	}
	return lg, diags.Extend(p.diags)
}

type decoder struct {
	unit    string
	idents  map[string]hcl.Range
	imports map[string]hcl.Range
	diags   diag.List
}

func (d *decoder) decodeProp(lg *Logic, block *hcl.Block) {
	name := block.Labels[0]
	if !d.claimIdent(name, block) {
		return
	}
	var body propBody
	if !d.decodeBody(block, &body) {
		return
	}

	typeVal, ok := d.evalStatic(body.Type, fmt.Sprintf("type of prop %q", name))
	if !ok {
		return
	}
	if typeVal.Type() != cty.String || typeVal.IsNull() {
		d.errorf(body.Type.Range(), "type of prop %q must be a type name string", name)
		return
	}
	typ, known := typeFromName(typeVal.AsString())
	if !known {
		d.errorf(body.Type.Range(), "unknown type %q for prop %q", typeVal.AsString(), name)
		return
	}

	prop := &Prop{Name: name, Type: typ, Required: true, DeclRange: block.DefRange}
	if body.Default != nil {
		dv, ok := d.evalStatic(body.Default, fmt.Sprintf("default of prop %q", name))
		if !ok {
			return
		}
		// A null default leaves the prop required, matching an absent one.
		if !dv.IsNull() {
			converted, err := convert.Convert(dv, typ)
			if err != nil {
				d.errorf(body.Default.Range(), "default of prop %q is not %s: %s", name, typ.FriendlyName(), err)
				return
			}
			prop.Default = &converted
			prop.Required = false
		}
	}
	lg.Props = append(lg.Props, prop)
}

func (d *decoder) decodeState(lg *Logic, block *hcl.Block) {
	name := block.Labels[0]
	if !d.claimIdent(name, block) {
		return
	}
	var body stateBody
	if !d.decodeBody(block, &body) {
		return
	}
	initial, ok := d.evalStatic(body.Initial, fmt.Sprintf("initial value of state %q", name))
	if !ok {
		return
	}
	lg.States = append(lg.States, &State{Name: name, Initial: initial, DeclRange: block.DefRange})
}

func (d *decoder) decodeMethod(lg *Logic, block *hcl.Block) {
	name := block.Labels[0]
	if !d.claimIdent(name, block) {
		return
	}
	var body methodBody
	if !d.decodeBody(block, &body) {
		return
	}
	lg.Methods = append(lg.Methods, &Method{Name: name, DeclRange: block.DefRange})
}

func (d *decoder) decodeImport(lg *Logic, block *hcl.Block) {
	name := block.Labels[0]
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		d.errorf(block.LabelRanges[0], "import name %q must be capitalized", name)
		return
	}
	if prev, dup := d.imports[name]; dup {
		d.errorf(block.LabelRanges[0], "duplicate import %q (first declared at %s)", name, prev.String())
		return
	}
	d.imports[name] = block.LabelRanges[0]

	var body importBody
	if !d.decodeBody(block, &body) {
		return
	}
	if !strings.HasSuffix(body.From, source.Ext) {
		d.errorf(block.DefRange, "import %q does not reference a %s unit: %q", name, source.Ext, body.From)
		return
	}
	lg.Imports = append(lg.Imports, &Import{Name: name, From: body.From, DeclRange: block.DefRange})
}

// claimIdent validates a declaration label and reserves it in the shared
// prop/state/method namespace.
func (d *decoder) claimIdent(name string, block *hcl.Block) bool {
	if !isIdent(name) {
		d.errorf(block.LabelRanges[0], "%s name %q is not a valid identifier", block.Type, name)
		return false
	}
	if prev, dup := d.idents[name]; dup {
		d.errorf(block.LabelRanges[0], "duplicate declaration of %q (first declared at %s)", name, prev.String())
		return false
	}
	d.idents[name] = block.LabelRanges[0]
	return true
}

func (d *decoder) decodeBody(block *hcl.Block, into any) bool {
	decodeDiags := gohcl.DecodeBody(block.Body, nil, into)
	if decodeDiags.HasErrors() {
		d.diags = d.diags.Extend(diag.FromHCL(d.unit, diag.CodeInvalidLogic, decodeDiags))
		return false
	}
	return true
}

// evalStatic evaluates an expression that may not reference anything.
func (d *decoder) evalStatic(e hcl.Expression, what string) (cty.Value, bool) {
	v, evalDiags := e.Value(nil)
	if evalDiags.HasErrors() {
		for _, hd := range evalDiags {
			hd.Summary = fmt.Sprintf("%s: %s", what, hd.Summary)
		}
		d.diags = d.diags.Extend(diag.FromHCL(d.unit, diag.CodeInvalidLogic, evalDiags))
		return cty.NilVal, false
	}
	return v, true
}

func (d *decoder) errorf(rng hcl.Range, format string, args ...any) {
	d.diags = d.diags.Append(&diag.Diagnostic{
		Severity: diag.Error,
		Code:     diag.CodeInvalidLogic,
		Unit:     d.unit,
		Subject:  &rng,
		Summary:  fmt.Sprintf(format, args...),
	})
}

func typeFromName(name string) (cty.Type, bool) {
	switch name {
	case "string":
		return cty.String, true
	case "number":
		return cty.Number, true
	case "bool":
		return cty.Bool, true
	case "list":
		return cty.List(cty.DynamicPseudoType), true
	case "map":
		return cty.Map(cty.DynamicPseudoType), true
	case "any":
		return cty.DynamicPseudoType, true
	}
	return cty.NilType, false
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

var importOnlySchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "import", LabelNames: []string{"name"}}},
}

var fromOnlySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "from", Required: true}},
}

// ScanImports extracts import targets without decoding the rest of the
// section. It is best effort: the builder seeds dependency edges from it,
// and the full Parse during compilation reports whatever is wrong.
func ScanImports(unitID string, sec source.Section) []*Import {
	if !sec.Present || strings.TrimSpace(sec.Text) == "" {
		return nil
	}
	file, _ := hclsyntax.ParseConfig([]byte(sec.Text), unitID, sec.Start)
	if file == nil {
		return nil
	}
	content, _, _ := file.Body.PartialContent(importOnlySchema)
	if content == nil {
		return nil
	}
	var out []*Import
	for _, block := range content.Blocks {
		inner, _, _ := block.Body.PartialContent(fromOnlySchema)
		if inner == nil {
			continue
		}
		attr, ok := inner.Attributes["from"]
		if !ok {
			continue
		}
		v, evalDiags := attr.Expr.Value(nil)
		if evalDiags.HasErrors() || v.IsNull() || v.Type() != cty.String {
			continue
		}
		out = append(out, &Import{Name: block.Labels[0], From: v.AsString(), DeclRange: block.DefRange})
	}
	return out
}
