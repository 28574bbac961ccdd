package codegen

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/hashicorp/hcl/v2"
	"golang.org/x/tools/imports"

	"github.com/braidui/braid/internal/source"
	"github.com/braidui/braid/internal/style"
	"github.com/braidui/braid/render"
)

// RenderArtifactPath returns the render artifact path for a unit,
// relative to the output root.
func RenderArtifactPath(unitID string) string { return unitID + ".go" }

// StyleArtifactPath returns the stylesheet artifact path for a unit,
// relative to the output root.
func StyleArtifactPath(unitID string) string { return unitID + ".css" }

// ExportName derives the exported Go identifier stem for a unit:
// "pages/user-card.braid" becomes "UserCard".
func ExportName(unitID string) string {
	stem := strings.TrimSuffix(path.Base(unitID), source.Ext)
	var b strings.Builder
	up := true
	for _, r := range stem {
		switch {
		case unicode.IsLetter(r):
			if up {
				r = unicode.ToUpper(r)
				up = false
			}
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if b.Len() == 0 {
				b.WriteByte('U')
			}
			b.WriteRune(r)
			up = true
		default:
			up = true
		}
	}
	if b.Len() == 0 {
		return "Unit"
	}
	return b.String()
}

// PackageFor returns the Go package name for a unit's render artifact:
// root-level units use the configured root package, nested units their
// directory name with non-identifier characters removed.
func PackageFor(unitID, rootPackage string) string {
	dir := path.Dir(unitID)
	if dir == "." || dir == "" {
		return rootPackage
	}
	var b strings.Builder
	for _, r := range strings.ToLower(path.Base(dir)) {
		if unicode.IsLetter(r) || (unicode.IsDigit(r) && b.Len() > 0) || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return rootPackage
	}
	return b.String()
}

// RenderArtifact emits the Go source for a unit's render program: the
// program spec as a literal plus a constructor, formatted and
// import-pruned through x/tools.
func RenderArtifact(spec render.ProgramSpec, pkg string) ([]byte, error) {
	name := ExportName(spec.Unit)
	p := &printer{}

	p.line("// Code generated by braidc. DO NOT EDIT.")
	p.line("//")
	p.line("// Render program for %s.", spec.Unit)
	p.line("")
	p.line("package %s", pkg)
	p.line("")
	p.line("import (")
	p.line("\t%q", "github.com/hashicorp/hcl/v2")
	p.line("")
	p.line("\t%q", "github.com/braidui/braid/render")
	p.line(")")
	p.line("")
	p.line("// %sSpec is the lowered template of %s.", name, spec.Unit)
	p.open("var %sSpec = render.ProgramSpec{", name)
	p.line("Unit: %q,", spec.Unit)
	if spec.ScopeToken != "" {
		p.line("ScopeToken: %q,", spec.ScopeToken)
	}
	if len(spec.Roots) > 0 {
		p.opNodes("Roots", spec.Roots)
	}
	p.close("}")
	p.line("")
	p.line("// New%sProgram compiles the spec into an executable render program.", name)
	p.line("// Hosts compile once and render many times.")
	p.open("func New%sProgram() (*render.Program, error) {", name)
	p.line("return render.NewProgram(%sSpec)", name)
	p.close("}")

	out, err := imports.Process(RenderArtifactPath(spec.Unit), p.buf.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("format render artifact for %s: %w", spec.Unit, err)
	}
	return out, nil
}

// StyleArtifact emits the scoped stylesheet for a unit.
func StyleArtifact(unitID string, sheet *style.Stylesheet) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "/* Code generated by braidc. DO NOT EDIT. */\n")
	fmt.Fprintf(&b, "/* Scoped styles for %s. */\n\n", unitID)
	b.WriteString(style.Scope(sheet, render.ScopeAttr(render.ScopeToken(unitID))))
	return b.Bytes()
}

var kindName = map[render.OpKind]string{
	render.OpElement:   "render.OpElement",
	render.OpText:      "render.OpText",
	render.OpInterp:    "render.OpInterp",
	render.OpCond:      "render.OpCond",
	render.OpLoop:      "render.OpLoop",
	render.OpComponent: "render.OpComponent",
	render.OpSlot:      "render.OpSlot",
}

type printer struct {
	buf   bytes.Buffer
	depth int
}

func (p *printer) line(format string, args ...any) {
	for i := 0; i < p.depth; i++ {
		p.buf.WriteByte('\t')
	}
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
}

func (p *printer) open(format string, args ...any) {
	p.line(format, args...)
	p.depth++
}

func (p *printer) close(s string) {
	p.depth--
	p.line("%s", s)
}

func (p *printer) opNodes(field string, ops []render.OpNode) {
	p.open("%s: []render.OpNode{", field)
	for _, op := range ops {
		p.opNode(op)
	}
	p.close("},")
}

// opNode prints one node literal, omitting zero-valued fields so the
// artifact stays close to what a person would have written.
func (p *printer) opNode(op render.OpNode) {
	p.open("{")
	p.line("Kind: %s,", kindName[op.Kind])
	if op.Tag != "" {
		p.line("Tag: %q,", op.Tag)
	}
	if len(op.Attrs) > 0 {
		p.attrSpecs("Attrs", op.Attrs)
	}
	if len(op.Events) > 0 {
		p.open("Events: []render.Handler{")
		for _, h := range op.Events {
			p.line("{Event: %q, Method: %q},", h.Event, h.Method)
		}
		p.close("},")
	}
	if len(op.Children) > 0 {
		p.opNodes("Children", op.Children)
	}
	if op.Text != "" {
		p.line("Text: %q,", op.Text)
	}
	if op.Expr != nil {
		p.line("Expr: %s,", exprLit(op.Expr))
	}
	if len(op.Filters) > 0 {
		p.line("Filters: %s,", stringsLit(op.Filters))
	}
	if op.Cond != nil {
		p.line("Cond: %s,", exprLit(op.Cond))
	}
	if len(op.Then) > 0 {
		p.opNodes("Then", op.Then)
	}
	if len(op.Else) > 0 {
		p.opNodes("Else", op.Else)
	}
	if op.Item != "" {
		p.line("Item: %q,", op.Item)
	}
	if op.Index != "" {
		p.line("Index: %q,", op.Index)
	}
	if op.Seq != nil {
		p.line("Seq: %s,", exprLit(op.Seq))
	}
	if op.Key != nil {
		p.line("Key: %s,", exprLit(op.Key))
	}
	if len(op.Body) > 0 {
		p.opNodes("Body", op.Body)
	}
	if op.Component != "" {
		p.line("Component: %q,", op.Component)
	}
	if len(op.Props) > 0 {
		p.attrSpecs("Props", op.Props)
	}
	if len(op.SlotContent) > 0 {
		p.open("SlotContent: []render.SlotContentSpec{")
		for _, sc := range op.SlotContent {
			p.open("{")
			p.line("Name: %q,", sc.Name)
			if len(sc.Children) > 0 {
				p.opNodes("Children", sc.Children)
			}
			p.close("},")
		}
		p.close("},")
	}
	if op.SlotName != "" {
		p.line("SlotName: %q,", op.SlotName)
	}
	p.close("},")
}

func (p *printer) attrSpecs(field string, attrs []render.AttrSpec) {
	p.open("%s: []render.AttrSpec{", field)
	for _, a := range attrs {
		if a.Bound != nil {
			p.line("{Name: %q, Bound: %s},", a.Name, exprLit(a.Bound))
		} else {
			p.line("{Name: %q, Value: %q},", a.Name, a.Value)
		}
	}
	p.close("},")
}

func exprLit(e *render.ExprSpec) string {
	return fmt.Sprintf("&render.ExprSpec{Src: %q, Range: %s}", e.Src, rangeLit(e.Range))
}

func rangeLit(r hcl.Range) string {
	return fmt.Sprintf("hcl.Range{Filename: %q, Start: %s, End: %s}", r.Filename, posLit(r.Start), posLit(r.End))
}

func posLit(pos hcl.Pos) string {
	return fmt.Sprintf("hcl.Pos{Line: %d, Column: %d, Byte: %d}", pos.Line, pos.Column, pos.Byte)
}

func stringsLit(ss []string) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = fmt.Sprintf("%q", s)
	}
	return "[]string{" + strings.Join(parts, ", ") + "}"
}
