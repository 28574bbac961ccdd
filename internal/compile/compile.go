// Package compile runs the whole per-unit pipeline: section split, the
// three section parsers, semantic analysis, and artifact emission. It is
// pure with respect to the file system; the builder feeds it unit text
// and writes whatever artifacts come back.
package compile

import (
	"context"

	"github.com/braidui/braid/internal/analyze"
	"github.com/braidui/braid/internal/codegen"
	"github.com/braidui/braid/internal/ctxlog"
	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/logic"
	"github.com/braidui/braid/internal/source"
	"github.com/braidui/braid/internal/style"
	"github.com/braidui/braid/internal/symbol"
	"github.com/braidui/braid/internal/template"
	"github.com/braidui/braid/render"
)

const defaultRootPackage = "ui"

// Options tunes one compilation.
type Options struct {
	// StrictDirectives turns unknown-directive warnings into errors.
	StrictDirectives bool
	// RootPackage names the Go package of artifacts for units at the
	// source root.
	RootPackage string
}

// Request is one unit plus the exports of its already-compiled imports,
// keyed by resolved unit ID.
type Request struct {
	Unit    *source.Unit
	Deps    map[string]symbol.Export
	Options Options
}

// Artifact is one emitted file, addressed relative to the output root.
type Artifact struct {
	Path string
	Data []byte
}

// Result is the outcome of compiling one unit. Render is set only when
// the unit compiled without errors; Style is set whenever the style
// section itself was clean, so a markup error does not cost the author
// their stylesheet.
type Result struct {
	Export symbol.Export
	Render *Artifact
	Style  *Artifact
	Diags  diag.List
}

// Unit compiles one unit. The returned error reports infrastructure
// failures (context cancelled, artifact formatting); authoring problems
// travel as diagnostics in the Result.
func Unit(ctx context.Context, req Request) (Result, error) {
	log := ctxlog.FromContext(ctx).With("unit", req.Unit.ID)

	sections, splitDiags := source.Split(req.Unit)
	diags := splitDiags

	lg, logicDiags := logic.Parse(req.Unit.ID, sections.Logic)
	diags = diags.Extend(logicDiags)

	var tpl *template.Template
	var tplDiags diag.List
	if sections.Template.Present {
		tpl, tplDiags = template.Parse(req.Unit.ID, sections.Template, template.Options{
			StrictDirectives: req.Options.StrictDirectives,
		})
		diags = diags.Extend(tplDiags)
	}

	var sheet *style.Stylesheet
	var styleDiags diag.List
	if sections.Style.Present {
		sheet, styleDiags = style.Parse(req.Unit.ID, sections.Style)
		diags = diags.Extend(styleDiags)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Analysis runs even over a partially parsed template: whatever tree
	// exists still yields useful symbol diagnostics.
	slots, analyzeDiags := analyze.Unit(analyze.Input{
		UnitID:   req.Unit.ID,
		Sections: sections,
		Table:    symbol.Build(lg),
		Template: tpl,
		Deps:     req.Deps,
	})
	diags = diags.Extend(analyzeDiags)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		Export: symbol.ExportOf(lg, slots),
		Diags:  diags,
	}

	splitClean := !splitDiags.HasErrors()
	token := ""
	if sections.Style.Present {
		token = render.ScopeToken(req.Unit.ID)
	}

	if splitClean && sections.Style.Present && !styleDiags.HasErrors() {
		res.Style = &Artifact{
			Path: codegen.StyleArtifactPath(req.Unit.ID),
			Data: codegen.StyleArtifact(req.Unit.ID, sheet),
		}
	}

	if !diags.HasErrors() {
		rootPkg := req.Options.RootPackage
		if rootPkg == "" {
			rootPkg = defaultRootPackage
		}
		spec := codegen.Lower(req.Unit.ID, token, tpl)
		data, err := codegen.RenderArtifact(spec, codegen.PackageFor(req.Unit.ID, rootPkg))
		if err != nil {
			return Result{}, err
		}
		res.Render = &Artifact{Path: codegen.RenderArtifactPath(req.Unit.ID), Data: data}
	}

	log.Debug("Unit compiled.",
		"errors", len(diags.Errors()),
		"render_artifact", res.Render != nil,
		"style_artifact", res.Style != nil)
	return res, nil
}
