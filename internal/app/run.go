package app

import (
	"context"
	"fmt"
	"io"

	"github.com/braidui/braid/internal/build"
	"github.com/braidui/braid/internal/compile"
	"github.com/braidui/braid/internal/ctxlog"
	"github.com/braidui/braid/internal/diag"
)

// Run executes one build pass and reports the outcome. A pass that
// produced error diagnostics returns a non-nil error so the process
// exits non-zero.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	builder, err := build.New(build.Options{
		SourceDir: a.cfg.SourceDir,
		OutDir:    a.cfg.OutputDir,
		Workers:   a.cfg.Workers,
		Compile: compile.Options{
			StrictDirectives: a.cfg.StrictDirectives,
			RootPackage:      a.cfg.Package,
		},
		Store: a.store,
	})
	if err != nil {
		return err
	}

	res, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build pass: %w", err)
	}

	printDiagnostics(a.outW, res.Diags)

	compiled, cached, failed := 0, 0, 0
	for _, r := range res.Units {
		switch r.Status {
		case build.StatusCompiled:
			compiled++
		case build.StatusCached:
			cached++
		case build.StatusFailed:
			failed++
		}
	}
	a.logger.Info("Build finished.",
		"compiled", compiled,
		"cached", cached,
		"failed", failed,
		"warnings", len(res.Diags)-len(res.Diags.Errors()),
	)

	if res.Failed {
		return fmt.Errorf("build failed with %d errors", len(res.Diags.Errors()))
	}
	return nil
}

// printDiagnostics renders the sorted diagnostic list grouped by unit.
func printDiagnostics(w io.Writer, diags diag.List) {
	lastUnit := ""
	for _, d := range diags {
		if d.Unit != lastUnit {
			fmt.Fprintf(w, "%s:\n", d.Unit)
			lastUnit = d.Unit
		}
		pos := ""
		if d.Subject != nil {
			pos = fmt.Sprintf("%d:%d: ", d.Subject.Start.Line, d.Subject.Start.Column)
		}
		fmt.Fprintf(w, "  %s[%s]: %s%s\n", d.Severity, d.Code, pos, d.Summary)
		if d.Detail != "" {
			fmt.Fprintf(w, "    %s\n", d.Detail)
		}
	}
}
