// Package braid compiles single-file UI components into render-program
// and scoped-stylesheet artifacts. This package is the embedding facade
// for host programs such as dev servers and editor tooling; the braidc
// command wraps the same machinery for the command line.
package braid

import (
	"context"

	"github.com/braidui/braid/internal/build"
	"github.com/braidui/braid/internal/cache"
	"github.com/braidui/braid/internal/compile"
	"github.com/braidui/braid/internal/diag"
)

// Options configures a Builder.
type Options struct {
	// SourceDir is the root the unit tree is discovered under.
	SourceDir string
	// OutDir is the root artifacts are written under.
	OutDir string
	// Workers sizes the compilation pool. Zero picks a default.
	Workers int
	// Package names the Go package of artifacts at the source root.
	// Empty selects "ui".
	Package string
	// StrictDirectives turns unknown-directive warnings into errors.
	StrictDirectives bool
	// CachePath locates the persistent SQLite build cache. Empty keeps
	// the cache in memory for the life of the Builder.
	CachePath string
}

// Re-exported result and diagnostic types so hosts do not import
// internal packages.
type (
	// Result is the report of one build pass.
	Result = build.Result
	// UnitResult is the outcome of one unit within a pass.
	UnitResult = build.UnitResult
	// Status classifies a unit outcome.
	Status = build.Status
	// Diagnostic is one reported authoring problem.
	Diagnostic = diag.Diagnostic
	// Diagnostics is an ordered diagnostic collection.
	Diagnostics = diag.List
	// Severity classifies a diagnostic.
	Severity = diag.Severity
	// Code identifies a diagnostic kind independently of message text.
	Code = diag.Code
)

const (
	StatusCompiled  = build.StatusCompiled
	StatusCached    = build.StatusCached
	StatusFailed    = build.StatusFailed
	StatusCancelled = build.StatusCancelled
)

// Builder runs incremental build passes over one project. Create it
// once and call Build on every change; Invalidate cancels units whose
// sources changed mid-pass.
type Builder struct {
	inner *build.Builder
	store cache.Store
}

// NewBuilder validates opts and returns a Builder.
func NewBuilder(opts Options) (*Builder, error) {
	var store cache.Store
	if opts.CachePath != "" {
		s, err := cache.NewSQLite(opts.CachePath)
		if err != nil {
			return nil, err
		}
		store = s
	}
	inner, err := build.New(build.Options{
		SourceDir: opts.SourceDir,
		OutDir:    opts.OutDir,
		Workers:   opts.Workers,
		Compile: compile.Options{
			StrictDirectives: opts.StrictDirectives,
			RootPackage:      opts.Package,
		},
		Store: store,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return &Builder{inner: inner, store: store}, nil
}

// Build runs one pass over the current source snapshot.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	return b.inner.Build(ctx)
}

// Invalidate cancels any in-flight compilation of the given unit IDs.
func (b *Builder) Invalidate(ids ...string) {
	b.inner.Invalidate(ids...)
}

// Close releases the persistent cache, if any.
func (b *Builder) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}

// Build is the one-shot form: it creates a Builder, runs a single pass,
// and releases it.
func Build(ctx context.Context, opts Options) (*Result, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return b.Build(ctx)
}
