// Package build orchestrates whole-project compilation passes. A pass
// snapshots the source tree, seeds the import graph from a shallow scan,
// schedules units across a worker pool in dependency order, and
// reconciles the outcome with the artifact cache so an unchanged unit
// costs nothing to rebuild.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/braidui/braid/internal/cache"
	"github.com/braidui/braid/internal/compile"
	"github.com/braidui/braid/internal/ctxlog"
	"github.com/braidui/braid/internal/fsutil"
	"github.com/braidui/braid/internal/source"
)

const defaultWorkers = 4

// Options configures a Builder.
type Options struct {
	// SourceDir is the root the unit tree is discovered under. Unit IDs
	// are slash-separated paths relative to this directory.
	SourceDir string
	// OutDir is the root artifacts are written under, mirroring the
	// source layout.
	OutDir string
	// Workers is the size of the compilation pool. Zero or negative
	// selects a small default.
	Workers int
	// Compile is forwarded to every unit compilation.
	Compile compile.Options
	// Store persists cache entries across builder restarts. Nil selects
	// an in-memory store scoped to this builder.
	Store cache.Store
}

// Builder runs build passes. It is safe to call Invalidate concurrently
// with a running pass; running concurrent passes on one Builder is not
// supported.
type Builder struct {
	opts  Options
	store cache.Store

	// compileFn is the unit pipeline. Tests substitute it to count and
	// gate compilations.
	compileFn func(context.Context, compile.Request) (compile.Result, error)

	mu       sync.Mutex
	entries  map[string]*cache.Entry
	inflight map[string]context.CancelFunc
}

// New validates opts and returns a Builder. The cache is loaded lazily
// on the first pass.
func New(opts Options) (*Builder, error) {
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("build: source directory is required")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("build: output directory is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	store := opts.Store
	if store == nil {
		store = cache.NewMemory()
	}
	return &Builder{
		opts:      opts,
		store:     store,
		compileFn: compile.Unit,
		inflight:  make(map[string]context.CancelFunc),
	}, nil
}

// Build runs one pass over the current source snapshot and reports the
// outcome of every discovered unit. The returned error covers
// infrastructure problems with the pass itself; per-unit failures
// travel in the Result.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	passID := uuid.NewString()
	log := ctxlog.FromContext(ctx).With("pass_id", passID)
	ctx = ctxlog.WithLogger(ctx, log)

	units, err := b.discover()
	if err != nil {
		return nil, err
	}
	log.Info("Starting build pass.", "source_dir", b.opts.SourceDir, "units", len(units))

	if err := b.loadEntries(ctx); err != nil {
		return nil, err
	}
	pruned := b.pruneEntries(ctx, units)

	p := newPass(b, passID, units)
	p.stats.Pruned = pruned
	p.run(ctx)

	res := p.result()
	log.Info("Build pass complete.", "failed", res.Failed, "cache", res.Stats)
	return res, nil
}

// Invalidate cancels any in-flight compilation of the given units. A
// cancelled unit reports no diagnostics and writes no cache entry, so
// the next pass rebuilds it from the changed bytes. Units that are not
// currently compiling are unaffected; the content hash already catches
// their changes.
func (b *Builder) Invalidate(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if cancel, ok := b.inflight[id]; ok {
			cancel()
		}
	}
}

// discover walks the source tree and snapshots every unit's bytes.
func (b *Builder) discover() (map[string]*source.Unit, error) {
	paths, err := fsutil.FindFilesByExtension(b.opts.SourceDir, source.Ext)
	if err != nil {
		return nil, fmt.Errorf("discover units in %s: %w", b.opts.SourceDir, err)
	}
	units := make(map[string]*source.Unit, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(b.opts.SourceDir, path)
		if err != nil {
			return nil, fmt.Errorf("resolve unit path %s: %w", path, err)
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read unit %s: %w", path, err)
		}
		id := filepath.ToSlash(rel)
		units[id] = &source.Unit{ID: id, Path: path, Text: string(text)}
	}
	return units, nil
}

func (b *Builder) loadEntries(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries != nil {
		return nil
	}
	entries, err := b.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load build cache: %w", err)
	}
	if entries == nil {
		entries = make(map[string]*cache.Entry)
	}
	b.entries = entries
	return nil
}

// pruneEntries drops cache entries for units that no longer exist in
// the snapshot and returns how many were removed.
func (b *Builder) pruneEntries(ctx context.Context, units map[string]*source.Unit) int {
	b.mu.Lock()
	var stale []string
	for id := range b.entries {
		if _, ok := units[id]; !ok {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(b.entries, id)
	}
	b.mu.Unlock()

	if len(stale) == 0 {
		return 0
	}
	sort.Strings(stale)
	ctxlog.FromContext(ctx).Debug("Pruning cache entries for deleted units.", "units", stale)
	if err := b.store.Delete(ctx, stale...); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to prune cache entries.", "error", err)
	}
	return len(stale)
}

// entry returns the cached entry for id, if any.
func (b *Builder) entry(id string) *cache.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[id]
}

// commit records a clean unit in the cache. The liveness check runs
// under the builder lock, the same lock Invalidate cancels under, so a
// cancelled unit can never publish an entry for bytes that changed
// while it compiled.
func (b *Builder) commit(ctx, unitCtx context.Context, entry *cache.Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if unitCtx.Err() != nil {
		return false
	}
	b.entries[entry.UnitID] = entry
	if err := b.store.Put(ctx, entry); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to persist cache entry.", "unit", entry.UnitID, "error", err)
	}
	return true
}

func (b *Builder) track(id string, cancel context.CancelFunc) {
	b.mu.Lock()
	b.inflight[id] = cancel
	b.mu.Unlock()
}

func (b *Builder) untrack(id string) {
	b.mu.Lock()
	delete(b.inflight, id)
	b.mu.Unlock()
}

// writeArtifact lands one artifact under the output root, creating
// directories as needed, and returns its path relative to that root.
func (b *Builder) writeArtifact(a *compile.Artifact) (string, error) {
	path := filepath.Join(b.opts.OutDir, filepath.FromSlash(a.Path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory for %s: %w", a.Path, err)
	}
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", a.Path, err)
	}
	return a.Path, nil
}
