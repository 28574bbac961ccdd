package build

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/hcl/v2"

	"github.com/braidui/braid/internal/cache"
	"github.com/braidui/braid/internal/compile"
	"github.com/braidui/braid/internal/ctxlog"
	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/graph"
	"github.com/braidui/braid/internal/logic"
	"github.com/braidui/braid/internal/source"
	"github.com/braidui/braid/internal/symbol"
)

// pass carries the scheduling state of one build: the unit snapshot,
// the import graph, dependency counters, and the accumulated results.
type pass struct {
	b      *Builder
	id     string
	units  map[string]*source.Unit
	hashes map[string]string
	// deps maps each unit to the resolved imports that name units in the
	// snapshot. Imports of unknown units contribute no edges; the
	// analyzer reports those, not the scheduler.
	deps        map[string][]string
	imports     map[string][]*logic.Import
	selfImports []string
	g           *graph.Graph

	mu      sync.Mutex
	results map[string]*UnitResult
	counts  map[string]int
	running bool
	stats   cache.Stats

	ready chan string
	wg    sync.WaitGroup
}

func newPass(b *Builder, id string, units map[string]*source.Unit) *pass {
	p := &pass{
		b:       b,
		id:      id,
		units:   units,
		hashes:  make(map[string]string, len(units)),
		deps:    make(map[string][]string, len(units)),
		imports: make(map[string][]*logic.Import, len(units)),
		g:       graph.New(),
		results: make(map[string]*UnitResult, len(units)),
		counts:  make(map[string]int, len(units)),
	}
	for unitID, unit := range units {
		p.hashes[unitID] = cache.ContentHash(unit.Text)
		p.g.AddNode(unitID)
	}
	p.seedEdges()
	return p
}

// seedEdges runs the shallow import scan over every unit and records an
// edge for each import that resolves to a unit in the snapshot. The
// scan is best effort: a unit too broken to scan contributes no edges,
// and the pipeline reports the real problem when the unit builds.
func (p *pass) seedEdges() {
	for id, unit := range p.units {
		sections, _ := source.Split(unit)
		imports := logic.ScanImports(id, sections.Logic)
		p.imports[id] = imports
		seen := make(map[string]bool, len(imports))
		for _, imp := range imports {
			depID := source.ResolveImport(id, imp.From)
			if depID == id {
				if !seen[depID] {
					p.selfImports = append(p.selfImports, id)
				}
				seen[depID] = true
				continue
			}
			if seen[depID] || !p.g.Has(depID) {
				continue
			}
			seen[depID] = true
			p.deps[id] = append(p.deps[id], depID)
			// The imported unit builds first.
			_ = p.g.AddEdge(depID, id)
		}
		sort.Strings(p.deps[id])
	}
	sort.Strings(p.selfImports)
}

// run executes the pass: cycles fail up front, everything else flows
// through the worker pool in dependency order.
func (p *pass) run(ctx context.Context) {
	log := ctxlog.FromContext(ctx)

	p.failCycles(ctx)

	var pending []string
	for id := range p.units {
		if _, done := p.results[id]; !done {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)

	p.ready = make(chan string, len(p.units))
	for _, id := range pending {
		p.counts[id] = len(p.deps[id])
		if p.counts[id] == 0 {
			p.ready <- id
		}
	}

	p.running = true
	p.wg.Add(len(pending))

	workers := p.b.opts.Workers
	if workers > len(pending) && len(pending) > 0 {
		workers = len(pending)
	}
	log.Debug("Starting worker pool.", "workers", workers, "pending", len(pending))
	var workerWG sync.WaitGroup
	workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer workerWG.Done()
			p.worker(ctx, workerID)
		}(i)
	}

	p.wg.Wait()
	close(p.ready)
	workerWG.Wait()
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *pass) worker(ctx context.Context, workerID int) {
	log := ctxlog.FromContext(ctx).With("worker", workerID)
	log.Debug("Worker started.")
	for id := range p.ready {
		p.mu.Lock()
		_, done := p.results[id]
		p.mu.Unlock()
		if done {
			// Failed by recursion after it was enqueued.
			continue
		}
		p.process(ctx, id)
	}
	log.Debug("Worker finished.")
}

// process builds one unit: cache consult first, then the pipeline,
// then artifact writes and the cache commit.
func (p *pass) process(ctx context.Context, id string) {
	log := ctxlog.FromContext(ctx).With("unit", id)

	if entry, ok := p.reusable(id); ok {
		log.Debug("Unit unchanged, serving from cache.")
		p.mu.Lock()
		p.stats.Hits++
		p.mu.Unlock()
		p.finish(id, &UnitResult{
			UnitID:     id,
			Status:     StatusCached,
			FromCache:  true,
			RenderPath: entry.RenderPath,
			StylePath:  entry.StylePath,
			Export:     entry.Export,
		})
		p.release(id)
		return
	}

	unitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.b.track(id, cancel)
	defer p.b.untrack(id)

	res, err := p.b.compileFn(unitCtx, compile.Request{
		Unit:    p.units[id],
		Deps:    p.depExports(id),
		Options: p.b.opts.Compile,
	})
	if err != nil {
		if unitCtx.Err() != nil {
			log.Debug("Unit compilation cancelled.")
			p.finish(id, &UnitResult{UnitID: id, Status: StatusCancelled})
			p.cancelDependents(id)
			p.release(id)
			return
		}
		p.fail(ctx, id, err)
		return
	}

	result := &UnitResult{UnitID: id, Diags: res.Diags, Export: res.Export}

	// The style artifact lands even when the unit fails elsewhere, as
	// long as the style section itself was clean.
	if res.Style != nil {
		path, werr := p.b.writeArtifact(res.Style)
		if werr != nil {
			p.fail(ctx, id, werr)
			return
		}
		result.StylePath = path
	}

	if res.Diags.HasErrors() {
		log.Debug("Unit failed with diagnostics.", "errors", len(res.Diags.Errors()))
		result.Status = StatusFailed
		p.finish(id, result)
		p.failDependents(ctx, id)
		p.release(id)
		return
	}

	if res.Render != nil {
		path, werr := p.b.writeArtifact(res.Render)
		if werr != nil {
			p.fail(ctx, id, werr)
			return
		}
		result.RenderPath = path
	}

	entry := &cache.Entry{
		UnitID:     id,
		Hash:       p.hashes[id],
		RenderPath: result.RenderPath,
		StylePath:  result.StylePath,
		Deps:       p.deps[id],
		Export:     res.Export,
		PassID:     p.id,
		UpdatedAt:  time.Now().UTC(),
	}
	if !p.b.commit(ctx, unitCtx, entry) {
		log.Debug("Unit cancelled before commit.")
		p.finish(id, &UnitResult{UnitID: id, Status: StatusCancelled})
		p.cancelDependents(id)
		p.release(id)
		return
	}

	result.Status = StatusCompiled
	p.finish(id, result)
	p.release(id)
}

// reusable reports whether the cached entry for id can stand in for a
// fresh compilation: the entry exists, the content hash matches, and
// every dependency was itself served from cache this pass. A recompiled
// dependency may have changed its export even if this unit's bytes did
// not, so hash equality alone is not enough; the induction over
// dependencies gives the transitive rebuild rule.
func (p *pass) reusable(id string) (*cache.Entry, bool) {
	entry := p.b.entry(id)

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry == nil {
		p.stats.Misses++
		return nil, false
	}
	if entry.Hash != p.hashes[id] {
		p.stats.Invalidations++
		return nil, false
	}
	for _, dep := range p.deps[id] {
		r := p.results[dep]
		if r == nil || r.Status != StatusCached {
			p.stats.Invalidations++
			return nil, false
		}
	}
	return entry, true
}

// depExports assembles the exports visible to id. Every recorded
// dependency finished cleanly by the time id is scheduled.
func (p *pass) depExports(id string) map[string]symbol.Export {
	deps := p.deps[id]
	if len(deps) == 0 {
		return nil
	}
	exports := make(map[string]symbol.Export, len(deps))
	p.mu.Lock()
	for _, dep := range deps {
		if r := p.results[dep]; r != nil && r.Clean() {
			exports[dep] = r.Export
		}
	}
	p.mu.Unlock()
	return exports
}

// finish records a unit's outcome. The first writer wins; callers use
// the return value to drive exactly-once recursion over dependents.
func (p *pass) finish(id string, r *UnitResult) bool {
	p.mu.Lock()
	if _, done := p.results[id]; done {
		p.mu.Unlock()
		return false
	}
	p.results[id] = r
	running := p.running
	p.mu.Unlock()
	if running {
		p.wg.Done()
	}
	return true
}

// release decrements the dependency counters of id's dependents and
// enqueues any that become ready. Dependents that already carry a
// result were failed by recursion and never run.
func (p *pass) release(id string) {
	dependents, err := p.g.Dependents(id)
	if err != nil {
		return
	}
	for _, dep := range dependents {
		p.mu.Lock()
		p.counts[dep]--
		enqueue := p.counts[dep] == 0
		if _, done := p.results[dep]; done {
			enqueue = false
		}
		p.mu.Unlock()
		if enqueue {
			p.ready <- dep
		}
	}
}

// fail records an infrastructure failure for id and drags its
// dependents down with it.
func (p *pass) fail(ctx context.Context, id string, err error) {
	ctxlog.FromContext(ctx).Error("Unit build failed.", "unit", id, "error", err)
	p.finish(id, &UnitResult{UnitID: id, Status: StatusFailed, Err: err})
	p.failDependents(ctx, id)
	p.release(id)
}

// failDependents marks every transitive dependent of a failed unit as
// failed, exactly once each, with a single diagnostic naming the direct
// dependency that dragged it down. Unrelated units keep building; a
// broken leaf must not cost the rest of the project its artifacts.
func (p *pass) failDependents(ctx context.Context, id string) {
	log := ctxlog.FromContext(ctx)
	dependents, err := p.g.Dependents(id)
	if err != nil {
		return
	}
	for _, dep := range dependents {
		r := &UnitResult{
			UnitID: dep,
			Status: StatusFailed,
			Diags:  diag.List{p.dependencyDiag(dep, id)},
		}
		if p.finish(dep, r) {
			log.Warn("Skipping unit due to failed dependency.", "unit", dep, "dependency", id)
			p.failDependents(ctx, dep)
		}
	}
}

// cancelDependents marks every transitive dependent of a cancelled unit
// as cancelled. No diagnostics: cancellation is not an authoring
// problem, and the next pass rebuilds the whole chain.
func (p *pass) cancelDependents(id string) {
	dependents, err := p.g.Dependents(id)
	if err != nil {
		return
	}
	for _, dep := range dependents {
		if p.finish(dep, &UnitResult{UnitID: dep, Status: StatusCancelled}) {
			p.cancelDependents(dep)
		}
	}
}

// failCycles pulls every import cycle out of the snapshot before
// scheduling starts. Each distinct cycle produces exactly one
// diagnostic, attached to its lexically smallest member; every member
// fails, and anything downstream of a cycle fails with a dependency
// error.
func (p *pass) failCycles(ctx context.Context) {
	cycles := p.g.Cycles()
	for _, id := range p.selfImports {
		cycles = append(cycles, []string{id})
	}
	if len(cycles) == 0 {
		return
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })

	log := ctxlog.FromContext(ctx)
	for _, cycle := range cycles {
		owner := cycle[0]
		log.Warn("Import cycle detected.", "units", cycle)
		d := &diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.CodeCircularDependency,
			Unit:     owner,
			Subject:  p.cycleSubject(cycle),
			Summary:  cycleSummary(cycle),
			Detail:   "Every unit in the cycle is excluded from this pass. Break the cycle by removing one of its imports.",
		}
		for i, member := range cycle {
			if i == 0 {
				p.failCycleMember(member, d)
			} else {
				p.failCycleMember(member, nil)
			}
		}
	}
	for _, cycle := range cycles {
		for _, member := range cycle {
			p.failDependents(ctx, member)
		}
	}
}

// failCycleMember marks one cycle member failed before scheduling
// starts. A unit sitting on two overlapping cycles collects both
// diagnostics.
func (p *pass) failCycleMember(id string, d *diag.Diagnostic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, done := p.results[id]; done {
		if d != nil {
			r.Diags = r.Diags.Append(d)
		}
		return
	}
	r := &UnitResult{UnitID: id, Status: StatusFailed}
	if d != nil {
		r.Diags = diag.List{d}
	}
	p.results[id] = r
}

// cycleSubject points the diagnostic at the owner's import of the next
// cycle member when the scan can find it, and at the top of the unit
// otherwise.
func (p *pass) cycleSubject(cycle []string) *hcl.Range {
	owner := cycle[0]
	next := cycle[0]
	if len(cycle) > 1 {
		next = cycle[1]
	}
	for _, imp := range p.imports[owner] {
		if source.ResolveImport(owner, imp.From) == next {
			r := imp.DeclRange
			return &r
		}
	}
	return &hcl.Range{Filename: owner, Start: hcl.InitialPos, End: hcl.InitialPos}
}

// cycleSummary lists the members in import order, closing back on the
// first so the shape of the cycle is visible in one line.
func cycleSummary(cycle []string) string {
	members := make([]string, 0, len(cycle)+1)
	members = append(members, cycle...)
	members = append(members, cycle[0])
	return "circular dependency: " + strings.Join(members, " -> ")
}

// dependencyDiag points at the import that pulled in the failed
// dependency when the scan found one, and at the top of the unit
// otherwise.
func (p *pass) dependencyDiag(unit, failedDep string) *diag.Diagnostic {
	subject := &hcl.Range{Filename: unit, Start: hcl.InitialPos, End: hcl.InitialPos}
	for _, imp := range p.imports[unit] {
		if source.ResolveImport(unit, imp.From) == failedDep {
			r := imp.DeclRange
			subject = &r
			break
		}
	}
	return &diag.Diagnostic{
		Severity: diag.Error,
		Code:     diag.CodeDependencyFailed,
		Unit:     unit,
		Subject:  subject,
		Summary:  fmt.Sprintf("unit not built: dependency %s failed", failedDep),
	}
}

// result aggregates the per-unit outcomes into the pass report.
func (p *pass) result() *Result {
	res := &Result{
		PassID: p.id,
		Units:  p.results,
		Stats:  p.stats,
	}
	for _, r := range p.results {
		res.Diags = res.Diags.Extend(r.Diags)
		if r.Status == StatusFailed {
			res.Failed = true
		}
	}
	res.Diags.Sort()
	return res
}
