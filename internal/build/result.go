package build

import (
	"github.com/braidui/braid/internal/cache"
	"github.com/braidui/braid/internal/diag"
	"github.com/braidui/braid/internal/symbol"
)

// Status classifies the outcome of one unit within a build pass.
type Status string

const (
	// StatusCompiled means the unit went through the full pipeline this
	// pass and produced fresh artifacts.
	StatusCompiled Status = "compiled"
	// StatusCached means the unit was served from the artifact cache
	// without invoking the pipeline.
	StatusCached Status = "cached"
	// StatusFailed means the unit reported error diagnostics, hit an
	// infrastructure failure, or depends on a unit that did.
	StatusFailed Status = "failed"
	// StatusCancelled means the unit's compilation was cancelled, either
	// by Invalidate or by the pass context. Cancelled units report no
	// diagnostics and leave no cache entry.
	StatusCancelled Status = "cancelled"
)

// UnitResult is the outcome of one unit. Diags carries authoring
// problems; Err carries infrastructure failures such as an artifact
// write that did not land.
type UnitResult struct {
	UnitID     string
	Status     Status
	FromCache  bool
	Diags      diag.List
	RenderPath string
	StylePath  string
	Export     symbol.Export
	Err        error
}

// Clean reports whether the unit ended the pass with usable artifacts.
func (r *UnitResult) Clean() bool {
	return r.Status == StatusCompiled || r.Status == StatusCached
}

// Result is the report of one build pass over the whole project.
type Result struct {
	PassID string
	Units  map[string]*UnitResult
	// Diags aggregates every unit's diagnostics, sorted by unit and
	// position so the report is stable across worker interleavings.
	Diags  diag.List
	Stats  cache.Stats
	Failed bool
}
