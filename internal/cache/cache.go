// Package cache persists per-unit build results between passes so an
// unchanged unit with unchanged dependencies costs nothing to rebuild.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/braidui/braid/internal/symbol"
)

// Entry records one unit's last successful compilation. Entries exist
// only for units that compiled cleanly; a failed unit never commits.
type Entry struct {
	UnitID     string        `json:"unit_id"`
	Hash       string        `json:"hash"`
	RenderPath string        `json:"render_path,omitempty"`
	StylePath  string        `json:"style_path,omitempty"`
	Deps       []string      `json:"deps,omitempty"`
	Export     symbol.Export `json:"export"`
	PassID     string        `json:"pass_id"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Clone returns a deep copy, so stores can hand entries out without
// sharing slices with callers.
func (e *Entry) Clone() *Entry {
	cp := *e
	cp.Deps = append([]string(nil), e.Deps...)
	cp.Export.Props = append([]symbol.PropSig(nil), e.Export.Props...)
	cp.Export.Slots = append([]string(nil), e.Export.Slots...)
	return &cp
}

// Store is where entries live between passes. Implementations must be
// safe for concurrent Put calls; Load and prune run single-threaded at
// pass start.
type Store interface {
	Load(ctx context.Context) (map[string]*Entry, error)
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, unitIDs ...string) error
	Close() error
}

// ContentHash returns the identity hash of a unit's bytes.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Stats counts cache behavior over one pass. An invalidation is an
// existing entry that could not be reused; a miss is a unit with no
// entry at all.
type Stats struct {
	Hits          int
	Misses        int
	Invalidations int
	Pruned        int
}

// LogValue lets a Stats value travel as one structured slog group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("hits", s.Hits),
		slog.Int("misses", s.Misses),
		slog.Int("invalidations", s.Invalidations),
		slog.Int("pruned", s.Pruned),
	)
}
