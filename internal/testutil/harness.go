// Package testutil provides the shared harness for integration tests: a
// temporary project laid out from a file map, a builder wired to it, and
// captured log output.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/build"
	"github.com/braidui/braid/internal/compile"
	"github.com/braidui/braid/internal/ctxlog"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Project is a braid project laid out under a temporary directory, with
// a builder wired to it and log output captured for inspection.
type Project struct {
	t         *testing.T
	SourceDir string
	OutDir    string
	Builder   *build.Builder
	Logs      *SafeBuffer
}

// NewProject writes the given units under a fresh source root and
// returns a project ready to build. Keys are unit IDs, the
// slash-separated paths relative to the source root.
func NewProject(t *testing.T, units map[string]string) *Project {
	return NewProjectWithOptions(t, units, compile.Options{})
}

// NewProjectWithOptions is NewProject with explicit compile options.
func NewProjectWithOptions(t *testing.T, units map[string]string, opts compile.Options) *Project {
	t.Helper()
	p := &Project{
		t:         t,
		SourceDir: t.TempDir(),
		OutDir:    t.TempDir(),
		Logs:      &SafeBuffer{},
	}
	for id, text := range units {
		p.WriteUnit(id, text)
	}
	b, err := build.New(build.Options{
		SourceDir: p.SourceDir,
		OutDir:    p.OutDir,
		Workers:   4,
		Compile:   opts,
	})
	require.NoError(t, err)
	p.Builder = b

	t.Cleanup(func() {
		if os.Getenv("BRAID_TEST_LOGS") == "true" {
			t.Logf("--- Full log output for %s ---\n%s", t.Name(), p.Logs.String())
		}
	})
	return p
}

// Build runs one pass and fails the test on infrastructure errors.
// Authoring failures travel in the result for the caller to assert on.
func (p *Project) Build(ctx context.Context) *build.Result {
	p.t.Helper()
	logger := slog.New(slog.NewTextHandler(p.Logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	res, err := p.Builder.Build(ctxlog.WithLogger(ctx, logger))
	require.NoError(p.t, err)
	return res
}

// WriteUnit writes or replaces one unit under the source root.
func (p *Project) WriteUnit(id, text string) {
	p.t.Helper()
	path := filepath.Join(p.SourceDir, filepath.FromSlash(id))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(text), 0o644))
}

// RemoveUnit deletes one unit from the source root.
func (p *Project) RemoveUnit(id string) {
	p.t.Helper()
	require.NoError(p.t, os.Remove(filepath.Join(p.SourceDir, filepath.FromSlash(id))))
}

// Artifact reads a generated artifact by its path relative to the
// output root.
func (p *Project) Artifact(rel string) string {
	p.t.Helper()
	data, err := os.ReadFile(filepath.Join(p.OutDir, filepath.FromSlash(rel)))
	require.NoError(p.t, err)
	return string(data)
}

// HasArtifact reports whether an artifact exists under the output root.
func (p *Project) HasArtifact(rel string) bool {
	_, err := os.Stat(filepath.Join(p.OutDir, filepath.FromSlash(rel)))
	return err == nil
}
