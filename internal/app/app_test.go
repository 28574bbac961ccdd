package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/cache"
	"github.com/braidui/braid/internal/config"
	"github.com/braidui/braid/internal/diag"
)

const greetingUnit = `<logic>
prop "name" {
  type = "string"
  default = "world"
}
</logic>
<template>
  <p>{{ name }}</p>
</template>`

func strPtr(s string) *string { return &s }

func TestNewResolvesFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "ui")
	fileOut := filepath.Join(dir, "file-out")
	flagOut := filepath.Join(dir, "flag-out")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "hello.braid"), []byte(greetingUnit), 0o644))

	configPath := filepath.Join(dir, "braid.hcl")
	configText := fmt.Sprintf(`
project {
  name       = "demo"
  source_dir = %q
  output_dir = %q
}
`, srcDir, fileOut)
	require.NoError(t, os.WriteFile(configPath, []byte(configText), 0o644))

	var logs bytes.Buffer
	a, err := New(&logs, &Config{
		ConfigPath:     configPath,
		ConfigExplicit: true,
		LogLevel:       "debug",
		LogFormat:      "text",
		OutputDir:      strPtr(flagOut),
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	_, err = os.Stat(filepath.Join(flagOut, "hello.braid.go"))
	assert.NoError(t, err, "the -out flag overrides the project file")
	_, err = os.Stat(fileOut)
	assert.True(t, os.IsNotExist(err))

	assert.Contains(t, logs.String(), "Build finished.")
}

func TestNewMissingExplicitConfig(t *testing.T) {
	_, err := New(&bytes.Buffer{}, &Config{
		ConfigPath:     filepath.Join(t.TempDir(), "braid.hcl"),
		ConfigExplicit: true,
	})
	require.Error(t, err)
}

func TestNewMissingDefaultConfigIsFine(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	a, err := New(&bytes.Buffer{}, &Config{
		ConfigPath: filepath.Join(dir, "braid.hcl"),
		SourceDir:  strPtr(srcDir),
		OutputDir:  strPtr(filepath.Join(dir, "gen")),
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))
}

func TestRunFailedBuildReturnsError(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	broken := "<logic>\n</logic>\n<template><p>{{ nope }}</p></template>"
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "broken.braid"), []byte(broken), 0o644))

	var out bytes.Buffer
	a, err := New(&out, &Config{
		ConfigPath: filepath.Join(dir, "braid.hcl"),
		SourceDir:  strPtr(srcDir),
		OutputDir:  strPtr(filepath.Join(dir, "gen")),
	})
	require.NoError(t, err)
	defer a.Close()

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
	assert.Contains(t, out.String(), "broken.braid:")
	assert.Contains(t, out.String(), "unresolved-symbol")
}

func TestNewStoreSelection(t *testing.T) {
	cfg := config.Default()

	store, err := newStore(cfg, false)
	require.NoError(t, err)
	_, ok := store.(*cache.Memory)
	assert.True(t, ok, "no cache path keeps the cache in memory")

	cfg.CachePath = filepath.Join(t.TempDir(), "nested", "cache.db")
	store, err = newStore(cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, ok = store.(*cache.SQLite)
	assert.True(t, ok)

	store2, err := newStore(cfg, true)
	require.NoError(t, err)
	_, ok = store2.(*cache.Memory)
	assert.True(t, ok, "-no-cache wins over a configured path")
}

func TestPrintDiagnostics(t *testing.T) {
	line := func(l int) *hcl.Range {
		return &hcl.Range{
			Filename: "a.braid",
			Start:    hcl.Pos{Line: l, Column: 3, Byte: 0},
			End:      hcl.Pos{Line: l, Column: 8, Byte: 5},
		}
	}
	diags := diag.List{
		{Severity: diag.Error, Code: diag.CodeUnresolvedSymbol, Unit: "a.braid", Subject: line(4), Summary: `unknown identifier "x"`},
		{Severity: diag.Warning, Code: diag.CodeUnknownSlot, Unit: "a.braid", Subject: line(9), Summary: `component <Card> has no slot "side"`, Detail: "Declared slots: footer."},
		{Severity: diag.Error, Code: diag.CodeDependencyFailed, Unit: "b.braid", Summary: "unit not built: dependency a.braid failed"},
	}

	var out bytes.Buffer
	printDiagnostics(&out, diags)

	want := `a.braid:
  error[unresolved-symbol]: 4:3: unknown identifier "x"
  warning[unknown-slot]: 9:3: component <Card> has no slot "side"
    Declared slots: footer.
b.braid:
  error[dependency-failed]: unit not built: dependency a.braid failed
`
	assert.Equal(t, want, out.String())
}
