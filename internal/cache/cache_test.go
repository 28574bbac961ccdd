package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidui/braid/internal/symbol"
)

func sampleEntry() *Entry {
	return &Entry{
		UnitID:     "pages/home.braid",
		Hash:       ContentHash("<logic></logic>"),
		RenderPath: "pages/home.braid.go",
		StylePath:  "pages/home.braid.css",
		Deps:       []string{"card.braid", "nav.braid"},
		Export: symbol.Export{
			Props: []symbol.PropSig{{Name: "title", Required: true}},
			Slots: []string{"", "footer"},
		},
		PassID:    "pass-1",
		UpdatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
	}
}

func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty store loads empty", func(t *testing.T) {
		s := newStore(t)
		entries, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("put and load round-trip", func(t *testing.T) {
		s := newStore(t)
		want := sampleEntry()
		require.NoError(t, s.Put(ctx, want))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		got := entries[want.UnitID]
		require.NotNil(t, got)
		assert.Equal(t, want.Hash, got.Hash)
		assert.Equal(t, want.RenderPath, got.RenderPath)
		assert.Equal(t, want.StylePath, got.StylePath)
		assert.Equal(t, want.Deps, got.Deps)
		assert.Equal(t, want.Export, got.Export)
		assert.Equal(t, want.PassID, got.PassID)
		assert.True(t, got.UpdatedAt.Equal(want.UpdatedAt), "got %v", got.UpdatedAt)
	})

	t.Run("put overwrites by unit", func(t *testing.T) {
		s := newStore(t)
		first := sampleEntry()
		require.NoError(t, s.Put(ctx, first))

		second := sampleEntry()
		second.Hash = ContentHash("changed")
		second.PassID = "pass-2"
		require.NoError(t, s.Put(ctx, second))

		entries, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, second.Hash, entries[first.UnitID].Hash)
		assert.Equal(t, "pass-2", entries[first.UnitID].PassID)
	})

	t.Run("delete prunes named units", func(t *testing.T) {
		s := newStore(t)
		a := sampleEntry()
		b := sampleEntry()
		b.UnitID = "pages/about.braid"
		require.NoError(t, s.Put(ctx, a))
		require.NoError(t, s.Put(ctx, b))

		require.NoError(t, s.Delete(ctx, a.UnitID))
		entries, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Contains(t, entries, b.UnitID)

		require.NoError(t, s.Delete(ctx)) // no-op
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	first := NewMemory()
	second := NewMemory()
	require.NoError(t, first.Put(ctx, sampleEntry()))

	entries, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStoreClonesEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	e := sampleEntry()
	require.NoError(t, m.Put(ctx, e))

	// Mutating the caller's entry after Put must not reach the store.
	e.Deps[0] = "mutated"
	entries, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "card.braid", entries["pages/home.braid"].Deps[0])

	// Mutating a loaded entry must not reach later loads.
	entries["pages/home.braid"].Deps[0] = "mutated"
	again, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "card.braid", again["pages/home.braid"].Deps[0])
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "braid-cache.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleEntry()))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sampleEntry().Export, entries["pages/home.braid"].Export)
}

func TestContentHash(t *testing.T) {
	assert.Len(t, ContentHash("a"), 64)
	assert.Equal(t, ContentHash("a"), ContentHash("a"))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
}
