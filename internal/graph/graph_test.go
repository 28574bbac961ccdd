package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a.braid")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a.braid"]
	require.True(t, ok)
	assert.Equal(t, "a.braid", nodeA.id)
	assert.NotNil(t, nodeA.deps)
	assert.NotNil(t, nodeA.dependents)

	g.AddNode("a.braid") // idempotent
	assert.Len(t, g.nodes, 1)

	g.AddNode("b.braid")
	assert.Len(t, g.nodes, 2)
	assert.True(t, g.Has("b.braid"))
	assert.False(t, g.Has("c.braid"))
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b imports a
		require.NoError(t, err)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")
	})
}

func TestNodesAndNeighborsAreSorted(t *testing.T) {
	g := New()
	for _, id := range []string{"c", "a", "b", "hub"} {
		g.AddNode(id)
	}
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, g.AddEdge(id, "hub"))
	}

	assert.Equal(t, []string{"a", "b", "c", "hub"}, g.Nodes())

	deps, err := g.Dependencies("hub")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, deps)

	_, err = g.Dependencies("dne")
	assert.ErrorContains(t, err, "node not found")
}

// edge builds to-imports-from chains: edge(g, "a", "b") means a imports b.
func edge(t *testing.T, g *Graph, importer, imported string) {
	t.Helper()
	require.NoError(t, g.AddEdge(imported, importer))
}

func TestCycles(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		assert.Empty(t, New().Cycles())
	})

	t.Run("acyclic diamond", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		edge(t, g, "a", "b")
		edge(t, g, "a", "c")
		edge(t, g, "b", "d")
		edge(t, g, "c", "d")
		assert.Empty(t, g.Cycles())
	})

	t.Run("two-node cycle", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		edge(t, g, "a", "b")
		edge(t, g, "b", "a")
		assert.Equal(t, [][]string{{"a", "b"}}, g.Cycles())
	})

	t.Run("members listed in import order from smallest", func(t *testing.T) {
		g := New()
		for _, id := range []string{"m", "a", "z"} {
			g.AddNode(id)
		}
		// z imports a imports m imports z
		edge(t, g, "z", "a")
		edge(t, g, "a", "m")
		edge(t, g, "m", "z")
		assert.Equal(t, [][]string{{"a", "m", "z"}}, g.Cycles())
	})

	t.Run("disjoint cycles each reported once", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "x", "y", "solo"} {
			g.AddNode(id)
		}
		edge(t, g, "a", "b")
		edge(t, g, "b", "a")
		edge(t, g, "x", "y")
		edge(t, g, "y", "x")
		assert.Equal(t, [][]string{{"a", "b"}, {"x", "y"}}, g.Cycles())
	})

	t.Run("overlapping cycles through a shared node", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c"} {
			g.AddNode(id)
		}
		edge(t, g, "a", "b")
		edge(t, g, "b", "a")
		edge(t, g, "a", "c")
		edge(t, g, "c", "a")
		assert.Equal(t, [][]string{{"a", "b"}, {"a", "c"}}, g.Cycles())
	})

	t.Run("nodes outside the cycle stay schedulable", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "leaf"} {
			g.AddNode(id)
		}
		edge(t, g, "a", "b")
		edge(t, g, "b", "a")
		edge(t, g, "leaf", "a")
		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.NotContains(t, cycles[0], "leaf")
	})

	t.Run("deterministic", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "x", "y"} {
			g.AddNode(id)
		}
		edge(t, g, "a", "b")
		edge(t, g, "b", "a")
		edge(t, g, "x", "y")
		edge(t, g, "y", "x")
		assert.Equal(t, g.Cycles(), g.Cycles())
	})
}
