// Package graph holds the unit dependency graph the builder schedules
// from: units as nodes, import relationships as directed edges, and
// cycle extraction so cyclic clusters can be failed up front while the
// rest of the graph still builds.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Graph is a collection of units and their import edges. All operations
// are concurrency-safe.
type Graph struct {
	// mu protects the nodes map during concurrent access.
	mu sync.RWMutex
	// nodes stores all nodes in the graph, keyed by unit ID.
	nodes map[string]*node
}

// node is a single vertex. It is unexported to force interaction through
// the public API using unit IDs, not direct struct manipulation.
type node struct {
	id string
	// deps holds the units this node imports (predecessors).
	deps map[string]*node
	// dependents holds the units importing this node (successors).
	dependents map[string]*node
}

// New creates an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node with the given ID. Adding an existing ID does
// nothing.
func (g *Graph) AddNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge records that toID imports fromID, so fromID must build first.
// An error is returned if either node does not exist or the edge would
// be self-referential.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	return nil
}

// Has reports whether a node with the given ID exists.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all node IDs in lexical order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the IDs the given node depends on, in lexical
// order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Dependents returns the IDs that depend on the given node, in lexical
// order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.dependents), nil
}

// Cycles extracts every distinct dependency cycle using an iterative
// depth-first search with an explicit path. Each cycle lists its members
// in import order, rotated so the lexically smallest member comes first;
// the set of cycles is sorted by that first member. Nodes outside cycles
// are untouched, so callers can fail cyclic clusters and schedule the
// rest.
func (g *Graph) Cycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	done := make(map[string]bool, len(g.nodes))
	seen := map[string]bool{}
	var cycles [][]string

	starts := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		starts = append(starts, id)
	}
	sort.Strings(starts)

	type frame struct {
		deps []string
		next int
	}

	for _, start := range starts {
		if done[start] {
			continue
		}

		onPath := map[string]int{}
		var path []string
		var stack []*frame

		push := func(id string) {
			onPath[id] = len(path)
			path = append(path, id)
			stack = append(stack, &frame{deps: sortedIDs(g.nodes[id].deps)})
		}
		push(start)

		for len(stack) > 0 {
			f := stack[len(stack)-1]
			if f.next < len(f.deps) {
				dep := f.deps[f.next]
				f.next++
				if at, ok := onPath[dep]; ok {
					cycle := rotateToSmallest(path[at:])
					key := strings.Join(cycle, "\x00")
					if !seen[key] {
						seen[key] = true
						cycles = append(cycles, cycle)
					}
					continue
				}
				if done[dep] {
					continue
				}
				push(dep)
				continue
			}

			stack = stack[:len(stack)-1]
			last := path[len(path)-1]
			path = path[:len(path)-1]
			delete(onPath, last)
			done[last] = true
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// rotateToSmallest copies the cycle, rotated so the lexically smallest
// member leads. Cyclic order is preserved.
func rotateToSmallest(cycle []string) []string {
	at := 0
	for i, id := range cycle {
		if id < cycle[at] {
			at = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[at:]...)
	out = append(out, cycle[:at]...)
	return out
}

func sortedIDs(m map[string]*node) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
