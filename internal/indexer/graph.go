package indexer

import (
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

type graphEntry struct {
	node    indexer.Indexer
	parents []string
}

// GraphBuilder collects nodes and their dependencies. Build validates them
// and wires children to their parents.
type GraphBuilder struct {
	entries []graphEntry
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{}
}

// Add registers node with the ids of its parents. Roots take no parents.
func (b *GraphBuilder) Add(node indexer.Indexer, parentIDs ...string) *GraphBuilder {
	b.entries = append(b.entries, graphEntry{node: node, parents: parentIDs})
	return b
}

// Graph is a validated, wired DAG of indexers.
type Graph struct {
	order    []indexer.Indexer
	byID     map[string]indexer.Indexer
	position map[string]int
	children map[string][]string
}

// Build checks ids and edges, sorts the nodes topologically and wires every
// child to its parents. Nodes without dependencies keep their insertion order.
func (b *GraphBuilder) Build() (*Graph, error) {
	if len(b.entries) == 0 {
		return nil, indexer.NewConfigurationError("", "graph has no indexers")
	}

	byID := make(map[string]indexer.Indexer, len(b.entries))
	for _, e := range b.entries {
		id := e.node.ID()
		if _, exists := byID[id]; exists {
			return nil, indexer.NewConfigurationError(id, "duplicate indexer id")
		}
		byID[id] = e.node
	}

	children := make(map[string][]string, len(b.entries))
	indegree := make(map[string]int, len(b.entries))
	for _, e := range b.entries {
		id := e.node.ID()
		_, isChild := e.node.(*ChildIndexer)

		switch {
		case isChild && len(e.parents) == 0:
			return nil, indexer.NewConfigurationError(id, "child indexer needs at least one parent")
		case !isChild && len(e.parents) > 0:
			return nil, indexer.NewConfigurationError(id, "only child indexers can have parents")
		}

		seen := make(map[string]struct{}, len(e.parents))
		for _, p := range e.parents {
			if _, ok := byID[p]; !ok {
				return nil, indexer.NewConfigurationError(id, "unknown parent %q", p)
			}
			if _, dup := seen[p]; dup {
				return nil, indexer.NewConfigurationError(id, "parent %q listed twice", p)
			}
			seen[p] = struct{}{}
			children[p] = append(children[p], id)
		}
		indegree[id] = len(e.parents)
	}

	// Kahn's algorithm, scanning in insertion order to keep the result stable.
	order := make([]indexer.Indexer, 0, len(b.entries))
	done := make(map[string]bool, len(b.entries))
	for len(order) < len(b.entries) {
		progressed := false
		for _, e := range b.entries {
			id := e.node.ID()
			if done[id] || indegree[id] > 0 {
				continue
			}
			done[id] = true
			progressed = true
			order = append(order, e.node)
			for _, c := range children[id] {
				indegree[c]--
			}
		}
		if !progressed {
			var stuck []string
			for _, e := range b.entries {
				if !done[e.node.ID()] {
					stuck = append(stuck, e.node.ID())
				}
			}
			return nil, indexer.NewConfigurationError("", "dependency cycle between indexers %v", stuck)
		}
	}

	g := &Graph{
		order:    order,
		byID:     byID,
		position: make(map[string]int, len(order)),
		children: children,
	}
	for i, n := range order {
		g.position[n.ID()] = i
	}

	for _, e := range b.entries {
		child, ok := e.node.(*ChildIndexer)
		if !ok {
			continue
		}
		parents := make([]indexer.Indexer, 0, len(e.parents))
		for _, p := range e.parents {
			parents = append(parents, byID[p])
		}
		child.wire(parents)

		id := child.ID()
		child.subtree = func() []*ChildIndexer { return g.childSubtree(id) }
	}

	return g, nil
}

// Nodes returns every node in topological order.
func (g *Graph) Nodes() []indexer.Indexer {
	return g.order
}

// Get returns the node with id.
func (g *Graph) Get(id string) (indexer.Indexer, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Children returns the ids of the direct children of id.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Descendants returns id and every node reachable from it, in topological order.
func (g *Graph) Descendants(id string) []indexer.Indexer {
	if _, ok := g.byID[id]; !ok {
		return nil
	}

	reach := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.children[cur] {
			if _, ok := reach[c]; !ok {
				reach[c] = struct{}{}
				queue = append(queue, c)
			}
		}
	}

	out := make([]indexer.Indexer, 0, len(reach))
	for _, n := range g.order[g.position[id]:] {
		if _, ok := reach[n.ID()]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) childSubtree(id string) []*ChildIndexer {
	var out []*ChildIndexer
	for _, n := range g.Descendants(id) {
		if c, ok := n.(*ChildIndexer); ok {
			out = append(out, c)
		}
	}
	return out
}
