// Package paths implements hop-count path search over the knowledge graph.
//
// Two operations are provided:
//   - ShortestPath: breadth-first minimum-hop search. Ties between
//     equal-length paths resolve deterministically because the store
//     returns adjacency sorted by edge ID.
//   - AllPaths: depth-first enumeration of simple paths (no repeated
//     node within one path) up to a hop bound. Exponential in dense or
//     cyclic graphs; callers must keep maxHops small (<=6 recommended).
//
// Both accept an optional edge-type filter restricting which edges the
// traversal may follow.
//
// Example:
//
//	finder := paths.NewFinder(store)
//
//	route, ok := finder.ShortestPath("kitchen", "garage")
//	if !ok {
//		fmt.Println("no route")
//	}
//
//	all := finder.AllPaths("kitchen", "garage", 4, "adjacent_to")
package paths

import (
	"github.com/orneryd/huginn/pkg/graph"
)

// Finder runs path searches against a store. It holds a non-owning
// reference; the store must not be mutated during a search.
type Finder struct {
	store *graph.Store
}

// NewFinder creates a Finder over the given store.
func NewFinder(store *graph.Store) *Finder {
	return &Finder{store: store}
}

// ShortestPath returns a minimum hop-count node sequence from source to
// target, inclusive of both endpoints, and true. When no path exists
// (or either endpoint is unknown) it returns nil and false; a missing
// path is a normal negative result, not an error.
//
// An empty edgeTypes list follows every edge; otherwise only edges whose
// type appears in the list are traversed.
func (f *Finder) ShortestPath(source, target graph.NodeID, edgeTypes ...string) ([]graph.NodeID, bool) {
	if !f.store.HasNode(source) || !f.store.HasNode(target) {
		return nil, false
	}
	if source == target {
		return []graph.NodeID{source}, true
	}

	allowed := typeSet(edgeTypes)

	// Parent links record the first (lowest edge ID) discovery, which
	// makes the reconstructed path deterministic.
	parent := make(map[graph.NodeID]graph.NodeID)
	visited := map[graph.NodeID]struct{}{source: {}}
	queue := []graph.NodeID{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := f.store.OutgoingEdges(current)
		if err != nil {
			return nil, false
		}
		for _, edge := range edges {
			if !typeAllowed(allowed, edge.Type) {
				continue
			}
			next := edge.Target
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			parent[next] = current
			if next == target {
				return reconstruct(parent, source, target), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// AllPaths enumerates every simple path (no repeated node) from source
// to target of length at most maxHops edges. Paths are returned in
// depth-first discovery order, which is deterministic given the store's
// sorted adjacency. Returns an empty slice when none exist.
//
// The search is exponential in branching factor x maxHops; it is meant
// for small in-memory graphs with a tight hop bound.
func (f *Finder) AllPaths(source, target graph.NodeID, maxHops int, edgeTypes ...string) [][]graph.NodeID {
	result := make([][]graph.NodeID, 0)
	if maxHops <= 0 || !f.store.HasNode(source) || !f.store.HasNode(target) {
		return result
	}

	allowed := typeSet(edgeTypes)
	onPath := map[graph.NodeID]struct{}{source: {}}
	path := []graph.NodeID{source}

	var walk func(current graph.NodeID)
	walk = func(current graph.NodeID) {
		if current == target && len(path) > 1 {
			found := make([]graph.NodeID, len(path))
			copy(found, path)
			result = append(result, found)
			return
		}
		if len(path)-1 >= maxHops {
			return
		}
		edges, err := f.store.OutgoingEdges(current)
		if err != nil {
			return
		}
		for _, edge := range edges {
			if !typeAllowed(allowed, edge.Type) {
				continue
			}
			next := edge.Target
			if _, active := onPath[next]; active {
				continue
			}
			onPath[next] = struct{}{}
			path = append(path, next)
			walk(next)
			path = path[:len(path)-1]
			delete(onPath, next)
		}
	}

	walk(source)
	return result
}

// PathExists reports whether any path of at most maxHops edges connects
// source to target. maxHops <= 0 means unbounded.
func (f *Finder) PathExists(source, target graph.NodeID, maxHops int, edgeTypes ...string) bool {
	path, ok := f.ShortestPath(source, target, edgeTypes...)
	if !ok {
		return false
	}
	return maxHops <= 0 || len(path)-1 <= maxHops
}

func typeSet(edgeTypes []string) map[string]struct{} {
	if len(edgeTypes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(edgeTypes))
	for _, t := range edgeTypes {
		set[t] = struct{}{}
	}
	return set
}

func typeAllowed(allowed map[string]struct{}, edgeType string) bool {
	if allowed == nil {
		return true
	}
	_, ok := allowed[edgeType]
	return ok
}

func reconstruct(parent map[graph.NodeID]graph.NodeID, source, target graph.NodeID) []graph.NodeID {
	reversed := []graph.NodeID{target}
	for current := target; current != source; {
		current = parent[current]
		reversed = append(reversed, current)
	}
	path := make([]graph.NodeID, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}
