package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the in-memory graph store.
//
// All public methods are safe for concurrent use in the map-integrity
// sense, but the intended discipline is single-writer: do not mutate the
// graph while a forward-chaining pass or traversal is in flight.
//
// Performance characteristics:
//   - Node/edge lookup by ID: O(1)
//   - NodesByType: O(k) where k = nodes of that type
//   - Outgoing/incoming edges: O(degree log degree) (sorted for
//     deterministic traversal order)
type Store struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	outgoing map[NodeID]map[EdgeID]struct{}
	incoming map[NodeID]map[EdgeID]struct{}

	// nodesByType is rebuilt explicitly (RebuildIndexes) or lazily on
	// first typed read after a write. Deliberate bulk-load/read-heavy
	// split: bulk construction does not pay per-write index costs.
	nodesByType map[string]map[NodeID]struct{}
	typeDirty   bool

	opts   Options
	closed bool
}

// NewStore creates an empty store. A nil opts uses the defaults
// (duplicate edge IDs silently ignored, no schema validation).
func NewStore(opts *Options) *Store {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	return &Store{
		nodes:       make(map[NodeID]*Node),
		edges:       make(map[EdgeID]*Edge),
		outgoing:    make(map[NodeID]map[EdgeID]struct{}),
		incoming:    make(map[NodeID]map[EdgeID]struct{}),
		nodesByType: make(map[string]map[NodeID]struct{}),
		opts:        o,
	}
}

// AddNode inserts a node.
//
// Returns:
//   - ErrInvalidData if node is nil
//   - ErrInvalidID if the ID is empty
//   - ErrDuplicateNode if the ID already exists (graph unmodified)
//   - ErrClosed if the store is closed
func (s *Store) AddNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}

	stored := copyNode(node)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.nodes[node.ID] = stored

	// Adjacency lists exist from insertion so traversals never need a
	// presence check.
	if s.outgoing[node.ID] == nil {
		s.outgoing[node.ID] = make(map[EdgeID]struct{})
	}
	if s.incoming[node.ID] == nil {
		s.incoming[node.ID] = make(map[EdgeID]struct{})
	}

	s.typeDirty = true
	return nil
}

// AddEdge inserts a directed edge.
//
// Both endpoints must already exist. Re-inserting an existing edge ID is
// a silent no-op under the default policy (idempotent bulk load) or
// ErrDuplicateEdge under DuplicateEdgeError. Strength must be in [0,1].
//
// Returns:
//   - ErrInvalidData if edge is nil or strength is out of range
//   - ErrInvalidID if the ID is empty
//   - ErrUnknownNode if either endpoint is missing (graph unmodified)
//   - ErrDuplicateEdge only under DuplicateEdgeError
//   - ErrClosed if the store is closed
func (s *Store) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if edge.Strength < 0 || edge.Strength > 1 {
		return fmt.Errorf("%w: strength %v out of [0,1]", ErrInvalidData, edge.Strength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, exists := s.edges[edge.ID]; exists {
		if s.opts.DuplicateEdges == DuplicateEdgeError {
			return fmt.Errorf("%w: %s", ErrDuplicateEdge, edge.ID)
		}
		return nil
	}
	if _, exists := s.nodes[edge.Source]; !exists {
		return fmt.Errorf("%w: source %s", ErrUnknownNode, edge.Source)
	}
	if _, exists := s.nodes[edge.Target]; !exists {
		return fmt.Errorf("%w: target %s", ErrUnknownNode, edge.Target)
	}

	if s.opts.Schema != nil {
		src := s.nodes[edge.Source]
		dst := s.nodes[edge.Target]
		if err := s.opts.Schema.ValidateEdge(edge, src, dst); err != nil {
			return err
		}
	}

	stored := copyEdge(edge)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.edges[edge.ID] = stored

	s.outgoing[edge.Source][edge.ID] = struct{}{}
	s.incoming[edge.Target][edge.ID] = struct{}{}

	return nil
}

// RemoveNode deletes a node and every edge attached to it.
func (s *Store) RemoveNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, exists := s.nodes[id]; !exists {
		return ErrNotFound
	}

	for edgeID := range s.outgoing[id] {
		if e := s.edges[edgeID]; e != nil {
			delete(s.incoming[e.Target], edgeID)
		}
		delete(s.edges, edgeID)
	}
	delete(s.outgoing, id)

	for edgeID := range s.incoming[id] {
		if e := s.edges[edgeID]; e != nil {
			delete(s.outgoing[e.Source], edgeID)
		}
		delete(s.edges, edgeID)
	}
	delete(s.incoming, id)

	delete(s.nodes, id)
	s.typeDirty = true
	return nil
}

// Node returns a copy of the node with the given ID.
func (s *Store) Node(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	node, exists := s.nodes[id]
	if !exists {
		return nil, fmt.Errorf("%w: node %s", ErrNotFound, id)
	}
	return copyNode(node), nil
}

// HasNode reports whether a node with the given ID exists.
func (s *Store) HasNode(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Edge returns a copy of the edge with the given ID.
func (s *Store) Edge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	edge, exists := s.edges[id]
	if !exists {
		return nil, fmt.Errorf("%w: edge %s", ErrNotFound, id)
	}
	return copyEdge(edge), nil
}

// NodesByType returns all nodes carrying the given type tag, sorted by
// ID. The type index is rebuilt lazily if writes happened since the last
// rebuild.
func (s *Store) NodesByType(nodeType string) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.typeDirty {
		s.rebuildTypeIndexLocked()
	}

	ids := s.nodesByType[nodeType]
	nodes := make([]*Node, 0, len(ids))
	for id := range ids {
		if n := s.nodes[id]; n != nil {
			nodes = append(nodes, copyNode(n))
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// AllNodes returns copies of every node, sorted by ID.
func (s *Store) AllNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, copyNode(n))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// AllEdges returns copies of every edge, sorted by ID.
func (s *Store) AllEdges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	edges := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, copyEdge(e))
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// OutgoingEdges returns all edges whose source is the given node, sorted
// by edge ID for deterministic traversal order.
func (s *Store) OutgoingEdges(id NodeID) ([]*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.collectEdgesLocked(s.outgoing[id]), nil
}

// IncomingEdges returns all edges whose target is the given node, sorted
// by edge ID.
func (s *Store) IncomingEdges(id NodeID) ([]*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.collectEdgesLocked(s.incoming[id]), nil
}

// EdgeBetween returns the first edge from source to target with the
// given type, or nil if none exists. An empty edgeType matches any type.
// Ties between parallel edges resolve to the lowest edge ID.
func (s *Store) EdgeBetween(source, target NodeID, edgeType string) *Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	var best *Edge
	for edgeID := range s.outgoing[source] {
		e := s.edges[edgeID]
		if e == nil || e.Target != target {
			continue
		}
		if edgeType != "" && e.Type != edgeType {
			continue
		}
		if best == nil || e.ID < best.ID {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return copyEdge(best)
}

// Neighbors returns the distinct nodes reachable over one outgoing hop,
// optionally filtered by edge type, sorted by node ID.
func (s *Store) Neighbors(id NodeID, edgeType string) ([]*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	seen := make(map[NodeID]struct{})
	nodes := make([]*Node, 0)
	for edgeID := range s.outgoing[id] {
		e := s.edges[edgeID]
		if e == nil {
			continue
		}
		if edgeType != "" && e.Type != edgeType {
			continue
		}
		if _, dup := seen[e.Target]; dup {
			continue
		}
		seen[e.Target] = struct{}{}
		if n := s.nodes[e.Target]; n != nil {
			nodes = append(nodes, copyNode(n))
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// SetNodeProperty sets a single property on a node in place.
//
// This is the mutation hook used by constraint enforcement; it follows
// the same single-writer discipline as every other write.
func (s *Store) SetNodeProperty(id NodeID, key string, value any) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	node, exists := s.nodes[id]
	if !exists {
		return fmt.Errorf("%w: node %s", ErrNotFound, id)
	}
	if node.Properties == nil {
		node.Properties = make(map[string]any)
	}
	node.Properties[key] = value
	node.UpdatedAt = time.Now()
	return nil
}

// RebuildIndexes rebuilds the node-type index. Call once after bulk
// construction; typed reads also trigger a lazy rebuild when needed.
func (s *Store) RebuildIndexes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.rebuildTypeIndexLocked()
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Stats summarizes graph contents.
type Stats struct {
	Nodes       int
	Edges       int
	NodesByType map[string]int
	EdgesByType map[string]int
}

// Statistics returns node/edge counts and per-type histograms.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Nodes:       len(s.nodes),
		Edges:       len(s.edges),
		NodesByType: make(map[string]int),
		EdgesByType: make(map[string]int),
	}
	for _, n := range s.nodes {
		stats.NodesByType[n.Type]++
	}
	for _, e := range s.edges {
		stats.EdgesByType[e.Type]++
	}
	return stats
}

// Close releases all memory. Subsequent operations return ErrClosed.
// Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.nodes = nil
	s.edges = nil
	s.outgoing = nil
	s.incoming = nil
	s.nodesByType = nil
	return nil
}

// rebuildTypeIndexLocked recomputes nodesByType. Caller holds mu.
func (s *Store) rebuildTypeIndexLocked() {
	s.nodesByType = make(map[string]map[NodeID]struct{})
	for id, n := range s.nodes {
		if s.nodesByType[n.Type] == nil {
			s.nodesByType[n.Type] = make(map[NodeID]struct{})
		}
		s.nodesByType[n.Type][id] = struct{}{}
	}
	s.typeDirty = false
}

// collectEdgesLocked copies and sorts an adjacency set. Caller holds mu.
func (s *Store) collectEdgesLocked(ids map[EdgeID]struct{}) []*Edge {
	edges := make([]*Edge, 0, len(ids))
	for id := range ids {
		if e := s.edges[id]; e != nil {
			edges = append(edges, copyEdge(e))
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// copyNode creates a deep copy of a node.
func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	copied := &Node{
		ID:         n.ID,
		Type:       n.Type,
		Properties: make(map[string]any, len(n.Properties)),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
	for k, v := range n.Properties {
		copied.Properties[k] = v
	}
	return copied
}

// copyEdge creates a deep copy of an edge.
func copyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	copied := &Edge{
		ID:            e.ID,
		Type:          e.Type,
		Source:        e.Source,
		Target:        e.Target,
		Strength:      e.Strength,
		Properties:    make(map[string]any, len(e.Properties)),
		CreatedAt:     e.CreatedAt,
		AutoGenerated: e.AutoGenerated,
	}
	for k, v := range e.Properties {
		copied.Properties[k] = v
	}
	return copied
}
