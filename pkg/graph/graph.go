// Package graph provides the in-memory typed knowledge graph for Huginn.
//
// The graph is a labeled property graph: nodes carry a type tag and a
// property bag, edges are directed, typed, and weighted with a strength
// in [0,1]. The store keeps forward/reverse adjacency indexes plus a
// node-type index so traversals and type scans stay O(degree)/O(k).
//
// Design Principles:
//   - Bulk-load then read-heavy: construction happens up front, reads
//     dominate afterwards. The node-type index is rebuilt explicitly
//     (or lazily on first read) rather than maintained per write.
//   - Single-writer: mutation paths must be externally serialized
//     relative to any in-flight traversal or inference pass. The
//     internal RWMutex protects map integrity, not application-level
//     read-modify-write sequences.
//   - Deterministic reads: edge listings are returned sorted by edge ID
//     so traversal order is stable across runs.
//
// Example Usage:
//
//	store := graph.NewStore(nil)
//
//	store.AddNode(&graph.Node{ID: "kitchen", Type: "Room"})
//	store.AddNode(&graph.Node{ID: "pantry", Type: "Room"})
//
//	store.AddEdge(&graph.Edge{
//		ID:       "adj-1",
//		Type:     "adjacent_to",
//		Source:   "kitchen",
//		Target:   "pantry",
//		Strength: 0.9,
//	})
//
//	rooms, _ := store.NodesByType("Room")
//	out, _ := store.OutgoingEdges("kitchen")
package graph

import (
	"errors"
	"time"
)

// Common errors returned by the store.
var (
	ErrDuplicateNode = errors.New("node id already exists")
	ErrDuplicateEdge = errors.New("edge id already exists")
	ErrUnknownNode   = errors.New("edge endpoint does not exist")
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrClosed        = errors.New("store closed")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Node is a typed entity in the knowledge graph.
//
// The property bag is string-keyed and heterogeneously typed; numeric
// values may arrive as int, int64 or float64 depending on how the node
// was constructed (constraint enforcement coerces them on read).
type Node struct {
	ID         NodeID         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Edge is a directed, typed, strength-weighted relation between two nodes.
//
// Strength expresses how confident the graph is in the relation and must
// be in [0,1]. Edges produced by the inference engine carry
// AutoGenerated=true so asserted and derived structure stay
// distinguishable after materialization.
type Edge struct {
	ID         EdgeID         `json:"id"`
	Type       string         `json:"type"`
	Source     NodeID         `json:"source"`
	Target     NodeID         `json:"target"`
	Strength   float64        `json:"strength"`
	Properties map[string]any `json:"properties"`

	CreatedAt     time.Time `json:"-"`
	AutoGenerated bool      `json:"-"`
}

// DuplicateEdgePolicy controls what AddEdge does when an edge ID is
// already present.
//
// The silent skip mirrors idempotent bulk loads: re-importing the same
// dataset must leave edge counts unchanged. Stricter callers can opt
// into an error instead, since a silent skip can also mask two
// genuinely different edges fighting over one ID.
type DuplicateEdgePolicy int

const (
	// DuplicateEdgeIgnore silently skips an AddEdge whose ID already
	// exists. This is the default (idempotent bulk load).
	DuplicateEdgeIgnore DuplicateEdgePolicy = iota

	// DuplicateEdgeError makes AddEdge return ErrDuplicateEdge when the
	// ID already exists.
	DuplicateEdgeError
)

// Options configures a Store.
type Options struct {
	// DuplicateEdges selects the duplicate edge-ID policy.
	DuplicateEdges DuplicateEdgePolicy

	// Schema, when non-nil, validates every AddEdge against registered
	// endpoint-type and required-property rules.
	Schema *Schema
}
