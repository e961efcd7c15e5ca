package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(nil)
}

func addNode(t *testing.T, s *Store, id NodeID, nodeType string) {
	t.Helper()
	require.NoError(t, s.AddNode(&Node{ID: id, Type: nodeType}))
}

func addEdge(t *testing.T, s *Store, id EdgeID, edgeType string, src, dst NodeID, strength float64) {
	t.Helper()
	require.NoError(t, s.AddEdge(&Edge{ID: id, Type: edgeType, Source: src, Target: dst, Strength: strength}))
}

func TestAddNode(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddNode(&Node{ID: "kitchen", Type: "room"}))

	got, err := s.Node("kitchen")
	require.NoError(t, err)
	assert.Equal(t, NodeID("kitchen"), got.ID)
	assert.Equal(t, "room", got.Type)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestAddNodeErrors(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "kitchen", "room")

	tests := []struct {
		name    string
		node    *Node
		wantErr error
	}{
		{"nil node", nil, ErrInvalidData},
		{"empty id", &Node{Type: "room"}, ErrInvalidID},
		{"duplicate id", &Node{ID: "kitchen", Type: "room"}, ErrDuplicateNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddNode(tt.node)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 1, s.NodeCount())
}

func TestAddEdge(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")

	require.NoError(t, s.AddEdge(&Edge{ID: "e1", Type: "adjacent_to", Source: "a", Target: "b", Strength: 0.9}))

	got, err := s.Edge("e1")
	require.NoError(t, err)
	assert.Equal(t, NodeID("a"), got.Source)
	assert.Equal(t, NodeID("b"), got.Target)
	assert.InDelta(t, 0.9, got.Strength, 1e-9)
}

func TestAddEdgeErrors(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")

	tests := []struct {
		name    string
		edge    *Edge
		wantErr error
	}{
		{"nil edge", nil, ErrInvalidData},
		{"empty id", &Edge{Source: "a", Target: "b"}, ErrInvalidID},
		{"strength below range", &Edge{ID: "e", Source: "a", Target: "b", Strength: -0.1}, ErrInvalidData},
		{"strength above range", &Edge{ID: "e", Source: "a", Target: "b", Strength: 1.1}, ErrInvalidData},
		{"missing source", &Edge{ID: "e", Source: "ghost", Target: "b", Strength: 0.5}, ErrUnknownNode},
		{"missing target", &Edge{ID: "e", Source: "a", Target: "ghost", Strength: 0.5}, ErrUnknownNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddEdge(tt.edge)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, s.EdgeCount())
}

func TestAddEdgeDuplicateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addNode(t, s, "c", "room")
	addEdge(t, s, "e1", "adjacent_to", "a", "b", 0.9)

	// Same ID, different content: silent no-op, nothing changes.
	require.NoError(t, s.AddEdge(&Edge{ID: "e1", Type: "avoid", Source: "a", Target: "c", Strength: 0.1}))

	assert.Equal(t, 1, s.EdgeCount())
	got, err := s.Edge("e1")
	require.NoError(t, err)
	assert.Equal(t, "adjacent_to", got.Type)
	assert.Equal(t, NodeID("b"), got.Target)

	out, err := s.OutgoingEdges("a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, EdgeID("e1"), out[0].ID)
}

func TestAddEdgeDuplicateErrorPolicy(t *testing.T) {
	s := NewStore(&Options{DuplicateEdges: DuplicateEdgeError})
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addEdge(t, s, "e1", "adjacent_to", "a", "b", 0.9)

	err := s.AddEdge(&Edge{ID: "e1", Type: "adjacent_to", Source: "a", Target: "b", Strength: 0.9})
	assert.ErrorIs(t, err, ErrDuplicateEdge)
}

func TestRemoveNodeCascades(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addNode(t, s, "c", "room")
	addEdge(t, s, "e1", "adjacent_to", "a", "b", 0.9)
	addEdge(t, s, "e2", "adjacent_to", "b", "c", 0.8)
	addEdge(t, s, "e3", "adjacent_to", "a", "c", 0.7)

	require.NoError(t, s.RemoveNode("b"))

	assert.False(t, s.HasNode("b"))
	assert.Equal(t, 1, s.EdgeCount())
	_, err := s.Edge("e1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Edge("e2")
	assert.ErrorIs(t, err, ErrNotFound)

	// Surviving adjacency is intact.
	out, err := s.OutgoingEdges("a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, EdgeID("e3"), out[0].ID)

	assert.ErrorIs(t, s.RemoveNode("b"), ErrNotFound)
}

func TestNodesByType(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "kitchen", "room")
	addNode(t, s, "bathroom", "room")
	addNode(t, s, "oven", "appliance")

	rooms, err := s.NodesByType("room")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, NodeID("bathroom"), rooms[0].ID)
	assert.Equal(t, NodeID("kitchen"), rooms[1].ID)

	// Index refreshes after later writes.
	addNode(t, s, "attic", "room")
	rooms, err = s.NodesByType("room")
	require.NoError(t, err)
	assert.Len(t, rooms, 3)

	none, err := s.NodesByType("vehicle")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutgoingIncomingSorted(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addEdge(t, s, "e3", "rel", "a", "b", 0.5)
	addEdge(t, s, "e1", "rel", "a", "b", 0.5)
	addEdge(t, s, "e2", "rel", "a", "b", 0.5)

	out, err := s.OutgoingEdges("a")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, EdgeID("e1"), out[0].ID)
	assert.Equal(t, EdgeID("e2"), out[1].ID)
	assert.Equal(t, EdgeID("e3"), out[2].ID)

	in, err := s.IncomingEdges("b")
	require.NoError(t, err)
	assert.Len(t, in, 3)
}

func TestEdgeBetween(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addEdge(t, s, "e2", "rel", "a", "b", 0.5)
	addEdge(t, s, "e1", "rel", "a", "b", 0.7)
	addEdge(t, s, "e3", "other", "a", "b", 0.9)

	// Lowest edge ID wins among parallel edges of the same type.
	got := s.EdgeBetween("a", "b", "rel")
	require.NotNil(t, got)
	assert.Equal(t, EdgeID("e1"), got.ID)

	// Empty type matches any.
	got = s.EdgeBetween("a", "b", "")
	require.NotNil(t, got)
	assert.Equal(t, EdgeID("e1"), got.ID)

	assert.Nil(t, s.EdgeBetween("b", "a", "rel"))
	assert.Nil(t, s.EdgeBetween("a", "b", "missing"))
}

func TestNeighbors(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addNode(t, s, "c", "room")
	addEdge(t, s, "e1", "rel", "a", "b", 0.5)
	addEdge(t, s, "e2", "rel", "a", "c", 0.5)
	addEdge(t, s, "e3", "other", "a", "c", 0.5)

	all, err := s.Neighbors("a", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, NodeID("b"), all[0].ID)
	assert.Equal(t, NodeID("c"), all[1].ID)

	typed, err := s.Neighbors("a", "other")
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, NodeID("c"), typed[0].ID)
}

func TestSetNodeProperty(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")

	require.NoError(t, s.SetNodeProperty("a", "area", 12.5))

	got, err := s.Node("a")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Properties["area"])
	assert.False(t, got.UpdatedAt.IsZero())

	assert.ErrorIs(t, s.SetNodeProperty("ghost", "area", 1.0), ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(&Node{ID: "a", Type: "room", Properties: map[string]any{"area": 10.0}}))

	got, err := s.Node("a")
	require.NoError(t, err)
	got.Properties["area"] = 99.0
	got.Type = "hacked"

	again, err := s.Node("a")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Properties["area"])
	assert.Equal(t, "room", again.Type)
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")
	addNode(t, s, "b", "room")
	addNode(t, s, "oven", "appliance")
	addEdge(t, s, "e1", "adjacent_to", "a", "b", 0.5)
	addEdge(t, s, "e2", "contains", "a", "oven", 0.5)

	stats := s.Statistics()
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 2, stats.Edges)
	assert.Equal(t, 2, stats.NodesByType["room"])
	assert.Equal(t, 1, stats.NodesByType["appliance"])
	assert.Equal(t, 1, stats.EdgesByType["adjacent_to"])
}

func TestClose(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.AddNode(&Node{ID: "b", Type: "room"}), ErrClosed)
	_, err := s.Node("a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.NodesByType("room")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSentinelWrapping(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, "a", "room")

	err := s.AddNode(&Node{ID: "a", Type: "room"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNode))
	assert.Contains(t, err.Error(), "a")
}
