// Package layout detects conflicts between a proposed room layout and
// the spatial knowledge held in the graph.
//
// The layout (rooms, doors) is supplied by the caller and is read-only
// here. Spatial knowledge lives in the graph as room-type concept nodes
// whose IDs match Room.Type, connected by "avoid" / "adjacent_to" edges
// carrying distance bounds and access requirements, and carrying area
// and window requirements as node properties.
//
// For every unordered room pair the detector resolves a
// SpatialRelationship: a direct edge from the first room's concept to
// the second wins; failing that, an edge in the opposite direction
// applies with its strength discounted; failing both, a neutral default
// (strength 0.5, no bounds, no access requirement) applies.
package layout

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/orneryd/huginn/pkg/convert"
	"github.com/orneryd/huginn/pkg/graph"
)

// InverseDiscount is applied to a relationship's strength when it was
// resolved from an edge pointing the opposite way.
const InverseDiscount = 0.9

// neutralStrength is the strength of the default relationship used when
// the graph knows nothing about a room pair.
const neutralStrength = 0.5

// Relation names recognized on spatial edges.
const (
	RelationAvoid    = "avoid"
	RelationAdjacent = "adjacent_to"
	RelationNeutral  = "neutral"
)

// Edge/node property keys carrying spatial requirements.
const (
	PropMinDistance    = "min_distance"
	PropMaxDistance    = "max_distance"
	PropRequiresAccess = "requires_direct_access"
	PropMinArea        = "min_area"
	PropMaxArea        = "max_area"
	PropRequiresWindow = "requires_window"
)

// Point is a 2D position in meters.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Room is one room in a proposed layout. Type names the room-type
// concept node in the graph (e.g. "Kitchen").
type Room struct {
	ID              string  `json:"id" yaml:"id"`
	Type            string  `json:"type" yaml:"type"`
	Area            float64 `json:"area" yaml:"area"`
	Center          Point   `json:"center" yaml:"center"`
	HasExternalWall bool    `json:"hasExternalWall" yaml:"has_external_wall"`
}

// Door connects two rooms in a proposed layout.
type Door struct {
	FromRoom string `json:"fromRoom" yaml:"from_room"`
	ToRoom   string `json:"toRoom" yaml:"to_room"`
}

// ProposedLayout is the caller-owned conflict-detection input.
type ProposedLayout struct {
	Rooms []Room `json:"rooms" yaml:"rooms"`
	Doors []Door `json:"doors" yaml:"doors"`
}

// SpatialRelationship is the resolved spatial expectation between two
// room types. Zero MinDistance/MaxDistance mean "no bound".
type SpatialRelationship struct {
	Relation             string
	Strength             float64
	MinDistance          float64
	MaxDistance          float64
	RequiresDirectAccess bool
}

// Severity classifies a conflict.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind identifies the check a conflict came from.
type Kind string

const (
	SpatialViolation     Kind = "spatial_violation"
	AdjacencyViolation   Kind = "adjacency_violation"
	AccessViolation      Kind = "access_violation"
	AreaViolation        Kind = "area_violation"
	RequirementViolation Kind = "requirement_violation"
)

// Conflict is one detected problem in a proposed layout.
type Conflict struct {
	Kind        Kind
	Severity    Severity
	RoomIDs     []string
	Description string
	Suggestion  string
}

// Detector checks proposed layouts against the graph's spatial knowledge.
type Detector struct {
	store  *graph.Store
	logger *zap.Logger
}

// NewDetector creates a Detector. A nil logger disables logging.
func NewDetector(store *graph.Store, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{store: store, logger: logger}
}

// DetectConflicts runs every pairwise and per-room check and returns all
// conflicts found. An empty result means the layout is clean.
func (d *Detector) DetectConflicts(l *ProposedLayout) []Conflict {
	conflicts := make([]Conflict, 0)
	if l == nil {
		return conflicts
	}

	for i := 0; i < len(l.Rooms); i++ {
		for j := i + 1; j < len(l.Rooms); j++ {
			conflicts = append(conflicts, d.checkPair(l, l.Rooms[i], l.Rooms[j])...)
		}
	}
	for _, room := range l.Rooms {
		conflicts = append(conflicts, d.checkRoom(room)...)
	}

	d.logger.Info("layout checked",
		zap.Int("rooms", len(l.Rooms)),
		zap.Int("conflicts", len(conflicts)))
	return conflicts
}

// HasCriticalConflicts reports whether any conflict carries Error
// severity.
func HasCriticalConflicts(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ResolveRelationship resolves the spatial relationship between two room
// types. Direct edge wins; the inverse direction applies at a strength
// discount; otherwise a neutral default.
func (d *Detector) ResolveRelationship(fromType, toType string) SpatialRelationship {
	if edge := d.spatialEdge(fromType, toType); edge != nil {
		return relationshipFromEdge(edge, 1.0)
	}
	if edge := d.spatialEdge(toType, fromType); edge != nil {
		return relationshipFromEdge(edge, InverseDiscount)
	}
	return SpatialRelationship{
		Relation: RelationNeutral,
		Strength: neutralStrength,
	}
}

func (d *Detector) spatialEdge(fromType, toType string) *graph.Edge {
	for _, relation := range []string{RelationAvoid, RelationAdjacent} {
		if edge := d.store.EdgeBetween(graph.NodeID(fromType), graph.NodeID(toType), relation); edge != nil {
			return edge
		}
	}
	return nil
}

func relationshipFromEdge(edge *graph.Edge, discount float64) SpatialRelationship {
	rel := SpatialRelationship{
		Relation: edge.Type,
		Strength: edge.Strength * discount,
	}
	if v, ok := convert.ToFloat64(edge.Properties[PropMinDistance]); ok {
		rel.MinDistance = v
	}
	if v, ok := convert.ToFloat64(edge.Properties[PropMaxDistance]); ok {
		rel.MaxDistance = v
	}
	if v, ok := convert.ToBool(edge.Properties[PropRequiresAccess]); ok {
		rel.RequiresDirectAccess = v
	}
	return rel
}

func (d *Detector) checkPair(l *ProposedLayout, a, b Room) []Conflict {
	conflicts := make([]Conflict, 0)
	rel := d.ResolveRelationship(a.Type, b.Type)
	distance := a.Center.Distance(b.Center)

	if rel.Relation == RelationAvoid && rel.MinDistance > 0 && distance < rel.MinDistance {
		conflicts = append(conflicts, Conflict{
			Kind:     SpatialViolation,
			Severity: SeverityError,
			RoomIDs:  []string{a.ID, b.ID},
			Description: fmt.Sprintf("%s and %s are %.1fm apart but must keep at least %.1fm",
				a.ID, b.ID, distance, rel.MinDistance),
			Suggestion: fmt.Sprintf("move %s or %s further apart", a.ID, b.ID),
		})
	}

	if rel.Relation == RelationAdjacent && rel.MaxDistance > 0 && distance > rel.MaxDistance {
		conflicts = append(conflicts, Conflict{
			Kind:     AdjacencyViolation,
			Severity: SeverityWarning,
			RoomIDs:  []string{a.ID, b.ID},
			Description: fmt.Sprintf("%s and %s should be adjacent (%.1fm apart, max %.1fm)",
				a.ID, b.ID, distance, rel.MaxDistance),
			Suggestion: fmt.Sprintf("place %s closer to %s", b.ID, a.ID),
		})
	}

	if rel.RequiresDirectAccess && !hasDoor(l, a.ID, b.ID) {
		conflicts = append(conflicts, Conflict{
			Kind:     AccessViolation,
			Severity: SeverityError,
			RoomIDs:  []string{a.ID, b.ID},
			Description: fmt.Sprintf("%s requires direct access to %s but no door connects them",
				a.ID, b.ID),
			Suggestion: fmt.Sprintf("add a door between %s and %s", a.ID, b.ID),
		})
	}

	return conflicts
}

func (d *Detector) checkRoom(room Room) []Conflict {
	conflicts := make([]Conflict, 0)

	concept, err := d.store.Node(graph.NodeID(room.Type))
	if err != nil {
		// Unknown room type: nothing to check against.
		return conflicts
	}

	if minArea, ok := convert.ToFloat64(concept.Properties[PropMinArea]); ok && room.Area < minArea {
		conflicts = append(conflicts, Conflict{
			Kind:     AreaViolation,
			Severity: SeverityError,
			RoomIDs:  []string{room.ID},
			Description: fmt.Sprintf("%s has %.1fm² but %s requires at least %.1fm²",
				room.ID, room.Area, room.Type, minArea),
			Suggestion: fmt.Sprintf("enlarge %s to at least %.1fm²", room.ID, minArea),
		})
	}
	if maxArea, ok := convert.ToFloat64(concept.Properties[PropMaxArea]); ok && room.Area > maxArea {
		conflicts = append(conflicts, Conflict{
			Kind:     AreaViolation,
			Severity: SeverityWarning,
			RoomIDs:  []string{room.ID},
			Description: fmt.Sprintf("%s has %.1fm², above the usual %.1fm² for %s",
				room.ID, room.Area, maxArea, room.Type),
			Suggestion: fmt.Sprintf("consider shrinking %s", room.ID),
		})
	}

	if needsWindow, ok := convert.ToBool(concept.Properties[PropRequiresWindow]); ok && needsWindow && !room.HasExternalWall {
		conflicts = append(conflicts, Conflict{
			Kind:     RequirementViolation,
			Severity: SeverityError,
			RoomIDs:  []string{room.ID},
			Description: fmt.Sprintf("%s requires a window but %s has no external wall",
				room.Type, room.ID),
			Suggestion: fmt.Sprintf("move %s to an external wall", room.ID),
		})
	}

	return conflicts
}

func hasDoor(l *ProposedLayout, a, b string) bool {
	for _, door := range l.Doors {
		if (door.FromRoom == a && door.ToRoom == b) || (door.FromRoom == b && door.ToRoom == a) {
			return true
		}
	}
	return false
}
