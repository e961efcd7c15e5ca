// Package constraint implements decay-weighted constraint propagation.
//
// A constraint targets one property on one node and optionally spreads
// outward along qualifying edges: at depth d the derived constraint's
// strength is the original strength multiplied by 0.8^d. Derived
// constraints never re-propagate (their own depth budget is zero), so
// decay is single-generation, not a transitive chain of chains.
//
// Propagation is breadth-first and follows only edges whose type is in
// the constraint's PropagationEdgeTypes and whose strength meets
// MinEdgeStrength, stopping at MaxPropagationDepth.
//
// When enforcement is requested, property writes are guarded by the
// constraint type: Minimum raises values that are too low, Maximum
// lowers values that are too high, Required fills absent values, and
// Generic always overwrites. Every enforcement records a provenance note
// under a synthetic property key. Values that fail numeric coercion
// degrade to a no-op, never an error.
package constraint

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/orneryd/huginn/pkg/convert"
	"github.com/orneryd/huginn/pkg/graph"
)

// PropagationDecay is the per-hop strength multiplier applied to a
// constraint as it spreads away from its source node.
const PropagationDecay = 0.8

// provenancePrefix is the synthetic property key prefix under which
// enforcement provenance notes are recorded.
const provenancePrefix = "_enforced_"

// Type classifies how a constraint's value is applied to a property.
type Type string

const (
	// Minimum overwrites the current value only when it is below the
	// required value.
	Minimum Type = "minimum"
	// Maximum overwrites the current value only when it is above the
	// required value.
	Maximum Type = "maximum"
	// Required sets the value only when the property is absent.
	Required Type = "required"
	// Generic always overwrites.
	Generic Type = "generic"
)

// Constraint is a requirement on a node property that may spread to
// nearby nodes.
type Constraint struct {
	Type     Type
	Property string
	Value    any

	// Strength in [0,1] expresses how hard the requirement is; it
	// decays with propagation depth.
	Strength float64

	// MaxPropagationDepth bounds the spread. Zero keeps the constraint
	// on its source node only.
	MaxPropagationDepth int

	// PropagationEdgeTypes lists the edge types the spread may follow.
	// Empty means the constraint does not propagate at all.
	PropagationEdgeTypes []string

	// MinEdgeStrength is the minimum strength an edge needs to carry
	// the constraint across.
	MinEdgeStrength float64
}

// Affected describes one node touched by a propagation pass.
type Affected struct {
	NodeID graph.NodeID
	Depth  int
	// Derived is the constraint as it applies at this node: strength
	// decayed by depth, depth budget zeroed.
	Derived  Constraint
	Enforced bool
}

// Report is the outcome of one Propagate call.
type Report struct {
	Affected []Affected
	// Mutations counts property writes actually performed (always zero
	// when enforce is false).
	Mutations int
}

// Propagator spreads constraints over a store and optionally enforces
// them. It holds a non-owning store reference; enforcement writes follow
// the store's single-writer discipline.
type Propagator struct {
	store  *graph.Store
	logger *zap.Logger
}

// NewPropagator creates a Propagator. A nil logger disables logging.
func NewPropagator(store *graph.Store, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{store: store, logger: logger}
}

// Propagate spreads the constraint outward from sourceID and returns the
// per-node report. When enforce is true, each affected node's property
// is conditionally written per the constraint type.
//
// The source node itself is affected at depth 0 with the undecayed
// strength. Returns ErrNotFound when the source node does not exist.
func (p *Propagator) Propagate(sourceID graph.NodeID, c Constraint, enforce bool) (*Report, error) {
	if _, err := p.store.Node(sourceID); err != nil {
		return nil, err
	}

	report := &Report{Affected: make([]Affected, 0)}

	type queued struct {
		id    graph.NodeID
		depth int
	}

	visited := map[graph.NodeID]struct{}{sourceID: {}}
	queue := []queued{{id: sourceID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		derived := c
		derived.Strength = c.Strength * math.Pow(PropagationDecay, float64(current.depth))
		// Derived constraints never propagate again.
		derived.MaxPropagationDepth = 0

		affected := Affected{
			NodeID:  current.id,
			Depth:   current.depth,
			Derived: derived,
		}
		if enforce {
			mutated := p.enforce(current.id, derived, current.depth)
			affected.Enforced = mutated
			if mutated {
				report.Mutations++
			}
		}
		report.Affected = append(report.Affected, affected)

		if current.depth >= c.MaxPropagationDepth {
			continue
		}

		edges, err := p.store.OutgoingEdges(current.id)
		if err != nil {
			continue
		}
		for _, edge := range edges {
			if !edgeQualifies(c, edge) {
				continue
			}
			if _, seen := visited[edge.Target]; seen {
				continue
			}
			visited[edge.Target] = struct{}{}
			queue = append(queue, queued{id: edge.Target, depth: current.depth + 1})
		}
	}

	p.logger.Info("constraint propagated",
		zap.String("source", string(sourceID)),
		zap.String("property", c.Property),
		zap.Int("affected", len(report.Affected)),
		zap.Int("mutations", report.Mutations))

	return report, nil
}

// enforce conditionally writes the constraint value onto the node.
// Returns true when a property was written.
func (p *Propagator) enforce(id graph.NodeID, c Constraint, depth int) bool {
	node, err := p.store.Node(id)
	if err != nil {
		return false
	}
	current, present := node.Properties[c.Property]

	write := false
	switch c.Type {
	case Minimum:
		required, ok := convert.ToFloat64(c.Value)
		if !ok {
			return false
		}
		cur, curOK := convert.ToFloat64(current)
		// Absent or non-numeric current values are left alone; Minimum
		// only raises values known to be too low.
		write = present && curOK && cur < required
	case Maximum:
		required, ok := convert.ToFloat64(c.Value)
		if !ok {
			return false
		}
		cur, curOK := convert.ToFloat64(current)
		write = present && curOK && cur > required
	case Required:
		write = !present
	case Generic:
		write = true
	default:
		return false
	}

	if !write {
		return false
	}
	if err := p.store.SetNodeProperty(id, c.Property, c.Value); err != nil {
		return false
	}

	note := fmt.Sprintf("%s constraint on %q enforced at depth %d (strength %.3f)",
		c.Type, c.Property, depth, c.Strength)
	if err := p.store.SetNodeProperty(id, provenancePrefix+c.Property, note); err != nil {
		p.logger.Warn("provenance note write failed",
			zap.String("node", string(id)), zap.Error(err))
	}
	return true
}

func edgeQualifies(c Constraint, edge *graph.Edge) bool {
	if edge.Strength < c.MinEdgeStrength {
		return false
	}
	for _, t := range c.PropagationEdgeTypes {
		if edge.Type == t {
			return true
		}
	}
	return false
}
