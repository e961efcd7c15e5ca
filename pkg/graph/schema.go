package graph

import (
	"errors"
	"fmt"
	"sync"
)

// Schema validation errors.
var (
	ErrSchemaViolation = errors.New("schema violation")
)

// EdgeRule restricts what an edge type may connect and which properties
// it must carry. Empty SourceTypes/TargetTypes allow any endpoint type.
type EdgeRule struct {
	SourceTypes        []string
	TargetTypes        []string
	RequiredProperties []string
}

// Schema holds optional, construction-time validation rules keyed by
// edge type. Edge types without a registered rule pass unchecked.
//
// Example:
//
//	schema := graph.NewSchema()
//	schema.RegisterEdgeRule("located_in", graph.EdgeRule{
//		SourceTypes: []string{"Equipment"},
//		TargetTypes: []string{"Room"},
//	})
//	store := graph.NewStore(&graph.Options{Schema: schema})
type Schema struct {
	mu    sync.RWMutex
	rules map[string]EdgeRule
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{rules: make(map[string]EdgeRule)}
}

// RegisterEdgeRule installs or replaces the rule for an edge type.
func (s *Schema) RegisterEdgeRule(edgeType string, rule EdgeRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[edgeType] = rule
}

// ValidateEdge checks an edge against the rule registered for its type.
// Returns nil when no rule is registered.
func (s *Schema) ValidateEdge(edge *Edge, source, target *Node) error {
	s.mu.RLock()
	rule, ok := s.rules[edge.Type]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if len(rule.SourceTypes) > 0 && !containsString(rule.SourceTypes, source.Type) {
		return fmt.Errorf("%w: edge %q source type %q not in %v",
			ErrSchemaViolation, edge.Type, source.Type, rule.SourceTypes)
	}
	if len(rule.TargetTypes) > 0 && !containsString(rule.TargetTypes, target.Type) {
		return fmt.Errorf("%w: edge %q target type %q not in %v",
			ErrSchemaViolation, edge.Type, target.Type, rule.TargetTypes)
	}
	for _, prop := range rule.RequiredProperties {
		if _, present := edge.Properties[prop]; !present {
			return fmt.Errorf("%w: edge %q missing required property %q",
				ErrSchemaViolation, edge.Type, prop)
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
