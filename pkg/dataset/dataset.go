// Package dataset loads graph datasets from YAML files.
//
// A dataset file declares nodes, edges, and the relation metadata the
// inference engine needs (transitive relations and inverse pairs):
//
//	nodes:
//	  - id: kitchen
//	    type: room
//	    properties:
//	      min_area: 8.0
//	edges:
//	  - id: e1
//	    type: adjacent_to
//	    source: kitchen
//	    target: dining
//	    strength: 0.9
//	relations:
//	  transitive: [is_a, part_of]
//	  inverse:
//	    contains: part_of
package dataset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/huginn/pkg/graph"
)

// Dataset is the YAML document shape.
type Dataset struct {
	Nodes     []NodeSpec    `yaml:"nodes"`
	Edges     []EdgeSpec    `yaml:"edges"`
	Relations RelationsSpec `yaml:"relations"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	ID         string         `yaml:"id"`
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties"`
}

// EdgeSpec declares one edge. Strength defaults to 1.0 when omitted.
type EdgeSpec struct {
	ID         string         `yaml:"id"`
	Type       string         `yaml:"type"`
	Source     string         `yaml:"source"`
	Target     string         `yaml:"target"`
	Strength   *float64       `yaml:"strength"`
	Properties map[string]any `yaml:"properties"`
}

// RelationsSpec declares rule metadata for the engine.
type RelationsSpec struct {
	// Transitive lists relation names where A-r->B-r->C implies A-r->C.
	Transitive []string `yaml:"transitive"`
	// Inverse maps a predicate to its converse.
	Inverse map[string]string `yaml:"inverse"`
}

// Parse decodes a dataset from YAML bytes.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &ds, nil
}

// LoadFile reads and decodes a dataset file.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return Parse(data)
}

// Apply bulk-loads the dataset into a store. Nodes load before edges so
// endpoint checks pass. Call store.RebuildIndexes after a large load.
func (d *Dataset) Apply(store *graph.Store) error {
	for i, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: %w: empty id", i, graph.ErrInvalidID)
		}
		node := &graph.Node{
			ID:         graph.NodeID(n.ID),
			Type:       n.Type,
			Properties: n.Properties,
		}
		if err := store.AddNode(node); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
	}

	for i, e := range d.Edges {
		if e.ID == "" {
			return fmt.Errorf("edge %d: %w: empty id", i, graph.ErrInvalidID)
		}
		strength := 1.0
		if e.Strength != nil {
			strength = *e.Strength
		}
		edge := &graph.Edge{
			ID:         graph.EdgeID(e.ID),
			Type:       e.Type,
			Source:     graph.NodeID(e.Source),
			Target:     graph.NodeID(e.Target),
			Strength:   strength,
			Properties: e.Properties,
		}
		if err := store.AddEdge(edge); err != nil {
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
	}

	store.RebuildIndexes()
	return nil
}

// Marshal encodes the dataset back to YAML.
func (d *Dataset) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}
	return out, nil
}
