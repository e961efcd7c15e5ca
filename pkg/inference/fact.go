// Package inference implements rule-based reasoning over the knowledge
// graph: forward chaining to a fixpoint, depth-bounded backward proof
// search, query answering, and analogy search.
//
// The engine owns its rule list and a derived-fact index keyed by
// (subject, predicate, object); the graph store is a non-owning
// reference. Derived facts live only in the index unless materialization
// promotes them into real edges.
//
// Example Usage:
//
//	eng := inference.NewEngine(store, nil, zap.NewNop())
//	eng.AddRule(inference.NewTransitiveRule("is_a"))
//
//	result, _ := eng.RunForwardChaining(ctx, 10)
//	fmt.Printf("derived %d facts in %d iterations\n",
//		result.NewFacts, result.Iterations)
//
//	proof, _ := eng.RunBackwardChaining(ctx, inference.Goal{
//		Subject:   "heat_pump",
//		Predicate: "is_a",
//		Object:    "appliance",
//	})
//	if proof.Success {
//		for _, step := range proof.Steps {
//			fmt.Println(step.Description)
//		}
//	}
package inference

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/orneryd/huginn/pkg/graph"
)

// DerivedFact is a relation inferred by a rule rather than asserted
// directly. It carries the deriving rule's name, supporting evidence,
// and a confidence in [0,1].
type DerivedFact struct {
	Subject    graph.NodeID
	Predicate  string
	Object     graph.NodeID
	Confidence float64
	Rule       string
	Evidence   []string
	CreatedAt  time.Time
}

// Key returns the dedup key for the fact's triple.
func (f *DerivedFact) Key() FactKey {
	return FactKey{Subject: f.Subject, Predicate: f.Predicate, Object: f.Object}
}

// FactKey identifies a (subject, predicate, object) triple.
type FactKey struct {
	Subject   graph.NodeID
	Predicate string
	Object    graph.NodeID
}

func (k FactKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Subject, k.Predicate, k.Object)
}

// Goal is a directed proof target for backward chaining.
type Goal struct {
	Subject   graph.NodeID
	Predicate string
	Object    graph.NodeID
}

// Key returns the cycle-guard key for the goal.
func (g Goal) Key() string {
	return FactKey{Subject: g.Subject, Predicate: g.Predicate, Object: g.Object}.String()
}

// StepKind classifies a proof step.
type StepKind string

const (
	StepDirectFact      StepKind = "direct_fact"
	StepDerivedFact     StepKind = "derived_fact"
	StepRuleApplication StepKind = "rule_application"
)

// ProofStep is one element of a backward-chaining proof.
type ProofStep struct {
	Kind        StepKind
	Description string
	Confidence  float64
	Evidence    []string
}

// FactIndex is the engine's derived-fact store, deduplicated per triple
// with first-writer-wins semantics: once a triple is present, later
// derivations are dropped regardless of confidence.
type FactIndex struct {
	mu        sync.RWMutex
	facts     map[FactKey]*DerivedFact
	bySubject map[graph.NodeID][]FactKey
}

// NewFactIndex creates an empty index.
func NewFactIndex() *FactIndex {
	return &FactIndex{
		facts:     make(map[FactKey]*DerivedFact),
		bySubject: make(map[graph.NodeID][]FactKey),
	}
}

// Add inserts a fact unless its triple is already present. Returns true
// when the fact was stored, false when it was a duplicate.
func (idx *FactIndex) Add(fact *DerivedFact) bool {
	if fact == nil {
		return false
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := fact.Key()
	if _, exists := idx.facts[key]; exists {
		return false
	}
	stored := *fact
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	idx.facts[key] = &stored
	idx.bySubject[fact.Subject] = append(idx.bySubject[fact.Subject], key)
	return true
}

// Lookup returns the fact for a triple, or nil.
func (idx *FactIndex) Lookup(subject graph.NodeID, predicate string, object graph.NodeID) *DerivedFact {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fact := idx.facts[FactKey{Subject: subject, Predicate: predicate, Object: object}]
	if fact == nil {
		return nil
	}
	copied := *fact
	return &copied
}

// BySubject returns all facts with the given subject, sorted by
// (predicate, object) for stable output.
func (idx *FactIndex) BySubject(subject graph.NodeID) []*DerivedFact {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	keys := idx.bySubject[subject]
	facts := make([]*DerivedFact, 0, len(keys))
	for _, key := range keys {
		if f := idx.facts[key]; f != nil {
			copied := *f
			facts = append(facts, &copied)
		}
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Predicate != facts[j].Predicate {
			return facts[i].Predicate < facts[j].Predicate
		}
		return facts[i].Object < facts[j].Object
	})
	return facts
}

// All returns every fact, sorted by key for stable output.
func (idx *FactIndex) All() []*DerivedFact {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	facts := make([]*DerivedFact, 0, len(idx.facts))
	for _, f := range idx.facts {
		copied := *f
		facts = append(facts, &copied)
	}
	sort.Slice(facts, func(i, j int) bool {
		return facts[i].Key().String() < facts[j].Key().String()
	})
	return facts
}

// Len returns the number of stored facts.
func (idx *FactIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.facts)
}
