package inference

import "github.com/orneryd/huginn/pkg/graph"

// Named decay and discount constants used by the built-in rules.
// The values are part of the inference contract; change them and every
// documented confidence in this package shifts.
const (
	// TransitiveDecay multiplies the first hop's confidence when a
	// transitive relation is collapsed (A-r->B-r->C => A-r->C).
	TransitiveDecay = 0.8

	// SubGoalDecay discounts a goal proved through rule decomposition:
	// combined confidence = min(sub-goal confidences) * SubGoalDecay.
	SubGoalDecay = 0.9

	// SuitabilityDiscount applies to pattern rules that pair a demand
	// with a supply (suitability, spatial requirements).
	SuitabilityDiscount = 0.9

	// CausalHopDecay multiplies the confidence product of a two-hop
	// causal chain, and is the confidence of compliance derivations.
	CausalHopDecay = 0.95
)

// Context is the read-only environment a rule evaluates against.
type Context struct {
	Graph *graph.Store
	Facts *FactIndex

	// Criteria supplies named numeric/boolean regulatory values for
	// compliance rules. May be nil.
	Criteria CriteriaSource
}

// CriteriaSource is the external regulatory-data collaborator: a named
// lookup of numeric limits and boolean flags. Implementations live
// outside this module.
type CriteriaSource interface {
	// Numeric returns the named numeric criterion, false if unknown.
	Numeric(name string) (float64, bool)
	// Flag returns the named boolean criterion, false if unknown.
	Flag(name string) (bool, bool)
}

// Alternative is one way a rule can decompose a goal: a conjunction of
// sub-goals that must all prove, plus an optional confidence combiner.
type Alternative struct {
	Goals []Goal

	// Confidence combines the proven sub-goal confidences into the
	// rule-application confidence. Nil means min(sub-confidences).
	Confidence func(sub []float64) float64
}

// Rule is a named inference rule: a pure evaluation function over the
// graph plus an optional goal decomposer for backward chaining.
//
// Rules are inspectable data, not opaque closures: CanDerive declares
// the predicates a rule can produce, and SubGoals exposes how a goal
// breaks down.
type Rule interface {
	// Name identifies the rule in derived facts and logs.
	Name() string

	// Description is a one-line human-readable summary.
	Description() string

	// CanDerive reports whether the rule can produce facts with the
	// given predicate.
	CanDerive(predicate string) bool

	// Evaluate runs the rule over the whole graph and returns every
	// fact it can currently derive. Duplicate triples are dropped by
	// the engine; rules need not dedup against the index.
	Evaluate(rctx Context) ([]DerivedFact, error)

	// RequiresAllSubGoals selects backward-chaining composition:
	// true = AND (all sub-goals of the single alternative must prove,
	// sharing one visited set); false = OR (alternatives are tried in
	// order, each with a fresh copy of the visited set, first success
	// wins).
	RequiresAllSubGoals() bool

	// SubGoals decomposes a goal into alternatives. An empty result
	// means the rule cannot decompose this goal.
	SubGoals(goal Goal, rctx Context) []Alternative
}

// minConfidence returns the smallest value in sub, or 0 for empty input.
func minConfidence(sub []float64) float64 {
	if len(sub) == 0 {
		return 0
	}
	min := sub[0]
	for _, c := range sub[1:] {
		if c < min {
			min = c
		}
	}
	return min
}
