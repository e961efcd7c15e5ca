package inference

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/paths"
)

// Defaults for engine limits.
const (
	DefaultMaxIterations = 10
	DefaultMaxProofDepth = 8

	// DefaultMaterializationThreshold is the minimum confidence a
	// derived fact needs to be promoted into a real edge.
	DefaultMaterializationThreshold = 0.7
)

// Options configures an Engine.
type Options struct {
	// Materialize promotes derived facts at or above the threshold
	// into real graph edges so later iterations can chain off them.
	Materialize              bool
	MaterializationThreshold float64

	// MaxProofDepth bounds backward-chaining recursion.
	MaxProofDepth int

	// Criteria is the optional regulatory-data source handed to rules.
	Criteria CriteriaSource
}

// Engine orchestrates rule evaluation over a graph store.
//
// The engine holds a non-owning store reference and exclusively owns
// its rule list and derived-fact index. Single-writer discipline
// applies: do not mutate the store while a chaining pass runs.
type Engine struct {
	store  *graph.Store
	finder *paths.Finder
	facts  *FactIndex
	rules  []Rule
	opts   Options
	logger *zap.Logger

	factsByRule map[string]int
	passes      int
}

// ForwardResult reports one forward-chaining run.
type ForwardResult struct {
	NewFacts   int
	Iterations int
}

// ProofResult reports one backward-chaining run. A failed proof is a
// normal negative result: Success false, nil error.
type ProofResult struct {
	Success    bool
	Confidence float64
	Steps      []ProofStep
}

// NewEngine creates an Engine over the given store. A nil opts uses
// defaults (no materialization, proof depth 8); a nil logger disables
// logging.
func NewEngine(store *graph.Store, opts *Options, logger *zap.Logger) *Engine {
	o := Options{MaterializationThreshold: DefaultMaterializationThreshold, MaxProofDepth: DefaultMaxProofDepth}
	if opts != nil {
		o = *opts
		if o.MaterializationThreshold <= 0 {
			o.MaterializationThreshold = DefaultMaterializationThreshold
		}
		if o.MaxProofDepth <= 0 {
			o.MaxProofDepth = DefaultMaxProofDepth
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:       store,
		finder:      paths.NewFinder(store),
		facts:       NewFactIndex(),
		opts:        o,
		logger:      logger,
		factsByRule: make(map[string]int),
	}
}

// AddRule appends a rule to the evaluation order.
func (e *Engine) AddRule(rule Rule) {
	if rule == nil {
		return
	}
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// DerivedFacts returns all derived facts for a subject.
func (e *Engine) DerivedFacts(subject graph.NodeID) []*DerivedFact {
	return e.facts.BySubject(subject)
}

// Facts exposes the derived-fact index (read-mostly).
func (e *Engine) Facts() *FactIndex {
	return e.facts
}

func (e *Engine) ruleContext() Context {
	return Context{Graph: e.store, Facts: e.facts, Criteria: e.opts.Criteria}
}

// =============================================================================
// Forward chaining
// =============================================================================

// RunForwardChaining evaluates every rule repeatedly until an iteration
// derives nothing new (fixpoint) or maxIterations is hit.
//
// Per iteration, each rule's output is deduplicated against the fact
// index (first writer wins); when materialization is enabled, facts at
// or above the threshold become real edges immediately so later
// iterations can chain off them. A rule that fails or panics is logged
// and skipped for that iteration only.
//
// maxIterations <= 0 uses DefaultMaxIterations. The only error returned
// is ctx cancellation.
func (e *Engine) RunForwardChaining(ctx context.Context, maxIterations int) (*ForwardResult, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	result := &ForwardResult{}
	for iteration := 0; iteration < maxIterations; iteration++ {
		result.Iterations++
		newFacts := 0

		for _, rule := range e.rules {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			derived := e.evaluateRule(rule)
			for i := range derived {
				fact := derived[i]
				if !e.facts.Add(&fact) {
					continue
				}
				newFacts++
				e.factsByRule[fact.Rule]++
				if e.opts.Materialize && fact.Confidence >= e.opts.MaterializationThreshold {
					e.materialize(&fact)
				}
			}
		}

		result.NewFacts += newFacts
		if newFacts == 0 {
			break
		}
	}

	e.passes++
	e.logger.Info("forward chaining finished",
		zap.Int("new_facts", result.NewFacts),
		zap.Int("iterations", result.Iterations),
		zap.Int("total_facts", e.facts.Len()))
	return result, nil
}

// evaluateRule runs one rule, converting panics and errors into a
// logged skip.
func (e *Engine) evaluateRule(rule Rule) (derived []DerivedFact) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule panicked, skipping for this iteration",
				zap.String("rule", rule.Name()),
				zap.Any("panic", r))
			derived = nil
		}
	}()

	derived, err := rule.Evaluate(e.ruleContext())
	if err != nil {
		e.logger.Warn("rule failed, skipping for this iteration",
			zap.String("rule", rule.Name()),
			zap.Error(err))
		return nil
	}
	return derived
}

// materialize promotes a derived fact into a real edge.
func (e *Engine) materialize(fact *DerivedFact) {
	// Skip when an equivalent edge is already asserted.
	if e.store.EdgeBetween(fact.Subject, fact.Object, fact.Predicate) != nil {
		return
	}
	edge := &graph.Edge{
		ID:            graph.EdgeID("derived-" + uuid.NewString()),
		Type:          fact.Predicate,
		Source:        fact.Subject,
		Target:        fact.Object,
		Strength:      fact.Confidence,
		AutoGenerated: true,
		Properties: map[string]any{
			"derived_by": fact.Rule,
			"evidence":   fact.Evidence,
		},
	}
	if err := e.store.AddEdge(edge); err != nil {
		e.logger.Warn("materialization failed",
			zap.String("subject", string(fact.Subject)),
			zap.String("predicate", fact.Predicate),
			zap.String("object", string(fact.Object)),
			zap.Error(err))
	}
}

// =============================================================================
// Backward chaining
// =============================================================================

// RunBackwardChaining attempts to prove a goal. Resolution order: direct
// graph edge, then derived fact, then rule decomposition. A failed
// proof returns Success=false and a nil error; the only error returned
// is ctx cancellation.
func (e *Engine) RunBackwardChaining(ctx context.Context, goal Goal) (*ProofResult, error) {
	proof, err := e.prove(ctx, goal, make(map[string]struct{}), 0)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return &ProofResult{}, nil
	}
	return proof, nil
}

// prove is the recursive proof search. The visited set holds the goal
// keys on the active proof path (cycle guard). Returns nil when the
// goal cannot be proved.
func (e *Engine) prove(ctx context.Context, goal Goal, visited map[string]struct{}, depth int) (*ProofResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth >= e.opts.MaxProofDepth {
		return nil, nil
	}
	key := goal.Key()
	if _, active := visited[key]; active {
		return nil, nil
	}

	// 1. Direct edge.
	if edge := e.store.EdgeBetween(goal.Subject, goal.Object, goal.Predicate); edge != nil {
		return &ProofResult{
			Success:    true,
			Confidence: edge.Strength,
			Steps: []ProofStep{{
				Kind: StepDirectFact,
				Description: fmt.Sprintf("%s -%s-> %s is asserted in the graph",
					goal.Subject, goal.Predicate, goal.Object),
				Confidence: edge.Strength,
				Evidence:   []string{string(edge.ID)},
			}},
		}, nil
	}

	// 2. Derived fact.
	if fact := e.facts.Lookup(goal.Subject, goal.Predicate, goal.Object); fact != nil {
		return &ProofResult{
			Success:    true,
			Confidence: fact.Confidence,
			Steps: []ProofStep{{
				Kind: StepDerivedFact,
				Description: fmt.Sprintf("%s -%s-> %s was derived by rule %q",
					goal.Subject, goal.Predicate, goal.Object, fact.Rule),
				Confidence: fact.Confidence,
				Evidence:   fact.Evidence,
			}},
		}, nil
	}

	// 3. Rule decomposition.
	visited[key] = struct{}{}
	defer delete(visited, key)

	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rule.CanDerive(goal.Predicate) {
			continue
		}
		alternatives := rule.SubGoals(goal, e.ruleContext())
		if len(alternatives) == 0 {
			continue
		}

		if rule.RequiresAllSubGoals() {
			// AND composition: every alternative is a conjunction whose
			// sub-goals must all prove, sharing the visited set across
			// the whole chain. Rules like suitability emit one
			// conjunction per demand edge, so each is tried in turn.
			for _, alternative := range alternatives {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				proof, err := e.proveAlternative(ctx, rule, goal, alternative, visited, depth)
				if err != nil {
					return nil, err
				}
				if proof != nil {
					return proof, nil
				}
			}
			continue
		}

		// OR composition: first alternative that proves wins. Each
		// alternative gets a fresh copy of the visited set so a failed
		// branch never blocks its siblings.
		for _, alternative := range alternatives {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			branch := copyVisited(visited)
			proof, err := e.proveAlternative(ctx, rule, goal, alternative, branch, depth)
			if err != nil {
				return nil, err
			}
			if proof != nil {
				return proof, nil
			}
		}
	}

	return nil, nil
}

// proveAlternative proves every sub-goal of one alternative and, on
// success, assembles the combined proof: sub-proofs' steps followed by
// one rule-application step. Combined confidence is
// min(sub-confidences incl. the rule application) * SubGoalDecay.
func (e *Engine) proveAlternative(ctx context.Context, rule Rule, goal Goal, alt Alternative, visited map[string]struct{}, depth int) (*ProofResult, error) {
	if len(alt.Goals) == 0 {
		return nil, nil
	}

	steps := make([]ProofStep, 0)
	confidences := make([]float64, 0, len(alt.Goals))
	for _, sub := range alt.Goals {
		proof, err := e.prove(ctx, sub, visited, depth+1)
		if err != nil {
			return nil, err
		}
		if proof == nil {
			return nil, nil
		}
		steps = append(steps, proof.Steps...)
		confidences = append(confidences, proof.Confidence)
	}

	applied := minConfidence(confidences)
	if alt.Confidence != nil {
		applied = alt.Confidence(confidences)
	}
	combined := minConfidence(append([]float64{applied}, confidences...)) * SubGoalDecay

	steps = append(steps, ProofStep{
		Kind: StepRuleApplication,
		Description: fmt.Sprintf("rule %q derives %s -%s-> %s from %d sub-goal(s)",
			rule.Name(), goal.Subject, goal.Predicate, goal.Object, len(alt.Goals)),
		Confidence: combined,
	})

	return &ProofResult{Success: true, Confidence: combined, Steps: steps}, nil
}

func copyVisited(visited map[string]struct{}) map[string]struct{} {
	copied := make(map[string]struct{}, len(visited))
	for k := range visited {
		copied[k] = struct{}{}
	}
	return copied
}

// EngineStats summarizes engine activity.
type EngineStats struct {
	Rules        int
	DerivedFacts int
	FactsByRule  map[string]int
	ForwardRuns  int
}

// GetStats returns current engine statistics.
func (e *Engine) GetStats() EngineStats {
	byRule := make(map[string]int, len(e.factsByRule))
	for k, v := range e.factsByRule {
		byRule[k] = v
	}
	return EngineStats{
		Rules:        len(e.rules),
		DerivedFacts: e.facts.Len(),
		FactsByRule:  byRule,
		ForwardRuns:  e.passes,
	}
}
