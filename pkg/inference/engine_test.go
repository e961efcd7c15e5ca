package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/graph"
)

// xyzStore builds X -is_a-> Y (0.9), Y -is_a-> Z (0.8).
func xyzStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore(nil)
	for _, id := range []string{"X", "Y", "Z"} {
		require.NoError(t, s.AddNode(&graph.Node{ID: graph.NodeID(id), Type: "concept"}))
	}
	require.NoError(t, s.AddEdge(&graph.Edge{
		ID: "xy", Type: "is_a", Source: "X", Target: "Y", Strength: 0.9,
	}))
	require.NoError(t, s.AddEdge(&graph.Edge{
		ID: "yz", Type: "is_a", Source: "Y", Target: "Z", Strength: 0.8,
	}))
	return s
}

func TestForwardChainingTransitivity(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	result, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewFacts)

	fact := eng.Facts().Lookup("X", "is_a", "Z")
	require.NotNil(t, fact)
	assert.InDelta(t, 0.72, fact.Confidence, 1e-9)
	assert.Equal(t, "transitivity", fact.Rule)
	assert.Len(t, fact.Evidence, 2)

	// A second pass derives nothing new.
	again, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, again.NewFacts)
	assert.Equal(t, 1, eng.Facts().Len())
}

func TestForwardChainingFixpointStopsEarly(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	result, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	// One productive iteration plus the terminating empty one.
	assert.Equal(t, 2, result.Iterations)
}

func TestForwardChainingDedup(t *testing.T) {
	s := xyzStore(t)
	eng := NewEngine(s, nil, nil)
	// Registering the rule twice must not double-derive the triple.
	eng.AddRule(NewTransitiveRule("is_a"))
	eng.AddRule(NewTransitiveRule("is_a"))

	result, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewFacts)
	assert.Equal(t, 1, eng.Facts().Len())
}

func TestForwardChainingIterationCap(t *testing.T) {
	// A chain long enough to need multiple iterations.
	s := graph.NewStore(nil)
	chain := []string{"a", "b", "c", "d", "e"}
	for _, id := range chain {
		require.NoError(t, s.AddNode(&graph.Node{ID: graph.NodeID(id), Type: "concept"}))
	}
	for i := 0; i < len(chain)-1; i++ {
		require.NoError(t, s.AddEdge(&graph.Edge{
			ID:     graph.EdgeID(chain[i] + chain[i+1]),
			Type:   "part_of",
			Source: graph.NodeID(chain[i]), Target: graph.NodeID(chain[i+1]),
			Strength: 1,
		}))
	}

	eng := NewEngine(s, nil, nil)
	eng.AddRule(NewTransitiveRule("part_of"))

	capped, err := eng.RunForwardChaining(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, capped.Iterations)

	// Without materialization the rule only sees real edges, so the
	// derived set is already complete after one iteration.
	full, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, full.NewFacts)
}

type failingRule struct{ calls int }

func (r *failingRule) Name() string                           { return "failing" }
func (r *failingRule) Description() string                    { return "always errors" }
func (r *failingRule) CanDerive(string) bool                  { return false }
func (r *failingRule) RequiresAllSubGoals() bool              { return true }
func (r *failingRule) SubGoals(Goal, Context) []Alternative   { return nil }
func (r *failingRule) Evaluate(Context) ([]DerivedFact, error) {
	r.calls++
	return nil, errors.New("boom")
}

type panickingRule struct{}

func (r *panickingRule) Name() string                            { return "panicking" }
func (r *panickingRule) Description() string                     { return "always panics" }
func (r *panickingRule) CanDerive(string) bool                   { return false }
func (r *panickingRule) RequiresAllSubGoals() bool               { return true }
func (r *panickingRule) SubGoals(Goal, Context) []Alternative    { return nil }
func (r *panickingRule) Evaluate(Context) ([]DerivedFact, error) { panic("boom") }

func TestForwardChainingRuleFailureTolerance(t *testing.T) {
	failing := &failingRule{}
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(failing)
	eng.AddRule(&panickingRule{})
	eng.AddRule(NewTransitiveRule("is_a"))

	result, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewFacts)
	assert.Positive(t, failing.calls)
	require.NotNil(t, eng.Facts().Lookup("X", "is_a", "Z"))
}

func TestForwardChainingMaterialization(t *testing.T) {
	s := xyzStore(t)
	eng := NewEngine(s, &Options{
		Materialize:              true,
		MaterializationThreshold: 0.7,
	}, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	_, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)

	edge := s.EdgeBetween("X", "Z", "is_a")
	require.NotNil(t, edge)
	assert.True(t, edge.AutoGenerated)
	assert.InDelta(t, 0.72, edge.Strength, 1e-9)
	assert.Equal(t, "transitivity", edge.Properties["derived_by"])
}

func TestForwardChainingMaterializationThreshold(t *testing.T) {
	s := xyzStore(t)
	eng := NewEngine(s, &Options{
		Materialize:              true,
		MaterializationThreshold: 0.9,
	}, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	_, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)

	// 0.72 stays below the bar: fact exists, edge does not.
	assert.NotNil(t, eng.Facts().Lookup("X", "is_a", "Z"))
	assert.Nil(t, s.EdgeBetween("X", "Z", "is_a"))
}

func TestForwardChainingCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	_, err := eng.RunForwardChaining(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackwardChainingDirectFact(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "X", Predicate: "is_a", Object: "Y"})
	require.NoError(t, err)
	require.True(t, proof.Success)
	assert.InDelta(t, 0.9, proof.Confidence, 1e-9)
	require.Len(t, proof.Steps, 1)
	assert.Equal(t, StepDirectFact, proof.Steps[0].Kind)
}

func TestBackwardChainingDerivedFact(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.Facts().Add(&DerivedFact{
		Subject: "X", Predicate: "related_to", Object: "Z",
		Confidence: 0.6, Rule: "test",
	})

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "X", Predicate: "related_to", Object: "Z"})
	require.NoError(t, err)
	require.True(t, proof.Success)
	assert.InDelta(t, 0.6, proof.Confidence, 1e-9)
	require.Len(t, proof.Steps, 1)
	assert.Equal(t, StepDerivedFact, proof.Steps[0].Kind)
}

func TestBackwardChainingTransitiveProof(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "X", Predicate: "is_a", Object: "Z"})
	require.NoError(t, err)
	require.True(t, proof.Success)

	// Two direct facts plus the rule application.
	require.Len(t, proof.Steps, 3)
	assert.Equal(t, StepDirectFact, proof.Steps[0].Kind)
	assert.Equal(t, StepDirectFact, proof.Steps[1].Kind)
	assert.Equal(t, StepRuleApplication, proof.Steps[2].Kind)

	// Rule application carries 0.9*0.8-decayed transitive confidence,
	// then the sub-goal discount applies.
	assert.InDelta(t, 0.72*SubGoalDecay, proof.Confidence, 1e-9)
	assert.Positive(t, proof.Confidence)
}

func TestBackwardChainingSoundness(t *testing.T) {
	s := xyzStore(t)
	eng := NewEngine(s, nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "X", Predicate: "is_a", Object: "Z"})
	require.NoError(t, err)
	require.True(t, proof.Success)
	assert.Positive(t, proof.Confidence)

	// Every cited direct-fact edge really exists.
	for _, step := range proof.Steps {
		if step.Kind != StepDirectFact {
			continue
		}
		require.NotEmpty(t, step.Evidence)
		_, err := s.Edge(graph.EdgeID(step.Evidence[0]))
		assert.NoError(t, err, "cited edge %s", step.Evidence[0])
	}
}

func TestBackwardChainingFailure(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "Z", Predicate: "is_a", Object: "X"})
	require.NoError(t, err)
	assert.False(t, proof.Success)
	assert.Zero(t, proof.Confidence)
	assert.Empty(t, proof.Steps)
}

func TestBackwardChainingCycleGuard(t *testing.T) {
	s := graph.NewStore(nil)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.AddNode(&graph.Node{ID: graph.NodeID(id), Type: "concept"}))
	}
	require.NoError(t, s.AddEdge(&graph.Edge{
		ID: "ab", Type: "is_a", Source: "a", Target: "b", Strength: 1,
	}))
	require.NoError(t, s.AddEdge(&graph.Edge{
		ID: "ba", Type: "is_a", Source: "b", Target: "a", Strength: 1,
	}))

	eng := NewEngine(s, nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	// No proof exists; the search must terminate instead of looping.
	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "a", Predicate: "is_a", Object: "ghost"})
	require.NoError(t, err)
	assert.False(t, proof.Success)
}

func TestBackwardChainingDepthBound(t *testing.T) {
	s := graph.NewStore(nil)
	chain := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	for _, id := range chain {
		require.NoError(t, s.AddNode(&graph.Node{ID: graph.NodeID(id), Type: "concept"}))
	}
	for i := 0; i < len(chain)-1; i++ {
		require.NoError(t, s.AddEdge(&graph.Edge{
			ID:     graph.EdgeID(chain[i] + chain[i+1]),
			Type:   "is_a",
			Source: graph.NodeID(chain[i]), Target: graph.NodeID(chain[i+1]),
			Strength: 1,
		}))
	}

	goal := Goal{Subject: "n0", Predicate: "is_a", Object: "n5"}

	shallow := NewEngine(s, &Options{MaxProofDepth: 2}, nil)
	shallow.AddRule(NewTransitiveRule("is_a"))
	proof, err := shallow.RunBackwardChaining(context.Background(), goal)
	require.NoError(t, err)
	assert.False(t, proof.Success)

	deep := NewEngine(s, &Options{MaxProofDepth: 10}, nil)
	deep.AddRule(NewTransitiveRule("is_a"))
	proof, err = deep.RunBackwardChaining(context.Background(), goal)
	require.NoError(t, err)
	assert.True(t, proof.Success)
}

func TestBackwardChainingInverseAndMode(t *testing.T) {
	s := graph.NewStore(nil)
	require.NoError(t, s.AddNode(&graph.Node{ID: "house", Type: "building"}))
	require.NoError(t, s.AddNode(&graph.Node{ID: "kitchen", Type: "room"}))
	require.NoError(t, s.AddEdge(&graph.Edge{
		ID: "c1", Type: "contains", Source: "house", Target: "kitchen", Strength: 0.9,
	}))

	eng := NewEngine(s, nil, nil)
	eng.AddRule(NewInverseRule(map[string]string{"contains": "part_of"}))

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "kitchen", Predicate: "part_of", Object: "house"})
	require.NoError(t, err)
	require.True(t, proof.Success)
	assert.InDelta(t, 0.9*SubGoalDecay, proof.Confidence, 1e-9)
	require.Len(t, proof.Steps, 2)
	assert.Equal(t, StepDirectFact, proof.Steps[0].Kind)
	assert.Equal(t, StepRuleApplication, proof.Steps[1].Kind)
}

func TestBackwardChainingSuitabilityLaterConjunction(t *testing.T) {
	// "server_room" has two environment demands; only the second one is
	// supplied, so the first conjunction fails and the proof must come
	// from the next one.
	s := graph.NewStore(nil)
	mustNode(t, s, "server_room", "space", nil)
	mustNode(t, s, "env_quiet", "environment", nil)
	mustNode(t, s, "env_cool", "environment", nil)
	mustNode(t, s, "basement", "space", nil)
	mustEdge(t, s, "r1", "requires_environment", "server_room", "env_quiet", 0.9)
	mustEdge(t, s, "r2", "requires_environment", "server_room", "env_cool", 0.8)
	mustEdge(t, s, "p1", "provides_environment", "basement", "env_cool", 0.7)

	eng := NewEngine(s, nil, nil)
	eng.AddRule(NewSuitabilityRule("requires_environment", "provides_environment", "suitable_for"))

	forward, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, forward.NewFacts)
	require.NotNil(t, eng.Facts().Lookup("server_room", "suitable_for", "basement"))

	// Backward chaining over a fresh engine must reach the same
	// conclusion from the graph alone.
	eng = NewEngine(s, nil, nil)
	eng.AddRule(NewSuitabilityRule("requires_environment", "provides_environment", "suitable_for"))

	proof, err := eng.RunBackwardChaining(context.Background(), Goal{Subject: "server_room", Predicate: "suitable_for", Object: "basement"})
	require.NoError(t, err)
	require.True(t, proof.Success)
	assert.InDelta(t, 0.7*SuitabilityDiscount*SubGoalDecay, proof.Confidence, 1e-9)
	require.Len(t, proof.Steps, 3)
	assert.Equal(t, StepDirectFact, proof.Steps[0].Kind)
	assert.Equal(t, StepDirectFact, proof.Steps[1].Kind)
	assert.Equal(t, StepRuleApplication, proof.Steps[2].Kind)
}

func TestGetStats(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))
	eng.AddRule(NewInverseRule(map[string]string{"is_a": "kind_includes"}))

	_, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)

	stats := eng.GetStats()
	assert.Equal(t, 2, stats.Rules)
	assert.Equal(t, 1, stats.ForwardRuns)
	assert.Equal(t, stats.DerivedFacts, stats.FactsByRule["transitivity"]+stats.FactsByRule["inverse_relation"])
	assert.Positive(t, stats.DerivedFacts)
}

func TestDerivedFactsBySubject(t *testing.T) {
	eng := NewEngine(xyzStore(t), nil, nil)
	eng.AddRule(NewTransitiveRule("is_a"))

	_, err := eng.RunForwardChaining(context.Background(), 10)
	require.NoError(t, err)

	facts := eng.DerivedFacts("X")
	require.Len(t, facts, 1)
	assert.Equal(t, graph.NodeID("Z"), facts[0].Object)
	assert.Empty(t, eng.DerivedFacts("Z"))
}
