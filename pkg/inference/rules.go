package inference

import (
	"fmt"

	"github.com/orneryd/huginn/pkg/convert"
	"github.com/orneryd/huginn/pkg/graph"
)

// =============================================================================
// Transitivity
// =============================================================================

// TransitiveRule collapses declared transitive relations:
// A-r->B-r->C derives A-r->C with confidence edge(A,B).strength *
// TransitiveDecay.
//
// Backward chaining decomposes OR-style over intermediate candidates:
// for goal (X,r,Z), every outgoing r-edge X-r->Y yields the alternative
// [(X,r,Y), (Y,r,Z)].
type TransitiveRule struct {
	relations map[string]struct{}
	ordered   []string
}

// NewTransitiveRule declares the given relation names transitive.
func NewTransitiveRule(relations ...string) *TransitiveRule {
	set := make(map[string]struct{}, len(relations))
	for _, r := range relations {
		set[r] = struct{}{}
	}
	return &TransitiveRule{relations: set, ordered: relations}
}

func (r *TransitiveRule) Name() string { return "transitivity" }

func (r *TransitiveRule) Description() string {
	return "derives A-r->C from A-r->B and B-r->C for declared transitive relations"
}

func (r *TransitiveRule) CanDerive(predicate string) bool {
	_, ok := r.relations[predicate]
	return ok
}

func (r *TransitiveRule) RequiresAllSubGoals() bool { return false }

func (r *TransitiveRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	facts := make([]DerivedFact, 0)
	for _, edge := range rctx.Graph.AllEdges() {
		if !r.CanDerive(edge.Type) {
			continue
		}
		next, err := rctx.Graph.OutgoingEdges(edge.Target)
		if err != nil {
			return nil, err
		}
		for _, hop := range next {
			if hop.Type != edge.Type || hop.Target == edge.Source {
				continue
			}
			facts = append(facts, DerivedFact{
				Subject:    edge.Source,
				Predicate:  edge.Type,
				Object:     hop.Target,
				Confidence: edge.Strength * TransitiveDecay,
				Rule:       r.Name(),
				Evidence: []string{
					fmt.Sprintf("%s -%s-> %s (%.2f)", edge.Source, edge.Type, edge.Target, edge.Strength),
					fmt.Sprintf("%s -%s-> %s (%.2f)", hop.Source, hop.Type, hop.Target, hop.Strength),
				},
			})
		}
	}
	return facts, nil
}

func (r *TransitiveRule) SubGoals(goal Goal, rctx Context) []Alternative {
	if !r.CanDerive(goal.Predicate) {
		return nil
	}
	edges, err := rctx.Graph.OutgoingEdges(goal.Subject)
	if err != nil {
		return nil
	}
	alternatives := make([]Alternative, 0)
	for _, edge := range edges {
		if edge.Type != goal.Predicate || edge.Target == goal.Object || edge.Target == goal.Subject {
			continue
		}
		mid := edge.Target
		alternatives = append(alternatives, Alternative{
			Goals: []Goal{
				{Subject: goal.Subject, Predicate: goal.Predicate, Object: mid},
				{Subject: mid, Predicate: goal.Predicate, Object: goal.Object},
			},
			Confidence: func(sub []float64) float64 {
				return sub[0] * TransitiveDecay
			},
		})
	}
	return alternatives
}

// =============================================================================
// Inverse relations
// =============================================================================

// InverseRule auto-generates the converse of declared predicate pairs at
// equal confidence: A-p->B derives B-q->A when q is declared as p's
// inverse. Derivations already present as real edges are skipped.
type InverseRule struct {
	// forward maps predicate -> its inverse.
	forward map[string]string
	// reverse maps inverse -> predicate, for backward chaining.
	reverse map[string]string
}

// NewInverseRule declares inverse predicate pairs, e.g.
// {"contains": "contained_in"}.
func NewInverseRule(pairs map[string]string) *InverseRule {
	forward := make(map[string]string, len(pairs))
	reverse := make(map[string]string, len(pairs))
	for p, q := range pairs {
		forward[p] = q
		reverse[q] = p
	}
	return &InverseRule{forward: forward, reverse: reverse}
}

func (r *InverseRule) Name() string { return "inverse_relation" }

func (r *InverseRule) Description() string {
	return "derives the declared converse of a relation at equal confidence"
}

func (r *InverseRule) CanDerive(predicate string) bool {
	_, ok := r.reverse[predicate]
	return ok
}

func (r *InverseRule) RequiresAllSubGoals() bool { return true }

func (r *InverseRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	facts := make([]DerivedFact, 0)
	for _, edge := range rctx.Graph.AllEdges() {
		inverse, ok := r.forward[edge.Type]
		if !ok {
			continue
		}
		// Skip when the converse is already asserted.
		if rctx.Graph.EdgeBetween(edge.Target, edge.Source, inverse) != nil {
			continue
		}
		facts = append(facts, DerivedFact{
			Subject:    edge.Target,
			Predicate:  inverse,
			Object:     edge.Source,
			Confidence: edge.Strength,
			Rule:       r.Name(),
			Evidence: []string{
				fmt.Sprintf("%s -%s-> %s (%.2f)", edge.Source, edge.Type, edge.Target, edge.Strength),
			},
		})
	}
	return facts, nil
}

func (r *InverseRule) SubGoals(goal Goal, rctx Context) []Alternative {
	original, ok := r.reverse[goal.Predicate]
	if !ok {
		return nil
	}
	return []Alternative{{
		Goals: []Goal{
			{Subject: goal.Object, Predicate: original, Object: goal.Subject},
		},
		Confidence: func(sub []float64) float64 { return sub[0] },
	}}
}

// =============================================================================
// Adjacency inheritance
// =============================================================================

// AdjacencyInheritanceRule spreads exposure-style relations across
// adjacency: A-adjacent_to->B and B-p->C (p inheritable) derives A-p->C
// at min(strengths) * TransitiveDecay. A room next to one exposed to
// street noise is itself (more weakly) exposed.
type AdjacencyInheritanceRule struct {
	adjacency   string
	inheritable map[string]struct{}
}

// NewAdjacencyInheritanceRule declares which predicates propagate across
// the given adjacency relation.
func NewAdjacencyInheritanceRule(adjacency string, inheritable ...string) *AdjacencyInheritanceRule {
	set := make(map[string]struct{}, len(inheritable))
	for _, p := range inheritable {
		set[p] = struct{}{}
	}
	return &AdjacencyInheritanceRule{adjacency: adjacency, inheritable: set}
}

func (r *AdjacencyInheritanceRule) Name() string { return "adjacency_inheritance" }

func (r *AdjacencyInheritanceRule) Description() string {
	return "inherits exposure relations from adjacent nodes at reduced confidence"
}

func (r *AdjacencyInheritanceRule) CanDerive(predicate string) bool {
	_, ok := r.inheritable[predicate]
	return ok
}

func (r *AdjacencyInheritanceRule) RequiresAllSubGoals() bool { return false }

func (r *AdjacencyInheritanceRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	facts := make([]DerivedFact, 0)
	for _, adj := range rctx.Graph.AllEdges() {
		if adj.Type != r.adjacency {
			continue
		}
		inherited, err := rctx.Graph.OutgoingEdges(adj.Target)
		if err != nil {
			return nil, err
		}
		for _, rel := range inherited {
			if !r.CanDerive(rel.Type) || rel.Target == adj.Source {
				continue
			}
			conf := minConfidence([]float64{adj.Strength, rel.Strength}) * TransitiveDecay
			facts = append(facts, DerivedFact{
				Subject:    adj.Source,
				Predicate:  rel.Type,
				Object:     rel.Target,
				Confidence: conf,
				Rule:       r.Name(),
				Evidence: []string{
					fmt.Sprintf("%s -%s-> %s (%.2f)", adj.Source, adj.Type, adj.Target, adj.Strength),
					fmt.Sprintf("%s -%s-> %s (%.2f)", rel.Source, rel.Type, rel.Target, rel.Strength),
				},
			})
		}
	}
	return facts, nil
}

func (r *AdjacencyInheritanceRule) SubGoals(goal Goal, rctx Context) []Alternative {
	if !r.CanDerive(goal.Predicate) {
		return nil
	}
	edges, err := rctx.Graph.OutgoingEdges(goal.Subject)
	if err != nil {
		return nil
	}
	alternatives := make([]Alternative, 0)
	for _, adj := range edges {
		if adj.Type != r.adjacency || adj.Target == goal.Subject {
			continue
		}
		mid := adj.Target
		alternatives = append(alternatives, Alternative{
			Goals: []Goal{
				{Subject: goal.Subject, Predicate: r.adjacency, Object: mid},
				{Subject: mid, Predicate: goal.Predicate, Object: goal.Object},
			},
			Confidence: func(sub []float64) float64 {
				return minConfidence(sub) * TransitiveDecay
			},
		})
	}
	return alternatives
}

// =============================================================================
// Suitability
// =============================================================================

// SuitabilityRule pairs a demand with a supply: X-requires->E and
// Y-provides->E derives X-suitable_for->Y at min(strengths) *
// SuitabilityDiscount.
type SuitabilityRule struct {
	requires string
	provides string
	derived  string
}

// NewSuitabilityRule builds a suitability rule over the given demand,
// supply and derived predicates (e.g. "requires_environment",
// "provides_environment", "suitable_for").
func NewSuitabilityRule(requires, provides, derived string) *SuitabilityRule {
	return &SuitabilityRule{requires: requires, provides: provides, derived: derived}
}

func (r *SuitabilityRule) Name() string { return "suitability" }

func (r *SuitabilityRule) Description() string {
	return "derives suitability by matching demand relations to supply relations"
}

func (r *SuitabilityRule) CanDerive(predicate string) bool { return predicate == r.derived }

func (r *SuitabilityRule) RequiresAllSubGoals() bool { return true }

func (r *SuitabilityRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	facts := make([]DerivedFact, 0)
	for _, demand := range rctx.Graph.AllEdges() {
		if demand.Type != r.requires {
			continue
		}
		suppliers, err := rctx.Graph.IncomingEdges(demand.Target)
		if err != nil {
			return nil, err
		}
		for _, supply := range suppliers {
			if supply.Type != r.provides || supply.Source == demand.Source {
				continue
			}
			conf := minConfidence([]float64{demand.Strength, supply.Strength}) * SuitabilityDiscount
			facts = append(facts, DerivedFact{
				Subject:    demand.Source,
				Predicate:  r.derived,
				Object:     supply.Source,
				Confidence: conf,
				Rule:       r.Name(),
				Evidence: []string{
					fmt.Sprintf("%s -%s-> %s (%.2f)", demand.Source, demand.Type, demand.Target, demand.Strength),
					fmt.Sprintf("%s -%s-> %s (%.2f)", supply.Source, supply.Type, supply.Target, supply.Strength),
				},
			})
		}
	}
	return facts, nil
}

func (r *SuitabilityRule) SubGoals(goal Goal, rctx Context) []Alternative {
	if goal.Predicate != r.derived {
		return nil
	}
	// One alternative per shared requirement target.
	edges, err := rctx.Graph.OutgoingEdges(goal.Subject)
	if err != nil {
		return nil
	}
	alternatives := make([]Alternative, 0)
	for _, demand := range edges {
		if demand.Type != r.requires {
			continue
		}
		environment := demand.Target
		alternatives = append(alternatives, Alternative{
			Goals: []Goal{
				{Subject: goal.Subject, Predicate: r.requires, Object: environment},
				{Subject: goal.Object, Predicate: r.provides, Object: environment},
			},
			Confidence: func(sub []float64) float64 {
				return minConfidence(sub) * SuitabilityDiscount
			},
		})
	}
	return alternatives
}

// =============================================================================
// Spatial requirements
// =============================================================================

// SpatialRequirementRule lifts activity proximity needs onto their
// hosts: A-used_for->T and T-requires_proximity_to->B derives
// A-should_be_near->B at min(strengths) * SuitabilityDiscount.
type SpatialRequirementRule struct {
	usedFor   string
	proximity string
	derived   string
}

// NewSpatialRequirementRule builds the rule over the given predicates.
func NewSpatialRequirementRule(usedFor, proximity, derived string) *SpatialRequirementRule {
	return &SpatialRequirementRule{usedFor: usedFor, proximity: proximity, derived: derived}
}

func (r *SpatialRequirementRule) Name() string { return "spatial_requirement" }

func (r *SpatialRequirementRule) Description() string {
	return "derives proximity requirements from the activities a space hosts"
}

func (r *SpatialRequirementRule) CanDerive(predicate string) bool { return predicate == r.derived }

func (r *SpatialRequirementRule) RequiresAllSubGoals() bool { return true }

func (r *SpatialRequirementRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	facts := make([]DerivedFact, 0)
	for _, hosts := range rctx.Graph.AllEdges() {
		if hosts.Type != r.usedFor {
			continue
		}
		needs, err := rctx.Graph.OutgoingEdges(hosts.Target)
		if err != nil {
			return nil, err
		}
		for _, need := range needs {
			if need.Type != r.proximity || need.Target == hosts.Source {
				continue
			}
			conf := minConfidence([]float64{hosts.Strength, need.Strength}) * SuitabilityDiscount
			facts = append(facts, DerivedFact{
				Subject:    hosts.Source,
				Predicate:  r.derived,
				Object:     need.Target,
				Confidence: conf,
				Rule:       r.Name(),
				Evidence: []string{
					fmt.Sprintf("%s -%s-> %s (%.2f)", hosts.Source, hosts.Type, hosts.Target, hosts.Strength),
					fmt.Sprintf("%s -%s-> %s (%.2f)", need.Source, need.Type, need.Target, need.Strength),
				},
			})
		}
	}
	return facts, nil
}

func (r *SpatialRequirementRule) SubGoals(goal Goal, rctx Context) []Alternative {
	if goal.Predicate != r.derived {
		return nil
	}
	edges, err := rctx.Graph.OutgoingEdges(goal.Subject)
	if err != nil {
		return nil
	}
	alternatives := make([]Alternative, 0)
	for _, hosts := range edges {
		if hosts.Type != r.usedFor {
			continue
		}
		activity := hosts.Target
		alternatives = append(alternatives, Alternative{
			Goals: []Goal{
				{Subject: goal.Subject, Predicate: r.usedFor, Object: activity},
				{Subject: activity, Predicate: r.proximity, Object: goal.Object},
			},
			Confidence: func(sub []float64) float64 {
				return minConfidence(sub) * SuitabilityDiscount
			},
		})
	}
	return alternatives
}

// =============================================================================
// Code compliance
// =============================================================================

// ComplianceCheck binds a node type's property to a named criterion
// from the CriteriaSource and to the code node the outcome should
// reference. A check is either numeric (limit comparison) or boolean
// (flag equality), selected by Boolean.
type ComplianceCheck struct {
	NodeType string
	Property string
	// Criterion names the limit or flag in the CriteriaSource.
	Criterion string
	// Maximum selects the numeric comparison direction: true means the
	// property must not exceed the limit, false means it must reach it.
	Maximum bool
	// Boolean switches the check to flag mode: the property must equal
	// the criterion flag (e.g. sprinklers_installed vs sprinklers_required).
	Boolean bool
	// CodeNode is the graph node representing the regulation.
	CodeNode graph.NodeID
}

// PredicateComplies and PredicateViolates are the predicates the
// compliance rule derives.
const (
	PredicateComplies = "complies_with"
	PredicateViolates = "violates"
)

// ComplianceRule derives compliance facts by comparing node properties
// against named criteria from the external regulatory-data source.
// Nodes whose property is absent or of the wrong kind are skipped, as
// are checks whose criterion the source does not know.
type ComplianceRule struct {
	checks []ComplianceCheck
}

// NewComplianceRule builds a compliance rule from the given checks.
func NewComplianceRule(checks ...ComplianceCheck) *ComplianceRule {
	return &ComplianceRule{checks: checks}
}

func (r *ComplianceRule) Name() string { return "code_compliance" }

func (r *ComplianceRule) Description() string {
	return "derives complies_with/violates facts from regulatory criteria"
}

func (r *ComplianceRule) CanDerive(predicate string) bool {
	return predicate == PredicateComplies || predicate == PredicateViolates
}

func (r *ComplianceRule) RequiresAllSubGoals() bool { return true }

func (r *ComplianceRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	if rctx.Criteria == nil {
		return nil, nil
	}
	facts := make([]DerivedFact, 0)
	for _, check := range r.checks {
		nodes, err := rctx.Graph.NodesByType(check.NodeType)
		if err != nil {
			return nil, err
		}
		if check.Boolean {
			required, known := rctx.Criteria.Flag(check.Criterion)
			if !known {
				continue
			}
			for _, node := range nodes {
				value, ok := convert.ToBool(node.Properties[check.Property])
				if !ok {
					continue
				}
				facts = append(facts, r.outcome(node.ID, check, value == required, value, required))
			}
			continue
		}
		limit, known := rctx.Criteria.Numeric(check.Criterion)
		if !known {
			continue
		}
		for _, node := range nodes {
			value, ok := convert.ToFloat64(node.Properties[check.Property])
			if !ok {
				continue
			}
			complies := value <= limit
			if !check.Maximum {
				complies = value >= limit
			}
			facts = append(facts, r.outcome(node.ID, check, complies, value, limit))
		}
	}
	return facts, nil
}

// outcome assembles one compliance fact for a node against a criterion.
func (r *ComplianceRule) outcome(subject graph.NodeID, check ComplianceCheck, complies bool, value, criterion any) DerivedFact {
	predicate := PredicateComplies
	if !complies {
		predicate = PredicateViolates
	}
	valueStr, _ := convert.ToString(value)
	criterionStr, _ := convert.ToString(criterion)
	return DerivedFact{
		Subject:    subject,
		Predicate:  predicate,
		Object:     check.CodeNode,
		Confidence: CausalHopDecay,
		Rule:       r.Name(),
		Evidence: []string{
			fmt.Sprintf("%s.%s = %s vs criterion %s = %s",
				subject, check.Property, valueStr, check.Criterion, criterionStr),
		},
	}
}

// SubGoals: compliance facts are leaf derivations with no sub-structure.
func (r *ComplianceRule) SubGoals(goal Goal, rctx Context) []Alternative { return nil }

// =============================================================================
// Causal chaining
// =============================================================================

// CausalChainRule derives two-hop causal consequences: A-causes->B and
// B-causes->C derives A-contributes_to->C with confidence
// s1 * s2 * CausalHopDecay.
type CausalChainRule struct {
	causes  string
	derived string
}

// NewCausalChainRule builds the rule over the given cause predicate and
// derived predicate (e.g. "causes", "contributes_to").
func NewCausalChainRule(causes, derived string) *CausalChainRule {
	return &CausalChainRule{causes: causes, derived: derived}
}

func (r *CausalChainRule) Name() string { return "causal_chain" }

func (r *CausalChainRule) Description() string {
	return "derives two-hop causal contributions at decayed confidence"
}

func (r *CausalChainRule) CanDerive(predicate string) bool { return predicate == r.derived }

func (r *CausalChainRule) RequiresAllSubGoals() bool { return false }

func (r *CausalChainRule) Evaluate(rctx Context) ([]DerivedFact, error) {
	facts := make([]DerivedFact, 0)
	for _, first := range rctx.Graph.AllEdges() {
		if first.Type != r.causes {
			continue
		}
		seconds, err := rctx.Graph.OutgoingEdges(first.Target)
		if err != nil {
			return nil, err
		}
		for _, second := range seconds {
			if second.Type != r.causes || second.Target == first.Source {
				continue
			}
			facts = append(facts, DerivedFact{
				Subject:    first.Source,
				Predicate:  r.derived,
				Object:     second.Target,
				Confidence: first.Strength * second.Strength * CausalHopDecay,
				Rule:       r.Name(),
				Evidence: []string{
					fmt.Sprintf("%s -%s-> %s (%.2f)", first.Source, first.Type, first.Target, first.Strength),
					fmt.Sprintf("%s -%s-> %s (%.2f)", second.Source, second.Type, second.Target, second.Strength),
				},
			})
		}
	}
	return facts, nil
}

func (r *CausalChainRule) SubGoals(goal Goal, rctx Context) []Alternative {
	if goal.Predicate != r.derived {
		return nil
	}
	edges, err := rctx.Graph.OutgoingEdges(goal.Subject)
	if err != nil {
		return nil
	}
	alternatives := make([]Alternative, 0)
	for _, first := range edges {
		if first.Type != r.causes || first.Target == goal.Subject {
			continue
		}
		mid := first.Target
		alternatives = append(alternatives, Alternative{
			Goals: []Goal{
				{Subject: goal.Subject, Predicate: r.causes, Object: mid},
				{Subject: mid, Predicate: r.causes, Object: goal.Object},
			},
			Confidence: func(sub []float64) float64 {
				conf := CausalHopDecay
				for _, c := range sub {
					conf *= c
				}
				return conf
			},
		})
	}
	return alternatives
}
