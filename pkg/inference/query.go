package inference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/huginn/pkg/graph"
)

// pathExistenceConfidence is the confidence assigned to IsRelated
// answers that are backed by an indirect path instead of a direct edge.
const pathExistenceConfidence = 0.8

// QueryKind selects the question form.
type QueryKind string

const (
	// QueryIsRelated asks whether subject and object are connected.
	QueryIsRelated QueryKind = "is_related"
	// QueryFindRelated lists everything connected to the subject.
	QueryFindRelated QueryKind = "find_related"
	// QueryWhyRelated explains a relationship via a proof chain.
	QueryWhyRelated QueryKind = "why_related"
	// QueryWhatIf previews the one-hop consequences of a change.
	QueryWhatIf QueryKind = "what_if"
	// QueryRecommend suggests options used by same-type siblings.
	QueryRecommend QueryKind = "recommend"
)

// Query is a question posed to the engine. Predicate is optional for
// FindRelated; Object is unused by FindRelated and Recommend.
type Query struct {
	Kind      QueryKind
	Subject   graph.NodeID
	Predicate string
	Object    graph.NodeID
}

// Answer is one ranked result of a query.
type Answer struct {
	Text        string
	Confidence  float64
	Explanation string
}

// QueryResult carries the ranked answers of one query. Confidence is
// the maximum across answers, zero when there are none.
type QueryResult struct {
	Answers    []Answer
	Confidence float64
}

// AnswerQuery dispatches a query to the matching strategy. Unknown
// kinds return an empty result; the only error is ctx cancellation
// (WhyRelated runs a backward-chaining proof).
func (e *Engine) AnswerQuery(ctx context.Context, q Query) (*QueryResult, error) {
	var answers []Answer
	switch q.Kind {
	case QueryIsRelated:
		answers = e.answerIsRelated(q)
	case QueryFindRelated:
		answers = e.answerFindRelated(q)
	case QueryWhyRelated:
		var err error
		answers, err = e.answerWhyRelated(ctx, q)
		if err != nil {
			return nil, err
		}
	case QueryWhatIf:
		answers = e.answerWhatIf(q)
	case QueryRecommend:
		answers = e.answerRecommend(q)
	}

	result := &QueryResult{Answers: answers}
	for _, a := range answers {
		if a.Confidence > result.Confidence {
			result.Confidence = a.Confidence
		}
	}
	return result, nil
}

func (e *Engine) answerIsRelated(q Query) []Answer {
	if edge := e.store.EdgeBetween(q.Subject, q.Object, q.Predicate); edge != nil {
		return []Answer{{
			Text:        fmt.Sprintf("%s is directly related to %s via %s", q.Subject, q.Object, edge.Type),
			Confidence:  edge.Strength,
			Explanation: fmt.Sprintf("asserted edge %s", edge.ID),
		}}
	}
	if path, ok := e.finder.ShortestPath(q.Subject, q.Object); ok {
		return []Answer{{
			Text:        fmt.Sprintf("%s is indirectly related to %s", q.Subject, q.Object),
			Confidence:  pathExistenceConfidence,
			Explanation: fmt.Sprintf("connected through %d hop(s): %s", len(path)-1, joinPath(path)),
		}}
	}
	return nil
}

func (e *Engine) answerFindRelated(q Query) []Answer {
	var answers []Answer
	edges, err := e.store.OutgoingEdges(q.Subject)
	if err != nil {
		edges = nil
	}
	for _, edge := range edges {
		if q.Predicate != "" && edge.Type != q.Predicate {
			continue
		}
		answers = append(answers, Answer{
			Text:        fmt.Sprintf("%s -%s-> %s", q.Subject, edge.Type, edge.Target),
			Confidence:  edge.Strength,
			Explanation: "asserted edge",
		})
	}
	for _, fact := range e.facts.BySubject(q.Subject) {
		if q.Predicate != "" && fact.Predicate != q.Predicate {
			continue
		}
		answers = append(answers, Answer{
			Text:        fmt.Sprintf("%s -%s-> %s", fact.Subject, fact.Predicate, fact.Object),
			Confidence:  fact.Confidence,
			Explanation: fmt.Sprintf("derived by rule %q", fact.Rule),
		})
	}
	sortAnswers(answers)
	return answers
}

func (e *Engine) answerWhyRelated(ctx context.Context, q Query) ([]Answer, error) {
	proof, err := e.RunBackwardChaining(ctx, Goal{Subject: q.Subject, Predicate: q.Predicate, Object: q.Object})
	if err != nil {
		return nil, err
	}
	if !proof.Success {
		return nil, nil
	}
	lines := make([]string, 0, len(proof.Steps))
	for i, step := range proof.Steps {
		lines = append(lines, fmt.Sprintf("%d. %s (confidence %.2f)", i+1, step.Description, step.Confidence))
	}
	return []Answer{{
		Text:        fmt.Sprintf("%s -%s-> %s holds", q.Subject, q.Predicate, q.Object),
		Confidence:  proof.Confidence,
		Explanation: strings.Join(lines, "\n"),
	}}, nil
}

// answerWhatIf previews one-hop consequences from the object node. A
// heuristic look-ahead, not full chaining.
func (e *Engine) answerWhatIf(q Query) []Answer {
	var answers []Answer
	edges, err := e.store.OutgoingEdges(q.Object)
	if err != nil {
		edges = nil
	}
	for _, edge := range edges {
		answers = append(answers, Answer{
			Text:        fmt.Sprintf("if %s -%s-> %s, then %s may be affected via %s", q.Subject, q.Predicate, q.Object, edge.Target, edge.Type),
			Confidence:  edge.Strength,
			Explanation: fmt.Sprintf("%s -%s-> %s", q.Object, edge.Type, edge.Target),
		})
	}
	sortAnswers(answers)
	return answers
}

// answerRecommend looks at same-type siblings of the subject and
// gathers their suitability-flavored edges and facts.
func (e *Engine) answerRecommend(q Query) []Answer {
	node, err := e.store.Node(q.Subject)
	if err != nil {
		return nil
	}
	siblings, err := e.store.NodesByType(node.Type)
	if err != nil {
		return nil
	}
	var answers []Answer
	for _, sibling := range siblings {
		if sibling.ID == q.Subject {
			continue
		}
		edges, err := e.store.OutgoingEdges(sibling.ID)
		if err != nil {
			continue
		}
		for _, edge := range edges {
			if !recommendPredicate(edge.Type) {
				continue
			}
			answers = append(answers, Answer{
				Text:        fmt.Sprintf("consider %s (%s by %s)", edge.Target, edge.Type, sibling.ID),
				Confidence:  edge.Strength,
				Explanation: fmt.Sprintf("%s, a %s like %s, has %s -%s-> %s", sibling.ID, node.Type, q.Subject, sibling.ID, edge.Type, edge.Target),
			})
		}
		for _, fact := range e.facts.BySubject(sibling.ID) {
			if !recommendPredicate(fact.Predicate) {
				continue
			}
			answers = append(answers, Answer{
				Text:        fmt.Sprintf("consider %s (%s by %s)", fact.Object, fact.Predicate, sibling.ID),
				Confidence:  fact.Confidence,
				Explanation: fmt.Sprintf("derived by rule %q for sibling %s", fact.Rule, sibling.ID),
			})
		}
	}
	sortAnswers(answers)
	return answers
}

func recommendPredicate(predicate string) bool {
	lowered := strings.ToLower(predicate)
	return strings.Contains(lowered, "suitable") || strings.Contains(lowered, "recommend")
}

func sortAnswers(answers []Answer) {
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].Confidence > answers[j].Confidence
	})
}

func joinPath(path []graph.NodeID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
