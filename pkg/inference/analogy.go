package inference

import (
	"sort"

	"github.com/orneryd/huginn/pkg/graph"
)

const (
	analogyCutoff = 0.5
	analogyLimit  = 5
)

// Analogy is one candidate node structurally similar to the query node.
type Analogy struct {
	NodeID     graph.NodeID
	Similarity float64
	// SharedRelations lists the relation types both nodes use.
	SharedRelations []string
}

// FindAnalogies ranks same-type nodes by how closely their outgoing
// relation structure mirrors the given node's. Each node is summarized
// as a relation-type to target-set map; similarity is
//
//	(2*|shared types| + sum of per-type target overlap) / (2*|union of types|)
//
// where per-type overlap is the Jaccard index of the two target sets.
// Candidates above 0.5 are kept, top five returned descending.
func (e *Engine) FindAnalogies(id graph.NodeID) []Analogy {
	node, err := e.store.Node(id)
	if err != nil {
		return nil
	}
	signature := e.relationSignature(id)
	if len(signature) == 0 {
		return nil
	}
	candidates, err := e.store.NodesByType(node.Type)
	if err != nil {
		return nil
	}

	var out []Analogy
	for _, candidate := range candidates {
		if candidate.ID == id {
			continue
		}
		otherSig := e.relationSignature(candidate.ID)
		similarity, shared := signatureSimilarity(signature, otherSig)
		if similarity <= analogyCutoff {
			continue
		}
		out = append(out, Analogy{NodeID: candidate.ID, Similarity: similarity, SharedRelations: shared})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].NodeID < out[j].NodeID
	})
	if len(out) > analogyLimit {
		out = out[:analogyLimit]
	}
	return out
}

// relationSignature maps each outgoing relation type to its target set.
func (e *Engine) relationSignature(id graph.NodeID) map[string]map[graph.NodeID]struct{} {
	signature := make(map[string]map[graph.NodeID]struct{})
	edges, err := e.store.OutgoingEdges(id)
	if err != nil {
		return signature
	}
	for _, edge := range edges {
		targets, ok := signature[edge.Type]
		if !ok {
			targets = make(map[graph.NodeID]struct{})
			signature[edge.Type] = targets
		}
		targets[edge.Target] = struct{}{}
	}
	return signature
}

func signatureSimilarity(a, b map[string]map[graph.NodeID]struct{}) (float64, []string) {
	union := make(map[string]struct{}, len(a)+len(b))
	for t := range a {
		union[t] = struct{}{}
	}
	for t := range b {
		union[t] = struct{}{}
	}
	if len(union) == 0 {
		return 0, nil
	}

	var shared []string
	score := 0.0
	for t, targetsA := range a {
		targetsB, ok := b[t]
		if !ok {
			continue
		}
		shared = append(shared, t)
		score += 2 + jaccard(targetsA, targetsB)
	}
	sort.Strings(shared)
	return score / (2 * float64(len(union))), shared
}

func jaccard(a, b map[graph.NodeID]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}
	return float64(intersection) / float64(len(a)+len(b)-intersection)
}
