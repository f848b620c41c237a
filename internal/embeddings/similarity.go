package embeddings

import (
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector has zero norm or when the lengths differ,
// so degenerate inputs never rank above real matches.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Match is one candidate ranked by FindSimilar. Index refers to the
// candidates slice passed in.
type Match struct {
	Index      int
	Similarity float64
}

// FindSimilar ranks candidates against the query by cosine similarity and
// returns the top k at or above minSimilarity, most similar first. Equal
// similarities keep their input order, so results are stable across calls.
// A topK of 0 or less means no limit.
func FindSimilar(query []float32, candidates [][]float32, topK int, minSimilarity float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for i, candidate := range candidates {
		sim := CosineSimilarity(query, candidate)
		if sim >= minSimilarity {
			matches = append(matches, Match{Index: i, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches
}

// Cluster groups vectors by greedy seed assignment: items are visited in
// input order, each unassigned item starts a new cluster and claims every
// later unassigned item whose similarity to the seed is at or above the
// threshold. Membership is decided against the seed only, so the result is
// deterministic for a given input order. Returns clusters of input indexes.
func Cluster(items [][]float32, threshold float64) [][]int {
	assigned := make([]bool, len(items))
	var clusters [][]int

	for i := range items {
		if assigned[i] {
			continue
		}

		cluster := []int{i}
		assigned[i] = true

		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			if CosineSimilarity(items[i], items[j]) >= threshold {
				cluster = append(cluster, j)
				assigned[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
