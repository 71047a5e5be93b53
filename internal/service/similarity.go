package service

import (
	"math"
	"sort"

	"mira/internal/model"
)

// SimilarityEngine ranks a listing pool against a query vector.
// An index-backed engine can replace the brute-force scan without touching callers.
type SimilarityEngine interface {
	TopK(query []float32, pool []model.Listing, k int) []model.ScoredListing
}

// BruteForceEngine scores every listing on each call. No state is kept between calls.
type BruteForceEngine struct{}

// NewBruteForceEngine creates a brute-force similarity engine
func NewBruteForceEngine() *BruteForceEngine {
	return &BruteForceEngine{}
}

// TopK returns the k listings most similar to query, best first. Ties keep pool order.
// k <= 0 or k > len(pool) ranks the whole pool.
func (e *BruteForceEngine) TopK(query []float32, pool []model.Listing, k int) []model.ScoredListing {
	scored := make([]model.ScoredListing, len(pool))
	for i := range pool {
		scored[i] = model.ScoredListing{
			Listing: pool[i],
			Score:   CosineSimilarity(query, pool[i].Embedding),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// Empty, mismatched or zero-magnitude vectors score 0 so a malformed listing never matches.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
