// Package search serves text and image searches against the global catalog
// index, optionally fused with caption keyword hits.
package search

import (
	"sort"

	"github.com/osusume-io/osusume/internal/keyword"
	"github.com/osusume-io/osusume/internal/vector"
)

// normalizeKeywordScores scales keyword scores to [0,1] by the max, so Bleve's
// unbounded scores become comparable with inner-product similarity.
func normalizeKeywordScores(results []keyword.Result) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// fuse merges semantic and keyword hits with weights and returns the combined
// list sorted by descending fused score.
func fuse(semantic []vector.Result, kw []keyword.Result, semanticWeight, keywordWeight float64) []vector.Result {
	kwScores := normalizeKeywordScores(kw)
	fused := make(map[string]float64, len(semantic)+len(kwScores))
	for _, r := range semantic {
		fused[r.ID] = semanticWeight * r.Score
	}
	for id, score := range kwScores {
		fused[id] += keywordWeight * score
	}
	out := make([]vector.Result, 0, len(fused))
	for id, score := range fused {
		out = append(out, vector.Result{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID // deterministic order for equal scores
	})
	return out
}
