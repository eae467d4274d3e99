package search

import "sort"

// FusedResult is one document's post-fusion rank and score.
type FusedResult struct {
	ID         string
	Score      float64
	Metadata   map[string]any
	Importance float64
	UpdatedAtUnix int64
}

// rrfConstant is §4.6's fixed RRF offset c=60.
const rrfConstant = 60.0

// Fuse combines a vector probe's and a full-text probe's rankings by
// reciprocal-rank fusion: score(d) = vector_weight/(rank_vec(d)+c) +
// fulltext_weight/(rank_text(d)+c). Documents absent from a probe
// contribute 0 for that term. Ties are broken by (importance,
// updated_at) descending, both supplied via importance/updatedAt
// lookup functions since probes carry only id/score/metadata.
func Fuse(vectorHits, fulltextHits []Hit, weights SearchWeights, importance func(id string) float64, updatedAtUnix func(id string) int64) []FusedResult {
	metadata := make(map[string]map[string]any, len(vectorHits)+len(fulltextHits))

	vectorRank := make(map[string]int, len(vectorHits))
	for i, h := range vectorHits {
		vectorRank[h.ID] = i + 1
		metadata[h.ID] = h.Metadata
	}
	fulltextRank := make(map[string]int, len(fulltextHits))
	for i, h := range fulltextHits {
		fulltextRank[h.ID] = i + 1
		if _, ok := metadata[h.ID]; !ok {
			metadata[h.ID] = h.Metadata
		}
	}

	ids := make(map[string]struct{}, len(vectorRank)+len(fulltextRank))
	for id := range vectorRank {
		ids[id] = struct{}{}
	}
	for id := range fulltextRank {
		ids[id] = struct{}{}
	}

	results := make([]FusedResult, 0, len(ids))
	for id := range ids {
		var score float64
		if r, ok := vectorRank[id]; ok {
			score += weights.VectorWeight / (float64(r) + rrfConstant)
		}
		if r, ok := fulltextRank[id]; ok {
			score += weights.FulltextWeight / (float64(r) + rrfConstant)
		}

		fr := FusedResult{ID: id, Score: score, Metadata: metadata[id]}
		if importance != nil {
			fr.Importance = importance(id)
		}
		if updatedAtUnix != nil {
			fr.UpdatedAtUnix = updatedAtUnix(id)
		}
		results = append(results, fr)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Importance != results[j].Importance {
			return results[i].Importance > results[j].Importance
		}
		return results[i].UpdatedAtUnix > results[j].UpdatedAtUnix
	})
	return results
}
