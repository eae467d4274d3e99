package intelligence

import (
	"math"
	"sort"

	"github.com/agentmem/agentmem/memtypes"
)

// Conflict names two memories whose embeddings are similar enough to be
// potentially contradictory (cosine similarity over ConflictSensitivity).
type Conflict struct {
	MemoryA    *memtypes.Memory
	MemoryB    *memtypes.Memory
	Similarity float64
}

// Resolution is the outcome AutoResolve picked for one Conflict: the
// surviving memory id and the one marked for soft-deletion.
type Resolution struct {
	Conflict Conflict
	KeepID   string
	DropID   string
}

// ConflictResolver finds and auto-resolves near-duplicate memories by
// embedding cosine similarity.
type ConflictResolver struct {
	sensitivity float64
}

// NewConflictResolver builds a resolver; sensitivity is the cosine
// similarity (default 0.8, §4.9) two memories must exceed to be
// flagged as conflicting.
func NewConflictResolver(sensitivity float64) *ConflictResolver {
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = 0.8
	}
	return &ConflictResolver{sensitivity: sensitivity}
}

// DetectConflicts returns every pair in memories whose embeddings exceed
// the sensitivity threshold. O(n^2) — callers are expected to pre-filter
// to a small candidate set (e.g. one scope) before calling this.
func (r *ConflictResolver) DetectConflicts(memories []*memtypes.Memory) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(memories); i++ {
		a := memories[i].Snapshot()
		if len(a.Embedding) == 0 {
			continue
		}
		for j := i + 1; j < len(memories); j++ {
			b := memories[j].Snapshot()
			if len(b.Embedding) == 0 {
				continue
			}
			sim := cosineSimilarity(a.Embedding, b.Embedding)
			if sim > r.sensitivity {
				conflicts = append(conflicts, Conflict{
					MemoryA:    memories[i],
					MemoryB:    memories[j],
					Similarity: sim,
				})
			}
		}
	}
	return conflicts
}

// AutoResolve picks a winner for each conflict: the memory with the
// higher (importance, recency, version) tuple survives; full ties break
// lexicographically by id for determinism.
func (r *ConflictResolver) AutoResolve(conflicts []Conflict) []Resolution {
	resolutions := make([]Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		a, b := c.MemoryA.Snapshot(), c.MemoryB.Snapshot()

		keep, drop := a, b
		if winnerIsB(a, b) {
			keep, drop = b, a
		}

		resolutions = append(resolutions, Resolution{
			Conflict: c,
			KeepID:   keep.ID,
			DropID:   drop.ID,
		})
	}

	sort.Slice(resolutions, func(i, j int) bool {
		return resolutions[i].Conflict.MemoryA.Snapshot().ID < resolutions[j].Conflict.MemoryA.Snapshot().ID
	})

	return resolutions
}

// winnerIsB reports whether b wins over a under §4.4's auto-resolve
// rule: keep the higher (importance, recency, version) tuple, breaking
// remaining ties lexicographically by id for determinism.
func winnerIsB(a, b memtypes.Snapshot) bool {
	if a.Importance != b.Importance {
		return b.Importance > a.Importance
	}
	if !a.Metadata.AccessedAt.Equal(b.Metadata.AccessedAt) {
		return b.Metadata.AccessedAt.After(a.Metadata.AccessedAt)
	}
	if a.Metadata.Version != b.Metadata.Version {
		return b.Metadata.Version > a.Metadata.Version
	}
	return b.ID < a.ID
}

// cosineSimilarity returns the cosine similarity of two equal-length
// vectors, or 0 for mismatched/empty input.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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
