package intelligence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem/memtypes"
)

func buildMemory(id string, embedding []float32, importance float64) *memtypes.Memory {
	now := time.Now()
	return memtypes.NewBuilder(id, memtypes.KindSemantic, memtypes.NewTextContent("x"), now).
		WithEmbedding(embedding).
		WithImportance(importance).
		Build()
}

func TestDetectConflicts_FindsSimilarPairsAboveSensitivity(t *testing.T) {
	r := NewConflictResolver(0.8)

	a := buildMemory("a", []float32{1, 0, 0}, 0.5)
	b := buildMemory("b", []float32{1, 0, 0}, 0.9)
	c := buildMemory("c", []float32{0, 1, 0}, 0.5)

	conflicts := r.DetectConflicts([]*memtypes.Memory{a, b, c})
	require.Len(t, conflicts, 1)
	assert.InDelta(t, 1.0, conflicts[0].Similarity, 1e-9)
}

func TestAutoResolve_HigherImportanceWins(t *testing.T) {
	r := NewConflictResolver(0.8)

	a := buildMemory("a", []float32{1, 0}, 0.3)
	b := buildMemory("b", []float32{1, 0}, 0.9)

	conflicts := r.DetectConflicts([]*memtypes.Memory{a, b})
	require.Len(t, conflicts, 1)

	resolutions := r.AutoResolve(conflicts)
	require.Len(t, resolutions, 1)
	assert.Equal(t, "b", resolutions[0].KeepID)
	assert.Equal(t, "a", resolutions[0].DropID)
}

func TestAutoResolve_TiesBreakLexicographically(t *testing.T) {
	r := NewConflictResolver(0.8)

	// Same instant for both, so importance, recency and version all tie
	// and only the id can decide.
	now := time.Now()
	a := memtypes.NewBuilder("zzz", memtypes.KindSemantic, memtypes.NewTextContent("x"), now).
		WithEmbedding([]float32{1, 0}).WithImportance(0.5).Build()
	b := memtypes.NewBuilder("aaa", memtypes.KindSemantic, memtypes.NewTextContent("x"), now).
		WithEmbedding([]float32{1, 0}).WithImportance(0.5).Build()

	conflicts := r.DetectConflicts([]*memtypes.Memory{a, b})
	resolutions := r.AutoResolve(conflicts)
	require.Len(t, resolutions, 1)
	assert.Equal(t, "aaa", resolutions[0].KeepID)
}

func TestCosineSimilarity_OrthogonalIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}))
}

func TestCosineSimilarity_MismatchedLengthIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
}
