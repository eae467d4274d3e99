package intelligence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem/memtypes"
)

func TestCalculateImportance_RecentLongContentScoresHigh(t *testing.T) {
	scorer, err := NewImportanceScorer(DefaultImportanceWeights())
	require.NoError(t, err)

	now := time.Now()
	long := ""
	for i := 0; i < 100; i++ {
		long += "the quick brown fox jumps over the lazy dog. "
	}
	m := memtypes.NewBuilder("m1", memtypes.KindSemantic, memtypes.NewTextContent(long), now).Build()
	m.Touch(now)

	score := scorer.CalculateImportance(m, now)
	assert.Greater(t, score, 0.3)
	assert.LessOrEqual(t, score, 1.0)
}

func TestCalculateImportance_StaleShortContentScoresLow(t *testing.T) {
	scorer, err := NewImportanceScorer(DefaultImportanceWeights())
	require.NoError(t, err)

	created := time.Now().Add(-30 * 24 * time.Hour)
	m := memtypes.NewBuilder("m2", memtypes.KindEpisodic, memtypes.NewTextContent("hi"), created).Build()

	score := scorer.CalculateImportance(m, time.Now())
	assert.Less(t, score, 0.3)
}

func TestCalculateImportance_AlwaysInUnitRange(t *testing.T) {
	scorer, err := NewImportanceScorer(DefaultImportanceWeights())
	require.NoError(t, err)

	now := time.Now()
	for _, n := range []int{0, 1, 50, 500, 5000} {
		text := ""
		for i := 0; i < n; i++ {
			text += "x "
		}
		m := memtypes.NewBuilder("m", memtypes.KindEpisodic, memtypes.NewTextContent(text), now).Build()
		score := scorer.CalculateImportance(m, now)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}
