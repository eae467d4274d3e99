package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestWeightsFor_DefaultsToEvenSplit(t *testing.T) {
	e := New(DefaultConfig(), nil)
	v, f := e.WeightsFor("unseen-pattern")
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 0.5, f)
}

func TestRecordFeedback_NudgesTowardVectorOnStrongVectorContribution(t *testing.T) {
	e := New(DefaultConfig(), nil)
	now := time.Now()

	var state PatternState
	for i := 0; i < 20; i++ {
		state = e.RecordFeedback("p1", 1.0, 0.9, now)
	}

	assert.Greater(t, state.VectorWeight, 0.5)
	assert.InDelta(t, 1.0, state.VectorWeight+state.FulltextWeight, 1e-9)
}

func TestRecordFeedback_WeightsAlwaysNormalised(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := New(DefaultConfig(), nil)
		now := time.Now()
		n := rapid.IntRange(1, 50).Draw(rt, "n")
		var state PatternState
		for i := 0; i < n; i++ {
			contribution := rapid.Float64Range(0, 1).Draw(rt, "contribution")
			effectiveness := rapid.Float64Range(0, 1).Draw(rt, "effectiveness")
			state = e.RecordFeedback("p", contribution, effectiveness, now)
		}
		if state.VectorWeight < 0 || state.VectorWeight > 1 {
			rt.Fatalf("vector weight out of range: %f", state.VectorWeight)
		}
		sum := state.VectorWeight + state.FulltextWeight
		if sum < 0.999 || sum > 1.001 {
			rt.Fatalf("weights not normalised: sum=%f", sum)
		}
	})
}

func TestRecordFeedback_EffectivenessIsExponentialMovingAverage(t *testing.T) {
	e := New(Config{LearningRate: 0.1, EffectivenessSmoothing: 0.5, MaxHistorySize: 100}, nil)
	now := time.Now()

	s1 := e.RecordFeedback("p", 0.5, 1.0, now)
	assert.Equal(t, 1.0, s1.Effectiveness)

	s2 := e.RecordFeedback("p", 0.5, 0.0, now)
	assert.InDelta(t, 0.5, s2.Effectiveness, 1e-9)
}
