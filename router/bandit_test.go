package router

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecideStrategy_AlwaysReturnsAFixedStrategy(t *testing.T) {
	b := New(DefaultConfig(), nil)
	valid := map[Strategy]bool{}
	for _, s := range Strategies {
		valid[s] = true
	}
	for i := 0; i < 200; i++ {
		s := b.DecideStrategy()
		assert.True(t, valid[s], "unexpected strategy %q", s)
	}
}

func TestRecordPerformance_RewardIsBoundedUnitInterval(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		accuracy := rapid.Float64Range(0, 1).Draw(rt, "accuracy")
		latency := rapid.Float64Range(0, 5000).Draw(rt, "latency")

		b := New(DefaultConfig(), nil)
		rec := b.RecordPerformance(Balanced, "what is the capital of France", accuracy, latency, time.Now())

		if rec.Reward < 0 || rec.Reward > 1 {
			rt.Fatalf("reward out of range: %f", rec.Reward)
		}
		if rec.Query == "" {
			rt.Fatalf("PerformanceRecord.Query must be populated")
		}
	})
}

func TestRecordPerformance_GoodOutcomesShiftArmTowardExploitation(t *testing.T) {
	b := New(Config{ExplorationRate: 0, MaxHistorySize: 100}, nil)

	now := time.Now()
	for i := 0; i < 200; i++ {
		b.RecordPerformance(VectorHeavy, "fast path query", 0.95, 50, now)
	}
	for i := 0; i < 200; i++ {
		b.RecordPerformance(FulltextOnly, "slow path query", 0.1, 900, now)
	}

	counts := map[Strategy]int{}
	for i := 0; i < 500; i++ {
		counts[b.DecideStrategy()]++
	}

	assert.Greater(t, counts[VectorHeavy], counts[FulltextOnly])
}

func TestHistory_BoundedByMaxHistorySize(t *testing.T) {
	b := New(Config{ExplorationRate: 0.1, MaxHistorySize: 5}, nil)
	now := time.Now()
	for i := 0; i < 20; i++ {
		b.RecordPerformance(Balanced, "balanced query", 0.5, 100, now)
	}
	history := b.History()
	assert.Len(t, history, 5)
	for _, rec := range history {
		assert.Equal(t, "balanced query", rec.Query)
	}
}

func TestStrategyWeights_SumToOne(t *testing.T) {
	for _, s := range Strategies {
		v, f := s.Weights()
		assert.InDelta(t, 1.0, v+f, 1e-9)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.GreaterOrEqual(t, f, 0.0)
	}
}

// TestSampleBeta_MeanConvergesToAlphaOverAlphaPlusBeta is property 5's
// statistical sanity check: repeated Beta(alpha,beta) draws should
// average close to alpha/(alpha+beta).
func TestSampleBeta_MeanConvergesToAlphaOverAlphaPlusBeta(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alpha, beta := 8.0, 2.0
	want := alpha / (alpha + beta)

	sum := 0.0
	const n = 20000
	for i := 0; i < n; i++ {
		sum += sampleBeta(rng, alpha, beta)
	}
	mean := sum / n

	assert.True(t, math.Abs(mean-want) < 0.02, "mean=%f want=%f", mean, want)
}

func TestSampleGamma_PositiveForValidShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, shape := range []float64{0.1, 0.5, 1, 2, 10} {
		v := sampleGamma(rng, shape)
		assert.GreaterOrEqual(t, v, 0.0)
	}
}
