// Package router implements C7: the adaptive search-strategy router. It
// picks one of five fixed vector/fulltext weightings per query via
// Thompson Sampling over a Beta-distributed arm per strategy, and learns
// from recorded outcomes. The arm bookkeeping follows the traffic-split
// A/B-testing variant-selection pattern (agent/evaluation/ab_tester.go),
// generalised here from traffic-split A/B testing to a multi-armed
// bandit with continuous reward.
package router

// Strategy is one of the five fixed vector/fulltext weightings §4.7
// chooses between.
type Strategy string

const (
	VectorOnly     Strategy = "vector_only"
	VectorHeavy    Strategy = "vector_heavy"
	Balanced       Strategy = "balanced"
	FulltextHeavy  Strategy = "fulltext_heavy"
	FulltextOnly   Strategy = "fulltext_only"
)

// Strategies enumerates all fixed arms, in a stable order used for
// deterministic tie-breaking.
var Strategies = []Strategy{VectorOnly, VectorHeavy, Balanced, FulltextHeavy, FulltextOnly}

// Weights returns the (vectorWeight, fulltextWeight) pair a strategy
// resolves to, each summing to 1, matching §3.4's five fixed strategies
// exactly: VectorOnly(1,0), VectorHeavy(0.9,0.1), Balanced(0.7,0.3),
// FulltextHeavy(0.3,0.7), FulltextOnly(0,1).
func (s Strategy) Weights() (vector, fulltext float64) {
	switch s {
	case VectorOnly:
		return 1.0, 0.0
	case VectorHeavy:
		return 0.9, 0.1
	case Balanced:
		return 0.7, 0.3
	case FulltextHeavy:
		return 0.3, 0.7
	case FulltextOnly:
		return 0.0, 1.0
	default:
		return 0.7, 0.3
	}
}
