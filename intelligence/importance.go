// Package intelligence implements C4: importance scoring and conflict
// detection over Memory content. Token-class heuristics reuse a
// tiktoken tokenizer — repurposed here from LLM context budgeting to a
// content-richness signal for scoring.
package intelligence

import (
	"math"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/agentmem/agentmem/memtypes"
)

// ImportanceWeights tunes each term of the importance score. Weights
// need not sum to 1; CalculateImportance clamps the final score to
// [0, 1] regardless.
type ImportanceWeights struct {
	ContentRichness float64
	Recency         float64
	AccessFrequency float64
	// RecencyHalfLife (tau) controls how fast the recency term decays;
	// larger values mean older memories retain more importance.
	RecencyHalfLife time.Duration
	// AccessSaturation (K) divides log(1+accessCount) in the
	// access-frequency term; larger values need more accesses for the
	// term to reach 1.
	AccessSaturation float64
}

// DefaultImportanceWeights weights content richness, recency and access
// frequency 0.4 / 0.35 / 0.25, with a one-day recency tau and K = 10.
func DefaultImportanceWeights() ImportanceWeights {
	return ImportanceWeights{
		ContentRichness:  0.4,
		Recency:          0.35,
		AccessFrequency:  0.25,
		RecencyHalfLife:  24 * time.Hour,
		AccessSaturation: 10,
	}
}

// ImportanceScorer computes a [0,1] importance score for a Memory from
// content richness, recency, and access frequency.
type ImportanceScorer struct {
	weights ImportanceWeights
	enc     *tiktoken.Tiktoken
}

// NewImportanceScorer builds a scorer. tiktoken's cl100k_base encoding
// is used purely as a token-class heuristic over content length; it is
// never used to budget an LLM context here.
func NewImportanceScorer(weights ImportanceWeights) (*ImportanceScorer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &ImportanceScorer{weights: weights, enc: enc}, nil
}

// CalculateImportance scores m as of now, combining:
//   - content richness: a saturating function of token count
//   - recency: exp(-deltaT / tau) since last access
//   - access frequency: log(1+accessCount) / K, clamped to 1
func (s *ImportanceScorer) CalculateImportance(m *memtypes.Memory, now time.Time) float64 {
	snap := m.Snapshot()

	richness := s.contentRichness(snap.Content.PlainText())

	tau := s.weights.RecencyHalfLife
	if tau <= 0 {
		tau = 24 * time.Hour
	}
	deltaT := now.Sub(snap.Metadata.AccessedAt)
	if deltaT < 0 {
		deltaT = 0
	}
	recency := math.Exp(-float64(deltaT) / float64(tau))

	k := s.weights.AccessSaturation
	if k <= 0 {
		k = 10
	}
	access := math.Log1p(float64(snap.Metadata.AccessCount)) / k
	if access > 1 {
		access = 1
	}

	score := s.weights.ContentRichness*richness +
		s.weights.Recency*recency +
		s.weights.AccessFrequency*access

	return clamp01(score)
}

// contentRichness maps token count through a saturating curve so very
// long content doesn't dominate the score: short notes score low,
// paragraph-length content approaches 1.
func (s *ImportanceScorer) contentRichness(text string) float64 {
	if text == "" {
		return 0
	}
	tokens := s.enc.Encode(text, nil, nil)
	n := float64(len(tokens))
	const saturationTokens = 200
	return 1 - math.Exp(-n/saturationTokens)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
