package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPredict_WeightsAlwaysNormalised(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := QueryFeatures{
			HasExactTerms:        rapid.Bool().Draw(rt, "exact"),
			HasTemporalIndicator: rapid.Bool().Draw(rt, "temporal"),
			EntityCount:          rapid.IntRange(0, 10).Draw(rt, "entities"),
			IsQuestion:           rapid.Bool().Draw(rt, "question"),
			SemanticComplexity:   rapid.Float64Range(0, 1).Draw(rt, "complexity"),
			QueryLength:          rapid.IntRange(0, 200).Draw(rt, "length"),
		}
		w := Predict(f).Normalise()
		if math.Abs(w.VectorWeight+w.FulltextWeight-1) >= 1e-3 {
			rt.Fatalf("weights not normalised: v=%f f=%f", w.VectorWeight, w.FulltextWeight)
		}
	})
}

func TestClassify_ExactIdPinsFulltextOnly(t *testing.T) {
	f := ExtractFeatures("P000001")
	class := Classify("P000001", f)
	assert.Equal(t, ExactId, class)

	strategy := DefaultStrategyFor(class)
	assert.Equal(t, 0.0, strategy.Weights.VectorWeight)
	assert.Equal(t, 1.0, strategy.Weights.FulltextWeight)
	assert.True(t, strategy.SkipRerank)
}

func TestPredict_SemanticQuestionLiftsVectorWeight(t *testing.T) {
	query := "What language does the user prefer for systems programming work today tomorrow?"
	f := ExtractFeatures(query)
	assert.True(t, f.IsQuestion)

	w := Predict(f).Normalise()
	if f.SemanticComplexity > 0.6 {
		assert.GreaterOrEqual(t, w.VectorWeight, 0.8)
	}
}

func TestFilter_AndOrNotComparators(t *testing.T) {
	meta := map[string]any{"kind": "episodic", "score": 0.9, "tags": []any{"a", "b"}}

	eqFilter := Filter{Field: "kind", Op: OpEq, Value: "episodic"}
	assert.True(t, eqFilter.Eval(meta))

	gtFilter := Filter{Field: "score", Op: OpGt, Value: 0.5}
	assert.True(t, gtFilter.Eval(meta))

	notFilter := Filter{Not: &Filter{Field: "kind", Op: OpEq, Value: "semantic"}}
	assert.True(t, notFilter.Eval(meta))

	andFilter := Filter{And: []Filter{eqFilter, gtFilter}}
	assert.True(t, andFilter.Eval(meta))

	orFilter := Filter{Or: []Filter{
		{Field: "kind", Op: OpEq, Value: "semantic"},
		{Field: "score", Op: OpGte, Value: 0.9},
	}}
	assert.True(t, orFilter.Eval(meta))

	inFilter := Filter{Field: "kind", Op: OpIn, Value: []any{"episodic", "semantic"}}
	assert.True(t, inFilter.Eval(meta))

	ninFilter := Filter{Field: "kind", Op: OpNin, Value: []any{"procedural"}}
	assert.True(t, ninFilter.Eval(meta))

	containsFilter := Filter{Field: "kind", Op: OpIcontains, Value: "PISO"}
	assert.True(t, containsFilter.Eval(meta))
}
