package search

// SearchWeights is the vector/fulltext split the predictor or the
// adaptive router hands the executor, always summing to 1 (property 3).
type SearchWeights struct {
	VectorWeight   float64
	FulltextWeight float64
	Confidence     float64
}

// Predict maps query features to SearchWeights via the small rules
// engine §8's scenarios document: exact terms pin full-text, questions
// with high semantic complexity lift vector weight, temporal
// indicators favour full-text's lexical timestamps, and everything
// else starts from a balanced split nudged by entity density.
func Predict(f QueryFeatures) SearchWeights {
	switch {
	case f.HasExactTerms:
		return SearchWeights{VectorWeight: 0.1, FulltextWeight: 0.9, Confidence: 0.9}

	case f.IsQuestion && f.SemanticComplexity > 0.6:
		// S2: semantic questions lift vector weight to >= 0.8.
		v := 0.8 + 0.2*f.SemanticComplexity
		if v > 0.95 {
			v = 0.95
		}
		return SearchWeights{VectorWeight: v, FulltextWeight: 1 - v, Confidence: 0.85}

	case f.HasTemporalIndicator:
		return SearchWeights{VectorWeight: 0.3, FulltextWeight: 0.7, Confidence: 0.7}

	case f.QueryLength <= 20 && f.EntityCount == 0:
		// Short keyword-ish queries lean full-text.
		return SearchWeights{VectorWeight: 0.3, FulltextWeight: 0.7, Confidence: 0.6}

	default:
		v := 0.5 + 0.1*f.SemanticComplexity
		if v > 0.7 {
			v = 0.7
		}
		return SearchWeights{VectorWeight: v, FulltextWeight: 1 - v, Confidence: 0.5}
	}
}

// Normalise rescales w so VectorWeight+FulltextWeight == 1, guarding
// against drift from repeated arithmetic (property 3:
// |v+f-1| < 1e-3).
func (w SearchWeights) Normalise() SearchWeights {
	total := w.VectorWeight + w.FulltextWeight
	if total <= 0 {
		return SearchWeights{VectorWeight: 0.5, FulltextWeight: 0.5, Confidence: w.Confidence}
	}
	w.VectorWeight /= total
	w.FulltextWeight /= total
	return w
}
