package search

import "regexp"

// QueryClass pins a query to a default search policy, independent of
// (but consulted alongside) the weight predictor.
type QueryClass string

const (
	ExactId         QueryClass = "exact_id"
	ShortKeyword    QueryClass = "short_keyword"
	NaturalLanguage QueryClass = "natural_language"
	Semantic        QueryClass = "semantic"
	Temporal        QueryClass = "temporal"
)

// exactIdRe matches short identifier-shaped tokens: a letter prefix
// followed by digits, or a UUID, with no surrounding whitespace.
var exactIdRe = regexp.MustCompile(`^[A-Za-z]{0,8}[-_]?[0-9]{3,}$|^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Classify assigns a query its QueryClass from extracted features and
// the raw text, per §4.6's classifier.
func Classify(query string, f QueryFeatures) QueryClass {
	trimmed := trimQuery(query)
	if exactIdRe.MatchString(trimmed) {
		return ExactId
	}
	if f.HasTemporalIndicator {
		return Temporal
	}
	if f.IsQuestion && f.SemanticComplexity > 0.6 {
		return Semantic
	}
	if wordCount(trimmed) <= 3 && !f.IsQuestion {
		return ShortKeyword
	}
	return NaturalLanguage
}

// DefaultStrategy maps a QueryClass to its default weight/rerank
// policy (e.g. "ExactId -> Fulltext-only, no rerank").
type DefaultStrategy struct {
	Weights    SearchWeights
	SkipRerank bool
}

// DefaultStrategyFor returns the pinned policy for class, per §4.6.
func DefaultStrategyFor(class QueryClass) DefaultStrategy {
	switch class {
	case ExactId:
		return DefaultStrategy{Weights: SearchWeights{VectorWeight: 0, FulltextWeight: 1, Confidence: 1}, SkipRerank: true}
	case ShortKeyword:
		return DefaultStrategy{Weights: SearchWeights{VectorWeight: 0.2, FulltextWeight: 0.8, Confidence: 0.7}}
	case Temporal:
		return DefaultStrategy{Weights: SearchWeights{VectorWeight: 0.3, FulltextWeight: 0.7, Confidence: 0.7}}
	case Semantic:
		return DefaultStrategy{Weights: SearchWeights{VectorWeight: 0.85, FulltextWeight: 0.15, Confidence: 0.9}}
	default: // NaturalLanguage
		return DefaultStrategy{Weights: SearchWeights{VectorWeight: 0.5, FulltextWeight: 0.5, Confidence: 0.5}}
	}
}

func trimQuery(q string) string {
	start, end := 0, len(q)
	for start < end && isSpace(q[start]) {
		start++
	}
	for end > start && isSpace(q[end-1]) {
		end--
	}
	return q[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func wordCount(q string) int {
	count := 0
	inWord := false
	for _, r := range q {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}
