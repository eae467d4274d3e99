// Package search implements C6: the hybrid search core. It extracts
// deterministic query features, predicts a vector/fulltext weight split
// via a small rules engine, fans out vector and full-text probes,
// fuses their rankings by reciprocal-rank fusion, optionally reranks,
// and evaluates metadata filter trees. It follows the parallel-
// validator fan-out in agent/guardrails/chain.go and the
// content-addressed caching convention in llm/cache/hash_key.go.
package search

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// QueryFeatures are the deterministic signals §4.6 extracts from raw
// query text before any prediction happens.
type QueryFeatures struct {
	HasExactTerms       bool
	HasTemporalIndicator bool
	EntityCount         int
	IsQuestion          bool
	SemanticComplexity  float64
	QueryLength         int
}

var (
	quotedPhraseRe = regexp.MustCompile(`"[^"]+"`)
	emailRe        = regexp.MustCompile(`[[:alnum:]._%+\-]+@[[:alnum:].\-]+\.[[:alpha:]]{2,}`)
	hashtagRe      = regexp.MustCompile(`#\w+`)
	mentionRe      = regexp.MustCompile(`@\w+`)
	entityRe       = regexp.MustCompile(`\b[A-Z][a-zA-Z]*\b`)
)

// temporalKeywords is a language-neutral list of words signalling a
// time reference in the query.
var temporalKeywords = []string{
	"today", "yesterday", "tomorrow", "last week", "last month",
	"last year", "ago", "recent", "recently", "before", "after",
	"since", "until", "now", "earlier", "later",
}

var interrogativeStarters = []string{
	"what", "who", "when", "where", "why", "how", "which", "whose", "whom",
	"is", "are", "do", "does", "did", "can", "could", "would", "should",
}

// ExtractFeatures deterministically derives QueryFeatures from raw
// query text. No randomness, no I/O.
func ExtractFeatures(query string) QueryFeatures {
	trimmed := strings.TrimSpace(query)

	f := QueryFeatures{
		HasExactTerms:        hasExactTerms(trimmed),
		HasTemporalIndicator: hasTemporalIndicator(trimmed),
		EntityCount:          countEntities(trimmed),
		IsQuestion:           isQuestion(trimmed),
		QueryLength:          len([]rune(trimmed)),
	}
	f.SemanticComplexity = tokenEntropy(trimmed)
	return f
}

func hasExactTerms(q string) bool {
	return quotedPhraseRe.MatchString(q) || emailRe.MatchString(q) ||
		hashtagRe.MatchString(q) || mentionRe.MatchString(q)
}

func hasTemporalIndicator(q string) bool {
	lower := strings.ToLower(q)
	for _, kw := range temporalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func countEntities(q string) int {
	return len(entityRe.FindAllString(q, -1))
}

func isQuestion(q string) bool {
	if strings.HasSuffix(q, "?") || strings.HasSuffix(q, "？") {
		return true
	}
	fields := strings.Fields(strings.ToLower(q))
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range interrogativeStarters {
		if first == w {
			return true
		}
	}
	return false
}

// tokenEntropy returns a [0,1] normalised Shannon entropy over the
// query's token frequency distribution, used as a proxy for semantic
// complexity: repetitive short queries score low, varied natural
// language scores high.
func tokenEntropy(q string) float64 {
	tokens := strings.Fields(strings.ToLower(q))
	if len(tokens) <= 1 {
		return 0
	}

	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	n := float64(len(tokens))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}

	maxEntropy := math.Log2(n)
	if maxEntropy == 0 {
		return 0
	}
	complexity := entropy / maxEntropy
	if complexity > 1 {
		complexity = 1
	}
	if complexity < 0 {
		complexity = 0
	}
	return complexity
}
