package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// FulltextStore is the lexical (BM25-like) probe collaborator.
type FulltextStore interface {
	Upsert(ctx context.Context, id string, content string, metadata map[string]any) error
	Search(ctx context.Context, query string, topK int, filter *Filter) ([]Hit, error)
	Delete(ctx context.Context, id string) error
}

type fulltextEntry struct {
	tokens   []string
	termFreq map[string]int
	metadata map[string]any
}

// InMemoryFulltextStore is a BM25-like lexical probe over an
// in-process inverted index: development/test backend for the server
// implementation's full-text column search (e.g. Postgres
// tsvector/pg_trgm), grounded on the same in-memory-store convention
// as InMemoryVectorStore.
type InMemoryFulltextStore struct {
	mu      sync.RWMutex
	docs    map[string]fulltextEntry
	avgLen  float64
	docLens map[string]int
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// NewInMemoryFulltextStore builds an empty lexical store.
func NewInMemoryFulltextStore() *InMemoryFulltextStore {
	return &InMemoryFulltextStore{
		docs:    make(map[string]fulltextEntry),
		docLens: make(map[string]int),
	}
}

func (s *InMemoryFulltextStore) Upsert(ctx context.Context, id, content string, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tokens := tokenize(content)
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = fulltextEntry{tokens: tokens, termFreq: freq, metadata: cloneMetadata(metadata)}
	s.docLens[id] = len(tokens)
	s.recomputeAvgLenLocked()
	return nil
}

func (s *InMemoryFulltextStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.docLens, id)
	s.recomputeAvgLenLocked()
	return nil
}

func (s *InMemoryFulltextStore) recomputeAvgLenLocked() {
	if len(s.docLens) == 0 {
		s.avgLen = 0
		return
	}
	total := 0
	for _, l := range s.docLens {
		total += l
	}
	s.avgLen = float64(total) / float64(len(s.docLens))
}

func (s *InMemoryFulltextStore) Search(ctx context.Context, query string, topK int, filter *Filter) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Hit{}, nil
	}

	queryTerms := tokenize(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := float64(len(s.docs))
	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		df := 0
		for _, doc := range s.docs {
			if doc.termFreq[term] > 0 {
				df++
			}
		}
		if df == 0 {
			idf[term] = 0
			continue
		}
		idf[term] = logSafe((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
	}

	hits := make([]Hit, 0, len(s.docs))
	for id, doc := range s.docs {
		if filter != nil && !filter.Eval(doc.metadata) {
			continue
		}
		score := bm25Score(doc, queryTerms, idf, s.avgLen)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Metadata: cloneMetadata(doc.metadata)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func bm25Score(doc fulltextEntry, queryTerms []string, idf map[string]float64, avgLen float64) float64 {
	if avgLen == 0 {
		avgLen = 1
	}
	docLen := float64(len(doc.tokens))
	var score float64
	for _, term := range queryTerms {
		tf := float64(doc.termFreq[term])
		if tf == 0 {
			continue
		}
		numerator := tf * (bm25K1 + 1)
		denominator := tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
		score += idf[term] * numerator / denominator
	}
	return score
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func logSafe(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log(v)
}
