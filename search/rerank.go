package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// RerankCandidate is one fused result plus the raw signals a reranker
// needs: its embedding (for cosine) and content (for an LLM scorer).
type RerankCandidate struct {
	ID        string
	Embedding []float32
	Content   string
	Score     float64
}

// Reranker re-scores a fused result set against the original query.
type Reranker interface {
	Rerank(ctx context.Context, query string, queryEmbedding []float32, candidates []RerankCandidate) ([]RerankCandidate, error)
}

// CosineReranker re-scores candidates purely by cosine similarity
// between the query embedding and each candidate's embedding.
type CosineReranker struct{}

func NewCosineReranker() *CosineReranker { return &CosineReranker{} }

func (r *CosineReranker) Rerank(_ context.Context, _ string, queryEmbedding []float32, candidates []RerankCandidate) ([]RerankCandidate, error) {
	out := make([]RerankCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = cosineSimilarity32(queryEmbedding, out[i].Embedding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// RelevanceScorer is the external LLM collaborator an LLMReranker
// delegates to: an abstract trait, never a concrete provider client.
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query string, docs []string) ([]float64, error)
}

// LLMReranker combines vector similarity and an LLM relevance score,
// weighted as w_v*vector_score + w_l*llm_score (§4.6).
type LLMReranker struct {
	scorer       RelevanceScorer
	vectorWeight float64
	llmWeight    float64
}

// NewLLMReranker builds an LLM-assisted reranker; weights are
// renormalised to sum to 1.
func NewLLMReranker(scorer RelevanceScorer, vectorWeight, llmWeight float64) *LLMReranker {
	total := vectorWeight + llmWeight
	if total <= 0 {
		vectorWeight, llmWeight, total = 0.5, 0.5, 1
	}
	return &LLMReranker{scorer: scorer, vectorWeight: vectorWeight / total, llmWeight: llmWeight / total}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, queryEmbedding []float32, candidates []RerankCandidate) ([]RerankCandidate, error) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	llmScores, err := r.scorer.ScoreRelevance(ctx, query, docs)
	if err != nil {
		return nil, err
	}

	out := make([]RerankCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		vecScore := cosineSimilarity32(queryEmbedding, out[i].Embedding)
		var llmScore float64
		if i < len(llmScores) {
			llmScore = llmScores[i]
		}
		out[i].Score = r.vectorWeight*vecScore + r.llmWeight*llmScore
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

type cachedRerank struct {
	result    []RerankCandidate
	expiresAt time.Time
}

// CachedReranker decorates any Reranker with a SHA-256 keyed cache over
// query (+/- doc ids), following llm/cache/hash_key.go's
// content-addressed key convention.
type CachedReranker struct {
	inner Reranker
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cachedRerank
	now   func() time.Time
}

// DefaultRerankCacheTTL is §4.6's documented default (3600s).
const DefaultRerankCacheTTL = 3600 * time.Second

// NewCachedReranker wraps inner with a TTL cache. ttl <= 0 uses
// DefaultRerankCacheTTL.
func NewCachedReranker(inner Reranker, ttl time.Duration) *CachedReranker {
	if ttl <= 0 {
		ttl = DefaultRerankCacheTTL
	}
	return &CachedReranker{inner: inner, ttl: ttl, cache: make(map[string]cachedRerank), now: time.Now}
}

func (c *CachedReranker) Rerank(ctx context.Context, query string, queryEmbedding []float32, candidates []RerankCandidate) ([]RerankCandidate, error) {
	key := rerankCacheKey(query, candidates)

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		out := make([]RerankCandidate, len(entry.result))
		copy(out, entry.result)
		return out, nil
	}
	c.mu.Unlock()

	result, err := c.inner.Rerank(ctx, query, queryEmbedding, candidates)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cachedRerank{result: result, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return result, nil
}

// rerankCacheKey hashes query xor'd conceptually with the candidate
// doc-id set: a SHA-256 over "query\x00id1,id2,..." sorted for
// determinism, matching §4.6's "query ⊕ doc_ids" cache key.
func rerankCacheKey(query string, candidates []RerankCandidate) string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
