package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hit is one probe's candidate result, before fusion.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorStore is the embedding-similarity probe collaborator. Server
// deployments back this with a real vector database (pgvector,
// Qdrant, …); InMemoryVectorStore below is the development/test
// implementation.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, query []float32, topK int, filter *Filter) ([]Hit, error)
	Delete(ctx context.Context, id string) error
}

type vectorEntry struct {
	vector    []float32
	metadata  map[string]any
	createdAt time.Time
}

// InMemoryVectorStore is the hybrid search core's development vector
// backend: metadata filtering via the Filter tree plus cosine
// similarity ranking, in-process with no external dependency.
// It generalises agent/memory/inmemory_vector_store.go from
// plain-equality metadata matching to the filter tree's AND/OR/NOT
// comparators and from float64 to float32 vectors.
type InMemoryVectorStore struct {
	mu        sync.RWMutex
	items     map[string]vectorEntry
	dimension int
	now       func() time.Time
	logger    *zap.Logger
}

// NewInMemoryVectorStore builds an empty store. dimension <= 0 skips
// dimension validation.
func NewInMemoryVectorStore(dimension int, logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		items:     make(map[string]vectorEntry),
		dimension: dimension,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "vector_store_inmemory")),
	}
}

func (s *InMemoryVectorStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: got %d want %d", len(vector), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = vectorEntry{
		vector:    append([]float32(nil), vector...),
		metadata:  cloneMetadata(metadata),
		createdAt: s.now(),
	}
	return nil
}

func (s *InMemoryVectorStore) Search(ctx context.Context, query []float32, topK int, filter *Filter) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Hit{}, nil
	}
	if s.dimension > 0 && len(query) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d want %d", len(query), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.items))
	for id, ent := range s.items {
		if filter != nil && !filter.Eval(ent.metadata) {
			continue
		}
		hits = append(hits, Hit{
			ID:       id,
			Score:    cosineSimilarity32(query, ent.vector),
			Metadata: cloneMetadata(ent.metadata),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func (s *InMemoryVectorStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func cosineSimilarity32(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
