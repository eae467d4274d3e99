package search

import (
	"context"

	"go.uber.org/zap"
)

// EmbeddingClient is the external embedding-model collaborator: an
// abstract trait so the search core never depends on a concrete
// provider SDK directly.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is one ranked hit the engine returns to a caller, after
// fusion and optional reranking.
type Result struct {
	ID         string
	Score      float64
	Metadata   map[string]any
	Rank       int
}

// Response is the engine's full answer to one Search call.
type Response struct {
	Results    []Result
	Class      QueryClass
	Weights    SearchWeights
	Warnings   []string
}

// MetadataLookup resolves a memory id's importance and last-updated
// time for RRF tie-breaking; the engine never reaches into a
// repository directly.
type MetadataLookup interface {
	Importance(id string) float64
	UpdatedAtUnix(id string) int64
}

// Engine is the hybrid search core (C6): feature extraction,
// classification, weight prediction, probe fan-out, RRF fusion, and
// optional reranking, composed into a single Search call.
type Engine struct {
	executor *Executor
	embedder EmbeddingClient
	rerank   Reranker
	lookup   MetadataLookup
	logger   *zap.Logger
}

// NewEngine wires the search core's collaborators. embedder and
// rerank may be nil: a nil embedder skips the vector probe entirely
// (as ExactId's pinned policy does regardless), a nil rerank skips
// reranking.
func NewEngine(executor *Executor, embedder EmbeddingClient, rerank Reranker, lookup MetadataLookup, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{executor: executor, embedder: embedder, rerank: rerank, lookup: lookup, logger: logger.With(zap.String("component", "search_engine"))}
}

// Search runs the full hybrid-search pipeline for query, returning up
// to limit ranked results. Of the query classifier's pinned policies,
// only ExactId's is applied here; every other class keeps the
// predictor's weights. overrideWeights, if non-nil, replaces both — this
// is how the adaptive router (C7) takes over for a single query.
func (e *Engine) Search(ctx context.Context, query string, limit int, filter *Filter, overrideWeights *SearchWeights) (Response, error) {
	features := ExtractFeatures(query)
	class := Classify(query, features)

	weights := Predict(features).Normalise()
	skipRerank := false
	if strategy := DefaultStrategyFor(class); class == ExactId {
		weights = strategy.Weights
		skipRerank = strategy.SkipRerank
	}
	if overrideWeights != nil {
		weights = overrideWeights.Normalise()
	}

	var queryEmbedding []float32
	var warnings []string
	if e.embedder != nil && weights.VectorWeight > 0 {
		emb, err := e.embedder.Embed(ctx, query)
		if err != nil {
			warnings = append(warnings, "embedding failed, falling back to fulltext-only: "+err.Error())
		} else {
			queryEmbedding = emb
		}
	}

	probe := e.executor.Probe(ctx, query, queryEmbedding, limit, filter)
	warnings = append(warnings, probe.Warnings...)

	var importanceFn func(string) float64
	var updatedAtFn func(string) int64
	if e.lookup != nil {
		importanceFn = e.lookup.Importance
		updatedAtFn = e.lookup.UpdatedAtUnix
	}

	fused := Fuse(probe.VectorHits, probe.FulltextHits, weights, importanceFn, updatedAtFn)

	if e.rerank != nil && !skipRerank && len(fused) > 0 {
		candidates := make([]RerankCandidate, len(fused))
		for i, f := range fused {
			candidates[i] = RerankCandidate{ID: f.ID, Score: f.Score}
		}
		reranked, err := e.rerank.Rerank(ctx, query, queryEmbedding, candidates)
		if err != nil {
			warnings = append(warnings, "rerank failed, using fused order: "+err.Error())
		} else {
			fused = applyRerankOrder(fused, reranked)
		}
	}

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	results := make([]Result, len(fused))
	for i, f := range fused {
		results[i] = Result{ID: f.ID, Score: f.Score, Metadata: f.Metadata, Rank: i + 1}
	}

	return Response{Results: results, Class: class, Weights: weights, Warnings: warnings}, nil
}

func applyRerankOrder(fused []FusedResult, reranked []RerankCandidate) []FusedResult {
	byID := make(map[string]FusedResult, len(fused))
	for _, f := range fused {
		byID[f.ID] = f
	}
	out := make([]FusedResult, 0, len(reranked))
	for _, c := range reranked {
		f, ok := byID[c.ID]
		if !ok {
			continue
		}
		f.Score = c.Score
		out = append(out, f)
	}
	return out
}
