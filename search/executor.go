package search

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ProbeResult carries one probe's hits plus a warning if that probe
// failed and the executor degraded to the other probe's ranking
// (§5's "single probe failure degrades to the other probe's ranking
// and is reported in a warnings field").
type ProbeResult struct {
	VectorHits   []Hit
	FulltextHits []Hit
	Warnings     []string
}

// Executor fans out the vector and full-text probes concurrently, the
// way agent/guardrails/chain.go fans out its parallel validators: an
// errgroup with a context each goroutine checks, failures captured
// per-slot rather than aborting the whole group.
type Executor struct {
	vectors  VectorStore
	fulltext FulltextStore
	logger   *zap.Logger

	// vectorLimiter throttles calls into the (typically remote, e.g.
	// Qdrant/Pinecone) vector backend. Nil means unlimited.
	vectorLimiter *rate.Limiter
}

// NewExecutor builds an executor over the two probe collaborators.
func NewExecutor(vectors VectorStore, fulltext FulltextStore, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{vectors: vectors, fulltext: fulltext, logger: logger.With(zap.String("component", "search_executor"))}
}

// WithVectorRateLimit caps the rate of outbound vector-probe calls,
// protecting a remote vector store from bursts when many searches fan
// out concurrently. A zero rps disables the limiter.
func (e *Executor) WithVectorRateLimit(rps float64, burst int) *Executor {
	if rps <= 0 {
		e.vectorLimiter = nil
		return e
	}
	e.vectorLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	return e
}

// Probe runs both probes in parallel with limit = k*2 each (§4.6),
// embeddingQuery may be nil to skip the vector probe entirely (e.g.
// ExactId's fulltext-only policy).
func (e *Executor) Probe(ctx context.Context, text string, embeddingQuery []float32, k int, filter *Filter) ProbeResult {
	limit := k * 2
	if limit <= 0 {
		limit = 2
	}

	var result ProbeResult
	var vectorWarnings, fulltextWarnings []string
	g, gctx := errgroup.WithContext(ctx)

	if embeddingQuery != nil && e.vectors != nil {
		g.Go(func() error {
			if e.vectorLimiter != nil {
				if err := e.vectorLimiter.Wait(gctx); err != nil {
					vectorWarnings = append(vectorWarnings, "vector probe rate-limited: "+err.Error())
					return nil
				}
			}
			hits, err := e.vectors.Search(gctx, embeddingQuery, limit, filter)
			if err != nil {
				vectorWarnings = append(vectorWarnings, "vector probe failed: "+err.Error())
				return nil
			}
			result.VectorHits = hits
			return nil
		})
	}

	if e.fulltext != nil {
		g.Go(func() error {
			hits, err := e.fulltext.Search(gctx, text, limit, filter)
			if err != nil {
				fulltextWarnings = append(fulltextWarnings, "fulltext probe failed: "+err.Error())
				return nil
			}
			result.FulltextHits = hits
			return nil
		})
	}

	_ = g.Wait()
	result.Warnings = append(vectorWarnings, fulltextWarnings...)
	return result
}
