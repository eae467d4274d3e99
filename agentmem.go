// Package agentmem provides a top-level convenience entry point for
// wiring the memory engine and its five agent facades with minimal
// boilerplate.
//
// Usage:
//
//	import "github.com/agentmem/agentmem"
//
//	mem, err := agentmem.New("agent-1")
//	mem.Core.Execute(ctx, facade.TaskRequest{...})
//
// This is a thin wrapper around [engine.New] and the facade
// constructors; a durable store is wired in with [WithStore], and a
// hybrid search core or an event bus with [WithEngineOptions].
package agentmem

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/config"
	"github.com/agentmem/agentmem/consolidation"
	"github.com/agentmem/agentmem/engine"
	"github.com/agentmem/agentmem/facade"
	"github.com/agentmem/agentmem/intelligence"
	"github.com/agentmem/agentmem/internal/telemetry"
	"github.com/agentmem/agentmem/kvcache"
	"github.com/agentmem/agentmem/learning"
	"github.com/agentmem/agentmem/router"
)

// Option configures the engine and facades built by [New].
type Option func(*options)

type options struct {
	store         engine.Store
	scorer        *intelligence.ImportanceScorer
	resolver      *intelligence.ConflictResolver
	cfg           engine.Config
	engineOpts    []engine.Option
	metrics       *facade.Metrics
	logger        *zap.Logger
	telemetry     *config.TelemetryConfig
	bandit        *router.Bandit
	learn         *learning.Engine
	kvcache       *kvcache.Cache
	consolidation *consolidation.Manager
}

// WithStore overrides the in-memory default store (engine.NewMemStore).
// Pass a *storage.RepoStore (see package storage) for durable,
// SQL-backed persistence.
func WithStore(store engine.Store) Option {
	return func(o *options) { o.store = store }
}

// WithEngineOptions passes through engine.Option values (hybrid search,
// duplicate checker, event bus, clock) to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithMetrics wires Prometheus instrumentation into every facade.
func WithMetrics(m *facade.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the zap logger shared by the engine and facades.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTelemetry initializes the OTel tracer/meter providers the engine's
// spans and counters are recorded against. Unset, or with cfg.Enabled
// false, the engine records against the global noop providers.
func WithTelemetry(cfg config.TelemetryConfig) Option {
	return func(o *options) { o.telemetry = &cfg }
}

// WithAdaptiveRouter wires the Thompson-Sampling router (C7) into
// Search: every query's weight split is drawn from bandit instead of
// the predictor's fixed rules, and the facade-reported outcome updates
// both bandit's arm and, when learn is non-nil, that strategy's
// per-pattern state in the learning engine (C8). Requires a hybrid
// search core to also be wired via WithEngineOptions(engine.WithHybridSearch(...)),
// otherwise the router has no weight-consuming search path to affect.
func WithAdaptiveRouter(bandit *router.Bandit, learn *learning.Engine) Option {
	return func(o *options) {
		o.bandit = bandit
		o.learn = learn
		o.engineOpts = append(o.engineOpts, engine.WithStrategyRouter(&routerStrategySource{bandit: bandit, learn: learn}))
	}
}

// WithKVCache wires the bounded KV-cache (C3): Get primes it with each
// loaded memory's embedding as a stand-in prefill tensor, and
// Memory.Engine.PrefillTensor lets a caller check for a cached tensor
// before paying for a fresh LLM prefill.
func WithKVCache(cache *kvcache.Cache) Option {
	return func(o *options) {
		o.kvcache = cache
		o.engineOpts = append(o.engineOpts, engine.WithKVCache(cache))
	}
}

// WithConsolidation wires a consolidation.Manager (C9) in as the
// engine's insert-time duplicate checker and as the component
// responsible for the periodic merge sweep (the sweep does not forget;
// forgetting runs only when a caller invokes ForgetEligible). The returned
// Memory's Consolidation field lets callers Start/Stop the sweep
// explicitly; Shutdown stops it automatically if still running.
func WithConsolidation(mgr *consolidation.Manager) Option {
	return func(o *options) {
		o.consolidation = mgr
		o.engineOpts = append(o.engineOpts, engine.WithDuplicateChecker(mgr))
	}
}

// routerStrategySource adapts a *router.Bandit, optionally paired with
// a *learning.Engine, into engine.StrategySource: Decide draws the
// bandit's Thompson-Sampled strategy and converts it to a weight pair,
// Record folds the observed outcome back into the bandit's arm and, if
// a learning engine is wired, that strategy's pattern state.
type routerStrategySource struct {
	bandit *router.Bandit
	learn  *learning.Engine
}

func (r *routerStrategySource) Decide(query string) (vectorWeight, fulltextWeight float64, token string) {
	s := r.bandit.DecideStrategy()
	v, f := s.Weights()
	return v, f, string(s)
}

func (r *routerStrategySource) Record(token, query string, accuracy, latencyMs float64) {
	s := router.Strategy(token)
	r.bandit.RecordPerformance(s, query, accuracy, latencyMs, time.Now())
	if r.learn != nil {
		v, _ := s.Weights()
		r.learn.RecordFeedback(token, v, accuracy, time.Now())
	}
}

// Memory bundles a ready-to-use engine with one facade per memory
// type, all sharing the same agent identity, plus whichever optional
// C3/C7/C8/C9 collaborators were wired in via Option.
type Memory struct {
	Engine     *engine.MemoryEngine
	Core       *facade.CoreFacade
	Episodic   *facade.EpisodicFacade
	Semantic   *facade.SemanticFacade
	Procedural *facade.ProceduralFacade
	Working    *facade.WorkingFacade

	Router        *router.Bandit
	Learning      *learning.Engine
	KVCache       *kvcache.Cache
	Consolidation *consolidation.Manager

	telemetry *telemetry.Providers
}

// Shutdown flushes telemetry (if wired via WithTelemetry) and stops the
// consolidation sweep (if wired via WithConsolidation and running). Both
// are no-ops when their respective option was never passed to New.
func (m *Memory) Shutdown(ctx context.Context) error {
	if m.Consolidation != nil {
		m.Consolidation.Stop()
		m.Consolidation.Close()
	}
	if m.telemetry == nil {
		return nil
	}
	return m.telemetry.Shutdown(ctx)
}

// New builds a Memory for agentID: an in-memory store, default
// importance weights, and a 0.8-sensitivity conflict resolver, unless
// overridden via opts. No hybrid search core or event bus is wired by
// default; pass WithEngineOptions(engine.WithHybridSearch(...), ...)
// for production use.
func New(agentID string, opts ...Option) (*Memory, error) {
	o := &options{
		store: engine.NewMemStore(),
		cfg:   engine.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.scorer == nil {
		scorer, err := intelligence.NewImportanceScorer(intelligence.DefaultImportanceWeights())
		if err != nil {
			return nil, err
		}
		o.scorer = scorer
	}
	if o.resolver == nil {
		o.resolver = intelligence.NewConflictResolver(0.8)
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var providers *telemetry.Providers
	if o.telemetry != nil {
		p, err := telemetry.Init(*o.telemetry, logger)
		if err != nil {
			return nil, err
		}
		providers = p
	}

	eng := engine.New(o.store, o.scorer, o.resolver, o.cfg, o.logger, o.engineOpts...)

	return &Memory{
		Engine:        eng,
		Core:          facade.NewCoreFacade(eng, agentID, o.metrics, o.logger),
		Episodic:      facade.NewEpisodicFacade(eng, agentID, o.metrics, o.logger),
		Semantic:      facade.NewSemanticFacade(eng, agentID, o.metrics, o.logger),
		Procedural:    facade.NewProceduralFacade(eng, agentID, o.metrics, o.logger),
		Working:       facade.NewWorkingFacade(eng, agentID, o.metrics, o.logger),
		Router:        o.bandit,
		Learning:      o.learn,
		KVCache:       o.kvcache,
		Consolidation: o.consolidation,
		telemetry:     providers,
	}, nil
}
