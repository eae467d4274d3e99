package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentmem/agentmem/errs"
	"github.com/agentmem/agentmem/events"
	"github.com/agentmem/agentmem/intelligence"
	"github.com/agentmem/agentmem/memtypes"
	"github.com/agentmem/agentmem/search"
)

// tracer and opsCounter instrument the engine's public operations, in
// the same otel Tracer/Meter pairing used for LLM client observability
// (llm/observability/tracing.go, metrics.go), applied here to a memory
// engine instead. Both stay no-ops until a real provider is installed
// via otel.Set*Provider.
var (
	tracer      oteltrace.Tracer = otel.Tracer("agentmem/engine")
	meter       metric.Meter     = otel.Meter("agentmem/engine")
	opsCounter, _                = meter.Int64Counter("agentmem.engine.operations",
		metric.WithDescription("Count of MemoryEngine operations by name and outcome"),
		metric.WithUnit("{operation}"))
)

func recordOp(ctx context.Context, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	opsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("status", status)))
}

// DuplicateChecker is C9's insert-time duplicate gate: a hybrid search
// over the entry's scope whose top hit, if scored >= the configured
// threshold, rejects the insertion (§3.2 invariant 3, §4.9). Engine
// depends on this as a narrow interface so consolidation (C9) can own
// the actual check without an import cycle.
type DuplicateChecker interface {
	CheckDuplicate(ctx context.Context, scope memtypes.Scope, text string) (bool, error)
}

// StrategySource is the adaptive router's (C7) narrow seam into the
// engine: Decide picks this query's vector/fulltext split plus an
// opaque token identifying which arm was chosen, and Record folds an
// observed (accuracy, latency) outcome back into that same arm. Engine
// depends on this interface rather than on package router directly, the
// same narrow-dependency shape DuplicateChecker uses so consolidation
// (C9) can own duplicate checking without an import cycle.
type StrategySource interface {
	Decide(query string) (vectorWeight, fulltextWeight float64, token string)
	Record(token, query string, accuracy, latencyMs float64)
}

// KVAccelerator is the KV-cache's (C3) narrow seam into the engine:
// InjectMemory primes the cache with a memory's prefill tensor so a
// later LLM call can skip recomputing it, and Get reads it back.
type KVAccelerator interface {
	InjectMemory(memoryID string, tensor []float32) error
	Get(memoryID string) ([]float32, bool)
}

// Result is one ranked hit from Engine.Search's basic (non-hybrid)
// relevance path, or the hybrid path translated back to engine terms.
type Result struct {
	Memory     *memtypes.Memory
	Relevance  float64
	Importance float64
	Score      float64
}

// ProcessingReport summarises one Process() run (§4.5).
type ProcessingReport struct {
	Total             int
	ConflictsDetected int
	ConflictsResolved int
	Promoted          int
	Demoted           int
	Errors            int
	DurationMs        int64
}

// Config tunes the engine's hierarchy thresholds.
type Config struct {
	Thresholds Thresholds
}

// DefaultConfig matches §4.5's documented thresholds.
func DefaultConfig() Config {
	return Config{Thresholds: DefaultThresholds()}
}

// MemoryEngine is the facade (C5): importance scoring, hierarchy
// placement, conflict-driven consolidation, and search, composed into
// a single Add/Get/Update/Remove/Search/Process surface, the way
// agent/memory/layered_memory.go's LayeredMemory composes the same four
// concerns (episodic/semantic/procedural/working) behind one facade
// type.
type MemoryEngine struct {
	store    Store
	scorer   *intelligence.ImportanceScorer
	resolver *intelligence.ConflictResolver
	search   *search.Engine
	vectors  search.VectorStore
	fulltext search.FulltextStore
	dupCheck DuplicateChecker
	router   StrategySource
	kv       KVAccelerator
	bus      events.Bus
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures optional MemoryEngine collaborators.
type Option func(*MemoryEngine)

// WithHybridSearch wires the hybrid search core (C6) in, so Search
// delegates to it instead of the basic text-overlap scorer.
func WithHybridSearch(e *search.Engine) Option {
	return func(m *MemoryEngine) { m.search = e }
}

// WithProbeStores wires the vector/fulltext probe backends the engine
// keeps in sync with Add/Update/Remove, so the hybrid search core (if
// wired) always sees current content.
func WithProbeStores(vectors search.VectorStore, fulltext search.FulltextStore) Option {
	return func(m *MemoryEngine) { m.vectors = vectors; m.fulltext = fulltext }
}

// WithDuplicateChecker wires C9's insert-time duplicate gate.
func WithDuplicateChecker(c DuplicateChecker) Option {
	return func(m *MemoryEngine) { m.dupCheck = c }
}

// WithEventBus wires the event-publication trait (§6).
func WithEventBus(b events.Bus) Option {
	return func(m *MemoryEngine) { m.bus = b }
}

// WithStrategyRouter wires the adaptive router (C7) in: every Search
// call, when a hybrid search core is also wired, asks it for this
// query's weight split instead of the predictor's default, and Search's
// returned feedback closure reports the observed outcome back to it.
func WithStrategyRouter(r StrategySource) Option {
	return func(m *MemoryEngine) { m.router = r }
}

// WithKVCache wires the KV-cache (C3) in: Get primes it with the loaded
// memory's embedding as a stand-in prefill tensor, so a later caller can
// check PrefillTensor before paying for a fresh LLM prefill.
func WithKVCache(kv KVAccelerator) Option {
	return func(m *MemoryEngine) { m.kv = kv }
}

// WithClock overrides the engine's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryEngine) { m.now = now }
}

// New builds a MemoryEngine. scorer and resolver may be nil — importance
// then stays whatever the caller set on the Memory, and Process becomes
// a conflict-free no-op pass.
func New(store Store, scorer *intelligence.ImportanceScorer, resolver *intelligence.ConflictResolver, cfg Config, logger *zap.Logger, opts ...Option) *MemoryEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	e := &MemoryEngine{
		store:    store,
		scorer:   scorer,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "engine")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add scores, duplicate-checks, persists and indexes a new memory. The
// importance scorer error (if any) is fatal to Add per §7's propagation
// policy ("for add/update they are fatal").
func (e *MemoryEngine) Add(ctx context.Context, m *memtypes.Memory) (result *memtypes.Memory, err error) {
	ctx, span := tracer.Start(ctx, "engine.Add", oteltrace.WithAttributes(attribute.String("memory.id", m.ID)))
	defer func() { recordOp(ctx, "add", err); span.End() }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := e.now()

	if e.scorer != nil {
		m.Importance = e.scorer.CalculateImportance(m, now)
	}

	snap := m.Snapshot()
	if e.dupCheck != nil && snap.Content.Kind == memtypes.ContentText {
		dup, err := e.dupCheck.CheckDuplicate(ctx, snap.Scope, snap.Content.Text)
		if err != nil {
			return nil, errs.New(errs.CodeInternal, "duplicate check failed").WithCause(err).WithOperation("Add")
		}
		if dup {
			if e.bus != nil {
				e.bus.Publish(ctx, "agentmem:events", events.Event{Action: events.ActionDuplicateRejected, MemoryID: m.ID, Timestamp: now})
			}
			return nil, errs.New(errs.CodeDuplicate, "content duplicates an existing memory in scope").
				WithOperation("Add").WithDetail("memory_id", m.ID)
		}
	}

	if err := e.store.Save(ctx, m); err != nil {
		return nil, errs.New(errs.CodeStorage, "failed to persist memory").WithCause(err).WithOperation("Add")
	}
	e.indexForSearch(ctx, m)

	return m, nil
}

// Get loads a memory by id, enforcing scope access (invariant 1) and
// recording the access (Touch).
func (e *MemoryEngine) Get(ctx context.Context, id string, subjectScope memtypes.Scope) (*memtypes.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, errs.New(errs.CodeStorage, "failed to load memory").WithCause(err).WithOperation("Get")
	}
	if m == nil || m.Snapshot().IsDeleted {
		return nil, errs.New(errs.CodeNotFound, "memory not found").WithOperation("Get").WithDetail("memory_id", id)
	}
	if !m.CanAccess(subjectScope) {
		return nil, errs.New(errs.CodeValidation, "subject scope cannot access this memory").WithOperation("Get")
	}
	m.Touch(e.now())

	if e.kv != nil && len(m.Snapshot().Embedding) > 0 {
		_ = e.kv.InjectMemory(id, m.Snapshot().Embedding)
	}

	return m, nil
}

// PrefillTensor checks the KV-cache (C3) for a previously injected
// prefill tensor for id, letting a caller skip a fresh LLM prefill on a
// hit. Reports (nil, false) when no KV-cache is wired.
func (e *MemoryEngine) PrefillTensor(id string) ([]float32, bool) {
	if e.kv == nil {
		return nil, false
	}
	return e.kv.Get(id)
}

// Update applies fn under version-monotonicity guarantees (invariant
// 2), re-scores importance, and reports whether the update crossed a
// hierarchy threshold.
func (e *MemoryEngine) Update(ctx context.Context, id string, fn func(*memtypes.Memory)) (*memtypes.Memory, bool, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, false, err
	}
	m, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, false, false, errs.New(errs.CodeStorage, "failed to load memory").WithCause(err).WithOperation("Update")
	}
	if m == nil || m.Snapshot().IsDeleted {
		return nil, false, false, errs.New(errs.CodeNotFound, "memory not found").WithOperation("Update").WithDetail("memory_id", id)
	}

	now := e.now()
	oldLevel := e.cfg.Thresholds.LevelFor(m.Snapshot().Importance)

	m.ApplyUpdate(now, fn)
	if e.scorer != nil {
		m.Importance = e.scorer.CalculateImportance(m, now)
	}
	newLevel := e.cfg.Thresholds.LevelFor(m.Snapshot().Importance)

	if err := e.store.Save(ctx, m); err != nil {
		return nil, false, false, errs.New(errs.CodeStorage, "failed to persist update").WithCause(err).WithOperation("Update")
	}
	e.indexForSearch(ctx, m)

	promoted := levelRank(newLevel) > levelRank(oldLevel)
	demoted := levelRank(newLevel) < levelRank(oldLevel)
	return m, promoted, demoted, nil
}

// Remove soft-deletes a memory (invariant 4) and removes it from the
// probe stores so subsequent searches never surface it.
func (e *MemoryEngine) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := e.store.Load(ctx, id)
	if err != nil {
		return errs.New(errs.CodeStorage, "failed to load memory").WithCause(err).WithOperation("Remove")
	}
	if m == nil {
		return errs.New(errs.CodeNotFound, "memory not found").WithOperation("Remove").WithDetail("memory_id", id)
	}
	m.SoftDelete(e.now())
	if err := e.store.Save(ctx, m); err != nil {
		return errs.New(errs.CodeStorage, "failed to persist soft delete").WithCause(err).WithOperation("Remove")
	}
	if e.vectors != nil {
		_ = e.vectors.Delete(ctx, id)
	}
	if e.fulltext != nil {
		_ = e.fulltext.Delete(ctx, id)
	}
	return nil
}

// Search collects candidates across every level, filters by scope, and
// ranks by relevance + 0.3*importance (§4.5). When a hybrid search core
// is wired (WithHybridSearch), it supplants the basic text-overlap
// scorer entirely, per §4.5's "when the hybrid search core is plugged
// in, it supplants the text-overlap scorer". When an adaptive router
// (WithStrategyRouter) is also wired, it picks this query's weight
// split instead of the predictor's default; the returned feedback
// closure reports the caller's effectiveness judgment (0-1) back to the
// router, completing C7's decide/observe loop. feedback is always
// non-nil but is a no-op when no router is wired.
func (e *MemoryEngine) Search(ctx context.Context, query string, subjectScope *memtypes.Scope, limit int) (result []Result, feedback func(accuracy float64), err error) {
	ctx, span := tracer.Start(ctx, "engine.Search", oteltrace.WithAttributes(attribute.Int("search.limit", limit)))
	start := e.now()
	defer func() { recordOp(ctx, "search", err); span.End() }()

	noopFeedback := func(float64) {}

	if err := ctx.Err(); err != nil {
		return nil, noopFeedback, err
	}

	if e.search != nil {
		var overrideWeights *search.SearchWeights
		var token string
		if e.router != nil {
			v, f, t := e.router.Decide(query)
			token = t
			w := search.SearchWeights{VectorWeight: v, FulltextWeight: f, Confidence: 1}.Normalise()
			overrideWeights = &w
		}

		resp, err := e.search.Search(ctx, query, limit, nil, overrideWeights)
		if err != nil {
			return nil, noopFeedback, errs.New(errs.CodeInternal, "hybrid search failed").WithCause(err).WithOperation("Search")
		}
		out := make([]Result, 0, len(resp.Results))
		for _, r := range resp.Results {
			m, loadErr := e.store.Load(ctx, r.ID)
			if loadErr != nil || m == nil {
				continue
			}
			if subjectScope != nil && !m.CanAccess(*subjectScope) {
				continue
			}
			out = append(out, Result{Memory: m, Relevance: r.Score, Importance: m.Snapshot().Importance, Score: r.Score})
		}

		feedback = noopFeedback
		if e.router != nil {
			latencyMs := float64(e.now().Sub(start).Milliseconds())
			feedback = func(accuracy float64) { e.router.Record(token, query, accuracy, latencyMs) }
		}
		return out, feedback, nil
	}

	all, err := e.store.List(ctx, false)
	if err != nil {
		return nil, noopFeedback, errs.New(errs.CodeStorage, "failed to list memories").WithCause(err).WithOperation("Search")
	}

	terms := tokenizeQuery(query)
	results := make([]Result, 0, len(all))
	for _, m := range all {
		if subjectScope != nil && !m.CanAccess(*subjectScope) {
			continue
		}
		snap := m.Snapshot()
		relevance := textOverlap(terms, snap.Content.PlainText())
		if relevance == 0 && query != "" {
			continue
		}
		results = append(results, Result{
			Memory:     m,
			Relevance:  relevance,
			Importance: snap.Importance,
			Score:      relevance + 0.3*snap.Importance,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, noopFeedback, nil
}

// Process detects conflicts among all live memories, auto-resolves
// them, soft-deletes the losers, re-scores the survivors, and reports
// promotion/demotion movement (§4.5).
func (e *MemoryEngine) Process(ctx context.Context) (report ProcessingReport, err error) {
	ctx, span := tracer.Start(ctx, "engine.Process")
	defer func() { recordOp(ctx, "process", err); span.End() }()

	start := e.now()
	report = ProcessingReport{}

	all, err := e.store.List(ctx, false)
	if err != nil {
		return report, errs.New(errs.CodeStorage, "failed to list memories").WithCause(err).WithOperation("Process")
	}
	report.Total = len(all)

	if e.resolver == nil {
		report.DurationMs = e.now().Sub(start).Milliseconds()
		return report, nil
	}

	conflicts := e.resolver.DetectConflicts(all)
	report.ConflictsDetected = len(conflicts)
	resolutions := e.resolver.AutoResolve(conflicts)

	dropped := make(map[string]bool, len(resolutions))
	for _, res := range resolutions {
		if dropped[res.DropID] {
			continue
		}
		dropped[res.DropID] = true
		m, loadErr := e.store.Load(ctx, res.DropID)
		if loadErr != nil || m == nil {
			report.Errors++
			continue
		}
		m.SoftDelete(e.now())
		if saveErr := e.store.Save(ctx, m); saveErr != nil {
			report.Errors++
			continue
		}
		if e.vectors != nil {
			_ = e.vectors.Delete(ctx, res.DropID)
		}
		if e.fulltext != nil {
			_ = e.fulltext.Delete(ctx, res.DropID)
		}
		report.ConflictsResolved++
	}

	if e.scorer != nil {
		now := e.now()
		for _, m := range all {
			if dropped[m.ID] {
				continue
			}
			oldLevel := e.cfg.Thresholds.LevelFor(m.Snapshot().Importance)
			newImportance := e.scorer.CalculateImportance(m, now)
			newLevel := e.cfg.Thresholds.LevelFor(newImportance)
			if newLevel == oldLevel {
				continue
			}
			m.ApplyUpdate(now, func(mm *memtypes.Memory) { mm.Importance = newImportance })
			if saveErr := e.store.Save(ctx, m); saveErr != nil {
				report.Errors++
				continue
			}
			if levelRank(newLevel) > levelRank(oldLevel) {
				report.Promoted++
			} else {
				report.Demoted++
			}
		}
	}

	report.DurationMs = e.now().Sub(start).Milliseconds()

	if e.bus != nil {
		e.bus.Publish(ctx, "agentmem:events", events.Event{
			Action:    events.ActionMemoryUpdated,
			Timestamp: e.now(),
			Details: map[string]any{
				"action":             "process",
				"conflicts_detected": report.ConflictsDetected,
				"conflicts_resolved": report.ConflictsResolved,
			},
		})
	}

	return report, nil
}

// indexForSearch upserts m's content into the probe stores, when wired,
// so the hybrid search core's next query observes it. A failure here
// is logged and swallowed — indexing is ambient to Add/Update, never
// fatal (mirrors KV-cache's "never fatal to a caller" policy, §4.3).
func (e *MemoryEngine) indexForSearch(ctx context.Context, m *memtypes.Memory) {
	snap := m.Snapshot()
	metadata := map[string]any{
		"kind":       string(snap.Kind),
		"importance": snap.Importance,
		"agent_id":   snap.Scope.AgentID,
		"user_id":    snap.Scope.UserID,
		"session_id": snap.Scope.SessionID,
	}

	if e.vectors != nil && len(snap.Embedding) > 0 {
		if err := e.vectors.Upsert(ctx, m.ID, snap.Embedding, metadata); err != nil {
			e.logger.Warn("vector index upsert failed", zap.String("memory_id", m.ID), zap.Error(err))
		}
	}
	if e.fulltext != nil {
		if err := e.fulltext.Upsert(ctx, m.ID, snap.Content.PlainText(), metadata); err != nil {
			e.logger.Warn("fulltext index upsert failed", zap.String("memory_id", m.ID), zap.Error(err))
		}
	}
}

func levelRank(l Level) int {
	switch l {
	case LevelContextual:
		return 0
	case LevelOperational:
		return 1
	case LevelTactical:
		return 2
	case LevelStrategic:
		return 3
	default:
		return 0
	}
}

func tokenizeQuery(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// textOverlap is the basic relevance scorer used when no hybrid search
// core is wired: the fraction of query terms present in text.
func textOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matches++
		}
	}
	return float64(matches) / float64(len(terms))
}
