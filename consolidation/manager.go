// Package consolidation implements C9: insert-time duplicate
// suppression, periodic near-duplicate merging with a merge-history
// audit trail, and protection-scaled forgetting.
package consolidation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/engine"
	"github.com/agentmem/agentmem/errs"
	"github.com/agentmem/agentmem/events"
	"github.com/agentmem/agentmem/intelligence"
	"github.com/agentmem/agentmem/internal/pool"
	"github.com/agentmem/agentmem/memtypes"
	"github.com/agentmem/agentmem/search"
	"github.com/agentmem/agentmem/storage"
)

// mergeWorkers bounds how many merge-resolutions one run() processes
// concurrently. A handful is enough to keep store I/O overlapped
// without letting one run flood the store with goroutines.
const mergeWorkers = 8

// Config tunes the consolidation/forgetting sweep, matching §4.9's
// documented defaults.
type Config struct {
	// Interval is how often automatic consolidation runs on a timer.
	Interval time.Duration
	// CheckInterval is how often Start's loop polls the live memory
	// count against MemoryThreshold, independent of Interval.
	CheckInterval time.Duration
	// MemoryThreshold triggers a run early when live memory count
	// reaches it, even before Interval elapses.
	MemoryThreshold int
	// MaxMemoriesPerRun caps candidates considered by one run.
	MaxMemoriesPerRun int
	// DuplicateThreshold is the minimum hybrid-search score at which an
	// insert is rejected as a duplicate.
	DuplicateThreshold float64
	// ForgettingBaseTime is the un-multiplied eligibility window; the
	// effective window is this scaled by the entry's protection level.
	ForgettingBaseTime time.Duration
}

// DefaultConfig matches §4.9's documented defaults. ForgettingBaseTime
// has no value named in spec.md; 30 days is this implementation's
// choice, a conservative default that rarely fires during normal
// development and test use.
func DefaultConfig() Config {
	return Config{
		Interval:           time.Hour,
		CheckInterval:      30 * time.Second,
		MemoryThreshold:    100,
		MaxMemoriesPerRun:  1000,
		DuplicateThreshold: 0.85,
		ForgettingBaseTime: 30 * 24 * time.Hour,
	}
}

// Stats is an immutable snapshot of a Manager's running counters.
type Stats struct {
	TotalConsolidations int
	TotalMerged         int
	TotalForgotten      int
	LastRunAt           time.Time
}

// Manager owns the consolidation/forgetting lifecycle for one engine.
// It follows internal/cache.Manager's connect/health-check-loop/
// idempotent-stop shape (here: start/stop a background sweep instead
// of a cache connection), and defers to intelligence.ConflictResolver
// for the actual merge decision.
type Manager struct {
	store        engine.Store
	resolver     *intelligence.ConflictResolver
	search       *search.Engine
	mergeHistory storage.Repository[storage.MergeHistoryRow]
	bus          events.Bus
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time
	pool         *pool.GoroutinePool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithMergeHistory persists a MergeHistoryRow for every auto-resolved
// merge. Without it, merges still happen but leave no audit trail.
func WithMergeHistory(repo storage.Repository[storage.MergeHistoryRow]) Option {
	return func(m *Manager) { m.mergeHistory = repo }
}

// WithEventBus wires event publication on start/finish/duplicate/merge.
func WithEventBus(b events.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New builds a Manager. searchEngine may be nil, in which case
// CheckDuplicate always reports no duplicate (callers relying on
// duplicate suppression must wire the hybrid search core).
func New(store engine.Store, resolver *intelligence.ConflictResolver, searchEngine *search.Engine, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	m := &Manager{
		store:    store,
		resolver: resolver,
		search:   searchEngine,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "consolidation")),
		now:      time.Now,
		pool: pool.NewGoroutinePool(pool.GoroutinePoolConfig{
			MaxWorkers:  mergeWorkers,
			QueueSize:   mergeWorkers * 4,
			IdleTimeout: 30 * time.Second,
			Logger:      logger,
			PanicHandler: func(r any) {
				logger.With(zap.String("component", "consolidation")).Error(
					"merge resolution task panicked", zap.Any("panic", r), zap.Stack("stack"))
			},
		}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close releases the manager's merge-resolution worker pool. Safe to
// call even if Start was never called.
func (m *Manager) Close() {
	m.pool.Close()
}

// CheckDuplicate implements engine.DuplicateChecker: a hybrid search
// over text, restricted by a metadata filter to scope's agent/user/
// session ids, rejects the insert when the top hit scores at or above
// DuplicateThreshold.
func (m *Manager) CheckDuplicate(ctx context.Context, scope memtypes.Scope, text string) (bool, error) {
	if m.search == nil || text == "" {
		return false, nil
	}

	filter := scopeFilter(scope)
	resp, err := m.search.Search(ctx, text, 1, &filter, nil)
	if err != nil {
		return false, errs.New(errs.CodeInternal, "duplicate search failed").WithCause(err).WithOperation("CheckDuplicate")
	}
	if len(resp.Results) == 0 {
		return false, nil
	}
	return resp.Results[0].Score >= m.cfg.DuplicateThreshold, nil
}

func scopeFilter(scope memtypes.Scope) search.Filter {
	var clauses []search.Filter
	if scope.AgentID != "" {
		clauses = append(clauses, search.Filter{Field: "agent_id", Op: search.OpEq, Value: scope.AgentID})
	}
	if scope.UserID != "" {
		clauses = append(clauses, search.Filter{Field: "user_id", Op: search.OpEq, Value: scope.UserID})
	}
	if scope.SessionID != "" {
		clauses = append(clauses, search.Filter{Field: "session_id", Op: search.OpEq, Value: scope.SessionID})
	}
	if len(clauses) == 0 {
		return search.Filter{}
	}
	return search.Filter{And: clauses}
}

// Start launches the background consolidation loop. Idempotent: a
// second call while already running is a no-op, per §4.9's "only one
// instance runs at a time per process".
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	go m.loop(ctx, stop)
}

// Stop halts the background loop. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) loop(ctx context.Context, stop chan struct{}) {
	checkEvery := m.cfg.CheckInterval
	if checkEvery <= 0 {
		checkEvery = 30 * time.Second
	}
	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()

	lastRun := m.now()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			due := m.now().Sub(lastRun) >= m.cfg.Interval
			if !due {
				count, err := m.liveCount(ctx)
				if err != nil {
					m.logger.Warn("count check failed", zap.Error(err))
					continue
				}
				due = count >= m.cfg.MemoryThreshold
			}
			if !due {
				continue
			}
			if _, err := m.run(ctx, m.cfg.MaxMemoriesPerRun, false); err != nil {
				m.logger.Error("automatic consolidation run failed", zap.Error(err))
			}
			lastRun = m.now()
		}
	}
}

func (m *Manager) liveCount(ctx context.Context) (int, error) {
	all, err := m.store.List(ctx, false)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// TriggerManual runs one consolidation pass immediately, capped at
// maxCandidates, and publishes a manual_consolidation event (§8 S5).
func (m *Manager) TriggerManual(ctx context.Context, maxCandidates int) (Report, error) {
	if maxCandidates <= 0 {
		maxCandidates = m.cfg.MaxMemoriesPerRun
	}
	return m.run(ctx, maxCandidates, true)
}

// Report summarises one consolidation run.
type Report struct {
	CandidatesConsidered int
	Merged               int
	Errors               int
	DurationMs           int64
	// PoolStats is the merge-resolution worker pool's state at the end
	// of the run, so a caller can tell a quiet run (few candidates) from
	// a saturated one (Rejected > 0, candidates ran inline on m.pool.Submit
	// failure instead of through the pool).
	PoolStats pool.GoroutinePoolStats
}

func (m *Manager) run(ctx context.Context, maxCandidates int, manual bool) (Report, error) {
	start := m.now()
	report := Report{}

	if m.bus != nil {
		m.bus.Publish(ctx, "agentmem:events", events.Event{Action: events.ActionConsolidationStarted, Timestamp: start})
	}

	all, err := m.store.List(ctx, false)
	if err != nil {
		return report, errs.New(errs.CodeStorage, "failed to list memories").WithCause(err).WithOperation("Consolidate")
	}
	if maxCandidates > 0 && len(all) > maxCandidates {
		all = all[:maxCandidates]
	}
	report.CandidatesConsidered = len(all)

	if m.resolver != nil {
		conflicts := m.resolver.DetectConflicts(all)
		resolutions := m.resolver.AutoResolve(conflicts)

		var (
			wg      sync.WaitGroup
			resMu   sync.Mutex
			dropped = make(map[string]bool, len(resolutions))
		)

		for _, res := range resolutions {
			resMu.Lock()
			already := dropped[res.DropID]
			if !already {
				dropped[res.DropID] = true
			}
			resMu.Unlock()
			if already {
				continue
			}

			res := res
			task := func(ctx context.Context) error {
				victim, loadErr := m.store.Load(ctx, res.DropID)
				if loadErr != nil || victim == nil {
					resMu.Lock()
					report.Errors++
					resMu.Unlock()
					return loadErr
				}
				victim.SoftDelete(m.now())
				if saveErr := m.store.Save(ctx, victim); saveErr != nil {
					resMu.Lock()
					report.Errors++
					resMu.Unlock()
					return saveErr
				}

				m.recordMerge(ctx, res)
				if m.bus != nil {
					m.bus.Publish(ctx, "agentmem:events", events.Event{
						Action:    events.ActionMerged,
						MemoryID:  res.KeepID,
						Timestamp: m.now(),
						Details:   map[string]any{"dropped_id": res.DropID, "similarity": res.Conflict.Similarity},
					})
				}
				resMu.Lock()
				report.Merged++
				resMu.Unlock()
				return nil
			}

			wg.Add(1)
			wrapped := func(ctx context.Context) error {
				defer wg.Done()
				return task(ctx)
			}
			if err := m.pool.Submit(ctx, wrapped); err != nil {
				wg.Done()
				_ = task(ctx)
			}
		}
		wg.Wait()
	}

	report.DurationMs = m.now().Sub(start).Milliseconds()
	report.PoolStats = m.pool.Stats()

	m.statsMu.Lock()
	m.stats.TotalConsolidations++
	m.stats.TotalMerged += report.Merged
	m.stats.LastRunAt = m.now()
	m.statsMu.Unlock()

	if m.bus != nil {
		action := events.ActionConsolidationFinished
		details := map[string]any{"merged": report.Merged, "candidates": report.CandidatesConsidered}
		if manual {
			action = events.ActionManualConsolidation
			details["action"] = "manual_consolidation"
		}
		m.bus.Publish(ctx, "agentmem:events", events.Event{Action: action, Timestamp: m.now(), Details: details})
	}

	return report, nil
}

func (m *Manager) recordMerge(ctx context.Context, res intelligence.Resolution) {
	if m.mergeHistory == nil {
		return
	}
	secondary, _ := json.Marshal([]string{res.DropID})
	scores, _ := json.Marshal(map[string]float64{res.DropID: res.Conflict.Similarity})
	row := storage.MergeHistoryRow{
		ID:               res.KeepID + ":" + res.DropID + ":" + m.now().Format(time.RFC3339Nano),
		PrimaryID:        res.KeepID,
		SecondaryIDs:     string(secondary),
		Reason:           "near_duplicate",
		Strategy:         "auto_keep_highest_tuple",
		SimilarityScores: string(scores),
		CreatedAt:        m.now(),
	}
	if _, err := m.mergeHistory.Create(ctx, row); err != nil {
		m.logger.Warn("merge-history write failed", zap.String("primary_id", res.KeepID), zap.Error(err))
	}
}

// Stats returns a snapshot of the manager's running counters.
func (m *Manager) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}
