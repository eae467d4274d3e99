// Package learning implements C8: per-query-pattern weight learning. It
// tracks, per pattern, an exponential moving average of effectiveness
// and nudges the pattern's vector/fulltext weight split toward whichever
// side correlated with better outcomes, persisting through a
// storage.Repository[LearningFeedbackRow] (the router persists its arms
// through a storage.Repository[RouterArmRow] the same way).
package learning

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/storage"
)

// PatternState is one query pattern's learned weight split and rolling
// effectiveness estimate.
type PatternState struct {
	Pattern        string
	VectorWeight   float64
	FulltextWeight float64
	Effectiveness  float64
	Samples        int64
	UpdatedAt      time.Time
}

// Config tunes the learning rate and EMA smoothing.
type Config struct {
	// LearningRate (alpha) bounds how far one observation can nudge the
	// weight split (default 0.1, §4.8).
	LearningRate float64
	// EffectivenessSmoothing is the EMA factor applied to each new
	// effectiveness observation.
	EffectivenessSmoothing float64
	// MaxHistorySize bounds the number of feedback records rehydrated
	// from storage.
	MaxHistorySize int
}

// DefaultConfig matches §4.8's documented learning rate.
func DefaultConfig() Config {
	return Config{LearningRate: 0.1, EffectivenessSmoothing: 0.2, MaxHistorySize: 10000}
}

// Engine holds per-pattern state in memory, writing it to storage only
// when Persist is called and rehydrating via LoadFromStorage.
type Engine struct {
	mu      sync.Mutex
	states  map[string]*PatternState
	cfg     Config
	logger  *zap.Logger
}

// New builds a learning engine with no prior pattern state.
func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.EffectivenessSmoothing <= 0 {
		cfg.EffectivenessSmoothing = 0.2
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		states: make(map[string]*PatternState),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "learning")),
	}
}

// WeightsFor returns the learned (vector, fulltext) split for pattern,
// defaulting to an even 0.5/0.5 split for patterns never observed.
func (e *Engine) WeightsFor(pattern string) (vector, fulltext float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[pattern]
	if !ok {
		return 0.5, 0.5
	}
	return s.VectorWeight, s.FulltextWeight
}

// RecordFeedback folds one observed outcome into pattern's state: the
// rolling effectiveness EMA updates first, then the weight split nudges
// toward whichever channel (vector or fulltext) the caller reports as
// having mattered more for this outcome, scaled by LearningRate, and the
// pair is renormalised back to sum to 1.
func (e *Engine) RecordFeedback(pattern string, vectorContribution, effectiveness float64, now time.Time) PatternState {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[pattern]
	if !ok {
		s = &PatternState{Pattern: pattern, VectorWeight: 0.5, FulltextWeight: 0.5}
		e.states[pattern] = s
	}

	alpha := e.cfg.EffectivenessSmoothing
	if s.Samples == 0 {
		s.Effectiveness = effectiveness
	} else {
		s.Effectiveness = alpha*effectiveness + (1-alpha)*s.Effectiveness
	}

	// vectorContribution in [0,1] reports how much of the outcome's
	// quality the vector channel was responsible for; 0.5 is neutral.
	nudge := e.cfg.LearningRate * (vectorContribution - 0.5) * effectiveness
	s.VectorWeight = clamp01(s.VectorWeight + nudge)
	s.FulltextWeight = clamp01(s.FulltextWeight - nudge)

	total := s.VectorWeight + s.FulltextWeight
	if total > 0 {
		s.VectorWeight /= total
		s.FulltextWeight /= total
	} else {
		s.VectorWeight, s.FulltextWeight = 0.5, 0.5
	}

	s.Samples++
	s.UpdatedAt = now

	return *s
}

// Persist writes pattern's current state as a new LearningFeedback row
// (append-only, matching merge_history's style of audit trail).
func (e *Engine) Persist(ctx context.Context, repo storage.Repository[storage.LearningFeedbackRow], id, pattern string) error {
	e.mu.Lock()
	s, ok := e.states[pattern]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	row := storage.LearningFeedbackRow{
		ID:             id,
		Pattern:        s.Pattern,
		VectorWeight:   s.VectorWeight,
		FulltextWeight: s.FulltextWeight,
		Effectiveness:  s.Effectiveness,
		RecordedAt:     s.UpdatedAt,
	}
	_, err := repo.Create(ctx, row)
	return err
}

// LoadFromStorage rehydrates per-pattern state from the most recent
// feedback row per pattern, bounded by MaxHistorySize rows read.
func (e *Engine) LoadFromStorage(ctx context.Context, repo storage.Repository[storage.LearningFeedbackRow]) error {
	rows, err := repo.List(ctx, storage.ListOptions{Limit: e.cfg.MaxHistorySize})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, row := range rows {
		existing, ok := e.states[row.Pattern]
		if ok && existing.UpdatedAt.After(row.RecordedAt) {
			continue
		}
		e.states[row.Pattern] = &PatternState{
			Pattern:        row.Pattern,
			VectorWeight:   row.VectorWeight,
			FulltextWeight: row.FulltextWeight,
			Effectiveness:  row.Effectiveness,
			UpdatedAt:      row.RecordedAt,
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
