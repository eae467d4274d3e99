package router

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/storage"
)

// Arm is one strategy's Beta(alpha, beta) posterior, the bandit's belief
// about that strategy's reward distribution.
type Arm struct {
	Strategy    Strategy
	Alpha       float64
	Beta        float64
	Tries       int64
	LastUpdated time.Time
}

// PerformanceRecord is one bounded-history sample the bandit learns
// from, matching router_performance's columns.
type PerformanceRecord struct {
	Strategy  Strategy
	Query     string
	Accuracy  float64
	LatencyMs float64
	Reward    float64
	Recorded  time.Time
}

// Config tunes the bandit.
type Config struct {
	// ExplorationRate is the fraction of decisions made uniformly at
	// random instead of by Thompson Sampling (default 0.1, §4.7).
	ExplorationRate float64
	// MaxHistorySize bounds the in-memory performance history
	// (default 10000, §4.7).
	MaxHistorySize int
}

// DefaultConfig matches §4.7's documented defaults.
func DefaultConfig() Config {
	return Config{ExplorationRate: 0.1, MaxHistorySize: 10000}
}

// Bandit is the Thompson-Sampling adaptive router. All five Strategies
// always have an arm; none is ever added or removed at runtime.
type Bandit struct {
	mu      sync.Mutex
	arms    map[Strategy]*Arm
	history []PerformanceRecord
	cfg     Config
	rng     *rand.Rand
	logger  *zap.Logger
}

// New builds a bandit with a fresh uniform prior (alpha=beta=1) on
// every strategy.
func New(cfg Config, logger *zap.Logger) *Bandit {
	if cfg.ExplorationRate < 0 || cfg.ExplorationRate > 1 {
		cfg.ExplorationRate = 0.1
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	arms := make(map[Strategy]*Arm, len(Strategies))
	for _, s := range Strategies {
		arms[s] = &Arm{Strategy: s, Alpha: 1, Beta: 1}
	}

	return &Bandit{
		arms:   arms,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.With(zap.String("component", "router")),
	}
}

// DecideStrategy picks a strategy: with probability ExplorationRate it
// picks uniformly at random, otherwise it draws a Beta sample from each
// arm's posterior and returns the strategy with the highest draw. Ties
// (possible with float equality at the priors) break lexicographically.
func (b *Bandit) DecideStrategy() Strategy {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rng.Float64() < b.cfg.ExplorationRate {
		return Strategies[b.rng.Intn(len(Strategies))]
	}

	best := Strategies[0]
	bestSample := -1.0
	for _, s := range Strategies {
		arm := b.arms[s]
		sample := sampleBeta(b.rng, arm.Alpha, arm.Beta)
		if sample > bestSample || (sample == bestSample && s < best) {
			bestSample = sample
			best = s
		}
	}
	return best
}

// RecordPerformance folds one observed (accuracy, latencyMs) outcome
// into the bandit: the reward formula is 0.7*accuracy +
// 0.3*clip((500-latencyMs)/400, 0, 1) (§4.7), and the corresponding arm's
// Beta posterior is updated as a Bernoulli trial with success
// probability equal to the reward. query is stored on the returned
// PerformanceRecord only (router_performance's column, §4.7); it plays
// no part in the reward computation or the arm update.
func (b *Bandit) RecordPerformance(strategy Strategy, query string, accuracy, latencyMs float64, now time.Time) PerformanceRecord {
	reward := computeReward(accuracy, latencyMs)

	b.mu.Lock()
	defer b.mu.Unlock()

	arm, ok := b.arms[strategy]
	if !ok {
		arm = &Arm{Strategy: strategy, Alpha: 1, Beta: 1}
		b.arms[strategy] = arm
	}
	arm.Alpha += reward
	arm.Beta += 1 - reward
	arm.Tries++
	arm.LastUpdated = now

	record := PerformanceRecord{
		Strategy:  strategy,
		Query:     query,
		Accuracy:  accuracy,
		LatencyMs: latencyMs,
		Reward:    reward,
		Recorded:  now,
	}
	b.history = append(b.history, record)
	if len(b.history) > b.cfg.MaxHistorySize {
		b.history = b.history[len(b.history)-b.cfg.MaxHistorySize:]
	}

	return record
}

// computeReward implements §4.7's reward function.
func computeReward(accuracy, latencyMs float64) float64 {
	latencyTerm := (500 - latencyMs) / 400
	if latencyTerm < 0 {
		latencyTerm = 0
	}
	if latencyTerm > 1 {
		latencyTerm = 1
	}
	return 0.7*accuracy + 0.3*latencyTerm
}

// Arms returns a snapshot of every arm's current posterior, sorted by
// strategy name for deterministic output.
func (b *Bandit) Arms() []Arm {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Arm, 0, len(b.arms))
	for _, arm := range b.arms {
		out = append(out, *arm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// History returns a copy of the bounded performance history.
func (b *Bandit) History() []PerformanceRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PerformanceRecord, len(b.history))
	copy(out, b.history)
	return out
}

// Persist writes every arm's current state to arms, the router_arms
// repository. Existing rows are overwritten (Update), missing ones
// created.
func (b *Bandit) Persist(ctx context.Context, arms storage.Repository[storage.RouterArmRow]) error {
	snapshot := b.Arms()
	for _, arm := range snapshot {
		row := storage.RouterArmRow{
			Strategy:    string(arm.Strategy),
			Alpha:       arm.Alpha,
			Beta:        arm.Beta,
			Tries:       arm.Tries,
			LastUpdated: arm.LastUpdated,
		}
		if _, err := arms.Update(ctx, row); err != nil {
			if _, createErr := arms.Create(ctx, row); createErr != nil {
				return createErr
			}
		}
	}
	return nil
}

// LoadFromStorage rehydrates arm posteriors from arms, leaving any
// strategy absent from storage at its fresh uniform prior.
func (b *Bandit) LoadFromStorage(ctx context.Context, arms storage.Repository[storage.RouterArmRow]) error {
	rows, err := arms.List(ctx, storage.ListOptions{IncludeDeleted: false})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range rows {
		s := Strategy(row.Strategy)
		b.arms[s] = &Arm{
			Strategy:    s,
			Alpha:       row.Alpha,
			Beta:        row.Beta,
			Tries:       row.Tries,
			LastUpdated: row.LastUpdated,
		}
	}
	return nil
}

// sampleBeta draws one sample from Beta(alpha, beta) via two
// Marsaglia-Tsang Gamma draws: X ~ Gamma(alpha,1), Y ~ Gamma(beta,1),
// X/(X+Y) ~ Beta(alpha,beta). No Beta/Gamma distribution exists
// anywhere in the dependency pack (confirmed by search), so this
// implements the standard ratio-of-gammas construction directly over
// math/rand rather than reaching for an unavailable stats library.
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws one sample from Gamma(shape, 1) using the
// Marsaglia-Tsang method (valid for shape >= 1; shape < 1 is boosted via
// the standard Gamma(shape+1)*U^(1/shape) transform).
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
