package consolidation

import (
	"context"
	"math"
	"time"

	"github.com/agentmem/agentmem/errs"
)

// ForgetEligible soft-deletes every live memory whose time since last
// access exceeds its protection-scaled forgetting window (§4.9,
// §3.2 invariant 5). Critical-protection entries are always skipped.
func (m *Manager) ForgetEligible(ctx context.Context) (int, error) {
	all, err := m.store.List(ctx, false)
	if err != nil {
		return 0, errs.New(errs.CodeStorage, "failed to list memories").WithCause(err).WithOperation("ForgetEligible")
	}

	now := m.now()
	forgotten := 0
	for _, mem := range all {
		snap := mem.Snapshot()
		multiplier := snap.ProtectionLevel.ForgettingMultiplier()
		if math.IsInf(multiplier, 1) {
			continue
		}

		effective := time.Duration(float64(m.cfg.ForgettingBaseTime) * multiplier)
		if now.Sub(snap.Metadata.AccessedAt) <= effective {
			continue
		}

		mem.SoftDelete(now)
		if err := m.store.Save(ctx, mem); err != nil {
			return forgotten, errs.New(errs.CodeStorage, "failed to persist forgetting").WithCause(err).WithOperation("ForgetEligible")
		}
		forgotten++
	}

	if forgotten > 0 {
		m.statsMu.Lock()
		m.stats.TotalForgotten += forgotten
		m.statsMu.Unlock()
	}
	return forgotten, nil
}
