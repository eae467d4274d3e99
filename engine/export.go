package engine

import (
	"context"
	"encoding/json"

	"github.com/agentmem/agentmem/errs"
	"github.com/agentmem/agentmem/memtypes"
)

// exportedMemory is the stable JSON shape one memory serialises to on
// export — independent of memtypes.Memory's internal field layout, so
// adding bookkeeping fields to Memory never changes the export format.
type exportedMemory struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Content    memtypes.Content `json:"content"`
	Importance float64        `json:"importance"`
	Version    int            `json:"version"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// Export serialises every non-deleted memory accessible to scope as
// indented JSON, the way agent/memory/layered_memory.go's
// LayeredMemory.Export does, generalised from a fixed episodic+working
// pair to scope-filtered memories of any kind.
func (e *MemoryEngine) Export(ctx context.Context, scope memtypes.Scope) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := e.store.List(ctx, false)
	if err != nil {
		return nil, errs.New(errs.CodeStorage, "failed to list memories").WithCause(err).WithOperation("Export")
	}

	out := make([]exportedMemory, 0, len(all))
	for _, m := range all {
		if !m.CanAccess(scope) {
			continue
		}
		snap := m.Snapshot()
		out = append(out, exportedMemory{
			ID:         snap.ID,
			Kind:       string(snap.Kind),
			Content:    snap.Content,
			Importance: snap.Importance,
			Version:    snap.Metadata.Version,
			CreatedAt:  snap.Metadata.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:  snap.Metadata.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	data, err := json.MarshalIndent(map[string]any{"memories": out}, "", "  ")
	if err != nil {
		return nil, errs.New(errs.CodeInternal, "failed to marshal export").WithCause(err).WithOperation("Export")
	}
	return data, nil
}
