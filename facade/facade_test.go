package facade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem/engine"
	"github.com/agentmem/agentmem/intelligence"
)

func newTestCoreFacade(t *testing.T) *CoreFacade {
	t.Helper()
	scorer, err := intelligence.NewImportanceScorer(intelligence.DefaultImportanceWeights())
	require.NoError(t, err)
	eng := engine.New(engine.NewMemStore(), scorer, intelligence.NewConflictResolver(0.8), engine.DefaultConfig(), nil)
	return NewCoreFacade(eng, "agent-1", nil, nil)
}

func TestCoreFacade_InsertThenGetRoundTrips(t *testing.T) {
	f := newTestCoreFacade(t)
	ctx := context.Background()

	insertResp := f.Execute(ctx, TaskRequest{
		TaskID:    "t1",
		Operation: OpInsert,
		Parameters: map[string]any{
			"agent_id":  "agent-1",
			"memory_id": "m1",
			"content":   "the user's name is Dana",
		},
	})
	require.True(t, insertResp.Success, insertResp.Error)

	getResp := f.Execute(ctx, TaskRequest{
		TaskID:    "t2",
		Operation: OpGet,
		Parameters: map[string]any{
			"agent_id":  "agent-1",
			"memory_id": "m1",
		},
	})
	assert.True(t, getResp.Success, getResp.Error)
}

func TestCoreFacade_InsertMissingContentIsValidationError(t *testing.T) {
	f := newTestCoreFacade(t)
	resp := f.Execute(context.Background(), TaskRequest{
		TaskID:     "t1",
		Operation:  OpInsert,
		Parameters: map[string]any{"agent_id": "agent-1"},
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "content")
}

func TestCoreFacade_NilEngineYieldsConfigurationError(t *testing.T) {
	f := NewCoreFacade(nil, "agent-1", nil, nil)
	resp := f.Execute(context.Background(), TaskRequest{
		TaskID:     "t1",
		Operation:  OpInsert,
		Parameters: map[string]any{"agent_id": "agent-1", "content": "x"},
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "misconfigured")
}

func TestCoreFacade_DeleteThenGetNotFound(t *testing.T) {
	f := newTestCoreFacade(t)
	ctx := context.Background()

	f.Execute(ctx, TaskRequest{TaskID: "t1", Operation: OpInsert, Parameters: map[string]any{
		"agent_id": "agent-1", "memory_id": "m1", "content": "temp",
	}})

	delResp := f.Execute(ctx, TaskRequest{TaskID: "t2", Operation: OpDelete, Parameters: map[string]any{
		"agent_id": "agent-1", "memory_id": "m1",
	}})
	require.True(t, delResp.Success, delResp.Error)

	getResp := f.Execute(ctx, TaskRequest{TaskID: "t3", Operation: OpGet, Parameters: map[string]any{
		"agent_id": "agent-1", "memory_id": "m1",
	}})
	assert.False(t, getResp.Success)
}

func TestCoreFacade_StatsTrackTotalsAcrossCalls(t *testing.T) {
	f := newTestCoreFacade(t)
	ctx := context.Background()

	f.Execute(ctx, TaskRequest{TaskID: "t1", Operation: OpInsert, Parameters: map[string]any{
		"agent_id": "agent-1", "memory_id": "m1", "content": "a",
	}})
	f.Execute(ctx, TaskRequest{TaskID: "t2", Operation: OpInsert, Parameters: map[string]any{
		"agent_id": "agent-1",
	}})

	stats := f.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Active)
}
