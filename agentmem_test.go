package agentmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem/consolidation"
	"github.com/agentmem/agentmem/engine"
	"github.com/agentmem/agentmem/intelligence"
	"github.com/agentmem/agentmem/kvcache"
	"github.com/agentmem/agentmem/learning"
	"github.com/agentmem/agentmem/memtypes"
	"github.com/agentmem/agentmem/router"
	"github.com/agentmem/agentmem/search"
)

// newHybridSearchEngine wires the in-memory vector/fulltext probe
// stores into a search.Engine, the same assembly WithProbeStores/
// WithHybridSearch expect in production, standing in for the external
// vector-store/embedding collaborators this repo only depends on via
// trait (spec §6).
func newHybridSearchEngine(t *testing.T) (*search.Engine, search.VectorStore, search.FulltextStore) {
	t.Helper()
	vectors := search.NewInMemoryVectorStore(0, nil)
	fulltext := search.NewInMemoryFulltextStore()
	exec := search.NewExecutor(vectors, fulltext, nil)
	return search.NewEngine(exec, nil, nil, nil, nil), vectors, fulltext
}

func TestNew_DefaultsToInMemoryBasicSearch(t *testing.T) {
	mem, err := New("agent-1")
	require.NoError(t, err)
	require.NotNil(t, mem.Engine)
	assert.Nil(t, mem.Router)
	assert.Nil(t, mem.KVCache)
	assert.Nil(t, mem.Consolidation)
}

func TestNew_AdaptiveRouterDrivesSearchAndLearnsFromFeedback(t *testing.T) {
	searchEngine, _, fulltext := newHybridSearchEngine(t)
	ctx := context.Background()

	bandit := router.New(router.Config{ExplorationRate: 0, MaxHistorySize: 100}, nil)
	learn := learning.New(learning.DefaultConfig(), nil)

	mem, err := New("agent-1",
		WithEngineOptions(engine.WithHybridSearch(searchEngine), engine.WithProbeStores(nil, fulltext)),
		WithAdaptiveRouter(bandit, learn),
	)
	require.NoError(t, err)
	require.Same(t, bandit, mem.Router)
	require.Same(t, learn, mem.Learning)

	m := memtypes.NewBuilder("m1", memtypes.KindSemantic, memtypes.NewTextContent("paris is the capital of france"), time.Now()).
		WithAgent("agent-1").Build()
	_, err = mem.Engine.Add(ctx, m)
	require.NoError(t, err)

	scope := memtypes.AgentScope("agent-1")
	results, feedback, err := mem.Engine.Search(ctx, "capital of france", &scope, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	feedback(0.9)

	arms := bandit.Arms()
	var totalTries int64
	for _, a := range arms {
		totalTries += a.Tries
	}
	assert.Equal(t, int64(1), totalTries, "exactly one arm should have recorded the feedback")
}

func TestNew_KVCachePrimedOnGet(t *testing.T) {
	ctx := context.Background()
	cache := kvcache.New(kvcache.DefaultOptions(), nil)

	mem, err := New("agent-1", WithKVCache(cache))
	require.NoError(t, err)
	require.Same(t, cache, mem.KVCache)

	m := memtypes.NewBuilder("m1", memtypes.KindSemantic, memtypes.NewTextContent("hello"), time.Now()).
		WithAgent("agent-1").WithEmbedding([]float32{1, 2, 3}).Build()
	_, err = mem.Engine.Add(ctx, m)
	require.NoError(t, err)

	_, err = mem.Engine.Get(ctx, "m1", memtypes.AgentScope("agent-1"))
	require.NoError(t, err)

	tensor, hit := mem.Engine.PrefillTensor("m1")
	require.True(t, hit)
	assert.Equal(t, []float32{1, 2, 3}, tensor)
}

func TestNew_ConsolidationRejectsDuplicateInsert(t *testing.T) {
	searchEngine, _, fulltext := newHybridSearchEngine(t)
	ctx := context.Background()

	store := engine.NewMemStore()
	resolver := intelligence.NewConflictResolver(0.8)
	mgr := consolidation.New(store, resolver, searchEngine, consolidation.DefaultConfig(), nil)
	t.Cleanup(mgr.Close)

	mem, err := New("agent-1",
		WithStore(store),
		WithEngineOptions(engine.WithHybridSearch(searchEngine), engine.WithProbeStores(nil, fulltext)),
		WithConsolidation(mgr),
	)
	require.NoError(t, err)
	require.Same(t, mgr, mem.Consolidation)

	first := memtypes.NewBuilder("m1", memtypes.KindSemantic, memtypes.NewTextContent("user is learning rust"), time.Now()).
		WithAgent("agent-1").Build()
	_, err = mem.Engine.Add(ctx, first)
	require.NoError(t, err)

	second := memtypes.NewBuilder("m2", memtypes.KindSemantic, memtypes.NewTextContent("user is learning rust"), time.Now()).
		WithAgent("agent-1").Build()
	_, err = mem.Engine.Add(ctx, second)
	require.Error(t, err)
}
