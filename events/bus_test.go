package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInProcessBus_PublishDeliversToSubscriber(t *testing.T) {
	b := NewInProcessBus(zap.NewNop())
	ctx := context.Background()

	received := make(chan Event, 1)
	unsub, err := b.Subscribe(ctx, "consolidation", func(evt Event) {
		received <- evt
	})
	require.NoError(t, err)
	defer unsub()

	b.Publish(ctx, "consolidation", Event{Action: ActionConsolidationStarted, Timestamp: time.Now()})

	select {
	case evt := <-received:
		assert.Equal(t, ActionConsolidationStarted, evt.Action)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestInProcessBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewInProcessBus(zap.NewNop())
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	unsub, err := b.Subscribe(ctx, "merge", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	unsub()
	b.Publish(ctx, "merge", Event{Action: ActionMerged})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestInProcessBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := NewInProcessBus(zap.NewNop())
	ctx := context.Background()

	var mu sync.Mutex
	countA, countB := 0, 0
	_, _ = b.Subscribe(ctx, "dup", func(Event) { mu.Lock(); countA++; mu.Unlock() })
	_, _ = b.Subscribe(ctx, "dup", func(Event) { mu.Lock(); countB++; mu.Unlock() })

	b.Publish(ctx, "dup", Event{Action: ActionDuplicateRejected})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, countA)
	assert.Equal(t, 1, countB)
}

func setupTestRedisBus(t *testing.T) (*miniredis.Miniredis, *RedisBus) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	bus, err := NewRedisBus(RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)

	return mr, bus
}

func TestRedisBus_PublishSubscribeRoundTrips(t *testing.T) {
	mr, bus := setupTestRedisBus(t)
	defer mr.Close()
	defer bus.Close()

	ctx := context.Background()
	received := make(chan Event, 1)
	unsub, err := bus.Subscribe(ctx, "agentmem:events", func(evt Event) {
		received <- evt
	})
	require.NoError(t, err)
	defer unsub()

	bus.Publish(ctx, "agentmem:events", Event{Action: ActionManualConsolidation, MemoryID: "m1"})

	select {
	case evt := <-received:
		assert.Equal(t, ActionManualConsolidation, evt.Action)
		assert.Equal(t, "m1", evt.MemoryID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for redis event")
	}
}

func TestRedisBus_CloseIsIdempotent(t *testing.T) {
	mr, bus := setupTestRedisBus(t)
	defer mr.Close()

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
}
