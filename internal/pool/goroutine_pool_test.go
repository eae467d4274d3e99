package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGoroutinePool_SubmitWait_RunsTask(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 4, IdleTimeout: time.Second})
	defer p.Close()

	var ran atomic.Bool
	err := p.SubmitWait(context.Background(), func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestGoroutinePool_SubmitWait_PropagatesError(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 1, IdleTimeout: time.Second})
	defer p.Close()

	wantErr := errors.New("merge resolution failed")
	err := p.SubmitWait(context.Background(), func(ctx context.Context) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Submitted)
}

func TestGoroutinePool_Submit_ClosedRejects(t *testing.T) {
	p := NewGoroutinePool(DefaultGoroutinePoolConfig())
	p.Close()

	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestGoroutinePool_PanicRecoversAndReportsError(t *testing.T) {
	var recovered any
	p := NewGoroutinePool(GoroutinePoolConfig{
		MaxWorkers:  1,
		QueueSize:   1,
		IdleTimeout: time.Second,
		PanicHandler: func(r any) {
			recovered = r
		},
	})
	defer p.Close()

	err := p.SubmitWait(context.Background(), func(ctx context.Context) error {
		panic("merge candidate corrupted")
	})

	assert.Error(t, err)
	assert.Equal(t, "merge candidate corrupted", recovered)
}

func TestGoroutinePool_Stats_TracksCompletionCounts(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 4, QueueSize: 16, IdleTimeout: time.Second})
	defer p.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.SubmitWait(context.Background(), func(ctx context.Context) error { return nil }))
	}

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Rejected)
}

func TestGoroutinePool_MinWorkers_SurvivesIdleTimeout(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{
		MaxWorkers:  4,
		MinWorkers:  2,
		QueueSize:   4,
		IdleTimeout: 10 * time.Millisecond,
	})
	defer p.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, p.SubmitWait(context.Background(), func(ctx context.Context) error { return nil }))
	}

	require.Eventually(t, func() bool {
		return p.Stats().Workers == 2
	}, time.Second, 5*time.Millisecond, "pool should settle at its MinWorkers floor, not below")
}

func TestGoroutinePool_Submit_DoesNotBlockOnResult(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 1, IdleTimeout: time.Second, Logger: zaptest.NewLogger(t)})
	defer p.Close()

	var ran atomic.Bool
	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error {
		ran.Store(true)
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted task never ran")
	}
	assert.True(t, ran.Load())
}

func TestGoroutinePool_Close_IsIdempotentAndDrainsWorkers(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 2, IdleTimeout: time.Second})

	require.NoError(t, p.SubmitWait(context.Background(), func(ctx context.Context) error { return nil }))

	p.Close()
	assert.NotPanics(t, func() { p.Close() })

	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}
