// Package pool provides a bounded-worker goroutine pool, used by the
// consolidation manager to cap how many merge-resolution tasks run
// concurrently during one batch instead of spawning one goroutine per
// candidate.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed  = errors.New("pool is closed")
	ErrPoolFull    = errors.New("pool is full")
	ErrTaskTimeout = errors.New("task submission timeout")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// GoroutinePool bounds the number of goroutines a caller can have running
// concurrently, spawning workers on demand up to maxWorkers and retiring
// idle ones back down to minWorkers. consolidation.Manager uses one
// instance per sweep to cap how many merge-resolution tasks run at once
// instead of spawning one goroutine per duplicate candidate.
type GoroutinePool struct {
	maxWorkers  int
	minWorkers  int
	taskQueue   chan taskWrapper
	workerCount atomic.Int32
	activeCount atomic.Int32
	closed      atomic.Bool
	wg          sync.WaitGroup

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	// Config
	idleTimeout  time.Duration
	panicHandler func(any)
	logger       *zap.Logger
}

type taskWrapper struct {
	task   Task
	ctx    context.Context
	result chan error
}

// GoroutinePoolConfig configures the pool.
type GoroutinePoolConfig struct {
	MaxWorkers int `json:"max_workers"`
	// MinWorkers is the floor the idle-timeout reaper won't retire workers
	// below; zero defaults to 1, so a recently-idle pool always has at
	// least one worker ready for the next submitted task.
	MinWorkers   int           `json:"min_workers"`
	QueueSize    int           `json:"queue_size"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	PanicHandler func(any)     `json:"-"`
	// Logger receives debug-level worker spawn/retire events. Nil uses a
	// noop logger.
	Logger *zap.Logger `json:"-"`
}

// DefaultGoroutinePoolConfig returns sensible defaults.
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		MaxWorkers:  100,
		MinWorkers:  1,
		QueueSize:   1000,
		IdleTimeout: 60 * time.Second,
	}
}

// NewGoroutinePool creates a new goroutine pool.
func NewGoroutinePool(config GoroutinePoolConfig) *GoroutinePool {
	minWorkers := config.MinWorkers
	if minWorkers <= 0 {
		minWorkers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &GoroutinePool{
		maxWorkers:   config.MaxWorkers,
		minWorkers:   minWorkers,
		taskQueue:    make(chan taskWrapper, config.QueueSize),
		idleTimeout:  config.IdleTimeout,
		panicHandler: config.PanicHandler,
		logger:       logger.With(zap.String("component", "goroutine_pool")),
	}
	return p
}

// enqueue is the shared submission path for Submit and SubmitWait: it
// rejects a closed pool, counts the attempt, and either lands the wrapper
// on the queue (spawning a worker if headroom allows) or reports why it
// couldn't.
func (p *GoroutinePool) enqueue(ctx context.Context, wrapper taskWrapper) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	select {
	case p.taskQueue <- wrapper:
		p.ensureWorker()
		return nil
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	default:
	}

	// Queue was full on the first attempt; try to grow the pool before
	// giving up.
	if p.trySpawnWorker() {
		select {
		case p.taskQueue <- wrapper:
			return nil
		case <-ctx.Done():
			p.rejected.Add(1)
			return ctx.Err()
		default:
		}
	}
	p.rejected.Add(1)
	return ErrPoolFull
}

// Submit hands task to the pool without waiting for it to run.
func (p *GoroutinePool) Submit(ctx context.Context, task Task) error {
	return p.enqueue(ctx, taskWrapper{task: task, ctx: ctx})
}

// SubmitWait hands task to the pool and blocks until it completes or ctx
// is canceled.
func (p *GoroutinePool) SubmitWait(ctx context.Context, task Task) error {
	wrapper := taskWrapper{task: task, ctx: ctx, result: make(chan error, 1)}
	if err := p.enqueue(ctx, wrapper); err != nil {
		return err
	}

	select {
	case err := <-wrapper.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *GoroutinePool) ensureWorker() {
	if p.workerCount.Load() < int32(p.maxWorkers) {
		p.trySpawnWorker()
	}
}

func (p *GoroutinePool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxWorkers) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			p.logger.Debug("spawning worker", zap.Int32("worker_count", current+1))
			go p.worker()
			return true
		}
	}
}

func (p *GoroutinePool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case wrapper, ok := <-p.taskQueue:
			if !ok {
				return
			}

			p.activeCount.Add(1)
			err := p.executeTask(wrapper)
			p.activeCount.Add(-1)

			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}

			if wrapper.result != nil {
				wrapper.result <- err
				close(wrapper.result)
			}

			timer.Reset(p.idleTimeout)

		case <-timer.C:
			// Idle timeout: retire this worker unless it would take the
			// pool below its configured floor.
			if p.workerCount.Load() > int32(p.minWorkers) {
				p.logger.Debug("retiring idle worker", zap.Int32("worker_count", p.workerCount.Load()-1))
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *GoroutinePool) executeTask(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = errors.New("task panicked")
		}
	}()

	return wrapper.task(wrapper.ctx)
}

// Close closes the pool and waits for all workers to finish.
func (p *GoroutinePool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
}

// Stats returns pool statistics.
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.taskQueue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats contains pool statistics.
type GoroutinePoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
