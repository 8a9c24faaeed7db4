package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pool executes tasks on a fixed set of worker goroutines.
//
// Tasks are started in submission order. When the pool is not running,
// or its queue is full, a task runs on the submitting goroutine instead,
// so a receiver that publishes from a worker can never deadlock the pool.
//
// Pool does not recover panics. Receiver faults are recovered before they
// reach the executor; anything that escapes is a programming error.
type Pool struct {
	// Configuration
	queueSize   int
	workerCount int

	// State
	mu      sync.RWMutex // guards queue against send-after-close
	queue   chan func()
	running atomic.Bool
	wg      sync.WaitGroup

	// Stats
	submitted   atomic.Uint64
	executed    atomic.Uint64
	inline      atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewPool creates a stopped worker pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		queueSize:   1024,
		workerCount: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) PoolOption {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) PoolOption {
	return func(p *Pool) {
		if count > 0 {
			p.workerCount = count
		}
	}
}

// Start starts the worker goroutines.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return ErrAlreadyRunning
	}

	p.queue = make(chan func(), p.queueSize)
	p.running.Store(true)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(p.queue)
	}

	return nil
}

// Stop stops accepting tasks and waits for queued tasks to finish
// or until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrNotRunning
	}

	p.running.Store(false)
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute implements Executor.
func (p *Pool) Execute(task func()) {
	p.submitted.Add(1)

	p.mu.RLock()
	if p.running.Load() {
		select {
		case p.queue <- task:
			p.mu.RUnlock()
			return
		default:
		}
	}
	p.mu.RUnlock()

	p.inline.Add(1)
	p.run(task)
}

func (p *Pool) worker(queue <-chan func()) {
	defer p.wg.Done()

	for task := range queue {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	start := time.Now()
	defer func() {
		p.executed.Add(1)
		p.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	task()
}

// QueueDepth returns the current number of tasks in the queue.
func (p *Pool) QueueDepth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() {
		return 0
	}
	return len(p.queue)
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	executed := p.executed.Load()
	totalNs := p.totalTimeNs.Load()

	var avgNs int64
	if executed > 0 {
		avgNs = totalNs / int64(executed)
	}

	return PoolStats{
		Submitted:     p.submitted.Load(),
		Executed:      executed,
		Inline:        p.inline.Load(),
		QueueDepth:    p.QueueDepth(),
		Workers:       p.workerCount,
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// PoolStats contains statistics for a worker pool.
type PoolStats struct {
	// Submitted is the total number of tasks handed to Execute.
	Submitted uint64

	// Executed is the number of tasks that have finished.
	Executed uint64

	// Inline is the number of tasks run on the submitting goroutine.
	Inline uint64

	// QueueDepth is the current number of tasks waiting in the queue.
	QueueDepth int

	// Workers is the configured worker count.
	Workers int

	// TotalDuration is the cumulative time spent running tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task run time.
	AvgDuration time.Duration
}
