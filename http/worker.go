package http

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultPoolSize        = 10
	DefaultCorePoolSize    = 20
	DefaultMaxPoolSize     = 30
	DefaultQueueSize       = 100
	DefaultIdleTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrPoolClosed      = errors.New("worker pool is closed")
	ErrShutdownTimeout = errors.New("worker pool did not drain before shutdown timeout")
)

// PoolConfig sizes a WorkerPool.
type PoolConfig struct {
	// CoreSize workers are kept alive while idle.
	CoreSize int
	// MaxSize bounds the number of live workers.
	MaxSize int
	// QueueSize bounds the number of tasks waiting for a worker. Zero means
	// a task is only accepted when a worker is ready to take it.
	QueueSize int
	// IdleTimeout retires workers above CoreSize.
	IdleTimeout time.Duration
	// ShutdownTimeout bounds how long Close waits for tasks to finish. Zero
	// waits indefinitely.
	ShutdownTimeout time.Duration
}

// DefaultPoolConfig clamps the requested size to the core window: the core
// is min(requested, 20) and bursts may grow the pool to 30 workers.
func DefaultPoolConfig(requested int) PoolConfig {
	return PoolConfig{
		CoreSize:        max(0, min(requested, DefaultCorePoolSize)),
		MaxSize:         DefaultMaxPoolSize,
		QueueSize:       DefaultQueueSize,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func (cfg PoolConfig) validate() error {
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("max pool size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.CoreSize < 0 || cfg.CoreSize > cfg.MaxSize {
		return fmt.Errorf("core pool size must be within [0, %d], got %d", cfg.MaxSize, cfg.CoreSize)
	}
	if cfg.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", cfg.IdleTimeout)
	}
	return nil
}

// PoolStats is a point-in-time view of a WorkerPool.
type PoolStats struct {
	Workers   int
	Active    int
	Queued    int
	Completed uint64
	Rejected  uint64
	Panics    uint64
	Dropped   uint64
}

// WorkerPool runs tasks on a bounded set of goroutines fed by a bounded FIFO
// queue. Submit never blocks: it either hands the task over or rejects it.
type WorkerPool struct {
	cfg    PoolConfig
	logger *slog.Logger

	queue chan func()

	mu      sync.Mutex
	workers int
	active  int
	nextID  int
	closed  bool
	stopped bool
	wg      sync.WaitGroup

	completed atomic.Uint64
	rejected  atomic.Uint64
	panics    atomic.Uint64
	dropped   atomic.Uint64
}

func NewWorkerPool(cfg PoolConfig, logger *slog.Logger) (*WorkerPool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerPool{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan func(), cfg.QueueSize),
	}, nil
}

// Submit hands task to the pool. While fewer than CoreSize workers are live
// a new worker is started for it; otherwise it is queued; when the queue is
// full the pool grows up to MaxSize. It returns false when none of these is
// possible or the pool is closed.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		wp.rejected.Add(1)
		return false
	}

	if wp.workers < wp.cfg.CoreSize {
		wp.spawn(task)
		return true
	}

	select {
	case wp.queue <- task:
		if wp.workers == 0 {
			wp.spawn(nil)
		}
		return true
	default:
	}

	if wp.workers < wp.cfg.MaxSize {
		wp.spawn(task)
		return true
	}

	wp.rejected.Add(1)
	return false
}

// spawn must be called with wp.mu held.
func (wp *WorkerPool) spawn(first func()) {
	wp.workers++
	wp.nextID++
	wp.wg.Add(1)
	go wp.work(wp.nextID, first)
}

func (wp *WorkerPool) work(id int, task func()) {
	defer wp.wg.Done()

	name := fmt.Sprintf("bytegate-worker-%d", id)
	idle := time.NewTimer(wp.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		if task != nil {
			wp.execute(name, task)
			task = nil
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(wp.cfg.IdleTimeout)

		select {
		case t, ok := <-wp.queue:
			if !ok {
				wp.retire()
				return
			}
			task = t
		case <-idle.C:
			if wp.retireIfExtra() {
				wp.logger.Debug("worker_retired", "worker", name)
				return
			}
		}
	}
}

func (wp *WorkerPool) retire() {
	wp.mu.Lock()
	wp.workers--
	wp.mu.Unlock()
}

func (wp *WorkerPool) retireIfExtra() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.workers <= wp.cfg.CoreSize {
		return false
	}
	// The last worker stays while tasks are queued: Submit only starts a
	// worker for a queued task when none is live.
	if wp.workers == 1 && len(wp.queue) > 0 {
		return false
	}
	wp.workers--
	return true
}

// execute runs a single task. A panic is contained to the task; the worker
// survives it.
func (wp *WorkerPool) execute(name string, task func()) {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		wp.dropped.Add(1)
		return
	}
	wp.active++
	wp.mu.Unlock()

	defer func() {
		wp.mu.Lock()
		wp.active--
		wp.mu.Unlock()

		if r := recover(); r != nil {
			wp.panics.Add(1)
			wp.logger.Error("task_panicked",
				"worker", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			return
		}
		wp.completed.Add(1)
	}()

	task()
}

// Close stops intake and waits up to ShutdownTimeout for queued and running
// tasks. Once the wait expires, tasks still queued are dropped and
// ErrShutdownTimeout is returned. Tasks already admitted keep running and are
// counted in Stats().Active; no task is admitted after Close returns. Closing
// twice returns ErrPoolClosed.
func (wp *WorkerPool) Close() error {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return ErrPoolClosed
	}
	wp.closed = true
	close(wp.queue)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if wp.cfg.ShutdownTimeout > 0 {
		timer := time.NewTimer(wp.cfg.ShutdownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
		return nil
	case <-timeout:
	}

	// execute admits a task and counts it active under mu, so once stopped
	// is set no further task is admitted.
	wp.mu.Lock()
	wp.stopped = true
	active := wp.active
	wp.mu.Unlock()

	wp.logger.Warn("worker_pool_forced_shutdown", "active", active)
	return ErrShutdownTimeout
}

func (wp *WorkerPool) Stats() PoolStats {
	wp.mu.Lock()
	workers, active := wp.workers, wp.active
	wp.mu.Unlock()

	return PoolStats{
		Workers:   workers,
		Active:    active,
		Queued:    len(wp.queue),
		Completed: wp.completed.Load(),
		Rejected:  wp.rejected.Load(),
		Panics:    wp.panics.Load(),
		Dropped:   wp.dropped.Load(),
	}
}

func (wp *WorkerPool) Config() PoolConfig { return wp.cfg }
