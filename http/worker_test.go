package http

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freekieb7/bytegate/logger"
)

func newTestPool(t *testing.T, cfg PoolConfig) *WorkerPool {
	t.Helper()
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = time.Second
	}
	pool, err := NewWorkerPool(cfg, logger.Discard())
	require.NoError(t, err)
	return pool
}

// blocker returns a task that parks until release is closed, and a channel
// that receives once the task has started.
func blocker(release <-chan struct{}) (func(), <-chan struct{}) {
	started := make(chan struct{})
	return func() {
		close(started)
		<-release
	}, started
}

func waitStarted(t *testing.T, started <-chan struct{}) {
	t.Helper()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	tests := []struct {
		requested int
		core      int
	}{
		{10, 10},
		{20, 20},
		{50, 20},
		{0, 0},
		{-3, 0},
	}

	for _, tt := range tests {
		cfg := DefaultPoolConfig(tt.requested)
		assert.Equal(t, tt.core, cfg.CoreSize, "requested %d", tt.requested)
		assert.Equal(t, DefaultMaxPoolSize, cfg.MaxSize)
		assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
		assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeout)
		assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	}
}

func TestNewWorkerPoolRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  PoolConfig
	}{
		{"zero max", PoolConfig{CoreSize: 0, MaxSize: 0, IdleTimeout: time.Second}},
		{"core above max", PoolConfig{CoreSize: 3, MaxSize: 2, IdleTimeout: time.Second}},
		{"negative queue", PoolConfig{CoreSize: 1, MaxSize: 1, QueueSize: -1, IdleTimeout: time.Second}},
		{"no idle timeout", PoolConfig{CoreSize: 1, MaxSize: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWorkerPool(tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestWorkerPoolRunsTasks(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 2, MaxSize: 4, QueueSize: 10})

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.True(t, pool.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(8), ran.Load())
	require.NoError(t, pool.Close())
	assert.Equal(t, uint64(8), pool.Stats().Completed)
}

func TestWorkerPoolQueueWithoutCoreWorkers(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 0, MaxSize: 1, QueueSize: 1})
	defer pool.Close()

	done := make(chan struct{})
	require.True(t, pool.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never ran")
	}
}

func TestWorkerPoolSubmitDoesNotBlockWhenSaturated(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 1, QueueSize: 0})
	release := make(chan struct{})
	defer func() {
		close(release)
		pool.Close()
	}()

	task, started := blocker(release)
	require.True(t, pool.Submit(task))
	waitStarted(t, started)

	returned := make(chan bool, 1)
	go func() { returned <- pool.Submit(func() {}) }()

	select {
	case accepted := <-returned:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a saturated pool")
	}
	assert.Equal(t, uint64(1), pool.Stats().Rejected)
}

func TestWorkerPoolGrowsToMaxThenRejects(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 2, QueueSize: 1})
	release := make(chan struct{})
	defer func() {
		close(release)
		pool.Close()
	}()

	first, firstStarted := blocker(release)
	require.True(t, pool.Submit(first), "core worker")
	waitStarted(t, firstStarted)

	require.True(t, pool.Submit(func() { <-release }), "queued")

	third, thirdStarted := blocker(release)
	require.True(t, pool.Submit(third), "extra worker")
	waitStarted(t, thirdStarted)

	assert.False(t, pool.Submit(func() {}), "pool and queue are full")

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Workers)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, uint64(1), stats.Rejected)
}

func TestWorkerPoolRetiresIdleExtraWorkers(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 2, QueueSize: 0, IdleTimeout: 50 * time.Millisecond})
	defer pool.Close()

	release := make(chan struct{})
	first, firstStarted := blocker(release)
	require.True(t, pool.Submit(first))
	waitStarted(t, firstStarted)

	second, secondStarted := blocker(release)
	require.True(t, pool.Submit(second))
	waitStarted(t, secondStarted)
	assert.Equal(t, 2, pool.Stats().Workers)

	close(release)

	assert.Eventually(t, func() bool {
		return pool.Stats().Workers == 1
	}, 2*time.Second, 10*time.Millisecond, "extra worker retires, core worker stays")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, pool.Stats().Workers)
}

func TestWorkerPoolKeepsLastWorkerWhileTasksAreQueued(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 0, MaxSize: 1, QueueSize: 1})

	pool.mu.Lock()
	pool.workers = 1
	pool.mu.Unlock()
	pool.queue <- func() {}

	assert.False(t, pool.retireIfExtra(), "queued task would be stranded")

	<-pool.queue
	assert.True(t, pool.retireIfExtra())
	assert.Equal(t, 0, pool.Stats().Workers)
}

func TestWorkerPoolSurvivesPanickingTask(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 1, QueueSize: 4})
	defer pool.Close()

	require.True(t, pool.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.True(t, pool.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Panics)
	assert.Equal(t, 1, stats.Workers)
}

func TestWorkerPoolRejectsAfterClose(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 1, QueueSize: 1})

	require.NoError(t, pool.Close())
	assert.False(t, pool.Submit(func() {}))
	assert.ErrorIs(t, pool.Close(), ErrPoolClosed)
}

func TestWorkerPoolCloseWaitsForRunningTasks(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 1, QueueSize: 2, ShutdownTimeout: 2 * time.Second})

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.True(t, pool.Submit(func() {
			time.Sleep(20 * time.Millisecond)
			ran.Add(1)
		}))
	}

	require.NoError(t, pool.Close())
	assert.Equal(t, int32(3), ran.Load(), "queued tasks run before Close returns")
}

func TestWorkerPoolForcedShutdownDropsQueuedTasks(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 1, QueueSize: 2, ShutdownTimeout: 50 * time.Millisecond})

	release := make(chan struct{})
	task, started := blocker(release)
	require.True(t, pool.Submit(task))
	waitStarted(t, started)

	var ran atomic.Int32
	for i := 0; i < 2; i++ {
		require.True(t, pool.Submit(func() { ran.Add(1) }))
	}

	begin := time.Now()
	err := pool.Close()
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)

	close(release)

	assert.Eventually(t, func() bool {
		return pool.Stats().Dropped == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), ran.Load(), "no task starts after a forced shutdown")
}

func TestWorkerPoolExecuteAfterStopDropsTask(t *testing.T) {
	pool := newTestPool(t, PoolConfig{CoreSize: 1, MaxSize: 1})

	pool.mu.Lock()
	pool.stopped = true
	pool.mu.Unlock()

	ran := false
	pool.execute("worker-test", func() { ran = true })

	assert.False(t, ran)
	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, uint64(0), stats.Completed)
}
