package shardqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type noopJob struct{}

func (n noopJob) Run(ctx context.Context) error { return nil }

type testJob struct{ run func(context.Context) error }

func (t testJob) Run(ctx context.Context) error { return t.run(ctx) }

func TestShardExecutor_SubmitAndStop(t *testing.T) {
	t.Parallel()
	exec := NewShardExecutor(Config{})
	defer exec.Stop()

	if err := exec.Submit(context.Background(), "k1", noopJob{}); err != nil {
		t.Fatalf("submit error: %v", err)
	}
}

// FIFO ordering for a single key.
func TestShardExecutor_FIFOOrdering(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 4, QueueSize: 10})
	defer p.Stop()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	wg.Add(5)
	for i := 0; i < 5; i++ {
		v := i
		if err := p.Submit(context.Background(), "member1", testJob{run: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
			wg.Done()
			return nil
		}}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for jobs")
	}

	for i, v := range order {
		if i != v {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

// Jobs for different keys run in parallel (no head-of-line blocking).
func TestShardExecutor_ParallelDifferentKeys(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 4, QueueSize: 10})
	defer p.Stop()

	start := make(chan struct{})
	done := make(chan struct{})

	_ = p.Submit(context.Background(), "A", testJob{run: func(context.Context) error {
		<-start
		close(done)
		return nil
	}})
	_ = p.Submit(context.Background(), "B", testJob{run: func(context.Context) error {
		close(start)
		<-done
		return nil
	}})

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("jobs blocked each other; expected parallelism")
	}
}

// No overlap for the same key (serial execution guarantee).
func TestShardExecutor_SerialExecutionSameKey(t *testing.T) {
	const N = 200
	p := NewShardExecutor(Config{Shards: 4, QueueSize: N})
	defer p.Stop()

	var (
		inFlight        int32
		overlapDetected int32
		wg              sync.WaitGroup
	)
	wg.Add(N)

	for i := 0; i < N; i++ {
		_ = p.Submit(context.Background(), "X", testJob{run: func(context.Context) error {
			if atomic.AddInt32(&inFlight, 1) > 1 {
				atomic.StoreInt32(&overlapDetected, 1)
			}
			time.Sleep(100 * time.Microsecond)
			atomic.AddInt32(&inFlight, -1)
			wg.Done()
			return nil
		}})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serial execution test timed out")
	}

	if atomic.LoadInt32(&overlapDetected) == 1 {
		t.Fatal("detected overlapping execution for same key")
	}
}

func TestShardExecutor_SubmitAfterStop(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 2, QueueSize: 2})
	p.Stop()

	err := p.Submit(context.Background(), "Z", noopJob{})
	if !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected ErrExecutorClosed, got %v", err)
	}
}

func TestShardExecutor_QueueFull(t *testing.T) {
	t.Parallel()
	cfg := Config{Shards: 1, QueueSize: 1, EnqueueTimeout: 10 * time.Millisecond}
	exec := NewShardExecutor(cfg)
	defer exec.Stop()

	blockCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var started int32
	_ = exec.Submit(context.Background(), "same", JobFunc(func(ctx context.Context) error {
		atomic.StoreInt32(&started, 1)
		<-blockCtx.Done()
		return nil
	}))
	for atomic.LoadInt32(&started) == 0 {
		time.Sleep(time.Millisecond)
	}

	_ = exec.Submit(context.Background(), "same", noopJob{})
	err := exec.Submit(context.Background(), "same", noopJob{})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
	var qf *QueueFullError
	if !errors.As(err, &qf) || qf.Capacity != 1 {
		t.Fatalf("queue full detail = %+v", err)
	}
}

// Transient failures retry until they succeed.
func TestShardExecutor_RetriesTransientErrors(t *testing.T) {
	var handled int32
	p := NewShardExecutor(Config{
		Shards:       1,
		MaxAttempts:  5,
		BaseBackoff:  time.Millisecond,
		MaxInterval:  2 * time.Millisecond,
		ErrorHandler: func(error) { atomic.AddInt32(&handled, 1) },
	})
	defer p.Stop()

	var runs int32
	done := make(chan struct{})
	_ = p.Submit(context.Background(), "k", testJob{run: func(context.Context) error {
		if atomic.AddInt32(&runs, 1) < 3 {
			return errors.New("flaky")
		}
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never succeeded")
	}
	if got := atomic.LoadInt32(&runs); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
	if atomic.LoadInt32(&handled) != 0 {
		t.Fatal("error handler fired for a job that eventually succeeded")
	}
}

// Errors classified permanent are not retried.
func TestShardExecutor_PermanentErrorSkipsRetry(t *testing.T) {
	permanent := errors.New("unique constraint violated")
	var handled atomic.Value
	p := NewShardExecutor(Config{
		Shards:       1,
		MaxAttempts:  5,
		BaseBackoff:  time.Millisecond,
		Permanent:    func(err error) bool { return errors.Is(err, permanent) },
		ErrorHandler: func(err error) { handled.Store(err) },
	})
	defer p.Stop()

	var runs int32
	_ = p.Submit(context.Background(), "k", testJob{run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return permanent
	}})
	if err := p.Barrier(context.Background(), "k"); err != nil {
		t.Fatalf("barrier: %v", err)
	}

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("runs = %d, want 1 (no retries)", got)
	}
	if got, _ := handled.Load().(error); !errors.Is(got, permanent) {
		t.Fatalf("handler saw %v", got)
	}
}

// Barrier returns only after everything ahead of it on the key has run.
func TestShardExecutor_Barrier(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 2, QueueSize: 8})
	defer p.Stop()

	var ran int32
	for i := 0; i < 5; i++ {
		_ = p.Submit(context.Background(), "k", testJob{run: func(context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&ran, 1)
			return nil
		}})
	}
	if err := p.Barrier(context.Background(), "k"); err != nil {
		t.Fatalf("barrier: %v", err)
	}
	if got := atomic.LoadInt32(&ran); got != 5 {
		t.Fatalf("ran = %d before barrier returned", got)
	}
}

// Stop waits for queued jobs instead of dropping them.
func TestShardExecutor_StopDrains(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 1, QueueSize: 16})

	var ran int32
	for i := 0; i < 10; i++ {
		_ = p.Submit(context.Background(), "k", testJob{run: func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}})
	}
	p.Stop()

	if got := atomic.LoadInt32(&ran); got != 10 {
		t.Fatalf("ran = %d after drain, want 10", got)
	}
}

// Stop racing with many concurrent Submit calls should never panic or deadlock.
func TestShardExecutor_StopSubmit_RaceFree(t *testing.T) {
	p := NewShardExecutor(Config{Shards: 4, QueueSize: 32})

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Submit(context.Background(), "k", noopJob{})
		}()
	}

	go p.Stop()
	wg.Wait()
}
