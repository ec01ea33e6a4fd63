package workers_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrazmi/habitsync/infrastructure/workers"
	"github.com/jrazmi/habitsync/sdk/logger"
)

type TestJob struct {
	ID        string
	ShouldErr bool
}

func (j TestJob) GetID() string {
	return j.ID
}

type StubProcessor struct {
	mu   sync.Mutex
	jobs []TestJob

	processCount  atomic.Int32
	completeCount atomic.Int32
	failCount     atomic.Int32

	processFunc func(ctx context.Context, job TestJob) (TestJob, error)
}

func (p *StubProcessor) Add(jobs ...TestJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, jobs...)
}

func (p *StubProcessor) Checkout(ctx context.Context, workerID string) (TestJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.jobs) == 0 {
		return TestJob{}, workers.ErrNoWorkAvailable
	}
	job := p.jobs[0]
	p.jobs = p.jobs[1:]
	return job, nil
}

func (p *StubProcessor) Process(ctx context.Context, job TestJob) (TestJob, error) {
	p.processCount.Add(1)
	if p.processFunc != nil {
		return p.processFunc(ctx, job)
	}
	if job.ShouldErr {
		return job, fmt.Errorf("job %s failed as requested", job.ID)
	}
	return job, nil
}

func (p *StubProcessor) Complete(ctx context.Context, job TestJob, elapsedMS int) error {
	p.completeCount.Add(1)
	return nil
}

func (p *StubProcessor) Fail(ctx context.Context, job TestJob, err error) error {
	p.failCount.Add(1)
	return nil
}

func fastOptions(workerCount, retries int) workers.Options {
	return workers.Options{
		Name:         "test-pool",
		WorkerCount:  workerCount,
		PollInterval: 5 * time.Millisecond,
		IdleInterval: 20 * time.Millisecond,
		MaxRetries:   retries,
		RetryDelay:   time.Millisecond,
	}
}

// runFor starts the pool, waits for cond or the deadline, then stops it.
func runFor[T workers.Job](t *testing.T, pool *workers.Pool[T], cond func() bool) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- pool.Start(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !cond() {
		time.Sleep(5 * time.Millisecond)
	}
	pool.Stop()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
		return nil
	}
}

func TestPool_BasicFlow(t *testing.T) {
	processor := &StubProcessor{}
	for i := 0; i < 5; i++ {
		processor.Add(TestJob{ID: fmt.Sprintf("job-%d", i)})
	}
	metrics := workers.NewInMemoryMetrics(nil)
	pool := workers.New[TestJob](processor, fastOptions(2, 1),
		workers.WithLogger(logger.NewDiscard()),
		workers.WithMetrics(metrics))

	if err := runFor(t, pool, func() bool { return processor.completeCount.Load() == 5 }); err != nil {
		t.Fatalf("pool returned error: %v", err)
	}

	if got := processor.completeCount.Load(); got != 5 {
		t.Errorf("expected 5 completes, got %d", got)
	}
	if got := processor.failCount.Load(); got != 0 {
		t.Errorf("expected 0 failures, got %d", got)
	}
	if got := metrics.Snapshot().JobsCompleted; got != 5 {
		t.Errorf("expected metrics to record 5 completed jobs, got %d", got)
	}
	if got := metrics.Snapshot().WorkersActive; got != 0 {
		t.Errorf("expected no active workers after stop, got %d", got)
	}
}

func TestPool_FailuresCallFail(t *testing.T) {
	processor := &StubProcessor{}
	processor.Add(TestJob{ID: "a", ShouldErr: true}, TestJob{ID: "b", ShouldErr: true})
	pool := workers.New[TestJob](processor, fastOptions(1, 1))

	runFor(t, pool, func() bool { return processor.failCount.Load() == 2 })

	if got := processor.failCount.Load(); got != 2 {
		t.Errorf("expected 2 failures, got %d", got)
	}
	if got := processor.completeCount.Load(); got != 0 {
		t.Errorf("expected 0 completes, got %d", got)
	}
}

func TestPool_Retry(t *testing.T) {
	processor := &StubProcessor{}
	processor.Add(TestJob{ID: "flaky"})
	var attempts atomic.Int32
	processor.processFunc = func(ctx context.Context, job TestJob) (TestJob, error) {
		if attempts.Add(1) == 1 {
			return job, errors.New("temporary error")
		}
		return job, nil
	}
	pool := workers.New[TestJob](processor, fastOptions(1, 3))

	runFor(t, pool, func() bool { return processor.completeCount.Load() == 1 })

	if got := attempts.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if got := processor.failCount.Load(); got != 0 {
		t.Errorf("expected 0 failures, got %d", got)
	}
}

func TestPool_PanicIsRecovered(t *testing.T) {
	processor := &StubProcessor{}
	processor.Add(TestJob{ID: "boom"}, TestJob{ID: "fine"})
	processor.processFunc = func(ctx context.Context, job TestJob) (TestJob, error) {
		if job.ID == "boom" {
			panic("process panic test")
		}
		return job, nil
	}
	metrics := workers.NewInMemoryMetrics(nil)
	pool := workers.New[TestJob](processor, fastOptions(1, 1), workers.WithMetrics(metrics))

	runFor(t, pool, func() bool { return processor.completeCount.Load() == 1 })

	if got := processor.completeCount.Load(); got != 1 {
		t.Errorf("expected the second job to complete, got %d completes", got)
	}
	if got := metrics.Snapshot().WorkerPanics; got != 1 {
		t.Errorf("expected 1 recorded panic, got %d", got)
	}
}

func TestPool_Hooks(t *testing.T) {
	processor := &StubProcessor{}
	processor.Add(TestJob{ID: "a"}, TestJob{ID: "b", ShouldErr: true})
	pool := workers.New[TestJob](processor, fastOptions(1, 1))

	var pre, postOK, postErr atomic.Int32
	pool.AddPreProcessHooks(func(ctx context.Context, job TestJob) error {
		pre.Add(1)
		return nil
	})
	pool.AddPostProcessHooks(func(ctx context.Context, job TestJob, err error) error {
		if err != nil {
			postErr.Add(1)
		} else {
			postOK.Add(1)
		}
		return nil
	}, workers.LogOutcomeHook[TestJob](logger.NewDiscard()))

	runFor(t, pool, func() bool { return postOK.Load()+postErr.Load() == 2 })

	if pre.Load() != 2 || postOK.Load() != 1 || postErr.Load() != 1 {
		t.Errorf("unexpected hook counts: pre=%d ok=%d err=%d", pre.Load(), postOK.Load(), postErr.Load())
	}
}

func TestPool_PoolShutdownError(t *testing.T) {
	processor := &StubProcessor{}
	processor.Add(TestJob{ID: "fatal"})
	processor.processFunc = func(ctx context.Context, job TestJob) (TestJob, error) {
		return job, workers.ErrPoolShutdown
	}
	pool := workers.New[TestJob](processor, fastOptions(1, 1))

	err := pool.Start(context.Background())
	if !errors.Is(err, workers.ErrPoolShutdown) {
		t.Fatalf("expected pool shutdown error, got %v", err)
	}
}

func TestMiddleware_ExecutionOrder(t *testing.T) {
	processor := &StubProcessor{}
	processor.Add(TestJob{ID: "one"})

	var mu sync.Mutex
	var order []string
	record := func(name string) workers.Middleware {
		return func(next workers.WorkFunc) workers.WorkFunc {
			return func(ctx context.Context, workerID string) error {
				err := next(ctx, workerID)
				if err == nil {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
				}
				return err
			}
		}
	}
	pool := workers.New[TestJob](processor, fastOptions(1, 1),
		workers.WithMiddleware(record("outer"), record("inner")))

	runFor(t, pool, func() bool { return processor.completeCount.Load() == 1 })

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "inner" || order[1] != "outer" {
		t.Errorf("expected inner to return before outer, got %v", order)
	}
}

func TestMiddleware_ConsecutiveErrorShutdown(t *testing.T) {
	processor := &StubProcessor{}
	for i := 0; i < 10; i++ {
		processor.Add(TestJob{ID: fmt.Sprintf("bad-%d", i), ShouldErr: true})
	}
	pool := workers.New[TestJob](processor, fastOptions(1, 1),
		workers.WithMiddleware(workers.ConsecutiveErrorShutdown(2)))

	done := make(chan error, 1)
	go func() { done <- pool.Start(context.Background()) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		pool.Stop()
		t.Fatal("worker did not shut down after consecutive errors")
	}

	if got := processor.failCount.Load(); got != 3 {
		t.Errorf("expected worker to stop after 3 failures, got %d", got)
	}
}
