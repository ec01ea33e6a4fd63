// Package workers runs a Processor's jobs on a small pool of polling
// goroutines with retries, panic recovery, middleware and metrics.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jrazmi/habitsync/sdk/environment"
	"github.com/jrazmi/habitsync/sdk/logger"
)

var (
	ErrWorkerShutdown  = errors.New("worker should shutdown")
	ErrPoolShutdown    = errors.New("pool should shutdown")
	ErrNoWorkAvailable = errors.New("no work available")
)

// Options represents the exportable worker configuration
type Options struct {
	Name         string        `mapstructure:"name" env:"WORKER_NAME" default:"sync"`
	WorkerCount  int           `mapstructure:"count" env:"WORKER_COUNT" default:"1"`
	PollInterval time.Duration `mapstructure:"poll_interval" env:"WORKER_POLL_INTERVAL" default:"1s"`
	IdleInterval time.Duration `mapstructure:"idle_interval" env:"WORKER_IDLE_INTERVAL" default:"15s"`
	MaxRetries   int           `mapstructure:"max_retries" env:"WORKER_MAX_RETRIES" default:"2"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" env:"WORKER_RETRY_DELAY" default:"250ms"`
}

type options struct {
	log         *logger.Logger
	middlewares []Middleware
	metrics     Metrics
}

type Option func(*options)

func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMiddleware appends middlewares; the first added is outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

type Pool[T Job] struct {
	processor Processor[T]
	cfg       Options
	log       *logger.Logger

	workFunc         WorkFunc
	preProcessHooks  []PreProcessHook[T]
	postProcessHooks []PostProcessHook[T]
	metrics          Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	workers sync.WaitGroup
	errors  chan error
}

// NewFromEnv creates a pool using environment variables
func NewFromEnv[T Job](prefix string, processor Processor[T], opts ...Option) (*Pool[T], error) {
	var cfg Options
	if err := environment.ParseEnvTags(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing worker config: %w", err)
	}
	return New(processor, cfg, opts...), nil
}

func New[T Job](processor Processor[T], cfg Options, opts ...Option) *Pool[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.NewDiscard()
	}
	if o.metrics == nil {
		o.metrics = NoOpMetrics{}
	}

	if cfg.Name == "" {
		cfg.Name = "worker"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	p := &Pool[T]{
		processor: processor,
		cfg:       cfg,
		log:       o.log.With("pool", cfg.Name),
		metrics:   o.metrics,
		errors:    make(chan error, cfg.WorkerCount),
	}

	p.workFunc = p.work
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		p.workFunc = o.middlewares[i](p.workFunc)
	}
	return p
}

// Start runs the workers and blocks until ctx is cancelled, Stop is
// called, or a worker asks for pool shutdown. The pool shutdown error, if
// any, is returned.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("pool already running")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.mu.Unlock()

	started := time.Now()
	p.log.InfoContext(ctx, "starting worker pool",
		"worker_count", p.cfg.WorkerCount,
		"poll_interval", p.cfg.PollInterval,
		"idle_interval", p.cfg.IdleInterval)
	p.metrics.Start(p.cfg.Name)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.workers.Add(1)
		go p.worker(ctx, fmt.Sprintf("%s-worker-%d", p.cfg.Name, i+1))
	}

	var fatal error
	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case fatal = <-p.errors:
		p.cancel()
		<-done
	}

	p.metrics.Stop()
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.log.InfoContext(context.WithoutCancel(ctx), "worker pool stopped", "runtime", time.Since(started))
	return fatal
}

// Stop asks a running pool to finish. Start returns once workers exit.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.cancel == nil {
		return
	}
	p.cancel()
}

func (p *Pool[T]) Metrics() Snapshot {
	return p.metrics.Snapshot()
}

// worker polls quickly while work is flowing and backs off to the idle
// interval when the processor has nothing to hand out.
func (p *Pool[T]) worker(ctx context.Context, workerID string) {
	defer p.workers.Done()
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerStopped()

	log := p.log.With("worker_id", workerID)
	log.DebugContext(ctx, "worker started")
	defer log.DebugContext(context.WithoutCancel(ctx), "worker stopped")

	current := time.Millisecond
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := p.safeWork(ctx, workerID)

		next := p.cfg.PollInterval
		switch {
		case err == nil:
		case errors.Is(err, ErrWorkerShutdown):
			log.InfoContext(ctx, "worker shutting down as requested")
			return
		case errors.Is(err, ErrPoolShutdown):
			log.ErrorContext(ctx, "worker requesting pool shutdown", "error", err)
			select {
			case p.errors <- fmt.Errorf("worker %s: %w", workerID, err):
			default:
			}
			return
		case errors.Is(err, ErrNoWorkAvailable):
			next = p.cfg.IdleInterval
		case ctx.Err() != nil:
			return
		default:
			log.ErrorContext(ctx, "job error", "error", err)
		}

		if next != current {
			current = next
			ticker.Reset(next)
		}
	}
}

// safeWork turns a panic anywhere in the work chain into an error.
func (p *Pool[T]) safeWork(ctx context.Context, workerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.ErrorContext(ctx, "panic recovered in worker",
				"worker_id", workerID,
				"panic", r,
				"stack_trace", string(debug.Stack()))
			p.metrics.WorkerPanic()
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return p.workFunc(ctx, workerID)
}

// work runs Checkout, Process (with retries) and then Complete or Fail.
func (p *Pool[T]) work(ctx context.Context, workerID string) error {
	job, err := p.processor.Checkout(ctx, workerID)
	if err != nil {
		if errors.Is(err, ErrNoWorkAvailable) {
			return err
		}
		p.metrics.CheckoutError()
		return fmt.Errorf("checkout failed: %w", err)
	}
	p.metrics.JobCheckedOut()

	for _, hook := range p.preProcessHooks {
		if err := hook(ctx, job); err != nil {
			p.log.WarnContext(ctx, "pre-process hook failed", "job_id", job.GetID(), "error", err)
		}
	}

	started := time.Now()
	processed, processErr := p.processWithRetry(ctx, job)
	elapsed := time.Since(started)

	hookJob := processed
	if processErr != nil {
		hookJob = job
	}
	for _, hook := range p.postProcessHooks {
		if err := hook(ctx, hookJob, processErr); err != nil {
			p.log.WarnContext(ctx, "post-process hook failed", "job_id", job.GetID(), "error", err)
		}
	}

	if processErr != nil {
		p.metrics.JobFailed(elapsed)
		if err := p.processor.Fail(ctx, job, processErr); err != nil {
			p.log.ErrorContext(ctx, "failed to mark job as failed", "job_id", job.GetID(), "error", err)
		}
		return fmt.Errorf("job %s: %w", job.GetID(), processErr)
	}

	p.metrics.JobCompleted(elapsed)
	if err := p.processor.Complete(ctx, processed, int(elapsed.Milliseconds())); err != nil {
		p.log.ErrorContext(ctx, "failed to mark job as complete", "job_id", job.GetID(), "error", err)
	}
	p.log.DebugContext(ctx, "job completed", "worker_id", workerID, "job_id", job.GetID(), "duration_ms", elapsed.Milliseconds())
	return nil
}

// processWithRetry retries Process with exponential backoff starting at
// RetryDelay.
func (p *Pool[T]) processWithRetry(ctx context.Context, job T) (T, error) {
	var (
		processed T
		lastErr   error
	)
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			p.metrics.RetryAttempt()
			delay := p.cfg.RetryDelay * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			case <-time.After(delay):
			}
		}

		processed, lastErr = p.processor.Process(ctx, job)
		if lastErr == nil {
			return processed, nil
		}
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		p.log.WarnContext(ctx, "job attempt failed", "job_id", job.GetID(), "attempt", attempt, "error", lastErr)
	}
	if p.cfg.MaxRetries > 1 {
		return processed, fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries, lastErr)
	}
	return processed, lastErr
}
