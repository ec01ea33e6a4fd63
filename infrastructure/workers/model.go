package workers

import "context"

// Job is a unit of work handed out by a Processor.
type Job interface {
	GetID() string
}

// Processor supplies and runs jobs for a Pool.
type Processor[T Job] interface {
	// Checkout returns the next job, or ErrNoWorkAvailable. It must be safe
	// for concurrent workers.
	Checkout(ctx context.Context, workerID string) (T, error)

	Process(ctx context.Context, job T) (T, error)

	// Complete is called after a successful Process.
	Complete(ctx context.Context, job T, elapsedMS int) error

	// Fail is called once retries are exhausted.
	Fail(ctx context.Context, job T, err error) error
}

// WorkFunc is one checkout-process-complete cycle.
type WorkFunc func(ctx context.Context, workerID string) error

// Middleware wraps a WorkFunc with additional behavior
type Middleware func(WorkFunc) WorkFunc

// PreProcessHook runs before Process
type PreProcessHook[T Job] func(ctx context.Context, job T) error

// PostProcessHook runs after Process with its error, if any.
type PostProcessHook[T Job] func(ctx context.Context, job T, err error) error
