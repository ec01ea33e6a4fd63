// Package syncjobs feeds the worker pool the periodic checks the sync core
// needs while a process stays up: day rollover, pending habits and storage
// verification.
package syncjobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/infrastructure/workers"
	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
)

type Kind string

const (
	KindRolloverCheck Kind = "rollover-check"
	KindPendingHabits Kind = "pending-habits"
	KindVerifyStorage Kind = "verify-storage"
)

// kinds is the checkout priority order.
var kinds = []Kind{KindRolloverCheck, KindPendingHabits, KindVerifyStorage}

type Job struct {
	Kind  Kind
	DueAt time.Time
}

func (j Job) GetID() string {
	return string(j.Kind)
}

// Intervals sets how often each job runs. A non-positive interval disables
// the job.
type Intervals struct {
	RolloverCheck time.Duration `mapstructure:"rollover_check" env:"JOB_ROLLOVER_CHECK" default:"1m"`
	PendingHabits time.Duration `mapstructure:"pending_habits" env:"JOB_PENDING_HABITS" default:"5m"`
	VerifyStorage time.Duration `mapstructure:"verify_storage" env:"JOB_VERIFY_STORAGE" default:"10m"`
}

func (iv Intervals) of(k Kind) time.Duration {
	switch k {
	case KindRolloverCheck:
		return iv.RolloverCheck
	case KindPendingHabits:
		return iv.PendingHabits
	case KindVerifyStorage:
		return iv.VerifyStorage
	}
	return 0
}

type RolloverChecker interface {
	Check(ctx context.Context) (bool, error)
}

type StorageVerifier interface {
	VerifyStorage(ctx context.Context) (int, error)
}

// Processor implements workers.Processor[Job]. Every enabled job is due
// immediately after construction.
type Processor struct {
	log       *logger.Logger
	bus       *eventbus.Bus
	rollover  RolloverChecker
	verifier  StorageVerifier
	clock     clock.Clock
	intervals Intervals

	mu      sync.Mutex
	next    map[Kind]time.Time
	running map[Kind]bool
	runs    map[Kind]int
}

var _ workers.Processor[Job] = (*Processor)(nil)

type Option func(*Processor)

func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		p.clock = c
	}
}

func New(log *logger.Logger, bus *eventbus.Bus, rollover RolloverChecker, verifier StorageVerifier, intervals Intervals, opts ...Option) *Processor {
	p := &Processor{
		log:       log,
		bus:       bus,
		rollover:  rollover,
		verifier:  verifier,
		clock:     clock.Real{},
		intervals: intervals,
		next:      make(map[Kind]time.Time),
		running:   make(map[Kind]bool),
		runs:      make(map[Kind]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Checkout(ctx context.Context, workerID string) (Job, error) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range kinds {
		if p.intervals.of(k) <= 0 || p.running[k] {
			continue
		}
		if due := p.next[k]; now.Before(due) {
			continue
		}
		p.running[k] = true
		return Job{Kind: k, DueAt: p.next[k]}, nil
	}
	return Job{}, workers.ErrNoWorkAvailable
}

func (p *Processor) Process(ctx context.Context, job Job) (Job, error) {
	switch job.Kind {
	case KindRolloverCheck:
		moved, err := p.rollover.Check(ctx)
		if err != nil {
			return job, fmt.Errorf("rollover check: %w", err)
		}
		if moved {
			p.log.InfoContext(ctx, "rollover performed by sync job")
		}
	case KindPendingHabits:
		if err := p.bus.Emit(ctx, eventbus.NewCheckPending(eventbus.SourceScheduler, string(job.Kind))); err != nil {
			return job, err
		}
	case KindVerifyStorage:
		repaired, err := p.verifier.VerifyStorage(ctx)
		if err != nil {
			return job, fmt.Errorf("verify storage: %w", err)
		}
		if repaired > 0 {
			p.log.WarnContext(ctx, "storage verification repaired collections", "count", repaired)
		}
	default:
		return job, fmt.Errorf("unknown job kind %q", job.Kind)
	}
	return job, nil
}

func (p *Processor) Complete(ctx context.Context, job Job, elapsedMS int) error {
	p.finish(job.Kind)
	return nil
}

// Fail reschedules the job for its next interval; the failure was already
// logged by the pool.
func (p *Processor) Fail(ctx context.Context, job Job, err error) error {
	p.finish(job.Kind)
	return nil
}

func (p *Processor) finish(k Kind) {
	now := p.clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running[k] = false
	p.next[k] = now.Add(p.intervals.of(k))
	p.runs[k]++
}

// Runs reports how many times k has finished.
func (p *Processor) Runs(k Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs[k]
}
