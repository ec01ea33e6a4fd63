package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrazmi/habitsync/sdk/logger"
)

// Metrics collects pool orchestration counters.
type Metrics interface {
	WorkerStarted()
	WorkerStopped()
	WorkerPanic()

	JobCheckedOut()
	JobCompleted(d time.Duration)
	JobFailed(d time.Duration)
	CheckoutError()
	RetryAttempt()

	Snapshot() Snapshot

	Start(poolName string)
	Stop()
}

type Snapshot struct {
	WorkersActive  int64         `json:"workers_active"`
	WorkerPanics   int64         `json:"worker_panics"`
	JobsCheckedOut int64         `json:"jobs_checked_out"`
	JobsCompleted  int64         `json:"jobs_completed"`
	JobsFailed     int64         `json:"jobs_failed"`
	CheckoutErrors int64         `json:"checkout_errors"`
	RetryAttempts  int64         `json:"retry_attempts"`
	MaxDuration    time.Duration `json:"max_duration"`
	Uptime         time.Duration `json:"uptime"`
}

type NoOpMetrics struct{}

func (NoOpMetrics) WorkerStarted()             {}
func (NoOpMetrics) WorkerStopped()             {}
func (NoOpMetrics) WorkerPanic()               {}
func (NoOpMetrics) JobCheckedOut()             {}
func (NoOpMetrics) JobCompleted(time.Duration) {}
func (NoOpMetrics) JobFailed(time.Duration)    {}
func (NoOpMetrics) CheckoutError()             {}
func (NoOpMetrics) RetryAttempt()              {}
func (NoOpMetrics) Snapshot() Snapshot         { return Snapshot{} }
func (NoOpMetrics) Start(string)               {}
func (NoOpMetrics) Stop()                      {}

// InMemoryMetrics counts with atomics. When built with a logger it logs a
// final snapshot on Stop.
type InMemoryMetrics struct {
	log *logger.Logger

	poolName  string
	startTime time.Time

	workersActive  atomic.Int64
	workerPanics   atomic.Int64
	jobsCheckedOut atomic.Int64
	jobsCompleted  atomic.Int64
	jobsFailed     atomic.Int64
	checkoutErrors atomic.Int64
	retryAttempts  atomic.Int64

	mu          sync.Mutex
	maxDuration time.Duration
}

func NewInMemoryMetrics(log *logger.Logger) *InMemoryMetrics {
	return &InMemoryMetrics{log: log}
}

func (m *InMemoryMetrics) Start(poolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolName = poolName
	m.startTime = time.Now()
}

func (m *InMemoryMetrics) Stop() {
	if m.log == nil {
		return
	}
	s := m.Snapshot()
	m.log.InfoContext(context.Background(), "worker pool metrics",
		"pool", m.poolName,
		"jobs_completed", s.JobsCompleted,
		"jobs_failed", s.JobsFailed,
		"worker_panics", s.WorkerPanics,
		"retry_attempts", s.RetryAttempts,
		"max_duration", s.MaxDuration,
		"uptime", s.Uptime)
}

func (m *InMemoryMetrics) WorkerStarted() { m.workersActive.Add(1) }
func (m *InMemoryMetrics) WorkerStopped() { m.workersActive.Add(-1) }
func (m *InMemoryMetrics) WorkerPanic()   { m.workerPanics.Add(1) }
func (m *InMemoryMetrics) JobCheckedOut() { m.jobsCheckedOut.Add(1) }
func (m *InMemoryMetrics) CheckoutError() { m.checkoutErrors.Add(1) }
func (m *InMemoryMetrics) RetryAttempt()  { m.retryAttempts.Add(1) }

func (m *InMemoryMetrics) JobCompleted(d time.Duration) {
	m.jobsCompleted.Add(1)
	m.observe(d)
}

func (m *InMemoryMetrics) JobFailed(d time.Duration) {
	m.jobsFailed.Add(1)
	m.observe(d)
}

func (m *InMemoryMetrics) observe(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > m.maxDuration {
		m.maxDuration = d
	}
}

func (m *InMemoryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	maxDuration := m.maxDuration
	var uptime time.Duration
	if !m.startTime.IsZero() {
		uptime = time.Since(m.startTime)
	}
	m.mu.Unlock()

	return Snapshot{
		WorkersActive:  m.workersActive.Load(),
		WorkerPanics:   m.workerPanics.Load(),
		JobsCheckedOut: m.jobsCheckedOut.Load(),
		JobsCompleted:  m.jobsCompleted.Load(),
		JobsFailed:     m.jobsFailed.Load(),
		CheckoutErrors: m.checkoutErrors.Load(),
		RetryAttempts:  m.retryAttempts.Load(),
		MaxDuration:    maxDuration,
		Uptime:         uptime,
	}
}
