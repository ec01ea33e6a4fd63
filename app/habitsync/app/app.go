// Package app is the habitsync composition root. It builds every core
// component once and wires their bus subscriptions.
package app

import (
	"context"
	"fmt"

	"github.com/jrazmi/habitsync/app/habitsync/config"
	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/core/guard"
	"github.com/jrazmi/habitsync/core/habits"
	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvfilestore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvmemstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvpgxstore"
	"github.com/jrazmi/habitsync/core/kvstore/stores/kvsqlitestore"
	"github.com/jrazmi/habitsync/core/rollover"
	"github.com/jrazmi/habitsync/core/syncjobs"
	"github.com/jrazmi/habitsync/core/tasks"
	"github.com/jrazmi/habitsync/infrastructure/postgresdb"
	"github.com/jrazmi/habitsync/infrastructure/sqlitedb"
	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
)

type App struct {
	Config   config.Config
	Clock    clock.Clock
	Log      *logger.Logger
	Bus      *eventbus.Bus
	Store    *kvstore.Store
	Guard    *guard.Guard
	Tasks    *tasks.Synchronizer
	Habits   *habits.Scheduler
	Rollover *rollover.Manager
	Jobs     *syncjobs.Processor

	closers []func()
}

type options struct {
	clock  clock.Clock
	storer kvstore.Storer
}

type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithStorer bypasses the configured backend.
func WithStorer(s kvstore.Storer) Option {
	return func(o *options) {
		o.storer = s
	}
}

func New(ctx context.Context, cfg config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := &options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, Clock: o.clock, Log: log}

	storer := o.storer
	if storer == nil {
		var err error
		if storer, err = a.openStorer(ctx, cfg.Store); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Store = kvstore.NewStore(log.With("component", "kvstore"), storer, kvstore.WithKeys(cfg.Store.Keys))
	a.Bus = eventbus.NewBus(log.With("component", "eventbus"), eventbus.WithClock(o.clock))
	a.Guard = guard.New(guard.WithClock(o.clock))

	a.Tasks = tasks.New(log.With("component", "tasks"), a.Bus, a.Store,
		tasks.WithClock(o.clock),
		tasks.WithGuard(a.Guard),
		tasks.WithOptions(cfg.Core.Tasks),
	)
	a.Tasks.Load(ctx)
	a.closers = append(a.closers, a.Tasks.Subscribe(), a.Tasks.Close)

	a.Habits = habits.New(log.With("component", "habits"), a.Bus, a.Store,
		habits.WithClock(o.clock),
		habits.WithDismissals(a.Tasks),
		habits.WithTaskFinder(a.Tasks),
		habits.WithPendingDebounce(a.Guard, cfg.Core.DedupInterval),
	)
	a.closers = append(a.closers, a.Habits.Subscribe())

	a.Rollover = rollover.New(log.With("component", "rollover"), a.Bus, a.Store, a.Tasks, rollover.WithClock(o.clock))
	a.Jobs = syncjobs.New(log.With("component", "syncjobs"), a.Bus, a.Rollover, a.Tasks, cfg.Jobs.Intervals, syncjobs.WithClock(o.clock))

	return a, nil
}

func (a *App) openStorer(ctx context.Context, cfg config.Store) (kvstore.Storer, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return kvmemstore.New(), nil

	case config.BackendFile:
		s, err := kvfilestore.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return s, nil

	case config.BackendSQLite:
		db, err := sqlitedb.Open(ctx, cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		return kvsqlitestore.New(db), nil

	case config.BackendPostgres:
		pool, err := postgresdb.New(cfg.Postgres, postgresdb.WithLogger(a.Log))
		if err != nil {
			return nil, fmt.Errorf("configuring postgres support: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgresdb.Migrate(ctx, pool, a.Log); err != nil {
			return nil, fmt.Errorf("migrating postgres: %w", err)
		}
		return kvpgxstore.New(pool), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Startup brings the day up to date: a stale day rolls over, which
// backfills habits through the bus; a current day schedules directly.
func (a *App) Startup(ctx context.Context) error {
	moved, err := a.Rollover.Check(ctx)
	switch {
	case err != nil && !moved:
		return fmt.Errorf("rollover: %w", err)
	case err != nil:
		a.Log.WarnContext(ctx, "rollover performed but not persisted", "error", err)
	}
	if !moved {
		a.Habits.Run(ctx)
	}
	return nil
}

// Close unsubscribes handlers and releases the backend, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
