// Package rollover detects calendar day changes and resets habit task
// completion when one happens.
package rollover

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/jrazmi/habitsync/sdk/validation"
)

type State int

const (
	Stale State = iota
	Current
)

func (s State) String() string {
	if s == Current {
		return "current"
	}
	return "stale"
}

// Resetter clears completion on habit-derived tasks.
type Resetter interface {
	ResetHabitCompletion(ctx context.Context) int
}

type Manager struct {
	log      *logger.Logger
	bus      *eventbus.Bus
	store    *kvstore.Store
	resetter Resetter
	clock    clock.Clock

	mu       sync.Mutex
	lastSync string
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func New(log *logger.Logger, bus *eventbus.Bus, store *kvstore.Store, resetter Resetter, opts ...Option) *Manager {
	m := &Manager{
		log:      log,
		bus:      bus,
		store:    store,
		resetter: resetter,
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Today is the current day in the canonical date format.
func (m *Manager) Today() string {
	return validation.DayOf(m.clock.Now())
}

// State reports whether the last sync happened today, along with the last
// sync date ("" before the first sync).
func (m *Manager) State(ctx context.Context) (State, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, err := m.lastSyncLocked(ctx)
	if err != nil {
		return Stale, "", err
	}
	if last != "" && last >= validation.DayOf(m.clock.Now()) {
		return Current, last, nil
	}
	return Stale, last, nil
}

// Check performs the Stale to Current transition if the day changed since
// the last sync: habit tasks are reset, the sync date is advanced, and
// day:rollover is emitted so the scheduler can backfill. It reports
// whether a transition happened. Calls while Current do nothing.
func (m *Manager) Check(ctx context.Context) (bool, error) {
	m.mu.Lock()
	today := validation.DayOf(m.clock.Now())

	last, err := m.lastSyncLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	if last == today {
		m.mu.Unlock()
		return false, nil
	}
	if last > today {
		m.mu.Unlock()
		m.log.WarnContext(ctx, "last sync date is in the future, skipping rollover", "last_sync", last, "date", today)
		return false, nil
	}

	reset := m.resetter.ResetHabitCompletion(ctx)
	m.lastSync = today
	saved := kvstore.Save(ctx, m.store, m.store.Keys().LastSyncDate, today)
	m.mu.Unlock()

	m.log.InfoContext(ctx, "day rollover", "from", last, "to", today, "reset", reset)
	m.bus.Emit(ctx, eventbus.NewDayRolledOver(last, today, reset))

	if !saved {
		return true, model.StorageError("save last sync date", kvstore.ErrWriteFailed)
	}
	return true, nil
}

// lastSyncLocked returns the cached last sync date, reading storage the
// first time.
func (m *Manager) lastSyncLocked(ctx context.Context) (string, error) {
	if m.lastSync != "" {
		return m.lastSync, nil
	}
	key := m.store.Keys().LastSyncDate
	raw, err := kvstore.Read(ctx, m.store, key, "")
	var failure kvstore.Failure
	switch {
	case errors.As(err, &failure) && failure.Op == "decode":
		// older clients wrote the date unquoted or in a display format
		b, _ := m.store.Raw(ctx, key)
		raw = strings.Trim(strings.TrimSpace(string(b)), `"`)
	case err != nil:
		return "", model.StorageError("read last sync date", err)
	}
	if raw == "" {
		return "", nil
	}
	day, err := validation.NormalizeDay(raw)
	if err != nil {
		m.log.WarnContext(ctx, "unreadable last sync date, treating as first run", "value", raw)
		return "", nil
	}
	m.lastSync = day
	return day, nil
}
