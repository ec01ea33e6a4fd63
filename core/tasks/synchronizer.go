// Package tasks owns the authoritative task list. It applies task
// lifecycle commands, turns habit scheduling requests into at most one task
// per habit per day, and mirrors every accepted change to storage.
package tasks

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/core/guard"
	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
	"github.com/jrazmi/habitsync/sdk/validation"
)

// Options holds the tunables the application config exposes.
type Options struct {
	DefaultDuration int           `mapstructure:"default_duration" env:"DEFAULT_DURATION" default:"1500"`
	InFlightTimeout time.Duration `mapstructure:"inflight_timeout" env:"INFLIGHT_TIMEOUT" default:"5s"`
	VerifyDelay     time.Duration `mapstructure:"verify_delay" env:"VERIFY_DELAY" default:"500ms"`
}

type Synchronizer struct {
	log   *logger.Logger
	bus   *eventbus.Bus
	store *kvstore.Store
	guard *guard.Guard
	clock clock.Clock

	defaultDuration int
	inFlightTimeout time.Duration
	verifyDelay     time.Duration

	mu        sync.Mutex
	active    []model.Task
	completed []model.Task
	dismissed map[string]time.Time // habitId-date -> dismissedAt

	verifyMu     sync.Mutex
	verifyTimers map[string]*time.Timer
	verifyWG     sync.WaitGroup
}

type Option func(*Synchronizer)

func WithClock(c clock.Clock) Option {
	return func(s *Synchronizer) {
		s.clock = c
	}
}

func WithGuard(g *guard.Guard) Option {
	return func(s *Synchronizer) {
		s.guard = g
	}
}

func WithOptions(o Options) Option {
	return func(s *Synchronizer) {
		if o.DefaultDuration > 0 {
			s.defaultDuration = o.DefaultDuration
		}
		if o.InFlightTimeout > 0 {
			s.inFlightTimeout = o.InFlightTimeout
		}
		s.verifyDelay = o.VerifyDelay
	}
}

func New(log *logger.Logger, bus *eventbus.Bus, store *kvstore.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		log:             log,
		bus:             bus,
		store:           store,
		clock:           clock.Real{},
		defaultDuration: model.DefaultHabitDuration,
		inFlightTimeout: 5 * time.Second,
		verifyDelay:     500 * time.Millisecond,
		dismissed:       make(map[string]time.Time),
		verifyTimers:    make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = guard.New(guard.WithClock(s.clock))
	}
	return s
}

func (s *Synchronizer) today() string {
	return validation.DayOf(s.clock.Now())
}

// Load replaces the in-memory state with what storage holds. Dismissals
// for days other than today are discarded, and duplicate derived tasks
// left behind by earlier sessions are collapsed.
func (s *Synchronizer) Load(ctx context.Context) {
	keys := s.store.Keys()
	active := kvstore.Load(ctx, s.store, keys.Tasks, []model.Task{})
	completed := kvstore.Load(ctx, s.store, keys.CompletedTasks, []model.Task{})
	dismissed := kvstore.Load(ctx, s.store, keys.Dismissed, map[string]time.Time{})
	if dismissed == nil {
		dismissed = map[string]time.Time{}
	}

	today := s.today()
	pruned := 0
	for k := range dismissed {
		if !strings.HasSuffix(k, "-"+today) {
			delete(dismissed, k)
			pruned++
		}
	}

	seen := make(map[string]bool)
	active, dupActive := dedupeHabitTasks(active, seen)
	completed, dupCompleted := dedupeHabitTasks(completed, seen)

	s.mu.Lock()
	s.active = active
	s.completed = completed
	s.dismissed = dismissed
	if pruned > 0 {
		kvstore.Save(ctx, s.store, keys.Dismissed, s.dismissed)
	}
	if dupActive > 0 {
		kvstore.Save(ctx, s.store, keys.Tasks, s.active)
	}
	if dupCompleted > 0 {
		kvstore.Save(ctx, s.store, keys.CompletedTasks, s.completed)
	}
	s.mu.Unlock()

	s.log.InfoContext(ctx, "tasks loaded",
		"active", len(active),
		"completed", len(completed),
		"dismissals", len(dismissed),
		"dismissals_pruned", pruned,
		"duplicates_removed", dupActive+dupCompleted)
}

// dedupeHabitTasks keeps the first task for each (habitId, date) across
// calls sharing seen.
func dedupeHabitTasks(list []model.Task, seen map[string]bool) ([]model.Task, int) {
	if list == nil {
		return []model.Task{}, 0
	}
	out := list[:0]
	removed := 0
	for _, t := range list {
		if t.IsHabitTask() {
			key := model.DismissalKey(t.Relationships.HabitID, t.Relationships.Date)
			if seen[key] {
				removed++
				continue
			}
			seen[key] = true
		}
		out = append(out, t)
	}
	return out, removed
}

// Tasks returns a copy of the active tasks.
func (s *Synchronizer) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.active)
}

// CompletedTasks returns a copy of the completed tasks.
func (s *Synchronizer) CompletedTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.completed)
}

// FindHabitTask returns the live task derived from habitID on date.
func (s *Synchronizer) FindHabitTask(habitID, date string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _, ok := s.findHabitTaskLocked(habitID, date)
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// IsDismissed reports whether habitID was dismissed for date.
func (s *Synchronizer) IsDismissed(habitID, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dismissed[model.DismissalKey(habitID, date)]
	return ok
}

// Dismissals lists the current dismissal keys in sorted order.
func (s *Synchronizer) Dismissals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dismissed))
	for k := range s.dismissed {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

type location int

const (
	inActive location = iota + 1
	inCompleted
)

func (s *Synchronizer) findLocked(id string) (int, location) {
	if i := slices.IndexFunc(s.active, func(t model.Task) bool { return t.ID == id }); i >= 0 {
		return i, inActive
	}
	if i := slices.IndexFunc(s.completed, func(t model.Task) bool { return t.ID == id }); i >= 0 {
		return i, inCompleted
	}
	return -1, 0
}

func (s *Synchronizer) findHabitTaskLocked(habitID, date string) (model.Task, location, bool) {
	match := func(t model.Task) bool { return t.MatchesHabit(habitID, date) }
	if i := slices.IndexFunc(s.active, match); i >= 0 {
		return s.active[i], inActive, true
	}
	if i := slices.IndexFunc(s.completed, match); i >= 0 {
		return s.completed[i], inCompleted, true
	}
	return model.Task{}, 0, false
}

func (s *Synchronizer) saveActiveLocked(ctx context.Context) bool {
	return kvstore.Save(ctx, s.store, s.store.Keys().Tasks, s.active)
}

func (s *Synchronizer) saveCompletedLocked(ctx context.Context) bool {
	return kvstore.Save(ctx, s.store, s.store.Keys().CompletedTasks, s.completed)
}

func (s *Synchronizer) saveDismissedLocked(ctx context.Context) bool {
	return kvstore.Save(ctx, s.store, s.store.Keys().Dismissed, s.dismissed)
}

// emit publishes notifications. It must be called without s.mu held so
// handlers can query the synchronizer.
func (s *Synchronizer) emit(ctx context.Context, events ...eventbus.Event) {
	for _, ev := range events {
		s.bus.Emit(ctx, ev)
	}
}

func cloneAll(list []model.Task) []model.Task {
	out := make([]model.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	return out
}
