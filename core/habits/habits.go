// Package habits decides which habits are due on a day and requests one
// task per due habit.
package habits

import (
	"context"
	"fmt"
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

// DismissalChecker reports whether a habit was dismissed for a day.
type DismissalChecker interface {
	IsDismissed(habitID, date string) bool
}

type noDismissals struct{}

func (noDismissals) IsDismissed(string, string) bool { return false }

// TaskFinder looks up the live task derived from a habit on a day.
type TaskFinder interface {
	FindHabitTask(habitID, date string) (model.Task, bool)
}

type Scheduler struct {
	log        *logger.Logger
	bus        *eventbus.Bus
	store      *kvstore.Store
	clock      clock.Clock
	dismissals DismissalChecker
	tasks      TaskFinder

	guard           *guard.Guard
	pendingInterval time.Duration

	mu        sync.Mutex
	scheduled map[string]string // habitId+date -> date
}

type Option func(*Scheduler)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithDismissals(d DismissalChecker) Option {
	return func(s *Scheduler) {
		s.dismissals = d
	}
}

// WithTaskFinder makes Run confirm that each emitted request produced a
// task. Habits without one stay eligible for the next pass.
func WithTaskFinder(f TaskFinder) Option {
	return func(s *Scheduler) {
		s.tasks = f
	}
}

// WithPendingDebounce coalesces habit:check-pending signals arriving within
// interval of an accepted one.
func WithPendingDebounce(g *guard.Guard, interval time.Duration) Option {
	return func(s *Scheduler) {
		s.guard = g
		s.pendingInterval = interval
	}
}

func New(log *logger.Logger, bus *eventbus.Bus, store *kvstore.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		log:        log,
		bus:        bus,
		store:      store,
		clock:      clock.Real{},
		dismissals: noDismissals{},
		scheduled:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Due lists one scheduling request per habit due on day. A habit is due
// when its template's active days contain day's weekday. Disabled
// templates are ignored; malformed templates and habits are returned in
// skipped and left out.
func Due(templates []model.ActiveTemplate, day time.Time) (due []model.SchedulingEvent, skipped []error) {
	date := validation.DayOf(day)
	weekday := day.Weekday()
	seen := make(map[string]bool)

	for _, t := range templates {
		if !t.Enabled() {
			continue
		}
		if t.TemplateID == "" {
			skipped = append(skipped, model.ValidationError("templateId", "required"))
			continue
		}
		if !t.ActiveOn(weekday) {
			continue
		}
		for _, h := range t.Habits {
			if err := h.Validate(); err != nil {
				skipped = append(skipped, fmt.Errorf("template %s: %w", t.TemplateID, err))
				continue
			}
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			due = append(due, model.SchedulingEventFor(t, h, date))
		}
	}
	return due, skipped
}

// Run performs one scheduling pass for today and returns the requests it
// emitted. Habits already scheduled or dismissed today are skipped, so
// repeated passes on the same day emit nothing new. A request that fails,
// or that leaves no task behind when a TaskFinder is set, is forgotten so
// a later pass retries it.
func (s *Scheduler) Run(ctx context.Context) []model.SchedulingEvent {
	now := s.clock.Now()
	today := validation.DayOf(now)

	templates := s.Templates(ctx)
	due, skipped := Due(templates, now)
	for _, err := range skipped {
		s.log.WarnContext(ctx, "skipping malformed habit", "date", today, "error", err)
	}

	s.mu.Lock()
	for k, d := range s.scheduled {
		if d != today {
			delete(s.scheduled, k)
		}
	}
	pending := make([]model.SchedulingEvent, 0, len(due))
	for _, ev := range due {
		if _, ok := s.scheduled[ev.Key()]; ok {
			continue
		}
		if s.dismissals.IsDismissed(ev.HabitID, ev.Date) {
			s.log.DebugContext(ctx, "habit dismissed for today", "habit_id", ev.HabitID, "date", ev.Date)
			continue
		}
		s.scheduled[ev.Key()] = today
		pending = append(pending, ev)
	}
	s.mu.Unlock()

	emitted := make([]model.SchedulingEvent, 0, len(pending))
	for _, ev := range pending {
		if err := s.bus.Emit(ctx, eventbus.NewScheduleHabit(eventbus.SourceScheduler, ev)); err != nil {
			s.mu.Lock()
			delete(s.scheduled, ev.Key())
			s.mu.Unlock()
			continue
		}
		if s.tasks != nil && !s.taskExists(ev) {
			s.log.WarnContext(ctx, "habit task not created, will retry", "habit_id", ev.HabitID, "date", ev.Date)
			s.mu.Lock()
			delete(s.scheduled, ev.Key())
			s.mu.Unlock()
			continue
		}
		emitted = append(emitted, ev)
	}

	s.log.InfoContext(ctx, "scheduling pass",
		"date", today,
		"templates", len(templates),
		"due", len(due),
		"emitted", len(emitted))
	return emitted
}

// taskExists treats a dismissal during the pass as handled.
func (s *Scheduler) taskExists(ev model.SchedulingEvent) bool {
	if _, ok := s.tasks.FindHabitTask(ev.HabitID, ev.Date); ok {
		return true
	}
	return s.dismissals.IsDismissed(ev.HabitID, ev.Date)
}

// Scheduled reports whether habitID was requested for date during this
// session.
func (s *Scheduler) Scheduled(habitID, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scheduled[model.DismissalKey(habitID, date)]
	return ok
}

// Subscribe re-runs the scheduler on habit:check-pending and day:rollover.
// The returned function removes both subscriptions.
func (s *Scheduler) Subscribe() func() {
	offPending := s.bus.On(eventbus.HabitCheckPending, eventbus.Handle(
		func(ctx context.Context, p eventbus.CheckPending, ev eventbus.Event) error {
			if s.guard != nil && !s.guard.ShouldProcess(string(eventbus.HabitCheckPending), s.pendingInterval) {
				s.log.DebugContext(ctx, "coalesced check-pending signal", "reason", p.Reason)
				return nil
			}
			s.Run(ctx)
			return nil
		}))
	offRollover := s.bus.On(eventbus.DayRollover, eventbus.Handle(
		func(ctx context.Context, p eventbus.DayRolledOver, ev eventbus.Event) error {
			s.Run(ctx)
			return nil
		}))
	return func() {
		offPending()
		offRollover()
	}
}
