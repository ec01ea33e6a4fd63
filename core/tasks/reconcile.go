package tasks

import (
	"context"
	"slices"

	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/model"
)

// Outcome says how a scheduling request was resolved.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeCreated
	OutcomeExisting
	OutcomeDismissed
	OutcomeInFlight
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExisting:
		return "existing"
	case OutcomeDismissed:
		return "dismissed"
	case OutcomeInFlight:
		return "in-flight"
	default:
		return "rejected"
	}
}

// ReconcileHabitSchedule turns a scheduling request into the single task
// for its (habitId, date):
//
//  1. a request whose pair is already being reconciled is coalesced into
//     the existing task, if one is known;
//  2. a dismissed pair yields nothing;
//  3. an existing live task, in memory or in storage, is re-announced and
//     returned;
//  4. otherwise a new task is created, persisted and announced.
//
// Validation and storage failures return OutcomeRejected with an error and
// leave the in-memory lists as they were. Coalesced duplicates are not
// errors.
func (s *Synchronizer) ReconcileHabitSchedule(ctx context.Context, req model.SchedulingEvent) (model.Task, Outcome, error) {
	ev, err := req.Normalize(s.defaultDuration)
	if err != nil {
		s.log.WarnContext(ctx, "rejected scheduling request", "habit_id", req.HabitID, "date", req.Date, "error", err)
		return model.Task{}, OutcomeRejected, err
	}
	log := s.log.With("habit_id", ev.HabitID, "date", ev.Date)

	// (1)
	release, ok := s.guard.MarkInFlight(ev.Key(), s.inFlightTimeout)
	if !ok {
		existing, found := s.FindHabitTask(ev.HabitID, ev.Date)
		log.DebugContext(ctx, "coalesced in-flight scheduling request", "found", found)
		return existing, OutcomeInFlight, nil
	}
	defer release()

	// (2)
	if s.IsDismissed(ev.HabitID, ev.Date) {
		log.DebugContext(ctx, "habit dismissed, not scheduling")
		return model.Task{}, OutcomeDismissed, nil
	}

	// (3)
	existing, found, err := s.existingHabitTask(ctx, ev.HabitID, ev.Date)
	if err != nil {
		log.ErrorContext(ctx, "failed to schedule", "error", err)
		return model.Task{}, OutcomeRejected, err
	}
	if found {
		log.DebugContext(ctx, "habit task already exists", "task_id", existing.ID)
		s.emit(ctx, eventbus.NewTaskCreated(eventbus.SourceCore, existing))
		return existing, OutcomeExisting, nil
	}

	// (4)
	t := model.Task{
		ID:        model.NewTaskID(),
		Name:      ev.Name,
		Duration:  ev.Duration,
		CreatedAt: s.clock.Now(),
		TaskType:  model.TaskTypeForMetric(ev.MetricType),
		Relationships: &model.Relationships{
			HabitID:    ev.HabitID,
			TemplateID: ev.TemplateID,
			Date:       ev.Date,
		},
	}

	// steps 2 and 3 ran unlocked; a dismissal or a create may have landed since
	s.mu.Lock()
	if _, ok := s.dismissed[ev.Key()]; ok {
		s.mu.Unlock()
		log.DebugContext(ctx, "habit dismissed during scheduling, not creating")
		return model.Task{}, OutcomeDismissed, nil
	}
	if existing, _, ok := s.findHabitTaskLocked(ev.HabitID, ev.Date); ok {
		s.mu.Unlock()
		log.DebugContext(ctx, "habit task created during scheduling", "task_id", existing.ID)
		return existing.Clone(), OutcomeExisting, nil
	}
	s.active = append(s.active, t)
	if !s.saveActiveLocked(ctx) {
		s.active = slices.DeleteFunc(s.active, func(x model.Task) bool { return x.ID == t.ID })
		s.mu.Unlock()
		err := model.StorageError("schedule habit", kvstore.ErrWriteFailed)
		log.ErrorContext(ctx, "failed to schedule", "error", err)
		return model.Task{}, OutcomeRejected, err
	}
	s.mu.Unlock()

	log.InfoContext(ctx, "habit task created", "task_id", t.ID, "task_type", t.TaskType)
	s.emit(ctx, eventbus.NewTaskCreated(eventbus.SourceCore, t.Clone()))
	s.scheduleVerify(ctx, t.ID)
	return t.Clone(), OutcomeCreated, nil
}

// existingHabitTask looks for a live task for the pair, first in memory
// and then in storage. A task found only in storage is adopted into the
// in-memory lists.
func (s *Synchronizer) existingHabitTask(ctx context.Context, habitID, date string) (model.Task, bool, error) {
	if t, ok := s.FindHabitTask(habitID, date); ok {
		return t, true, nil
	}

	keys := s.store.Keys()
	stored, err := kvstore.Read(ctx, s.store, keys.Tasks, []model.Task{})
	if err != nil {
		return model.Task{}, false, model.StorageError("read tasks", err)
	}
	storedDone, err := kvstore.Read(ctx, s.store, keys.CompletedTasks, []model.Task{})
	if err != nil {
		return model.Task{}, false, model.StorageError("read completed tasks", err)
	}

	match := func(t model.Task) bool { return t.MatchesHabit(habitID, date) }
	loc := inActive
	i := slices.IndexFunc(stored, match)
	if i < 0 {
		loc = inCompleted
		stored = storedDone
		i = slices.IndexFunc(stored, match)
	}
	if i < 0 {
		return model.Task{}, false, nil
	}

	found := stored[i]
	s.mu.Lock()
	if t, _, ok := s.findHabitTaskLocked(habitID, date); ok {
		found = t
	} else {
		list := s.listLocked(loc)
		*list = append(*list, found)
	}
	s.mu.Unlock()

	s.log.WarnContext(ctx, "adopted habit task found only in storage", "habit_id", habitID, "date", date, "task_id", found.ID)
	return found.Clone(), true, nil
}
