package tasks

import (
	"context"
	"slices"

	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/validation"
)

// CreateTask adds input to the active list. A missing id or creation time
// is filled in and an empty type becomes regular. Creating a derived task
// for a (habitId, date) that already has one returns the existing task.
func (s *Synchronizer) CreateTask(ctx context.Context, input model.Task) (model.Task, error) {
	t := input.Clone()
	if t.ID == "" {
		t.ID = model.NewTaskID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.clock.Now()
	}
	if t.TaskType == "" {
		t.TaskType = model.TaskTypeRegular
	}
	if t.Relationships != nil && t.Relationships.Date != "" {
		day, err := validation.NormalizeDay(t.Relationships.Date)
		if err != nil {
			return model.Task{}, model.ValidationError("relationships.date", err.Error())
		}
		t.Relationships.Date = day
	}
	if err := t.Validate(); err != nil {
		s.log.WarnContext(ctx, "rejected task", "task_id", t.ID, "error", err)
		return model.Task{}, err
	}

	s.mu.Lock()
	if i, _ := s.findLocked(t.ID); i >= 0 {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "task id already exists", "task_id", t.ID)
		return model.Task{}, model.ValidationError("id", "already exists")
	}
	if t.IsHabitTask() {
		if existing, _, ok := s.findHabitTaskLocked(t.Relationships.HabitID, t.Relationships.Date); ok {
			s.mu.Unlock()
			s.log.DebugContext(ctx, "coalesced duplicate habit task",
				"habit_id", t.Relationships.HabitID,
				"date", t.Relationships.Date,
				"task_id", existing.ID)
			return existing.Clone(), nil
		}
	}
	s.active = append(s.active, t)
	s.saveActiveLocked(ctx)
	s.mu.Unlock()

	s.log.InfoContext(ctx, "task created", "task_id", t.ID, "task_type", t.TaskType)
	s.emit(ctx, eventbus.NewTaskCreated(eventbus.SourceCore, t.Clone()))
	return t.Clone(), nil
}

// UpdateTask merges patch into the task. It returns false when the task is
// unknown or the patch is invalid; both are logged.
func (s *Synchronizer) UpdateTask(ctx context.Context, taskID string, patch model.TaskPatch) (model.Task, bool) {
	s.mu.Lock()
	i, loc := s.findLocked(taskID)
	if i < 0 {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "update for unknown task", "task_id", taskID)
		return model.Task{}, false
	}

	list := s.listLocked(loc)
	updated, err := patch.Apply((*list)[i])
	if err != nil {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "rejected task update", "task_id", taskID, "error", err)
		return model.Task{}, false
	}
	(*list)[i] = updated
	s.saveLocked(ctx, loc)
	s.mu.Unlock()

	s.emit(ctx, eventbus.NewTaskUpdated(eventbus.SourceCore, taskID, patch, updated.Clone()))
	return updated.Clone(), true
}

// CompleteTask moves an active task to the completed list and attaches
// metrics. Completing an already completed task returns it unchanged.
func (s *Synchronizer) CompleteTask(ctx context.Context, taskID string, metrics *model.TaskMetrics) (model.Task, bool) {
	s.mu.Lock()
	i, loc := s.findLocked(taskID)
	switch loc {
	case 0:
		s.mu.Unlock()
		s.log.WarnContext(ctx, "complete for unknown task", "task_id", taskID)
		return model.Task{}, false
	case inCompleted:
		t := s.completed[i].Clone()
		s.mu.Unlock()
		s.log.DebugContext(ctx, "task already completed", "task_id", taskID)
		return t, true
	}

	t := s.active[i].Clone()
	if t.DismissedAt != nil {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "complete for dismissed task", "task_id", taskID)
		return model.Task{}, false
	}
	now := s.clock.Now()
	t.Completed = true
	t.CompletedAt = &now
	if metrics != nil {
		m := *metrics
		t.Metrics = &m
	}

	s.active = slices.Delete(s.active, i, i+1)
	s.completed = append(s.completed, t)
	s.saveActiveLocked(ctx)
	s.saveCompletedLocked(ctx)
	s.mu.Unlock()

	s.log.InfoContext(ctx, "task completed", "task_id", taskID)
	s.emit(ctx, eventbus.NewTaskCompleted(eventbus.SourceCore, taskID, t.Metrics, t.Clone()))
	return t.Clone(), true
}

// DeleteTask removes the task from every collection. It returns false when
// the task is unknown.
func (s *Synchronizer) DeleteTask(ctx context.Context, taskID, reason string) bool {
	s.mu.Lock()
	i, loc := s.findLocked(taskID)
	if i < 0 {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "delete for unknown task", "task_id", taskID)
		return false
	}
	list := s.listLocked(loc)
	*list = slices.Delete(*list, i, i+1)
	s.saveLocked(ctx, loc)
	s.mu.Unlock()

	s.cancelVerify(taskID)
	s.log.InfoContext(ctx, "task deleted", "task_id", taskID, "reason", reason)
	s.emit(ctx, eventbus.NewTaskDeleted(eventbus.SourceCore, taskID, reason))
	return true
}

// DismissTask records that habitID is skipped on date and removes its
// derived task, if any. Later scheduling requests for the pair create
// nothing.
func (s *Synchronizer) DismissTask(ctx context.Context, habitID, date string) error {
	if missing := validation.MissingFields("habitId", habitID, "date", date); len(missing) > 0 {
		return model.ValidationError(missing[0], "required")
	}
	day, err := validation.NormalizeDay(date)
	if err != nil {
		return model.ValidationError("date", err.Error())
	}

	s.mu.Lock()
	s.dismissed[model.DismissalKey(habitID, day)] = s.clock.Now()
	s.saveDismissedLocked(ctx)

	var removedID string
	if t, loc, ok := s.findHabitTaskLocked(habitID, day); ok {
		removedID = t.ID
		list := s.listLocked(loc)
		*list = slices.DeleteFunc(*list, func(x model.Task) bool { return x.ID == t.ID })
		s.saveLocked(ctx, loc)
	}
	s.mu.Unlock()

	if removedID != "" {
		s.cancelVerify(removedID)
	}
	s.log.InfoContext(ctx, "habit dismissed", "habit_id", habitID, "date", day, "task_id", removedID)
	s.emit(ctx, eventbus.NewHabitDismissed(habitID, day, removedID))
	return nil
}

// ResetHabitCompletion marks every derived task incomplete and returns how
// many changed. Completed derived tasks return to the active list; plain
// tasks are untouched.
func (s *Synchronizer) ResetHabitCompletion(ctx context.Context) int {
	s.mu.Lock()
	reset := 0
	for i := range s.active {
		t := &s.active[i]
		if t.IsHabitTask() && (t.Completed || t.CompletedAt != nil) {
			t.Completed = false
			t.CompletedAt = nil
			reset++
		}
	}
	kept := s.completed[:0]
	for _, t := range s.completed {
		if t.IsHabitTask() {
			t.Completed = false
			t.CompletedAt = nil
			s.active = append(s.active, t)
			reset++
			continue
		}
		kept = append(kept, t)
	}
	s.completed = kept
	if reset > 0 {
		s.saveActiveLocked(ctx)
		s.saveCompletedLocked(ctx)
	}
	s.mu.Unlock()

	s.log.InfoContext(ctx, "habit completion reset", "count", reset)
	return reset
}

func (s *Synchronizer) listLocked(loc location) *[]model.Task {
	if loc == inCompleted {
		return &s.completed
	}
	return &s.active
}

func (s *Synchronizer) saveLocked(ctx context.Context, loc location) bool {
	if loc == inCompleted {
		return s.saveCompletedLocked(ctx)
	}
	return s.saveActiveLocked(ctx)
}
