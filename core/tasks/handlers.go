package tasks

import (
	"context"
	"fmt"

	"github.com/jrazmi/habitsync/core/eventbus"
	"github.com/jrazmi/habitsync/core/model"
)

// Subscribe wires the synchronizer to the bus. Command events emitted by
// the core itself are ignored, since those are notifications of changes
// already applied. The returned function removes every subscription.
func (s *Synchronizer) Subscribe() func() {
	offs := []func(){
		s.bus.On(eventbus.TaskCreate, commandHandler(s.onCreate)),
		s.bus.On(eventbus.TaskUpdate, commandHandler(s.onUpdate)),
		s.bus.On(eventbus.TaskDelete, commandHandler(s.onDelete)),
		s.bus.On(eventbus.TaskComplete, commandHandler(s.onComplete)),
		s.bus.On(eventbus.TaskDismiss, commandHandler(s.onDismiss)),
		s.bus.On(eventbus.HabitSchedule, commandHandler(s.onSchedule)),
		s.bus.On(eventbus.ForceTaskUpdate, eventbus.Handle(s.onReload)),
		s.bus.On(eventbus.TimerComplete, commandHandler(s.onTimerComplete)),
		s.bus.On(eventbus.JournalSaved, commandHandler(s.onJournalSaved)),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func commandHandler[P any](fn func(ctx context.Context, p P) error) eventbus.Handler {
	return eventbus.Handle(func(ctx context.Context, p P, ev eventbus.Event) error {
		if ev.Source == eventbus.SourceCore {
			return nil
		}
		return fn(ctx, p)
	})
}

func (s *Synchronizer) onCreate(ctx context.Context, p eventbus.TaskCreated) error {
	_, err := s.CreateTask(ctx, p.Task)
	return err
}

func (s *Synchronizer) onUpdate(ctx context.Context, p eventbus.TaskUpdated) error {
	if _, ok := s.UpdateTask(ctx, p.TaskID, p.Patch); !ok {
		return fmt.Errorf("update %s: %w", p.TaskID, model.ErrNotFound)
	}
	return nil
}

func (s *Synchronizer) onDelete(ctx context.Context, p eventbus.TaskDeleted) error {
	if !s.DeleteTask(ctx, p.TaskID, p.Reason) {
		return fmt.Errorf("delete %s: %w", p.TaskID, model.ErrNotFound)
	}
	return nil
}

func (s *Synchronizer) onComplete(ctx context.Context, p eventbus.TaskCompleted) error {
	if _, ok := s.CompleteTask(ctx, p.TaskID, p.Metrics); !ok {
		return fmt.Errorf("complete %s: %w", p.TaskID, model.ErrNotFound)
	}
	return nil
}

func (s *Synchronizer) onDismiss(ctx context.Context, p eventbus.DismissRequest) error {
	return s.DismissTask(ctx, p.HabitID, p.Date)
}

func (s *Synchronizer) onSchedule(ctx context.Context, p model.SchedulingEvent) error {
	_, _, err := s.ReconcileHabitSchedule(ctx, p)
	return err
}

func (s *Synchronizer) onReload(ctx context.Context, p eventbus.ReloadRequest, ev eventbus.Event) error {
	s.log.InfoContext(ctx, "reloading tasks from storage", "reason", p.Reason, "source", ev.Source)
	s.Load(ctx)
	return nil
}

func (s *Synchronizer) onTimerComplete(ctx context.Context, p eventbus.TimerCompleted) error {
	m := p.Metrics
	if _, ok := s.CompleteTask(ctx, p.TaskID, &m); !ok {
		return fmt.Errorf("timer complete %s: %w", p.TaskID, model.ErrNotFound)
	}
	return nil
}

// onJournalSaved completes the journal task an entry was written for. The
// task is found by id, or by (habitId, date) when the id is missing.
// Entries that belong to no task are ignored.
func (s *Synchronizer) onJournalSaved(ctx context.Context, entry eventbus.JournalEntry) error {
	taskID := entry.TaskID
	if taskID == "" && entry.HabitID != "" && entry.Date != "" {
		if t, ok := s.FindHabitTask(entry.HabitID, entry.Date); ok {
			taskID = t.ID
		}
	}
	if taskID == "" {
		return nil
	}
	if _, ok := s.CompleteTask(ctx, taskID, nil); !ok {
		return fmt.Errorf("journal complete %s: %w", taskID, model.ErrNotFound)
	}
	return nil
}
