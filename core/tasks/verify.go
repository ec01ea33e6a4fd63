package tasks

import (
	"context"
	"slices"
	"time"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/model"
)

// scheduleVerify re-checks storage for taskID once the write has had
// verifyDelay to settle.
func (s *Synchronizer) scheduleVerify(ctx context.Context, taskID string) {
	if s.verifyDelay <= 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.verifyMu.Lock()
	defer s.verifyMu.Unlock()
	if _, ok := s.verifyTimers[taskID]; ok {
		return
	}
	s.verifyWG.Add(1)
	s.verifyTimers[taskID] = time.AfterFunc(s.verifyDelay, func() {
		defer s.verifyWG.Done()
		s.verifyMu.Lock()
		delete(s.verifyTimers, taskID)
		s.verifyMu.Unlock()
		s.verifyTask(ctx, taskID)
	})
}

func (s *Synchronizer) cancelVerify(taskID string) {
	s.verifyMu.Lock()
	defer s.verifyMu.Unlock()
	if t, ok := s.verifyTimers[taskID]; ok && t.Stop() {
		delete(s.verifyTimers, taskID)
		s.verifyWG.Done()
	}
}

// Close stops pending verifications and waits for running ones.
func (s *Synchronizer) Close() {
	s.verifyMu.Lock()
	for id, t := range s.verifyTimers {
		if t.Stop() {
			delete(s.verifyTimers, id)
			s.verifyWG.Done()
		}
	}
	s.verifyMu.Unlock()
	s.verifyWG.Wait()
}

func (s *Synchronizer) verifyTask(ctx context.Context, taskID string) {
	s.mu.Lock()
	_, loc := s.findLocked(taskID)
	s.mu.Unlock()
	if loc == 0 {
		return
	}

	key := s.store.Keys().Tasks
	if loc == inCompleted {
		key = s.store.Keys().CompletedTasks
	}
	stored, err := kvstore.Read(ctx, s.store, key, []model.Task{})
	if err != nil {
		s.log.WarnContext(ctx, "verification read failed", "task_id", taskID, "error", err)
		return
	}
	if slices.ContainsFunc(stored, func(t model.Task) bool { return t.ID == taskID }) {
		return
	}

	s.mu.Lock()
	ok := s.saveLocked(ctx, loc)
	s.mu.Unlock()
	s.log.WarnContext(ctx, "storage drift repaired", "task_id", taskID, "rewritten", ok)
}

// VerifyStorage compares both task collections with storage and rewrites
// any collection whose stored ids differ from memory. It returns the
// number of collections rewritten.
func (s *Synchronizer) VerifyStorage(ctx context.Context) (int, error) {
	keys := s.store.Keys()
	repaired := 0
	for _, c := range []struct {
		key string
		loc location
	}{{keys.Tasks, inActive}, {keys.CompletedTasks, inCompleted}} {
		stored, err := kvstore.Read(ctx, s.store, c.key, []model.Task{})
		if err != nil {
			return repaired, model.StorageError("verify "+c.key, err)
		}

		s.mu.Lock()
		if !sameIDs(*s.listLocked(c.loc), stored) {
			if !s.saveLocked(ctx, c.loc) {
				s.mu.Unlock()
				return repaired, model.StorageError("repair "+c.key, kvstore.ErrWriteFailed)
			}
			repaired++
			s.log.WarnContext(ctx, "storage drift repaired", "key", c.key)
		}
		s.mu.Unlock()
	}
	return repaired, nil
}

func sameIDs(a, b []model.Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
