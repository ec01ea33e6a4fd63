// Package kvmemstore keeps values in process memory. It backs tests and
// ephemeral runs.
package kvmemstore

import (
	"context"
	"slices"
	"sync"

	"github.com/jrazmi/habitsync/core/kvstore"
)

type Store struct {
	mu     sync.RWMutex
	values map[string][]byte

	readErr  error
	writeErr error
}

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Fail makes subsequent reads and writes return the given errors. Pass nil
// to restore normal behaviour.
func (s *Store) Fail(readErr, writeErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = readErr
	s.writeErr = writeErr
}

// Corrupt stores raw bytes under key, bypassing encoding.
func (s *Store) Corrupt(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = slices.Clone(raw)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	v, ok := s.values[key]
	if !ok {
		return nil, kvstore.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.values[key] = slices.Clone(value)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.values[key]; !ok {
		return kvstore.ErrKeyNotFound
	}
	delete(s.values, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
