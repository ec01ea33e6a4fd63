// Package kvstore is the persistent store adapter: a narrow key/value view
// over whichever durable backend the host provides.
//
// Reads never fail from the caller's point of view. Absent, unreadable, or
// corrupt values yield the caller's default. Writes report success as a
// bool and push the failure onto Errors(); in-memory state stays
// authoritative for the session.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jrazmi/habitsync/core/model"
	"github.com/jrazmi/habitsync/sdk/logger"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrWriteFailed = errors.New("write failed")
)

// Storer is implemented by each backend under stores/.
type Storer interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Keys names the logical collections.
type Keys struct {
	Tasks          string `mapstructure:"tasks" env:"KEY_TASKS" default:"tasks"`
	CompletedTasks string `mapstructure:"completed_tasks" env:"KEY_COMPLETED_TASKS" default:"completed_tasks"`
	Templates      string `mapstructure:"templates" env:"KEY_TEMPLATES" default:"habit-templates"`
	Dismissed      string `mapstructure:"dismissed" env:"KEY_DISMISSED" default:"dismissedHabitTasks"`
	LastSyncDate   string `mapstructure:"last_sync_date" env:"KEY_LAST_SYNC_DATE" default:"lastSyncDate"`
}

func DefaultKeys() Keys {
	return Keys{
		Tasks:          "tasks",
		CompletedTasks: "completed_tasks",
		Templates:      "habit-templates",
		Dismissed:      "dismissedHabitTasks",
		LastSyncDate:   "lastSyncDate",
	}
}

// Failure describes a storage problem reported on the error channel.
type Failure struct {
	Op  string
	Key string
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %q: %v", f.Op, f.Key, f.Err)
}

func (f Failure) Unwrap() []error {
	return []error{model.ErrStorage, f.Err}
}

type Store struct {
	log    *logger.Logger
	storer Storer
	keys   Keys
	errs   chan Failure
}

type Option func(*Store)

func WithKeys(k Keys) Option {
	return func(s *Store) {
		s.keys = k
	}
}

// WithErrorBuffer sizes the error channel. Failures beyond the buffer are
// logged and dropped.
func WithErrorBuffer(n int) Option {
	return func(s *Store) {
		s.errs = make(chan Failure, n)
	}
}

func NewStore(log *logger.Logger, storer Storer, opts ...Option) *Store {
	s := &Store{
		log:    log,
		storer: storer,
		keys:   DefaultKeys(),
		errs:   make(chan Failure, 32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Keys() Keys {
	return s.keys
}

// Errors exposes write and read failures for observers.
func (s *Store) Errors() <-chan Failure {
	return s.errs
}

// Delete removes key. Missing keys are not failures.
func (s *Store) Delete(ctx context.Context, key string) bool {
	err := s.storer.Delete(ctx, key)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		s.report(ctx, Failure{Op: "delete", Key: key, Err: err})
		return false
	}
	return true
}

// Raw reads the stored bytes. The bool is false when the key is absent or
// the read failed; failures are reported.
func (s *Store) Raw(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.storer.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.report(ctx, Failure{Op: "read", Key: key, Err: err})
		}
		return nil, false
	}
	return b, true
}

func (s *Store) report(ctx context.Context, f Failure) {
	s.log.ErrorContext(ctx, "storage failure", "op", f.Op, "key", f.Key, "error", f.Err)
	select {
	case s.errs <- f:
	default:
		s.log.WarnContext(ctx, "storage error channel full, failure not delivered", "key", f.Key)
	}
}

// Load decodes the value stored under key, or returns def when the key is
// absent, unreadable, or holds data that does not decode into T.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	v, _ := Read(ctx, s, key, def)
	return v
}

// Read is Load for callers that must tell an absent key from a failure. An
// absent key yields def and a nil error; read and decode failures yield def
// and an error wrapping model.ErrStorage. Failures are reported either way.
func Read[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	b, err := s.storer.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return def, nil
		}
		f := Failure{Op: "read", Key: key, Err: err}
		s.report(ctx, f)
		return def, f
	}
	if len(b) == 0 {
		return def, nil
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		f := Failure{Op: "decode", Key: key, Err: err}
		s.report(ctx, f)
		return def, f
	}
	return out, nil
}

// Save encodes value under key and reports whether the write succeeded.
func Save[T any](ctx context.Context, s *Store, key string, value T) bool {
	b, err := json.Marshal(value)
	if err != nil {
		s.report(ctx, Failure{Op: "encode", Key: key, Err: err})
		return false
	}
	if err := s.storer.Put(ctx, key, b); err != nil {
		s.report(ctx, Failure{Op: "write", Key: key, Err: err})
		return false
	}
	return true
}
