// Package eventbus is the in-process publish/subscribe channel the task,
// habit and timer modules use to talk to each other.
//
// Delivery is synchronous and in registration order for a given name.
// Handlers registered for different names may observe effects in any
// relative order when events are emitted from different code paths.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/jrazmi/habitsync/sdk/clock"
	"github.com/jrazmi/habitsync/sdk/logger"
)

var (
	ErrUnknownEvent    = errors.New("unknown event")
	ErrPayloadMismatch = errors.New("payload does not match event")
)

// Handler receives one event. A returned error is logged and does not stop
// delivery to other handlers.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

type Bus struct {
	log   *logger.Logger
	clock clock.Clock

	mu       sync.RWMutex
	nextID   uint64
	handlers map[Name][]subscription
	wildcard []subscription
}

type Option func(*Bus)

func WithClock(c clock.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

func NewBus(log *logger.Logger, opts ...Option) *Bus {
	b := &Bus{
		log:      log,
		clock:    clock.Real{},
		handlers: make(map[Name][]subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers h for name and returns a function that removes it. Unknown
// names are rejected with a warning and a no-op unsubscribe.
func (b *Bus) On(name Name, h Handler) func() {
	if !Known(name) {
		b.log.Warn("subscribe to unknown event", "event", name)
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.handlers[name] = remove(b.handlers[name], id)
		})
	}
}

// OnAny registers h for every event. Wildcard handlers run after the named
// handlers.
func (b *Bus) OnAny(h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.wildcard = remove(b.wildcard, id)
		})
	}
}

// Emit delivers ev to the handlers registered when Emit was called. The
// payload is checked against the event's declared shape first; a mismatch is
// logged and nothing is delivered.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	if err := check(ev); err != nil {
		b.log.ErrorContext(ctx, "rejected event", "event", ev.Name, "error", err)
		return err
	}
	if ev.At.IsZero() {
		ev.At = b.clock.Now()
	}

	b.mu.RLock()
	named := b.handlers[ev.Name]
	subs := make([]subscription, 0, len(named)+len(b.wildcard))
	subs = append(subs, named...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
	return nil
}

// Subscribers reports how many handlers are registered for name.
func (b *Bus) Subscribers(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorContext(ctx, "panic recovered in event handler",
				"event", ev.Name,
				"subscription", s.id,
				"panic", r,
				"stack_trace", string(debug.Stack()))
		}
	}()

	if err := s.handler(ctx, ev); err != nil {
		b.log.WarnContext(ctx, "event handler failed",
			"event", ev.Name,
			"source", ev.Source,
			"subscription", s.id,
			"error", err)
	}
}

func check(ev Event) error {
	want, ok := payloadTypes[ev.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Name)
	}
	if got := reflect.TypeOf(ev.Payload); got != want {
		return fmt.Errorf("%w: %s wants %s, got %v", ErrPayloadMismatch, ev.Name, want, got)
	}
	return nil
}

func remove(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Handle adapts a typed function into a Handler. Events whose payload is
// not a P are reported as errors.
func Handle[P any](fn func(ctx context.Context, p P, ev Event) error) Handler {
	return func(ctx context.Context, ev Event) error {
		p, ok := ev.Payload.(P)
		if !ok {
			var zero P
			return fmt.Errorf("%w: want %T, got %T", ErrPayloadMismatch, zero, ev.Payload)
		}
		return fn(ctx, p, ev)
	}
}
