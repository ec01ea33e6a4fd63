// Package guard suppresses rapidly repeated events and concurrent handling
// of the same logical operation.
package guard

import (
	"sync"
	"time"

	"github.com/jrazmi/habitsync/sdk/clock"
)

type Guard struct {
	clock clock.Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
	inFlight map[string]mark
	gen      uint64
}

type mark struct {
	gen   uint64
	timer *time.Timer
}

type Option func(*Guard)

func WithClock(c clock.Clock) Option {
	return func(g *Guard) {
		g.clock = c
	}
}

func New(opts ...Option) *Guard {
	g := &Guard{
		clock:    clock.Real{},
		lastSeen: make(map[string]time.Time),
		inFlight: make(map[string]mark),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShouldProcess reports whether an event for key may be handled now. It
// returns false without recording anything if key was accepted within
// minInterval; otherwise it records the current time and returns true.
func (g *Guard) ShouldProcess(key string, minInterval time.Duration) bool {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastSeen[key]; ok && now.Sub(last) < minInterval {
		return false
	}
	g.lastSeen[key] = now
	return true
}

func (g *Guard) IsInFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[key]
	return ok
}

// MarkInFlight claims key. ok is false when key is already claimed. The
// returned release is idempotent and must be called when the operation
// finishes; if it never is, the claim lapses after autoClear.
func (g *Guard) MarkInFlight(key string, autoClear time.Duration) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return func() {}, false
	}

	g.gen++
	gen := g.gen
	m := mark{gen: gen}
	if autoClear > 0 {
		m.timer = time.AfterFunc(autoClear, func() { g.clear(key, gen) })
	}
	g.inFlight[key] = m

	var once sync.Once
	return func() { once.Do(func() { g.clear(key, gen) }) }, true
}

// clear drops key only if it still carries the claim identified by gen, so
// a late timer never releases a newer claim.
func (g *Guard) clear(key string, gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.inFlight[key]
	if !ok || m.gen != gen {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	delete(g.inFlight, key)
}

// Prune forgets last-seen entries older than olderThan and returns how many
// were removed.
func (g *Guard) Prune(olderThan time.Duration) int {
	cutoff := g.clock.Now().Add(-olderThan)

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for k, t := range g.lastSeen {
		if t.Before(cutoff) {
			delete(g.lastSeen, k)
			n++
		}
	}
	return n
}
