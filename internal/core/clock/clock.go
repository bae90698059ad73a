// Package clock abstracts wall-clock access so timing-sensitive code
// (the barcode decoder, debounce windows) is deterministic in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides the current time and timer scheduling.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc schedules fn to run after d and returns a handle
	// that can stop the pending call.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a scheduled call that can be cancelled.
type Timer interface {
	// Stop cancels the pending call. Reports whether it was still pending.
	Stop() bool
}

// System returns a Clock backed by the real time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// --- Manual clock for tests ---

// Manual is a Clock whose time only moves when Advance is called.
// Timers fire synchronously inside Advance once their deadline passes.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManual creates a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's current time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers fn to fire once Advance moves past d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clock: m, at: m.now.Add(d), fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward and fires expired timers in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due []*manualTimer
	remaining := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.at.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	m.timers = remaining
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

type manualTimer struct {
	clock   *Manual
	at      time.Time
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, other := range t.clock.timers {
		if other == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			return true
		}
	}
	return false
}
