// Package observable provides a minimal publish/subscribe value container.
//
// A Value holds the current state and notifies subscribers synchronously on
// every Set. It backs the reactive session and pending-queue views without
// pulling in a framework.
package observable

import "sync"

// Unsubscribe removes a previously registered subscriber.
type Unsubscribe func()

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Value is an observable container for a single value of type T.
// Safe for concurrent use. Notifications run synchronously on the
// goroutine that calls Set, in subscription order.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	nextID  int
	subs    []subscriber[T]
}

// New creates a Value holding the given initial state.
func New[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies all subscribers.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.current = value
	subs := make([]subscriber[T], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may call Get
	// (or even Set) without deadlocking.
	for _, s := range subs {
		s.fn(value)
	}
}

// Subscribe registers a callback invoked on every Set. The callback is
// immediately invoked with the current value, so a new subscriber never
// waits for the next change to render.
func (v *Value[T]) Subscribe(fn func(T)) Unsubscribe {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})
	current := v.current
	v.mu.Unlock()

	fn(current)

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				return
			}
		}
	}
}
