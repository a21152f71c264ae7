// Package emitter provides the small typed publish-subscribe primitive
// used by every feature. Each feature declares a fixed event type and
// emits values of it; listeners are invoked synchronously in
// registration order, never batched or reordered.
package emitter

import "sync"

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Emitter fans values out to registered listeners. The zero value is
// ready to use.
type Emitter[T any] struct {
	mu     sync.Mutex
	subs   []subscriber[T]
	nextID int
}

// Subscribe registers a listener and returns its unsubscribe func.
// Unsubscribing twice is harmless.
func (e *Emitter[T]) Subscribe(fn func(T)) (off func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, subscriber[T]{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers value to every listener in registration order. The
// delivery is synchronous: Emit returns after the last listener has
// run. Listeners must not subscribe or unsubscribe from within a
// callback of the same emitter's owner while its lock is held.
func (e *Emitter[T]) Emit(value T) {
	e.mu.Lock()
	subs := make([]subscriber[T], len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(value)
	}
}

// Len reports the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Clear drops every listener.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = nil
}
