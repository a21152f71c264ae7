package contracttest

import (
	"sync"

	"roomkit/contract"
)

// FakeConnection implements contract.ConnectionSource with scripted
// state transitions.
type FakeConnection struct {
	mu       sync.Mutex
	state    contract.ConnectionState
	handlers []fakeConnSub
	nextID   int
}

type fakeConnSub struct {
	id      int
	handler contract.ConnectionHandler
}

// NewFakeConnection returns a connection in the given initial state.
func NewFakeConnection(initial contract.ConnectionState) *FakeConnection {
	return &FakeConnection{state: initial}
}

func (f *FakeConnection) State() contract.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeConnection) OnStateChange(handler contract.ConnectionHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers = append(f.handlers, fakeConnSub{id: id, handler: handler})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.handlers {
			if s.id == id {
				f.handlers = append(f.handlers[:i], f.handlers[i+1:]...)
				return
			}
		}
	}
}

// SetState transitions the connection and notifies observers
// synchronously, in registration order.
func (f *FakeConnection) SetState(state contract.ConnectionState, reason error) {
	f.mu.Lock()
	previous := f.state
	f.state = state
	subs := make([]fakeConnSub, len(f.handlers))
	copy(subs, f.handlers)
	f.mu.Unlock()

	change := contract.ConnectionStateChange{Previous: previous, Current: state, Reason: reason}
	for _, s := range subs {
		s.handler(change)
	}
}
