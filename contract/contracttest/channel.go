// Package contracttest provides hand-rolled fakes for the contract
// interfaces, used across the feature test suites. The fake channel is
// fully scripted: tests deliver inbound events, flip states, and
// inspect recorded publishes.
package contracttest

import (
	"context"
	"sync"
	"time"

	"roomkit/contract"
)

// PublishedEvent records one Publish call on the fake channel.
type PublishedEvent struct {
	Event   string
	Payload []byte
}

type fakeSub struct {
	id      int
	events  map[string]struct{}
	handler contract.MessageHandler
}

type fakeStateSub struct {
	id      int
	handler contract.StateHandler
}

// FakeChannel implements both contract.RealtimeChannel and
// contract.RoomChannel. Interest counting mirrors the production
// channel reference: the first interest attaches, the last release
// detaches.
type FakeChannel struct {
	mu        sync.Mutex
	state     contract.ChannelState
	subs      []fakeSub
	stateSubs []fakeStateSub
	nextID    int
	interests map[string]int

	published []PublishedEvent

	// AttachErr / DetachErr / PublishErr, when set, fail the
	// corresponding call.
	AttachErr  error
	DetachErr  error
	PublishErr error

	// OnPublish, when set, runs synchronously after a successful
	// Publish. Tests use it to play the server side (assign serials,
	// echo events back).
	OnPublish func(event string, payload []byte)

	// EchoPublishes redelivers every successful Publish verbatim as an
	// inbound event. Ignored when OnPublish is set.
	EchoPublishes bool

	attachCalls int
	detachCalls int
}

// NewFakeChannel returns a detached fake channel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{
		state:     contract.ChannelDetached,
		interests: make(map[string]int),
	}
}

func (f *FakeChannel) Attach(ctx context.Context) error {
	f.mu.Lock()
	err := f.AttachErr
	if err == nil {
		f.attachCalls++
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.SetState(contract.ChannelAttached, nil)
	return nil
}

func (f *FakeChannel) Detach(ctx context.Context) error {
	f.mu.Lock()
	err := f.DetachErr
	if err == nil {
		f.detachCalls++
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.SetState(contract.ChannelDetached, nil)
	return nil
}

func (f *FakeChannel) Subscribe(events []string, handler contract.MessageHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		set[e] = struct{}{}
	}
	f.subs = append(f.subs, fakeSub{id: id, events: set, handler: handler})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.subs {
			if s.id == id {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

func (f *FakeChannel) Publish(ctx context.Context, event string, payload []byte) error {
	f.mu.Lock()
	err := f.PublishErr
	if err == nil {
		f.published = append(f.published, PublishedEvent{Event: event, Payload: payload})
	}
	hook := f.OnPublish
	echo := f.EchoPublishes
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(event, payload)
	} else if echo {
		f.Deliver(event, payload)
	}
	return nil
}

func (f *FakeChannel) OnStateChange(handler contract.StateHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.stateSubs = append(f.stateSubs, fakeStateSub{id: id, handler: handler})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.stateSubs {
			if s.id == id {
				f.stateSubs = append(f.stateSubs[:i], f.stateSubs[i+1:]...)
				return
			}
		}
	}
}

func (f *FakeChannel) State() contract.ChannelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeChannel) AcquireInterest(ctx context.Context, feature string) error {
	f.mu.Lock()
	first := f.totalInterest() == 0
	f.interests[feature]++
	f.mu.Unlock()
	if first {
		return f.Attach(ctx)
	}
	return nil
}

func (f *FakeChannel) ReleaseInterest(ctx context.Context, feature string) error {
	f.mu.Lock()
	if count, ok := f.interests[feature]; ok {
		if count <= 1 {
			delete(f.interests, feature)
		} else {
			f.interests[feature] = count - 1
		}
	}
	last := f.totalInterest() == 0
	f.mu.Unlock()
	if last {
		return f.Detach(ctx)
	}
	return nil
}

// Deliver feeds an inbound event to every matching subscription,
// synchronously, in registration order.
func (f *FakeChannel) Deliver(event string, payload []byte) {
	f.mu.Lock()
	subs := make([]fakeSub, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	msg := contract.ChannelMessage{Event: event, Payload: payload, Timestamp: time.Now().UTC()}
	for _, s := range subs {
		if _, ok := s.events[event]; ok {
			s.handler(msg)
		}
	}
}

// SetState transitions the channel state and notifies observers.
func (f *FakeChannel) SetState(state contract.ChannelState, reason error) {
	f.mu.Lock()
	previous := f.state
	f.state = state
	subs := make([]fakeStateSub, len(f.stateSubs))
	copy(subs, f.stateSubs)
	f.mu.Unlock()

	change := contract.ChannelStateChange{Previous: previous, Current: state, Reason: reason}
	for _, s := range subs {
		s.handler(change)
	}
}

// Published returns a copy of all recorded publishes.
func (f *FakeChannel) Published() []PublishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PublishedEvent, len(f.published))
	copy(out, f.published)
	return out
}

// AttachCalls reports how many times Attach succeeded.
func (f *FakeChannel) AttachCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachCalls
}

// DetachCalls reports how many times Detach succeeded.
func (f *FakeChannel) DetachCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detachCalls
}

// totalInterest must be called with mu held.
func (f *FakeChannel) totalInterest() int {
	sum := 0
	for _, n := range f.interests {
		sum += n
	}
	return sum
}
