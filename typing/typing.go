// Package typing implements the typing indicator feature. The local
// client's typing signal is debounced: repeated Start calls inside the
// window reset a timer, and exactly one stopped signal goes out on
// expiry or explicit Stop. The set of currently-typing clients is
// derived purely from the live event stream.
package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"roomkit/contract"
	"roomkit/domain/event"
	"roomkit/emitter"
	"roomkit/errors"
	"roomkit/wire"
)

const interest = "typing"

// publishTimeout bounds the background publish issued by timer expiry,
// which has no caller context to inherit.
const publishTimeout = 5 * time.Second

// Config wires a Typing feature into its room.
type Config struct {
	RoomID   string
	ClientID string
	Channel  contract.RoomChannel
	Log      *slog.Logger
	// Timeout is the debounce window for the local client's signal.
	Timeout time.Duration
}

// Typing is the per-room typing indicator feature.
type Typing struct {
	roomID   string
	clientID string
	channel  contract.RoomChannel
	log      *slog.Logger
	timeout  time.Duration

	mu         sync.Mutex
	typingSet  map[string]struct{}
	selfTyping bool
	timer      *time.Timer
	closed     bool

	events      emitter.Emitter[event.TypingEvent]
	unsubscribe func()
}

// New builds the feature and registers its wire subscription. The
// subscription persists across detach/attach cycles.
func New(cfg Config) *Typing {
	t := &Typing{
		roomID:    cfg.RoomID,
		clientID:  cfg.ClientID,
		channel:   cfg.Channel,
		log:       cfg.Log,
		timeout:   cfg.Timeout,
		typingSet: make(map[string]struct{}),
	}
	t.unsubscribe = t.channel.Subscribe(wire.TypingEvents(), t.handle)
	return t
}

// Start signals that the local client is typing. The first call inside
// a window publishes a started event; subsequent calls only reset the
// debounce timer.
func (t *Typing) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New(errors.KindRoomIsReleased, "start typing", "room is released")
	}
	alreadyTyping := t.selfTyping
	t.selfTyping = true
	t.resetTimerLocked()
	t.mu.Unlock()

	if alreadyTyping {
		return nil
	}
	return t.publish(ctx, wire.EventTypingStarted, "start typing")
}

// Stop signals that the local client stopped typing. A no-op when the
// client was not typing, so the stopped signal goes out exactly once.
func (t *Typing) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New(errors.KindRoomIsReleased, "stop typing", "room is released")
	}
	if !t.selfTyping {
		t.mu.Unlock()
		return nil
	}
	t.selfTyping = false
	t.cancelTimerLocked()
	t.mu.Unlock()

	return t.publish(ctx, wire.EventTypingStopped, "stop typing")
}

// Get returns the clients currently typing, in no particular order.
func (t *Typing) Get() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lo.Keys(t.typingSet)
}

// Subscribe registers a listener for typing events. The first listener
// declares channel interest, attaching the shared channel if needed;
// removing the last listener withdraws it.
func (t *Typing) Subscribe(ctx context.Context, fn func(event.TypingEvent)) (off func(), err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "subscribe typing", "room is released")
	}
	first := t.events.Len() == 0
	offEvents := t.events.Subscribe(fn)
	t.mu.Unlock()

	if first {
		if err := t.channel.AcquireInterest(ctx, interest); err != nil {
			offEvents()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			offEvents()
			t.mu.Lock()
			last := t.events.Len() == 0 && !t.closed
			t.mu.Unlock()
			if last {
				releaseCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
				defer cancel()
				if err := t.channel.ReleaseInterest(releaseCtx, interest); err != nil {
					t.log.Warn("typing interest release failed", "room", t.roomID, "error", err)
				}
			}
		})
	}, nil
}

// Close tears the feature down on room release.
func (t *Typing) Close() {
	t.mu.Lock()
	t.closed = true
	t.selfTyping = false
	t.cancelTimerLocked()
	t.typingSet = make(map[string]struct{})
	t.mu.Unlock()
	t.unsubscribe()
	t.events.Clear()
}

// handle processes inbound typing events. Membership changes emit
// exactly once: a started event for a client already in the set is
// dropped.
func (t *Typing) handle(msg contract.ChannelMessage) {
	var payload wire.TypingPayload
	if err := wire.Decode(msg.Payload, &payload); err != nil {
		t.log.Warn("dropping malformed typing event", "room", t.roomID, "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	switch msg.Event {
	case wire.EventTypingStarted:
		if _, ok := t.typingSet[payload.ClientID]; ok {
			return
		}
		t.typingSet[payload.ClientID] = struct{}{}
		t.events.Emit(event.TypingEvent{
			Kind:            event.TypingStarted,
			ClientID:        payload.ClientID,
			CurrentlyTyping: lo.Keys(t.typingSet),
		})
	case wire.EventTypingStopped:
		if _, ok := t.typingSet[payload.ClientID]; !ok {
			return
		}
		delete(t.typingSet, payload.ClientID)
		t.events.Emit(event.TypingEvent{
			Kind:            event.TypingStopped,
			ClientID:        payload.ClientID,
			CurrentlyTyping: lo.Keys(t.typingSet),
		})
	default:
		t.log.Warn("dropping unrecognized typing event", "room", t.roomID, "event", msg.Event)
	}
}

// resetTimerLocked arms or re-arms the debounce timer.
func (t *Typing) resetTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.timeout, t.expire)
}

func (t *Typing) cancelTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// expire fires when the debounce window elapses with no further Start.
func (t *Typing) expire() {
	t.mu.Lock()
	if t.closed || !t.selfTyping {
		t.mu.Unlock()
		return
	}
	t.selfTyping = false
	t.timer = nil
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := t.publish(ctx, wire.EventTypingStopped, "stop typing"); err != nil {
		t.log.Warn("typing stop publish failed on debounce expiry", "room", t.roomID, "error", err)
	}
}

func (t *Typing) publish(ctx context.Context, eventName, op string) error {
	payload, err := wire.Encode(wire.TypingPayload{ClientID: t.clientID})
	if err != nil {
		return err
	}
	if err := t.channel.Publish(ctx, eventName, payload); err != nil {
		return errors.Wrap(errors.KindTransport, op, err)
	}
	return nil
}
