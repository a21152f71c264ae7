package typing

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomkit/contract/contracttest"
	"roomkit/domain/event"
	"roomkit/wire"
)

func newTestTyping(t *testing.T, timeout time.Duration) (*Typing, *contracttest.FakeChannel) {
	t.Helper()
	channel := contracttest.NewFakeChannel()
	channel.EchoPublishes = true
	typing := New(Config{
		RoomID:   "R",
		ClientID: "alice",
		Channel:  channel,
		Log:      slog.Default(),
		Timeout:  timeout,
	})
	t.Cleanup(typing.Close)
	return typing, channel
}

// collector records typing events under a lock so the debounce timer
// goroutine can deliver concurrently with test assertions.
type collector struct {
	mu     sync.Mutex
	events []event.TypingEvent
}

func (c *collector) add(e event.TypingEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []event.TypingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.TypingEvent, len(c.events))
	copy(out, c.events)
	return out
}

func Test_Repeated_Start_Emits_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	typing, channel := newTestTyping(t, time.Hour)

	var got collector
	_, err := typing.Subscribe(ctx, got.add)
	req.NoError(err)

	// When the client signals typing three times inside the window
	req.NoError(typing.Start(ctx))
	req.NoError(typing.Start(ctx))
	req.NoError(typing.Start(ctx))

	// Then exactly one started event goes out and comes back
	req.Len(channel.Published(), 1)
	events := got.snapshot()
	req.Len(events, 1)
	req.Equal(event.TypingStarted, events[0].Kind)
	req.Equal("alice", events[0].ClientID)
	req.Equal([]string{"alice"}, events[0].CurrentlyTyping)
}

func Test_Debounce_Expiry_Emits_Single_Stop(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	typing, channel := newTestTyping(t, 30*time.Millisecond)

	var got collector
	_, err := typing.Subscribe(ctx, got.add)
	req.NoError(err)

	req.NoError(typing.Start(ctx))
	req.NoError(typing.Start(ctx))

	// When the window elapses with no further signal
	req.Eventually(func() bool {
		return len(got.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	events := got.snapshot()
	req.Equal(event.TypingStarted, events[0].Kind)
	req.Equal(event.TypingStopped, events[1].Kind)
	req.Empty(events[1].CurrentlyTyping)
	req.Len(channel.Published(), 2)

	// And a later explicit Stop is a no-op
	req.NoError(typing.Stop(ctx))
	req.Len(channel.Published(), 2)
}

func Test_Explicit_Stop_Cancels_Timer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	typing, channel := newTestTyping(t, 30*time.Millisecond)

	var got collector
	_, err := typing.Subscribe(ctx, got.add)
	req.NoError(err)

	req.NoError(typing.Start(ctx))
	req.NoError(typing.Stop(ctx))

	// The timer must not fire a second stop afterwards
	time.Sleep(80 * time.Millisecond)
	req.Len(channel.Published(), 2)
	events := got.snapshot()
	req.Len(events, 2)
	req.Equal(event.TypingStopped, events[1].Kind)
}

func Test_Remote_Clients_Tracked_In_Set(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	typing, channel := newTestTyping(t, time.Hour)

	var got collector
	_, err := typing.Subscribe(ctx, got.add)
	req.NoError(err)

	payload, err := wire.Encode(wire.TypingPayload{ClientID: "bob"})
	req.NoError(err)
	channel.Deliver(wire.EventTypingStarted, payload)
	// A duplicate started for the same client is dropped
	channel.Deliver(wire.EventTypingStarted, payload)

	req.Equal([]string{"bob"}, typing.Get())
	req.Len(got.snapshot(), 1)

	channel.Deliver(wire.EventTypingStopped, payload)
	req.Empty(typing.Get())
	req.Len(got.snapshot(), 2)
}

func Test_First_Listener_Attaches_Last_Detaches(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	typing, channel := newTestTyping(t, time.Hour)

	offFirst, err := typing.Subscribe(ctx, func(event.TypingEvent) {})
	req.NoError(err)
	offSecond, err := typing.Subscribe(ctx, func(event.TypingEvent) {})
	req.NoError(err)

	req.Equal(1, channel.AttachCalls())

	offFirst()
	req.Equal(0, channel.DetachCalls())
	offSecond()
	req.Equal(1, channel.DetachCalls())
}
