package rooms

import (
	"context"
	"log/slog"
	"sync"

	"roomkit/contract"
	"roomkit/errors"
)

// channelRef wraps the externally-provided realtime channel shared by
// all of a room's features. Features never touch the raw channel: they
// declare interest, and the ref attaches on the first interest and
// detaches on the last withdrawal. An explicit room-level detach or
// release clears every interest at once.
type channelRef struct {
	channel contract.RealtimeChannel
	log     *slog.Logger

	mu        sync.Mutex
	interests map[string]int
	closed    bool
}

func newChannelRef(channel contract.RealtimeChannel, log *slog.Logger) *channelRef {
	return &channelRef{
		channel:   channel,
		log:       log,
		interests: make(map[string]int),
	}
}

// AcquireInterest registers a feature's interest. The underlying
// channel attaches when the total interest count goes from zero to one.
func (c *channelRef) AcquireInterest(ctx context.Context, feature string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.KindRoomIsReleased, "attach channel", "channel reference is closed")
	}
	first := c.total() == 0
	c.interests[feature]++
	c.mu.Unlock()

	if !first {
		return nil
	}
	if err := c.channel.Attach(ctx); err != nil {
		c.mu.Lock()
		c.interests[feature]--
		if c.interests[feature] <= 0 {
			delete(c.interests, feature)
		}
		c.mu.Unlock()
		return errors.Wrap(errors.KindTransport, "attach channel", err)
	}
	c.log.Debug("channel attached", "feature", feature)
	return nil
}

// ReleaseInterest withdraws a feature's interest. The underlying
// channel detaches when the total count reaches zero. Withdrawing an
// interest that was already cleared (by DetachAll) is a no-op.
func (c *channelRef) ReleaseInterest(ctx context.Context, feature string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	count, ok := c.interests[feature]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	if count <= 1 {
		delete(c.interests, feature)
	} else {
		c.interests[feature] = count - 1
	}
	last := c.total() == 0
	c.mu.Unlock()

	if !last {
		return nil
	}
	if err := c.channel.Detach(ctx); err != nil {
		return errors.Wrap(errors.KindTransport, "detach channel", err)
	}
	c.log.Debug("channel detached", "feature", feature)
	return nil
}

// Reattach re-attaches the underlying channel without touching the
// interest counts. Used by suspend recovery, where the features never
// withdrew their interests.
func (c *channelRef) Reattach(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.KindRoomIsReleased, "attach channel", "channel reference is closed")
	}
	c.mu.Unlock()
	if err := c.channel.Attach(ctx); err != nil {
		return errors.Wrap(errors.KindTransport, "attach channel", err)
	}
	return nil
}

// DetachAll clears every interest and detaches the underlying channel.
// Wire subscriptions survive: listeners resume receiving events after
// a future attach.
func (c *channelRef) DetachAll(ctx context.Context) error {
	c.mu.Lock()
	hadInterest := c.total() > 0
	c.interests = make(map[string]int)
	c.mu.Unlock()

	if !hadInterest && c.channel.State() == contract.ChannelDetached {
		return nil
	}
	if err := c.channel.Detach(ctx); err != nil {
		return errors.Wrap(errors.KindTransport, "detach channel", err)
	}
	return nil
}

// Close detaches and permanently disables the reference. Called once,
// on room release.
func (c *channelRef) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.interests = make(map[string]int)
	c.mu.Unlock()

	// A channel that never attached has nothing to tear down.
	if c.channel.State() == contract.ChannelDetached {
		return nil
	}
	if err := c.channel.Detach(ctx); err != nil {
		return errors.Wrap(errors.KindTransport, "detach channel", err)
	}
	return nil
}

func (c *channelRef) Subscribe(events []string, handler contract.MessageHandler) func() {
	return c.channel.Subscribe(events, handler)
}

func (c *channelRef) Publish(ctx context.Context, event string, payload []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New(errors.KindRoomIsReleased, "publish", "channel reference is closed")
	}
	return c.channel.Publish(ctx, event, payload)
}

func (c *channelRef) OnStateChange(handler contract.StateHandler) func() {
	return c.channel.OnStateChange(handler)
}

func (c *channelRef) State() contract.ChannelState {
	return c.channel.State()
}

// total must be called with mu held.
func (c *channelRef) total() int {
	sum := 0
	for _, n := range c.interests {
		sum += n
	}
	return sum
}
