// Package reactions implements ephemeral room-level reactions. There
// is no durable state: a reaction exists only as the event observed by
// whoever was subscribed when it was sent.
package reactions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/domain/event"
	"roomkit/emitter"
	"roomkit/errors"
	"roomkit/wire"
)

const interest = "reactions"

const releaseTimeout = 5 * time.Second

// Config wires a Reactions feature into its room.
type Config struct {
	RoomID   string
	ClientID string
	Channel  contract.RoomChannel
	Log      *slog.Logger
}

// Reactions is the per-room ephemeral reaction feature.
type Reactions struct {
	roomID   string
	clientID string
	channel  contract.RoomChannel
	log      *slog.Logger

	mu     sync.Mutex
	closed bool

	events      emitter.Emitter[event.RoomReactionEvent]
	unsubscribe func()
}

// New builds the feature and registers its wire subscription.
func New(cfg Config) *Reactions {
	r := &Reactions{
		roomID:   cfg.RoomID,
		clientID: cfg.ClientID,
		channel:  cfg.Channel,
		log:      cfg.Log,
	}
	r.unsubscribe = r.channel.Subscribe([]string{wire.EventRoomReaction}, r.handle)
	return r
}

// Send publishes a room-level reaction. Delivery is fire-and-forget:
// the call settles on publish acknowledgement, not on echo, because
// nothing needs to be reconciled afterwards.
func (r *Reactions) Send(ctx context.Context, name string, metadata map[string]any) error {
	const op = "send room reaction"
	if name == "" {
		return errors.New(errors.KindInvalidArgument, op, "reaction name is required")
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return errors.New(errors.KindRoomIsReleased, op, "room is released")
	}

	payload, err := wire.Encode(wire.RoomReactionPayload{
		Name:     name,
		ClientID: r.clientID,
		Metadata: metadata,
		At:       time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := r.channel.Publish(ctx, wire.EventRoomReaction, payload); err != nil {
		return errors.Wrap(errors.KindTransport, op, err)
	}
	return nil
}

// Subscribe registers a listener. First listener acquires channel
// interest; last removal withdraws it.
func (r *Reactions) Subscribe(ctx context.Context, fn func(event.RoomReactionEvent)) (off func(), err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "subscribe room reactions", "room is released")
	}
	first := r.events.Len() == 0
	offEvents := r.events.Subscribe(fn)
	r.mu.Unlock()

	if first {
		if err := r.channel.AcquireInterest(ctx, interest); err != nil {
			offEvents()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			offEvents()
			r.mu.Lock()
			last := r.events.Len() == 0 && !r.closed
			r.mu.Unlock()
			if last {
				releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
				defer cancel()
				if err := r.channel.ReleaseInterest(releaseCtx, interest); err != nil {
					r.log.Warn("reactions interest release failed", "room", r.roomID, "error", err)
				}
			}
		})
	}, nil
}

// Close tears the feature down on room release.
func (r *Reactions) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.unsubscribe()
	r.events.Clear()
}

func (r *Reactions) handle(msg contract.ChannelMessage) {
	if msg.Event != wire.EventRoomReaction {
		r.log.Warn("dropping unrecognized room reaction event", "room", r.roomID, "event", msg.Event)
		return
	}
	var payload wire.RoomReactionPayload
	if err := wire.Decode(msg.Payload, &payload); err != nil {
		r.log.Warn("dropping malformed room reaction", "room", r.roomID, "error", err)
		return
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	r.events.Emit(event.RoomReactionEvent{Reaction: domain.RoomReaction{
		Name:     payload.Name,
		ClientID: payload.ClientID,
		Metadata: payload.Metadata,
		At:       time.UnixMilli(payload.At).UTC(),
	}})
}
