// Package occupancy tracks the latest server-reported occupancy of a
// room. State is a single reading derived from the live event stream;
// there is no history.
package occupancy

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

const interest = "occupancy"

const releaseTimeout = 5 * time.Second

// Config wires an Occupancy feature into its room.
type Config struct {
	RoomID  string
	Channel contract.RoomChannel
	Log     *slog.Logger
}

// Occupancy is the per-room occupancy metrics feature.
type Occupancy struct {
	roomID  string
	channel contract.RoomChannel
	log     *slog.Logger

	mu      sync.Mutex
	latest  domain.Occupancy
	haveAny bool
	closed  bool

	events      emitter.Emitter[event.OccupancyEvent]
	unsubscribe func()
}

// New builds the feature and registers its wire subscription.
func New(cfg Config) *Occupancy {
	o := &Occupancy{
		roomID:  cfg.RoomID,
		channel: cfg.Channel,
		log:     cfg.Log,
	}
	o.unsubscribe = o.channel.Subscribe([]string{wire.EventOccupancy}, o.handle)
	return o
}

// Get returns the latest occupancy reading. The second return reports
// whether any reading has been observed since attach.
func (o *Occupancy) Get() (domain.Occupancy, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest, o.haveAny
}

// Subscribe registers a listener for occupancy updates.
func (o *Occupancy) Subscribe(ctx context.Context, fn func(event.OccupancyEvent)) (off func(), err error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "subscribe occupancy", "room is released")
	}
	first := o.events.Len() == 0
	offEvents := o.events.Subscribe(fn)
	o.mu.Unlock()

	if first {
		if err := o.channel.AcquireInterest(ctx, interest); err != nil {
			offEvents()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			offEvents()
			o.mu.Lock()
			last := o.events.Len() == 0 && !o.closed
			o.mu.Unlock()
			if last {
				releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
				defer cancel()
				if err := o.channel.ReleaseInterest(releaseCtx, interest); err != nil {
					o.log.Warn("occupancy interest release failed", "room", o.roomID, "error", err)
				}
			}
		})
	}, nil
}

// Close tears the feature down on room release.
func (o *Occupancy) Close() {
	o.mu.Lock()
	o.closed = true
	o.haveAny = false
	o.latest = domain.Occupancy{}
	o.mu.Unlock()
	o.unsubscribe()
	o.events.Clear()
}

func (o *Occupancy) handle(msg contract.ChannelMessage) {
	if msg.Event != wire.EventOccupancy {
		o.log.Warn("dropping unrecognized occupancy event", "room", o.roomID, "event", msg.Event)
		return
	}
	var payload wire.OccupancyPayload
	if err := wire.Decode(msg.Payload, &payload); err != nil {
		o.log.Warn("dropping malformed occupancy event", "room", o.roomID, "error", err)
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.latest = domain.Occupancy{
		Connections:     payload.Connections,
		PresenceMembers: payload.PresenceMembers,
	}
	o.haveAny = true
	reading := o.latest
	o.mu.Unlock()

	o.events.Emit(event.OccupancyEvent{
		Occupancy: reading,
		At:        time.UnixMilli(payload.At).UTC(),
	})
}
