// Package presence maintains the authoritative presence set of a room,
// derived from the live event stream and seeded from the presence
// collaborator on attach. Refetches retry with exponential backoff up
// to a fixed attempt budget; overlapping refetches resolve
// last-issued-wins so a slow early fetch never overwrites newer state.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/domain/event"
	"roomkit/emitter"
	"roomkit/errors"
	"roomkit/wire"
)

const interest = "presence"

const (
	releaseTimeout = 5 * time.Second

	// Backoff schedule for presence set refetches. After maxAttempts
	// consecutive failures the fetch surfaces KindPresenceFetchFailed
	// instead of retrying forever.
	backoffBase = 250 * time.Millisecond
	maxAttempts = 5
)

// Config wires a Presence feature into its room.
type Config struct {
	RoomID   string
	ClientID string
	Channel  contract.RoomChannel
	Source   contract.PresenceSource
	Log      *slog.Logger
	// EnterData, when non-nil, is published automatically every time
	// the channel reaches attached, so presence survives reconnects.
	EnterData map[string]any
}

// Presence is the per-room presence feature.
type Presence struct {
	roomID   string
	clientID string
	channel  contract.RoomChannel
	source   contract.PresenceSource
	log      *slog.Logger
	enter    map[string]any

	mu      sync.Mutex
	members map[string]domain.PresenceMember
	synced  bool
	closed  bool

	// issued and applied implement last-issued-wins: a fetch result is
	// applied only when no later fetch has been issued meanwhile.
	issued  int64
	applied int64

	events        emitter.Emitter[event.PresenceEvent]
	unsubscribe   func()
	offStateState func()
}

// New builds the feature, registers its wire subscription and watches
// channel state to seed the set (and re-enter) on every attach.
func New(cfg Config) *Presence {
	p := &Presence{
		roomID:   cfg.RoomID,
		clientID: cfg.ClientID,
		channel:  cfg.Channel,
		source:   cfg.Source,
		log:      cfg.Log,
		enter:    cfg.EnterData,
		members:  make(map[string]domain.PresenceMember),
	}
	p.unsubscribe = p.channel.Subscribe(wire.PresenceEvents(), p.handle)
	p.offStateState = p.channel.OnStateChange(p.handleState)
	return p
}

// Enter publishes the local client into presence with the given data.
func (p *Presence) Enter(ctx context.Context, data map[string]any) error {
	return p.publish(ctx, wire.EventPresenceEnter, data, "enter presence")
}

// Leave removes the local client from presence.
func (p *Presence) Leave(ctx context.Context) error {
	return p.publish(ctx, wire.EventPresenceLeave, nil, "leave presence")
}

// Update republishes the local client's presence data.
func (p *Presence) Update(ctx context.Context, data map[string]any) error {
	return p.publish(ctx, wire.EventPresenceUpdate, data, "update presence")
}

// Get returns the current presence set. When the local set has not
// been seeded yet (first attach, or cleared by a detach), it fetches
// from the collaborator with the retry schedule.
func (p *Presence) Get(ctx context.Context) ([]domain.PresenceMember, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "get presence", "room is released")
	}
	if p.synced {
		members := lo.Values(p.members)
		p.mu.Unlock()
		return members, nil
	}
	p.mu.Unlock()

	if err := p.fetch(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo.Values(p.members), nil
}

// Subscribe registers a listener for presence events.
func (p *Presence) Subscribe(ctx context.Context, fn func(event.PresenceEvent)) (off func(), err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "subscribe presence", "room is released")
	}
	first := p.events.Len() == 0
	offEvents := p.events.Subscribe(fn)
	p.mu.Unlock()

	if first {
		if err := p.channel.AcquireInterest(ctx, interest); err != nil {
			offEvents()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			offEvents()
			p.mu.Lock()
			last := p.events.Len() == 0 && !p.closed
			p.mu.Unlock()
			if last {
				releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
				defer cancel()
				if err := p.channel.ReleaseInterest(releaseCtx, interest); err != nil {
					p.log.Warn("presence interest release failed", "room", p.roomID, "error", err)
				}
			}
		})
	}, nil
}

// Close tears the feature down on room release.
func (p *Presence) Close() {
	p.mu.Lock()
	p.closed = true
	p.members = make(map[string]domain.PresenceMember)
	p.synced = false
	p.mu.Unlock()
	p.unsubscribe()
	p.offStateState()
	p.events.Clear()
}

// fetch seeds the local set from the collaborator with exponential
// backoff. Only the most recently issued fetch may apply its result.
func (p *Presence) fetch(ctx context.Context) error {
	const op = "fetch presence set"

	p.mu.Lock()
	p.issued++
	ticket := p.issued
	p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffBase << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.Wrap(errors.KindOperationTimeout, op, ctx.Err())
			}
		}
		members, err := p.source.FetchPresence(ctx, p.roomID)
		if err != nil {
			lastErr = err
			p.log.Warn("presence fetch failed",
				"room", p.roomID, "attempt", attempt+1, "max_attempts", maxAttempts, "error", err)
			continue
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return errors.New(errors.KindRoomIsReleased, op, "room is released")
		}
		// A later fetch was issued (and possibly applied) while this
		// one was in flight. Its result is authoritative, not ours.
		if ticket < p.applied {
			return nil
		}
		p.applied = ticket
		p.members = make(map[string]domain.PresenceMember, len(members))
		for _, member := range members {
			p.members[member.ClientID] = member
		}
		p.synced = true
		return nil
	}
	return errors.Wrap(errors.KindPresenceFetchFailed, op, lastErr)
}

func (p *Presence) publish(ctx context.Context, eventName string, data map[string]any, op string) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.New(errors.KindRoomIsReleased, op, "room is released")
	}

	payload, err := wire.Encode(wire.PresencePayload{
		ClientID: p.clientID,
		Data:     data,
		At:       time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := p.channel.Publish(ctx, eventName, payload); err != nil {
		return errors.Wrap(errors.KindTransport, op, err)
	}
	return nil
}

// handle applies inbound presence events to the local set.
func (p *Presence) handle(msg contract.ChannelMessage) {
	var payload wire.PresencePayload
	if err := wire.Decode(msg.Payload, &payload); err != nil {
		p.log.Warn("dropping malformed presence event", "room", p.roomID, "error", err)
		return
	}

	var action domain.PresenceAction
	switch msg.Event {
	case wire.EventPresenceEnter:
		action = domain.PresenceActionEnter
	case wire.EventPresenceLeave:
		action = domain.PresenceActionLeave
	case wire.EventPresenceUpdate:
		action = domain.PresenceActionUpdate
	default:
		p.log.Warn("dropping unrecognized presence event", "room", p.roomID, "event", msg.Event)
		return
	}

	member := domain.PresenceMember{
		ClientID:  payload.ClientID,
		Data:      payload.Data,
		Action:    action,
		UpdatedAt: time.UnixMilli(payload.At).UTC(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if action == domain.PresenceActionLeave {
		delete(p.members, payload.ClientID)
	} else {
		p.members[payload.ClientID] = member
	}
	p.mu.Unlock()

	p.events.Emit(event.PresenceEvent{Kind: action, Member: member})
}

// handleState re-seeds the set and re-enters on every attach. A detach
// or suspension marks the set stale so the next Get refetches.
func (p *Presence) handleState(change contract.ChannelStateChange) {
	switch change.Current {
	case contract.ChannelAttached:
		if p.enter != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
				defer cancel()
				if err := p.Enter(ctx, p.enter); err != nil {
					p.log.Warn("automatic presence re-entry failed", "room", p.roomID, "error", err)
				}
			}()
		}
	case contract.ChannelDetached, contract.ChannelSuspended, contract.ChannelFailed:
		p.mu.Lock()
		p.synced = false
		p.mu.Unlock()
	}
}
