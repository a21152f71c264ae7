package rooms

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/emitter"
	"roomkit/errors"
	"roomkit/messages"
	"roomkit/occupancy"
	"roomkit/presence"
	"roomkit/reactions"
	"roomkit/typing"
)

const interestRoom = "room"

// DefaultSuspendedRetryTimeout bounds how long a room may sit in
// Suspended before a re-attach is forced. Recovery or failure, never a
// silently stuck room.
const DefaultSuspendedRetryTimeout = 30 * time.Second

const suspendAttachTimeout = 10 * time.Second

// roomDeps carries the external collaborators a room is built on.
type roomDeps struct {
	clientID       string
	channel        contract.RealtimeChannel
	history        contract.HistorySource
	presenceSource contract.PresenceSource
	log            *slog.Logger
	suspendTimeout time.Duration
}

// Room composes the feature instances of one room identifier around a
// shared reference-counted channel, and runs the status state machine.
// Rooms are created by the lifecycle manager, never directly.
type Room struct {
	id      string
	options domain.RoomOptions
	log     *slog.Logger
	channel *channelRef

	messages  *messages.Messages
	presence  *presence.Presence
	typing    *typing.Typing
	reactions *reactions.Reactions
	occupancy *occupancy.Occupancy

	mu      sync.Mutex
	status  Status
	lastErr error
	// attachWait is non-nil while an attach is in flight; concurrent
	// attaches coalesce on it instead of duplicating side effects.
	attachWait  chan struct{}
	attachErr   error
	releaseDone chan struct{}
	releaseErr  error

	suspendTimer   *time.Timer
	suspendTimeout time.Duration

	statusEvents emitter.Emitter[StatusChange]
	offChannel   func()
}

// newRoom builds a room with exactly the features its options enable.
// Disabled features get no channel subscription at all.
func newRoom(id string, options domain.RoomOptions, deps roomDeps) *Room {
	timeout := deps.suspendTimeout
	if timeout <= 0 {
		timeout = DefaultSuspendedRetryTimeout
	}
	ref := newChannelRef(deps.channel, deps.log)
	r := &Room{
		id:             id,
		options:        options,
		log:            deps.log,
		channel:        ref,
		status:         StatusInitialized,
		suspendTimeout: timeout,
	}
	if options.Messages != nil {
		r.messages = messages.New(messages.Config{
			RoomID:        id,
			ClientID:      deps.clientID,
			Channel:       ref,
			History:       deps.history,
			Log:           deps.log,
			CacheCapacity: options.Messages.CacheCapacity,
		})
	}
	if options.Presence != nil {
		r.presence = presence.New(presence.Config{
			RoomID:    id,
			ClientID:  deps.clientID,
			Channel:   ref,
			Source:    deps.presenceSource,
			Log:       deps.log,
			EnterData: options.Presence.EnterData,
		})
	}
	if options.Typing != nil {
		r.typing = typing.New(typing.Config{
			RoomID:   id,
			ClientID: deps.clientID,
			Channel:  ref,
			Log:      deps.log,
			Timeout:  options.Typing.Timeout,
		})
	}
	if options.Reactions != nil {
		r.reactions = reactions.New(reactions.Config{
			RoomID:   id,
			ClientID: deps.clientID,
			Channel:  ref,
			Log:      deps.log,
		})
	}
	if options.Occupancy != nil {
		r.occupancy = occupancy.New(occupancy.Config{
			RoomID:  id,
			Channel: ref,
			Log:     deps.log,
		})
	}
	r.offChannel = ref.OnStateChange(r.handleChannelState)
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Options returns the normalized option set the room was created with.
func (r *Room) Options() domain.RoomOptions { return r.options }

// Status reports the current lifecycle status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err reports the error behind the most recent failed transition, if
// any.
func (r *Room) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// OnStatusChange registers a status observer. Changes are emitted
// synchronously, in transition order, never coalesced. Observers must
// not call back into the room.
func (r *Room) OnStatusChange(fn func(StatusChange)) (off func()) {
	return r.statusEvents.Subscribe(fn)
}

// Attach brings the room's shared channel up. Concurrent attaches
// coalesce: callers targeting the same end state share one underlying
// channel operation and its outcome.
func (r *Room) Attach(ctx context.Context) error {
	const op = "attach room"

	r.mu.Lock()
	switch r.status {
	case StatusAttached:
		r.mu.Unlock()
		return nil
	case StatusReleasing, StatusReleased:
		r.mu.Unlock()
		return errors.New(errors.KindRoomIsReleased, op, "room %q is released", r.id)
	case StatusFailed:
		r.mu.Unlock()
		return errors.New(errors.KindInternal, op, "room %q has failed", r.id)
	}
	if r.attachWait != nil {
		wait := r.attachWait
		r.mu.Unlock()
		select {
		case <-wait:
			r.mu.Lock()
			err := r.attachErr
			r.mu.Unlock()
			return err
		case <-ctx.Done():
			return errors.Wrap(errors.KindOperationTimeout, op, ctx.Err())
		}
	}
	wait := make(chan struct{})
	r.attachWait = wait
	r.transitionLocked(StatusAttaching, nil)
	r.mu.Unlock()

	err := r.channel.AcquireInterest(ctx, interestRoom)

	r.mu.Lock()
	r.attachErr = err
	r.attachWait = nil
	switch {
	case r.status == StatusReleasing || r.status == StatusReleased:
		// A release superseded the attach; its status stands.
	case err != nil:
		r.transitionLocked(StatusFailed, err)
	case r.status == StatusAttaching:
		r.transitionLocked(StatusAttached, nil)
	}
	close(wait)
	r.mu.Unlock()
	return err
}

// Detach suspends channel activity without destroying feature
// subscriptions; listeners resume receiving events after a future
// attach. Detaching an initialized or already detached room is a no-op.
func (r *Room) Detach(ctx context.Context) error {
	const op = "detach room"

	r.mu.Lock()
	switch r.status {
	case StatusInitialized, StatusDetached:
		r.mu.Unlock()
		return nil
	case StatusReleasing, StatusReleased:
		r.mu.Unlock()
		return errors.New(errors.KindRoomIsReleased, op, "room %q is released", r.id)
	case StatusFailed:
		r.mu.Unlock()
		return errors.New(errors.KindInternal, op, "room %q has failed", r.id)
	}
	r.stopSuspendTimerLocked()
	r.transitionLocked(StatusDetaching, nil)
	r.mu.Unlock()

	err := r.channel.DetachAll(ctx)

	r.mu.Lock()
	if r.status == StatusDetaching {
		if err != nil {
			r.transitionLocked(StatusFailed, err)
		} else {
			r.transitionLocked(StatusDetached, nil)
		}
	}
	r.mu.Unlock()
	return err
}

// Release tears the room down permanently: features close, the channel
// reference closes, and the status reaches its terminal state.
// Idempotent; a release from Initialized goes straight to Released
// without a detach in between. Concurrent releases share one teardown.
func (r *Room) Release(ctx context.Context) error {
	r.mu.Lock()
	if r.status == StatusReleased {
		r.mu.Unlock()
		return nil
	}
	if r.releaseDone != nil {
		done := r.releaseDone
		r.mu.Unlock()
		select {
		case <-done:
			r.mu.Lock()
			err := r.releaseErr
			r.mu.Unlock()
			return err
		case <-ctx.Done():
			return errors.Wrap(errors.KindOperationTimeout, "release room", ctx.Err())
		}
	}
	done := make(chan struct{})
	r.releaseDone = done
	r.stopSuspendTimerLocked()
	r.transitionLocked(StatusReleasing, nil)
	r.mu.Unlock()

	r.closeFeatures()
	r.offChannel()
	err := r.channel.Close(ctx)

	r.mu.Lock()
	r.releaseErr = err
	r.transitionLocked(StatusReleased, err)
	close(done)
	r.mu.Unlock()
	return err
}

// Messages returns the messages feature, or a feature-disabled error
// when the room's options did not enable it.
func (r *Room) Messages() (*messages.Messages, error) {
	if r.messages == nil {
		return nil, errors.New(errors.KindFeatureDisabled, "access messages", "messages are not enabled for room %q", r.id)
	}
	return r.messages, nil
}

// Presence returns the presence feature, or a feature-disabled error.
func (r *Room) Presence() (*presence.Presence, error) {
	if r.presence == nil {
		return nil, errors.New(errors.KindFeatureDisabled, "access presence", "presence is not enabled for room %q", r.id)
	}
	return r.presence, nil
}

// Typing returns the typing feature, or a feature-disabled error.
func (r *Room) Typing() (*typing.Typing, error) {
	if r.typing == nil {
		return nil, errors.New(errors.KindFeatureDisabled, "access typing", "typing is not enabled for room %q", r.id)
	}
	return r.typing, nil
}

// Reactions returns the room reactions feature, or a feature-disabled
// error.
func (r *Room) Reactions() (*reactions.Reactions, error) {
	if r.reactions == nil {
		return nil, errors.New(errors.KindFeatureDisabled, "access reactions", "reactions are not enabled for room %q", r.id)
	}
	return r.reactions, nil
}

// Occupancy returns the occupancy feature, or a feature-disabled error.
func (r *Room) Occupancy() (*occupancy.Occupancy, error) {
	if r.occupancy == nil {
		return nil, errors.New(errors.KindFeatureDisabled, "access occupancy", "occupancy is not enabled for room %q", r.id)
	}
	return r.occupancy, nil
}

func (r *Room) closeFeatures() {
	if r.messages != nil {
		r.messages.Close()
	}
	if r.presence != nil {
		r.presence.Close()
	}
	if r.typing != nil {
		r.typing.Close()
	}
	if r.reactions != nil {
		r.reactions.Close()
	}
	if r.occupancy != nil {
		r.occupancy.Close()
	}
}

// handleChannelState maps transport-driven channel transitions onto the
// room status machine. Self-initiated operations (attach, detach,
// release) drive their own transitions; this handler covers the
// network-driven ones.
func (r *Room) handleChannelState(change contract.ChannelStateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusReleasing, StatusReleased, StatusFailed:
		return
	}

	switch change.Current {
	case contract.ChannelSuspended:
		switch r.status {
		case StatusAttaching, StatusAttached, StatusDetaching:
			r.transitionLocked(StatusSuspended, change.Reason)
			r.startSuspendTimerLocked()
		}
	case contract.ChannelAttached:
		switch r.status {
		case StatusSuspended:
			r.stopSuspendTimerLocked()
			r.transitionLocked(StatusAttached, nil)
		case StatusInitialized, StatusDetached:
			// First feature subscription attached the channel without a
			// room-level Attach call.
			r.transitionLocked(StatusAttaching, nil)
			r.transitionLocked(StatusAttached, nil)
		}
	case contract.ChannelFailed:
		r.stopSuspendTimerLocked()
		r.transitionLocked(StatusFailed, change.Reason)
	case contract.ChannelDetached:
		if r.status == StatusAttached {
			// The transport dropped the channel outside any local
			// detach; treat it like a suspension and let the retry
			// timer force a decision.
			r.transitionLocked(StatusSuspended, change.Reason)
			r.startSuspendTimerLocked()
		}
	}
}

// startSuspendTimerLocked arms the forced-decision timer. On expiry the
// room attempts one re-attach; failure is terminal.
func (r *Room) startSuspendTimerLocked() {
	if r.suspendTimer != nil {
		r.suspendTimer.Stop()
	}
	r.suspendTimer = time.AfterFunc(r.suspendTimeout, r.retryAfterSuspend)
}

func (r *Room) stopSuspendTimerLocked() {
	if r.suspendTimer != nil {
		r.suspendTimer.Stop()
		r.suspendTimer = nil
	}
}

func (r *Room) retryAfterSuspend() {
	r.mu.Lock()
	if r.status != StatusSuspended {
		r.mu.Unlock()
		return
	}
	r.transitionLocked(StatusAttaching, nil)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), suspendAttachTimeout)
	defer cancel()
	err := r.channel.Reattach(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusAttaching {
		return
	}
	if err != nil {
		r.log.Warn("room re-attach after suspension failed", "room", r.id, "error", err)
		r.transitionLocked(StatusFailed, err)
		return
	}
	r.transitionLocked(StatusAttached, nil)
}

// transitionLocked moves the status machine and notifies observers
// while still holding the lock, which is what guarantees transition
// order at the listener.
func (r *Room) transitionLocked(next Status, reason error) {
	if r.status == next {
		return
	}
	change := StatusChange{Previous: r.status, Current: next, Reason: reason}
	r.status = next
	if reason != nil {
		r.lastErr = reason
	}
	r.log.Debug("room status changed", "room", r.id, "previous", string(change.Previous), "current", string(next))
	r.statusEvents.Emit(change)
}
