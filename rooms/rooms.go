// Package rooms implements the room lifecycle layer: the Room composite
// with its status state machine, and the Rooms manager guaranteeing at
// most one live room per identifier while serializing conflicting get
// and release calls.
package rooms

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/errors"
)

// releaseHandle tracks one in-flight release. Waiters on a pending get
// watch both channels: done resolves the wait, abort fails it because a
// second release superseded the teardown the get was queued behind.
type releaseHandle struct {
	done      chan struct{}
	abort     chan struct{}
	abortOnce sync.Once
	err       error
}

func newReleaseHandle() *releaseHandle {
	return &releaseHandle{
		done:  make(chan struct{}),
		abort: make(chan struct{}),
	}
}

func (h *releaseHandle) abortWaiters() {
	h.abortOnce.Do(func() { close(h.abort) })
}

// awaitTeardown blocks a queued get on the release outcome. When the
// teardown completion and an abort are both observable at once, the
// abort wins: an aborted get must never resolve.
func (h *releaseHandle) awaitTeardown(ctx context.Context, op, roomID string) error {
	superseded := func() error {
		return errors.New(errors.KindRoomReleasedBeforeOperationCompleted, op,
			"release of room %q superseded the pending get", roomID)
	}
	select {
	case <-h.abort:
		return superseded()
	case <-h.done:
		select {
		case <-h.abort:
			return superseded()
		default:
			return nil
		}
	case <-ctx.Done():
		return errors.Wrap(errors.KindOperationTimeout, op, ctx.Err())
	}
}

// entry is the registry state of one identifier: live (room set),
// releasing (releasing set), or absent (no entry at all).
type entry struct {
	room      *Room
	releasing *releaseHandle
}

// Config wires a Rooms manager to its collaborators.
type Config struct {
	ClientID string
	Provider contract.ChannelProvider
	History  contract.HistorySource
	Presence contract.PresenceSource
	Log      *slog.Logger
	// SuspendedRetryTimeout overrides DefaultSuspendedRetryTimeout when
	// positive.
	SuspendedRetryTimeout time.Duration
}

// Rooms is the lifecycle and reference manager. Per identifier, get and
// release calls behave as if executed one at a time; different
// identifiers never block each other beyond the registry lookup.
type Rooms struct {
	clientID       string
	provider       contract.ChannelProvider
	history        contract.HistorySource
	presence       contract.PresenceSource
	log            *slog.Logger
	suspendTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager builds an empty registry.
func NewManager(cfg Config) *Rooms {
	return &Rooms{
		clientID:       cfg.ClientID,
		provider:       cfg.Provider,
		history:        cfg.History,
		presence:       cfg.Presence,
		log:            cfg.Log,
		suspendTimeout: cfg.SuspendedRetryTimeout,
		entries:        make(map[string]*entry),
	}
}

// Get returns the single room for an identifier, creating it on first
// use. A live room is returned only when the requested options deeply
// equal its own; a mismatch is a caller error, never a merge. A get
// issued while the identifier is releasing waits for the release and
// then proceeds as a fresh get, unless a second release supersedes the
// one it was waiting on, which aborts the get.
func (m *Rooms) Get(ctx context.Context, roomID string, options domain.RoomOptions) (*Room, error) {
	const op = "get room"
	if roomID == "" {
		return nil, errors.New(errors.KindInvalidArgument, op, "room identifier is required")
	}
	normalized := domain.NormalizeRoomOptions(options)

	for {
		m.mu.Lock()
		e, ok := m.entries[roomID]
		if !ok || (e.room != nil && e.room.Status() == StatusReleased) {
			room := newRoom(roomID, normalized, roomDeps{
				clientID:       m.clientID,
				channel:        m.provider.Channel(roomID),
				history:        m.history,
				presenceSource: m.presence,
				log:            m.log,
				suspendTimeout: m.suspendTimeout,
			})
			m.entries[roomID] = &entry{room: room}
			m.mu.Unlock()
			m.log.Debug("room created", "room", roomID)
			return room, nil
		}
		if e.room != nil {
			room := e.room
			m.mu.Unlock()
			if !domain.EqualRoomOptions(room.Options(), normalized) {
				return nil, errors.New(errors.KindRoomOptionsMismatch, op,
					"room %q already exists with different options", roomID)
			}
			return room, nil
		}

		// Releasing: wait for the teardown, then retry from scratch.
		handle := e.releasing
		m.mu.Unlock()
		if err := handle.awaitTeardown(ctx, op, roomID); err != nil {
			return nil, err
		}
	}
}

// Release tears down the identifier's room. Absent identifiers are a
// no-op. A release of an already releasing identifier joins the
// in-flight teardown and aborts any gets queued behind it, so no
// caller can receive a room whose teardown restarted underneath it.
func (m *Rooms) Release(ctx context.Context, roomID string) error {
	m.mu.Lock()
	e, ok := m.entries[roomID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if e.releasing != nil {
		handle := e.releasing
		m.mu.Unlock()
		handle.abortWaiters()
		select {
		case <-handle.done:
			return handle.err
		case <-ctx.Done():
			return errors.Wrap(errors.KindOperationTimeout, "release room", ctx.Err())
		}
	}

	room := e.room
	handle := newReleaseHandle()
	// The identifier leaves the live set immediately: concurrent gets
	// observe releasing, not live.
	m.entries[roomID] = &entry{releasing: handle}
	m.mu.Unlock()

	err := room.Release(ctx)

	m.mu.Lock()
	if current, ok := m.entries[roomID]; ok && current.releasing == handle {
		delete(m.entries, roomID)
	}
	handle.err = err
	m.mu.Unlock()
	close(handle.done)
	m.log.Debug("room released", "room", roomID)
	return err
}

// ReleaseAll releases every known room. Used on client close.
func (m *Rooms) ReleaseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Release(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports how many identifiers are currently live or releasing.
func (m *Rooms) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
