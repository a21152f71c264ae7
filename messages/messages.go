// Package messages implements the messages feature of a room: sending,
// editing and deleting messages that settle on their realtime echo,
// subscribing with catch-up history, arbitrary history queries, and
// per-message reactions.
//
// The core difficulty is event reconciliation: realtime events for
// edits, deletes and reactions reference a message by its creation
// identity, which may not be in the bounded local cache. Such events
// are queued, never dropped or reordered, behind an asynchronous
// single-message fetch, and replayed in arrival order once the base
// state is known. A single ordered queue trades throughput for strict
// ordering; concurrent misses for different identities resolve
// sequentially.
package messages

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/domain/event"
	"roomkit/emitter"
	"roomkit/errors"
	"roomkit/wire"
)

const interest = "messages"

// DefaultOperationTimeout bounds send/update/delete waiting for their
// realtime echo, and the fetch-on-miss history call.
const DefaultOperationTimeout = 10 * time.Second

const releaseTimeout = 5 * time.Second

// Config wires a Messages feature into its room.
type Config struct {
	RoomID   string
	ClientID string
	Channel  contract.RoomChannel
	History  contract.HistorySource
	Log      *slog.Logger
	// CacheCapacity bounds the recency cache. Zero applies the domain
	// default.
	CacheCapacity int
	// OperationTimeout overrides DefaultOperationTimeout when positive.
	OperationTimeout time.Duration
}

// inboundKind enumerates the recognized inbound message events. The
// decoding boundary maps wire names onto this closed set; anything
// else is logged and dropped before reaching the queue.
type inboundKind int

const (
	inboundCreated inboundKind = iota
	inboundUpdated
	inboundDeleted
	inboundReactionAdded
	inboundReactionRemoved
)

// inbound is one queued channel event, normalized for reconciliation.
type inbound struct {
	kind inboundKind
	// serial is the creation identity the event references.
	serial   string
	message  domain.Message
	reaction domain.MessageReaction
	echoID   string
}

// Messages is the per-room messages feature.
type Messages struct {
	roomID    string
	clientID  string
	channel   contract.RoomChannel
	history   contract.HistorySource
	log       *slog.Logger
	opTimeout time.Duration

	mu         sync.Mutex
	cache      *messageCache
	queue      []inbound
	fetching   bool
	closed     bool
	latestSeen string
	// gen invalidates in-flight fetch-on-miss work across cache
	// evictions.
	gen int

	echoes *echoTable

	msgEvents      emitter.Emitter[event.MessageEvent]
	reactionEvents emitter.Emitter[event.ReactionEvent]
	summaryEvents  emitter.Emitter[event.SummaryEvent]

	unsubscribe func()
	offState    func()
}

// New builds the feature and registers its wire subscription. The
// subscription persists across detach/attach cycles.
func New(cfg Config) *Messages {
	capacity := cfg.CacheCapacity
	if capacity == 0 {
		capacity = domain.DefaultMessageCacheCapacity
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	m := &Messages{
		roomID:    cfg.RoomID,
		clientID:  cfg.ClientID,
		channel:   cfg.Channel,
		history:   cfg.History,
		log:       cfg.Log,
		opTimeout: timeout,
		cache:     newMessageCache(capacity),
		echoes:    newEchoTable(),
	}
	m.unsubscribe = m.channel.Subscribe(wire.MessageEvents(), m.handle)
	m.offState = m.channel.OnStateChange(m.handleState)
	return m
}

// SendParams carries the content of a new message.
type SendParams struct {
	Text     string
	Metadata map[string]any
	Headers  map[string]string
}

// UpdateParams carries the replacement content of an edit.
type UpdateParams struct {
	Text     string
	Metadata map[string]any
	Headers  map[string]string
	// Description optionally records why the edit happened.
	Description string
}

// DeleteParams optionally records why a message was deleted.
type DeleteParams struct {
	Description string
}

// Send publishes a new message and resolves once its realtime echo is
// observed on the channel, not merely once the write is acknowledged,
// so the returned Message matches exactly what subscribers receive. A
// server error surfacing before the echo fails the call with it.
func (m *Messages) Send(ctx context.Context, params SendParams) (domain.Message, error) {
	return m.operate(ctx, "send message", wire.EventMessageCreate, wire.MessageIntent{
		Text:     params.Text,
		Metadata: params.Metadata,
		Headers:  params.Headers,
	})
}

// Update publishes an edit of message and resolves on the echo of the
// corresponding version.
func (m *Messages) Update(ctx context.Context, message domain.Message, params UpdateParams) (domain.Message, error) {
	if message.Serial == "" {
		return domain.Message{}, errors.New(errors.KindInvalidArgument, "update message", "message has no serial")
	}
	return m.operate(ctx, "update message", wire.EventMessageUpdate, wire.MessageIntent{
		Serial:      message.Serial,
		Text:        params.Text,
		Metadata:    params.Metadata,
		Headers:     params.Headers,
		Description: params.Description,
	})
}

// Delete publishes a deletion of message and resolves on its echo.
func (m *Messages) Delete(ctx context.Context, message domain.Message, params DeleteParams) (domain.Message, error) {
	if message.Serial == "" {
		return domain.Message{}, errors.New(errors.KindInvalidArgument, "delete message", "message has no serial")
	}
	return m.operate(ctx, "delete message", wire.EventMessageDelete, wire.MessageIntent{
		Serial:      message.Serial,
		Description: params.Description,
	})
}

// operate publishes an intent and waits for its echo via the
// pending-correlation table.
func (m *Messages) operate(ctx context.Context, op, eventName string, intent wire.MessageIntent) (domain.Message, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return domain.Message{}, errors.New(errors.KindRoomIsReleased, op, "room is released")
	}

	intent.EchoID = uuid.NewString()
	payload, err := wire.Encode(intent)
	if err != nil {
		return domain.Message{}, err
	}

	waiter := m.echoes.add(intent.EchoID)
	defer m.echoes.remove(intent.EchoID)

	ctx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if err := m.channel.Publish(ctx, eventName, payload); err != nil {
		return domain.Message{}, errors.Wrap(errors.KindTransport, op, err)
	}

	select {
	case <-waiter.done:
		if waiter.err != nil {
			return domain.Message{}, errors.Wrap(errors.KindTransport, op, waiter.err)
		}
		return waiter.message, nil
	case <-ctx.Done():
		return domain.Message{}, errors.Wrap(errors.KindOperationTimeout, op, ctx.Err())
	}
}

// Subscription is a registered message listener plus its subscription
// point, against which HistoryBeforeSubscribe anchors.
type Subscription struct {
	messages *Messages
	off      func()
	once     sync.Once

	// lastSerial is the newest message serial observed before the
	// subscription; empty if none was observed in this process.
	lastSerial string
	at         time.Time
}

// Subscribe registers a listener for created/updated/deleted events.
// The first listener across the feature attaches the shared channel;
// removing the last one detaches it.
func (m *Messages) Subscribe(ctx context.Context, fn func(event.MessageEvent)) (*Subscription, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "subscribe messages", "room is released")
	}
	first := m.listenerTotalLocked() == 0
	off := m.msgEvents.Subscribe(fn)
	sub := &Subscription{
		messages:   m,
		off:        off,
		lastSerial: m.latestSeen,
		at:         time.Now().UTC(),
	}
	m.mu.Unlock()

	if first {
		if err := m.channel.AcquireInterest(ctx, interest); err != nil {
			off()
			return nil, err
		}
	}
	return sub, nil
}

// Unsubscribe removes the listener, withdrawing channel interest when
// it was the last one across the feature.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.off()
		s.messages.releaseIfIdle()
	})
}

// HistoryBeforeSubscribe returns messages sent strictly before this
// listener's subscription point, newest first.
func (s *Subscription) HistoryBeforeSubscribe(ctx context.Context, query contract.HistoryQuery) (contract.HistoryPage, error) {
	if s.lastSerial != "" {
		query.EndSerial = s.lastSerial
	} else {
		query.End = s.at
	}
	page, err := s.messages.history.FetchPage(ctx, s.messages.roomID, query)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "fetch history before subscribe", err)
	}
	return page, nil
}

// History runs an arbitrary bounded history query, independent of
// subscription state.
func (m *Messages) History(ctx context.Context, query contract.HistoryQuery) (contract.HistoryPage, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.New(errors.KindRoomIsReleased, "fetch history", "room is released")
	}
	page, err := m.history.FetchPage(ctx, m.roomID, query)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "fetch history", err)
	}
	return page, nil
}

// AddReaction places a reaction on a message. Fire-and-forget: settles
// on publish acknowledgement.
func (m *Messages) AddReaction(ctx context.Context, messageSerial, name string) error {
	return m.publishReaction(ctx, "add message reaction", wire.EventReactionAdd, messageSerial, name, uuid.NewString())
}

// RemoveReaction retracts the local client's reaction of the given
// name from a message.
func (m *Messages) RemoveReaction(ctx context.Context, messageSerial, name string) error {
	return m.publishReaction(ctx, "remove message reaction", wire.EventReactionRemove, messageSerial, name, "")
}

func (m *Messages) publishReaction(ctx context.Context, op, eventName, messageSerial, name, id string) error {
	if messageSerial == "" || name == "" {
		return errors.New(errors.KindInvalidArgument, op, "message serial and reaction name are required")
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errors.New(errors.KindRoomIsReleased, op, "room is released")
	}
	payload, err := wire.Encode(wire.ReactionPayload{
		ID:            id,
		MessageSerial: messageSerial,
		Name:          name,
		ClientID:      m.clientID,
		At:            time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := m.channel.Publish(ctx, eventName, payload); err != nil {
		return errors.Wrap(errors.KindTransport, op, err)
	}
	return nil
}

// SubscribeReactions registers a listener for raw per-message reaction
// events.
func (m *Messages) SubscribeReactions(ctx context.Context, fn func(event.ReactionEvent)) (off func(), err error) {
	return m.subscribeAux(ctx, func() func() { return m.reactionEvents.Subscribe(fn) })
}

// SubscribeReactionSummaries registers a listener for recomputed
// reaction aggregates.
func (m *Messages) SubscribeReactionSummaries(ctx context.Context, fn func(event.SummaryEvent)) (off func(), err error) {
	return m.subscribeAux(ctx, func() func() { return m.summaryEvents.Subscribe(fn) })
}

func (m *Messages) subscribeAux(ctx context.Context, register func() func()) (func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New(errors.KindRoomIsReleased, "subscribe message reactions", "room is released")
	}
	first := m.listenerTotalLocked() == 0
	offEvents := register()
	m.mu.Unlock()

	if first {
		if err := m.channel.AcquireInterest(ctx, interest); err != nil {
			offEvents()
			return nil, err
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			offEvents()
			m.releaseIfIdle()
		})
	}, nil
}

// releaseIfIdle withdraws channel interest once no listener of any
// kind remains.
func (m *Messages) releaseIfIdle() {
	m.mu.Lock()
	idle := m.listenerTotalLocked() == 0 && !m.closed
	m.mu.Unlock()
	if !idle {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := m.channel.ReleaseInterest(ctx, interest); err != nil {
		m.log.Warn("messages interest release failed", "room", m.roomID, "error", err)
	}
}

// listenerTotalLocked counts listeners across all three emitters; the
// feature holds a single channel interest for all of them.
func (m *Messages) listenerTotalLocked() int {
	return m.msgEvents.Len() + m.reactionEvents.Len() + m.summaryEvents.Len()
}

// handleState evicts the cache when the channel leaves the attached
// state. Events missed while detached or suspended would otherwise
// corrupt the incrementally maintained state after re-attach; an empty
// cache forces fetch-on-miss to restore each identity from history.
// The latest-seen serial survives eviction: history still resolves it
// as a subscription anchor.
func (m *Messages) handleState(change contract.ChannelStateChange) {
	switch change.Current {
	case contract.ChannelDetached, contract.ChannelSuspended, contract.ChannelFailed:
		m.mu.Lock()
		m.cache.clear()
		m.queue = nil
		m.fetching = false
		m.gen++
		m.mu.Unlock()
	}
}

// CacheLen reports the current cache population. Diagnostic.
func (m *Messages) CacheLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.len()
}

// Close tears the feature down on room release: the cache is cleared,
// queued events are discarded, and pending echo waiters fail.
func (m *Messages) Close() {
	m.mu.Lock()
	m.closed = true
	m.cache.clear()
	m.queue = nil
	m.fetching = false
	m.mu.Unlock()
	m.unsubscribe()
	m.offState()
	m.echoes.failAll(errors.New(errors.KindRoomIsReleased, "await echo", "room is released"))
	m.msgEvents.Clear()
	m.reactionEvents.Clear()
	m.summaryEvents.Clear()
}
