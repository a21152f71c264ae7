package sandbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/errors"
	"roomkit/wire"
)

// command is one unit of work for a room's broker: a published event
// plus the session channel it came from.
type command struct {
	event    string
	payload  []byte
	clientID string
}

// roomHub is the server side of one room: a single broker goroutine
// consumes the command channel, mints serials, persists message
// snapshots and fans the resulting events out to every attached session
// channel. One worker per room keeps event order total within the room.
type roomHub struct {
	roomID   string
	log      *slog.Logger
	store    *historyStore
	mint     *serialMint
	commands chan command

	mu       sync.Mutex
	channels []*sessionChannel
	presence map[string]domain.PresenceMember
}

func newRoomHub(roomID string, store *historyStore, log *slog.Logger, buffer int) *roomHub {
	if buffer <= 0 {
		buffer = 64
	}
	return &roomHub{
		roomID:   roomID,
		log:      log,
		store:    store,
		mint:     newSerialMint(roomID),
		commands: make(chan command, buffer),
		presence: make(map[string]domain.PresenceMember),
	}
}

func (h *roomHub) newChannel(clientID string) *sessionChannel {
	ch := &sessionChannel{
		hub:      h,
		clientID: clientID,
		state:    contract.ChannelDetached,
	}
	h.mu.Lock()
	h.channels = append(h.channels, ch)
	h.mu.Unlock()
	return ch
}

func (h *roomHub) submit(ctx context.Context, cmd command) error {
	select {
	case h.commands <- cmd:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.KindOperationTimeout, "publish", ctx.Err())
	}
}

// Run is the broker loop. It exits cleanly on context cancellation.
func (h *roomHub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("room broker stopping", "room", h.roomID)
			return nil
		case cmd := <-h.commands:
			h.process(cmd)
		}
	}
}

func (h *roomHub) process(cmd command) {
	switch cmd.event {
	case wire.EventMessageCreate:
		h.createMessage(cmd)
	case wire.EventMessageUpdate:
		h.reviseMessage(cmd, domain.MessageActionUpdate, wire.EventMessageUpdated)
	case wire.EventMessageDelete:
		h.reviseMessage(cmd, domain.MessageActionDelete, wire.EventMessageDeleted)
	case wire.EventReactionAdd:
		h.forwardReaction(cmd, wire.EventReactionAdded)
	case wire.EventReactionRemove:
		h.forwardReaction(cmd, wire.EventReactionRemoved)
	case wire.EventPresenceEnter, wire.EventPresenceUpdate, wire.EventPresenceLeave:
		h.applyPresence(cmd)
	case wire.EventTypingStarted, wire.EventTypingStopped:
		h.fanout(cmd.event, cmd.payload)
	case wire.EventRoomReaction:
		h.forwardRoomReaction(cmd)
	default:
		h.log.Warn("dropping unrecognized command", "room", h.roomID, "event", cmd.event)
	}
}

func (h *roomHub) createMessage(cmd command) {
	var intent wire.MessageIntent
	if err := wire.Decode(cmd.payload, &intent); err != nil {
		h.log.Warn("dropping malformed create", "room", h.roomID, "error", err)
		return
	}
	now := time.Now().UTC()
	minted := h.mint.next().String()
	msg := domain.Message{
		Serial:    minted,
		Version:   minted,
		ClientID:  cmd.clientID,
		RoomID:    h.roomID,
		Text:      intent.Text,
		Metadata:  intent.Metadata,
		Headers:   intent.Headers,
		Action:    domain.MessageActionCreate,
		CreatedAt: now,
		Timestamp: now,
	}
	if err := h.store.put(h.roomID, msg); err != nil {
		h.log.Error("message store failed", "room", h.roomID, "error", err)
		return
	}
	h.fanoutMessage(wire.EventMessageCreated, msg, intent.EchoID)
}

func (h *roomHub) reviseMessage(cmd command, action domain.MessageAction, outbound string) {
	var intent wire.MessageIntent
	if err := wire.Decode(cmd.payload, &intent); err != nil {
		h.log.Warn("dropping malformed revision", "room", h.roomID, "error", err)
		return
	}
	existing, err := h.store.get(h.roomID, intent.Serial)
	if err != nil {
		h.log.Warn("revision of unknown message dropped", "room", h.roomID, "serial", intent.Serial, "error", err)
		return
	}
	revised := existing
	revised.Version = h.mint.next().String()
	revised.Action = action
	revised.ClientID = cmd.clientID
	revised.Timestamp = time.Now().UTC()
	if action == domain.MessageActionUpdate {
		revised.Text = intent.Text
		revised.Metadata = intent.Metadata
		revised.Headers = intent.Headers
	}
	if err := h.store.put(h.roomID, revised); err != nil {
		h.log.Error("message store failed", "room", h.roomID, "error", err)
		return
	}
	h.fanoutMessage(outbound, revised, intent.EchoID)
}

func (h *roomHub) forwardReaction(cmd command, outbound string) {
	var payload wire.ReactionPayload
	if err := wire.Decode(cmd.payload, &payload); err != nil {
		h.log.Warn("dropping malformed reaction", "room", h.roomID, "error", err)
		return
	}
	if payload.ID == "" && outbound == wire.EventReactionAdded {
		payload.ID = uuid.NewString()
	}
	payload.ClientID = cmd.clientID
	if payload.At == 0 {
		payload.At = time.Now().UnixMilli()
	}
	encoded, err := wire.Encode(payload)
	if err != nil {
		h.log.Error("reaction encode failed", "room", h.roomID, "error", err)
		return
	}
	h.fanout(outbound, encoded)
}

func (h *roomHub) forwardRoomReaction(cmd command) {
	var payload wire.RoomReactionPayload
	if err := wire.Decode(cmd.payload, &payload); err != nil {
		h.log.Warn("dropping malformed room reaction", "room", h.roomID, "error", err)
		return
	}
	payload.ClientID = cmd.clientID
	if payload.At == 0 {
		payload.At = time.Now().UnixMilli()
	}
	encoded, err := wire.Encode(payload)
	if err != nil {
		h.log.Error("room reaction encode failed", "room", h.roomID, "error", err)
		return
	}
	h.fanout(wire.EventRoomReaction, encoded)
}

func (h *roomHub) applyPresence(cmd command) {
	var payload wire.PresencePayload
	if err := wire.Decode(cmd.payload, &payload); err != nil {
		h.log.Warn("dropping malformed presence event", "room", h.roomID, "error", err)
		return
	}
	payload.ClientID = cmd.clientID
	payload.At = time.Now().UnixMilli()

	h.mu.Lock()
	switch cmd.event {
	case wire.EventPresenceLeave:
		delete(h.presence, cmd.clientID)
	default:
		action := domain.PresenceActionEnter
		if cmd.event == wire.EventPresenceUpdate {
			action = domain.PresenceActionUpdate
		}
		h.presence[cmd.clientID] = domain.PresenceMember{
			ClientID:  cmd.clientID,
			Data:      payload.Data,
			Action:    action,
			UpdatedAt: time.UnixMilli(payload.At).UTC(),
		}
	}
	h.mu.Unlock()

	encoded, err := wire.Encode(payload)
	if err != nil {
		h.log.Error("presence encode failed", "room", h.roomID, "error", err)
		return
	}
	h.fanout(cmd.event, encoded)
	h.emitOccupancy()
}

func (h *roomHub) fanoutMessage(eventName string, msg domain.Message, echoID string) {
	encoded, err := wire.Encode(wire.FromMessage(msg, echoID))
	if err != nil {
		h.log.Error("message encode failed", "room", h.roomID, "error", err)
		return
	}
	h.fanout(eventName, encoded)
}

// fanout delivers one event to every attached session channel of the
// room, in channel creation order.
func (h *roomHub) fanout(eventName string, payload []byte) {
	h.mu.Lock()
	targets := make([]*sessionChannel, len(h.channels))
	copy(targets, h.channels)
	h.mu.Unlock()

	for _, ch := range targets {
		ch.deliver(eventName, payload)
	}
}

// emitOccupancy pushes a fresh occupancy reading to the room. Called on
// attach, detach and presence changes.
func (h *roomHub) emitOccupancy() {
	h.mu.Lock()
	connections := 0
	for _, ch := range h.channels {
		if ch.State() == contract.ChannelAttached {
			connections++
		}
	}
	members := len(h.presence)
	h.mu.Unlock()

	encoded, err := wire.Encode(wire.OccupancyPayload{
		Connections:     connections,
		PresenceMembers: members,
		At:              time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Error("occupancy encode failed", "room", h.roomID, "error", err)
		return
	}
	h.fanout(wire.EventOccupancy, encoded)
}

func (h *roomHub) presenceSnapshot() []domain.PresenceMember {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := make([]domain.PresenceMember, 0, len(h.presence))
	for _, m := range h.presence {
		members = append(members, m)
	}
	return members
}

// sessionChannel is one client's channel into a room, implementing the
// transport contract in process. Events publish through the room's
// broker; delivery reaches only attached channels.
type sessionChannel struct {
	hub      *roomHub
	clientID string

	mu        sync.Mutex
	state     contract.ChannelState
	subs      []channelSub
	stateSubs []channelStateSub
	nextID    int
}

type channelSub struct {
	id      int
	events  map[string]struct{}
	handler contract.MessageHandler
}

type channelStateSub struct {
	id      int
	handler contract.StateHandler
}

func (c *sessionChannel) Attach(ctx context.Context) error {
	if c.State() == contract.ChannelAttached {
		return nil
	}
	c.setState(contract.ChannelAttaching, nil)
	c.setState(contract.ChannelAttached, nil)
	c.hub.emitOccupancy()
	return nil
}

func (c *sessionChannel) Detach(ctx context.Context) error {
	if c.State() == contract.ChannelDetached {
		return nil
	}
	c.setState(contract.ChannelDetaching, nil)
	c.setState(contract.ChannelDetached, nil)
	c.hub.emitOccupancy()
	return nil
}

func (c *sessionChannel) Subscribe(events []string, handler contract.MessageHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		set[e] = struct{}{}
	}
	c.subs = append(c.subs, channelSub{id: id, events: set, handler: handler})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *sessionChannel) Publish(ctx context.Context, event string, payload []byte) error {
	return c.hub.submit(ctx, command{event: event, payload: payload, clientID: c.clientID})
}

func (c *sessionChannel) OnStateChange(handler contract.StateHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.stateSubs = append(c.stateSubs, channelStateSub{id: id, handler: handler})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.stateSubs {
			if s.id == id {
				c.stateSubs = append(c.stateSubs[:i], c.stateSubs[i+1:]...)
				return
			}
		}
	}
}

func (c *sessionChannel) State() contract.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *sessionChannel) setState(state contract.ChannelState, reason error) {
	c.mu.Lock()
	previous := c.state
	c.state = state
	subs := make([]channelStateSub, len(c.stateSubs))
	copy(subs, c.stateSubs)
	c.mu.Unlock()

	change := contract.ChannelStateChange{Previous: previous, Current: state, Reason: reason}
	for _, s := range subs {
		s.handler(change)
	}
}

// deliver hands an inbound event to this channel's matching handlers.
// Detached channels receive nothing; their subscriptions survive and
// resume on re-attach.
func (c *sessionChannel) deliver(eventName string, payload []byte) {
	c.mu.Lock()
	if c.state != contract.ChannelAttached {
		c.mu.Unlock()
		return
	}
	subs := make([]channelSub, len(c.subs))
	copy(subs, c.subs)
	clientID := c.clientID
	c.mu.Unlock()

	msg := contract.ChannelMessage{
		Event:     eventName,
		Payload:   payload,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
	}
	for _, s := range subs {
		if _, ok := s.events[eventName]; ok {
			s.handler(msg)
		}
	}
}
