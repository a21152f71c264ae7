// Package wire defines the channel event names and JSON payload shapes
// exchanged over the realtime channel. Both the feature processors and
// the sandbox backend speak this vocabulary; nothing outside it is
// recognized. Unknown event names are the receiver's problem: features
// log and drop them instead of crashing.
package wire

import (
	"encoding/json"
	"time"

	"roomkit/domain"
	"roomkit/errors"
)

// Channel event names. Outbound names (client intent) end in the
// imperative; inbound names (server fact) end in the past tense.
const (
	EventMessageCreate = "chat.message.create"
	EventMessageUpdate = "chat.message.update"
	EventMessageDelete = "chat.message.delete"

	EventMessageCreated = "chat.message.created"
	EventMessageUpdated = "chat.message.updated"
	EventMessageDeleted = "chat.message.deleted"

	EventReactionAdd     = "chat.reaction.add"
	EventReactionRemove  = "chat.reaction.remove"
	EventReactionAdded   = "chat.reaction.added"
	EventReactionRemoved = "chat.reaction.removed"

	EventPresenceEnter  = "chat.presence.enter"
	EventPresenceLeave  = "chat.presence.leave"
	EventPresenceUpdate = "chat.presence.update"

	EventTypingStarted = "chat.typing.started"
	EventTypingStopped = "chat.typing.stopped"

	EventRoomReaction = "chat.room.reaction"
	EventOccupancy    = "chat.occupancy"
)

// MessageEvents are the inbound names the messages feature subscribes to.
func MessageEvents() []string {
	return []string{
		EventMessageCreated, EventMessageUpdated, EventMessageDeleted,
		EventReactionAdded, EventReactionRemoved,
	}
}

// PresenceEvents are the inbound names the presence feature subscribes to.
func PresenceEvents() []string {
	return []string{EventPresenceEnter, EventPresenceLeave, EventPresenceUpdate}
}

// TypingEvents are the inbound names the typing feature subscribes to.
func TypingEvents() []string {
	return []string{EventTypingStarted, EventTypingStopped}
}

// MessagePayload is the full message snapshot carried by inbound
// message events. EchoID correlates a client's own operation with its
// realtime echo.
type MessagePayload struct {
	Serial    string            `json:"serial"`
	Version   string            `json:"version"`
	ClientID  string            `json:"clientId"`
	RoomID    string            `json:"roomId"`
	Text      string            `json:"text"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Action    string            `json:"action"`
	CreatedAt int64             `json:"createdAt"`
	Timestamp int64             `json:"timestamp"`
	EchoID    string            `json:"echoId,omitempty"`
}

// MessageIntent is the outbound payload for create/update/delete
// operations. Serial is empty on create and names the target identity
// on update/delete.
type MessageIntent struct {
	Serial      string            `json:"serial,omitempty"`
	Text        string            `json:"text"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Description string            `json:"description,omitempty"`
	EchoID      string            `json:"echoId"`
}

// ReactionPayload travels in both directions for per-message reactions.
type ReactionPayload struct {
	ID            string `json:"id"`
	MessageSerial string `json:"messageSerial"`
	Name          string `json:"name"`
	ClientID      string `json:"clientId"`
	At            int64  `json:"at"`
}

// PresencePayload travels in both directions for presence changes.
type PresencePayload struct {
	ClientID string         `json:"clientId"`
	Data     map[string]any `json:"data,omitempty"`
	At       int64          `json:"at"`
}

// TypingPayload signals a typing state change by one client.
type TypingPayload struct {
	ClientID string `json:"clientId"`
}

// RoomReactionPayload is an ephemeral room-level reaction.
type RoomReactionPayload struct {
	Name     string         `json:"name"`
	ClientID string         `json:"clientId"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       int64          `json:"at"`
}

// OccupancyPayload is a server-pushed occupancy reading.
type OccupancyPayload struct {
	Connections     int   `json:"connections"`
	PresenceMembers int   `json:"presenceMembers"`
	At              int64 `json:"at"`
}

// Encode marshals a payload for publishing.
func Encode(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "encode channel payload", err)
	}
	return data, nil
}

// Decode unmarshals an inbound payload into out.
func Decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(errors.KindInternal, "decode channel payload", err)
	}
	return nil
}

// ToMessage converts an inbound snapshot into the domain type.
func (p MessagePayload) ToMessage() domain.Message {
	return domain.Message{
		Serial:    p.Serial,
		Version:   p.Version,
		ClientID:  p.ClientID,
		RoomID:    p.RoomID,
		Text:      p.Text,
		Metadata:  p.Metadata,
		Headers:   p.Headers,
		Action:    domain.MessageAction(p.Action),
		CreatedAt: time.UnixMilli(p.CreatedAt).UTC(),
		Timestamp: time.UnixMilli(p.Timestamp).UTC(),
	}
}

// FromMessage converts a domain message into its wire snapshot.
func FromMessage(m domain.Message, echoID string) MessagePayload {
	return MessagePayload{
		Serial:    m.Serial,
		Version:   m.Version,
		ClientID:  m.ClientID,
		RoomID:    m.RoomID,
		Text:      m.Text,
		Metadata:  m.Metadata,
		Headers:   m.Headers,
		Action:    string(m.Action),
		CreatedAt: m.CreatedAt.UnixMilli(),
		Timestamp: m.Timestamp.UnixMilli(),
		EchoID:    echoID,
	}
}

// ToReaction converts an inbound reaction into the domain type.
func (p ReactionPayload) ToReaction() domain.MessageReaction {
	return domain.MessageReaction{
		ID:            p.ID,
		MessageSerial: p.MessageSerial,
		Name:          p.Name,
		ClientID:      p.ClientID,
		At:            time.UnixMilli(p.At).UTC(),
	}
}
