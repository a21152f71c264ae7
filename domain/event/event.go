// Package event defines the closed set of derived events each feature
// emits to its subscribers. Every feature has a fixed enumeration of
// kinds; an unrecognized wire event never reaches this package: it is
// logged and dropped at the decoding boundary.
package event

import (
	"time"

	"roomkit/domain"
)

// MessageEventKind enumerates the message feature's derived events.
type MessageEventKind string

const (
	MessageCreated MessageEventKind = "created"
	MessageUpdated MessageEventKind = "updated"
	MessageDeleted MessageEventKind = "deleted"
)

// MessageEvent carries the latest message snapshot after a create,
// update or delete was applied to the local cache.
type MessageEvent struct {
	Kind    MessageEventKind
	Message domain.Message
}

// ReactionEventKind enumerates raw per-message reaction events.
type ReactionEventKind string

const (
	ReactionAdded   ReactionEventKind = "added"
	ReactionRemoved ReactionEventKind = "removed"
)

// ReactionEvent is a single raw reaction observed on a message.
type ReactionEvent struct {
	Kind     ReactionEventKind
	Reaction domain.MessageReaction
}

// SummaryEvent carries the recomputed reaction aggregate of a message
// after a raw reaction was applied.
type SummaryEvent struct {
	MessageSerial string
	Summary       domain.ReactionSummary
}

// PresenceEvent reports one member's presence change.
type PresenceEvent struct {
	Kind   domain.PresenceAction
	Member domain.PresenceMember
}

// TypingEventKind enumerates typing indicator events.
type TypingEventKind string

const (
	TypingStarted TypingEventKind = "started"
	TypingStopped TypingEventKind = "stopped"
)

// TypingEvent reports a client starting or stopping typing, together
// with the full set of clients currently typing.
type TypingEvent struct {
	Kind            TypingEventKind
	ClientID        string
	CurrentlyTyping []string
}

// RoomReactionEvent is an ephemeral room-level reaction.
type RoomReactionEvent struct {
	Reaction domain.RoomReaction
}

// OccupancyEvent carries a fresh occupancy reading.
type OccupancyEvent struct {
	Occupancy domain.Occupancy
	At        time.Time
}
