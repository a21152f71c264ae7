// Package domain contains the core concepts of the chat layer:
// messages with versioned edits, reactions, presence members, typing
// sets and occupancy counts. Types here are pure values; no transport,
// storage or UI logic belongs in this package.
package domain

import (
	"time"

	"roomkit/serial"
)

// MessageAction records which operation produced a message version.
type MessageAction string

const (
	MessageActionCreate MessageAction = "create"
	MessageActionUpdate MessageAction = "update"
	MessageActionDelete MessageAction = "delete"
)

// Message is one version of a chat message. Identity is the creation
// Serial; edits and deletes mint a new Version on the same identity.
// Serials travel in canonical string form and are parsed on demand.
type Message struct {
	Serial    string
	Version   string
	ClientID  string
	RoomID    string
	Text      string
	Metadata  map[string]any
	Headers   map[string]string
	Action    MessageAction
	CreatedAt time.Time
	Timestamp time.Time
	Reactions ReactionSummary
}

// IsDeleted reports whether the latest known version is a deletion.
func (m Message) IsDeleted() bool {
	return m.Action == MessageActionDelete
}

// SameIdentity reports whether two message versions belong to the same
// logical message.
func (m Message) SameIdentity(other Message) bool {
	return m.Serial == other.Serial
}

// VersionBefore reports whether m's version strictly precedes other's
// in the global serial order. Malformed serials propagate a parse
// failure instead of an arbitrary ordering.
func (m Message) VersionBefore(other Message) (bool, error) {
	c, err := serial.CompareStrings(m.Version, other.Version)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

// ApplyVersion merges a newer version of the same identity into m and
// returns the merged snapshot. Reactions survive edits: the aggregate
// is keyed by identity, not by version.
func (m Message) ApplyVersion(version Message) Message {
	merged := version
	merged.Serial = m.Serial
	merged.CreatedAt = m.CreatedAt
	merged.Reactions = m.Reactions
	return merged
}
