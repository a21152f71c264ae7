package domain

import (
	"reflect"
	"time"
)

// Default tuning applied by NormalizeRoomOptions when a feature is
// enabled without explicit values.
const (
	DefaultMessageCacheCapacity = 128
	DefaultTypingTimeout        = 5 * time.Second
)

// RoomOptions selects which features a room enables and how. A nil
// feature block leaves that feature disabled; accessing a disabled
// feature is a caller error, because enabling decides which channel
// subscriptions the room requests.
//
// Options are immutable once a room is live: a Get with different
// options for the same identifier is rejected, never merged.
type RoomOptions struct {
	Messages  *MessagesOptions  `validate:"omitempty"`
	Presence  *PresenceOptions  `validate:"omitempty"`
	Typing    *TypingOptions    `validate:"omitempty"`
	Reactions *ReactionsOptions `validate:"omitempty"`
	Occupancy *OccupancyOptions `validate:"omitempty"`
}

// MessagesOptions tunes the messages feature.
type MessagesOptions struct {
	// CacheCapacity bounds the recency cache used to reconcile
	// realtime edits against messages not yet fetched.
	CacheCapacity int `validate:"gte=0"`
}

// PresenceOptions tunes the presence feature.
type PresenceOptions struct {
	// EnterData is published automatically when the room attaches, so
	// presence re-entry after a recovered connection carries the same
	// payload. Nil disables automatic entry.
	EnterData map[string]any
}

// TypingOptions tunes the typing indicator feature.
type TypingOptions struct {
	// Timeout is the debounce window: repeated typing signals inside
	// the window reset it, and expiry emits a single stopped event.
	Timeout time.Duration `validate:"gte=0"`
}

// ReactionsOptions enables ephemeral room-level reactions.
type ReactionsOptions struct{}

// OccupancyOptions enables occupancy metric events.
type OccupancyOptions struct{}

// AllFeatures returns options with every feature enabled at defaults.
func AllFeatures() RoomOptions {
	return RoomOptions{
		Messages:  &MessagesOptions{},
		Presence:  &PresenceOptions{},
		Typing:    &TypingOptions{},
		Reactions: &ReactionsOptions{},
		Occupancy: &OccupancyOptions{},
	}
}

// NormalizeRoomOptions fills zero values with defaults. Normalization
// happens before the room is created, so equality checks on later Get
// calls compare normalized forms.
func NormalizeRoomOptions(options RoomOptions) RoomOptions {
	if options.Messages != nil {
		messages := *options.Messages
		if messages.CacheCapacity == 0 {
			messages.CacheCapacity = DefaultMessageCacheCapacity
		}
		options.Messages = &messages
	}
	if options.Typing != nil {
		typing := *options.Typing
		if typing.Timeout == 0 {
			typing.Timeout = DefaultTypingTimeout
		}
		options.Typing = &typing
	}
	return options
}

// EqualRoomOptions compares two option sets by deep equality.
func EqualRoomOptions(a, b RoomOptions) bool {
	return reflect.DeepEqual(a, b)
}
