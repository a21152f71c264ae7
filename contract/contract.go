//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"time"

	"roomkit/domain"
)

// ChannelState is the lifecycle state of one realtime channel, as
// reported by the transport.
type ChannelState string

const (
	ChannelAttaching ChannelState = "attaching"
	ChannelAttached  ChannelState = "attached"
	ChannelDetaching ChannelState = "detaching"
	ChannelDetached  ChannelState = "detached"
	ChannelSuspended ChannelState = "suspended"
	ChannelFailed    ChannelState = "failed"
)

// ChannelStateChange is one transition of a channel's state. Reason is
// set when the transport attaches an error to the transition.
type ChannelStateChange struct {
	Previous ChannelState
	Current  ChannelState
	Reason   error
}

// ChannelMessage is one event delivered on a channel.
type ChannelMessage struct {
	Event     string
	Payload   []byte
	ClientID  string
	Timestamp time.Time
}

// MessageHandler receives channel events. Handlers run synchronously
// on the delivery path and must not block.
type MessageHandler func(ChannelMessage)

// StateHandler receives channel or connection state transitions.
type StateHandler func(ChannelStateChange)

// RealtimeChannel is the narrow surface of the external realtime
// transport consumed by roomkit. The transport guarantees reliable,
// ordered, at-least-once delivery per channel; everything above that
// (room lifecycle, feature coordination, caches) is this module's job.
type RealtimeChannel interface {
	// Attach starts event delivery. Safe to call when already attached.
	Attach(ctx context.Context) error
	// Detach suspends event delivery without dropping subscriptions.
	Detach(ctx context.Context) error
	// Subscribe registers a handler for the named events and returns
	// its unsubscribe func. Subscriptions survive detach/re-attach.
	Subscribe(events []string, handler MessageHandler) (unsubscribe func())
	// Publish sends one event into the channel.
	Publish(ctx context.Context, event string, payload []byte) error
	// OnStateChange registers a state transition observer.
	OnStateChange(handler StateHandler) (unsubscribe func())
	// State reports the current channel state.
	State() ChannelState
}

// RoomChannel is the feature-facing surface of the one channel a room
// shares across its features. Attach and detach of the underlying
// channel are reference-counted by feature interest: the channel
// attaches when the first feature declares interest and detaches when
// the last one withdraws, so no feature can unilaterally detach a
// channel another feature is still listening on.
type RoomChannel interface {
	// AcquireInterest declares a feature's interest in a live channel,
	// attaching the underlying channel when it is the first.
	AcquireInterest(ctx context.Context, feature string) error
	// ReleaseInterest withdraws a feature's interest, detaching the
	// underlying channel when it was the last.
	ReleaseInterest(ctx context.Context, feature string) error
	Subscribe(events []string, handler MessageHandler) (unsubscribe func())
	Publish(ctx context.Context, event string, payload []byte) error
	OnStateChange(handler StateHandler) (unsubscribe func())
	State() ChannelState
}

// ChannelProvider hands out the single shared channel for a room
// identifier. Repeated calls for the same identifier may return the
// same or a fresh channel; the room lifecycle manager guarantees only
// one room object consumes it at a time.
type ChannelProvider interface {
	Channel(roomID string) RealtimeChannel
}

// HistoryQuery bounds a history fetch.
type HistoryQuery struct {
	// Limit caps the page size. Zero means the collaborator's default.
	Limit int
	// Start and End bound results to [Start, End) by message timestamp.
	// Zero values leave the corresponding bound open.
	Start time.Time
	End   time.Time
	// EndSerial, when set, restricts results to messages whose serial
	// sorts at or before it. Used by history-before-subscribe.
	EndSerial string
}

// HistoryPage is one page of a paginated history result, newest first.
type HistoryPage interface {
	Items() []domain.Message
	HasNext() bool
	Next(ctx context.Context) (HistoryPage, error)
}

// HistorySource is the opaque paginated-fetch collaborator backing
// history queries and single-message cache-miss fetches.
type HistorySource interface {
	FetchPage(ctx context.Context, roomID string, query HistoryQuery) (HistoryPage, error)
	// FetchSingle resolves one message identity to its latest known
	// snapshot. Unknown identities fail with a KindNotFound error.
	FetchSingle(ctx context.Context, roomID string, serial string) (domain.Message, error)
}

// PresenceSource fetches the authoritative presence set of a room,
// used to seed local state on attach and re-attach.
type PresenceSource interface {
	FetchPresence(ctx context.Context, roomID string) ([]domain.PresenceMember, error)
}

// ConnectionState is the process-level connection state.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionSuspended    ConnectionState = "suspended"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

// ConnectionStateChange is one transition of the process-level
// connection.
type ConnectionStateChange struct {
	Previous ConnectionState
	Current  ConnectionState
	Reason   error
}

// ConnectionHandler receives connection state transitions.
type ConnectionHandler func(ConnectionStateChange)

// ConnectionSource exposes the process-level connection status stream.
// There is one connection per client, shared by every room.
type ConnectionSource interface {
	OnStateChange(handler ConnectionHandler) (unsubscribe func())
	State() ConnectionState
}
