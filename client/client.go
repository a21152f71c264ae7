// Package client assembles the public entry point: a Client composing
// the room lifecycle manager with the process-level connection wrapper.
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"roomkit/contract"
	"roomkit/errors"
	"roomkit/rooms"
)

// Config carries the collaborators a client is built on. All of them
// are externally owned; the client never dials or persists anything
// itself.
type Config struct {
	ClientID   string                    `validate:"required"`
	Provider   contract.ChannelProvider  `validate:"required"`
	History    contract.HistorySource    `validate:"required"`
	Presence   contract.PresenceSource   `validate:"required"`
	Connection contract.ConnectionSource `validate:"required"`

	// Log defaults to slog.Default when nil.
	Log *slog.Logger
	// SuspendedRetryTimeout overrides the room default when positive.
	SuspendedRetryTimeout time.Duration `validate:"gte=0"`
}

// Client is the top-level facade. One client serves one identity and
// any number of rooms.
type Client struct {
	clientID   string
	rooms      *rooms.Rooms
	connection *Connection
	log        *slog.Logger
}

// New validates the configuration and assembles a client.
func New(cfg Config) (*Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.KindInvalidArgument, "build client", err)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("client", cfg.ClientID)

	return &Client{
		clientID: cfg.ClientID,
		rooms: rooms.NewManager(rooms.Config{
			ClientID:              cfg.ClientID,
			Provider:              cfg.Provider,
			History:               cfg.History,
			Presence:              cfg.Presence,
			Log:                   log,
			SuspendedRetryTimeout: cfg.SuspendedRetryTimeout,
		}),
		connection: newConnection(cfg.Connection),
		log:        log,
	}, nil
}

// ClientID returns the identity this client publishes as.
func (c *Client) ClientID() string { return c.clientID }

// Rooms returns the room lifecycle manager.
func (c *Client) Rooms() *rooms.Rooms { return c.rooms }

// Connection returns the process-level connection wrapper.
func (c *Client) Connection() *Connection { return c.connection }

// Close releases every room. The underlying transport stays up; it
// belongs to the caller.
func (c *Client) Close(ctx context.Context) error {
	c.log.Debug("client closing")
	return c.rooms.ReleaseAll(ctx)
}
