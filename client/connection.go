package client

import (
	"context"

	"roomkit/contract"
	"roomkit/errors"
)

// Connection exposes the process-level connection status to consumers.
// One connection backs every room of a client; rooms observe its
// channel-level consequences themselves, this wrapper exists for
// callers that want the aggregate view.
type Connection struct {
	source contract.ConnectionSource
}

func newConnection(source contract.ConnectionSource) *Connection {
	return &Connection{source: source}
}

// Status reports the current connection state.
func (c *Connection) Status() contract.ConnectionState {
	return c.source.State()
}

// OnStatusChange registers an observer for connection transitions.
func (c *Connection) OnStatusChange(fn contract.ConnectionHandler) (off func()) {
	return c.source.OnStateChange(fn)
}

// WaitFor blocks until the connection reaches the wanted state or the
// context expires. A connection already in the wanted state returns
// immediately.
func (c *Connection) WaitFor(ctx context.Context, want contract.ConnectionState) error {
	reached := make(chan struct{}, 1)
	off := c.source.OnStateChange(func(change contract.ConnectionStateChange) {
		if change.Current == want {
			select {
			case reached <- struct{}{}:
			default:
			}
		}
	})
	defer off()

	// Check after subscribing so a transition between the check and the
	// subscription cannot be missed.
	if c.source.State() == want {
		return nil
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.KindOperationTimeout, "wait for connection state", ctx.Err())
	}
}
