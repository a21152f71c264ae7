package client

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomkit/contract"
	"roomkit/contract/contracttest"
	"roomkit/domain"
	"roomkit/errors"
)

type emptyPage struct{}

func (emptyPage) Items() []domain.Message { return nil }
func (emptyPage) HasNext() bool           { return false }
func (emptyPage) Next(context.Context) (contract.HistoryPage, error) {
	return nil, errors.New(errors.KindNotFound, "next history page", "no further pages")
}

type stubHistory struct{}

func (stubHistory) FetchPage(context.Context, string, contract.HistoryQuery) (contract.HistoryPage, error) {
	return emptyPage{}, nil
}

func (stubHistory) FetchSingle(_ context.Context, _ string, serial string) (domain.Message, error) {
	return domain.Message{}, errors.New(errors.KindNotFound, "fetch message", "unknown serial %q", serial)
}

type stubPresence struct{}

func (stubPresence) FetchPresence(context.Context, string) ([]domain.PresenceMember, error) {
	return nil, nil
}

type stubProvider struct{}

func (stubProvider) Channel(string) contract.RealtimeChannel {
	return contracttest.NewFakeChannel()
}

func validConfig() Config {
	return Config{
		ClientID:   "alice",
		Provider:   stubProvider{},
		History:    stubHistory{},
		Presence:   stubPresence{},
		Connection: contracttest.NewFakeConnection(contract.ConnectionConnected),
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func Test_New_ValidatesConfig(t *testing.T) {
	req := require.New(t)

	// Given a config missing its identity and history collaborator
	cfg := validConfig()
	cfg.ClientID = ""
	cfg.History = nil

	// When the client is built
	_, err := New(cfg)

	// Then construction fails with a caller error
	req.Error(err)
	req.Equal(errors.KindInvalidArgument, errors.KindOf(err))
}

func Test_Client_ComposesRoomsAndConnection(t *testing.T) {
	req := require.New(t)

	c, err := New(validConfig())
	req.NoError(err)

	req.Equal("alice", c.ClientID())
	req.NotNil(c.Rooms())
	req.Equal(contract.ConnectionConnected, c.Connection().Status())

	room, err := c.Rooms().Get(context.Background(), "general", domain.AllFeatures())
	req.NoError(err)
	req.NotNil(room)
}

func Test_Close_ReleasesEveryRoom(t *testing.T) {
	req := require.New(t)

	c, err := New(validConfig())
	req.NoError(err)
	_, err = c.Rooms().Get(context.Background(), "general", domain.RoomOptions{})
	req.NoError(err)
	_, err = c.Rooms().Get(context.Background(), "random", domain.RoomOptions{})
	req.NoError(err)

	req.NoError(c.Close(context.Background()))

	req.Equal(0, c.Rooms().Len())
}

func Test_Connection_WaitFor_ResolvesOnTransition(t *testing.T) {
	req := require.New(t)

	// Given a disconnected connection
	source := contracttest.NewFakeConnection(contract.ConnectionDisconnected)
	cfg := validConfig()
	cfg.Connection = source
	c, err := New(cfg)
	req.NoError(err)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- c.Connection().WaitFor(ctx, contract.ConnectionConnected)
	}()

	// When the connection recovers
	time.Sleep(10 * time.Millisecond)
	source.SetState(contract.ConnectionConnected, nil)

	// Then the waiter resolves
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not resolve on transition")
	}
}

func Test_Connection_WaitFor_TimesOut(t *testing.T) {
	req := require.New(t)

	source := contracttest.NewFakeConnection(contract.ConnectionDisconnected)
	cfg := validConfig()
	cfg.Connection = source
	c, err := New(cfg)
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = c.Connection().WaitFor(ctx, contract.ConnectionConnected)

	req.Error(err)
	req.Equal(errors.KindOperationTimeout, errors.KindOf(err))
}
