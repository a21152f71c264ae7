package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"roomkit/client"
	"roomkit/sandbox"
)

// BaseSuite spins a fresh in-process sandbox backend per test and
// hands out fully wired clients on top of it.
type BaseSuite struct {
	suite.Suite
	Config Config

	sandbox *sandbox.Sandbox
	cancel  context.CancelFunc
	clients []*client.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseSuite) SetupTest() {
	backend, err := sandbox.New(sandbox.Config{
		DataDir:       s.Config.DataDir,
		PageLimit:     50,
		CommandBuffer: 64,
		TokenSecret:   "e2e-secret",
		TokenTTL:      time.Hour,
	}, s.logger())
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	backend.Start(ctx)
	s.sandbox = backend
	s.cancel = cancel
	s.clients = nil
}

func (s *BaseSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range s.clients {
		_ = c.Close(ctx)
	}
	s.cancel()
	s.Require().NoError(s.sandbox.Close())
}

// Step prints a colorized header so scenario phases stand out in logs
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// NewClient builds a client whose session is scoped to every room.
func (s *BaseSuite) NewClient(clientID string) *client.Client {
	session := s.sandbox.SessionFor(clientID)
	c, err := client.New(client.Config{
		ClientID:   clientID,
		Provider:   session,
		History:    s.sandbox,
		Presence:   s.sandbox,
		Connection: session,
		Log:        s.logger(),
	})
	s.Require().NoError(err)
	s.clients = append(s.clients, c)
	return c
}

func (s *BaseSuite) logger() *slog.Logger {
	if s.Config.Debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
