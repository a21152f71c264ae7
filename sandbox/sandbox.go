// Package sandbox is an in-process realtime backend implementing the
// transport, history, presence and connection contracts. It exists so
// the chat layer can run end to end without an external broker: one
// supervised worker per room dispatches commands in order, message
// snapshots persist in BadgerDB, and sessions authenticate with signed
// room tokens.
package sandbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/errors"
)

// Config tunes the sandbox backend.
type Config struct {
	// DataDir is the badger directory. Empty runs fully in memory.
	DataDir string `envconfig:"DATA_DIR"`
	// PageLimit caps history page sizes.
	PageLimit int `envconfig:"PAGE_LIMIT" default:"50"`
	// CommandBuffer sizes each room broker's command channel.
	CommandBuffer int `envconfig:"COMMAND_BUFFER" default:"64"`
	// TokenSecret signs room-access tokens.
	TokenSecret string `envconfig:"TOKEN_SECRET" default:"roomkit-sandbox-dev-secret"`
	// TokenTTL bounds token validity.
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// ConfigFromEnv reads the SANDBOX_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("SANDBOX", &cfg); err != nil {
		return Config{}, errors.Wrap(errors.KindInvalidArgument, "load sandbox config", err)
	}
	return cfg, nil
}

// Sandbox is the in-process backend. It implements the history and
// presence source contracts directly; channel providers and connection
// sources are per session.
type Sandbox struct {
	log    *slog.Logger
	cfg    Config
	db     *badger.DB
	store  *historyStore
	tokens *tokenIssuer
	sup    *supervisor

	mu      sync.Mutex
	hubs    map[string]*roomHub
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New opens the backing store and prepares the backend. Start must be
// called before sessions are opened.
func New(cfg Config, log *slog.Logger) (*Sandbox, error) {
	options := badger.DefaultOptions(cfg.DataDir).WithLogger(nil)
	if cfg.DataDir == "" {
		options = options.WithInMemory(true)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "open sandbox store", err)
	}
	return &Sandbox{
		log:    log,
		cfg:    cfg,
		db:     db,
		store:  newHistoryStore(db, log, cfg.PageLimit),
		tokens: newTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL),
		sup:    newSupervisor(log),
		hubs:   make(map[string]*roomHub),
	}, nil
}

// Start begins supervising room brokers. Brokers for rooms opened
// later start under the same supervision.
func (s *Sandbox) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
}

// Close stops every broker, waits for them and closes the store.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.sup.Wait()
	if err := s.db.Close(); err != nil {
		return errors.Wrap(errors.KindInternal, "close sandbox store", err)
	}
	return nil
}

// IssueToken signs a room-access token for a client identity.
func (s *Sandbox) IssueToken(clientID, roomID string) (string, error) {
	return s.tokens.Issue(clientID, roomID)
}

// OpenSession validates a token and opens a session for its identity.
func (s *Sandbox) OpenSession(token string) (*Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	return s.session(claims.ClientID, claims.RoomID), nil
}

// SessionFor opens a session without token checks. Test convenience.
func (s *Sandbox) SessionFor(clientID string) *Session {
	return s.session(clientID, "")
}

func (s *Sandbox) session(clientID, roomScope string) *Session {
	return &Session{
		sandbox:   s,
		clientID:  clientID,
		roomScope: roomScope,
		conn:      newConnectionHub(),
	}
}

// hub returns the broker of one room, creating and supervising it on
// first use.
func (s *Sandbox) hub(roomID string) *roomHub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hub, ok := s.hubs[roomID]; ok {
		return hub
	}
	if !s.started {
		panic("sandbox: Start must be called before opening rooms")
	}
	hub := newRoomHub(roomID, s.store, s.log, s.cfg.CommandBuffer)
	s.hubs[roomID] = hub
	s.sup.Start(s.ctx, hub)
	s.log.Debug("room broker started", "room", roomID)
	return hub
}

// FetchPage implements contract.HistorySource.
func (s *Sandbox) FetchPage(ctx context.Context, roomID string, query contract.HistoryQuery) (contract.HistoryPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindOperationTimeout, "fetch history page", err)
	}
	return s.store.page(roomID, query, "")
}

// FetchSingle implements contract.HistorySource.
func (s *Sandbox) FetchSingle(ctx context.Context, roomID string, serial string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, errors.Wrap(errors.KindOperationTimeout, "fetch message", err)
	}
	return s.store.get(roomID, serial)
}

// FetchPresence implements contract.PresenceSource.
func (s *Sandbox) FetchPresence(ctx context.Context, roomID string) ([]domain.PresenceMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindOperationTimeout, "fetch presence", err)
	}
	return s.hub(roomID).presenceSnapshot(), nil
}

// Session is one authenticated client connection to the sandbox. It
// implements the channel provider and connection source contracts.
type Session struct {
	sandbox   *Sandbox
	clientID  string
	roomScope string
	conn      *connectionHub
}

// ClientID returns the identity the session was opened for.
func (se *Session) ClientID() string { return se.clientID }

// Channel implements contract.ChannelProvider. A room outside the
// token's scope gets a channel whose every operation fails.
func (se *Session) Channel(roomID string) contract.RealtimeChannel {
	if se.roomScope != "" && se.roomScope != roomID {
		return &deniedChannel{roomID: roomID}
	}
	return se.sandbox.hub(roomID).newChannel(se.clientID)
}

// State implements contract.ConnectionSource.
func (se *Session) State() contract.ConnectionState { return se.conn.state() }

// OnStateChange implements contract.ConnectionSource.
func (se *Session) OnStateChange(handler contract.ConnectionHandler) func() {
	return se.conn.onStateChange(handler)
}

// SetConnectionState drives the session's connection state. Exposed so
// tests and demos can simulate disconnects.
func (se *Session) SetConnectionState(state contract.ConnectionState, reason error) {
	se.conn.setState(state, reason)
}

// connectionHub is the session-level connection state machine. The
// sandbox never loses its in-process "connection", so transitions only
// happen when driven explicitly.
type connectionHub struct {
	mu       sync.Mutex
	current  contract.ConnectionState
	handlers []connSub
	nextID   int
}

type connSub struct {
	id      int
	handler contract.ConnectionHandler
}

func newConnectionHub() *connectionHub {
	return &connectionHub{current: contract.ConnectionConnected}
}

func (c *connectionHub) state() contract.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *connectionHub) onStateChange(handler contract.ConnectionHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers = append(c.handlers, connSub{id: id, handler: handler})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.handlers {
			if s.id == id {
				c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

func (c *connectionHub) setState(state contract.ConnectionState, reason error) {
	c.mu.Lock()
	previous := c.current
	c.current = state
	subs := make([]connSub, len(c.handlers))
	copy(subs, c.handlers)
	c.mu.Unlock()

	change := contract.ConnectionStateChange{Previous: previous, Current: state, Reason: reason}
	for _, s := range subs {
		s.handler(change)
	}
}

// deniedChannel is returned for rooms outside a token's scope. Every
// operation fails; nothing reaches the broker.
type deniedChannel struct {
	roomID string
}

func (d *deniedChannel) Attach(context.Context) error {
	return errors.New(errors.KindTransport, "attach channel", "token is not valid for room %q", d.roomID)
}

func (d *deniedChannel) Detach(context.Context) error { return nil }

func (d *deniedChannel) Subscribe([]string, contract.MessageHandler) func() {
	return func() {}
}

func (d *deniedChannel) Publish(context.Context, string, []byte) error {
	return errors.New(errors.KindTransport, "publish", "token is not valid for room %q", d.roomID)
}

func (d *deniedChannel) OnStateChange(contract.StateHandler) func() {
	return func() {}
}

func (d *deniedChannel) State() contract.ChannelState { return contract.ChannelFailed }
