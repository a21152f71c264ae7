// Command chat runs a scripted two-client conversation against the
// in-process sandbox backend and renders the room history as a table.
// It exists to show the full wiring of a client on top of the
// transport contracts; everything it talks to lives in this process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"roomkit/client"
	"roomkit/contract"
	"roomkit/domain"
	"roomkit/domain/event"
	"roomkit/messages"
	"roomkit/sandbox"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, drives the scripted conversation and
// centralizes error reporting, so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Sandbox backend
	sandboxConfig, err := sandbox.ConfigFromEnv()
	if err != nil {
		return err
	}
	backend, err := sandbox.New(sandboxConfig, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing sandbox store...")
		_ = backend.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	backend.Start(ctx)

	// 4. Two clients over the same backend
	local, err := newClient(backend, config.ClientID, log)
	if err != nil {
		return err
	}
	defer local.Close(context.Background())
	peer, err := newClient(backend, config.PeerID, log)
	if err != nil {
		return err
	}
	defer peer.Close(context.Background())

	// 5. The conversation
	if err := converse(ctx, config, local, peer); err != nil {
		return err
	}

	// 6. Render what the room remembers
	if err := renderHistory(ctx, config, local); err != nil {
		return err
	}

	log.Info("Demo finished cleanly")
	return nil
}

func newClient(backend *sandbox.Sandbox, clientID string, log *slog.Logger) (*client.Client, error) {
	session := backend.SessionFor(clientID)
	return client.New(client.Config{
		ClientID:   clientID,
		Provider:   session,
		History:    backend,
		Presence:   backend,
		Connection: session,
		Log:        log,
	})
}

// converse attaches both clients to the room and plays a short script:
// presence entry, a few messages, an edit, a reaction and typing.
func converse(ctx context.Context, config Config, local, peer *client.Client) error {
	options := domain.RoomOptions{
		Messages:  &domain.MessagesOptions{},
		Presence:  &domain.PresenceOptions{},
		Typing:    &domain.TypingOptions{Timeout: config.TypingTimeout},
		Reactions: &domain.ReactionsOptions{},
		Occupancy: &domain.OccupancyOptions{},
	}

	localRoom, err := local.Rooms().Get(ctx, config.RoomID, options)
	if err != nil {
		return err
	}
	peerRoom, err := peer.Rooms().Get(ctx, config.RoomID, options)
	if err != nil {
		return err
	}
	if err := localRoom.Attach(ctx); err != nil {
		return err
	}
	if err := peerRoom.Attach(ctx); err != nil {
		return err
	}

	// The local client narrates everything it observes.
	localMsgs, err := localRoom.Messages()
	if err != nil {
		return err
	}
	sub, err := localMsgs.Subscribe(ctx, func(e event.MessageEvent) {
		announce(config, fmt.Sprintf("%s %s: %q", e.Message.ClientID, e.Kind, e.Message.Text))
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	localPresence, err := localRoom.Presence()
	if err != nil {
		return err
	}
	if _, err := localPresence.Subscribe(ctx, func(e event.PresenceEvent) {
		announce(config, fmt.Sprintf("presence: %s %s", e.Member.ClientID, e.Kind))
	}); err != nil {
		return err
	}

	peerPresence, err := peerRoom.Presence()
	if err != nil {
		return err
	}
	if err := peerPresence.Enter(ctx, map[string]any{"mood": "chatty"}); err != nil {
		return err
	}

	peerTyping, err := peerRoom.Typing()
	if err != nil {
		return err
	}
	if err := peerTyping.Start(ctx); err != nil {
		return err
	}

	peerMsgs, err := peerRoom.Messages()
	if err != nil {
		return err
	}
	greeting, err := peerMsgs.Send(ctx, messages.SendParams{Text: "hello there"})
	if err != nil {
		return err
	}
	if err := peerTyping.Stop(ctx); err != nil {
		return err
	}

	reply, err := localMsgs.Send(ctx, messages.SendParams{Text: "welcome!"})
	if err != nil {
		return err
	}
	if _, err := localMsgs.Update(ctx, reply, messages.UpdateParams{Text: "welcome to the room!"}); err != nil {
		return err
	}
	if err := localMsgs.AddReaction(ctx, greeting.Serial, "wave"); err != nil {
		return err
	}

	// Let the last echoes land before rendering.
	time.Sleep(200 * time.Millisecond)
	return nil
}

// renderHistory prints the room history newest first, teletype style.
func renderHistory(ctx context.Context, config Config, local *client.Client) error {
	room, err := local.Rooms().Get(ctx, config.RoomID, domain.RoomOptions{
		Messages:  &domain.MessagesOptions{},
		Presence:  &domain.PresenceOptions{},
		Typing:    &domain.TypingOptions{Timeout: config.TypingTimeout},
		Reactions: &domain.ReactionsOptions{},
		Occupancy: &domain.OccupancyOptions{},
	})
	if err != nil {
		return err
	}
	msgs, err := room.Messages()
	if err != nil {
		return err
	}
	page, err := msgs.History(ctx, contract.HistoryQuery{Limit: config.HistoryLimit})
	if err != nil {
		return err
	}

	announce(config, fmt.Sprintf("====== history of %q ======", config.RoomID))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Client", "Action", "Text", "Serial"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, msg := range page.Items() {
		text := msg.Text
		if msg.IsDeleted() {
			text = "(deleted)"
		}
		table.Append([]string{
			msg.Timestamp.Format("15:04:05"),
			msg.ClientID,
			string(msg.Action),
			text,
			shorten(msg.Serial),
		})
	}
	table.Render()
	return nil
}

func announce(config Config, line string) {
	if config.Colours {
		line = color.New(color.FgGreen).Render(line)
	}
	fmt.Println(line)
}

func shorten(serial string) string {
	if len(serial) > 24 {
		return serial[:24] + "…"
	}
	return serial
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
