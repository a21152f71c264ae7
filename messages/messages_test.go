package messages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomkit/contract"
	"roomkit/contract/contracttest"
	"roomkit/domain"
	"roomkit/domain/event"
	"roomkit/errors"
	"roomkit/wire"
)

type fakePage struct {
	items []domain.Message
}

func (p fakePage) Items() []domain.Message { return p.items }
func (p fakePage) HasNext() bool           { return false }
func (p fakePage) Next(context.Context) (contract.HistoryPage, error) {
	return nil, errors.New(errors.KindNotFound, "next history page", "no further pages")
}

// fakeHistory scripts the history collaborator. When gate is set,
// FetchSingle signals started and blocks until gate is closed, letting
// tests pile events into the reconciliation queue mid-fetch.
type fakeHistory struct {
	mu        sync.Mutex
	singles   map[string]domain.Message
	singleErr error
	queries   []contract.HistoryQuery

	started chan struct{}
	gate    chan struct{}

	fetchSingleCalls int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{singles: make(map[string]domain.Message)}
}

func (f *fakeHistory) FetchPage(_ context.Context, _ string, query contract.HistoryQuery) (contract.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return fakePage{}, nil
}

func (f *fakeHistory) FetchSingle(_ context.Context, _ string, serial string) (domain.Message, error) {
	f.mu.Lock()
	f.fetchSingleCalls++
	started := f.started
	gate := f.gate
	err := f.singleErr
	msg, ok := f.singles[serial]
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, errors.New(errors.KindNotFound, "fetch message", "unknown serial %q", serial)
	}
	return msg, nil
}

func (f *fakeHistory) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchSingleCalls
}

func (f *fakeHistory) lastQuery() contract.HistoryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

// recorder collects event labels in arrival order.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (r *recorder) add(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMessages(channel contract.RoomChannel, history contract.HistorySource, timeout time.Duration) *Messages {
	return New(Config{
		RoomID:           "general",
		ClientID:         "alice",
		Channel:          channel,
		History:          history,
		Log:              testLogger(),
		OperationTimeout: timeout,
	})
}

func createdMessage(serial, clientID, text string) domain.Message {
	return domain.Message{
		Serial:    serial,
		Version:   serial,
		ClientID:  clientID,
		RoomID:    "general",
		Text:      text,
		Action:    domain.MessageActionCreate,
		CreatedAt: time.UnixMilli(100).UTC(),
		Timestamp: time.UnixMilli(100).UTC(),
	}
}

func deliverMessage(ch *contracttest.FakeChannel, eventName string, msg domain.Message, echoID string) {
	payload, err := wire.Encode(wire.FromMessage(msg, echoID))
	if err != nil {
		panic(err)
	}
	ch.Deliver(eventName, payload)
}

func deliverReaction(ch *contracttest.FakeChannel, eventName string, reaction domain.MessageReaction) {
	payload, err := wire.Encode(wire.ReactionPayload{
		ID:            reaction.ID,
		MessageSerial: reaction.MessageSerial,
		Name:          reaction.Name,
		ClientID:      reaction.ClientID,
		At:            reaction.At.UnixMilli(),
	})
	if err != nil {
		panic(err)
	}
	ch.Deliver(eventName, payload)
}

func Test_Send_SettlesOnRealtimeEcho(t *testing.T) {
	req := require.New(t)

	// Given a channel whose server side assigns a serial and echoes the
	// created event back
	ch := contracttest.NewFakeChannel()
	counter := 0
	ch.OnPublish = func(eventName string, payload []byte) {
		var intent wire.MessageIntent
		req.NoError(wire.Decode(payload, &intent))
		counter++
		serial := fmt.Sprintf("room@%d-%d", 100*counter, counter)
		echo := createdMessage(serial, "alice", intent.Text)
		deliverMessage(ch, wire.EventMessageCreated, echo, intent.EchoID)
	}
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	// When a message is sent
	sent, err := m.Send(context.Background(), SendParams{Text: "hello"})

	// Then the call resolves with the echoed snapshot, not the intent
	req.NoError(err)
	req.Equal("room@100-1", sent.Serial)
	req.Equal("hello", sent.Text)
	req.Equal(domain.MessageActionCreate, sent.Action)
	req.Equal(1, m.CacheLen())
}

func Test_Send_FailsOnPublishError(t *testing.T) {
	req := require.New(t)

	// Given a channel that rejects publishes
	ch := contracttest.NewFakeChannel()
	ch.PublishErr = errors.New(errors.KindTransport, "publish", "broker unavailable")
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	// When a message is sent
	_, err := m.Send(context.Background(), SendParams{Text: "hello"})

	// Then the publish error surfaces instead of waiting for an echo
	req.Error(err)
	req.Equal(errors.KindTransport, errors.KindOf(err))
}

func Test_Send_TimesOutWithoutEcho(t *testing.T) {
	req := require.New(t)

	// Given a channel that accepts the publish but never echoes
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), 50*time.Millisecond)
	defer m.Close()

	// When a message is sent
	_, err := m.Send(context.Background(), SendParams{Text: "hello"})

	// Then the operation times out
	req.Error(err)
	req.Equal(errors.KindOperationTimeout, errors.KindOf(err))
}

func Test_Update_RequiresSerial(t *testing.T) {
	req := require.New(t)

	m := newTestMessages(contracttest.NewFakeChannel(), newFakeHistory(), time.Second)
	defer m.Close()

	_, err := m.Update(context.Background(), domain.Message{}, UpdateParams{Text: "edited"})

	req.Error(err)
	req.Equal(errors.KindInvalidArgument, errors.KindOf(err))
}

func Test_InboundUpdate_MergesVersionKeepingIdentity(t *testing.T) {
	req := require.New(t)

	// Given a cached created message with one listener
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	rec := &recorder{}
	sub, err := m.Subscribe(context.Background(), func(ev event.MessageEvent) {
		rec.add(string(ev.Kind) + ":" + ev.Message.Text)
	})
	req.NoError(err)
	defer sub.Unsubscribe()

	original := createdMessage("room@100-1", "alice", "hello")
	deliverMessage(ch, wire.EventMessageCreated, original, "")

	// When an edit of that identity arrives
	edited := original
	edited.Version = "room@200-1"
	edited.Text = "hello, edited"
	edited.Action = domain.MessageActionUpdate
	edited.CreatedAt = time.Time{}
	deliverMessage(ch, wire.EventMessageUpdated, edited, "")

	// Then the listener observes create then update, and the merged
	// snapshot keeps the creation identity and timestamp
	req.Equal([]string{"created:hello", "updated:hello, edited"}, rec.snapshot())
	req.Equal(1, m.CacheLen())
}

func Test_InboundDuplicateCreate_IsIgnored(t *testing.T) {
	req := require.New(t)

	// Given a listener and one created message
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	rec := &recorder{}
	sub, err := m.Subscribe(context.Background(), func(ev event.MessageEvent) {
		rec.add(string(ev.Kind))
	})
	req.NoError(err)
	defer sub.Unsubscribe()

	msg := createdMessage("room@100-1", "alice", "hello")
	deliverMessage(ch, wire.EventMessageCreated, msg, "")

	// When the transport redelivers the same create
	deliverMessage(ch, wire.EventMessageCreated, msg, "")

	// Then no duplicate event or cache entry appears
	req.Equal([]string{"created"}, rec.snapshot())
	req.Equal(1, m.CacheLen())
}

func Test_InboundStaleVersion_IsIgnored(t *testing.T) {
	req := require.New(t)

	// Given a message already edited to a later version
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	rec := &recorder{}
	sub, err := m.Subscribe(context.Background(), func(ev event.MessageEvent) {
		rec.add(string(ev.Kind))
	})
	req.NoError(err)
	defer sub.Unsubscribe()

	original := createdMessage("room@100-1", "alice", "hello")
	deliverMessage(ch, wire.EventMessageCreated, original, "")

	late := original
	late.Version = "room@300-1"
	late.Text = "second edit"
	late.Action = domain.MessageActionUpdate
	deliverMessage(ch, wire.EventMessageUpdated, late, "")

	// When an older version of the same identity is redelivered
	early := original
	early.Version = "room@200-1"
	early.Text = "first edit"
	early.Action = domain.MessageActionUpdate
	deliverMessage(ch, wire.EventMessageUpdated, early, "")

	// Then the stale version produces no event
	req.Equal([]string{"created", "updated"}, rec.snapshot())
}

func Test_Reconciliation_QueuedEventsReplayInArrivalOrder(t *testing.T) {
	req := require.New(t)

	// Given a history source that resolves the missing identity only
	// when released
	history := newFakeHistory()
	original := createdMessage("room@100-1", "bob", "hello")
	history.singles[original.Serial] = original
	history.started = make(chan struct{})
	history.gate = make(chan struct{})

	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, history, time.Second)
	defer m.Close()

	rec := &recorder{}
	sub, err := m.Subscribe(context.Background(), func(ev event.MessageEvent) {
		rec.add(string(ev.Kind))
	})
	req.NoError(err)
	defer sub.Unsubscribe()
	offReactions, err := m.SubscribeReactions(context.Background(), func(event.ReactionEvent) {
		rec.add("reaction")
	})
	req.NoError(err)
	defer offReactions()

	// When an edit of an uncached identity arrives, followed by a
	// reaction and a delete while the fetch is still in flight
	edited := original
	edited.Version = "room@200-1"
	edited.Text = "hello, edited"
	edited.Action = domain.MessageActionUpdate
	started := history.started
	deliverMessage(ch, wire.EventMessageUpdated, edited, "")
	<-started

	deliverReaction(ch, wire.EventReactionAdded, domain.MessageReaction{
		ID: "r1", MessageSerial: original.Serial, Name: "like", ClientID: "carol",
	})
	deleted := original
	deleted.Version = "room@300-1"
	deleted.Action = domain.MessageActionDelete
	deliverMessage(ch, wire.EventMessageDeleted, deleted, "")
	close(history.gate)

	// Then the queued events replay in arrival order once the fetch
	// resolves, with a single fetch and no duplicate cache entry
	req.Eventually(func() bool {
		return len(rec.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)
	req.Equal([]string{"updated", "reaction", "deleted"}, rec.snapshot())
	req.Equal(1, history.calls())
	req.Equal(1, m.CacheLen())
}

func Test_Reconciliation_FetchFailureDropsEventsOfIdentity(t *testing.T) {
	req := require.New(t)

	// Given a history source that cannot resolve the missing identity
	history := newFakeHistory()
	history.started = make(chan struct{})
	history.gate = make(chan struct{})

	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, history, time.Second)
	defer m.Close()

	rec := &recorder{}
	sub, err := m.Subscribe(context.Background(), func(ev event.MessageEvent) {
		rec.add(string(ev.Kind) + ":" + ev.Message.Serial)
	})
	req.NoError(err)
	defer sub.Unsubscribe()

	// When an edit of the unknown identity queues behind the fetch
	// together with an unrelated create
	ghost := createdMessage("room@100-1", "bob", "gone")
	edited := ghost
	edited.Version = "room@200-1"
	edited.Action = domain.MessageActionUpdate
	started := history.started
	deliverMessage(ch, wire.EventMessageUpdated, edited, "")
	<-started

	other := createdMessage("room@150-1", "carol", "still here")
	deliverMessage(ch, wire.EventMessageCreated, other, "")
	close(history.gate)

	// Then the unresolvable edit is dropped and the create still applies
	req.Eventually(func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	req.Equal([]string{"created:room@150-1"}, rec.snapshot())
	req.Equal(1, m.CacheLen())
}

func Test_Subscribe_FirstListenerAttaches_LastDetaches(t *testing.T) {
	req := require.New(t)

	// Given a feature with no listeners
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()
	req.Equal(0, ch.AttachCalls())

	// When two listeners register and then both unsubscribe
	first, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)
	second, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)

	req.Equal(1, ch.AttachCalls())

	first.Unsubscribe()
	req.Equal(0, ch.DetachCalls())
	second.Unsubscribe()

	// Then the channel attached once and detached only after the last
	// listener left
	req.Equal(1, ch.AttachCalls())
	req.Equal(1, ch.DetachCalls())
}

func Test_Unsubscribe_IsIdempotent(t *testing.T) {
	req := require.New(t)

	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	sub, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	req.Equal(1, ch.DetachCalls())
}

func Test_HistoryBeforeSubscribe_AnchorsOnLatestSeenSerial(t *testing.T) {
	req := require.New(t)

	// Given a message observed before the subscription
	ch := contracttest.NewFakeChannel()
	history := newFakeHistory()
	m := newTestMessages(ch, history, time.Second)
	defer m.Close()

	warmup, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)
	defer warmup.Unsubscribe()
	deliverMessage(ch, wire.EventMessageCreated, createdMessage("room@100-1", "bob", "hello"), "")

	sub, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)
	defer sub.Unsubscribe()

	// When history before the subscription point is fetched
	_, err = sub.HistoryBeforeSubscribe(context.Background(), contract.HistoryQuery{Limit: 10})

	// Then the query anchors on the last serial seen before subscribing
	req.NoError(err)
	query := history.lastQuery()
	req.Equal("room@100-1", query.EndSerial)
	req.True(query.End.IsZero())
}

func Test_HistoryBeforeSubscribe_FallsBackToSubscribeTime(t *testing.T) {
	req := require.New(t)

	// Given no message observed before the subscription
	ch := contracttest.NewFakeChannel()
	history := newFakeHistory()
	m := newTestMessages(ch, history, time.Second)
	defer m.Close()

	before := time.Now().UTC()
	sub, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)
	defer sub.Unsubscribe()

	// When history before the subscription point is fetched
	_, err = sub.HistoryBeforeSubscribe(context.Background(), contract.HistoryQuery{})

	// Then the query anchors on the subscription time instead
	req.NoError(err)
	query := history.lastQuery()
	req.Empty(query.EndSerial)
	req.False(query.End.Before(before))
	req.False(query.End.After(time.Now().UTC()))
}

func Test_ReactionEvents_RecomputeSummary(t *testing.T) {
	req := require.New(t)

	// Given a cached message with summary listeners
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), time.Second)
	defer m.Close()

	var (
		mu        sync.Mutex
		summaries []domain.ReactionSummary
	)
	off, err := m.SubscribeReactionSummaries(context.Background(), func(ev event.SummaryEvent) {
		mu.Lock()
		defer mu.Unlock()
		summaries = append(summaries, ev.Summary)
	})
	req.NoError(err)
	defer off()

	deliverMessage(ch, wire.EventMessageCreated, createdMessage("room@100-1", "bob", "hello"), "")

	// When two reactions arrive and one is retracted
	deliverReaction(ch, wire.EventReactionAdded, domain.MessageReaction{
		ID: "r1", MessageSerial: "room@100-1", Name: "like", ClientID: "alice",
	})
	deliverReaction(ch, wire.EventReactionAdded, domain.MessageReaction{
		ID: "r2", MessageSerial: "room@100-1", Name: "like", ClientID: "carol",
	})
	deliverReaction(ch, wire.EventReactionRemoved, domain.MessageReaction{
		ID: "r1", MessageSerial: "room@100-1", Name: "like", ClientID: "alice",
	})

	// Then every summary reflects the running aggregate, and the local
	// client's reactions are tracked separately
	mu.Lock()
	defer mu.Unlock()
	req.Len(summaries, 3)
	req.Equal(1, summaries[0]["like"].Total)
	req.Equal([]string{"r1"}, summaries[0]["like"].Mine)
	req.Equal(2, summaries[1]["like"].Total)
	req.Equal(1, summaries[2]["like"].Total)
	req.Empty(summaries[2]["like"].Mine)
}

func Test_AddReaction_ValidatesInput(t *testing.T) {
	req := require.New(t)

	m := newTestMessages(contracttest.NewFakeChannel(), newFakeHistory(), time.Second)
	defer m.Close()

	err := m.AddReaction(context.Background(), "room@100-1", "")

	req.Error(err)
	req.Equal(errors.KindInvalidArgument, errors.KindOf(err))
}

func Test_Close_FailsPendingOperations(t *testing.T) {
	req := require.New(t)

	// Given an operation waiting for an echo that will never arrive
	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, newFakeHistory(), 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), SendParams{Text: "hello"})
		done <- err
	}()
	req.Eventually(func() bool {
		return len(ch.Published()) == 1
	}, time.Second, 5*time.Millisecond)

	// When the feature closes
	m.Close()

	// Then the pending operation fails with the release error
	select {
	case err := <-done:
		req.Error(err)
		req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))
	case <-time.After(time.Second):
		t.Fatal("pending send did not fail on close")
	}

	// And further operations are rejected outright
	_, err := m.Send(context.Background(), SendParams{Text: "again"})
	req.Error(err)
	req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))
}

func Test_CacheEviction_BoundsMemory(t *testing.T) {
	req := require.New(t)

	// Given a feature with a tiny cache
	ch := contracttest.NewFakeChannel()
	m := New(Config{
		RoomID:        "general",
		ClientID:      "alice",
		Channel:       ch,
		History:       newFakeHistory(),
		Log:           testLogger(),
		CacheCapacity: 2,
	})
	defer m.Close()

	sub, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)
	defer sub.Unsubscribe()

	// When more messages arrive than the cache holds
	for i := 1; i <= 5; i++ {
		serial := fmt.Sprintf("room@%d-%d", 100*i, i)
		deliverMessage(ch, wire.EventMessageCreated, createdMessage(serial, "bob", "msg"), "")
	}

	// Then the cache never exceeds its capacity
	req.Equal(2, m.CacheLen())
}

func Test_CacheClearedOnDetach_ForcesFreshFetch(t *testing.T) {
	req := require.New(t)

	// Given a feature holding one cached message
	ch := contracttest.NewFakeChannel()
	history := newFakeHistory()
	m := newTestMessages(ch, history, time.Second)
	defer m.Close()

	sub, err := m.Subscribe(context.Background(), func(event.MessageEvent) {})
	req.NoError(err)
	defer sub.Unsubscribe()

	original := createdMessage("room@100-1", "bob", "hello")
	history.singles[original.Serial] = original
	deliverMessage(ch, wire.EventMessageCreated, original, "")
	req.Equal(1, m.CacheLen())

	// When the channel detaches
	ch.SetState(contract.ChannelDetached, nil)

	// Then the cache is evicted immediately
	req.Equal(0, m.CacheLen())

	// And a reaction arriving after re-attach rebuilds its base state
	// through a fresh history fetch rather than a stale entry
	ch.SetState(contract.ChannelAttached, nil)

	var (
		mu        sync.Mutex
		summaries []domain.ReactionSummary
	)
	off, err := m.SubscribeReactionSummaries(context.Background(), func(ev event.SummaryEvent) {
		mu.Lock()
		defer mu.Unlock()
		summaries = append(summaries, ev.Summary)
	})
	req.NoError(err)
	defer off()

	deliverReaction(ch, wire.EventReactionAdded, domain.MessageReaction{
		ID: "r1", MessageSerial: original.Serial, Name: "like", ClientID: "carol",
	})

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(summaries) == 1
	}, time.Second, 5*time.Millisecond)
	req.Equal(1, history.calls())
	mu.Lock()
	defer mu.Unlock()
	req.Equal(1, summaries[0]["like"].Total)
}

func Test_CacheClearedOnDetach_DiscardsInFlightFetch(t *testing.T) {
	req := require.New(t)

	// Given a fetch-on-miss blocked mid-flight
	history := newFakeHistory()
	ghost := createdMessage("room@100-1", "bob", "gone")
	history.singles[ghost.Serial] = ghost
	history.started = make(chan struct{})
	history.gate = make(chan struct{})

	ch := contracttest.NewFakeChannel()
	m := newTestMessages(ch, history, time.Second)
	defer m.Close()

	rec := &recorder{}
	sub, err := m.Subscribe(context.Background(), func(ev event.MessageEvent) {
		rec.add(string(ev.Kind))
	})
	req.NoError(err)
	defer sub.Unsubscribe()

	edited := ghost
	edited.Version = "room@200-1"
	edited.Action = domain.MessageActionUpdate
	started := history.started
	deliverMessage(ch, wire.EventMessageUpdated, edited, "")
	<-started

	// When the channel detaches before the fetch resolves
	ch.SetState(contract.ChannelDetached, nil)
	close(history.gate)

	// Then the fetch result is discarded: no cache entry, no replayed
	// event
	time.Sleep(20 * time.Millisecond)
	req.Equal(0, m.CacheLen())
	req.Empty(rec.snapshot())
}
