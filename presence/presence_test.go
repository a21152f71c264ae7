package presence

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

// fakeSource scripts the presence collaborator: the first failFirst
// fetches error out, later ones return members.
type fakeSource struct {
	mu        sync.Mutex
	members   []domain.PresenceMember
	failFirst int
	calls     int
}

func (f *fakeSource) FetchPresence(ctx context.Context, roomID string) ([]domain.PresenceMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return nil, fmt.Errorf("collaborator unavailable")
	}
	out := make([]domain.PresenceMember, len(f.members))
	copy(out, f.members)
	return out, nil
}

func (f *fakeSource) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPresence(source *fakeSource, enter map[string]any) (*Presence, *contracttest.FakeChannel) {
	ch := contracttest.NewFakeChannel()
	p := New(Config{
		RoomID:    "general",
		ClientID:  "alice",
		Channel:   ch,
		Source:    source,
		Log:       testLogger(),
		EnterData: enter,
	})
	return p, ch
}

func deliverPresence(ch *contracttest.FakeChannel, eventName, clientID string, data map[string]any) {
	payload, err := wire.Encode(wire.PresencePayload{
		ClientID: clientID,
		Data:     data,
		At:       time.Now().UnixMilli(),
	})
	if err != nil {
		panic(err)
	}
	ch.Deliver(eventName, payload)
}

func Test_Get_SeedsFromCollaboratorOnce(t *testing.T) {
	req := require.New(t)

	// Given a collaborator knowing one member
	source := &fakeSource{members: []domain.PresenceMember{{ClientID: "bob"}}}
	p, _ := newTestPresence(source, nil)

	// When the set is read twice
	first, err := p.Get(context.Background())
	req.NoError(err)
	second, err := p.Get(context.Background())
	req.NoError(err)

	// Then both reads see the member and only one fetch happened
	req.Len(first, 1)
	req.Len(second, 1)
	req.Equal("bob", first[0].ClientID)
	req.Equal(1, source.fetchCalls())
}

func Test_Get_RetriesBeforeSucceeding(t *testing.T) {
	req := require.New(t)

	source := &fakeSource{
		members:   []domain.PresenceMember{{ClientID: "bob"}},
		failFirst: 1,
	}
	p, _ := newTestPresence(source, nil)

	members, err := p.Get(context.Background())

	req.NoError(err)
	req.Len(members, 1)
	req.Equal(2, source.fetchCalls())
}

func Test_Get_ExhaustedRetriesSurfaceFetchFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("walks the full backoff schedule")
	}
	req := require.New(t)

	source := &fakeSource{failFirst: 1 << 30}
	p, _ := newTestPresence(source, nil)

	_, err := p.Get(context.Background())

	req.Error(err)
	req.Equal(errors.KindPresenceFetchFailed, errors.KindOf(err))
	req.Equal(maxAttempts, source.fetchCalls())
}

func Test_Get_CancelledContextAbortsRetry(t *testing.T) {
	req := require.New(t)

	// Given a collaborator that never answers
	source := &fakeSource{failFirst: 1 << 30}
	p, _ := newTestPresence(source, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Let the first attempt fail, then abort during backoff.
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Get(ctx)

	req.Error(err)
	req.Equal(errors.KindOperationTimeout, errors.KindOf(err))
}

func Test_InboundEvents_UpdateSeededSet(t *testing.T) {
	req := require.New(t)

	// Given a seeded set containing bob
	source := &fakeSource{members: []domain.PresenceMember{{ClientID: "bob"}}}
	p, ch := newTestPresence(source, nil)
	_, err := p.Get(context.Background())
	req.NoError(err)

	var (
		mu   sync.Mutex
		seen []event.PresenceEvent
	)
	off, err := p.Subscribe(context.Background(), func(e event.PresenceEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})
	req.NoError(err)
	defer off()

	// When carol enters and bob leaves
	deliverPresence(ch, wire.EventPresenceEnter, "carol", map[string]any{"mood": "happy"})
	deliverPresence(ch, wire.EventPresenceLeave, "bob", nil)

	// Then the set reflects both changes and events fired in order
	members, err := p.Get(context.Background())
	req.NoError(err)
	req.Len(members, 1)
	req.Equal("carol", members[0].ClientID)

	mu.Lock()
	defer mu.Unlock()
	req.Len(seen, 2)
	req.Equal(domain.PresenceActionEnter, seen[0].Kind)
	req.Equal("carol", seen[0].Member.ClientID)
	req.Equal(domain.PresenceActionLeave, seen[1].Kind)
	req.Equal("bob", seen[1].Member.ClientID)
}

func Test_Detach_MarksSetStale(t *testing.T) {
	req := require.New(t)

	source := &fakeSource{members: []domain.PresenceMember{{ClientID: "bob"}}}
	p, ch := newTestPresence(source, nil)

	_, err := p.Get(context.Background())
	req.NoError(err)
	req.Equal(1, source.fetchCalls())

	// When the channel detaches and the set is read again
	ch.SetState(contract.ChannelDetached, nil)
	_, err = p.Get(context.Background())
	req.NoError(err)

	// Then a fresh fetch ran
	req.Equal(2, source.fetchCalls())
}

func Test_Enter_PublishesClientPayload(t *testing.T) {
	req := require.New(t)

	p, ch := newTestPresence(&fakeSource{}, nil)

	err := p.Enter(context.Background(), map[string]any{"mood": "curious"})

	req.NoError(err)
	published := ch.Published()
	req.Len(published, 1)
	req.Equal(wire.EventPresenceEnter, published[0].Event)
	var payload wire.PresencePayload
	req.NoError(wire.Decode(published[0].Payload, &payload))
	req.Equal("alice", payload.ClientID)
	req.Equal("curious", payload.Data["mood"])
}

func Test_AutomaticReEntry_OnEveryAttach(t *testing.T) {
	req := require.New(t)

	// Given a feature configured to enter automatically
	p, ch := newTestPresence(&fakeSource{}, map[string]any{"mood": "back"})
	defer p.Close()

	// When the channel reaches attached twice
	ch.SetState(contract.ChannelAttached, nil)
	req.Eventually(func() bool { return len(ch.Published()) == 1 }, time.Second, 5*time.Millisecond)
	ch.SetState(contract.ChannelSuspended, nil)
	ch.SetState(contract.ChannelAttached, nil)

	// Then enter was republished for the second attach too
	req.Eventually(func() bool { return len(ch.Published()) == 2 }, time.Second, 5*time.Millisecond)
	req.Equal(wire.EventPresenceEnter, ch.Published()[1].Event)
}

func Test_Subscribe_DrivesChannelInterest(t *testing.T) {
	req := require.New(t)

	p, ch := newTestPresence(&fakeSource{}, nil)

	offA, err := p.Subscribe(context.Background(), func(event.PresenceEvent) {})
	req.NoError(err)
	req.Equal(contract.ChannelAttached, ch.State())

	offB, err := p.Subscribe(context.Background(), func(event.PresenceEvent) {})
	req.NoError(err)
	req.Equal(1, ch.AttachCalls())

	offA()
	req.Equal(contract.ChannelAttached, ch.State())
	offB()
	req.Equal(contract.ChannelDetached, ch.State())
}

func Test_ClosedFeature_RefusesOperations(t *testing.T) {
	req := require.New(t)

	p, _ := newTestPresence(&fakeSource{}, nil)
	p.Close()

	err := p.Enter(context.Background(), nil)
	req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))

	_, err = p.Get(context.Background())
	req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))

	_, err = p.Subscribe(context.Background(), func(event.PresenceEvent) {})
	req.Equal(errors.KindRoomIsReleased, errors.KindOf(err))
}
