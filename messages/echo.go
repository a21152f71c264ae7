package messages

import (
	"sync"

	"roomkit/domain"
)

// echoWaiter is the shared completion primitive for operations that
// settle on their realtime echo. It is completed from exactly one of
// two code paths: the event processor observing the echo, or the
// publish call surfacing a server error, whichever happens first.
type echoWaiter struct {
	done chan struct{}
	once sync.Once

	message domain.Message
	err     error
}

func newEchoWaiter() *echoWaiter {
	return &echoWaiter{done: make(chan struct{})}
}

func (w *echoWaiter) complete(message domain.Message, err error) {
	w.once.Do(func() {
		w.message = message
		w.err = err
		close(w.done)
	})
}

// echoTable is the pending-correlation table keyed by the operation's
// generated echo ID.
type echoTable struct {
	mu      sync.Mutex
	pending map[string]*echoWaiter
}

func newEchoTable() *echoTable {
	return &echoTable{pending: make(map[string]*echoWaiter)}
}

func (t *echoTable) add(echoID string) *echoWaiter {
	w := newEchoWaiter()
	t.mu.Lock()
	t.pending[echoID] = w
	t.mu.Unlock()
	return w
}

func (t *echoTable) remove(echoID string) {
	t.mu.Lock()
	delete(t.pending, echoID)
	t.mu.Unlock()
}

// resolve completes and removes the waiter for echoID, if any.
func (t *echoTable) resolve(echoID string, message domain.Message, err error) {
	if echoID == "" {
		return
	}
	t.mu.Lock()
	w, ok := t.pending[echoID]
	if ok {
		delete(t.pending, echoID)
	}
	t.mu.Unlock()
	if ok {
		w.complete(message, err)
	}
}

// failAll completes every pending waiter with err. Used on close.
func (t *echoTable) failAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]*echoWaiter)
	t.mu.Unlock()
	for _, w := range pending {
		w.complete(domain.Message{}, err)
	}
}
