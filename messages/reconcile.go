package messages

import (
	"context"

	"roomkit/contract"
	"roomkit/domain"
	"roomkit/domain/event"
	"roomkit/serial"
	"roomkit/wire"
)

// handle is the channel event processor. It normalizes each wire event
// into an inbound record and feeds the reconciliation path; an
// unrecognized event name is logged and dropped here, so the queue
// only ever holds members of the closed inbound set.
func (m *Messages) handle(msg contract.ChannelMessage) {
	switch msg.Event {
	case wire.EventMessageCreated, wire.EventMessageUpdated, wire.EventMessageDeleted:
		var payload wire.MessagePayload
		if err := wire.Decode(msg.Payload, &payload); err != nil {
			m.log.Warn("dropping malformed message event", "room", m.roomID, "event", msg.Event, "error", err)
			return
		}
		kind := inboundCreated
		switch msg.Event {
		case wire.EventMessageUpdated:
			kind = inboundUpdated
		case wire.EventMessageDeleted:
			kind = inboundDeleted
		}
		m.ingest(inbound{
			kind:    kind,
			serial:  payload.Serial,
			message: payload.ToMessage(),
			echoID:  payload.EchoID,
		})
	case wire.EventReactionAdded, wire.EventReactionRemoved:
		var payload wire.ReactionPayload
		if err := wire.Decode(msg.Payload, &payload); err != nil {
			m.log.Warn("dropping malformed reaction event", "room", m.roomID, "event", msg.Event, "error", err)
			return
		}
		kind := inboundReactionAdded
		if msg.Event == wire.EventReactionRemoved {
			kind = inboundReactionRemoved
		}
		m.ingest(inbound{
			kind:     kind,
			serial:   payload.MessageSerial,
			reaction: payload.ToReaction(),
		})
	default:
		m.log.Warn("dropping unrecognized message event", "room", m.roomID, "event", msg.Event)
	}
}

// ingest applies an event immediately when its base state is known,
// and otherwise starts (or joins) the reconciliation queue behind a
// fetch of the missing identity. Queue order is arrival order; it is
// never reordered.
func (m *Messages) ingest(in inbound) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.fetching {
		m.queue = append(m.queue, in)
		m.mu.Unlock()
		return
	}
	if m.canApplyLocked(in) {
		m.applyLocked(in)
		m.mu.Unlock()
		return
	}
	m.fetching = true
	m.queue = append(m.queue, in)
	missing := in.serial
	gen := m.gen
	m.mu.Unlock()

	go m.fetchAndReplay(missing, gen)
}

// canApplyLocked reports whether the event's base state is known. A
// create is its own base state.
func (m *Messages) canApplyLocked(in inbound) bool {
	if in.kind == inboundCreated {
		return true
	}
	_, ok := m.cache.get(in.serial)
	return ok
}

// fetchAndReplay resolves one cache miss and replays the queue in
// arrival order, recursing when the replay hits another miss. A failed
// fetch drops the events referencing the failed identity with a
// warning instead of blocking the queue forever. The result is
// discarded when an eviction raced the fetch: the generation no longer
// matches.
func (m *Messages) fetchAndReplay(missing string, gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
	defer cancel()
	fetched, err := m.history.FetchSingle(ctx, m.roomID, missing)

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.log.Warn("fetch-on-miss failed, dropping events for identity",
			"room", m.roomID, "serial", missing, "error", err)
		kept := m.queue[:0]
		for _, in := range m.queue {
			if in.kind != inboundCreated && in.serial == missing {
				continue
			}
			kept = append(kept, in)
		}
		m.queue = kept
	} else if _, ok := m.cache.get(missing); !ok {
		// Seed quietly: the fetch restores base state, it is not a new
		// event for listeners.
		m.cache.put(fetched)
	}

	for len(m.queue) > 0 {
		in := m.queue[0]
		if !m.canApplyLocked(in) {
			next := in.serial
			m.mu.Unlock()
			go m.fetchAndReplay(next, gen)
			return
		}
		m.queue = m.queue[1:]
		m.applyLocked(in)
	}
	m.fetching = false
	m.mu.Unlock()
}

// applyLocked applies one event against the cache and emits the
// derived event. Callers hold m.mu and have established that the base
// state is present.
func (m *Messages) applyLocked(in inbound) {
	switch in.kind {
	case inboundCreated:
		if existing, ok := m.cache.get(in.serial); ok {
			// At-least-once delivery: a redelivered create must not
			// produce a duplicate cache entry or a duplicate event.
			if existing.Version == in.message.Version {
				m.echoes.resolve(in.echoID, existing, nil)
				return
			}
		}
		m.cache.put(in.message)
		m.noteSerialLocked(in.serial)
		m.msgEvents.Emit(event.MessageEvent{Kind: event.MessageCreated, Message: in.message})
		m.echoes.resolve(in.echoID, in.message, nil)

	case inboundUpdated, inboundDeleted:
		entry, _ := m.cache.get(in.serial)
		stale, err := in.message.VersionBefore(entry)
		if err == nil && stale {
			// A version older than what we hold: already superseded.
			m.echoes.resolve(in.echoID, entry, nil)
			return
		}
		if entry.Version == in.message.Version {
			m.echoes.resolve(in.echoID, entry, nil)
			return
		}
		merged := entry.ApplyVersion(in.message)
		m.cache.put(merged)
		kind := event.MessageUpdated
		if in.kind == inboundDeleted {
			kind = event.MessageDeleted
		}
		m.msgEvents.Emit(event.MessageEvent{Kind: kind, Message: merged})
		m.echoes.resolve(in.echoID, merged, nil)

	case inboundReactionAdded, inboundReactionRemoved:
		entry, _ := m.cache.get(in.serial)
		summary := entry.Reactions.Clone()
		if summary == nil {
			summary = make(domain.ReactionSummary)
		}
		eventKind := event.ReactionAdded
		if in.kind == inboundReactionAdded {
			summary.Add(in.reaction, m.clientID)
		} else {
			summary.Remove(in.reaction, m.clientID)
			eventKind = event.ReactionRemoved
		}
		entry.Reactions = summary
		m.cache.put(entry)
		m.reactionEvents.Emit(event.ReactionEvent{Kind: eventKind, Reaction: in.reaction})
		m.summaryEvents.Emit(event.SummaryEvent{MessageSerial: in.serial, Summary: summary.Clone()})
	}
}

// noteSerialLocked tracks the newest created serial observed, used as
// the anchor for history-before-subscribe.
func (m *Messages) noteSerialLocked(s string) {
	if m.latestSeen == "" {
		m.latestSeen = s
		return
	}
	c, err := serial.CompareStrings(s, m.latestSeen)
	if err != nil {
		m.log.Debug("unparseable serial observed", "room", m.roomID, "serial", s, "error", err)
		return
	}
	if c > 0 {
		m.latestSeen = s
	}
}
