package domain

import "time"

// Caps applied to the per-name reaction lists kept on a summary. The
// aggregate stays bounded no matter how busy a message gets; the full
// count survives in Total.
const (
	ReactionLatestCap = 10
	ReactionMineCap   = 10
)

// MessageReaction is a single reaction placed on a message by one
// client. ID disambiguates repeated reactions of the same name by the
// same client.
type MessageReaction struct {
	ID            string
	MessageSerial string
	Name          string
	ClientID      string
	At            time.Time
}

// RoomReaction is an ephemeral room-level reaction. It carries no
// durable state and is never aggregated.
type RoomReaction struct {
	Name     string
	ClientID string
	Metadata map[string]any
	At       time.Time
}

// ReactionTally aggregates all reactions of one name on one message.
type ReactionTally struct {
	// Total counts every live reaction of this name.
	Total int
	// Latest holds the client IDs of the most recent reactions, capped
	// at ReactionLatestCap, newest last.
	Latest []string
	// Mine holds the reaction IDs placed by the local client, capped
	// at ReactionMineCap.
	Mine []string
}

// ReactionSummary maps reaction name to its tally.
type ReactionSummary map[string]*ReactionTally

// Clone deep-copies the summary so cached snapshots never alias the
// slices handed to subscribers.
func (s ReactionSummary) Clone() ReactionSummary {
	if s == nil {
		return nil
	}
	out := make(ReactionSummary, len(s))
	for name, tally := range s {
		copied := &ReactionTally{Total: tally.Total}
		copied.Latest = append(copied.Latest, tally.Latest...)
		copied.Mine = append(copied.Mine, tally.Mine...)
		out[name] = copied
	}
	return out
}

// Add records a reaction into the summary. ownClientID identifies the
// local client so the Mine list tracks only its reactions.
func (s ReactionSummary) Add(reaction MessageReaction, ownClientID string) {
	tally, ok := s[reaction.Name]
	if !ok {
		tally = &ReactionTally{}
		s[reaction.Name] = tally
	}
	tally.Total++
	tally.Latest = append(tally.Latest, reaction.ClientID)
	if len(tally.Latest) > ReactionLatestCap {
		tally.Latest = tally.Latest[len(tally.Latest)-ReactionLatestCap:]
	}
	if reaction.ClientID == ownClientID {
		tally.Mine = append(tally.Mine, reaction.ID)
		if len(tally.Mine) > ReactionMineCap {
			tally.Mine = tally.Mine[len(tally.Mine)-ReactionMineCap:]
		}
	}
}

// Remove retracts a reaction. Removal of the last reaction of a name
// drops the name from the summary entirely.
func (s ReactionSummary) Remove(reaction MessageReaction, ownClientID string) {
	tally, ok := s[reaction.Name]
	if !ok {
		return
	}
	tally.Total--
	tally.Latest = removeFirst(tally.Latest, reaction.ClientID)
	if reaction.ClientID == ownClientID {
		if reaction.ID != "" {
			tally.Mine = removeFirst(tally.Mine, reaction.ID)
		} else if len(tally.Mine) > 0 {
			tally.Mine = tally.Mine[:len(tally.Mine)-1]
		}
	}
	if tally.Total <= 0 {
		delete(s, reaction.Name)
	}
}

func removeFirst(list []string, value string) []string {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
