package domain

import "time"

// PresenceAction records how a member's presence last changed.
type PresenceAction string

const (
	PresenceActionPresent PresenceAction = "present"
	PresenceActionEnter   PresenceAction = "enter"
	PresenceActionLeave   PresenceAction = "leave"
	PresenceActionUpdate  PresenceAction = "update"
)

// PresenceMember is one client currently present in a room, with the
// arbitrary data payload it last published.
type PresenceMember struct {
	ClientID  string
	Data      map[string]any
	Action    PresenceAction
	UpdatedAt time.Time
}

// Occupancy is the latest server-reported occupancy of a room.
type Occupancy struct {
	// Connections counts every open realtime connection attached to
	// the room's channel, subscribed or not.
	Connections int
	// PresenceMembers counts clients currently entered into presence.
	PresenceMembers int
}
