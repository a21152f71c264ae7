package rooms

// Status is the lifecycle status of a room as observed by its callers.
// It is derived from the room's own operations and from the channel
// state stream, never assigned directly by consumers.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusAttaching   Status = "attaching"
	StatusAttached    Status = "attached"
	StatusDetaching   Status = "detaching"
	StatusDetached    Status = "detached"
	// StatusSuspended marks a recoverable transport loss. A suspended
	// room either recovers to attached, fails after the retry timeout,
	// or is superseded by a release; it never sticks.
	StatusSuspended Status = "suspended"
	StatusFailed    Status = "failed"
	StatusReleasing Status = "releasing"
	// StatusReleased is terminal. A released room rejects every further
	// operation.
	StatusReleased Status = "released"
)

// StatusChange is one transition of a room's status. Reason is set when
// an error drove the transition.
type StatusChange struct {
	Previous Status
	Current  Status
	Reason   error
}
