// Package errors defines the structured errors surfaced by roomkit.
// Every public operation that fails returns a *Error carrying a stable
// machine-readable Kind next to the human-readable message, so callers
// can branch on the failure class without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed: new kinds are added
// here, never invented ad hoc at call sites.
type Kind string

const (
	// KindInvalidArgument reports malformed input rejected at the API
	// boundary (bad serial string, empty room identifier, ...).
	KindInvalidArgument Kind = "invalid_argument"

	// KindRoomOptionsMismatch reports a Get call whose options differ
	// from the options of the already-live room with the same identifier.
	KindRoomOptionsMismatch Kind = "room_options_mismatch"

	// KindRoomReleasedBeforeOperationCompleted reports a pending Get
	// that was aborted because a concurrent Release superseded it.
	KindRoomReleasedBeforeOperationCompleted Kind = "room_released_before_operation_completed"

	// KindRoomIsReleased reports an operation attempted on a room that
	// has reached its terminal Released state.
	KindRoomIsReleased Kind = "room_is_released"

	// KindFeatureDisabled reports access to a feature the room was not
	// configured with.
	KindFeatureDisabled Kind = "feature_disabled"

	// KindPresenceFetchFailed reports that the presence set could not
	// be fetched after exhausting all retries.
	KindPresenceFetchFailed Kind = "presence_fetch_failed"

	// KindOperationTimeout reports an operation that did not settle
	// within its deadline.
	KindOperationTimeout Kind = "operation_timeout"

	// KindNotFound reports a lookup for an identity the collaborator
	// does not know about.
	KindNotFound Kind = "not_found"

	// KindTransport wraps failures surfaced by the underlying channel
	// or history collaborators.
	KindTransport Kind = "transport"

	// KindInternal reports unexpected conditions (unrecognized event
	// kinds, broken invariants). These are logged where they occur.
	KindInternal Kind = "internal"
)

// Error is the structured error type returned by all roomkit
// operations. Op names the operation that failed ("get room",
// "send message", ...); Cause optionally carries the underlying error.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unable to %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("unable to %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error for the given kind and operation with a reason
// message.
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Cause: fmt.Errorf(format, args...)}
}

// Wrap attaches kind and operation context to an underlying error.
// Wrapping a *Error preserves the inner kind so that a classification
// made close to the failure survives the trip up the call stack.
func Wrap(kind Kind, op string, cause error) *Error {
	var inner *Error
	if errors.As(cause, &inner) {
		kind = inner.Kind
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf extracts the Kind of err, or KindInternal when err carries no
// structured kind. A nil error has no kind and reports the empty string.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
