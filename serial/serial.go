// Package serial implements the totally-ordered identifier used for
// messages and message versions. A serial encodes a series, a
// timestamp, a counter and an optional index in the canonical string
// form "seriesId@timestamp-counter[:index]". Ordering never relies on
// a central sequencer: any two valid serials compare deterministically
// by timestamp, then counter, then series, then index.
package serial

import (
	"fmt"
	"strconv"
	"strings"

	"roomkit/errors"
)

// Serial is an immutable parsed identifier. The zero value is not a
// valid serial; build one with Parse or MustParse.
type Serial struct {
	SeriesID  string
	Timestamp int64
	Counter   int64

	// Index disambiguates serials minted inside the same counter slot.
	// HasIndex records whether the canonical form carried one: an
	// absent index is not the same thing as index zero.
	Index    int64
	HasIndex bool
}

// Parse decodes the canonical form "seriesId@timestamp-counter[:index]".
// A missing series, timestamp or counter is rejected with
// KindInvalidArgument.
func Parse(s string) (Serial, error) {
	const op = "parse serial"

	seriesID, rest, found := strings.Cut(s, "@")
	if !found || seriesID == "" {
		return Serial{}, errors.New(errors.KindInvalidArgument, op, "missing series id in %q", s)
	}

	tsPart, counterPart, found := strings.Cut(rest, "-")
	if !found || tsPart == "" || counterPart == "" {
		return Serial{}, errors.New(errors.KindInvalidArgument, op, "missing timestamp or counter in %q", s)
	}

	timestamp, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return Serial{}, errors.New(errors.KindInvalidArgument, op, "invalid timestamp %q: %v", tsPart, err)
	}

	counterStr, indexStr, hasIndex := strings.Cut(counterPart, ":")
	counter, err := strconv.ParseInt(counterStr, 10, 64)
	if err != nil {
		return Serial{}, errors.New(errors.KindInvalidArgument, op, "invalid counter %q: %v", counterStr, err)
	}

	parsed := Serial{SeriesID: seriesID, Timestamp: timestamp, Counter: counter}
	if hasIndex {
		index, err := strconv.ParseInt(indexStr, 10, 64)
		if err != nil {
			return Serial{}, errors.New(errors.KindInvalidArgument, op, "invalid index %q: %v", indexStr, err)
		}
		parsed.Index = index
		parsed.HasIndex = true
	}
	return parsed, nil
}

// MustParse parses s and panics on malformed input. Reserved for
// constants and tests.
func MustParse(s string) Serial {
	parsed, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

// String renders the canonical form. It round-trips exactly through
// Parse for every serial Parse accepts.
func (s Serial) String() string {
	if s.HasIndex {
		return fmt.Sprintf("%s@%d-%d:%d", s.SeriesID, s.Timestamp, s.Counter, s.Index)
	}
	return fmt.Sprintf("%s@%d-%d", s.SeriesID, s.Timestamp, s.Counter)
}

// Compare orders two serials: -1 when s sorts before other, +1 when it
// sorts after, 0 when equal. The index participates only when both
// serials carry one; a serial with an index and one without otherwise
// identical compare equal. That asymmetry mirrors the wire format,
// where the index is an optional refinement rather than a mandatory
// tiebreaker.
func (s Serial) Compare(other Serial) int {
	if s.Timestamp != other.Timestamp {
		return orderInt(s.Timestamp, other.Timestamp)
	}
	if s.Counter != other.Counter {
		return orderInt(s.Counter, other.Counter)
	}
	if c := strings.Compare(s.SeriesID, other.SeriesID); c != 0 {
		return c
	}
	if s.HasIndex && other.HasIndex {
		return orderInt(s.Index, other.Index)
	}
	return 0
}

// Before reports whether s sorts strictly before other.
func (s Serial) Before(other Serial) bool { return s.Compare(other) < 0 }

// After reports whether s sorts strictly after other.
func (s Serial) After(other Serial) bool { return s.Compare(other) > 0 }

// Equal reports whether s and other occupy the same position in the
// total order.
func (s Serial) Equal(other Serial) bool { return s.Compare(other) == 0 }

// CompareStrings parses both operands and compares them. A malformed
// operand propagates its parse failure instead of a comparison result.
func CompareStrings(a, b string) (int, error) {
	left, err := Parse(a)
	if err != nil {
		return 0, err
	}
	right, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return left.Compare(right), nil
}

func orderInt(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
