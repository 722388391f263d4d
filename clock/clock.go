// Package clock provides the timestamp type spans are stamped with: a
// monotonic-clock reading that two timestamps captured in the same
// process can always be subtracted to get a well-ordered duration,
// regardless of wall-clock adjustments in between, plus conversion to
// absolute microseconds-since-epoch for the wire format.
//
// time.Time already carries a monotonic reading alongside its wall clock
// reading when obtained from time.Now, and Sub/Since use it automatically
// (see the "Monotonic Clocks" section of the time package docs); Timestamp
// is a thin, named wrapper so call sites read as tracing timestamps
// rather than bare time.Time values, without reimplementing what the
// standard library already guarantees.
package clock

import "time"

// Timestamp is a point in time captured via Now, with microsecond
// resolution for wire conversion.
type Timestamp struct {
	t time.Time
}

// Now captures the current instant.
func Now() Timestamp { return Timestamp{t: time.Now()} }

// FromTime wraps an existing time.Time, e.g. one supplied by a caller
// that wants to override the "now" used for a mutation.
func FromTime(t time.Time) Timestamp { return Timestamp{t: t} }

// Time returns the wrapped time.Time.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether ts is the zero Timestamp.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// ToAbsoluteMicros converts ts to microseconds since the Unix epoch, the
// unit the Zipkin v1 wire format uses for span timestamps and durations.
func (ts Timestamp) ToAbsoluteMicros() int64 {
	return ts.t.UnixMicro()
}

// Duration returns the elapsed time from ts to other (other - ts).
// Negative values are possible (e.g. out-of-order delivery of two
// messages with client-captured timestamps); callers that need a
// non-negative wire duration clamp via DurationMicros.
func (ts Timestamp) Duration(other Timestamp) time.Duration {
	return other.t.Sub(ts.t)
}

// DurationMicros returns max(1, (other-ts) in microseconds): reported
// span durations are never zero or negative.
func (ts Timestamp) DurationMicros(other Timestamp) int64 {
	d := ts.Duration(other).Microseconds()
	if d < 1 {
		return 1
	}
	return d
}

// Add returns ts offset by d, preserving its underlying monotonic
// reading (time.Time.Add does this natively).
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return Timestamp{t: ts.t.Add(d)}
}

// Before reports whether ts occurred before other.
func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

// After reports whether ts occurred after other.
func (ts Timestamp) After(other Timestamp) bool { return ts.t.After(other.t) }

// Max returns whichever of a, b is later.
func Max(a, b Timestamp) Timestamp {
	if b.After(a) {
		return b
	}
	return a
}
