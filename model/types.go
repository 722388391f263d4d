// Package model implements the in-memory trace data structures
// (TraceState, SpanInfo, Endpoint, Annotation, BinaryAnnotation), the
// mutation Delta vocabulary applied to a span, the timeout policy that
// force-closes an idle trace, and conversion to the wire.Span protocol
// shape. Only the owning aggregator ever mutates a *TraceState; this
// package itself holds no concurrency of its own.
package model

import (
	"time"

	"github.com/ztrace-go/ztrace/clock"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/wire"
)

// Endpoint identifies network/service coordinates for one side of a span.
// Hostname, if set with IP absent, is resolved to an IP at wire-conversion
// time rather than when the endpoint is recorded.
type Endpoint struct {
	IPv4        [4]byte
	HasIPv4     bool
	IPv6        [16]byte
	HasIPv6     bool
	Port        uint16
	ServiceName string
	Hostname    string
}

// Annotation is a timestamped event on a span.
type Annotation struct {
	Timestamp clock.Timestamp
	Value     string
	Endpoint  *Endpoint
}

// BinaryAnnotationType enumerates the allowed typed values for a
// BinaryAnnotation. A delta naming a type outside this set is ignored
// with no effect.
type BinaryAnnotationType int

const (
	BinaryString BinaryAnnotationType = iota
	BinaryBool
	BinaryInt16
	BinaryInt32
	BinaryInt64
	BinaryDouble
	BinaryBytes
)

// ValidType reports whether t is one of the allowed BinaryAnnotationType
// values.
func ValidType(t BinaryAnnotationType) bool {
	return t >= BinaryString && t <= BinaryBytes
}

// BinaryAnnotation is a typed key/value tag on a span, optionally
// carrying a peer endpoint. The distinguished keys "ca"/"sa" carry a
// boolean true value and an endpoint representing the peer.
type BinaryAnnotation struct {
	Key      string
	Value    any
	Type     BinaryAnnotationType
	Endpoint *Endpoint
}

// SpanInfo is one node of a trace's span graph.
type SpanInfo struct {
	ID       id.SpanID
	ParentID id.ParentID
	Name     string

	Start clock.Timestamp
	// End is nil until the span finishes (or the trace is forced closed).
	End *clock.Timestamp

	// Shared is true for a span whose start event was recorded by a
	// different process (a server-side join); its duration is never
	// reported.
	Shared bool

	// Annotations/BinaryAnnotations are stored newest-first (each mutation
	// prepends). Convert sorts Annotations by timestamp for deterministic
	// wire output; BinaryAnnotations are emitted in stored order.
	Annotations       []Annotation
	BinaryAnnotations []BinaryAnnotation
}

// PrependAnnotation records a new event annotation, newest first.
func (s *SpanInfo) PrependAnnotation(a Annotation) {
	s.Annotations = append(s.Annotations, Annotation{})
	copy(s.Annotations[1:], s.Annotations)
	s.Annotations[0] = a
}

// PrependBinaryAnnotation records a new tag, newest first. Callers must
// already have validated a.Type via ValidType.
func (s *SpanInfo) PrependBinaryAnnotation(a BinaryAnnotation) {
	s.BinaryAnnotations = append(s.BinaryAnnotations, BinaryAnnotation{})
	copy(s.BinaryAnnotations[1:], s.BinaryAnnotations)
	s.BinaryAnnotations[0] = a
}

// Finished reports whether the span has an end timestamp.
func (s *SpanInfo) Finished() bool { return s.End != nil }

// ReporterConfig is the slice of configuration an aggregator needs to
// fill in defaults: the local endpoint used when a mutation omits one,
// and the reporter that receives the converted trace on termination.
type ReporterConfig struct {
	LocalEndpoint Endpoint
	Reporter      Reporter
}

// Reporter is the external collaborator the core hands converted spans
// to on trace termination. Implementations must not block indefinitely;
// a reporter failure is caught by the caller, logged, and otherwise
// ignored.
type Reporter interface {
	Ingest(spans []wire.Span) error
}

// TraceState is the per-aggregator mutable state of one trace. Only the
// owning aggregator goroutine ever touches it.
type TraceState struct {
	TraceID    id.TraceID
	RootSpanID id.SpanID
	ParentID   id.ParentID

	Sample bool
	Debug  bool

	Spans map[id.SpanID]*SpanInfo

	Timestamp    clock.Timestamp
	EndTimestamp *clock.Timestamp
	LastActivity clock.Timestamp

	TTL   time.Duration
	Async bool

	Config ReporterConfig
}

// Span looks up a span by id; ok is false for an unknown id, e.g. a late
// mutation arriving for a span that was never started or has already
// been forgotten by a restarted aggregator.
func (t *TraceState) Span(s id.SpanID) (*SpanInfo, bool) {
	sp, ok := t.Spans[s]
	return sp, ok
}

// RootSpan returns the trace's root span, which always exists.
func (t *TraceState) RootSpan() *SpanInfo {
	return t.Spans[t.RootSpanID]
}

// UnfinishedChildren returns every non-root span without an End
// timestamp.
func (t *TraceState) UnfinishedChildren() []*SpanInfo {
	var out []*SpanInfo
	for sid, sp := range t.Spans {
		if sid == t.RootSpanID {
			continue
		}
		if !sp.Finished() {
			out = append(out, sp)
		}
	}
	return out
}

// ChildSpans returns every non-root span.
func (t *TraceState) ChildSpans() []*SpanInfo {
	var out []*SpanInfo
	for sid, sp := range t.Spans {
		if sid == t.RootSpanID {
			continue
		}
		out = append(out, sp)
	}
	return out
}
