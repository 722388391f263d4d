package ztrace

import (
	"github.com/ztrace-go/ztrace/ext"
	"github.com/ztrace-go/ztrace/model"
)

// Delta is an opaque mutation value produced by the annotation helper
// functions below; it composes into the annotations/deltas list of any
// span-mutating call.
type Delta = model.Delta

// BinaryAnnotationType enumerates the allowed typed values for Tag.
type BinaryAnnotationType = model.BinaryAnnotationType

// The allowed BinaryAnnotationType values.
const (
	BinaryString = model.BinaryString
	BinaryBool   = model.BinaryBool
	BinaryInt16  = model.BinaryInt16
	BinaryInt32  = model.BinaryInt32
	BinaryInt64  = model.BinaryInt64
	BinaryDouble = model.BinaryDouble
	BinaryBytes  = model.BinaryBytes
)

// Annotate builds a delta that prepends a timestamped event annotation.
// value is expanded through the long-hand aliases (client_send,
// client_recv, server_send, server_recv, wire_send, wire_recv) before
// being stored; any other string is a plain user annotation value. A
// nil endpoint defaults to the aggregator's configured local endpoint
// when applied.
func Annotate(value string, endpoint *Endpoint) Delta {
	return model.Annotate(ext.ResolveAlias(value), endpoint)
}

// Tag builds a delta that prepends a typed key/value binary annotation.
// Applying a delta whose type is not one of the BinaryAnnotationType
// constants above is a silent no-op.
func Tag(t BinaryAnnotationType, key string, value any, endpoint *Endpoint) Delta {
	return model.BinaryAnnotate(t, key, value, endpoint)
}

// Rename builds a delta that sets the span's name.
func Rename(name string) Delta {
	return model.Name(name)
}

// Async builds a delta that marks the trace asynchronous and adds the
// "async" event annotation to the root span, same effect as passing
// WithAsync() to Finish but usable from an UpdateSpan call.
func Async() Delta {
	return model.AsyncFlag()
}
