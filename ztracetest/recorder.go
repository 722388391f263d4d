// Package ztracetest provides test doubles for exercising ztrace without
// a real collector: a Reporter that records every ingested span for
// assertions.
package ztracetest

import (
	"sync"
	"time"

	"github.com/ztrace-go/ztrace/wire"
)

// Recorder is a Reporter that buffers every ingested batch of spans.
type Recorder struct {
	mu    sync.Mutex
	spans []wire.Span
	ch    chan struct{}
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{ch: make(chan struct{}, 256)}
}

// Ingest implements model.Reporter / reporter.Reporter.
func (r *Recorder) Ingest(spans []wire.Span) error {
	r.mu.Lock()
	r.spans = append(r.spans, spans...)
	r.mu.Unlock()
	select {
	case r.ch <- struct{}{}:
	default:
	}
	return nil
}

// Spans returns every span ingested so far.
func (r *Recorder) Spans() []wire.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// Reset clears every recorded span.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
}

// WaitForSpans blocks until at least n spans have been recorded or
// timeout elapses, returning the spans recorded so far and whether n was
// reached. Intended for tests asserting on an aggregator's asynchronous
// Ingest call.
func (r *Recorder) WaitForSpans(n int, timeout time.Duration) ([]wire.Span, bool) {
	deadline := time.After(timeout)
	for {
		if spans := r.Spans(); len(spans) >= n {
			return spans, true
		}
		select {
		case <-r.ch:
		case <-deadline:
			return r.Spans(), false
		}
	}
}
