// Package reporter implements the Reporter external collaborator: a
// single Ingest(spans) operation, plus real default implementations of
// it (Nop, Log, HTTP) and a batching/async-flush decorator.
package reporter

import (
	"github.com/ztrace-go/ztrace/internal/log"
	"github.com/ztrace-go/ztrace/model"
	"github.com/ztrace-go/ztrace/wire"
)

// Reporter is the single external collaborator operation spans are
// handed to on trace termination. Implementations must not block
// indefinitely and must never panic: a failure is caught by the
// aggregator, logged, and otherwise ignored.
type Reporter = model.Reporter

// Nop discards every span. Useful for tests and for callers that only
// want local span construction without shipping anything.
type Nop struct{}

// Ingest implements Reporter.
func (Nop) Ingest([]wire.Span) error { return nil }

// Log reports by writing each ingested batch's size to internal/log at
// debug level; useful for local development without a collector.
type Log struct{}

// Ingest implements Reporter.
func (Log) Ingest(spans []wire.Span) error {
	log.Debug("reporter: ingesting %d span(s)", len(spans))
	return nil
}
