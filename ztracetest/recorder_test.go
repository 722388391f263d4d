package ztracetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztrace-go/ztrace/wire"
)

func TestRecorderCollectsIngestedSpans(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Ingest([]wire.Span{{ID: "1"}}))
	require.NoError(t, r.Ingest([]wire.Span{{ID: "2"}, {ID: "3"}}))

	assert.Len(t, r.Spans(), 3)
}

func TestRecorderResetClears(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Ingest([]wire.Span{{ID: "1"}}))
	r.Reset()
	assert.Empty(t, r.Spans())
}

func TestRecorderWaitForSpansTimesOutWhenShortOfTarget(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Ingest([]wire.Span{{ID: "1"}}))

	spans, ok := r.WaitForSpans(5, 30*time.Millisecond)
	assert.False(t, ok)
	assert.Len(t, spans, 1)
}

func TestRecorderWaitForSpansSucceedsAsTheyArrive(t *testing.T) {
	r := NewRecorder()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = r.Ingest([]wire.Span{{ID: "1"}, {ID: "2"}})
	}()

	spans, ok := r.WaitForSpans(2, time.Second)
	assert.True(t, ok)
	assert.Len(t, spans, 2)
}
