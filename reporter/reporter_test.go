package reporter

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztrace-go/ztrace/wire"
)

func TestNopIngestAlwaysSucceeds(t *testing.T) {
	var n Nop
	assert.NoError(t, n.Ingest([]wire.Span{{ID: "1"}}))
}

func TestLogIngestNeverErrors(t *testing.T) {
	var l Log
	assert.NoError(t, l.Ingest(nil))
	assert.NoError(t, l.Ingest([]wire.Span{{ID: "1"}}))
}

func TestHTTPReporterPostsGzippedJSON(t *testing.T) {
	var mu sync.Mutex
	var gotSpans []wire.Span

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		gr, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(gr)
		require.NoError(t, err)

		var spans []wire.Span
		require.NoError(t, json.Unmarshal(body, &spans))

		mu.Lock()
		gotSpans = spans
		mu.Unlock()

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	rep := NewHTTPReporter(srv.URL)
	err := rep.Ingest([]wire.Span{{TraceID: "a", ID: "b", Name: "op"}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotSpans, 1)
	assert.Equal(t, "op", gotSpans[0].Name)
}

func TestHTTPReporterErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rep := NewHTTPReporter(srv.URL)
	err := rep.Ingest([]wire.Span{{ID: "1"}})
	assert.Error(t, err)
}

func TestHTTPReporterNoopOnEmptyBatch(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	rep := NewHTTPReporter(srv.URL)
	require.NoError(t, rep.Ingest(nil))
	assert.False(t, called)
}

type countingReporter struct {
	mu    sync.Mutex
	calls int
	spans []wire.Span
}

func (c *countingReporter) Ingest(spans []wire.Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.spans = append(c.spans, spans...)
	return nil
}

func (c *countingReporter) snapshot() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, len(c.spans)
}

func TestAsyncFlushesOnSizeThreshold(t *testing.T) {
	cr := &countingReporter{}
	b := NewAsync(cr, 2, time.Hour)
	defer b.Close()

	require.NoError(t, b.Ingest([]wire.Span{{ID: "1"}}))
	require.NoError(t, b.Ingest([]wire.Span{{ID: "2"}}))

	assert.Eventually(t, func() bool {
		calls, n := cr.snapshot()
		return calls == 1 && n == 2
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncFlushesOnTimer(t *testing.T) {
	cr := &countingReporter{}
	b := NewAsync(cr, 1000, 10*time.Millisecond)
	defer b.Close()

	require.NoError(t, b.Ingest([]wire.Span{{ID: "1"}}))

	assert.Eventually(t, func() bool {
		calls, n := cr.snapshot()
		return calls == 1 && n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncCloseFlushesRemainder(t *testing.T) {
	cr := &countingReporter{}
	b := NewAsync(cr, 1000, time.Hour)

	require.NoError(t, b.Ingest([]wire.Span{{ID: "1"}, {ID: "2"}}))
	require.NoError(t, b.Close())

	calls, n := cr.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, n)
}
