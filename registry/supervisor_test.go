package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztrace-go/ztrace/aggregator"
	"github.com/ztrace-go/ztrace/clock"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/model"
	"github.com/ztrace-go/ztrace/wire"
)

type recordingReporter struct {
	mu    sync.Mutex
	calls [][]wire.Span
	ch    chan struct{}
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{ch: make(chan struct{}, 16)}
}

func (r *recordingReporter) Ingest(spans []wire.Span) error {
	r.mu.Lock()
	r.calls = append(r.calls, spans)
	r.mu.Unlock()
	r.ch <- struct{}{}
	return nil
}

func (r *recordingReporter) wait(t *testing.T) []wire.Span {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Ingest")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func TestStartTracerRegistersAndReportsOnFinish(t *testing.T) {
	reg := New()
	sup := NewSupervisor(reg)
	rep := newRecordingReporter()

	tid := id.NewTraceID()
	root := id.NewSpanID()
	cfg := model.ReporterConfig{LocalEndpoint: model.Endpoint{ServiceName: "svc"}, Reporter: rep}

	h := sup.StartTracer(tid, root, id.Root, true, false, cfg, time.Hour, aggregator.StartOptions{Type: aggregator.Client, Name: "main"}, clock.Now())
	require.Len(t, reg.Lookup(tid), 1)

	h.Finish(false, nil, clock.Now())
	spans := rep.wait(t)
	require.Len(t, spans, 1)

	assert.Eventually(t, func() bool {
		return len(reg.Lookup(tid)) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHandleForwardsToCurrentAggregator(t *testing.T) {
	reg := New()
	sup := NewSupervisor(reg)
	rep := newRecordingReporter()

	tid := id.NewTraceID()
	root := id.NewSpanID()
	cfg := model.ReporterConfig{LocalEndpoint: model.Endpoint{ServiceName: "svc"}, Reporter: rep}

	h := sup.StartTracer(tid, root, id.Root, true, false, cfg, time.Hour, aggregator.StartOptions{Type: aggregator.Client, Name: "main"}, clock.Now())
	h.Finish(false, nil, clock.Now())
	rep.wait(t)
}

func TestSupervisorCloseWaitsForAllRunsToFinish(t *testing.T) {
	reg := New()
	sup := NewSupervisor(reg)
	rep := newRecordingReporter()
	cfg := model.ReporterConfig{LocalEndpoint: model.Endpoint{ServiceName: "svc"}, Reporter: rep}

	h := sup.StartTracer(id.NewTraceID(), id.NewSpanID(), id.Root, true, false, cfg, time.Hour, aggregator.StartOptions{Type: aggregator.Client, Name: "main"}, clock.Now())
	h.Finish(false, nil, clock.Now())
	rep.wait(t)

	require.NoError(t, sup.Close())
}
