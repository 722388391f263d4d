// Package aggregator implements the per-trace worker: a single-owner
// goroutine that serializes every mutation to one trace's TraceState,
// enforces its TTL, and converts/reports on finish or timeout.
package aggregator

import (
	"time"

	"github.com/ztrace-go/ztrace/clock"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/internal/log"
	"github.com/ztrace-go/ztrace/model"
)

// SpanType selects the initial annotation/shared semantics for the
// trace's root span.
type SpanType int

const (
	// Client roots the trace with a "cs" annotation; its span is not shared.
	Client SpanType = iota
	// Server roots the trace with an "sr" annotation; its span is shared.
	Server
)

// phase is the aggregator's finish state machine: active until a finish
// message arrives, then either async (waiting on outstanding children)
// or straight to reporting, and finally terminated.
type phase int

const (
	phaseActive phase = iota
	phaseAsync
	phaseReporting
	phaseTerminated
)

// StartOptions configures aggregator construction.
type StartOptions struct {
	Type     SpanType
	Name     string
	Local    bool
	Remote   *model.Endpoint
	Endpoint *model.Endpoint // overrides the config-derived local endpoint for the initial annotation
	Deltas   []model.Delta
}

// startSpanMsg is the start_span message.
type startSpanMsg struct {
	id        id.SpanID
	parent    id.ParentID
	name      string
	local     bool
	endpoint  *model.Endpoint
	deltas    []model.Delta
	timestamp clock.Timestamp
}

// finishSpanMsg is the finish_span message.
type finishSpanMsg struct {
	id        id.SpanID
	deltas    []model.Delta
	timestamp clock.Timestamp
}

// updateMsg is the update message.
type updateMsg struct {
	id        id.SpanID
	deltas    []model.Delta
	timestamp clock.Timestamp
}

// finishMsg is the finish message.
type finishMsg struct {
	async     bool
	deltas    []model.Delta
	timestamp clock.Timestamp
}

type message struct {
	startSpan  *startSpanMsg
	finishSpan *finishSpanMsg
	update     *updateMsg
	finish     *finishMsg
}

// Aggregator owns one trace's TraceState. Construct with New and run it
// with Run in its own goroutine; every other method only ever sends a
// message, never touches the TraceState directly.
type Aggregator struct {
	state *model.TraceState
	ch    chan message

	// done is closed once Run returns, letting a Registry or test observe
	// termination without a second channel.
	done chan struct{}
}

// New constructs an aggregator for a freshly started or joined trace and
// inserts its root span. It does not start the Run loop.
func New(traceID id.TraceID, rootSpan id.SpanID, parentID id.ParentID, sample, debug bool, cfg model.ReporterConfig, ttl time.Duration, opts StartOptions, now clock.Timestamp) *Aggregator {
	local := cfg.LocalEndpoint
	if opts.Endpoint != nil {
		local = *opts.Endpoint
	}

	root := &model.SpanInfo{
		ID:       rootSpan,
		ParentID: parentID,
		Name:     opts.Name,
		Start:    now,
		Shared:   opts.Type == Server,
	}
	if root.Name == "" {
		root.Name = "unknown"
	}

	startValue := "cs"
	if opts.Type == Server {
		startValue = "sr"
	}
	root.PrependAnnotation(model.Annotation{Timestamp: now, Value: startValue, Endpoint: &local})

	if opts.Remote != nil {
		key := "sa"
		if opts.Type == Server {
			key = "ca"
		}
		root.PrependBinaryAnnotation(model.BinaryAnnotation{Key: key, Value: true, Type: model.BinaryBool, Endpoint: opts.Remote})
	}

	if opts.Local {
		root.PrependBinaryAnnotation(model.BinaryAnnotation{Key: "lc", Value: true, Type: model.BinaryBool, Endpoint: &local})
	}

	state := &model.TraceState{
		TraceID:      traceID,
		RootSpanID:   rootSpan,
		ParentID:     parentID,
		Sample:       sample,
		Debug:        debug,
		Spans:        map[id.SpanID]*model.SpanInfo{rootSpan: root},
		Timestamp:    now,
		LastActivity: now,
		TTL:          ttl,
		Config:       cfg,
	}
	applyDeltas(state, root, opts.Deltas, now)

	return &Aggregator{
		state: state,
		ch:    make(chan message, 64),
		done:  make(chan struct{}),
	}
}

// send dispatches msg to the aggregator's inbox without blocking beyond
// channel buffering; if the aggregator has already terminated the send
// is silently dropped.
func (a *Aggregator) send(m message) {
	select {
	case a.ch <- m:
	case <-a.done:
	}
}

// StartSpan sends a start_span message.
func (a *Aggregator) StartSpan(spanID id.SpanID, parent id.ParentID, name string, local bool, endpoint *model.Endpoint, deltas []model.Delta, ts clock.Timestamp) {
	a.send(message{startSpan: &startSpanMsg{id: spanID, parent: parent, name: name, local: local, endpoint: endpoint, deltas: deltas, timestamp: ts}})
}

// FinishSpan sends a finish_span message.
func (a *Aggregator) FinishSpan(spanID id.SpanID, deltas []model.Delta, ts clock.Timestamp) {
	a.send(message{finishSpan: &finishSpanMsg{id: spanID, deltas: deltas, timestamp: ts}})
}

// Update sends an update message.
func (a *Aggregator) Update(spanID id.SpanID, deltas []model.Delta, ts clock.Timestamp) {
	a.send(message{update: &updateMsg{id: spanID, deltas: deltas, timestamp: ts}})
}

// Finish sends a finish message.
func (a *Aggregator) Finish(async bool, deltas []model.Delta, ts clock.Timestamp) {
	a.send(message{finish: &finishMsg{async: async, deltas: deltas, timestamp: ts}})
}

// Done reports whether the aggregator has terminated.
func (a *Aggregator) Done() <-chan struct{} { return a.done }

// Run is the aggregator's single-writer event loop: select over the
// message channel and a re-armed TTL timer until termination. It must
// run in its own goroutine; the supervisor recovers and restarts it on
// abnormal exit, treating the exit as transient.
func (a *Aggregator) Run() {
	defer close(a.done)

	ph := phaseActive
	timer := time.NewTimer(a.state.TTL)
	defer timer.Stop()

	for ph != phaseTerminated {
		select {
		case m, ok := <-a.ch:
			if !ok {
				return
			}
			ph = a.handle(ph, m)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.state.TTL)
		case <-timer.C:
			ph = a.handleTimeout(ph)
		}
	}
}

func (a *Aggregator) handle(ph phase, m message) phase {
	switch {
	case m.startSpan != nil:
		a.onStartSpan(m.startSpan)
		return ph
	case m.finishSpan != nil:
		a.onFinishSpan(m.finishSpan)
		return ph
	case m.update != nil:
		a.onUpdate(m.update)
		return ph
	case m.finish != nil:
		return a.onFinish(ph, m.finish)
	default:
		return ph
	}
}

func (a *Aggregator) onStartSpan(m *startSpanMsg) {
	a.state.LastActivity = m.timestamp
	local := a.state.Config.LocalEndpoint
	if m.endpoint != nil {
		local = *m.endpoint
	}
	sp := &model.SpanInfo{
		ID:       m.id,
		ParentID: m.parent,
		Name:     m.name,
		Start:    m.timestamp,
	}
	if sp.Name == "" {
		sp.Name = "unknown"
	}
	if m.local {
		sp.PrependBinaryAnnotation(model.BinaryAnnotation{Key: "lc", Value: true, Type: model.BinaryBool, Endpoint: &local})
	}
	a.state.Spans[m.id] = sp
	applyDeltas(a.state, sp, m.deltas, m.timestamp)
}

func (a *Aggregator) onFinishSpan(m *finishSpanMsg) {
	a.state.LastActivity = m.timestamp
	sp, ok := a.state.Span(m.id)
	if !ok {
		return // tolerate a late mutation for a span we never saw start
	}
	applyDeltas(a.state, sp, m.deltas, m.timestamp)
	end := m.timestamp
	sp.End = &end
}

func (a *Aggregator) onUpdate(m *updateMsg) {
	a.state.LastActivity = m.timestamp
	sp, ok := a.state.Span(m.id)
	if !ok {
		return
	}
	applyDeltas(a.state, sp, m.deltas, m.timestamp)
}

func (a *Aggregator) onFinish(ph phase, m *finishMsg) phase {
	a.state.LastActivity = m.timestamp
	root := a.state.RootSpan()
	applyDeltas(a.state, root, m.deltas, m.timestamp)

	async := m.async || a.state.Async
	if async {
		a.state.Async = true
		ensureAsyncAnnotation(a.state, root, m.timestamp)
		return phaseAsync
	}

	end := m.timestamp
	a.state.EndTimestamp = &end
	a.report()
	return phaseTerminated
}

func (a *Aggregator) handleTimeout(ph phase) phase {
	T := clock.Now()
	model.ApplyTimeout(a.state, T)
	a.report()
	return phaseTerminated
}

func (a *Aggregator) report() {
	spans := a.state.Convert()
	if a.state.Config.Reporter == nil {
		return
	}
	if err := a.state.Config.Reporter.Ingest(spans); err != nil {
		log.Warn("aggregator: reporter ingest failed for trace %s: %v", a.state.TraceID.String(), err)
	}
}

// ensureAsyncAnnotation adds the "async" event annotation to the root
// span exactly once.
func ensureAsyncAnnotation(t *model.TraceState, root *model.SpanInfo, ts clock.Timestamp) {
	for _, a := range root.Annotations {
		if a.Value == "async" {
			return
		}
	}
	root.PrependAnnotation(model.Annotation{Timestamp: ts, Value: "async", Endpoint: &t.Config.LocalEndpoint})
}

func applyDeltas(t *model.TraceState, sp *model.SpanInfo, deltas []model.Delta, ts clock.Timestamp) {
	local := t.Config.LocalEndpoint
	for _, d := range deltas {
		switch d.Kind {
		case model.DeltaName:
			sp.Name = d.Name
		case model.DeltaAsync:
			t.Async = true
			ensureAsyncAnnotation(t, t.RootSpan(), ts)
		case model.DeltaAnnotate:
			ep := d.Endpoint
			if ep == nil {
				ep = &local
			}
			sp.PrependAnnotation(model.Annotation{Timestamp: ts, Value: d.Value, Endpoint: ep})
		case model.DeltaBinaryAnnotate:
			if !model.ValidType(d.BinType) {
				continue
			}
			ep := d.Endpoint
			if ep == nil {
				ep = &local
			}
			sp.PrependBinaryAnnotation(model.BinaryAnnotation{Key: d.Key, Value: d.BinValue, Type: d.BinType, Endpoint: ep})
		}
	}
}
