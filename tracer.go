// Package ztrace is the functional, synchronous client surface: validate
// arguments, short-circuit unsampled traces, stamp the client-side
// timestamp on each call, and dispatch a fire-and-forget mutation
// message to the owning aggregator. See tracectx for the equivalent
// task-local/ambient-context surface.
package ztrace

import (
	"sync/atomic"
	"time"

	"github.com/ztrace-go/ztrace/aggregator"
	"github.com/ztrace-go/ztrace/clock"
	"github.com/ztrace-go/ztrace/config"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/internal/log"
	"github.com/ztrace-go/ztrace/model"
	"github.com/ztrace-go/ztrace/registry"
)

// Reporter is the single external collaborator the core hands converted
// spans to on trace termination.
type Reporter = model.Reporter

// Tracer owns a registry of live aggregators and the configuration new
// traces inherit by default. Most programs only need the package-level
// functions, which delegate to a process-wide default Tracer; construct
// one directly for tests or for running multiple independently
// configured tracers in one process.
type Tracer struct {
	cfg config.Config
	reg *registry.Registry
	sup *registry.Supervisor
}

// NewTracer constructs a Tracer with the given default configuration.
func NewTracer(cfg config.Config) *Tracer {
	reg := registry.New()
	return &Tracer{
		cfg: cfg,
		reg: reg,
		sup: registry.NewSupervisor(reg),
	}
}

// Close waits for every aggregator this tracer has ever spawned to
// terminate. It does not itself finish any open trace.
func (t *Tracer) Close() error { return t.sup.Close() }

// DebugContextPolicy reports this tracer's missing-ambient-context
// policy, consulted by the tracectx package.
func (t *Tracer) DebugContextPolicy() config.DebugContextPolicy { return t.cfg.DebugContext }

func (t *Tracer) lookup(traceID id.TraceID) *registry.Handle {
	handles := t.reg.Lookup(traceID)
	if len(handles) == 0 {
		return nil
	}
	return handles[0]
}

func (t *Tracer) resolveReporterConfig(endpoint *Endpoint, reporter Reporter) model.ReporterConfig {
	rc := model.ReporterConfig{LocalEndpoint: t.cfg.Endpoint, Reporter: t.cfg.Reporter}
	if endpoint != nil {
		rc.LocalEndpoint = *endpoint
	}
	if reporter != nil {
		rc.Reporter = reporter
	}
	return rc
}

func (t *Tracer) resolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if t.cfg.DefaultTTL > 0 {
		return t.cfg.DefaultTTL
	}
	return config.DefaultTTL
}

// rootSpanFromTrace derives the initial span id from the lower 64 bits
// of the trace id: the trace id's last 8 bytes hold that value, the
// same bytes a 64-bit-compatibility trace id string zero-extends into
// (id.ParseTraceID).
func rootSpanFromTrace(t id.TraceID) id.SpanID {
	var s id.SpanID
	copy(s[:], t[8:])
	return s
}

// Start begins a new client-rooted trace.
func (t *Tracer) Start(opts ...StartOption) id.Id {
	c := buildStartConfig(opts)
	sampled := c.sample || c.debug
	if !sampled {
		return id.Ignore
	}

	traceID := id.NewTraceID()
	rootSpan := rootSpanFromTrace(traceID)
	i := id.New(traceID, rootSpan, id.Root, c.sample, c.debug)

	typ := aggregator.Client
	if c.typSet {
		typ = c.typ
	}
	t.spawn(traceID, rootSpan, id.Root, c.sample, c.debug, c, typ)
	log.Debug("ztrace: trace_id=%s started", traceID.String())
	return i
}

// Join attaches to an existing trace, typically on the server side of an
// incoming call. Default type is server.
func (t *Tracer) Join(traceID id.TraceID, spanID id.SpanID, parentID id.ParentID, sample, debug bool, opts ...StartOption) id.Id {
	c := buildStartConfig(opts)
	i := id.New(traceID, spanID, parentID, sample, debug)
	if !i.Sampled() {
		return i
	}

	typ := aggregator.Server
	if c.typSet {
		typ = c.typ
	}
	t.spawn(traceID, spanID, parentID, sample, debug, c, typ)
	log.Debug("ztrace: trace_id=%s joined", traceID.String())
	return i
}

func (t *Tracer) spawn(traceID id.TraceID, rootSpan id.SpanID, parentID id.ParentID, sample, debug bool, c startConfig, typ aggregator.SpanType) {
	rc := t.resolveReporterConfig(c.endpoint, c.reporter)
	ttl := t.resolveTTL(c.ttl)
	opts := aggregator.StartOptions{
		Type:     typ,
		Name:     c.name,
		Remote:   c.remote,
		Endpoint: c.endpoint,
		Deltas:   c.deltas,
	}
	t.sup.StartTracer(traceID, rootSpan, parentID, sample, debug, rc, ttl, opts, clock.Now())
}

// StartSpan opens a new child span under i's current span, returning the
// updated Id with the new span pushed onto the ancestor stack. A no-op
// for an unsampled id.
func (t *Tracer) StartSpan(i id.Id, opts ...SpanOption) id.Id {
	if !i.Sampled() {
		return i
	}
	c := buildSpanConfig(opts)
	newSpan := id.NewSpanID()
	parent := i.SpanID()
	j := i.Push(newSpan)

	if h := t.lookup(i.TraceID()); h != nil {
		h.StartSpan(newSpan, id.ParentOf(parent), c.name, c.local, c.endpoint, c.deltas, clock.Now())
	}
	return j
}

// FinishSpan closes i's current span, returning the popped Id. A no-op
// for an unsampled id.
func (t *Tracer) FinishSpan(i id.Id, opts ...FinishSpanOption) id.Id {
	if !i.Sampled() {
		return i
	}
	c := buildFinishSpanConfig(opts)
	if h := t.lookup(i.TraceID()); h != nil {
		h.FinishSpan(i.SpanID(), c.deltas, clock.Now())
	}
	return i.Pop()
}

// UpdateSpan applies deltas to i's current span, returning i unchanged.
// A no-op for an unsampled id.
func (t *Tracer) UpdateSpan(i id.Id, deltas []Delta, opts ...UpdateOption) id.Id {
	if !i.Sampled() {
		return i
	}
	c := buildUpdateConfig(opts)
	ts := clock.Now()
	if c.timestamp != nil {
		ts = clock.FromTime(*c.timestamp)
	}
	if h := t.lookup(i.TraceID()); h != nil {
		h.Update(i.SpanID(), deltas, ts)
	}
	return i
}

// Finish ends the trace. A no-op for an unsampled id.
func (t *Tracer) Finish(i id.Id, opts ...FinishOption) {
	if !i.Sampled() {
		return
	}
	c := buildFinishConfig(opts)
	if h := t.lookup(i.TraceID()); h != nil {
		h.Finish(c.async, c.deltas, clock.Now())
	}
	log.Debug("ztrace: trace_id=%s finished", i.TraceID().String())
}

var defaultTracer atomic.Pointer[Tracer]

func defaultT() *Tracer {
	if p := defaultTracer.Load(); p != nil {
		return p
	}
	fresh := NewTracer(config.FromEnv(config.Default()))
	if defaultTracer.CompareAndSwap(nil, fresh) {
		return fresh
	}
	return defaultTracer.Load()
}

// UseTracer installs t as the process-wide default tracer the package
// functions below delegate to; intended for tests.
func UseTracer(t *Tracer) {
	defaultTracer.Store(t)
}

// Start delegates to the process-wide default Tracer.
func Start(opts ...StartOption) id.Id { return defaultT().Start(opts...) }

// Join delegates to the process-wide default Tracer.
func Join(traceID id.TraceID, spanID id.SpanID, parentID id.ParentID, sample, debug bool, opts ...StartOption) id.Id {
	return defaultT().Join(traceID, spanID, parentID, sample, debug, opts...)
}

// StartSpan delegates to the process-wide default Tracer.
func StartSpan(i id.Id, opts ...SpanOption) id.Id { return defaultT().StartSpan(i, opts...) }

// FinishSpan delegates to the process-wide default Tracer.
func FinishSpan(i id.Id, opts ...FinishSpanOption) id.Id { return defaultT().FinishSpan(i, opts...) }

// UpdateSpan delegates to the process-wide default Tracer.
func UpdateSpan(i id.Id, deltas []Delta, opts ...UpdateOption) id.Id {
	return defaultT().UpdateSpan(i, deltas, opts...)
}

// Finish delegates to the process-wide default Tracer.
func Finish(i id.Id, opts ...FinishOption) { defaultT().Finish(i, opts...) }
