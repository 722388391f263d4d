package registry

import (
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ztrace-go/ztrace/aggregator"
	"github.com/ztrace-go/ztrace/clock"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/internal/log"
	"github.com/ztrace-go/ztrace/model"
)

// Handle is what a client holds after start/join: a stable reference to
// a trace's current aggregator. The wrapped aggregator is swapped out
// transparently by the supervisor if the underlying goroutine exits
// abnormally, so the failure of an aggregator never fails its clients.
type Handle struct {
	TraceID id.TraceID
	Unique  uint64

	current atomic.Pointer[aggregator.Aggregator]
	rebuild func(now clock.Timestamp) *aggregator.Aggregator
}

func (h *Handle) agg() *aggregator.Aggregator { return h.current.Load() }

// StartSpan forwards to the current aggregator.
func (h *Handle) StartSpan(spanID id.SpanID, parent id.ParentID, name string, local bool, endpoint *model.Endpoint, deltas []model.Delta, ts clock.Timestamp) {
	h.agg().StartSpan(spanID, parent, name, local, endpoint, deltas, ts)
}

// FinishSpan forwards to the current aggregator.
func (h *Handle) FinishSpan(spanID id.SpanID, deltas []model.Delta, ts clock.Timestamp) {
	h.agg().FinishSpan(spanID, deltas, ts)
}

// Update forwards to the current aggregator.
func (h *Handle) Update(spanID id.SpanID, deltas []model.Delta, ts clock.Timestamp) {
	h.agg().Update(spanID, deltas, ts)
}

// Finish forwards to the current aggregator.
func (h *Handle) Finish(async bool, deltas []model.Delta, ts clock.Timestamp) {
	h.agg().Finish(async, deltas, ts)
}

// Done reports the current aggregator's termination channel. Because the
// underlying aggregator can be swapped on restart, a caller that needs
// to observe final termination should prefer the supervisor's lifecycle
// rather than latching onto a single Done() channel value.
func (h *Handle) Done() <-chan struct{} { return h.agg().Done() }

// Supervisor spawns one aggregator per sampled trace and restarts it on
// abnormal exit. It shares no mutable state across aggregators besides
// the Registry.
type Supervisor struct {
	registry *Registry
	g        *errgroup.Group
}

// NewSupervisor constructs a Supervisor backed by reg.
func NewSupervisor(reg *Registry) *Supervisor {
	return &Supervisor{registry: reg, g: &errgroup.Group{}}
}

// StartTracer constructs, registers, and starts running a new aggregator
// for a freshly started or joined trace.
func (s *Supervisor) StartTracer(traceID id.TraceID, rootSpan id.SpanID, parentID id.ParentID, sample, debug bool, cfg model.ReporterConfig, ttl time.Duration, opts aggregator.StartOptions, now clock.Timestamp) *Handle {
	h := &Handle{
		TraceID: traceID,
		Unique:  s.registry.nextUnique(),
	}
	h.rebuild = func(now clock.Timestamp) *aggregator.Aggregator {
		return aggregator.New(traceID, rootSpan, parentID, sample, debug, cfg, ttl, opts, now)
	}
	h.current.Store(h.rebuild(now))

	s.registry.Register(h)
	s.g.Go(func() error {
		s.run(h)
		return nil
	})
	return h
}

// run drives h's current aggregator to completion, restarting it on
// panic. A restart loses any non-root span state accumulated before the
// panic; the missing-span tolerance in the aggregator's message
// handling exists precisely to make that safe for lingering clients.
func (s *Supervisor) run(h *Handle) {
	for {
		exited := s.runOnce(h)
		s.registry.Unregister(h)
		if exited {
			return
		}
		log.Warn("registry: restarting aggregator for trace %s after abnormal exit", h.TraceID.String())
		h.current.Store(h.rebuild(clock.Now()))
		s.registry.Register(h)
	}
}

// runOnce runs h's current aggregator to completion and reports whether
// it exited normally (true) or via panic (false, so the caller restarts
// it).
func (s *Supervisor) runOnce(h *Handle) (normal bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("registry: aggregator for trace %s panicked: %v", h.TraceID.String(), r)
			normal = false
		}
	}()
	h.agg().Run()
	return true
}

// Close waits for every aggregator this supervisor has spawned to
// terminate normally. It does not itself trigger termination; callers
// still need to Finish their traces or let TTLs expire.
func (s *Supervisor) Close() error {
	return s.g.Wait()
}
