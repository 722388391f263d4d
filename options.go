package ztrace

import (
	"time"

	"github.com/ztrace-go/ztrace/aggregator"
	"github.com/ztrace-go/ztrace/model"
)

// startConfig collects the options recognized by Start/Join.
type startConfig struct {
	name     string
	typ      aggregator.SpanType
	typSet   bool
	sample   bool
	debug    bool
	remote   *Endpoint
	endpoint *Endpoint
	ttl      time.Duration
	reporter Reporter
	deltas   []Delta
}

// StartOption configures Start or Join.
type StartOption func(*startConfig)

// WithName sets the root span's name.
func WithName(name string) StartOption {
	return func(c *startConfig) { c.name = name }
}

// WithType overrides the default span type (client for Start, server for
// Join).
func WithType(t aggregator.SpanType) StartOption {
	return func(c *startConfig) { c.typ = t; c.typSet = true }
}

// WithSample sets the trace's sample bit.
func WithSample(sample bool) StartOption {
	return func(c *startConfig) { c.sample = sample }
}

// WithDebug sets the trace's debug bit, which forces sampling regardless
// of WithSample.
func WithDebug(debug bool) StartOption {
	return func(c *startConfig) { c.debug = debug }
}

// WithRemote records the peer endpoint, producing a "ca"/"sa" binary
// annotation on the root span.
func WithRemote(e Endpoint) StartOption {
	return func(c *startConfig) { c.remote = &e }
}

// WithLocalEndpoint overrides the config-derived local endpoint used for
// the root span's initial annotation.
func WithLocalEndpoint(e Endpoint) StartOption {
	return func(c *startConfig) { c.endpoint = &e }
}

// WithTTL overrides the trace's idle-timeout duration.
func WithTTL(ttl time.Duration) StartOption {
	return func(c *startConfig) { c.ttl = ttl }
}

// WithReporter overrides the reporter this trace ships to.
func WithReporter(r Reporter) StartOption {
	return func(c *startConfig) { c.reporter = r }
}

// WithAnnotations bundles deltas to apply to the root span at creation
// time, so a caller need not make an extra UpdateSpan round trip.
func WithAnnotations(deltas ...Delta) StartOption {
	return func(c *startConfig) { c.deltas = append(c.deltas, deltas...) }
}

// spanConfig collects StartSpan's options.
type spanConfig struct {
	name     string
	local    bool
	endpoint *Endpoint
	deltas   []Delta
}

// SpanOption configures StartSpan.
type SpanOption func(*spanConfig)

// WithSpanName sets the new span's name; the default is "unknown".
func WithSpanName(name string) SpanOption {
	return func(c *spanConfig) { c.name = name }
}

// WithLocal adds an "lc" local-component binary annotation to the span.
func WithLocal() SpanOption {
	return func(c *spanConfig) { c.local = true }
}

// WithSpanEndpoint overrides the local endpoint used for the span's "lc"
// annotation.
func WithSpanEndpoint(e Endpoint) SpanOption {
	return func(c *spanConfig) { c.endpoint = &e }
}

// WithSpanAnnotations bundles deltas applied at start_span time.
func WithSpanAnnotations(deltas ...Delta) SpanOption {
	return func(c *spanConfig) { c.deltas = append(c.deltas, deltas...) }
}

// finishSpanConfig collects FinishSpan's options.
type finishSpanConfig struct {
	deltas []Delta
}

// FinishSpanOption configures FinishSpan.
type FinishSpanOption func(*finishSpanConfig)

// WithFinishSpanAnnotations bundles deltas applied at finish_span time.
func WithFinishSpanAnnotations(deltas ...Delta) FinishSpanOption {
	return func(c *finishSpanConfig) { c.deltas = append(c.deltas, deltas...) }
}

// updateConfig collects UpdateSpan's options.
type updateConfig struct {
	timestamp *time.Time
}

// UpdateOption configures UpdateSpan.
type UpdateOption func(*updateConfig)

// WithTimestamp overrides the timestamp applied with this update's
// deltas; absent, it is captured at call time. The trace's last-activity
// clock always advances using whichever timestamp was actually applied.
func WithTimestamp(ts time.Time) UpdateOption {
	return func(c *updateConfig) { c.timestamp = &ts }
}

// finishConfig collects Finish's options.
type finishConfig struct {
	async  bool
	deltas []Delta
}

// FinishOption configures Finish.
type FinishOption func(*finishConfig)

// WithAsync marks the trace asynchronous: finish leaves the aggregator
// alive past this call so late child spans can still complete.
func WithAsync() FinishOption {
	return func(c *finishConfig) { c.async = true }
}

// WithFinishAnnotations bundles deltas applied to the root span at
// finish time.
func WithFinishAnnotations(deltas ...Delta) FinishOption {
	return func(c *finishConfig) { c.deltas = append(c.deltas, deltas...) }
}

func buildStartConfig(opts []StartOption) startConfig {
	var c startConfig
	c.ttl = 0 // resolved against tracer default if left zero
	for _, o := range opts {
		o(&c)
	}
	return c
}

func buildSpanConfig(opts []SpanOption) spanConfig {
	var c spanConfig
	c.name = "unknown"
	for _, o := range opts {
		o(&c)
	}
	return c
}

func buildFinishSpanConfig(opts []FinishSpanOption) finishSpanConfig {
	var c finishSpanConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

func buildUpdateConfig(opts []UpdateOption) updateConfig {
	var c updateConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

func buildFinishConfig(opts []FinishOption) finishConfig {
	var c finishConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Endpoint identifies network/service coordinates for one side of a span.
type Endpoint = model.Endpoint

// NewEndpoint builds an Endpoint from a service name and an IPv4 address.
func NewEndpoint(serviceName string, ipv4 [4]byte, port uint16) Endpoint {
	return Endpoint{ServiceName: serviceName, IPv4: ipv4, HasIPv4: true, Port: port}
}
