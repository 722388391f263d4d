// Package tracectx is the task-local/ambient-context client surface: the
// same operations as the root ztrace package, but with the Id stored in
// a context.Context instead of threaded explicitly by the caller.
// Propagation to a child goroutine/task is always explicit, by passing
// the context along or by destructure/parse.
package tracectx

import (
	"context"
	"runtime/debug"

	"github.com/ztrace-go/ztrace"
	"github.com/ztrace-go/ztrace/config"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/internal/log"
)

type ctxKey struct{}

// Submerge stores i in ctx, returning the derived context. The Id
// previously stored in ctx, if any, is shadowed, not mutated: this is
// task-local context, never global mutable state.
func Submerge(ctx context.Context, i id.Id) context.Context {
	return context.WithValue(ctx, ctxKey{}, i)
}

// Surface returns the Id stored in ctx and true, or the zero Id and
// false if none was ever submerged.
func Surface(ctx context.Context) (id.Id, bool) {
	i, ok := ctx.Value(ctxKey{}).(id.Id)
	return i, ok
}

// Current resolves ctx's ambient Id, applying policy if none is present:
// returning the ignore sentinel silently, logging a warning first, or
// panicking outright.
func Current(ctx context.Context, policy config.DebugContextPolicy) id.Id {
	if i, ok := Surface(ctx); ok {
		return i
	}
	switch policy {
	case config.Warn:
		log.Warn("tracectx: missing ambient trace context\n%s", debug.Stack())
	case config.Raise:
		panic("tracectx: missing ambient trace context")
	}
	return id.Ignore
}

// Start begins a new trace and submerges it into ctx.
func Start(ctx context.Context, tr *ztrace.Tracer, opts ...ztrace.StartOption) context.Context {
	return Submerge(ctx, tr.Start(opts...))
}

// Join attaches to an existing trace and submerges it into ctx.
func Join(ctx context.Context, tr *ztrace.Tracer, traceID id.TraceID, spanID id.SpanID, parentID id.ParentID, sample, debug bool, opts ...ztrace.StartOption) context.Context {
	return Submerge(ctx, tr.Join(traceID, spanID, parentID, sample, debug, opts...))
}

// StartSpan opens a child span under ctx's ambient Id, submerging the
// updated Id back into the returned context.
func StartSpan(ctx context.Context, tr *ztrace.Tracer, opts ...ztrace.SpanOption) context.Context {
	i := Current(ctx, tr.DebugContextPolicy())
	return Submerge(ctx, tr.StartSpan(i, opts...))
}

// FinishSpan closes ctx's ambient current span, submerging the popped Id
// back into the returned context.
func FinishSpan(ctx context.Context, tr *ztrace.Tracer, opts ...ztrace.FinishSpanOption) context.Context {
	i := Current(ctx, tr.DebugContextPolicy())
	return Submerge(ctx, tr.FinishSpan(i, opts...))
}

// UpdateSpan applies deltas to ctx's ambient current span.
func UpdateSpan(ctx context.Context, tr *ztrace.Tracer, deltas []ztrace.Delta, opts ...ztrace.UpdateOption) context.Context {
	i := Current(ctx, tr.DebugContextPolicy())
	return Submerge(ctx, tr.UpdateSpan(i, deltas, opts...))
}

// Finish ends ctx's ambient trace.
func Finish(ctx context.Context, tr *ztrace.Tracer, opts ...ztrace.FinishOption) {
	i := Current(ctx, tr.DebugContextPolicy())
	tr.Finish(i, opts...)
}
