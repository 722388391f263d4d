package model

import "github.com/ztrace-go/ztrace/clock"

// ApplyTimeout force-closes a trace that has sat idle past its TTL,
// mutating it into its final, report-ready shape. It touches nothing but
// the state passed in: callers (the aggregator) own all concurrency;
// ApplyTimeout assumes exclusive access.
func ApplyTimeout(t *TraceState, T clock.Timestamp) {
	if !t.Async {
		applySyncTimeout(t, T)
		return
	}
	applyAsyncTimeout(t, T)
}

func applySyncTimeout(t *TraceState, T clock.Timestamp) {
	local := t.Config.LocalEndpoint
	for _, sp := range t.Spans {
		if sp.Finished() {
			continue
		}
		end := T
		sp.End = &end
		sp.PrependAnnotation(Annotation{Timestamp: T, Value: "timeout", Endpoint: &local})
	}
	t.EndTimestamp = &T
}

func applyAsyncTimeout(t *TraceState, T clock.Timestamp) {
	children := t.ChildSpans()
	if len(children) == 0 {
		end := t.LastActivity
		if root := t.RootSpan(); root != nil {
			root.End = &end
		}
		t.EndTimestamp = &end
		return
	}

	allFinished := true
	var latest clock.Timestamp
	for i, c := range children {
		if !c.Finished() {
			allFinished = false
			break
		}
		if i == 0 || c.End.After(latest) {
			latest = *c.End
		}
	}
	if !allFinished {
		applySyncTimeout(t, T)
		return
	}

	if root := t.RootSpan(); root != nil {
		root.End = &latest
	}
	t.EndTimestamp = &latest
}
