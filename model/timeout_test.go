package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztrace-go/ztrace/clock"
	"github.com/ztrace-go/ztrace/id"
)

func newTestTrace(async bool) (*TraceState, id.SpanID) {
	root := id.NewSpanID()
	start := clock.Now()
	ts := &TraceState{
		TraceID:      id.NewTraceID(),
		RootSpanID:   root,
		ParentID:     id.Root,
		Sample:       true,
		Timestamp:    start,
		LastActivity: start,
		Async:        async,
		Spans: map[id.SpanID]*SpanInfo{
			root: {ID: root, ParentID: id.Root, Name: "main", Start: start},
		},
	}
	return ts, root
}

func TestSyncTimeoutClosesEveryUnfinishedSpan(t *testing.T) {
	ts, root := newTestTrace(false)
	child := id.NewSpanID()
	childStart := ts.Timestamp.Add(time.Millisecond)
	ts.Spans[child] = &SpanInfo{ID: child, ParentID: id.ParentOf(root), Name: "child", Start: childStart}

	finishedChild := id.NewSpanID()
	fcEnd := childStart.Add(time.Millisecond)
	ts.Spans[finishedChild] = &SpanInfo{ID: finishedChild, ParentID: id.ParentOf(root), Name: "done", Start: childStart, End: &fcEnd}

	T := ts.Timestamp.Add(30 * time.Millisecond)
	ApplyTimeout(ts, T)

	require.NotNil(t, ts.EndTimestamp)
	assert.Equal(t, T, *ts.EndTimestamp)

	assert.True(t, ts.Spans[root].Finished())
	assert.Equal(t, T, *ts.Spans[root].End)
	require.Len(t, ts.Spans[root].Annotations, 1)
	assert.Equal(t, "timeout", ts.Spans[root].Annotations[0].Value)

	assert.True(t, ts.Spans[child].Finished())
	require.Len(t, ts.Spans[child].Annotations, 1)
	assert.Equal(t, "timeout", ts.Spans[child].Annotations[0].Value)

	// A span that had already finished keeps its own end and gets no
	// timeout annotation.
	assert.Equal(t, fcEnd, *ts.Spans[finishedChild].End)
	assert.Len(t, ts.Spans[finishedChild].Annotations, 0)
}

func TestAsyncTimeoutNoChildrenIsBenignClose(t *testing.T) {
	ts, root := newTestTrace(true)
	ts.LastActivity = ts.Timestamp.Add(2 * time.Millisecond)

	T := ts.Timestamp.Add(100 * time.Millisecond)
	ApplyTimeout(ts, T)

	require.NotNil(t, ts.EndTimestamp)
	assert.Equal(t, ts.LastActivity, *ts.EndTimestamp)
	assert.Equal(t, ts.LastActivity, *ts.Spans[root].End)
	assert.Len(t, ts.Spans[root].Annotations, 0)
}

func TestAsyncTimeoutAllChildrenFinishedUsesLatestEnd(t *testing.T) {
	ts, root := newTestTrace(true)

	c1 := id.NewSpanID()
	c1End := ts.Timestamp.Add(5 * time.Millisecond)
	ts.Spans[c1] = &SpanInfo{ID: c1, ParentID: id.ParentOf(root), Start: ts.Timestamp, End: &c1End}

	c2 := id.NewSpanID()
	c2End := ts.Timestamp.Add(9 * time.Millisecond)
	ts.Spans[c2] = &SpanInfo{ID: c2, ParentID: id.ParentOf(root), Start: ts.Timestamp, End: &c2End}

	T := ts.Timestamp.Add(100 * time.Millisecond)
	ApplyTimeout(ts, T)

	require.NotNil(t, ts.EndTimestamp)
	assert.Equal(t, c2End, *ts.EndTimestamp)
	assert.Equal(t, c2End, *ts.Spans[root].End)
	assert.Len(t, ts.Spans[root].Annotations, 0)
}

func TestAsyncTimeoutSomeUnfinishedFallsBackToSync(t *testing.T) {
	ts, root := newTestTrace(true)

	finished := id.NewSpanID()
	fEnd := ts.Timestamp.Add(5 * time.Millisecond)
	ts.Spans[finished] = &SpanInfo{ID: finished, ParentID: id.ParentOf(root), Start: ts.Timestamp, End: &fEnd}

	unfinished := id.NewSpanID()
	ts.Spans[unfinished] = &SpanInfo{ID: unfinished, ParentID: id.ParentOf(root), Start: ts.Timestamp}

	T := ts.Timestamp.Add(100 * time.Millisecond)
	ApplyTimeout(ts, T)

	assert.Equal(t, T, *ts.EndTimestamp)
	assert.Equal(t, T, *ts.Spans[unfinished].End)
	require.Len(t, ts.Spans[unfinished].Annotations, 1)
	assert.Equal(t, "timeout", ts.Spans[unfinished].Annotations[0].Value)
	assert.Len(t, ts.Spans[finished].Annotations, 0)
}
