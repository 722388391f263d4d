package tracectx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztrace-go/ztrace"
	"github.com/ztrace-go/ztrace/config"
	"github.com/ztrace-go/ztrace/id"
	"github.com/ztrace-go/ztrace/internal/log"
	"github.com/ztrace-go/ztrace/ztracetest"
)

func newTestTracer(rec *ztracetest.Recorder) *ztrace.Tracer {
	cfg := config.Default()
	cfg.Reporter = rec
	cfg.DefaultTTL = time.Hour
	return ztrace.NewTracer(cfg)
}

func TestSubmergeSurfaceRoundTrip(t *testing.T) {
	i := id.New(id.NewTraceID(), id.NewSpanID(), id.Root, true, false)
	ctx := Submerge(context.Background(), i)

	got, ok := Surface(ctx)
	require.True(t, ok)
	assert.Equal(t, i, got)
}

func TestSurfaceMissingReturnsFalse(t *testing.T) {
	_, ok := Surface(context.Background())
	assert.False(t, ok)
}

func TestCurrentSilentPolicyReturnsIgnore(t *testing.T) {
	i := Current(context.Background(), config.Silent)
	assert.Equal(t, id.Ignore, i)
}

func TestCurrentWarnPolicyLogsAndReturnsIgnore(t *testing.T) {
	rl := &log.RecordLogger{}
	restore := log.UseLogger(rl)
	defer restore()

	i := Current(context.Background(), config.Warn)
	assert.Equal(t, id.Ignore, i)
	assert.NotEmpty(t, rl.Logs())
}

func TestCurrentRaisePolicyPanics(t *testing.T) {
	assert.Panics(t, func() {
		Current(context.Background(), config.Raise)
	})
}

func TestStartFinishThroughContext(t *testing.T) {
	rec := ztracetest.NewRecorder()
	tr := newTestTracer(rec)

	ctx := Start(context.Background(), tr, ztrace.WithName("main"), ztrace.WithSample(true))
	ctx = StartSpan(ctx, tr, ztrace.WithSpanName("child"))
	ctx = UpdateSpan(ctx, tr, []ztrace.Delta{ztrace.Annotate("checkpoint", nil)})
	ctx = FinishSpan(ctx, tr)
	Finish(ctx, tr)

	spans, ok := rec.WaitForSpans(2, time.Second)
	require.True(t, ok)
	assert.Len(t, spans, 2)
}
