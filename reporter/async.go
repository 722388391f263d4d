package reporter

import (
	"sync"
	"time"

	"github.com/ztrace-go/ztrace/internal/log"
	"github.com/ztrace-go/ztrace/wire"
)

// Async decorates a Reporter with buffering: Ingest calls accumulate
// spans and a background goroutine flushes them downstream on a timer or
// once a size threshold is reached, rather than making every aggregator
// termination pay for its own network round trip.
type Async struct {
	next          Reporter
	maxBatch      int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []wire.Span

	flushCh chan struct{}
	closeCh chan struct{}
	done    chan struct{}
}

// NewAsync wraps next, flushing whenever pending spans reach maxBatch or
// flushInterval elapses, whichever comes first.
func NewAsync(next Reporter, maxBatch int, flushInterval time.Duration) *Async {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	a := &Async{
		next:          next,
		maxBatch:      maxBatch,
		flushInterval: flushInterval,
		flushCh:       make(chan struct{}, 1),
		closeCh:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	go a.run()
	return a
}

// Ingest implements Reporter by buffering spans and signaling the
// background flusher if the batch is now full. It never blocks on the
// downstream reporter.
func (a *Async) Ingest(spans []wire.Span) error {
	a.mu.Lock()
	a.pending = append(a.pending, spans...)
	full := len(a.pending) >= a.maxBatch
	a.mu.Unlock()

	if full {
		select {
		case a.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Close flushes any remaining spans and stops the background goroutine.
func (a *Async) Close() error {
	close(a.closeCh)
	<-a.done
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.flushCh:
			a.flush()
		case <-a.closeCh:
			a.flush()
			return
		}
	}
}

func (a *Async) flush() {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if err := a.next.Ingest(batch); err != nil {
		log.Warn("reporter: downstream ingest failed: %v", err)
	}
}
