// Package registry implements a concurrent trace-id to aggregator-handle
// mapping (Registry) and the component that spawns and restarts
// per-trace aggregators (Supervisor). The registry shards its map by a
// hash of the trace id so the hot lookup path never contends on a
// single global lock.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/ztrace-go/ztrace/id"
)

const shardCount = 32

type shard struct {
	mu    sync.RWMutex
	byTid map[id.TraceID]map[uint64]*Handle
}

// Registry maps a wire trace id to zero or more live aggregator handles.
// If the same trace id is ever reused, a distinct aggregator still gets
// started: handles are disambiguated by pairing the trace id with a
// per-process monotonic unique integer.
type Registry struct {
	shards [shardCount]*shard
	unique atomic.Uint64
}

// New constructs an empty Registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{byTid: make(map[id.TraceID]map[uint64]*Handle)}
	}
	return r
}

func (r *Registry) shardFor(t id.TraceID) *shard {
	h := xxhash.Sum64(t[:])
	return r.shards[h%shardCount]
}

// nextUnique returns a per-process monotonically increasing integer used
// to disambiguate multiple handles registered under the same trace id.
func (r *Registry) nextUnique() uint64 {
	return r.unique.Add(1)
}

// Register inserts h under its TraceID/Unique pair.
func (r *Registry) Register(h *Handle) {
	s := r.shardFor(h.TraceID)
	s.mu.Lock()
	m := s.byTid[h.TraceID]
	if m == nil {
		m = make(map[uint64]*Handle)
		s.byTid[h.TraceID] = m
	}
	m[h.Unique] = h
	s.mu.Unlock()
}

// Unregister removes h. Safe to call more than once.
func (r *Registry) Unregister(h *Handle) {
	s := r.shardFor(h.TraceID)
	s.mu.Lock()
	if m := s.byTid[h.TraceID]; m != nil {
		delete(m, h.Unique)
		if len(m) == 0 {
			delete(s.byTid, h.TraceID)
		}
	}
	s.mu.Unlock()
}

// Lookup returns every live handle registered for trace id t. A client
// holding a concrete *Handle from start/join should use it directly
// rather than looking up by trace id.
func (r *Registry) Lookup(t id.TraceID) []*Handle {
	s := r.shardFor(t)
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.byTid[t]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Handle, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}
