// Package asynchook moves aside hook calls off the hot path.
//
// Events are queued to a fixed worker pool and dropped when the queue is
// full, so a slow Hooks implementation never delays a cache call.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{LookupEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	ctrl, _ := aside.New[User](aside.Options[User]{
//	    Backend: backend,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/aside"
)

type Hooks struct {
	inner aside.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	// guards sends against a concurrent Close
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ aside.Hooks = (*Hooks)(nil)

func New(inner aside.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events discarded on a full queue or after Close.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Lookup(ns string, hits, misses int) {
	h.try(func() { h.inner.Lookup(ns, hits, misses) })
}

func (h *Hooks) BackendFailure(ns string, a aside.Action, n int, err error) {
	h.try(func() { h.inner.BackendFailure(ns, a, n, err) })
}

func (h *Hooks) Compute(ns, strategy string, n int) {
	h.try(func() { h.inner.Compute(ns, strategy, n) })
}
