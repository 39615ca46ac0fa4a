// Package asynchook moves transit hook delivery off the encode/decode path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    UnknownTagEvery: 100, // sample: ~every 100th unknown tag
//	    DropEvery:       1,   // log every dropped store entry
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	r := transit.NewReader(src, transit.ReaderOptions{Hooks: hooks})
//
// Events that do not fit in the queue are dropped and counted.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/transit"
)

type Hooks struct {
	inner   transit.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ transit.Hooks = (*Hooks)(nil)

func New(inner transit.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = transit.NopHooks{}
	}
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

// Close stops accepting events and waits for queued ones to run.
// Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full
// or the hooks were closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed channel
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheReset(side string, n int) { h.try(func() { h.inner.CacheReset(side, n) }) }
func (h *Hooks) UnknownTag(tag string)         { h.try(func() { h.inner.UnknownTag(tag) }) }
func (h *Hooks) EntryDropped(k, r string)      { h.try(func() { h.inner.EntryDropped(k, r) }) }
