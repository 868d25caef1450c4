package signal

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/five82/lotwatch/internal/syncstore"
)

// Bus is the in-process signal source. Stores attach to it; the UI, the
// NATS bridge and tests publish into it.
//
// Handlers are invoked synchronously, in attach order, with no bus lock
// held, so a handler may attach, detach or publish.
type Bus struct {
	mu       sync.RWMutex
	handlers map[uint64]syncstore.SignalHandler
	nextID   atomic.Uint64
	closed   atomic.Bool
}

var _ syncstore.SignalSource = (*Bus)(nil)

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[uint64]syncstore.SignalHandler)}
}

// Attach registers h. The returned detach func is idempotent.
func (b *Bus) Attach(h syncstore.SignalHandler) (detach func()) {
	if h == nil || b.closed.Load() {
		return func() {}
	}
	id := b.nextID.Add(1)
	b.mu.Lock()
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// HandlerCount returns the number of attached handlers.
func (b *Bus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Close detaches every handler; later publishes are dropped.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	clear(b.handlers)
	b.mu.Unlock()
}

// Focus reports that the user returned to the application.
func (b *Bus) Focus() {
	b.each(func(h syncstore.SignalHandler) { h.OnFocus() })
}

// Visibility reports whether the application is hidden.
func (b *Bus) Visibility(hidden bool) {
	b.each(func(h syncstore.SignalHandler) { h.OnVisibility(hidden) })
}

// Revalidate asks attached stores to refresh ahead of their schedule.
func (b *Bus) Revalidate(force bool) {
	b.each(func(h syncstore.SignalHandler) { h.OnRevalidate(force) })
}

// Optimistic delivers p to every attached store.
func (b *Bus) Optimistic(p syncstore.Patch) {
	if p == nil {
		return
	}
	b.each(func(h syncstore.SignalHandler) { h.OnOptimistic(p) })
}

func (b *Bus) each(fn func(syncstore.SignalHandler)) {
	if b.closed.Load() {
		return
	}
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	targets := make([]syncstore.SignalHandler, len(ids))
	for i, id := range ids {
		targets[i] = b.handlers[id]
	}
	b.mu.RUnlock()

	for _, h := range targets {
		fn(h)
	}
}
