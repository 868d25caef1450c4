package syncstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/metrics"
)

// Store keeps one entity kind fresh for any number of consumers.
//
// All mutable state is guarded by mu. Readers load the current snapshot
// through an atomic pointer and never block on a fetch.
type Store[E any] struct {
	name    string
	fetcher Fetcher[E]
	schema  Schema[E]
	timing  Timing
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics metrics.Recorder
	signals SignalSource

	current atomic.Pointer[Snapshot[E]]

	listenersMu  sync.Mutex
	listeners    []listener[E]
	nextListener uint64

	notifyMu  sync.Mutex
	notifying bool
	renotify  bool

	mu          sync.Mutex
	state       Snapshot[E]
	signature   string
	subscribers int
	intervals   map[string]time.Duration
	detach      func()
	hidden      bool

	backoff       backoff
	noFetchBefore time.Time

	inFlight       bool
	pending        bool
	gen            uint64
	cancel         context.CancelFunc
	done           chan struct{}
	lastFetchStart time.Time

	pollTimer     clockwork.Timer
	pollSeq       uint64
	lastPollDelay time.Duration

	debounceTimer   clockwork.Timer
	debounceSeq     uint64
	debounceArmedAt time.Time

	seen map[string]struct{}
}

type listener[E any] struct {
	id uint64
	fn func(Snapshot[E])
}

// New builds a dormant store. Nothing is fetched until the first Start.
func New[E any](name string, fetcher Fetcher[E], schema Schema[E], opts ...Option) (*Store[E], error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("store name is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("store %s: fetcher is required", name)
	}
	if err := schema.validate(); err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.recorder == nil {
		o.recorder = metrics.NoopRecorder{}
	}
	timing := o.timing.withDefaults()

	s := &Store[E]{
		name:      name,
		fetcher:   fetcher,
		schema:    schema,
		timing:    timing,
		clock:     o.clock,
		logger:    o.logger.With(logfields.Store(name)),
		metrics:   o.recorder,
		signals:   o.signals,
		intervals: make(map[string]time.Duration),
		backoff:   newBackoff(timing),
		seen:      make(map[string]struct{}),
	}
	initial := s.state
	s.current.Store(&initial)
	return s, nil
}

// Name returns the store's label used in logs and metrics.
func (s *Store[E]) Name() string { return s.name }

// Snapshot returns the current immutable snapshot.
func (s *Store[E]) Snapshot() Snapshot[E] {
	return *s.current.Load()
}

// Subscribe registers fn to be called after every snapshot change. Calls are
// serialized; fn may call back into the store.
func (s *Store[E]) Subscribe(fn func(Snapshot[E])) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listener[E]{id: id, fn: fn})
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Start attaches a consumer that wants data at least every pollEvery. The
// first consumer wakes the store and triggers an immediate fetch. The returned
// stop func is idempotent; when the last consumer stops, in-flight work is
// cancelled and the store goes dormant.
func (s *Store[E]) Start(consumerKey string, pollEvery time.Duration) (stop func()) {
	s.mu.Lock()
	s.subscribers++
	s.intervals[consumerKey] = pollEvery
	var changed bool
	switch {
	case s.subscribers == 1:
		if s.signals != nil {
			s.detach = s.signals.Attach(s)
		}
		s.logger.Info("store started", logfields.Consumer(consumerKey))
		_, changed = s.refreshLocked(false, true)
	case s.state.Entities == nil:
		_, changed = s.refreshLocked(false, false)
	default:
		s.scheduleNextLocked()
	}
	s.metrics.SetSubscribers(s.name, s.subscribers)
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.stop(consumerKey) })
	}
}

func (s *Store[E]) stop(consumerKey string) {
	s.mu.Lock()
	if s.subscribers == 0 {
		s.mu.Unlock()
		return
	}
	s.subscribers--
	delete(s.intervals, consumerKey)
	changed := false
	if s.subscribers == 0 {
		s.abortLocked()
		s.stopPollTimerLocked()
		s.stopDebounceLocked()
		if s.detach != nil {
			s.detach()
			s.detach = nil
		}
		changed = s.updateLocked(func(n *Snapshot[E]) { n.IsLoading = false })
		s.logger.Info("store dormant", logfields.Consumer(consumerKey))
	} else {
		s.scheduleNextLocked()
	}
	s.metrics.SetSubscribers(s.name, s.subscribers)
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
}

// Subscribers returns the number of attached consumers.
func (s *Store[E]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers
}

// updateLocked applies fn to a copy of the state and publishes it when it differs.
func (s *Store[E]) updateLocked(fn func(*Snapshot[E])) bool {
	next := s.state
	fn(&next)
	if next.sameAs(s.state) {
		return false
	}
	s.state = next
	published := next
	s.current.Store(&published)
	return true
}

// commitListLocked installs a new entity list and its signature.
func (s *Store[E]) commitListLocked(list []E, now time.Time) {
	s.signature = s.schema.signature(list)
	s.updateLocked(func(n *Snapshot[E]) {
		n.Entities = list
		n.Revision++
		if now.After(n.LastUpdated) {
			n.LastUpdated = now
		}
	})
}

// broadcast delivers the latest snapshot to every listener. Calls arriving
// while a delivery is running are folded into one more round by that caller.
func (s *Store[E]) broadcast() {
	s.notifyMu.Lock()
	if s.notifying {
		s.renotify = true
		s.notifyMu.Unlock()
		return
	}
	s.notifying = true
	for {
		s.renotify = false
		s.notifyMu.Unlock()

		snap := s.Snapshot()
		s.listenersMu.Lock()
		fns := make([]func(Snapshot[E]), len(s.listeners))
		for i, l := range s.listeners {
			fns[i] = l.fn
		}
		s.listenersMu.Unlock()
		for _, fn := range fns {
			fn(snap)
		}
		s.metrics.IncBroadcast(s.name)

		s.notifyMu.Lock()
		if !s.renotify {
			s.notifying = false
			s.notifyMu.Unlock()
			return
		}
	}
}
