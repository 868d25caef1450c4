package syncstore

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/metrics"
)

// RefreshOptions controls a single refresh request.
type RefreshOptions struct {
	// Background refreshes do not raise IsLoading and are skipped while hidden.
	Background bool
	// Force bypasses the hidden check and any backoff or throttle window.
	Force bool
}

// Refresh asks for a fetch and waits until it (or the fetch it was folded
// into) completes, or ctx ends. Fetch failures are never returned; they show
// up in the snapshot. The only error is ctx's.
func (s *Store[E]) Refresh(ctx context.Context, opts RefreshOptions) error {
	s.mu.Lock()
	done, changed := s.refreshLocked(opts.Background, opts.Force)
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshLocked starts a fetch when allowed. It returns the channel closed
// when the relevant fetch ends (nil when nothing was started or joined).
func (s *Store[E]) refreshLocked(background, force bool) (<-chan struct{}, bool) {
	if s.subscribers == 0 {
		return nil, false
	}
	now := s.clock.Now()
	if background && s.hidden && !force {
		s.scheduleNextLocked()
		return nil, false
	}
	if !force && s.throttledLocked(now) {
		s.scheduleNextLocked()
		return nil, false
	}
	if s.inFlight {
		s.pending = true
		return s.done, false
	}
	return s.beginFetchLocked(background)
}

func (s *Store[E]) throttledLocked(now time.Time) bool {
	return s.backoff.remaining(now) > 0 || remaining(s.noFetchBefore, now) > 0
}

func (s *Store[E]) beginFetchLocked(background bool) (<-chan struct{}, bool) {
	s.abortLocked()
	s.stopPollTimerLocked()

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.inFlight = true
	s.lastFetchStart = s.clock.Now()

	changed := false
	if !background {
		changed = s.updateLocked(func(n *Snapshot[E]) { n.IsLoading = true })
	}
	go s.runFetch(ctx, cancel, gen, done)
	return done, changed
}

// abortLocked cancels the in-flight fetch, if any. Its result will be discarded.
func (s *Store[E]) abortLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.inFlight {
		s.inFlight = false
		s.gen++
	}
	s.pending = false
}

func (s *Store[E]) runFetch(ctx context.Context, cancel context.CancelFunc, gen uint64, done chan struct{}) {
	defer cancel()
	started := s.clock.Now()
	items, err := s.fetch(ctx)

	s.mu.Lock()
	if gen != s.gen || !s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = false
	s.cancel = nil
	s.done = nil
	now := s.clock.Now()
	s.metrics.ObserveFetchDuration(s.name, now.Sub(started))

	var changed bool
	if err == nil {
		changed = s.acceptLocked(items, now)
	} else {
		changed = s.failLocked(ctx, err, now)
	}

	if s.pending && s.subscribers > 0 && !s.throttledLocked(now) {
		_, loading := s.beginFetchLocked(false)
		changed = changed || loading
	} else {
		s.pending = false
		s.scheduleNextLocked()
	}
	s.mu.Unlock()

	close(done)
	if changed {
		s.broadcast()
	}
}

// fetch calls the fetcher, converting a panic into an error so a faulty
// collaborator cannot wedge the in-flight flag.
func (s *Store[E]) fetch(ctx context.Context) (items []E, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
		}
	}()
	return s.fetcher.Fetch(ctx, Query{Limit: s.timing.PageLimit})
}

func (s *Store[E]) acceptLocked(items []E, now time.Time) bool {
	s.backoff.reset()
	s.noFetchBefore = time.Time{}
	s.metrics.SetBackoffDelay(s.name, 0)

	list := s.schema.normalize(items)
	sig := s.schema.signature(list)
	if s.state.Entities != nil && sig == s.signature {
		s.metrics.IncFetch(s.name, metrics.ResultUnchanged)
		return s.updateLocked(func(n *Snapshot[E]) {
			n.IsLoading = false
			n.Note = ""
			n.ConsecutiveFailures = 0
		})
	}

	s.signature = sig
	s.metrics.IncFetch(s.name, metrics.ResultChanged)
	changed := s.updateLocked(func(n *Snapshot[E]) {
		n.Entities = list
		n.Revision++
		n.IsLoading = false
		n.Note = ""
		n.ConsecutiveFailures = 0
		if now.After(n.LastUpdated) {
			n.LastUpdated = now
		}
	})
	s.logger.Debug("entities replaced", logfields.Count(len(list)), logfields.Revision(s.state.Revision))
	return changed
}

func (s *Store[E]) failLocked(ctx context.Context, err error, now time.Time) bool {
	kind := Classify(err)
	if kind == FailureCanceled || ctx.Err() != nil {
		s.metrics.IncFetch(s.name, metrics.ResultCanceled)
		return s.updateLocked(func(n *Snapshot[E]) { n.IsLoading = false })
	}

	delay := s.backoff.apply(kind, now)
	until := now.Add(delay)
	if hint := min(retryAfter(err), s.maxRetryHint()); hint > 0 && now.Add(hint).After(until) {
		until = now.Add(hint)
	}
	if until.After(s.noFetchBefore) {
		s.noFetchBefore = until
	}
	wait := until.Sub(now)

	label := metrics.ResultTransient
	if kind == FailureRateLimited {
		label = metrics.ResultRateLimited
	}
	s.metrics.IncFetch(s.name, label)
	s.metrics.SetBackoffDelay(s.name, wait)
	s.logger.Warn("fetch failed",
		logfields.Failure(kind.String()),
		logfields.Delay(wait),
		logfields.Error(err))

	note := noteFor(kind, wait)
	return s.updateLocked(func(n *Snapshot[E]) {
		n.IsLoading = false
		n.Note = note
		n.LastError = now
		n.ConsecutiveFailures++
	})
}

// maxRetryHint bounds a server Retry-After hint by the steepest backoff cap.
func (s *Store[E]) maxRetryHint() time.Duration {
	return max(s.timing.RateLimited.Max, s.timing.General.Max)
}

func noteFor(kind FailureKind, wait time.Duration) string {
	wait = wait.Round(time.Second)
	if kind == FailureRateLimited {
		return fmt.Sprintf("Indexer is rate limiting requests; retrying in %s.", wait)
	}
	return fmt.Sprintf("Indexer temporarily unavailable; retrying in %s.", wait)
}
