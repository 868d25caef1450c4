package syncstore

import (
	"time"

	"github.com/five82/lotwatch/internal/logfields"
)

// Revalidate asks for a fetch ahead of the next scheduled poll. Bursts are
// coalesced: at most one fetch runs per ForcedGap (force) or AmbientGap
// (ambient), and a request during a fetch queues exactly one follow-up.
// Requests are ignored while hidden or dormant.
func (s *Store[E]) Revalidate(force bool) {
	s.mu.Lock()
	changed := s.revalidateLocked(force)
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
}

func (s *Store[E]) revalidateLocked(force bool) bool {
	if s.subscribers == 0 || s.hidden {
		return false
	}
	if s.inFlight {
		s.pending = true
		return false
	}

	gap := s.timing.AmbientGap
	if force {
		gap = s.timing.ForcedGap
	}
	now := s.clock.Now()
	earliest := s.lastFetchStart.Add(gap)
	if s.noFetchBefore.After(earliest) {
		earliest = s.noFetchBefore
	}
	if now.Before(earliest) {
		s.armDebounceLocked(earliest.Sub(now), force, now)
		return false
	}

	s.stopDebounceLocked()
	_, changed := s.refreshLocked(!force, false)
	return changed
}

// armDebounceLocked replaces any pending debounce timer.
func (s *Store[E]) armDebounceLocked(wait time.Duration, force bool, now time.Time) {
	s.stopDebounceLocked()
	s.debounceSeq++
	seq := s.debounceSeq
	s.debounceArmedAt = now
	s.debounceTimer = s.clock.AfterFunc(wait, func() { s.onDebounce(seq, force) })
	s.logger.Debug("revalidation debounced", logfields.Delay(wait))
}

func (s *Store[E]) onDebounce(seq uint64, force bool) {
	s.mu.Lock()
	if seq != s.debounceSeq || s.debounceTimer == nil {
		s.mu.Unlock()
		return
	}
	s.debounceTimer = nil
	changed := false
	// A fetch that started after the request already satisfied it.
	if !s.lastFetchStart.After(s.debounceArmedAt) {
		_, changed = s.refreshLocked(!force, false)
	}
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
}

func (s *Store[E]) stopDebounceLocked() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.debounceSeq++
}
