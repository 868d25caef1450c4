package syncstore

import (
	"time"

	"github.com/five82/lotwatch/internal/logfields"
)

// pollIntervalLocked derives the steady-state poll interval from the
// registered consumers and the visibility state.
func (s *Store[E]) pollIntervalLocked() time.Duration {
	minRequested := time.Duration(0)
	for _, d := range s.intervals {
		if d <= 0 {
			continue
		}
		if minRequested == 0 || d < minRequested {
			minRequested = d
		}
	}
	if minRequested == 0 {
		minRequested = s.timing.DefaultPoll
	}
	interval := max(s.timing.ForegroundFloor, minRequested)
	if s.hidden {
		interval = max(s.timing.BackgroundFloor, interval)
	}
	return interval
}

// scheduleNextLocked replaces the pending poll timer with a fresh one.
func (s *Store[E]) scheduleNextLocked() {
	s.stopPollTimerLocked()
	if s.subscribers == 0 {
		return
	}
	now := s.clock.Now()
	delay := max(
		s.backoff.remaining(now),
		remaining(s.noFetchBefore, now),
		s.pollIntervalLocked(),
	)
	s.pollSeq++
	seq := s.pollSeq
	s.lastPollDelay = delay
	s.pollTimer = s.clock.AfterFunc(delay, func() { s.onPollTimer(seq) })
	s.logger.Debug("poll scheduled", logfields.Delay(delay))
}

func (s *Store[E]) onPollTimer(seq uint64) {
	s.mu.Lock()
	if seq != s.pollSeq || s.pollTimer == nil {
		s.mu.Unlock()
		return
	}
	s.pollTimer = nil
	_, changed := s.refreshLocked(true, false)
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
}

func (s *Store[E]) stopPollTimerLocked() {
	if s.pollTimer != nil {
		s.pollTimer.Stop()
		s.pollTimer = nil
	}
	s.pollSeq++
}

// NextPollDelay reports the delay used for the currently armed poll timer,
// or zero when none is armed.
func (s *Store[E]) NextPollDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollTimer == nil {
		return 0
	}
	return s.lastPollDelay
}
