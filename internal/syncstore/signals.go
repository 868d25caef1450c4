package syncstore

import "github.com/five82/lotwatch/internal/logfields"

// SignalHandler receives platform and application events.
type SignalHandler interface {
	// OnFocus is called when the user returns to the application.
	OnFocus()
	// OnVisibility reports whether the application is hidden.
	OnVisibility(hidden bool)
	// OnRevalidate asks for a refresh ahead of the next poll.
	OnRevalidate(force bool)
	// OnOptimistic delivers a speculative patch.
	OnOptimistic(p Patch)
}

// SignalSource delivers events to attached handlers. Sources must not hold
// their own locks while invoking a handler.
type SignalSource interface {
	Attach(h SignalHandler) (detach func())
}

var _ SignalHandler = (*Store[struct{}])(nil)

// OnFocus requests an ambient revalidation.
func (s *Store[E]) OnFocus() {
	s.Revalidate(false)
}

// OnVisibility records the visibility state. Becoming hidden stretches the
// poll interval; becoming visible re-arms the poll and revalidates.
func (s *Store[E]) OnVisibility(hidden bool) {
	s.mu.Lock()
	if s.hidden == hidden {
		s.mu.Unlock()
		return
	}
	s.hidden = hidden
	changed := false
	if s.subscribers > 0 {
		s.scheduleNextLocked()
		if !hidden {
			changed = s.revalidateLocked(false)
		}
	}
	s.mu.Unlock()
	if changed {
		s.broadcast()
	}
}

// OnRevalidate forwards to Revalidate.
func (s *Store[E]) OnRevalidate(force bool) {
	s.Revalidate(force)
}

// OnOptimistic forwards to ApplyPatch, logging rejected patches.
func (s *Store[E]) OnOptimistic(p Patch) {
	if p == nil {
		return
	}
	if _, err := s.ApplyPatch(p); err != nil {
		s.logger.Warn("optimistic patch rejected", logfields.PatchKey(p.IdempotencyKey()), logfields.Error(err))
	}
}
