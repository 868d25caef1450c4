package syncstore

import (
	"fmt"
	"time"

	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/metrics"
)

// PatchKind names the optimistic patch variants.
type PatchKind string

const (
	PatchDelta  PatchKind = "delta"
	PatchCreate PatchKind = "create"
)

// Patch is a speculative mutation applied ahead of authoritative data.
// The set of implementations is closed: DeltaPatch and CreatePatch.
type Patch interface {
	IdempotencyKey() string
	Kind() PatchKind
	sealed()
}

// DeltaPatch adds signed amounts to numeric fields of an existing entity.
type DeltaPatch struct {
	Key      string
	EntityID string
	Deltas   map[string]int64
}

func (p DeltaPatch) IdempotencyKey() string { return p.Key }
func (p DeltaPatch) Kind() PatchKind        { return PatchDelta }
func (DeltaPatch) sealed()                  {}

// CreatePatch inserts an entity the indexer has not reported yet.
type CreatePatch struct {
	Key      string
	EntityID string
	Fields   map[string]string
}

func (p CreatePatch) IdempotencyKey() string { return p.Key }
func (p CreatePatch) Kind() PatchKind        { return PatchCreate }
func (CreatePatch) sealed()                  {}

// ApplyPatch applies p to the current snapshot without touching the network.
// It reports whether the entity list changed. Replayed idempotency keys,
// deltas for unknown ids and creates for known ids are no-ops.
func (s *Store[E]) ApplyPatch(p Patch) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("nil patch")
	}
	s.mu.Lock()
	applied, err := s.applyPatchLocked(p)
	s.mu.Unlock()

	kind := string(p.Kind())
	switch {
	case err != nil:
		s.metrics.IncPatch(s.name, kind, metrics.PatchRejected)
	case applied:
		s.metrics.IncPatch(s.name, kind, metrics.PatchApplied)
		s.broadcast()
	}
	return applied, err
}

func (s *Store[E]) applyPatchLocked(p Patch) (bool, error) {
	key := p.IdempotencyKey()
	if key == "" {
		return false, ErrMissingIdempotencyKey
	}
	if _, dup := s.seen[key]; dup {
		s.metrics.IncPatch(s.name, string(p.Kind()), metrics.PatchDuplicate)
		s.logger.Debug("duplicate patch dropped", logfields.PatchKey(key))
		return false, nil
	}
	s.rememberLocked(key)

	var (
		next []E
		err  error
	)
	now := s.clock.Now()
	switch p := p.(type) {
	case DeltaPatch:
		next, err = s.deltaLocked(p, now)
	case CreatePatch:
		next, err = s.createLocked(p, now)
	default:
		return false, fmt.Errorf("unsupported patch type %T", p)
	}
	if err != nil {
		return false, err
	}
	if next == nil {
		s.metrics.IncPatch(s.name, string(p.Kind()), metrics.PatchNoop)
		return false, nil
	}
	s.commitListLocked(next, now)
	s.logger.Debug("optimistic patch applied",
		logfields.PatchKey(key),
		logfields.PatchKind(string(p.Kind())),
		logfields.Revision(s.state.Revision))
	return true, nil
}

func (s *Store[E]) deltaLocked(p DeltaPatch, now time.Time) ([]E, error) {
	if s.schema.ApplyDelta == nil {
		return nil, fmt.Errorf("store %s does not accept delta patches", s.name)
	}
	current := s.state.Entities
	idx := s.schema.indexOf(current, canonicalID(p.EntityID))
	if idx < 0 {
		return nil, nil
	}
	updated, err := s.schema.ApplyDelta(current[idx], p.Deltas, now)
	if err != nil {
		return nil, fmt.Errorf("apply delta to %s: %w", p.EntityID, err)
	}
	next := make([]E, len(current))
	copy(next, current)
	next[idx] = updated
	s.schema.sort(next)
	return next, nil
}

func (s *Store[E]) createLocked(p CreatePatch, now time.Time) ([]E, error) {
	if s.schema.Synthesize == nil {
		return nil, fmt.Errorf("store %s does not accept create patches", s.name)
	}
	id := canonicalID(p.EntityID)
	if id == "" {
		return nil, fmt.Errorf("create patch %s has no entity id", p.Key)
	}
	current := s.state.Entities
	if s.schema.indexOf(current, id) >= 0 {
		return nil, nil
	}
	entity, err := s.schema.Synthesize(id, p.Fields, now)
	if err != nil {
		return nil, fmt.Errorf("synthesize %s: %w", id, err)
	}
	next := make([]E, 0, len(current)+1)
	next = append(next, entity)
	next = append(next, current...)
	s.schema.sort(next)
	return next, nil
}

// rememberLocked records key, clearing the set wholesale once it grows past the limit.
func (s *Store[E]) rememberLocked(key string) {
	if len(s.seen) >= s.timing.SeenKeysLimit {
		s.seen = make(map[string]struct{}, s.timing.SeenKeysLimit)
	}
	s.seen[key] = struct{}{}
}
