package syncstore

import "time"

// Snapshot is the immutable view of a store handed to consumers.
//
// Entities is nil until the first successful fetch (or create patch). The
// slice is shared between every reader of the same Revision and must not be
// modified; a change always arrives as a new slice with a higher Revision.
type Snapshot[E any] struct {
	Entities            []E
	IsLoading           bool
	Note                string
	LastUpdated         time.Time
	LastError           time.Time
	Revision            uint64
	ConsecutiveFailures int
}

// HasData reports whether the store has ever held an entity list.
func (s Snapshot[E]) HasData() bool {
	return s.Entities != nil
}

// IsOffline returns true when the indexer has failed on consecutive attempts.
func (s Snapshot[E]) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

func (s Snapshot[E]) sameAs(other Snapshot[E]) bool {
	return s.Revision == other.Revision &&
		s.IsLoading == other.IsLoading &&
		s.Note == other.Note &&
		s.LastUpdated.Equal(other.LastUpdated) &&
		s.LastError.Equal(other.LastError) &&
		s.ConsecutiveFailures == other.ConsecutiveFailures
}
