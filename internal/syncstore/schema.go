package syncstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// Query is passed to the Fetcher on every round trip.
type Query struct {
	Limit  int
	Cursor string
}

// Fetcher retrieves the authoritative entity list from the indexing service.
type Fetcher[E any] interface {
	Fetch(ctx context.Context, q Query) ([]E, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc[E any] func(ctx context.Context, q Query) ([]E, error)

// Fetch calls f.
func (f FetcherFunc[E]) Fetch(ctx context.Context, q Query) ([]E, error) {
	return f(ctx, q)
}

// Schema describes how the store identifies, compares and patches one entity kind.
type Schema[E any] struct {
	// ID returns the entity's unique key.
	ID func(E) string
	// Signature returns the fields that drive the UI. Lists whose joined
	// signatures match are treated as unchanged.
	Signature func(E) string
	// Less orders the list. Nil keeps the indexer order.
	Less func(a, b E) bool
	// ApplyDelta returns a copy of e with the deltas applied.
	ApplyDelta func(e E, deltas map[string]int64, now time.Time) (E, error)
	// Synthesize builds a full entity from a partial one, filling defaults.
	Synthesize func(id string, fields map[string]string, now time.Time) (E, error)
}

func (sc Schema[E]) validate() error {
	if sc.ID == nil {
		return errors.New("schema requires an ID func")
	}
	if sc.Signature == nil {
		return errors.New("schema requires a Signature func")
	}
	return nil
}

func (sc Schema[E]) key(e E) string {
	return canonicalID(sc.ID(e))
}

// signature joins the per-entity signatures in list order.
func (sc Schema[E]) signature(list []E) string {
	var b strings.Builder
	for i, e := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sc.key(e))
		b.WriteByte('|')
		b.WriteString(sc.Signature(e))
	}
	return b.String()
}

func (sc Schema[E]) sort(list []E) {
	if sc.Less == nil {
		return
	}
	sort.SliceStable(list, func(i, j int) bool { return sc.Less(list[i], list[j]) })
}

// normalize copies items into a fresh list, dropping duplicate ids (first wins), and sorts it.
func (sc Schema[E]) normalize(items []E) []E {
	list := make([]E, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := sc.key(item)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		list = append(list, item)
	}
	sc.sort(list)
	return list
}

func (sc Schema[E]) indexOf(list []E, id string) int {
	for i, e := range list {
		if sc.key(e) == id {
			return i
		}
	}
	return -1
}

func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
