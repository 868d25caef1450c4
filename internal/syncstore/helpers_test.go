package syncstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID     string
	Status string
	Sold   int64
	At     int64
}

func testSchema() Schema[item] {
	return Schema[item]{
		ID:        func(i item) string { return i.ID },
		Signature: func(i item) string { return fmt.Sprintf("%s|%d|%d", i.Status, i.Sold, i.At) },
		Less:      func(a, b item) bool { return a.At > b.At },
		ApplyDelta: func(i item, deltas map[string]int64, now time.Time) (item, error) {
			if d, ok := deltas["sold"]; ok {
				if i.Sold+d < 0 {
					return item{}, fmt.Errorf("sold would go negative")
				}
				i.Sold += d
			}
			i.At = now.Unix()
			return i, nil
		},
		Synthesize: func(id string, fields map[string]string, now time.Time) (item, error) {
			status := fields["status"]
			if status == "" {
				status = "open"
			}
			return item{ID: id, Status: status, At: now.Unix()}, nil
		},
	}
}

type fetchResult struct {
	items []item
	err   error
}

// fakeSource serves results in order, repeating the last one. When gated,
// each Fetch blocks until release is called or its context ends.
type fakeSource struct {
	mu      sync.Mutex
	calls   int
	results []fetchResult
	gate    chan struct{}
}

func newFakeSource(results ...fetchResult) *fakeSource {
	return &fakeSource{results: results}
}

func (f *fakeSource) gated() *fakeSource {
	f.gate = make(chan struct{})
	return f
}

func (f *fakeSource) release() {
	f.gate <- struct{}{}
}

func (f *fakeSource) Fetch(ctx context.Context, _ Query) ([]item, error) {
	f.mu.Lock()
	f.calls++
	var r fetchResult
	if len(f.results) > 0 {
		idx := f.calls - 1
		if idx >= len(f.results) {
			idx = len(f.results) - 1
		}
		r = f.results[idx]
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	out := make([]item, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSignals struct {
	mu       sync.Mutex
	attached int
	detached int
	handler  SignalHandler
}

func (f *fakeSignals) Attach(h SignalHandler) func() {
	f.mu.Lock()
	f.attached++
	f.handler = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.detached++
		f.mu.Unlock()
	}
}

func (f *fakeSignals) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached, f.detached
}

type statusErr struct {
	code  int
	retry time.Duration
}

func (e statusErr) Error() string             { return fmt.Sprintf("indexer returned status %d", e.code) }
func (e statusErr) StatusCode() int           { return e.code }
func (e statusErr) RetryAfter() time.Duration { return e.retry }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, src *fakeSource, opts ...Option) (*Store[item], *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	all := append([]Option{WithClock(clock), WithLogger(quietLogger())}, opts...)
	s, err := New[item]("items", src, testSchema(), all...)
	require.NoError(t, err)
	return s, clock
}

func (s *Store[E]) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inFlight
}

// waitFetches blocks until the source has seen n calls and the store is idle.
func waitFetches(t *testing.T, s *Store[item], src *fakeSource, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return src.Calls() == n && s.idle()
	}, 2*time.Second, 2*time.Millisecond, "want %d fetches, store idle", n)
}

func lotsOf(ids ...string) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{ID: id, Status: "open", Sold: 10, At: int64(100 - i)}
	}
	return out
}
