package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/lotwatch/internal/config"
	"github.com/five82/lotwatch/internal/ledger"
	"github.com/five82/lotwatch/internal/signal"
	"github.com/five82/lotwatch/internal/syncstore"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{config.EnvIndexerURL, config.EnvNATSURL, config.EnvMetricsAddr} {
		t.Setenv(key, "")
	}
	return dir
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(isolate(t), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const indexerBody = `{"items":[
  {"id":"0xAAA","status":"active","ticketPrice":"5","ticketsSold":"10","maxTickets":"100","pot":"50","lastActivityAt":"1700000000"},
  {"id":"0xbbb","status":"settled","ticketPrice":"1","ticketsSold":"4","pot":"4","winner":"0xwin","lastActivityAt":"1700000500"}
]}`

func indexer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/lotteries" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDumpOnceWritesSortedJSON(t *testing.T) {
	srv := indexer(t, http.StatusOK, indexerBody)
	path := writeConfig(t, "indexer_url = \""+srv.URL+"\"\n")

	var out bytes.Buffer
	require.NoError(t, DumpOnce(context.Background(), Options{ConfigPath: path}, &out))

	var got []ledger.Lottery
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "0xbbb", got[0].ID)
	assert.Equal(t, "0xaaa", got[1].ID)
	assert.Equal(t, ledger.StatusOpen, got[1].Status)
}

func TestDumpOnceReportsUnavailableIndexer(t *testing.T) {
	srv := indexer(t, http.StatusInternalServerError, `{}`)
	path := writeConfig(t, "indexer_url = \""+srv.URL+"\"\n")

	err := DumpOnce(context.Background(), Options{ConfigPath: path}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexer unavailable")
	assert.Contains(t, err.Error(), "temporarily unavailable")
}

func TestDumpOnceHonoursContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})
	path := writeConfig(t, "indexer_url = \""+srv.URL+"\"\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := DumpOnce(ctx, Options{ConfigPath: path}, io.Discard)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildServesMetrics(t *testing.T) {
	srv := indexer(t, http.StatusOK, indexerBody)
	path := writeConfig(t, "indexer_url = \""+srv.URL+"\"\n[metrics]\nlisten = \"127.0.0.1:0\"\n")

	rt, err := build(context.Background(), Options{ConfigPath: path})
	require.NoError(t, err)
	defer rt.close()
	require.NotNil(t, rt.metrics)

	require.NoError(t, dump(context.Background(), rt.store, io.Discard))

	resp, err := http.Get("http://" + rt.metrics.addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "lotwatch_fetches_total")
	assert.Contains(t, string(body), `store="lotteries"`)
	assert.Contains(t, string(body), "lotwatch_broadcasts_total")

	health, err := http.Get("http://" + rt.metrics.addr() + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestBuildRejectsBadMetricsAddress(t *testing.T) {
	path := writeConfig(t, "[metrics]\nlisten = \"not-an-address\"\n")

	_, err := build(context.Background(), Options{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics listener")
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "page_limit = 5000\n")

	_, err := build(context.Background(), Options{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestBuildWiresSignalBus(t *testing.T) {
	// The first request answers; later ones hang so the optimistic value is
	// not overwritten by an authoritative refetch during the test.
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) > 1 {
			<-r.Context().Done()
			return
		}
		_, _ = io.WriteString(w, indexerBody)
	}))
	t.Cleanup(srv.Close)
	path := writeConfig(t, "indexer_url = \""+srv.URL+"\"\n")

	rt, err := build(context.Background(), Options{ConfigPath: path})
	require.NoError(t, err)
	defer rt.close()

	require.NoError(t, dump(context.Background(), rt.store, io.Discard))
	assert.Equal(t, 0, rt.bus.HandlerCount())

	stop := rt.store.Start("test", time.Minute)
	defer stop()
	assert.Equal(t, 1, rt.bus.HandlerCount())

	rt.bus.Optimistic(syncstore.DeltaPatch{
		Key:      "k1",
		EntityID: "0xaaa",
		Deltas:   map[string]int64{ledger.FieldTicketsSold: 3},
	})
	var sold string
	for _, l := range rt.store.Snapshot().Entities {
		if l.ID == "0xaaa" {
			sold = l.TicketsSold
		}
	}
	assert.Equal(t, "13", sold)
}

type fakeStore struct {
	mu      sync.Mutex
	emit    []syncstore.Snapshot[ledger.Lottery]
	fn      func(syncstore.Snapshot[ledger.Lottery])
	started []string
	stopped int
}

func (f *fakeStore) Subscribe(fn func(syncstore.Snapshot[ledger.Lottery])) func() {
	f.fn = fn
	return func() { f.fn = nil }
}

func (f *fakeStore) Start(key string, _ time.Duration) func() {
	f.mu.Lock()
	f.started = append(f.started, key)
	f.mu.Unlock()
	for _, s := range f.emit {
		if f.fn != nil {
			f.fn(s)
		}
	}
	return func() {
		f.mu.Lock()
		f.stopped++
		f.mu.Unlock()
	}
}

func TestWatchLogsSnapshotChanges(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	list := []ledger.Lottery{{ID: "0xaaa", Status: ledger.StatusOpen, TicketsSold: "10", Pot: "50"}}
	store := &fakeStore{emit: []syncstore.Snapshot[ledger.Lottery]{
		{IsLoading: true},
		{Entities: list, Revision: 1, LastUpdated: time.Unix(1_700_000_000, 0)},
		{Entities: list, Revision: 1, Note: "Indexer temporarily unavailable; retrying in 10s.", ConsecutiveFailures: 2},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	watch(ctx, store, 20*time.Second, logger)

	out := buf.String()
	assert.Equal(t, []string{headlessConsumer}, store.started)
	assert.Equal(t, 1, store.stopped)
	assert.Nil(t, store.fn)
	assert.Contains(t, out, "loading=true")
	assert.Contains(t, out, "revision=1")
	assert.Contains(t, out, "entity_id=0xaaa")
	assert.Equal(t, 1, strings.Count(out, "entity_id=0xaaa"))
	assert.Contains(t, out, "indexer offline")
	assert.Contains(t, out, "failures=2")
	assert.Contains(t, out, "headless watch stopped")
}

type fakeConn struct {
	subjects []string
	payloads []string
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, string(data))
	return nil
}

func (f *fakeConn) FlushTimeout(time.Duration) error { return nil }

func stubNATS(t *testing.T) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	orig := connectNATS
	connectNATS = func(url string, _ *slog.Logger) (signal.Conn, func(), error) {
		assert.Equal(t, "nats://broker:4222", url)
		return conn, func() { conn.closed = true }, nil
	}
	t.Cleanup(func() { connectNATS = orig })
	return conn
}

func TestNotifyPublishesOnConfiguredPrefix(t *testing.T) {
	path := writeConfig(t, "[nats]\nurl = \"nats://broker:4222\"\nsubject_prefix = \"raffles\"\n")
	conn := stubNATS(t)

	var key string
	err := Notify(context.Background(), Options{ConfigPath: path}, func(p *signal.Publisher) error {
		if err := p.Revalidate(true); err != nil {
			return err
		}
		var err error
		key, err = p.Patch(syncstore.DeltaPatch{EntityID: "0xaaa", Deltas: map[string]int64{"ticketsSold": 1}})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"raffles.revalidate", "raffles.optimistic"}, conn.subjects)
	assert.JSONEq(t, `{"force":true}`, conn.payloads[0])
	assert.Len(t, key, 36)
	assert.Contains(t, conn.payloads[1], key)
	assert.True(t, conn.closed)
}

func TestNotifyUsesEnvironmentURL(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv(config.EnvNATSURL, "nats://broker:4222")
	conn := stubNATS(t)

	require.NoError(t, Notify(context.Background(), Options{ConfigPath: path}, func(p *signal.Publisher) error {
		return p.Revalidate(false)
	}))
	assert.Equal(t, []string{signal.DefaultSubjectPrefix + ".revalidate"}, conn.subjects)
}

func TestNotifyRequiresNATSURL(t *testing.T) {
	path := writeConfig(t, "")
	called := false
	err := Notify(context.Background(), Options{ConfigPath: path}, func(*signal.Publisher) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errNotConfigured)
	assert.False(t, called)
}
