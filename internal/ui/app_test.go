package ui

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/lotwatch/internal/ledger"
	"github.com/five82/lotwatch/internal/prefs"
	"github.com/five82/lotwatch/internal/syncstore"
)

type fakeSource struct {
	mu          sync.Mutex
	snap        syncstore.Snapshot[ledger.Lottery]
	started     []string
	every       []time.Duration
	stops       int
	revalidated []bool
	refreshes   int
	refreshErr  error
}

func (f *fakeSource) Snapshot() syncstore.Snapshot[ledger.Lottery] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Subscribe(func(syncstore.Snapshot[ledger.Lottery])) func() {
	return func() {}
}

func (f *fakeSource) Start(key string, every time.Duration) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, key)
	f.every = append(f.every, every)
	return func() {
		f.mu.Lock()
		f.stops++
		f.mu.Unlock()
	}
}

func (f *fakeSource) Refresh(context.Context, syncstore.RefreshOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeSource) Revalidate(force bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revalidated = append(f.revalidated, force)
}

type fakeSignals struct {
	events []string
}

func (f *fakeSignals) Focus() { f.events = append(f.events, "focus") }
func (f *fakeSignals) Visibility(hidden bool) {
	if hidden {
		f.events = append(f.events, "hidden")
		return
	}
	f.events = append(f.events, "visible")
}
func (f *fakeSignals) Revalidate(force bool) {
	if force {
		f.events = append(f.events, "revalidate!")
		return
	}
	f.events = append(f.events, "revalidate")
}

var testNow = time.Unix(1_700_000_100, 0)

func lotteries() []ledger.Lottery {
	return []ledger.Lottery{
		{ID: "0xaaa", Status: ledger.StatusOpen, TicketsSold: "10", MaxTickets: "100", TicketPrice: "5", Pot: "50", LastActivityAt: "1700000090"},
		{ID: "0xbbb", Status: ledger.StatusSettled, TicketsSold: "100", MaxTickets: "100", TicketPrice: "1", Pot: "100", Winner: "0xwin", LastActivityAt: "1700000000"},
		{ID: "0xccc", Status: ledger.StatusDrawing, TicketsSold: "1234567", TicketPrice: "2", Pot: "2469134", LastActivityAt: "1699990000"},
	}
}

func newTestModel(t *testing.T, src Source, signals Signals) Model {
	t.Helper()
	opts := Options{
		Store:     src,
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
		Prefs:     prefs.Defaults(),
	}
	if signals != nil {
		opts.Signals = signals
	}
	m := New(opts)
	m.clock = func() time.Time { return testNow }
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func press(m Model, keys string) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return next.(Model), cmd
}

func withData(t *testing.T, m Model) Model {
	t.Helper()
	return update(t, m, snapshotMsg(syncstore.Snapshot[ledger.Lottery]{
		Entities:    lotteries(),
		Revision:    3,
		LastUpdated: testNow.Add(-5 * time.Second),
	}))
}

func TestSnapshotPopulatesTable(t *testing.T) {
	m := withData(t, newTestModel(t, &fakeSource{}, nil))

	rows := m.table.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "0xaaa", rows[0][0])
	assert.Equal(t, "10/100", rows[0][2])
	assert.Equal(t, "10s ago", rows[0][6])
	assert.Equal(t, "0xwin", rows[1][5])
	assert.Equal(t, "1,234,567", rows[2][2])

	view := m.View()
	assert.Contains(t, view, "3 lotteries")
	assert.Contains(t, view, "open 1")
	assert.Contains(t, view, "drawing 1")
	assert.Contains(t, view, "settled 1")
	assert.NotContains(t, view, "canceled")
	assert.Contains(t, view, "rev 3")
	assert.Contains(t, view, "updated 5s ago")
}

func TestSelectionFollowsLotteryAcrossSnapshots(t *testing.T) {
	m := withData(t, newTestModel(t, &fakeSource{}, nil))
	m.table.SetCursor(1)
	require.Equal(t, "0xbbb", m.selectedID())

	reordered := lotteries()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	m = update(t, m, snapshotMsg(syncstore.Snapshot[ledger.Lottery]{Entities: reordered, Revision: 4}))

	assert.Equal(t, 0, m.table.Cursor())
	assert.Equal(t, "0xbbb", m.selectedID())
}

func TestToggleClosedHidesSettledAndSaves(t *testing.T) {
	m := withData(t, newTestModel(t, &fakeSource{}, nil))

	m, cmd := press(m, "c")
	require.NotNil(t, cmd)
	assert.True(t, m.hideClosed)
	require.Len(t, m.table.Rows(), 2)
	assert.Contains(t, m.View(), "closed hidden")

	msg := cmd()
	assert.Equal(t, prefsSavedMsg{}, msg)
	saved, err := prefs.Load(m.prefsPath)
	require.NoError(t, err)
	assert.True(t, saved.HideClosed)

	m, _ = press(m, "c")
	assert.False(t, m.hideClosed)
	assert.Len(t, m.table.Rows(), 3)
}

func TestCycleThemeSavesPrefs(t *testing.T) {
	m := newTestModel(t, &fakeSource{}, nil)
	require.Equal(t, "Midnight", m.theme.Name)

	m, cmd := press(m, "T")
	assert.Equal(t, "Paper", m.theme.Name)
	require.NotNil(t, cmd)
	cmd()

	saved, err := prefs.Load(m.prefsPath)
	require.NoError(t, err)
	assert.Equal(t, "Paper", saved.Theme)
}

func TestRevalidateKeyPublishesForcedSignal(t *testing.T) {
	src := &fakeSource{}
	signals := &fakeSignals{}
	m := newTestModel(t, src, signals)

	_, cmd := press(m, "r")
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"revalidate!"}, signals.events)
	assert.Empty(t, src.revalidated)
}

func TestRevalidateKeyWithoutBusUsesStore(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src, nil)

	_, cmd := press(m, "r")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []bool{true}, src.revalidated)
}

func TestFocusAndBlurMapToSignals(t *testing.T) {
	signals := &fakeSignals{}
	m := newTestModel(t, &fakeSource{}, signals)

	run := func(msg tea.Msg) {
		next, cmd := m.Update(msg)
		m = next.(Model)
		require.NotNil(t, cmd)
		cmd()
	}

	run(tea.FocusMsg{})
	run(tea.BlurMsg{})
	assert.True(t, m.hidden)
	assert.Contains(t, m.View(), "background")
	run(tea.FocusMsg{})
	assert.False(t, m.hidden)

	assert.Equal(t, []string{"focus", "hidden", "visible"}, signals.events)
}

func TestRefreshKeyReportsFailure(t *testing.T) {
	src := &fakeSource{refreshErr: errors.New("indexer down")}
	m := newTestModel(t, src, nil)

	m, cmd := press(m, "R")
	require.NotNil(t, cmd)
	assert.Equal(t, "Refreshing...", m.flash)

	msg := cmd()
	assert.Equal(t, 1, src.refreshes)
	m = update(t, m, msg)
	assert.Contains(t, m.View(), "Refresh failed: indexer down")

	m = update(t, m, refreshDoneMsg{})
	assert.Empty(t, m.flash)
}

func TestStartCmdRegistersOnce(t *testing.T) {
	src := &fakeSource{snap: syncstore.Snapshot[ledger.Lottery]{Revision: 7}}
	m := newTestModel(t, src, nil)
	m.pollEvery = 30 * time.Second

	msg := m.startCmd()()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, uint64(7), snap.Revision)

	m.startCmd()()
	assert.Equal(t, []string{defaultConsumerKey}, src.started)
	assert.Equal(t, []time.Duration{30 * time.Second}, src.every)

	m.lifecycle.close()
	m.lifecycle.close()
	assert.Equal(t, 1, src.stops)

	m.startCmd()()
	assert.Len(t, src.started, 1)
}

func TestStatusLineStates(t *testing.T) {
	m := newTestModel(t, &fakeSource{}, nil)
	assert.Contains(t, m.View(), "Waiting for indexer")
	assert.Contains(t, m.View(), "No data yet")

	m = update(t, m, snapshotMsg(syncstore.Snapshot[ledger.Lottery]{
		Entities:            []ledger.Lottery{},
		IsLoading:           true,
		Note:                "Indexer is rate limiting requests; retrying in 20s.",
		ConsecutiveFailures: 2,
	}))
	view := m.View()
	assert.Contains(t, view, "Syncing...")
	assert.Contains(t, view, "OFFLINE")
	assert.Contains(t, view, "rate limiting")
	assert.Contains(t, view, "No lotteries")
}

func TestHelpOverlayClosesOnAnyKey(t *testing.T) {
	m := newTestModel(t, &fakeSource{}, nil)

	m, _ = press(m, "?")
	require.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, cmd := press(m, "r")
	assert.False(t, m.showHelp)
	assert.Nil(t, cmd)
}

func TestNotReadyView(t *testing.T) {
	m := New(Options{Store: &fakeSource{}})
	assert.Equal(t, "Loading...", m.View())
}

func TestRunRequiresStore(t *testing.T) {
	require.Error(t, Run(Options{}))
}

func TestPollIntervalSource(t *testing.T) {
	p := prefs.Defaults()
	p.PollSeconds = 45
	assert.Equal(t, 45*time.Second, New(Options{Store: &fakeSource{}, Prefs: p}).pollEvery)
	assert.Equal(t, 5*time.Second, New(Options{Store: &fakeSource{}, Prefs: p, PollEvery: 5 * time.Second}).pollEvery)
	assert.Equal(t, 20*time.Second, New(Options{Store: &fakeSource{}}).pollEvery)
}
