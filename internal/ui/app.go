package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lotwatch/internal/ledger"
	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/prefs"
	"github.com/five82/lotwatch/internal/syncstore"
)

const (
	defaultConsumerKey = "ui.table"
	refreshTimeout     = 30 * time.Second
	// header, status line and footer around the table
	chromeHeight = 3
)

// Source is the slice of the lottery store the UI consumes.
type Source interface {
	Snapshot() syncstore.Snapshot[ledger.Lottery]
	Subscribe(fn func(syncstore.Snapshot[ledger.Lottery])) (unsubscribe func())
	Start(consumerKey string, pollEvery time.Duration) (stop func())
	Refresh(ctx context.Context, opts syncstore.RefreshOptions) error
	Revalidate(force bool)
}

// Signals publishes terminal focus and user intent to the store.
type Signals interface {
	Focus()
	Visibility(hidden bool)
	Revalidate(force bool)
}

// Options configures the UI.
type Options struct {
	Context     context.Context
	Store       Source
	Signals     Signals // nil sends revalidations straight to Store
	Prefs       prefs.Prefs
	PrefsPath   string
	PollEvery   time.Duration // zero uses Prefs.PollSeconds
	ConsumerKey string
	Logger      *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx         context.Context
	store       Source
	signals     Signals
	prefs       prefs.Prefs
	prefsPath   string
	consumerKey string
	pollEvery   time.Duration
	logger      *slog.Logger
	clock       func() time.Time
	lifecycle   *lifecycle

	// UI state
	theme      Theme
	keys       keyMap
	help       help.Model
	table      table.Model
	width      int
	height     int
	ready      bool
	showHelp   bool
	hideClosed bool
	hidden     bool
	flash      string

	// Data state
	snapshot syncstore.Snapshot[ledger.Lottery]
	visible  []ledger.Lottery
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	consumerKey := opts.ConsumerKey
	if consumerKey == "" {
		consumerKey = defaultConsumerKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := opts.Prefs
	if p.PollSeconds <= 0 {
		p.PollSeconds = prefs.Defaults().PollSeconds
	}
	pollEvery := opts.PollEvery
	if pollEvery <= 0 {
		pollEvery = p.PollInterval()
	}

	theme := GetTheme(p.Theme)
	m := Model{
		ctx:         ctx,
		store:       opts.Store,
		signals:     opts.Signals,
		prefs:       p,
		prefsPath:   prefsPath,
		consumerKey: consumerKey,
		pollEvery:   pollEvery,
		logger:      logger,
		clock:       time.Now,
		lifecycle:   &lifecycle{},
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		hideClosed:  p.HideClosed,
		table: table.New(
			table.WithColumns(tableColumns()),
			table.WithFocused(true),
			table.WithStyles(theme.TableStyles()),
		),
	}
	m.applyTheme(theme)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.startCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.updateTable()
		return m, nil

	case tea.FocusMsg:
		if m.hidden {
			m.hidden = false
			return m, m.signalCmd(func(s Signals) { s.Visibility(false) })
		}
		return m, m.signalCmd(func(s Signals) { s.Focus() })

	case tea.BlurMsg:
		m.hidden = true
		return m, m.signalCmd(func(s Signals) { s.Visibility(true) })

	case tickMsg:
		m.updateTable()
		return m, tickCmd()

	case snapshotMsg:
		m.snapshot = syncstore.Snapshot[ledger.Lottery](msg)
		m.updateTable()
		return m, nil

	case refreshDoneMsg:
		m.flash = ""
		if msg.err != nil {
			m.flash = "Refresh failed: " + msg.err.Error()
		}
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.flash = "Could not save preferences: " + msg.err.Error()
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.applyTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		return m, m.savePrefsCmd()

	case key.Matches(msg, m.keys.ToggleClose):
		m.hideClosed = !m.hideClosed
		m.prefs.HideClosed = m.hideClosed
		m.updateTable()
		return m, m.savePrefsCmd()

	case key.Matches(msg, m.keys.Revalidate):
		m.flash = ""
		return m, m.signalCmd(func(s Signals) { s.Revalidate(true) })

	case key.Matches(msg, m.keys.Refresh):
		m.flash = "Refreshing..."
		return m, m.refreshCmd()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) applyTheme(t Theme) {
	m.theme = t
	m.table.SetStyles(t.TableStyles())
	styles := t.Styles()
	m.help.Styles.ShortKey = styles.AccentText
	m.help.Styles.FullKey = styles.AccentText
	m.help.Styles.ShortDesc = styles.MutedText
	m.help.Styles.FullDesc = styles.MutedText
	m.help.Styles.ShortSeparator = styles.FaintText
	m.help.Styles.FullSeparator = styles.FaintText
}

func (m Model) now() time.Time {
	return m.clock()
}

// Message types

type tickMsg time.Time

type snapshotMsg syncstore.Snapshot[ledger.Lottery]

type refreshDoneMsg struct{ err error }

type prefsSavedMsg struct{ err error }

// tickCmd re-renders relative ages once per second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// startCmd registers the table as a store consumer. It runs off the event
// loop because Start broadcasts, and broadcasts are delivered with Send.
func (m Model) startCmd() tea.Cmd {
	store, lc := m.store, m.lifecycle
	consumer, every := m.consumerKey, m.pollEvery
	return func() tea.Msg {
		if store == nil {
			return nil
		}
		lc.start(func() func() { return store.Start(consumer, every) })
		return snapshotMsg(store.Snapshot())
	}
}

// signalCmd delivers a signal off the event loop.
func (m Model) signalCmd(fn func(Signals)) tea.Cmd {
	signals, store := m.signals, m.store
	return func() tea.Msg {
		switch {
		case signals != nil:
			fn(signals)
		case store != nil:
			fn(storeSignals{store})
		}
		return nil
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		if store == nil {
			return refreshDoneMsg{}
		}
		ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		return refreshDoneMsg{err: store.Refresh(ctx, syncstore.RefreshOptions{Force: true})}
	}
}

func (m Model) savePrefsCmd() tea.Cmd {
	path, p, logger := m.prefsPath, m.prefs, m.logger
	return func() tea.Msg {
		err := prefs.Save(path, p)
		if err != nil {
			logger.Warn("save preferences", logfields.Error(err))
		}
		return prefsSavedMsg{err: err}
	}
}

// storeSignals maps signals onto a store when no bus is attached.
// Focus and visibility need a bus; without one they are dropped.
type storeSignals struct{ store Source }

func (s storeSignals) Focus()                {}
func (s storeSignals) Visibility(bool)       {}
func (s storeSignals) Revalidate(force bool) { s.store.Revalidate(force) }

// lifecycle owns the store registration shared by every copy of the Model.
type lifecycle struct {
	mu     sync.Mutex
	stop   func()
	closed bool
}

func (l *lifecycle) start(register func() func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.stop != nil {
		return
	}
	l.stop = register()
}

func (l *lifecycle) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	if opts.Store == nil {
		return errors.New("ui: store is required")
	}
	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(m.ctx),
	)

	unsubscribe := m.store.Subscribe(func(s syncstore.Snapshot[ledger.Lottery]) {
		p.Send(snapshotMsg(s))
	})
	defer unsubscribe()
	defer m.lifecycle.close()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
