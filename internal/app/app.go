package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/five82/lotwatch/internal/config"
	"github.com/five82/lotwatch/internal/ledger"
	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/metrics"
	"github.com/five82/lotwatch/internal/prefs"
	"github.com/five82/lotwatch/internal/signal"
	"github.com/five82/lotwatch/internal/syncstore"
	"github.com/five82/lotwatch/internal/ui"
)

// StoreName labels the lottery store in logs and metrics.
const StoreName = "lotteries"

// Options configure a lotwatch run.
type Options struct {
	ConfigPath string
	PrefsPath  string        // empty uses default ~/.config/lotwatch/prefs.toml
	PollEvery  time.Duration // zero uses prefs (TUI) or config (headless)
	Logger     *slog.Logger
}

// runtime is the wired object graph shared by every entry point.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *syncstore.Store[ledger.Lottery]
	bus     *signal.Bus
	metrics *metricsServer
	closers []func()
}

// build loads config and wires the store, signal bus, optional NATS bridge
// and optional metrics listener. The caller must close the runtime.
func build(ctx context.Context, opts Options) (*runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client, err := ledger.NewClient(cfg.IndexerURL)
	if err != nil {
		return nil, fmt.Errorf("init indexer client: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, bus: signal.NewBus()}
	rt.onClose(rt.bus.Close)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Listen != "" {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		srv, err := serveMetrics(ctx, cfg.Metrics.Listen, reg, logger)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.metrics = srv
		rt.onClose(srv.close)
	}

	if cfg.NATS.URL != "" {
		conn, err := signal.Connect(cfg.NATS.URL, logger)
		if err != nil {
			rt.close()
			return nil, err
		}
		bridge := signal.NewBridge(rt.bus, cfg.NATS.SubjectPrefix, logger)
		if err := bridge.Subscribe(conn); err != nil {
			conn.Close()
			rt.close()
			return nil, err
		}
		rt.onClose(func() {
			if err := bridge.Close(); err != nil {
				logger.Warn("nats bridge close", logfields.Error(err))
			}
			conn.Close()
		})
	}

	store, err := syncstore.New(StoreName, client, ledger.Schema(),
		syncstore.WithLogger(logger),
		syncstore.WithRecorder(recorder),
		syncstore.WithSignals(rt.bus),
		syncstore.WithTiming(cfg.Timing()),
	)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	rt.store = store

	logger.Info("lotwatch configured",
		logfields.Store(StoreName),
		slog.String("config", cfg.Path),
		slog.String("indexer", cfg.IndexerURL),
		slog.Bool("nats", cfg.NATS.URL != ""),
		slog.String("metrics", cfg.Metrics.Listen))
	return rt, nil
}

func (rt *runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// Run boots the lotwatch TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	rt, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		rt.logger.Warn("load preferences", logfields.Error(err))
	}

	return ui.Run(ui.Options{
		Context:   ctx,
		Store:     rt.store,
		Signals:   rt.bus,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		PollEvery: opts.PollEvery,
		Logger:    rt.logger,
	})
}

// RunHeadless keeps the store polling without a terminal and logs every
// snapshot change until the context is cancelled.
func RunHeadless(ctx context.Context, opts Options) error {
	rt, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	every := opts.PollEvery
	if every <= 0 {
		every = rt.cfg.PollInterval
	}
	watch(ctx, rt.store, every, rt.logger)
	return nil
}

// DumpOnce performs one forced fetch and writes the resulting list as JSON.
func DumpOnce(ctx context.Context, opts Options, w io.Writer) error {
	rt, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()
	return dump(ctx, rt.store, w)
}

// errNotConfigured is returned by Notify when no NATS URL is available.
var errNotConfigured = errors.New("nats url not configured (set [nats] url or " + config.EnvNATSURL + ")")

// Notify connects to NATS and hands a publisher to send.
func Notify(ctx context.Context, opts Options, send func(*signal.Publisher) error) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.NATS.URL == "" {
		return errNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, closeConn, err := connectNATS(cfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	defer closeConn()

	return send(signal.NewPublisher(conn, cfg.NATS.SubjectPrefix))
}

// connectNATS is replaced in tests.
var connectNATS = func(url string, logger *slog.Logger) (signal.Conn, func(), error) {
	conn, err := signal.Connect(url, logger)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Close, nil
}
