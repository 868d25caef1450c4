package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/metrics"
)

const metricsShutdownTimeout = 5 * time.Second

// metricsServer exposes /metrics on a pre-bound listener.
type metricsServer struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

func serveMetrics(ctx context.Context, addr string, reg *prom.Registry, logger *slog.Logger) (*metricsServer, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s := &metricsServer{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second, IdleTimeout: 60 * time.Second},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", logfields.Error(err))
		}
	}()
	logger.Info("metrics listening", slog.String("addr", ln.Addr().String()))
	return s, nil
}

// addr returns the bound address, useful when listening on port 0.
func (s *metricsServer) addr() string {
	return s.ln.Addr().String()
}

func (s *metricsServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", logfields.Error(err))
	}
}
