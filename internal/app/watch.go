package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/five82/lotwatch/internal/ledger"
	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/syncstore"
)

const (
	headlessConsumer = "dump"
	dumpTimeout      = 30 * time.Second
)

// lotteryStore is the part of the store the headless consumers use.
type lotteryStore interface {
	Subscribe(fn func(syncstore.Snapshot[ledger.Lottery])) (unsubscribe func())
	Start(consumerKey string, pollEvery time.Duration) (stop func())
}

// watch registers a headless consumer and logs snapshot changes until ctx
// is cancelled.
func watch(ctx context.Context, store lotteryStore, every time.Duration, logger *slog.Logger) {
	var last uint64
	unsubscribe := store.Subscribe(func(s syncstore.Snapshot[ledger.Lottery]) {
		logSnapshot(logger, s, s.Revision != last)
		last = s.Revision
	})
	defer unsubscribe()

	stop := store.Start(headlessConsumer, every)
	defer stop()

	logger.Info("headless watch started", logfields.Consumer(headlessConsumer), logfields.Delay(every))
	<-ctx.Done()
	logger.Info("headless watch stopped", logfields.Consumer(headlessConsumer))
}

// logSnapshot writes one line per broadcast; entities are listed at debug
// level when the list itself changed.
func logSnapshot(logger *slog.Logger, s syncstore.Snapshot[ledger.Lottery], listChanged bool) {
	attrs := []any{
		logfields.Store(StoreName),
		logfields.Revision(s.Revision),
		logfields.Count(len(s.Entities)),
		slog.Bool("loading", s.IsLoading),
	}
	if s.Note != "" {
		attrs = append(attrs, slog.String("note", s.Note))
	}
	if s.ConsecutiveFailures > 0 {
		attrs = append(attrs, slog.Int("failures", s.ConsecutiveFailures))
	}
	if !s.LastUpdated.IsZero() {
		attrs = append(attrs, slog.Time("updated", s.LastUpdated))
	}

	switch {
	case s.IsOffline():
		logger.Warn("indexer offline", attrs...)
	default:
		logger.Info("snapshot", attrs...)
	}

	if !listChanged {
		return
	}
	for _, l := range s.Entities {
		logger.Debug("lottery",
			logfields.EntityID(l.ID),
			slog.String("status", string(l.Status)),
			slog.String("sold", l.TicketsSold),
			slog.String("pot", l.Pot))
	}
}

// dump registers a short-lived consumer, waits for the first settled
// fetch and encodes the entity list.
func dump(ctx context.Context, store lotteryStore, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, dumpTimeout)
	defer cancel()

	settled := make(chan syncstore.Snapshot[ledger.Lottery], 1)
	unsubscribe := store.Subscribe(func(s syncstore.Snapshot[ledger.Lottery]) {
		if s.IsLoading || (!s.HasData() && s.ConsecutiveFailures == 0) {
			return
		}
		select {
		case settled <- s:
		default:
		}
	})
	defer unsubscribe()

	stop := store.Start(headlessConsumer+".once", 0)
	defer stop()

	var snap syncstore.Snapshot[ledger.Lottery]
	select {
	case snap = <-settled:
	case <-ctx.Done():
		return fmt.Errorf("wait for indexer: %w", ctx.Err())
	}
	if !snap.HasData() {
		return fmt.Errorf("indexer unavailable: %s", snap.Note)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap.Entities)
}
