package syncstore

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/five82/lotwatch/internal/metrics"
)

// BackoffProfile describes one exponential retry curve.
type BackoffProfile struct {
	Base    time.Duration
	Max     time.Duration
	MaxStep int
}

// Delay returns min(Max, Base*2^step).
func (p BackoffProfile) Delay(step int) time.Duration {
	if step < 0 {
		step = 0
	}
	d := p.Base
	for i := 0; i < step; i++ {
		if d >= p.Max {
			return p.Max
		}
		d *= 2
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Timing holds every interval the store uses.
type Timing struct {
	DefaultPoll     time.Duration // used when no consumer registered an interval
	ForegroundFloor time.Duration
	BackgroundFloor time.Duration
	ForcedGap       time.Duration // minimum spacing for revalidations after user actions
	AmbientGap      time.Duration // minimum spacing for focus/tick revalidations
	General         BackoffProfile
	RateLimited     BackoffProfile
	SeenKeysLimit   int
	PageLimit       int
}

// DefaultTiming returns the stock intervals.
func DefaultTiming() Timing {
	return Timing{
		DefaultPoll:     20 * time.Second,
		ForegroundFloor: 12 * time.Second,
		BackgroundFloor: 90 * time.Second,
		ForcedGap:       2500 * time.Millisecond,
		AmbientGap:      20 * time.Second,
		General:         BackoffProfile{Base: 5 * time.Second, Max: time.Minute, MaxStep: 3},
		RateLimited:     BackoffProfile{Base: 10 * time.Second, Max: 5 * time.Minute, MaxStep: 6},
		SeenKeysLimit:   500,
		PageLimit:       100,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.DefaultPoll <= 0 {
		t.DefaultPoll = d.DefaultPoll
	}
	if t.ForegroundFloor <= 0 {
		t.ForegroundFloor = d.ForegroundFloor
	}
	if t.BackgroundFloor <= 0 {
		t.BackgroundFloor = d.BackgroundFloor
	}
	if t.ForcedGap <= 0 {
		t.ForcedGap = d.ForcedGap
	}
	if t.AmbientGap <= 0 {
		t.AmbientGap = d.AmbientGap
	}
	if t.General.Base <= 0 || t.General.Max <= 0 {
		t.General = d.General
	}
	if t.RateLimited.Base <= 0 || t.RateLimited.Max <= 0 {
		t.RateLimited = d.RateLimited
	}
	if t.SeenKeysLimit <= 0 {
		t.SeenKeysLimit = d.SeenKeysLimit
	}
	if t.PageLimit <= 0 {
		t.PageLimit = d.PageLimit
	}
	return t
}

// Option configures a Store.
type Option func(*options)

type options struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder
	signals  SignalSource
	timing   Timing
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSignals sets the focus/visibility/revalidate/optimistic event source.
// It is attached when the first consumer starts and detached when the last stops.
func WithSignals(src SignalSource) Option {
	return func(o *options) { o.signals = src }
}

// WithTiming overrides intervals; zero fields keep their defaults.
func WithTiming(t Timing) Option {
	return func(o *options) { o.timing = t }
}
