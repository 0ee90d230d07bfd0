package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reaper drops settled runs from the registry.
type Reaper interface {
	Reap(grace time.Duration) int
}

// Sweeper prunes expired entries from a store that cannot expire them itself.
type Sweeper interface {
	Sweep() int
}

// RunReaper periodically closes runs that completed or errored, and sweeps
// expired snapshots out of the in-process store.
type RunReaper struct {
	runs     Reaper
	sweeper  Sweeper
	interval time.Duration
	grace    time.Duration
	log      zerolog.Logger
}

// NewRunReaper creates a new RunReaper. sweeper may be nil.
func NewRunReaper(runs Reaper, sweeper Sweeper, interval, grace time.Duration, log zerolog.Logger) *RunReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RunReaper{
		runs:     runs,
		sweeper:  sweeper,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "run_reaper").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *RunReaper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RunReaper) sweep() {
	if n := w.runs.Reap(w.grace); n > 0 {
		w.log.Info().Int("runs", n).Msg("Reaped settled runs")
	}
	if w.sweeper == nil {
		return
	}
	if n := w.sweeper.Sweep(); n > 0 {
		w.log.Debug().Int("entries", n).Msg("Swept expired snapshots")
	}
}
