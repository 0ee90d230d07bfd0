package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingReaper struct {
	calls atomic.Int32
	grace atomic.Int64
}

func (r *countingReaper) Reap(grace time.Duration) int {
	r.calls.Add(1)
	r.grace.Store(int64(grace))
	return 1
}

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return 0
}

func TestRunReaperTicksUntilCancelled(t *testing.T) {
	runs := &countingReaper{}
	sweeper := &countingSweeper{}
	w := NewRunReaper(runs, sweeper, 5*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for runs.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	if runs.calls.Load() < 2 {
		t.Fatalf("expected at least 2 reaps, got %d", runs.calls.Load())
	}
	if sweeper.calls.Load() == 0 {
		t.Fatal("expected the store to be swept")
	}
	if time.Duration(runs.grace.Load()) != time.Minute {
		t.Fatalf("grace not passed through: %v", time.Duration(runs.grace.Load()))
	}
}

func TestRunReaperWithoutSweeper(t *testing.T) {
	runs := &countingReaper{}
	w := NewRunReaper(runs, nil, 0, 0, zerolog.Nop())
	if w.interval != time.Minute {
		t.Fatalf("expected default interval, got %v", w.interval)
	}
	w.sweep()
	if runs.calls.Load() != 1 {
		t.Fatalf("expected 1 reap, got %d", runs.calls.Load())
	}
}
