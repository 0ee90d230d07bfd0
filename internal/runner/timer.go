package runner

import (
	"context"
	"time"
)

// Start launches the countdown loop when the run is timed. It returns immediately;
// the loop ends on ctx cancellation, completion, error or Close.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	timed := r.duration > 0
	due := timed && r.remaining <= 0 && r.state == StateRunning
	r.mu.Unlock()
	if !timed {
		return
	}
	go r.loop(ctx, due)
}

func (r *Runner) loop(ctx context.Context, dueNow bool) {
	if dueNow {
		r.expire(ctx)
		return
	}

	t := time.NewTicker(r.tickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-t.C:
			if r.Tick(ctx) {
				return
			}
		}
	}
}

// Tick advances the countdown by one second while running and not paused. When it
// reaches zero the run is ended without prompting; Tick then returns true.
func (r *Runner) Tick(ctx context.Context) bool {
	r.mu.Lock()
	if r.state != StateRunning || r.paused || r.duration <= 0 || r.expired {
		r.mu.Unlock()
		return false
	}
	if r.remaining > 0 {
		r.remaining--
	}
	ev := r.eventLocked(EventTick)
	due := r.remaining <= 0
	r.mu.Unlock()

	r.emit(ev)
	if !due {
		if ev.Remaining%15 == 0 {
			r.save()
		}
		return false
	}
	r.expire(ctx)
	return true
}

// expire ends the run on timeout: in-flight submits are cancelled and every
// unsubmitted question is sent, unanswered ones as skipped.
func (r *Runner) expire(ctx context.Context) {
	r.mu.Lock()
	if r.expired || r.state != StateRunning {
		r.mu.Unlock()
		return
	}
	r.expired = true
	id := r.sessionID
	r.mu.Unlock()

	r.log.Info().Str("test_session_id", id).Msg("Time is up, ending test")
	if _, err := r.End(ctx, EndFillUnanswered); err != nil {
		r.log.Error().Err(err).Str("test_session_id", id).Msg("Timed end failed")
	}
}

// Remaining returns the seconds left on the countdown (zero when untimed).
func (r *Runner) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
