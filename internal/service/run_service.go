package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/filter"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/runner"
	"github.com/stemsi/exstem-runner/internal/store"
)

// ErrRunNotFound is returned when no open run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// TestAPI is the subset of the API client the run service drives.
type TestAPI interface {
	runner.API
	CancelTestSession(ctx context.Context, testSessionID string) error
}

// RunOptions are passed to every runner the service creates.
type RunOptions struct {
	Store            store.Store
	SnapshotTTL      time.Duration
	BatchConcurrency int
	TickInterval     time.Duration
}

type runEntry struct {
	run *runner.Runner
	// settledAt is when the reaper first saw the run completed or errored.
	settledAt time.Time
}

// RunService owns the open runs of this process, keyed by test session id.
type RunService struct {
	api      TestAPI
	selector *filter.Selector
	hub      *Hub
	opts     RunOptions
	log      zerolog.Logger
	now      func() time.Time

	// baseCtx outlives requests; countdowns run under it.
	baseCtx context.Context

	mu   sync.Mutex
	runs map[string]*runEntry
}

// NewRunService creates a new RunService. Countdown loops stop when ctx is cancelled.
func NewRunService(ctx context.Context, api TestAPI, selector *filter.Selector, hub *Hub, opts RunOptions, log zerolog.Logger) *RunService {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	return &RunService{
		api:      api,
		selector: selector,
		hub:      hub,
		opts:     opts,
		log:      log.With().Str("component", "run_service").Logger(),
		now:      time.Now,
		baseCtx:  ctx,
		runs:     make(map[string]*runEntry),
	}
}

func (s *RunService) newRunner(testSessionID string) *runner.Runner {
	return runner.New(s.api, runner.Options{
		Store:            s.opts.Store,
		SnapshotTTL:      s.opts.SnapshotTTL,
		TickInterval:     s.opts.TickInterval,
		BatchConcurrency: s.opts.BatchConcurrency,
		Events:           s.hub.Sink(testSessionID),
		Log:              s.log,
	})
}

// Start creates a test session from the criteria and opens a run on it.
// duration is in seconds; the server's value wins when it returns one.
func (s *RunService) Start(ctx context.Context, cr model.Criteria, count, duration int) (*runner.Runner, error) {
	res, err := s.selector.Start(ctx, cr, count, duration)
	if err != nil {
		return nil, err
	}
	if res.Duration > 0 {
		duration = res.Duration
	}

	r := s.newRunner(res.TestSessionID)
	if err := r.Initialize(res.TestSessionID, res.Questions, duration); err != nil {
		return nil, fmt.Errorf("initialize run: %w", err)
	}
	r.Start(s.baseCtx)
	s.register(res.TestSessionID, r)

	s.log.Info().
		Str("test_session_id", res.TestSessionID).
		Int("questions", len(res.Questions)).
		Int("duration", duration).
		Msg("Run started")
	return r, nil
}

// Resume returns the open run for id, rebuilding it from its snapshot when this
// process does not hold it.
func (s *RunService) Resume(ctx context.Context, testSessionID string) (*runner.Runner, error) {
	if r, err := s.Get(testSessionID); err == nil && r.State() != runner.StateError {
		return r, nil
	}

	r := s.newRunner(testSessionID)
	if err := r.Rehydrate(ctx, testSessionID); err != nil {
		s.log.Warn().Err(err).Str("test_session_id", testSessionID).Msg("Resume failed")
		return nil, err
	}
	r.Start(s.baseCtx)
	s.register(testSessionID, r)

	s.log.Info().Str("test_session_id", testSessionID).Msg("Run resumed")
	return r, nil
}

// Active returns the id of the run last saved to storage.
func (s *RunService) Active(ctx context.Context) (string, error) {
	return runner.ActiveRun(ctx, s.opts.Store)
}

// Get returns the open run for id.
func (s *RunService) Get(testSessionID string) (*runner.Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[testSessionID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return e.run, nil
}

// Cancel abandons the run. A session the server may still hold open is cancelled
// there first; the local run is only dropped once that succeeds.
func (s *RunService) Cancel(ctx context.Context, testSessionID string) error {
	r, err := s.Get(testSessionID)
	if err != nil {
		return err
	}

	switch r.State() {
	case runner.StateRunning, runner.StateFinalizing:
		if err := s.api.CancelTestSession(ctx, testSessionID); err != nil {
			return fmt.Errorf("cancel test %s: %w", testSessionID, err)
		}
	}

	r.Discard()
	s.remove(testSessionID)
	s.log.Info().Str("test_session_id", testSessionID).Msg("Run cancelled")
	return nil
}

// Reap drops runs that completed or errored at least grace ago. Errored runs keep
// their snapshot so they can be resumed later.
func (s *RunService) Reap(grace time.Duration) int {
	now := s.now()

	s.mu.Lock()
	var stale []*runEntry
	for id, e := range s.runs {
		switch e.run.State() {
		case runner.StateCompleted, runner.StateError:
		default:
			continue
		}
		if e.settledAt.IsZero() {
			e.settledAt = now
			continue
		}
		if now.Sub(e.settledAt) >= grace {
			stale = append(stale, e)
			delete(s.runs, id)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.run.Close()
	}
	return len(stale)
}

// Len returns the number of open runs.
func (s *RunService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// CloseAll stops every run, keeping snapshots for the next start.
func (s *RunService) CloseAll() {
	s.mu.Lock()
	runs := make([]*runner.Runner, 0, len(s.runs))
	for id, e := range s.runs {
		runs = append(runs, e.run)
		delete(s.runs, id)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.Close()
	}
	s.log.Info().Int("runs", len(runs)).Msg("Runs closed")
}

func (s *RunService) register(testSessionID string, r *runner.Runner) {
	s.mu.Lock()
	old := s.runs[testSessionID]
	s.runs[testSessionID] = &runEntry{run: r}
	s.mu.Unlock()

	if old != nil && old.run != r {
		old.run.Close()
	}
}

func (s *RunService) remove(testSessionID string) {
	s.mu.Lock()
	delete(s.runs, testSessionID)
	s.mu.Unlock()
}
