// Package runner is the client-side state machine of one test attempt: the question
// set, per-question answers, flags, the countdown and the submission sequence. The
// server stays the only authority on correctness and score.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/store"
)

// State of a run.
type State string

const (
	StateLoading    State = "loading"
	StateRunning    State = "running"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// EndMode selects how End treats unanswered questions.
type EndMode int

const (
	// EndAsk refuses to finalize while questions are unanswered and returns a
	// *DecisionRequiredError instead.
	EndAsk EndMode = iota
	// EndSubmitAsIs finalizes leaving unanswered questions out of the batch.
	EndSubmitAsIs
	// EndFillUnanswered submits every unsubmitted question, unanswered ones as skipped.
	EndFillUnanswered
)

func (m EndMode) String() string {
	switch m {
	case EndSubmitAsIs:
		return "submit_as_is"
	case EndFillUnanswered:
		return "fill_unanswered"
	default:
		return "ask"
	}
}

// ParseEndMode is the inverse of EndMode.String. The empty string means ask.
func ParseEndMode(s string) (EndMode, error) {
	switch s {
	case "", "ask":
		return EndAsk, nil
	case "submit_as_is":
		return EndSubmitAsIs, nil
	case "fill_unanswered":
		return EndFillUnanswered, nil
	default:
		return EndAsk, fmt.Errorf("unknown end mode %q", s)
	}
}

// API is the subset of the API client the runner calls.
type API interface {
	SubmitAnswer(ctx context.Context, req model.SubmitAnswerRequest) error
	FinalizeTest(ctx context.Context, testSessionID string) error
	GetTestSession(ctx context.Context, testSessionID string) (*model.TestSession, error)
}

// Options configures a Runner. Zero values pick the defaults.
type Options struct {
	Store            store.Store
	SnapshotTTL      time.Duration
	TickInterval     time.Duration
	BatchConcurrency int
	Events           EventSink
	Log              zerolog.Logger
	Now              func() time.Time
}

// Runner owns one RunState. It is safe for concurrent use; network calls never hold
// the lock, so the countdown keeps ticking while a request is slow.
type Runner struct {
	api          API
	store        store.Store
	snapshotTTL  time.Duration
	tickInterval time.Duration
	concurrency  int
	events       EventSink
	log          zerolog.Logger
	now          func() time.Time

	mu        sync.Mutex
	state     State
	sessionID string
	questions []model.Question
	index     map[string]int
	answers   []model.AnswerRecord
	current   int
	flagged   map[string]bool
	submitted map[string]bool
	pending   map[string]context.CancelFunc
	duration  int
	remaining int
	paused    bool
	expired   bool
	closed    bool
	ending    bool
	endMode   EndMode
	startedAt time.Time
	result    *model.TestSession
	lastErr   error

	inflight sync.WaitGroup

	persistMu sync.Mutex
	seq       uint64
	savedSeq  uint64

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Runner in the loading state.
func New(api API, opts Options) *Runner {
	r := &Runner{
		api:          api,
		store:        opts.Store,
		snapshotTTL:  opts.SnapshotTTL,
		tickInterval: opts.TickInterval,
		concurrency:  opts.BatchConcurrency,
		events:       opts.Events,
		log:          opts.Log.With().Str("component", "runner").Logger(),
		now:          opts.Now,
		state:        StateLoading,
		flagged:      make(map[string]bool),
		submitted:    make(map[string]bool),
		pending:      make(map[string]context.CancelFunc),
		stop:         make(chan struct{}),
	}
	if r.store == nil {
		r.store = store.NewMemory()
	}
	if r.tickInterval <= 0 {
		r.tickInterval = time.Second
	}
	if r.concurrency <= 0 {
		r.concurrency = 8
	}
	if r.events == nil {
		r.events = discardSink{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Initialize moves loading → running for a freshly created session. duration is in
// seconds; zero disables the countdown.
func (r *Runner) Initialize(testSessionID string, questions []model.Question, duration int) error {
	r.mu.Lock()
	if r.state != StateLoading {
		r.mu.Unlock()
		return fmt.Errorf("initialize: %w", ErrNotRunning)
	}
	if testSessionID == "" {
		r.failLocked(fmt.Errorf("initialize: %w", ErrMissingSession))
		err := r.lastErr
		r.mu.Unlock()
		r.emit(r.event(EventError))
		return err
	}
	if err := validateQuestions(questions); err != nil {
		r.sessionID = testSessionID
		r.failLocked(err)
		r.mu.Unlock()
		r.emit(r.event(EventError))
		return err
	}

	r.sessionID = testSessionID
	r.questions = make([]model.Question, len(questions))
	copy(r.questions, questions)
	r.index = make(map[string]int, len(questions))
	r.answers = make([]model.AnswerRecord, len(questions))
	for i, q := range r.questions {
		r.index[q.ID] = i
		r.answers[i] = model.AnswerRecord{QuestionID: q.ID}
	}
	if duration < 0 {
		duration = 0
	}
	r.duration = duration
	r.remaining = duration
	r.current = 0
	r.startedAt = r.now()
	r.state = StateRunning
	r.mu.Unlock()

	r.log.Info().
		Str("test_session_id", testSessionID).
		Int("questions", len(questions)).
		Int("duration", duration).
		Msg("Run initialized")

	r.save()
	r.emit(r.event(EventState))
	return nil
}

// validateQuestions enforces one non-empty, unique id per question.
func validateQuestions(questions []model.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrMalformedTestData)
	}
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", ErrMalformedTestData, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %s", ErrMalformedTestData, q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}

// Select records the chosen option for the current question. Local only.
func (r *Runner) Select(option int) error {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return ErrNotRunning
	}
	q := r.questions[r.current]
	if r.submitted[q.ID] {
		r.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if option < 0 || (len(q.Options) > 0 && option >= len(q.Options)) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}
	sel := option
	r.answers[r.current].SelectedOptionIndex = &sel
	ev := r.eventLocked(EventAnswered)
	r.mu.Unlock()

	r.save()
	r.emit(ev)
	return nil
}

// Next moves to the following question. Returns false at the last question.
func (r *Runner) Next() bool {
	return r.move(func(cur, _ int) int { return cur + 1 })
}

// Prev moves to the preceding question. Returns false at the first question.
func (r *Runner) Prev() bool {
	return r.move(func(cur, _ int) int { return cur - 1 })
}

// GoTo jumps to question i (zero-based). Out-of-range jumps are no-ops.
func (r *Runner) GoTo(i int) bool {
	return r.move(func(_, _ int) int { return i })
}

func (r *Runner) move(target func(cur, n int) int) bool {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return false
	}
	to := target(r.current, len(r.questions))
	if to < 0 || to >= len(r.questions) || to == r.current {
		r.mu.Unlock()
		return false
	}
	r.current = to
	r.startedAt = r.now()
	ev := r.eventLocked(EventNavigated)
	r.mu.Unlock()

	r.save()
	r.emit(ev)
	return true
}

// ToggleFlag bookmarks or un-bookmarks the current question and returns the new flag.
// Flags are never sent to the server and have nothing to do with skipping.
func (r *Runner) ToggleFlag() (bool, error) {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return false, ErrNotRunning
	}
	id := r.questions[r.current].ID
	if r.flagged[id] {
		delete(r.flagged, id)
	} else {
		r.flagged[id] = true
	}
	on := r.flagged[id]
	ev := r.eventLocked(EventFlagged)
	ev.Flagged = on
	r.mu.Unlock()

	r.save()
	r.emit(ev)
	return on, nil
}

// Pause stops the countdown. No network effect.
func (r *Runner) Pause() error {
	return r.setPaused(true)
}

// Resume restarts the countdown.
func (r *Runner) Resume() error {
	return r.setPaused(false)
}

func (r *Runner) setPaused(p bool) error {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return ErrNotRunning
	}
	changed := r.paused != p
	r.paused = p
	ev := r.eventLocked(EventState)
	r.mu.Unlock()

	if changed {
		r.save()
		r.emit(ev)
	}
	return nil
}

// Submit sends the current question's answer. Without a selection the skipped sentinel
// goes on the wire. On success the question joins the submitted set and the pointer
// advances to the next unsubmitted question; on failure nothing changes.
func (r *Runner) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return ErrNotRunning
	}
	if r.sessionID == "" || r.current < 0 || r.current >= len(r.questions) || r.questions[r.current].ID == "" {
		r.mu.Unlock()
		return ErrMissingSession
	}
	idx := r.current
	qid := r.questions[idx].ID
	if r.submitted[qid] {
		r.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if _, busy := r.pending[qid]; busy {
		r.mu.Unlock()
		return ErrSubmitPending
	}

	req := model.SubmitAnswerRequest{
		TestSessionID:  r.sessionID,
		QuestionID:     qid,
		SelectedAnswer: r.answers[idx].WireAnswer(),
		TimeTaken:      elapsedSeconds(r.startedAt, r.now()),
	}
	subCtx, cancel := context.WithCancel(ctx)
	r.pending[qid] = cancel
	r.inflight.Add(1)
	r.mu.Unlock()

	r.log.Debug().
		Str("question_id", qid).
		Int("selected", req.SelectedAnswer).
		Int("time_taken", req.TimeTaken).
		Msg("Submitting answer")

	err := r.api.SubmitAnswer(subCtx, req)
	cancel()

	r.mu.Lock()
	delete(r.pending, qid)
	r.inflight.Done()
	if err != nil {
		err = fmt.Errorf("submit %s: %w", qid, err)
		switch {
		case errors.Is(err, apiclient.ErrUnauthorized):
			r.failLocked(err)
		case r.state != StateRunning && errors.Is(err, context.Canceled):
			// cancelled by the timed end; the batch covers this question
			r.mu.Unlock()
			return err
		default:
			r.lastErr = err
		}
		ev := r.eventLocked(EventError)
		r.mu.Unlock()
		r.log.Warn().Err(err).Str("question_id", qid).Msg("Submit failed")
		r.emit(ev)
		return err
	}

	r.markSubmittedLocked(idx, req.SelectedAnswer, req.TimeTaken)
	r.lastErr = nil
	if r.state == StateRunning {
		if next, ok := r.nextUnsubmittedLocked(idx); ok {
			r.current = next
			r.startedAt = r.now()
		}
	}
	ev := r.eventLocked(EventSubmitted)
	ev.QuestionID = qid
	r.mu.Unlock()

	r.save()
	r.emit(ev)
	return nil
}

func (r *Runner) markSubmittedLocked(idx, selected, timeTaken int) {
	rec := &r.answers[idx]
	if rec.SelectedOptionIndex == nil {
		s := selected
		rec.SelectedOptionIndex = &s
	}
	rec.TimeTakenSeconds = timeTaken
	r.submitted[rec.QuestionID] = true
}

// nextUnsubmittedLocked searches forward from idx, wrapping once.
func (r *Runner) nextUnsubmittedLocked(idx int) (int, bool) {
	n := len(r.questions)
	for step := 1; step < n; step++ {
		i := (idx + step) % n
		id := r.questions[i].ID
		if r.submitted[id] {
			continue
		}
		if _, busy := r.pending[id]; busy {
			continue
		}
		return i, true
	}
	return idx, false
}

func (r *Runner) unansweredLocked() []string {
	var ids []string
	for _, a := range r.answers {
		if a.IsUnanswered() && !r.submitted[a.QuestionID] {
			ids = append(ids, a.QuestionID)
		}
	}
	return ids
}

// End finishes the run. In ask mode with unanswered questions it performs no network
// call and returns *DecisionRequiredError. Otherwise it submits the outstanding
// answers concurrently, aborts on any failure with *BatchError, then closes the
// session and fetches the scored result.
func (r *Runner) End(ctx context.Context, mode EndMode) (*model.TestSession, error) {
	r.mu.Lock()
	switch r.state {
	case StateRunning:
	case StateFinalizing:
		if r.ending {
			r.mu.Unlock()
			return nil, ErrEndInProgress
		}
	case StateCompleted:
		res := r.result
		r.mu.Unlock()
		return res, nil
	default:
		r.mu.Unlock()
		return nil, ErrNotRunning
	}

	if mode == EndAsk {
		if unanswered := r.unansweredLocked(); len(unanswered) > 0 {
			ev := r.eventLocked(EventDecisionRequired)
			ev.Unanswered = unanswered
			r.mu.Unlock()
			r.emit(ev)
			return nil, &DecisionRequiredError{Unanswered: unanswered}
		}
	}

	prev := r.state
	r.ending = true
	r.endMode = mode
	r.state = StateFinalizing
	var cancels []context.CancelFunc
	if r.expired {
		for _, c := range r.pending {
			cancels = append(cancels, c)
		}
	}
	ev := r.eventLocked(EventState)
	r.mu.Unlock()
	r.emit(ev)

	for _, c := range cancels {
		c()
	}
	// Outstanding single submits settle before the batch is computed so nothing is
	// sent twice.
	r.inflight.Wait()

	r.mu.Lock()
	if r.state == StateError {
		// a settled submit lost the session; error is absorbing
		err := r.lastErr
		r.mu.Unlock()
		return nil, err
	}
	tasks := r.batchTasksLocked(mode)
	closed := r.closed
	r.mu.Unlock()

	if !closed && len(tasks) > 0 {
		res := r.runBatch(ctx, tasks)

		r.mu.Lock()
		for _, id := range res.Succeeded {
			r.markSubmittedLocked(r.index[id], taskAnswer(tasks, id), 0)
		}
		if !res.AllSucceeded() {
			berr := &BatchError{Result: res}
			r.ending = false
			if r.duration > 0 && r.remaining <= 0 && !r.expired {
				// time ran out while the user-initiated end was in flight
				r.expired = true
				r.endMode = EndFillUnanswered
			}
			switch {
			case errors.Is(berr, apiclient.ErrUnauthorized):
				r.failLocked(berr)
			case r.state == StateError:
			case !r.expired && prev == StateRunning:
				r.state = StateRunning
				r.lastErr = berr
			default:
				r.lastErr = berr
			}
			ev := r.eventLocked(EventError)
			r.mu.Unlock()
			r.log.Warn().Err(berr).Msg("Finalization aborted")
			r.save()
			r.emit(ev)
			return nil, berr
		}
		r.mu.Unlock()
		r.save()
	}

	return r.finalize(ctx)
}

// Retry re-attempts a failed finalization with the mode chosen originally.
func (r *Runner) Retry(ctx context.Context) (*model.TestSession, error) {
	r.mu.Lock()
	st, mode := r.state, r.endMode
	r.mu.Unlock()
	if st != StateFinalizing {
		return nil, ErrNotRunning
	}
	return r.End(ctx, mode)
}

func (r *Runner) finalize(ctx context.Context) (*model.TestSession, error) {
	r.mu.Lock()
	id, closed := r.sessionID, r.closed
	r.mu.Unlock()

	if !closed {
		if err := r.api.FinalizeTest(ctx, id); err != nil {
			return nil, r.finalizeFailed(fmt.Errorf("finalize: %w", err))
		}
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.save()
	}

	sess, err := r.api.GetTestSession(ctx, id)
	if err != nil {
		return nil, r.finalizeFailed(fmt.Errorf("fetch result: %w", err))
	}

	r.mu.Lock()
	r.result = sess
	r.state = StateCompleted
	r.ending = false
	r.lastErr = nil
	ev := r.eventLocked(EventCompleted)
	r.mu.Unlock()

	r.halt()
	r.discardSnapshot()
	r.log.Info().Str("test_session_id", id).Msg("Run completed")
	r.emit(ev)
	return sess, nil
}

// finalizeFailed keeps the run in finalizing so Retry can pick it up.
func (r *Runner) finalizeFailed(err error) error {
	r.mu.Lock()
	r.ending = false
	if errors.Is(err, apiclient.ErrUnauthorized) {
		r.failLocked(err)
	} else {
		r.lastErr = err
	}
	ev := r.eventLocked(EventError)
	r.mu.Unlock()

	r.log.Error().Err(err).Msg("Finalization failed")
	r.save()
	r.emit(ev)
	return err
}

// Close stops the countdown and cancels in-flight submissions. The snapshot is kept
// so the run can be resumed.
func (r *Runner) Close() {
	r.mu.Lock()
	for _, c := range r.pending {
		c()
	}
	r.mu.Unlock()
	r.halt()
}

// Discard closes the run and deletes its snapshot.
func (r *Runner) Discard() {
	r.Close()
	r.discardSnapshot()
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TestSessionID returns the session the run belongs to.
func (r *Runner) TestSessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Err returns the last surfaced error, cleared by the next successful network transition.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Result returns the scored session once completed.
func (r *Runner) Result() *model.TestSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

func (r *Runner) failLocked(err error) {
	r.state = StateError
	r.lastErr = err
	r.ending = false
	r.halt()
}

func (r *Runner) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Runner) event(t EventType) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eventLocked(t)
}

func (r *Runner) eventLocked(t EventType) Event {
	ev := Event{
		Type:          t,
		TestSessionID: r.sessionID,
		State:         r.state,
		Current:       r.current,
		Remaining:     r.remaining,
		At:            r.now(),
	}
	if r.current >= 0 && r.current < len(r.questions) {
		ev.QuestionID = r.questions[r.current].ID
	}
	if r.lastErr != nil && (t == EventError || r.state == StateError) {
		ev.Message = apiclient.Message(r.lastErr)
	}
	return ev
}

func (r *Runner) emit(ev Event) {
	r.events.Publish(ev)
}

func elapsedSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
