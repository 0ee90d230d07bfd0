package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/store"
)

const snapshotVersion = 1

// Snapshot is the serializable mirror of a RunState. It exists only so a reload can
// pick the run back up and is never trusted over the server's record.
type Snapshot struct {
	Version       int                  `json:"version"`
	TestSessionID string               `json:"testSessionId"`
	QuestionIDs   []string             `json:"questionIds"`
	Current       int                  `json:"current"`
	Answers       []model.AnswerRecord `json:"answers"`
	Flagged       []string             `json:"flagged"`
	Submitted     []string             `json:"submitted"`
	Duration      int                  `json:"duration"`
	Remaining     int                  `json:"remaining"`
	Paused        bool                 `json:"paused"`
	Closed        bool                 `json:"closed"`
	SavedAt       time.Time            `json:"savedAt"`
}

// Snapshot returns the current RunState as a Snapshot.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Runner) snapshotLocked() Snapshot {
	ids := make([]string, len(r.questions))
	for i, q := range r.questions {
		ids[i] = q.ID
	}
	answers := make([]model.AnswerRecord, len(r.answers))
	for i, a := range r.answers {
		answers[i] = a
		if a.SelectedOptionIndex != nil {
			v := *a.SelectedOptionIndex
			answers[i].SelectedOptionIndex = &v
		}
	}
	return Snapshot{
		Version:       snapshotVersion,
		TestSessionID: r.sessionID,
		QuestionIDs:   ids,
		Current:       r.current,
		Answers:       answers,
		Flagged:       setKeys(r.flagged),
		Submitted:     setKeys(r.submitted),
		Duration:      r.duration,
		Remaining:     r.remaining,
		Paused:        r.paused,
		Closed:        r.closed,
		SavedAt:       r.now(),
	}
}

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// save mirrors the state into the store. Writes are ordered: a snapshot built before
// another one that was already written is dropped.
func (r *Runner) save() {
	r.mu.Lock()
	if r.sessionID == "" || len(r.questions) == 0 || r.state == StateCompleted {
		r.mu.Unlock()
		return
	}
	snap := r.snapshotLocked()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if seq <= r.savedSeq {
		return
	}
	r.savedSeq = seq

	ctx := context.Background()
	key := config.CacheKey.RunSnapshotKey(snap.TestSessionID)
	if err := store.SetJSON(ctx, r.store, key, snap, r.snapshotTTL); err != nil {
		r.log.Warn().Err(err).Msg("Snapshot save failed")
		return
	}
	if err := r.store.Set(ctx, config.CacheKey.ActiveRunKey(), []byte(snap.TestSessionID), r.snapshotTTL); err != nil {
		r.log.Warn().Err(err).Msg("Active run marker save failed")
	}
}

func (r *Runner) discardSnapshot() {
	id := r.TestSessionID()
	if id == "" {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	// Later saves must not resurrect a discarded snapshot.
	r.savedSeq = ^uint64(0)

	ctx := context.Background()
	if err := r.store.Delete(ctx, config.CacheKey.RunSnapshotKey(id)); err != nil {
		r.log.Warn().Err(err).Msg("Snapshot delete failed")
	}
	if active, err := r.store.Get(ctx, config.CacheKey.ActiveRunKey()); err == nil && string(active) == id {
		_ = r.store.Delete(ctx, config.CacheKey.ActiveRunKey())
	}
}

// ActiveRun returns the id of the run last saved to st, if any.
func ActiveRun(ctx context.Context, st store.Store) (string, error) {
	v, err := st.Get(ctx, config.CacheKey.ActiveRunKey())
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Rehydrate rebuilds a loading Runner from its stored snapshot, checked against a
// fresh server fetch. The snapshot is discarded when it no longer matches; a missing
// snapshot is an error, never an empty run.
func (r *Runner) Rehydrate(ctx context.Context, testSessionID string) error {
	r.mu.Lock()
	if r.state != StateLoading {
		r.mu.Unlock()
		return fmt.Errorf("rehydrate: %w", ErrNotRunning)
	}
	r.sessionID = testSessionID
	r.mu.Unlock()

	err := r.rehydrate(ctx, testSessionID)
	if err != nil {
		r.mu.Lock()
		r.failLocked(err)
		ev := r.eventLocked(EventError)
		r.mu.Unlock()
		r.emit(ev)
		return err
	}
	r.save()
	r.emit(r.event(EventState))
	return nil
}

func (r *Runner) rehydrate(ctx context.Context, testSessionID string) error {
	if testSessionID == "" {
		return ErrMissingSession
	}

	var snap Snapshot
	key := config.CacheKey.RunSnapshotKey(testSessionID)
	if err := store.GetJSON(ctx, r.store, key, &snap); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSnapshotMissing
		}
		r.discardSnapshot()
		return fmt.Errorf("%w: %v", ErrSnapshotDiverged, err)
	}
	if snap.Version != snapshotVersion || snap.TestSessionID != testSessionID {
		r.discardSnapshot()
		return fmt.Errorf("%w: incompatible snapshot", ErrSnapshotDiverged)
	}

	server, err := r.api.GetTestSession(ctx, testSessionID)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}
	if server.Finalized() {
		r.discardSnapshot()
		return fmt.Errorf("%w (%s)", ErrSessionClosed, server.Status)
	}
	if !slices.Equal(server.QuestionIDList(), snap.QuestionIDs) {
		r.discardSnapshot()
		return fmt.Errorf("%w: question set changed", ErrSnapshotDiverged)
	}
	if len(server.Questions) != len(snap.QuestionIDs) {
		r.discardSnapshot()
		return fmt.Errorf("%w: server returned %d of %d questions", ErrSnapshotDiverged, len(server.Questions), len(snap.QuestionIDs))
	}
	byID := make(map[string]model.Question, len(server.Questions))
	for _, q := range server.Questions {
		byID[q.ID] = q
	}
	questions := make([]model.Question, len(snap.QuestionIDs))
	for i, id := range snap.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			r.discardSnapshot()
			return fmt.Errorf("%w: question %s missing", ErrSnapshotDiverged, id)
		}
		questions[i] = q
	}
	if err := validateQuestions(questions); err != nil {
		r.discardSnapshot()
		return err
	}
	if len(snap.Answers) != len(questions) {
		r.discardSnapshot()
		return fmt.Errorf("%w: answer records do not match questions", ErrSnapshotDiverged)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.questions = questions
	r.index = make(map[string]int, len(questions))
	r.answers = make([]model.AnswerRecord, len(questions))
	for i, q := range questions {
		r.index[q.ID] = i
		r.answers[i] = model.AnswerRecord{QuestionID: q.ID}
	}
	for _, a := range snap.Answers {
		i, ok := r.index[a.QuestionID]
		if !ok {
			return fmt.Errorf("%w: unknown answer record %s", ErrSnapshotDiverged, a.QuestionID)
		}
		r.answers[i] = a
	}

	// The server's accepted answers define the submitted set.
	r.submitted = make(map[string]bool, len(server.Answers))
	for _, sa := range server.Answers {
		i, ok := r.index[sa.QuestionID]
		if !ok {
			continue
		}
		sel := sa.SelectedAnswer
		r.answers[i].SelectedOptionIndex = &sel
		r.answers[i].TimeTakenSeconds = sa.TimeTaken
		r.submitted[sa.QuestionID] = true
	}
	for _, id := range snap.Submitted {
		if !r.submitted[id] {
			r.log.Warn().Str("question_id", id).Msg("Snapshot marks question submitted but server has no answer")
			if i, ok := r.index[id]; ok && r.answers[i].IsSkipped() {
				r.answers[i].SelectedOptionIndex = nil
			}
		}
	}

	r.flagged = make(map[string]bool, len(snap.Flagged))
	for _, id := range snap.Flagged {
		if _, ok := r.index[id]; ok {
			r.flagged[id] = true
		}
	}

	r.current = snap.Current
	if r.current < 0 || r.current >= len(questions) {
		r.current = 0
	}
	r.duration = server.Duration
	if r.duration <= 0 {
		r.duration = snap.Duration
	}
	r.remaining = snap.Remaining
	if r.remaining > r.duration {
		r.remaining = r.duration
	}
	if r.remaining < 0 {
		r.remaining = 0
	}
	r.paused = snap.Paused
	r.closed = snap.Closed
	r.startedAt = r.now()
	r.state = StateRunning

	r.log.Info().
		Str("test_session_id", testSessionID).
		Int("submitted", len(r.submitted)).
		Int("remaining", r.remaining).
		Msg("Run rehydrated")
	return nil
}
