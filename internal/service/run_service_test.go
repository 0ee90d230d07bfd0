package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/filter"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/runner"
	"github.com/stemsi/exstem-runner/internal/store"
)

// fakeServer is an in-memory quiz API holding sessions across service restarts.
type fakeServer struct {
	mu        sync.Mutex
	pool      []string
	sessions  map[string]*model.TestSession
	created   int
	cancelErr error
}

func newFakeServer(pool ...string) *fakeServer {
	return &fakeServer{pool: pool, sessions: make(map[string]*model.TestSession)}
}

func (f *fakeServer) Catalog(context.Context) (*model.Catalog, error) {
	return &model.Catalog{}, nil
}

func (f *fakeServer) QuestionIDs(_ context.Context, _ model.Criteria, limit int) (*model.QuestionPool, error) {
	ids := f.pool
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return &model.QuestionPool{QuestionIDs: ids, Total: len(f.pool)}, nil
}

func (f *fakeServer) CreateTestSession(_ context.Context, req model.CreateTestRequest) (*model.CreateTestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created++
	id := fmt.Sprintf("ts-%d", f.created)
	qs := make([]model.Question, len(req.QuestionIDs))
	for i, qid := range req.QuestionIDs {
		qs[i] = model.Question{ID: qid, Prompt: "Question " + qid, Options: []model.Option{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	}
	f.sessions[id] = &model.TestSession{
		ID:          id,
		QuestionIDs: req.QuestionIDs,
		Questions:   qs,
		Duration:    req.Duration,
		Status:      model.TestStatusInProgress,
	}
	return &model.CreateTestResult{TestSessionID: id, Questions: qs}, nil
}

func (f *fakeServer) SubmitAnswer(_ context.Context, req model.SubmitAnswerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[req.TestSessionID]
	if !ok {
		return errors.New("unknown session")
	}
	s.Answers = append(s.Answers, model.SubmittedAnswer{
		QuestionID:     req.QuestionID,
		SelectedAnswer: req.SelectedAnswer,
		TimeTaken:      req.TimeTaken,
	})
	return nil
}

func (f *fakeServer) FinalizeTest(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].Status = model.TestStatusSucceeded
	return nil
}

func (f *fakeServer) GetTestSession(_ context.Context, id string) (*model.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("unknown session")
	}
	cp := *s
	cp.Answers = append([]model.SubmittedAnswer(nil), s.Answers...)
	return &cp, nil
}

func (f *fakeServer) CancelTestSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.sessions[id].Status = model.TestStatusCanceled
	return nil
}

func (f *fakeServer) status(id string) model.TestStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id].Status
}

func newService(srv *fakeServer, st store.Store) *RunService {
	log := zerolog.Nop()
	return NewRunService(context.Background(), srv, filter.NewSelector(srv, log), NewHub(log), RunOptions{Store: st}, log)
}

var science = model.Criteria{Category: "Science"}

func TestRunServiceStartPublishesToHub(t *testing.T) {
	srv := newFakeServer("q1", "q2", "q3")
	svc := newService(srv, store.NewMemory())
	t.Cleanup(svc.CloseAll)

	r, err := svc.Start(context.Background(), science, 2, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got, _ := svc.Get(r.TestSessionID()); got != r {
		t.Fatalf("expected run to be registered")
	}
	if v := r.View(); v.Total != 2 || v.State != runner.StateRunning {
		t.Fatalf("unexpected view %+v", v)
	}

	sub, unsubscribe := svc.hub.Subscribe(r.TestSessionID())
	defer unsubscribe()

	if err := r.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	select {
	case e := <-sub.C:
		if e.Type != runner.EventAnswered {
			t.Fatalf("expected answered event, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}
}

func TestRunServiceResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer("q1", "q2", "q3")
	st := store.NewMemory()

	first := newService(srv, st)
	r, err := first.Start(ctx, science, 3, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := r.TestSessionID()
	if err := r.Select(2); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := r.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	first.CloseAll()

	second := newService(srv, st)
	t.Cleanup(second.CloseAll)

	active, err := second.Active(ctx)
	if err != nil || active != id {
		t.Fatalf("expected active run %s, got %q %v", id, active, err)
	}
	resumed, err := second.Resume(ctx, id)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := resumed.Submitted(); len(got) != 1 || got[0] != "q1" {
		t.Fatalf("expected q1 submitted, got %v", got)
	}
	again, _ := second.Resume(ctx, id)
	if again != resumed {
		t.Fatalf("resume of an open run must return it")
	}
}

func TestRunServiceResumeWithoutSnapshot(t *testing.T) {
	svc := newService(newFakeServer("q1"), store.NewMemory())

	if _, err := svc.Resume(context.Background(), "ts-404"); !errors.Is(err, runner.ErrSnapshotMissing) {
		t.Fatalf("expected ErrSnapshotMissing, got %v", err)
	}
	if svc.Len() != 0 {
		t.Fatalf("failed resume must not register a run")
	}
}

func TestRunServiceCancel(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer("q1", "q2")
	st := store.NewMemory()
	svc := newService(srv, st)

	r, _ := svc.Start(ctx, science, 2, 0)
	id := r.TestSessionID()

	srv.cancelErr = errors.New("server down")
	if err := svc.Cancel(ctx, id); err == nil {
		t.Fatalf("expected cancel error")
	}
	if _, err := svc.Get(id); err != nil {
		t.Fatalf("failed cancel must keep the run, got %v", err)
	}

	srv.cancelErr = nil
	if err := svc.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if srv.status(id) != model.TestStatusCanceled {
		t.Fatalf("expected server session cancelled")
	}
	if _, err := svc.Get(id); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := svc.Active(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected active marker removed, got %v", err)
	}
}

func TestRunServiceReapsSettledRuns(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer("q1", "q2")
	svc := newService(srv, store.NewMemory())
	t.Cleanup(svc.CloseAll)

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	done, _ := svc.Start(ctx, science, 2, 0)
	open, _ := svc.Start(ctx, science, 1, 0)
	if _, err := done.End(ctx, runner.EndSubmitAsIs); err != nil {
		t.Fatalf("end: %v", err)
	}

	if n := svc.Reap(time.Minute); n != 0 {
		t.Fatalf("first sighting only marks the run, reaped %d", n)
	}
	now = now.Add(2 * time.Minute)
	if n := svc.Reap(time.Minute); n != 1 {
		t.Fatalf("expected 1 reaped, got %d", n)
	}
	if _, err := svc.Get(open.TestSessionID()); err != nil {
		t.Fatalf("running run must survive the reaper")
	}
	if _, err := svc.Get(done.TestSessionID()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("completed run should be gone")
	}
}

func TestHubDropsWhenSubscriberLags(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub, unsubscribe := hub.Subscribe("ts-1")

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish("ts-1", runner.Event{Type: runner.EventTick})
	}
	if got := len(sub.C); got != subscriberBuffer {
		t.Fatalf("expected a full buffer, got %d", got)
	}
	if sub.dropped.Load() != 5 {
		t.Fatalf("expected 5 dropped, got %d", sub.dropped.Load())
	}

	unsubscribe()
	unsubscribe()
	if hub.Subscribers("ts-1") != 0 {
		t.Fatalf("expected no subscribers")
	}
}
