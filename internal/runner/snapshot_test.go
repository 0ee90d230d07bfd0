package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/store"
)

func TestSnapshotSavedAfterMutation(t *testing.T) {
	st := store.NewMemory()
	r, _ := newRunner(t, &fakeAPI{}, st)
	if err := r.Initialize("ts-1", questions("q1", "q2"), 60); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	_ = r.Select(3)
	_, _ = r.ToggleFlag()

	var snap Snapshot
	if err := store.GetJSON(context.Background(), st, config.CacheKey.RunSnapshotKey("ts-1"), &snap); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Answers[0].SelectedOptionIndex == nil || *snap.Answers[0].SelectedOptionIndex != 3 {
		t.Fatalf("selection not persisted: %+v", snap.Answers[0])
	}
	if len(snap.Flagged) != 1 || snap.Flagged[0] != "q1" {
		t.Fatalf("flag not persisted: %v", snap.Flagged)
	}
	if id, err := ActiveRun(context.Background(), st); err != nil || id != "ts-1" {
		t.Fatalf("expected active run ts-1, got %q %v", id, err)
	}
}

func TestSnapshotDeletedOnCompletion(t *testing.T) {
	st := store.NewMemory()
	r, _ := newRunner(t, &fakeAPI{}, st)
	_ = r.Initialize("ts-1", questions("q1"), 0)
	_ = r.Select(0)

	if _, err := r.End(context.Background(), EndAsk); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := st.Get(context.Background(), config.CacheKey.RunSnapshotKey("ts-1")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected snapshot gone, got %v", err)
	}
	if _, err := ActiveRun(context.Background(), st); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected active marker gone, got %v", err)
	}
}

func TestRehydrateServerIsAuthoritative(t *testing.T) {
	st := store.NewMemory()
	qs := questions("q1", "q2", "q3")

	first, _ := newRunner(t, &fakeAPI{}, st)
	_ = first.Initialize("ts-1", qs, 120)
	_ = first.Select(1)
	first.Next()
	_ = first.Select(2)
	_, _ = first.ToggleFlag()
	first.Close()

	api := &fakeAPI{
		getFn: func(_ context.Context, id string) (*model.TestSession, error) {
			return &model.TestSession{
				ID:        id,
				Status:    model.TestStatusInProgress,
				Questions: qs,
				Duration:  120,
				Answers:   []model.SubmittedAnswer{{QuestionID: "q1", SelectedAnswer: 1, TimeTaken: 4}},
			}, nil
		},
	}
	r, _ := newRunner(t, api, st)
	if err := r.Rehydrate(context.Background(), "ts-1"); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	v := r.View()
	if v.State != StateRunning || v.Current != 1 {
		t.Fatalf("unexpected view %+v", v)
	}
	if !v.Items[0].IsSubmitted || v.Items[1].IsSubmitted {
		t.Fatalf("submitted set must come from the server: %+v", v.Items)
	}
	if v.Items[1].IsUnanswered || !v.Items[1].IsFlaggedByUser {
		t.Fatalf("local selection and flag must survive: %+v", v.Items[1])
	}
	if !v.Items[2].IsUnanswered {
		t.Fatalf("q3 must stay unanswered")
	}
}

func TestRehydrateFailures(t *testing.T) {
	qs := questions("q1", "q2")
	tests := []struct {
		name   string
		seed   bool
		server *model.TestSession
		want   error
	}{
		{name: "no snapshot", seed: false, want: ErrSnapshotMissing},
		{
			name:   "session closed",
			seed:   true,
			server: &model.TestSession{ID: "ts-1", Status: model.TestStatusSucceeded, Questions: qs},
			want:   ErrSessionClosed,
		},
		{
			name:   "question set changed",
			seed:   true,
			server: &model.TestSession{ID: "ts-1", Status: model.TestStatusInProgress, Questions: questions("q1", "q9")},
			want:   ErrSnapshotDiverged,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemory()
			if tc.seed {
				seed, _ := newRunner(t, &fakeAPI{}, st)
				_ = seed.Initialize("ts-1", qs, 0)
				seed.Close()
			}
			api := &fakeAPI{
				getFn: func(context.Context, string) (*model.TestSession, error) { return tc.server, nil },
			}
			r, _ := newRunner(t, api, st)

			err := r.Rehydrate(context.Background(), "ts-1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if r.State() != StateError {
				t.Fatalf("expected error state, got %s", r.State())
			}
			if tc.seed {
				if _, err := st.Get(context.Background(), config.CacheKey.RunSnapshotKey("ts-1")); !errors.Is(err, store.ErrNotFound) {
					t.Fatalf("expected stale snapshot discarded, got %v", err)
				}
			}
		})
	}
}

func TestSaveDropsOutOfOrderWrites(t *testing.T) {
	st := store.NewMemory()
	r, _ := newRunner(t, &fakeAPI{}, st)
	_ = r.Initialize("ts-1", questions("q1", "q2"), 0)

	r.persistMu.Lock()
	r.savedSeq = r.seq + 5
	r.persistMu.Unlock()

	_ = r.Select(2)

	var snap Snapshot
	_ = store.GetJSON(context.Background(), st, config.CacheKey.RunSnapshotKey("ts-1"), &snap)
	if snap.Answers[0].SelectedOptionIndex != nil {
		t.Fatalf("stale write must be dropped")
	}
}
