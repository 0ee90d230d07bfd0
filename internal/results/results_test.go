package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
)

type mockAPI struct {
	getFn  func(ctx context.Context, id string) (*model.TestSession, error)
	listFn func(ctx context.Context) ([]model.TestSession, error)
}

func (m *mockAPI) GetTestSession(ctx context.Context, id string) (*model.TestSession, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, id)
}

func (m *mockAPI) ListTestSessions(ctx context.Context) ([]model.TestSession, error) {
	if m.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listFn(ctx)
}

func scoredSession() *model.TestSession {
	score := 50.0
	return &model.TestSession{
		ID:             "ts-1",
		Status:         model.TestStatusSucceeded,
		Score:          &score,
		TotalQuestions: 4,
		Questions: []model.Question{
			{ID: "q1", Category: "Science", Subject: "Physics", Difficulty: model.DifficultyEasy},
			{ID: "q2", Category: "Science", Subject: "Chemistry", Difficulty: model.DifficultyHard},
			{ID: "q3", Category: "Math", Subject: "Algebra", Difficulty: model.DifficultyEasy},
			{ID: "q4", Category: "Math", Subject: "Algebra", Difficulty: model.DifficultyMedium},
		},
		Review: []model.ReviewItem{
			{QuestionID: "q1", SelectedAnswer: 1, CorrectAnswer: 1, IsCorrect: true, TimeTaken: 10},
			{QuestionID: "q2", SelectedAnswer: 0, CorrectAnswer: 2, IsCorrect: false, TimeTaken: 20},
			{QuestionID: "q3", SelectedAnswer: 3, CorrectAnswer: 3, IsCorrect: true, TimeTaken: 30},
			{QuestionID: "q4", SelectedAnswer: model.SkippedAnswer, CorrectAnswer: 1, IsCorrect: false, TimeTaken: 0},
		},
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize(scoredSession(), []string{"q2", "q4"})

	if sum.Correct != 2 || sum.Incorrect != 1 || sum.Skipped != 1 || sum.Total != 4 {
		t.Fatalf("unexpected totals %+v", sum)
	}
	if sum.Accuracy < 66.6 || sum.Accuracy > 66.7 {
		t.Fatalf("expected accuracy 66.67, got %f", sum.Accuracy)
	}
	if sum.AverageTime != 15 {
		t.Fatalf("expected average 15s, got %f", sum.AverageTime)
	}
	if len(sum.SkippedIDs) != 1 || sum.SkippedIDs[0] != "q4" {
		t.Fatalf("unexpected skipped %v", sum.SkippedIDs)
	}
	if len(sum.Flagged) != 2 || !sum.Items[1].Flagged || sum.Items[0].Flagged {
		t.Fatalf("flags not annotated: %v", sum.Flagged)
	}
	if !sum.Items[3].Skipped || !sum.Items[3].Flagged {
		t.Fatalf("q4 must be both flagged and skipped: %+v", sum.Items[3])
	}
}

func TestSummarizeBreakdowns(t *testing.T) {
	sum := Summarize(scoredSession(), nil)

	if len(sum.ByCategory) != 2 {
		t.Fatalf("expected 2 categories, got %+v", sum.ByCategory)
	}
	math := sum.ByCategory[0]
	if math.Key != "Math" || math.Total != 2 || math.Correct != 1 || math.Skipped != 1 || math.Accuracy != 100 {
		t.Fatalf("unexpected Math breakdown %+v", math)
	}
	science := sum.ByCategory[1]
	if science.Key != "Science" || science.Correct != 1 || science.Incorrect != 1 || science.Accuracy != 50 {
		t.Fatalf("unexpected Science breakdown %+v", science)
	}
	if len(sum.ByDifficulty) != 3 {
		t.Fatalf("expected 3 difficulties, got %+v", sum.ByDifficulty)
	}
}

func TestSummarizePrefersServerTotals(t *testing.T) {
	s := scoredSession()
	correct, incorrect := 3, 0
	s.CorrectAnswers = &correct
	s.IncorrectAnswers = &incorrect

	sum := Summarize(s, nil)
	if sum.Correct != 3 || sum.Incorrect != 0 || sum.Accuracy != 100 {
		t.Fatalf("expected server totals, got %+v", sum)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	api := &mockAPI{
		listFn: func(context.Context) ([]model.TestSession, error) {
			return []model.TestSession{
				{ID: "old", Status: model.TestStatusSucceeded, CreatedAt: base, QuestionIDs: []string{"a", "b"}},
				{ID: "new", Status: model.TestStatusCanceled, CreatedAt: base.Add(48 * time.Hour)},
				{ID: "mid", Status: model.TestStatusInProgress, CreatedAt: base.Add(time.Hour), TotalQuestions: 7},
			}, nil
		},
	}
	svc := NewService(api, zerolog.Nop())

	got, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if got[0].TestSessionID != "new" || got[1].TestSessionID != "mid" || got[2].TestSessionID != "old" {
		t.Fatalf("unexpected order %v %v %v", got[0].TestSessionID, got[1].TestSessionID, got[2].TestSessionID)
	}
	if got[2].TotalQuestions != 2 || got[1].TotalQuestions != 7 {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestDetailWrapsError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&mockAPI{getFn: func(context.Context, string) (*model.TestSession, error) { return nil, boom }}, zerolog.Nop())
	if _, err := svc.Detail(context.Background(), "ts-1", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
