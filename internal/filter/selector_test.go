package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

type mockAPI struct {
	catalogFn     func(ctx context.Context) (*model.Catalog, error)
	questionIDsFn func(ctx context.Context, cr model.Criteria, limit int) (*model.QuestionPool, error)
	createFn      func(ctx context.Context, req model.CreateTestRequest) (*model.CreateTestResult, error)
}

func (m *mockAPI) Catalog(ctx context.Context) (*model.Catalog, error) {
	if m.catalogFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.catalogFn(ctx)
}

func (m *mockAPI) QuestionIDs(ctx context.Context, cr model.Criteria, limit int) (*model.QuestionPool, error) {
	if m.questionIDsFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.questionIDsFn(ctx, cr, limit)
}

func (m *mockAPI) CreateTestSession(ctx context.Context, req model.CreateTestRequest) (*model.CreateTestResult, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, req)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cr      model.Criteria
		wantErr bool
	}{
		{name: "empty", cr: model.Criteria{}, wantErr: false},
		{name: "full", cr: model.Criteria{Category: "Science", Subject: "Physics", Topic: "Optics", Difficulty: "hard", Status: "incorrect"}, wantErr: false},
		{name: "bad difficulty", cr: model.Criteria{Difficulty: "extreme"}, wantErr: true},
		{name: "bad status", cr: model.Criteria{Status: "flagged"}, wantErr: true},
		{name: "subject without category", cr: model.Criteria{Subject: "Physics"}, wantErr: true},
		{name: "topic without subject", cr: model.Criteria{Category: "Science", Topic: "Optics"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(Normalize(tc.cr))
			if tc.wantErr && !errors.Is(err, ErrInvalidCriteria) {
				t.Fatalf("expected ErrInvalidCriteria, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateCarriesFieldErrors(t *testing.T) {
	err := Validate(model.Criteria{Difficulty: "extreme"})
	var se *validator.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError inside, got %v", err)
	}
	if _, ok := se.Fields["difficulty"]; !ok {
		t.Fatalf("expected difficulty field error, got %v", se.Fields)
	}
}

func TestValidateAgainstCatalog(t *testing.T) {
	cat := &model.Catalog{Categories: []model.CatalogCategory{{
		Name: "Science",
		Subjects: []model.CatalogSubject{
			{Name: "Physics", Topics: []string{"Optics", "Mechanics"}},
		},
	}}}

	if err := ValidateAgainst(cat, model.Criteria{Category: "science", Subject: "physics", Topic: "optics"}); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := ValidateAgainst(cat, model.Criteria{Category: "Science", Subject: "Chemistry"}); !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("expected unknown subject, got %v", err)
	}
	if err := ValidateAgainst(cat, model.Criteria{Category: "History"}); !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("expected unknown category, got %v", err)
	}
}

func TestStartCreatesSession(t *testing.T) {
	var got model.CreateTestRequest
	api := &mockAPI{
		questionIDsFn: func(_ context.Context, cr model.Criteria, limit int) (*model.QuestionPool, error) {
			if cr.Status != model.QuestionStatusAll {
				t.Fatalf("expected empty status normalized to all, got %q", cr.Status)
			}
			if limit != 5 {
				t.Fatalf("expected limit 5, got %d", limit)
			}
			return &model.QuestionPool{QuestionIDs: []string{"q1", "q2", "q3"}, Total: 3}, nil
		},
		createFn: func(_ context.Context, req model.CreateTestRequest) (*model.CreateTestResult, error) {
			got = req
			return &model.CreateTestResult{
				TestSessionID: "ts-9",
				Questions:     []model.Question{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}},
			}, nil
		},
	}
	s := NewSelector(api, zerolog.Nop())

	res, err := s.Start(context.Background(), model.Criteria{Category: " Science "}, 5, 600)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.TestSessionID != "ts-9" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.Count != 3 || len(got.QuestionIDs) != 3 || got.Duration != 600 || got.Criteria.Category != "Science" {
		t.Fatalf("unexpected create request %+v", got)
	}
}

func TestStartErrors(t *testing.T) {
	t.Run("count out of range", func(t *testing.T) {
		s := NewSelector(&mockAPI{}, zerolog.Nop())
		if _, err := s.Start(context.Background(), model.Criteria{}, 0, 0); !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("expected ErrInvalidCount, got %v", err)
		}
		if _, err := s.Start(context.Background(), model.Criteria{}, 201, 0); !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("expected ErrInvalidCount, got %v", err)
		}
	})

	t.Run("empty pool", func(t *testing.T) {
		api := &mockAPI{
			questionIDsFn: func(context.Context, model.Criteria, int) (*model.QuestionPool, error) {
				return &model.QuestionPool{QuestionIDs: []string{}}, nil
			},
		}
		s := NewSelector(api, zerolog.Nop())
		if _, err := s.Start(context.Background(), model.Criteria{}, 10, 0); !errors.Is(err, ErrNoQuestions) {
			t.Fatalf("expected ErrNoQuestions, got %v", err)
		}
	})

	t.Run("server message surfaces", func(t *testing.T) {
		api := &mockAPI{
			questionIDsFn: func(context.Context, model.Criteria, int) (*model.QuestionPool, error) {
				return &model.QuestionPool{QuestionIDs: []string{"q1"}}, nil
			},
			createFn: func(context.Context, model.CreateTestRequest) (*model.CreateTestResult, error) {
				return nil, &apiclient.APIError{Status: 402, Message: "Upgrade your plan to start more tests"}
			},
		}
		s := NewSelector(api, zerolog.Nop())
		_, err := s.Start(context.Background(), model.Criteria{}, 1, 0)
		if msg := apiclient.Message(err); msg != "Upgrade your plan to start more tests" {
			t.Fatalf("expected server message verbatim, got %q", msg)
		}
	})
}
