package results

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
)

// API is the subset of the API client the results views need.
type API interface {
	GetTestSession(ctx context.Context, testSessionID string) (*model.TestSession, error)
	ListTestSessions(ctx context.Context) ([]model.TestSession, error)
}

// Entry is one row of the history list.
type Entry struct {
	TestSessionID  string           `json:"testSessionId"`
	Status         model.TestStatus `json:"status"`
	Score          *float64         `json:"score,omitempty"`
	TotalQuestions int              `json:"totalQuestions"`
	Criteria       *model.Criteria  `json:"criteria,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// Service serves result detail and history.
type Service struct {
	api API
	log zerolog.Logger
}

// NewService creates a new results Service.
func NewService(api API, log zerolog.Logger) *Service {
	return &Service{
		api: api,
		log: log.With().Str("component", "results_service").Logger(),
	}
}

// Detail fetches a finalized session and summarizes it.
func (s *Service) Detail(ctx context.Context, testSessionID string, flagged []string) (*Summary, error) {
	sess, err := s.api.GetTestSession(ctx, testSessionID)
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", testSessionID, err)
	}
	sum := Summarize(sess, flagged)
	return &sum, nil
}

// History lists past sessions, newest first.
func (s *Service) History(ctx context.Context) ([]Entry, error) {
	sessions, err := s.api.ListTestSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	out := make([]Entry, 0, len(sessions))
	for _, t := range sessions {
		total := t.TotalQuestions
		if total == 0 {
			total = len(t.QuestionIDList())
		}
		out = append(out, Entry{
			TestSessionID:  t.ID,
			Status:         t.Status,
			Score:          t.Score,
			TotalQuestions: total,
			Criteria:       t.Criteria,
			CreatedAt:      t.CreatedAt,
			CompletedAt:    t.CompletedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	s.log.Debug().Int("count", len(out)).Msg("History loaded")
	return out, nil
}
