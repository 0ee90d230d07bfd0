// Package filter turns the user's picker selections into a question pool and, on
// start, into a server-side test session ready for the runner.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

const (
	MinCount = 1
	MaxCount = 200
)

var (
	ErrNoQuestions     = errors.New("no questions match the selected filters")
	ErrInvalidCriteria = errors.New("invalid filter selection")
	ErrInvalidCount    = fmt.Errorf("question count must be between %d and %d", MinCount, MaxCount)
)

// API is the subset of the API client the selector needs.
type API interface {
	Catalog(ctx context.Context) (*model.Catalog, error)
	QuestionIDs(ctx context.Context, cr model.Criteria, limit int) (*model.QuestionPool, error)
	CreateTestSession(ctx context.Context, req model.CreateTestRequest) (*model.CreateTestResult, error)
}

// Selector handles catalog lookup, pool preview and test creation.
type Selector struct {
	api API
	log zerolog.Logger
}

// NewSelector creates a new Selector.
func NewSelector(api API, log zerolog.Logger) *Selector {
	return &Selector{
		api: api,
		log: log.With().Str("component", "filter_selector").Logger(),
	}
}

// Catalog returns the category → subject → topic tree for the pickers.
func (s *Selector) Catalog(ctx context.Context) (*model.Catalog, error) {
	return s.api.Catalog(ctx)
}

// Preview reports how many questions the criteria currently match.
func (s *Selector) Preview(ctx context.Context, cr model.Criteria) (*model.QuestionPool, error) {
	cr = Normalize(cr)
	if err := Validate(cr); err != nil {
		return nil, err
	}
	return s.api.QuestionIDs(ctx, cr, MaxCount)
}

// Start resolves the pool and creates a test session of up to count questions.
// duration is in seconds; zero starts an untimed run.
func (s *Selector) Start(ctx context.Context, cr model.Criteria, count, duration int) (*model.CreateTestResult, error) {
	cr = Normalize(cr)
	if err := Validate(cr); err != nil {
		return nil, err
	}
	if count < MinCount || count > MaxCount {
		return nil, ErrInvalidCount
	}
	if duration < 0 {
		duration = 0
	}

	pool, err := s.api.QuestionIDs(ctx, cr, count)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	if pool == nil || len(pool.QuestionIDs) == 0 {
		return nil, ErrNoQuestions
	}
	ids := pool.QuestionIDs
	if len(ids) > count {
		ids = ids[:count]
	}
	if len(ids) < count {
		s.log.Info().
			Int("requested", count).
			Int("available", len(ids)).
			Msg("Pool smaller than requested count, starting with what is available")
	}

	res, err := s.api.CreateTestSession(ctx, model.CreateTestRequest{
		Criteria:    cr,
		Count:       len(ids),
		QuestionIDs: ids,
		Duration:    duration,
	})
	if err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().
		Str("test_session_id", res.TestSessionID).
		Int("questions", len(res.Questions)).
		Msg("Test session created")
	return res, nil
}

// Normalize trims the selections and maps an empty status to "all".
func Normalize(cr model.Criteria) model.Criteria {
	cr.Category = strings.TrimSpace(cr.Category)
	cr.Subject = strings.TrimSpace(cr.Subject)
	cr.Topic = strings.TrimSpace(cr.Topic)
	cr.Difficulty = model.Difficulty(strings.ToLower(strings.TrimSpace(string(cr.Difficulty))))
	cr.Status = model.QuestionStatus(strings.ToLower(strings.TrimSpace(string(cr.Status))))
	if cr.Status == "" {
		cr.Status = model.QuestionStatusAll
	}
	return cr
}

// Validate checks the enumerated fields and that narrower pickers are only set
// together with their parent.
func Validate(cr model.Criteria) error {
	if err := validator.Struct(&cr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
	}
	if cr.Subject != "" && cr.Category == "" {
		return fmt.Errorf("%w: subject requires a category", ErrInvalidCriteria)
	}
	if cr.Topic != "" && cr.Subject == "" {
		return fmt.Errorf("%w: topic requires a subject", ErrInvalidCriteria)
	}
	return nil
}

// ValidateAgainst checks the selection against a catalog so dependent pickers
// cannot name a subject outside its category or a topic outside its subject.
func ValidateAgainst(cat *model.Catalog, cr model.Criteria) error {
	if cat == nil || cr.Category == "" {
		return nil
	}
	for _, c := range cat.Categories {
		if !strings.EqualFold(c.Name, cr.Category) {
			continue
		}
		if cr.Subject == "" {
			return nil
		}
		for _, sub := range c.Subjects {
			if !strings.EqualFold(sub.Name, cr.Subject) {
				continue
			}
			if cr.Topic == "" {
				return nil
			}
			for _, t := range sub.Topics {
				if strings.EqualFold(t, cr.Topic) {
					return nil
				}
			}
			return fmt.Errorf("%w: unknown topic %q", ErrInvalidCriteria, cr.Topic)
		}
		return fmt.Errorf("%w: unknown subject %q", ErrInvalidCriteria, cr.Subject)
	}
	return fmt.Errorf("%w: unknown category %q", ErrInvalidCriteria, cr.Category)
}
