// Package admin backs the user and question management screens. The server
// enforces authorization; the role check here only keeps non-admins from
// issuing calls the UI would not offer them.
package admin

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
)

var ErrNotAdmin = errors.New("administrator access required")

// API is the subset of the API client the admin screens call.
type API interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListQuestions(ctx context.Context, cr model.Criteria) ([]model.Question, error)
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	CreateQuestion(ctx context.Context, in model.QuestionInput) (*model.Question, error)
	UpdateQuestion(ctx context.Context, id string, in model.QuestionInput) (*model.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

// Viewer reports the signed-in user's role.
type Viewer interface {
	IsAdmin() bool
}

// Service handles admin list and CRUD calls.
type Service struct {
	api    API
	viewer Viewer
	log    zerolog.Logger
}

// NewService creates a new admin Service.
func NewService(api API, viewer Viewer, log zerolog.Logger) *Service {
	return &Service{
		api:    api,
		viewer: viewer,
		log:    log.With().Str("component", "admin_service").Logger(),
	}
}

func (s *Service) guard() error {
	if s.viewer == nil || !s.viewer.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

// ListUsers fetches all users, then searches, sorts and pages them locally.
func (s *Service) ListUsers(ctx context.Context, q Query) ([]model.User, *response.Pagination, error) {
	if err := s.guard(); err != nil {
		return nil, nil, err
	}
	users, err := s.api.ListUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	users = SearchUsers(users, q.Search)
	SortUsers(users, q.SortBy, q.Desc())
	page, pg := Paginate(users, q.Page, q.PerPage)
	return page, pg, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	u, err := s.api.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", id).Msg("User updated")
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("User deleted")
	return nil
}

// ListQuestions fetches the bank narrowed by cr, then searches, sorts and pages it.
func (s *Service) ListQuestions(ctx context.Context, cr model.Criteria, q Query) ([]model.Question, *response.Pagination, error) {
	if err := s.guard(); err != nil {
		return nil, nil, err
	}
	qs, err := s.api.ListQuestions(ctx, cr)
	if err != nil {
		return nil, nil, err
	}
	qs = SearchQuestions(qs, q.Search)
	SortQuestions(qs, q.SortBy, q.Desc())
	page, pg := Paginate(qs, q.Page, q.PerPage)
	return page, pg, nil
}

func (s *Service) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.api.GetQuestion(ctx, id)
}

func (s *Service) CreateQuestion(ctx context.Context, in model.QuestionInput) (*model.Question, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	q, err := s.api.CreateQuestion(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("question_id", q.ID).Msg("Question created")
	return q, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, id string, in model.QuestionInput) (*model.Question, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	q, err := s.api.UpdateQuestion(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("question_id", id).Msg("Question updated")
	return q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.api.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("question_id", id).Msg("Question deleted")
	return nil
}
