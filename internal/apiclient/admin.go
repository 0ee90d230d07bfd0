package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// ListUsers returns every user (admin only, enforced by the server).
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out struct {
		Users []model.User `json:"users"`
	}
	if err := c.Do(ctx, http.MethodGet, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	if out.Users == nil {
		return []model.User{}, nil
	}
	return out.Users, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if err := validator.Struct(&upd); err != nil {
		return nil, err
	}
	var out struct {
		User *model.User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), upd, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("update user %s: response has no user", id)
	}
	return out.User, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil)
}

// ListQuestions returns the bank, optionally narrowed by criteria.
func (c *Client) ListQuestions(ctx context.Context, cr model.Criteria) ([]model.Question, error) {
	path := "/admin/questions"
	if enc := CriteriaQuery(cr).Encode(); enc != "" {
		path += "?" + enc
	}
	var out struct {
		Questions []model.Question `json:"questions"`
	}
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Questions == nil {
		return []model.Question{}, nil
	}
	if err := validator.Slice(out.Questions); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for i := range out.Questions {
		out.Questions[i].Normalize()
	}
	return out.Questions, nil
}

func (c *Client) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	var out struct {
		Question *model.Question `json:"question"`
	}
	if err := c.Do(ctx, http.MethodGet, "/admin/questions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if out.Question == nil {
		return nil, fmt.Errorf("get question %s: response has no question", id)
	}
	out.Question.Normalize()
	return out.Question, nil
}

func (c *Client) CreateQuestion(ctx context.Context, in model.QuestionInput) (*model.Question, error) {
	return c.writeQuestion(ctx, http.MethodPost, "/admin/questions", in)
}

func (c *Client) UpdateQuestion(ctx context.Context, id string, in model.QuestionInput) (*model.Question, error) {
	return c.writeQuestion(ctx, http.MethodPut, "/admin/questions/"+url.PathEscape(id), in)
}

func (c *Client) writeQuestion(ctx context.Context, method, path string, in model.QuestionInput) (*model.Question, error) {
	if err := validator.Struct(&in); err != nil {
		return nil, err
	}
	if in.CorrectOption >= len(in.Options) {
		return nil, &validator.SchemaError{Fields: map[string]string{"correctOption": "correctOption must point at an option"}}
	}
	var out struct {
		Question *model.Question `json:"question"`
	}
	if err := c.Do(ctx, method, path, in, &out); err != nil {
		return nil, err
	}
	if out.Question == nil {
		return nil, fmt.Errorf("%s %s: response has no question", method, path)
	}
	out.Question.Normalize()
	return out.Question, nil
}

func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/admin/questions/"+url.PathEscape(id), nil, nil)
}
