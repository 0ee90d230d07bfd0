package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// CreateTestSession starts a run server-side and returns its question set.
func (c *Client) CreateTestSession(ctx context.Context, req model.CreateTestRequest) (*model.CreateTestResult, error) {
	if err := validator.Struct(&req); err != nil {
		return nil, err
	}
	var out model.CreateTestResult
	if err := c.Do(ctx, http.MethodPost, "/tests", req, &out); err != nil {
		return nil, err
	}
	if err := validator.Struct(&out); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	for i := range out.Questions {
		out.Questions[i].Normalize()
	}
	return &out, nil
}

// SubmitAnswer records one answer. It is not idempotent server-side.
func (c *Client) SubmitAnswer(ctx context.Context, req model.SubmitAnswerRequest) error {
	return c.Do(ctx, http.MethodPost, "/tests/answers", req, nil)
}

// FinalizeTest closes the session so the server scores it.
func (c *Client) FinalizeTest(ctx context.Context, testSessionID string) error {
	body := map[string]string{"testSessionId": testSessionID}
	return c.Do(ctx, http.MethodPost, "/tests/"+url.PathEscape(testSessionID)+"/finalize", body, nil)
}

// CancelTestSession abandons an in-progress session.
func (c *Client) CancelTestSession(ctx context.Context, testSessionID string) error {
	return c.Do(ctx, http.MethodPost, "/tests/"+url.PathEscape(testSessionID)+"/cancel", nil, nil)
}

// GetTestSession fetches the server's record, scored once finalized.
func (c *Client) GetTestSession(ctx context.Context, testSessionID string) (*model.TestSession, error) {
	var out model.TestSession
	if err := c.Do(ctx, http.MethodGet, "/tests/"+url.PathEscape(testSessionID), nil, &out); err != nil {
		return nil, err
	}
	if err := validator.Struct(&out); err != nil {
		return nil, fmt.Errorf("get test %s: %w", testSessionID, err)
	}
	for i := range out.Questions {
		out.Questions[i].Normalize()
	}
	for i := range out.Review {
		if out.Review[i].Question != nil {
			out.Review[i].Question.Normalize()
		}
	}
	return &out, nil
}

// ListTestSessions returns the caller's past and current sessions.
func (c *Client) ListTestSessions(ctx context.Context) ([]model.TestSession, error) {
	var out struct {
		Tests []model.TestSession `json:"tests"`
	}
	if err := c.Do(ctx, http.MethodGet, "/tests", nil, &out); err != nil {
		return nil, err
	}
	if out.Tests == nil {
		return []model.TestSession{}, nil
	}
	if err := validator.Slice(out.Tests); err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return out.Tests, nil
}
