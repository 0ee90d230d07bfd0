package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// Me validates the current token and returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("me: response has no user")
	}
	if err := validator.Struct(out.User); err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return out.User, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResult, error) {
	if err := validator.Struct(&req); err != nil {
		return nil, err
	}
	var out model.AuthResult
	if err := c.Do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	if err := validator.Struct(&out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Register creates a student account and returns its first token.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error) {
	if err := validator.Struct(&req); err != nil {
		return nil, err
	}
	var out model.AuthResult
	if err := c.Do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	if err := validator.Struct(&out); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &out, nil
}
