package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/session"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// Authenticator is the login state the auth endpoints drive.
type Authenticator interface {
	State() session.State
	User() *model.User
	Restore(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Logout(ctx context.Context)
}

// RunCloser stops every open run.
type RunCloser interface {
	CloseAll()
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	auth Authenticator
	runs RunCloser
	log  zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator, runs RunCloser, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth: auth,
		runs: runs,
		log:  log.With().Str("component", "auth_handler").Logger(),
	}
}

// Me godoc
// GET /api/v1/auth/me
// Returns the logged-in user, revalidating a stored token on first use.
func (h *AuthHandler) Me(c *gin.Context) {
	if h.auth.State() == session.StateAuthenticated {
		response.Success(c, http.StatusOK, gin.H{"user": h.auth.User()})
		return
	}

	user, err := h.auth.Restore(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// Login godoc
// POST /api/v1/auth/login
// Exchanges credentials for a session. Server messages are returned as-is.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.BindSchema(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("Logged in")
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// Register godoc
// POST /api/v1/auth/register
// Creates a student account and logs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.BindSchema(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("Registered")
	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// Logout godoc
// POST /api/v1/auth/logout
// Stops open runs (their progress stays saved) and clears the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.runs != nil {
		h.runs.CloseAll()
	}
	h.auth.Logout(c.Request.Context())

	response.Success(c, http.StatusOK, gin.H{"redirect": response.LoginPath})
}
