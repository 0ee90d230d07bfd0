// Package session holds the authenticated user and token for the lifetime of the
// client, mirrored into the store so a restart can pick the session back up.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/store"
)

// State of the holder.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateValidating      State = "validating"
	StateAuthenticated   State = "authenticated"
)

// ErrNotAuthenticated is returned by operations that need a logged-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrTokenExpired is returned by Restore when the stored token is past its exp claim.
var ErrTokenExpired = errors.New("stored token expired")

// Navigator moves the user to the login entry point.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// API is the subset of the API client the holder needs.
type API interface {
	Me(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.AuthResult, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error)
}

// Persisted is what survives in the store.
type Persisted struct {
	Token string      `json:"token"`
	User  *model.User `json:"user,omitempty"`
}

// Holder tracks the current user and token.
type Holder struct {
	api   API
	store store.Store
	nav   Navigator
	log   zerolog.Logger
	now   func() time.Time

	mu    sync.RWMutex
	state State
	token string
	user  *model.User
}

// NewHolder creates a Holder in the unauthenticated state.
func NewHolder(api API, st store.Store, nav Navigator, log zerolog.Logger) *Holder {
	if nav == nil {
		nav = NavigatorFunc(func() {})
	}
	return &Holder{
		api:   api,
		store: st,
		nav:   nav,
		log:   log.With().Str("component", "session_holder").Logger(),
		now:   time.Now,
		state: StateUnauthenticated,
	}
}

// Token implements apiclient.TokenSource.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// User returns a copy of the cached profile, or nil.
func (h *Holder) User() *model.User {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return nil
	}
	u := *h.user
	return &u
}

func (h *Holder) IsAdmin() bool {
	return h.User().IsAdmin()
}

// Restore revalidates a persisted token. With no token it stays unauthenticated and
// returns ErrNotAuthenticated.
func (h *Holder) Restore(ctx context.Context) (*model.User, error) {
	var p Persisted
	err := store.GetJSON(ctx, h.store, config.CacheKey.AuthSessionKey(), &p)
	if errors.Is(err, store.ErrNotFound) || (err == nil && p.Token == "") {
		h.setState(StateUnauthenticated, "", nil)
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("Stored session unreadable, discarding")
		h.clear(ctx)
		return nil, ErrNotAuthenticated
	}

	h.setState(StateValidating, p.Token, p.User)

	if expired(p.Token, h.now()) {
		h.log.Info().Msg("Stored token expired")
		h.clear(ctx)
		return nil, ErrTokenExpired
	}

	user, err := h.api.Me(ctx)
	if err != nil {
		h.log.Info().Err(err).Msg("Token revalidation failed")
		h.clear(ctx)
		return nil, err
	}

	h.setState(StateAuthenticated, p.Token, user)
	if err := h.persist(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Persist session failed")
	}
	return user, nil
}

// Login posts credentials and, on success, persists the token and user.
func (h *Holder) Login(ctx context.Context, email, password string) (*model.User, error) {
	res, err := h.api.Login(ctx, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return h.adopt(ctx, res)
}

// Register creates an account and logs it in.
func (h *Holder) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	res, err := h.api.Register(ctx, model.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return h.adopt(ctx, res)
}

func (h *Holder) adopt(ctx context.Context, res *model.AuthResult) (*model.User, error) {
	user := res.User
	h.setState(StateAuthenticated, res.Token, &user)
	if err := h.persist(ctx); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	h.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("Logged in")
	out := user
	return &out, nil
}

// Logout clears every persisted field and navigates to login.
func (h *Holder) Logout(ctx context.Context) {
	h.clear(ctx)
	h.nav.ToLogin()
}

// HandleUnauthorized is installed as the API client's 401 hook.
func (h *Holder) HandleUnauthorized() {
	h.clear(context.Background())
	h.nav.ToLogin()
}

func (h *Holder) clear(ctx context.Context) {
	h.setState(StateUnauthenticated, "", nil)
	if err := h.store.Delete(ctx, config.CacheKey.AuthSessionKey()); err != nil {
		h.log.Error().Err(err).Msg("Clear stored session failed")
	}
}

func (h *Holder) persist(ctx context.Context) error {
	h.mu.RLock()
	p := Persisted{Token: h.token, User: h.user}
	h.mu.RUnlock()
	return store.SetJSON(ctx, h.store, config.CacheKey.AuthSessionKey(), p, 0)
}

func (h *Holder) setState(s State, token string, user *model.User) {
	h.mu.Lock()
	h.state = s
	h.token = token
	h.user = user
	h.mu.Unlock()
}

// expired peeks at the exp claim without verifying the signature; the server stays
// the judge of validity. Opaque or exp-less tokens are never treated as expired.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}
