package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/store"
)

type mockAPI struct {
	meCalls    int
	meFn       func(ctx context.Context) (*model.User, error)
	loginFn    func(ctx context.Context, req model.LoginRequest) (*model.AuthResult, error)
	registerFn func(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error)
}

func (m *mockAPI) Me(ctx context.Context) (*model.User, error) {
	m.meCalls++
	if m.meFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.meFn(ctx)
}

func (m *mockAPI) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResult, error) {
	if m.loginFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.loginFn(ctx, req)
}

func (m *mockAPI) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error) {
	if m.registerFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.registerFn(ctx, req)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

var student = model.User{ID: "u1", Email: "s@example.com", Name: "S", Role: model.RoleStudent, Plan: "free"}

func seed(t *testing.T, st store.Store, token string) {
	t.Helper()
	u := student
	if err := store.SetJSON(context.Background(), st, config.CacheKey.AuthSessionKey(), Persisted{Token: token, User: &u}, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRestoreWithoutTokenStaysUnauthenticated(t *testing.T) {
	api := &mockAPI{}
	h := NewHolder(api, store.NewMemory(), nil, zerolog.Nop())

	if _, err := h.Restore(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if h.State() != StateUnauthenticated || api.meCalls != 0 {
		t.Fatalf("expected no validation call")
	}
}

func TestRestoreRevalidatesToken(t *testing.T) {
	st := store.NewMemory()
	tok := signed(t, time.Now().Add(time.Hour))
	seed(t, st, tok)

	admin := student
	admin.Role = model.RoleAdmin
	api := &mockAPI{meFn: func(context.Context) (*model.User, error) { return &admin, nil }}
	h := NewHolder(api, st, nil, zerolog.Nop())

	u, err := h.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if h.State() != StateAuthenticated || h.Token() != tok {
		t.Fatalf("expected authenticated with stored token")
	}
	if !u.IsAdmin() || !h.IsAdmin() {
		t.Fatalf("expected refreshed profile to win")
	}
}

func TestRestoreExpiredTokenSkipsServer(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, signed(t, time.Now().Add(-time.Minute)))
	api := &mockAPI{}
	h := NewHolder(api, st, nil, zerolog.Nop())

	if _, err := h.Restore(context.Background()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if api.meCalls != 0 {
		t.Fatalf("expired token must not be sent")
	}
	if _, err := st.Get(context.Background(), config.CacheKey.AuthSessionKey()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected storage cleared, got %v", err)
	}
}

func TestRestoreFailureClearsStorage(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, "opaque-token")
	api := &mockAPI{meFn: func(context.Context) (*model.User, error) {
		return nil, &apiclient.APIError{Status: 401, Message: "revoked"}
	}}
	h := NewHolder(api, st, nil, zerolog.Nop())

	if _, err := h.Restore(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if h.State() != StateUnauthenticated || h.Token() != "" || h.User() != nil {
		t.Fatalf("expected cleared holder")
	}
	if api.meCalls != 1 {
		t.Fatalf("opaque token must be validated by the server")
	}
}

func TestLoginPersists(t *testing.T) {
	st := store.NewMemory()
	api := &mockAPI{loginFn: func(_ context.Context, req model.LoginRequest) (*model.AuthResult, error) {
		if req.Email != "s@example.com" {
			return nil, &apiclient.APIError{Status: 400, Message: "Invalid credentials"}
		}
		return &model.AuthResult{Token: "t-1", User: student}, nil
	}}
	h := NewHolder(api, st, nil, zerolog.Nop())

	if _, err := h.Login(context.Background(), "x@example.com", "pw"); apiclient.Message(err) != "Invalid credentials" {
		t.Fatalf("expected server message, got %v", err)
	}
	if h.State() != StateUnauthenticated {
		t.Fatalf("failed login must not authenticate")
	}

	if _, err := h.Login(context.Background(), "s@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	var p Persisted
	if err := store.GetJSON(context.Background(), st, config.CacheKey.AuthSessionKey(), &p); err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Token != "t-1" || p.User == nil || p.User.ID != "u1" {
		t.Fatalf("unexpected persisted session %+v", p)
	}
}

func TestUnauthorizedClearsAndNavigates(t *testing.T) {
	st := store.NewMemory()
	navigated := 0
	api := &mockAPI{registerFn: func(context.Context, model.RegisterRequest) (*model.AuthResult, error) {
		return &model.AuthResult{Token: "t-2", User: student}, nil
	}}
	h := NewHolder(api, st, NavigatorFunc(func() { navigated++ }), zerolog.Nop())

	if _, err := h.Register(context.Background(), "S", "s@example.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.HandleUnauthorized()

	if h.State() != StateUnauthenticated || h.Token() != "" {
		t.Fatalf("expected cleared holder")
	}
	if navigated != 1 {
		t.Fatalf("expected one navigation, got %d", navigated)
	}
	if _, err := st.Get(context.Background(), config.CacheKey.AuthSessionKey()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected storage cleared")
	}
}

func TestLogout(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, "t-3")
	navigated := false
	h := NewHolder(&mockAPI{}, st, NavigatorFunc(func() { navigated = true }), zerolog.Nop())

	h.Logout(context.Background())
	if !navigated || h.State() != StateUnauthenticated {
		t.Fatalf("expected logout to clear and navigate")
	}
}
