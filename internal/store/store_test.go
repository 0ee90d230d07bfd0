package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
)

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := m.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q %v", got, err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry must be evicted on read")
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "short", []byte("a"), time.Minute)
	_ = m.Set(ctx, "long", []byte("b"), time.Hour)
	_ = m.Set(ctx, "forever", []byte("c"), 0)

	now = now.Add(10 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 left, got %d", m.Len())
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	type payload struct {
		Name string `json:"name"`
	}

	if err := SetJSON(ctx, m, "p", payload{Name: "x"}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := GetJSON(ctx, m, "p", &got); err != nil || got.Name != "x" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if err := GetJSON(ctx, m, "missing", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilePlain(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := f.Set(ctx, "run:ts-1:snapshot", []byte(`{"a":1}`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := f.Get(ctx, "run:ts-1:snapshot")
	if err != nil || string(got) != `{"a":1}` {
		t.Fatalf("unexpected %q %v", got, err)
	}
	if err := f.Delete(ctx, "run:ts-1:snapshot"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.Get(ctx, "run:ts-1:snapshot"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("deleting a missing key must succeed, got %v", err)
	}
}

func TestFileSealed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir, "s3cret")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	secret := []byte("bearer-token-value")
	if err := f.Set(ctx, "auth:session", secret, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, err := os.ReadFile(f.path("auth:session"))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if bytes.Contains(raw, secret) {
		t.Fatalf("sealed file must not contain the plaintext")
	}
	got, err := f.Get(ctx, "auth:session")
	if err != nil || !bytes.Equal(got, secret) {
		t.Fatalf("unexpected %q %v", got, err)
	}

	other, _ := NewFile(dir, "other")
	if _, err := other.Get(ctx, "auth:session"); !errors.Is(err, ErrSealBroken) {
		t.Fatalf("expected ErrSealBroken with the wrong secret, got %v", err)
	}
}

func TestFileExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f, _ := NewFile(t.TempDir(), "")
	f.now = func() time.Time { return now }

	_ = f.Set(ctx, "k", []byte("v"), time.Hour)
	now = now.Add(time.Hour)
	if _, err := f.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, &config.Config{StoreDriver: config.StoreDriverMemory}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", s)
	}

	s, _, err = Open(ctx, &config.Config{StoreDriver: config.StoreDriverFile, StoreDir: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if _, ok := s.(*File); !ok {
		t.Fatalf("expected *File, got %T", s)
	}

	if _, _, err := Open(ctx, &config.Config{StoreDriver: "etcd"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
