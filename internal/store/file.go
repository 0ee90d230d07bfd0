package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrSealBroken is returned when a sealed file cannot be opened with the configured secret.
var ErrSealBroken = errors.New("store: sealed value cannot be opened")

type fileEnvelope struct {
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Value     []byte     `json:"value"`
}

// File keeps one file per key under a directory. When a secret is configured the
// content is sealed with NaCl secretbox so a copied token file is useless elsewhere.
type File struct {
	dir string
	key *[32]byte
	mu  sync.Mutex
	now func() time.Time
}

// NewFile creates the directory if needed. An empty secret stores plaintext.
func NewFile(dir, secret string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	f := &File{dir: dir, now: time.Now}
	if secret != "" {
		k, err := deriveKey(secret)
		if err != nil {
			return nil, err
		}
		f.key = k
	}
	return f, nil
}

func deriveKey(secret string) (*[32]byte, error) {
	var k [32]byte
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("exstem-runner/store"))
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	return &k, nil
}

func (f *File) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(f.dir, name+".json")
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	if f.key != nil {
		raw, err = f.open(raw)
		if err != nil {
			return nil, err
		}
	}

	var env fileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if env.ExpiresAt != nil && !f.now().Before(*env.ExpiresAt) {
		_ = os.Remove(f.path(key))
		return nil, ErrNotFound
	}
	return env.Value, nil
}

func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	env := fileEnvelope{Value: value}
	if ttl > 0 {
		exp := f.now().Add(ttl)
		env.ExpiresAt = &exp
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if f.key != nil {
		raw, err = f.seal(raw)
		if err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, f.path(key)); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (f *File) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, f.key), nil
}

func (f *File) open(box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, ErrSealBroken
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, f.key)
	if !ok {
		return nil, ErrSealBroken
	}
	return plain, nil
}
