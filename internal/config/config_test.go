package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("BATCH_CONCURRENCY", "not-a-number")

	cfg := Load()
	if cfg.APIBaseURL != "http://localhost:8080/api/v1" {
		t.Fatalf("unexpected base url %q", cfg.APIBaseURL)
	}
	if cfg.StoreDriver != StoreDriverFile {
		t.Fatalf("expected file store, got %q", cfg.StoreDriver)
	}
	if cfg.BatchConcurrency != 8 {
		t.Fatalf("expected fallback concurrency, got %d", cfg.BatchConcurrency)
	}
	if cfg.RunGrace != 10*time.Minute || cfg.ReapInterval != time.Minute || cfg.AuthRateLimit != 10 {
		t.Fatalf("unexpected run housekeeping defaults %v %v %d", cfg.RunGrace, cfg.ReapInterval, cfg.AuthRateLimit)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected allow-all origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/v2/")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "3")
	t.Setenv("SNAPSHOT_TTL_HOURS", "1")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()
	if cfg.APIBaseURL != "https://api.example.com/v2" {
		t.Fatalf("trailing slash must be trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != 3*time.Second || cfg.SnapshotTTL != time.Hour {
		t.Fatalf("unexpected durations %v %v", cfg.HTTPTimeout, cfg.SnapshotTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.RunSnapshotKey("ts-1"); got != "run:ts-1:snapshot" {
		t.Fatalf("unexpected key %q", got)
	}
	if CacheKey.AuthSessionKey() == CacheKey.ActiveRunKey() {
		t.Fatalf("keys must not collide")
	}
}
