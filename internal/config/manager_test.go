package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [111]
  poll_timeout: "15s"
logging:
  level: debug
  console: true
storage:
  path: ./data/quizbot.db
auth:
  cache_ttl: "90s"
quiz:
  token_price: 40
  token_validity: "48h"
broadcast:
  concurrency: 5
  batch_size: 50
  batch_pause: "500ms"
  flood_extra: "500ms"
sweeper:
  enabled: true
  schedule: "@every 10m"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", validYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 111 {
		t.Fatalf("owners = %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Auth.CacheTTL != "90s" {
		t.Fatalf("cache_ttl = %q", cfg.Auth.CacheTTL)
	}
	if cfg.Broadcast == nil || cfg.Broadcast.BatchSize != 50 {
		t.Fatalf("broadcast = %+v", cfg.Broadcast)
	}
	if !cfg.Sweeper.Enabled || cfg.Sweeper.Schedule != "@every 10m" {
		t.Fatalf("sweeper = %+v", cfg.Sweeper)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	body := `{"telegram":{"token":"t","owner_user_ids":[1]},"logging":{"console":true},"storage":{"path":"x.db"}}`
	m := NewManager(writeFile(t, "config.json", body))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Path != "x.db" {
		t.Fatalf("storage path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	body := validYAML + "\nnot_a_real_key: true\n"
	m := NewManager(writeFile(t, "config.yaml", body))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseRejectsMissingToken(t *testing.T) {
	t.Parallel()
	body := `
telegram:
  token: ""
logging:
  console: true
storage:
  path: x.db
`
	m := NewManager(writeFile(t, "config.yaml", body))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected missing-token error")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Parallel()
	body := `
telegram:
  token: t
  poll_timeout: "fast"
logging:
  console: true
storage:
  path: x.db
`
	m := NewManager(writeFile(t, "config.yaml", body))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"", 0, true},
		{"500ms", 500 * time.Millisecond, true},
		{"1m30s", 90 * time.Second, true},
		{"nope", 0, false},
		{"-5s", 0, false},
	}
	for _, c := range cases {
		got, err := ParseDurationField("x", c.raw)
		if c.ok && err != nil {
			t.Fatalf("ParseDurationField(%q) err = %v", c.raw, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseDurationField(%q) expected error", c.raw)
		}
		if c.ok && got != c.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationOrDefault("x", "", 7*time.Second)
	if err != nil || got != 7*time.Second {
		t.Fatalf("empty = (%v, %v), want 7s", got, err)
	}
	got, err = ParseDurationOrDefault("x", "2s", 7*time.Second)
	if err != nil || got != 2*time.Second {
		t.Fatalf("explicit = (%v, %v), want 2s", got, err)
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}
