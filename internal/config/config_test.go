package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesDatabaseDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "database.driver") {
		t.Fatalf("expected database.driver error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
session:
  history_limit: 200
  idle_timeout: 1h
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Session.HistoryLimit != 200 {
		t.Fatalf("expected history_limit 200, got %d", cfg.Session.HistoryLimit)
	}
}

func TestLoadValidatesHistoryLimit(t *testing.T) {
	path := writeConfig(t, `
session:
  history_limit: -1
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "session.history_limit") {
		t.Fatalf("expected session.history_limit error, got %v", err)
	}
}

func TestLoadValidatesMemorySearchMaxResults(t *testing.T) {
	path := writeConfig(t, `
tools:
  memory_search:
    enabled: true
    max_results: -5
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "memory_search.max_results") {
		t.Fatalf("expected memory_search.max_results error, got %v", err)
	}
}

func TestLoadValidatesChunkerBreakPreference(t *testing.T) {
	path := writeConfig(t, `
chunker:
  break_preference: nope
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "break_preference") {
		t.Fatalf("expected break_preference error, got %v", err)
	}
}

func TestLoadAppliesChunkerDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chunker.MinChars != 200 {
		t.Fatalf("expected default min_chars 200, got %d", cfg.Chunker.MinChars)
	}
	if cfg.Chunker.MaxChars != 800 {
		t.Fatalf("expected default max_chars 800, got %d", cfg.Chunker.MaxChars)
	}
	if cfg.Chunker.BreakPreference != "paragraph" {
		t.Fatalf("expected default break_preference paragraph, got %q", cfg.Chunker.BreakPreference)
	}
}

func TestLoadValidatesApprovalRequireApprovalEntries(t *testing.T) {
	path := writeConfig(t, `
tools:
  approval:
    enabled: true
    require_approval:
      - ""
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "require_approval") {
		t.Fatalf("expected require_approval error, got %v", err)
	}
}

func TestLoadValidatesCronPayloadKind(t *testing.T) {
	path := writeConfig(t, `
cron:
  jobs:
    - id: job-1
      enabled: true
      schedule:
        every: 1h
      payload:
        kind: webhook
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "payload.kind") {
		t.Fatalf("expected payload.kind error, got %v", err)
	}
}

func TestLoadValidatesCronScheduleRequired(t *testing.T) {
	path := writeConfig(t, `
cron:
  jobs:
    - id: job-1
      enabled: true
      payload:
        kind: system_event
        system_event:
          session_key: "cron:job-1"
          content: "hi"
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "schedule") {
		t.Fatalf("expected schedule error, got %v", err)
	}
}

func TestLoadValidCronJob(t *testing.T) {
	path := writeConfig(t, `
cron:
  jobs:
    - id: job-1
      enabled: true
      schedule:
        every: 1h
      payload:
        kind: system_event
        system_event:
          session_key: "cron:job-1"
          content: "hi"
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("AGENTRT_HOST", "127.0.0.1")
	t.Setenv("DATABASE_URL", "postgres://override@localhost:5432/agentrt?sslmode=disable")

	path := writeConfig(t, `
server:
  host: 0.0.0.0
database:
  url: postgres://default@localhost:5432/agentrt?sslmode=disable
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Database.URL != "postgres://override@localhost:5432/agentrt?sslmode=disable" {
		t.Fatalf("expected database url override, got %q", cfg.Database.URL)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentrtd.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
