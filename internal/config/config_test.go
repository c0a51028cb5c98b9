package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.LLM.Provider)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Generation.CacheTTL != 30*time.Minute {
		t.Errorf("expected cache ttl 30m, got %v", cfg.Generation.CacheTTL)
	}
	if cfg.Pipeline.FetchTimeout != 30*time.Second {
		t.Errorf("expected fetch timeout 30s, got %v", cfg.Pipeline.FetchTimeout)
	}
	if cfg.Translation.TargetLanguage != "ko" {
		t.Errorf("expected target language ko, got %q", cfg.Translation.TargetLanguage)
	}
	if len(cfg.Generation.DefaultKeywords) != 3 {
		t.Errorf("expected 3 default keywords, got %v", cfg.Generation.DefaultKeywords)
	}
	if cfg.NewsAPI.Enabled {
		t.Error("expected newsapi to be disabled by default")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  provider: openai
  openai_model: gpt-4o
translation:
  target_language: ""
pipeline:
  run_ttl: 2h
server:
  port: 9000
  cors_origins: ["http://localhost:5173"]
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Provider != "openai" || cfg.LLM.OpenAIModel != "gpt-4o" {
		t.Errorf("unexpected llm section: %+v", cfg.LLM)
	}
	if cfg.Translation.TargetLanguage != "" {
		t.Errorf("expected target language to be cleared, got %q", cfg.Translation.TargetLanguage)
	}
	if cfg.Pipeline.RunTTL != 2*time.Hour {
		t.Errorf("expected run ttl 2h, got %v", cfg.Pipeline.RunTTL)
	}
	if cfg.Server.Port != 9000 || len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("unexpected server section: %+v", cfg.Server)
	}
	// Defaults should still be set for unspecified fields
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.LLM.OllamaURL)
	}
	if cfg.Pipeline.EventBuffer != 32 {
		t.Errorf("expected default event buffer, got %d", cfg.Pipeline.EventBuffer)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"provider", "llm:\n  provider: claude\n", "llm.provider"},
		{"threshold", "translation:\n  threshold: 1.5\n", "translation.threshold"},
		{"retries", "generation:\n  max_retries: -1\n", "generation.max_retries"},
		{"batch mode", "batch:\n  mode: fancy\n", "batch.mode"},
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"feed url", "feeds:\n  - name: nameless\n", "feeds[0]"},
		{"syntax", "llm: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestBatchMode(t *testing.T) {
	cfg := &Config{Batch: Batch{Mode: "GEO"}}
	mode, err := cfg.BatchMode()
	if err != nil || mode != article.ModeGEO {
		t.Errorf("expected geo, got %v (%v)", mode, err)
	}
	cfg.Batch.Mode = ""
	if mode, _ := cfg.BatchMode(); mode != article.ModeBasic {
		t.Errorf("expected basic for empty mode, got %v", mode)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(explicit, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := ResolveConfigPath(explicit); err != nil || got != explicit {
		t.Errorf("explicit path: got %q, %v", got, err)
	}
	if _, err := ResolveConfigPath(filepath.Join(home, "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}

	xdg := filepath.Join(home, ".config", "articleforge", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(xdg), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xdg, DefaultConfigYAML, 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := ResolveConfigPath(""); err != nil || got != xdg {
		t.Errorf("xdg path: got %q, %v", got, err)
	}
}

func TestDirectories(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DatabasePath() != filepath.Join("/custom/path", "articleforge.db") {
		t.Errorf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.GetExportDir() != filepath.Join("/custom/path", "exports") {
		t.Errorf("unexpected export dir %q", cfg.GetExportDir())
	}
}
