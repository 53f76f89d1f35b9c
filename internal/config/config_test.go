package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
model:
  provider: openai
  max_tokens: 2048
retrieval:
  top_k: 8
logging:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "dataq.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func Test_Load_AppliesYAMLToEnv(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("MODEL_MAX_TOKENS", "")
	t.Setenv("DATAQ_TOP_K", "")
	t.Setenv("LOG_LEVEL", "")

	path := writeConfig(t, testYAML)
	got, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != path {
		t.Errorf("loaded path = %q, want %q", got, path)
	}

	if v := os.Getenv("MODEL_PROVIDER"); v != "openai" {
		t.Errorf("MODEL_PROVIDER = %q", v)
	}
	if v := os.Getenv("MODEL_MAX_TOKENS"); v != "2048" {
		t.Errorf("MODEL_MAX_TOKENS = %q", v)
	}
	if v := os.Getenv("DATAQ_TOP_K"); v != "8" {
		t.Errorf("DATAQ_TOP_K = %q", v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "debug" {
		t.Errorf("LOG_LEVEL = %q", v)
	}
}

func Test_Load_EnvWins(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "ollama")

	path := writeConfig(t, testYAML)
	if _, err := Load(path, slog.Default()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v := os.Getenv("MODEL_PROVIDER"); v != "ollama" {
		t.Errorf("env var was overridden: MODEL_PROVIDER = %q", v)
	}
}

func Test_Load_NoFile(t *testing.T) {
	t.Setenv("DATAQ_CONFIG", "")
	got, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), slog.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "" {
		t.Errorf("want empty path for missing file, got %q", got)
	}
}

func Test_Load_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "model: [not a map")
	if _, err := Load(path, slog.Default()); err == nil {
		t.Error("want error for invalid YAML")
	}
}
