package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LECTUREGEN_CONFIG_PATH", "PORT", "HTTP_ADDR", "CONTENT_PROVIDER", "CONTENT_MODELS",
		"SPEECH_PROVIDER", "DB_DRIVER", "RUN_CONCURRENCY", "RUN_TIMEOUT", "GEMINI_API_KEY",
		"OPENAI_API_KEY", "REDIS_ADDR", "OUTPUT_DIR", "CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Media.OutputDir != "output" {
		t.Fatalf("defaults: addr=%q output=%q", cfg.HTTP.Addr, cfg.Media.OutputDir)
	}
	if cfg.Runs.Concurrency != 1 || cfg.Runs.Timeout != 30*time.Minute {
		t.Fatalf("runs: got=%+v", cfg.Runs)
	}
	if cfg.ContentProvider() != "offline" {
		t.Fatalf("provider: want=%q got=%q", "offline", cfg.ContentProvider())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
http:
  addr: ":9000"
  cors_origins: ["https://a.example"]
content:
  provider: gemini
  models: [gemini-1.5-flash]
runs:
  concurrency: 3
  timeout: 90s
media:
  output_dir: /tmp/lectures
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("RUN_CONCURRENCY", "2")
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("addr: want=%q got=%q", ":9000", cfg.HTTP.Addr)
	}
	if !reflect.DeepEqual(cfg.HTTP.CORSOrigins, []string{"https://a.example"}) {
		t.Fatalf("cors: got=%v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Runs.Concurrency != 2 {
		t.Fatalf("env override: want=2 got=%d", cfg.Runs.Concurrency)
	}
	if cfg.Runs.Timeout != 90*time.Second {
		t.Fatalf("timeout: want=90s got=%s", cfg.Runs.Timeout)
	}
	if cfg.Media.OutputDir != "/tmp/lectures" || cfg.Speech.Provider != "gcp" {
		t.Fatalf("merged: output=%q speech=%q", cfg.Media.OutputDir, cfg.Speech.Provider)
	}
	if cfg.Secrets.GeminiAPIKey != "k" || cfg.ContentProvider() != "gemini" {
		t.Fatalf("secrets: got=%+v", cfg.Secrets)
	}
}

func TestLoadPortOverridesAddr(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7070")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("addr: want=%q got=%q", ":7070", cfg.HTTP.Addr)
	}
}

func TestContentProviderPrefersGemini(t *testing.T) {
	cfg := defaultConfig()
	cfg.Secrets.OpenAIAPIKey = "o"
	if got := cfg.ContentProvider(); got != "openai" {
		t.Fatalf("provider: want=%q got=%q", "openai", got)
	}
	cfg.Secrets.GeminiAPIKey = "g"
	if got := cfg.ContentProvider(); got != "gemini" {
		t.Fatalf("provider: want=%q got=%q", "gemini", got)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"provider": "CONTENT_PROVIDER",
		"speech":   "SPEECH_PROVIDER",
		"driver":   "DB_DRIVER",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "bogus")
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=bogus", key)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
