package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meetscribe/meetscribe/internal/config"
)

const sampleYAML = `
server:
  env: production
  port: 9000
  log_level: warn
recording:
  root: /var/lib/meetscribe
  enable_mixed_audio: true
  enable_participant_audio: true
  inactivity_timeout: 2m
  pending_audio_window: 10s
pipeline:
  provider: deepgram
  language: en-US
  transcription_api_key: dg-secret
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.Env != config.EnvProduction {
		t.Errorf("env: got %q, want %q", cfg.Server.Env, config.EnvProduction)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port: got %d, want 9000", cfg.Server.Port)
	}
	if cfg.Recording.InactivityTimeout != 2*time.Minute {
		t.Errorf("inactivity_timeout: got %v, want 2m", cfg.Recording.InactivityTimeout)
	}
	if cfg.Recording.PendingAudioWindow != 10*time.Second {
		t.Errorf("pending_audio_window: got %v, want 10s", cfg.Recording.PendingAudioWindow)
	}
	if cfg.Pipeline.Provider != config.ProviderDeepgram {
		t.Errorf("provider: got %q, want %q", cfg.Pipeline.Provider, config.ProviderDeepgram)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("default port: got %d, want 8765", cfg.Server.Port)
	}
	if cfg.Server.Env != config.EnvDevelopment {
		t.Errorf("default env: got %q, want development", cfg.Server.Env)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("default log level outside production: got %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Recording.Root != "recordings" {
		t.Errorf("default root: got %q, want %q", cfg.Recording.Root, "recordings")
	}
	if cfg.Recording.InactivityTimeout != 5*time.Minute {
		t.Errorf("default inactivity_timeout: got %v, want 5m", cfg.Recording.InactivityTimeout)
	}
	if cfg.Recording.PendingAudioWindow != 30*time.Second {
		t.Errorf("default pending_audio_window: got %v, want 30s", cfg.Recording.PendingAudioWindow)
	}
	if cfg.Pipeline.Concurrency != 2 {
		t.Errorf("default concurrency: got %d, want 2", cfg.Pipeline.Concurrency)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  prot: 9000
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recording.Root != "/var/lib/meetscribe" {
		t.Errorf("root: got %q", cfg.Recording.Root)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidProvider(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  provider: gemini
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid provider, got nil")
	}
	if !strings.Contains(err.Error(), "pipeline.provider") {
		t.Errorf("error should mention pipeline.provider, got: %v", err)
	}
}

func TestValidate_ProviderRequiresCredential(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		provider string
		wantErr  string
	}{
		{"openai", "transcription_api_key"},
		{"deepgram", "transcription_api_key"},
		{"pho-whisper", "whisper_model_path"},
	} {
		yaml := "pipeline:\n  provider: " + tc.provider + "\n"
		_, err := config.LoadFromReader(strings.NewReader(yaml))
		if err == nil {
			t.Errorf("%s: expected error without credential, got nil", tc.provider)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: error should mention %s, got: %v", tc.provider, tc.wantErr, err)
		}
	}
}

func TestValidate_SummaryBackendRequiresModel(t *testing.T) {
	t.Parallel()
	yaml := `
pipeline:
  provider: custom
  summary_backend: ollama
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for summary_backend without summary_model, got nil")
	}
	if !strings.Contains(err.Error(), "summary_model") {
		t.Errorf("error should mention summary_model, got: %v", err)
	}
}

func TestValidate_PortRange(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  port: 70000
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for out-of-range port, got nil")
	}
}
