package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.Env != "" && !cfg.Server.Env.IsValid() {
		errs = append(errs, fmt.Errorf("server.env %q is invalid; valid values: development, production, test", cfg.Server.Env))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [0, 65535]", cfg.Server.Port))
	}

	// Recording
	if cfg.Recording.InactivityTimeout < 0 {
		errs = append(errs, fmt.Errorf("recording.inactivity_timeout must not be negative"))
	}
	if cfg.Recording.PendingAudioWindow < 0 {
		errs = append(errs, fmt.Errorf("recording.pending_audio_window must not be negative"))
	}
	if !cfg.Recording.EnableMixedAudio && !cfg.Recording.EnableParticipantAudio {
		slog.Warn("both mixed and per-participant audio capture are disabled; sessions will record telemetry only")
	}

	// Pipeline
	if cfg.Pipeline.Provider != "" && !cfg.Pipeline.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.provider %q is invalid; valid values: openai, deepgram, pho-whisper, auto, custom", cfg.Pipeline.Provider))
	}
	if cfg.Pipeline.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must not be negative"))
	}
	if cfg.Pipeline.SummaryBackend != "" && cfg.Pipeline.SummaryModel == "" {
		errs = append(errs, fmt.Errorf("pipeline.summary_model is required when pipeline.summary_backend is set"))
	}

	switch cfg.Pipeline.Provider {
	case ProviderOpenAI, ProviderDeepgram:
		if cfg.Pipeline.TranscriptionAPIKey == "" {
			errs = append(errs, fmt.Errorf("pipeline.transcription_api_key is required when pipeline.provider is %q", cfg.Pipeline.Provider))
		}
	case ProviderPhoWhisper:
		if cfg.Pipeline.WhisperModelPath == "" {
			errs = append(errs, fmt.Errorf("pipeline.whisper_model_path is required when pipeline.provider is %q", cfg.Pipeline.Provider))
		}
	case ProviderAuto:
		if cfg.Pipeline.TranscriptionAPIKey == "" && cfg.Pipeline.WhisperModelPath == "" {
			slog.Warn("pipeline.provider is auto but no credential or model path is set; only the extractive summariser will be available")
		}
	case "":
		if cfg.Pipeline.TranscriptionAPIKey != "" {
			slog.Warn("pipeline.transcription_api_key is set but pipeline.provider is empty; the pipeline is disabled")
		}
	}

	return errors.Join(errs...)
}
