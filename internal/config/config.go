// Package config provides the configuration schema and loader for the
// meetscribe ingestion service.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Env selects defaults for a deployment environment.
type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
	EnvTest        Env = "test"
)

// IsValid reports whether e is a recognised environment.
func (e Env) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvProduction, EnvTest:
		return true
	}
	return false
}

// Provider selects the transcription and summarisation backend for the
// post-archive pipeline.
type Provider string

const (
	// ProviderOpenAI uses the OpenAI API for transcription and summaries.
	ProviderOpenAI Provider = "openai"

	// ProviderDeepgram uses Deepgram pre-recorded transcription; its
	// transcript-level short summary doubles as the meeting summary for
	// English audio.
	ProviderDeepgram Provider = "deepgram"

	// ProviderPhoWhisper runs a local PhoWhisper ggml model through the
	// whisper.cpp bindings. No network, no credential.
	ProviderPhoWhisper Provider = "pho-whisper"

	// ProviderAuto picks the first backend a credential or model file is
	// available for, with the extractive summariser as the terminal
	// fallback.
	ProviderAuto Provider = "auto"

	// ProviderCustom skips external providers entirely and uses the
	// extractive summariser.
	ProviderCustom Provider = "custom"
)

// IsValid reports whether p is a recognised provider selection.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderDeepgram, ProviderPhoWhisper, ProviderAuto, ProviderCustom:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Recording RecordingConfig `yaml:"recording"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// Env selects deployment defaults. Defaults to development.
	Env Env `yaml:"env"`

	// Port is the TCP port for the inbound WebSocket listener.
	// Defaults to 8765.
	Port int `yaml:"port"`

	// LogLevel controls verbosity. Defaults to debug outside production.
	LogLevel LogLevel `yaml:"log_level"`
}

// RecordingConfig controls what the ingestion engine writes to disk.
type RecordingConfig struct {
	// Root is the parent directory for the live/ and completed/ trees.
	// Defaults to "recordings".
	Root string `yaml:"root"`

	// EnableMixedAudio gates the mixed-channel WAV writer.
	EnableMixedAudio bool `yaml:"enable_mixed_audio"`

	// EnableParticipantAudio gates the per-participant WAV writers.
	EnableParticipantAudio bool `yaml:"enable_participant_audio"`

	// EnableVideoCapture is reserved. Video frames are counted and
	// discarded regardless of this flag.
	EnableVideoCapture bool `yaml:"enable_video_capture"`

	// InactivityTimeout closes a session after this long without any
	// inbound frame. Defaults to 5 minutes.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`

	// PendingAudioWindow caps how much audio may buffer per channel while
	// the format descriptor has not arrived yet, measured as a duration of
	// 48 kHz mono float32 audio. Defaults to 30 seconds.
	PendingAudioWindow time.Duration `yaml:"pending_audio_window"`
}

// PipelineConfig configures the post-archive transcription and
// summarisation pipeline. An empty Provider disables the pipeline.
type PipelineConfig struct {
	// Provider selects the backend. See [Provider].
	Provider Provider `yaml:"provider"`

	// Language is the BCP-47 tag passed to providers. Empty requests
	// auto-detection where the backend supports it.
	Language string `yaml:"language"`

	// TranscriptionAPIKey authenticates against the transcription backend.
	TranscriptionAPIKey string `yaml:"transcription_api_key"`

	// SummarisationAPIKey authenticates against the summarisation backend.
	// When empty, TranscriptionAPIKey is reused.
	SummarisationAPIKey string `yaml:"summarisation_api_key"`

	// WhisperModelPath is the ggml model file for the pho-whisper backend.
	WhisperModelPath string `yaml:"whisper_model_path"`

	// SummaryBackend routes LLM summaries through any-llm-go instead of the
	// OpenAI client. One of: openai, anthropic, gemini, ollama, mistral,
	// groq. Requires SummaryModel. Empty keeps the OpenAI summariser.
	SummaryBackend string `yaml:"summary_backend"`

	// SummaryModel overrides the LLM used for summaries
	// (gpt-4o-mini by default on the openai backend; required when
	// SummaryBackend is set).
	SummaryModel string `yaml:"summary_model"`

	// Concurrency bounds how many recordings are transcribed in parallel
	// per archive. Defaults to 2.
	Concurrency int `yaml:"concurrency"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Env == "" {
		c.Server.Env = EnvDevelopment
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8765
	}
	if c.Server.LogLevel == "" {
		if c.Server.Env == EnvProduction {
			c.Server.LogLevel = LogInfo
		} else {
			c.Server.LogLevel = LogDebug
		}
	}
	if c.Recording.Root == "" {
		c.Recording.Root = "recordings"
	}
	if c.Recording.InactivityTimeout == 0 {
		c.Recording.InactivityTimeout = 5 * time.Minute
	}
	if c.Recording.PendingAudioWindow == 0 {
		c.Recording.PendingAudioWindow = 30 * time.Second
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 2
	}
}
