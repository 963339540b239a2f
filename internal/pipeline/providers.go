package pipeline

import (
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/internal/resilience"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
	summarizeanyllm "github.com/meetscribe/meetscribe/pkg/provider/summarize/anyllm"
	summarizedeepgram "github.com/meetscribe/meetscribe/pkg/provider/summarize/deepgram"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize/extract"
	summarizeopenai "github.com/meetscribe/meetscribe/pkg/provider/summarize/openai"
	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
	transcribedeepgram "github.com/meetscribe/meetscribe/pkg/provider/transcribe/deepgram"
	transcribeopenai "github.com/meetscribe/meetscribe/pkg/provider/transcribe/openai"
	"github.com/meetscribe/meetscribe/pkg/provider/transcribe/phowhisper"
)

// BuildProviders constructs the transcription provider and the summarisation
// chain for the configured backend. The transcriber may be nil when no
// backend is reachable; the summariser always ends in the extractive
// fallback so a summary can be produced for any transcript.
func BuildProviders(cfg config.PipelineConfig) (transcribe.Provider, summarize.Provider, error) {
	summaryKey := cfg.SummarisationAPIKey
	if summaryKey == "" {
		summaryKey = cfg.TranscriptionAPIKey
	}

	llm, err := llmSummarizer(cfg, summaryKey)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		t, err := transcribeopenai.New(cfg.TranscriptionAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: openai transcriber: %w", err)
		}
		if llm == nil {
			return nil, nil, fmt.Errorf("pipeline: openai summariser requires an API key or summary_backend")
		}
		return t, summarize.NewChain(llm, extract.New()), nil

	case config.ProviderDeepgram:
		t, err := transcribedeepgram.New(cfg.TranscriptionAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: deepgram transcriber: %w", err)
		}
		return t, summarize.NewChain(summarizedeepgram.New(), extract.New()), nil

	case config.ProviderPhoWhisper:
		t, err := phowhisper.New(cfg.WhisperModelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: pho-whisper transcriber: %w", err)
		}
		if llm != nil {
			return t, summarize.NewChain(llm, extract.New()), nil
		}
		return t, summarize.NewChain(extract.New()), nil

	case config.ProviderCustom:
		return autoTranscriber(cfg), summarize.NewChain(extract.New()), nil

	case config.ProviderAuto:
		var chain []summarize.Provider
		if llm != nil {
			chain = append(chain, llm)
		}
		chain = append(chain, summarizedeepgram.New(), extract.New())
		return autoTranscriber(cfg), summarize.NewChain(chain...), nil

	default:
		return nil, nil, fmt.Errorf("pipeline: unrecognised provider %q", cfg.Provider)
	}
}

// llmSummarizer builds the LLM-backed summariser, or nil when nothing is
// configured for one. A summary_backend routes through any-llm-go; otherwise
// an API key selects the OpenAI summariser.
func llmSummarizer(cfg config.PipelineConfig, summaryKey string) (summarize.Provider, error) {
	if cfg.SummaryBackend != "" {
		var opts []anyllmlib.Option
		if summaryKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(summaryKey))
		}
		p, err := summarizeanyllm.New(cfg.SummaryBackend, cfg.SummaryModel, opts...)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %s summariser: %w", cfg.SummaryBackend, err)
		}
		return p, nil
	}
	if summaryKey == "" {
		return nil, nil
	}
	var opts []summarizeopenai.Option
	if cfg.SummaryModel != "" {
		opts = append(opts, summarizeopenai.WithModel(cfg.SummaryModel))
	}
	p, err := summarizeopenai.New(summaryKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: openai summariser: %w", err)
	}
	return p, nil
}

// autoTranscriber assembles the transcription backends something is
// configured for: openai when a key is present, a local whisper model when a
// path is present. With more than one backend available the result is a
// failover group; with none it is nil.
func autoTranscriber(cfg config.PipelineConfig) transcribe.Provider {
	type backend struct {
		name     string
		provider transcribe.Provider
	}
	var backends []backend

	if cfg.TranscriptionAPIKey != "" {
		t, err := transcribeopenai.New(cfg.TranscriptionAPIKey)
		if err == nil {
			backends = append(backends, backend{"openai", t})
		} else {
			slog.Warn("openai transcriber unavailable", "error", err)
		}
	}
	if cfg.WhisperModelPath != "" {
		t, err := phowhisper.New(cfg.WhisperModelPath)
		if err == nil {
			backends = append(backends, backend{"pho-whisper", t})
		} else {
			slog.Warn("pho-whisper transcriber unavailable", "error", err)
		}
	}

	switch len(backends) {
	case 0:
		return nil
	case 1:
		return backends[0].provider
	}
	f := resilience.NewTranscribeFallback(backends[0].provider, backends[0].name, resilience.FallbackConfig{})
	for _, b := range backends[1:] {
		f.AddFallback(b.name, b.provider)
	}
	return f
}
