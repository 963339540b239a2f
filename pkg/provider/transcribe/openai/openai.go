// Package openai provides a transcription provider backed by the OpenAI
// audio transcription API (whisper-1).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
)

// Provider implements transcribe.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  oai.AudioModel
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	model := oai.AudioModelWhisper1
	if cfg.model != "" {
		model = oai.AudioModel(cfg.model)
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe implements transcribe.Provider by uploading the audio file to
// the transcription endpoint.
func (p *Provider) Transcribe(ctx context.Context, path string, language string) (*transcribe.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("openai: open %q: %w", path, err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:  f,
		Model: p.model,
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: transcribe %q: %w", path, err)
	}

	lang := language
	if lang == "" {
		lang = "auto"
	}
	return &transcribe.Result{
		Text:     resp.Text,
		Language: lang,
	}, nil
}
