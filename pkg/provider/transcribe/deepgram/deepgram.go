// Package deepgram provides a transcription provider backed by the Deepgram
// pre-recorded audio API. The summarize=v2 feature is requested so results
// carry a short provider-side summary that downstream summarisers can relay.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultTimeout   = 5 * time.Minute
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithEndpoint overrides the API endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements transcribe.Provider backed by the Deepgram
// pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   deepgramEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "deepgram" }

// deepgramResponse is the subset of the pre-recorded API response we consume.
type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
			DetectedLanguage string `json:"detected_language"`
		} `json:"channels"`
		Summary struct {
			Short string `json:"short"`
		} `json:"summary"`
	} `json:"results"`
}

// Transcribe implements transcribe.Provider by POSTing the raw audio file to
// the pre-recorded endpoint.
func (p *Provider) Transcribe(ctx context.Context, path string, language string) (*transcribe.Result, error) {
	reqURL, err := p.buildURL(language)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("deepgram: open %q: %w", path, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, f)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram: status %d: %s", resp.StatusCode, body)
	}

	var dr deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(dr.Results.Channels) == 0 || len(dr.Results.Channels[0].Alternatives) == 0 {
		return nil, errors.New("deepgram: response contains no transcript")
	}

	alt := dr.Results.Channels[0].Alternatives[0]
	lang := language
	if lang == "" {
		lang = dr.Results.Channels[0].DetectedLanguage
	}

	return &transcribe.Result{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Duration:   time.Duration(dr.Metadata.Duration * float64(time.Second)),
		Language:   lang,
		Summary:    dr.Results.Summary.Short,
	}, nil
}

// buildURL constructs the pre-recorded endpoint URL for the given language.
func (p *Provider) buildURL(language string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("smart_format", "true")
	q.Set("summarize", "v2")
	if language != "" {
		q.Set("language", language)
	} else {
		q.Set("detect_language", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
