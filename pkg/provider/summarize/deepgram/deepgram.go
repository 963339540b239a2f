// Package deepgram provides a summarisation provider that relays the short
// abstract the Deepgram transcription API already produced for the audio.
//
// It performs no network call of its own: the pipeline passes the transcript
// provider's summary through Request.ProviderSummary. Deepgram's summarize
// feature only supports English, so requests in other languages are declined
// with summarize.ErrUnavailable and the chain falls through.
package deepgram

import (
	"context"
	"fmt"
	"strings"

	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
)

// Provider implements summarize.Provider by relaying transcript-level
// summaries.
type Provider struct{}

// New creates a new relay Provider.
func New() *Provider { return &Provider{} }

// Name implements summarize.Provider.
func (p *Provider) Name() string { return "deepgram" }

// Summarize implements summarize.Provider. It succeeds only when the
// transcription provider supplied a summary and the language is English
// (or unspecified, which Deepgram treats as English).
func (p *Provider) Summarize(_ context.Context, req summarize.Request) (*summarize.Result, error) {
	if req.ProviderSummary == "" {
		return nil, fmt.Errorf("deepgram: no transcript-level summary present: %w", summarize.ErrUnavailable)
	}
	if req.Language != "" && !strings.HasPrefix(strings.ToLower(req.Language), "en") {
		return nil, fmt.Errorf("deepgram: summaries are English-only, got language %q: %w", req.Language, summarize.ErrUnavailable)
	}
	return &summarize.Result{
		Summary: req.ProviderSummary,
		Source:  p.Name(),
	}, nil
}
