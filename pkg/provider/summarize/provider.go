// Package summarize defines the Provider interface for meeting-summary
// backends and a chain-of-responsibility combinator over them.
//
// A summariser turns transcript text into a structured meeting summary. The
// pipeline configures an ordered chain; when a provider fails or declines, the
// next one is tried. The chain always ends in the extractive fallback, so a
// summary is produced even with no credentials and no network.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Request carries the text to summarise plus the hints a provider may use.
type Request struct {
	// Text is the meeting transcript to summarise.
	Text string

	// Language is the BCP-47 tag of the transcript.
	Language string

	// ProviderSummary is a short abstract the transcription provider already
	// produced for this audio, when available. Providers that merely relay
	// such summaries require it to be non-empty.
	ProviderSummary string
}

// Result is a structured meeting summary.
type Result struct {
	// Summary is the narrative abstract.
	Summary string `json:"summary"`

	// KeyPoints, ActionItems, Decisions, and Topics are categorised
	// highlights pulled from the transcript.
	KeyPoints   []string `json:"keyPoints,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
	Decisions   []string `json:"decisions,omitempty"`
	Topics      []string `json:"topics,omitempty"`

	// Source names the provider that produced this result.
	Source string `json:"source"`
}

// ErrUnavailable is returned by a provider that cannot serve the given
// request (missing hint, unsupported language). The chain moves on to the
// next provider without logging an error.
var ErrUnavailable = errors.New("summarize: provider unavailable for this request")

// Provider produces meeting summaries.
type Provider interface {
	// Name identifies the provider in logs and in Result.Source.
	Name() string

	// Summarize produces a summary for req. Returning ErrUnavailable (or an
	// error wrapping it) signals a clean decline rather than a failure.
	Summarize(ctx context.Context, req Request) (*Result, error)
}

// Chain tries providers in order and returns the first successful result.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain over the given providers. Order matters: earlier
// providers are preferred.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Summarize implements Provider by delegating down the chain. A provider
// failure is logged and the next provider is tried; only when every provider
// fails is an aggregate error returned.
func (c *Chain) Summarize(ctx context.Context, req Request) (*Result, error) {
	var errs []error
	for _, p := range c.providers {
		res, err := p.Summarize(ctx, req)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrUnavailable) {
			slog.Debug("summariser declined", "provider", p.Name())
		} else {
			slog.Warn("summariser failed, trying next", "provider", p.Name(), "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("summarize: all providers failed: %w", errors.Join(errs...))
}
