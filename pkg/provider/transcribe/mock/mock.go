// Package mock provides a test double for the transcribe package interface.
//
// Configure Result/Err for fixed behaviour, or TranscribeFunc for per-call
// control. Every invocation is recorded in Calls.
package mock

import (
	"context"
	"sync"

	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
)

// Call records a single invocation of Provider.Transcribe.
type Call struct {
	Path     string
	Language string
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Result is returned by Transcribe when TranscribeFunc is nil.
	Result *transcribe.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFunc, if non-nil, fully overrides Transcribe behaviour.
	TranscribeFunc func(ctx context.Context, path, language string) (*transcribe.Result, error)

	// Calls records every call to Transcribe.
	Calls []Call
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, path, language string) (*transcribe.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Path: path, Language: language})
	p.mu.Unlock()

	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, path, language)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &transcribe.Result{Text: "mock transcript", Language: language}, nil
}

// CallCount returns the number of recorded Transcribe calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
