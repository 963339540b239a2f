// Package mock provides a test double for the summarize package interface.
package mock

import (
	"context"
	"sync"

	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
)

// Provider is a mock implementation of summarize.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Result is returned by Summarize when SummarizeFunc is nil.
	Result *summarize.Result

	// Err, if non-nil, is returned as the error from Summarize.
	Err error

	// SummarizeFunc, if non-nil, fully overrides Summarize behaviour.
	SummarizeFunc func(ctx context.Context, req summarize.Request) (*summarize.Result, error)

	// Requests records every request passed to Summarize.
	Requests []summarize.Request
}

// Name implements summarize.Provider.
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Summarize records the request and returns the configured result.
func (p *Provider) Summarize(ctx context.Context, req summarize.Request) (*summarize.Result, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	if p.SummarizeFunc != nil {
		return p.SummarizeFunc(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &summarize.Result{Summary: "mock summary", Source: p.Name()}, nil
}

// CallCount returns the number of recorded Summarize calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
