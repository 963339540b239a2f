package resilience

import (
	"context"
	"strings"

	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
)

// TranscribeFallback implements [transcribe.Provider] with automatic failover
// across multiple transcription backends. Each backend has its own circuit
// breaker, so an archive full of recordings does not hammer a backend that is
// already known to be down.
type TranscribeFallback struct {
	group *FallbackGroup[transcribe.Provider]
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend.
func NewTranscribeFallback(primary transcribe.Provider, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.group.AddFallback(name, provider)
}

// Name joins the backend names in failover order.
func (f *TranscribeFallback) Name() string {
	return strings.Join(f.group.Names(), "+")
}

// Transcribe recognises the file against the first healthy backend. If the
// primary fails or its breaker is open, subsequent fallbacks are tried.
func (f *TranscribeFallback) Transcribe(ctx context.Context, path string, language string) (*transcribe.Result, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) (*transcribe.Result, error) {
		return p.Transcribe(ctx, path, language)
	})
}
