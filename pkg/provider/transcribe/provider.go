// Package transcribe defines the Provider interface for batch speech-to-text
// backends.
//
// A transcription provider takes a sealed audio file on local disk and returns
// the recognised text. Unlike a streaming STT engine it operates on whole
// files; the post-archive pipeline invokes it once per recorded artifact.
// Implementations must be safe for concurrent use — the pipeline transcribes
// several files in parallel.
package transcribe

import (
	"context"
	"time"
)

// Result is the outcome of transcribing one audio file.
type Result struct {
	// Text is the full recognised transcript.
	Text string

	// Confidence is the provider's overall confidence (0.0–1.0). Zero when
	// the provider does not report one.
	Confidence float64

	// Duration is the audio duration as reported by the provider, or derived
	// from the container when the provider does not report one.
	Duration time.Duration

	// Language is the language the transcript was produced in.
	Language string

	// Summary is an optional short abstract produced by the transcription
	// provider itself (e.g. Deepgram's summarize feature). Empty for
	// providers without that capability.
	Summary string
}

// Provider transcribes audio files.
type Provider interface {
	// Name identifies the provider in logs, metrics, and artifact metadata.
	Name() string

	// Transcribe recognises the speech in the audio file at path. language
	// is a BCP-47 tag hint; an empty string requests auto-detection where
	// the provider supports it.
	Transcribe(ctx context.Context, path string, language string) (*Result, error)
}
