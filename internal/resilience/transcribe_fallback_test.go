package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
	transcribemock "github.com/meetscribe/meetscribe/pkg/provider/transcribe/mock"
)

func TestTranscribeFallback_FailoverToSecondary(t *testing.T) {
	primary := &transcribemock.Provider{ProviderName: "primary", Err: errBackendDown}
	secondary := &transcribemock.Provider{
		ProviderName: "secondary",
		Result:       &transcribe.Result{Text: "from secondary"},
	}

	f := NewTranscribeFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	f.AddFallback("secondary", secondary)

	res, err := f.Transcribe(context.Background(), "a.wav", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from secondary" {
		t.Errorf("text: got %q", res.Text)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls: primary=%d secondary=%d", primary.CallCount(), secondary.CallCount())
	}
}

func TestTranscribeFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &transcribemock.Provider{ProviderName: "primary", Err: errBackendDown}
	secondary := &transcribemock.Provider{ProviderName: "secondary"}

	f := NewTranscribeFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.AddFallback("secondary", secondary)

	for i := 0; i < 3; i++ {
		if _, err := f.Transcribe(context.Background(), "a.wav", ""); err != nil {
			t.Fatalf("Transcribe %d: %v", i, err)
		}
	}
	// The first two calls trip the primary's breaker; the third must not reach it.
	if got := primary.CallCount(); got != 2 {
		t.Errorf("primary calls: got %d, want 2", got)
	}
	if got := secondary.CallCount(); got != 3 {
		t.Errorf("secondary calls: got %d, want 3", got)
	}
}

func TestTranscribeFallback_Name(t *testing.T) {
	f := NewTranscribeFallback(&transcribemock.Provider{}, "openai", FallbackConfig{})
	f.AddFallback("pho-whisper", &transcribemock.Provider{})
	if got := f.Name(); got != "openai+pho-whisper" {
		t.Errorf("Name: got %q", got)
	}
}
