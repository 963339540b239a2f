package deepgram_test

import (
	"context"
	"errors"
	"testing"

	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize/deepgram"
)

func TestSummarize_RelaysProviderSummary(t *testing.T) {
	res, err := deepgram.New().Summarize(context.Background(), summarize.Request{
		Text:            "full transcript",
		Language:        "en-US",
		ProviderSummary: "short abstract",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "short abstract" {
		t.Errorf("summary: got %q, want %q", res.Summary, "short abstract")
	}
	if res.Source != "deepgram" {
		t.Errorf("source: got %q, want %q", res.Source, "deepgram")
	}
}

func TestSummarize_DeclinesWithoutProviderSummary(t *testing.T) {
	_, err := deepgram.New().Summarize(context.Background(), summarize.Request{
		Text:     "full transcript",
		Language: "en",
	})
	if !errors.Is(err, summarize.ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestSummarize_DeclinesNonEnglish(t *testing.T) {
	_, err := deepgram.New().Summarize(context.Background(), summarize.Request{
		Text:            "bản ghi đầy đủ",
		Language:        "vi",
		ProviderSummary: "tóm tắt",
	})
	if !errors.Is(err, summarize.ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}
