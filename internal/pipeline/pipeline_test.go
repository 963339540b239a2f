package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
	summarizedeepgram "github.com/meetscribe/meetscribe/pkg/provider/summarize/deepgram"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize/extract"
	summarizemock "github.com/meetscribe/meetscribe/pkg/provider/summarize/mock"
	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
	transcribemock "github.com/meetscribe/meetscribe/pkg/provider/transcribe/mock"
)

// writeArchive creates a fake sealed archive with the given audio files.
func writeArchive(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readTranscript(t *testing.T, path string) *Transcript {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	tr := &Transcript{}
	if err := json.Unmarshal(data, tr); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	return tr
}

func readSummaryResult(t *testing.T, path string) *summarize.Result {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	res := &summarize.Result{}
	if err := json.Unmarshal(data, res); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	return res
}

func TestRun_WritesTranscriptsAndSummaries(t *testing.T) {
	dir := writeArchive(t,
		"mixed_audio.wav",
		"participants/alice_1_123/combined_alice_1_123.wav",
	)
	tr := &transcribemock.Provider{
		TranscribeFunc: func(ctx context.Context, path, language string) (*transcribe.Result, error) {
			return &transcribe.Result{
				Text:       "We agreed on the important rollout plan for next quarter and assigned owners.",
				Confidence: 0.9,
				Duration:   3 * time.Second,
				Language:   language,
			}, nil
		},
	}
	sum := &summarizemock.Provider{Result: &summarize.Result{Summary: "the gist", Source: "mock"}}

	p := New(Options{Transcriber: tr, Summarizer: sum, Language: "en"})
	if err := p.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mixed := readTranscript(t, filepath.Join(dir, "mixed_audio.wav.transcript.json"))
	if mixed.Text == "" || mixed.Confidence != 0.9 || mixed.Duration != 3 {
		t.Errorf("mixed transcript: %+v", mixed)
	}
	readTranscript(t, filepath.Join(dir, "participants/alice_1_123/combined_alice_1_123.wav.transcript.json"))

	meeting := readSummaryResult(t, filepath.Join(dir, "mixed_audio.wav.summary.json"))
	if meeting.Summary != "the gist" {
		t.Errorf("meeting summary: got %q", meeting.Summary)
	}
	participant := readSummaryResult(t, filepath.Join(dir, "participants/alice_1_123/combined_alice_1_123.wav.summary.json"))
	if participant.Summary != "the gist" {
		t.Errorf("participant summary: got %q", participant.Summary)
	}
	if tr.CallCount() != 2 {
		t.Errorf("transcribe calls: got %d, want 2", tr.CallCount())
	}
}

func TestRun_CustomFallbackProducesSummary(t *testing.T) {
	// auto with no OpenAI key, no Deepgram summary, Vietnamese audio: the
	// chain must land on the extractive fallback.
	dir := writeArchive(t, "mixed_audio.wav")
	tr := &transcribemock.Provider{
		Result: &transcribe.Result{
			Text: "Chúng ta đã quyết định triển khai hệ thống mới vào tuần sau. " +
				"Anh Minh sẽ cần chuẩn bị tài liệu hướng dẫn cho toàn bộ nhóm. " +
				"Đây là điểm quan trọng nhất của buổi họp hôm nay.",
			Language: "vi",
		},
	}
	chain := summarize.NewChain(summarizedeepgram.New(), extract.New())

	p := New(Options{Transcriber: tr, Summarizer: chain, Language: "vi"})
	if err := p.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := readSummaryResult(t, filepath.Join(dir, "mixed_audio.wav.summary.json"))
	if res.Source != "custom" {
		t.Errorf("source: got %q, want %q", res.Source, "custom")
	}
	if res.Summary == "" {
		t.Error("summary is empty")
	}
}

func TestRun_ParticipantConcatWhenNoMixed(t *testing.T) {
	dir := writeArchive(t,
		"participants/p1/combined_alice_1_11.wav",
		"participants/p2/user_bob7.wav",
	)
	texts := map[string]string{
		"combined_alice_1_11.wav": "Alice spoke about the roadmap for quite a while today.",
		"user_bob7.wav":           "Bob raised an important concern about the budget numbers.",
	}
	tr := &transcribemock.Provider{
		TranscribeFunc: func(ctx context.Context, path, language string) (*transcribe.Result, error) {
			return &transcribe.Result{Text: texts[filepath.Base(path)]}, nil
		},
	}
	sum := &summarizemock.Provider{}

	p := New(Options{Transcriber: tr, Summarizer: sum})
	if err := p.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.CallCount() == 0 {
		t.Fatal("summariser was never called")
	}
	meeting := sum.Requests[0]
	for _, want := range []string{"roadmap", "budget"} {
		if !strings.Contains(meeting.Text, want) {
			t.Errorf("meeting text missing %q: %q", want, meeting.Text)
		}
	}
	// The meeting summary still lands at the conventional path.
	if _, err := os.Stat(filepath.Join(dir, "mixed_audio.wav.summary.json")); err != nil {
		t.Errorf("meeting summary artifact missing: %v", err)
	}
}

func TestRun_EmptyArchive(t *testing.T) {
	dir := writeArchive(t, "telemetry.ndjson")
	p := New(Options{Transcriber: &transcribemock.Provider{}, Summarizer: &summarizemock.Provider{}})
	if err := p.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestExtractParticipantID(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"participant_abc123.wav", "abc123"},
		{"user_bob7.wav", "bob7"},
		{"combined_alice_1_123.wav", "alice_1_123"},
		{"mixed_audio.wav", ""},
		{"notes.txt", ""},
	}
	for _, tc := range tests {
		if got := extractParticipantID(tc.name); got != tc.want {
			t.Errorf("extractParticipantID(%q): got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestBuildProviders(t *testing.T) {
	// custom: extractive only, no transcriber without credentials.
	tr, sum, err := BuildProviders(config.PipelineConfig{Provider: config.ProviderCustom})
	if err != nil {
		t.Fatalf("BuildProviders(custom): %v", err)
	}
	if tr != nil {
		t.Error("custom without credentials should have no transcriber")
	}
	res, err := sum.Summarize(context.Background(), summarize.Request{
		Text: "We decided to adopt the proposal after a long discussion today.",
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Source != "custom" {
		t.Errorf("source: got %q, want custom", res.Source)
	}

	// deepgram requires a key.
	if _, _, err := BuildProviders(config.PipelineConfig{Provider: config.ProviderDeepgram}); err == nil {
		t.Error("deepgram without a key should fail")
	}

	// unknown provider is rejected.
	if _, _, err := BuildProviders(config.PipelineConfig{Provider: "nope"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
