// Package pipeline implements the post-archive transcription and
// summarisation stage. It walks a sealed archive directory, transcribes every
// audio file, and writes transcript and summary artifacts next to the audio.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meetscribe/meetscribe/internal/observe"
	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
)

// mixedAudioName is the meeting-wide audio file an archive may contain.
const mixedAudioName = "mixed_audio.wav"

// audioExtensions lists the file extensions the walker treats as audio.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// participantIDPatterns extract a participant id from an audio file name.
// Tried in order; the first capture group wins.
var participantIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:participant|user)_(\w+)`),
	regexp.MustCompile(`combined_([^_]+_\d+_\d+)`),
}

// Transcript is the <name>.transcript.json artifact written next to each
// audio file.
type Transcript struct {
	Text            string  `json:"text"`
	Confidence      float64 `json:"confidence"`
	Duration        float64 `json:"duration"`
	Language        string  `json:"language,omitempty"`
	ProviderSummary string  `json:"providerSummary,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	// Transcriber may be nil, in which case Run only reports that nothing
	// could be transcribed.
	Transcriber transcribe.Provider

	// Summarizer produces meeting and participant summaries, normally a
	// provider chain ending in the extractive fallback.
	Summarizer summarize.Provider

	// Language is the BCP-47 tag passed to providers; empty means
	// auto-detect where supported.
	Language string

	// Concurrency bounds parallel transcription. Defaults to 2.
	Concurrency int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Pipeline processes sealed archives. Safe for concurrent Run calls; each
// archive is independent.
type Pipeline struct {
	transcriber transcribe.Provider
	summarizer  summarize.Provider
	language    string
	concurrency int
	log         *slog.Logger
	metrics     *observe.Metrics
}

// New validates opts and returns a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		transcriber: opts.Transcriber,
		summarizer:  opts.Summarizer,
		language:    opts.Language,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}
}

// fileResult holds the transcription outcome for one audio file, in
// discovery order.
type fileResult struct {
	path          string
	participantID string
	transcript    *Transcript
}

// Run transcribes and summarises one archive directory. Provider failures are
// logged and degrade to the next provider in the chain; Run returns an error
// only when the archive itself cannot be processed.
func (p *Pipeline) Run(ctx context.Context, archiveDir string) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()
	log := p.log.With("archive_dir", archiveDir)

	audioFiles, err := findAudioFiles(archiveDir)
	if err != nil {
		return fmt.Errorf("pipeline: scan %q: %w", archiveDir, err)
	}
	if len(audioFiles) == 0 {
		log.Info("archive contains no audio; nothing to transcribe")
		return nil
	}
	if p.transcriber == nil {
		log.Warn("no transcription provider configured; skipping archive")
		return nil
	}

	results := make([]*fileResult, len(audioFiles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, path := range audioFiles {
		g.Go(func() error {
			res := p.transcribeFile(gctx, path)
			if res == nil {
				return nil
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.summarise(ctx, archiveDir, results)
	return nil
}

// transcribeFile calls the provider for one file and writes the transcript
// artifact. Returns nil when transcription failed; the failure is logged and
// the rest of the archive proceeds.
func (p *Pipeline) transcribeFile(ctx context.Context, path string) *fileResult {
	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	start := time.Now()
	res, err := p.transcriber.Transcribe(ctx, path, p.language)
	p.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.transcriber.Name(), "transcribe")
		p.log.Error("transcription failed", "path", path, "provider", p.transcriber.Name(), "error", err)
		return nil
	}
	p.metrics.RecordProviderRequest(ctx, p.transcriber.Name(), "transcribe", "ok")

	tr := &Transcript{
		Text:            res.Text,
		Confidence:      res.Confidence,
		Duration:        res.Duration.Seconds(),
		Language:        res.Language,
		ProviderSummary: res.Summary,
	}
	if err := writeJSON(path+".transcript.json", tr); err != nil {
		p.log.Error("writing transcript artifact", "path", path, "error", err)
	}
	return &fileResult{
		path:          path,
		participantID: extractParticipantID(filepath.Base(path)),
		transcript:    tr,
	}
}

// summarise writes the meeting-level summary and one summary per attributed
// participant file.
func (p *Pipeline) summarise(ctx context.Context, archiveDir string, results []*fileResult) {
	ctx, span := observe.StartSpan(ctx, "pipeline.summarize")
	defer span.End()

	var mixed *fileResult
	var participantTexts []string
	for _, r := range results {
		if r == nil {
			continue
		}
		if filepath.Base(r.path) == mixedAudioName {
			mixed = r
		} else if r.participantID != "" {
			participantTexts = append(participantTexts, r.transcript.Text)
		}
	}

	meetingText := ""
	providerSummary := ""
	if mixed != nil {
		meetingText = mixed.transcript.Text
		providerSummary = mixed.transcript.ProviderSummary
	} else {
		meetingText = strings.Join(participantTexts, "\n")
	}

	if strings.TrimSpace(meetingText) != "" {
		summary := p.summariseText(ctx, meetingText, providerSummary)
		if summary != nil {
			if err := writeJSON(filepath.Join(archiveDir, mixedAudioName+".summary.json"), summary); err != nil {
				p.log.Error("writing meeting summary", "error", err)
			}
		}
	}

	for _, r := range results {
		if r == nil || r.participantID == "" || filepath.Base(r.path) == mixedAudioName {
			continue
		}
		if strings.TrimSpace(r.transcript.Text) == "" {
			continue
		}
		summary := p.summariseText(ctx, r.transcript.Text, r.transcript.ProviderSummary)
		if summary == nil {
			continue
		}
		if err := writeJSON(r.path+".summary.json", summary); err != nil {
			p.log.Error("writing participant summary", "path", r.path, "error", err)
		}
	}
}

// summariseText runs the provider chain over one text. Returns nil when every
// provider failed.
func (p *Pipeline) summariseText(ctx context.Context, text, providerSummary string) *summarize.Result {
	start := time.Now()
	res, err := p.summarizer.Summarize(ctx, summarize.Request{
		Text:            text,
		Language:        p.language,
		ProviderSummary: providerSummary,
	})
	p.metrics.SummarizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.summarizer.Name(), "summarize")
		p.log.Error("summarisation failed", "error", err)
		return nil
	}
	p.metrics.RecordProviderRequest(ctx, res.Source, "summarize", "ok")
	return res
}

// findAudioFiles walks dir and returns all audio paths sorted.
func findAudioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// extractParticipantID matches the file name against the known participant
// naming patterns. Returns "" when the file carries no attribution.
func extractParticipantID(name string) string {
	for _, re := range participantIDPatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	return ""
}

// writeJSON marshals v with indentation to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
