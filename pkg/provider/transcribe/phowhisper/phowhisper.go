// Package phowhisper provides a local transcription provider backed by the
// whisper.cpp CGO bindings, intended for use with a PhoWhisper ggml model
// (Vietnamese-tuned Whisper) but working with any ggml Whisper model.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables. The model is loaded once at startup and shared across all
// transcription calls; each call creates its own whisper context, which is
// how the bindings achieve concurrency.
package phowhisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/meetscribe/meetscribe/pkg/provider/transcribe"
	"github.com/meetscribe/meetscribe/pkg/wav"
)

// whisperSampleRate is the only input rate whisper.cpp accepts.
const whisperSampleRate = 16000

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 language code for transcription
// (e.g., "vi", "en"). Defaults to "vi".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements transcribe.Provider using whisper.cpp Go bindings.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New creates a Provider that loads the ggml model from modelPath. The
// caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("phowhisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("phowhisper: load model %q: %w", modelPath, err)
	}
	p := &Provider{
		model:    model,
		language: "vi",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "pho-whisper" }

// Transcribe implements transcribe.Provider. The WAV file is decoded, mixed
// down to mono, resampled to 16 kHz, and run through whisper.cpp.
func (p *Provider) Transcribe(ctx context.Context, path string, language string) (*transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("phowhisper: context cancelled: %w", err)
	}
	lang := language
	if lang == "" {
		lang = p.language
	}

	samples, sampleRate, err := readWavMono(path)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))
	if sampleRate != whisperSampleRate {
		samples = resample(samples, sampleRate, whisperSampleRate)
	}

	// Each whisper context is single-use and not thread-safe, but the model
	// may be shared across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("phowhisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("phowhisper: set language %q: %w", lang, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("phowhisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("phowhisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return &transcribe.Result{
		Text:     strings.Join(parts, " "),
		Duration: duration,
		Language: lang,
	}, nil
}

// readWavMono reads a 16-bit PCM WAV file and returns mono float32 samples
// in [-1, 1] along with the declared sample rate.
func readWavMono(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("phowhisper: read %q: %w", path, err)
	}
	if len(data) < wav.HeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("phowhisper: %q is not a RIFF/WAVE file", path)
	}
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	if channels < 1 || sampleRate < 1 {
		return nil, 0, fmt.Errorf("phowhisper: %q declares invalid format (%d ch, %d Hz)", path, channels, sampleRate)
	}

	pcm := data[wav.HeaderSize:]
	frames := len(pcm) / (2 * channels)
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		// Mix all channels down to mono.
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[(i*channels+c)*2:])))
		}
		samples[i] = float32(sum/channels) / 32768
	}
	return samples, sampleRate, nil
}

// resample converts mono samples from one rate to another using linear
// interpolation. Good enough for speech recognition input.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(to) / int64(from))
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
