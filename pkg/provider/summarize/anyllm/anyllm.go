// Package anyllm provides a summarisation provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider LLM interface
// supporting OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq,
// and more. Useful for running meeting summarisation against a local Ollama
// model without any cloud credential.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "llama3.1")
//	p, err := anyllm.New("anthropic", "claude-sonnet-4-5", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
)

// Provider implements summarize.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider backed by the given LLM backend name.
//
// backendName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq". model is the specific model to use. opts are
// any-llm-go options (e.g. anyllmlib.WithAPIKey, anyllmlib.WithBaseURL);
// without an API key option the backend falls back to its environment
// variable.
func New(backendName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if backendName == "" {
		return nil, fmt.Errorf("anyllm: backendName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(backendName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backendName, err)
	}
	return &Provider{backend: backend, name: "anyllm-" + strings.ToLower(backendName), model: model}, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(backendName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(backendName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, gemini, ollama, mistral, groq", backendName)
	}
}

// Name implements summarize.Provider.
func (p *Provider) Name() string { return p.name }

// Summarize implements summarize.Provider via a single completion call.
func (p *Provider) Summarize(ctx context.Context, req summarize.Request) (*summarize.Result, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("anyllm: %w", summarize.ErrUnavailable)
	}

	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: summarize.SystemPrompt},
			{Role: anyllmlib.RoleUser, Content: summarize.UserPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	return summarize.DecodeModelResult(resp.Choices[0].Message.ContentString(), p.Name()), nil
}
