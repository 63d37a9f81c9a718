package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// CompletionOptions bounds a single generative call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Completer turns one prompt into one text response.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// LLM adapts a langchaingo model to Completer. Each call is attempted once.
type LLM struct {
	model llms.Model
	name  string
}

// NewLLM wraps an already constructed langchaingo model.
func NewLLM(model llms.Model, name string) *LLM {
	return &LLM{model: model, name: name}
}

// Name returns the model identifier used for the calls.
func (l *LLM) Name() string {
	return l.name
}

// Complete issues a single prompt and returns the trimmed response text.
func (l *LLM) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", l.name, err)
	}
	return strings.TrimSpace(out), nil
}

// Settings selects and authenticates a provider.
type Settings struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// New builds an LLM for the configured provider.
func New(ctx context.Context, s Settings) (*LLM, error) {
	switch s.Provider {
	case "groq", "openai":
		return NewOpenAICompatible(s.APIKey, s.BaseURL, s.Model)
	case "google":
		return NewGoogle(ctx, s.APIKey, s.Model)
	case "anthropic":
		return NewAnthropic(s.APIKey, s.Model)
	default:
		return nil, fmt.Errorf("invalid llm provider: %s", s.Provider)
	}
}
