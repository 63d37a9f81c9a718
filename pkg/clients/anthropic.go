package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	Claude4Sonnet ModelType = "claude-sonnet-4-20250514"
	Claude35Haiku ModelType = "claude-3-5-haiku-20241022"
)

// NewAnthropic builds a Claude-backed LLM.
func NewAnthropic(apiKey, model string) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	if model == "" {
		model = string(Claude35Haiku)
	}

	llm, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init anthropic llm: %w", err)
	}
	return NewLLM(llm, model), nil
}
