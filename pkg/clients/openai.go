package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// NewOpenAICompatible builds an LLM for OpenAI or any endpoint speaking its
// chat API (Groq serves llama models this way).
func NewOpenAICompatible(apiKey, baseURL, model string) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm api key is not set")
	}

	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init openai-compatible llm: %w", err)
	}
	return NewLLM(llm, model), nil
}
