// Package llm wraps language-model providers behind a narrow generation
// interface with blocking and streaming variants.
package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/docs-assistant/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Usage carries the provider-reported token counts for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is a completed generation.
type Result struct {
	Content string
	Usage   Usage
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Result, error)
}

// StreamClient is implemented by providers that can deliver the answer as
// an ordered sequence of text fragments. The callback is invoked in order;
// returning an error from it aborts the generation. Context cancellation
// stops the provider call promptly.
type StreamClient interface {
	GenerateStream(ctx context.Context, messages []Message, fn func(string) error) (Usage, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		OllamaHost:      cfg.OllamaHost,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AzureEndpoint:   cfg.AzureEndpoint,
		AzureAPIKey:     cfg.AzureAPIKey,
		AzureAPIVersion: cfg.AzureAPIVersion,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	case config.ProviderAzure:
		if opts.AzureAPIKey == "" || opts.AzureEndpoint == "" {
			return nil, fmt.Errorf("azure provider selected but AZURE_OPENAI_API_KEY or AZURE_OPENAI_ENDPOINT not set")
		}
		return NewAzureClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

// estimateTokens approximates token counts for providers that do not report
// usage (roughly four characters per token for English text).
func estimateTokens(messages []Message, answer string) Usage {
	prompt := 0
	for _, msg := range messages {
		prompt += (len(msg.Content) + 3) / 4
	}
	completion := (len(answer) + 3) / 4
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
