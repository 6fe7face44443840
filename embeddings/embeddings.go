// Package embeddings maps text to fixed-length vectors through a narrow
// provider-agnostic interface.
package embeddings

import (
	"context"
	"fmt"

	"github.com/fabfab/docs-assistant/config"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:        cfg.Embeddings.Provider,
		Model:           cfg.Embeddings.Model,
		Dimension:       cfg.Embeddings.Dimension,
		OllamaHost:      cfg.OllamaHost,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AzureEndpoint:   cfg.AzureEndpoint,
		AzureAPIKey:     cfg.AzureAPIKey,
		AzureAPIVersion: cfg.AzureAPIVersion,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	case config.ProviderAzure:
		if opts.AzureAPIKey == "" || opts.AzureEndpoint == "" {
			return nil, fmt.Errorf("azure provider selected but AZURE_OPENAI_API_KEY or AZURE_OPENAI_ENDPOINT not set")
		}
		return NewAzureEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}
