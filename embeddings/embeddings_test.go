package embeddings

import (
	"testing"

	"github.com/fabfab/docs-assistant/config"
)

func TestNewEmbedderProviderSelection(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{
			name: "ollama needs no key",
			cfg: config.Config{
				Embeddings: config.EmbeddingConfig{Provider: config.ProviderOllama, Dimension: 768},
			},
		},
		{
			name: "openai without key",
			cfg: config.Config{
				Embeddings: config.EmbeddingConfig{Provider: config.ProviderOpenAI, Dimension: 1536},
			},
			wantErr: true,
		},
		{
			name: "openai with key",
			cfg: config.Config{
				OpenAIAPIKey: "sk-test",
				Embeddings:   config.EmbeddingConfig{Provider: config.ProviderOpenAI, Dimension: 1536},
			},
		},
		{
			name: "azure without endpoint",
			cfg: config.Config{
				AzureAPIKey: "key",
				Embeddings:  config.EmbeddingConfig{Provider: config.ProviderAzure, Dimension: 1536},
			},
			wantErr: true,
		},
		{
			name: "azure with endpoint and key",
			cfg: config.Config{
				AzureAPIKey:   "key",
				AzureEndpoint: "https://example.openai.azure.com",
				Embeddings:    config.EmbeddingConfig{Provider: config.ProviderAzure, Dimension: 1536},
			},
		},
		{
			name: "unknown provider",
			cfg: config.Config{
				Embeddings: config.EmbeddingConfig{Provider: "mystery"},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			embedder, err := NewEmbedder(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbedder: %v", err)
			}
			if embedder == nil {
				t.Fatal("expected an embedder")
			}
		})
	}
}
