// Package config loads service configuration from the environment.
// All required values are validated once at startup; a missing required
// setting is a fatal configuration error, never a runtime one.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Provider identifiers shared by the embeddings and llm factories.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
)

// Source modes for the sync pipeline.
const (
	SourceFilesystem = "filesystem"
	SourceGitHub     = "github"
)

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMConfig struct {
	Provider string
	Model    string
}

type RerankerConfig struct {
	Enabled      bool
	CohereAPIKey string
	Model        string
	TopN         int
}

type SourceConfig struct {
	Mode string

	// Filesystem mode.
	DataDir string

	// GitHub repository mode.
	GitHubRepo  string // "owner/name"
	GitHubRef   string
	GitHubPath  string
	GitHubToken string

	// Base URL used to derive public doc links from source paths.
	WebBaseURL string
}

type Config struct {
	PostgresDSN     string
	DocsCollection  string
	TrackingTable   string
	HTTPAddr        string
	ProductName     string
	RetrievalTopK   int
	ContextBudget   int
	SyncInterval    time.Duration
	SyncConcurrency int

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	OllamaHost      string

	Embeddings EmbeddingConfig
	LLM        LLMConfig
	Reranker   RerankerConfig
	Source     SourceConfig
}

// identRe limits table names coming from the environment to plain SQL
// identifiers since they are interpolated into DDL and queries.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load reads the configuration from the environment and validates it.
// A value that fails to parse is a fatal configuration error, not a
// silent fallback to the default.
func Load() (Config, error) {
	env := &envReader{}
	cfg := Config{
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		DocsCollection:  getEnv("DOCS_COLLECTION", "docs_chunks"),
		TrackingTable:   getEnv("TRACKING_COLLECTION", "docs_tracking"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ProductName:     os.Getenv("PRODUCT_NAME"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureAPIVersion: getEnv("OPENAI_API_VERSION", "2025-01-01-preview"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: env.intValue("EMBEDDINGS_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o"),
		},
		Reranker: RerankerConfig{
			Enabled:      env.boolValue("RERANKER_ENABLED", false),
			CohereAPIKey: os.Getenv("COHERE_API_KEY"),
			Model:        getEnv("COHERE_MODEL", "rerank-english-v3.0"),
			TopN:         env.intValue("RERANK_TOP_N", 5),
		},
		Source: SourceConfig{
			Mode:        getEnv("DOC_SOURCE_MODE", SourceFilesystem),
			DataDir:     getEnv("DATA_DIR", "./data"),
			GitHubRepo:  os.Getenv("GITHUB_REPO"),
			GitHubRef:   getEnv("GITHUB_REF", "master"),
			GitHubPath:  os.Getenv("GITHUB_DOCS_PATH"),
			GitHubToken: os.Getenv("GITHUB_TOKEN"),
			WebBaseURL:  os.Getenv("WEB_BASE_URL"),
		},
		RetrievalTopK:   env.intValue("RETRIEVAL_TOP_K", 10),
		ContextBudget:   env.intValue("CONTEXT_BUDGET_CHARS", 24000),
		SyncInterval:    env.durationValue("SYNC_INTERVAL", 0),
		SyncConcurrency: env.intValue("SYNC_CONCURRENCY", 4),
	}

	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	if !identRe.MatchString(c.DocsCollection) {
		return fmt.Errorf("DOCS_COLLECTION %q is not a valid table name", c.DocsCollection)
	}
	if !identRe.MatchString(c.TrackingTable) {
		return fmt.Errorf("TRACKING_COLLECTION %q is not a valid table name", c.TrackingTable)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("EMBEDDINGS_DIMENSION must be positive")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if c.ContextBudget <= 0 {
		return fmt.Errorf("CONTEXT_BUDGET_CHARS must be positive")
	}
	if c.SyncConcurrency <= 0 {
		return fmt.Errorf("SYNC_CONCURRENCY must be positive")
	}

	switch c.Source.Mode {
	case SourceFilesystem:
		if c.Source.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for filesystem source mode")
		}
	case SourceGitHub:
		if c.Source.GitHubRepo == "" {
			return fmt.Errorf("GITHUB_REPO is required for github source mode")
		}
		if !strings.Contains(c.Source.GitHubRepo, "/") {
			return fmt.Errorf("GITHUB_REPO must be in owner/name form, got %q", c.Source.GitHubRepo)
		}
	default:
		return fmt.Errorf("unknown DOC_SOURCE_MODE: %s", c.Source.Mode)
	}

	switch c.Embeddings.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderOllama:
	default:
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER: %s", c.Embeddings.Provider)
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderOllama:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %s", c.LLM.Provider)
	}

	if c.Reranker.Enabled && c.Reranker.CohereAPIKey == "" {
		return fmt.Errorf("reranker enabled but COHERE_API_KEY not set")
	}
	if c.Reranker.Enabled && c.Reranker.TopN <= 0 {
		return fmt.Errorf("RERANK_TOP_N must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// envReader parses typed environment values, keeping the first parse
// failure so Load can report it.
type envReader struct {
	err error
}

func (r *envReader) intValue(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw, "an integer")
		return fallback
	}
	return value
}

func (r *envReader) boolValue(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, raw, "a boolean")
		return fallback
	}
	return value
}

func (r *envReader) durationValue(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, raw, "a duration")
		return fallback
	}
	return value
}

func (r *envReader) fail(key, raw, kind string) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %q is not %s", key, raw, kind)
	}
}
