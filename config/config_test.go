package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_DSN", "postgres://localhost/docs")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DocsCollection != "docs_chunks" {
		t.Errorf("unexpected docs collection %q", cfg.DocsCollection)
	}
	if cfg.TrackingTable != "docs_tracking" {
		t.Errorf("unexpected tracking table %q", cfg.TrackingTable)
	}
	if cfg.RetrievalTopK != 10 {
		t.Errorf("unexpected top-K %d", cfg.RetrievalTopK)
	}
	if cfg.ContextBudget != 24000 {
		t.Errorf("unexpected context budget %d", cfg.ContextBudget)
	}
	if cfg.SyncConcurrency != 4 {
		t.Errorf("unexpected sync concurrency %d", cfg.SyncConcurrency)
	}
	if cfg.Source.Mode != SourceFilesystem {
		t.Errorf("unexpected source mode %q", cfg.Source.Mode)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without POSTGRES_DSN")
	}
}

func TestLoadRejectsUnsafeTableNames(t *testing.T) {
	setRequired(t)
	t.Setenv("DOCS_COLLECTION", "docs; DROP TABLE users")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-identifier table name")
	}
}

func TestLoadGitHubModeRequiresRepo(t *testing.T) {
	setRequired(t)
	t.Setenv("DOC_SOURCE_MODE", SourceGitHub)
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without GITHUB_REPO")
	}

	t.Setenv("GITHUB_REPO", "not-a-repo")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a repo without owner/name form")
	}

	t.Setenv("GITHUB_REPO", "acme/docs")
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadRerankerRequiresKey(t *testing.T) {
	setRequired(t)
	t.Setenv("RERANKER_ENABLED", "true")
	t.Setenv("COHERE_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when the reranker is enabled without a key")
	}

	t.Setenv("COHERE_API_KEY", "key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Reranker.Enabled || cfg.Reranker.TopN != 5 {
		t.Errorf("unexpected reranker config %+v", cfg.Reranker)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"RETRIEVAL_TOP_K", "ten"},
		{"EMBEDDINGS_DIMENSION", "1536.0"},
		{"RERANKER_ENABLED", "yes please"},
		{"SYNC_INTERVAL", "daily"},
		{"SYNC_CONCURRENCY", "4x"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be a fatal configuration error", tc.key, tc.value)
			}
		})
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "mystery")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}
