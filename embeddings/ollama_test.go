package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaEmbedder(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		prompts = append(prompts, req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{
		OllamaHost: srv.URL,
		Model:      "nomic-embed-text",
		Dimension:  3,
	})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if len(prompts) != 2 || prompts[0] != "first" || prompts[1] != "second" {
		t.Errorf("unexpected prompts %v", prompts)
	}
	if vectors[0][1] != 0.2 {
		t.Errorf("unexpected vector %v", vectors[0])
	}
}

func TestOllamaEmbedderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "missing"})
	vectors, err := embedder.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatalf("expected an error for a non-2xx response, got %d vectors", len(vectors))
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected the API error body in the message, got %v", err)
	}
}

func TestOllamaEmbedderErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Error: "model is loading"})
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Model: "slow"})
	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected an error when the payload carries an error field")
	}
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.1, 0.2}})
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: srv.URL, Dimension: 3})
	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}
