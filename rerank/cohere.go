package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fabfab/docs-assistant/vectorstore"
)

const defaultCohereBaseURL = "https://api.cohere.com"

type CohereOptions struct {
	APIKey  string
	Model   string
	TopN    int
	BaseURL string // overridable for tests
}

// CohereReranker calls the Cohere v2 rerank API.
type CohereReranker struct {
	apiKey  string
	model   string
	topN    int
	baseURL string
	client  *http.Client
}

type cohereRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message"`
}

func NewCohereReranker(opts CohereOptions) *CohereReranker {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultCohereBaseURL
	}

	return &CohereReranker{
		apiKey:  opts.APIKey,
		model:   opts.Model,
		topN:    opts.TopN,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (r *CohereReranker) Rerank(ctx context.Context, question string, chunks []vectorstore.ScoredChunk) ([]vectorstore.ScoredChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	topN := r.topN
	if topN <= 0 || topN > len(chunks) {
		topN = len(chunks)
	}

	docs := make([]string, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chunk.Content
	}

	reqBody, err := json.Marshal(cohereRequest{
		Model:     r.model,
		Query:     question,
		Documents: docs,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cohere request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v2/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create cohere request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call cohere rerank API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			return nil, fmt.Errorf("cohere rerank API error: %s", string(data))
		}
		return nil, fmt.Errorf("cohere rerank API returned status %s", resp.Status)
	}

	var payload cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cohere response: %w", err)
	}

	ranked := make([]vectorstore.ScoredChunk, 0, len(payload.Results))
	for _, result := range payload.Results {
		if result.Index < 0 || result.Index >= len(chunks) {
			return nil, fmt.Errorf("cohere result index %d out of range", result.Index)
		}
		hit := chunks[result.Index]
		hit.Score = result.RelevanceScore
		ranked = append(ranked, hit)
	}

	return ranked, nil
}

var _ Reranker = (*CohereReranker)(nil)
