// Package rerank reorders retrieved chunks by relevance to the question.
package rerank

import (
	"context"

	"github.com/fabfab/docs-assistant/vectorstore"
)

// Reranker returns a relevance-ordered subset of the candidate chunks. An
// implementation may return fewer chunks than it was given, never more.
type Reranker interface {
	Rerank(ctx context.Context, question string, chunks []vectorstore.ScoredChunk) ([]vectorstore.ScoredChunk, error)
}

// NoopReranker keeps the retrieval order untouched.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, chunks []vectorstore.ScoredChunk) ([]vectorstore.ScoredChunk, error) {
	return chunks, nil
}

var _ Reranker = NoopReranker{}
