// Package vectorstore persists embedded chunks and serves similarity search
// over them.
package vectorstore

import "context"

// Record is one embedded chunk ready for storage.
type Record struct {
	DocID      string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Embedding  []float32
}

// ScoredChunk is one retrieval hit. Score is a similarity in (0, 1] derived
// from the vector distance; higher means closer.
type ScoredChunk struct {
	DocID      string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Score      float64
}

type Index interface {
	// Upsert replaces the stored chunks for each document present in the
	// records, then inserts the new ones.
	Upsert(ctx context.Context, records []Record) error

	// DeleteByDoc removes every chunk belonging to the document.
	DeleteByDoc(ctx context.Context, docID string) error

	// Search returns the topK chunks nearest to the query embedding,
	// ordered by descending score.
	Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error)
}
