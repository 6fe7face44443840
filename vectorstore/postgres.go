package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PostgresIndex stores chunks in a pgvector-backed table. The table name is
// validated at configuration load time.
type PostgresIndex struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresIndex(pool *pgxpool.Pool, table string) *PostgresIndex {
	return &PostgresIndex{pool: pool, table: table}
}

func (s *PostgresIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	seen := make(map[string]bool)
	for _, rec := range records {
		if seen[rec.DocID] {
			continue
		}
		seen[rec.DocID] = true
		query := fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", s.table)
		if _, err := tx.Exec(ctx, query, rec.DocID); err != nil {
			return fmt.Errorf("delete existing chunks for %s: %w", rec.DocID, err)
		}
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, doc_id, chunk_index, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, insert,
			uuid.NewString(), rec.DocID, rec.ChunkIndex, rec.Content, meta,
			pgvector.NewVector(rec.Embedding))
		if err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", rec.ChunkIndex, rec.DocID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert transaction: %w", err)
	}
	return nil
}

func (s *PostgresIndex) DeleteByDoc(ctx context.Context, docID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, docID); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	return nil
}

func (s *PostgresIndex) Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT doc_id, chunk_index, content, metadata, embedding <-> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var hits []ScoredChunk
	for rows.Next() {
		var hit ScoredChunk
		var meta []byte
		var distance float64
		if err := rows.Scan(&hit.DocID, &hit.ChunkIndex, &hit.Content, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		hit.Score = 1.0 / (1.0 + distance)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	return hits, nil
}

var _ Index = (*PostgresIndex)(nil)
