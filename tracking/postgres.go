package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	return &PostgresStore{pool: pool, table: table}
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf("SELECT doc_id, fingerprint, status, updater_version, synced_at FROM %s", s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracking entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.DocID, &entry.Fingerprint, &entry.Status, &entry.UpdaterVersion, &entry.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan tracking row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking rows: %w", err)
	}

	return entries, nil
}

func (s *PostgresStore) Get(ctx context.Context, docID string) (Entry, bool, error) {
	query := fmt.Sprintf("SELECT doc_id, fingerprint, status, updater_version, synced_at FROM %s WHERE doc_id = $1", s.table)

	var entry Entry
	err := s.pool.QueryRow(ctx, query, docID).Scan(
		&entry.DocID, &entry.Fingerprint, &entry.Status, &entry.UpdaterVersion, &entry.SyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get tracking entry for %s: %w", docID, err)
	}

	return entry, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) error {
	query := fmt.Sprintf(`INSERT INTO %s (doc_id, fingerprint, status, updater_version, synced_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (doc_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			status = EXCLUDED.status,
			updater_version = EXCLUDED.updater_version,
			synced_at = NOW()`, s.table)

	if _, err := s.pool.Exec(ctx, query, entry.DocID, entry.Fingerprint, entry.Status, entry.UpdaterVersion); err != nil {
		return fmt.Errorf("upsert tracking entry for %s: %w", entry.DocID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, docID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, docID); err != nil {
		return fmt.Errorf("delete tracking entry for %s: %w", docID, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
