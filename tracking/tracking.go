// Package tracking records per-document sync state so that unchanged
// documents can be skipped on later runs.
package tracking

import (
	"context"
	"time"
)

// Sync states for a tracked document.
const (
	StatusUpToDate = "up-to-date"
	StatusPending  = "pending"
	StatusFailed   = "failed"
)

// Entry is the tracked state of one source document.
type Entry struct {
	DocID          string
	Fingerprint    string
	Status         string
	UpdaterVersion string
	SyncedAt       time.Time
}

type Store interface {
	// List returns every tracked entry.
	List(ctx context.Context) ([]Entry, error)

	// Get returns the entry for the document, or ok=false when untracked.
	Get(ctx context.Context, docID string) (Entry, bool, error)

	// Upsert inserts or replaces the entry, stamping SyncedAt.
	Upsert(ctx context.Context, entry Entry) error

	// Delete removes the entry; deleting an untracked document is a no-op.
	Delete(ctx context.Context, docID string) error
}
