// Package ingestion implements the incremental sync pipeline: diff the
// source snapshot against tracked state, then chunk, embed and index the
// documents that changed. Failures are isolated per document so one broken
// file never aborts a run.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fabfab/docs-assistant/chunker"
	"github.com/fabfab/docs-assistant/source"
	"github.com/fabfab/docs-assistant/tracking"
	"github.com/fabfab/docs-assistant/vectorstore"
)

// UpdaterVersion is the pipeline epoch. Bumping it invalidates every tracked
// fingerprint and forces a full reindex on the next sync, which is how
// chunking or embedding changes are rolled out.
const UpdaterVersion = "2"

// Report summarises one sync run.
type Report struct {
	Skipped  int
	Updated  int
	Deleted  int
	Failed   int
	Failures []string
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Engine struct {
	source      source.Source
	chunker     *chunker.Chunker
	embedder    Embedder
	index       vectorstore.Index
	store       tracking.Store
	logger      *log.Logger
	concurrency int

	// docLocks serialises work on a single document identity across
	// overlapping runs.
	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

type Options struct {
	Source      source.Source
	Chunker     *chunker.Chunker
	Embedder    Embedder
	Index       vectorstore.Index
	Store       tracking.Store
	Logger      *log.Logger
	Concurrency int
}

func NewEngine(opts Options) *Engine {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	ch := opts.Chunker
	if ch == nil {
		ch = chunker.New(chunker.DefaultTargetSize, chunker.DefaultOverlap)
	}

	return &Engine{
		source:      opts.Source,
		chunker:     ch,
		embedder:    opts.Embedder,
		index:       opts.Index,
		store:       opts.Store,
		logger:      opts.Logger,
		concurrency: concurrency,
		docLocks:    make(map[string]*sync.Mutex),
	}
}

// Sync runs one incremental pass. A source fetch failure aborts the run
// before any state changes; per-document failures are recorded in the report
// and the document is retried on the next run.
func (e *Engine) Sync(ctx context.Context) (Report, error) {
	docs, err := e.source.Documents(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetch source documents: %w", err)
	}

	entries, err := e.store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list tracking entries: %w", err)
	}

	tracked := make(map[string]tracking.Entry, len(entries))
	for _, entry := range entries {
		tracked[entry.DocID] = entry
	}

	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.ID] = true
	}

	var report Report
	var reportMu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for _, doc := range docs {
		doc := doc
		entry, known := tracked[doc.ID]
		if known && entry.Status == tracking.StatusUpToDate &&
			entry.Fingerprint == doc.Fingerprint &&
			entry.UpdaterVersion == UpdaterVersion {
			report.Skipped++
			continue
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if err := e.reindex(groupCtx, doc); err != nil {
				e.logger.Printf("sync: document %s failed: %v", doc.ID, err)
				reportMu.Lock()
				report.Failed++
				report.Failures = append(report.Failures, doc.ID)
				reportMu.Unlock()
				return nil
			}
			reportMu.Lock()
			report.Updated++
			reportMu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return report, err
	}

	// Documents that vanished from the source are removed from both the
	// index and the tracking table.
	for _, entry := range entries {
		if present[entry.DocID] {
			continue
		}
		if err := e.remove(ctx, entry.DocID); err != nil {
			e.logger.Printf("sync: delete of %s failed: %v", entry.DocID, err)
			report.Failed++
			report.Failures = append(report.Failures, entry.DocID)
			continue
		}
		report.Deleted++
	}

	e.logger.Printf("sync: done skipped=%d updated=%d deleted=%d failed=%d",
		report.Skipped, report.Updated, report.Deleted, report.Failed)

	return report, nil
}

func (e *Engine) reindex(ctx context.Context, doc source.Document) error {
	lock := e.lockFor(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.store.Upsert(ctx, tracking.Entry{
		DocID:          doc.ID,
		Fingerprint:    doc.Fingerprint,
		Status:         tracking.StatusPending,
		UpdaterVersion: UpdaterVersion,
	}); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}

	chunks := e.chunker.Chunk(doc)
	if len(chunks) == 0 {
		// Nothing embeddable; clear any stale chunks and settle tracking.
		if err := e.index.DeleteByDoc(ctx, doc.ID); err != nil {
			return e.markFailed(ctx, doc, fmt.Errorf("delete stale chunks: %w", err))
		}
		return e.markUpToDate(ctx, doc)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return e.markFailed(ctx, doc, fmt.Errorf("embed chunks: %w", err))
	}
	if len(vectors) != len(chunks) {
		return e.markFailed(ctx, doc, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vectorstore.Record{
			DocID:      doc.ID,
			ChunkIndex: chunk.Ordinal,
			Content:    chunk.Content,
			Metadata:   chunk.Metadata,
			Embedding:  vectors[i],
		}
	}

	if err := e.index.Upsert(ctx, records); err != nil {
		return e.markFailed(ctx, doc, fmt.Errorf("upsert chunks: %w", err))
	}

	return e.markUpToDate(ctx, doc)
}

func (e *Engine) remove(ctx context.Context, docID string) error {
	lock := e.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.index.DeleteByDoc(ctx, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := e.store.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete tracking entry: %w", err)
	}
	return nil
}

func (e *Engine) markUpToDate(ctx context.Context, doc source.Document) error {
	if err := e.store.Upsert(ctx, tracking.Entry{
		DocID:          doc.ID,
		Fingerprint:    doc.Fingerprint,
		Status:         tracking.StatusUpToDate,
		UpdaterVersion: UpdaterVersion,
	}); err != nil {
		return fmt.Errorf("mark up-to-date: %w", err)
	}
	e.logger.Printf("sync: indexed %s", doc.ID)
	return nil
}

// markFailed records the failure in tracking and returns the cause so the
// caller can count it. A tracking write failure is attached to the cause.
func (e *Engine) markFailed(ctx context.Context, doc source.Document, cause error) error {
	if err := e.store.Upsert(ctx, tracking.Entry{
		DocID:          doc.ID,
		Fingerprint:    doc.Fingerprint,
		Status:         tracking.StatusFailed,
		UpdaterVersion: UpdaterVersion,
	}); err != nil {
		return fmt.Errorf("%w (and mark failed: %v)", cause, err)
	}
	return cause
}

func (e *Engine) lockFor(docID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.docLocks[docID]
	if !ok {
		lock = &sync.Mutex{}
		e.docLocks[docID] = lock
	}
	return lock
}
