package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fabfab/docs-assistant/api"
	"github.com/fabfab/docs-assistant/chat"
	"github.com/fabfab/docs-assistant/chunker"
	"github.com/fabfab/docs-assistant/config"
	"github.com/fabfab/docs-assistant/database"
	"github.com/fabfab/docs-assistant/embeddings"
	"github.com/fabfab/docs-assistant/ingestion"
	"github.com/fabfab/docs-assistant/llm"
	"github.com/fabfab/docs-assistant/rerank"
	"github.com/fabfab/docs-assistant/source"
	"github.com/fabfab/docs-assistant/tracking"
	"github.com/fabfab/docs-assistant/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "docs-assistant: ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("skipping .env: %v", err)
	}

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "sync":
		err = runSync(ctx, cfg, logger)
	default:
		logger.Fatalf("unknown command %q (expected serve or sync)", command)
	}
	if err != nil {
		logger.Fatalf("%s: %v", command, err)
	}
}

type app struct {
	pool    interface{ Close() }
	engine  *ingestion.Engine
	service *chat.Service
	server  *api.Server
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	if err := database.EnsureSchema(ctx, pool, cfg.DocsCollection, cfg.TrackingTable, cfg.Embeddings.Dimension); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	docSource, err := buildSource(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	index := vectorstore.NewPostgresIndex(pool, cfg.DocsCollection)
	store := tracking.NewPostgresStore(pool, cfg.TrackingTable)

	engine := ingestion.NewEngine(ingestion.Options{
		Source:      docSource,
		Chunker:     chunker.New(chunker.DefaultTargetSize, chunker.DefaultOverlap),
		Embedder:    embedder,
		Index:       index,
		Store:       store,
		Logger:      logger,
		Concurrency: cfg.SyncConcurrency,
	})

	var reranker rerank.Reranker = rerank.NoopReranker{}
	if cfg.Reranker.Enabled {
		reranker = rerank.NewCohereReranker(rerank.CohereOptions{
			APIKey: cfg.Reranker.CohereAPIKey,
			Model:  cfg.Reranker.Model,
			TopN:   cfg.Reranker.TopN,
		})
	}

	service := chat.NewService(chat.Options{
		Embedder:      embedder,
		Index:         index,
		Reranker:      reranker,
		LLM:           llmClient,
		Logger:        logger,
		TopK:          cfg.RetrievalTopK,
		ContextBudget: cfg.ContextBudget,
		ProductName:   cfg.ProductName,
	})

	server := api.NewServer(api.Options{
		Addr:    cfg.HTTPAddr,
		Service: service,
		Syncer:  engine,
		Pinger:  pool,
		Logger:  logger,
	})

	return &app{pool: pool, engine: engine, service: service, server: server}, nil
}

func buildSource(cfg config.Config) (source.Source, error) {
	switch cfg.Source.Mode {
	case config.SourceFilesystem:
		return source.NewFilesystemSource(cfg.Source.DataDir, cfg.Source.WebBaseURL), nil
	case config.SourceGitHub:
		return source.NewGitHubSource(source.GitHubOptions{
			Repo:       cfg.Source.GitHubRepo,
			Ref:        cfg.Source.GitHubRef,
			PathPrefix: cfg.Source.GitHubPath,
			Token:      cfg.Source.GitHubToken,
			WebBaseURL: cfg.Source.WebBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown source mode: %s", cfg.Source.Mode)
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	if cfg.SyncInterval > 0 {
		go runPeriodicSync(ctx, a.engine, cfg.SyncInterval, logger)
	}

	return a.server.Run(ctx)
}

func runSync(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	report, err := a.engine.Sync(ctx)
	if err != nil {
		return err
	}
	logger.Printf("sync report: skipped=%d updated=%d deleted=%d failed=%d",
		report.Skipped, report.Updated, report.Deleted, report.Failed)
	for _, docID := range report.Failures {
		logger.Printf("sync failure: %s", docID)
	}
	return nil
}

func runPeriodicSync(ctx context.Context, engine *ingestion.Engine, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Sync(ctx); err != nil {
				logger.Printf("periodic sync failed: %v", err)
			}
		}
	}
}
