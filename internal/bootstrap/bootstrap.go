// Package bootstrap wires configuration into the object graph shared by
// the API and worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kosarev-dev/docpipe/internal/config"
	"github.com/kosarev-dev/docpipe/internal/core/pipeline"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
	"github.com/kosarev-dev/docpipe/internal/core/usecase"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/cache/memory"
	redisCache "github.com/kosarev-dev/docpipe/internal/infrastructure/cache/redis"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/chunking"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/embedding"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/embedding/ollama"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/enrichment/ade"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/enrichment/simulated"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/extractor"
	pdfextract "github.com/kosarev-dev/docpipe/internal/infrastructure/extractor/pdf"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/extractor/plaintext"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/extractor/xlsx"
	memindex "github.com/kosarev-dev/docpipe/internal/infrastructure/index/memorystore"
	pgindex "github.com/kosarev-dev/docpipe/internal/infrastructure/index/postgres"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/queue/nats"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/repository/postgres"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/rerank"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/resilience"
	"github.com/kosarev-dev/docpipe/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  ports.DocumentIngestor
	ProcessUC *usecase.ProcessDocumentUseCase
	SearchUC  *usecase.SearchEngine
	ManageUC  ports.DocumentManager

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	cache, closeCache, err := buildCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	index, err := buildIndex(ctx, cfg, db)
	if err != nil {
		return nil, fmt.Errorf("init chunk index: %w", err)
	}

	embedder := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.OllamaMultimodalModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	batcher := embedding.NewBatcher(embedder, cache, embedding.BatcherOptions{
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.EmbedConcurrency,
		RateLimit:   rate.Limit(cfg.EmbedRateLimitPerSec),
		Burst:       cfg.EmbedBurst,
	}, log)

	var structure ports.StructureExtractor
	if cfg.ADEEnabled {
		structure = ade.New(cfg.ADEURL, ade.Options{
			Timeout:            time.Duration(cfg.ADETimeoutSeconds) * time.Second,
			ResilienceExecutor: executor,
		})
	} else {
		structure = simulated.New()
	}
	enricher := usecase.NewEnricher(structure, cfg.ADEMinElementLength, log)

	var reranker ports.Reranker
	if cfg.RerankEnabled {
		reranker = rerank.New(cfg.RerankURL, cfg.RerankModel,
			time.Duration(cfg.RerankTimeoutSeconds)*time.Second)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewDispatcher(
		plaintext.NewExtractor(storage),
		pdfextract.NewExtractor(storage),
		xlsx.NewExtractor(storage),
	)

	features := pipeline.Features{
		PDFConversion:       cfg.PDFConversionEnabled,
		MultimodalEmbedding: cfg.MultimodalEnabled,
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, log)
	processUC := usecase.NewProcessDocumentUseCase(
		repo, textExtractor, chunker, enricher, batcher, embedder, index, cache, features, log)
	processUC.SetEventPublisher(queue)
	searchUC := usecase.NewSearchEngine(embedder, index, reranker, cache, usecase.SearchEngineOptions{}, log)
	manageUC := usecase.NewManageDocumentUseCase(repo, index, queue, cache, features, log)

	return &App{
		Config: cfg,
		Log:    log,

		Queue: queue,
		Repo:  repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		SearchUC:  searchUC,
		ManageUC:  manageUC,

		closeFn: func() {
			queue.Close()
			if closeCache != nil {
				closeCache()
			}
			_ = db.Close()
		},
	}, nil
}

func buildCache(cfg config.Config) (ports.Cache, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		cache, err := redisCache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { _ = cache.Close() }, nil
	case "", "memory":
		cache := memory.New()
		return cache, cache.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func buildIndex(ctx context.Context, cfg config.Config, db *sql.DB) (ports.ChunkIndex, error) {
	switch cfg.IndexBackend {
	case "", "postgres":
		store := pgindex.NewStore(db, cfg.EmbeddingDimensions)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return memindex.New(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
