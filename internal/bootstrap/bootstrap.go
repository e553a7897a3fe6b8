// Package bootstrap wires the dependency graph for the api process.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/engevia/fichas-inspecao/internal/config"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
	"github.com/engevia/fichas-inspecao/internal/core/usecase"
	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/chunking"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/extractor"
	fichaextractor "github.com/engevia/fichas-inspecao/internal/infrastructure/extractor/ficha"
	reportextractor "github.com/engevia/fichas-inspecao/internal/infrastructure/extractor/report"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/extractor/sheettext"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/extractor/word"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/llm/ollama"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/queue/nats"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/repository/postgres"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/resilience"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/storage/localfs"
	s3storage "github.com/engevia/fichas-inspecao/internal/infrastructure/storage/s3"
	"github.com/engevia/fichas-inspecao/internal/infrastructure/vector/qdrant"
	"github.com/engevia/fichas-inspecao/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Log     *slog.Logger
	Metrics *metrics.ServerMetrics

	Ingestor ports.FichaIngestor
	Archiver ports.ReportArchiver
	Admin    ports.FichaAdmin
	Browser  ports.ArchiveBrowser
	Chat     ports.ChatService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFichaRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig(), log)

	// The corpus-stale publisher is optional. A disabled or unreachable
	// broker leaves ingestion in degraded mode, never broken.
	var events ports.EventPublisher
	var publisher *nats.Publisher
	if cfg.NATSEnabled {
		publisher, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: exec,
			Logger:             log,
		})
		if err != nil {
			log.Warn("nats unavailable, running without corpus-stale events", "error", err)
		} else {
			events = publisher
		}
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, exec)
	generator := ollama.NewGenerator(ollamaClient, exec)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	recordExtractor := fichaextractor.NewExtractor()

	extractors := extractor.NewRegistry()
	extractors.RegisterRecord(domain.KindSpreadsheet, recordExtractor)
	extractors.RegisterText(domain.KindPDF, reportextractor.NewExtractor(cfg.PDFMaxPages))
	extractors.RegisterText(domain.KindSpreadsheet, sheettext.NewExtractor())
	extractors.RegisterText(domain.KindWord, word.NewExtractor())

	classifier := usecase.NewDuplicateClassifier(repo)
	ingestor := usecase.NewIngestFichasUseCase(repo, storage, recordExtractor, classifier, events, log)
	archiver := usecase.NewArchiveReportsUseCase(storage, log)
	corpus := usecase.NewCorpusAssembler(repo, storage, extractors, log, cfg.PDFMaxFiles, cfg.SheetMaxFiles)
	chat := usecase.NewChatUseCase(corpus, chunker, embedder, vectorIndex, generator, log, cfg.RAGTopK)
	admin := usecase.NewRecordsUseCase(repo)
	browser := usecase.NewArchiveBrowserUseCase(storage)

	return &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.NewServerMetrics("api"),

		Ingestor: ingestor,
		Archiver: archiver,
		Admin:    admin,
		Browser:  browser,
		Chat:     chat,

		closeFn: func() {
			if publisher != nil {
				publisher.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "s3":
		storage, err := s3storage.New(ctx, s3storage.Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return storage, nil
	case "localfs", "":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init localfs storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
