package ports

import (
	"context"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

// FichaIngestor is the inbound contract for spreadsheet batch ingestion.
type FichaIngestor interface {
	IngestBatch(ctx context.Context, files []domain.UploadFile) (*domain.IngestionReport, error)
}

// ReportArchiver is the inbound contract for PDF-report batch archival.
type ReportArchiver interface {
	ArchiveReports(ctx context.Context, files []domain.UploadFile) (*domain.ArchiveReport, error)
}

// CorpusSource assembles the merged document corpus from all sources.
type CorpusSource interface {
	Assemble(ctx context.Context) ([]domain.CorpusDocument, error)
}

// ChatService builds retrieval sessions and answers questions against them.
type ChatService interface {
	StartSession(ctx context.Context) (*domain.ChatSession, error)
	Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
}

// ArchiveBrowser is the operator maintenance surface over archived files.
type ArchiveBrowser interface {
	ListObjects(ctx context.Context, prefix string, max int) ([]string, error)
	HeadObject(ctx context.Context, key string) (*domain.ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

// FichaAdmin is the inbound read/write model for stored records.
type FichaAdmin interface {
	List(ctx context.Context) ([]domain.Ficha, error)
	GetByID(ctx context.Context, id int64) (*domain.Ficha, error)
	Update(ctx context.Context, ficha domain.Ficha) error
	Delete(ctx context.Context, id int64) error
}
