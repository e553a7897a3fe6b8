package ports

import (
	"context"
	"io"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

// InsertOutcome is the per-row result of a transactional batch insert.
type InsertOutcome struct {
	Index            int
	ID               int64
	SkippedDuplicate bool
}

// FichaRepository persists and reads inspection-sheet records. Uniqueness is
// ultimately enforced here, at the storage layer, so ingestion stays correct
// under concurrent sessions.
type FichaRepository interface {
	EnsureSchema(ctx context.Context) error
	// InsertBatch writes all records inside one transaction. A row that hits
	// a uniqueness constraint is skipped and reported, not fatal.
	InsertBatch(ctx context.Context, fichas []domain.Ficha) ([]InsertOutcome, error)
	ExistsByCodigoAndData(ctx context.Context, codigo string, data time.Time) (bool, error)
	ExistsByArquivo(ctx context.Context, arquivo string) (bool, error)
	List(ctx context.Context) ([]domain.Ficha, error)
	GetByID(ctx context.Context, id int64) (*domain.Ficha, error)
	Update(ctx context.Context, ficha domain.Ficha) error
	Delete(ctx context.Context, id int64) error
	CodigoInUseByOther(ctx context.Context, codigo string, id int64) (bool, error)
}

// ObjectStorage archives raw uploaded files under path-like keys.
type ObjectStorage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, contentType string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string, max int) ([]string, error)
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (*domain.ObjectInfo, error)
}

// RecordExtractor turns raw spreadsheet bytes into a structured ficha.
type RecordExtractor interface {
	Extract(ctx context.Context, data []byte) (*domain.Ficha, error)
}

// TextExtractor turns raw document bytes into provenance-tagged text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) ([]domain.TextSection, error)
}

// ExtractorRegistry maps a file kind to its extraction capability.
type ExtractorRegistry interface {
	RecordExtractor(kind domain.FileKind) (RecordExtractor, bool)
	TextExtractor(kind domain.FileKind) (TextExtractor, bool)
}

// Chunker splits text into bounded, overlapping segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for segments and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the external semantic index, session-scoped.
type VectorIndex interface {
	BuildSession(ctx context.Context, sessionID string, segments []domain.Segment, vectors [][]float32) error
	Search(ctx context.Context, sessionID string, queryVector []float32, limit int) ([]domain.RetrievedSegment, error)
	DropSession(ctx context.Context, sessionID string) error
}

// AnswerGenerator produces an answer constrained to the retrieved segments.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, segments []domain.RetrievedSegment) (string, error)
}

// EventPublisher announces that the persisted corpus changed. It is an
// optional capability: components that hold a nil publisher run in degraded
// mode without it, by explicit construction rather than a silent stub.
type EventPublisher interface {
	PublishCorpusStale(ctx context.Context, insertedRecords int) error
	Close()
}
