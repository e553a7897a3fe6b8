package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIngestFixture(repo *fakeRepo, storage *fakeStorage, extractor *fakeRecordExtractor, events ports.EventPublisher) *IngestFichasUseCase {
	uc := NewIngestFichasUseCase(repo, storage, extractor, NewDuplicateClassifier(repo), events, discardLogger())
	uc.now = func() time.Time { return time.Date(2026, 5, 21, 10, 0, 0, 0, time.UTC) }
	return uc
}

func TestIngestBatchInsertsAndArchivesNewFicha(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}
	uc := newIngestFixture(repo, storage, extractor, nil)

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if report.Inserted != 1 || report.Duplicates != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(repo.fichas) != 1 {
		t.Fatalf("expected 1 persisted ficha, got %d", len(repo.fichas))
	}
	got := repo.fichas[0]
	if got.ArquivoS3 != "fichas_excel/a.xlsx" {
		t.Fatalf("unexpected archive reference: %s", got.ArquivoS3)
	}
	if got.DataUpload.IsZero() {
		t.Fatalf("data_upload must be stamped at ingestion")
	}
	if _, ok := storage.objects["fichas_excel/a.xlsx"]; !ok {
		t.Fatalf("accepted file must be archived under its deterministic key")
	}
}

func TestIngestBatchIsIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}
	uc := newIngestFixture(repo, storage, extractor, nil)

	batch := []domain.UploadFile{{Filename: "a.xlsx", Data: []byte("xlsx-a")}}

	first, err := uc.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("first IngestBatch() error = %v", err)
	}
	second, err := uc.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("second IngestBatch() error = %v", err)
	}

	if first.Inserted != 1 {
		t.Fatalf("first run expected 1 insert, got %d", first.Inserted)
	}
	if second.Inserted != 0 || second.Duplicates != 1 {
		t.Fatalf("second run expected pure duplicate, got %+v", second)
	}
	if len(repo.fichas) != 1 {
		t.Fatalf("re-ingestion must not grow the table, got %d rows", len(repo.fichas))
	}
}

func TestIngestBatchDetectsReuploadUnderNewName(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		// No codigo and no date: only the archive-key rule can catch this.
		"xlsx-a": {Concessionaria: "CCR"},
	}}
	uc := newIngestFixture(repo, storage, extractor, nil)

	if _, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	}); err != nil {
		t.Fatalf("first IngestBatch() error = %v", err)
	}

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err != nil {
		t.Fatalf("second IngestBatch() error = %v", err)
	}
	if report.Duplicates != 1 {
		t.Fatalf("same filename re-upload must be a duplicate, got %+v", report)
	}
}

func TestIngestBatchContinuesPastExtractionFailure(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{
		byContent: map[string]*domain.Ficha{
			"xlsx-b": {Concessionaria: "CCR", Codigo: "OAE-002", DataInspecao: date(2024, 4, 1)},
		},
		errs: map[string]error{
			"broken": domain.WrapError(domain.ErrCouldNotExtract, "read ficha", errors.New("célula vazia")),
		},
	}
	uc := newIngestFixture(repo, storage, extractor, nil)

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "broken.xlsx", Data: []byte("broken")},
		{Filename: "b.xlsx", Data: []byte("xlsx-b")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if report.Failed != 1 || report.Inserted != 1 {
		t.Fatalf("one bad file must not abort the batch: %+v", report)
	}
	if report.Files[0].Status != domain.FileExtractFailed {
		t.Fatalf("expected extract_failed for first file, got %s", report.Files[0].Status)
	}
}

func TestIngestBatchRejectsOutOfScaleGrade(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {
			Concessionaria: "CCR",
			Codigo:         "OAE-001",
			OrgaoRegulador: domain.OrgaoARTESP,
			Estrutural:     "Z9",
		},
	}}
	uc := newIngestFixture(repo, storage, extractor, nil)

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if report.Failed != 1 || report.Files[0].Status != domain.FileRejected {
		t.Fatalf("out-of-scale grade must reject the record: %+v", report)
	}
	if len(repo.fichas) != 0 {
		t.Fatalf("rejected record must not be persisted")
	}
}

func TestIngestBatchCatchesDuplicateInsideOneBatch(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
		"xlsx-b": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}
	uc := newIngestFixture(repo, storage, extractor, nil)

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
		{Filename: "b.xlsx", Data: []byte("xlsx-b")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if report.Inserted != 1 || report.Duplicates != 1 {
		t.Fatalf("same inspection twice in one batch: %+v", report)
	}
}

func TestIngestBatchDegradesToLocalReferenceWhenArchivalFails(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	storage.putErr = errors.New("object store down")
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}
	uc := newIngestFixture(repo, storage, extractor, nil)

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("archival outage must not block the structured insert: %+v", report)
	}
	if repo.fichas[0].ArquivoS3 != "local_fichas_a.xlsx" {
		t.Fatalf("expected local placeholder reference, got %s", repo.fichas[0].ArquivoS3)
	}
}

func TestIngestBatchFailsWhenSchemaBootstrapFails(t *testing.T) {
	repo := &fakeRepo{schemaErr: errors.New("ddl lock timeout")}
	uc := newIngestFixture(repo, newFakeStorage(), &fakeRecordExtractor{}, nil)

	_, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err == nil {
		t.Fatalf("schema bootstrap failure must be fatal for the batch")
	}
}

func TestIngestBatchReportsStorageConstraintDuplicate(t *testing.T) {
	// Pre-seeded row that the classifier cannot see as a duplicate (different
	// codigo, no matching arquivo) but that collides on the stored natural
	// key during insert.
	repo := &fakeRepo{fichas: []domain.Ficha{
		{ID: 1, Codigo: "OAE-001", DataInspecao: date(2024, 3, 15), ArquivoS3: "fichas_excel/z.xlsx"},
	}}
	repo.nextID = 1
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}

	// Force the classifier path to miss by dropping the stored row from the
	// existence checks but keeping it for the insert collision.
	classifier := NewDuplicateClassifier(&fakeRepo{})
	uc := NewIngestFichasUseCase(repo, storage, extractor, classifier, nil, discardLogger())

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if report.Duplicates != 1 {
		t.Fatalf("constraint-skipped row must be reported as duplicate: %+v", report)
	}
	if report.Files[0].Reason == "" {
		t.Fatalf("constraint duplicates carry a reason distinguishing them from classifier hits")
	}
}

func TestIngestBatchAnnouncesCorpusStale(t *testing.T) {
	repo := &fakeRepo{}
	storage := newFakeStorage()
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}
	events := &fakePublisher{}
	uc := NewIngestFichasUseCase(repo, storage, extractor, NewDuplicateClassifier(repo), events, discardLogger())

	if _, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	}); err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if len(events.published) != 1 || events.published[0] != 1 {
		t.Fatalf("expected one corpus-stale event for one insert, got %v", events.published)
	}

	// A pure-duplicate batch must stay silent.
	if _, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	}); err != nil {
		t.Fatalf("second IngestBatch() error = %v", err)
	}
	if len(events.published) != 1 {
		t.Fatalf("duplicate-only batch must not announce staleness, got %v", events.published)
	}
}

func TestIngestBatchRunsWithoutPublisher(t *testing.T) {
	repo := &fakeRepo{}
	extractor := &fakeRecordExtractor{byContent: map[string]*domain.Ficha{
		"xlsx-a": {Concessionaria: "CCR", Codigo: "OAE-001", DataInspecao: date(2024, 3, 15)},
	}}
	uc := NewIngestFichasUseCase(repo, newFakeStorage(), extractor, NewDuplicateClassifier(repo), nil, discardLogger())

	report, err := uc.IngestBatch(context.Background(), []domain.UploadFile{
		{Filename: "a.xlsx", Data: []byte("xlsx-a")},
	})
	if err != nil {
		t.Fatalf("nil publisher must mean degraded mode, not failure: %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
