package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// Archive key prefixes, shared by ingestion and corpus assembly.
const (
	ArchivePrefixFichas     = "fichas_excel/"
	ArchivePrefixRelatorios = "relatorios_pdf/"

	localPlaceholderPrefix = "local_fichas_"

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// IngestFichasUseCase runs a spreadsheet batch through extraction, duplicate
// classification, archival and a single transactional insert. Files are
// processed strictly in sequence; one bad file never aborts the batch.
type IngestFichasUseCase struct {
	repo       ports.FichaRepository
	storage    ports.ObjectStorage
	extractor  ports.RecordExtractor
	classifier *DuplicateClassifier
	// events is optional; nil means the staleness capability is absent and
	// ingestion runs in degraded mode without announcements.
	events ports.EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

func NewIngestFichasUseCase(
	repo ports.FichaRepository,
	storage ports.ObjectStorage,
	extractor ports.RecordExtractor,
	classifier *DuplicateClassifier,
	events ports.EventPublisher,
	log *slog.Logger,
) *IngestFichasUseCase {
	return &IngestFichasUseCase{
		repo:       repo,
		storage:    storage,
		extractor:  extractor,
		classifier: classifier,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

// IngestBatch ingests uploaded spreadsheets and reports every outcome
// per file. Schema bootstrap failure and repository unavailability are fatal
// for the whole batch; everything else is a per-file outcome.
func (uc *IngestFichasUseCase) IngestBatch(ctx context.Context, files []domain.UploadFile) (*domain.IngestionReport, error) {
	report := &domain.IngestionReport{}
	if len(files) == 0 {
		return report, nil
	}

	if err := uc.repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure fichas schema: %w", err)
	}

	var accepted []domain.Ficha
	var acceptedFiles []domain.UploadFile

	for _, file := range files {
		uc.log.Info("processing ficha", "filename", file.Filename)

		ficha, err := uc.extractor.Extract(ctx, file.Data)
		if err != nil {
			uc.log.Warn("extraction failed", "filename", file.Filename, "error", err)
			report.Add(domain.FileOutcome{
				Filename: file.Filename,
				Status:   domain.FileExtractFailed,
				Reason:   err.Error(),
			})
			continue
		}

		ficha.DataUpload = uc.now().UTC()
		ficha.ArquivoS3 = ArchivePrefixFichas + file.Filename

		if err := ficha.ValidateGrades(); err != nil {
			report.Add(domain.FileOutcome{
				Filename: file.Filename,
				Status:   domain.FileRejected,
				Reason:   err.Error(),
				Codigo:   ficha.Codigo,
			})
			continue
		}

		dup, err := uc.classifier.IsDuplicate(ctx, ficha)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", file.Filename, err)
		}
		if !dup {
			dup = batchHasDuplicate(accepted, ficha)
		}
		if dup {
			uc.log.Info("duplicate ficha ignored", "filename", file.Filename, "codigo", ficha.Codigo)
			report.Add(domain.FileOutcome{
				Filename: file.Filename,
				Status:   domain.FileDuplicate,
				Codigo:   ficha.Codigo,
			})
			continue
		}

		accepted = append(accepted, *ficha)
		acceptedFiles = append(acceptedFiles, file)
	}

	uc.archiveAccepted(ctx, accepted, acceptedFiles)

	if len(accepted) > 0 {
		outcomes, err := uc.repo.InsertBatch(ctx, accepted)
		if err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
		for _, out := range outcomes {
			ficha := accepted[out.Index]
			file := acceptedFiles[out.Index]
			if out.SkippedDuplicate {
				report.Add(domain.FileOutcome{
					Filename: file.Filename,
					Status:   domain.FileDuplicate,
					Reason:   "rejected by storage uniqueness constraint",
					Codigo:   ficha.Codigo,
				})
				continue
			}
			report.Add(domain.FileOutcome{
				Filename:   file.Filename,
				Status:     domain.FileInserted,
				Codigo:     ficha.Codigo,
				ArchiveKey: ficha.ArquivoS3,
			})
		}
	}

	uc.announceStale(ctx, report.Inserted)
	return report, nil
}

// archiveAccepted stores each accepted file under its deterministic key.
// Object-store outage degrades that record to a local placeholder reference;
// the structured data still gets persisted.
func (uc *IngestFichasUseCase) archiveAccepted(ctx context.Context, accepted []domain.Ficha, files []domain.UploadFile) {
	for i := range accepted {
		err := uc.storage.Put(ctx, accepted[i].ArquivoS3, contentTypeXLSX, bytes.NewReader(files[i].Data))
		if err == nil {
			continue
		}
		uc.log.Warn("archival failed, keeping local reference",
			"filename", files[i].Filename, "error", err)
		accepted[i].ArquivoS3 = localPlaceholderPrefix + files[i].Filename
	}
}

func (uc *IngestFichasUseCase) announceStale(ctx context.Context, inserted int) {
	if inserted == 0 || uc.events == nil {
		return
	}
	if err := uc.events.PublishCorpusStale(ctx, inserted); err != nil {
		uc.log.Warn("corpus-stale publish failed", "error", err)
	}
}

// batchHasDuplicate catches repeats inside one batch before they reach the
// transactional insert, so same-batch collisions do not depend on the
// storage constraints alone.
func batchHasDuplicate(accepted []domain.Ficha, candidate *domain.Ficha) bool {
	for i := range accepted {
		if accepted[i].SameInspection(candidate) {
			return true
		}
		if candidate.ArquivoS3 != "" && accepted[i].ArquivoS3 == candidate.ArquivoS3 {
			return true
		}
	}
	return false
}
