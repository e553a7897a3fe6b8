package usecase

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// ArchiveReportsUseCase stores special-inspection reports (PDF, occasionally
// Word) in the object store under relatorios_pdf/. Archival is
// archive-then-reuse: a file whose exact key already exists is reused, never
// overwritten.
type ArchiveReportsUseCase struct {
	storage ports.ObjectStorage
	log     *slog.Logger
}

func NewArchiveReportsUseCase(storage ports.ObjectStorage, log *slog.Logger) *ArchiveReportsUseCase {
	return &ArchiveReportsUseCase{storage: storage, log: log}
}

func (uc *ArchiveReportsUseCase) ArchiveReports(ctx context.Context, files []domain.UploadFile) (*domain.ArchiveReport, error) {
	report := &domain.ArchiveReport{}

	for _, file := range files {
		uc.log.Info("processing relatorio", "filename", file.Filename, "bytes", len(file.Data))

		if len(file.Data) == 0 {
			report.Add(domain.FileOutcome{
				Filename: file.Filename,
				Status:   domain.FileArchiveFailed,
				Reason:   "empty file",
			})
			continue
		}

		key := ArchivePrefixRelatorios + file.Filename

		exists, err := uc.storage.Exists(ctx, key)
		if err != nil {
			report.Add(domain.FileOutcome{
				Filename: file.Filename,
				Status:   domain.FileArchiveFailed,
				Reason:   err.Error(),
			})
			continue
		}
		if exists {
			uc.log.Info("relatorio already archived, reusing", "key", key)
			report.Add(domain.FileOutcome{
				Filename:   file.Filename,
				Status:     domain.FileReused,
				ArchiveKey: key,
			})
			continue
		}

		if err := uc.storage.Put(ctx, key, reportContentType(file.Filename), bytes.NewReader(file.Data)); err != nil {
			report.Add(domain.FileOutcome{
				Filename: file.Filename,
				Status:   domain.FileArchiveFailed,
				Reason:   err.Error(),
			})
			continue
		}

		report.Add(domain.FileOutcome{
			Filename:   file.Filename,
			Status:     domain.FileArchived,
			ArchiveKey: key,
		})
	}

	return report, nil
}

func reportContentType(filename string) string {
	if kind, ok := domain.KindForFilename(filename); ok && kind == domain.KindWord {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/pdf"
}
