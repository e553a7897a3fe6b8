package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

func date(y, m, d int) *time.Time {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestIsDuplicateByCodigoAndData(t *testing.T) {
	repo := &fakeRepo{fichas: []domain.Ficha{
		{ID: 1, Codigo: "OAE-001", DataInspecao: date(2024, 3, 15), ArquivoS3: "fichas_excel/old.xlsx"},
	}}
	classifier := NewDuplicateClassifier(repo)

	candidate := &domain.Ficha{
		Codigo:       "OAE-001",
		DataInspecao: date(2024, 3, 15),
		ArquivoS3:    "fichas_excel/renamed.xlsx",
	}
	dup, err := classifier.IsDuplicate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Fatalf("same codigo and data must be a duplicate even under a new filename")
	}
}

func TestIsDuplicateByArquivoWhenSemanticKeyMissing(t *testing.T) {
	repo := &fakeRepo{fichas: []domain.Ficha{
		{ID: 1, ArquivoS3: "fichas_excel/a.xlsx"},
	}}
	classifier := NewDuplicateClassifier(repo)

	candidate := &domain.Ficha{ArquivoS3: "fichas_excel/a.xlsx"}
	dup, err := classifier.IsDuplicate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Fatalf("matching archive key must be a duplicate when the semantic key is absent")
	}
}

func TestDistinctRecordsAreNotDuplicates(t *testing.T) {
	repo := &fakeRepo{fichas: []domain.Ficha{
		{ID: 1, Codigo: "OAE-001", DataInspecao: date(2024, 3, 15), ArquivoS3: "fichas_excel/a.xlsx"},
	}}
	classifier := NewDuplicateClassifier(repo)

	cases := []*domain.Ficha{
		{Codigo: "OAE-002", DataInspecao: date(2024, 3, 15), ArquivoS3: "fichas_excel/b.xlsx"},
		{Codigo: "OAE-001", DataInspecao: date(2025, 3, 15), ArquivoS3: "fichas_excel/c.xlsx"},
		{ArquivoS3: "fichas_excel/d.xlsx"},
	}
	for i, candidate := range cases {
		dup, err := classifier.IsDuplicate(context.Background(), candidate)
		if err != nil {
			t.Fatalf("case %d: IsDuplicate() error = %v", i, err)
		}
		if dup {
			t.Fatalf("case %d: distinct record flagged as duplicate", i)
		}
	}
}

func TestIsDuplicateSurfacesRepositoryErrors(t *testing.T) {
	repo := &fakeRepo{existsErr: errors.New("db down")}
	classifier := NewDuplicateClassifier(repo)

	_, err := classifier.IsDuplicate(context.Background(), &domain.Ficha{
		Codigo:       "OAE-001",
		DataInspecao: date(2024, 3, 15),
	})
	if err == nil {
		t.Fatalf("expected repository error to surface")
	}
}
