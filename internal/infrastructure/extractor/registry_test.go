package extractor

import (
	"context"
	"testing"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

type stubRecordExtractor struct{}

func (stubRecordExtractor) Extract(context.Context, []byte) (*domain.Ficha, error) {
	return &domain.Ficha{}, nil
}

type stubTextExtractor struct{}

func (stubTextExtractor) Extract(context.Context, string, []byte) ([]domain.TextSection, error) {
	return nil, nil
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.RegisterRecord(domain.KindSpreadsheet, stubRecordExtractor{})
	r.RegisterText(domain.KindPDF, stubTextExtractor{})

	if _, ok := r.RecordExtractor(domain.KindSpreadsheet); !ok {
		t.Fatalf("registered record extractor not found")
	}
	if _, ok := r.RecordExtractor(domain.KindPDF); ok {
		t.Fatalf("unregistered kind must not resolve")
	}
	if _, ok := r.TextExtractor(domain.KindPDF); !ok {
		t.Fatalf("registered text extractor not found")
	}
	if _, ok := r.TextExtractor(domain.KindWord); ok {
		t.Fatalf("unregistered kind must not resolve")
	}
}
