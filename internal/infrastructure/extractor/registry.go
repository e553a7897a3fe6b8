// Package extractor maps file kinds to their record and text extractors.
package extractor

import (
	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

type Registry struct {
	records map[domain.FileKind]ports.RecordExtractor
	texts   map[domain.FileKind]ports.TextExtractor
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[domain.FileKind]ports.RecordExtractor),
		texts:   make(map[domain.FileKind]ports.TextExtractor),
	}
}

func (r *Registry) RegisterRecord(kind domain.FileKind, ex ports.RecordExtractor) {
	r.records[kind] = ex
}

func (r *Registry) RegisterText(kind domain.FileKind, ex ports.TextExtractor) {
	r.texts[kind] = ex
}

func (r *Registry) RecordExtractor(kind domain.FileKind) (ports.RecordExtractor, bool) {
	ex, ok := r.records[kind]
	return ex, ok
}

func (r *Registry) TextExtractor(kind domain.FileKind) (ports.TextExtractor, bool) {
	ex, ok := r.texts[kind]
	return ex, ok
}
