package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
)

// CorpusAssembler merges three heterogeneous sources into one document
// corpus: persisted ficha records, archived reports (PDF or Word) and
// archived spreadsheets. A failing file or even a failing source is logged
// and skipped; the assembler always returns whatever the other sources
// yielded.
type CorpusAssembler struct {
	repo       ports.FichaRepository
	storage    ports.ObjectStorage
	extractors ports.ExtractorRegistry
	log        *slog.Logger
	maxPDFs    int
	maxSheets  int
}

func NewCorpusAssembler(
	repo ports.FichaRepository,
	storage ports.ObjectStorage,
	extractors ports.ExtractorRegistry,
	log *slog.Logger,
	maxPDFs, maxSheets int,
) *CorpusAssembler {
	if maxPDFs <= 0 {
		maxPDFs = 50
	}
	if maxSheets <= 0 {
		maxSheets = 200
	}
	return &CorpusAssembler{
		repo:       repo,
		storage:    storage,
		extractors: extractors,
		log:        log,
		maxPDFs:    maxPDFs,
		maxSheets:  maxSheets,
	}
}

// Assemble returns the corpus in source-major order: all record documents,
// then all PDF documents, then all spreadsheet documents.
func (a *CorpusAssembler) Assemble(ctx context.Context) ([]domain.CorpusDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var docs []domain.CorpusDocument
	docs = append(docs, a.recordDocuments(ctx)...)
	docs = append(docs, a.reportDocuments(ctx)...)
	docs = append(docs, a.sheetDocuments(ctx)...)
	return docs, nil
}

func (a *CorpusAssembler) recordDocuments(ctx context.Context) []domain.CorpusDocument {
	fichas, err := a.repo.List(ctx)
	if err != nil {
		a.log.Warn("corpus: record source unavailable", "error", err)
		return nil
	}

	docs := make([]domain.CorpusDocument, 0, len(fichas))
	for i := range fichas {
		docs = append(docs, domain.CorpusDocument{
			SourceID: "Ficha_Banco_" + codigoOrID(&fichas[i]),
			Kind:     domain.SourceRecord,
			Text:     RenderFichaText(&fichas[i]),
		})
	}
	return docs
}

// reportDocuments covers the report archive: PDFs and the occasional Word
// memo, dispatched by file kind.
func (a *CorpusAssembler) reportDocuments(ctx context.Context) []domain.CorpusDocument {
	keys, err := a.storage.List(ctx, ArchivePrefixRelatorios, a.maxPDFs)
	if err != nil {
		a.log.Warn("corpus: report listing failed", "error", err)
		return nil
	}

	var docs []domain.CorpusDocument
	for _, key := range keys {
		name := path.Base(key)
		kind, ok := domain.KindForFilename(name)
		if !ok {
			continue
		}
		textExtractor, ok := a.extractors.TextExtractor(kind)
		if !ok {
			a.log.Warn("corpus: no text extractor for report", "key", key, "kind", kind)
			continue
		}

		data, err := a.download(ctx, key)
		if err != nil {
			a.log.Warn("corpus: report download failed", "key", key, "error", err)
			continue
		}
		sections, err := textExtractor.Extract(ctx, name, data)
		if err != nil {
			a.log.Warn("corpus: report extraction failed", "key", key, "error", err)
			continue
		}
		text := joinSections(sections)
		if text == "" {
			continue
		}
		docs = append(docs, domain.CorpusDocument{
			SourceID: name,
			Kind:     domain.SourcePDF,
			Text:     text,
		})
	}
	return docs
}

// sheetDocuments renders each archived workbook through the record template;
// a workbook that is not a recognizable ficha still contributes its raw
// cell text through the sheet-to-text extractor.
func (a *CorpusAssembler) sheetDocuments(ctx context.Context) []domain.CorpusDocument {
	keys, err := a.storage.List(ctx, ArchivePrefixFichas, a.maxSheets)
	if err != nil {
		a.log.Warn("corpus: spreadsheet listing failed", "error", err)
		return nil
	}

	var docs []domain.CorpusDocument
	for _, key := range keys {
		name := path.Base(key)
		data, err := a.download(ctx, key)
		if err != nil {
			a.log.Warn("corpus: spreadsheet download failed", "key", key, "error", err)
			continue
		}
		text, ok := a.sheetText(ctx, key, name, data)
		if !ok {
			continue
		}
		docs = append(docs, domain.CorpusDocument{
			SourceID: name,
			Kind:     domain.SourceSheet,
			Text:     text,
		})
	}
	return docs
}

func (a *CorpusAssembler) sheetText(ctx context.Context, key, name string, data []byte) (string, bool) {
	if recordExtractor, ok := a.extractors.RecordExtractor(domain.KindSpreadsheet); ok {
		ficha, err := recordExtractor.Extract(ctx, data)
		if err == nil {
			return RenderFichaText(ficha), true
		}
		a.log.Warn("corpus: spreadsheet is not a ficha, using raw text", "key", key, "error", err)
	}

	textExtractor, ok := a.extractors.TextExtractor(domain.KindSpreadsheet)
	if !ok {
		return "", false
	}
	sections, err := textExtractor.Extract(ctx, name, data)
	if err != nil {
		a.log.Warn("corpus: spreadsheet extraction failed", "key", key, "error", err)
		return "", false
	}
	text := joinSections(sections)
	return text, text != ""
}

func (a *CorpusAssembler) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func codigoOrID(f *domain.Ficha) string {
	if f.Codigo != "" {
		return f.Codigo
	}
	return strconv.FormatInt(f.ID, 10)
}

func joinSections(sections []domain.TextSection) string {
	var b strings.Builder
	for _, s := range sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", s.Label, text)
	}
	return strings.TrimSpace(b.String())
}

// RenderFichaText renders a record as a fixed label/value template so the
// semantic index can match on any field name or value.
func RenderFichaText(f *domain.Ficha) string {
	var b strings.Builder
	b.WriteString("Ficha de Inspeção\n")
	writeField(&b, "Concessionária", f.Concessionaria)
	writeField(&b, "Rodovia", f.Rodovia)
	writeField(&b, "Obra", f.Obra)
	writeField(&b, "Sentido", f.Sentido)
	writeField(&b, "KM", f.KM)
	writeField(&b, "IC", f.IC)
	writeField(&b, "UIR", f.UIR)
	writeField(&b, "UIE", f.UIE)
	if f.DataInspecao != nil {
		writeField(&b, "Data da Inspeção", f.DataInspecao.Format("2006-01-02"))
	} else {
		writeField(&b, "Data da Inspeção", "")
	}
	if f.AnoInspecao != nil {
		writeField(&b, "Ano da Inspeção", strconv.Itoa(*f.AnoInspecao))
	} else {
		writeField(&b, "Ano da Inspeção", "")
	}
	writeField(&b, "Código", f.Codigo)
	writeField(&b, "Código ARTESP", f.CodigoARTESP)
	writeField(&b, "Tipo de Pavimento", f.TipoPav)
	writeField(&b, "Órgão Regulador", string(f.OrgaoRegulador))
	writeField(&b, "Classificação Estrutural", f.Estrutural)
	writeField(&b, "Classificação Funcional", f.Funcional)
	writeField(&b, "Classificação de Durabilidade", f.Durabilidade)
	writeField(&b, "Arquivo", f.ArquivoS3)
	if !f.DataUpload.IsZero() {
		writeField(&b, "Data de Upload", f.DataUpload.Format("2006-01-02"))
	}
	return strings.TrimSpace(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		value = "não informado"
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
