// Package sheettext flattens a whole workbook into tab-separated text,
// one section per sheet, for corpus assembly.
package sheettext

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) ([]domain.TextSection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename, err)
	}
	defer wb.Close()

	var sections []domain.TextSection
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		text := renderRows(rows)
		if text == "" {
			continue
		}
		sections = append(sections, domain.TextSection{
			Label: "planilha " + sheet,
			Text:  text,
		})
	}

	if len(sections) == 0 {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename,
			errors.New("workbook has no textual content"))
	}
	return sections, nil
}

func renderRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		line := strings.TrimRight(strings.Join(row, "\t"), "\t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
