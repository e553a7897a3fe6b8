// Package ficha extracts a structured inspection record from the fixed
// cell layout of an inspection spreadsheet.
package ficha

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

// Cell coordinates (row, col), zero-based, on the first sheet.
var cellMap = map[string][2]int{
	"concessionaria": {1, 1},
	"rodovia":        {4, 1},
	"obra":           {6, 1},
	"sentido":        {4, 5},
	"km":             {6, 5},
	"ic":             {10, 1},
	"uir":            {10, 3},
	"uie":            {10, 5},
	"data_inspecao":  {1, 13},
	"ano_inspecao":   {0, 1},
	"codigo":         {0, 13},
	"codigo_artesp":  {2, 13},
	"tipo_pav":       {4, 8},
	"estrutural":     {52, 8},
	"funcional":      {52, 10},
	"durabilidade":   {52, 12},
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"01-02-06",
	"1-2-06",
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the known cell positions from the first sheet. A workbook
// without a concessionária value is not an inspection ficha and is refused.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*domain.Ficha, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, "open workbook", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, "open workbook",
			errors.New("workbook has no sheets"))
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, "read sheet", err)
	}

	cell := func(field string) string {
		pos := cellMap[field]
		if pos[0] >= len(rows) {
			return ""
		}
		row := rows[pos[0]]
		if pos[1] >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos[1]])
	}

	ficha := &domain.Ficha{
		Concessionaria: cell("concessionaria"),
		Rodovia:        cell("rodovia"),
		Obra:           cell("obra"),
		Sentido:        cell("sentido"),
		KM:             cell("km"),
		IC:             cell("ic"),
		UIR:            cell("uir"),
		UIE:            cell("uie"),
		Codigo:         cell("codigo"),
		CodigoARTESP:   cell("codigo_artesp"),
		TipoPav:        cell("tipo_pav"),
		Estrutural:     cell("estrutural"),
		Funcional:      cell("funcional"),
		Durabilidade:   cell("durabilidade"),
	}

	if ficha.Concessionaria == "" {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, "read ficha",
			errors.New("célula de concessionária vazia"))
	}

	if t, ok := parseDate(cell("data_inspecao")); ok {
		ficha.DataInspecao = &t
	}
	if y, ok := parseYear(cell("ano_inspecao")); ok {
		ficha.AnoInspecao = &y
	}

	return ficha, nil
}

// parseDate tries the layouts the spreadsheets actually produce. An
// unparseable value leaves the field absent rather than failing the file.
func parseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseYear accepts both integer and float renderings of the year cell.
func parseYear(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	y := int(f)
	if y < 1900 || y > 2200 {
		return 0, false
	}
	return y, true
}
