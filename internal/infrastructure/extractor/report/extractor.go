// Package report extracts plain text from inspection report PDFs, one
// section per page, capped at a configurable page count.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

const defaultMaxPages = 10

type Extractor struct {
	maxPages int
}

func NewExtractor(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Extractor{maxPages: maxPages}
}

// Extract returns one labelled section per extractable page. Pages that
// cannot be decoded are skipped; a report with zero extractable pages is
// an extraction failure.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (sections []domain.TextSection, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			sections = nil
			err = domain.WrapError(domain.ErrCouldNotExtract, filename,
				fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename, err)
	}

	total := reader.NumPage()
	limit := total
	if limit > e.maxPages {
		limit = e.maxPages
	}

	for p := 1; p <= limit; p++ {
		page := reader.Page(p)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sections = append(sections, domain.TextSection{
			Label: fmt.Sprintf("página %d", p),
			Text:  text,
		})
	}

	if len(sections) == 0 {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename,
			errors.New("no extractable text in any page"))
	}
	return sections, nil
}
