// Package word extracts paragraph text from .docx archives by walking
// word/document.xml directly.
package word

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

const documentEntry = "word/document.xml"

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) ([]domain.TextSection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == documentEntry {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename,
			errors.New("archive has no word/document.xml"))
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename, err)
	}
	defer rc.Close()

	text, err := decodeDocument(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename, err)
	}
	if text == "" {
		return nil, domain.WrapError(domain.ErrCouldNotExtract, filename,
			errors.New("document has no text"))
	}

	return []domain.TextSection{{Label: "documento", Text: text}}, nil
}

// decodeDocument walks the WordprocessingML token stream: w:t carries text,
// w:tab and w:br are whitespace, the end of w:p closes a paragraph.
func decodeDocument(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return "", err
				}
				b.WriteString(s)
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}
