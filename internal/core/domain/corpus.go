package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// SourceKind tags where a corpus document came from.
type SourceKind string

const (
	SourceRecord SourceKind = "record"
	SourcePDF    SourceKind = "pdf"
	SourceSheet  SourceKind = "spreadsheet"
)

// CorpusDocument is an ephemeral block of text with provenance, produced
// fresh on every corpus-assembly pass and never persisted.
type CorpusDocument struct {
	SourceID string
	Kind     SourceKind
	Text     string
}

// Segment is one bounded slice of a corpus document after splitting. It
// inherits the parent document's provenance.
type Segment struct {
	SourceID   string
	Kind       SourceKind
	ChunkIndex int
	Text       string
}

// RetrievedSegment is a segment returned by the semantic index for a query.
type RetrievedSegment struct {
	SourceID string     `json:"source_id"`
	Kind     SourceKind `json:"kind"`
	Text     string     `json:"text"`
	Score    float64    `json:"score"`
}

// Answer is a generated reply plus the de-duplicated contributing sources.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// ChatSession tracks one built retrieval index over an assembled corpus.
type ChatSession struct {
	ID        string    `json:"id"`
	Documents int       `json:"documents"`
	Segments  int       `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
}

// TextSection is a provenance-tagged piece of extracted unstructured text,
// typically one page of a PDF or one sheet of a workbook.
type TextSection struct {
	Label string
	Text  string
}

// ObjectInfo is the metadata returned by an object-store head operation.
type ObjectInfo struct {
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
}

// FileKind tags an uploaded file for extractor dispatch.
type FileKind string

const (
	KindSpreadsheet FileKind = "spreadsheet"
	KindPDF         FileKind = "pdf"
	KindWord        FileKind = "word"
)

// KindForFilename classifies a file by extension.
func KindForFilename(name string) (FileKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xls", ".xlsx":
		return KindSpreadsheet, true
	case ".pdf":
		return KindPDF, true
	case ".doc", ".docx":
		return KindWord, true
	default:
		return "", false
	}
}
