package domain

// FileStatus is the per-file outcome of an ingestion or archival batch.
type FileStatus string

const (
	FileInserted      FileStatus = "inserted"
	FileDuplicate     FileStatus = "duplicate"
	FileExtractFailed FileStatus = "extract_failed"
	FileRejected      FileStatus = "rejected"
	FileArchived      FileStatus = "archived"
	FileReused        FileStatus = "reused"
	FileArchiveFailed FileStatus = "archive_failed"
)

// FileOutcome reports what happened to a single uploaded file so the operator
// can act on each line item.
type FileOutcome struct {
	Filename   string     `json:"filename"`
	Status     FileStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	Codigo     string     `json:"codigo,omitempty"`
	ArchiveKey string     `json:"archive_key,omitempty"`
}

// IngestionReport aggregates a spreadsheet batch: counts plus per-file detail.
type IngestionReport struct {
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Files      []FileOutcome `json:"files"`
}

func (r *IngestionReport) Add(outcome FileOutcome) {
	switch outcome.Status {
	case FileInserted:
		r.Inserted++
	case FileDuplicate:
		r.Duplicates++
	default:
		r.Failed++
	}
	r.Files = append(r.Files, outcome)
}

// ArchiveReport aggregates a PDF-report batch.
type ArchiveReport struct {
	Archived int           `json:"archived"`
	Reused   int           `json:"reused"`
	Failed   int           `json:"failed"`
	Files    []FileOutcome `json:"files"`
}

func (r *ArchiveReport) Add(outcome FileOutcome) {
	switch outcome.Status {
	case FileArchived:
		r.Archived++
	case FileReused:
		r.Reused++
	default:
		r.Failed++
	}
	r.Files = append(r.Files, outcome)
}

// UploadFile is one file of an upload batch, already read into memory.
type UploadFile struct {
	Filename string
	Data     []byte
}
