package domain

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Metadata keys attached to every record.
const (
	MetaFileName     = "file_name"
	MetaFilePath     = "file_path"
	MetaFileType     = "file_type"
	MetaFileSize     = "file_size"
	MetaLastModified = "last_modified_date"
	MetaExtractor    = "extractor"
	MetaPageLabel    = "page_label"
)

var contentTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".html": "text/html",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentType returns the MIME type for a supported file extension, or "".
func ContentType(path string) string {
	return contentTypes[strings.ToLower(filepath.Ext(path))]
}

// DocumentRecord is a unit of ingested content. Records are not modified
// after they are produced.
type DocumentRecord struct {
	ID         string
	Text       string
	SourcePath string
	Label      string
	Metadata   map[string]any
}

// NewDocumentRecord builds a record with a fresh ID and a private copy of meta.
func NewDocumentRecord(path, text, label string, meta map[string]any) DocumentRecord {
	m := CopyMetadata(meta)
	if m == nil {
		m = make(map[string]any)
	}
	if _, ok := m[MetaFileName]; !ok {
		m[MetaFileName] = filepath.Base(path)
	}
	if _, ok := m[MetaFilePath]; !ok {
		m[MetaFilePath] = path
	}
	if label != "" {
		m[MetaPageLabel] = label
	}
	return DocumentRecord{
		ID:         uuid.NewString(),
		Text:       text,
		SourcePath: path,
		Label:      label,
		Metadata:   m,
	}
}

// Node is a chunk of a record, the unit that is embedded and retrieved.
type Node struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	SourcePath string         `json:"source_path"`
	Label      string         `json:"label,omitempty"`
	Index      int            `json:"index"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchResult represents a matching node with a relevance score.
type SearchResult struct {
	Node  Node
	Score float64
}

// Role of a chat participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry of a session transcript.
type ChatTurn struct {
	Role Role
	Text string
}

// CopyMetadata creates a shallow copy of metadata.
func CopyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
