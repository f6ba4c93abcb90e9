// Package extractor reads local files into document records without any
// remote service. Plain formats are read faithfully; binary office formats
// get a best-effort text rendition that may be empty or noisy.
package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"docqa/internal/domain"
)

// Ensure Extractor implements the interface.
var _ domain.Extractor = (*Extractor)(nil)

// minRunLength is the shortest printable run kept from binary content.
const minRunLength = 4

// Extractor extracts text from a single local file.
type Extractor struct {
	runner CommandRunner
}

// New creates an Extractor that uses pdftotext from PATH when available.
func New() *Extractor { return &Extractor{runner: execRunner{}} }

// NewWithRunner creates an Extractor that runs external tools through runner.
func NewWithRunner(runner CommandRunner) *Extractor { return &Extractor{runner: runner} }

// Extract reads path and returns its records. Any failure is an *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &domain.ExtractionError{Path: path, Err: errors.New("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	meta := map[string]any{
		domain.MetaFileType:     domain.ContentType(path),
		domain.MetaFileSize:     info.Size(),
		domain.MetaLastModified: info.ModTime().Format("2006-01-02"),
		domain.MetaExtractor:    "simple",
	}

	var text string
	switch ext {
	case ".txt", ".md":
		text = string(data)
	case ".csv":
		text, err = csvText(data)
	case ".json":
		text, err = jsonText(data)
	case ".html":
		if title := htmlTitle(string(data)); title != "" {
			meta["title"] = title
		}
		text = stripHTML(string(data))
	case ".xml":
		text, err = xmlText(data)
	case ".docx", ".pptx", ".xlsx":
		text, err = officeText(data, ext)
		if err != nil {
			// not a readable archive: degrade to raw text runs
			text, err = printableText(data), nil
		}
	case ".pdf":
		text = e.pdfText(ctx, path, data)
	default:
		text = printableText(data)
	}
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}

	return []domain.DocumentRecord{domain.NewDocumentRecord(path, text, "", meta)}, nil
}

// csvText renders each row as "column: value" pairs. The first row is the header.
func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	header := records[0]
	if len(records) == 1 {
		return strings.Join(header, ", "), nil
	}
	lines := make([]string, 0, len(records)-1)
	for _, row := range records[1:] {
		parts := make([]string, 0, len(row))
		for i, v := range row {
			col := fmt.Sprintf("column_%d", i+1)
			if i < len(header) && header[i] != "" {
				col = header[i]
			}
			parts = append(parts, col+": "+v)
		}
		lines = append(lines, strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n"), nil
}

func jsonText(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("parsing json: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// xmlText joins the non-blank character data of every element.
func xmlText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	var parts []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing xml: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if s := strings.TrimSpace(string(cd)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// printableText keeps runs of printable characters, the way strings(1) does.
func printableText(data []byte) string {
	var out []string
	var run strings.Builder
	runLen := 0
	flush := func() {
		if s := strings.TrimSpace(run.String()); runLen >= minRunLength && s != "" {
			out = append(out, s)
		}
		run.Reset()
		runLen = 0
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError || !(unicode.IsPrint(r) || r == '\t') {
			flush()
			continue
		}
		run.WriteRune(r)
		runLen++
	}
	flush()
	return strings.Join(out, "\n")
}
