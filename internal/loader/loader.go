// Package loader turns a flat documents directory into document records,
// choosing per file between the remote parser and the local extractor.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
)

// FileClass is the extraction route for a file, derived from its extension.
type FileClass int

const (
	Unsupported FileClass = iota
	SimpleFormat
	ComplexFormat
)

func (c FileClass) String() string {
	switch c {
	case SimpleFormat:
		return "simple"
	case ComplexFormat:
		return "complex"
	default:
		return "unsupported"
	}
}

var (
	complexExts = map[string]struct{}{
		".pdf": {}, ".docx": {}, ".pptx": {}, ".xlsx": {}, ".doc": {}, ".ppt": {}, ".xls": {},
	}
	simpleExts = map[string]struct{}{
		".txt": {}, ".md": {}, ".csv": {}, ".json": {}, ".html": {}, ".xml": {},
	}
)

// Classify maps a path to its FileClass by extension (case-insensitive).
func Classify(path string) FileClass {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := complexExts[ext]; ok {
		return ComplexFormat
	}
	if _, ok := simpleExts[ext]; ok {
		return SimpleFormat
	}
	return Unsupported
}

// Loader reads a documents directory.
type Loader struct {
	extractor domain.Extractor
	parser    domain.Parser
	logger    *zap.Logger
}

// New creates a Loader. parser may be nil, in which case complex formats go
// through the extractor as well.
func New(extractor domain.Extractor, parser domain.Parser, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{extractor: extractor, parser: parser, logger: logger}
}

// Load returns records for every supported file directly inside dir.
// Complex-format records come first, then simple-format records; each group
// keeps directory order. Ingestion failures degrade, they never fail the load.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.DocumentRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoDataDirectory, dir)
		}
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var complexPaths, simplePaths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch Classify(path) {
		case ComplexFormat:
			complexPaths = append(complexPaths, path)
		case SimpleFormat:
			simplePaths = append(simplePaths, path)
		default:
			l.logger.Debug("skipping unsupported file", zap.String("path", path))
		}
	}

	var out []domain.DocumentRecord
	if len(complexPaths) > 0 {
		out = append(out, l.loadComplex(ctx, complexPaths)...)
	}
	out = append(out, l.extractEach(ctx, simplePaths)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.logger.Info("documents loaded",
		zap.String("dir", dir),
		zap.Int("complex_files", len(complexPaths)),
		zap.Int("simple_files", len(simplePaths)),
		zap.Int("records", len(out)))
	return out, nil
}

// loadComplex sends the whole batch to the parser, falling back to the
// extractor for the entire batch when no parser is configured or it fails.
func (l *Loader) loadComplex(ctx context.Context, paths []string) []domain.DocumentRecord {
	if l.parser == nil {
		l.logger.Warn("no parser credential, extracting complex formats as plain text",
			zap.Int("files", len(paths)))
		return l.extractEach(ctx, paths)
	}

	recs, err := l.parser.Parse(ctx, paths)
	if err == nil {
		return recs
	}

	fields := []zap.Field{zap.Int("files", len(paths)), zap.Error(err)}
	var perr *domain.ParseServiceError
	if errors.As(err, &perr) {
		fields = append(fields, zap.String("op", perr.Op), zap.Int("status", perr.StatusCode))
	}
	l.logger.Warn("advanced parsing failed, falling back to simple extraction", fields...)
	return l.extractEach(ctx, paths)
}

// extractEach extracts files one at a time, skipping the ones that fail.
func (l *Loader) extractEach(ctx context.Context, paths []string) []domain.DocumentRecord {
	var out []domain.DocumentRecord
	for _, p := range paths {
		recs, err := l.extractor.Extract(ctx, p)
		if err != nil {
			l.logger.Warn("skipping file", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, recs...)
	}
	return out
}
