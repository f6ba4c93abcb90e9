package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docqa/internal/domain"
	"docqa/internal/extractor"
)

type stubParser struct {
	calls [][]string
	err   error
}

func (s *stubParser) Parse(_ context.Context, paths []string) ([]domain.DocumentRecord, error) {
	s.calls = append(s.calls, paths)
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.DocumentRecord
	for _, p := range paths {
		out = append(out, domain.NewDocumentRecord(p, "parsed "+filepath.Base(p), "page 1",
			map[string]any{domain.MetaExtractor: "advanced"}))
	}
	return out, nil
}

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want FileClass
	}{
		{"a.pdf", ComplexFormat},
		{"deck.PPTX", ComplexFormat},
		{"old.doc", ComplexFormat},
		{"sheet.xls", ComplexFormat},
		{"notes.txt", SimpleFormat},
		{"README.md", SimpleFormat},
		{"data.csv", SimpleFormat},
		{"page.html", SimpleFormat},
		{"feed.xml", SimpleFormat},
		{"x.json", SimpleFormat},
		{"image.png", Unsupported},
		{"Makefile", Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	l := New(extractor.New(), nil, zap.NewNop())
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "data"))
	assert.ErrorIs(t, err, domain.ErrNoDataDirectory)
}

func TestLoad_OnlyUnsupportedFiles(t *testing.T) {
	dir := writeDir(t, map[string]string{"photo.png": "\x89PNG", "archive.zip": "PK"})
	recs, err := New(extractor.New(), nil, zap.NewNop()).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoad_IgnoresSubdirectoriesAndHiddenFiles(t *testing.T) {
	dir := writeDir(t, map[string]string{"top.txt": "top level", ".secret.txt": "hidden"})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "inner.txt"), []byte("nested"), 0o644))

	recs, err := New(extractor.New(), nil, zap.NewNop()).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "top level", recs[0].Text)
}

func TestLoad_NoParserUsesExtractorForEverything(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"a.txt": "alpha notes",
		"b.pdf": "%PDF-1.4 readable fragment here",
	})
	logger, logs := observed(zap.WarnLevel)

	recs, err := New(extractor.New(), nil, logger).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// complex group comes first
	assert.Equal(t, filepath.Join(dir, "b.pdf"), recs[0].SourcePath)
	assert.Contains(t, recs[0].Text, "readable fragment")
	assert.Equal(t, "simple", recs[0].Metadata[domain.MetaExtractor])
	assert.Equal(t, "alpha notes", recs[1].Text)

	assert.Equal(t, 1, logs.FilterMessageSnippet("no parser credential").Len())
}

func TestLoad_ParserFailureFallsBackForWholeBatch(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"a.pdf":  "%PDF first document body",
		"b.docx": "not really a zip but has words",
		"c.md":   "# markdown",
	})
	p := &stubParser{err: &domain.ParseServiceError{Op: "upload", StatusCode: 401, Err: errors.New("invalid key")}}
	logger, logs := observed(zap.WarnLevel)

	recs, err := New(extractor.New(), p, logger).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, p.calls, 1)
	assert.Len(t, p.calls[0], 2)

	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, "simple", r.Metadata[domain.MetaExtractor])
	}
	assert.Equal(t, "# markdown", recs[2].Text)

	entries := logs.FilterMessageSnippet("advanced parsing failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(401), entries[0].ContextMap()["status"])
}

func TestLoad_ParserSuccess(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"report.pdf": "%PDF",
		"notes.txt":  "plain",
	})
	p := &stubParser{}

	recs, err := New(extractor.New(), p, zap.NewNop()).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "parsed report.pdf", recs[0].Text)
	assert.Equal(t, "page 1", recs[0].Label)
	assert.Equal(t, "plain", recs[1].Text)
}

func TestLoad_NoComplexFilesSkipsParser(t *testing.T) {
	dir := writeDir(t, map[string]string{"notes.txt": "plain"})
	p := &stubParser{}

	_, err := New(extractor.New(), p, zap.NewNop()).Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, p.calls)
}

func TestLoad_SkipsFilesThatFailExtraction(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"bad.json":  "{not json",
		"good.json": `{"a": 1}`,
	})
	logger, logs := observed(zap.WarnLevel)

	recs, err := New(extractor.New(), nil, logger).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(dir, "good.json"), recs[0].SourcePath)
	assert.Equal(t, 1, logs.FilterMessage("skipping file").Len())
}

func TestLoad_CancelledContext(t *testing.T) {
	dir := writeDir(t, map[string]string{"a.txt": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(extractor.New(), nil, zap.NewNop()).Load(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
