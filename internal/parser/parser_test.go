package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docqa/internal/domain"
)

type page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
	MD   string `json:"md"`
}

// fakeService emulates the upload / poll / result protocol.
type fakeService struct {
	mu         sync.Mutex
	pages      map[string][]page // file name -> pages
	jobs       map[string]string // job id -> file name
	polls      map[string]int
	failStatus string // terminal status reported for every job, if set
	uploadCode int
	options    map[string]string
}

func newFakeService(pages map[string][]page) *fakeService {
	return &fakeService{
		pages: pages,
		jobs:  make(map[string]string),
		polls: make(map[string]int),
	}
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer llx-test" {
		http.Error(w, `{"detail":"Invalid API Key"}`, http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload":
		if f.uploadCode != 0 {
			http.Error(w, "boom", f.uploadCode)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.options = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			f.options[k] = v[0]
		}
		id := "job-" + hdr.Filename
		f.jobs[id] = hdr.Filename
		writeJSON(w, map[string]string{"id": id, "status": "PENDING"})
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/result/json"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/job/"), "/result/json")
		writeJSON(w, map[string]any{"pages": f.pages[f.jobs[id]]})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/job/"):
		id := strings.TrimPrefix(r.URL.Path, "/job/")
		f.polls[id]++
		status := "PENDING"
		if f.polls[id] > 1 {
			status = "SUCCESS"
			if f.failStatus != "" {
				status = f.failStatus
			}
		}
		writeJSON(w, map[string]string{"id": id, "status": status})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, url, key string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, APIKey: key, PollInterval: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], []byte("%PDF binary"), 0o644))
	}
	return paths
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}

func TestParse_SplitsPagesInInputOrder(t *testing.T) {
	svc := newFakeService(map[string][]page{
		"report.pdf": {
			{Page: 1, MD: "# Intro\nfirst page", Text: "Intro first page"},
			{Page: 2, MD: "", Text: "plain second page"},
			{Page: 3, MD: "  ", Text: ""},
		},
		"budget.xlsx": {{Page: 1, MD: "<table><tr><td>1</td></tr></table>"}},
	})
	srv := httptest.NewServer(svc)
	defer srv.Close()

	paths := writeFiles(t, "report.pdf", "budget.xlsx")
	recs, err := newTestClient(t, srv.URL, "llx-test").Parse(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, paths[0], recs[0].SourcePath)
	assert.Equal(t, "page 1", recs[0].Label)
	assert.Equal(t, "# Intro\nfirst page", recs[0].Text)
	assert.Equal(t, "page 2", recs[1].Label)
	assert.Equal(t, "plain second page", recs[1].Text)

	assert.Equal(t, paths[1], recs[2].SourcePath)
	assert.Equal(t, "sheet 1", recs[2].Label)
	assert.Equal(t, "advanced", recs[2].Metadata[domain.MetaExtractor])
	assert.Equal(t, "job-budget.xlsx", recs[2].Metadata["parse_job_id"])
	assert.Equal(t, "sheet 1", recs[2].Metadata[domain.MetaPageLabel])

	svc.mu.Lock()
	opts := svc.options
	svc.mu.Unlock()
	assert.Equal(t, "true", opts["high_res_ocr"])
	assert.Equal(t, "true", opts["adaptive_long_table"])
	assert.Equal(t, "true", opts["output_tables_as_HTML"])
	assert.Equal(t, "en", opts["language"])
}

func TestParse_BlankDocumentStillRepresented(t *testing.T) {
	srv := httptest.NewServer(newFakeService(map[string][]page{"scan.pdf": {}}))
	defer srv.Close()

	paths := writeFiles(t, "scan.pdf")
	recs, err := newTestClient(t, srv.URL, "llx-test").Parse(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Text)
	assert.Equal(t, paths[0], recs[0].SourcePath)
}

func TestParse_AuthFailureFailsBatch(t *testing.T) {
	srv := httptest.NewServer(newFakeService(nil))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, "wrong").Parse(context.Background(), writeFiles(t, "a.pdf", "b.docx"))

	var perr *domain.ParseServiceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "upload", perr.Op)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}

func TestParse_JobErrorFailsBatch(t *testing.T) {
	svc := newFakeService(map[string][]page{"a.pdf": {{Page: 1, MD: "x"}}})
	svc.failStatus = "ERROR"
	srv := httptest.NewServer(svc)
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, "llx-test").Parse(context.Background(), writeFiles(t, "a.pdf"))

	var perr *domain.ParseServiceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "poll", perr.Op)
	assert.Contains(t, err.Error(), "job error")
}

func TestParse_ServerErrorFailsBatch(t *testing.T) {
	svc := newFakeService(nil)
	svc.uploadCode = http.StatusBadGateway
	srv := httptest.NewServer(svc)
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, "llx-test").Parse(context.Background(), writeFiles(t, "a.pdf"))

	var perr *domain.ParseServiceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
}

func TestParse_UnreachableService(t *testing.T) {
	srv := httptest.NewServer(newFakeService(nil))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, "llx-test").Parse(context.Background(), writeFiles(t, "a.pdf"))

	var perr *domain.ParseServiceError
	assert.True(t, errors.As(err, &perr))
}

func TestParse_MissingFile(t *testing.T) {
	srv := httptest.NewServer(newFakeService(nil))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, "llx-test").Parse(context.Background(), []string{"/nonexistent/a.pdf"})

	var perr *domain.ParseServiceError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
