package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docqa/internal/config"
	"docqa/internal/domain"
)

// offlineConfig uses the local embedder and extractive generator so no
// credentials or network are needed.
func offlineConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	root := t.TempDir()
	cfg, err := config.Load(filepath.Join(root, "missing.yaml"))
	require.NoError(t, err)
	cfg.DataDir = filepath.Join(root, "data")
	cfg.StorageDir = filepath.Join(root, "storage")
	cfg.LLM.Type = "extractive"
	cfg.Embedder = config.EmbedderConfig{Type: "local"}
	return cfg
}

func writeDocs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestInitialize_MissingDataDirectoryIsCreated(t *testing.T) {
	cfg := offlineConfig(t)
	m := NewManager(cfg, zap.NewNop())

	idx, status, err := m.Initialize(context.Background(), NewSession(), config.Credentials{})
	assert.Nil(t, idx)
	assert.ErrorIs(t, err, domain.ErrNoDataDirectory)
	assert.Equal(t, "Please add documents to the 'data' directory", status)
	assert.DirExists(t, cfg.DataDir)
	assert.NoDirExists(t, cfg.StorageDir)
}

func TestInitialize_EmptyDataDirectory(t *testing.T) {
	cfg := offlineConfig(t)
	writeDocs(t, cfg.DataDir, map[string]string{"image.png": "binary"})

	_, status, err := NewManager(cfg, nil).Initialize(context.Background(), NewSession(), config.Credentials{})
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
	assert.Equal(t, "No documents found in the 'data' directory", status)
	assert.NoDirExists(t, cfg.StorageDir)
}

func TestInitialize_BuildsThenMemoizes(t *testing.T) {
	cfg := offlineConfig(t)
	writeDocs(t, cfg.DataDir, map[string]string{
		"a.txt": "Solar panels convert sunlight into electricity.",
		"b.md":  "# Budget\nThe board approved the quarterly budget.",
	})
	m := NewManager(cfg, zap.NewNop())
	sess := NewSession()
	creds := config.Credentials{}

	idx, status, err := m.Initialize(context.Background(), sess, creds)
	require.NoError(t, err)
	assert.Equal(t, "Index created with 2 documents", status)
	assert.DirExists(t, cfg.StorageDir)

	again, status, err := m.Initialize(context.Background(), sess, creds)
	require.NoError(t, err)
	assert.Same(t, idx, again)
	assert.Equal(t, "Index created with 2 documents", status)
	assert.Equal(t, 1, sess.Len())
}

func TestInitialize_LoadsFromStorageWithoutDataDirectory(t *testing.T) {
	cfg := offlineConfig(t)
	writeDocs(t, cfg.DataDir, map[string]string{"a.txt": "Solar panels convert sunlight into electricity."})
	m := NewManager(cfg, zap.NewNop())

	_, _, err := m.Initialize(context.Background(), NewSession(), config.Credentials{})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(cfg.DataDir))

	idx, status, err := m.Initialize(context.Background(), NewSession(), config.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, StatusLoaded, status)
	assert.NoDirExists(t, cfg.DataDir)

	resp, err := idx.Query(context.Background(), "What do solar panels convert?")
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "sunlight")
}

func TestInitialize_NewCredentialsEvictPreviousIndex(t *testing.T) {
	cfg := offlineConfig(t)
	writeDocs(t, cfg.DataDir, map[string]string{"a.txt": "Some text."})
	m := NewManager(cfg, zap.NewNop())
	sess := NewSession()

	first, _, err := m.Initialize(context.Background(), sess, config.Credentials{LLMAPIKey: "one"})
	require.NoError(t, err)
	second, status, err := m.Initialize(context.Background(), sess, config.Credentials{LLMAPIKey: "two"})
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, StatusLoaded, status)
	assert.Equal(t, 1, sess.Len())
}

func TestInitialize_MissingCredentials(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.LLM.Type = "openai"
	writeDocs(t, cfg.DataDir, map[string]string{"a.txt": "Some text."})

	idx, status, err := NewManager(cfg, nil).Initialize(context.Background(), NewSession(), config.Credentials{})
	assert.Nil(t, idx)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Equal(t, "Please set the OPENAI_API_KEY environment variable to get started.", status)
	assert.NoDirExists(t, cfg.StorageDir)
}

func TestInitialize_CorruptStorage(t *testing.T) {
	cfg := offlineConfig(t)
	require.NoError(t, os.MkdirAll(cfg.StorageDir, 0o755))

	_, status, err := NewManager(cfg, nil).Initialize(context.Background(), NewSession(), config.Credentials{})
	assert.ErrorIs(t, err, domain.ErrCorruptIndexStorage)
	assert.Contains(t, status, "Error loading index")
}

func TestInitialize_DamagedStorageReportsStatus(t *testing.T) {
	cfg := offlineConfig(t)
	writeDocs(t, cfg.DataDir, map[string]string{"a.txt": "Alpha beta gamma.", "b.txt": "Delta epsilon."})
	m := NewManager(cfg, nil)
	_, _, err := m.Initialize(context.Background(), NewSession(), config.Credentials{})
	require.NoError(t, err)

	failures := 0
	damagePages(t, filepath.Join(cfg.StorageDir, "index.db"), func(off int) {
		var (
			status string
			err    error
		)
		require.NotPanics(t, func() {
			_, status, err = m.Initialize(context.Background(), NewSession(), config.Credentials{})
		}, "page at offset %d", off)
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrCorruptIndexStorage)
			assert.Contains(t, status, "Error loading index: ")
			failures++
		}
	})
	assert.Positive(t, failures)
}

func TestRebuild_ReplacesStoredIndex(t *testing.T) {
	cfg := offlineConfig(t)
	writeDocs(t, cfg.DataDir, map[string]string{"a.txt": "Alpha."})
	m := NewManager(cfg, zap.NewNop())
	sess := NewSession()

	first, _, err := m.Initialize(context.Background(), sess, config.Credentials{})
	require.NoError(t, err)
	writeDocs(t, cfg.DataDir, map[string]string{"b.txt": "Beta."})

	rebuilt, status, err := m.Rebuild(context.Background(), sess, config.Credentials{})
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.Equal(t, "Index created with 2 documents", status)
	assert.Equal(t, 2, rebuilt.Len())
}

func TestSession_Evict(t *testing.T) {
	sess := NewSession()
	sess.store(config.Credentials{LLMAPIKey: "k"}, sessionEntry{status: "x"})
	assert.Equal(t, 1, sess.Len())

	_, ok := sess.lookup(config.Credentials{LLMAPIKey: "k"})
	assert.True(t, ok)
	_, ok = sess.lookup(config.Credentials{LLMAPIKey: "other"})
	assert.False(t, ok)
	assert.Equal(t, 0, sess.Len())

	sess.store(config.Credentials{}, sessionEntry{})
	sess.Evict()
	assert.Equal(t, 0, sess.Len())
}
