package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/extractor"
	"docqa/internal/llm"
	"docqa/internal/loader"
	"docqa/internal/parser"
	"docqa/internal/vectorstore/bolt"
)

// Status lines reported for each initialization outcome.
const (
	StatusLoaded        = "Index loaded from storage"
	statusCreated       = "Index created with %d documents"
	statusAddDocuments  = "Please add documents to the '%s' directory"
	statusNoDocuments   = "No documents found in the '%s' directory"
	statusMissingKey    = "Please set the %s environment variable to get started."
	statusLoadFailed    = "Error loading index: %v"
	statusBuildFailed   = "Error creating index: %v"
	statusProviderError = "Error initializing providers: %v"
)

// Manager decides between loading a persisted index and building a new one.
type Manager struct {
	cfg    *config.AppConfig
	logger *zap.Logger
}

func NewManager(cfg *config.AppConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Initialize returns a ready index and a status line. If the storage
// directory exists the index is loaded and the documents directory is never
// read; otherwise documents are ingested and a new index is built and
// persisted. Successful results are memoized in sess per credential set.
func (m *Manager) Initialize(ctx context.Context, sess *Session, creds config.Credentials) (*Index, string, error) {
	if env := m.cfg.MissingKeyEnv(creds); env != "" {
		return nil, fmt.Sprintf(statusMissingKey, env), fmt.Errorf("%w: %s", domain.ErrMissingCredentials, env)
	}
	if e, ok := sess.lookup(creds); ok {
		return e.index, e.status, nil
	}

	gen, err := llm.New(m.cfg.LLM, creds)
	if err != nil {
		return nil, fmt.Sprintf(statusProviderError, err), err
	}
	emb, err := embedding.New(m.cfg.Embedder, creds)
	if err != nil {
		return nil, fmt.Sprintf(statusProviderError, err), err
	}

	opts, err := m.options()
	if err != nil {
		return nil, fmt.Sprintf(statusProviderError, err), err
	}
	if bolt.Exists(m.cfg.StorageDir) {
		idx, err := Load(ctx, m.cfg.StorageDir, gen, emb, opts)
		if err != nil {
			return nil, fmt.Sprintf(statusLoadFailed, err), err
		}
		sess.store(creds, sessionEntry{index: idx, status: StatusLoaded})
		return idx, StatusLoaded, nil
	}

	dataName := filepath.Base(m.cfg.DataDir)
	if _, err := os.Stat(m.cfg.DataDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(m.cfg.DataDir, 0o755); err != nil {
			m.logger.Warn("could not create data directory", zap.String("dir", m.cfg.DataDir), zap.Error(err))
		}
		return nil, fmt.Sprintf(statusAddDocuments, dataName), domain.ErrNoDataDirectory
	}

	p, err := m.parser(creds)
	if err != nil {
		return nil, fmt.Sprintf(statusProviderError, err), err
	}
	records, err := loader.New(extractor.New(), p, m.logger).Load(ctx, m.cfg.DataDir)
	if err != nil {
		if errors.Is(err, domain.ErrNoDataDirectory) {
			return nil, fmt.Sprintf(statusAddDocuments, dataName), err
		}
		return nil, fmt.Sprintf(statusBuildFailed, err), err
	}
	if len(records) == 0 {
		return nil, fmt.Sprintf(statusNoDocuments, dataName), domain.ErrEmptyCorpus
	}

	idx, err := Build(ctx, records, gen, emb, opts)
	if err != nil {
		return nil, fmt.Sprintf(statusBuildFailed, err), err
	}
	status := fmt.Sprintf(statusCreated, len(records))
	sess.store(creds, sessionEntry{index: idx, status: status})
	return idx, status, nil
}

// Rebuild discards the memoized and persisted index and initializes again.
func (m *Manager) Rebuild(ctx context.Context, sess *Session, creds config.Credentials) (*Index, string, error) {
	sess.Evict()
	if err := os.RemoveAll(m.cfg.StorageDir); err != nil {
		return nil, fmt.Sprintf(statusBuildFailed, err), fmt.Errorf("remove storage: %w", err)
	}
	m.logger.Info("storage removed for rebuild", zap.String("storage_dir", m.cfg.StorageDir))
	return m.Initialize(ctx, sess, creds)
}

func (m *Manager) options() (Options, error) {
	var ch domain.Chunker
	switch m.cfg.Chunker.Type {
	case "sentence", "":
		ch = chunker.NewSentenceChunker(m.cfg.Chunker.SentencesPerChunk, m.cfg.Chunker.OverlapSentences)
	default:
		return Options{}, fmt.Errorf("unknown chunker: %s", m.cfg.Chunker.Type)
	}
	batch := 0
	if m.cfg.Embedder.OpenAI != nil {
		batch = m.cfg.Embedder.OpenAI.BatchSize
	}
	return Options{
		StorageDir: m.cfg.StorageDir,
		BatchSize:  batch,
		TopK:       m.cfg.Retrieval.TopK,
		Chunker:    ch,
		Logger:     m.logger,
	}, nil
}

// parser returns nil when no parser credential is configured.
func (m *Manager) parser(creds config.Credentials) (domain.Parser, error) {
	if creds.ParserAPIKey == "" {
		return nil, nil
	}
	c, err := parser.NewClient(parser.Config{
		BaseURL: m.cfg.Parser.BaseURL,
		APIKey:  creds.ParserAPIKey,
		Timeout: time.Duration(m.cfg.Parser.TimeoutSecs) * time.Second,
	}, m.logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
