package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"docqa/internal/config"
	"docqa/internal/index"
)

// RAGService is what the chat surfaces talk to: it owns the session memo,
// the credentials and the router.
type RAGService struct {
	manager *index.Manager
	session *index.Session
	creds   config.Credentials
	router  *Router
	logger  *zap.Logger

	mu  sync.RWMutex
	idx *index.Index
}

func NewRAGService(cfg *config.AppConfig, creds config.Credentials, logger *zap.Logger) *RAGService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		manager: index.NewManager(cfg, logger),
		session: index.NewSession(),
		creds:   creds,
		router:  NewRouter(logger),
		logger:  logger,
	}
}

// Initialize loads or builds the index and returns the status line. The
// status is meaningful even when err is non-nil.
func (s *RAGService) Initialize(ctx context.Context) (string, error) {
	idx, status, err := s.manager.Initialize(ctx, s.session, s.creds)
	return s.finish(idx, status, err)
}

// Rebuild discards the stored index and builds a new one from the documents directory.
func (s *RAGService) Rebuild(ctx context.Context) (string, error) {
	idx, status, err := s.manager.Rebuild(ctx, s.session, s.creds)
	return s.finish(idx, status, err)
}

func (s *RAGService) finish(idx *index.Index, status string, err error) (string, error) {
	if err != nil {
		s.logger.Warn("index not ready", zap.String("status", status), zap.Error(err))
		return status, err
	}
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	s.logger.Info("index ready", zap.String("status", status), zap.Int("nodes", idx.Len()))
	return status, nil
}

// Ready reports whether an index is available for questions.
func (s *RAGService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx != nil
}

// Ask answers one question. It never fails; errors come back as text.
func (s *RAGService) Ask(ctx context.Context, question string) string {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	return s.router.Query(ctx, idx, question)
}
