package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/index"
)

// EmptyResponse is returned when the generator produced only whitespace.
const EmptyResponse = "Empty Response"

const errorPrefix = "Error generating response: "

var errNoIndex = errors.New("index is not initialized")

// Router answers one question per call and never fails: errors are turned
// into assistant text.
type Router struct {
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger}
}

// Query asks idx a single time. The result is always a non-empty string.
func (r *Router) Query(ctx context.Context, idx *index.Index, question string) string {
	if idx == nil {
		r.logger.Error("query failed", zap.Error(errNoIndex))
		return errorPrefix + errNoIndex.Error()
	}
	resp, err := idx.Query(ctx, question)
	if err != nil {
		r.logger.Error("query failed", zap.String("question", question), zap.Error(err))
		return errorPrefix + err.Error()
	}
	if strings.TrimSpace(resp.Text) == "" {
		return EmptyResponse
	}
	sources := make([]string, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		sources = append(sources, s.Node.SourcePath)
	}
	r.logger.Info("query answered", zap.Strings("sources", sources))
	return resp.Text
}
