// Package embedding selects the configured embedding provider.
package embedding

import (
	"fmt"
	"time"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/local"
	"docqa/internal/embedding/openai"
)

// New builds the embedder named by cfg.Type.
func New(cfg config.EmbedderConfig, creds config.Credentials) (domain.Embedder, error) {
	switch cfg.Type {
	case "local":
		return local.NewEmbedder(local.DefaultDimension), nil
	case "openai", "":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKey:    creds.EmbedderAPIKey,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.OpenAI.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
