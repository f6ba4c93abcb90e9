// Package llm selects the configured generation provider.
package llm

import (
	"fmt"
	"time"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/llm/extractive"
	"docqa/internal/llm/openai"
)

// New builds the generator named by cfg.Type.
func New(cfg config.LLMConfig, creds config.Credentials) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive":
		return extractive.New(extractive.DefaultMaxSentences), nil
	case "openai", "":
		return openai.NewClient(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      creds.LLMAPIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}
