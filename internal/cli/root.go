// Package cli wires configuration, logging and the RAG service into cobra commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docqa/internal/config"
	"docqa/internal/logging"
	"docqa/internal/service"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Chat with the documents in a local folder",
	Long: `docqa indexes the files in a documents folder (data/ by default) and answers
questions about them using retrieval-augmented generation.

The index is built on first run and stored on disk (./storage by default);
later runs load it from there. Use "docqa index --rebuild" after changing
the documents.

Credentials are read from the environment or a .env file:
  OPENAI_API_KEY       generation and embeddings
  LLAMA_CLOUD_API_KEY  optional, enables advanced parsing of PDF and Office files`,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/docqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// app is what every command needs once flags are parsed.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	svc    *service.RAGService
}

func newApp() (*app, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgFile == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := logging.New(cfg.Log)
	creds := config.LoadCredentials(cfg)
	logger.Debug("configuration loaded",
		zap.String("data_dir", cfg.DataDir),
		zap.String("storage_dir", cfg.StorageDir),
		zap.String("llm", cfg.LLM.Type),
		zap.String("embedder", cfg.Embedder.Type),
		zap.Bool("parser_enabled", creds.ParserAPIKey != ""))

	return &app{
		cfg:    cfg,
		logger: logger,
		svc:    service.NewRAGService(cfg, creds, logger),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
