package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend defaults. Models and temperature match the hosted setup the tool was tuned for.
const (
	DefaultDataDir        = "data"
	DefaultStorageDir     = "./storage"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultLLMModel       = "gpt-5-nano-2025-08-07"
	DefaultTemperature    = 0.1
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"
	DefaultParserBaseURL  = "https://api.cloud.llamaindex.ai/api/v1/parsing"
	DefaultParserKeyEnv   = "LLAMA_CLOUD_API_KEY"
	DefaultTopK           = 2
)

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	Type        string   `yaml:"type"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ParserConfig points at the remote document parsing service.
// Parsing options themselves are fixed and not configurable.
type ParserConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// RetrievalConfig configures the query path.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level"`
	Format      string   `yaml:"format"`
	OutputPaths []string `yaml:"output_paths"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir    string          `yaml:"data_dir"`
	StorageDir string          `yaml:"storage_dir"`
	LLM        LLMConfig       `yaml:"llm"`
	Embedder   EmbedderConfig  `yaml:"embedder"`
	Parser     ParserConfig    `yaml:"parser"`
	Chunker    ChunkerConfig   `yaml:"chunker"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Log        LogConfig       `yaml:"log"`
}

// Credentials are the secrets read from the environment. The value is
// comparable and is used as a cache key.
type Credentials struct {
	LLMAPIKey      string
	EmbedderAPIKey string
	ParserAPIKey   string
}

// MissingKeyEnv returns the name of the environment variable whose key a
// configured hosted provider needs but creds lacks, or "" when nothing is missing.
func (c *AppConfig) MissingKeyEnv(creds Credentials) string {
	if c.LLM.Type == "openai" && creds.LLMAPIKey == "" {
		return c.LLM.APIKeyEnv
	}
	if c.Embedder.Type == "openai" && c.Embedder.OpenAI != nil && creds.EmbedderAPIKey == "" {
		return c.Embedder.OpenAI.APIKeyEnv
	}
	return ""
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCredentials reads .env (if present) and then the configured key variables.
func LoadCredentials(cfg *AppConfig) Credentials {
	_ = godotenv.Load()
	creds := Credentials{
		LLMAPIKey:    os.Getenv(cfg.LLM.APIKeyEnv),
		ParserAPIKey: os.Getenv(cfg.Parser.APIKeyEnv),
	}
	if cfg.Embedder.OpenAI != nil {
		creds.EmbedderAPIKey = os.Getenv(cfg.Embedder.OpenAI.APIKeyEnv)
	}
	return creds
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM:       LLMConfig{Type: "openai"},
		Embedder:  EmbedderConfig{Type: "openai"},
		Chunker:   ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1},
		Retrieval: RetrievalConfig{TopK: DefaultTopK},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = DefaultStorageDir
	}
	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	// nil means unset; an explicit 0 is kept
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = DefaultOpenAIBaseURL
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = cfg.LLM.APIKeyEnv
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = DefaultEmbeddingModel
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Parser.BaseURL == "" {
		cfg.Parser.BaseURL = DefaultParserBaseURL
	}
	if cfg.Parser.APIKeyEnv == "" {
		cfg.Parser.APIKeyEnv = DefaultParserKeyEnv
	}
	if cfg.Parser.TimeoutSecs == 0 {
		cfg.Parser.TimeoutSecs = 60
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"docqa.log"}
	}
}
