package legalrisk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/legalrisk/llm"
)

// Config holds all configuration for the legalrisk engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.legalrisk/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the database name used when DBPath is empty.
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database lives when DBPath is not set:
	// "home" (default) uses ~/.legalrisk/, "local" the working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// Model sampling. Both stages run near-deterministic by default.
	ExtractionTemperature float64 `json:"extraction_temperature" yaml:"extraction_temperature"`
	SynthesisTemperature  float64 `json:"synthesis_temperature" yaml:"synthesis_temperature"`
	MaxTokens             int     `json:"max_tokens" yaml:"max_tokens"`

	// SynthesisJSONMode requests a JSON object response from the
	// synthesis model. The answer is passed through unparsed either way.
	SynthesisJSONMode bool `json:"synthesis_json_mode" yaml:"synthesis_json_mode"`

	// Retrieval
	TopK                 int `json:"top_k" yaml:"top_k"`
	RetrievalConcurrency int `json:"retrieval_concurrency" yaml:"retrieval_concurrency"`

	// Chunking of ingested statutes, in characters.
	ChunkMaxChars int `json:"chunk_max_chars" yaml:"chunk_max_chars"`
	ChunkOverlap  int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	Log    LogConfig    `json:"log" yaml:"log"`
	Server ServerConfig `json:"server" yaml:"server"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // ollama, openai, azure, gemini, groq, custom
	Model      string `json:"model" yaml:"model"`       // deployment name for azure
	BaseURL    string `json:"base_url" yaml:"base_url"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`
}

func (c LLMConfig) provider() llm.Config {
	return llm.Config{
		Provider:   c.Provider,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		APIVersion: c.APIVersion,
		MaxRetries: c.MaxRetries,
	}
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `json:"addr" yaml:"addr"`
	APIKey      string `json:"api_key" yaml:"api_key"`           // empty disables auth
	CORSOrigins string `json:"cors_origins" yaml:"cors_origins"` // empty disables CORS headers
	MaxUploadMB int    `json:"max_upload_mb" yaml:"max_upload_mb"`
	// AnalyzeTimeoutSec bounds one analysis request; 0 means no limit.
	AnalyzeTimeoutSec int `json:"analyze_timeout_sec" yaml:"analyze_timeout_sec"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.legalrisk/legalrisk.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "legalrisk",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider:   "ollama",
			Model:      "llama3.1:8b",
			BaseURL:    "http://localhost:11434",
			MaxRetries: 3,
		},
		Embedding: LLMConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			MaxRetries: 3,
		},
		ExtractionTemperature: 0.1,
		SynthesisTemperature:  0.1,
		TopK:                  3,
		RetrievalConcurrency:  4,
		ChunkMaxChars:         2048,
		ChunkOverlap:          200,
		EmbeddingDim:          768,
		Log:                   LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:              ":8080",
			MaxUploadMB:       50,
			AnalyzeTimeoutSec: 600,
		},
	}
}

// LoadConfig reads a YAML or JSON file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: unsupported config file %s", ErrInvalidConfig, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// knownEmbeddingDims maps hosted embedding models to their output size.
var knownEmbeddingDims = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
}

// ApplyEnv overrides fields from the environment. LEGALRISK_* variables
// come first; LLM_* and EMBED_* configure Azure OpenAI deployments.
func (c *Config) ApplyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	setFloat := func(dst *float64, key string) {
		if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
			*dst = v
		}
	}

	// Azure deployments, as configured by the original .env files.
	if url := os.Getenv("LLM_API_URL"); url != "" {
		c.Chat.Provider = "azure"
		c.Chat.BaseURL = url
		c.Chat.APIVersion = llm.DefaultAzureAPIVersion
		setStr(&c.Chat.Model, "LLM_MODEL")
		setStr(&c.Chat.Model, "LLM_DEPLOYMENT")
		setStr(&c.Chat.APIKey, "LLM_API_KEY")
		setStr(&c.Chat.APIVersion, "LLM_API_VERSION")
	}
	if url := os.Getenv("EMBED_API_URL"); url != "" {
		c.Embedding.Provider = "azure"
		c.Embedding.BaseURL = url
		c.Embedding.APIVersion = "2024-02-01"
		setStr(&c.Embedding.Model, "EMBED_MODEL")
		setStr(&c.Embedding.Model, "EMBED_DEPLOYMENT")
		setStr(&c.Embedding.APIKey, "EMBED_API_KEY")
		setStr(&c.Embedding.APIVersion, "EMBED_API_VERSION")
		if dim, ok := knownEmbeddingDims[c.Embedding.Model]; ok {
			c.EmbeddingDim = dim
		}
	}

	setStr(&c.DBPath, "LEGALRISK_DB_PATH")
	setStr(&c.Chat.Provider, "LEGALRISK_CHAT_PROVIDER")
	setStr(&c.Chat.BaseURL, "LEGALRISK_CHAT_BASE_URL")
	setStr(&c.Chat.Model, "LEGALRISK_CHAT_MODEL")
	setStr(&c.Chat.APIKey, "LEGALRISK_CHAT_API_KEY")
	setStr(&c.Embedding.Provider, "LEGALRISK_EMBED_PROVIDER")
	setStr(&c.Embedding.BaseURL, "LEGALRISK_EMBED_BASE_URL")
	setStr(&c.Embedding.Model, "LEGALRISK_EMBED_MODEL")
	setStr(&c.Embedding.APIKey, "LEGALRISK_EMBED_API_KEY")
	setInt(&c.EmbeddingDim, "LEGALRISK_EMBEDDING_DIM")
	setInt(&c.TopK, "LEGALRISK_TOP_K")
	setInt(&c.RetrievalConcurrency, "LEGALRISK_RETRIEVAL_CONCURRENCY")
	setFloat(&c.ExtractionTemperature, "LEGALRISK_EXTRACTION_TEMPERATURE")
	setFloat(&c.SynthesisTemperature, "LEGALRISK_SYNTHESIS_TEMPERATURE")
	setStr(&c.Log.Level, "LEGALRISK_LOG_LEVEL")
	setStr(&c.Log.Format, "LEGALRISK_LOG_FORMAT")
	setStr(&c.Server.Addr, "LEGALRISK_ADDR")
	setStr(&c.Server.APIKey, "LEGALRISK_API_KEY")
	setStr(&c.Server.CORSOrigins, "LEGALRISK_CORS_ORIGINS")

	// Fallback: well-known provider variables for API keys.
	for _, l := range []*LLMConfig{&c.Chat, &c.Embedding} {
		if l.APIKey != "" {
			continue
		}
		switch l.Provider {
		case "openai":
			l.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			l.APIKey = os.Getenv("GROQ_API_KEY")
		case "gemini":
			l.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Chat.Provider == "":
		return fmt.Errorf("%w: chat provider is required", ErrInvalidConfig)
	case c.Embedding.Provider == "":
		return fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig)
	case c.TopK <= 0:
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	case c.EmbeddingDim <= 0:
		return fmt.Errorf("%w: embedding_dim must be positive, got %d", ErrInvalidConfig, c.EmbeddingDim)
	case c.RetrievalConcurrency < 0:
		return fmt.Errorf("%w: retrieval_concurrency must not be negative", ErrInvalidConfig)
	case c.Chat.MaxRetries < 0 || c.Embedding.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	case c.ChunkMaxChars < 0 || c.ChunkOverlap < 0:
		return fmt.Errorf("%w: chunk sizes must not be negative", ErrInvalidConfig)
	case c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "legalrisk"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".legalrisk", name+".db")
	}
}
