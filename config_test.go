package legalrisk

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TopK != 3 || cfg.ExtractionTemperature != 0.1 || cfg.SynthesisTemperature != 0.1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ChunkMaxChars != 2048 || cfg.ChunkOverlap != 200 || cfg.RetrievalConcurrency != 4 {
		t.Errorf("unexpected chunk/retrieval defaults: %+v", cfg)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalrisk.yaml")
	data := `
db_path: /tmp/x.db
top_k: 5
chat:
  provider: openai
  model: gpt-4o-mini
synthesis_json_mode: true
server:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	want.DBPath = "/tmp/x.db"
	want.TopK = 5
	want.Chat.Provider = "openai"
	want.Chat.Model = "gpt-4o-mini"
	want.SynthesisJSONMode = true
	want.Server.Addr = ":9090"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalrisk.json")
	if err := os.WriteFile(path, []byte(`{"embedding_dim": 1536, "log": {"format": "json"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EmbeddingDim != 1536 || cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("top_k: [oops"), 0o644)
	ini := filepath.Join(dir, "cfg.ini")
	os.WriteFile(ini, []byte("x=1"), 0o644)

	if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad yaml err = %v", err)
	}
	if _, err := LoadConfig(ini); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ini err = %v", err)
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestApplyEnvLegalriskVars(t *testing.T) {
	t.Setenv("LEGALRISK_DB_PATH", "/data/lr.db")
	t.Setenv("LEGALRISK_CHAT_PROVIDER", "groq")
	t.Setenv("LEGALRISK_TOP_K", "7")
	t.Setenv("LEGALRISK_SYNTHESIS_TEMPERATURE", "0.3")
	t.Setenv("LEGALRISK_API_KEY", "secret")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.DBPath != "/data/lr.db" || cfg.Chat.Provider != "groq" || cfg.TopK != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SynthesisTemperature != 0.3 || cfg.Server.APIKey != "secret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Chat.APIKey != "gsk-test" {
		t.Errorf("chat api key = %q, want fallback from GROQ_API_KEY", cfg.Chat.APIKey)
	}
}

func TestApplyEnvAzureDeployments(t *testing.T) {
	t.Setenv("LLM_API_URL", "https://example.openai.azure.com")
	t.Setenv("LLM_DEPLOYMENT", "gpt-4o")
	t.Setenv("LLM_API_KEY", "k1")
	t.Setenv("EMBED_API_URL", "https://example.openai.azure.com")
	t.Setenv("EMBED_DEPLOYMENT", "text-embedding-3-large")
	t.Setenv("EMBED_API_KEY", "k2")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	want := LLMConfig{
		Provider:   "azure",
		Model:      "gpt-4o",
		BaseURL:    "https://example.openai.azure.com",
		APIKey:     "k1",
		APIVersion: "2024-12-01-preview",
		MaxRetries: 3,
	}
	if diff := cmp.Diff(want, cfg.Chat); diff != "" {
		t.Errorf("chat (-want +got):\n%s", diff)
	}
	if cfg.Embedding.Provider != "azure" || cfg.Embedding.APIVersion != "2024-02-01" || cfg.Embedding.APIKey != "k2" {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.EmbeddingDim != 3072 {
		t.Errorf("embedding dim = %d, want 3072", cfg.EmbeddingDim)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no chat provider", func(c *Config) { c.Chat.Provider = "" }},
		{"no embed provider", func(c *Config) { c.Embedding.Provider = "" }},
		{"zero top k", func(c *Config) { c.TopK = 0 }},
		{"zero dim", func(c *Config) { c.EmbeddingDim = 0 }},
		{"negative concurrency", func(c *Config) { c.RetrievalConcurrency = -1 }},
		{"negative retries", func(c *Config) { c.Chat.MaxRetries = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := Config{DBPath: "/x/y.db"}
	if got := cfg.resolveDBPath(); got != "/x/y.db" {
		t.Errorf("got %q", got)
	}
	cfg = Config{DBName: "alt", StorageDir: "local"}
	if got := cfg.resolveDBPath(); got != "alt.db" {
		t.Errorf("got %q", got)
	}
	cfg = Config{}
	if got := cfg.resolveDBPath(); !strings.HasSuffix(got, filepath.Join(".legalrisk", "legalrisk.db")) && got != "legalrisk.db" {
		t.Errorf("got %q", got)
	}
}
