package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.MaxNeighbors != 50 {
		t.Errorf("expected MaxNeighbors=50, got %d", cfg.Index.MaxNeighbors)
	}
	if cfg.Retrieve.DefaultK != 5 {
		t.Errorf("expected DefaultK=5, got %d", cfg.Retrieve.DefaultK)
	}
	if cfg.Retrieve.AskK != 3 {
		t.Errorf("expected AskK=3, got %d", cfg.Retrieve.AskK)
	}
	if cfg.Eval.TestFraction != 0.2 || cfg.Eval.Seed != 42 || cfg.Eval.SearchK != 20 {
		t.Errorf("unexpected eval defaults: %+v", cfg.Eval)
	}
	if cfg.Embedding.Model != "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2" {
		t.Errorf("unexpected default model %q", cfg.Embedding.Model)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "qbank.yaml")

	content := `
index:
  max_neighbors: 10
embedding:
  provider: hash
  dimension: 64
  retry_delay: 2s
retrieve:
  default_k: 7
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.MaxNeighbors != 10 {
		t.Errorf("expected MaxNeighbors=10, got %d", cfg.Index.MaxNeighbors)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimension != 64 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Embedding.RetryDelay != 2*time.Second {
		t.Errorf("expected RetryDelay=2s, got %v", cfg.Embedding.RetryDelay)
	}
	if cfg.Retrieve.DefaultK != 7 {
		t.Errorf("expected DefaultK=7, got %d", cfg.Retrieve.DefaultK)
	}
	// untouched sections keep defaults
	if cfg.Retrieve.MaxK != 50 {
		t.Errorf("expected MaxK=50, got %d", cfg.Retrieve.MaxK)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "qbank.yaml")
	if err := os.WriteFile(configPath, []byte("index: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".qbank", "config.yaml")

	content := `
server:
  addr: ":9000"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected Addr=:9000, got %s", cfg.Server.Addr)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qbank.yaml")
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "openai"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Embedding.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", loaded.Embedding.Provider)
	}
}

func TestBundlePath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.BundlePath("/data/bank")
	expected := filepath.Join("/data/bank", ".qbank", "embeddings.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Index.BundlePath = "/var/lib/qbank/bundle.db"
	if got := cfg.BundlePath("/data/bank"); got != "/var/lib/qbank/bundle.db" {
		t.Errorf("expected absolute path kept, got %s", got)
	}
}

func TestDelimiterRune(t *testing.T) {
	if r := (CorpusConfig{}).DelimiterRune(); r != ',' {
		t.Errorf("expected comma default, got %q", r)
	}
	if r := (CorpusConfig{Delimiter: ";"}).DelimiterRune(); r != ';' {
		t.Errorf("expected semicolon, got %q", r)
	}
}
