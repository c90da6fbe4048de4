package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the question bank engine.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Server    ServerConfig    `yaml:"server"`
	Eval      EvalConfig      `yaml:"eval"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig selects the CSV files that make up the question bank.
type CorpusConfig struct {
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
	Delimiter string   `yaml:"delimiter"`
}

// IndexConfig holds index and bundle configuration.
type IndexConfig struct {
	BundlePath   string `yaml:"bundle_path"` // relative paths resolve against the data directory
	MaxNeighbors int    `yaml:"max_neighbors"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "openai", "compatible", "ollama", "hash"
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	BaseURL    string        `yaml:"base_url"`
	Dimension  int           `yaml:"dimension"`
	BatchSize  int           `yaml:"batch_size"`
	Workers    int           `yaml:"workers"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Serialize  bool          `yaml:"serialize"` // set for providers that cannot take concurrent calls
	Ngram      int           `yaml:"ngram"`     // hash provider only
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	DefaultK  int           `yaml:"default_k"`
	AskK      int           `yaml:"ask_k"`
	MaxK      int           `yaml:"max_k"`
	AskMaxK   int           `yaml:"ask_max_k"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the query cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// EvalConfig holds evaluation harness configuration.
type EvalConfig struct {
	TestFraction float64 `yaml:"test_fraction"`
	Seed         int64   `yaml:"seed"`
	SearchK      int     `yaml:"search_k"`
	Workers      int     `yaml:"workers"`
	Examples     int     `yaml:"examples"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Includes:  []string{"**/*.csv"},
			Excludes:  []string{"**/.qbank/**", "**/.git/**"},
			Delimiter: ",",
		},
		Index: IndexConfig{
			BundlePath:   filepath.Join(".qbank", "embeddings.db"),
			MaxNeighbors: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:   "compatible",
			Model:      "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2",
			APIKeyEnv:  "EMBEDDING_API_KEY",
			BaseURL:    "http://localhost:8080/v1",
			Dimension:  384,
			BatchSize:  64,
			Workers:    4,
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
			Ngram:      3,
		},
		Retrieve: RetrieveConfig{
			DefaultK:  5,
			AskK:      3,
			MaxK:      50,
			AskMaxK:   10,
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			RequestTimeout: 60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Eval: EvalConfig{
			TestFraction: 0.2,
			Seed:         42,
			SearchK:      20,
			Workers:      4,
			Examples:     5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for qbank.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "qbank.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".qbank", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DelimiterRune returns the corpus field separator.
func (c CorpusConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}

// BundlePath returns the bundle location for a data directory.
func (c *Config) BundlePath(dir string) string {
	if filepath.IsAbs(c.Index.BundlePath) {
		return c.Index.BundlePath
	}
	return filepath.Join(dir, c.Index.BundlePath)
}

// EnsureDataDir ensures the .qbank directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".qbank"), 0755)
}
