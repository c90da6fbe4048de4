package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"qbank/config"
)

// CurrentSchemaVersion is the current bundle layout version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// Meta describes a bundle. It is written to both files.
type Meta struct {
	SchemaVersion     int       `json:"schema_version"`
	BundleID          string    `json:"bundle_id"`
	ModelName         string    `json:"model_name"`
	Dimension         int       `json:"dimension"`
	Rows              int       `json:"rows"`
	MaxNeighbors      int       `json:"max_neighbors"`
	CreatedAt         time.Time `json:"created_at"`
	CorpusFingerprint string    `json:"corpus_fingerprint,omitempty"`
	ConfigHash        string    `json:"config_hash,omitempty"`
}

// ComputeConfigHash computes a hash of the configuration that shapes the
// embedding matrix and index. A change means the bundle must be rebuilt.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Provider     string `json:"provider"`
		Model        string `json:"model"`
		Dimension    int    `json:"dimension"`
		Ngram        int    `json:"ngram"`
		MaxNeighbors int    `json:"max_neighbors"`
	}{
		Provider:     cfg.Embedding.Provider,
		Model:        cfg.Embedding.Model,
		Dimension:    cfg.Embedding.Dimension,
		MaxNeighbors: cfg.Index.MaxNeighbors,
	}
	if cfg.Embedding.Provider == "hash" || cfg.Embedding.Provider == "mock" {
		relevant.Ngram = cfg.Embedding.Ngram
	}

	data, _ := json.Marshal(relevant)
	h, _ := blake2b.New(8, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StaleResult describes whether an existing bundle can be reused.
type StaleResult struct {
	NeedsRebuild bool
	OldVersion   int
	NewVersion   int
	Reason       string
}

// CheckStale compares bundle meta against the current configuration and,
// when fingerprint is non-empty, against the current corpus.
func CheckStale(meta Meta, cfg *config.Config, fingerprint string) StaleResult {
	result := StaleResult{
		OldVersion: meta.SchemaVersion,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case meta.SchemaVersion < CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", meta.SchemaVersion, CurrentSchemaVersion)
	case meta.SchemaVersion > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("bundle created by newer version (v%d > v%d)", meta.SchemaVersion, CurrentSchemaVersion)
	case meta.ConfigHash != "" && meta.ConfigHash != ComputeConfigHash(cfg):
		result.NeedsRebuild = true
		result.Reason = "index configuration changed"
	case fingerprint != "" && meta.CorpusFingerprint != "" && meta.CorpusFingerprint != fingerprint:
		result.NeedsRebuild = true
		result.Reason = "corpus changed"
	}

	return result
}
