package kgraph

import (
	"os"
	"path/filepath"

	"github.com/brunobiangulo/kgraph/align"
	"github.com/brunobiangulo/kgraph/complete"
)

// Config holds all configuration for the knowledge-graph construction
// engine.
type Config struct {
	// DBPath is the full path to the SQLite graph-store database file.
	// If empty, defaults to ~/.kgraph/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName names the database file when DBPath is not set. Defaults to
	// "kgraph".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is not
	// explicitly set: "home" (default) uses ~/.kgraph/, "local" uses the
	// current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// UploadDir is where submitted files are staged for parsing.
	UploadDir string `json:"upload_dir" yaml:"upload_dir"`

	// Chat is the LLM provider used by the Entity and Relation Extractors.
	Chat LLMConfig `json:"chat" yaml:"chat"`

	// Workers is the size of the bounded worker pool executing submitted
	// jobs concurrently. Default 5.
	Workers int `json:"workers" yaml:"workers"`

	// ParseConcurrency bounds how many files within a single job are
	// parsed in parallel. Default 4.
	ParseConcurrency int `json:"parse_concurrency" yaml:"parse_concurrency"`

	// AlignThreshold is the Entity Aligner's similarity threshold τ.
	// Default 0.8.
	AlignThreshold float64 `json:"align_threshold" yaml:"align_threshold"`

	// SimHashHammingThreshold is the max Hamming distance (of 64 bits)
	// between two SimHash fingerprints for their source texts to be
	// considered near-duplicates. Default 3.
	SimHashHammingThreshold int `json:"simhash_hamming_threshold" yaml:"simhash_hamming_threshold"`

	// MinHashJaccardThreshold is the minimum estimated Jaccard similarity
	// for MinHash deduplication. Default 0.7.
	MinHashJaccardThreshold float64 `json:"minhash_jaccard_threshold" yaml:"minhash_jaccard_threshold"`

	// EnableCompletion turns on the optional TransE Completion stage for
	// every job; a job can also turn it on through its own
	// enable_completion flag.
	EnableCompletion bool `json:"enable_completion" yaml:"enable_completion"`

	// Completion holds TransE hyperparameters, used only when the
	// Completion stage runs.
	Completion complete.Params `json:"completion" yaml:"completion"`

	// UseLocalExtractionFallback shifts the process-wide default entity
	// and relation extraction strategy to the regex-bank variant, for
	// deployments without a configured Chat provider. A job can still
	// request the LLM variant explicitly via its algorithms selection.
	UseLocalExtractionFallback bool `json:"use_local_extraction_fallback" yaml:"use_local_extraction_fallback"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openrouter, xai, gemini, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference. The graph store is kept in ~/.kgraph/kgraph.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "kgraph",
		StorageDir: "home",
		UploadDir:  "uploads",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Workers:                 5,
		ParseConcurrency:        4,
		AlignThreshold:          align.DefaultThreshold,
		SimHashHammingThreshold: 3,
		MinHashJaccardThreshold: 0.7,
		EnableCompletion:        false,
		Completion:              complete.DefaultParams(),
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "kgraph"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		dir := filepath.Join(home, ".kgraph")
		return filepath.Join(dir, name+".db")
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Workers <= 0 {
		out.Workers = 5
	}
	if out.ParseConcurrency <= 0 {
		out.ParseConcurrency = 4
	}
	if out.AlignThreshold <= 0 {
		out.AlignThreshold = align.DefaultThreshold
	}
	if out.SimHashHammingThreshold <= 0 {
		out.SimHashHammingThreshold = 3
	}
	if out.MinHashJaccardThreshold <= 0 {
		out.MinHashJaccardThreshold = 0.7
	}
	if out.UploadDir == "" {
		out.UploadDir = "uploads"
	}
	return out
}
