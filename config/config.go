// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig holds connection details for the embedding service.
type EmbeddingConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
	// APITokenEnv names the environment variable holding the API token.
	// The token itself never lives in the config file.
	APITokenEnv string `yaml:"api_token_env"`
}

// RetrievalConfig holds the search tuning knobs.
type RetrievalConfig struct {
	K              int     `yaml:"k"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	Alpha          float32 `yaml:"alpha"`
	Lambda         float32 `yaml:"lambda"`
	AutoDetect     bool    `yaml:"auto_detect_filters"`
}

// IngestionConfig holds the embedding pipeline settings.
type IngestionConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// CacheConfig holds the embedding cache settings.
type CacheConfig struct {
	// TTL expires cache entries after the given duration. Zero keeps
	// entries forever.
	TTL time.Duration `yaml:"ttl"`
}

// Config is the root application configuration.
type Config struct {
	// DataDir holds the index snapshot and the embedding cache.
	DataDir   string          `yaml:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Cache     CacheConfig     `yaml:"cache"`
}

// Load reads a config from the given path, applies defaults and environment
// overrides. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration, pointed at a local Ollama
// instance.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Embedding: EmbeddingConfig{
			Host:        "http://localhost:11434",
			Model:       "embeddinggemma",
			APITokenEnv: "LEXINDEX_API_TOKEN",
		},
		Retrieval: RetrievalConfig{
			K:              5,
			ScoreThreshold: 0.7,
			Alpha:          0.7,
			Lambda:         0.7,
			AutoDetect:     true,
		},
		Ingestion: IngestionConfig{},
		Cache:     CacheConfig{},
	}
}

// APIToken resolves the embedding API token from the environment.
// Returns "none" when unset, which OpenAI-compatible local services accept.
func (c *Config) APIToken() string {
	if c.Embedding.APITokenEnv == "" {
		return "none"
	}
	if token := os.Getenv(c.Embedding.APITokenEnv); token != "" {
		return token
	}
	return "none"
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.Retrieval.K < 1 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.Alpha < 0 || c.Retrieval.Alpha > 1 {
		return fmt.Errorf("retrieval.alpha must be in [0, 1], got %g", c.Retrieval.Alpha)
	}
	if c.Retrieval.Lambda < 0 || c.Retrieval.Lambda > 1 {
		return fmt.Errorf("retrieval.lambda must be in [0, 1], got %g", c.Retrieval.Lambda)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", c.Cache.TTL)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Embedding.Host == "" {
		cfg.Embedding.Host = def.Embedding.Host
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.APITokenEnv == "" {
		cfg.Embedding.APITokenEnv = def.Embedding.APITokenEnv
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = def.Retrieval.K
	}
	if cfg.Retrieval.ScoreThreshold == 0 {
		cfg.Retrieval.ScoreThreshold = def.Retrieval.ScoreThreshold
	}
	if cfg.Retrieval.Alpha == 0 {
		cfg.Retrieval.Alpha = def.Retrieval.Alpha
	}
	if cfg.Retrieval.Lambda == 0 {
		cfg.Retrieval.Lambda = def.Retrieval.Lambda
	}
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the file. Invalid numeric values are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEXINDEX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEXINDEX_EMBEDDING_HOST"); v != "" {
		cfg.Embedding.Host = v
	}
	if v := os.Getenv("LEXINDEX_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LEXINDEX_RETRIEVAL_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.K = k
		}
	}
	if v := os.Getenv("LEXINDEX_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.PoolSize = n
		}
	}
	if v := os.Getenv("LEXINDEX_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
}
