// Package config provides configuration loading and structs for the medrag service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the path of the collection database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// KnowledgeConfig describes the knowledge-base directory.
type KnowledgeConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	PDFEnabled *bool    `yaml:"pdf_enabled"`
	Watch      bool     `yaml:"watch"`
	// DebounceMillis delays re-indexing after a file event.
	DebounceMillis int `yaml:"debounce_ms"`
}

// PDFEnabledOrDefault returns whether PDFs are indexed; defaults to true when unset.
func (k *KnowledgeConfig) PDFEnabledOrDefault() bool {
	if k.PDFEnabled != nil {
		return *k.PDFEnabled
	}
	return true
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "onnx", "openai" or "hash".
	Provider    string `yaml:"provider"`
	ModelID     string `yaml:"model_id"`
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	OutputName  string `yaml:"output_name"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`

	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"-"`
}

// RetrievalConfig holds retrieval, context and chunking settings.
type RetrievalConfig struct {
	Enabled        *bool   `yaml:"enabled"`
	CollectionName string  `yaml:"collection_name"`
	TopK           int     `yaml:"top_k"`
	MinRelevance   float64 `yaml:"min_relevance"`
	MaxChunks      int     `yaml:"max_chunks"`
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
}

// EnabledOrDefault returns whether retrieval is on; defaults to true when unset.
func (r *RetrievalConfig) EnabledOrDefault() bool {
	if r.Enabled != nil {
		return *r.Enabled
	}
	return true
}

// CacheConfig configures the shared Redis embedding cache. An empty RedisURL disables it.
type CacheConfig struct {
	RedisURL   string `yaml:"redis_url"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults. A missing file yields the defaults, with
// relative paths resolved against the file's directory.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	configDir := filepath.Dir(path)
	// .env next to the config file, then the working directory. Existing variables win.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Knowledge.Directory = expandPath(cfg.Knowledge.Directory, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides cfg with the RAG_* environment variables and friends.
// getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("RAG_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RAG_ENABLED: %w", err)
		}
		cfg.Retrieval.Enabled = &b
	}
	if v := getenv("RAG_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.ModelID = v
	}
	if v := getenv("RAG_TOP_K_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAG_TOP_K_RESULTS: %w", err)
		}
		cfg.Retrieval.TopK = n
	}
	if v := getenv("RAG_MIN_RELEVANCE_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RAG_MIN_RELEVANCE_SCORE: %w", err)
		}
		cfg.Retrieval.MinRelevance = f
	}
	if v := getenv("RAG_MAX_CHUNKS_IN_CONTEXT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAG_MAX_CHUNKS_IN_CONTEXT: %w", err)
		}
		cfg.Retrieval.MaxChunks = n
	}
	if v := getenv("RAG_KNOWLEDGE_BASE_PATH"); v != "" {
		cfg.Knowledge.Directory = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := getenv("CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		cfg.Cache.TTLSeconds = n
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.OpenAIAPIKey = v
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" is the home directory; other relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(configDir, path)
}
