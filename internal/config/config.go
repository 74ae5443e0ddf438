// Package config provides configuration loading and structs for the osusume
// server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/recommend"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Search    SearchConfig    `yaml:"search"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for databases and index blobs.
type StorageConfig struct {
	BehaviorDBPath   string `yaml:"behavior_db_path"`
	CatalogDBPath    string `yaml:"catalog_db_path"`
	IndexDir         string `yaml:"index_dir"`
	CaptionIndexPath string `yaml:"caption_index_path"`
}

// EmbeddingConfig holds embedding provider settings. Provider is one of
// "remote", "onnx", or "mock".
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	TextEndpoint   string `yaml:"text_endpoint"`
	ImageEndpoint  string `yaml:"image_endpoint"`
	TextModelPath  string `yaml:"text_model_path"`
	ImageModelPath string `yaml:"image_model_path"`
	Dimensions     int    `yaml:"dimensions"`
	CacheSize      int    `yaml:"cache_size"`
}

// CatalogConfig holds catalog source locations.
type CatalogConfig struct {
	CSVPath  string `yaml:"csv_path"`
	ImageDir string `yaml:"image_dir"`
}

// SearchConfig holds global search settings.
type SearchConfig struct {
	DefaultLimit   int     `yaml:"default_limit"`
	MaxLimit       int     `yaml:"max_limit"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
}

// RecommendConfig holds recommendation settings. Quotas and Rules are ordered;
// order is partition priority.
type RecommendConfig struct {
	DefaultCount     int               `yaml:"default_count"`
	RecentEvents     int               `yaml:"recent_events"`
	SessionCapacity  int               `yaml:"session_capacity"`
	Quotas           []recommend.Quota `yaml:"quotas"`
	Rules            []partition.Rule  `yaml:"rules"`
	DefaultPartition string            `yaml:"default_partition"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.BehaviorDBPath = expandPath(cfg.Storage.BehaviorDBPath, configDir)
	cfg.Storage.CatalogDBPath = expandPath(cfg.Storage.CatalogDBPath, configDir)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.CaptionIndexPath = expandPath(cfg.Storage.CaptionIndexPath, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	cfg.Embedding.ImageModelPath = expandPath(cfg.Embedding.ImageModelPath, configDir)
	cfg.Catalog.CSVPath = expandPath(cfg.Catalog.CSVPath, configDir)
	cfg.Catalog.ImageDir = expandPath(cfg.Catalog.ImageDir, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
