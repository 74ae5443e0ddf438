package config

import (
	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/recommend"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.BehaviorDBPath == "" {
		cfg.Storage.BehaviorDBPath = "/usr/local/var/osusume/data/db/behavior.db"
	}
	if cfg.Storage.CatalogDBPath == "" {
		cfg.Storage.CatalogDBPath = "/usr/local/var/osusume/data/db/catalog.db"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/osusume/data/indices"
	}
	if cfg.Storage.CaptionIndexPath == "" {
		cfg.Storage.CaptionIndexPath = "/usr/local/var/osusume/data/indices/captions.bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "remote"
	}
	if cfg.Embedding.TextEndpoint == "" {
		cfg.Embedding.TextEndpoint = "http://localhost:9090/v1/embeddings/text"
	}
	if cfg.Embedding.ImageEndpoint == "" {
		cfg.Embedding.ImageEndpoint = "http://localhost:9090/v1/embeddings/image"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512 // CLIP ViT-B/32 projection width
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.SemanticWeight == 0 {
		cfg.Search.SemanticWeight = 1.0
	}
	if cfg.Search.KeywordWeight == 0 {
		cfg.Search.KeywordWeight = 0.3
	}
	if cfg.Recommend.DefaultCount == 0 {
		cfg.Recommend.DefaultCount = 12
	}
	if cfg.Recommend.RecentEvents == 0 {
		cfg.Recommend.RecentEvents = 3
	}
	if cfg.Recommend.SessionCapacity == 0 {
		cfg.Recommend.SessionCapacity = 4096
	}
	if len(cfg.Recommend.Quotas) == 0 {
		cfg.Recommend.Quotas = recommend.DefaultQuotas()
	}
	if len(cfg.Recommend.Rules) == 0 {
		cfg.Recommend.Rules = partition.DefaultRules()
	}
	if cfg.Recommend.DefaultPartition == "" {
		cfg.Recommend.DefaultPartition = partition.DefaultKey
	}
}
