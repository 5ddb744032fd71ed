package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port         int              `json:"port"`
	DBDSN        string           `json:"db_dsn"`
	CORSAllow    []string         `json:"cors_allow"`
	QueryQPS     float64          `json:"query_qps"`
	QueryBurst   int              `json:"query_burst"`
	AdminEnabled bool             `json:"admin_enabled"`
	SeedCorpus   bool             `json:"seed_corpus"`
	LogConfig    logger.LogConfig `json:"log_config"`
	Embedding    ProviderConfig   `json:"embedding"`
	Corpus       CorpusConfig     `json:"corpus"`
	Remote       RemoteConfig     `json:"remote"`
	Retrieval    RetrievalConfig  `json:"retrieval"`
	Optimizer    OptimizerConfig  `json:"optimizer"`
	Jobs         JobsConfig       `json:"jobs"`
}

type ProviderConfig struct {
	Provider string                 `json:"provider"`
	Data     map[string]interface{} `json:"data"`
}

type CorpusConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type RemoteConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type RetrievalConfig struct {
	EnableLocal  bool `json:"enable_local"`
	EnableHybrid bool `json:"enable_hybrid"`
	MaxChunks    int  `json:"max_chunks"`
}

type OptimizerConfig struct {
	BatchSize       int  `json:"batch_size"`
	BatchIntervalMS int  `json:"batch_interval_ms"`
	PrefetchSize    int  `json:"prefetch_size"`
	Prefetch        bool `json:"prefetch"`
}

type JobsConfig struct {
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
	CacheMaxAgeDays  int    `json:"cache_max_age_days"`
	TuneSpec         string `json:"tune_spec"`
	ReindexSpec      string `json:"reindex_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
	}
	if cfg.QueryQPS < 0 {
		return nil, fmt.Errorf("query_qps must not be negative")
	}
	if cfg.Remote.BaseURL == "" && !cfg.Retrieval.EnableLocal {
		// still valid, every query gets the static fallback
		cfg.Retrieval.EnableHybrid = false
	}
	if cfg.Corpus.Type != "" && cfg.Corpus.Type != "local" && cfg.Corpus.Type != "s3" {
		return nil, fmt.Errorf("corpus.type must be local or s3")
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "0 3 * * *"
	}
	if cfg.Jobs.TuneSpec == "" {
		cfg.Jobs.TuneSpec = "*/10 * * * *"
	}
	return &cfg, nil
}
