package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"port": 8080}`))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.Embedding.Provider)
	require.NotEmpty(t, cfg.Jobs.CacheCleanupSpec)
	require.NotEmpty(t, cfg.Jobs.TuneSpec)
}

func TestLoadRequiresPort(t *testing.T) {
	_, err := Load(writeConfig(t, `{}`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownCorpusType(t *testing.T) {
	_, err := Load(writeConfig(t, `{"port": 8080, "corpus": {"type": "ftp"}}`))
	require.Error(t, err)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"port": 9000,
		"db_dsn": "postgres://medrag@localhost/medrag",
		"admin_enabled": true,
		"seed_corpus": true,
		"embedding": {"provider": "openai", "data": {"api_key": "k"}},
		"corpus": {"type": "local", "data": {"dir": "/corpus"}},
		"remote": {"base_url": "https://rag.example.com", "api_key": "secret"},
		"retrieval": {"enable_local": true, "enable_hybrid": true, "max_chunks": 5},
		"optimizer": {"batch_size": 5, "batch_interval_ms": 100, "prefetch": true},
		"jobs": {"cache_cleanup_spec": "30 2 * * *", "cache_max_age_days": 14}
	}`))
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.Embedding.Provider)
	require.Equal(t, "local", cfg.Corpus.Type)
	require.True(t, cfg.Retrieval.EnableHybrid)
	require.Equal(t, "30 2 * * *", cfg.Jobs.CacheCleanupSpec)
	require.Equal(t, 14, cfg.Jobs.CacheMaxAgeDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
