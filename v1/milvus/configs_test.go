package milvus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MaxBatchSize, cfg.maxBatchSize())
	assert.Equal(t, float64(60), cfg.RRFK)
	assert.Equal(t, -1, cfg.DefaultRoundDecimal)
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
default_collection: documents
insert_batch_size: 250
consistency_level: Strong
schema_cache_ttl: 5m
`))
	require.NoError(t, err)
	assert.Equal(t, "documents", cfg.DefaultCollection)
	assert.Equal(t, 250, cfg.InsertBatchSize)
	assert.Equal(t, ConsistencyStrong, cfg.ConsistencyLevel)
	assert.Equal(t, 5*time.Minute, cfg.SchemaCacheTTL)
	assert.Equal(t, 1000, cfg.DefaultBatchSize)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("insert_batch_size: [1"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("insert_batch_size: 0"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"default batch", func(c *Config) { c.DefaultBatchSize = 0 }},
		{"max batch too large", func(c *Config) { c.MaxBatchSize = MaxBatchSize + 1 }},
		{"rrf k", func(c *Config) { c.RRFK = 0 }},
		{"parallelism", func(c *Config) { c.ParallelSubSearches = -1 }},
		{"negative ttl", func(c *Config) { c.SchemaCacheTTL = -time.Second }},
		{"consistency", func(c *Config) { c.ConsistencyLevel = "Sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidRequest)
		})
	}
}

func TestConfig_Builders(t *testing.T) {
	cfg := DefaultConfig().
		WithDefaultCollection("docs").
		WithInsertBatchSize(10).
		WithDefaultBatchSize(20).
		WithRRFK(30).
		WithConsistencyLevel(ConsistencySession).
		WithParallelSubSearches(2).
		WithSchemaCacheTTL(time.Hour)

	assert.Equal(t, "docs", cfg.DefaultCollection)
	assert.Equal(t, 10, cfg.InsertBatchSize)
	assert.Equal(t, 20, cfg.DefaultBatchSize)
	assert.Equal(t, float64(30), cfg.RRFK)
	assert.Equal(t, ConsistencySession, cfg.ConsistencyLevel)
	assert.Equal(t, 2, cfg.ParallelSubSearches)
	assert.Equal(t, time.Hour, cfg.SchemaCacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milvus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rrf_k: 10\nmax_batch_size: 100\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, float64(10), cfg.RRFK)
	assert.Equal(t, 100, cfg.maxBatchSize())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
