package milvus

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client-side behaviour of the Milvus client. Connection
// settings belong to the Transport.
//
// Example (programmatic):
//
//	cfg := milvus.DefaultConfig()
//	cfg.DefaultCollection = "documents"
//	cfg.InsertBatchSize = 500
//
// Example (builder style):
//
//	cfg := milvus.DefaultConfig().
//	    WithDefaultCollection("documents").
//	    WithSchemaCacheTTL(10 * time.Minute)
//
// Example (YAML):
//
//	cfg, err := milvus.LoadConfig("milvus.yaml")
type Config struct {
	// Collection used when a request names none.
	DefaultCollection string `yaml:"default_collection" env:"MILVUS_DEFAULT_COLLECTION"`

	// Rows per insert or upsert request. Larger inputs are split.
	InsertBatchSize int `yaml:"insert_batch_size" env:"MILVUS_INSERT_BATCH_SIZE"`

	// Iterator page size when the caller sets none.
	DefaultBatchSize int `yaml:"default_batch_size" env:"MILVUS_DEFAULT_BATCH_SIZE"`

	// Upper bound for iterator page sizes. Larger requests are capped.
	MaxBatchSize int `yaml:"max_batch_size" env:"MILVUS_MAX_BATCH_SIZE"`

	// Smoothing constant of reciprocal rank fusion.
	RRFK float64 `yaml:"rrf_k" env:"MILVUS_RRF_K"`

	// Consistency level sent with reads when a request sets none.
	ConsistencyLevel string `yaml:"consistency_level" env:"MILVUS_CONSISTENCY_LEVEL"`

	// Score truncation applied when a search sets none. -1 disables it.
	DefaultRoundDecimal int `yaml:"default_round_decimal" env:"MILVUS_DEFAULT_ROUND_DECIMAL"`

	// Concurrent per-field searches issued by HybridSearch.
	ParallelSubSearches int `yaml:"parallel_sub_searches" env:"MILVUS_PARALLEL_SUB_SEARCHES"`

	// Lifetime of described schemas. Zero keeps them until invalidated.
	SchemaCacheTTL time.Duration `yaml:"schema_cache_ttl" env:"MILVUS_SCHEMA_CACHE_TTL"`
}

// Consistency levels accepted by the server.
const (
	ConsistencyStrong     = "Strong"
	ConsistencySession    = "Session"
	ConsistencyBounded    = "Bounded"
	ConsistencyEventually = "Eventually"
)

// DefaultConfig provides sensible defaults for most use cases.
func DefaultConfig() *Config {
	return &Config{
		InsertBatchSize:     1000,
		DefaultBatchSize:    1000,
		MaxBatchSize:        MaxBatchSize,
		RRFK:                60,
		ConsistencyLevel:    ConsistencyBounded,
		DefaultRoundDecimal: -1,
		ParallelSubSearches: 4,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read milvus config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse milvus config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.InsertBatchSize <= 0:
		return fmt.Errorf("%w: insert_batch_size must be positive", ErrInvalidRequest)
	case c.DefaultBatchSize <= 0:
		return fmt.Errorf("%w: default_batch_size must be positive", ErrInvalidRequest)
	case c.MaxBatchSize <= 0 || c.MaxBatchSize > MaxBatchSize:
		return fmt.Errorf("%w: max_batch_size must be in [1, %d]", ErrInvalidRequest, MaxBatchSize)
	case c.RRFK <= 0:
		return fmt.Errorf("%w: rrf_k must be positive", ErrInvalidRequest)
	case c.ParallelSubSearches <= 0:
		return fmt.Errorf("%w: parallel_sub_searches must be positive", ErrInvalidRequest)
	case c.SchemaCacheTTL < 0:
		return fmt.Errorf("%w: schema_cache_ttl must not be negative", ErrInvalidRequest)
	}
	switch c.ConsistencyLevel {
	case "", ConsistencyStrong, ConsistencySession, ConsistencyBounded, ConsistencyEventually:
	default:
		return fmt.Errorf("%w: unknown consistency level %q", ErrInvalidRequest, c.ConsistencyLevel)
	}
	return nil
}

func (c *Config) maxBatchSize() int {
	if c.MaxBatchSize <= 0 || c.MaxBatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return c.MaxBatchSize
}

// Builder-style helpers
func (c *Config) WithDefaultCollection(name string) *Config {
	c.DefaultCollection = name
	return c
}

func (c *Config) WithInsertBatchSize(n int) *Config {
	c.InsertBatchSize = n
	return c
}

func (c *Config) WithDefaultBatchSize(n int) *Config {
	c.DefaultBatchSize = n
	return c
}

func (c *Config) WithRRFK(k float64) *Config {
	c.RRFK = k
	return c
}

func (c *Config) WithConsistencyLevel(level string) *Config {
	c.ConsistencyLevel = level
	return c
}

func (c *Config) WithParallelSubSearches(n int) *Config {
	c.ParallelSubSearches = n
	return c
}

func (c *Config) WithSchemaCacheTTL(d time.Duration) *Config {
	c.SchemaCacheTTL = d
	return c
}
