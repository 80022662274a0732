package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/milvuskit/v1/logger"
	"github.com/Aleph-Alpha/milvuskit/v1/observability"
	"github.com/Aleph-Alpha/milvuskit/v1/tracer"
)

//go:generate mockgen -destination=mock_logger.go -package=milvus github.com/Aleph-Alpha/milvuskit/v1/milvus Logger

//
// ──────────────────────────────────────────────────────────────
//   MILVUS CLIENT
// ──────────────────────────────────────────────────────────────
//
// MilvusClient is the row-oriented surface over a columnar Transport.
// Every call resolves the collection schema, marshals rows into columns,
// executes one or more transport requests and decodes the reply back
// into rows.
//

// Logger is the logging surface the client needs. *logger.Logger satisfies
// it.
type Logger interface {
	Debug(msg string, err error, fields ...map[string]interface{})
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Client is the interface implemented by *MilvusClient.
type Client interface {
	Insert(ctx context.Context, req InsertRequest) (*WriteResult, error)
	Upsert(ctx context.Context, req InsertRequest) (*WriteResult, error)
	Delete(ctx context.Context, req DeleteRequest) (*WriteResult, error)
	Query(ctx context.Context, req QueryRequest) ([]Row, error)
	Get(ctx context.Context, collection string, ids []any, outputFields ...string) ([]Row, error)
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
	HybridSearch(ctx context.Context, req HybridSearchRequest) ([]SearchResult, error)
	QueryIterator(ctx context.Context, req QueryRequest, opts IteratorOptions) (*Iterator, error)
	SearchIterator(ctx context.Context, req SearchRequest, opts IteratorOptions) (*Iterator, error)
	Schemas() *SchemaCache
}

// MilvusClient implements Client. It is safe for concurrent use; iterators
// it returns are not.
type MilvusClient struct {
	cfg       *Config
	transport Transport
	schemas   *SchemaCache
	logger    Logger
	observer  observability.Observer
	tracer    *tracer.Tracer
}

var _ Client = (*MilvusClient)(nil)

// NewClient creates a client over transport. A nil cfg uses DefaultConfig.
// Schemas must be registered on Schemas() unless a SchemaSource is set with
// WithSchemaSource.
//
// Example:
//
//	client := milvus.NewClient(milvus.DefaultConfig(), transport).
//	    WithLogger(log).
//	    WithObserver(metrics)
func NewClient(cfg *Config, transport Transport) *MilvusClient {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MilvusClient{
		cfg:       cfg,
		transport: transport,
		schemas:   NewSchemaCache(nil, cfg.SchemaCacheTTL),
		logger:    logger.NewNop(),
	}
}

// WithLogger replaces the no-op logger.
func (c *MilvusClient) WithLogger(l Logger) *MilvusClient {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithObserver attaches an observer notified after every operation.
func (c *MilvusClient) WithObserver(o observability.Observer) *MilvusClient {
	c.observer = o
	return c
}

// WithTracer enables spans around every operation.
func (c *MilvusClient) WithTracer(t *tracer.Tracer) *MilvusClient {
	c.tracer = t
	return c
}

// WithSchemaSource lets the client describe unknown collections. Schemas
// registered before the call are kept.
func (c *MilvusClient) WithSchemaSource(src SchemaSource) *MilvusClient {
	cache := NewSchemaCache(src, c.cfg.SchemaCacheTTL)
	c.schemas.mu.RLock()
	for name, e := range c.schemas.entries {
		if e.pinned {
			cache.entries[name] = e
		}
	}
	c.schemas.mu.RUnlock()
	c.schemas = cache
	return c
}

// Schemas returns the schema cache.
func (c *MilvusClient) Schemas() *SchemaCache {
	return c.schemas
}

func (c *MilvusClient) collection(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if c.cfg.DefaultCollection != "" {
		return c.cfg.DefaultCollection, nil
	}
	return "", fmt.Errorf("%w: no collection given and no default configured", ErrInvalidRequest)
}

func (c *MilvusClient) schema(ctx context.Context, collection string) (*Schema, error) {
	s, err := c.schemas.Get(ctx, collection)
	if err != nil {
		c.logger.Debug("schema lookup failed", err, map[string]interface{}{"collection": collection})
		return nil, err
	}
	return s, nil
}

// observeOperation notifies the observer about an operation if one is
// configured.
func (c *MilvusClient) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if c == nil || c.observer == nil {
		return
	}
	c.observer.ObserveOperation(observability.OperationContext{
		Component:   "milvus",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    metadata,
	})
}
