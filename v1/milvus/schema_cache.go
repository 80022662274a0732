package milvus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
	"golang.org/x/sync/singleflight"
)

// SchemaSource describes collections on demand. Implementations typically
// wrap the DescribeCollection RPC of a server connection.
type SchemaSource interface {
	DescribeCollection(ctx context.Context, collection string) (*schemapb.CollectionSchema, error)
}

type cachedSchema struct {
	schema   *Schema
	loadedAt time.Time
	pinned   bool
}

// SchemaCache keeps one immutable Schema per collection. Registered schemas
// never expire; described ones are refreshed after ttl when ttl > 0.
// Concurrent misses for the same collection share a single describe call.
type SchemaCache struct {
	source SchemaSource
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cachedSchema

	group singleflight.Group
	now   func() time.Time
}

// NewSchemaCache creates a cache. source may be nil, in which case only
// registered schemas are known.
func NewSchemaCache(source SchemaSource, ttl time.Duration) *SchemaCache {
	return &SchemaCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cachedSchema),
		now:     time.Now,
	}
}

// Register pins a schema under its name, replacing any cached entry.
func (c *SchemaCache) Register(s *Schema) {
	c.mu.Lock()
	c.entries[s.Name] = cachedSchema{schema: s, loadedAt: c.now(), pinned: true}
	c.mu.Unlock()
}

// Get returns the schema of a collection, describing it through the source
// on a miss or after expiry.
func (c *SchemaCache) Get(ctx context.Context, collection string) (*Schema, error) {
	e, ok := c.lookup(collection)
	if ok && c.fresh(e) {
		return e.schema, nil
	}
	if c.source == nil {
		if ok {
			return e.schema, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}

	v, err, _ := c.group.Do(collection, func() (interface{}, error) {
		// another caller may have finished loading while we waited
		if e, ok := c.lookup(collection); ok && c.fresh(e) {
			return e.schema, nil
		}
		p, err := c.source.DescribeCollection(ctx, collection)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
		}
		if p.GetName() == "" {
			p.Name = collection
		}
		s, err := SchemaFromProto(p)
		if err != nil {
			return nil, fmt.Errorf("describe %q: %w", collection, err)
		}
		c.mu.Lock()
		c.entries[collection] = cachedSchema{schema: s, loadedAt: c.now()}
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

func (c *SchemaCache) lookup(collection string) (cachedSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[collection]
	return e, ok
}

func (c *SchemaCache) fresh(e cachedSchema) bool {
	return e.pinned || c.ttl <= 0 || c.now().Sub(e.loadedAt) < c.ttl
}

// Invalidate drops the cached schema of one collection.
func (c *SchemaCache) Invalidate(collection string) {
	c.mu.Lock()
	delete(c.entries, collection)
	c.mu.Unlock()
	c.group.Forget(collection)
}

// Purge drops every cached schema.
func (c *SchemaCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cachedSchema)
	c.mu.Unlock()
}

// Len returns the number of cached schemas.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
