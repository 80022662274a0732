package milvus

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/milvuskit/v1/observability"
	"github.com/Aleph-Alpha/milvuskit/v1/tracer"
)

// FXModule is an fx.Module that provides and configures the Milvus client.
//
// The module provides:
// 1. *MilvusClient (concrete type) for direct use
// 2. Client interface for dependency injection
// 3. Lifecycle hooks that drop cached schemas on shutdown
//
// Usage:
//
//	app := fx.New(
//	    fx.Supply(milvus.DefaultConfig()),
//	    fx.Provide(func() milvus.Transport { return grpcTransport }),
//	    milvus.FXModule,
//	)
var FXModule = fx.Module("milvus",
	fx.Provide(
		NewClientWithDI,
		fx.Annotate(
			func(c *MilvusClient) Client { return c },
			fx.As(new(Client)),
		),
	),
	fx.Invoke(RegisterMilvusLifecycle),
)

// MilvusParams groups the dependencies needed to create a Milvus client.
type MilvusParams struct {
	fx.In

	Config       *Config
	Transport    Transport
	Logger       Logger                 `optional:"true"`
	Observer     observability.Observer `optional:"true"`
	Tracer       *tracer.Tracer         `optional:"true"`
	SchemaSource SchemaSource           `optional:"true"`
}

// NewClientWithDI creates a client from injected dependencies. The
// configuration is validated first.
func NewClientWithDI(p MilvusParams) (*MilvusClient, error) {
	if p.Config != nil {
		if err := p.Config.Validate(); err != nil {
			return nil, err
		}
	}
	client := NewClient(p.Config, p.Transport).
		WithLogger(p.Logger).
		WithObserver(p.Observer).
		WithTracer(p.Tracer)
	if p.SchemaSource != nil {
		client = client.WithSchemaSource(p.SchemaSource)
	}
	return client, nil
}

// RegisterMilvusLifecycle purges the schema cache when the application stops.
func RegisterMilvusLifecycle(lc fx.Lifecycle, client *MilvusClient) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.logger.Info("purging milvus schema cache", nil, map[string]interface{}{
				"schemas": client.schemas.Len(),
			})
			client.schemas.Purge()
			return nil
		},
	})
}
