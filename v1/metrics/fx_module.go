package metrics

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/milvuskit/v1/observability"
)

// Logger is the logging surface the lifecycle hooks need.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// FXModule provides *Metrics, exposes it as observability.Observer and
// MetricsCollector, and runs the /metrics server for the application's
// lifetime.
//
//	app := fx.New(
//	    fx.Supply(metrics.Config{Address: ":9090", ServiceName: "ingest"}),
//	    logger.FXModule,
//	    fx.Provide(func(l *logger.Logger) metrics.Logger { return l }),
//	    metrics.FXModule,
//	    milvus.FXModule, // picks up the Observer
//	)
var FXModule = fx.Module("metrics",
	fx.Provide(
		NewMetrics,
		fx.Annotate(
			func(m *Metrics) observability.Observer { return m },
			fx.As(new(observability.Observer)),
		),
		fx.Annotate(
			func(m *Metrics) MetricsCollector { return m },
			fx.As(new(MetricsCollector)),
		),
	),
	fx.Invoke(RegisterMetricsLifecycle),
)

// MetricsLifecycleParams groups the lifecycle dependencies.
type MetricsLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    Logger `optional:"true"`
}

// RegisterMetricsLifecycle starts the /metrics server on start and shuts it
// down on stop. Nothing is registered when the server is disabled.
func RegisterMetricsLifecycle(p MetricsLifecycleParams) {
	m := p.Metrics
	if m.Server == nil {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if p.Logger != nil {
					p.Logger.Info("starting metrics server", nil, map[string]interface{}{"address": m.Server.Addr})
				}
				if err := m.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && p.Logger != nil {
					p.Logger.Error("metrics server stopped", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return m.Server.Shutdown(ctx)
		},
	})
}
