package tracer

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Tracer from a tracer.Config and a tracer.Logger and
// shuts the provider down when the application stops.
//
//	app := fx.New(
//	    fx.Supply(tracer.Config{ServiceName: "ingest"}),
//	    fx.Provide(func(l *logger.Logger) tracer.Logger { return l }),
//	    tracer.FXModule,
//	)
var FXModule = fx.Module("tracer",
	fx.Provide(NewClient),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle flushes and stops the provider on shutdown.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tracer.Shutdown(ctx)
		},
	})
}
