package milvus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/milvuskit/v1/metrics"
	"github.com/Aleph-Alpha/milvuskit/v1/observability"
)

func TestFXModule_ProvidesClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info("purging milvus schema cache", nil, gomock.Any()).Times(1)

	ft := newFakeTransport(t, docsSchema(t, false), nil)
	m := metrics.NewMetrics(metrics.Config{DisableServer: true})

	var client Client
	var concrete *MilvusClient
	app := fxtest.New(t,
		fx.Supply(DefaultConfig().WithDefaultCollection("docs")),
		fx.Provide(
			func() Transport { return ft },
			func() Logger { return log },
			func() observability.Observer { return m },
		),
		FXModule,
		fx.Populate(&client, &concrete),
	)
	app.RequireStart()

	require.NotNil(t, client)
	assert.Same(t, concrete, client)

	client.Schemas().Register(docsSchema(t, false))
	res, err := client.Insert(context.Background(), InsertRequest{Rows: docRows(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count)

	n, err := testutil.GatherAndCount(m.Registry, "milvus_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	app.RequireStop()
	assert.Zero(t, concrete.Schemas().Len())
}

func TestFXModule_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RRFK = 0

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(func() Transport { return newFakeTransport(t, docsSchema(t, false), nil) }),
		FXModule,
		fx.Invoke(func(Client) {}),
	)
	assert.ErrorContains(t, app.Err(), "rrf_k must be positive")
}
