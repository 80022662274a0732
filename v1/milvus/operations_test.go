package milvus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/milvuskit/v1/rerank"
	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

func newMockClient(t *testing.T, cfg *Config) (*MilvusClient, *MockTransport) {
	t.Helper()
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	client := NewClient(cfg, transport)
	client.Schemas().Register(docsSchema(t, false))
	return client, transport
}

func TestInsert_SplitsIntoBatches(t *testing.T) {
	ctx := context.Background()
	client, ft := newIteratorClient(t, nil)
	client.cfg.InsertBatchSize = 2

	res, err := client.Insert(ctx, InsertRequest{Collection: "docs", Rows: docRows(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Count)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, res.IDs)

	require.Equal(t, 3, ft.callCount())
	var sizes []int
	for i, req := range ft.calls {
		assert.Equal(t, KindInsert, ft.kinds[i])
		sizes = append(sizes, req.NumRows)
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestInsert_InvalidRowWritesNothing(t *testing.T) {
	client, _ := newMockClient(t, DefaultConfig().WithInsertBatchSize(2))
	rows := docRows(5)
	rows[3]["title"] = 42

	_, err := client.Insert(context.Background(), InsertRequest{Collection: "docs", Rows: rows})
	require.ErrorIs(t, err, ErrUnsupportedValue)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Row)
}

func TestInsert_TransportFailureReturnsPartialResult(t *testing.T) {
	client, transport := newMockClient(t, DefaultConfig().WithInsertBatchSize(2))
	gomock.InOrder(
		transport.EXPECT().Execute(gomock.Any(), KindUpsert, gomock.Any()).Return(&Response{Count: 2}, nil),
		transport.EXPECT().Execute(gomock.Any(), KindUpsert, gomock.Any()).Return(nil, errUnavailable),
	)

	res, err := client.Upsert(context.Background(), InsertRequest{Collection: "docs", Rows: docRows(3)})
	require.ErrorIs(t, err, errUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, int64(2), res.Count)
}

func TestInsert_UsesDefaultCollection(t *testing.T) {
	client, transport := newMockClient(t, DefaultConfig().WithDefaultCollection("docs"))
	transport.EXPECT().
		Execute(gomock.Any(), KindInsert, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ RequestKind, req *Request) (*Response, error) {
			assert.Equal(t, "docs", req.Collection)
			assert.Equal(t, []string{"p1"}, req.Partitions)
			return nil, nil
		})

	res, err := client.Insert(context.Background(), InsertRequest{Partition: "p1", Rows: docRows(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
}

func TestInsert_UnknownCollection(t *testing.T) {
	client, _ := newMockClient(t, nil)
	_, err := client.Insert(context.Background(), InsertRequest{Collection: "missing", Rows: docRows(1)})
	assert.True(t, IsCollectionNotFoundError(err))

	_, err = client.Insert(context.Background(), InsertRequest{Rows: docRows(1)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDelete_Validation(t *testing.T) {
	client, _ := newMockClient(t, nil)
	ctx := context.Background()

	_, err := client.Delete(ctx, DeleteRequest{Collection: "docs"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.Delete(ctx, DeleteRequest{Collection: "docs", IDs: []any{1}, Filter: "id > 0"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.Delete(ctx, DeleteRequest{Collection: "docs", IDs: []any{"x"}})
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestDelete_ByIDsRendersFilter(t *testing.T) {
	client, transport := newMockClient(t, nil)
	transport.EXPECT().
		Execute(gomock.Any(), KindDelete, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ RequestKind, req *Request) (*Response, error) {
			assert.Equal(t, "id in [1, 2]", req.Filter)
			return &Response{Count: 2}, nil
		})

	res, err := client.Delete(context.Background(), DeleteRequest{Collection: "docs", IDs: []any{1, int64(2)}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)
}

func TestDelete_ByFilterSet(t *testing.T) {
	client, transport := newMockClient(t, nil)
	transport.EXPECT().
		Execute(gomock.Any(), KindDelete, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ RequestKind, req *Request) (*Response, error) {
			assert.Equal(t, `title == "old"`, req.Filter)
			return &Response{}, nil
		})

	_, err := client.Delete(context.Background(), DeleteRequest{
		Collection: "docs",
		Filters: &FilterSet{Must: &ConditionSet{Conditions: []FilterCondition{
			&MatchCondition{Field: "title", Value: "old"},
		}}},
	})
	require.NoError(t, err)
}

func TestQuery_DecodesRows(t *testing.T) {
	client, ft := newIteratorClient(t, docRows(3))

	rows, err := client.Query(context.Background(), QueryRequest{
		Collection:   "docs",
		Filter:       "id > 0",
		OutputFields: []string{"id", "title"},
		Limit:        2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"id": int64(1), "title": "doc"}, rows[0])

	req := ft.calls[0]
	assert.Equal(t, ConsistencyBounded, req.ConsistencyLevel)
	assert.Equal(t, "id > 0", req.Filter)
}

func TestGet_ByIDs(t *testing.T) {
	client, transport := newMockClient(t, nil)
	transport.EXPECT().
		Execute(gomock.Any(), KindQuery, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ RequestKind, req *Request) (*Response, error) {
			assert.Equal(t, "id in [3]", req.Filter)
			assert.Equal(t, 1, req.Limit)
			return &Response{}, nil
		})

	rows, err := client.Get(context.Background(), "docs", []any{3}, "title")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = client.Get(context.Background(), "docs", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearch_RequestAndDecode(t *testing.T) {
	client, ft := newIteratorClient(t, docRows(3))
	ft.scores["vec"] = map[int64]float32{1: 0.1, 2: 0.7, 3: 0.4}
	round := 1

	results, err := client.Search(context.Background(), SearchRequest{
		Collection:   "docs",
		AnnsField:    "vec",
		Vectors:      []any{[]float64{1, 0}},
		Limit:        2,
		MetricType:   "IP",
		OutputFields: []string{"title"},
		RoundDecimal: &round,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	rows := results[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0][IDKey])
	assert.Equal(t, float32(0.7), rows[0][ScoreKey])
	assert.Equal(t, "doc", rows[0]["title"])

	req := ft.calls[0]
	assert.Equal(t, 1, req.RoundDecimal)
	require.Len(t, req.Vectors, 1)
	assert.Equal(t, vectorcodec.FloatVector{1, 0}, req.Vectors[0])
}

func TestSearch_Validation(t *testing.T) {
	client, _ := newMockClient(t, nil)
	ctx := context.Background()

	_, err := client.Search(ctx, SearchRequest{Collection: "docs", Vectors: []any{[]float32{1, 0}}})
	assert.ErrorIs(t, err, ErrInvalidRequest, "two vector fields need an explicit anns field")

	_, err = client.Search(ctx, SearchRequest{Collection: "docs", AnnsField: "title", Vectors: []any{[]float32{1, 0}}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.Search(ctx, SearchRequest{Collection: "docs", AnnsField: "vec"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.Search(ctx, SearchRequest{Collection: "docs", AnnsField: "vec", Vectors: []any{[]float32{1}}})
	assert.ErrorIs(t, err, ErrInvalidDimension)

	_, err = client.Search(ctx, SearchRequest{Collection: "docs", AnnsField: "vec", Vectors: []any{[]float32{1, 0}}, GroupByField: "nope"})
	assert.True(t, IsUnknownFieldError(err))
}

func TestHybridSearch_SingleSubSearchMatchesSearch(t *testing.T) {
	ctx := context.Background()
	client, ft := newIteratorClient(t, docRows(5))
	ft.scores["vec"] = map[int64]float32{1: 0.2, 2: 0.9, 3: 0.5, 4: 0.7, 5: 0.1}

	plain, err := client.Search(ctx, SearchRequest{
		Collection: "docs", AnnsField: "vec", Vectors: []any{[]float32{1, 0}}, Limit: 3, MetricType: "IP",
	})
	require.NoError(t, err)

	hybrid, err := client.HybridSearch(ctx, HybridSearchRequest{
		Collection: "docs",
		Searches:   []SubSearch{{AnnsField: "vec", Vectors: []any{[]float32{1, 0}}, MetricType: "IP"}},
		Limit:      3,
	})
	require.NoError(t, err)
	require.Len(t, hybrid, 1)
	assert.Equal(t, plain[0].Rows, hybrid[0].Rows)
}

func TestHybridSearch_WeightedFusion(t *testing.T) {
	ctx := context.Background()
	client, ft := newIteratorClient(t, docRows(3))
	ft.scores["vec"] = map[int64]float32{1: 1.0, 2: 0.5, 3: 0.0}
	ft.scores["vec2"] = map[int64]float32{1: 0.0, 2: 0.5, 3: 1.0}

	results, err := client.HybridSearch(ctx, HybridSearchRequest{
		Collection: "docs",
		Searches: []SubSearch{
			{AnnsField: "vec", Vectors: []any{[]float32{1, 0}}, MetricType: "IP"},
			{AnnsField: "vec2", Vectors: []any{[]float32{0, 1}}, MetricType: "IP"},
		},
		Strategy: rerank.Weighted{Weights: []float64{0.8, 0.2}},
		Limit:    3,
	})
	require.NoError(t, err)
	rows := results[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, hitIDs(rows))
	assert.InDelta(t, 0.8, rows[0][ScoreKey], 1e-6)
	assert.InDelta(t, 0.5, rows[1][ScoreKey], 1e-6)
	assert.InDelta(t, 0.2, rows[2][ScoreKey], 1e-6)
}

func TestHybridSearch_DefaultsToRRF(t *testing.T) {
	ctx := context.Background()
	client, ft := newIteratorClient(t, docRows(3))
	ft.scores["vec"] = map[int64]float32{1: 0.9, 2: 0.5}
	ft.scores["vec2"] = map[int64]float32{2: 0.9, 3: 0.5}

	results, err := client.HybridSearch(ctx, HybridSearchRequest{
		Collection: "docs",
		Searches: []SubSearch{
			{AnnsField: "vec", Vectors: []any{[]float32{1, 0}}},
			{AnnsField: "vec2", Vectors: []any{[]float32{0, 1}}},
		},
		Limit: 10,
	})
	require.NoError(t, err)
	rows := results[0].Rows
	require.Len(t, rows, 3)
	// id 2 appears in both lists and wins; 1 and 3 tie at rank 1 and 2.
	assert.Equal(t, int64(2), rows[0][IDKey])
	assert.InDelta(t, 1.0/62+1.0/61, rows[0][ScoreKey], 1e-6)
}

func TestHybridSearch_Validation(t *testing.T) {
	client, _ := newMockClient(t, nil)
	ctx := context.Background()

	_, err := client.HybridSearch(ctx, HybridSearchRequest{Collection: "docs"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = client.HybridSearch(ctx, HybridSearchRequest{
		Collection: "docs",
		Searches: []SubSearch{
			{AnnsField: "vec", Vectors: []any{[]float32{1, 0}}},
			{AnnsField: "vec2", Vectors: []any{[]float32{1, 0}, []float32{0, 1}}},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHybridSearch_InvalidWeights(t *testing.T) {
	client, transport := newMockClient(t, nil)
	transport.EXPECT().Execute(gomock.Any(), KindSearch, gomock.Any()).Return(&Response{}, nil).Times(2)

	_, err := client.HybridSearch(context.Background(), HybridSearchRequest{
		Collection: "docs",
		Searches: []SubSearch{
			{AnnsField: "vec", Vectors: []any{[]float32{1, 0}}},
			{AnnsField: "vec2", Vectors: []any{[]float32{1, 0}}},
		},
		Strategy: rerank.Weighted{Weights: []float64{1}},
	})
	assert.ErrorIs(t, err, ErrInvalidWeights)
}
