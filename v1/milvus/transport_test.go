package milvus

import (
	"math"
	"testing"

	"github.com/milvus-io/milvus-proto/go-api/v2/commonpb"
	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

func TestRequest_ExprWithQueryBoundary(t *testing.T) {
	r := &Request{Filter: `lang == "en"`}
	assert.Equal(t, `lang == "en"`, r.Expr())

	r.Boundary = &Boundary{PrimaryField: "id", PrimaryKey: int64(42)}
	assert.Equal(t, `(lang == "en") and (id > 42)`, r.Expr())

	r = &Request{Boundary: &Boundary{PrimaryField: "pk", PrimaryKey: "doc-9"}}
	assert.Equal(t, `pk > "doc-9"`, r.Expr())
}

func TestRequest_ExprWithSearchBoundary(t *testing.T) {
	score := float32(0.5)
	r := &Request{Boundary: &Boundary{PrimaryField: "id", Score: &score, ExcludeIDs: []any{int64(3), int64(7)}}}
	assert.Equal(t, `id not in [3, 7]`, r.Expr())
}

func TestRequest_SearchParams(t *testing.T) {
	r := &Request{Params: map[string]any{"ef": 64}}
	assert.Equal(t, map[string]any{"ef": 64}, r.SearchParams())

	score := float32(0.25)
	r.Boundary = &Boundary{Score: &score}
	params := r.SearchParams()
	assert.Equal(t, 0.25, params["range_filter"])
	assert.Equal(t, float64(-math.MaxFloat32), params["radius"])
	assert.NotContains(t, r.Params, "range_filter", "caller params must not be modified")

	r.Boundary.LowerIsBetter = true
	assert.Equal(t, float64(math.MaxFloat32), r.SearchParams()["radius"])

	r.Params["radius"] = 2.0
	assert.Equal(t, 2.0, r.SearchParams()["radius"])
}

func TestRequest_SearchParamPairs(t *testing.T) {
	r := &Request{
		AnnsField:    "vec",
		Limit:        10,
		RoundDecimal: -1,
		MetricType:   "L2",
		Params:       map[string]any{"nprobe": 16, "level": 0.5},
	}
	pairs := r.SearchParamPairs()
	got := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		got[kv.GetKey()] = kv.GetValue()
	}
	assert.Equal(t, map[string]string{
		"level":         "0.5",
		"nprobe":        "16",
		"anns_field":    "vec",
		"topk":          "10",
		"offset":        "0",
		"round_decimal": "-1",
		"metric_type":   "L2",
	}, got)
	assert.Equal(t, "level", pairs[0].GetKey())
}

func TestRequest_PlaceholderGroup(t *testing.T) {
	r := &Request{Vectors: []vectorcodec.Vector{
		vectorcodec.FloatVector{1, 2},
		vectorcodec.FloatVector{3, 4},
	}}
	b, err := r.PlaceholderGroup()
	require.NoError(t, err)

	var pg commonpb.PlaceholderGroup
	require.NoError(t, proto.Unmarshal(b, &pg))
	require.Len(t, pg.GetPlaceholders(), 1)
	ph := pg.GetPlaceholders()[0]
	assert.Equal(t, "$0", ph.GetTag())
	assert.Equal(t, commonpb.PlaceholderType_FloatVector, ph.GetType())
	assert.Equal(t, [][]byte{r.Vectors[0].Bytes(), r.Vectors[1].Bytes()}, ph.GetValues())

	r.Vectors = append(r.Vectors, vectorcodec.Int8Vector{1, 2})
	_, err = r.PlaceholderGroup()
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = (&Request{}).PlaceholderGroup()
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRequest_CloneIsDeep(t *testing.T) {
	score := float32(1)
	r := &Request{
		OutputFields: []string{"a"},
		Params:       map[string]any{"ef": 1},
		FieldsData:   []*schemapb.FieldData{{FieldName: "id"}},
		Boundary:     &Boundary{Score: &score, ExcludeIDs: []any{int64(1)}},
	}
	c := r.Clone()
	c.OutputFields[0] = "b"
	c.Params["ef"] = 2
	c.FieldsData[0].FieldName = "other"
	*c.Boundary.Score = 2
	c.Boundary.ExcludeIDs[0] = int64(9)

	assert.Equal(t, "a", r.OutputFields[0])
	assert.Equal(t, 1, r.Params["ef"])
	assert.Equal(t, "id", r.FieldsData[0].GetFieldName())
	assert.Equal(t, float32(1), *r.Boundary.Score)
	assert.Equal(t, int64(1), r.Boundary.ExcludeIDs[0])
	assert.Nil(t, (*Request)(nil).Clone())
}

func TestLowerIsBetter(t *testing.T) {
	assert.True(t, LowerIsBetter("L2"))
	assert.True(t, LowerIsBetter("hamming"))
	assert.False(t, LowerIsBetter("COSINE"))
	assert.False(t, LowerIsBetter("IP"))
	assert.False(t, LowerIsBetter(""))
}

func TestRequestKind_String(t *testing.T) {
	assert.Equal(t, "search", KindSearch.String())
	assert.Equal(t, "upsert", KindUpsert.String())
	assert.Equal(t, "unknown", RequestKind(0).String())
}
