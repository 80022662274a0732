package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

func TestFromColumns_RoundTrip(t *testing.T) {
	schema := docsSchema(t, true)
	rows := docRows(3)
	rows[0]["rank"] = int32(4)
	rows[2]["lang"] = "en"

	cs, err := ToColumns(schema, Input{Rows: rows}, nil)
	require.NoError(t, err)

	got, err := FromColumns(schema, cs.Fields, nil, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0]["id"])
	assert.Equal(t, []float32{1, 1}, got[0]["vec"])
	assert.Equal(t, "doc", got[0]["title"])
	assert.Equal(t, int32(4), got[0]["rank"])
	assert.Nil(t, got[1]["rank"])
	assert.Equal(t, "en", got[2]["lang"])
	assert.NotContains(t, got[0], DynamicFieldName)
}

func TestFromColumns_CompactNullableColumn(t *testing.T) {
	schema := docsSchema(t, false)
	fields := []*schemapb.FieldData{
		{
			Type: schemapb.DataType_Int64, FieldName: "id",
			Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
				Data: &schemapb.ScalarField_LongData{LongData: &schemapb.LongArray{Data: []int64{1, 2, 3}}},
			}},
		},
		{
			Type: schemapb.DataType_Int32, FieldName: "rank", ValidData: []bool{false, true, true},
			Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
				Data: &schemapb.ScalarField_IntData{IntData: &schemapb.IntArray{Data: []int32{8, 9}}},
			}},
		},
	}

	got, err := FromColumns(schema, fields, []string{"id", "rank"}, DecodeOptions{})
	require.NoError(t, err)
	assert.Nil(t, got[0]["rank"])
	assert.Equal(t, int32(8), got[1]["rank"])
	assert.Equal(t, int32(9), got[2]["rank"])
}

func TestFromColumns_TypeMismatch(t *testing.T) {
	schema := docsSchema(t, false)
	fields := []*schemapb.FieldData{{
		Type: schemapb.DataType_Int32, FieldName: "title",
		Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
			Data: &schemapb.ScalarField_IntData{IntData: &schemapb.IntArray{Data: []int32{1}}},
		}},
	}}
	_, err := FromColumns(schema, fields, nil, DecodeOptions{})
	assert.True(t, IsSchemaColumnMismatchError(err))

	fields[0].FieldName = "nope"
	_, err = FromColumns(schema, fields, nil, DecodeOptions{})
	assert.True(t, IsSchemaColumnMismatchError(err))
}

func TestFromColumns_RowCountMismatch(t *testing.T) {
	schema := docsSchema(t, false)
	cs, err := ToColumns(schema, Input{Rows: docRows(2)}, nil)
	require.NoError(t, err)
	cs.Column("title").GetScalars().GetStringData().Data = []string{"only one"}

	_, err = FromColumns(schema, cs.Fields, nil, DecodeOptions{})
	assert.ErrorIs(t, err, ErrRowCountMismatch)
}

func TestFromColumns_DynamicSelection(t *testing.T) {
	schema := docsSchema(t, true)
	rows := docRows(1)
	rows[0]["lang"] = "en"
	rows[0]["year"] = 2024
	cs, err := ToColumns(schema, Input{Rows: rows}, nil)
	require.NoError(t, err)

	got, err := FromColumns(schema, cs.Fields, []string{"id", "lang"}, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "en", got[0]["lang"])
	assert.NotContains(t, got[0], "year")

	got, err = FromColumns(schema, cs.Fields, []string{"*"}, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, float64(2024), got[0]["year"])
}

func TestFromColumns_SparseShapes(t *testing.T) {
	schema, err := NewSchema("sparse", false,
		&FieldSchema{Name: "id", DataType: schemapb.DataType_Int64, IsPrimaryKey: true},
		&FieldSchema{Name: "sv", DataType: schemapb.DataType_SparseFloatVector},
	)
	require.NoError(t, err)
	cs, err := ToColumns(schema, Input{Rows: []Row{{"id": 1, "sv": map[uint32]float32{5: 0.5, 2: 1}}}}, nil)
	require.NoError(t, err)

	got, err := FromColumns(schema, cs.Fields, nil, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[uint32]float32{2: 1, 5: 0.5}, got[0]["sv"])
}

func TestFromColumns_Arrays(t *testing.T) {
	schema, err := NewSchema("arrays", false,
		&FieldSchema{Name: "id", DataType: schemapb.DataType_Int64, IsPrimaryKey: true},
		&FieldSchema{Name: "scores", DataType: schemapb.DataType_Array, ElementType: schemapb.DataType_Int16},
	)
	require.NoError(t, err)
	cs, err := ToColumns(schema, Input{Rows: []Row{{"id": 1, "scores": []int{1, -2}}}}, nil)
	require.NoError(t, err)

	got, err := FromColumns(schema, cs.Fields, nil, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -2}, got[0]["scores"])
}

func TestFromColumns_DecodeTransformer(t *testing.T) {
	schema := docsSchema(t, false)
	cs, err := ToColumns(schema, Input{Rows: docRows(1)}, nil)
	require.NoError(t, err)

	opts := DecodeOptions{Transformers: vectorcodec.Transformers{
		vectorcodec.Float: {Decode: func(b []byte) (any, error) { return len(b), nil }},
	}}
	got, err := FromColumns(schema, cs.Fields, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 8, got[0]["vec"])
}

func searchData(ids []int64, scores []float32, topks []int64) *schemapb.SearchResultData {
	return &schemapb.SearchResultData{
		NumQueries: int64(len(topks)),
		Ids:        &schemapb.IDs{IdField: &schemapb.IDs_IntId{IntId: &schemapb.LongArray{Data: ids}}},
		Scores:     scores,
		Topks:      topks,
	}
}

func TestDecodeSearch_SplitsByTopks(t *testing.T) {
	schema := docsSchema(t, false)
	data := searchData([]int64{1, 2, 3, 4, 5}, []float32{0.9, 0.8, 0.7, 0.95, 0.5}, []int64{3, 2})
	data.FieldsData = []*schemapb.FieldData{{
		Type: schemapb.DataType_VarChar, FieldName: "title",
		Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
			Data: &schemapb.ScalarField_StringData{StringData: &schemapb.StringArray{Data: []string{"a", "b", "c", "d", "e"}}},
		}},
	}}
	data.Recalls = []float32{0.9, 1}

	results, err := DecodeSearch(schema, data, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0].Rows, 3)
	assert.Len(t, results[1].Rows, 2)
	assert.Equal(t, int64(4), results[1].Rows[0][IDKey])
	assert.Equal(t, float32(0.95), results[1].Rows[0][ScoreKey])
	assert.Equal(t, "d", results[1].Rows[0]["title"])
	require.NotNil(t, results[0].Recall)
	assert.Equal(t, float32(0.9), *results[0].Recall)
}

func TestDecodeSearch_EmptyQueriesKeepTheirSlot(t *testing.T) {
	schema := docsSchema(t, false)
	results, err := DecodeSearch(schema, searchData([]int64{7}, []float32{1}, []int64{0, 1}), DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Rows)
	assert.Equal(t, int64(7), results[1].Rows[0][IDKey])
}

func TestDecodeSearch_InconsistentCounts(t *testing.T) {
	schema := docsSchema(t, false)

	_, err := DecodeSearch(schema, searchData([]int64{1, 2}, []float32{1}, []int64{2}), DecodeOptions{})
	assert.ErrorIs(t, err, ErrRowCountMismatch)

	_, err = DecodeSearch(schema, searchData([]int64{1, 2}, []float32{1, 2}, []int64{3}), DecodeOptions{})
	assert.ErrorIs(t, err, ErrRowCountMismatch)

	_, err = DecodeSearch(schema, searchData([]int64{1, 2}, []float32{1, 2}, []int64{3, -1}), DecodeOptions{})
	assert.ErrorIs(t, err, ErrRowCountMismatch)
}

func TestDecodeSearch_IDAndScoreOverrideFields(t *testing.T) {
	schema, err := NewSchema("s", false,
		&FieldSchema{Name: "pk", DataType: schemapb.DataType_Int64, IsPrimaryKey: true},
		&FieldSchema{Name: "score", DataType: schemapb.DataType_Double},
	)
	require.NoError(t, err)
	data := searchData([]int64{1}, []float32{0.5}, []int64{1})
	data.FieldsData = []*schemapb.FieldData{{
		Type: schemapb.DataType_Double, FieldName: "score",
		Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
			Data: &schemapb.ScalarField_DoubleData{DoubleData: &schemapb.DoubleArray{Data: []float64{42}}},
		}},
	}}

	results, err := DecodeSearch(schema, data, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), results[0].Rows[0][ScoreKey])
}

func TestDecodeSearch_Groups(t *testing.T) {
	schema := docsSchema(t, false)
	data := searchData([]int64{1, 2, 3, 4}, []float32{0.9, 0.85, 0.8, 0.95}, []int64{4})
	data.GroupByFieldValue = &schemapb.FieldData{
		Type: schemapb.DataType_VarChar, FieldName: "title",
		Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
			Data: &schemapb.ScalarField_StringData{StringData: &schemapb.StringArray{Data: []string{"a", "b", "a", "b"}}},
		}},
	}

	results, err := DecodeSearch(schema, data, DecodeOptions{})
	require.NoError(t, err)
	groups := results[0].Groups
	require.Len(t, groups, 2)
	assert.Equal(t, "b", groups[0].Value)
	assert.Equal(t, float32(0.95), groups[0].BestScore)
	assert.Equal(t, []any{int64(2), int64(4)}, hitIDs(groups[0].Rows))
	assert.Equal(t, "a", groups[1].Value)

	lower, err := DecodeSearch(schema, data, DecodeOptions{LowerIsBetter: true})
	require.NoError(t, err)
	assert.Equal(t, "a", lower[0].Groups[0].Value)
	assert.Equal(t, float32(0.8), lower[0].Groups[0].BestScore)
}

func hitIDs(rows []Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[IDKey]
	}
	return out
}

func TestTruncateScore(t *testing.T) {
	d := func(n int) *int { return &n }
	tests := []struct {
		in   float32
		dec  *int
		want float32
	}{
		{0.98765, d(2), 0.98},
		{0.98765, d(0), 0},
		{-1.239, d(1), -1.2},
		{0.3, d(4), 0.3},
		{0.98765, nil, 0.98765},
		{0.98765, d(-1), 0.98765},
		{12, d(2), 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateScore(tt.in, tt.dec), "%v", tt.in)
	}
}
