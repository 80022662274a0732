package vectorcodec

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSparse_AllShapesProduceIdenticalWire(t *testing.T) {
	shapes := map[string]any{
		"array":       []float32{0, 0.5, 0, 1.25},
		"array holes": []any{nil, 0.5, nil, 1.25},
		"mapping":     map[uint32]float32{3: 1.25, 1: 0.5},
		"string map":  map[string]float64{"1": 0.5, "3": 1.25},
		"csr":         SparseCSR{Indices: []int64{3, 1}, Values: []float32{1.25, 0.5}},
		"coo":         []SparseEntry{{Index: 1, Value: 0.5}, {Index: 3, Value: 1.25}},
	}

	want := make([]byte, 16)
	binary.LittleEndian.PutUint32(want[0:], 1)
	binary.LittleEndian.PutUint32(want[4:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(want[8:], 3)
	binary.LittleEndian.PutUint32(want[12:], math.Float32bits(1.25))

	for name, shape := range shapes {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeSparse(shape)
			require.NoError(t, err)
			assert.Equal(t, want, []byte(got))
		})
	}
}

func TestNormalizeSparse_JSONDecodedShapes(t *testing.T) {
	var csr, coo, dict any
	require.NoError(t, json.Unmarshal([]byte(`{"indices":[3,1],"values":[1.25,0.5]}`), &csr))
	require.NoError(t, json.Unmarshal([]byte(`[{"index":1,"value":0.5},{"index":3,"value":1.25}]`), &coo))
	require.NoError(t, json.Unmarshal([]byte(`{"1":0.5,"3":1.25}`), &dict))

	base, err := NormalizeSparse(map[int]float64{1: 0.5, 3: 1.25})
	require.NoError(t, err)

	for _, in := range []any{csr, coo, dict} {
		got, err := NormalizeSparse(in)
		require.NoError(t, err)
		assert.Equal(t, base, got)
	}

	var positional any
	require.NoError(t, json.Unmarshal([]byte(`[0, 0.5, 0, 1.25]`), &positional))
	got, err := NormalizeSparse(positional)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	typed, err := NormalizeSparse([]float64{0, 0.5, 0, 1.25})
	require.NoError(t, err)
	assert.Equal(t, base, typed)
	assert.Equal(t, 2, got.Len())
}

func TestSparseVector_ArrayShapeIsBounded(t *testing.T) {
	v, err := NormalizeSparse(map[uint32]float32{1: 1, math.MaxUint32 - 1: 2})
	require.NoError(t, err)

	_, err = v.Shape(ShapeArray)
	assert.True(t, IsValueOutOfRangeError(err))

	m, err := v.Shape(ShapeMap)
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestNormalizeSparse_Errors(t *testing.T) {
	_, err := NormalizeSparse([]SparseEntry{{Index: 2, Value: 1}, {Index: 2, Value: 3}})
	assert.True(t, IsDuplicateIndexError(err))

	_, err = NormalizeSparse(map[string]float64{"1": 1, "01": 2})
	assert.True(t, IsDuplicateIndexError(err))

	_, err = NormalizeSparse(map[int]float32{-1: 1})
	assert.True(t, IsNegativeIndexError(err))

	_, err = NormalizeSparse(SparseCSR{Indices: []int64{-5}, Values: []float32{1}})
	assert.True(t, IsNegativeIndexError(err))

	_, err = NormalizeSparse(map[uint32]float64{1: math.NaN()})
	assert.True(t, IsValueOutOfRangeError(err))

	_, err = NormalizeSparse(SparseCSR{Indices: []int64{1, 2}, Values: []float32{1}})
	assert.True(t, IsInvalidDimensionError(err))

	_, err = NormalizeSparse("nope")
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestSparseVector_Shapes(t *testing.T) {
	v, err := NormalizeSparse(map[uint32]float32{4: 2, 0: 1})
	require.NoError(t, err)

	csr, err := v.Shape(ShapeCSR)
	require.NoError(t, err)
	assert.Equal(t, SparseCSR{Indices: []int64{0, 4}, Values: []float32{1, 2}}, csr)

	coo, err := v.Shape(ShapeCOO)
	require.NoError(t, err)
	assert.Equal(t, []SparseEntry{{0, 1}, {4, 2}}, coo)

	arr, err := v.Shape(ShapeArray)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0, 2}, arr)

	assert.Equal(t, int64(4), v.MaxIndex())

	out, err := Decode(v, 0, DecodeOptions{SparseShape: ShapeCOO})
	require.NoError(t, err)
	assert.Equal(t, coo, out)
}

func TestFromBytes_SparseValidation(t *testing.T) {
	_, err := FromBytes(Sparse, 0, []byte{1, 2, 3})
	assert.True(t, IsInvalidDimensionError(err))

	dup := make([]byte, 16)
	binary.LittleEndian.PutUint32(dup[0:], 7)
	binary.LittleEndian.PutUint32(dup[8:], 7)
	_, err = FromBytes(Sparse, 0, dup)
	assert.True(t, IsDuplicateIndexError(err))

	empty, err := FromBytes(Sparse, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), empty.(SparseVector).MaxIndex())
}
