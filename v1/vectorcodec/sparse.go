package vectorcodec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// SparseShape selects the row-side representation of a decoded sparse vector.
type SparseShape int

const (
	// ShapeMap decodes to map[uint32]float32.
	ShapeMap SparseShape = iota
	// ShapeCSR decodes to SparseCSR.
	ShapeCSR
	// ShapeCOO decodes to []SparseEntry.
	ShapeCOO
	// ShapeArray decodes to a positional []float32 with zeros for absent
	// indices.
	ShapeArray
)

// SparseCSR is the compressed-sparse-row form of one sparse vector: parallel
// index and value slices.
type SparseCSR struct {
	Indices []int64   `json:"indices"`
	Values  []float32 `json:"values"`
}

// SparseEntry is one coordinate-list element.
type SparseEntry struct {
	Index int64   `json:"index"`
	Value float32 `json:"value"`
}

// maxSparseIndex is the largest index the wire format can carry.
const maxSparseIndex = math.MaxUint32 - 1

// MaxArrayShapeLen bounds the positional slice ShapeArray allocates. Vectors
// with a larger index must be decoded into one of the sparse shapes.
const MaxArrayShapeLen = 1 << 24

// NormalizeSparse converts any accepted sparse shape into the canonical wire
// row. Accepted shapes:
//
//   - positional array: []float32 / []float64 (zero entries are absent) or
//     []any where nil marks an absent index
//   - mapping: map[K]V with an integer or decimal-string key and a float
//     value, e.g. map[uint32]float32, map[int]float64, map[string]any
//   - compressed-sparse-row: SparseCSR, *SparseCSR, or a map[string]any with
//     "indices" and "values" keys
//   - coordinate-list: []SparseEntry or []any of maps with "index" and
//     "value" keys
//
// Indices must be non-negative and unique; values must be finite.
func NormalizeSparse(value any) (SparseVector, error) {
	entries, err := sparseEntries(value)
	if err != nil {
		return nil, err
	}
	return canonicalize(entries)
}

type rawEntry struct {
	index int64
	value float64
}

func sparseEntries(value any) ([]rawEntry, error) {
	switch v := value.(type) {
	case SparseVector:
		out := make([]rawEntry, v.Len())
		for i := range out {
			idx, val := v.Entry(i)
			out[i] = rawEntry{int64(idx), float64(val)}
		}
		return out, nil
	case SparseCSR:
		return csrEntries(v.Indices, v.Values)
	case *SparseCSR:
		if v == nil {
			return nil, nil
		}
		return csrEntries(v.Indices, v.Values)
	case []SparseEntry:
		out := make([]rawEntry, len(v))
		for i, e := range v {
			out[i] = rawEntry{e.Index, float64(e.Value)}
		}
		return out, nil
	case []float32:
		return positionalEntries(convertSlice(v)), nil
	case []float64:
		return positionalEntries(v), nil
	case []any:
		return anySliceEntries(v)
	case map[uint32]float32:
		return mapEntries(v), nil
	case map[uint32]float64:
		return mapEntries(v), nil
	case map[int]float32:
		return mapEntries(v), nil
	case map[int]float64:
		return mapEntries(v), nil
	case map[int64]float32:
		return mapEntries(v), nil
	case map[int64]float64:
		return mapEntries(v), nil
	case map[string]float32:
		return stringMapEntries(v, func(f float32) (float64, bool) { return float64(f), true })
	case map[string]float64:
		return stringMapEntries(v, func(f float64) (float64, bool) { return f, true })
	case map[string]any:
		if idx, ok := v["indices"]; ok {
			return jsonCSREntries(idx, v["values"])
		}
		return stringMapEntries(v, toFloat64)
	default:
		return nil, unsupported(Sparse, value)
	}
}

func csrEntries(indices []int64, values []float32) ([]rawEntry, error) {
	if len(indices) != len(values) {
		return nil, fmt.Errorf("%w: csr has %d indices and %d values", ErrInvalidDimension, len(indices), len(values))
	}
	out := make([]rawEntry, len(indices))
	for i := range indices {
		out[i] = rawEntry{indices[i], float64(values[i])}
	}
	return out, nil
}

func jsonCSREntries(indices, values any) ([]rawEntry, error) {
	idx, ok := numericSlice(indices)
	if !ok {
		return nil, unsupported(Sparse, indices)
	}
	val, ok := numericSlice(values)
	if !ok {
		return nil, unsupported(Sparse, values)
	}
	if len(idx) != len(val) {
		return nil, fmt.Errorf("%w: csr has %d indices and %d values", ErrInvalidDimension, len(idx), len(val))
	}
	out := make([]rawEntry, len(idx))
	for i := range idx {
		if idx[i] != math.Trunc(idx[i]) {
			return nil, fmt.Errorf("%w: non-integer sparse index %v", ErrUnsupportedValue, idx[i])
		}
		out[i] = rawEntry{int64(idx[i]), val[i]}
	}
	return out, nil
}

func positionalEntries(values []float64) []rawEntry {
	var out []rawEntry
	for i, f := range values {
		if f != 0 {
			out = append(out, rawEntry{int64(i), f})
		}
	}
	return out
}

// anySliceEntries handles both the positional array with nil holes and the
// coordinate list decoded from JSON. The first non-nil element decides.
// Positional zeros are absent entries, as in positionalEntries.
func anySliceEntries(values []any) ([]rawEntry, error) {
	coo := false
	for _, e := range values {
		if e == nil {
			continue
		}
		_, coo = e.(map[string]any)
		break
	}

	var out []rawEntry
	for i, e := range values {
		if e == nil {
			continue
		}
		if !coo {
			f, ok := toFloat64(e)
			if !ok {
				return nil, unsupported(Sparse, e)
			}
			if f != 0 {
				out = append(out, rawEntry{int64(i), f})
			}
			continue
		}
		m, ok := e.(map[string]any)
		if !ok {
			return nil, unsupported(Sparse, e)
		}
		idx, ok := toFloat64(m["index"])
		if !ok || idx != math.Trunc(idx) {
			return nil, fmt.Errorf("%w: coordinate %d has no integer index", ErrUnsupportedValue, i)
		}
		val, ok := toFloat64(m["value"])
		if !ok {
			return nil, fmt.Errorf("%w: coordinate %d has no numeric value", ErrUnsupportedValue, i)
		}
		out = append(out, rawEntry{int64(idx), val})
	}
	return out, nil
}

type mapKey interface {
	~uint32 | ~int | ~int64
}

type mapValue interface {
	~float32 | ~float64
}

func mapEntries[K mapKey, V mapValue](m map[K]V) []rawEntry {
	out := make([]rawEntry, 0, len(m))
	for k, v := range m {
		out = append(out, rawEntry{int64(k), float64(v)})
	}
	return out
}

func stringMapEntries[V any](m map[string]V, conv func(V) (float64, bool)) ([]rawEntry, error) {
	out := make([]rawEntry, 0, len(m))
	for k, v := range m {
		idx, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: sparse key %q is not an integer", ErrUnsupportedValue, k)
		}
		f, ok := conv(v)
		if !ok {
			return nil, fmt.Errorf("%w: sparse value for key %q is %T", ErrUnsupportedValue, k, v)
		}
		out = append(out, rawEntry{idx, f})
	}
	return out, nil
}

func canonicalize(entries []rawEntry) (SparseVector, error) {
	for _, e := range entries {
		if e.index < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeIndex, e.index)
		}
		if e.index > maxSparseIndex {
			return nil, fmt.Errorf("%w: sparse index %d exceeds %d", ErrValueOutOfRange, e.index, int64(maxSparseIndex))
		}
		if !finite(e.value) || math.Abs(e.value) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: sparse value at index %d is %v", ErrValueOutOfRange, e.index, e.value)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	out := make(SparseVector, 8*len(entries))
	for i, e := range entries {
		if i > 0 && entries[i-1].index == e.index {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateIndex, e.index)
		}
		binary.LittleEndian.PutUint32(out[8*i:], uint32(e.index))
		binary.LittleEndian.PutUint32(out[8*i+4:], math.Float32bits(float32(e.value)))
	}
	return out, nil
}

// Shape renders the vector in the requested row-side shape.
func (v SparseVector) Shape(shape SparseShape) (any, error) {
	n := v.Len()
	switch shape {
	case ShapeMap:
		out := make(map[uint32]float32, n)
		for i := 0; i < n; i++ {
			idx, val := v.Entry(i)
			out[idx] = val
		}
		return out, nil
	case ShapeCSR:
		out := SparseCSR{Indices: make([]int64, n), Values: make([]float32, n)}
		for i := 0; i < n; i++ {
			idx, val := v.Entry(i)
			out.Indices[i], out.Values[i] = int64(idx), val
		}
		return out, nil
	case ShapeCOO:
		out := make([]SparseEntry, n)
		for i := 0; i < n; i++ {
			idx, val := v.Entry(i)
			out[i] = SparseEntry{Index: int64(idx), Value: val}
		}
		return out, nil
	case ShapeArray:
		if v.MaxIndex() >= MaxArrayShapeLen {
			return nil, fmt.Errorf("%w: sparse index %d is too large for a positional array", ErrValueOutOfRange, v.MaxIndex())
		}
		out := make([]float32, v.MaxIndex()+1)
		for i := 0; i < n; i++ {
			idx, val := v.Entry(i)
			out[idx] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: sparse shape %d", ErrUnsupportedValue, int(shape))
	}
}
