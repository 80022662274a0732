package vectorcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
)

// Subtype identifies one of the closed set of vector encodings.
type Subtype int

const (
	Float Subtype = iota + 1
	Float16
	BFloat16
	Binary
	Int8
	Sparse
)

// Subtypes lists every supported subtype in declaration order.
var Subtypes = []Subtype{Float, Float16, BFloat16, Binary, Int8, Sparse}

func (s Subtype) String() string {
	switch s {
	case Float:
		return "FloatVector"
	case Float16:
		return "Float16Vector"
	case BFloat16:
		return "BFloat16Vector"
	case Binary:
		return "BinaryVector"
	case Int8:
		return "Int8Vector"
	case Sparse:
		return "SparseFloatVector"
	default:
		return fmt.Sprintf("Subtype(%d)", int(s))
	}
}

// DataType returns the wire data type of the subtype.
func (s Subtype) DataType() schemapb.DataType {
	switch s {
	case Float:
		return schemapb.DataType_FloatVector
	case Float16:
		return schemapb.DataType_Float16Vector
	case BFloat16:
		return schemapb.DataType_BFloat16Vector
	case Binary:
		return schemapb.DataType_BinaryVector
	case Int8:
		return schemapb.DataType_Int8Vector
	case Sparse:
		return schemapb.DataType_SparseFloatVector
	default:
		return schemapb.DataType_None
	}
}

// SubtypeOf maps a wire data type to its subtype. The second return value is
// false for non-vector types.
func SubtypeOf(dt schemapb.DataType) (Subtype, bool) {
	switch dt {
	case schemapb.DataType_FloatVector:
		return Float, true
	case schemapb.DataType_Float16Vector:
		return Float16, true
	case schemapb.DataType_BFloat16Vector:
		return BFloat16, true
	case schemapb.DataType_BinaryVector:
		return Binary, true
	case schemapb.DataType_Int8Vector:
		return Int8, true
	case schemapb.DataType_SparseFloatVector:
		return Sparse, true
	default:
		return 0, false
	}
}

// Vector is the wire form of one vector value. The set of implementations is
// closed: FloatVector, Float16Vector, BFloat16Vector, BinaryVector,
// Int8Vector and SparseVector.
type Vector interface {
	Subtype() Subtype
	// Bytes returns the little-endian byte layout of the vector, the same
	// buffer a Transformer receives on decode.
	Bytes() []byte
	isVector()
}

// FloatVector is a dense float32 vector.
type FloatVector []float32

// Float16Vector holds IEEE-754 binary16 values, 2 little-endian bytes each.
type Float16Vector []byte

// BFloat16Vector holds bfloat16 values, 2 little-endian bytes each.
type BFloat16Vector []byte

// BinaryVector holds packed bits, most significant bit first.
type BinaryVector []byte

// Int8Vector is a dense signed byte vector.
type Int8Vector []int8

// SparseVector is the canonical sparse row: (uint32 index, float32 value)
// little-endian pairs in strictly ascending index order.
type SparseVector []byte

func (FloatVector) Subtype() Subtype    { return Float }
func (Float16Vector) Subtype() Subtype  { return Float16 }
func (BFloat16Vector) Subtype() Subtype { return BFloat16 }
func (BinaryVector) Subtype() Subtype   { return Binary }
func (Int8Vector) Subtype() Subtype     { return Int8 }
func (SparseVector) Subtype() Subtype   { return Sparse }

func (FloatVector) isVector()    {}
func (Float16Vector) isVector()  {}
func (BFloat16Vector) isVector() {}
func (BinaryVector) isVector()   {}
func (Int8Vector) isVector()     {}
func (SparseVector) isVector()   {}

func (v FloatVector) Bytes() []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func (v Float16Vector) Bytes() []byte  { return append([]byte(nil), v...) }
func (v BFloat16Vector) Bytes() []byte { return append([]byte(nil), v...) }
func (v BinaryVector) Bytes() []byte   { return append([]byte(nil), v...) }
func (v SparseVector) Bytes() []byte   { return append([]byte(nil), v...) }

func (v Int8Vector) Bytes() []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}

// Len returns the number of (index, value) pairs.
func (v SparseVector) Len() int { return len(v) / 8 }

// Entry returns the i-th (index, value) pair.
func (v SparseVector) Entry(i int) (uint32, float32) {
	off := 8 * i
	return binary.LittleEndian.Uint32(v[off:]), math.Float32frombits(binary.LittleEndian.Uint32(v[off+4:]))
}

// MaxIndex returns the largest index, or -1 for an empty vector.
func (v SparseVector) MaxIndex() int64 {
	if v.Len() == 0 {
		return -1
	}
	idx, _ := v.Entry(v.Len() - 1)
	return int64(idx)
}

// ByteLen returns the wire byte length of one dense vector of the given
// dimension. Sparse vectors have no fixed length and return -1.
func ByteLen(s Subtype, dim int) int {
	switch s {
	case Float:
		return 4 * dim
	case Float16, BFloat16:
		return 2 * dim
	case Binary:
		return (dim + 7) / 8
	case Int8:
		return dim
	default:
		return -1
	}
}

// FromBytes builds a wire vector from its byte layout after validating the
// length against the dimension. Sparse buffers are checked for canonical
// ordering.
func FromBytes(s Subtype, dim int, b []byte) (Vector, error) {
	if s == Sparse {
		v := SparseVector(append([]byte(nil), b...))
		if err := v.validate(); err != nil {
			return nil, err
		}
		return v, nil
	}
	want := ByteLen(s, dim)
	if want < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSubtype, int(s))
	}
	if dim <= 0 || len(b) != want {
		return nil, fmt.Errorf("%w: %s of dim %d needs %d bytes, got %d", ErrInvalidDimension, s, dim, want, len(b))
	}

	switch s {
	case Float:
		out := make(FloatVector, dim)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return out, nil
	case Float16:
		return Float16Vector(append([]byte(nil), b...)), nil
	case BFloat16:
		return BFloat16Vector(append([]byte(nil), b...)), nil
	case Binary:
		return BinaryVector(append([]byte(nil), b...)), nil
	case Int8:
		out := make(Int8Vector, dim)
		for i := range out {
			out[i] = int8(b[i])
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownSubtype, int(s))
}

func (v SparseVector) validate() error {
	if len(v)%8 != 0 {
		return fmt.Errorf("%w: sparse row of %d bytes is not a whole number of pairs", ErrInvalidDimension, len(v))
	}
	prev := int64(-1)
	for i := 0; i < v.Len(); i++ {
		idx, val := v.Entry(i)
		if int64(idx) == prev {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, idx)
		}
		if int64(idx) < prev {
			return fmt.Errorf("%w: sparse indices not ascending at pair %d", ErrUnsupportedValue, i)
		}
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("%w: sparse value at index %d is not finite", ErrValueOutOfRange, idx)
		}
		prev = int64(idx)
	}
	return nil
}
