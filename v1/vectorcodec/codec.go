package vectorcodec

import (
	"fmt"
	"math"
)

// Transformer overrides the built-in conversion of one subtype. Encode turns
// a caller value into the subtype's byte layout; Decode turns the byte layout
// into whatever the caller wants back. Either side may be nil.
type Transformer struct {
	Encode func(value any) ([]byte, error)
	Decode func(wire []byte) (any, error)
}

// Transformers is a per-call registry keyed by subtype. A nil registry, or a
// subtype with no entry, falls back to the built-in codec.
type Transformers map[Subtype]Transformer

func (t Transformers) encoder(s Subtype) func(any) ([]byte, error) {
	if t == nil {
		return nil
	}
	return t[s].Encode
}

func (t Transformers) decoder(s Subtype) func([]byte) (any, error) {
	if t == nil {
		return nil
	}
	return t[s].Decode
}

// DecodeOptions controls the row-side representation produced by Decode.
type DecodeOptions struct {
	Transformers Transformers
	// SparseShape selects the sparse output shape. Zero value is ShapeMap.
	SparseShape SparseShape
}

// Encode converts a row value into its wire vector.
//
// Accepted inputs per subtype:
//   - Float: []float32, []float64, integer slices, []any of numbers.
//   - Float16 / BFloat16: any numeric slice (rounded to nearest even), or
//     []byte of exactly 2*dim bytes which is passed through.
//   - Binary: []bool or a numeric slice of 0/1 values with exactly dim
//     elements, or []byte already packed (dim must be a multiple of 8).
//   - Int8: []int8, numeric slices in [-128,127], or []byte as raw two's
//     complement.
//   - Sparse: any of the shapes documented on NormalizeSparse.
//
// A Vector of the right subtype is accepted as is. When the registry
// holds an Encode function for the subtype it replaces all of the above and
// its output is validated with FromBytes.
func Encode(s Subtype, dim int, value any, tr Transformers) (Vector, error) {
	if fn := tr.encoder(s); fn != nil {
		b, err := fn(value)
		if err != nil {
			return nil, fmt.Errorf("%s transformer: %w", s, err)
		}
		return FromBytes(s, dim, b)
	}
	if v, ok := value.(Vector); ok {
		if v.Subtype() != s {
			return nil, fmt.Errorf("%w: %s value for %s field", ErrUnsupportedValue, v.Subtype(), s)
		}
		return FromBytes(s, dim, v.Bytes())
	}

	switch s {
	case Float:
		return encodeFloat(dim, value)
	case Float16, BFloat16:
		return encodeHalf(s, dim, value)
	case Binary:
		return encodeBinary(dim, value)
	case Int8:
		return encodeInt8(dim, value)
	case Sparse:
		return NormalizeSparse(value)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownSubtype, int(s))
	}
}

// Decode converts a wire vector back into its row value.
//
// Defaults: Float -> []float32, Float16/BFloat16/Binary -> []byte,
// Int8 -> []int8, Sparse -> the shape from opts (map[uint32]float32 by
// default). A registered Decode function receives v.Bytes() and its return
// value is passed through untouched.
func Decode(v Vector, dim int, opts DecodeOptions) (any, error) {
	if v == nil {
		return nil, nil
	}
	s := v.Subtype()
	if s != Sparse {
		if want := ByteLen(s, dim); dim > 0 && denseByteLen(v) != want {
			return nil, fmt.Errorf("%w: %s of dim %d needs %d bytes, got %d", ErrInvalidDimension, s, dim, want, denseByteLen(v))
		}
	}
	if fn := opts.Transformers.decoder(s); fn != nil {
		return fn(v.Bytes())
	}

	switch w := v.(type) {
	case FloatVector:
		return append([]float32(nil), w...), nil
	case Float16Vector:
		return w.Bytes(), nil
	case BFloat16Vector:
		return w.Bytes(), nil
	case BinaryVector:
		return w.Bytes(), nil
	case Int8Vector:
		return append([]int8(nil), w...), nil
	case SparseVector:
		return w.Shape(opts.SparseShape)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownSubtype, v)
	}
}

func denseByteLen(v Vector) int {
	switch w := v.(type) {
	case FloatVector:
		return 4 * len(w)
	case Int8Vector:
		return len(w)
	case Float16Vector:
		return len(w)
	case BFloat16Vector:
		return len(w)
	case BinaryVector:
		return len(w)
	}
	return -1
}

func encodeFloat(dim int, value any) (Vector, error) {
	if f, ok := value.([]float32); ok {
		if err := checkDim(Float, dim, len(f)); err != nil {
			return nil, err
		}
		for i, x := range f {
			if !finite(float64(x)) {
				return nil, outOfRange(Float, i, float64(x))
			}
		}
		return FloatVector(append([]float32(nil), f...)), nil
	}
	floats, ok := numericSlice(value)
	if !ok {
		return nil, unsupported(Float, value)
	}
	if err := checkDim(Float, dim, len(floats)); err != nil {
		return nil, err
	}
	out := make(FloatVector, len(floats))
	for i, f := range floats {
		if !finite(f) || math.Abs(f) > math.MaxFloat32 {
			return nil, outOfRange(Float, i, f)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func encodeBinary(dim int, value any) (Vector, error) {
	if packed, ok := value.([]byte); ok {
		if dim%8 != 0 {
			return nil, fmt.Errorf("%w: packed binary input needs a dimension divisible by 8, got %d", ErrInvalidDimension, dim)
		}
		return FromBytes(Binary, dim, packed)
	}
	bits, ok := numericSlice(value)
	if !ok {
		return nil, unsupported(Binary, value)
	}
	if err := checkDim(Binary, dim, len(bits)); err != nil {
		return nil, err
	}
	out := make(BinaryVector, (dim+7)/8)
	for i, b := range bits {
		switch b {
		case 0:
		case 1:
			out[i/8] |= 0x80 >> (i % 8)
		default:
			return nil, outOfRange(Binary, i, b)
		}
	}
	return out, nil
}

// UnpackBits expands a packed binary vector into dim 0/1 values.
func UnpackBits(packed []byte, dim int) []uint8 {
	n := dim
	if n > len(packed)*8 {
		n = len(packed) * 8
	}
	out := make([]uint8, n)
	for i := range out {
		if packed[i/8]&(0x80>>(i%8)) != 0 {
			out[i] = 1
		}
	}
	return out
}

func encodeInt8(dim int, value any) (Vector, error) {
	switch v := value.(type) {
	case []int8:
		if err := checkDim(Int8, dim, len(v)); err != nil {
			return nil, err
		}
		return Int8Vector(append([]int8(nil), v...)), nil
	case []byte:
		return FromBytes(Int8, dim, v)
	}
	nums, ok := numericSlice(value)
	if !ok {
		return nil, unsupported(Int8, value)
	}
	if err := checkDim(Int8, dim, len(nums)); err != nil {
		return nil, err
	}
	out := make(Int8Vector, len(nums))
	for i, n := range nums {
		if n < math.MinInt8 || n > math.MaxInt8 || n != math.Trunc(n) {
			return nil, outOfRange(Int8, i, n)
		}
		out[i] = int8(n)
	}
	return out, nil
}

func checkDim(s Subtype, dim, got int) error {
	if dim <= 0 || got != dim {
		return fmt.Errorf("%w: %s expects %d elements, got %d", ErrInvalidDimension, s, dim, got)
	}
	return nil
}

func outOfRange(s Subtype, pos int, v float64) error {
	return fmt.Errorf("%w: %s element %d = %v", ErrValueOutOfRange, s, pos, v)
}

func unsupported(s Subtype, value any) error {
	return fmt.Errorf("%w: %T for %s", ErrUnsupportedValue, value, s)
}
