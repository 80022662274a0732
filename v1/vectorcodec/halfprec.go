package vectorcodec

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Float32sToFloat16 encodes floats as IEEE-754 binary16, rounding to nearest
// even.
func Float32sToFloat16(values []float32) []byte {
	out := make([]byte, 2*len(values))
	for i, f := range values {
		binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(f).Bits())
	}
	return out
}

// Float16ToFloat32s decodes a binary16 buffer. A trailing odd byte is ignored.
func Float16ToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
	}
	return out
}

// Float32sToBFloat16 encodes floats as bfloat16, rounding to nearest even.
func Float32sToBFloat16(values []float32) []byte {
	out := make([]byte, 2*len(values))
	for i, f := range values {
		binary.LittleEndian.PutUint16(out[2*i:], bfloat16Bits(f))
	}
	return out
}

// BFloat16ToFloat32s decodes a bfloat16 buffer. A trailing odd byte is ignored.
func BFloat16ToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(b[2*i:])) << 16)
	}
	return out
}

// bfloat16Bits keeps the top 16 bits of the float32, rounding the dropped
// half to nearest even. NaN payloads collapse to a quiet NaN.
func bfloat16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return uint16(bits>>16) | 0x0040
	}
	lsb := (bits >> 16) & 1
	bits += 0x7fff + lsb
	return uint16(bits >> 16)
}

// encodeHalf handles both half precision subtypes: an already-encoded buffer
// passes through after a length check, a float sequence is rounded element by
// element.
func encodeHalf(s Subtype, dim int, value any) (Vector, error) {
	if b, ok := value.([]byte); ok {
		return FromBytes(s, dim, b)
	}
	floats, ok := numericSlice(value)
	if !ok {
		return nil, unsupported(s, value)
	}
	if err := checkDim(s, dim, len(floats)); err != nil {
		return nil, err
	}
	f32 := make([]float32, len(floats))
	for i, f := range floats {
		if !finite(f) {
			return nil, outOfRange(s, i, f)
		}
		f32[i] = float32(f)
	}
	if s == Float16 {
		return Float16Vector(Float32sToFloat16(f32)), nil
	}
	return BFloat16Vector(Float32sToBFloat16(f32)), nil
}
