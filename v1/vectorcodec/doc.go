// Package vectorcodec converts single vector values between their row form
// and the byte layouts Milvus expects inside a columnar payload.
//
// # Subtypes
//
// The set of vector encodings is closed. Each Subtype has exactly one wire
// type implementing Vector:
//
//	Float     -> FloatVector    []float32
//	Float16   -> Float16Vector  2 bytes per element, IEEE-754 binary16
//	BFloat16  -> BFloat16Vector 2 bytes per element, bfloat16
//	Binary    -> BinaryVector   ceil(dim/8) bytes, MSB first
//	Int8      -> Int8Vector     []int8
//	Sparse    -> SparseVector   (uint32 index, float32 value) pairs, ascending
//
// Code that handles wire vectors uses a type switch over these six types.
//
// # Encoding and decoding
//
//	wire, err := vectorcodec.Encode(vectorcodec.Float16, 768, embedding, nil)
//	value, err := vectorcodec.Decode(wire, 768, vectorcodec.DecodeOptions{})
//
// Half precision and binary values decode to raw byte buffers. Sparse values
// decode to map[uint32]float32 unless DecodeOptions.SparseShape asks for CSR,
// COO or a positional array.
//
// # Transformers
//
// A Transformers registry replaces the built-in conversion for the subtypes
// it names, for a single call only:
//
//	tr := vectorcodec.Transformers{
//	    vectorcodec.Float16: {
//	        Decode: func(b []byte) (any, error) { return vectorcodec.Float16ToFloat32s(b), nil },
//	    },
//	}
//
// Encode output is still length-checked; Decode output is returned untouched.
//
// All functions are pure and safe for concurrent use.
package vectorcodec
