package milvus

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"

	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

// Column is one field's values across all rows, in row order. A nil value
// marks a missing entry.
type Column struct {
	Name   string
	Values []any
}

// Input carries rows for an insert. Exactly one of Rows and Columns must be
// set.
type Input struct {
	Rows    []Row
	Columns []Column
}

// ColumnSet is the columnar payload of an insert: one FieldData per emitted
// field, every one of them NumRows long.
type ColumnSet struct {
	Fields  []*schemapb.FieldData
	NumRows int
}

// Column returns the column of the named field, or nil.
func (c *ColumnSet) Column(name string) *schemapb.FieldData {
	for _, fd := range c.Fields {
		if fd.GetFieldName() == name {
			return fd
		}
	}
	return nil
}

// ToColumns converts row-oriented or column-oriented input into the columnar
// payload for schema. tr overrides vector encoding per subtype for this call.
//
// Fields are emitted in schema order. Auto-id primary keys and function
// outputs are never emitted. Nullable fields carry a validity bitmap with a
// zero placeholder at every null position. Keys outside the schema go into
// the dynamic JSON column when the collection allows it.
func ToColumns(schema *Schema, in Input, tr vectorcodec.Transformers) (*ColumnSet, error) {
	rows, err := inputRows(in)
	if err != nil {
		return nil, err
	}

	builders := make([]*columnBuilder, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.generated() {
			continue
		}
		builders = append(builders, newColumnBuilder(f, len(rows)))
	}
	var dynamic [][]byte
	if schema.EnableDynamicField {
		dynamic = make([][]byte, 0, len(rows))
	}

	for i, row := range rows {
		for _, b := range builders {
			if err := b.add(i, row, tr); err != nil {
				return nil, err
			}
		}
		extra, err := extraFields(schema, i, row)
		if err != nil {
			return nil, err
		}
		if schema.EnableDynamicField {
			dynamic = append(dynamic, extra)
		}
	}

	cs := &ColumnSet{NumRows: len(rows), Fields: make([]*schemapb.FieldData, 0, len(builders)+1)}
	for _, b := range builders {
		cs.Fields = append(cs.Fields, b.build())
	}
	if dynamic != nil {
		cs.Fields = append(cs.Fields, &schemapb.FieldData{
			Type:      schemapb.DataType_JSON,
			FieldName: DynamicFieldName,
			IsDynamic: true,
			Field: &schemapb.FieldData_Scalars{Scalars: &schemapb.ScalarField{
				Data: &schemapb.ScalarField_JsonData{JsonData: &schemapb.JSONArray{Data: dynamic}},
			}},
		})
	}

	for _, fd := range cs.Fields {
		if n := fieldDataLen(fd); n != cs.NumRows {
			return nil, fmt.Errorf("%w: column %q has %d values for %d rows", ErrRowCountMismatch, fd.GetFieldName(), n, cs.NumRows)
		}
	}
	return cs, nil
}

func inputRows(in Input) ([]Row, error) {
	switch {
	case in.Rows != nil && in.Columns != nil, in.Rows == nil && in.Columns == nil:
		return nil, ErrAmbiguousInputShape
	case in.Rows != nil:
		if len(in.Rows) == 0 {
			return nil, ErrEmptyInput
		}
		return in.Rows, nil
	}

	n := -1
	seen := make(map[string]struct{}, len(in.Columns))
	for _, c := range in.Columns {
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: column %q supplied twice", ErrInvalidRequest, c.Name)
		}
		seen[c.Name] = struct{}{}
		if n >= 0 && len(c.Values) != n {
			return nil, fmt.Errorf("%w: column %q has %d values, expected %d", ErrRowCountMismatch, c.Name, len(c.Values), n)
		}
		n = len(c.Values)
	}
	if n <= 0 {
		return nil, ErrEmptyInput
	}

	rows := make([]Row, n)
	for i := range rows {
		row := make(Row, len(in.Columns))
		for _, c := range in.Columns {
			if c.Values[i] != nil {
				row[c.Name] = c.Values[i]
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// extraFields validates the keys of row that the schema does not emit and
// encodes the undeclared ones as a JSON object.
func extraFields(schema *Schema, i int, row Row) ([]byte, error) {
	var unknown []string
	for k := range row {
		f, ok := schema.Field(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if f.generated() && row[k] != nil {
			return nil, fieldErr(k, i, fmt.Errorf("%w: value supplied for a generated field", ErrUnknownField))
		}
	}
	sort.Strings(unknown)
	if !schema.EnableDynamicField {
		if len(unknown) > 0 {
			return nil, fieldErr(unknown[0], i, ErrUnknownField)
		}
		return nil, nil
	}
	extra := make(map[string]any, len(unknown))
	for _, k := range unknown {
		extra[k] = row[k]
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fieldErr(DynamicFieldName, i, fmt.Errorf("%w: %v", ErrUnsupportedValue, err))
	}
	return b, nil
}

// columnBuilder accumulates one field's values. Only the slice matching the
// field's data type is used.
type columnBuilder struct {
	field *FieldSchema

	bools   []bool
	ints    []int32
	longs   []int64
	floats  []float32
	doubles []float64
	strs    []string
	blobs   [][]byte
	arrays  []*schemapb.ScalarField
	vectors []vectorcodec.Vector
	valid   []bool
}

func newColumnBuilder(f *FieldSchema, rows int) *columnBuilder {
	b := &columnBuilder{field: f}
	if f.Nullable {
		b.valid = make([]bool, 0, rows)
	}
	return b
}

func (b *columnBuilder) add(i int, row Row, tr vectorcodec.Transformers) error {
	f := b.field
	v := row[f.Name]
	if v == nil {
		switch {
		case f.Nullable:
			b.valid = append(b.valid, false)
			return b.appendNull()
		case f.DefaultValue != nil:
			v = f.DefaultValue
		default:
			return fieldErr(f.Name, i, ErrMissingRequiredField)
		}
	} else if f.Nullable {
		b.valid = append(b.valid, true)
	}
	if err := b.append(v, tr); err != nil {
		return fieldErr(f.Name, i, err)
	}
	return nil
}

func (b *columnBuilder) append(v any, tr vectorcodec.Transformers) error {
	f := b.field
	if st, ok := f.VectorSubtype(); ok {
		vec, err := vectorcodec.Encode(st, f.Dim, v, tr)
		if err != nil {
			return err
		}
		b.vectors = append(b.vectors, vec)
		return nil
	}

	switch f.DataType {
	case schemapb.DataType_Bool:
		x, ok := asBool(v)
		if !ok {
			return typeErr(f.DataType, v)
		}
		b.bools = append(b.bools, x)
	case schemapb.DataType_Int8, schemapb.DataType_Int16, schemapb.DataType_Int32:
		x, err := intInRange(f.DataType, v)
		if err != nil {
			return err
		}
		b.ints = append(b.ints, int32(x))
	case schemapb.DataType_Int64:
		x, ok := asInt64(v)
		if !ok {
			return typeErr(f.DataType, v)
		}
		b.longs = append(b.longs, x)
	case schemapb.DataType_Float:
		x, ok := asFloat64(v)
		if !ok {
			return typeErr(f.DataType, v)
		}
		b.floats = append(b.floats, float32(x))
	case schemapb.DataType_Double:
		x, ok := asFloat64(v)
		if !ok {
			return typeErr(f.DataType, v)
		}
		b.doubles = append(b.doubles, x)
	case schemapb.DataType_VarChar, schemapb.DataType_String:
		s, ok := v.(string)
		if !ok {
			return typeErr(f.DataType, v)
		}
		if f.MaxLength > 0 && len(s) > f.MaxLength {
			return fmt.Errorf("%w: %d bytes exceed max_length %d", ErrValueOutOfRange, len(s), f.MaxLength)
		}
		if !utf8.ValidString(s) {
			return fmt.Errorf("%w: string is not valid UTF-8", ErrUnsupportedValue)
		}
		b.strs = append(b.strs, s)
	case schemapb.DataType_JSON:
		blob, err := jsonValue(v)
		if err != nil {
			return err
		}
		b.blobs = append(b.blobs, blob)
	case schemapb.DataType_Array:
		arr, err := arrayValue(f, v)
		if err != nil {
			return err
		}
		b.arrays = append(b.arrays, arr)
	default:
		return fmt.Errorf("%w: data type %s", ErrUnsupportedValue, f.DataType)
	}
	return nil
}

// appendNull stores the placeholder for a null entry.
func (b *columnBuilder) appendNull() error {
	f := b.field
	if st, ok := f.VectorSubtype(); ok {
		if st == vectorcodec.Sparse {
			b.vectors = append(b.vectors, vectorcodec.SparseVector{})
			return nil
		}
		vec, err := vectorcodec.FromBytes(st, f.Dim, make([]byte, vectorcodec.ByteLen(st, f.Dim)))
		if err != nil {
			return err
		}
		b.vectors = append(b.vectors, vec)
		return nil
	}
	switch f.DataType {
	case schemapb.DataType_Bool:
		b.bools = append(b.bools, false)
	case schemapb.DataType_Int8, schemapb.DataType_Int16, schemapb.DataType_Int32:
		b.ints = append(b.ints, 0)
	case schemapb.DataType_Int64:
		b.longs = append(b.longs, 0)
	case schemapb.DataType_Float:
		b.floats = append(b.floats, 0)
	case schemapb.DataType_Double:
		b.doubles = append(b.doubles, 0)
	case schemapb.DataType_VarChar, schemapb.DataType_String:
		b.strs = append(b.strs, "")
	case schemapb.DataType_JSON:
		b.blobs = append(b.blobs, []byte("null"))
	case schemapb.DataType_Array:
		b.arrays = append(b.arrays, emptyArray(f.ElementType))
	default:
		return fmt.Errorf("%w: data type %s", ErrUnsupportedValue, f.DataType)
	}
	return nil
}

func (b *columnBuilder) build() *schemapb.FieldData {
	f := b.field
	fd := &schemapb.FieldData{
		Type:      f.DataType,
		FieldName: f.Name,
		FieldId:   f.FieldID,
		ValidData: b.valid,
	}
	if st, ok := f.VectorSubtype(); ok {
		fd.Field = &schemapb.FieldData_Vectors{Vectors: vectorColumn(st, f.Dim, b.vectors)}
		return fd
	}

	sf := &schemapb.ScalarField{}
	switch f.DataType {
	case schemapb.DataType_Bool:
		sf.Data = &schemapb.ScalarField_BoolData{BoolData: &schemapb.BoolArray{Data: b.bools}}
	case schemapb.DataType_Int8, schemapb.DataType_Int16, schemapb.DataType_Int32:
		sf.Data = &schemapb.ScalarField_IntData{IntData: &schemapb.IntArray{Data: b.ints}}
	case schemapb.DataType_Int64:
		sf.Data = &schemapb.ScalarField_LongData{LongData: &schemapb.LongArray{Data: b.longs}}
	case schemapb.DataType_Float:
		sf.Data = &schemapb.ScalarField_FloatData{FloatData: &schemapb.FloatArray{Data: b.floats}}
	case schemapb.DataType_Double:
		sf.Data = &schemapb.ScalarField_DoubleData{DoubleData: &schemapb.DoubleArray{Data: b.doubles}}
	case schemapb.DataType_VarChar, schemapb.DataType_String:
		sf.Data = &schemapb.ScalarField_StringData{StringData: &schemapb.StringArray{Data: b.strs}}
	case schemapb.DataType_JSON:
		sf.Data = &schemapb.ScalarField_JsonData{JsonData: &schemapb.JSONArray{Data: b.blobs}}
	case schemapb.DataType_Array:
		sf.Data = &schemapb.ScalarField_ArrayData{ArrayData: &schemapb.ArrayArray{Data: b.arrays, ElementType: f.ElementType}}
	}
	fd.Field = &schemapb.FieldData_Scalars{Scalars: sf}
	return fd
}

// vectorColumn concatenates per-row wire vectors into one vector field.
// Sparse columns report the largest index plus one as their dimension.
func vectorColumn(st vectorcodec.Subtype, dim int, vecs []vectorcodec.Vector) *schemapb.VectorField {
	vf := &schemapb.VectorField{Dim: int64(dim)}
	switch st {
	case vectorcodec.Float:
		data := make([]float32, 0, len(vecs)*dim)
		for _, v := range vecs {
			data = append(data, v.(vectorcodec.FloatVector)...)
		}
		vf.Data = &schemapb.VectorField_FloatVector{FloatVector: &schemapb.FloatArray{Data: data}}
	case vectorcodec.Float16:
		vf.Data = &schemapb.VectorField_Float16Vector{Float16Vector: concatBytes(vecs)}
	case vectorcodec.BFloat16:
		vf.Data = &schemapb.VectorField_Bfloat16Vector{Bfloat16Vector: concatBytes(vecs)}
	case vectorcodec.Binary:
		vf.Data = &schemapb.VectorField_BinaryVector{BinaryVector: concatBytes(vecs)}
	case vectorcodec.Int8:
		vf.Data = &schemapb.VectorField_Int8Vector{Int8Vector: concatBytes(vecs)}
	case vectorcodec.Sparse:
		contents := make([][]byte, len(vecs))
		var maxIdx int64 = -1
		for i, v := range vecs {
			sv := v.(vectorcodec.SparseVector)
			contents[i] = sv.Bytes()
			maxIdx = max(maxIdx, sv.MaxIndex())
		}
		vf.Dim = maxIdx + 1
		vf.Data = &schemapb.VectorField_SparseFloatVector{SparseFloatVector: &schemapb.SparseFloatArray{Contents: contents, Dim: maxIdx + 1}}
	}
	return vf
}

func concatBytes(vecs []vectorcodec.Vector) []byte {
	var out []byte
	for _, v := range vecs {
		out = append(out, v.Bytes()...)
	}
	return out
}

// fieldDataLen returns the number of rows a column carries. Nullable
// columns are measured by their validity bitmap.
func fieldDataLen(fd *schemapb.FieldData) int {
	if len(fd.GetValidData()) > 0 {
		return len(fd.GetValidData())
	}
	switch d := fd.GetScalars().GetData().(type) {
	case *schemapb.ScalarField_BoolData:
		return len(d.BoolData.GetData())
	case *schemapb.ScalarField_IntData:
		return len(d.IntData.GetData())
	case *schemapb.ScalarField_LongData:
		return len(d.LongData.GetData())
	case *schemapb.ScalarField_FloatData:
		return len(d.FloatData.GetData())
	case *schemapb.ScalarField_DoubleData:
		return len(d.DoubleData.GetData())
	case *schemapb.ScalarField_StringData:
		return len(d.StringData.GetData())
	case *schemapb.ScalarField_BytesData:
		return len(d.BytesData.GetData())
	case *schemapb.ScalarField_JsonData:
		return len(d.JsonData.GetData())
	case *schemapb.ScalarField_ArrayData:
		return len(d.ArrayData.GetData())
	}
	return vectorDataLen(fd.GetVectors())
}

func vectorDataLen(vf *schemapb.VectorField) int {
	if vf == nil {
		return 0
	}
	dim := int(vf.GetDim())
	switch d := vf.GetData().(type) {
	case *schemapb.VectorField_SparseFloatVector:
		return len(d.SparseFloatVector.GetContents())
	case *schemapb.VectorField_FloatVector:
		return divOrZero(len(d.FloatVector.GetData()), dim)
	case *schemapb.VectorField_Float16Vector:
		return divOrZero(len(d.Float16Vector), 2*dim)
	case *schemapb.VectorField_Bfloat16Vector:
		return divOrZero(len(d.Bfloat16Vector), 2*dim)
	case *schemapb.VectorField_BinaryVector:
		return divOrZero(len(d.BinaryVector), (dim+7)/8)
	case *schemapb.VectorField_Int8Vector:
		return divOrZero(len(d.Int8Vector), dim)
	}
	return 0
}

func divOrZero(n, d int) int {
	if d <= 0 {
		return 0
	}
	return n / d
}

func typeErr(dt schemapb.DataType, v any) error {
	return fmt.Errorf("%w: %T for %s field", ErrUnsupportedValue, v, dt)
}

func intInRange(dt schemapb.DataType, v any) (int64, error) {
	x, ok := asInt64(v)
	if !ok {
		return 0, typeErr(dt, v)
	}
	var lo, hi int64
	switch dt {
	case schemapb.DataType_Int8:
		lo, hi = -1<<7, 1<<7-1
	case schemapb.DataType_Int16:
		lo, hi = -1<<15, 1<<15-1
	default:
		lo, hi = -1<<31, 1<<31-1
	}
	if x < lo || x > hi {
		return 0, fmt.Errorf("%w: %d outside %s range", ErrValueOutOfRange, x, dt)
	}
	return x, nil
}

// jsonValue encodes a JSON column value. Pre-encoded documents are passed
// through after a validity check.
func jsonValue(v any) ([]byte, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid JSON document", ErrUnsupportedValue)
		}
		return append([]byte(nil), raw...), nil
	case []byte:
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid JSON document", ErrUnsupportedValue)
		}
		return append([]byte(nil), raw...), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return b, nil
}

func arrayValue(f *FieldSchema, v any) (*schemapb.ScalarField, error) {
	items, ok := asList(v)
	if !ok {
		return nil, typeErr(f.DataType, v)
	}
	if f.MaxCapacity > 0 && len(items) > f.MaxCapacity {
		return nil, fmt.Errorf("%w: %d elements exceed max_capacity %d", ErrValueOutOfRange, len(items), f.MaxCapacity)
	}

	elem := &FieldSchema{Name: f.Name, DataType: f.ElementType, MaxLength: f.MaxLength}
	switch {
	case elem.IsVector(), f.ElementType == schemapb.DataType_Array,
		f.ElementType == schemapb.DataType_JSON, f.ElementType == schemapb.DataType_None:
		return nil, fmt.Errorf("%w: array element type %s", ErrUnsupportedValue, f.ElementType)
	}
	b := newColumnBuilder(elem, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: null element at %d", ErrUnsupportedValue, i)
		}
		if err := b.append(item, nil); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return b.build().GetScalars(), nil
}

func emptyArray(elem schemapb.DataType) *schemapb.ScalarField {
	return newColumnBuilder(&FieldSchema{DataType: elem}, 0).build().GetScalars()
}
