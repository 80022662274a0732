package milvus

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"

	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

// Keys attached to every search hit row.
const (
	IDKey    = "id"
	ScoreKey = "score"
)

// DecodeOptions controls how response columns are turned back into rows.
type DecodeOptions struct {
	Transformers vectorcodec.Transformers
	SparseShape  vectorcodec.SparseShape

	// RoundDecimal truncates scores to that many decimals. nil or a
	// negative value keeps scores as reported.
	RoundDecimal *int

	// LowerIsBetter marks distance metrics; group ranking then prefers the
	// smallest score.
	LowerIsBetter bool
}

func (o DecodeOptions) vectorOptions() vectorcodec.DecodeOptions {
	return vectorcodec.DecodeOptions{Transformers: o.Transformers, SparseShape: o.SparseShape}
}

// SearchResult holds the hits of one query vector, best first.
type SearchResult struct {
	Rows []Row
	// Groups is set when the search grouped by a field.
	Groups []Group
	// Recall is the server-estimated recall, when reported.
	Recall *float32
}

// Group is the set of hits sharing one group-by value.
type Group struct {
	Value     any
	Rows      []Row
	BestScore float32
}

// FromColumns converts query response columns into rows. outputFields
// selects which dynamic keys are expanded; "*" or the dynamic field name
// expands all of them, and an empty list does too.
func FromColumns(schema *Schema, fields []*schemapb.FieldData, outputFields []string, opts DecodeOptions) ([]Row, error) {
	n := -1
	for _, fd := range fields {
		m := fieldDataLen(fd)
		if n >= 0 && m != n {
			return nil, fmt.Errorf("%w: column %q has %d values, expected %d", ErrRowCountMismatch, fd.GetFieldName(), m, n)
		}
		n = m
	}
	if n < 0 {
		return []Row{}, nil
	}
	return decodeRows(schema, fields, n, outputFields, opts)
}

func decodeRows(schema *Schema, fields []*schemapb.FieldData, n int, outputFields []string, opts DecodeOptions) ([]Row, error) {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = make(Row, len(fields))
	}

	var dynamic *schemapb.FieldData
	for _, fd := range fields {
		if fd.GetIsDynamic() || fd.GetFieldName() == DynamicFieldName {
			dynamic = fd
			continue
		}
		f, ok := schema.Field(fd.GetFieldName())
		if !ok {
			return nil, fmt.Errorf("%w: column %q is not in schema %q", ErrSchemaColumnMismatch, fd.GetFieldName(), schema.Name)
		}
		values, err := decodeColumn(f, fd, n, opts)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			rows[i][f.Name] = v
		}
	}

	if dynamic != nil {
		if err := expandDynamic(rows, dynamic, outputFields); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// decodeColumn returns exactly n row values for one column. Nullable columns
// may arrive dense, with a placeholder at every null, or compact, with
// values only for valid rows.
func decodeColumn(f *FieldSchema, fd *schemapb.FieldData, n int, opts DecodeOptions) ([]any, error) {
	if !sameType(f.DataType, fd.GetType()) {
		return nil, fieldErr(f.Name, -1, fmt.Errorf("%w: got %s, schema declares %s", ErrSchemaColumnMismatch, fd.GetType(), f.DataType))
	}

	values, err := columnValues(f, fd, opts)
	if err != nil {
		return nil, fieldErr(f.Name, -1, err)
	}

	valid := fd.GetValidData()
	if len(valid) == 0 {
		if len(values) != n {
			return nil, fieldErr(f.Name, -1, fmt.Errorf("%w: %d values for %d rows", ErrRowCountMismatch, len(values), n))
		}
		return values, nil
	}
	if len(valid) != n {
		return nil, fieldErr(f.Name, -1, fmt.Errorf("%w: validity bitmap has %d entries for %d rows", ErrRowCountMismatch, len(valid), n))
	}

	out := make([]any, n)
	switch len(values) {
	case n:
		for i, ok := range valid {
			if ok {
				out[i] = values[i]
			}
		}
	case countTrue(valid):
		next := 0
		for i, ok := range valid {
			if ok {
				out[i] = values[next]
				next++
			}
		}
	default:
		return nil, fieldErr(f.Name, -1, fmt.Errorf("%w: %d values for %d rows", ErrRowCountMismatch, len(values), n))
	}
	return out, nil
}

func countTrue(bs []bool) int {
	c := 0
	for _, b := range bs {
		if b {
			c++
		}
	}
	return c
}

func sameType(a, b schemapb.DataType) bool {
	str := func(t schemapb.DataType) bool {
		return t == schemapb.DataType_VarChar || t == schemapb.DataType_String
	}
	return a == b || (str(a) && str(b))
}

func columnValues(f *FieldSchema, fd *schemapb.FieldData, opts DecodeOptions) ([]any, error) {
	if st, ok := f.VectorSubtype(); ok {
		if fd.GetVectors() == nil {
			return nil, fmt.Errorf("%w: vector field carries scalar data", ErrSchemaColumnMismatch)
		}
		return vectorValues(st, f.Dim, fd.GetVectors(), opts)
	}
	if fd.GetScalars() == nil {
		return nil, fmt.Errorf("%w: scalar field carries vector data", ErrSchemaColumnMismatch)
	}
	if f.DataType == schemapb.DataType_Array {
		return arrayValues(f, fd.GetScalars())
	}
	return scalarValues(f.DataType, fd.GetScalars())
}

func scalarValues(dt schemapb.DataType, sf *schemapb.ScalarField) ([]any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: %T payload for %s", ErrSchemaColumnMismatch, sf.GetData(), dt)
	}
	switch dt {
	case schemapb.DataType_Bool:
		d, ok := sf.GetData().(*schemapb.ScalarField_BoolData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.BoolData.GetData(), func(v bool) any { return v }), nil
	case schemapb.DataType_Int8:
		d, ok := sf.GetData().(*schemapb.ScalarField_IntData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.IntData.GetData(), func(v int32) any { return int8(v) }), nil
	case schemapb.DataType_Int16:
		d, ok := sf.GetData().(*schemapb.ScalarField_IntData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.IntData.GetData(), func(v int32) any { return int16(v) }), nil
	case schemapb.DataType_Int32:
		d, ok := sf.GetData().(*schemapb.ScalarField_IntData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.IntData.GetData(), func(v int32) any { return v }), nil
	case schemapb.DataType_Int64:
		d, ok := sf.GetData().(*schemapb.ScalarField_LongData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.LongData.GetData(), func(v int64) any { return v }), nil
	case schemapb.DataType_Float:
		d, ok := sf.GetData().(*schemapb.ScalarField_FloatData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.FloatData.GetData(), func(v float32) any { return v }), nil
	case schemapb.DataType_Double:
		d, ok := sf.GetData().(*schemapb.ScalarField_DoubleData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.DoubleData.GetData(), func(v float64) any { return v }), nil
	case schemapb.DataType_VarChar, schemapb.DataType_String:
		d, ok := sf.GetData().(*schemapb.ScalarField_StringData)
		if !ok {
			return nil, mismatch()
		}
		return toAny(d.StringData.GetData(), func(v string) any { return v }), nil
	case schemapb.DataType_JSON:
		d, ok := sf.GetData().(*schemapb.ScalarField_JsonData)
		if !ok {
			return nil, mismatch()
		}
		out := make([]any, len(d.JsonData.GetData()))
		for i, blob := range d.JsonData.GetData() {
			if len(blob) == 0 {
				continue
			}
			if err := json.Unmarshal(blob, &out[i]); err != nil {
				return nil, fmt.Errorf("%w: row %d holds invalid JSON: %v", ErrSchemaColumnMismatch, i, err)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: data type %s", ErrUnsupportedValue, dt)
}

func toAny[T any](in []T, conv func(T) any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = conv(v)
	}
	return out
}

// arrayValues returns one typed slice per row: []bool, []int8, []int16,
// []int32, []int64, []float32, []float64 or []string.
func arrayValues(f *FieldSchema, sf *schemapb.ScalarField) ([]any, error) {
	d, ok := sf.GetData().(*schemapb.ScalarField_ArrayData)
	if !ok {
		return nil, fmt.Errorf("%w: %T payload for Array", ErrSchemaColumnMismatch, sf.GetData())
	}
	if et := d.ArrayData.GetElementType(); et != schemapb.DataType_None && !sameType(et, f.ElementType) {
		return nil, fmt.Errorf("%w: array of %s, schema declares %s", ErrSchemaColumnMismatch, et, f.ElementType)
	}
	out := make([]any, len(d.ArrayData.GetData()))
	for i, elem := range d.ArrayData.GetData() {
		v, err := typedArray(f.ElementType, elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func typedArray(et schemapb.DataType, sf *schemapb.ScalarField) (any, error) {
	switch et {
	case schemapb.DataType_Bool:
		return slices.Clone(sf.GetBoolData().GetData()), nil
	case schemapb.DataType_Int8:
		return convertInts[int8](sf.GetIntData().GetData()), nil
	case schemapb.DataType_Int16:
		return convertInts[int16](sf.GetIntData().GetData()), nil
	case schemapb.DataType_Int32:
		return slices.Clone(sf.GetIntData().GetData()), nil
	case schemapb.DataType_Int64:
		return slices.Clone(sf.GetLongData().GetData()), nil
	case schemapb.DataType_Float:
		return slices.Clone(sf.GetFloatData().GetData()), nil
	case schemapb.DataType_Double:
		return slices.Clone(sf.GetDoubleData().GetData()), nil
	case schemapb.DataType_VarChar, schemapb.DataType_String:
		return slices.Clone(sf.GetStringData().GetData()), nil
	}
	return nil, fmt.Errorf("%w: array element type %s", ErrUnsupportedValue, et)
}

func convertInts[T int8 | int16](in []int32) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}

// vectorValues splits a vector column into per-row vectors and decodes each.
func vectorValues(st vectorcodec.Subtype, dim int, vf *schemapb.VectorField, opts DecodeOptions) ([]any, error) {
	if vfDim := int(vf.GetDim()); st != vectorcodec.Sparse && vfDim > 0 && vfDim != dim {
		return nil, fmt.Errorf("%w: column dim %d, schema declares %d", ErrSchemaColumnMismatch, vfDim, dim)
	}

	var (
		chunks [][]byte
		ok     = true
	)
	switch d := vf.GetData().(type) {
	case *schemapb.VectorField_SparseFloatVector:
		ok = st == vectorcodec.Sparse
		chunks = d.SparseFloatVector.GetContents()
	case *schemapb.VectorField_FloatVector:
		data := d.FloatVector.GetData()
		if st != vectorcodec.Float || dim <= 0 || len(data)%dim != 0 {
			return nil, fmt.Errorf("%w: %d floats do not form %s rows of dim %d", ErrSchemaColumnMismatch, len(data), st, dim)
		}
		out := make([]any, len(data)/dim)
		for i := range out {
			v, err := vectorcodec.Decode(vectorcodec.FloatVector(data[i*dim:(i+1)*dim]), dim, opts.vectorOptions())
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *schemapb.VectorField_Float16Vector:
		chunks, ok = splitFixed(d.Float16Vector, st, vectorcodec.Float16, dim)
	case *schemapb.VectorField_Bfloat16Vector:
		chunks, ok = splitFixed(d.Bfloat16Vector, st, vectorcodec.BFloat16, dim)
	case *schemapb.VectorField_BinaryVector:
		chunks, ok = splitFixed(d.BinaryVector, st, vectorcodec.Binary, dim)
	case *schemapb.VectorField_Int8Vector:
		chunks, ok = splitFixed(d.Int8Vector, st, vectorcodec.Int8, dim)
	case nil:
	default:
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: %T payload does not match %s of dim %d", ErrSchemaColumnMismatch, vf.GetData(), st, dim)
	}

	out := make([]any, len(chunks))
	for i, b := range chunks {
		vec, err := vectorcodec.FromBytes(st, dim, b)
		if err != nil {
			return nil, err
		}
		if out[i], err = vectorcodec.Decode(vec, dim, opts.vectorOptions()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func splitFixed(b []byte, want, got vectorcodec.Subtype, dim int) ([][]byte, bool) {
	size := vectorcodec.ByteLen(got, dim)
	if want != got || size <= 0 || len(b)%size != 0 {
		return nil, false
	}
	out := make([][]byte, 0, len(b)/size)
	for off := 0; off < len(b); off += size {
		out = append(out, b[off:off+size])
	}
	return out, true
}

// expandDynamic lifts keys of the dynamic JSON column into the rows. Declared
// fields win over dynamic keys of the same name.
func expandDynamic(rows []Row, fd *schemapb.FieldData, outputFields []string) error {
	blobs := fd.GetScalars().GetJsonData().GetData()
	if len(blobs) != len(rows) {
		return fmt.Errorf("%w: dynamic column has %d values for %d rows", ErrRowCountMismatch, len(blobs), len(rows))
	}
	all := len(outputFields) == 0 || slices.Contains(outputFields, "*") || slices.Contains(outputFields, DynamicFieldName)
	for i, blob := range blobs {
		if len(blob) == 0 {
			continue
		}
		var extra map[string]any
		if err := json.Unmarshal(blob, &extra); err != nil {
			return fieldErr(DynamicFieldName, i, fmt.Errorf("%w: %v", ErrSchemaColumnMismatch, err))
		}
		for k, v := range extra {
			if _, taken := rows[i][k]; taken {
				continue
			}
			if all || slices.Contains(outputFields, k) {
				rows[i][k] = v
			}
		}
	}
	return nil
}

// DecodeSearch splits a search response into one SearchResult per query and
// attaches IDKey and ScoreKey to every hit. Both keys are set after the
// output fields and take precedence over fields of the same name.
func DecodeSearch(schema *Schema, data *schemapb.SearchResultData, opts DecodeOptions) ([]SearchResult, error) {
	if data == nil {
		return []SearchResult{}, nil
	}
	total := idsLen(data.GetIds())
	if len(data.GetScores()) != total {
		return nil, fmt.Errorf("%w: %d scores for %d ids", ErrRowCountMismatch, len(data.GetScores()), total)
	}

	topks := data.GetTopks()
	if len(topks) == 0 {
		nq := max(data.GetNumQueries(), 1)
		topks = make([]int64, nq)
		topks[0] = int64(total)
	}
	var sum int64
	for q, k := range topks {
		if k < 0 {
			return nil, fmt.Errorf("%w: negative topk %d for query %d", ErrRowCountMismatch, k, q)
		}
		sum += k
	}
	if sum != int64(total) {
		return nil, fmt.Errorf("%w: topks sum to %d for %d hits", ErrRowCountMismatch, sum, total)
	}

	rows, err := decodeRows(schema, data.GetFieldsData(), total, data.GetOutputFields(), opts)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		row[IDKey] = idAt(data.GetIds(), i)
		row[ScoreKey] = truncateScore(data.GetScores()[i], opts.RoundDecimal)
	}

	var groupValues []any
	if gb := data.GetGroupByFieldValue(); gb != nil {
		if groupValues, err = groupByValues(schema, gb, total, opts); err != nil {
			return nil, err
		}
	}

	recalls := data.GetRecalls()
	out := make([]SearchResult, len(topks))
	offset := 0
	for q, k := range topks {
		end := offset + int(k)
		res := SearchResult{Rows: rows[offset:end:end]}
		if groupValues != nil {
			res.Groups = groupHits(res.Rows, groupValues[offset:end], opts.LowerIsBetter)
		}
		if len(recalls) == len(topks) {
			r := recalls[q]
			res.Recall = &r
		}
		out[q] = res
		offset = end
	}
	return out, nil
}

func groupByValues(schema *Schema, gb *schemapb.FieldData, n int, opts DecodeOptions) ([]any, error) {
	f, ok := schema.Field(gb.GetFieldName())
	if !ok {
		f = &FieldSchema{Name: gb.GetFieldName(), DataType: gb.GetType(), Nullable: len(gb.GetValidData()) > 0}
	}
	return decodeColumn(f, gb, n, opts)
}

// groupHits collects rows by group value. Groups are ordered best first by
// their best score; equal best scores keep first-appearance order.
func groupHits(rows []Row, values []any, lowerIsBetter bool) []Group {
	index := make(map[string]int)
	var groups []Group
	for i, row := range rows {
		key := groupKey(values[i])
		score, _ := row[ScoreKey].(float32)
		g, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, Group{Value: values[i], BestScore: score})
			g = len(groups) - 1
		}
		groups[g].Rows = append(groups[g].Rows, row)
		if better(score, groups[g].BestScore, lowerIsBetter) {
			groups[g].BestScore = score
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return better(groups[i].BestScore, groups[j].BestScore, lowerIsBetter)
	})
	return groups
}

func better(a, b float32, lowerIsBetter bool) bool {
	if lowerIsBetter {
		return a < b
	}
	return a > b
}

func groupKey(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}

func idsLen(ids *schemapb.IDs) int {
	switch d := ids.GetIdField().(type) {
	case *schemapb.IDs_IntId:
		return len(d.IntId.GetData())
	case *schemapb.IDs_StrId:
		return len(d.StrId.GetData())
	}
	return 0
}

func idAt(ids *schemapb.IDs, i int) any {
	switch d := ids.GetIdField().(type) {
	case *schemapb.IDs_IntId:
		return d.IntId.GetData()[i]
	case *schemapb.IDs_StrId:
		return d.StrId.GetData()[i]
	}
	return nil
}

// idList returns the primary keys of ids in order.
func idList(ids *schemapb.IDs) []any {
	out := make([]any, idsLen(ids))
	for i := range out {
		out[i] = idAt(ids, i)
	}
	return out
}

// truncateScore cuts a score to the given number of decimals without
// rounding, working on the shortest decimal form of the float32 so that
// 0.3 stays 0.3.
func truncateScore(score float32, decimals *int) float32 {
	if decimals == nil || *decimals < 0 || math.IsNaN(float64(score)) || math.IsInf(float64(score), 0) {
		return score
	}
	s := strconv.FormatFloat(float64(score), 'f', -1, 32)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return score
	}
	if *decimals == 0 {
		s = s[:dot]
	} else if len(s) > dot+1+*decimals {
		s = s[:dot+1+*decimals]
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return score
	}
	return float32(f)
}
