package milvus

import (
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"

	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

// DynamicFieldName is the reserved JSON column holding keys that are not
// declared in the schema of a dynamic-field-enabled collection.
const DynamicFieldName = "$meta"

// FieldSchema describes one field of a collection. Instances are shared by
// reference once a Schema is built and must not be modified afterwards.
type FieldSchema struct {
	FieldID     int64
	Name        string
	DataType    schemapb.DataType
	ElementType schemapb.DataType // Array element type

	Dim         int // vector dimension; zero for sparse vectors
	MaxLength   int // VarChar byte limit; zero means unchecked
	MaxCapacity int // Array element limit; zero means unchecked

	Nullable     bool
	DefaultValue any

	IsPrimaryKey     bool
	AutoID           bool
	IsPartitionKey   bool
	IsFunctionOutput bool
}

// VectorSubtype reports the vector encoding of the field.
func (f *FieldSchema) VectorSubtype() (vectorcodec.Subtype, bool) {
	return vectorcodec.SubtypeOf(f.DataType)
}

// IsVector reports whether the field holds vectors.
func (f *FieldSchema) IsVector() bool {
	_, ok := f.VectorSubtype()
	return ok
}

// generated fields are filled by the server and never sent on insert.
func (f *FieldSchema) generated() bool {
	return (f.IsPrimaryKey && f.AutoID) || f.IsFunctionOutput
}

// Schema is an immutable collection schema.
type Schema struct {
	Name               string
	Fields             []*FieldSchema
	EnableDynamicField bool

	byName  map[string]*FieldSchema
	primary *FieldSchema
}

// NewSchema validates the fields and indexes them by name. Exactly one
// primary key of type Int64 or VarChar is required; vector fields other than
// sparse need a positive dimension.
func NewSchema(name string, enableDynamic bool, fields ...*FieldSchema) (*Schema, error) {
	s := &Schema{
		Name:               name,
		Fields:             fields,
		EnableDynamicField: enableDynamic,
		byName:             make(map[string]*FieldSchema, len(fields)),
	}
	for _, f := range fields {
		if f == nil || f.Name == "" {
			return nil, fmt.Errorf("%w: schema %q has an unnamed field", ErrInvalidRequest, name)
		}
		if f.Name == DynamicFieldName {
			return nil, fmt.Errorf("%w: field name %q is reserved", ErrInvalidRequest, f.Name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q in schema %q", ErrInvalidRequest, f.Name, name)
		}
		s.byName[f.Name] = f

		if f.IsPrimaryKey {
			if s.primary != nil {
				return nil, fmt.Errorf("%w: schema %q has more than one primary key", ErrInvalidRequest, name)
			}
			if f.DataType != schemapb.DataType_Int64 && f.DataType != schemapb.DataType_VarChar {
				return nil, fmt.Errorf("%w: primary key %q must be Int64 or VarChar", ErrInvalidRequest, f.Name)
			}
			s.primary = f
		}
		if st, ok := f.VectorSubtype(); ok && st != vectorcodec.Sparse && f.Dim <= 0 {
			return nil, fmt.Errorf("%w: vector field %q needs a dimension", ErrInvalidDimension, f.Name)
		}
	}
	if s.primary == nil {
		return nil, fmt.Errorf("%w: schema %q has no primary key", ErrInvalidRequest, name)
	}
	return s, nil
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (*FieldSchema, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// PrimaryField returns the primary key field.
func (s *Schema) PrimaryField() *FieldSchema {
	return s.primary
}

// VectorFields returns the vector fields in declaration order.
func (s *Schema) VectorFields() []*FieldSchema {
	var out []*FieldSchema
	for _, f := range s.Fields {
		if f.IsVector() {
			out = append(out, f)
		}
	}
	return out
}

// SchemaFromProto converts a described collection schema. The reserved
// dynamic field is dropped from Fields and turns on EnableDynamicField.
func SchemaFromProto(p *schemapb.CollectionSchema) (*Schema, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrInvalidRequest)
	}
	dynamic := p.GetEnableDynamicField()
	fields := make([]*FieldSchema, 0, len(p.GetFields()))
	for _, pf := range p.GetFields() {
		if pf.GetIsDynamic() {
			dynamic = true
			continue
		}
		f := &FieldSchema{
			FieldID:          pf.GetFieldID(),
			Name:             pf.GetName(),
			DataType:         pf.GetDataType(),
			ElementType:      pf.GetElementType(),
			Nullable:         pf.GetNullable(),
			IsPrimaryKey:     pf.GetIsPrimaryKey(),
			AutoID:           pf.GetAutoID(),
			IsPartitionKey:   pf.GetIsPartitionKey(),
			IsFunctionOutput: pf.GetIsFunctionOutput(),
			DefaultValue:     defaultFromProto(pf.GetDefaultValue()),
		}
		for _, kv := range pf.GetTypeParams() {
			n, err := strconv.Atoi(kv.GetValue())
			if err != nil {
				continue
			}
			switch kv.GetKey() {
			case "dim":
				f.Dim = n
			case "max_length":
				f.MaxLength = n
			case "max_capacity":
				f.MaxCapacity = n
			}
		}
		fields = append(fields, f)
	}
	return NewSchema(p.GetName(), dynamic, fields...)
}

func defaultFromProto(v *schemapb.ValueField) any {
	if v == nil {
		return nil
	}
	switch d := v.GetData().(type) {
	case *schemapb.ValueField_BoolData:
		return d.BoolData
	case *schemapb.ValueField_IntData:
		return d.IntData
	case *schemapb.ValueField_LongData:
		return d.LongData
	case *schemapb.ValueField_FloatData:
		return d.FloatData
	case *schemapb.ValueField_DoubleData:
		return d.DoubleData
	case *schemapb.ValueField_StringData:
		return d.StringData
	case *schemapb.ValueField_BytesData:
		return d.BytesData
	}
	return nil
}
