package milvus

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-proto/go-api/v2/commonpb"
	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
	"google.golang.org/protobuf/proto"

	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

//go:generate mockgen -destination=mock_transport.go -package=milvus github.com/Aleph-Alpha/milvuskit/v1/milvus Transport,SchemaSource

// RequestKind names the remote call a Request is sent to.
type RequestKind int

const (
	KindSearch RequestKind = iota + 1
	KindQuery
	KindInsert
	KindUpsert
	KindDelete
)

func (k RequestKind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindQuery:
		return "query"
	case KindInsert:
		return "insert"
	case KindUpsert:
		return "upsert"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

// Transport executes columnar requests against a server. It owns
// connections, timeouts and retries; errors are passed to callers as is.
type Transport interface {
	Execute(ctx context.Context, kind RequestKind, req *Request) (*Response, error)
}

// Request is the columnar form of every call. Only the fields relevant to
// the kind are read.
type Request struct {
	Collection       string
	Partitions       []string
	Filter           string
	OutputFields     []string
	Limit            int
	Offset           int
	ConsistencyLevel string

	// Search.
	AnnsField       string
	Vectors         []vectorcodec.Vector
	MetricType      string
	Params          map[string]any
	RoundDecimal    int
	GroupByField    string
	GroupSize       int
	StrictGroupSize bool
	IgnoreGrowing   bool

	// Boundary restricts the request to rows after the last page of an
	// iterator.
	Boundary *Boundary

	// Insert and upsert.
	FieldsData []*schemapb.FieldData
	NumRows    int

	// Metadata carries propagation headers such as the trace context.
	Metadata map[string]string
}

// Boundary is the exclusive position after which an iterator's next page
// starts.
type Boundary struct {
	// PrimaryField names the primary key the boundary refers to.
	PrimaryField string

	// PrimaryKey is the last key returned by a query iterator. Query pages
	// are ordered by primary key.
	PrimaryKey any

	// Score is the last score returned by a search iterator; ExcludeIDs
	// are the ids already returned at exactly that score.
	Score         *float32
	ExcludeIDs    []any
	LowerIsBetter bool
}

// Clone returns a copy that shares no mutable state with r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Partitions = slices.Clone(r.Partitions)
	c.OutputFields = slices.Clone(r.OutputFields)
	c.Vectors = slices.Clone(r.Vectors)
	c.Params = maps.Clone(r.Params)
	c.Metadata = maps.Clone(r.Metadata)
	if r.FieldsData != nil {
		c.FieldsData = make([]*schemapb.FieldData, len(r.FieldsData))
		for i, fd := range r.FieldsData {
			c.FieldsData[i] = proto.Clone(fd).(*schemapb.FieldData)
		}
	}
	if r.Boundary != nil {
		b := *r.Boundary
		b.ExcludeIDs = slices.Clone(r.Boundary.ExcludeIDs)
		if r.Boundary.Score != nil {
			s := *r.Boundary.Score
			b.Score = &s
		}
		c.Boundary = &b
	}
	return &c
}

// Expr returns the filter expression to send, the caller filter combined
// with the boundary: "pk > last" for query pages and an exclusion of ids
// already returned at the boundary score for search pages.
func (r *Request) Expr() string {
	b := r.Boundary
	if b == nil || b.PrimaryField == "" {
		return r.Filter
	}
	var bound string
	switch {
	case b.PrimaryKey != nil:
		bound = fmt.Sprintf("%s > %s", b.PrimaryField, keyString(b.PrimaryKey))
	case len(b.ExcludeIDs) > 0:
		keys := make([]string, len(b.ExcludeIDs))
		for i, id := range b.ExcludeIDs {
			keys[i] = keyString(id)
		}
		bound = fmt.Sprintf("%s not in [%s]", b.PrimaryField, strings.Join(keys, ", "))
	}
	return CombineFilters(r.Filter, bound)
}

// SearchParams returns the search parameters to send. A score boundary is
// expressed as a range search: range_filter holds the boundary and radius
// the open end, unless the caller already supplied one.
func (r *Request) SearchParams() map[string]any {
	params := maps.Clone(r.Params)
	if params == nil {
		params = make(map[string]any)
	}
	if r.Boundary == nil || r.Boundary.Score == nil {
		return params
	}
	params["range_filter"] = float64(*r.Boundary.Score)
	if _, ok := params["radius"]; !ok {
		if r.Boundary.LowerIsBetter {
			params["radius"] = float64(math.MaxFloat32)
		} else {
			params["radius"] = float64(-math.MaxFloat32)
		}
	}
	return params
}

// PlaceholderGroup serialises the query vectors the way the search RPC
// expects them.
func (r *Request) PlaceholderGroup() ([]byte, error) {
	if len(r.Vectors) == 0 {
		return nil, fmt.Errorf("%w: no query vectors", ErrInvalidRequest)
	}
	st := r.Vectors[0].Subtype()
	values := make([][]byte, len(r.Vectors))
	for i, v := range r.Vectors {
		if v.Subtype() != st {
			return nil, fmt.Errorf("%w: query vectors mix %s and %s", ErrInvalidRequest, st, v.Subtype())
		}
		values[i] = v.Bytes()
	}
	ptype, ok := placeholderTypes[st]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorcodec.ErrUnknownSubtype, st)
	}
	return proto.Marshal(&commonpb.PlaceholderGroup{
		Placeholders: []*commonpb.PlaceholderValue{{Tag: "$0", Type: ptype, Values: values}},
	})
}

var placeholderTypes = map[vectorcodec.Subtype]commonpb.PlaceholderType{
	vectorcodec.Float:    commonpb.PlaceholderType_FloatVector,
	vectorcodec.Float16:  commonpb.PlaceholderType_Float16Vector,
	vectorcodec.BFloat16: commonpb.PlaceholderType_BFloat16Vector,
	vectorcodec.Binary:   commonpb.PlaceholderType_BinaryVector,
	vectorcodec.Int8:     commonpb.PlaceholderType_Int8Vector,
	vectorcodec.Sparse:   commonpb.PlaceholderType_SparseFloatVector,
}

// SearchParamPairs flattens SearchParams into the key/value pairs of the
// search RPC. Nested values are rendered as JSON numbers or strings.
func (r *Request) SearchParamPairs() []*commonpb.KeyValuePair {
	params := r.SearchParams()
	keys := slices.Sorted(maps.Keys(params))
	pairs := make([]*commonpb.KeyValuePair, 0, len(keys)+5)
	for _, k := range keys {
		pairs = append(pairs, &commonpb.KeyValuePair{Key: k, Value: paramString(params[k])})
	}
	pairs = append(pairs,
		&commonpb.KeyValuePair{Key: "anns_field", Value: r.AnnsField},
		&commonpb.KeyValuePair{Key: "topk", Value: strconv.Itoa(r.Limit)},
		&commonpb.KeyValuePair{Key: "offset", Value: strconv.Itoa(r.Offset)},
		&commonpb.KeyValuePair{Key: "round_decimal", Value: strconv.Itoa(r.RoundDecimal)},
		&commonpb.KeyValuePair{Key: "metric_type", Value: r.MetricType},
	)
	return pairs
}

func paramString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return fmt.Sprint(v)
}

// Response is the columnar reply of a call.
type Response struct {
	// Results holds search hits.
	Results *schemapb.SearchResultData
	// FieldsData holds query rows.
	FieldsData []*schemapb.FieldData
	// IDs holds the primary keys written or deleted.
	IDs *schemapb.IDs
	// Count is the number of rows written or deleted.
	Count int64
}

// LowerIsBetter reports whether smaller scores rank first for metric.
func LowerIsBetter(metric string) bool {
	switch strings.ToUpper(metric) {
	case "L2", "HAMMING", "JACCARD", "SUBSTRUCTURE", "SUPERSTRUCTURE":
		return true
	}
	return false
}
