package milvus

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// docsSchema is the collection most tests run against: an int64 key, two
// float vectors, a title and a nullable int32.
func docsSchema(t *testing.T, dynamic bool) *Schema {
	t.Helper()
	s, err := NewSchema("docs", dynamic,
		&FieldSchema{FieldID: 100, Name: "id", DataType: schemapb.DataType_Int64, IsPrimaryKey: true},
		&FieldSchema{FieldID: 101, Name: "vec", DataType: schemapb.DataType_FloatVector, Dim: 2},
		&FieldSchema{FieldID: 102, Name: "vec2", DataType: schemapb.DataType_FloatVector, Dim: 2},
		&FieldSchema{FieldID: 103, Name: "title", DataType: schemapb.DataType_VarChar, MaxLength: 32},
		&FieldSchema{FieldID: 104, Name: "rank", DataType: schemapb.DataType_Int32, Nullable: true},
	)
	require.NoError(t, err)
	return s
}

func docRow(id int64) Row {
	return Row{
		"id":    id,
		"vec":   []float32{float32(id), 1},
		"vec2":  []float32{1, float32(id)},
		"title": "doc",
	}
}

func docRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = docRow(int64(i + 1))
	}
	return rows
}

// fakeTransport serves a single collection from memory. Query pages are
// returned in primary key order; search hits are ranked by the scores
// configured per anns field, ties broken by ascending id. Boundaries are
// honoured the way the server does.
type fakeTransport struct {
	t      *testing.T
	schema *Schema

	mu     sync.Mutex
	rows   []Row
	scores map[string]map[int64]float32
	calls  []*Request
	kinds  []RequestKind

	// failAt makes the call with that zero-based index fail once.
	failAt map[int]error
}

func newFakeTransport(t *testing.T, schema *Schema, rows []Row) *fakeTransport {
	return &fakeTransport{
		t:      t,
		schema: schema,
		rows:   rows,
		scores: make(map[string]map[int64]float32),
		failAt: make(map[int]error),
	}
}

func (f *fakeTransport) Execute(_ context.Context, kind RequestKind, req *Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.calls)
	f.calls = append(f.calls, req.Clone())
	f.kinds = append(f.kinds, kind)
	if err, ok := f.failAt[n]; ok {
		delete(f.failAt, n)
		return nil, err
	}

	switch kind {
	case KindQuery:
		return f.query(req), nil
	case KindSearch:
		return f.search(req), nil
	case KindInsert, KindUpsert:
		ids := req.FieldsData[0].GetScalars().GetLongData().GetData()
		return &Response{
			IDs:   &schemapb.IDs{IdField: &schemapb.IDs_IntId{IntId: &schemapb.LongArray{Data: ids}}},
			Count: int64(req.NumRows),
		}, nil
	}
	return &Response{}, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) query(req *Request) *Response {
	sorted := slices.Clone(f.rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i]["id"].(int64) < sorted[j]["id"].(int64) })

	var page []Row
	for _, row := range sorted {
		if b := req.Boundary; b != nil && b.PrimaryKey != nil && row["id"].(int64) <= b.PrimaryKey.(int64) {
			continue
		}
		page = append(page, row)
		if req.Limit > 0 && len(page) == req.Limit {
			break
		}
	}
	return &Response{FieldsData: f.columns(page, req.OutputFields)}
}

func (f *fakeTransport) search(req *Request) *Response {
	scores := f.scores[req.AnnsField]
	type hit struct {
		row   Row
		score float32
	}
	var hits []hit
	for _, row := range f.rows {
		id := row["id"].(int64)
		s, ok := scores[id]
		if !ok {
			continue
		}
		if b := req.Boundary; b != nil && b.Score != nil {
			if better(s, *b.Score, b.LowerIsBetter) || slices.Contains(b.ExcludeIDs, any(id)) {
				continue
			}
		}
		hits = append(hits, hit{row: row, score: s})
	}
	lower := LowerIsBetter(req.MetricType)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return better(hits[i].score, hits[j].score, lower)
		}
		return hits[i].row["id"].(int64) < hits[j].row["id"].(int64)
	})
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}

	ids := make([]int64, len(hits))
	out := make([]float32, len(hits))
	page := make([]Row, len(hits))
	for i, h := range hits {
		ids[i] = h.row["id"].(int64)
		out[i] = h.score
		page[i] = h.row
	}
	var fields []*schemapb.FieldData
	if len(req.OutputFields) > 0 {
		fields = f.columns(page, req.OutputFields)
	}
	return &Response{Results: &schemapb.SearchResultData{
		NumQueries:   1,
		TopK:         int64(req.Limit),
		FieldsData:   fields,
		Ids:          &schemapb.IDs{IdField: &schemapb.IDs_IntId{IntId: &schemapb.LongArray{Data: ids}}},
		Scores:       out,
		Topks:        []int64{int64(len(hits))},
		OutputFields: req.OutputFields,
	}}
}

// columns marshals rows with the real marshaller and keeps the requested
// fields. An empty selection keeps all of them.
func (f *fakeTransport) columns(rows []Row, output []string) []*schemapb.FieldData {
	if len(rows) == 0 {
		return nil
	}
	cs, err := ToColumns(f.schema, Input{Rows: rows}, nil)
	require.NoError(f.t, err)
	if len(output) == 0 {
		return cs.Fields
	}
	var out []*schemapb.FieldData
	for _, fd := range cs.Fields {
		if slices.Contains(output, fd.GetFieldName()) {
			out = append(out, fd)
		}
	}
	return out
}

var errUnavailable = errors.New("server unavailable")

func ids(rows []Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["id"]
	}
	return out
}

// errorIs matches errors wrapping target.
func errorIs(target error) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		err, ok := x.(error)
		return ok && errors.Is(err, target)
	})
}
