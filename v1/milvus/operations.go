package milvus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/milvus-io/milvus-proto/go-api/v2/schemapb"
	"golang.org/x/sync/errgroup"

	"github.com/Aleph-Alpha/milvuskit/v1/rerank"
	"github.com/Aleph-Alpha/milvuskit/v1/vectorcodec"
)

// InsertRequest carries rows for Insert and Upsert. Exactly one of Rows and
// Columns must be set.
type InsertRequest struct {
	Collection   string
	Partition    string
	Rows         []Row
	Columns      []Column
	Transformers vectorcodec.Transformers
}

// DeleteRequest deletes by primary keys or by filter, never both.
type DeleteRequest struct {
	Collection string
	Partition  string
	IDs        []any
	Filter     string
	Filters    *FilterSet
}

// WriteResult reports the outcome of a write.
type WriteResult struct {
	// IDs are the primary keys written, including generated ones, in input
	// order. Deletes report the keys the server returned, if any.
	IDs   []any
	Count int64
}

// QueryRequest selects rows by filter.
type QueryRequest struct {
	Collection       string
	Partitions       []string
	Filter           string
	Filters          *FilterSet
	OutputFields     []string
	Limit            int
	Offset           int
	ConsistencyLevel string
	Transformers     vectorcodec.Transformers
	SparseShape      vectorcodec.SparseShape
}

// SearchRequest is a vector similarity search. Vectors holds one row-form
// value per query; they are encoded with the subtype of AnnsField, which
// may be left empty when the collection has a single vector field.
type SearchRequest struct {
	Collection       string
	Partitions       []string
	AnnsField        string
	Vectors          []any
	Filter           string
	Filters          *FilterSet
	OutputFields     []string
	Limit            int
	Offset           int
	MetricType       string
	Params           map[string]any
	RoundDecimal     *int
	GroupByField     string
	GroupSize        int
	StrictGroupSize  bool
	IgnoreGrowing    bool
	ConsistencyLevel string
	Transformers     vectorcodec.Transformers
	SparseShape      vectorcodec.SparseShape
}

// SubSearch is one per-field search of a hybrid search.
type SubSearch struct {
	AnnsField  string
	Vectors    []any
	Filter     string
	Filters    *FilterSet
	MetricType string
	Params     map[string]any
	// Limit defaults to the hybrid limit.
	Limit int
}

// HybridSearchRequest runs one search per SubSearch and fuses the results
// per query with Strategy. Every SubSearch must carry the same number of
// query vectors.
type HybridSearchRequest struct {
	Collection       string
	Partitions       []string
	Searches         []SubSearch
	Strategy         rerank.Strategy
	Limit            int
	OutputFields     []string
	RoundDecimal     *int
	ConsistencyLevel string
	Transformers     vectorcodec.Transformers
	SparseShape      vectorcodec.SparseShape
}

// ──────────────────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────────────────

// Insert marshals the input and sends it in chunks of InsertBatchSize rows.
// All chunks are marshalled before the first request is sent, so invalid
// input writes nothing.
func (c *MilvusClient) Insert(ctx context.Context, req InsertRequest) (*WriteResult, error) {
	return c.write(ctx, KindInsert, req)
}

// Upsert behaves like Insert but replaces rows with equal primary keys.
func (c *MilvusClient) Upsert(ctx context.Context, req InsertRequest) (*WriteResult, error) {
	return c.write(ctx, KindUpsert, req)
}

func (c *MilvusClient) write(ctx context.Context, kind RequestKind, req InsertRequest) (result *WriteResult, err error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	ctx, span := c.tracer.StartSpan(ctx, "milvus."+kind.String())
	defer span.End()
	start := time.Now()
	defer func() {
		var size int64
		if result != nil {
			size = result.Count
		}
		c.tracer.RecordErrorOnSpan(span, err)
		c.observeOperation(kind.String(), collection, req.Partition, time.Since(start), err, size, nil)
	}()

	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	rows, err := inputRows(Input{Rows: req.Rows, Columns: req.Columns})
	if err != nil {
		return nil, err
	}

	batch := max(c.cfg.InsertBatchSize, 1)
	chunks := make([]*ColumnSet, 0, (len(rows)+batch-1)/batch)
	for off := 0; off < len(rows); off += batch {
		cs, err := ToColumns(schema, Input{Rows: rows[off:min(off+batch, len(rows))]}, req.Transformers)
		if err != nil {
			var fe *FieldError
			if errors.As(err, &fe) && fe.Row >= 0 {
				fe.Row += off
			}
			return nil, err
		}
		chunks = append(chunks, cs)
	}

	result = &WriteResult{IDs: make([]any, 0, len(rows))}
	for i, cs := range chunks {
		c.logger.Debug("sending "+kind.String()+" batch", nil, map[string]interface{}{
			"collection": collection,
			"batch":      i,
			"rows":       cs.NumRows,
		})
		resp, err := c.transport.Execute(ctx, kind, &Request{
			Collection: collection,
			Partitions: partitionList(req.Partition),
			FieldsData: cs.Fields,
			NumRows:    cs.NumRows,
			Metadata:   c.tracer.GetCarrier(ctx),
		})
		if err != nil {
			c.logger.Error(kind.String()+" failed", err, map[string]interface{}{
				"collection": collection,
				"batch":      i,
				"written":    result.Count,
			})
			return result, fmt.Errorf("%s batch %d: %w", kind, i, err)
		}
		if resp == nil {
			result.Count += int64(cs.NumRows)
			continue
		}
		result.IDs = append(result.IDs, idList(resp.IDs)...)
		if resp.Count > 0 {
			result.Count += resp.Count
		} else {
			result.Count += int64(cs.NumRows)
		}
	}
	return result, nil
}

// Delete removes rows by primary key or by filter.
func (c *MilvusClient) Delete(ctx context.Context, req DeleteRequest) (result *WriteResult, err error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	ctx, span := c.tracer.StartSpan(ctx, "milvus.delete")
	defer span.End()
	start := time.Now()
	defer func() {
		var size int64
		if result != nil {
			size = result.Count
		}
		c.tracer.RecordErrorOnSpan(span, err)
		c.observeOperation("delete", collection, req.Partition, time.Since(start), err, size, nil)
	}()

	filter, err := filterExpr(req.Filter, req.Filters)
	if err != nil {
		return nil, err
	}
	switch {
	case len(req.IDs) > 0 && filter != "":
		return nil, fmt.Errorf("%w: delete takes ids or a filter, not both", ErrInvalidRequest)
	case len(req.IDs) == 0 && filter == "":
		return nil, fmt.Errorf("%w: delete needs ids or a filter", ErrInvalidRequest)
	}
	if len(req.IDs) > 0 {
		schema, err := c.schema(ctx, collection)
		if err != nil {
			return nil, err
		}
		if filter, err = idFilter(schema, req.IDs); err != nil {
			return nil, err
		}
	}

	resp, err := c.transport.Execute(ctx, KindDelete, &Request{
		Collection: collection,
		Partitions: partitionList(req.Partition),
		Filter:     filter,
		Metadata:   c.tracer.GetCarrier(ctx),
	})
	if err != nil {
		c.logger.Error("delete failed", err, map[string]interface{}{"collection": collection})
		return nil, fmt.Errorf("delete: %w", err)
	}
	result = &WriteResult{}
	if resp != nil {
		result.IDs = idList(resp.IDs)
		result.Count = resp.Count
	}
	return result, nil
}

// ──────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────

// Query returns the rows matching the filter.
func (c *MilvusClient) Query(ctx context.Context, req QueryRequest) (rows []Row, err error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	ctx, span := c.tracer.StartSpan(ctx, "milvus.query")
	defer span.End()
	start := time.Now()
	defer func() {
		c.tracer.RecordErrorOnSpan(span, err)
		c.observeOperation("query", collection, "", time.Since(start), err, int64(len(rows)), nil)
	}()

	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	r, err := c.queryRequest(collection, req)
	if err != nil {
		return nil, err
	}
	r.Metadata = c.tracer.GetCarrier(ctx)
	resp, err := c.transport.Execute(ctx, KindQuery, r)
	if err != nil {
		c.logger.Error("query failed", err, map[string]interface{}{"collection": collection})
		return nil, fmt.Errorf("query: %w", err)
	}
	if resp == nil {
		return []Row{}, nil
	}
	return FromColumns(schema, resp.FieldsData, r.OutputFields, DecodeOptions{
		Transformers: req.Transformers,
		SparseShape:  req.SparseShape,
	})
}

// Get returns the rows with the given primary keys.
func (c *MilvusClient) Get(ctx context.Context, collection string, ids []any, outputFields ...string) ([]Row, error) {
	if len(ids) == 0 {
		return []Row{}, nil
	}
	collection, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	filter, err := idFilter(schema, ids)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, QueryRequest{
		Collection:   collection,
		Filter:       filter,
		OutputFields: outputFields,
		Limit:        len(ids),
	})
}

func (c *MilvusClient) queryRequest(collection string, req QueryRequest) (*Request, error) {
	filter, err := filterExpr(req.Filter, req.Filters)
	if err != nil {
		return nil, err
	}
	return &Request{
		Collection:       collection,
		Partitions:       slices.Clone(req.Partitions),
		Filter:           filter,
		OutputFields:     slices.Clone(req.OutputFields),
		Limit:            req.Limit,
		Offset:           req.Offset,
		ConsistencyLevel: c.consistency(req.ConsistencyLevel),
	}, nil
}

// Search runs one similarity search and returns one result per query vector.
func (c *MilvusClient) Search(ctx context.Context, req SearchRequest) (results []SearchResult, err error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	ctx, span := c.tracer.StartSpan(ctx, "milvus.search")
	defer span.End()
	start := time.Now()
	defer func() {
		var size int64
		for _, r := range results {
			size += int64(len(r.Rows))
		}
		c.tracer.RecordErrorOnSpan(span, err)
		c.observeOperation("search", collection, req.AnnsField, time.Since(start), err, size, nil)
	}()

	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	r, err := c.searchRequest(schema, collection, req)
	if err != nil {
		return nil, err
	}
	r.Metadata = c.tracer.GetCarrier(ctx)
	return c.executeSearch(ctx, schema, r, c.decodeOptions(req.Transformers, req.SparseShape, req.RoundDecimal, r.MetricType))
}

func (c *MilvusClient) executeSearch(ctx context.Context, schema *Schema, r *Request, opts DecodeOptions) ([]SearchResult, error) {
	resp, err := c.transport.Execute(ctx, KindSearch, r)
	if err != nil {
		c.logger.Error("search failed", err, map[string]interface{}{
			"collection": r.Collection,
			"anns_field": r.AnnsField,
		})
		return nil, fmt.Errorf("search: %w", err)
	}
	if resp == nil || resp.Results == nil {
		return make([]SearchResult, len(r.Vectors)), nil
	}
	return DecodeSearch(schema, resp.Results, opts)
}

func (c *MilvusClient) searchRequest(schema *Schema, collection string, req SearchRequest) (*Request, error) {
	field, err := annsField(schema, req.AnnsField)
	if err != nil {
		return nil, err
	}
	if len(req.Vectors) == 0 {
		return nil, fmt.Errorf("%w: search needs at least one query vector", ErrInvalidRequest)
	}
	st, _ := field.VectorSubtype()
	vectors := make([]vectorcodec.Vector, len(req.Vectors))
	for i, v := range req.Vectors {
		if vectors[i], err = vectorcodec.Encode(st, field.Dim, v, req.Transformers); err != nil {
			return nil, fieldErr(field.Name, i, err)
		}
	}
	filter, err := filterExpr(req.Filter, req.Filters)
	if err != nil {
		return nil, err
	}
	if req.GroupByField != "" {
		if _, ok := schema.Field(req.GroupByField); !ok {
			return nil, fieldErr(req.GroupByField, -1, ErrUnknownField)
		}
	}
	round := c.cfg.DefaultRoundDecimal
	if req.RoundDecimal != nil {
		round = *req.RoundDecimal
	}
	return &Request{
		Collection:       collection,
		Partitions:       slices.Clone(req.Partitions),
		Filter:           filter,
		OutputFields:     slices.Clone(req.OutputFields),
		Limit:            req.Limit,
		Offset:           req.Offset,
		ConsistencyLevel: c.consistency(req.ConsistencyLevel),
		AnnsField:        field.Name,
		Vectors:          vectors,
		MetricType:       req.MetricType,
		Params:           req.Params,
		RoundDecimal:     round,
		GroupByField:     req.GroupByField,
		GroupSize:        req.GroupSize,
		StrictGroupSize:  req.StrictGroupSize,
		IgnoreGrowing:    req.IgnoreGrowing,
	}, nil
}

// HybridSearch runs the sub-searches concurrently, at most
// ParallelSubSearches at a time, and reranks their hits per query. With a
// single sub-search the hits are returned as a plain search would return
// them.
func (c *MilvusClient) HybridSearch(ctx context.Context, req HybridSearchRequest) (results []SearchResult, err error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	ctx, span := c.tracer.StartSpan(ctx, "milvus.hybrid_search")
	defer span.End()
	start := time.Now()
	defer func() {
		var size int64
		for _, r := range results {
			size += int64(len(r.Rows))
		}
		c.tracer.RecordErrorOnSpan(span, err)
		c.observeOperation("hybrid_search", collection, "", time.Since(start), err, size, nil)
	}()

	if len(req.Searches) == 0 {
		return nil, fmt.Errorf("%w: hybrid search needs at least one sub-search", ErrInvalidRequest)
	}
	strategy := req.Strategy
	if strategy == nil {
		strategy = rerank.RRF{K: c.cfg.RRFK}
	}
	nq := len(req.Searches[0].Vectors)
	for _, s := range req.Searches {
		if len(s.Vectors) != nq {
			return nil, fmt.Errorf("%w: sub-searches carry different numbers of query vectors", ErrInvalidRequest)
		}
	}

	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}

	subs := make([][]SearchResult, len(req.Searches))
	metrics := make([]string, len(req.Searches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.ParallelSubSearches, 1))
	for i, s := range req.Searches {
		limit := s.Limit
		if limit <= 0 {
			limit = req.Limit
		}
		r, err := c.searchRequest(schema, collection, SearchRequest{
			Partitions:       req.Partitions,
			AnnsField:        s.AnnsField,
			Vectors:          s.Vectors,
			Filter:           s.Filter,
			Filters:          s.Filters,
			OutputFields:     req.OutputFields,
			Limit:            limit,
			MetricType:       s.MetricType,
			Params:           s.Params,
			RoundDecimal:     req.RoundDecimal,
			ConsistencyLevel: req.ConsistencyLevel,
			Transformers:     req.Transformers,
		})
		if err != nil {
			return nil, err
		}
		r.Metadata = c.tracer.GetCarrier(ctx)
		metrics[i] = r.MetricType
		opts := c.decodeOptions(req.Transformers, req.SparseShape, req.RoundDecimal, r.MetricType)
		g.Go(func() error {
			res, err := c.executeSearch(gctx, schema, r, opts)
			if err != nil {
				return fmt.Errorf("sub-search %d on %q: %w", i, r.AnnsField, err)
			}
			subs[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results = make([]SearchResult, nq)
	for q := range results {
		lists := make([]rerank.RankedList, len(subs))
		for i, res := range subs {
			if q < len(res) {
				lists[i] = rankedList(res[q].Rows, LowerIsBetter(metrics[i]))
			}
		}
		if len(lists) == 1 {
			if _, err := rerank.Rerank(lists, strategy, req.Limit); err != nil {
				return nil, err
			}
			if q < len(subs[0]) {
				results[q] = SearchResult{Rows: truncateRows(subs[0][q].Rows, req.Limit), Recall: subs[0][q].Recall}
			}
			continue
		}
		hits, err := rerank.Rerank(lists, strategy, req.Limit)
		if err != nil {
			return nil, err
		}
		results[q] = SearchResult{Rows: hitRows(hits, c.roundDecimal(req.RoundDecimal))}
	}
	return results, nil
}

func rankedList(rows []Row, lowerIsBetter bool) rerank.RankedList {
	list := rerank.RankedList{Hits: make([]rerank.Hit, len(rows)), LowerIsBetter: lowerIsBetter}
	for i, row := range rows {
		score, _ := row[ScoreKey].(float32)
		list.Hits[i] = rerank.Hit{ID: row[IDKey], Score: score, Fields: row}
	}
	return list
}

func hitRows(hits []rerank.Hit, round *int) []Row {
	rows := make([]Row, len(hits))
	for i, h := range hits {
		row := make(Row, len(h.Fields)+2)
		for k, v := range h.Fields {
			row[k] = v
		}
		row[IDKey] = h.ID
		row[ScoreKey] = truncateScore(h.Score, round)
		rows[i] = row
	}
	return rows
}

func truncateRows(rows []Row, limit int) []Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// ──────────────────────────────────────────────────────────────
// Iterators
// ──────────────────────────────────────────────────────────────

// QueryIterator pages through the rows matching req in primary key order.
// req.Limit and req.Offset are ignored; use opts.Limit to bound the total.
func (c *MilvusClient) QueryIterator(ctx context.Context, req QueryRequest, opts IteratorOptions) (*Iterator, error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	r, err := c.queryRequest(collection, req)
	if err != nil {
		return nil, err
	}
	pk := schema.PrimaryField().Name
	if len(r.OutputFields) > 0 && !slices.Contains(r.OutputFields, pk) && !slices.Contains(r.OutputFields, "*") {
		r.OutputFields = append(r.OutputFields, pk)
	}
	return newIterator(c, schema, r, KindQuery, DecodeOptions{
		Transformers: req.Transformers,
		SparseShape:  req.SparseShape,
	}, opts), nil
}

// SearchIterator pages through the hits of a single-vector search, best
// first. Grouped searches cannot be iterated.
func (c *MilvusClient) SearchIterator(ctx context.Context, req SearchRequest, opts IteratorOptions) (*Iterator, error) {
	collection, err := c.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if len(req.Vectors) != 1 {
		return nil, fmt.Errorf("%w: search iteration takes exactly one query vector", ErrInvalidRequest)
	}
	if req.GroupByField != "" {
		return nil, fmt.Errorf("%w: grouped searches cannot be iterated", ErrInvalidRequest)
	}
	schema, err := c.schema(ctx, collection)
	if err != nil {
		return nil, err
	}
	r, err := c.searchRequest(schema, collection, req)
	if err != nil {
		return nil, err
	}
	// Pages carry raw scores so the next boundary matches what the server
	// compares range_filter against; only emitted rows are truncated.
	round := c.roundDecimal(req.RoundDecimal)
	r.RoundDecimal = -1
	decode := c.decodeOptions(req.Transformers, req.SparseShape, nil, r.MetricType)
	decode.RoundDecimal = nil

	it := newIterator(c, schema, r, KindSearch, decode, opts)
	it.round = round
	return it, nil
}

// ──────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────

func (c *MilvusClient) consistency(level string) string {
	if level != "" {
		return level
	}
	return c.cfg.ConsistencyLevel
}

func (c *MilvusClient) roundDecimal(round *int) *int {
	if round != nil {
		return round
	}
	d := c.cfg.DefaultRoundDecimal
	return &d
}

func (c *MilvusClient) decodeOptions(tr vectorcodec.Transformers, shape vectorcodec.SparseShape, round *int, metric string) DecodeOptions {
	return DecodeOptions{
		Transformers:  tr,
		SparseShape:   shape,
		RoundDecimal:  c.roundDecimal(round),
		LowerIsBetter: LowerIsBetter(metric),
	}
}

func annsField(schema *Schema, name string) (*FieldSchema, error) {
	if name != "" {
		f, ok := schema.Field(name)
		if !ok {
			return nil, fieldErr(name, -1, ErrUnknownField)
		}
		if !f.IsVector() {
			return nil, fieldErr(name, -1, fmt.Errorf("%w: not a vector field", ErrInvalidRequest))
		}
		return f, nil
	}
	vectors := schema.VectorFields()
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: collection %q has %d vector fields, name one", ErrInvalidRequest, schema.Name, len(vectors))
	}
	return vectors[0], nil
}

func filterExpr(raw string, set *FilterSet) (string, error) {
	built, err := set.Expr()
	if err != nil {
		return "", err
	}
	return CombineFilters(raw, built), nil
}

// idFilter renders "pk in [...]" with keys checked against the primary
// key type.
func idFilter(schema *Schema, ids []any) (string, error) {
	pk := schema.PrimaryField()
	keys := make([]string, len(ids))
	for i, id := range ids {
		switch pk.DataType {
		case schemapb.DataType_Int64:
			n, ok := asInt64(id)
			if !ok {
				return "", fieldErr(pk.Name, i, typeErr(pk.DataType, id))
			}
			keys[i] = keyString(n)
		default:
			s, ok := id.(string)
			if !ok {
				return "", fieldErr(pk.Name, i, typeErr(pk.DataType, id))
			}
			keys[i] = keyString(s)
		}
	}
	return fmt.Sprintf("%s in [%s]", pk.Name, strings.Join(keys, ", ")), nil
}

func partitionList(p string) []string {
	if p == "" {
		return nil
	}
	return []string{p}
}
