package milvus

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// MaxBatchSize is the largest page an iterator requests. Larger batch sizes
// are capped to it.
const MaxBatchSize = 16384

// IteratorState is the lifecycle position of an Iterator.
type IteratorState int

const (
	StateCreated IteratorState = iota
	StateFetching
	StateReady
	StateExhausted
	StateClosed
)

func (s IteratorState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("IteratorState(%d)", int(s))
}

// IteratorOptions configures pagination.
type IteratorOptions struct {
	// BatchSize is the page size requested from the server. Zero uses the
	// client default; values above the maximum are capped.
	BatchSize int
	// Limit bounds the total number of rows emitted. Zero or negative is
	// unbounded.
	Limit int64
	// Filter drops rows client-side. Dropped rows still move the cursor.
	Filter func(Row) bool
}

// Cursor is the client-held pagination state of one iteration.
type Cursor struct {
	// LastReturned is the number of rows the last step emitted.
	LastReturned int
	// Emitted is the number of rows emitted so far.
	Emitted int64
	// Exhausted is set once no further page can produce rows.
	Exhausted bool
	// Next is the request that fetches the following page.
	Next *Request
}

// StepConfig carries the fixed parameters of an iteration.
type StepConfig struct {
	Kind          RequestKind
	BatchSize     int
	Limit         int64
	Filter        func(Row) bool
	PrimaryField  string
	LowerIsBetter bool
}

// Step applies one fetched page of raw rows to cur and returns the rows to
// emit along with the advanced cursor. cur is not modified.
//
// The page is filtered, then truncated to what remains of the limit. The
// cursor is exhausted when the page is shorter than the batch size or the
// limit is reached. Otherwise the next request starts after the last raw
// row: by primary key for queries, by score plus the ids already seen at
// that score for searches.
func Step(cur Cursor, raw []Row, cfg StepConfig) ([]Row, Cursor) {
	next := Cursor{Emitted: cur.Emitted, Next: cur.Next.Clone()}

	out := make([]Row, 0, len(raw))
	for _, row := range raw {
		if cfg.Filter == nil || cfg.Filter(row) {
			out = append(out, row)
		}
	}
	if cfg.Limit > 0 {
		if remaining := cfg.Limit - next.Emitted; int64(len(out)) >= remaining {
			out = out[:max(remaining, 0)]
			next.Exhausted = true
		}
	}
	next.LastReturned = len(out)
	next.Emitted += int64(len(out))

	if len(raw) < cfg.BatchSize {
		next.Exhausted = true
	}
	if len(raw) > 0 && next.Next != nil {
		next.Next.Boundary = advanceBoundary(next.Next.Boundary, raw, cfg)
	}
	return out, next
}

func advanceBoundary(prev *Boundary, raw []Row, cfg StepConfig) *Boundary {
	last := raw[len(raw)-1]
	b := &Boundary{PrimaryField: cfg.PrimaryField, LowerIsBetter: cfg.LowerIsBetter}
	if cfg.Kind != KindSearch {
		b.PrimaryKey = last[cfg.PrimaryField]
		return b
	}

	score, _ := last[ScoreKey].(float32)
	b.Score = &score
	if prev != nil && prev.Score != nil && *prev.Score == score {
		b.ExcludeIDs = append(b.ExcludeIDs, prev.ExcludeIDs...)
	}
	for _, row := range raw {
		if s, _ := row[ScoreKey].(float32); s == score {
			b.ExcludeIDs = append(b.ExcludeIDs, row[IDKey])
		}
	}
	return b
}

// Iterator pages through a query or a single-vector search. It is not safe
// for concurrent use; independent iterators share nothing.
type Iterator struct {
	client *MilvusClient
	schema *Schema
	decode DecodeOptions
	cfg    StepConfig
	round  *int // score truncation applied to emitted search rows

	state  IteratorState
	cursor Cursor
}

func newIterator(c *MilvusClient, schema *Schema, base *Request, kind RequestKind, decode DecodeOptions, opts IteratorOptions) *Iterator {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = c.cfg.DefaultBatchSize
	}
	if maxBatch := c.cfg.maxBatchSize(); batch > maxBatch {
		c.logger.Warn("iterator batch size capped", nil, map[string]interface{}{
			"requested": batch,
			"max":       maxBatch,
		})
		batch = maxBatch
	}

	first := base.Clone()
	first.Limit = batch
	first.Offset = 0
	return &Iterator{
		client: c,
		schema: schema,
		decode: decode,
		cfg: StepConfig{
			Kind:          kind,
			BatchSize:     batch,
			Limit:         opts.Limit,
			Filter:        opts.Filter,
			PrimaryField:  schema.PrimaryField().Name,
			LowerIsBetter: LowerIsBetter(base.MetricType),
		},
		state:  StateCreated,
		cursor: Cursor{Next: first},
	}
}

// State returns the current state.
func (it *Iterator) State() IteratorState { return it.state }

// Cursor returns a copy of the pagination state.
func (it *Iterator) Cursor() Cursor {
	c := it.cursor
	c.Next = c.Next.Clone()
	return c
}

// BatchSize returns the effective page size.
func (it *Iterator) BatchSize() int { return it.cfg.BatchSize }

// Advance fetches the next page and returns the rows that pass the filter.
// Once exhausted or closed it returns an empty page without network
// activity. A failed fetch leaves the cursor untouched, so calling Advance
// again re-issues the same request.
func (it *Iterator) Advance(ctx context.Context) ([]Row, error) {
	if it.state == StateExhausted || it.state == StateClosed {
		return []Row{}, nil
	}

	c := it.client
	ctx, span := c.tracer.StartSpan(ctx, "milvus.iterator.advance")
	defer span.End()

	prev := it.state
	it.state = StateFetching
	start := time.Now()

	req := it.cursor.Next.Clone()
	req.Metadata = c.tracer.GetCarrier(ctx)
	raw, err := it.fetch(ctx, req)
	c.observeOperation("iterator_"+it.cfg.Kind.String(), req.Collection, "", time.Since(start), err, int64(len(raw)), nil)
	if err != nil {
		it.state = prev
		c.tracer.RecordErrorOnSpan(span, err)
		c.logger.Error("iterator page failed", err, map[string]interface{}{
			"collection": req.Collection,
			"kind":       it.cfg.Kind.String(),
			"emitted":    it.cursor.Emitted,
		})
		return nil, err
	}

	rows, next := Step(it.cursor, raw, it.cfg)
	it.cursor = next
	if it.round != nil && *it.round >= 0 {
		for _, row := range rows {
			if s, ok := row[ScoreKey].(float32); ok {
				row[ScoreKey] = truncateScore(s, it.round)
			}
		}
	}
	if next.Exhausted {
		it.state = StateExhausted
		c.logger.Debug("iterator exhausted", nil, map[string]interface{}{
			"collection": req.Collection,
			"emitted":    next.Emitted,
		})
	} else {
		it.state = StateReady
	}
	c.tracer.SetAttributes(span, map[string]interface{}{
		"milvus.collection": req.Collection,
		"milvus.raw_rows":   len(raw),
		"milvus.rows":       len(rows),
	})
	return rows, nil
}

func (it *Iterator) fetch(ctx context.Context, req *Request) ([]Row, error) {
	resp, err := it.client.transport.Execute(ctx, it.cfg.Kind, req)
	if err != nil {
		return nil, fmt.Errorf("%s page: %w", it.cfg.Kind, err)
	}
	if resp == nil {
		return []Row{}, nil
	}
	if it.cfg.Kind == KindQuery {
		return FromColumns(it.schema, resp.FieldsData, req.OutputFields, it.decode)
	}
	results, err := DecodeSearch(it.schema, resp.Results, it.decode)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []Row{}, nil
	}
	return results[0].Rows, nil
}

// Close ends the iteration. It is always safe and idempotent.
func (it *Iterator) Close() {
	it.state = StateClosed
}

// All returns the remaining rows as a sequence. Iteration stops after the
// first error, which is yielded with a nil row.
//
//	for row, err := range it.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func (it *Iterator) All(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			rows, err := it.Advance(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if it.state == StateExhausted || it.state == StateClosed {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
