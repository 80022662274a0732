// Package milvus provides a row-oriented, dependency-injected client for the
// Milvus vector database.
//
// Milvus speaks columns: every insert is one FieldData per field and every
// reply carries its rows the same way. This package converts between the
// two views and drives the calls that need more than one round trip, such
// as hybrid search and paginated iteration. Connections belong to a
// Transport implementation supplied by the application, which keeps the
// package free of any particular RPC stack.
//
// # Core Features
//
//   - Schema-driven marshalling of rows or columns, with nullable fields,
//     default values and the dynamic "$meta" field
//   - Decoding of query and search replies back into rows, including
//     grouped searches and score truncation
//   - Hybrid search over several vector fields with RRF or weighted fusion
//   - Query and search iterators with client-held cursors that survive
//     failed fetches
//   - A schema cache that describes collections on demand
//   - Fx integration, structured logging, metrics and tracing hooks
//
// # Basic Usage
//
//	schema, err := milvus.NewSchema("documents", true,
//	    &milvus.FieldSchema{Name: "id", DataType: schemapb.DataType_Int64, IsPrimaryKey: true},
//	    &milvus.FieldSchema{Name: "embedding", DataType: schemapb.DataType_FloatVector, Dim: 768},
//	    &milvus.FieldSchema{Name: "title", DataType: schemapb.DataType_VarChar, MaxLength: 256},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := milvus.NewClient(milvus.DefaultConfig(), transport)
//	client.Schemas().Register(schema)
//
//	_, err = client.Insert(ctx, milvus.InsertRequest{
//	    Collection: "documents",
//	    Rows: []milvus.Row{
//	        {"id": int64(1), "embedding": embedding, "title": "Hello", "lang": "en"},
//	    },
//	})
//
//	results, err := client.Search(ctx, milvus.SearchRequest{
//	    Collection:   "documents",
//	    Vectors:      []any{query},
//	    Limit:        10,
//	    MetricType:   "COSINE",
//	    OutputFields: []string{"title"},
//	})
//	for _, row := range results[0].Rows {
//	    fmt.Println(row[milvus.IDKey], row[milvus.ScoreKey], row["title"])
//	}
//
// # Iteration
//
// Iterators fetch one page per Advance and keep their position on the
// client. A failed Advance can simply be retried:
//
//	it, err := client.QueryIterator(ctx, milvus.QueryRequest{
//	    Collection: "documents",
//	    Filter:     `lang == "en"`,
//	}, milvus.IteratorOptions{BatchSize: 500})
//	if err != nil {
//	    return err
//	}
//	defer it.Close()
//
//	for row, err := range it.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    process(row)
//	}
//
// # Filters
//
// Expressions can be written by hand or built from conditions:
//
//	filters := &milvus.FilterSet{
//	    Must: &milvus.ConditionSet{Conditions: []milvus.FilterCondition{
//	        &milvus.MatchCondition{Field: "lang", Value: "en"},
//	        &milvus.NumericRangeCondition{Field: "year", Range: milvus.NumericRange{Gte: &from}},
//	    }},
//	}
//
// Filter sets arriving in request payloads are decoded with ParseFilterSet:
//
//	filters, err := milvus.ParseFilterSet([]byte(`{"must": [{"field": "lang", "equalTo": "en"}]}`))
//
// # FX Module Integration
//
//	app := fx.New(
//	    logger.FXModule,
//	    metrics.FXModule,
//	    fx.Supply(milvus.DefaultConfig()),
//	    fx.Provide(newTransport),
//	    milvus.FXModule,
//	    fx.Invoke(func(c milvus.Client) {
//	        // use c
//	    }),
//	)
//
// # Thread Safety
//
// MilvusClient and SchemaCache are safe for concurrent use. An Iterator
// must be used from one goroutine at a time.
package milvus
