// Package logger provides the zap-backed structured logger used across this
// module.
//
// Every call takes a message, an optional error and optional field maps:
//
//	log := logger.NewLoggerClient(logger.Config{Level: logger.Info, ServiceName: "ingest"})
//	log.Info("batch inserted", nil, map[string]interface{}{
//	    "collection": "docs",
//	    "rows":       1000,
//	})
//	log.Error("search failed", err, map[string]interface{}{"collection": "docs"})
//
// Packages that log declare their own Logger interface with this method set,
// so *Logger can be injected directly and tests can use gomock mocks.
//
// # FX Module Integration
//
//	app := fx.New(
//	    fx.Supply(logger.Config{Level: logger.Debug}),
//	    logger.FXModule,
//	)
//
// Use NewNop in tests or wherever logging is not wanted.
package logger
