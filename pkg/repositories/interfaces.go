// Package repositories defines the engine handles the explain callables run against.
package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// RelationalRepository captures plans from the relational engine.
type RelationalRepository interface {
	// ExplainAnalyze runs the query under EXPLAIN ANALYZE and returns the
	// engine's JSON plan unmodified.
	ExplainAnalyze(ctx context.Context, query string, args ...any) ([]byte, error)
	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close()
}

// DocumentRepository captures explain documents from the document engine.
type DocumentRepository interface {
	// Explain wraps command in an explain command at executionStats verbosity
	// and returns the server's reply.
	Explain(ctx context.Context, command bson.D) (bson.M, error)
	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error
	// Close disconnects the client.
	Close(ctx context.Context) error
}
