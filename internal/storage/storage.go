// Package storage defines the document store interface for the gateway.
package storage

import (
	"context"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
)

// FindOptions shapes a find query. Limit is the effective (already clamped)
// limit; callers of the store never pass raw request values.
type FindOptions struct {
	Projection gateway.Document
	Sort       gateway.Document
	Skip       int64
	Limit      int64
}

// Store executes validated operations against the backing document store.
// Implementations own a single pooled connection reused across requests and
// must return results with store-specific types (object IDs, timestamps)
// already normalized to JSON-friendly values.
type Store interface {
	Find(ctx context.Context, collection string, filter gateway.Document, opts FindOptions) ([]gateway.Document, error)
	FindOne(ctx context.Context, collection string, filter, projection gateway.Document) (gateway.Document, error)
	Count(ctx context.Context, collection string, filter gateway.Document) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline []gateway.Document) ([]gateway.Document, error)
	InsertOne(ctx context.Context, collection string, doc gateway.Document) (any, error)
	InsertMany(ctx context.Context, collection string, docs []gateway.Document) ([]any, error)
	UpdateOne(ctx context.Context, collection string, filter, update gateway.Document, upsert bool) (*gateway.UpdateResult, error)
	UpdateMany(ctx context.Context, collection string, filter, update gateway.Document) (*gateway.UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter gateway.Document) (int64, error)
	DeleteMany(ctx context.Context, collection string, filter gateway.Document) (int64, error)

	// Ping verifies connectivity to the store.
	Ping(ctx context.Context) error
}
