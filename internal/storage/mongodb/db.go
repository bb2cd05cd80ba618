// Package mongodb implements the storage.Store interface on top of the
// official MongoDB driver.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nyuchitech/mukoko-db-gateway/internal/config"
)

// Store wraps a single pooled MongoDB client. It is created once at startup
// and shared by all request handlers; handlers only issue operations through
// it and never mutate its configuration.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to the store and verifies connectivity with a ping. Pool size
// and timeouts come from configuration; the defaults keep the pool at 1 and
// every timeout in the single-digit-second range so an outage surfaces as a
// fast error.
func New(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.SelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Ping verifies connectivity to the store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}
