package mongodb

import (
	"context"
	"errors"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/storage"
)

// Find queries matching documents. The caller (query service) has already
// clamped Limit; this layer trusts it.
func (s *Store) Find(ctx context.Context, collection string, filter gateway.Document, opts storage.FindOptions) ([]gateway.Document, error) {
	findOpts := options.Find().SetLimit(opts.Limit)
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		findOpts.SetSort(sortDoc(opts.Sort))
	}

	cursor, err := s.collection(collection).Find(ctx, rewriteFilter(filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []gateway.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return normalizeDocuments(docs), nil
}

// FindOne returns at most one matching document, or nil when nothing matches.
func (s *Store) FindOne(ctx context.Context, collection string, filter, projection gateway.Document) (gateway.Document, error) {
	findOpts := options.FindOne()
	if projection != nil {
		findOpts.SetProjection(projection)
	}

	var doc gateway.Document
	err := s.collection(collection).FindOne(ctx, rewriteFilter(filter), findOpts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return normalizeDocument(doc), nil
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, collection string, filter gateway.Document) (int64, error) {
	return s.collection(collection).CountDocuments(ctx, rewriteFilter(filter))
}

// Aggregate runs a pipeline. The query service has already rejected blocked
// stages before this point.
func (s *Store) Aggregate(ctx context.Context, collection string, pipeline []gateway.Document) ([]gateway.Document, error) {
	cursor, err := s.collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []gateway.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return normalizeDocuments(docs), nil
}

// InsertOne inserts a single document and returns its normalized ID.
func (s *Store) InsertOne(ctx context.Context, collection string, doc gateway.Document) (any, error) {
	res, err := s.collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return normalizeValue(res.InsertedID), nil
}

// InsertMany inserts a batch and returns the normalized IDs. The batch cap is
// enforced upstream; a failure here is all-or-nothing from the caller's view
// because ordered inserts stop at the first error and the error is surfaced.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []gateway.Document) ([]any, error) {
	payload := make([]any, len(docs))
	for i, d := range docs {
		payload[i] = d
	}
	res, err := s.collection(collection).InsertMany(ctx, payload)
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(res.InsertedIDs))
	for i, id := range res.InsertedIDs {
		ids[i] = normalizeValue(id)
	}
	return ids, nil
}

// UpdateOne updates at most one matching document, optionally upserting.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter, update gateway.Document, upsert bool) (*gateway.UpdateResult, error) {
	res, err := s.collection(collection).UpdateOne(ctx, rewriteFilter(filter), update, options.Update().SetUpsert(upsert))
	if err != nil {
		return nil, err
	}
	out := &gateway.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}
	if res.UpsertedID != nil {
		out.UpsertedID = normalizeValue(res.UpsertedID)
	}
	return out, nil
}

// UpdateMany updates all matching documents.
func (s *Store) UpdateMany(ctx context.Context, collection string, filter, update gateway.Document) (*gateway.UpdateResult, error) {
	res, err := s.collection(collection).UpdateMany(ctx, rewriteFilter(filter), update)
	if err != nil {
		return nil, err
	}
	return &gateway.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

// DeleteOne deletes at most one matching document.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter gateway.Document) (int64, error) {
	res, err := s.collection(collection).DeleteOne(ctx, rewriteFilter(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteMany deletes all matching documents.
func (s *Store) DeleteMany(ctx context.Context, collection string, filter gateway.Document) (int64, error) {
	res, err := s.collection(collection).DeleteMany(ctx, rewriteFilter(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// sortDoc converts a JSON sort object into a bson.D. The driver rejects
// multi-key maps for sorts because map iteration order is undefined; keys are
// emitted alphabetically, which is deterministic even if it cannot recover
// the caller's original key order.
func sortDoc(m gateway.Document) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}
