// Package testutil provides fakes shared by the gateway test suites.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/storage"
)

// FakeStore is an in-memory implementation of storage.Store for testing.
// Matching supports top-level equality only, which covers what the gateway's
// own tests need. Every call is counted so tests can assert that rejected
// requests never reach the store.
type FakeStore struct {
	mu          sync.Mutex
	collections map[string][]gateway.Document
	nextID      int

	Calls     int                 // total store operations seen
	LastFind  storage.FindOptions // options of the most recent Find
	FailAll   bool                // every call returns FailErr
	FailErr   error
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		collections: make(map[string][]gateway.Document),
		FailErr:     errors.New("fake store failure"),
	}
}

// Seed inserts documents into a collection without counting as a call.
func (s *FakeStore) Seed(collection string, docs ...gateway.Document) {
	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], docs...)
	s.mu.Unlock()
}

func (s *FakeStore) enter() error {
	s.Calls++
	if s.FailAll {
		return s.FailErr
	}
	return nil
}

func matches(doc, filter gateway.Document) bool {
	for k, want := range filter {
		if doc[k] != want {
			return false
		}
	}
	return true
}

// Find returns matching documents honoring skip and limit.
func (s *FakeStore) Find(_ context.Context, collection string, filter gateway.Document, opts storage.FindOptions) ([]gateway.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	s.LastFind = opts

	out := []gateway.Document{}
	var skipped int64
	for _, doc := range s.collections[collection] {
		if !matches(doc, filter) {
			continue
		}
		if skipped < opts.Skip {
			skipped++
			continue
		}
		out = append(out, doc)
		if opts.Limit > 0 && int64(len(out)) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// FindOne returns the first matching document or nil.
func (s *FakeStore) FindOne(_ context.Context, collection string, filter, _ gateway.Document) (gateway.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			return doc, nil
		}
	}
	return nil, nil
}

// Count returns the number of matching documents.
func (s *FakeStore) Count(_ context.Context, collection string, filter gateway.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// Aggregate returns the whole collection; the fake does not interpret stages.
func (s *FakeStore) Aggregate(_ context.Context, collection string, _ []gateway.Document) ([]gateway.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	return append([]gateway.Document{}, s.collections[collection]...), nil
}

// InsertOne stores the document, assigning an _id when absent.
func (s *FakeStore) InsertOne(_ context.Context, collection string, doc gateway.Document) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	return s.insert(collection, doc), nil
}

// InsertMany stores a batch of documents.
func (s *FakeStore) InsertMany(_ context.Context, collection string, docs []gateway.Document) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	ids := make([]any, len(docs))
	for i, doc := range docs {
		ids[i] = s.insert(collection, doc)
	}
	return ids, nil
}

func (s *FakeStore) insert(collection string, doc gateway.Document) any {
	id, ok := doc["_id"]
	if !ok {
		s.nextID++
		id = fmt.Sprintf("%024x", s.nextID)
		doc["_id"] = id
	}
	s.collections[collection] = append(s.collections[collection], doc)
	return id
}

// UpdateOne applies $set fields to the first matching document.
func (s *FakeStore) UpdateOne(_ context.Context, collection string, filter, update gateway.Document, upsert bool) (*gateway.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			applySet(doc, update)
			return &gateway.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	if upsert {
		doc := gateway.Document{}
		for k, v := range filter {
			doc[k] = v
		}
		applySet(doc, update)
		id := s.insert(collection, doc)
		return &gateway.UpdateResult{UpsertedID: id}, nil
	}
	return &gateway.UpdateResult{}, nil
}

// UpdateMany applies $set fields to all matching documents.
func (s *FakeStore) UpdateMany(_ context.Context, collection string, filter, update gateway.Document) (*gateway.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	res := &gateway.UpdateResult{}
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			applySet(doc, update)
			res.MatchedCount++
			res.ModifiedCount++
		}
	}
	return res, nil
}

func applySet(doc, update gateway.Document) {
	set, _ := update["$set"].(map[string]any)
	for k, v := range set {
		doc[k] = v
	}
}

// DeleteOne removes the first matching document.
func (s *FakeStore) DeleteOne(_ context.Context, collection string, filter gateway.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return 0, err
	}
	docs := s.collections[collection]
	for i, doc := range docs {
		if matches(doc, filter) {
			s.collections[collection] = append(docs[:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// DeleteMany removes all matching documents.
func (s *FakeStore) DeleteMany(_ context.Context, collection string, filter gateway.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return 0, err
	}
	var kept []gateway.Document
	var removed int64
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	s.collections[collection] = kept
	return removed, nil
}

// Ping reports the configured failure state.
func (s *FakeStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAll {
		return s.FailErr
	}
	return nil
}
