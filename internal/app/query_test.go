package app

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/cache"
	"github.com/nyuchitech/mukoko-db-gateway/internal/config"
	"github.com/nyuchitech/mukoko-db-gateway/internal/policy"
	"github.com/nyuchitech/mukoko-db-gateway/internal/testutil"
)

func newService(store *testutil.FakeStore) *QueryService {
	cfg := config.Default()
	return NewQueryService(store, policy.New(cfg.Policy, cfg.Limits), nil, nil)
}

func TestExecuteMissingFields(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)

	for _, req := range []*gateway.Request{
		{},
		{Action: "find"},
		{Collection: "articles"},
	} {
		_, err := svc.Execute(context.Background(), req)
		if !errors.Is(err, gateway.ErrMissingFields) {
			t.Errorf("req %+v: err = %v, want ErrMissingFields", req, err)
		}
	}
	if store.Calls != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls)
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)

	_, err := svc.Execute(context.Background(), &gateway.Request{Action: "dropDatabase", Collection: "articles"})
	if !errors.Is(err, gateway.ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
	if store.Calls != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls)
	}
}

func TestExecuteCollectionNotAllowed(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)

	// A perfectly well-formed request against the wrong collection must be
	// rejected before any store call.
	_, err := svc.Execute(context.Background(), &gateway.Request{
		Action:     "find",
		Collection: "secret_admin_table",
		Filter:     gateway.Document{},
	})
	if !errors.Is(err, gateway.ErrCollectionNotAllowed) {
		t.Fatalf("err = %v, want ErrCollectionNotAllowed", err)
	}
	if store.Calls != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls)
	}
}

func TestExecuteBlockedOperatorNested(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)

	_, err := svc.Execute(context.Background(), &gateway.Request{
		Action:     "find",
		Collection: "articles",
		Filter: gateway.Document{
			"a": map[string]any{"b": map[string]any{"$where": "while(1){}"}},
		},
	})
	if !errors.Is(err, gateway.ErrOperatorNotAllowed) {
		t.Fatalf("err = %v, want ErrOperatorNotAllowed", err)
	}
	if store.Calls != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls)
	}
}

func TestExecuteBlockedStage(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)

	_, err := svc.Execute(context.Background(), &gateway.Request{
		Action:     "aggregate",
		Collection: "articles",
		Pipeline:   []gateway.Document{{"$out": "other_collection"}},
	})
	if !errors.Is(err, gateway.ErrStageNotAllowed) {
		t.Fatalf("err = %v, want ErrStageNotAllowed", err)
	}
	if store.Calls != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls)
	}
}

func TestExecuteFindLimitClamped(t *testing.T) {
	t.Parallel()

	lim := func(n int64) *int64 { return &n }
	tests := []struct {
		name  string
		limit *int64
		want  int64
	}{
		{"huge", lim(999999), 1000},
		{"zero", lim(0), 1},
		{"negative", lim(-1), 1},
		{"absent", nil, 100},
		{"in range", lim(5), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := testutil.NewFakeStore()
			svc := newService(store)

			_, err := svc.Execute(context.Background(), &gateway.Request{
				Action:     "find",
				Collection: "articles",
				Limit:      tt.limit,
			})
			if err != nil {
				t.Fatal(err)
			}
			if store.LastFind.Limit != tt.want {
				t.Errorf("effective limit = %d, want %d", store.LastFind.Limit, tt.want)
			}
		})
	}
}

func TestExecuteInsertManyBatchCap(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)

	docs := make([]gateway.Document, 501)
	for i := range docs {
		docs[i] = gateway.Document{"n": i}
	}

	_, err := svc.Execute(context.Background(), &gateway.Request{
		Action:     "insertMany",
		Collection: "articles",
		Documents:  docs,
	})
	if !errors.Is(err, gateway.ErrBatchTooLarge) {
		t.Fatalf("err = %v, want ErrBatchTooLarge", err)
	}
	// Not even a partial insert.
	if store.Calls != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls)
	}
}

func TestExecuteInsertFindRoundTrip(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	svc := newService(store)
	ctx := context.Background()

	res, err := svc.Execute(ctx, &gateway.Request{
		Action:     "insertOne",
		Collection: "articles",
		Document:   gateway.Document{"title": "Lagos tech roundup", "lang": "en"},
	})
	if err != nil {
		t.Fatal(err)
	}
	inserted := res.(gateway.InsertOneResult)
	if inserted.InsertedID == nil {
		t.Fatal("insertedId is nil")
	}

	res, err = svc.Execute(ctx, &gateway.Request{
		Action:     "findOne",
		Collection: "articles",
		Filter:     gateway.Document{"_id": inserted.InsertedID},
	})
	if err != nil {
		t.Fatal(err)
	}
	doc := res.(gateway.FindOneResult).Document
	if doc == nil {
		t.Fatal("document is nil")
	}
	if doc["title"] != "Lagos tech roundup" || doc["lang"] != "en" {
		t.Errorf("document = %v", doc)
	}
}

func TestExecuteFindIdempotent(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	store.Seed("articles",
		gateway.Document{"_id": "1", "title": "a"},
		gateway.Document{"_id": "2", "title": "b"},
	)
	svc := newService(store)
	ctx := context.Background()

	req := &gateway.Request{Action: "find", Collection: "articles", Filter: gateway.Document{}}
	first, err := svc.Execute(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Execute(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%v\n%v", first, second)
	}
}

func TestExecuteUpdateDeleteShapes(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	store.Seed("sources",
		gateway.Document{"_id": "s1", "status": "active"},
		gateway.Document{"_id": "s2", "status": "active"},
	)
	svc := newService(store)
	ctx := context.Background()

	res, err := svc.Execute(ctx, &gateway.Request{
		Action:     "updateMany",
		Collection: "sources",
		Filter:     gateway.Document{"status": "active"},
		Update:     gateway.Document{"$set": map[string]any{"status": "paused"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	upd := res.(gateway.UpdateResult)
	if upd.MatchedCount != 2 || upd.ModifiedCount != 2 {
		t.Errorf("update result = %+v", upd)
	}

	res, err = svc.Execute(ctx, &gateway.Request{
		Action:     "deleteMany",
		Collection: "sources",
		Filter:     gateway.Document{"status": "paused"},
	})
	if err != nil {
		t.Fatal(err)
	}
	del := res.(gateway.DeleteResult)
	if del.DeletedCount != 2 {
		t.Errorf("deleted = %d, want 2", del.DeletedCount)
	}
}

func TestExecuteStoreFailureIsGeneric(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	store.FailAll = true
	svc := newService(store)

	_, err := svc.Execute(context.Background(), &gateway.Request{
		Action:     "count",
		Collection: "articles",
	})
	if !errors.Is(err, gateway.ErrStoreFailure) {
		t.Fatalf("err = %v, want ErrStoreFailure", err)
	}
	// The raw store error must not surface to callers.
	if errors.Is(err, store.FailErr) {
		t.Error("internal store error leaked through the service boundary")
	}
}

func TestExecuteReadCache(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	store.Seed("trending", gateway.Document{"_id": "t1", "keyword": "afcon"})

	rc, err := cache.New(128, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	svc := NewQueryService(store, policy.New(cfg.Policy, cfg.Limits), rc, nil)
	ctx := context.Background()

	req := &gateway.Request{Action: "find", Collection: "trending", Filter: gateway.Document{}}
	if _, err := svc.Execute(ctx, req); err != nil {
		t.Fatal(err)
	}
	if store.Calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.Calls)
	}

	// Second identical read is served from cache.
	res, err := svc.Execute(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if store.Calls != 1 {
		t.Errorf("store calls = %d, want 1 (cache hit)", store.Calls)
	}
	raw, ok := res.(json.RawMessage)
	if !ok {
		t.Fatalf("cached result type = %T", res)
	}
	var decoded gateway.FindResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Documents) != 1 {
		t.Errorf("cached documents = %d, want 1", len(decoded.Documents))
	}

	// A write to the collection invalidates cached reads.
	if _, err := svc.Execute(ctx, &gateway.Request{
		Action:     "insertOne",
		Collection: "trending",
		Document:   gateway.Document{"keyword": "harmattan"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Execute(ctx, req); err != nil {
		t.Fatal(err)
	}
	if store.Calls != 3 {
		t.Errorf("store calls = %d, want 3 (cache invalidated by write)", store.Calls)
	}
}
