package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/config"
)

func testPolicy() *Policy {
	cfg := config.Default()
	return New(cfg.Policy, cfg.Limits)
}

func TestCheckCollection(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	require.NoError(t, p.CheckCollection("articles"))
	require.NoError(t, p.CheckCollection("feed_state"))

	err := p.CheckCollection("secret_admin_table")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrCollectionNotAllowed)
	assert.Contains(t, err.Error(), "secret_admin_table")
}

func TestCheckFilter(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	tests := []struct {
		name   string
		filter gateway.Document
		want   error
	}{
		{"nil filter", nil, nil},
		{"empty filter", gateway.Document{}, nil},
		{"plain equality", gateway.Document{"status": "active"}, nil},
		{"harmless operator", gateway.Document{"score": map[string]any{"$gt": 5}}, nil},
		{"top-level where", gateway.Document{"$where": "sleep(1000)"}, gateway.ErrOperatorNotAllowed},
		{"nested where", gateway.Document{"a": map[string]any{"b": map[string]any{"$where": "x"}}}, gateway.ErrOperatorNotAllowed},
		{"operator inside array", gateway.Document{"$or": []any{map[string]any{"$expr": map[string]any{}}}}, gateway.ErrOperatorNotAllowed},
		{"function operator", gateway.Document{"f": map[string]any{"$function": map[string]any{}}}, gateway.ErrOperatorNotAllowed},
		{"accumulator operator", gateway.Document{"f": map[string]any{"$accumulator": "x"}}, gateway.ErrOperatorNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.CheckFilter(tt.filter)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckFilterDepthBound(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	// Build a filter nested deeper than the bound. Even without any blocked
	// operator it must be rejected rather than walked to exhaustion.
	leaf := any("x")
	for range 40 {
		leaf = map[string]any{"a": leaf}
	}
	err := p.CheckFilter(gateway.Document{"root": leaf})
	assert.ErrorIs(t, err, gateway.ErrFilterTooDeep)
}

func TestCheckPipeline(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	ok := []gateway.Document{
		{"$match": map[string]any{"status": "active"}},
		{"$group": map[string]any{"_id": "$source"}},
		{"$limit": 10},
	}
	assert.NoError(t, p.CheckPipeline(ok))

	for _, stage := range []string{"$out", "$merge", "$currentOp", "$listSessions"} {
		err := p.CheckPipeline([]gateway.Document{{stage: "other_collection"}})
		assert.ErrorIs(t, err, gateway.ErrStageNotAllowed, "stage %s", stage)
	}

	// Blocked stage after harmless ones is still caught.
	err := p.CheckPipeline(append(ok, gateway.Document{"$merge": map[string]any{"into": "x"}}))
	assert.ErrorIs(t, err, gateway.ErrStageNotAllowed)
}

func TestClampLimit(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	lim := func(n int64) *int64 { return &n }

	tests := []struct {
		name  string
		limit *int64
		want  int64
	}{
		{"absent uses default", nil, 100},
		{"zero clamps to one", lim(0), 1},
		{"negative clamps to one", lim(-5), 1},
		{"huge clamps to max", lim(999999), 1000},
		{"in range passes through", lim(5), 5},
		{"exactly max", lim(1000), 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ClampLimit(tt.limit))
		})
	}
}

func TestCheckBatch(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	docs := make([]gateway.Document, 500)
	assert.NoError(t, p.CheckBatch(docs))

	docs = append(docs, gateway.Document{})
	err := p.CheckBatch(docs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrBatchTooLarge))
}
