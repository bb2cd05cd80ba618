// Package policy enforces the gateway's security policy: the collection
// allow-list, the filter-operator block-list, and the aggregation-stage
// block-list. Every check runs before any store I/O, so a rejected request
// never touches the backing database.
package policy

import (
	"fmt"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/config"
)

// Policy holds the compiled, immutable rule sets. Build it once at startup;
// it is safe for concurrent use.
type Policy struct {
	collections  map[string]struct{}
	operators    map[string]struct{}
	stages       map[string]struct{}
	maxDepth     int
	defaultLimit int64
	maxLimit     int64
	maxBatch     int
}

// New compiles a Policy from configuration.
func New(cfg config.PolicyConfig, limits config.LimitsConfig) *Policy {
	p := &Policy{
		collections:  make(map[string]struct{}, len(cfg.AllowedCollections)),
		operators:    make(map[string]struct{}, len(cfg.BlockedOperators)),
		stages:       make(map[string]struct{}, len(cfg.BlockedStages)),
		maxDepth:     limits.MaxFilterDepth,
		defaultLimit: limits.DefaultFindLimit,
		maxLimit:     limits.MaxFindLimit,
		maxBatch:     limits.MaxBatchSize,
	}
	for _, c := range cfg.AllowedCollections {
		p.collections[c] = struct{}{}
	}
	for _, op := range cfg.BlockedOperators {
		p.operators[op] = struct{}{}
	}
	for _, s := range cfg.BlockedStages {
		p.stages[s] = struct{}{}
	}
	return p
}

// CheckCollection rejects any collection outside the allow-list.
func (p *Policy) CheckCollection(name string) error {
	if _, ok := p.collections[name]; !ok {
		return fmt.Errorf("%w: %q", gateway.ErrCollectionNotAllowed, name)
	}
	return nil
}

// CheckFilter walks the filter depth-first and rejects it if any key at any
// nesting level is a blocked operator. The walk is depth-bounded so
// adversarial deeply-nested input cannot exhaust the stack.
func (p *Policy) CheckFilter(filter gateway.Document) error {
	if filter == nil {
		return nil
	}
	return p.scanValue(filter, 0)
}

func (p *Policy) scanValue(v any, depth int) error {
	if depth > p.maxDepth {
		return gateway.ErrFilterTooDeep
	}
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if _, blocked := p.operators[k]; blocked {
				return fmt.Errorf("%w: %q", gateway.ErrOperatorNotAllowed, k)
			}
			if err := p.scanValue(child, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range val {
			if err := p.scanValue(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckPipeline inspects the top-level key of each aggregation stage against
// the stage block-list. A blocked stage is only meaningful as a stage's
// top-level key, so stage bodies are not walked.
func (p *Policy) CheckPipeline(pipeline []gateway.Document) error {
	for _, stage := range pipeline {
		for k := range stage {
			if _, blocked := p.stages[k]; blocked {
				return fmt.Errorf("%w: %q", gateway.ErrStageNotAllowed, k)
			}
		}
	}
	return nil
}

// ClampLimit bounds a caller-supplied find limit. A nil limit means the
// caller did not set one and gets the server default; anything else is forced
// into [1, max] regardless of sign or size. This is a resource-exhaustion
// guard, separate from the 403 policy checks.
func (p *Policy) ClampLimit(limit *int64) int64 {
	if limit == nil {
		return p.defaultLimit
	}
	n := *limit
	if n < 1 {
		return 1
	}
	if n > p.maxLimit {
		return p.maxLimit
	}
	return n
}

// CheckBatch rejects insertMany batches over the cap before any store call,
// so the caller gets a fast 400 instead of an ambiguous partial insert.
func (p *Policy) CheckBatch(docs []gateway.Document) error {
	if len(docs) > p.maxBatch {
		return gateway.ErrBatchTooLarge
	}
	return nil
}
