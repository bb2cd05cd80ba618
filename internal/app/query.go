// Package app implements the gateway's operation pipeline: validation, policy
// enforcement, dispatch to the store, and result shaping.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/cache"
	"github.com/nyuchitech/mukoko-db-gateway/internal/policy"
	"github.com/nyuchitech/mukoko-db-gateway/internal/storage"
	"github.com/nyuchitech/mukoko-db-gateway/internal/telemetry"
)

// QueryService validates requests against policy and executes them against
// the store. It is stateless apart from the shared store handle and the
// optional read-result cache.
type QueryService struct {
	store   storage.Store
	policy  *policy.Policy
	cache   *cache.ResultCache // nil = no caching
	metrics *telemetry.Metrics // nil = no metrics
	tracer  trace.Tracer
}

// NewQueryService wires a QueryService. cache and metrics may be nil.
func NewQueryService(store storage.Store, pol *policy.Policy, rc *cache.ResultCache, m *telemetry.Metrics) *QueryService {
	return &QueryService{
		store:   store,
		policy:  pol,
		cache:   rc,
		metrics: m,
		tracer:  telemetry.Tracer("app"),
	}
}

// Execute runs one validated-and-policied operation. The returned value is
// the action's result payload, ready for JSON encoding. Every policy check
// happens before any store I/O: a rejected request never reaches the store.
func (s *QueryService) Execute(ctx context.Context, req *gateway.Request) (any, error) {
	if req.Action == "" || req.Collection == "" {
		return nil, gateway.ErrMissingFields
	}

	action, err := gateway.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}

	if err := s.checkPolicy(ctx, action, req); err != nil {
		return nil, err
	}

	if action.Reads() && s.cache != nil {
		if payload, ok := s.cache.Get(req.Collection, cacheKey(req)); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return json.RawMessage(payload), nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	result, err := s.dispatch(ctx, action, req)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "store operation failed",
			slog.String("action", req.Action),
			slog.String("collection", req.Collection),
			slog.String("error", err.Error()),
			slog.String("request_id", gateway.RequestIDFromContext(ctx)),
		)
		if s.metrics != nil {
			s.metrics.StoreOpErrors.WithLabelValues(req.Action, req.Collection).Inc()
		}
		// Internal store detail stays in the logs; the caller gets the
		// generic failure.
		return nil, gateway.ErrStoreFailure
	}

	if s.cache != nil {
		if action.Reads() {
			if payload, err := json.Marshal(result); err == nil {
				s.cache.Set(req.Collection, cacheKey(req), payload)
			}
		} else {
			s.cache.Invalidate(req.Collection)
		}
	}

	return result, nil
}

// checkPolicy runs the collection, filter, pipeline, and batch checks.
// Violations are logged with the offending detail for audit; the caller-facing
// message stays generic.
func (s *QueryService) checkPolicy(ctx context.Context, action gateway.Action, req *gateway.Request) error {
	err := s.policy.CheckCollection(req.Collection)
	if err == nil {
		err = s.policy.CheckFilter(req.Filter)
	}
	if err == nil && action == gateway.ActionAggregate {
		err = s.policy.CheckPipeline(req.Pipeline)
	}
	if err == nil && action == gateway.ActionInsertMany {
		err = s.policy.CheckBatch(req.Documents)
	}
	if err == nil {
		return nil
	}

	slog.LogAttrs(ctx, slog.LevelWarn, "policy violation",
		slog.String("action", req.Action),
		slog.String("collection", req.Collection),
		slog.String("violation", err.Error()),
		slog.String("request_id", gateway.RequestIDFromContext(ctx)),
	)
	if s.metrics != nil {
		s.metrics.PolicyRejections.WithLabelValues(rejectionReason(err)).Inc()
	}
	return err
}

// dispatch maps the action onto exactly one store operation. The switch is
// exhaustive over the closed Action set; ParseAction has already rejected
// anything else.
func (s *QueryService) dispatch(ctx context.Context, action gateway.Action, req *gateway.Request) (any, error) {
	ctx, span := s.tracer.Start(ctx, "store."+string(action),
		trace.WithAttributes(
			attribute.String("db.collection", req.Collection),
			attribute.String("db.action", string(action)),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.StoreOpDuration.WithLabelValues(string(action), req.Collection).
				Observe(time.Since(start).Seconds())
		}
	}()

	switch action {
	case gateway.ActionFind:
		docs, err := s.store.Find(ctx, req.Collection, req.Filter, storage.FindOptions{
			Projection: req.Projection,
			Sort:       req.Sort,
			Skip:       max(req.Skip, 0),
			Limit:      s.policy.ClampLimit(req.Limit),
		})
		if err != nil {
			return nil, err
		}
		return gateway.FindResult{Documents: docs}, nil

	case gateway.ActionFindOne:
		doc, err := s.store.FindOne(ctx, req.Collection, req.Filter, req.Projection)
		if err != nil {
			return nil, err
		}
		return gateway.FindOneResult{Document: doc}, nil

	case gateway.ActionCount:
		total, err := s.store.Count(ctx, req.Collection, req.Filter)
		if err != nil {
			return nil, err
		}
		return gateway.CountResult{Total: total}, nil

	case gateway.ActionAggregate:
		docs, err := s.store.Aggregate(ctx, req.Collection, req.Pipeline)
		if err != nil {
			return nil, err
		}
		return gateway.FindResult{Documents: docs}, nil

	case gateway.ActionInsertOne:
		id, err := s.store.InsertOne(ctx, req.Collection, req.Document)
		if err != nil {
			return nil, err
		}
		return gateway.InsertOneResult{InsertedID: id}, nil

	case gateway.ActionInsertMany:
		ids, err := s.store.InsertMany(ctx, req.Collection, req.Documents)
		if err != nil {
			return nil, err
		}
		return gateway.InsertManyResult{InsertedIDs: ids}, nil

	case gateway.ActionUpdateOne:
		res, err := s.store.UpdateOne(ctx, req.Collection, req.Filter, req.Update, req.Upsert)
		if err != nil {
			return nil, err
		}
		return *res, nil

	case gateway.ActionUpdateMany:
		res, err := s.store.UpdateMany(ctx, req.Collection, req.Filter, req.Update)
		if err != nil {
			return nil, err
		}
		return *res, nil

	case gateway.ActionDeleteOne:
		n, err := s.store.DeleteOne(ctx, req.Collection, req.Filter)
		if err != nil {
			return nil, err
		}
		return gateway.DeleteResult{DeletedCount: n}, nil

	case gateway.ActionDeleteMany:
		n, err := s.store.DeleteMany(ctx, req.Collection, req.Filter)
		if err != nil {
			return nil, err
		}
		return gateway.DeleteResult{DeletedCount: n}, nil

	default:
		return nil, gateway.ErrUnknownAction
	}
}

// cacheKey produces a deterministic SHA-256 hash for a read request.
// encoding/json sorts map keys, so structurally identical requests hash
// identically.
func cacheKey(req *gateway.Request) string {
	b, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, gateway.ErrCollectionNotAllowed):
		return "collection"
	case errors.Is(err, gateway.ErrOperatorNotAllowed):
		return "operator"
	case errors.Is(err, gateway.ErrStageNotAllowed):
		return "stage"
	case errors.Is(err, gateway.ErrBatchTooLarge):
		return "batch"
	case errors.Is(err, gateway.ErrFilterTooDeep):
		return "depth"
	default:
		return "other"
	}
}
