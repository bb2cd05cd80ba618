// Package gateway defines domain types and interfaces for the Mukoko database
// gateway. This package has no project imports -- it is the dependency root.
package gateway

import (
	"context"
	"net/http"
)

// --- Actions ---

// Action identifies one of the supported database operations. The set is
// closed: dispatch switches over these constants exhaustively, so adding or
// removing an action is a compile-time-visible change.
type Action string

const (
	ActionFind       Action = "find"
	ActionFindOne    Action = "findOne"
	ActionCount      Action = "count"
	ActionAggregate  Action = "aggregate"
	ActionInsertOne  Action = "insertOne"
	ActionInsertMany Action = "insertMany"
	ActionUpdateOne  Action = "updateOne"
	ActionUpdateMany Action = "updateMany"
	ActionDeleteOne  Action = "deleteOne"
	ActionDeleteMany Action = "deleteMany"
)

// ParseAction maps a raw action string onto the closed Action set.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionFind, ActionFindOne, ActionCount, ActionAggregate,
		ActionInsertOne, ActionInsertMany, ActionUpdateOne, ActionUpdateMany,
		ActionDeleteOne, ActionDeleteMany:
		return a, nil
	default:
		return "", ErrUnknownAction
	}
}

// Reads reports whether the action only reads from the store. Read results
// are eligible for response caching; anything else invalidates it.
func (a Action) Reads() bool {
	switch a {
	case ActionFind, ActionFindOne, ActionCount, ActionAggregate:
		return true
	default:
		return false
	}
}

// --- Request / results ---

// Document is a schemaless store document as decoded from JSON.
type Document = map[string]any

// Request is a decoded operation descriptor. Action and Collection are always
// required; the remaining fields are action-specific and validated by the
// query service before any store call.
type Request struct {
	Action     string     `json:"action"`
	Collection string     `json:"collection"`
	Filter     Document   `json:"filter,omitempty"`
	Projection Document   `json:"projection,omitempty"`
	Sort       Document   `json:"sort,omitempty"`
	Skip       int64      `json:"skip,omitempty"`
	Limit      *int64     `json:"limit,omitempty"` // nil = server default, then clamped
	Pipeline   []Document `json:"pipeline,omitempty"`
	Document   Document   `json:"document,omitempty"`
	Documents  []Document `json:"documents,omitempty"`
	Update     Document   `json:"update,omitempty"`
	Upsert     bool       `json:"upsert,omitempty"`
}

// FindResult is the payload for find and aggregate.
type FindResult struct {
	Documents []Document `json:"documents"`
}

// FindOneResult carries at most one document; Document is null when no match.
type FindOneResult struct {
	Document Document `json:"document"`
}

// CountResult is the payload for count.
type CountResult struct {
	Total int64 `json:"total"`
}

// InsertOneResult carries the normalized identifier of the inserted document.
type InsertOneResult struct {
	InsertedID any `json:"insertedId"`
}

// InsertManyResult carries the normalized identifiers of a batch insert.
type InsertManyResult struct {
	InsertedIDs []any `json:"insertedIds"`
}

// UpdateResult is the payload for updateOne and updateMany. UpsertedID is
// only populated by updateOne with upsert set.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
	UpsertedID    any   `json:"upsertedId,omitempty"`
}

// DeleteResult is the payload for deleteOne and deleteMany.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// --- Identity / auth ---

// Identity is the authenticated caller context attached to request context.
type Identity struct {
	Subject    string `json:"subject"`
	AuthMethod string `json:"auth_method"` // "bearer"
}

// Authenticator validates request credentials and returns the caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// --- Context keys ---

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
// The Identity field is set later by the authenticate middleware via mutation
// of the same pointer, avoiding a second context.WithValue + Request.WithContext.
type requestMeta struct {
	RequestID string
	Identity  *Identity
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) *Identity {
	if m := metaFromContext(ctx); m != nil {
		return m.Identity
	}
	return nil
}

// ContextWithIdentity stores the identity in the existing requestMeta if
// present, avoiding a new context.WithValue allocation. Falls back to creating
// new metadata if none exists (e.g., in tests).
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	if m := metaFromContext(ctx); m != nil {
		m.Identity = id
		return ctx
	}
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{Identity: id})
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}
