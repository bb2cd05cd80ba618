package gateway

import "errors"

// Sentinel errors for the gateway domain. The transport layer maps these onto
// HTTP status codes and stable caller-facing messages; anything not in this
// list is treated as an internal store failure and never shown to the caller.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrMisconfigured        = errors.New("server misconfigured")
	ErrInvalidJSON          = errors.New("invalid json")
	ErrMissingFields        = errors.New("action and collection required")
	ErrUnknownAction        = errors.New("unknown action")
	ErrBatchTooLarge        = errors.New("batch too large")
	ErrFilterTooDeep        = errors.New("filter too deeply nested")
	ErrCollectionNotAllowed = errors.New("collection not allowed")
	ErrOperatorNotAllowed   = errors.New("query operator not allowed")
	ErrStageNotAllowed      = errors.New("aggregation stage not allowed")
	ErrStoreFailure         = errors.New("database operation failed")
)
