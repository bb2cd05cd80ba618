package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
)

// handleQuery decodes an operation descriptor and hands it to the query
// service. Authentication has already happened in middleware; everything else
// (field validation, policy, dispatch) lives in the service so it is testable
// without HTTP.
func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gateway.ErrInvalidJSON)
		return
	}

	// Cheap peek at action/collection for the audit trail, valid even when
	// the body fails to decode below.
	slog.LogAttrs(r.Context(), slog.LevelDebug, "query received",
		slog.String("action", gjson.GetBytes(body, "action").String()),
		slog.String("collection", gjson.GetBytes(body, "collection").String()),
		slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
	)

	var req gateway.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, gateway.ErrInvalidJSON)
		return
	}

	result, err := s.deps.Query.Execute(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse("Method not allowed"))
}

// apiError is the caller-facing error shape: a flat, machine-stable message.
type apiError struct {
	Error string `json:"error"`
}

func errorResponse(msg string) apiError {
	return apiError{Error: msg}
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrCollectionNotAllowed),
		errors.Is(err, gateway.ErrOperatorNotAllowed),
		errors.Is(err, gateway.ErrStageNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrInvalidJSON),
		errors.Is(err, gateway.ErrMissingFields),
		errors.Is(err, gateway.ErrUnknownAction),
		errors.Is(err, gateway.ErrBatchTooLarge),
		errors.Is(err, gateway.ErrFilterTooDeep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage maps domain errors onto stable caller-facing messages. Anything
// unrecognized gets the generic store-failure message so internal detail never
// leaks; the detail has already been logged where the error arose.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, gateway.ErrMisconfigured):
		return "Server misconfigured"
	case errors.Is(err, gateway.ErrInvalidJSON):
		return "Invalid JSON"
	case errors.Is(err, gateway.ErrMissingFields):
		return "action and collection required"
	case errors.Is(err, gateway.ErrUnknownAction):
		return "Unknown action"
	case errors.Is(err, gateway.ErrBatchTooLarge):
		return "Batch too large"
	case errors.Is(err, gateway.ErrFilterTooDeep):
		return "Filter too deeply nested"
	case errors.Is(err, gateway.ErrCollectionNotAllowed):
		return "Collection not allowed"
	case errors.Is(err, gateway.ErrOperatorNotAllowed):
		return "Query operator not allowed"
	case errors.Is(err, gateway.ErrStageNotAllowed):
		return "Aggregation stage not allowed"
	default:
		return "Database operation failed"
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorResponse(errorMessage(err)))
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
