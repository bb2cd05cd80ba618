// Package auth implements shared-secret bearer authentication for the
// database gateway. The caller is a single trusted worker, so auth is a
// constant-time comparison against one configured secret rather than a key
// store lookup.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
)

// SharedSecretAuth authenticates requests against a single configured secret.
// When no secret is configured the gateway fails closed: every request is
// rejected as a server misconfiguration instead of being let through.
type SharedSecretAuth struct {
	secret string
}

// New returns a SharedSecretAuth holding the configured secret, which may be
// empty (fail-closed mode).
func New(secret string) *SharedSecretAuth {
	return &SharedSecretAuth{secret: secret}
}

// Authenticate extracts a Bearer token from the Authorization header and
// compares it against the configured secret in constant time.
func (a *SharedSecretAuth) Authenticate(_ context.Context, r *http.Request) (*gateway.Identity, error) {
	if a.secret == "" {
		return nil, gateway.ErrMisconfigured
	}

	header := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return nil, gateway.ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(raw), []byte(a.secret)) != 1 {
		return nil, gateway.ErrUnauthorized
	}

	return &gateway.Identity{Subject: "worker", AuthMethod: "bearer"}, nil
}
