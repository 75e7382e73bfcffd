// Package gateway implements the WebSocket ingress: connection
// authentication, the session table, and the correlation-ID response
// router.
package gateway

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// IdentityResolver resolves a bearer token to a user identity. A real
// deployment backs this with session/account storage; allowAnonymous
// covers connections with no resolvable identity.
type IdentityResolver func(token string) (userID string, ok bool)

// ExtractToken pulls a bearer token from the Authorization header or the
// ?token= query parameter, preferring the header.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	return r.URL.Query().Get("token")
}

// ResolveIdentity resolves token to a user ID via resolver; if resolver
// is nil or the token is empty and anonymous connections are allowed, a
// fresh anon-<short-id> identity is synthesized.
func ResolveIdentity(token string, resolver IdentityResolver, allowAnonymous bool) (userID string, ok bool) {
	if token != "" && resolver != nil {
		if userID, ok := resolver(token); ok {
			return userID, true
		}
	}
	if allowAnonymous {
		return "anon-" + uuid.NewString()[:8], true
	}
	return "", false
}
