// Package auth verifies bearer tokens issued by an external identity
// provider and resolves them to a caller identity.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated indicates a missing, malformed, or unverifiable
// token.
var ErrUnauthenticated = errors.New("authentication required")

// ErrPremiumRequired indicates an operation gated to premium accounts.
var ErrPremiumRequired = errors.New("premium subscription required")

// ErrForbidden indicates a caller acting on another user's resource.
var ErrForbidden = errors.New("access denied")

// Identity is a verified caller.
type Identity struct {
	UserID  string
	Premium bool
}

// Anonymous is the identity used when verification is disabled. It is
// premium so that a standalone deployment has no tier gating.
var Anonymous = Identity{Premium: true}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	// Verify checks the token and returns the caller identity.
	// An empty token is ErrUnauthenticated.
	Verify(ctx context.Context, token string) (Identity, error)

	// Enabled reports whether verification is active. When false,
	// Verify returns Anonymous for any token.
	Enabled() bool
}

// Disabled is a Verifier that accepts everything as Anonymous.
type Disabled struct{}

func (Disabled) Verify(ctx context.Context, token string) (Identity, error) {
	return Anonymous, nil
}

func (Disabled) Enabled() bool { return false }

// TokenFromRequest pulls the bearer token from a request: the
// Authorization header normally, or the token query parameter for
// EventSource clients that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
