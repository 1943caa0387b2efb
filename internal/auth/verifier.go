package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jackzampolin/narrio/internal/config"
)

// sessionClaims are the token claims we care about. The premium flag
// rides in the provider's public metadata.
type sessionClaims struct {
	jwt.RegisteredClaims
	PublicMetadata struct {
		IsPremium bool `json:"isPremium"`
	} `json:"public_metadata"`
}

// JWKSVerifier verifies RS256 tokens against a JWKS endpoint.
type JWKSVerifier struct {
	keys     *keySet
	issuer   string
	audience string
	logger   *slog.Logger
}

// NewVerifier builds a Verifier from auth configuration. Disabled or
// unconfigured auth yields the accept-all verifier.
func NewVerifier(cfg config.AuthCfg, logger *slog.Logger) Verifier {
	if !cfg.Enabled || cfg.JWKSURL == "" {
		return Disabled{}
	}
	return &JWKSVerifier{
		keys:     newKeySet(cfg.JWKSURL),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger,
	}
}

func (v *JWKSVerifier) Enabled() bool { return true }

// Verify parses and validates a bearer token, returning the caller
// identity.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no key ID")
		}
		return v.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		v.logger.Debug("token verification failed", "error", err)
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID:  claims.Subject,
		Premium: claims.PublicMetadata.IsPremium,
	}, nil
}
