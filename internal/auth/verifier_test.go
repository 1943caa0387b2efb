package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/testutil"
)

const testKid = "test-key-1"

func newJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()

	doc := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKid,
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   "AQAB",
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, sub string, premium bool, expiry time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": sub,
		"exp": expiry.Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
		"public_metadata": map[string]any{
			"isPremium": premium,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid

	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestVerifier(t *testing.T, jwksURL string) Verifier {
	t.Helper()
	return NewVerifier(config.AuthCfg{
		Enabled: true,
		JWKSURL: jwksURL,
	}, testutil.NewTestLogger(t))
}

func TestJWKSVerifier_Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := newJWKSServer(t, &key.PublicKey)
	v := newTestVerifier(t, srv.URL)

	t.Run("valid premium token", func(t *testing.T) {
		tok := signToken(t, key, "user_123", true, time.Now().Add(time.Hour))
		id, err := v.Verify(context.Background(), tok)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.UserID != "user_123" || !id.Premium {
			t.Errorf("unexpected identity: %+v", id)
		}
	})

	t.Run("valid free token", func(t *testing.T) {
		tok := signToken(t, key, "user_456", false, time.Now().Add(time.Hour))
		id, err := v.Verify(context.Background(), tok)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.Premium {
			t.Error("free token reported as premium")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		tok := signToken(t, key, "user_123", true, time.Now().Add(-time.Hour))
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := v.Verify(context.Background(), "not.a.jwt"); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatal(err)
		}
		tok := signToken(t, other, "user_123", true, time.Now().Add(time.Hour))
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})
}

func TestNewVerifier_Disabled(t *testing.T) {
	v := NewVerifier(config.AuthCfg{Enabled: false}, testutil.NewTestLogger(t))
	if v.Enabled() {
		t.Fatal("expected verification to be disabled")
	}

	id, err := v.Verify(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !id.Premium || id.UserID != "" {
		t.Errorf("expected anonymous premium identity, got %+v", id)
	}
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc123")
		if got := TokenFromRequest(r); got != "abc123" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("query parameter", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?token=xyz789", nil)
		if got := TokenFromRequest(r); got != "xyz789" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		if got := TokenFromRequest(r); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})

	t.Run("no credentials", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if got := TokenFromRequest(r); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}
