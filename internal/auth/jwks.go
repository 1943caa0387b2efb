package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const jwksRefreshInterval = time.Hour

// jwksDoc is the JSON Web Key Set document served by the identity
// provider.
type jwksDoc struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// keySet caches RSA public keys fetched from a JWKS endpoint.
// Unknown key IDs trigger a refetch so key rotation does not require a
// restart.
type keySet struct {
	url        string
	httpClient *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Key returns the public key for a key ID, refreshing the set when the
// ID is unknown or the cache is stale.
func (ks *keySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if key, ok := ks.keys[kid]; ok && time.Since(ks.fetchedAt) < jwksRefreshInterval {
		return key, nil
	}
	if err := ks.fetchLocked(ctx); err != nil {
		// Serve a cached key if the refresh failed but we have one.
		if key, ok := ks.keys[kid]; ok {
			return key, nil
		}
		return nil, err
	}
	key, ok := ks.keys[kid]
	if !ok {
		return nil, fmt.Errorf("signing key %q not found in JWKS", kid)
	}
	return key, nil
}

func (ks *keySet) fetchLocked(ctx context.Context) error {
	var doc jwksDoc
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
			if err != nil {
				return fmt.Errorf("failed to build JWKS request: %w", err)
			}
			resp, err := ks.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch JWKS: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&doc)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("JWKS document contains no usable RSA keys")
	}

	ks.keys = keys
	ks.fetchedAt = time.Now()
	return nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
