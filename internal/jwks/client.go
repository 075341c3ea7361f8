// Package jwks verifies console bearer tokens against the Ed25519 keys
// published by an identity provider's JWKS endpoint.
package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures, matched with errors.Is.
var (
	ErrMalformed  = errors.New("malformed token")
	ErrExpired    = errors.New("token expired")
	ErrUnknownKey = errors.New("unknown signing key")
	ErrInvalid    = errors.New("invalid token")
)

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"` // Key type
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Public key use
	Alg string `json:"alg"` // Algorithm
	Crv string `json:"crv"` // Curve
	X   string `json:"x"`   // Public key
}

// PublicKey decodes an OKP/Ed25519 key.
func (k JWK) PublicKey() (ed25519.PublicKey, error) {
	if k.Kty != "OKP" || k.Crv != "Ed25519" || (k.Alg != "" && k.Alg != "EdDSA") {
		return nil, fmt.Errorf("unsupported key type or algorithm")
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(x) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes", len(x))
	}
	return ed25519.PublicKey(x), nil
}

// NewJWK encodes pub as a JWK with kid.
func NewJWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{Kty: "OKP", Kid: kid, Use: "sig", Alg: "EdDSA", Crv: "Ed25519", X: base64.RawURLEncoding.EncodeToString(pub)}
}

// Claims are the verified claims the console uses.
type Claims struct {
	Subject string
	Name    string
	Scope   string
}

// Client handles JWKS discovery and caching
type Client struct {
	jwksURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mutex     sync.Mutex
	keys      map[string]ed25519.PublicKey
	expiresAt time.Time
	lastFetch time.Time
}

// minRefetch bounds how often an unknown kid can trigger a fetch.
const minRefetch = 30 * time.Second

// NewClient creates a JWKS client for jwksURL. Keys are cached for 5 minutes.
func NewClient(jwksURL string) *Client {
	return &Client{
		jwksURL:    jwksURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        5 * time.Minute,
		now:        time.Now,
	}
}

// NewStaticClient creates a client that trusts a fixed key set and never fetches.
func NewStaticClient(keys ...JWK) (*Client, error) {
	c := &Client{now: time.Now, keys: make(map[string]ed25519.PublicKey)}
	for _, k := range keys {
		pub, err := k.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.Kid, err)
		}
		c.keys[k.Kid] = pub
	}
	c.expiresAt = time.Unix(1<<62, 0)
	return c, nil
}

// fetchJWKS fetches the key set from the identity provider
func (c *Client) fetchJWKS(ctx context.Context) (*JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}
	return &set, nil
}

// key returns the public key for kid, refreshing the cache when it expired
// or when kid is unknown and the last fetch is old enough.
func (c *Client) key(ctx context.Context, kid string) (ed25519.PublicKey, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	pub, ok := c.keys[kid]
	fresh := now.Before(c.expiresAt)
	if ok && fresh {
		return pub, nil
	}
	if c.jwksURL == "" || (fresh && now.Sub(c.lastFetch) < minRefetch) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}

	set, err := c.fetchJWKS(ctx)
	c.lastFetch = now
	if err != nil {
		if ok {
			// Serve the stale key while the provider is unreachable.
			return pub, nil
		}
		return nil, err
	}
	keys := make(map[string]ed25519.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if p, err := k.PublicKey(); err == nil {
			keys[k.Kid] = p
		}
	}
	c.keys = keys
	c.expiresAt = now.Add(c.ttl)

	if pub, ok := keys[kid]; ok {
		return pub, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
}

// Verify checks the signature, issuer, audience and expiry of a token and
// returns its claims. A subject is required.
func (c *Client) Verify(ctx context.Context, tokenString, issuer, audience string) (*Claims, error) {
	var keyErr error
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			keyErr = fmt.Errorf("%w: missing kid in JWT header", ErrMalformed)
			return nil, keyErr
		}
		pub, err := c.key(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return pub, nil
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
	case keyErr != nil:
		return nil, keyErr
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalid)
	}
	out := &Claims{Subject: sub}
	out.Name, _ = claims["name"].(string)
	out.Scope, _ = claims["scope"].(string)
	return out, nil
}
