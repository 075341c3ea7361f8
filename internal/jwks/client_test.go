package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://id.example"
	testAudience = "channel-console"
)

func sign(t *testing.T, kid string, priv ed25519.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "alice",
		"name": "Alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyAgainstEndpoint(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		json.NewEncoder(w).Encode(JWKS{Keys: []JWK{NewJWK("k1", pub)}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	claims, err := c.Verify(ctx, sign(t, "k1", priv, validClaims()), testIssuer, testAudience)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "alice" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := c.Verify(ctx, sign(t, "k1", priv, validClaims()), testIssuer, testAudience); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("JWKS fetched %d times, want 1 (cached)", n)
	}
}

func TestVerifyFailures(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	_, other, _ := ed25519.GenerateKey(nil)
	c, err := NewStaticClient(NewJWK("k1", pub))
	if err != nil {
		t.Fatal(err)
	}

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAud := validClaims()
	wrongAud["aud"] = "someone-else"
	noSub := validClaims()
	delete(noSub, "sub")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not.a.jwt", ErrMalformed},
		{"no kid", sign(t, "", priv, validClaims()), ErrMalformed},
		{"unknown kid", sign(t, "k2", priv, validClaims()), ErrUnknownKey},
		{"expired", sign(t, "k1", priv, expired), ErrExpired},
		{"wrong audience", sign(t, "k1", priv, wrongAud), ErrInvalid},
		{"wrong key", sign(t, "k1", other, validClaims()), ErrInvalid},
		{"no subject", sign(t, "k1", priv, noSub), ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Verify(context.Background(), tt.token, testIssuer, testAudience)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJWKPublicKey(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	k := NewJWK("k1", pub)
	got, err := k.PublicKey()
	if err != nil || !got.Equal(pub) {
		t.Errorf("round trip = %v, %v", got, err)
	}
	k.Crv = "P-256"
	if _, err := k.PublicKey(); err == nil {
		t.Error("P-256 key accepted")
	}
}
