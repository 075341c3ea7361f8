// Package integration tests the console against a JWKS endpoint and an
// engine API served over HTTP.
package integration

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relaycore/channel-console/conformance"
	"github.com/relaycore/channel-console/internal/journal"
	"github.com/relaycore/channel-console/internal/jwks"
	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/server"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/workflow"
	"github.com/relaycore/channel-console/internal/workspace"
)

const (
	issuer   = "https://auth.example.test"
	audience = "channel-console"
)

// createTestJWT signs a token with priv under keyID.
func createTestJWT(t *testing.T, priv ed25519.PrivateKey, keyID string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if keyID != "" {
		token.Header["kid"] = keyID
	}
	s, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("failed to sign JWT: %v", err)
	}
	return s
}

func validClaims(subject string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": issuer,
		"aud": audience,
		"sub": subject,
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"iat": float64(time.Now().Unix()),
	}
}

// TestJWTValidation checks console authentication against keys served by a
// JWKS endpoint.
func TestJWTValidation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	_, stranger, _ := ed25519.GenerateKey(rand.Reader)

	var fetches int32
	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks.JWKS{Keys: []jwks.JWK{jwks.NewJWK("key-1", pub)}})
	}))
	defer jwksSrv.Close()

	fake := conformance.NewFakeEngine()
	engineSrv := httptest.NewServer(fake.Handler())
	defer engineSrv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := mirth.New(engineSrv.URL+"/api", mirth.Options{Timeout: 5 * time.Second})
	store := storage.NewMemory()
	j := journal.New(store, nil, journal.WithLogger(logger))
	mux := server.NewMux(server.Deps{
		Engine:      engine,
		Workspaces:  workspace.NewManager(workflow.NewRunner(engine, workflow.WithLogger(logger)), engine, j.Hooks(), logger),
		Journal:     j,
		Store:       store,
		Verifier:    jwks.NewClient(jwksSrv.URL),
		Logger:      logger,
		JWTIssuer:   issuer,
		JWTAudience: audience,
	})

	call := func(t *testing.T, token string) (int, string) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/v1/workspace", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		var env struct {
			Data  json.RawMessage `json:"data"`
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		return rr.Code, env.Error.Code
	}

	t.Run("ValidJWT", func(t *testing.T) {
		status, code := call(t, createTestJWT(t, priv, "key-1", validClaims("alice")))
		if status != http.StatusOK {
			t.Errorf("status = %d (%s), want 200", status, code)
		}
	})

	tests := []struct {
		name   string
		token  func(t *testing.T) string
		status int
		code   string
	}{
		{"InvalidIssuer", func(t *testing.T) string {
			c := validClaims("alice")
			c["iss"] = "https://other.example.test"
			return createTestJWT(t, priv, "key-1", c)
		}, http.StatusUnauthorized, "CC_JWT_INVALID"},
		{"InvalidAudience", func(t *testing.T) string {
			c := validClaims("alice")
			c["aud"] = "someone-else"
			return createTestJWT(t, priv, "key-1", c)
		}, http.StatusUnauthorized, "CC_JWT_INVALID"},
		{"Expired", func(t *testing.T) string {
			c := validClaims("alice")
			c["exp"] = float64(time.Now().Add(-time.Minute).Unix())
			return createTestJWT(t, priv, "key-1", c)
		}, http.StatusUnauthorized, "CC_JWT_EXPIRED"},
		{"MissingKid", func(t *testing.T) string {
			return createTestJWT(t, priv, "", validClaims("alice"))
		}, http.StatusUnauthorized, "CC_JWT_MALFORMED"},
		{"WrongSignature", func(t *testing.T) string {
			return createTestJWT(t, stranger, "key-1", validClaims("alice"))
		}, http.StatusUnauthorized, "CC_JWT_INVALID"},
		{"MissingSubject", func(t *testing.T) string {
			c := validClaims("")
			delete(c, "sub")
			return createTestJWT(t, priv, "key-1", c)
		}, http.StatusUnauthorized, "CC_JWT_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := call(t, tt.token(t))
			if status != tt.status || code != tt.code {
				t.Errorf("got %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}

	t.Run("UnknownKidIsThrottled", func(t *testing.T) {
		before := atomic.LoadInt32(&fetches)
		for i := 0; i < 3; i++ {
			status, code := call(t, createTestJWT(t, priv, "key-2", validClaims("alice")))
			if status != http.StatusUnauthorized || code != "CC_JWT_INVALID" {
				t.Errorf("unknown kid = %d %s", status, code)
			}
		}
		if got := atomic.LoadInt32(&fetches); got != before {
			t.Errorf("JWKS fetched %d more times for an unknown kid", got-before)
		}
	})
}
