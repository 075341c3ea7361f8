// Package conformance provides a test harness that runs the console API
// against an in-memory engine and checks its observable behavior end to end.
package conformance

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relaycore/channel-console/internal/event"
	"github.com/relaycore/channel-console/internal/journal"
	"github.com/relaycore/channel-console/internal/jwks"
	"github.com/relaycore/channel-console/internal/metrics"
	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/schema"
	"github.com/relaycore/channel-console/internal/server"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/workflow"
	"github.com/relaycore/channel-console/internal/workspace"
)

const keyID = "conformance"

// Harness runs a console server against a FakeEngine.
type Harness struct {
	Engine *FakeEngine

	engineSrv *httptest.Server
	server    *httptest.Server
	store     storage.Store
	pub       event.Publisher
	priv      ed25519.PrivateKey
	cfg       Config
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// DatabaseDSN selects PostgreSQL storage; memory storage when empty
	DatabaseDSN string

	// NATSURL enables JetStream events; no-op publisher when empty
	NATSURL string

	// JWTIssuer is the expected JWT issuer
	JWTIssuer string

	// JWTAudience is the expected JWT audience
	JWTAudience string
}

// NewHarness starts the fake engine and the console server.
func NewHarness(cfg Config) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var store storage.Store
	if cfg.DatabaseDSN != "" {
		var err error
		store, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to test database: %w", err)
		}
	} else {
		store = storage.NewMemory()
	}
	pub := event.NewPublisher(cfg.NATSURL, logger)

	pubKey, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	verifier, err := jwks.NewStaticClient(jwks.NewJWK(keyID, pubKey))
	if err != nil {
		return nil, err
	}

	validator, err := schema.NewValidator(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}

	fake := NewFakeEngine()
	engineSrv := httptest.NewServer(fake.Handler())
	engine := mirth.New(engineSrv.URL+"/api", mirth.Options{Timeout: 5 * time.Second})

	m := metrics.NewMetrics()
	j := journal.New(store, pub, journal.WithObserver(m), journal.WithLogger(logger))
	runner := workflow.NewRunner(engine, workflow.WithValidator(validator), workflow.WithLogger(logger))
	mux := server.NewMux(server.Deps{
		Engine:      engine,
		Workspaces:  workspace.NewManager(runner, engine, j.Hooks(), logger),
		Journal:     j,
		Store:       store,
		Verifier:    verifier,
		Validator:   validator,
		Metrics:     m,
		Logger:      logger,
		JWTIssuer:   cfg.JWTIssuer,
		JWTAudience: cfg.JWTAudience,
	})

	return &Harness{
		Engine:    fake,
		engineSrv: engineSrv,
		server:    httptest.NewServer(mux),
		store:     store,
		pub:       pub,
		priv:      priv,
		cfg:       cfg,
	}, nil
}

// URL returns the base URL of the console server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down both servers and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.engineSrv.Close()
	h.pub.Close()
	h.store.Close()
}

// Token mints a console token for subject.
func (h *Harness) Token(subject string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss": h.cfg.JWTIssuer,
		"aud": h.cfg.JWTAudience,
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = keyID
	return tok.SignedString(h.priv)
}

// Response is a decoded console response.
type Response struct {
	Status int
	Data   json.RawMessage
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
}

// Do sends an authenticated request as subject.
func (h *Harness) Do(t *testing.T, subject, method, path string, body interface{}) Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.URL()+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "" {
		token, err := h.Token(subject)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := Response{Status: resp.StatusCode}
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: undecodable response: %v", method, path, err)
	}
	out.Data = env.Data
	if len(env.Error) > 0 {
		_ = json.Unmarshal(env.Error, &out.Error)
	}
	return out
}

func decodeWorkspace(t *testing.T, r Response) workspace.Snapshot {
	t.Helper()
	var s workspace.Snapshot
	if err := json.Unmarshal(r.Data, &s); err != nil {
		t.Fatalf("not a workspace: %v (%s)", err, r.Data)
	}
	return s
}

// RunConformanceTests runs all conformance tests against the console.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("Authentication", h.testAuthentication)
	t.Run("ChannelEditing", h.testChannelEditing)
	t.Run("SchemaValidation", h.testSchemaValidation)
	t.Run("Pagination", h.testPagination)
	t.Run("EngineOperations", h.testEngineOperations)
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(h.URL() + path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

// testAuthentication checks that every /v1 route requires a token.
func (h *Harness) testAuthentication(t *testing.T) {
	endpoints := []struct{ method, path string }{
		{http.MethodGet, "/v1/channels"},
		{http.MethodGet, "/v1/workspace"},
		{http.MethodPost, "/v1/workspace/save"},
		{http.MethodGet, "/v1/events"},
		{http.MethodGet, "/v1/global-scripts"},
	}
	for _, e := range endpoints {
		r := h.Do(t, "", e.method, e.path, nil)
		if r.Status != http.StatusUnauthorized || r.Error.Code != "CC_AUTHN" {
			t.Errorf("%s %s without token = %d %s", e.method, e.path, r.Status, r.Error.Code)
		}
	}
}

// testChannelEditing creates a channel, edits and saves it, and checks that
// the engine, the list and the snapshot history agree.
func (h *Harness) testChannelEditing(t *testing.T) {
	const subject = "editor"
	r := h.Do(t, subject, http.MethodPost, "/v1/channels", map[string]string{"name": "ADT Inbound"})
	if r.Status != http.StatusCreated {
		t.Fatalf("create = %d %s", r.Status, r.Error.Message)
	}
	created := decodeWorkspace(t, r)
	id := created.Channel.ID
	if h.Engine.Channel(id) == nil {
		t.Fatalf("engine has no channel %s", id)
	}

	r = h.Do(t, subject, http.MethodPost, "/v1/workspace/actions", map[string]interface{}{
		"type": "channel.description", "value": "admissions feed",
	})
	if r.Status != http.StatusOK {
		t.Fatalf("edit = %d %s", r.Status, r.Error.Message)
	}

	r = h.Do(t, subject, http.MethodPost, "/v1/workspace/save", nil)
	if r.Status != http.StatusOK {
		t.Fatalf("save = %d %s", r.Status, r.Error.Message)
	}
	saved := decodeWorkspace(t, r)
	if saved.Dirty || saved.Channel.Description != "admissions feed" {
		t.Errorf("saved workspace dirty=%v description=%q", saved.Dirty, saved.Channel.Description)
	}
	if got := h.Engine.Channel(id); got.Description != "admissions feed" || got.Revision != saved.Channel.Revision {
		t.Errorf("engine copy = %q rev %d, workspace rev %d", got.Description, got.Revision, saved.Channel.Revision)
	}

	r = h.Do(t, subject, http.MethodPost, "/v1/channels/refresh", nil)
	var list struct {
		Channels []model.ChannelSummary `json:"channels"`
	}
	if err := json.Unmarshal(r.Data, &list); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range list.Channels {
		if c.ID == id {
			found = true
			if c.State != workflow.DefaultState || c.Statistics.Received != 10 {
				t.Errorf("summary = %+v", c)
			}
		}
	}
	if !found {
		t.Errorf("channel %s missing from list", id)
	}

	r = h.Do(t, subject, http.MethodGet, "/v1/channels/"+id+"/snapshots", nil)
	var page storage.SnapshotPage
	if err := json.Unmarshal(r.Data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Snapshots) != 1 || page.Snapshots[0].Subject != subject {
		t.Errorf("snapshots = %+v", page.Snapshots)
	}

	// Another subject's workspace is untouched.
	r = h.Do(t, "viewer", http.MethodGet, "/v1/workspace", nil)
	if other := decodeWorkspace(t, r); other.Channel != nil {
		t.Errorf("viewer workspace holds %s", other.Channel.ID)
	}
}

// testSchemaValidation checks that structurally invalid documents never reach the engine.
func (h *Harness) testSchemaValidation(t *testing.T) {
	const subject = "validator"
	r := h.Do(t, subject, http.MethodPost, "/v1/channels", map[string]string{"name": "Schema Check"})
	if r.Status != http.StatusCreated {
		t.Fatalf("create = %d %s", r.Status, r.Error.Message)
	}
	id := decodeWorkspace(t, r).Channel.ID
	before := h.Engine.Channel(id).Revision

	r = h.Do(t, subject, http.MethodPost, "/v1/workspace/actions", map[string]interface{}{
		"type": "channel.messageStorageMode", "value": "EVERYTHING",
	})
	if r.Status != http.StatusOK {
		t.Fatalf("edit = %d %s", r.Status, r.Error.Message)
	}
	r = h.Do(t, subject, http.MethodPost, "/v1/workspace/save", nil)
	if r.Status != http.StatusBadRequest || r.Error.Code != "CC_SCHEMA_REJECT" {
		t.Errorf("save invalid = %d %s", r.Status, r.Error.Code)
	}
	if got := h.Engine.Channel(id).Revision; got != before {
		t.Errorf("engine revision moved from %d to %d", before, got)
	}
}

// testPagination saves one channel repeatedly and walks the snapshots.
func (h *Harness) testPagination(t *testing.T) {
	const subject = "pager"
	r := h.Do(t, subject, http.MethodPost, "/v1/channels", map[string]string{"name": "Paged"})
	if r.Status != http.StatusCreated {
		t.Fatalf("create = %d %s", r.Status, r.Error.Message)
	}
	id := decodeWorkspace(t, r).Channel.ID
	for i := 0; i < 3; i++ {
		if r := h.Do(t, subject, http.MethodPost, "/v1/workspace/save", nil); r.Status != http.StatusOK {
			t.Fatalf("save %d = %d %s", i, r.Status, r.Error.Message)
		}
	}

	var revisions []int64
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		path := "/v1/channels/" + id + "/snapshots?limit=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		r := h.Do(t, subject, http.MethodGet, path, nil)
		var page storage.SnapshotPage
		if err := json.Unmarshal(r.Data, &page); err != nil {
			t.Fatal(err)
		}
		for _, s := range page.Snapshots {
			revisions = append(revisions, s.Revision)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(revisions) != 3 || revisions[0] <= revisions[2] {
		t.Errorf("revisions = %v, want three newest first", revisions)
	}
}

// testEngineOperations drives lifecycle actions and reads them back as events.
func (h *Harness) testEngineOperations(t *testing.T) {
	const subject = "operator"
	r := h.Do(t, subject, http.MethodPost, "/v1/channels", map[string]string{"name": "Lifecycle"})
	if r.Status != http.StatusCreated {
		t.Fatalf("create = %d %s", r.Status, r.Error.Message)
	}
	id := decodeWorkspace(t, r).Channel.ID

	for _, action := range []string{"deploy", "pause", "resume"} {
		if r := h.Do(t, subject, http.MethodPost, "/v1/channels/"+id+"/"+action, nil); r.Status != http.StatusOK {
			t.Errorf("%s = %d %s", action, r.Status, r.Error.Message)
		}
	}
	if got := h.Engine.State(id); got != "STARTED" {
		t.Errorf("engine state = %s", got)
	}

	r = h.Do(t, subject, http.MethodGet, "/v1/events?name=Channel", nil)
	var rows []struct {
		Name      string `json:"name"`
		ChannelID string `json:"channelId"`
	}
	if err := json.Unmarshal(r.Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) < 3 || rows[0].Name != "Channel resume" || rows[0].ChannelID != id {
		t.Errorf("events = %+v", rows)
	}

	r = h.Do(t, subject, http.MethodPost, "/v1/channels/missing/start", nil)
	if r.Status != http.StatusNotFound {
		t.Errorf("start missing channel = %d %s", r.Status, r.Error.Code)
	}
}
