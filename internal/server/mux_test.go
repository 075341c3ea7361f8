package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	errordefs "github.com/relaycore/channel-console/internal/errors"
	"github.com/relaycore/channel-console/internal/journal"
	"github.com/relaycore/channel-console/internal/jwks"
	"github.com/relaycore/channel-console/internal/metrics"
	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/workflow"
	"github.com/relaycore/channel-console/internal/workspace"
)

const (
	testIssuer   = "https://auth.test"
	testAudience = "channel-console"
)

// stubEngine keeps channels in memory and records lifecycle calls.
type stubEngine struct {
	mu       sync.Mutex
	channels map[string]*model.Channel
	actions  []string
	scripts  *model.GlobalScripts
	cleared  []string

	// listGate, when set, holds every ListChannels call until it is closed.
	listGate  chan struct{}
	listCalls atomic.Int32
}

func newStubEngine(chs ...*model.Channel) *stubEngine {
	e := &stubEngine{channels: map[string]*model.Channel{}}
	for _, c := range chs {
		e.channels[c.ID] = c
	}
	return e
}

func (e *stubEngine) ListChannels(ctx context.Context) ([]model.ChannelListItem, error) {
	e.listCalls.Add(1)
	if e.listGate != nil {
		select {
		case <-e.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ChannelListItem, 0, len(e.channels))
	for _, c := range e.channels {
		out = append(out, model.ChannelListItem{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

func (e *stubEngine) Statistics(context.Context) ([]model.ChannelStatistics, error) {
	return nil, nil
}

func (e *stubEngine) Statuses(context.Context) ([]model.DashboardStatus, error) {
	return nil, nil
}

func (e *stubEngine) GetChannel(_ context.Context, id string) (*model.Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.channels[id]
	if !ok {
		return nil, mirth.ErrNotFound
	}
	return c, nil
}

func (e *stubEngine) CreateChannel(_ context.Context, c *model.Channel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[c.ID] = c
	return nil
}

func (e *stubEngine) UpdateChannel(_ context.Context, c *model.Channel, _ time.Time) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stored := *c
	stored.Revision++
	e.channels[c.ID] = &stored
	return json.RawMessage(`{"boolean":true}`), nil
}

func (e *stubEngine) PortsInUse(context.Context) ([]model.Port, error) { return nil, nil }

func (e *stubEngine) Events(context.Context, string) ([]model.Event, error) {
	return nil, errors.New("engine down")
}

func (e *stubEngine) GlobalScripts(context.Context) (*model.GlobalScripts, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scripts, nil
}

func (e *stubEngine) SetGlobalScripts(_ context.Context, g *model.GlobalScripts) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = g
	return nil
}

func (e *stubEngine) Lifecycle(_ context.Context, id string, a mirth.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, string(a)+":"+id)
	return nil
}

func (e *stubEngine) Deploy(ctx context.Context, id string, _ mirth.DeployOptions) error {
	return e.Lifecycle(ctx, id, mirth.ActionDeploy)
}

func (e *stubEngine) ClearStatistics(_ context.Context, ids []string, _ mirth.ClearOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleared = append(e.cleared, ids...)
	return nil
}

func (e *stubEngine) ConnectorNames(context.Context, string) ([]model.ConnectorName, error) {
	return nil, nil
}

type fixture struct {
	handler http.Handler
	engine  *stubEngine
	priv    ed25519.PrivateKey
}

func newFixture(t *testing.T, chs ...*model.Channel) *fixture {
	t.Helper()
	return newFixtureWithEngine(t, newStubEngine(chs...), 0)
}

func newFixtureWithEngine(t *testing.T, engine *stubEngine, streamRefresh time.Duration) *fixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := jwks.NewStaticClient(jwks.NewJWK("test-key", pub))
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemory()
	j := journal.New(store, nil, journal.WithLogger(logger))
	runner := workflow.NewRunner(engine, workflow.WithLogger(logger))
	mgr := workspace.NewManager(runner, engine, j.Hooks(), logger)

	h := NewMux(Deps{
		Engine:             engine,
		Workspaces:         mgr,
		Journal:            j,
		Store:              store,
		Verifier:           verifier,
		Metrics:            metrics.NewMetrics(),
		Logger:             logger,
		JWTIssuer:          testIssuer,
		JWTAudience:        testAudience,
		CORSAllowedOrigins: []string{"https://console.test"},
		StreamRefresh:      streamRefresh,
	})
	return &fixture{handler: h, engine: engine, priv: priv}
}

func (f *fixture) token(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	})
	tok.Header["kid"] = "test-key"
	s, err := tok.SignedString(f.priv)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// do sends an authenticated request as alice and decodes the envelope.
func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, map[string]json.RawMessage) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+f.token(t, "alice", time.Hour))
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	var env map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: body %q is not JSON", method, path, rr.Body.String())
	}
	return rr.Code, env
}

func errorCode(t *testing.T, env map[string]json.RawMessage) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env["error"], &e); err != nil {
		t.Fatalf("no error in %v", env)
	}
	return e.Code
}

func workspaceOf(t *testing.T, env map[string]json.RawMessage) workspace.Snapshot {
	t.Helper()
	var s workspace.Snapshot
	if err := json.Unmarshal(env["data"], &s); err != nil {
		t.Fatalf("data is not a workspace: %v", err)
	}
	return s
}

func TestHealthzEndpoint(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("readyz = %d", rr.Code)
	}
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "CC_AUTHN"},
		{"not bearer", "Basic abc", "CC_AUTHN"},
		{"malformed", "Bearer not-a-jwt", "CC_JWT_MALFORMED"},
		{"expired", "Bearer " + f.token(t, "alice", -time.Minute), "CC_JWT_EXPIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/workspace", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set("X-Correlation-Id", "corr-1")
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
			var env map[string]json.RawMessage
			_ = json.Unmarshal(rr.Body.Bytes(), &env)
			if got := errorCode(t, env); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
			if !strings.Contains(string(env["error"]), "corr-1") {
				t.Errorf("correlation id missing from %s", env["error"])
			}
		})
	}
}

func TestEditAndSaveChannel(t *testing.T) {
	lab := model.NewChannel("Lab")
	f := newFixture(t, lab)

	code, env := f.do(t, http.MethodPost, "/v1/workspace/actions", map[string]interface{}{"type": "channel.name", "value": "x"})
	if code != http.StatusConflict || errorCode(t, env) != "CC_NO_DOCUMENT" {
		t.Fatalf("action before load = %d %s", code, env["error"])
	}

	code, env = f.do(t, http.MethodPost, "/v1/workspace/load", map[string]string{"channelId": lab.ID})
	if code != http.StatusOK {
		t.Fatalf("load = %d %s", code, env["error"])
	}
	if s := workspaceOf(t, env); s.Channel == nil || s.Channel.ID != lab.ID || s.Dirty {
		t.Fatalf("loaded workspace = %+v", s)
	}

	code, env = f.do(t, http.MethodPost, "/v1/workspace/actions", map[string]interface{}{"type": "channel.description", "value": "lab feed"})
	if code != http.StatusOK {
		t.Fatalf("action = %d %s", code, env["error"])
	}
	if s := workspaceOf(t, env); s.Channel.Description != "lab feed" || !s.Dirty {
		t.Errorf("after action: description %q dirty %v", s.Channel.Description, s.Dirty)
	}

	code, env = f.do(t, http.MethodPost, "/v1/workspace/actions", map[string]interface{}{"type": "channel.nope", "value": 1})
	if code != http.StatusBadRequest || errorCode(t, env) != "CC_UNKNOWN_ACTION" {
		t.Errorf("unknown action = %d %s", code, env["error"])
	}

	code, env = f.do(t, http.MethodPost, "/v1/workspace/save", nil)
	if code != http.StatusOK {
		t.Fatalf("save = %d %s", code, env["error"])
	}
	s := workspaceOf(t, env)
	if s.Dirty || s.Persist.Status != workflow.StatusFulfilled || s.Channel.Revision != 1 {
		t.Errorf("after save: dirty %v persist %s revision %d", s.Dirty, s.Persist.Status, s.Channel.Revision)
	}

	code, env = f.do(t, http.MethodGet, "/v1/channels/"+lab.ID+"/snapshots", nil)
	if code != http.StatusOK {
		t.Fatalf("snapshots = %d %s", code, env["error"])
	}
	var page storage.SnapshotPage
	if err := json.Unmarshal(env["data"], &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Snapshots) != 1 || page.Snapshots[0].Revision != 1 {
		t.Fatalf("snapshots = %+v", page.Snapshots)
	}

	code, _ = f.do(t, http.MethodGet, "/v1/channels/"+lab.ID+"/snapshots/"+page.Snapshots[0].ID, nil)
	if code != http.StatusOK {
		t.Errorf("get snapshot = %d", code)
	}
	code, env = f.do(t, http.MethodGet, "/v1/channels/"+lab.ID+"/snapshots?cursor=bogus", nil)
	if code != http.StatusBadRequest || errorCode(t, env) != "CC_CURSOR_INVALID" {
		t.Errorf("bad cursor = %d %s", code, env["error"])
	}
}

func TestLoadRestoresDraft(t *testing.T) {
	lab := model.NewChannel("Lab")
	f := newFixture(t, lab)

	f.do(t, http.MethodPost, "/v1/workspace/load", map[string]string{"channelId": lab.ID})
	f.do(t, http.MethodPost, "/v1/workspace/actions", map[string]interface{}{"type": "channel.description", "value": "unsaved"})

	code, env := f.do(t, http.MethodPost, "/v1/workspace/load", map[string]interface{}{"channelId": lab.ID, "restoreDraft": true})
	if code != http.StatusOK {
		t.Fatalf("load = %d %s", code, env["error"])
	}
	if s := workspaceOf(t, env); s.Channel.Description != "unsaved" || !s.Dirty {
		t.Errorf("restored: description %q dirty %v", s.Channel.Description, s.Dirty)
	}

	code, env = f.do(t, http.MethodPost, "/v1/workspace/load", map[string]string{"channelId": "missing"})
	if code != http.StatusNotFound || errorCode(t, env) != "CC_NOT_FOUND" {
		t.Errorf("missing channel = %d %s", code, env["error"])
	}
}

func TestCreateChannel(t *testing.T) {
	f := newFixture(t, model.NewChannel("Lab"))
	f.do(t, http.MethodPost, "/v1/channels/refresh", nil)

	tests := []struct {
		name string
		want int
	}{
		{"", http.StatusBadRequest},
		{"Lab", http.StatusBadRequest},
		{"bad/name", http.StatusBadRequest},
		{"Radiology", http.StatusCreated},
	}
	for _, tt := range tests {
		code, env := f.do(t, http.MethodPost, "/v1/channels", map[string]string{"name": tt.name})
		if code != tt.want {
			t.Errorf("create %q = %d, want %d (%s)", tt.name, code, tt.want, env["error"])
		}
		if tt.want == http.StatusCreated {
			if s := workspaceOf(t, env); s.Channel == nil || s.Channel.Name != tt.name {
				t.Errorf("created workspace = %+v", s.Channel)
			}
		}
	}
}

func TestFilterRulesAndTables(t *testing.T) {
	lab := model.NewChannel("Lab")
	f := newFixture(t, lab)
	f.do(t, http.MethodPost, "/v1/workspace/load", map[string]string{"channelId": lab.ID})

	f.do(t, http.MethodPost, "/v1/workspace/filter/rules", nil)
	code, env := f.do(t, http.MethodPost, "/v1/workspace/filter/rules?metaDataId=1", nil)
	if code != http.StatusOK {
		t.Fatalf("add destination rule = %d %s", code, env["error"])
	}
	code, env = f.do(t, http.MethodPost, "/v1/workspace/filter/rules?metaDataId=7", nil)
	if code != http.StatusBadRequest {
		t.Errorf("missing destination = %d %s", code, env["error"])
	}

	code, env = f.do(t, http.MethodGet, "/v1/workspace/tables/filterRules", nil)
	if code != http.StatusOK {
		t.Fatalf("table = %d %s", code, env["error"])
	}
	var table struct {
		Rows []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(env["data"], &table); err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("source filter rows = %d, want 1", len(table.Rows))
	}

	code, _ = f.do(t, http.MethodDelete, "/v1/workspace/filter/rules/0", nil)
	if code != http.StatusOK {
		t.Errorf("delete rule = %d", code)
	}
	code, env = f.do(t, http.MethodGet, "/v1/workspace/tables/nope", nil)
	if code != http.StatusBadRequest || errorCode(t, env) != "CC_VALIDATION" {
		t.Errorf("unknown table = %d %s", code, env["error"])
	}
}

func TestEngineOperations(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodPost, "/v1/channels/c1/start", nil)
	if code != http.StatusOK {
		t.Fatalf("start = %d %s", code, env["error"])
	}
	code, env = f.do(t, http.MethodPost, "/v1/channels/c1/explode", nil)
	if code != http.StatusBadRequest || errorCode(t, env) != "CC_UNKNOWN_ACTION" {
		t.Errorf("unknown lifecycle action = %d %s", code, env["error"])
	}
	if len(f.engine.actions) != 1 || f.engine.actions[0] != "start:c1" {
		t.Errorf("engine actions = %v", f.engine.actions)
	}

	code, env = f.do(t, http.MethodPost, "/v1/channels/statistics/clear", map[string]interface{}{"channelIds": []string{}})
	if code != http.StatusBadRequest || errorCode(t, env) != "CC_VALIDATION" {
		t.Errorf("empty clear = %d %s", code, env["error"])
	}
	code, _ = f.do(t, http.MethodPost, "/v1/channels/statistics/clear", map[string]interface{}{"channelIds": []string{"c1", "c2"}, "received": true})
	if code != http.StatusOK || len(f.engine.cleared) != 2 {
		t.Errorf("clear = %d cleared %v", code, f.engine.cleared)
	}

	code, env = f.do(t, http.MethodGet, "/v1/events?name=x", nil)
	if code != http.StatusBadGateway || errorCode(t, env) != "CC_UPSTREAM" {
		t.Errorf("events = %d %s", code, env["error"])
	}

	code, env = f.do(t, http.MethodPut, "/v1/global-scripts", map[string]string{"key": "Deploy", "script": "return;"})
	if code != http.StatusOK {
		t.Fatalf("put global script = %d %s", code, env["error"])
	}
	if got, _ := f.engine.scripts.Get(model.GlobalScriptDeploy); got != "return;" {
		t.Errorf("deploy script = %q", got)
	}
	code, _ = f.do(t, http.MethodPut, "/v1/global-scripts", map[string]string{"key": "Nightly"})
	if code != http.StatusBadRequest {
		t.Errorf("unknown global script key = %d", code)
	}

	code, env = f.do(t, http.MethodGet, "/v1/channels/c1/export", nil)
	if code != http.StatusNotImplemented || errorCode(t, env) != "CC_NOT_IMPLEMENTED" {
		t.Errorf("export without bucket = %d %s", code, env["error"])
	}
}

func TestOptions(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/v1/options?scheme=https", nil)
	if code != http.StatusOK {
		t.Fatalf("options = %d", code)
	}
	var opts struct {
		Actions []string `json:"actions"`
		Tables  []string `json:"tables"`
	}
	if err := json.Unmarshal(env["data"], &opts); err != nil {
		t.Fatal(err)
	}
	if len(opts.Actions) == 0 || len(opts.Tables) == 0 {
		t.Errorf("options = %+v", opts)
	}
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/workspace", nil)
	req.Header.Set("Origin", "https://console.test")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://console.test" {
		t.Errorf("preflight = %d %v", rr.Code, rr.Header())
	}

	req = httptest.NewRequest(http.MethodOptions, "/v1/workspace", nil)
	req.Header.Set("Origin", "https://evil.test")
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign origin allowed")
	}
}

func TestWorkspaceStream(t *testing.T) {
	lab := model.NewChannel("Lab")
	f := newFixture(t, lab)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/workspace/stream?access_token=" + f.token(t, "alice", time.Hour)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg streamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "snapshot" || msg.Workspace.Subject != "alice" || msg.Workspace.Channel != nil {
		t.Fatalf("initial message = %+v", msg)
	}

	f.do(t, http.MethodPost, "/v1/workspace/load", map[string]string{"channelId": lab.ID})
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Workspace.Channel != nil {
			break
		}
	}
	if msg.Workspace.Channel.ID != lab.ID {
		t.Errorf("streamed channel = %s", msg.Workspace.Channel.ID)
	}

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/workspace/stream", nil)
	if err == nil {
		t.Error("stream opened without a token")
	}
}

func TestWorkspaceStreamRefresh(t *testing.T) {
	engine := newStubEngine(model.NewChannel("Lab"))
	engine.listGate = make(chan struct{})
	f := newFixtureWithEngine(t, engine, 10*time.Millisecond)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/workspace/stream?access_token=" + f.token(t, "alice", time.Hour)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg streamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}

	// Many ticks pass while the first refresh is held.
	time.Sleep(150 * time.Millisecond)
	if got := engine.listCalls.Load(); got != 1 {
		t.Errorf("ListChannels calls while a refresh is in flight = %d, want 1", got)
	}

	// The client leaves before the held refresh completes.
	conn.Close()
	time.Sleep(100 * time.Millisecond)
	close(engine.listGate)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, env := f.do(t, http.MethodGet, "/v1/channels", nil)
		var list struct {
			Channels []model.ChannelSummary `json:"channels"`
			State    workflow.State         `json:"state"`
		}
		if err := json.Unmarshal(env["data"], &list); err != nil {
			t.Fatal(err)
		}
		if list.State.Status != workflow.StatusPending {
			if list.State.Status != workflow.StatusFulfilled || len(list.Channels) != 1 {
				t.Errorf("list after disconnect = %+v", list)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh never settled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClassifyEngineStatus(t *testing.T) {
	tests := []struct {
		status   int
		code     errordefs.ErrorCode
		httpCode int
	}{
		{http.StatusNotFound, errordefs.CC_NOT_FOUND, http.StatusNotFound},
		{http.StatusForbidden, errordefs.CC_AUTHZ, http.StatusForbidden},
		{http.StatusServiceUnavailable, errordefs.CC_UNAVAILABLE, http.StatusServiceUnavailable},
		{http.StatusInternalServerError, errordefs.CC_UPSTREAM, http.StatusBadGateway},
	}
	for _, tt := range tests {
		err := fmt.Errorf("deploy failed: %w", &mirth.StatusError{Method: http.MethodPost, Path: "/channels/c1/_deploy", StatusCode: tt.status})
		def := classify(err, "corr-1", errordefs.CC_UPSTREAM)
		if def.Code != tt.code || def.HTTPStatus != tt.httpCode || def.CorrelationID != "corr-1" {
			t.Errorf("engine %d classified as %s %d, want %s %d", tt.status, def.Code, def.HTTPStatus, tt.code, tt.httpCode)
		}
	}
}
