package mirth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/relaycore/channel-console/internal/model"
)

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// engine is a scripted engine API. Unrouted paths answer 404.
type engine struct {
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

func newEngine(t *testing.T) (*engine, *Client) {
	t.Helper()
	e := &engine{routes: map[string]func(w http.ResponseWriter, r *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.calls = append(e.calls, recordedCall{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
		h, ok := e.routes[r.Method+" "+r.URL.Path]
		e.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return e, New(srv.URL+"/api", Options{Username: "admin", Password: "admin", Timeout: 2 * time.Second})
}

func (e *engine) json(route string, status int, body string) {
	e.routes[route] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (e *engine) last() recordedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[len(e.calls)-1]
}

func TestListChannelsOneOrMany(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"many", `{"list":{"channel":[{"id":"a","name":"A"},{"id":"b","name":"B"}]}}`, []string{"a", "b"}},
		{"one", `{"list":{"channel":{"id":"a","name":"A"}}}`, []string{"a"}},
		{"empty string", `{"list":""}`, nil},
		{"null", `{"list":null}`, nil},
	}
	for _, tt := range tests {
		e, c := newEngine(t)
		e.json("GET /api/channels", http.StatusOK, tt.body)
		items, err := c.ListChannels(context.Background())
		if err != nil {
			t.Fatalf("%s: ListChannels: %v", tt.name, err)
		}
		var ids []string
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		if diff := cmp.Diff(tt.want, ids); diff != "" {
			t.Errorf("%s: ids mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	e, c := newEngine(t)
	e.routes["GET /api/channels"] = func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.WriteString(w, `{"list":null}`)
	}
	if _, err := c.ListChannels(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got.Get("X-Requested-With") != "OpenAPI" {
		t.Errorf("X-Requested-With = %q, want OpenAPI", got.Get("X-Requested-With"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q, want application/json", got.Get("Accept"))
	}
	if !strings.HasPrefix(got.Get("Authorization"), "Basic ") {
		t.Errorf("Authorization = %q, want basic credentials", got.Get("Authorization"))
	}
}

func TestGetChannel(t *testing.T) {
	e, c := newEngine(t)
	e.json("GET /api/channels/c1", http.StatusOK, `{"channel":{"id":"c1","name":"Lab","revision":3}}`)

	ch, err := c.GetChannel(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if ch.ID != "c1" || ch.Name != "Lab" || ch.Revision != 3 {
		t.Errorf("channel = %s %s %d", ch.ID, ch.Name, ch.Revision)
	}

	if _, err := c.GetChannel(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChannel(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDecodeChannel(t *testing.T) {
	tests := []struct {
		body   string
		wantID string
	}{
		{`{"channel":{"id":"c1"}}`, "c1"},
		{`{"id":"c2","name":"bare"}`, "c2"},
		{`{"boolean":true}`, ""},
		{`true`, ""},
	}
	for _, tt := range tests {
		ch, err := DecodeChannel([]byte(tt.body))
		if err != nil {
			t.Errorf("DecodeChannel(%s) error: %v", tt.body, err)
			continue
		}
		got := ""
		if ch != nil {
			got = ch.ID
		}
		if got != tt.wantID {
			t.Errorf("DecodeChannel(%s) id = %q, want %q", tt.body, got, tt.wantID)
		}
	}
}

func TestUpdateChannel(t *testing.T) {
	e, c := newEngine(t)
	e.json("PUT /api/channels/c1", http.StatusOK, `{"boolean":true}`)

	ch := model.NewChannel("Lab")
	ch.ID = "c1"
	startEdit := time.Date(2024, 3, 5, 9, 7, 1, 25e6, time.FixedZone("", -7*3600))
	body, err := c.UpdateChannel(context.Background(), ch, startEdit)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"boolean":true}` {
		t.Errorf("body = %s", body)
	}

	call := e.last()
	if call.Query != "override=true&startEdit=2024-03-05T09%3A07%3A01.025-0700" {
		t.Errorf("query = %q", call.Query)
	}
	var sent model.Channel
	if err := json.Unmarshal([]byte(call.Body), &sent); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if sent.ID != "c1" || sent.Name != "Lab" {
		t.Errorf("sent channel = %s %s", sent.ID, sent.Name)
	}
}

func TestUpdateChannelChecks(t *testing.T) {
	_, c := newEngine(t)
	ch := model.NewChannel("")
	_, err := c.UpdateChannel(context.Background(), ch, time.Now())
	if err == nil || !strings.HasPrefix(err.Error(), "save failed: ") {
		t.Fatalf("error = %v, want save failed", err)
	}

	ch = model.NewChannel("Lab")
	ch.ExportData = nil
	if _, err := c.UpdateChannel(context.Background(), ch, time.Now()); err == nil || !strings.Contains(err.Error(), "export metadata") {
		t.Errorf("error = %v, want missing export metadata", err)
	}
}

func TestStatusErrorSentinels(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusServiceUnavailable, ErrUnavailable},
	}
	for _, tt := range tests {
		err := error(&StatusError{Method: http.MethodGet, Path: "/channels", StatusCode: tt.status})
		for _, sentinel := range []error{ErrNotFound, ErrForbidden, ErrUnavailable} {
			if got := errors.Is(err, sentinel); got != (sentinel == tt.want) {
				t.Errorf("errors.Is(%d, %v) = %v", tt.status, sentinel, got)
			}
		}
	}
}

func TestCheckHydratedChannelWithoutDestinations(t *testing.T) {
	ch, err := DecodeChannel([]byte(`{"id":"c1","name":"Lab","destinationConnectors":""}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckChannel(model.Hydrate(ch)); err != nil {
		t.Errorf("CheckChannel(hydrated) = %v, want nil", err)
	}
}

func TestStatisticsFallback(t *testing.T) {
	e, c := newEngine(t)
	e.json("GET /api/dashboard/statistics", http.StatusOK,
		`{"list":{"channelStatistics":{"channelId":"c1","received":"5","sent":4}}}`)

	stats, err := c.Statistics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].ChannelID != "c1" || stats[0].Received != 5 || stats[0].Sent != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if len(e.calls) != 3 {
		t.Errorf("got %d calls, want 3", len(e.calls))
	}
}

func TestStatisticsAllFail(t *testing.T) {
	_, c := newEngine(t)
	_, err := c.Statistics(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStatusError(t *testing.T) {
	e, c := newEngine(t)
	e.json("GET /api/channels/statuses", http.StatusInternalServerError, `{"error":"boom"}`)
	_, err := c.Statuses(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusInternalServerError || !strings.Contains(se.Error(), "boom") {
		t.Errorf("StatusError = %v", se)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("500 matched ErrNotFound")
	}
}

func TestLookups(t *testing.T) {
	e, c := newEngine(t)
	e.json("GET /api/channels/idsAndNames", http.StatusOK,
		`{"map":{"entry":[{"string":["c1","Lab"]},{"string":["c2","ADT"]}]}}`)
	e.json("GET /api/channels/portsInUse", http.StatusOK,
		`{"list":{"com.mirth.connect.donkey.model.channel.Ports":{"name":"Lab","id":"c1","port":"6661"}}}`)
	e.json("GET /api/channels/c1/connectorNames", http.StatusOK,
		`{"linked-hash-map":{"entry":[{"int":0,"string":"Source"},{"int":1,"string":"Destination 1"}]}}`)
	e.json("GET /api/channels/c1/status", http.StatusOK,
		`{"dashboardStatus":{"channelId":"c1","state":"STARTED","deployedRevisionDelta":0,"queued":2}}`)
	e.json("GET /api/channelgroups", http.StatusOK, `{"list":{"channelGroup":{"id":"g1","name":"Default"}}}`)
	ctx := context.Background()

	ids, err := c.IDsAndNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]model.ChannelIDAndName{{ID: "c1", Name: "Lab"}, {ID: "c2", Name: "ADT"}}, ids); diff != "" {
		t.Errorf("IDsAndNames mismatch (-want +got):\n%s", diff)
	}

	ports, err := c.PortsInUse(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ports) != 1 || ports[0].Port != 6661 {
		t.Errorf("ports = %+v", ports)
	}

	names, err := c.ConnectorNames(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]model.ConnectorName{{MetaDataID: 0, Name: "Source"}, {MetaDataID: 1, Name: "Destination 1"}}, names); diff != "" {
		t.Errorf("ConnectorNames mismatch (-want +got):\n%s", diff)
	}

	st, err := c.Status(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != "STARTED" || st.Queued != 2 || st.DeployedRevisionDelta == nil || *st.DeployedRevisionDelta != 0 {
		t.Errorf("status = %+v", st)
	}

	groups, err := c.ChannelGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Name != "Default" {
		t.Errorf("groups = %+v", groups)
	}
}

func TestLifecycle(t *testing.T) {
	e, c := newEngine(t)
	for _, p := range []string{"_start", "_stop", "_pause", "_resume", "_deploy", "_undeploy"} {
		e.json("POST /api/channels/c1/"+p, http.StatusNoContent, "")
	}
	ctx := context.Background()
	for _, a := range []Action{ActionStart, ActionStop, ActionPause, ActionResume, ActionDeploy, ActionUndeploy} {
		if err := c.Lifecycle(ctx, "c1", a); err != nil {
			t.Errorf("Lifecycle(%s): %v", a, err)
		}
		if got := e.last().Path; got != "/api/channels/c1/_"+string(a) {
			t.Errorf("Lifecycle(%s) path = %s", a, got)
		}
	}
	if err := c.Lifecycle(ctx, "c1", "explode"); err == nil {
		t.Error("unknown action accepted")
	}

	if err := c.Deploy(ctx, "c1", DeployOptions{ReturnErrors: true, DebugOptions: "1"}); err != nil {
		t.Fatal(err)
	}
	if q := e.last().Query; q != "debugOptions=1&returnErrors=true" {
		t.Errorf("deploy query = %q", q)
	}
}

func TestClearStatistics(t *testing.T) {
	e, c := newEngine(t)
	e.json("POST /api/channels/_clearStatistics", http.StatusNoContent, "")
	if err := c.ClearStatistics(context.Background(), []string{"c1"}, ClearOptions{Received: true, Error: true}); err != nil {
		t.Fatal(err)
	}
	call := e.last()
	if call.Query != "error=true&received=true" {
		t.Errorf("query = %q", call.Query)
	}
	if call.Body != `{"c1":null}` {
		t.Errorf("body = %s", call.Body)
	}
}

func TestEventsAndGlobalScripts(t *testing.T) {
	e, c := newEngine(t)
	e.json("GET /api/events", http.StatusOK,
		`{"list":{"event":[{"id":1,"name":"Channel updated"},{"id":2,"name":"Channel updated"}]}}`)
	e.json("GET /api/server/globalScripts", http.StatusOK,
		`{"map":{"entry":[{"string":["Deploy","return;"]},{"string":["Undeploy","return;"]}]}}`)
	e.json("PUT /api/server/globalScripts", http.StatusNoContent, "")
	ctx := context.Background()

	events, err := c.Events(ctx, "Channel updated")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
	if q := e.last().Query; q != "name=Channel+updated" {
		t.Errorf("events query = %q", q)
	}

	g, err := c.GlobalScripts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := g.Get(model.GlobalScriptDeploy); !ok || s != "return;" {
		t.Errorf("Deploy script = %q, %v", s, ok)
	}
	if err := c.SetGlobalScripts(ctx, g.With(model.GlobalScriptDeploy, "logger.info('x');")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(e.last().Body, "logger.info") {
		t.Errorf("PUT body = %s", e.last().Body)
	}
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *countingObserver) ObserveEngineCall(op, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[op+" "+status]++
}

func TestObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"list":null}`)
	}))
	defer srv.Close()
	obs := &countingObserver{calls: map[string]int{}}
	c := New(srv.URL, Options{Observer: obs})
	if _, err := c.ListChannels(context.Background()); err != nil {
		t.Fatal(err)
	}
	if obs.calls["list_channels 200"] != 1 {
		t.Errorf("observer calls = %v", obs.calls)
	}
}
