package conformance

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/relaycore/channel-console/internal/model"
)

// FakeEngine is an in-memory engine REST API served under /api. It keeps
// channel documents, their deployment state and message counters, and
// records every lifecycle call as a server event.
type FakeEngine struct {
	mu       sync.Mutex
	channels map[string]*model.Channel
	states   map[string]string
	scripts  *model.GlobalScripts
	events   []model.Event

	// FailStatistics makes every statistics endpoint answer 500.
	FailStatistics bool
}

// NewFakeEngine creates an empty engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		channels: make(map[string]*model.Channel),
		states:   make(map[string]string),
		scripts:  (&model.GlobalScripts{}).With(model.GlobalScriptDeploy, "return;"),
	}
}

// Handler returns the engine API.
func (e *FakeEngine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/channels", e.listChannels)
	mux.HandleFunc("POST /api/channels", e.createChannel)
	mux.HandleFunc("GET /api/channels/statistics", e.statistics)
	mux.HandleFunc("GET /api/channels/statuses", e.statuses)
	mux.HandleFunc("GET /api/channels/portsInUse", e.ports)
	mux.HandleFunc("POST /api/channels/_clearStatistics", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/channels/{id}", e.getChannel)
	mux.HandleFunc("PUT /api/channels/{id}", e.updateChannel)
	mux.HandleFunc("POST /api/channels/{id}/{op}", e.lifecycle)
	mux.HandleFunc("GET /api/events", e.listEvents)
	mux.HandleFunc("GET /api/server/globalScripts", e.getScripts)
	mux.HandleFunc("PUT /api/server/globalScripts", e.putScripts)
	return mux
}

// Channel returns the stored document of id.
func (e *FakeEngine) Channel(id string) *model.Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[id]
}

// State returns the deployment state of id.
func (e *FakeEngine) State(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[id]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func list(key string, items interface{}) map[string]interface{} {
	return map[string]interface{}{"list": map[string]interface{}{key: items}}
}

func (e *FakeEngine) sortedIDs() []string {
	ids := make([]string, 0, len(e.channels))
	for id := range e.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *FakeEngine) listChannels(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.Channel, 0, len(e.channels))
	for _, id := range e.sortedIDs() {
		out = append(out, e.channels[id])
	}
	writeJSON(w, http.StatusOK, list("channel", out))
}

func (e *FakeEngine) createChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel *model.Channel `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Channel == nil {
		http.Error(w, "bad channel", http.StatusBadRequest)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.channels[body.Channel.ID]; ok {
		http.Error(w, "channel exists", http.StatusConflict)
		return
	}
	c := *body.Channel
	c.Revision = 1
	e.channels[c.ID] = &c
	writeJSON(w, http.StatusOK, map[string]bool{"boolean": true})
}

func (e *FakeEngine) getChannel(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.channels[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channel": c})
}

func (e *FakeEngine) updateChannel(w http.ResponseWriter, r *http.Request) {
	var c model.Channel
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "bad channel", http.StatusBadRequest)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.channels[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	c.Revision = prev.Revision + 1
	e.channels[c.ID] = &c
	writeJSON(w, http.StatusOK, map[string]bool{"boolean": true})
}

var opStates = map[string]string{
	"_start":    "STARTED",
	"_stop":     "STOPPED",
	"_pause":    "PAUSED",
	"_resume":   "STARTED",
	"_deploy":   "STARTED",
	"_undeploy": "",
}

func (e *FakeEngine) lifecycle(w http.ResponseWriter, r *http.Request) {
	id, op := r.PathValue("id"), r.PathValue("op")
	state, known := opStates[op]
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.channels[id]
	if !known || !ok {
		http.NotFound(w, r)
		return
	}
	if state == "" {
		delete(e.states, id)
	} else {
		e.states[id] = state
	}
	e.events = append(e.events, model.Event{
		ID:       model.Int(len(e.events) + 1),
		Name:     "Channel " + strings.TrimPrefix(op, "_"),
		Level:    "INFORMATION",
		Outcome:  "SUCCESS",
		DateTime: 1700000000000,
		Attributes: &model.EventAttributes{Entry: model.List[model.StringEntry]{
			{String: []string{"channel", "Channel[id=" + c.ID + ",name=" + c.Name + "]\n"}},
		}},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (e *FakeEngine) statistics(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailStatistics {
		http.Error(w, "statistics unavailable", http.StatusInternalServerError)
		return
	}
	stats := make([]model.ChannelStatistics, 0, len(e.channels))
	for _, id := range e.sortedIDs() {
		stats = append(stats, model.ChannelStatistics{ChannelID: id, Received: 10, Sent: 9, Error: 1})
	}
	writeJSON(w, http.StatusOK, list("channelStatistics", stats))
}

func (e *FakeEngine) statuses(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero := model.Int(0)
	out := make([]model.DashboardStatus, 0, len(e.states))
	for _, id := range e.sortedIDs() {
		if s, ok := e.states[id]; ok {
			out = append(out, model.DashboardStatus{ChannelID: id, State: s, DeployedRevisionDelta: &zero})
		}
	}
	writeJSON(w, http.StatusOK, list("dashboardStatus", out))
}

func (e *FakeEngine) ports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, list("com.mirth.connect.donkey.model.channel.Ports", []model.Port{}))
}

func (e *FakeEngine) listEvents(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := r.URL.Query().Get("name")
	out := make([]model.Event, 0, len(e.events))
	for i := len(e.events) - 1; i >= 0; i-- {
		if strings.Contains(e.events[i].Name, name) {
			out = append(out, e.events[i])
		}
	}
	writeJSON(w, http.StatusOK, list("event", out))
}

func (e *FakeEngine) getScripts(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	writeJSON(w, http.StatusOK, e.scripts)
}

func (e *FakeEngine) putScripts(w http.ResponseWriter, r *http.Request) {
	var g model.GlobalScripts
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		http.Error(w, "bad scripts", http.StatusBadRequest)
		return
	}
	e.mu.Lock()
	e.scripts = &g
	e.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
