package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaycore/channel-console/internal/workspace"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPongTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

// streamMessage is one frame of the workspace stream.
type streamMessage struct {
	Type      string             `json:"type"` // "snapshot"
	Workspace workspace.Snapshot `json:"workspace"`
}

func (m *Mux) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || m.originAllowed(origin)
		},
	}
}

// handleStream pushes the caller's workspace over a WebSocket: the current
// snapshot first, then every change. While the stream is open the channel
// list is refreshed every StreamRefresh.
func (m *Mux) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		m.logger.Warn("workspace stream upgrade failed", "correlation_id", correlationOf(r), "error", err)
		return
	}
	defer conn.Close()

	subject := subjectOf(r)
	ws := m.deps.Workspaces.Get(subject)
	updates, cancel := ws.Subscribe()
	defer cancel()

	m.deps.Metrics.StreamClients.Inc()
	defer m.deps.Metrics.StreamClients.Dec()

	ctx := r.Context()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(s workspace.Snapshot) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(streamMessage{Type: "snapshot", Workspace: s})
	}
	if err := send(ws.Snapshot()); err != nil {
		return
	}

	// The list state outlives the stream, so refreshes ignore its cancellation.
	refreshCtx := context.WithoutCancel(ctx)
	var refreshing atomic.Bool
	startRefresh := func() {
		if !refreshing.CompareAndSwap(false, true) {
			return
		}
		go func() {
			defer refreshing.Store(false)
			if _, err := m.deps.Workspaces.Refresh(refreshCtx, subject); err != nil {
				m.logger.Warn("workspace stream refresh failed", "subject", subject, "error", err)
			}
		}()
	}

	var refresh <-chan time.Time
	if m.deps.StreamRefresh > 0 {
		t := time.NewTicker(m.deps.StreamRefresh)
		defer t.Stop()
		refresh = t.C
		startRefresh()
	}
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case s := <-updates:
			if err := send(s); err != nil {
				m.logger.Debug("workspace stream write failed", "subject", subject, "error", err)
				return
			}
		case <-refresh:
			startRefresh()
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}
